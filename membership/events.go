package membership

// StatusChange is emitted on every locally-applied status transition,
// whether it originated from a local decision or arrived through gossip.
// Old is zero when the member was previously unknown. When a restarted
// incarnation supersedes an older one, two events are emitted: the old
// incarnation moving to StatusRemoved, then the new one appearing.
type StatusChange struct {
	ID   NodeID
	Addr string
	Old  Status
	New  Status
}

// publishLocked pushes the event to the subscriber channel. The channel is
// buffered; a subscriber that stops draining loses events rather than
// blocking the merge path.
func (cl *Cluster) publishLocked(ev StatusChange) {
	if cl.closed {
		return
	}

	select {
	case cl.events <- ev:
	default:
		cl.metrics.EventsDropped.Inc()
	}
}

// Events returns the membership change stream. The channel is closed on
// shutdown.
func (cl *Cluster) Events() <-chan StatusChange {
	return cl.events
}
