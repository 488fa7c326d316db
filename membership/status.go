package membership

// Status is the membership state of a node. The values form a total order
// used for merge tie-breaks: states only ever move forward, from Joining
// towards Removed, and a merge between two conflicting records for the same
// incarnation always converges to the later state.
type Status uint8

const (
	// StatusJoining is the initial status a node assigns to itself when it
	// starts gossiping with the cluster.
	StatusJoining Status = iota + 1

	// StatusUp is a full cluster member.
	StatusUp

	// StatusLeaving is a member that has announced a graceful departure.
	StatusLeaving

	// StatusDown is a member declared unreachable. Terminal, except for
	// removal: a node can only come back by restarting with a fresh
	// generation.
	StatusDown

	// StatusRemoved is a member scheduled for garbage collection.
	StatusRemoved
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusJoining:
		return "joining"
	case StatusUp:
		return "up"
	case StatusLeaving:
		return "leaving"
	case StatusDown:
		return "down"
	case StatusRemoved:
		return "removed"
	default:
		return ""
	}
}

// WorseThan returns true if the status is further along the convergence
// order than the other status.
func (s Status) WorseThan(other Status) bool {
	return s > other
}

// IsValid returns true for statuses known to this version of the protocol.
// Unknown numeric values received from the wire are rejected as malformed.
func (s Status) IsValid() bool {
	return s >= StatusJoining && s <= StatusRemoved
}
