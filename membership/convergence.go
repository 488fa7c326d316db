package membership

// convergenceMonitor remembers the freshest version vector every peer has
// shown us during an exchange. Peers whose recorded vector does not cover
// the local one are lagging and make better gossip targets; once a peer is
// fully caught up, rounds can fall back to cheap heartbeat-only exchanges.
type convergenceMonitor struct {
	observed map[NodeID]VersionVector
}

func newConvergenceMonitor() *convergenceMonitor {
	return &convergenceMonitor{
		observed: make(map[NodeID]VersionVector),
	}
}

func (cm *convergenceMonitor) Record(id NodeID, vv VersionVector) {
	if existing, ok := cm.observed[id]; ok {
		existing.Merge(vv)
		return
	}

	cm.observed[id] = vv.Clone()
}

// CaughtUp returns true if the peer has demonstrated knowledge of
// everything in the local vector.
func (cm *convergenceMonitor) CaughtUp(id NodeID, local VersionVector) bool {
	vv, ok := cm.observed[id]
	return ok && vv.Covers(local)
}

// Converged returns true once every observed peer covers the local vector.
// With no observations yet, nothing is known to have converged.
func (cm *convergenceMonitor) Converged(local VersionVector) bool {
	if len(cm.observed) == 0 {
		return false
	}

	for _, vv := range cm.observed {
		if !vv.Covers(local) {
			return false
		}
	}

	return true
}

func (cm *convergenceMonitor) Forget(id NodeID) {
	delete(cm.observed, id)
}
