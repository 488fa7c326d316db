package membership

// VersionVector maps node incarnations to the highest status version seen
// for them. Comparing vectors tells which of two views is lagging and for
// which members exactly.
type VersionVector map[NodeID]uint32

// Observe raises the recorded version for the given id, never lowers it.
func (vv VersionVector) Observe(id NodeID, version uint32) {
	if v, ok := vv[id]; !ok || version > v {
		vv[id] = version
	}
}

// Merge folds the other vector in, keeping the per-entry maximum.
func (vv VersionVector) Merge(other VersionVector) {
	for id, version := range other {
		vv.Observe(id, version)
	}
}

// Covers returns true if the vector is at least as fresh as the other one
// for every entry the other one carries.
func (vv VersionVector) Covers(other VersionVector) bool {
	for id, version := range other {
		if vv[id] < version {
			return false
		}
	}

	return true
}

func (vv VersionVector) Clone() VersionVector {
	clone := make(VersionVector, len(vv))
	for id, version := range vv {
		clone[id] = version
	}

	return clone
}
