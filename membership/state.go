package membership

import (
	"time"

	"github.com/go-kit/log/level"

	"github.com/plenum-go/plenum/internal/set"
)

// compareRecords orders two records for the same incarnation by
// (status, version, heartbeat), the convergence order of the merge. The
// result is positive when a is the fresher record.
func compareRecords(a, b *Member) int {
	if a.Status != b.Status {
		return int(a.Status) - int(b.Status)
	}

	if a.Version != b.Version {
		if a.Version > b.Version {
			return 1
		}
		return -1
	}

	if a.Heartbeat != b.Heartbeat {
		if a.Heartbeat > b.Heartbeat {
			return 1
		}
		return -1
	}

	return 0
}

// ApplyState merges the given records into the local view and returns all
// known members after the merge. The merge is entrywise, idempotent and
// commutative: applying the same records in any order or any number of
// times converges to the same state. Source is the id of the node the
// records came from, or zero for local updates.
func (cl *Cluster) ApplyState(incoming []Member, source NodeID) []Member {
	now := cl.now()

	cl.mut.Lock()
	defer cl.mut.Unlock()

	for _, next := range incoming {
		cl.mergeLocked(next, source, now)
	}

	cl.pruneObserversLocked()
	cl.refreshStateLocked()

	if !source.IsZero() {
		cl.convergence.Record(source, versionVectorOf(incoming))

		// The first completed exchange is the moment this node stops
		// being a lone joiner and becomes part of the cluster.
		if self := cl.members[cl.self.UniqueID]; self.Status == StatusJoining {
			_ = cl.advanceStatusLocked(cl.self, StatusUp, now)
		}
	}

	cl.evaluateSuspectsLocked(now)
	cl.metrics.Merges.Inc()

	return cl.membersLocked()
}

func (cl *Cluster) mergeLocked(next Member, source NodeID, now time.Time) {
	if !next.Status.IsValid() || next.ID.IsZero() {
		return
	}

	next = next.Clone()
	if next.ObservedBy == nil {
		next.ObservedBy = set.New[NodeID]()
	}

	curr, ok := cl.members[next.ID.UniqueID]
	if !ok {
		// A record may still circulate after the entry was garbage
		// collected locally. Ignore it unless it is genuinely newer.
		if ts, ok := cl.tombstones[next.ID.UniqueID]; ok {
			if next.ID.Generation < ts.id.Generation {
				return
			}
			if next.ID.Generation == ts.id.Generation && next.Version <= ts.version {
				return
			}

			delete(cl.tombstones, next.ID.UniqueID)
		}

		if !source.IsZero() {
			next.ObservedBy.Add(source)
		}

		cl.members[next.ID.UniqueID] = next
		cl.detector.Observe(next.ID, next.Heartbeat, now)
		cl.noteRemovedLocked(next, now)
		cl.publishLocked(StatusChange{ID: next.ID, Addr: next.Addr, New: next.Status})

		return
	}

	// A higher generation under our own unique id would mean id collision
	// with a live process. Unlike a regular restart there is no correct
	// way to reconcile it, so the record is dropped.
	if next.ID.UniqueID == cl.self.UniqueID && next.ID.Generation > cl.self.Generation {
		level.Error(cl.logger).Log("msg", "node id collision", "id", next.ID)
		return
	}

	switch {
	case next.ID.Generation < curr.ID.Generation:
		// Stale incarnation, already superseded.
		return

	case next.ID.Generation > curr.ID.Generation:
		// The process restarted: the new incarnation replaces the old
		// record entirely. Observation history of the previous
		// incarnation does not apply to the fresh process.
		cl.detector.Forget(curr.ID)
		cl.convergence.Forget(curr.ID)
		delete(cl.suspects, curr.ID)
		delete(cl.removed, curr.ID.UniqueID)

		if !source.IsZero() {
			next.ObservedBy.Add(source)
		}

		cl.members[next.ID.UniqueID] = next
		cl.detector.Observe(next.ID, next.Heartbeat, now)
		cl.noteRemovedLocked(next, now)

		cl.publishLocked(StatusChange{ID: curr.ID, Addr: curr.Addr, Old: curr.Status, New: StatusRemoved})
		cl.publishLocked(StatusChange{ID: next.ID, Addr: next.Addr, New: next.Status})

		return
	}

	// Same incarnation: the fresher record wins wholesale, observation
	// evidence is unioned regardless of the winner.
	merged := curr

	if compareRecords(&next, &curr) > 0 {
		merged = next

		if next.Status != curr.Status {
			cl.publishLocked(StatusChange{ID: next.ID, Addr: next.Addr, Old: curr.Status, New: next.Status})
		}
	}

	merged.ObservedBy = curr.ObservedBy.Union(next.ObservedBy)

	if !source.IsZero() {
		merged.ObservedBy.Add(source)
	}

	if next.Heartbeat > curr.Heartbeat && next.ID != cl.self {
		// Fresh liveness evidence: this node now counts as an observer
		// of the member's current heartbeat.
		merged.ObservedBy.Add(cl.self)
		cl.detector.Observe(merged.ID, next.Heartbeat, now)
	}

	cl.members[merged.ID.UniqueID] = merged
	cl.noteRemovedLocked(merged, now)
}

// pruneObserversLocked drops observation entries for nodes that are no
// longer in the member map, bounding observed-by growth in churny clusters.
func (cl *Cluster) pruneObserversLocked() {
	known := make(set.Set[NodeID], len(cl.members))
	for _, m := range cl.members {
		known.Add(m.ID)
	}

	for uid, m := range cl.members {
		if m.ObservedBy == nil {
			continue
		}

		for id := range m.ObservedBy {
			if !known.Has(id) {
				m.ObservedBy.Remove(id)
			}
		}

		cl.members[uid] = m
	}
}

// refreshStateLocked recomputes the state hash and per-status gauges, and
// retires seed addresses that now have a known member behind them.
func (cl *Cluster) refreshStateLocked() {
	cl.stateHash = 0

	counts := make(map[Status]int)
	addrs := make(set.Set[string])

	for _, m := range cl.members {
		cl.stateHash ^= m.Hash64()
		counts[m.Status]++
		addrs.Add(m.Addr)
	}

	for s := StatusJoining; s <= StatusRemoved; s++ {
		cl.metrics.Members.WithLabelValues(s.String()).Set(float64(counts[s]))
	}

	seeds := cl.seeds[:0]
	for _, addr := range cl.seeds {
		if !addrs.Has(addr) {
			seeds = append(seeds, addr)
		}
	}
	cl.seeds = seeds
}

func (cl *Cluster) noteRemovedLocked(m Member, now time.Time) {
	if m.Status != StatusRemoved {
		delete(cl.removed, m.ID.UniqueID)
		return
	}

	if mark, ok := cl.removed[m.ID.UniqueID]; !ok || mark.version != m.Version {
		cl.removed[m.ID.UniqueID] = removalMark{version: m.Version, since: now}
	}
}

func (cl *Cluster) membersLocked() []Member {
	members := make([]Member, 0, len(cl.members))
	for _, m := range cl.members {
		members = append(members, m.Clone())
	}

	return members
}

func (cl *Cluster) versionVectorLocked() VersionVector {
	vv := make(VersionVector, len(cl.members))
	for _, m := range cl.members {
		vv.Observe(m.ID, m.Version)
	}

	return vv
}

func versionVectorOf(members []Member) VersionVector {
	vv := make(VersionVector, len(members))
	for i := range members {
		vv.Observe(members[i].ID, members[i].Version)
	}

	return vv
}
