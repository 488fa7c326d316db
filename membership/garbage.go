package membership

import (
	"time"

	"github.com/go-kit/log/level"
)

func (cl *Cluster) startGC() {
	cl.wg.Add(1)

	go func() {
		defer cl.wg.Done()

		ticker := time.NewTicker(cl.conf.GCInterval)
		defer ticker.Stop()

		for {
			select {
			case <-cl.stop:
				return
			case <-ticker.C:
				cl.collectGarbage()
			}
		}
	}()
}

// collectGarbage drops removed members whose grace period has elapsed. The
// grace period gives the removal time to spread: collecting too early would
// let a copy still held elsewhere resurrect the entry. A tombstone is kept
// after collection to reject exactly such late copies.
func (cl *Cluster) collectGarbage() {
	now := cl.now()

	cl.mut.Lock()
	defer cl.mut.Unlock()

	for uid, mark := range cl.removed {
		m, ok := cl.members[uid]
		if !ok || m.Status != StatusRemoved {
			delete(cl.removed, uid)
			continue
		}

		if now.Sub(mark.since) < cl.conf.RemovalGrace {
			continue
		}

		cl.tombstones[uid] = tombstone{
			id:        m.ID,
			version:   m.Version,
			deletedAt: now,
		}

		delete(cl.members, uid)
		delete(cl.removed, uid)
		delete(cl.suspects, m.ID)
		cl.detector.Forget(m.ID)
		cl.convergence.Forget(m.ID)

		level.Info(cl.logger).Log("msg", "removed member collected", "id", m.ID)
	}

	for uid, ts := range cl.tombstones {
		if now.Sub(ts.deletedAt) >= cl.conf.TombstoneRetention {
			delete(cl.tombstones, uid)
		}
	}

	cl.refreshStateLocked()
}
