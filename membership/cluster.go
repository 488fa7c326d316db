package membership

import (
	"context"
	"fmt"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/plenum-go/plenum/internal/set"
)

type tombstone struct {
	id        NodeID
	version   uint32
	deletedAt time.Time
}

type removalMark struct {
	version uint32
	since   time.Time
}

// Cluster holds this process's view of the membership and runs the gossip
// protocol against it. The view is the single shared mutable resource: all
// reads and writes go through the cluster's lock, and exchanges never hold
// the lock while waiting on the network (snapshot, release, await, merge).
type Cluster struct {
	mut        sync.RWMutex
	self       NodeID
	members    map[uint64]Member
	tombstones map[uint64]tombstone
	removed    map[uint64]removalMark
	suspects   map[NodeID]time.Time
	seeds      []string
	stateHash  uint64

	convergence *convergenceMonitor
	transport   Transport
	detector    FailureDetector
	logger      kitlog.Logger
	metrics     *Metrics
	conf        Config

	events chan StatusChange
	stop   chan struct{}
	wg     sync.WaitGroup
	closed bool

	now func() time.Time
}

func NewCluster(conf Config) (*Cluster, error) {
	if conf.NodeID.IsZero() {
		return nil, fmt.Errorf("node id is not set")
	}

	if conf.AdvertisedAddr == "" {
		return nil, fmt.Errorf("advertised address is not set")
	}

	if conf.Detector == nil {
		return nil, fmt.Errorf("failure detector is not set")
	}

	if conf.Logger == nil {
		conf.Logger = kitlog.NewNopLogger()
	}

	cl := &Cluster{
		self:        conf.NodeID,
		members:     make(map[uint64]Member, 1),
		tombstones:  make(map[uint64]tombstone),
		removed:     make(map[uint64]removalMark),
		suspects:    make(map[NodeID]time.Time),
		seeds:       append([]string(nil), conf.Seeds...),
		convergence: newConvergenceMonitor(),
		transport:   conf.Transport,
		detector:    conf.Detector,
		logger:      conf.Logger,
		metrics:     newMetrics(),
		conf:        conf,
		events:      make(chan StatusChange, conf.EventBuffer),
		stop:        make(chan struct{}),
		now:         time.Now,
	}

	cl.members[conf.NodeID.UniqueID] = Member{
		ID:         conf.NodeID,
		Addr:       conf.AdvertisedAddr,
		Status:     StatusJoining,
		Version:    1,
		Heartbeat:  0,
		ObservedBy: set.New(conf.NodeID),
	}

	cl.refreshStateLocked()

	return cl, nil
}

// Start launches the background tasks: the gossip round scheduler, the
// heartbeat tick and the garbage collector.
func (cl *Cluster) Start() error {
	if cl.transport == nil {
		return fmt.Errorf("transport is not set")
	}

	if cl.isClosed() {
		return ErrClosed
	}

	cl.startScheduler()
	cl.startGC()

	return nil
}

// Shutdown stops issuing gossip rounds and waits for in-flight ones to
// finish. Abandoning a round mid-way is safe: merges are idempotent and
// nothing is left half-applied.
func (cl *Cluster) Shutdown() {
	cl.mut.Lock()
	if cl.closed {
		cl.mut.Unlock()
		return
	}
	cl.closed = true
	cl.mut.Unlock()

	close(cl.stop)
	cl.wg.Wait()
	close(cl.events)
}

func (cl *Cluster) isClosed() bool {
	cl.mut.RLock()
	defer cl.mut.RUnlock()

	return cl.closed
}

// SelfID returns the id of the current node.
func (cl *Cluster) SelfID() NodeID {
	return cl.self
}

// Self returns the current node's own member record.
func (cl *Cluster) Self() Member {
	cl.mut.RLock()
	defer cl.mut.RUnlock()

	return cl.members[cl.self.UniqueID].Clone()
}

// Members returns all known members, including entries that are down or
// pending removal.
func (cl *Cluster) Members() []Member {
	cl.mut.RLock()
	defer cl.mut.RUnlock()

	return cl.membersLocked()
}

// Member returns the record for the given id. The boolean is false when the
// id is unknown or has been superseded by a newer incarnation.
func (cl *Cluster) Member(id NodeID) (Member, bool) {
	cl.mut.RLock()
	defer cl.mut.RUnlock()

	m, ok := cl.members[id.UniqueID]
	if !ok || m.ID != id {
		return Member{}, false
	}

	return m.Clone(), true
}

// StateHash is a digest of the merge-relevant state. Two nodes whose hashes
// match hold converged views.
func (cl *Cluster) StateHash() uint64 {
	cl.mut.RLock()
	defer cl.mut.RUnlock()

	return cl.stateHash
}

// Converged returns true once every peer seen so far has demonstrated
// knowledge of everything in the local view.
func (cl *Cluster) Converged() bool {
	cl.mut.RLock()
	defer cl.mut.RUnlock()

	return cl.convergence.Converged(cl.versionVectorLocked())
}

// Suspects returns the members currently suspected by the local failure
// detection policy. Suspicion is a local annotation and is never gossiped.
func (cl *Cluster) Suspects() []NodeID {
	cl.mut.RLock()
	defer cl.mut.RUnlock()

	ids := make([]NodeID, 0, len(cl.suspects))
	for id := range cl.suspects {
		ids = append(ids, id)
	}

	return ids
}

// Metrics exposes the cluster's metric collectors for registration.
func (cl *Cluster) Metrics() *Metrics {
	return cl.metrics
}

// AdvanceStatus moves a member forward in the convergence order. The call
// is rejected with ErrStaleUpdate when the transition would move the member
// backwards or sideways. For the local node the version is bumped, because
// the transition originates here; records of other nodes keep their version
// and win merges on status order alone.
func (cl *Cluster) AdvanceStatus(id NodeID, next Status) error {
	cl.mut.Lock()
	defer cl.mut.Unlock()

	return cl.advanceStatusLocked(id, next, cl.now())
}

func (cl *Cluster) advanceStatusLocked(id NodeID, next Status, now time.Time) error {
	m, ok := cl.members[id.UniqueID]
	if !ok || m.ID != id {
		return ErrUnknownPeer
	}

	if !next.WorseThan(m.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrStaleUpdate, m.Status, next)
	}

	old := m.Status

	m = m.Clone()
	m.Status = next

	if id == cl.self {
		m.Version++
	}

	cl.members[id.UniqueID] = m
	cl.noteRemovedLocked(m, now)

	if next == StatusDown || next == StatusRemoved {
		delete(cl.suspects, id)
	}

	cl.refreshStateLocked()
	cl.publishLocked(StatusChange{ID: id, Addr: m.Addr, Old: old, New: next})

	level.Info(cl.logger).Log(
		"msg", "member status changed",
		"id", id,
		"old", old,
		"new", next,
	)

	return nil
}

// DeclareDown marks the member as down. The decision is unilateral and
// spreads through gossip like any other status change; it is a lightweight
// availability/consistency trade-off, not a voted decision.
func (cl *Cluster) DeclareDown(id NodeID) error {
	return cl.AdvanceStatus(id, StatusDown)
}

// Remove schedules the member for garbage collection once the removal
// grace period elapses.
func (cl *Cluster) Remove(id NodeID) error {
	return cl.AdvanceStatus(id, StatusRemoved)
}

// Join performs a blocking view exchange with the given address and merges
// the reply, seeding the local view with the remote cluster's state.
func (cl *Cluster) Join(ctx context.Context, addr string) error {
	if cl.transport == nil {
		return fmt.Errorf("transport is not set")
	}

	if cl.isClosed() {
		return ErrClosed
	}

	reply, err := cl.transport.ExchangeClusterViews(ctx, addr, cl.snapshotProto())
	if err != nil {
		return fmt.Errorf("exchange with %s: %w", addr, err)
	}

	members, source, err := membersFromProto(reply)
	if err != nil {
		return fmt.Errorf("reply from %s: %w", addr, err)
	}

	cl.ApplyState(members, source)
	cl.metrics.Exchanges.WithLabelValues("outbound", "view").Inc()

	return nil
}

// Leave announces a graceful departure and pushes it to the cluster with a
// final synchronous gossip round. The caller is expected to Shutdown
// afterwards.
func (cl *Cluster) Leave(ctx context.Context) error {
	if cl.isClosed() {
		return ErrClosed
	}

	if err := cl.AdvanceStatus(cl.self, StatusLeaving); err != nil {
		return err
	}

	cl.round(ctx)

	return nil
}

func (cl *Cluster) tickHeartbeat() {
	now := cl.now()

	cl.mut.Lock()
	defer cl.mut.Unlock()

	m := cl.members[cl.self.UniqueID].Clone()
	m.Heartbeat++

	// A new heartbeat value starts a fresh observation round: nobody has
	// seen it yet besides the node itself.
	m.ObservedBy = set.New(cl.self)

	cl.members[cl.self.UniqueID] = m
	cl.refreshStateLocked()
	cl.evaluateSuspectsLocked(now)
}

// evaluateSuspectsLocked reruns the failure detection policy over all
// reachable members. A member becomes suspected when its heartbeat has been
// silent past the suspicion window, or when its observed-by set has shrunk
// below the quorum fraction of up members. Suspicion clears itself as soon
// as either signal recovers.
func (cl *Cluster) evaluateSuspectsLocked(now time.Time) {
	upIDs := make(set.Set[NodeID])
	for _, m := range cl.members {
		if m.Status == StatusUp {
			upIDs.Add(m.ID)
		}
	}

	for _, m := range cl.members {
		if m.ID == cl.self || !m.IsReachable() {
			delete(cl.suspects, m.ID)
			continue
		}

		suspected := cl.detector.Suspect(m.ID, now)

		if !suspected && len(upIDs) > 0 && cl.conf.QuorumFraction > 0 {
			observed := 0
			for id := range upIDs {
				if m.ObservedBy.Has(id) {
					observed++
				}
			}

			if frac := float64(observed) / float64(len(upIDs)); frac < cl.conf.QuorumFraction {
				suspected = true
			}
		}

		if !suspected {
			delete(cl.suspects, m.ID)
			continue
		}

		since, ok := cl.suspects[m.ID]
		if !ok {
			cl.suspects[m.ID] = now

			level.Warn(cl.logger).Log(
				"msg", "member suspected",
				"id", m.ID,
				"heartbeat", m.Heartbeat,
			)

			continue
		}

		if cl.conf.AutoDownAfter > 0 && now.Sub(since) >= cl.conf.AutoDownAfter {
			if err := cl.advanceStatusLocked(m.ID, StatusDown, now); err == nil {
				level.Warn(cl.logger).Log("msg", "member declared down", "id", m.ID)
			}
		}
	}

	cl.metrics.Suspected.Set(float64(len(cl.suspects)))
}
