package membership

import (
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/plenum-go/plenum/internal/set"
)

type stubDetector struct {
	suspected map[NodeID]bool
}

func newStubDetector() *stubDetector {
	return &stubDetector{suspected: make(map[NodeID]bool)}
}

func (d *stubDetector) Observe(id NodeID, heartbeat uint64, at time.Time) {}

func (d *stubDetector) Suspect(id NodeID, at time.Time) bool {
	return d.suspected[id]
}

func (d *stubDetector) Forget(id NodeID) {
	delete(d.suspected, id)
}

func nid(unique, generation uint64) NodeID {
	return NodeID{UniqueID: unique, Generation: generation}
}

func newMember(id NodeID, addr string, status Status, version uint32, heartbeat uint64) Member {
	return Member{
		ID:         id,
		Addr:       addr,
		Status:     status,
		Version:    version,
		Heartbeat:  heartbeat,
		ObservedBy: set.New(id),
	}
}

func newTestCluster(t *testing.T) *Cluster {
	t.Helper()

	conf := DefaultConfig()
	conf.NodeID = nid(1, 1)
	conf.AdvertisedAddr = "127.0.0.1:1001"
	conf.Detector = newStubDetector()
	conf.QuorumFraction = 0

	cl, err := NewCluster(conf)
	require.NoError(t, err)

	return cl
}

func findMember(t *testing.T, cl *Cluster, id NodeID) Member {
	t.Helper()

	m, ok := cl.Member(id)
	require.True(t, ok, "member %s not found", id)

	return m
}

func TestApplyState_VersionWinsOverHeartbeat(t *testing.T) {
	cl := newTestCluster(t)
	source := nid(9, 1)

	cl.ApplyState([]Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusUp, 3, 10),
	}, source)

	cl.ApplyState([]Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusUp, 2, 50),
	}, source)

	m := findMember(t, cl, nid(2, 1))
	require.Equal(t, StatusUp, m.Status)
	require.Equal(t, uint32(3), m.Version)
	require.Equal(t, uint64(10), m.Heartbeat)
}

func TestApplyState_StatusOrderBeatsVersion(t *testing.T) {
	cl := newTestCluster(t)
	source := nid(9, 1)

	cl.ApplyState([]Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusDown, 5, 0),
	}, source)

	cl.ApplyState([]Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusUp, 9, 0),
	}, source)

	m := findMember(t, cl, nid(2, 1))
	require.Equal(t, StatusDown, m.Status)
	require.Equal(t, uint32(5), m.Version)

	// The same pair in the opposite order converges to the same record.
	cl2 := newTestCluster(t)

	cl2.ApplyState([]Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusUp, 9, 0),
	}, source)

	cl2.ApplyState([]Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusDown, 5, 0),
	}, source)

	m2 := findMember(t, cl2, nid(2, 1))
	require.Equal(t, StatusDown, m2.Status)
	require.Equal(t, uint32(5), m2.Version)
}

func TestApplyState_NewGenerationSupersedes(t *testing.T) {
	cl := newTestCluster(t)
	source := nid(9, 1)

	cl.ApplyState([]Member{
		newMember(nid(3, 1), "127.0.0.1:1003", StatusDown, 7, 100),
	}, source)

	cl.ApplyState([]Member{
		newMember(nid(3, 2), "127.0.0.1:1003", StatusJoining, 1, 0),
	}, source)

	m := findMember(t, cl, nid(3, 2))
	require.Equal(t, StatusJoining, m.Status)
	require.Equal(t, uint32(1), m.Version)
	require.Equal(t, uint64(0), m.Heartbeat)

	_, ok := cl.Member(nid(3, 1))
	require.False(t, ok)
}

func TestApplyState_StaleGenerationIgnored(t *testing.T) {
	cl := newTestCluster(t)
	source := nid(9, 1)

	cl.ApplyState([]Member{
		newMember(nid(3, 2), "127.0.0.1:1003", StatusUp, 4, 10),
	}, source)

	cl.ApplyState([]Member{
		newMember(nid(3, 1), "127.0.0.1:1003", StatusDown, 9, 999),
	}, source)

	m := findMember(t, cl, nid(3, 2))
	require.Equal(t, StatusUp, m.Status)
	require.Equal(t, uint32(4), m.Version)
}

func TestApplyState_ObserverEvidenceUnioned(t *testing.T) {
	cl := newTestCluster(t)
	source := nid(9, 1)

	peer := newMember(nid(2, 1), "127.0.0.1:1002", StatusUp, 1, 5)
	other := newMember(nid(9, 1), "127.0.0.1:1009", StatusUp, 1, 1)

	cl.ApplyState([]Member{peer, other}, source)

	// A second copy of the same record observed by another node.
	peer2 := peer.Clone()
	peer2.ObservedBy = set.New(nid(9, 1))

	cl.ApplyState([]Member{peer2}, source)

	m := findMember(t, cl, nid(2, 1))
	require.True(t, m.ObservedBy.Has(nid(2, 1)))
	require.True(t, m.ObservedBy.Has(nid(9, 1)))
}

func TestApplyState_SelfObserverAddedOnHeartbeatIncrease(t *testing.T) {
	cl := newTestCluster(t)
	source := nid(9, 1)

	cl.ApplyState([]Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusUp, 1, 5),
	}, source)

	cl.ApplyState([]Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusUp, 1, 6),
	}, source)

	m := findMember(t, cl, nid(2, 1))
	require.True(t, m.ObservedBy.Has(cl.SelfID()))
}

func TestApplyState_UnknownObserversPruned(t *testing.T) {
	cl := newTestCluster(t)
	source := nid(9, 1)

	peer := newMember(nid(2, 1), "127.0.0.1:1002", StatusUp, 1, 5)
	peer.ObservedBy.Add(nid(404, 1)) // not in the member map

	cl.ApplyState([]Member{peer}, source)

	m := findMember(t, cl, nid(2, 1))
	require.False(t, m.ObservedBy.Has(nid(404, 1)))
	require.True(t, m.ObservedBy.Has(nid(2, 1)))
}

func TestApplyState_SelfCollisionDropped(t *testing.T) {
	cl := newTestCluster(t)
	source := nid(9, 1)

	// Same unique id as the local node but a higher generation.
	impostor := newMember(nid(1, 2), "127.0.0.1:6666", StatusUp, 1, 1)

	cl.ApplyState([]Member{impostor}, source)

	self := cl.Self()
	require.Equal(t, nid(1, 1), self.ID)
	require.Equal(t, "127.0.0.1:1001", self.Addr)
}

func TestApplyState_SelfPromotedAfterFirstExchange(t *testing.T) {
	cl := newTestCluster(t)

	require.Equal(t, StatusJoining, cl.Self().Status)

	cl.ApplyState([]Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusUp, 1, 1),
	}, nid(2, 1))

	self := cl.Self()
	require.Equal(t, StatusUp, self.Status)
	require.Equal(t, uint32(2), self.Version)
}

func TestApplyState_LocalUpdateKeepsSelfJoining(t *testing.T) {
	cl := newTestCluster(t)

	cl.ApplyState([]Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusUp, 1, 1),
	}, NodeID{})

	require.Equal(t, StatusJoining, cl.Self().Status)
}

func TestApplyState_InvalidRecordsSkipped(t *testing.T) {
	cl := newTestCluster(t)
	source := nid(9, 1)

	cl.ApplyState([]Member{
		{ID: NodeID{}, Status: StatusUp},
		{ID: nid(5, 1), Status: Status(42)},
	}, source)

	require.Len(t, cl.Members(), 1) // only self
}

func TestApplyState_TombstoneRejectsStaleCopy(t *testing.T) {
	cl := newTestCluster(t)
	source := nid(9, 1)

	cl.ApplyState([]Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusRemoved, 6, 1),
	}, source)

	// Let the grace period pass and collect the entry.
	cl.now = func() time.Time {
		return time.Now().Add(cl.conf.RemovalGrace + time.Second)
	}
	cl.collectGarbage()

	_, ok := cl.Member(nid(2, 1))
	require.False(t, ok)

	// A stale copy of the collected record must not resurrect it.
	cl.ApplyState([]Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusRemoved, 6, 1),
	}, source)

	_, ok = cl.Member(nid(2, 1))
	require.False(t, ok)

	// A new incarnation of the same node is accepted.
	cl.ApplyState([]Member{
		newMember(nid(2, 2), "127.0.0.1:1002", StatusJoining, 1, 0),
	}, source)

	_, ok = cl.Member(nid(2, 2))
	require.True(t, ok)
}

type recordKey struct {
	id        NodeID
	status    Status
	version   uint32
	heartbeat uint64
}

func recordKeys(members []Member) []recordKey {
	keys := make([]recordKey, 0, len(members))
	for _, m := range members {
		keys = append(keys, recordKey{
			id:        m.ID,
			status:    m.Status,
			version:   m.Version,
			heartbeat: m.Heartbeat,
		})
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].id.UniqueID != keys[j].id.UniqueID {
			return keys[i].id.UniqueID < keys[j].id.UniqueID
		}
		return keys[i].id.Generation < keys[j].id.Generation
	})

	return keys
}

func randomMembers(rnd *rand.Rand, n int) []Member {
	members := make([]Member, 0, n)

	for i := 0; i < n; i++ {
		id := nid(uint64(rnd.Intn(5)+2), uint64(rnd.Intn(3)+1))
		members = append(members, newMember(
			id,
			"127.0.0.1:2000",
			Status(rnd.Intn(5)+1),
			uint32(rnd.Intn(6)),
			uint64(rnd.Intn(100)),
		))
	}

	return members
}

// The merge must converge to the same records no matter in which order or
// how many times the same views are applied. Observer sets are excluded:
// they are monotone evidence, not part of the convergence order.
func TestApplyState_OrderIndependent(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	source := nid(9, 1)

	for iter := 0; iter < 100; iter++ {
		viewA := randomMembers(rnd, 8)
		viewB := randomMembers(rnd, 8)

		cl1 := newTestCluster(t)
		cl1.ApplyState(viewA, source)
		cl1.ApplyState(viewB, source)

		cl2 := newTestCluster(t)
		cl2.ApplyState(viewB, source)
		cl2.ApplyState(viewA, source)

		require.Equal(t, recordKeys(cl1.Members()), recordKeys(cl2.Members()))
	}
}

func TestApplyState_Idempotent(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	source := nid(9, 1)

	for iter := 0; iter < 100; iter++ {
		view := randomMembers(rnd, 8)

		cl := newTestCluster(t)
		once := recordKeys(cl.ApplyState(view, source))
		twice := recordKeys(cl.ApplyState(view, source))

		require.Equal(t, once, twice)
	}
}

func TestApplyState_Associative(t *testing.T) {
	rnd := rand.New(rand.NewSource(1337))
	source := nid(9, 1)

	for iter := 0; iter < 100; iter++ {
		views := [][]Member{
			randomMembers(rnd, 5),
			randomMembers(rnd, 5),
			randomMembers(rnd, 5),
		}

		cl1 := newTestCluster(t)
		for _, v := range views {
			cl1.ApplyState(v, source)
		}

		// ((B + C) applied to a fresh view) merged into A's order.
		cl2 := newTestCluster(t)
		cl2.ApplyState(views[2], source)
		cl2.ApplyState(views[1], source)
		cl2.ApplyState(views[0], source)

		require.Equal(t, recordKeys(cl1.Members()), recordKeys(cl2.Members()))
	}
}

func TestStateHash_ConvergedViewsMatch(t *testing.T) {
	source := nid(9, 1)
	view := []Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusUp, 3, 17),
		newMember(nid(3, 1), "127.0.0.1:1003", StatusLeaving, 1, 4),
	}

	cl1 := newTestCluster(t)
	cl1.ApplyState(view, source)

	cl2 := newTestCluster(t)
	cl2.ApplyState(view, source)

	require.Equal(t, cl1.StateHash(), cl2.StateHash())

	cl2.ApplyState([]Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusUp, 4, 18),
	}, source)

	require.NotEqual(t, cl1.StateHash(), cl2.StateHash())
}
