package membership_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plenum-go/plenum/internal/set"
	"github.com/plenum-go/plenum/membership"
)

func TestStatus_WorseThan(t *testing.T) {
	order := []membership.Status{
		membership.StatusJoining,
		membership.StatusUp,
		membership.StatusLeaving,
		membership.StatusDown,
		membership.StatusRemoved,
	}

	for i, s := range order {
		require.False(t, s.WorseThan(s))

		for _, earlier := range order[:i] {
			require.True(t, s.WorseThan(earlier))
			require.False(t, earlier.WorseThan(s))
		}
	}
}

func TestStatus_IsValid(t *testing.T) {
	require.True(t, membership.StatusJoining.IsValid())
	require.True(t, membership.StatusRemoved.IsValid())
	require.False(t, membership.Status(0).IsValid())
	require.False(t, membership.Status(6).IsValid())
}

func TestMember_Clone(t *testing.T) {
	id := membership.NodeID{UniqueID: 1, Generation: 1}
	observer := membership.NodeID{UniqueID: 2, Generation: 1}

	m := membership.Member{
		ID:         id,
		Addr:       "127.0.0.1:1001",
		Status:     membership.StatusUp,
		ObservedBy: set.New(id),
	}

	clone := m.Clone()
	clone.ObservedBy.Add(observer)

	require.False(t, m.ObservedBy.Has(observer))
	require.True(t, clone.ObservedBy.Has(observer))
}

func TestMember_Hash64(t *testing.T) {
	m := membership.Member{
		ID:      membership.NodeID{UniqueID: 1, Generation: 1},
		Status:  membership.StatusUp,
		Version: 3,
	}

	other := m
	require.Equal(t, m.Hash64(), other.Hash64())

	other.Version = 4
	require.NotEqual(t, m.Hash64(), other.Hash64())

	other = m
	other.Heartbeat = 1
	require.NotEqual(t, m.Hash64(), other.Hash64())
}

func TestGenerateID(t *testing.T) {
	id1, err := membership.GenerateID("127.0.0.1:1001", nil)
	require.NoError(t, err)
	require.False(t, id1.IsZero())
	require.NotZero(t, id1.Generation)

	// Same address still yields a distinct unique id.
	id2, err := membership.GenerateID("127.0.0.1:1001", nil)
	require.NoError(t, err)
	require.NotEqual(t, id1.UniqueID, id2.UniqueID)
}

func TestFileGenerationStore(t *testing.T) {
	path := t.TempDir() + "/generation"
	store := membership.NewFileGenerationStore(path)

	g1, err := store.Next()
	require.NoError(t, err)
	require.Equal(t, uint64(1), g1)

	// A later run continues where the previous one stopped.
	store = membership.NewFileGenerationStore(path)
	g2, err := store.Next()
	require.NoError(t, err)
	require.Equal(t, uint64(2), g2)
}

func TestVersionVector(t *testing.T) {
	a := membership.NodeID{UniqueID: 1, Generation: 1}
	b := membership.NodeID{UniqueID: 2, Generation: 1}

	vv := make(membership.VersionVector)
	vv.Observe(a, 3)
	vv.Observe(a, 2) // never lowers
	require.Equal(t, uint32(3), vv[a])

	other := make(membership.VersionVector)
	other.Observe(a, 1)
	other.Observe(b, 5)

	require.False(t, other.Covers(vv))

	other.Merge(vv)
	require.True(t, other.Covers(vv))
	require.Equal(t, uint32(3), other[a])
	require.Equal(t, uint32(5), other[b])

	clone := other.Clone()
	clone.Observe(b, 9)
	require.Equal(t, uint32(5), other[b])
}
