package membership

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plenum-go/plenum/membership/proto"
)

func TestPickDestinations_SeedsFirst(t *testing.T) {
	conf := DefaultConfig()
	conf.NodeID = nid(1, 1)
	conf.AdvertisedAddr = "127.0.0.1:1001"
	conf.Detector = newStubDetector()
	conf.QuorumFraction = 0
	conf.Seeds = []string{"127.0.0.1:1002", "127.0.0.1:1003"}
	conf.FanOut = 3

	cl, err := NewCluster(conf)
	require.NoError(t, err)

	dests := cl.pickDestinations()
	require.Len(t, dests, 2)

	for _, d := range dests {
		require.True(t, d.id.IsZero())
		require.False(t, d.heartbeatOnly)
	}
}

func TestPickDestinations_SeedRetiredOnceKnown(t *testing.T) {
	conf := DefaultConfig()
	conf.NodeID = nid(1, 1)
	conf.AdvertisedAddr = "127.0.0.1:1001"
	conf.Detector = newStubDetector()
	conf.QuorumFraction = 0
	conf.Seeds = []string{"127.0.0.1:1002"}

	cl, err := NewCluster(conf)
	require.NoError(t, err)

	cl.ApplyState([]Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusUp, 1, 1),
	}, nid(2, 1))

	dests := cl.pickDestinations()
	require.Len(t, dests, 1)
	require.Equal(t, nid(2, 1), dests[0].id)
}

func TestPickDestinations_SkipsUnreachable(t *testing.T) {
	cl := newTestCluster(t)
	source := nid(9, 1)

	cl.ApplyState([]Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusDown, 1, 1),
		newMember(nid(3, 1), "127.0.0.1:1003", StatusUp, 1, 1),
	}, source)

	dests := cl.pickDestinations()
	require.Len(t, dests, 1)
	require.Equal(t, nid(3, 1), dests[0].id)
}

func TestPickDestinations_HeartbeatOnlyWhenCaughtUp(t *testing.T) {
	cl := newTestCluster(t)
	peer := nid(2, 1)

	cl.ApplyState([]Member{
		newMember(peer, "127.0.0.1:1002", StatusUp, 1, 1),
	}, peer)

	// Record the peer as having seen the full local view.
	cl.mut.Lock()
	cl.convergence.Record(peer, cl.versionVectorLocked())
	cl.mut.Unlock()

	dests := cl.pickDestinations()
	require.Len(t, dests, 1)
	require.True(t, dests[0].heartbeatOnly)
}

func TestRound_FailureLeavesRecordUntouched(t *testing.T) {
	cl := newTestCluster(t)
	source := nid(9, 1)

	cl.ApplyState([]Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusUp, 2, 7),
		newMember(nid(3, 1), "127.0.0.1:1003", StatusUp, 1, 1),
	}, source)

	peer3 := nid(3, 1)

	cl.transport = &mockTransport{
		exchangeViews: func(addr string, view *proto.PartialClusterView) (*proto.PartialClusterView, error) {
			if addr == "127.0.0.1:1002" {
				return nil, ErrPeerUnreachable
			}

			return &proto.PartialClusterView{
				ThisNodeID: toProtoNodeID(peer3),
				Members: []*proto.PartialClusterViewEntry{
					toProtoMember(newMember(peer3, "127.0.0.1:1003", StatusUp, 1, 2)),
				},
			}, nil
		},
	}
	cl.conf.FanOut = 2

	cl.round(context.Background())

	// The unreachable peer's record is exactly as it was.
	m := findMember(t, cl, nid(2, 1))
	require.Equal(t, StatusUp, m.Status)
	require.Equal(t, uint32(2), m.Version)
	require.Equal(t, uint64(7), m.Heartbeat)

	// The reply from the healthy peer was merged.
	m = findMember(t, cl, peer3)
	require.Equal(t, uint64(2), m.Heartbeat)

	// The failed peer is selected again on the next round.
	tr := &mockTransport{
		exchangeViews: func(addr string, view *proto.PartialClusterView) (*proto.PartialClusterView, error) {
			return nil, errors.New("boom")
		},
	}
	cl.transport = tr
	cl.round(context.Background())

	require.Contains(t, tr.calledViews(), "127.0.0.1:1002")
}

func TestRound_MalformedReplyIgnored(t *testing.T) {
	cl := newTestCluster(t)
	source := nid(2, 1)

	cl.ApplyState([]Member{
		newMember(nid(2, 1), "127.0.0.1:1002", StatusUp, 2, 7),
	}, source)

	cl.transport = &mockTransport{
		exchangeViews: func(addr string, view *proto.PartialClusterView) (*proto.PartialClusterView, error) {
			return &proto.PartialClusterView{}, nil // missing sender id
		},
	}

	cl.round(context.Background())

	m := findMember(t, cl, nid(2, 1))
	require.Equal(t, uint64(7), m.Heartbeat)
}
