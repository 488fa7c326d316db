package proto_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/plenum-go/plenum/membership/proto"
)

func TestPartialClusterView_Roundtrip(t *testing.T) {
	view := &proto.PartialClusterView{
		ThisNodeID: &proto.NodeID{UniqueID: 7, Generation: 2},
		Members: []*proto.PartialClusterViewEntry{
			{
				NodeID: &proto.NodeID{UniqueID: 1, Generation: 1},
				Member: &proto.MemberView{
					ID:             &proto.NodeID{UniqueID: 1, Generation: 1},
					AdvertisedAddr: "127.0.0.1:1001",
					State: &proto.MemberViewState{
						NodeStatus: 2,
						Version:    3,
						Heartbeat:  100,
						ObservedBy: []*proto.NodeID{
							{UniqueID: 1, Generation: 1},
							{UniqueID: 7, Generation: 2},
						},
					},
				},
			},
			{
				NodeID: &proto.NodeID{UniqueID: 2, Generation: 1},
				Member: &proto.MemberView{
					ID:             &proto.NodeID{UniqueID: 2, Generation: 1},
					AdvertisedAddr: "127.0.0.1:1002",
					State:          &proto.MemberViewState{NodeStatus: 4},
				},
			},
		},
	}

	data, err := view.MarshalWire()
	require.NoError(t, err)

	decoded := new(proto.PartialClusterView)
	require.NoError(t, decoded.UnmarshalWire(data))
	require.Equal(t, view, decoded)
}

func TestPartialClusterView_Empty(t *testing.T) {
	view := new(proto.PartialClusterView)

	data, err := view.MarshalWire()
	require.NoError(t, err)
	require.Empty(t, data)

	decoded := new(proto.PartialClusterView)
	require.NoError(t, decoded.UnmarshalWire(data))
	require.Nil(t, decoded.ThisNodeID)
	require.Empty(t, decoded.Members)
}

func TestHeartbeatMessage_Roundtrip(t *testing.T) {
	msg := &proto.HeartbeatMessage{
		Entries: []*proto.HeartbeatMessageEntry{
			{NodeID: &proto.NodeID{UniqueID: 1, Generation: 1}, Heartbeat: 42},
			{NodeID: &proto.NodeID{UniqueID: 2, Generation: 3}},
		},
	}

	data, err := msg.MarshalWire()
	require.NoError(t, err)

	decoded := new(proto.HeartbeatMessage)
	require.NoError(t, decoded.UnmarshalWire(data))
	require.Equal(t, msg, decoded)
}

// Fields added by a newer peer must be skipped, not rejected.
func TestUnmarshal_UnknownFieldsSkipped(t *testing.T) {
	view := &proto.PartialClusterView{
		ThisNodeID: &proto.NodeID{UniqueID: 7, Generation: 1},
	}

	data, err := view.MarshalWire()
	require.NoError(t, err)

	data = protowire.AppendTag(data, 15, protowire.VarintType)
	data = protowire.AppendVarint(data, 12345)
	data = protowire.AppendTag(data, 16, protowire.BytesType)
	data = protowire.AppendBytes(data, []byte("future"))

	decoded := new(proto.PartialClusterView)
	require.NoError(t, decoded.UnmarshalWire(data))
	require.Equal(t, view.ThisNodeID, decoded.ThisNodeID)
}

func TestUnmarshal_Truncated(t *testing.T) {
	view := &proto.PartialClusterView{
		ThisNodeID: &proto.NodeID{UniqueID: 7, Generation: 1},
		Members: []*proto.PartialClusterViewEntry{
			{NodeID: &proto.NodeID{UniqueID: 1, Generation: 1}},
		},
	}

	data, err := view.MarshalWire()
	require.NoError(t, err)

	decoded := new(proto.PartialClusterView)
	require.Error(t, decoded.UnmarshalWire(data[:len(data)-1]))
}
