package membership

import (
	"fmt"

	"github.com/plenum-go/plenum/internal/set"
	"github.com/plenum-go/plenum/membership/proto"
)

func toProtoNodeID(id NodeID) *proto.NodeID {
	return &proto.NodeID{
		UniqueID:   id.UniqueID,
		Generation: id.Generation,
	}
}

func fromProtoNodeID(id *proto.NodeID) NodeID {
	if id == nil {
		return NodeID{}
	}

	return NodeID{
		UniqueID:   id.UniqueID,
		Generation: id.Generation,
	}
}

func toProtoMember(m Member) *proto.PartialClusterViewEntry {
	observedBy := make([]*proto.NodeID, 0, len(m.ObservedBy))
	for id := range m.ObservedBy {
		observedBy = append(observedBy, toProtoNodeID(id))
	}

	return &proto.PartialClusterViewEntry{
		NodeID: toProtoNodeID(m.ID),
		Member: &proto.MemberView{
			ID:             toProtoNodeID(m.ID),
			AdvertisedAddr: m.Addr,
			State: &proto.MemberViewState{
				NodeStatus: uint32(m.Status),
				Version:    m.Version,
				Heartbeat:  m.Heartbeat,
				ObservedBy: observedBy,
			},
		},
	}
}

func fromProtoMember(entry *proto.PartialClusterViewEntry) (Member, error) {
	if entry == nil || entry.Member == nil || entry.Member.State == nil {
		return Member{}, fmt.Errorf("%w: missing member state", ErrMalformedView)
	}

	id := fromProtoNodeID(entry.Member.ID)
	if id.IsZero() {
		return Member{}, fmt.Errorf("%w: zero node id", ErrMalformedView)
	}

	if key := fromProtoNodeID(entry.NodeID); !key.IsZero() && key != id {
		return Member{}, fmt.Errorf("%w: entry key %s does not match member id %s", ErrMalformedView, key, id)
	}

	if entry.Member.AdvertisedAddr == "" {
		return Member{}, fmt.Errorf("%w: empty advertised address for %s", ErrMalformedView, id)
	}

	state := entry.Member.State

	status := Status(state.NodeStatus)
	if !status.IsValid() {
		return Member{}, fmt.Errorf("%w: unknown status %d for %s", ErrMalformedView, state.NodeStatus, id)
	}

	observedBy := set.New[NodeID]()
	for _, o := range state.ObservedBy {
		if oid := fromProtoNodeID(o); !oid.IsZero() {
			observedBy.Add(oid)
		}
	}

	return Member{
		ID:         id,
		Addr:       entry.Member.AdvertisedAddr,
		Status:     status,
		Version:    state.Version,
		Heartbeat:  state.Heartbeat,
		ObservedBy: observedBy,
	}, nil
}

// membersFromProto validates and converts a received view. A single
// malformed entry rejects the whole message: a peer that cannot encode one
// record correctly is not trusted to have encoded the rest.
func membersFromProto(view *proto.PartialClusterView) ([]Member, NodeID, error) {
	if view == nil {
		return nil, NodeID{}, fmt.Errorf("%w: empty view", ErrMalformedView)
	}

	source := fromProtoNodeID(view.ThisNodeID)
	if source.IsZero() {
		return nil, NodeID{}, fmt.Errorf("%w: missing sender id", ErrMalformedView)
	}

	members := make([]Member, 0, len(view.Members))

	for _, entry := range view.Members {
		m, err := fromProtoMember(entry)
		if err != nil {
			return nil, NodeID{}, err
		}

		members = append(members, m)
	}

	return members, source, nil
}

// snapshotProto captures the full local view for an outgoing exchange.
func (cl *Cluster) snapshotProto() *proto.PartialClusterView {
	cl.mut.RLock()
	defer cl.mut.RUnlock()

	view := &proto.PartialClusterView{
		ThisNodeID: toProtoNodeID(cl.self),
		Members:    make([]*proto.PartialClusterViewEntry, 0, len(cl.members)),
	}

	for _, m := range cl.members {
		view.Members = append(view.Members, toProtoMember(m))
	}

	return view
}

// heartbeatProto captures only the heartbeat values, used between converged
// peers instead of the full view.
func (cl *Cluster) heartbeatProto() *proto.HeartbeatMessage {
	cl.mut.RLock()
	defer cl.mut.RUnlock()

	msg := &proto.HeartbeatMessage{
		Entries: make([]*proto.HeartbeatMessageEntry, 0, len(cl.members)),
	}

	for _, m := range cl.members {
		msg.Entries = append(msg.Entries, &proto.HeartbeatMessageEntry{
			NodeID:    toProtoNodeID(m.ID),
			Heartbeat: m.Heartbeat,
		})
	}

	return msg
}
