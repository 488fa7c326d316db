// Package proto contains the wire form of the gossip exchange messages.
//
// The messages use standard protobuf wire encoding, but are marshaled by
// hand through protowire rather than generated code: the schema is small and
// fixed, and hand-rolled marshaling keeps the message structs free of
// generated-code internals. The bytes are compatible with the equivalent
// proto3 definitions:
//
//	message NodeId { uint64 unique_id = 1; uint64 generation = 2; }
//	message MemberView { NodeId id = 1; string advertised_addr = 2; MemberViewState state = 3; }
//	message MemberViewState { uint32 node_status = 1; uint32 version = 2; uint64 heartbeat = 3; repeated NodeId observed_by = 4; }
//	message PartialClusterViewEntry { NodeId node_id = 1; MemberView member = 2; }
//	message PartialClusterView { NodeId this_node_id = 1; repeated PartialClusterViewEntry members = 2; }
//	message HeartbeatMessageEntry { NodeId node_id = 1; uint64 heartbeat = 2; }
//	message HeartbeatMessage { repeated HeartbeatMessageEntry entries = 1; }
package proto

// Message is implemented by all wire messages in this package.
type Message interface {
	MarshalWire() ([]byte, error)
	UnmarshalWire(data []byte) error
}

type NodeID struct {
	UniqueID   uint64
	Generation uint64
}

type MemberViewState struct {
	NodeStatus uint32
	Version    uint32
	Heartbeat  uint64
	ObservedBy []*NodeID
}

type MemberView struct {
	ID             *NodeID
	AdvertisedAddr string
	State          *MemberViewState
}

type PartialClusterViewEntry struct {
	NodeID *NodeID
	Member *MemberView
}

type PartialClusterView struct {
	ThisNodeID *NodeID
	Members    []*PartialClusterViewEntry
}

type HeartbeatMessageEntry struct {
	NodeID    *NodeID
	Heartbeat uint64
}

type HeartbeatMessage struct {
	Entries []*HeartbeatMessageEntry
}

var (
	_ Message = (*PartialClusterView)(nil)
	_ Message = (*HeartbeatMessage)(nil)
)
