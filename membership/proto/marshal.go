package proto

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Zero-valued fields are omitted, like in proto3. Nested messages are only
// written when the pointer is non-nil, so a decoder can tell a missing
// submessage from an empty one.

func (id *NodeID) appendWire(b []byte) []byte {
	if id.UniqueID != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, id.UniqueID)
	}

	if id.Generation != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, id.Generation)
	}

	return b
}

func (s *MemberViewState) appendWire(b []byte) []byte {
	if s.NodeStatus != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(s.NodeStatus))
	}

	if s.Version != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(s.Version))
	}

	if s.Heartbeat != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, s.Heartbeat)
	}

	for _, id := range s.ObservedBy {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, id.appendWire(nil))
	}

	return b
}

func (m *MemberView) appendWire(b []byte) []byte {
	if m.ID != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, m.ID.appendWire(nil))
	}

	if len(m.AdvertisedAddr) > 0 {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, m.AdvertisedAddr)
	}

	if m.State != nil {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, m.State.appendWire(nil))
	}

	return b
}

func (e *PartialClusterViewEntry) appendWire(b []byte) []byte {
	if e.NodeID != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, e.NodeID.appendWire(nil))
	}

	if e.Member != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, e.Member.appendWire(nil))
	}

	return b
}

func (v *PartialClusterView) appendWire(b []byte) []byte {
	if v.ThisNodeID != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, v.ThisNodeID.appendWire(nil))
	}

	for _, entry := range v.Members {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, entry.appendWire(nil))
	}

	return b
}

func (v *PartialClusterView) MarshalWire() ([]byte, error) {
	return v.appendWire(nil), nil
}

func (e *HeartbeatMessageEntry) appendWire(b []byte) []byte {
	if e.NodeID != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, e.NodeID.appendWire(nil))
	}

	if e.Heartbeat != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, e.Heartbeat)
	}

	return b
}

func (m *HeartbeatMessage) appendWire(b []byte) []byte {
	for _, entry := range m.Entries {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, entry.appendWire(nil))
	}

	return b
}

func (m *HeartbeatMessage) MarshalWire() ([]byte, error) {
	return m.appendWire(nil), nil
}
