package proto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

func consumeMessage(data []byte, field func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}

		data = data[n:]

		n, err := field(num, typ, data)
		if err != nil {
			return err
		}

		if n < 0 {
			return protowire.ParseError(n)
		}

		data = data[n:]
	}

	return nil
}

func consumeVarintField(num protowire.Number, typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("field %d: unexpected wire type %d", num, typ)
	}

	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}

	return v, n, nil
}

func consumeBytesField(num protowire.Number, typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("field %d: unexpected wire type %d", num, typ)
	}

	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}

	return v, n, nil
}

func (id *NodeID) unmarshalWire(data []byte) error {
	return consumeMessage(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarintField(num, typ, b)
			if err != nil {
				return 0, err
			}
			id.UniqueID = v
			return n, nil
		case 2:
			v, n, err := consumeVarintField(num, typ, b)
			if err != nil {
				return 0, err
			}
			id.Generation = v
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
}

func (s *MemberViewState) unmarshalWire(data []byte) error {
	return consumeMessage(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarintField(num, typ, b)
			if err != nil {
				return 0, err
			}
			s.NodeStatus = uint32(v)
			return n, nil
		case 2:
			v, n, err := consumeVarintField(num, typ, b)
			if err != nil {
				return 0, err
			}
			s.Version = uint32(v)
			return n, nil
		case 3:
			v, n, err := consumeVarintField(num, typ, b)
			if err != nil {
				return 0, err
			}
			s.Heartbeat = v
			return n, nil
		case 4:
			v, n, err := consumeBytesField(num, typ, b)
			if err != nil {
				return 0, err
			}

			id := new(NodeID)
			if err := id.unmarshalWire(v); err != nil {
				return 0, err
			}

			s.ObservedBy = append(s.ObservedBy, id)
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
}

func (m *MemberView) unmarshalWire(data []byte) error {
	return consumeMessage(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytesField(num, typ, b)
			if err != nil {
				return 0, err
			}

			m.ID = new(NodeID)
			if err := m.ID.unmarshalWire(v); err != nil {
				return 0, err
			}

			return n, nil
		case 2:
			v, n, err := consumeBytesField(num, typ, b)
			if err != nil {
				return 0, err
			}
			m.AdvertisedAddr = string(v)
			return n, nil
		case 3:
			v, n, err := consumeBytesField(num, typ, b)
			if err != nil {
				return 0, err
			}

			m.State = new(MemberViewState)
			if err := m.State.unmarshalWire(v); err != nil {
				return 0, err
			}

			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
}

func (e *PartialClusterViewEntry) unmarshalWire(data []byte) error {
	return consumeMessage(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytesField(num, typ, b)
			if err != nil {
				return 0, err
			}

			e.NodeID = new(NodeID)
			if err := e.NodeID.unmarshalWire(v); err != nil {
				return 0, err
			}

			return n, nil
		case 2:
			v, n, err := consumeBytesField(num, typ, b)
			if err != nil {
				return 0, err
			}

			e.Member = new(MemberView)
			if err := e.Member.unmarshalWire(v); err != nil {
				return 0, err
			}

			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
}

func (v *PartialClusterView) UnmarshalWire(data []byte) error {
	return consumeMessage(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			fv, n, err := consumeBytesField(num, typ, b)
			if err != nil {
				return 0, err
			}

			v.ThisNodeID = new(NodeID)
			if err := v.ThisNodeID.unmarshalWire(fv); err != nil {
				return 0, err
			}

			return n, nil
		case 2:
			fv, n, err := consumeBytesField(num, typ, b)
			if err != nil {
				return 0, err
			}

			entry := new(PartialClusterViewEntry)
			if err := entry.unmarshalWire(fv); err != nil {
				return 0, err
			}

			v.Members = append(v.Members, entry)
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
}

func (e *HeartbeatMessageEntry) unmarshalWire(data []byte) error {
	return consumeMessage(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytesField(num, typ, b)
			if err != nil {
				return 0, err
			}

			e.NodeID = new(NodeID)
			if err := e.NodeID.unmarshalWire(v); err != nil {
				return 0, err
			}

			return n, nil
		case 2:
			v, n, err := consumeVarintField(num, typ, b)
			if err != nil {
				return 0, err
			}
			e.Heartbeat = v
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
}

func (m *HeartbeatMessage) UnmarshalWire(data []byte) error {
	return consumeMessage(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytesField(num, typ, b)
			if err != nil {
				return 0, err
			}

			entry := new(HeartbeatMessageEntry)
			if err := entry.unmarshalWire(v); err != nil {
				return 0, err
			}

			m.Entries = append(m.Entries, entry)
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
}
