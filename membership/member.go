package membership

import (
	"encoding/binary"
	"fmt"

	"github.com/twmb/murmur3"

	"github.com/plenum-go/plenum/internal/set"
)

// NodeID identifies a single incarnation of a cluster node. Two IDs refer to
// the same logical process only when both fields match: the same UniqueID
// with a higher Generation is a restarted process and supersedes the records
// of every lower generation.
type NodeID struct {
	UniqueID   uint64
	Generation uint64
}

func (id NodeID) String() string {
	return fmt.Sprintf("%x.%d", id.UniqueID, id.Generation)
}

func (id NodeID) IsZero() bool {
	return id.UniqueID == 0 && id.Generation == 0
}

// Member is a single entry of the cluster view: everything this node knows
// about one cluster member, own record included.
type Member struct {
	ID   NodeID
	Addr string

	// Status of the member. Only moves forward in the convergence order.
	Status Status

	// Version is a logical clock owned by the member itself: it is bumped
	// by the owner on status transitions it initiates. Other nodes copy it
	// during merges but never invent a higher value.
	Version uint32

	// Heartbeat is a liveness counter incremented by the owning member on
	// its periodic tick. Peers only propagate the highest value seen.
	Heartbeat uint64

	// ObservedBy is the set of nodes that have received this record with
	// its current heartbeat, used as decentralized liveness evidence.
	ObservedBy set.Set[NodeID]
}

// IsReachable returns true if the member is expected to answer exchanges.
func (m *Member) IsReachable() bool {
	return m.Status == StatusJoining || m.Status == StatusUp || m.Status == StatusLeaving
}

// Clone returns a deep copy of the member record.
func (m Member) Clone() Member {
	if m.ObservedBy != nil {
		m.ObservedBy = m.ObservedBy.Clone()
	}

	return m
}

// Hash64 returns a hash of the merge-relevant fields of the record. Hashes
// of all members are XORed into a cluster state hash, which two nodes can
// compare cheaply to decide whether their views have converged.
func (m *Member) Hash64() uint64 {
	var buf [28]byte

	binary.BigEndian.PutUint64(buf[0:8], m.ID.UniqueID)
	binary.BigEndian.PutUint64(buf[8:16], m.ID.Generation)
	binary.BigEndian.PutUint32(buf[16:20], uint32(m.Status))
	binary.BigEndian.PutUint32(buf[20:24], m.Version)
	binary.BigEndian.PutUint32(buf[24:28], uint32(m.Heartbeat))

	return murmur3.Sum64(buf[:])
}
