package membership

import (
	"context"
	"time"

	"github.com/plenum-go/plenum/membership/proto"
)

// Transport moves serialized view exchanges between two processes. The
// cluster never retries within a round: a failed exchange is reported as
// ErrPeerUnreachable and the peer is simply re-selected on a later round.
type Transport interface {
	ExchangeClusterViews(ctx context.Context, addr string, view *proto.PartialClusterView) (*proto.PartialClusterView, error)
	ExchangeHeartbeats(ctx context.Context, addr string, msg *proto.HeartbeatMessage) (*proto.HeartbeatMessage, error)
}

// FailureDetector estimates per-member liveness from the heartbeat values
// observed during merges. Implementations must tolerate out-of-order and
// repeated observations: only heartbeat increases carry evidence.
type FailureDetector interface {
	Observe(id NodeID, heartbeat uint64, at time.Time)
	Suspect(id NodeID, at time.Time) bool
	Forget(id NodeID)
}
