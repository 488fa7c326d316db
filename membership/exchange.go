package membership

import (
	"context"

	"github.com/go-kit/log/level"

	"github.com/plenum-go/plenum/membership/proto"
)

// ExchangeClusterViews handles an inbound view exchange: the sender's view
// is merged into the local one and the full post-merge view is returned.
// Both sides end up with the union of what they knew.
func (cl *Cluster) ExchangeClusterViews(ctx context.Context, view *proto.PartialClusterView) (*proto.PartialClusterView, error) {
	members, source, err := membersFromProto(view)
	if err != nil {
		cl.metrics.ExchangeFailures.WithLabelValues("malformed").Inc()
		level.Warn(cl.logger).Log("msg", "malformed inbound view", "err", err)

		return nil, err
	}

	cl.ApplyState(members, source)
	cl.metrics.Exchanges.WithLabelValues("inbound", "view").Inc()

	return cl.snapshotProto(), nil
}

// ExchangeHeartbeats handles an inbound heartbeat-only exchange, used by
// peers whose views have converged with ours. Heartbeats for unknown
// members are ignored; a peer that knows members we do not will fall back
// to a full view exchange on its own.
func (cl *Cluster) ExchangeHeartbeats(ctx context.Context, msg *proto.HeartbeatMessage) (*proto.HeartbeatMessage, error) {
	if msg == nil {
		return nil, ErrMalformedView
	}

	cl.applyHeartbeats(msg, NodeID{})
	cl.metrics.Exchanges.WithLabelValues("inbound", "heartbeat").Inc()

	return cl.heartbeatProto(), nil
}

// applyHeartbeats folds received heartbeat values into the view. Only
// increases for already-known incarnations carry information: they update
// the member record, extend its observed-by evidence and feed the failure
// detector, exactly as a full merge would.
func (cl *Cluster) applyHeartbeats(msg *proto.HeartbeatMessage, source NodeID) {
	if msg == nil {
		return
	}

	now := cl.now()

	cl.mut.Lock()
	defer cl.mut.Unlock()

	for _, entry := range msg.Entries {
		id := fromProtoNodeID(entry.NodeID)
		if id.IsZero() {
			continue
		}

		curr, ok := cl.members[id.UniqueID]
		if !ok || curr.ID != id || id == cl.self {
			continue
		}

		if entry.Heartbeat <= curr.Heartbeat {
			continue
		}

		m := curr.Clone()
		m.Heartbeat = entry.Heartbeat
		m.ObservedBy.Add(cl.self)

		if !source.IsZero() {
			m.ObservedBy.Add(source)
		}

		cl.members[id.UniqueID] = m
		cl.detector.Observe(id, entry.Heartbeat, now)
	}

	cl.refreshStateLocked()
	cl.evaluateSuspectsLocked(now)
}
