package membership

import (
	"context"
	"errors"
	"time"

	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/plenum-go/plenum/internal/generic"
	"github.com/plenum-go/plenum/membership/proto"
)

// destination is a single exchange target for a gossip round. Seeds that
// have no member record behind them yet come with a zero id.
type destination struct {
	addr          string
	id            NodeID
	heartbeatOnly bool
}

func (cl *Cluster) startScheduler() {
	cl.wg.Add(2)

	go func() {
		defer cl.wg.Done()
		cl.gossipLoop()
	}()

	go func() {
		defer cl.wg.Done()
		cl.heartbeatLoop()
	}()
}

func (cl *Cluster) gossipLoop() {
	ticker := time.NewTicker(cl.conf.GossipInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cl.stop:
			return
		case <-ticker.C:
			cl.round(context.Background())
		}
	}
}

func (cl *Cluster) heartbeatLoop() {
	ticker := time.NewTicker(cl.conf.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cl.stop:
			return
		case <-ticker.C:
			cl.tickHeartbeat()
		}
	}
}

// round runs a single gossip round: pick up to FanOut destinations and
// exchange views with them concurrently. Peers known to hold everything we
// hold get a cheap heartbeat-only exchange instead of the full view.
// Failures are counted and logged, never retried within the round.
func (cl *Cluster) round(ctx context.Context) {
	cl.metrics.Rounds.Inc()

	dests := cl.pickDestinations()
	if len(dests) == 0 {
		return
	}

	var (
		view       = cl.snapshotProto()
		heartbeats = cl.heartbeatProto()
	)

	grp, ctx := errgroup.WithContext(ctx)

	for _, dest := range dests {
		dest := dest

		grp.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, cl.conf.ExchangeTimeout)
			defer cancel()

			if dest.heartbeatOnly {
				cl.exchangeHeartbeats(ctx, dest, heartbeats)
			} else {
				cl.exchangeViews(ctx, dest, view)
			}

			return nil
		})
	}

	_ = grp.Wait()
}

func (cl *Cluster) exchangeViews(ctx context.Context, dest destination, view *proto.PartialClusterView) {
	reply, err := cl.transport.ExchangeClusterViews(ctx, dest.addr, view)
	if err != nil {
		cl.noteExchangeFailure(dest, err)
		return
	}

	members, source, err := membersFromProto(reply)
	if err != nil {
		cl.metrics.ExchangeFailures.WithLabelValues("malformed").Inc()
		level.Warn(cl.logger).Log("msg", "malformed view in reply", "addr", dest.addr, "err", err)
		return
	}

	cl.ApplyState(members, source)
	cl.metrics.Exchanges.WithLabelValues("outbound", "view").Inc()
}

func (cl *Cluster) exchangeHeartbeats(ctx context.Context, dest destination, msg *proto.HeartbeatMessage) {
	reply, err := cl.transport.ExchangeHeartbeats(ctx, dest.addr, msg)
	if err != nil {
		cl.noteExchangeFailure(dest, err)
		return
	}

	cl.applyHeartbeats(reply, dest.id)
	cl.metrics.Exchanges.WithLabelValues("outbound", "heartbeat").Inc()
}

func (cl *Cluster) noteExchangeFailure(dest destination, err error) {
	reason := "transport"
	if errors.Is(err, ErrPeerUnreachable) || errors.Is(err, context.DeadlineExceeded) {
		reason = "unreachable"
	}

	cl.metrics.ExchangeFailures.WithLabelValues(reason).Inc()
	level.Debug(cl.logger).Log("msg", "exchange failed", "addr", dest.addr, "err", err)
}

// pickDestinations selects the targets for one round. Seed addresses with
// no member behind them go first so that bootstrap completes as fast as
// possible; after that, peers that have not demonstrated a caught-up view
// are preferred over converged ones, which only receive heartbeats.
func (cl *Cluster) pickDestinations() []destination {
	cl.mut.RLock()
	defer cl.mut.RUnlock()

	fanOut := cl.conf.FanOut
	if fanOut <= 0 {
		fanOut = 1
	}

	dests := make([]destination, 0, fanOut)

	seeds := append([]string(nil), cl.seeds...)
	generic.Shuffle(seeds)

	for _, addr := range seeds {
		if len(dests) == fanOut {
			break
		}

		dests = append(dests, destination{addr: addr})
	}

	var (
		localVV   = cl.versionVectorLocked()
		lagging   []destination
		converged []destination
	)

	for _, m := range cl.members {
		if m.ID == cl.self || !m.IsReachable() {
			continue
		}

		dest := destination{addr: m.Addr, id: m.ID}

		if cl.convergence.CaughtUp(m.ID, localVV) {
			dest.heartbeatOnly = true
			converged = append(converged, dest)
		} else {
			lagging = append(lagging, dest)
		}
	}

	generic.Shuffle(lagging)
	generic.Shuffle(converged)

	for _, dest := range append(lagging, converged...) {
		if len(dests) == fanOut {
			break
		}

		dests = append(dests, dest)
	}

	return dests
}
