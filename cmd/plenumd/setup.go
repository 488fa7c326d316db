package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sort"
	"syscall"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc"

	"github.com/plenum-go/plenum/discovery"
	"github.com/plenum-go/plenum/membership"
	"github.com/plenum-go/plenum/transport"
)

func runServer(conf Config) error {
	logger := setupLogger(conf)

	id, err := setupNodeID(conf)
	if err != nil {
		return err
	}

	level.Info(logger).Log(
		"msg", "starting node",
		"id", id,
		"advertise_addr", conf.GRPC.AdvertiseAddr,
	)

	client := transport.NewClient()
	defer client.Close()

	etcd, deregister, err := setupEtcd(conf, logger)
	if err != nil {
		return err
	}

	seeds, err := resolveSeeds(conf, etcd)
	if err != nil {
		return err
	}

	cluster, err := setupCluster(conf, id, seeds, client, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	cluster.Metrics().Register(registry)

	grpcServer := grpc.NewServer()
	transport.RegisterGossipServer(grpcServer, cluster)

	listener, err := net.Listen("tcp", conf.GRPC.BindAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", conf.GRPC.BindAddr, err)
	}

	var group run.Group

	group.Add(func() error {
		level.Info(logger).Log("msg", "gossip server listening", "addr", conf.GRPC.BindAddr)
		return grpcServer.Serve(listener)
	}, func(error) {
		grpcServer.GracefulStop()
	})

	if conf.Admin.BindAddr != "" {
		addAdminServer(&group, conf, cluster, registry, logger)
	}

	addClusterActor(&group, conf, cluster, deregister, logger)
	addEventLogger(&group, cluster, logger)

	group.Add(run.SignalHandler(context.Background(), syscall.SIGINT, syscall.SIGTERM))

	err = group.Run()

	var sig run.SignalError
	if errors.As(err, &sig) {
		level.Info(logger).Log("msg", "received signal, shut down", "signal", sig.Signal)
		return nil
	}

	return err
}

func setupLogger(conf Config) kitlog.Logger {
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)

	switch conf.Log.Level {
	case "debug":
		logger = level.NewFilter(logger, level.AllowDebug())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	return logger
}

func setupNodeID(conf Config) (membership.NodeID, error) {
	var store membership.GenerationStore
	if conf.Cluster.GenerationFile != "" {
		store = membership.NewFileGenerationStore(conf.Cluster.GenerationFile)
	}

	return membership.GenerateID(conf.GRPC.AdvertiseAddr, store)
}

func setupCluster(
	conf Config,
	id membership.NodeID,
	seeds []string,
	client *transport.Client,
	logger kitlog.Logger,
) (*membership.Cluster, error) {
	mconf := membership.DefaultConfig()
	mconf.NodeID = id
	mconf.AdvertisedAddr = conf.GRPC.AdvertiseAddr
	mconf.Seeds = seeds
	mconf.Transport = client
	mconf.Logger = kitlog.With(logger, "component", "membership")

	if conf.Cluster.GossipInterval > 0 {
		mconf.GossipInterval = conf.Cluster.GossipInterval
	}
	if conf.Cluster.HeartbeatInterval > 0 {
		mconf.HeartbeatInterval = conf.Cluster.HeartbeatInterval
	}
	if conf.Cluster.ExchangeTimeout > 0 {
		mconf.ExchangeTimeout = conf.Cluster.ExchangeTimeout
	}
	if conf.Cluster.FanOut > 0 {
		mconf.FanOut = conf.Cluster.FanOut
	}
	if conf.Cluster.RemovalGrace > 0 {
		mconf.RemovalGrace = conf.Cluster.RemovalGrace
	}
	mconf.AutoDownAfter = conf.Cluster.AutoDownAfter

	return membership.NewCluster(mconf)
}

// setupEtcd connects to etcd and registers this node's address under the
// discovery prefix. It returns nil values when etcd discovery is not
// configured.
func setupEtcd(conf Config, logger kitlog.Logger) (*discovery.Etcd, func(context.Context) error, error) {
	if len(conf.Discovery.Etcd.Endpoints) == 0 {
		return nil, nil, nil
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   conf.Discovery.Etcd.Endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to etcd: %w", err)
	}

	etcd := discovery.NewEtcd(cli, conf.Discovery.Etcd.Prefix, logger)

	// The registration context stays alive for the whole process lifetime:
	// it also drives the background lease keepalive.
	revoke, err := etcd.Register(context.Background(), conf.GRPC.AdvertiseAddr, conf.Discovery.Etcd.TTL)
	if err != nil {
		cli.Close()
		return nil, nil, err
	}

	deregister := func(ctx context.Context) error {
		defer cli.Close()
		return revoke(ctx)
	}

	return etcd, deregister, nil
}

// resolveSeeds gathers the bootstrap addresses from the static join list
// and the configured discovery providers.
func resolveSeeds(conf Config, etcd *discovery.Etcd) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	providers := []discovery.Provider{
		discovery.NewStatic(conf.Cluster.Join...),
	}

	if conf.Discovery.DNS != "" {
		providers = append(providers, discovery.NewDNS(conf.Discovery.DNS))
	}

	if etcd != nil {
		providers = append(providers, etcd)
	}

	seen := make(map[string]struct{})
	seeds := make([]string, 0)

	for _, p := range providers {
		addrs, err := p.Peers(ctx)
		if err != nil {
			return nil, fmt.Errorf("discover peers: %w", err)
		}

		for _, addr := range addrs {
			if addr == conf.GRPC.AdvertiseAddr {
				continue
			}

			if _, ok := seen[addr]; !ok {
				seen[addr] = struct{}{}
				seeds = append(seeds, addr)
			}
		}
	}

	return seeds, nil
}

func addClusterActor(
	group *run.Group,
	conf Config,
	cluster *membership.Cluster,
	deregister func(context.Context) error,
	logger kitlog.Logger,
) {
	stop := make(chan struct{})

	group.Add(func() error {
		if err := cluster.Start(); err != nil {
			return err
		}

		<-stop
		return nil
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if deregister != nil {
			if err := deregister(ctx); err != nil {
				level.Warn(logger).Log("msg", "failed to deregister from discovery", "err", err)
			}
		}

		level.Info(logger).Log("msg", "leaving cluster")

		if err := cluster.Leave(ctx); err != nil {
			level.Warn(logger).Log("msg", "failed to leave gracefully", "err", err)
		}

		cluster.Shutdown()
		close(stop)
	})
}

// addEventLogger drains the membership event stream into the log. It doubles
// as the subscriber keeping the event channel from overflowing.
func addEventLogger(group *run.Group, cluster *membership.Cluster, logger kitlog.Logger) {
	group.Add(func() error {
		for ev := range cluster.Events() {
			level.Info(logger).Log(
				"msg", "membership changed",
				"id", ev.ID,
				"addr", ev.Addr,
				"old", ev.Old,
				"new", ev.New,
			)
		}

		return nil
	}, func(error) {
		// The channel closes on cluster shutdown.
	})
}

func addAdminServer(
	group *run.Group,
	conf Config,
	cluster *membership.Cluster,
	registry *prometheus.Registry,
	logger kitlog.Logger,
) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/members", membersHandler(cluster))

	server := &http.Server{
		Addr:    conf.Admin.BindAddr,
		Handler: mux,
	}

	group.Add(func() error {
		level.Info(logger).Log("msg", "admin server listening", "addr", conf.Admin.BindAddr)

		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			level.Warn(logger).Log("msg", "admin server shutdown", "err", err)
		}
	})
}

func membersHandler(cluster *membership.Cluster) http.HandlerFunc {
	type memberInfo struct {
		ID         string   `json:"id"`
		Addr       string   `json:"addr"`
		Status     string   `json:"status"`
		Version    uint32   `json:"version"`
		Heartbeat  uint64   `json:"heartbeat"`
		ObservedBy []string `json:"observed_by"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		members := cluster.Members()

		infos := make([]memberInfo, 0, len(members))
		for _, m := range members {
			observedBy := make([]string, 0, len(m.ObservedBy))
			for id := range m.ObservedBy {
				observedBy = append(observedBy, id.String())
			}
			sort.Strings(observedBy)

			infos = append(infos, memberInfo{
				ID:         m.ID.String(),
				Addr:       m.Addr,
				Status:     m.Status.String(),
				Version:    m.Version,
				Heartbeat:  m.Heartbeat,
				ObservedBy: observedBy,
			})
		}

		sort.Slice(infos, func(i, j int) bool {
			return infos[i].ID < infos[j].ID
		})

		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(infos); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
