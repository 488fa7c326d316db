package main

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

type Config struct {
	GRPC struct {
		// BindAddr is the address the gossip RPC server listens on.
		BindAddr string `yaml:"bind_addr"`

		// AdvertiseAddr is the address other nodes use to reach this one.
		AdvertiseAddr string `yaml:"advertise_addr"`
	} `yaml:"grpc"`

	Admin struct {
		// BindAddr is the address of the HTTP admin server (metrics and
		// member listing). Empty disables it.
		BindAddr string `yaml:"bind_addr"`
	} `yaml:"admin"`

	Cluster struct {
		// Join is a list of peer addresses to contact on startup.
		Join []string `yaml:"join"`

		// GenerationFile persists the restart counter of this node. Without
		// it the generation falls back to wall-clock time on every start.
		GenerationFile string `yaml:"generation_file"`

		GossipInterval    time.Duration `yaml:"gossip_interval"`
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
		ExchangeTimeout   time.Duration `yaml:"exchange_timeout"`
		FanOut            int           `yaml:"fan_out"`
		AutoDownAfter     time.Duration `yaml:"auto_down_after"`
		RemovalGrace      time.Duration `yaml:"removal_grace"`
	} `yaml:"cluster"`

	Discovery struct {
		// DNS is a "name:port" entry resolved into one seed per record.
		DNS string `yaml:"dns"`

		Etcd struct {
			Endpoints []string      `yaml:"endpoints"`
			Prefix    string        `yaml:"prefix"`
			TTL       time.Duration `yaml:"ttl"`
		} `yaml:"etcd"`
	} `yaml:"discovery"`

	Log struct {
		// Level is one of debug, info, warn, error.
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func defaultConfig() Config {
	var conf Config

	conf.GRPC.BindAddr = ":7474"
	conf.Admin.BindAddr = ":7475"
	conf.Cluster.AutoDownAfter = 30 * time.Second
	conf.Discovery.Etcd.Prefix = "/plenum/members"
	conf.Discovery.Etcd.TTL = 30 * time.Second
	conf.Log.Level = "info"

	return conf
}

func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	if err := yaml.UnmarshalWithOptions(data, c, yaml.Strict()); err != nil {
		return fmt.Errorf("parse config: %s", yaml.FormatError(err, false, false))
	}

	return nil
}

func (c *Config) Validate() error {
	if c.GRPC.BindAddr == "" {
		return fmt.Errorf("grpc.bind_addr is required")
	}

	if c.GRPC.AdvertiseAddr == "" {
		return fmt.Errorf("grpc.advertise_addr is required")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.Log.Level)
	}

	return nil
}
