package membership

import (
	"time"

	kitlog "github.com/go-kit/log"

	"github.com/plenum-go/plenum/faildetector"
)

type Config struct {
	// NodeID is this incarnation's identity, usually from GenerateID.
	NodeID NodeID

	// AdvertisedAddr is the transport address other nodes use to reach
	// this one. It is carried in this node's own member record.
	AdvertisedAddr string

	// Seeds are bootstrap peer addresses to contact until the cluster view
	// has a member behind each of them.
	Seeds []string

	Transport Transport
	Detector  FailureDetector
	Logger    kitlog.Logger

	// GossipInterval is the period between outgoing gossip rounds.
	GossipInterval time.Duration

	// HeartbeatInterval is the period of the local heartbeat tick.
	HeartbeatInterval time.Duration

	// ExchangeTimeout bounds a single peer exchange. A timeout counts as
	// peer-unreachable for the round.
	ExchangeTimeout time.Duration

	// FanOut is the number of peers contacted per gossip round.
	FanOut int

	// QuorumFraction is the share of up members that must remain in a
	// member's observed-by set before the member becomes suspected.
	QuorumFraction float64

	// AutoDownAfter declares a member down once it has been continuously
	// suspected for this long. Zero disables automatic downing, leaving
	// the decision to the application.
	AutoDownAfter time.Duration

	// RemovalGrace is how long a removed entry is kept (and gossiped)
	// before it is garbage collected from the view.
	RemovalGrace time.Duration

	// TombstoneRetention is how long a collected entry is remembered in
	// order to ignore stale copies of it still circulating.
	TombstoneRetention time.Duration

	// GCInterval is the period of the garbage collection pass.
	GCInterval time.Duration

	// EventBuffer is the capacity of the status change event channel.
	EventBuffer int
}

func DefaultConfig() Config {
	return Config{
		Logger:             kitlog.NewNopLogger(),
		Detector:           faildetector.New[NodeID](faildetector.DefaultOptions()),
		GossipInterval:     1 * time.Second,
		HeartbeatInterval:  1 * time.Second,
		ExchangeTimeout:    2 * time.Second,
		FanOut:             3,
		QuorumFraction:     0.5,
		RemovalGrace:       1 * time.Minute,
		TombstoneRetention: 1 * time.Hour,
		GCInterval:         30 * time.Second,
		EventBuffer:        64,
	}
}
