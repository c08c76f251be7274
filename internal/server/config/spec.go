package config

import (
	"time"

	"github.com/atymic/soketi/internal/apps"
)

// ServerConfig is the root configuration for soketi-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Adapter AdapterSection `koanf:"adapter"`
	Apps    AppsSection    `koanf:"apps"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures the HTTP endpoints.
type ServerSection struct {
	// Address is the bind address of the Pusher HTTP API.
	Address string `koanf:"address"`

	// TLSCertFile and TLSKeyFile enable TLS when both are set.
	TLSCertFile string `koanf:"tlscert"`
	TLSKeyFile  string `koanf:"tlskey"`

	Metrics MetricsConfig `koanf:"metrics"`
}

// MetricsConfig configures the Prometheus endpoint, served on its own
// listener so it can stay off the public network.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Address string `koanf:"address"`
}

// AdapterSection configures the cluster adapter.
type AdapterSection struct {
	// Driver selects the adapter: "local" or "gossip".
	Driver string `koanf:"driver"`

	// Prefix namespaces the cluster channels so unrelated clusters can
	// share a transport.
	Prefix string `koanf:"prefix"`

	// Timeout bounds how long a cluster query waits for peers.
	Timeout time.Duration `koanf:"timeout"`

	Gossip GossipSection `koanf:"gossip"`
}

// GossipSection configures the memberlist transport.
type GossipSection struct {
	// NodeID is the unique identifier for this node. If empty, a
	// random ID is generated at startup.
	NodeID string `koanf:"nodeid"`

	// BindAddr is the gossip bind address (e.g. "192.168.1.10").
	BindAddr string `koanf:"bind"`

	// BindPort is the gossip bind port. Zero picks a free port.
	BindPort int `koanf:"port"`

	// AdvertiseAddr optionally overrides the address advertised to
	// other members, for NAT or container setups.
	AdvertiseAddr string `koanf:"advertise"`

	// AdvertisePort optionally overrides the advertised port.
	AdvertisePort int `koanf:"advertiseport"`

	// Seeds is the list of existing members to join on start.
	// Format: ["192.168.1.10:7946", "192.168.1.11:7946"]
	Seeds []string `koanf:"seeds"`
}

// AppsSection configures the app registry.
type AppsSection struct {
	// Driver selects the registry: "memory" or "badger".
	Driver string `koanf:"driver"`

	// File points at a YAML apps file for the memory driver.
	// Mutually exclusive with Entries so hot reload has a single
	// source of truth.
	File string `koanf:"file"`

	// Watch reloads File on change.
	Watch bool `koanf:"watch"`

	// DataDir is the Badger directory for the badger driver.
	DataDir string `koanf:"datadir"`

	// Passphrase encrypts app records at rest for the badger driver.
	Passphrase string `koanf:"passphrase"`

	// Entries are apps defined inline in the server config.
	Entries []apps.App `koanf:"entries"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
