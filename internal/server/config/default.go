package config

import (
	"time"

	"github.com/atymic/soketi/internal/apps"
)

// Adapter drivers.
const (
	AdapterLocal  = "local"
	AdapterGossip = "gossip"
)

// App registry drivers.
const (
	AppsMemory = "memory"
	AppsBadger = "badger"
)

// Default configuration values.
const (
	DefaultHTTPAddress    = "0.0.0.0:6001"
	DefaultMetricsAddress = "0.0.0.0:9601"

	DefaultAdapterDriver  = AdapterLocal
	DefaultAdapterPrefix  = "soketi"
	DefaultAdapterTimeout = 5 * time.Second
	DefaultGossipPort     = 7946

	DefaultAppsDriver = AppsMemory

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration: a single local
// node serving the demo app, the Pusher API on 6001 and metrics
// on 9601.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Address: DefaultHTTPAddress,
			Metrics: MetricsConfig{
				Enabled: true,
				Address: DefaultMetricsAddress,
			},
		},
		Adapter: AdapterSection{
			Driver:  DefaultAdapterDriver,
			Prefix:  DefaultAdapterPrefix,
			Timeout: DefaultAdapterTimeout,
			Gossip: GossipSection{
				BindPort: DefaultGossipPort,
			},
		},
		Apps: AppsSection{
			Driver: DefaultAppsDriver,
			Entries: []apps.App{
				{ID: "app-id", Key: "app-key", Secret: "app-secret"},
			},
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
