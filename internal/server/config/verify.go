package config

import (
	"errors"
	"os"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyAdapter(&cfg.Adapter); err != nil {
		return err
	}
	return verifyApps(&cfg.Apps)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.Address == "" {
		return errors.New("server.address is required")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Address == "" {
		return errors.New("server.metrics.address is required when metrics are enabled")
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return errors.New("server.tlscert and server.tlskey must be set together")
	}
	return nil
}

func verifyAdapter(cfg *AdapterSection) error {
	switch cfg.Driver {
	case AdapterLocal, AdapterGossip:
	default:
		return errors.New("adapter.driver must be \"local\" or \"gossip\"")
	}
	if cfg.Prefix == "" {
		return errors.New("adapter.prefix is required")
	}
	if cfg.Timeout <= 0 {
		return errors.New("adapter.timeout must be positive")
	}
	if cfg.Gossip.BindPort < 0 || cfg.Gossip.BindPort > 65535 {
		return errors.New("adapter.gossip.port must be a valid port")
	}
	return nil
}

func verifyApps(cfg *AppsSection) error {
	switch cfg.Driver {
	case AppsMemory:
		if cfg.File == "" && len(cfg.Entries) == 0 {
			return errors.New("apps.file or apps.entries is required for the memory driver")
		}
		if cfg.File != "" && len(cfg.Entries) > 0 {
			return errors.New("apps.file and apps.entries are mutually exclusive")
		}
		if cfg.Watch && cfg.File == "" {
			return errors.New("apps.watch requires apps.file")
		}

	case AppsBadger:
		if cfg.DataDir == "" {
			return errors.New("apps.datadir is required for the badger driver")
		}
		if cfg.Passphrase == "" {
			return errors.New("apps.passphrase is required for the badger driver")
		}
		// Check the data directory exists or can be created.
		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return errors.New("cannot create apps data directory: " + err.Error())
		}

	default:
		return errors.New("apps.driver must be \"memory\" or \"badger\"")
	}
	return nil
}
