package config

import (
	"fmt"
	"log/slog"

	"github.com/atymic/soketi/internal/core/domain"
	"github.com/atymic/soketi/internal/transport/gossip"
)

// ToGossipConfig converts ServerConfig to gossip.Config.
//
// This handles NodeID generation and field mapping. The caller reuses
// the returned NodeID for the adapter so transport and adapter logs
// correlate.
func ToGossipConfig(cfg *ServerConfig, logger *slog.Logger) (gossip.Config, error) {
	if cfg == nil {
		return gossip.Config{}, fmt.Errorf("server config is nil")
	}

	nodeID := cfg.Adapter.Gossip.NodeID
	if nodeID == "" {
		generated, err := domain.GenerateNodeID()
		if err != nil {
			return gossip.Config{}, fmt.Errorf("generate node id: %w", err)
		}
		nodeID = generated
		logger.Info("generated cluster node id", "node_id", nodeID)
	}

	return gossip.Config{
		NodeID:        nodeID,
		BindAddr:      cfg.Adapter.Gossip.BindAddr,
		BindPort:      cfg.Adapter.Gossip.BindPort,
		AdvertiseAddr: cfg.Adapter.Gossip.AdvertiseAddr,
		AdvertisePort: cfg.Adapter.Gossip.AdvertisePort,
		Seeds:         cfg.Adapter.Gossip.Seeds,
		Logger:        logger,
	}, nil
}
