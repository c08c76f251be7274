package config

import (
	"strings"

	"github.com/atymic/soketi/internal/apps"
)

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if sanitized.Apps.Passphrase != "" {
		sanitized.Apps.Passphrase = maskSecret(sanitized.Apps.Passphrase)
	}

	// The entries slice is shared with the original; copy before masking.
	if len(cfg.Apps.Entries) > 0 {
		entries := make([]apps.App, len(cfg.Apps.Entries))
		copy(entries, cfg.Apps.Entries)
		for i := range entries {
			if entries[i].Secret != "" {
				entries[i].Secret = maskSecret(entries[i].Secret)
			}
		}
		sanitized.Apps.Entries = entries
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
