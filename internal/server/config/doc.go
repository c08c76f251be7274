// Package config holds the server configuration tree.
//
// The zero source of truth is Default(); confloader then layers a YAML
// file and SOKETI_-prefixed environment variables on top, and Verify
// rejects combinations the server cannot run with (unknown drivers,
// badger without a passphrase, TLS cert without its key). Sanitize
// produces a copy safe to log at debug level, and ToGossipConfig maps
// the adapter section onto the memberlist transport's own config type.
//
// Koanf keys under a section are single words (datadir, tlscert)
// because the env mapping turns every underscore into a dot.
package config
