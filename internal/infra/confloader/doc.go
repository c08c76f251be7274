// Package confloader loads server configuration through koanf and
// watches it for changes through fsnotify.
//
// Configuration merges in layers, later layers overriding earlier
// ones:
//
//  1. Defaults (the caller passes a pre-filled struct)
//  2. YAML configuration file
//  3. SOKETI_* environment variables
//
// Environment keys map underscores to dots (SOKETI_SERVER_ADDRESS
// becomes server.address), which is why nested config keys stay single
// words like "datadir" and "nodeid": a second underscore would split
// them.
package confloader
