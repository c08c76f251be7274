// Package apps manages the tenants of the server.
//
// An App is a credential pair (id, key, secret) with per-app limits;
// every connection, channel and REST call belongs to exactly one app.
// A Manager resolves apps by id or key. Two drivers exist: the memory
// manager holds apps from configuration or a hot-reloaded YAML file,
// and the badger manager persists them with secrets encrypted at rest.
//
// The limiter registry hands out per-app token buckets for the three
// rate classes the HTTP API enforces (backend events, client events,
// read queries).
package apps
