// Package handler provides the HTTP request handlers for the Pusher
// REST surface.
//
// Endpoints are grouped by file:
//
//   - channels.go: channel index, single channel, presence users
//   - events.go: event publish, batch publish, user termination
//   - health.go: liveness and readiness probes
//
// All handlers follow the same pattern: parse and validate against the
// authenticated app's limits, call the adapter, format the Pusher
// response shape, map domain errors to HTTP status codes.
package handler
