// Package namespace holds the process-local connection state for soketi.
//
// Each app gets one Namespace tracking its live WebSocket connections,
// channel subscriptions and presence members. All answers are scoped to
// this process; cluster-wide views are assembled on top of it by the
// adapter package.
//
// Lookups for absent sockets, channels or members never fail; they
// return empty or zero values.
package namespace
