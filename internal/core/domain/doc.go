// Package domain defines the core domain models for soketi.
//
// Domain models are pure value objects and helpers without any
// IO dependencies or framework coupling. This package contains:
//
//   - Errors: structured domain error definitions
//   - IDs: node, socket and app credential generation
//   - Channels: Pusher channel classification and validation
package domain
