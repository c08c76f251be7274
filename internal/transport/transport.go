// Package transport delivers broadcast messages between cluster processes.
package transport

// Handler consumes one raw message delivered on a subscribed channel.
//
// A transport invokes handlers from a single dispatcher goroutine, one
// message at a time. Handlers must not block indefinitely.
type Handler func(payload []byte)

// Transport is the broadcast fabric the adapter runs on.
//
// Delivery is best effort: a broadcast reaches every participant at
// least once or not at all, and loops back to the sender. No ordering
// is guaranteed across channels or senders.
type Transport interface {
	// Broadcast publishes payload to every participant subscribed to
	// the named channel, including this process.
	Broadcast(channel string, payload []byte) error

	// Subscribe registers the handler for a channel, replacing any
	// previous one. Subscriptions should be in place before traffic
	// flows; messages on channels without a handler are dropped.
	Subscribe(channel string, h Handler)

	// ParticipantCount returns the number of processes currently
	// participating in the cluster, this one included.
	ParticipantCount() int

	// Close stops delivery and releases resources.
	Close() error
}
