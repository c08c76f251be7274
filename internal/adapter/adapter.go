package adapter

import (
	"time"

	"github.com/pusher/pusher-http-go/v5"

	"github.com/atymic/soketi/internal/namespace"
)

// Adapter answers queries about connections and delivers application
// events. Implementations decide the scope: the local adapter sees one
// process, the horizontal adapter the whole cluster.
//
// Every query takes onlyLocal to restrict the answer to this process
// regardless of cluster size. Cluster-scoped calls fail with
// domain.ErrRequestTimeout when peers do not all answer in time.
type Adapter interface {
	// Sockets returns every connection keyed by socket id.
	Sockets(appID string, onlyLocal bool) (map[string]*namespace.WebSocket, error)

	// SocketsCount returns the number of connections.
	SocketsCount(appID string, onlyLocal bool) (int64, error)

	// Channels returns every occupied channel with its socket ids.
	Channels(appID string, onlyLocal bool) (map[string][]string, error)

	// ChannelSockets returns the connections subscribed to a channel.
	ChannelSockets(appID, channel string, onlyLocal bool) (map[string]*namespace.WebSocket, error)

	// ChannelSocketsCount returns the number of subscribers.
	ChannelSocketsCount(appID, channel string, onlyLocal bool) (int64, error)

	// ChannelMembers returns the distinct presence members of a channel.
	ChannelMembers(appID, channel string, onlyLocal bool) (map[string]pusher.MemberData, error)

	// ChannelMembersCount returns the number of distinct presence members.
	ChannelMembersCount(appID, channel string, onlyLocal bool) (int64, error)

	// IsInChannel reports whether the socket is subscribed to the channel.
	IsInChannel(appID, channel, socketID string, onlyLocal bool) (bool, error)

	// ChannelsWithSocketsCount returns every occupied channel with its
	// subscription count.
	ChannelsWithSocketsCount(appID string, onlyLocal bool) (map[string]int64, error)

	// TerminateUserConnections closes every connection authenticated as
	// the user, everywhere.
	TerminateUserConnections(appID, userID string) error

	// Send delivers an event to a channel's local subscribers and, for
	// cluster adapters, relays it to every peer. exceptingID names a
	// socket to skip, usually the sender.
	Send(appID, channel string, data []byte, exceptingID string) error

	// Close releases the adapter and its transport.
	Close() error
}

// Metrics observes the cluster engine. Implementations must be safe
// for concurrent use; see telemetry/metric for the Prometheus one.
type Metrics interface {
	RequestSent(appID, kind string)
	RequestReceived(appID, kind string)
	ResponseReceived(appID string)
	RequestResolved(appID, kind string, elapsed time.Duration)
	RequestTimedOut(appID, kind string)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) RequestSent(string, string)                    {}
func (NopMetrics) RequestReceived(string, string)                {}
func (NopMetrics) ResponseReceived(string)                       {}
func (NopMetrics) RequestResolved(string, string, time.Duration) {}
func (NopMetrics) RequestTimedOut(string, string)                {}
