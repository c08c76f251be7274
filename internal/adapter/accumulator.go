package adapter

import (
	"github.com/pusher/pusher-http-go/v5"

	"github.com/atymic/soketi/internal/namespace"
)

// accumulator is the kind-specific merge target of a pending request.
// It is seeded with the local answer before the request goes out, so
// merging peer responses in any order yields the same result.
// Implementations are not safe for concurrent use; the request table
// serializes every merge under its lock.
type accumulator interface {
	merge(res *ResponseMessage)
}

// socketAccumulator overwrites by socket id. Ids are unique across the
// cluster, so overwriting deduplicates without ordering concerns.
type socketAccumulator struct {
	sockets map[string]*namespace.WebSocket
}

func newSocketAccumulator(local map[string]*namespace.WebSocket) *socketAccumulator {
	if local == nil {
		local = make(map[string]*namespace.WebSocket)
	}
	return &socketAccumulator{sockets: local}
}

func (a *socketAccumulator) merge(res *ResponseMessage) {
	for _, ws := range res.Sockets {
		if ws == nil || ws.ID == "" {
			continue
		}
		a.sockets[ws.ID] = ws
	}
}

// channelAccumulator unions socket-id sets per channel. Two processes
// can both know a channel; their memberships concatenate as a set.
type channelAccumulator struct {
	channels map[string]map[string]struct{}
}

func newChannelAccumulator(local map[string][]string) *channelAccumulator {
	a := &channelAccumulator{channels: make(map[string]map[string]struct{}, len(local))}
	for channel, ids := range local {
		a.union(channel, ids)
	}
	return a
}

func (a *channelAccumulator) merge(res *ResponseMessage) {
	for channel, ids := range res.Channels {
		a.union(channel, ids)
	}
}

func (a *channelAccumulator) union(channel string, ids []string) {
	set := a.channels[channel]
	if set == nil {
		set = make(map[string]struct{}, len(ids))
		a.channels[channel] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

// result flattens the sets back into id lists.
func (a *channelAccumulator) result() map[string][]string {
	out := make(map[string][]string, len(a.channels))
	for channel, set := range a.channels {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		out[channel] = ids
	}
	return out
}

// memberAccumulator overwrites by member id, collapsing a user's
// connections on different processes into one presence entry.
type memberAccumulator struct {
	members map[string]pusher.MemberData
}

func newMemberAccumulator(local map[string]pusher.MemberData) *memberAccumulator {
	if local == nil {
		local = make(map[string]pusher.MemberData)
	}
	return &memberAccumulator{members: local}
}

func (a *memberAccumulator) merge(res *ResponseMessage) {
	for id, member := range res.Members {
		a.members[id] = member
	}
}

// countAccumulator adds peer totals to the local one.
type countAccumulator struct {
	total int64
}

func (a *countAccumulator) merge(res *ResponseMessage) {
	if res.TotalCount != nil {
		a.total += *res.TotalCount
	}
}

// channelCountAccumulator adds per-channel counts across processes.
type channelCountAccumulator struct {
	counts map[string]int64
}

func newChannelCountAccumulator(local map[string]int64) *channelCountAccumulator {
	if local == nil {
		local = make(map[string]int64)
	}
	return &channelCountAccumulator{counts: local}
}

func (a *channelCountAccumulator) merge(res *ResponseMessage) {
	for channel, count := range res.ChannelCounts {
		a.counts[channel] += count
	}
}

// existsAccumulator ORs peer answers. Once true it stays true; a later
// false from another process never resets it.
type existsAccumulator struct {
	exists bool
}

func (a *existsAccumulator) merge(res *ResponseMessage) {
	if res.Exists != nil && *res.Exists {
		a.exists = true
	}
}

// nopAccumulator backs requests that gather nothing, such as user
// termination fan-out. It keeps a table entry mergeable so a rogue
// response cannot panic the dispatcher.
type nopAccumulator struct{}

func (nopAccumulator) merge(*ResponseMessage) {}
