package namespace

import (
	"sync"

	pusher "github.com/pusher/pusher-http-go/v5"
)

// Namespace tracks one app's local connections, channel subscriptions
// and presence members.
//
// All methods are safe for concurrent use. Query methods return
// snapshot copies; mutating a returned map does not affect the
// namespace.
type Namespace struct {
	appID string

	mu       sync.RWMutex
	sockets  map[string]*WebSocket
	channels map[string]map[string]struct{}
	users    map[string]map[string]struct{}
}

// New creates an empty namespace for the given app.
func New(appID string) *Namespace {
	return &Namespace{
		appID:    appID,
		sockets:  make(map[string]*WebSocket),
		channels: make(map[string]map[string]struct{}),
		users:    make(map[string]map[string]struct{}),
	}
}

// AppID returns the app this namespace belongs to.
func (n *Namespace) AppID() string {
	return n.appID
}

// AddSocket registers a connection. It reports false when the socket id
// is already taken.
func (n *Namespace) AddSocket(ws *WebSocket) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.sockets[ws.ID]; exists {
		return false
	}
	n.sockets[ws.ID] = ws
	if ws.UserID != "" {
		n.indexUserLocked(ws.UserID, ws.ID)
	}
	return true
}

// RemoveSocket drops a connection and all its channel subscriptions.
// Unknown ids are ignored.
func (n *Namespace) RemoveSocket(socketID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removeSocketLocked(socketID)
}

func (n *Namespace) removeSocketLocked(socketID string) {
	ws, ok := n.sockets[socketID]
	if !ok {
		return
	}
	delete(n.sockets, socketID)

	for channel, ids := range n.channels {
		delete(ids, socketID)
		if len(ids) == 0 {
			delete(n.channels, channel)
		}
	}

	if ws.UserID != "" {
		if ids := n.users[ws.UserID]; ids != nil {
			delete(ids, socketID)
			if len(ids) == 0 {
				delete(n.users, ws.UserID)
			}
		}
	}
}

// SignIn associates a socket with a user id, enabling user-targeted
// termination. It reports false for unknown sockets.
func (n *Namespace) SignIn(socketID, userID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	ws, ok := n.sockets[socketID]
	if !ok {
		return false
	}
	ws.UserID = userID
	n.indexUserLocked(userID, socketID)
	return true
}

func (n *Namespace) indexUserLocked(userID, socketID string) {
	ids := n.users[userID]
	if ids == nil {
		ids = make(map[string]struct{})
		n.users[userID] = ids
	}
	ids[socketID] = struct{}{}
}

// AddToChannel subscribes a socket to a channel and returns the channel's
// new subscription count. Presence channels pass the joining member's
// data; others pass nil. Unknown sockets leave the channel untouched.
func (n *Namespace) AddToChannel(socketID, channel string, member *pusher.MemberData) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	ws, ok := n.sockets[socketID]
	if !ok {
		return len(n.channels[channel])
	}

	ids := n.channels[channel]
	if ids == nil {
		ids = make(map[string]struct{})
		n.channels[channel] = ids
	}
	ids[socketID] = struct{}{}

	if member != nil {
		ws.presence[channel] = *member
	}
	return len(ids)
}

// RemoveFromChannel unsubscribes a socket from a channel and returns the
// channel's remaining subscription count.
func (n *Namespace) RemoveFromChannel(socketID, channel string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	if ws, ok := n.sockets[socketID]; ok {
		delete(ws.presence, channel)
	}

	ids, ok := n.channels[channel]
	if !ok {
		return 0
	}
	delete(ids, socketID)
	if len(ids) == 0 {
		delete(n.channels, channel)
		return 0
	}
	return len(ids)
}

// Sockets returns all local connections keyed by socket id.
func (n *Namespace) Sockets() map[string]*WebSocket {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make(map[string]*WebSocket, len(n.sockets))
	for id, ws := range n.sockets {
		out[id] = ws
	}
	return out
}

// SocketsCount returns the number of local connections.
func (n *Namespace) SocketsCount() int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return int64(len(n.sockets))
}

// Channels returns every occupied channel with its subscribed socket ids.
func (n *Namespace) Channels() map[string][]string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make(map[string][]string, len(n.channels))
	for channel, ids := range n.channels {
		members := make([]string, 0, len(ids))
		for id := range ids {
			members = append(members, id)
		}
		out[channel] = members
	}
	return out
}

// ChannelsCount returns the number of occupied channels.
func (n *Namespace) ChannelsCount() int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return int64(len(n.channels))
}

// ChannelSockets returns the connections subscribed to a channel.
func (n *Namespace) ChannelSockets(channel string) map[string]*WebSocket {
	n.mu.RLock()
	defer n.mu.RUnlock()

	ids := n.channels[channel]
	out := make(map[string]*WebSocket, len(ids))
	for id := range ids {
		if ws, ok := n.sockets[id]; ok {
			out[id] = ws
		}
	}
	return out
}

// ChannelSocketsCount returns the number of sockets subscribed to a channel.
func (n *Namespace) ChannelSocketsCount(channel string) int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return int64(len(n.channels[channel]))
}

// ChannelMembers returns a presence channel's members keyed by user id.
// Multiple sockets of one user collapse into a single member entry.
func (n *Namespace) ChannelMembers(channel string) map[string]pusher.MemberData {
	n.mu.RLock()
	defer n.mu.RUnlock()

	ids := n.channels[channel]
	out := make(map[string]pusher.MemberData, len(ids))
	for id := range ids {
		ws, ok := n.sockets[id]
		if !ok {
			continue
		}
		member, ok := ws.presence[channel]
		if !ok {
			continue
		}
		out[member.UserID] = member
	}
	return out
}

// ChannelMembersCount returns the number of distinct presence members
// in a channel.
func (n *Namespace) ChannelMembersCount(channel string) int64 {
	return int64(len(n.ChannelMembers(channel)))
}

// IsInChannel reports whether the socket is subscribed to the channel.
func (n *Namespace) IsInChannel(channel, socketID string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	ids, ok := n.channels[channel]
	if !ok {
		return false
	}
	_, ok = ids[socketID]
	return ok
}

// ChannelsWithSocketsCount returns every occupied channel with its
// subscription count.
func (n *Namespace) ChannelsWithSocketsCount() map[string]int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make(map[string]int64, len(n.channels))
	for channel, ids := range n.channels {
		out[channel] = int64(len(ids))
	}
	return out
}

// TerminateUserConnections closes and removes every connection signed in
// as the given user.
func (n *Namespace) TerminateUserConnections(userID string) {
	n.mu.Lock()
	var victims []*WebSocket
	for id := range n.users[userID] {
		if ws, ok := n.sockets[id]; ok {
			victims = append(victims, ws)
		}
	}
	for _, ws := range victims {
		n.removeSocketLocked(ws.ID)
	}
	n.mu.Unlock()

	// Close outside the lock; a slow client must not stall the namespace.
	for _, ws := range victims {
		_ = ws.CloseConn(CloseCodeAppTerminated, TerminationMessage)
	}
}

// Broadcast delivers data to every socket subscribed to the channel,
// skipping the excepted socket id. Send failures are ignored; the
// connection lifecycle owns broken sockets.
func (n *Namespace) Broadcast(channel string, data []byte, exceptingID string) {
	n.mu.RLock()
	ids := n.channels[channel]
	targets := make([]*WebSocket, 0, len(ids))
	for id := range ids {
		if id == exceptingID {
			continue
		}
		if ws, ok := n.sockets[id]; ok {
			targets = append(targets, ws)
		}
	}
	n.mu.RUnlock()

	for _, ws := range targets {
		_ = ws.Send(data)
	}
}
