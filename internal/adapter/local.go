package adapter

import (
	"github.com/pusher/pusher-http-go/v5"

	"github.com/atymic/soketi/internal/namespace"
)

// LocalAdapter answers every query from this process's namespace
// registry. It is the whole story in single-node deployments and the
// local leg of the horizontal adapter; its queries cannot fail.
type LocalAdapter struct {
	registry *namespace.Registry
}

var _ Adapter = (*LocalAdapter)(nil)

func NewLocalAdapter(registry *namespace.Registry) *LocalAdapter {
	return &LocalAdapter{registry: registry}
}

// Registry exposes the namespace registry so connection frontends can
// attach and detach sockets.
func (a *LocalAdapter) Registry() *namespace.Registry {
	return a.registry
}

func (a *LocalAdapter) Sockets(appID string, _ bool) (map[string]*namespace.WebSocket, error) {
	return a.registry.Namespace(appID).Sockets(), nil
}

func (a *LocalAdapter) SocketsCount(appID string, _ bool) (int64, error) {
	return a.registry.Namespace(appID).SocketsCount(), nil
}

func (a *LocalAdapter) Channels(appID string, _ bool) (map[string][]string, error) {
	return a.registry.Namespace(appID).Channels(), nil
}

func (a *LocalAdapter) ChannelSockets(appID, channel string, _ bool) (map[string]*namespace.WebSocket, error) {
	return a.registry.Namespace(appID).ChannelSockets(channel), nil
}

func (a *LocalAdapter) ChannelSocketsCount(appID, channel string, _ bool) (int64, error) {
	return a.registry.Namespace(appID).ChannelSocketsCount(channel), nil
}

func (a *LocalAdapter) ChannelMembers(appID, channel string, _ bool) (map[string]pusher.MemberData, error) {
	return a.registry.Namespace(appID).ChannelMembers(channel), nil
}

func (a *LocalAdapter) ChannelMembersCount(appID, channel string, _ bool) (int64, error) {
	return a.registry.Namespace(appID).ChannelMembersCount(channel), nil
}

func (a *LocalAdapter) IsInChannel(appID, channel, socketID string, _ bool) (bool, error) {
	return a.registry.Namespace(appID).IsInChannel(channel, socketID), nil
}

func (a *LocalAdapter) ChannelsWithSocketsCount(appID string, _ bool) (map[string]int64, error) {
	return a.registry.Namespace(appID).ChannelsWithSocketsCount(), nil
}

func (a *LocalAdapter) TerminateUserConnections(appID, userID string) error {
	a.registry.Namespace(appID).TerminateUserConnections(userID)
	return nil
}

func (a *LocalAdapter) Send(appID, channel string, data []byte, exceptingID string) error {
	a.registry.Namespace(appID).Broadcast(channel, data, exceptingID)
	return nil
}

func (a *LocalAdapter) Close() error {
	return nil
}
