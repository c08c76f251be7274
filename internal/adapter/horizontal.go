package adapter

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pusher/pusher-http-go/v5"

	"github.com/atymic/soketi/internal/core/domain"
	"github.com/atymic/soketi/internal/namespace"
	"github.com/atymic/soketi/internal/transport"
)

const (
	// DefaultChannelPrefix namespaces the transport channels so several
	// clusters can share one broker.
	DefaultChannelPrefix = "soketi"

	// DefaultRequestTimeout bounds each cluster query.
	DefaultRequestTimeout = 5 * time.Second

	requestChannelSuffix  = "#comms#req"
	responseChannelSuffix = "#comms#res"
)

// HorizontalConfig tunes the cluster engine. The zero value works.
type HorizontalConfig struct {
	// NodeID tags broadcasts with their origin so a process can skip
	// its own echoes. Generated when empty.
	NodeID string

	// ChannelPrefix overrides DefaultChannelPrefix.
	ChannelPrefix string

	// RequestTimeout overrides DefaultRequestTimeout.
	RequestTimeout time.Duration

	Logger  *slog.Logger
	Metrics Metrics
}

// HorizontalAdapter answers queries cluster-wide. It plays both roles
// at once: coordinator for its own requests and responder for every
// peer's, over three transport channels (requests, responses,
// application events).
type HorizontalAdapter struct {
	local   *LocalAdapter
	bus     transport.Transport
	table   *requestTable
	nodeID  string
	timeout time.Duration
	logger  *slog.Logger
	metrics Metrics

	requestChannel  string
	responseChannel string
	mainChannel     string
}

var _ Adapter = (*HorizontalAdapter)(nil)

// NewHorizontalAdapter wires the engine onto the transport and starts
// serving peer requests immediately.
func NewHorizontalAdapter(local *LocalAdapter, bus transport.Transport, cfg HorizontalConfig) *HorizontalAdapter {
	if cfg.NodeID == "" {
		id, err := domain.GenerateNodeID()
		if err != nil {
			id = domain.NodeIDPrefix + uuid.NewString()
		}
		cfg.NodeID = id
	}
	if cfg.ChannelPrefix == "" {
		cfg.ChannelPrefix = DefaultChannelPrefix
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}

	a := &HorizontalAdapter{
		local:           local,
		bus:             bus,
		table:           newRequestTable(),
		nodeID:          cfg.NodeID,
		timeout:         cfg.RequestTimeout,
		logger:          cfg.Logger.With("component", "adapter", "node_id", cfg.NodeID),
		metrics:         cfg.Metrics,
		requestChannel:  cfg.ChannelPrefix + requestChannelSuffix,
		responseChannel: cfg.ChannelPrefix + responseChannelSuffix,
		mainChannel:     cfg.ChannelPrefix,
	}

	bus.Subscribe(a.requestChannel, a.onRequest)
	bus.Subscribe(a.responseChannel, a.onResponse)
	bus.Subscribe(a.mainChannel, a.onBroadcast)

	return a
}

// NodeID returns the identifier this process tags its broadcasts with.
func (a *HorizontalAdapter) NodeID() string {
	return a.nodeID
}

// Registry exposes the local namespace registry.
func (a *HorizontalAdapter) Registry() *namespace.Registry {
	return a.local.Registry()
}

// ============================================================================
// Queries
// ============================================================================

func (a *HorizontalAdapter) Sockets(appID string, onlyLocal bool) (map[string]*namespace.WebSocket, error) {
	local, _ := a.local.Sockets(appID, true)
	if onlyLocal {
		return local, nil
	}
	acc, err := a.sendRequest(appID, RequestSockets, newSocketAccumulator(local), nil)
	if err != nil {
		return nil, err
	}
	return acc.(*socketAccumulator).sockets, nil
}

func (a *HorizontalAdapter) SocketsCount(appID string, onlyLocal bool) (int64, error) {
	local, _ := a.local.SocketsCount(appID, true)
	if onlyLocal {
		return local, nil
	}
	acc, err := a.sendRequest(appID, RequestSocketsCount, &countAccumulator{total: local}, nil)
	if err != nil {
		return 0, err
	}
	return acc.(*countAccumulator).total, nil
}

func (a *HorizontalAdapter) Channels(appID string, onlyLocal bool) (map[string][]string, error) {
	local, _ := a.local.Channels(appID, true)
	if onlyLocal {
		return local, nil
	}
	acc, err := a.sendRequest(appID, RequestChannels, newChannelAccumulator(local), nil)
	if err != nil {
		return nil, err
	}
	return acc.(*channelAccumulator).result(), nil
}

func (a *HorizontalAdapter) ChannelSockets(appID, channel string, onlyLocal bool) (map[string]*namespace.WebSocket, error) {
	local, _ := a.local.ChannelSockets(appID, channel, true)
	if onlyLocal {
		return local, nil
	}
	acc, err := a.sendRequest(appID, RequestChannelSockets, newSocketAccumulator(local), &RequestOpts{Channel: channel})
	if err != nil {
		return nil, err
	}
	return acc.(*socketAccumulator).sockets, nil
}

func (a *HorizontalAdapter) ChannelSocketsCount(appID, channel string, onlyLocal bool) (int64, error) {
	local, _ := a.local.ChannelSocketsCount(appID, channel, true)
	if onlyLocal {
		return local, nil
	}
	acc, err := a.sendRequest(appID, RequestChannelSocketsCount, &countAccumulator{total: local}, &RequestOpts{Channel: channel})
	if err != nil {
		return 0, err
	}
	return acc.(*countAccumulator).total, nil
}

func (a *HorizontalAdapter) ChannelMembers(appID, channel string, onlyLocal bool) (map[string]pusher.MemberData, error) {
	local, _ := a.local.ChannelMembers(appID, channel, true)
	if onlyLocal {
		return local, nil
	}
	acc, err := a.sendRequest(appID, RequestChannelMembers, newMemberAccumulator(local), &RequestOpts{Channel: channel})
	if err != nil {
		return nil, err
	}
	return acc.(*memberAccumulator).members, nil
}

// ChannelMembersCount counts distinct presence members by gathering
// the member sets, not the per-process counts: a user connected to two
// processes must count once, and only the union can tell.
func (a *HorizontalAdapter) ChannelMembersCount(appID, channel string, onlyLocal bool) (int64, error) {
	if onlyLocal {
		return a.local.ChannelMembersCount(appID, channel, true)
	}
	members, err := a.ChannelMembers(appID, channel, false)
	if err != nil {
		return 0, err
	}
	return int64(len(members)), nil
}

func (a *HorizontalAdapter) IsInChannel(appID, channel, socketID string, onlyLocal bool) (bool, error) {
	exists, _ := a.local.IsInChannel(appID, channel, socketID, true)
	if onlyLocal || exists {
		// A local hit already answers the cluster question.
		return exists, nil
	}
	acc, err := a.sendRequest(appID, RequestSocketExistsInChannel, &existsAccumulator{}, &RequestOpts{Channel: channel, SocketID: socketID})
	if err != nil {
		return false, err
	}
	return acc.(*existsAccumulator).exists, nil
}

func (a *HorizontalAdapter) ChannelsWithSocketsCount(appID string, onlyLocal bool) (map[string]int64, error) {
	local, _ := a.local.ChannelsWithSocketsCount(appID, true)
	if onlyLocal {
		return local, nil
	}
	acc, err := a.sendRequest(appID, RequestChannelsWithSocketsCount, newChannelCountAccumulator(local), nil)
	if err != nil {
		return nil, err
	}
	return acc.(*channelCountAccumulator).counts, nil
}

// TerminateUserConnections fans the termination out to every peer and
// then executes it locally. The fan-out is fire-and-forget: peers send
// no response, the table entry exists only so this process does not
// answer its own broadcast, and the expiry timer reaps it silently.
func (a *HorizontalAdapter) TerminateUserConnections(appID, userID string) error {
	if a.bus.ParticipantCount() > 1 {
		req := &pendingRequest{
			id:       uuid.NewString(),
			appID:    appID,
			kind:     RequestTerminateUserConnections,
			expected: a.bus.ParticipantCount(),
			received: 1,
			acc:      nopAccumulator{},
		}
		payload, err := json.Marshal(RequestMessage{
			RequestID: req.id,
			AppID:     appID,
			Type:      RequestTerminateUserConnections,
			Opts:      &RequestOpts{UserID: userID},
		})
		if err != nil {
			return domain.ErrInternalServer.WithCause(err)
		}
		a.table.register(req, a.timeout, func(*pendingRequest) {})
		if err := a.bus.Broadcast(a.requestChannel, payload); err != nil {
			a.table.discard(req.id)
			return domain.ErrPublishFailed.WithCause(err)
		}
		a.metrics.RequestSent(appID, req.kind.String())
	}
	return a.local.TerminateUserConnections(appID, userID)
}

// Send relays an application event to every peer and delivers it to
// matching local connections. Peers skip the echo by origin id.
func (a *HorizontalAdapter) Send(appID, channel string, data []byte, exceptingID string) error {
	msg := BroadcastMessage{
		OriginID:    a.nodeID,
		AppID:       appID,
		Channel:     channel,
		Data:        string(data),
		ExceptingID: exceptingID,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return domain.ErrInternalServer.WithCause(err)
	}
	if err := a.bus.Broadcast(a.mainChannel, payload); err != nil {
		return domain.ErrPublishFailed.WithCause(err)
	}
	return a.local.Send(appID, channel, data, exceptingID)
}

// Close fails every in-flight query and releases the transport.
func (a *HorizontalAdapter) Close() error {
	for _, req := range a.table.drain() {
		if req.timer != nil {
			req.timer.Stop()
		}
		if req.done != nil {
			req.done <- pendingResult{err: domain.ErrAdapterClosed}
		}
	}
	return a.bus.Close()
}

// ============================================================================
// Coordinator
// ============================================================================

// sendRequest runs one scatter/gather round: register the seeded
// accumulator, broadcast the request, block until every peer answered
// or the deadline fired. With no peers the seed is the whole answer
// and nothing is broadcast.
func (a *HorizontalAdapter) sendRequest(appID string, kind RequestType, acc accumulator, opts *RequestOpts) (accumulator, error) {
	numSub := a.bus.ParticipantCount()
	if numSub <= 1 {
		return acc, nil
	}

	req := &pendingRequest{
		id:       uuid.NewString(),
		appID:    appID,
		kind:     kind,
		expected: numSub,
		received: 1, // the local answer is already in the accumulator
		acc:      acc,
		done:     make(chan pendingResult, 1),
	}

	payload, err := json.Marshal(RequestMessage{
		RequestID: req.id,
		AppID:     appID,
		Type:      kind,
		Opts:      opts,
	})
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	a.table.register(req, a.timeout, a.onTimeout)

	if err := a.bus.Broadcast(a.requestChannel, payload); err != nil {
		a.table.discard(req.id)
		return nil, domain.ErrPublishFailed.WithCause(err)
	}
	a.metrics.RequestSent(appID, kind.String())
	a.logger.Debug("cluster request sent",
		"request_id", req.id,
		"app_id", appID,
		"kind", kind.String(),
		"expected", numSub,
	)

	result := <-req.done
	if result.err != nil {
		return nil, result.err
	}
	a.metrics.RequestResolved(appID, kind.String(), time.Since(req.started))
	return result.acc, nil
}

func (a *HorizontalAdapter) onTimeout(req *pendingRequest) {
	a.metrics.RequestTimedOut(req.appID, req.kind.String())
	a.logger.Warn("cluster request timed out",
		"request_id", req.id,
		"app_id", req.appID,
		"kind", req.kind.String(),
		"received", req.received,
		"expected", req.expected,
	)
}

// ============================================================================
// Responder
// ============================================================================

// onRequest answers a peer's query from the local store. The process's
// own broadcasts come back here too and are suppressed by correlation
// id, since the local answer was seeded before the request went out.
func (a *HorizontalAdapter) onRequest(payload []byte) {
	req, err := decodeRequest(payload)
	if err != nil {
		a.logger.Debug("dropping malformed request", "error", err)
		return
	}

	if a.table.has(req.RequestID) {
		return
	}

	a.metrics.RequestReceived(req.AppID, req.Type.String())

	res, ok := a.answer(req)
	if !ok {
		return
	}

	data, err := json.Marshal(res)
	if err != nil {
		a.logger.Error("encode response", "request_id", req.RequestID, "error", err)
		return
	}
	if err := a.bus.Broadcast(a.responseChannel, data); err != nil {
		a.logger.Warn("response broadcast failed", "request_id", req.RequestID, "error", err)
	}
}

// answer builds this process's partial answer. ok is false for kinds
// that produce no response, like terminations.
func (a *HorizontalAdapter) answer(req *RequestMessage) (res *ResponseMessage, ok bool) {
	opts := req.options()
	res = &ResponseMessage{RequestID: req.RequestID}

	switch req.Type {
	case RequestSockets:
		sockets, _ := a.local.Sockets(req.AppID, true)
		res.Sockets = socketsToSlice(sockets)
	case RequestChannels:
		channels, _ := a.local.Channels(req.AppID, true)
		res.Channels = channels
	case RequestChannelSockets:
		sockets, _ := a.local.ChannelSockets(req.AppID, opts.Channel, true)
		res.Sockets = socketsToSlice(sockets)
	case RequestChannelMembers:
		members, _ := a.local.ChannelMembers(req.AppID, opts.Channel, true)
		res.Members = members
	case RequestSocketsCount:
		count, _ := a.local.SocketsCount(req.AppID, true)
		res.TotalCount = &count
	case RequestChannelMembersCount:
		count, _ := a.local.ChannelMembersCount(req.AppID, opts.Channel, true)
		res.TotalCount = &count
	case RequestChannelSocketsCount:
		count, _ := a.local.ChannelSocketsCount(req.AppID, opts.Channel, true)
		res.TotalCount = &count
	case RequestSocketExistsInChannel:
		exists, _ := a.local.IsInChannel(req.AppID, opts.Channel, opts.SocketID, true)
		res.Exists = &exists
	case RequestChannelsWithSocketsCount:
		counts, _ := a.local.ChannelsWithSocketsCount(req.AppID, true)
		res.ChannelCounts = counts
	case RequestTerminateUserConnections:
		_ = a.local.TerminateUserConnections(req.AppID, opts.UserID)
		return nil, false
	default:
		return nil, false
	}
	return res, true
}

// onResponse folds a peer's answer into its pending request. Unknown
// correlation ids are late, duplicate or foreign answers; there is
// nothing of ours left to update, so they are dropped.
func (a *HorizontalAdapter) onResponse(payload []byte) {
	res, err := decodeResponse(payload)
	if err != nil {
		a.logger.Debug("dropping malformed response", "error", err)
		return
	}

	req, outcome := a.table.resolve(res)
	switch outcome {
	case resolveUnknown:
		a.logger.Debug("response for unknown request", "request_id", res.RequestID)
	case resolveMerged:
		a.metrics.ResponseReceived(req.appID)
	case resolveCompleted:
		a.metrics.ResponseReceived(req.appID)
		a.logger.Debug("cluster request resolved",
			"request_id", req.id,
			"kind", req.kind.String(),
			"responses", req.received-1,
		)
	}
}

// onBroadcast delivers a peer's application event to local
// connections. Own echoes are skipped; local delivery happened
// synchronously at send time.
func (a *HorizontalAdapter) onBroadcast(payload []byte) {
	msg, err := decodeBroadcast(payload)
	if err != nil {
		a.logger.Debug("dropping malformed broadcast", "error", err)
		return
	}
	if msg.OriginID == a.nodeID {
		return
	}
	_ = a.local.Send(msg.AppID, msg.Channel, []byte(msg.Data), msg.ExceptingID)
}
