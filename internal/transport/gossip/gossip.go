// Package gossip provides cluster transport over the memberlist
// Gossip protocol.
//
// Membership doubles as the participant count: every process that
// joined the memberlist cluster is expected to answer cluster queries.
// Adapter messages travel as memberlist user messages to each remote
// member, plus a local loopback so the sender observes its own
// broadcasts like on any real broadcast medium.
package gossip

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/memberlist"

	"github.com/atymic/soketi/internal/core/domain"
	"github.com/atymic/soketi/internal/transport"
)

// inboxSize bounds the pending inbound message queue. A full inbox
// drops new messages; the protocol above tolerates loss by timeout.
const inboxSize = 1024

// leaveTimeout bounds the graceful leave broadcast on Close.
const leaveTimeout = time.Second

// Config configures the gossip transport.
type Config struct {
	// NodeID is the unique node identifier; generated when empty.
	NodeID string

	// BindAddr is the address to bind for gossip communication.
	BindAddr string

	// BindPort is the port to bind; 0 picks a free port.
	BindPort int

	// AdvertiseAddr optionally overrides the address advertised to
	// other members, for NAT or container setups.
	AdvertiseAddr string

	// AdvertisePort optionally overrides the advertised port.
	AdvertisePort int

	// Seeds are existing cluster members to join on start.
	Seeds []string

	// Logger for membership and delivery events.
	Logger *slog.Logger
}

// Transport implements transport.Transport on top of memberlist.
type Transport struct {
	nodeID string
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]transport.Handler

	ml     *memberlist.Memberlist
	inbox  chan []byte
	done   chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup
}

var _ transport.Transport = (*Transport)(nil)

// envelope frames one adapter message for the memberlist wire.
type envelope struct {
	Channel string `json:"channel"`
	Payload []byte `json:"payload"`
}

// New creates the transport, binds the gossip listener and joins the
// seed nodes if any are configured.
func New(cfg Config) (*Transport, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	nodeID := cfg.NodeID
	if nodeID == "" {
		generated, err := domain.GenerateNodeID()
		if err != nil {
			return nil, err
		}
		nodeID = generated
	}

	t := &Transport{
		nodeID:   nodeID,
		logger:   cfg.Logger,
		handlers: make(map[string]transport.Handler),
		inbox:    make(chan []byte, inboxSize),
		done:     make(chan struct{}),
	}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = nodeID
	if cfg.BindAddr != "" {
		mlConfig.BindAddr = cfg.BindAddr
	}
	mlConfig.BindPort = cfg.BindPort
	if cfg.AdvertiseAddr != "" {
		mlConfig.AdvertiseAddr = cfg.AdvertiseAddr
	}
	if cfg.AdvertisePort != 0 {
		mlConfig.AdvertisePort = cfg.AdvertisePort
	}

	// Route memberlist's internal log lines through slog at debug level.
	mlConfig.LogOutput = &slogWriter{logger: cfg.Logger}

	mlConfig.Delegate = &messageDelegate{transport: t}
	mlConfig.Events = &eventDelegate{logger: cfg.Logger}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	t.ml = ml

	t.wg.Add(1)
	go t.run()

	if len(cfg.Seeds) > 0 {
		n, err := ml.Join(cfg.Seeds)
		if err != nil {
			ml.Shutdown()
			return nil, fmt.Errorf("join seed nodes: %w", err)
		}
		cfg.Logger.Info("joined cluster",
			"node_id", nodeID,
			"seed_nodes", cfg.Seeds,
			"joined_count", n)
	} else {
		cfg.Logger.Info("started gossip transport (bootstrap mode)",
			"node_id", nodeID)
	}

	return t, nil
}

// NodeID returns this member's cluster name.
func (t *Transport) NodeID() string {
	return t.nodeID
}

// Address returns the advertised gossip address (host:port), usable as
// a seed for other members.
func (t *Transport) Address() string {
	node := t.ml.LocalNode()
	return net.JoinHostPort(node.Addr.String(), fmt.Sprintf("%d", node.Port))
}

// Broadcast sends the payload to every cluster member, itself included.
//
// Per-member send failures are logged and otherwise ignored; a member
// that misses a message manifests as a query timeout upstream.
func (t *Transport) Broadcast(channel string, payload []byte) error {
	if t.closed.Load() {
		return domain.ErrTransportClosed
	}

	data, err := json.Marshal(envelope{Channel: channel, Payload: payload})
	if err != nil {
		return domain.ErrPublishFailed.WithCause(err)
	}

	local := t.ml.LocalNode()
	for _, node := range t.ml.Members() {
		if node.Name == local.Name {
			continue
		}
		if err := t.ml.SendReliable(node, data); err != nil {
			t.logger.Warn("send to member failed",
				"node_id", node.Name,
				"channel", channel,
				"error", err)
		}
	}

	// Loop back so the sender observes its own broadcast.
	t.enqueue(data)
	return nil
}

// Subscribe registers the handler for a channel, replacing any previous one.
func (t *Transport) Subscribe(channel string, h transport.Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[channel] = h
}

// ParticipantCount returns the current cluster member count.
func (t *Transport) ParticipantCount() int {
	return t.ml.NumMembers()
}

// Close leaves the cluster gracefully and stops the dispatcher.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	if err := t.ml.Leave(leaveTimeout); err != nil {
		t.logger.Error("failed to leave cluster", "error", err)
	}
	err := t.ml.Shutdown()

	close(t.done)
	t.wg.Wait()

	if err != nil {
		return fmt.Errorf("shutdown memberlist: %w", err)
	}
	t.logger.Info("gossip transport shutdown complete", "node_id", t.nodeID)
	return nil
}

func (t *Transport) enqueue(data []byte) {
	select {
	case <-t.done:
	case t.inbox <- data:
	default:
		t.logger.Warn("inbox full, dropping message")
	}
}

// run is the single dispatcher goroutine; it serializes all handler
// invocations for this transport.
func (t *Transport) run() {
	defer t.wg.Done()
	for {
		select {
		case <-t.done:
			return
		case data := <-t.inbox:
			var env envelope
			if err := json.Unmarshal(data, &env); err != nil {
				t.logger.Debug("dropping undecodable message", "error", err)
				continue
			}
			t.mu.RLock()
			h := t.handlers[env.Channel]
			t.mu.RUnlock()
			if h != nil {
				h(env.Payload)
			}
		}
	}
}

// messageDelegate receives memberlist user messages.
type messageDelegate struct {
	transport *Transport
}

// NodeMeta returns metadata about this node (none).
func (d *messageDelegate) NodeMeta(limit int) []byte {
	return nil
}

// NotifyMsg is called when a user message arrives. It must not block;
// the data slice may be reused by memberlist after return.
func (d *messageDelegate) NotifyMsg(data []byte) {
	if len(data) == 0 {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	d.transport.enqueue(buf)
}

// GetBroadcasts is called to get gossip broadcasts to piggyback (not used).
func (d *messageDelegate) GetBroadcasts(overhead, limit int) [][]byte {
	return nil
}

// LocalState returns the local state for push/pull synchronization (not used).
func (d *messageDelegate) LocalState(join bool) []byte {
	return nil
}

// MergeRemoteState merges remote state (not used).
func (d *messageDelegate) MergeRemoteState(buf []byte, join bool) {
}

// eventDelegate logs membership changes.
type eventDelegate struct {
	logger *slog.Logger
}

// NotifyJoin is called when a node joins.
func (e *eventDelegate) NotifyJoin(node *memberlist.Node) {
	e.logger.Info("node joined",
		"node_id", node.Name,
		"addr", node.Addr.String())
}

// NotifyLeave is called when a node leaves.
func (e *eventDelegate) NotifyLeave(node *memberlist.Node) {
	e.logger.Info("node left",
		"node_id", node.Name,
		"addr", node.Addr.String())
}

// NotifyUpdate is called when a node is updated.
func (e *eventDelegate) NotifyUpdate(node *memberlist.Node) {
	e.logger.Debug("node updated",
		"node_id", node.Name,
		"addr", node.Addr.String())
}

// slogWriter adapts slog.Logger to io.Writer for memberlist.
type slogWriter struct {
	logger *slog.Logger
}

// Write implements io.Writer.
func (w *slogWriter) Write(p []byte) (n int, err error) {
	w.logger.Debug(string(p))
	return len(p), nil
}
