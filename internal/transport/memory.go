package transport

import (
	"sync"
	"sync/atomic"

	"github.com/atymic/soketi/internal/core/domain"
)

// inboxSize bounds each bus's pending message queue. A full inbox drops
// new messages rather than blocking the sender.
const inboxSize = 256

// Hub connects in-process buses so that a broadcast on one reaches all
// of them. It backs single-process deployments and multi-node tests.
type Hub struct {
	mu    sync.RWMutex
	buses map[*Bus]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		buses: make(map[*Bus]struct{}),
	}
}

// NewBus joins a new participant to the hub and starts its dispatcher.
func (h *Hub) NewBus() *Bus {
	b := &Bus{
		hub:      h,
		handlers: make(map[string]Handler),
		inbox:    make(chan envelope, inboxSize),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	h.buses[b] = struct{}{}
	h.mu.Unlock()

	b.wg.Add(1)
	go b.run()
	return b
}

func (h *Hub) broadcast(channel string, payload []byte) {
	h.mu.RLock()
	targets := make([]*Bus, 0, len(h.buses))
	for b := range h.buses {
		targets = append(targets, b)
	}
	h.mu.RUnlock()

	for _, b := range targets {
		b.deliver(envelope{channel: channel, payload: payload})
	}
}

func (h *Hub) size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.buses)
}

func (h *Hub) detach(b *Bus) {
	h.mu.Lock()
	delete(h.buses, b)
	h.mu.Unlock()
}

type envelope struct {
	channel string
	payload []byte
}

// Bus is one hub participant. It implements Transport.
//
// Each bus owns a single dispatcher goroutine; all handler invocations
// for the bus are serialized on it.
type Bus struct {
	hub *Hub

	mu       sync.RWMutex
	handlers map[string]Handler

	inbox  chan envelope
	done   chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup
}

var _ Transport = (*Bus)(nil)

// Broadcast publishes to every bus on the hub, this one included.
func (b *Bus) Broadcast(channel string, payload []byte) error {
	if b.closed.Load() {
		return domain.ErrTransportClosed
	}
	b.hub.broadcast(channel, payload)
	return nil
}

// Subscribe registers the handler for a channel, replacing any previous one.
func (b *Bus) Subscribe(channel string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = h
}

// ParticipantCount returns the number of buses on the hub.
func (b *Bus) ParticipantCount() int {
	return b.hub.size()
}

// Close detaches the bus from the hub and stops its dispatcher.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.hub.detach(b)
	close(b.done)
	b.wg.Wait()
	return nil
}

func (b *Bus) deliver(env envelope) {
	select {
	case <-b.done:
	case b.inbox <- env:
	default:
		// Inbox full: drop. The protocol above tolerates loss by timeout.
	}
}

func (b *Bus) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case env := <-b.inbox:
			b.mu.RLock()
			h := b.handlers[env.channel]
			b.mu.RUnlock()
			if h != nil {
				h(env.payload)
			}
		}
	}
}
