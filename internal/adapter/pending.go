package adapter

import (
	"fmt"
	"sync"
	"time"

	"github.com/atymic/soketi/internal/core/domain"
)

// pendingRequest is one in-flight cluster query awaiting peer answers.
type pendingRequest struct {
	id       string
	appID    string
	kind     RequestType
	expected int
	received int
	acc      accumulator
	done     chan pendingResult // buffered(1); nil for fire-and-forget kinds
	timer    *time.Timer
	started  time.Time
}

// pendingResult is what the waiting goroutine receives: the merged
// accumulator on success, an error on timeout or shutdown.
type pendingResult struct {
	acc accumulator
	err error
}

// resolveOutcome reports what a response did to the table.
type resolveOutcome int

const (
	resolveUnknown   resolveOutcome = iota // correlation id not registered here
	resolveMerged                          // folded in, still waiting on peers
	resolveCompleted                       // all expected answers are in
)

// requestTable owns every in-flight request, keyed by correlation id.
// One mutex guards the entries and their accumulators: query
// goroutines, the transport dispatcher and expiry timers all funnel
// through it, so an entry is removed exactly once no matter which
// path wins the race.
type requestTable struct {
	mu      sync.Mutex
	entries map[string]*pendingRequest
}

func newRequestTable() *requestTable {
	return &requestTable{entries: make(map[string]*pendingRequest)}
}

// register inserts the entry and arms its expiry timer. The timer is
// created under the lock, so its callback can never observe the table
// without the entry.
func (t *requestTable) register(req *pendingRequest, timeout time.Duration, onExpire func(req *pendingRequest)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req.started = time.Now()
	t.entries[req.id] = req
	req.timer = time.AfterFunc(timeout, func() {
		if expired := t.expire(req.id, timeout); expired != nil {
			onExpire(expired)
		}
	})
}

// has reports whether the correlation id belongs to this process. The
// request handler uses it to suppress answering its own broadcasts.
func (t *requestTable) has(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[id]
	return ok
}

// resolve folds one response into its pending request. When the last
// expected answer arrives the entry is removed under the lock and the
// waiter is handed the merged accumulator.
func (t *requestTable) resolve(res *ResponseMessage) (*pendingRequest, resolveOutcome) {
	t.mu.Lock()
	req, ok := t.entries[res.RequestID]
	if !ok {
		t.mu.Unlock()
		return nil, resolveUnknown
	}
	req.received++
	req.acc.merge(res)
	completed := req.received >= req.expected
	if completed {
		delete(t.entries, res.RequestID)
	}
	t.mu.Unlock()

	if !completed {
		return req, resolveMerged
	}

	req.timer.Stop()
	if req.done != nil {
		req.done <- pendingResult{acc: req.acc}
	}
	return req, resolveCompleted
}

// expire removes the entry if it is still pending and fails its
// waiter. Partial data is discarded with it; a response that lost the
// race resolves to unknown and is dropped.
func (t *requestTable) expire(id string, timeout time.Duration) *pendingRequest {
	t.mu.Lock()
	req, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if !ok {
		return nil
	}
	if req.done != nil {
		req.done <- pendingResult{
			err: domain.ErrRequestTimeout.WithDetails(fmt.Sprintf("%s after %s", req.kind, timeout)),
		}
	}
	return req
}

// discard removes an entry without fulfilling it, for requests whose
// broadcast never left this process.
func (t *requestTable) discard(id string) {
	t.mu.Lock()
	req, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if ok && req.timer != nil {
		req.timer.Stop()
	}
}

// drain empties the table, returning the orphaned entries for the
// caller to fail. Used on shutdown.
func (t *requestTable) drain() []*pendingRequest {
	t.mu.Lock()
	orphans := make([]*pendingRequest, 0, len(t.entries))
	for _, req := range t.entries {
		orphans = append(orphans, req)
	}
	t.entries = make(map[string]*pendingRequest)
	t.mu.Unlock()
	return orphans
}

func (t *requestTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
