package adapter

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atymic/soketi/internal/core/domain"
)

func newTestRequest(id string, expected int) *pendingRequest {
	return &pendingRequest{
		id:       id,
		appID:    "app",
		kind:     RequestSocketsCount,
		expected: expected,
		received: 1,
		acc:      &countAccumulator{total: 1},
		done:     make(chan pendingResult, 1),
	}
}

func countResponse(id string, n int64) *ResponseMessage {
	return &ResponseMessage{RequestID: id, TotalCount: &n}
}

func TestTableResolveCompletesAtExpected(t *testing.T) {
	table := newRequestTable()
	req := newTestRequest("r1", 3)
	table.register(req, time.Minute, func(*pendingRequest) {})

	if !table.has("r1") {
		t.Fatal("registered request not found")
	}

	if _, outcome := table.resolve(countResponse("r1", 2)); outcome != resolveMerged {
		t.Fatalf("first response outcome = %v, want merged", outcome)
	}
	if _, outcome := table.resolve(countResponse("r1", 3)); outcome != resolveCompleted {
		t.Fatalf("second response outcome = %v, want completed", outcome)
	}
	if table.has("r1") {
		t.Error("completed request still in table")
	}

	select {
	case result := <-req.done:
		if result.err != nil {
			t.Fatalf("unexpected error: %v", result.err)
		}
		if got := result.acc.(*countAccumulator).total; got != 6 {
			t.Errorf("total = %d, want 6", got)
		}
	default:
		t.Fatal("completion never delivered")
	}
}

func TestTableResolveUnknownID(t *testing.T) {
	table := newRequestTable()
	if _, outcome := table.resolve(countResponse("ghost", 1)); outcome != resolveUnknown {
		t.Errorf("outcome = %v, want unknown", outcome)
	}
}

func TestTableExpireFailsWaiter(t *testing.T) {
	table := newRequestTable()
	req := newTestRequest("r1", 2)

	expired := make(chan *pendingRequest, 1)
	table.register(req, 20*time.Millisecond, func(r *pendingRequest) { expired <- r })

	select {
	case result := <-req.done:
		if !errors.Is(result.err, domain.ErrRequestTimeout) {
			t.Fatalf("error = %v, want ErrRequestTimeout", result.err)
		}
		if got := domain.GetErrorCode(result.err); got != domain.ErrRequestTimeout.Code {
			t.Errorf("code = %q, want %q", got, domain.ErrRequestTimeout.Code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout never fired")
	}

	select {
	case r := <-expired:
		if r.id != "r1" {
			t.Errorf("expired id = %q, want r1", r.id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expiry callback never ran")
	}

	if table.size() != 0 {
		t.Errorf("table size = %d after expiry, want 0", table.size())
	}
}

func TestTableTimeoutNamesKind(t *testing.T) {
	table := newRequestTable()
	req := newTestRequest("r1", 2)
	req.kind = RequestSocketExistsInChannel
	table.register(req, time.Millisecond, func(*pendingRequest) {})

	result := <-req.done
	var derr *domain.DomainError
	if !errors.As(result.err, &derr) {
		t.Fatalf("error type = %T, want DomainError", result.err)
	}
	if want := "socket_exists_in_channel"; !strings.Contains(derr.Details, want) {
		t.Errorf("details = %q, want mention of %q", derr.Details, want)
	}
}

// TestTableRemovalExactlyOnce races completion against expiry and
// verifies only one of them fulfills the waiter.
func TestTableRemovalExactlyOnce(t *testing.T) {
	for i := 0; i < 50; i++ {
		table := newRequestTable()
		req := newTestRequest("r1", 2)
		table.register(req, time.Duration(i%3)*time.Millisecond+time.Millisecond, func(*pendingRequest) {})

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			table.resolve(countResponse("r1", 5))
		}()
		time.Sleep(time.Duration(i%5) * time.Millisecond)
		wg.Wait()

		// Whichever path won, exactly one result lands in done.
		select {
		case <-req.done:
		case <-time.After(2 * time.Second):
			t.Fatal("no result delivered")
		}

		time.Sleep(5 * time.Millisecond)
		select {
		case result := <-req.done:
			t.Fatalf("second result delivered: %+v", result)
		default:
		}
		if table.size() != 0 {
			t.Fatalf("table size = %d, want 0", table.size())
		}
	}
}

func TestTableDiscard(t *testing.T) {
	table := newRequestTable()
	req := newTestRequest("r1", 2)
	table.register(req, 10*time.Millisecond, func(*pendingRequest) {
		t.Error("expiry ran for discarded request")
	})

	table.discard("r1")
	if table.has("r1") {
		t.Error("discarded request still in table")
	}

	select {
	case result := <-req.done:
		t.Fatalf("discard fulfilled the waiter: %+v", result)
	case <-time.After(50 * time.Millisecond):
	}

	// Discarding twice or discarding unknown ids is harmless.
	table.discard("r1")
	table.discard("never-registered")
}

func TestTableDrain(t *testing.T) {
	table := newRequestTable()
	for _, id := range []string{"r1", "r2", "r3"} {
		table.register(newTestRequest(id, 2), time.Minute, func(*pendingRequest) {})
	}

	orphans := table.drain()
	if len(orphans) != 3 {
		t.Fatalf("drained %d entries, want 3", len(orphans))
	}
	if table.size() != 0 {
		t.Errorf("table size = %d after drain, want 0", table.size())
	}
}
