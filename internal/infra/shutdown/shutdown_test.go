package shutdown

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"
)

// interrupt sends SIGINT to the test process after Wait had time to
// subscribe.
func interrupt(t *testing.T) {
	t.Helper()
	time.Sleep(50 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("send SIGINT: %v", err)
	}
}

func waitDone(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return in time")
		return nil
	}
}

func TestNewHandler(t *testing.T) {
	h := NewHandler(5 * time.Second)
	if h == nil {
		t.Fatal("NewHandler returned nil")
	}
	if h.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", h.timeout)
	}
	if h.done == nil {
		t.Error("done channel should be initialized")
	}
}

func TestDoneOpenUntilShutdown(t *testing.T) {
	h := NewHandler(5 * time.Second)

	select {
	case <-h.Done():
		t.Error("Done closed before any shutdown")
	default:
	}
}

func TestWaitRunsHooksInReverse(t *testing.T) {
	h := NewHandler(5 * time.Second)

	var mu sync.Mutex
	var order []int
	record := func(id int) Hook {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil
		}
	}
	h.OnShutdown(record(1))
	h.OnShutdown(record(2))
	h.OnShutdown(record(3))

	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait() }()
	interrupt(t)

	if err := waitDone(t, errCh); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []int{3, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("hooks ran %d times, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("hook order = %v, want %v", order, want)
		}
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done should be closed after Wait returns")
	}
}

func TestWaitCollectsHookErrors(t *testing.T) {
	h := NewHandler(5 * time.Second)

	errFirst := errors.New("store close failed")
	errSecond := errors.New("listener close failed")

	h.OnShutdown(func(ctx context.Context) error { return errFirst })
	h.OnShutdown(func(ctx context.Context) error { return nil })
	h.OnShutdown(func(ctx context.Context) error { return errSecond })

	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait() }()
	interrupt(t)

	err := waitDone(t, errCh)
	if err == nil {
		t.Fatal("Wait() = nil, want the hook errors")
	}
	if !errors.Is(err, errFirst) {
		t.Errorf("Wait() error should include %v, got %v", errFirst, err)
	}
	if !errors.Is(err, errSecond) {
		t.Errorf("Wait() error should include %v, got %v", errSecond, err)
	}
}

func TestWaitHookContextHasDeadline(t *testing.T) {
	h := NewHandler(250 * time.Millisecond)

	var deadlineSet bool
	h.OnShutdown(func(ctx context.Context) error {
		_, deadlineSet = ctx.Deadline()
		return nil
	})

	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait() }()
	interrupt(t)

	if err := waitDone(t, errCh); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
	if !deadlineSet {
		t.Error("hook context should carry the grace-period deadline")
	}
}

func TestOnShutdownConcurrent(t *testing.T) {
	h := NewHandler(5 * time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.OnShutdown(func(ctx context.Context) error { return nil })
		}()
	}
	wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.hooks) != 10 {
		t.Errorf("registered %d hooks, want 10", len(h.hooks))
	}
}
