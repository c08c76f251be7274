package confloader

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// startWatching spins up a watcher on path and funnels change
// notifications into the returned channel.
func startWatching(t *testing.T, path string) (*Watcher, <-chan string) {
	t.Helper()

	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	t.Cleanup(func() { w.Stop() })

	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	changed := make(chan string, 16)
	w.OnChange(func(p string) {
		select {
		case changed <- p:
		default:
		}
	})

	w.StartAsync()
	// Give the watcher goroutine time to enter its event loop.
	time.Sleep(100 * time.Millisecond)
	return w, changed
}

func awaitChange(t *testing.T, changed <-chan string) string {
	t.Helper()
	select {
	case path := <-changed:
		return path
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification within timeout")
		return ""
	}
}

func TestNewWatcher(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	if w.fsw == nil {
		t.Error("fsnotify watcher should be initialized")
	}
	if w.logger == nil {
		t.Error("logger should default to slog.Default")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	if err := w.Watch("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Watch should fail for a missing directory")
	}
}

func TestWatcherSeesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("key: one"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, changed := startWatching(t, path)

	if err := os.WriteFile(path, []byte("key: two"), 0644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	if got := awaitChange(t, changed); got == "" {
		t.Error("change notification carried an empty path")
	}
}

func TestWatcherSeesRenameOverSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("key: one"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, changed := startWatching(t, path)

	// Editor-style save: write a sibling, rename it over the target.
	tmp := filepath.Join(dir, ".config.yaml.tmp")
	if err := os.WriteFile(tmp, []byte("key: two"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}

	awaitChange(t, changed)
}

func TestOnChangeFanout(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	var mu sync.Mutex
	var count int
	for i := 0; i < 3; i++ {
		w.OnChange(func(string) {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}

	w.notify("/some/path")

	mu.Lock()
	defer mu.Unlock()
	if count != 3 {
		t.Errorf("callbacks ran %d times, want 3", count)
	}
}

func TestOnChangeWhileRunning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("key: one"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	w, _ := startWatching(t, path)

	late := make(chan struct{}, 1)
	w.OnChange(func(string) {
		select {
		case late <- struct{}{}:
		default:
		}
	})

	if err := os.WriteFile(path, []byte("key: two"), 0644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	select {
	case <-late:
	case <-time.After(2 * time.Second):
		t.Error("callback registered after start never ran")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.StartAsync()
	time.Sleep(50 * time.Millisecond)

	if err := w.Stop(); err != nil {
		t.Errorf("first Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
