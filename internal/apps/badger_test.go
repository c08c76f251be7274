package apps

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/atymic/soketi/internal/core/domain"
)

const testPassphrase = "correct-horse-battery-staple"

func newTestStore(t *testing.T) *BadgerManager {
	t.Helper()

	mgr, err := NewBadgerManager(BadgerOptions{
		Dir:        t.TempDir(),
		Passphrase: testPassphrase,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewBadgerManager failed: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func TestBadgerManagerRequiresConfig(t *testing.T) {
	if _, err := NewBadgerManager(BadgerOptions{Passphrase: "p"}); err == nil {
		t.Error("expected error for missing dir")
	}
	if _, err := NewBadgerManager(BadgerOptions{Dir: t.TempDir()}); err == nil {
		t.Error("expected error for missing passphrase")
	}
}

func TestBadgerManagerCreateAndFind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	app := App{ID: "app-1", Key: "key-1", Secret: "secret-1", EnableClientMessages: true}
	if err := store.Create(ctx, app); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("by id", func(t *testing.T) {
		got, err := store.FindByID(ctx, "app-1")
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if got.Secret != "secret-1" {
			t.Errorf("Secret = %q, want %q", got.Secret, "secret-1")
		}
		if !got.EnableClientMessages {
			t.Error("EnableClientMessages = false, want true")
		}
		if got.MaxChannelNameLength != DefaultMaxChannelNameLength {
			t.Errorf("MaxChannelNameLength = %d, want %d", got.MaxChannelNameLength, DefaultMaxChannelNameLength)
		}
	})

	t.Run("by key", func(t *testing.T) {
		got, err := store.FindByKey(ctx, "key-1")
		if err != nil {
			t.Fatalf("FindByKey failed: %v", err)
		}
		if got.ID != "app-1" {
			t.Errorf("ID = %q, want %q", got.ID, "app-1")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := store.FindByID(ctx, "ghost"); !errors.Is(err, domain.ErrAppNotFound) {
			t.Errorf("FindByID = %v, want ErrAppNotFound", err)
		}
		if _, err := store.FindByKey(ctx, "ghost-key"); !errors.Is(err, domain.ErrAppNotFound) {
			t.Errorf("FindByKey = %v, want ErrAppNotFound", err)
		}
	})
}

func TestBadgerManagerCreateConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, App{ID: "app-1", Key: "key-1", Secret: "s"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Create(ctx, App{ID: "app-1", Key: "key-other", Secret: "s"}); !errors.Is(err, domain.ErrAppConflict) {
		t.Errorf("duplicate id: Create = %v, want ErrAppConflict", err)
	}
	if err := store.Create(ctx, App{ID: "app-2", Key: "key-1", Secret: "s"}); !errors.Is(err, domain.ErrAppConflict) {
		t.Errorf("duplicate key: Create = %v, want ErrAppConflict", err)
	}
}

func TestBadgerManagerDisabled(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, App{ID: "app-1", Key: "key-1", Secret: "s", Disabled: true}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.FindByID(ctx, "app-1"); !errors.Is(err, domain.ErrAppDisabled) {
		t.Errorf("FindByID = %v, want ErrAppDisabled", err)
	}
}

func TestBadgerManagerUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, App{ID: "app-1", Key: "key-1", Secret: "s"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("missing app", func(t *testing.T) {
		err := store.Update(ctx, App{ID: "ghost", Key: "k", Secret: "s"})
		if !errors.Is(err, domain.ErrAppNotFound) {
			t.Errorf("Update = %v, want ErrAppNotFound", err)
		}
	})

	t.Run("rotates secret", func(t *testing.T) {
		if err := store.Update(ctx, App{ID: "app-1", Key: "key-1", Secret: "rotated"}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		got, err := store.FindByID(ctx, "app-1")
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if got.Secret != "rotated" {
			t.Errorf("Secret = %q, want %q", got.Secret, "rotated")
		}
	})

	t.Run("moves key index", func(t *testing.T) {
		if err := store.Update(ctx, App{ID: "app-1", Key: "key-new", Secret: "rotated"}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if _, err := store.FindByKey(ctx, "key-1"); !errors.Is(err, domain.ErrAppNotFound) {
			t.Errorf("old key lookup = %v, want ErrAppNotFound", err)
		}
		got, err := store.FindByKey(ctx, "key-new")
		if err != nil {
			t.Fatalf("new key lookup failed: %v", err)
		}
		if got.ID != "app-1" {
			t.Errorf("ID = %q, want %q", got.ID, "app-1")
		}
	})

	t.Run("rejects stolen key", func(t *testing.T) {
		if err := store.Create(ctx, App{ID: "app-2", Key: "key-2", Secret: "s"}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		err := store.Update(ctx, App{ID: "app-2", Key: "key-new", Secret: "s"})
		if !errors.Is(err, domain.ErrAppConflict) {
			t.Errorf("Update = %v, want ErrAppConflict", err)
		}
	})
}

func TestBadgerManagerDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, App{ID: "app-1", Key: "key-1", Secret: "s"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Delete(ctx, "app-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := store.FindByID(ctx, "app-1"); !errors.Is(err, domain.ErrAppNotFound) {
		t.Errorf("FindByID = %v, want ErrAppNotFound", err)
	}
	if _, err := store.FindByKey(ctx, "key-1"); !errors.Is(err, domain.ErrAppNotFound) {
		t.Errorf("FindByKey = %v, want ErrAppNotFound", err)
	}
	if err := store.Delete(ctx, "app-1"); !errors.Is(err, domain.ErrAppNotFound) {
		t.Errorf("second Delete = %v, want ErrAppNotFound", err)
	}
}

func TestBadgerManagerList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, app := range []App{
		{ID: "app-b", Key: "key-b", Secret: "s"},
		{ID: "app-a", Key: "key-a", Secret: "s", Disabled: true},
	} {
		if err := store.Create(ctx, app); err != nil {
			t.Fatalf("Create %s failed: %v", app.ID, err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List returned %d apps, want 2", len(list))
	}
	// Badger iterates in key order, so ids come back sorted.
	if list[0].ID != "app-a" || list[1].ID != "app-b" {
		t.Errorf("List order = [%s %s], want [app-a app-b]", list[0].ID, list[1].ID)
	}
	if !list[0].Disabled {
		t.Error("List dropped the disabled flag")
	}
}

func TestBadgerManagerPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	store, err := NewBadgerManager(BadgerOptions{Dir: dir, Passphrase: testPassphrase, Logger: logger})
	if err != nil {
		t.Fatalf("NewBadgerManager failed: %v", err)
	}
	if err := store.Create(ctx, App{ID: "app-1", Key: "key-1", Secret: "secret-1"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewBadgerManager(BadgerOptions{Dir: dir, Passphrase: testPassphrase, Logger: logger})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.FindByKey(ctx, "key-1")
	if err != nil {
		t.Fatalf("FindByKey after reopen failed: %v", err)
	}
	if got.Secret != "secret-1" {
		t.Errorf("Secret = %q, want %q", got.Secret, "secret-1")
	}
}

func TestBadgerManagerWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	store, err := NewBadgerManager(BadgerOptions{Dir: dir, Passphrase: testPassphrase, Logger: logger})
	if err != nil {
		t.Fatalf("NewBadgerManager failed: %v", err)
	}
	if err := store.Create(ctx, App{ID: "app-1", Key: "key-1", Secret: "secret-1"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	wrong, err := NewBadgerManager(BadgerOptions{Dir: dir, Passphrase: "not-the-passphrase", Logger: logger})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer wrong.Close()

	if _, err := wrong.FindByID(ctx, "app-1"); err == nil {
		t.Error("FindByID succeeded with wrong passphrase, want decrypt error")
	}
}
