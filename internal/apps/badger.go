package apps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/atymic/soketi/internal/core/domain"
	"github.com/atymic/soketi/pkg/crypto/adaptive"
)

// Key layout:
//
//	app:<id>     -> encrypted app record (JSON)
//	appkey:<key> -> app id
const (
	recordPrefix   = "app:"
	keyIndexPrefix = "appkey:"
)

const defaultGCInterval = 10 * time.Minute

// valueLogGCThreshold is the rewrite ratio passed to Badger's value log GC.
const valueLogGCThreshold = 0.5

// BadgerOptions configures the persistent app store.
type BadgerOptions struct {
	// Dir is the Badger data directory. Required.
	Dir string

	// Passphrase derives the key that encrypts app records at rest.
	// Required.
	Passphrase string

	// GCInterval is how often the value log GC runs. Zero means 10m.
	GCInterval time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// BadgerManager stores apps in Badger with records encrypted at rest.
// Each record is sealed with the app id as additional data, so a
// ciphertext moved to another id fails to open.
type BadgerManager struct {
	db     *badger.DB
	cipher adaptive.Cipher
	logger *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

var _ Manager = (*BadgerManager)(nil)

// NewBadgerManager opens (or creates) the app store at opts.Dir.
func NewBadgerManager(opts BadgerOptions) (*BadgerManager, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("apps: badger dir is required")
	}
	if opts.Passphrase == "" {
		return nil, fmt.Errorf("apps: badger passphrase is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.GCInterval
	if interval <= 0 {
		interval = defaultGCInterval
	}

	cipher, err := adaptive.NewFromPassphrase(opts.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("apps: derive cipher: %w", err)
	}

	badgerOpts := badger.DefaultOptions(opts.Dir)
	badgerOpts.Logger = &badgerLogger{logger: logger}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, domain.ErrStorageError.WithDetails("open badger: " + opts.Dir).WithCause(err)
	}

	m := &BadgerManager{
		db:     db,
		cipher: cipher,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go m.gcLoop(interval)

	logger.Info("app store opened",
		"dir", opts.Dir,
		"cipher", string(cipher.Type()),
	)
	return m, nil
}

// ============================================================================
// Lookups
// ============================================================================

// FindByID returns the app with the given id.
func (m *BadgerManager) FindByID(_ context.Context, id string) (*App, error) {
	var app *App
	err := m.db.View(func(txn *badger.Txn) error {
		found, err := m.getApp(txn, id)
		if err != nil {
			return err
		}
		app = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return checkoutApp(app, true)
}

// FindByKey resolves the key index, then loads the record.
func (m *BadgerManager) FindByKey(_ context.Context, key string) (*App, error) {
	var app *App
	err := m.db.View(func(txn *badger.Txn) error {
		id, err := m.getKeyIndex(txn, key)
		if err != nil {
			return err
		}
		found, err := m.getApp(txn, id)
		if err != nil {
			return err
		}
		app = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return checkoutApp(app, true)
}

// List returns every stored app, ordered by id. Disabled apps are
// included; List serves administration, not authentication.
func (m *BadgerManager) List(_ context.Context) ([]App, error) {
	var apps []App
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := strings.TrimPrefix(string(item.Key()), recordPrefix)

			sealed, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			app, err := m.openRecord(id, sealed)
			if err != nil {
				return err
			}
			apps = append(apps, *app)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return apps, nil
}

// ============================================================================
// Mutations
// ============================================================================

// Create stores a new app. The id and key must both be unused.
func (m *BadgerManager) Create(_ context.Context, app App) error {
	if err := app.Validate(); err != nil {
		return err
	}
	app.ApplyDefaults()

	sealed, err := m.sealRecord(&app)
	if err != nil {
		return err
	}

	return m.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(recordKey(app.ID)); err == nil {
			return domain.ErrAppConflict.WithDetails(fmt.Sprintf("app id %s already exists", app.ID))
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if _, err := txn.Get(keyIndexKey(app.Key)); err == nil {
			return domain.ErrAppConflict.WithDetails(fmt.Sprintf("app key %s already in use", app.Key))
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set(recordKey(app.ID), sealed); err != nil {
			return err
		}
		return txn.Set(keyIndexKey(app.Key), []byte(app.ID))
	})
}

// Update replaces an existing app record. A changed key moves the key
// index; the new key must not belong to another app.
func (m *BadgerManager) Update(_ context.Context, app App) error {
	if err := app.Validate(); err != nil {
		return err
	}
	app.ApplyDefaults()

	sealed, err := m.sealRecord(&app)
	if err != nil {
		return err
	}

	return m.db.Update(func(txn *badger.Txn) error {
		old, err := m.getApp(txn, app.ID)
		if err != nil {
			return err
		}

		if old.Key != app.Key {
			if id, err := m.getKeyIndex(txn, app.Key); err == nil && id != app.ID {
				return domain.ErrAppConflict.WithDetails(fmt.Sprintf("app key %s already in use", app.Key))
			} else if err != nil && !errors.Is(err, domain.ErrAppNotFound) {
				return err
			}
			if err := txn.Delete(keyIndexKey(old.Key)); err != nil {
				return err
			}
		}

		if err := txn.Set(recordKey(app.ID), sealed); err != nil {
			return err
		}
		return txn.Set(keyIndexKey(app.Key), []byte(app.ID))
	})
}

// Delete removes an app and its key index.
func (m *BadgerManager) Delete(_ context.Context, id string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		app, err := m.getApp(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(keyIndexKey(app.Key)); err != nil {
			return err
		}
		return txn.Delete(recordKey(id))
	})
}

// Close stops the GC loop and closes the database.
func (m *BadgerManager) Close() error {
	close(m.stopCh)
	<-m.doneCh

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("apps: close badger: %w", err)
	}
	m.logger.Info("app store closed")
	return nil
}

// ============================================================================
// Record codec
// ============================================================================

func recordKey(id string) []byte {
	return []byte(recordPrefix + id)
}

func keyIndexKey(key string) []byte {
	return []byte(keyIndexPrefix + key)
}

func (m *BadgerManager) sealRecord(app *App) ([]byte, error) {
	plain, err := json.Marshal(app)
	if err != nil {
		return nil, fmt.Errorf("apps: encode record: %w", err)
	}
	sealed, err := m.cipher.Encrypt(plain, []byte(app.ID))
	if err != nil {
		return nil, fmt.Errorf("apps: encrypt record: %w", err)
	}
	return sealed, nil
}

func (m *BadgerManager) openRecord(id string, sealed []byte) (*App, error) {
	plain, err := m.cipher.Decrypt(sealed, []byte(id))
	if err != nil {
		return nil, fmt.Errorf("apps: decrypt record %s: %w", id, err)
	}
	var app App
	if err := json.Unmarshal(plain, &app); err != nil {
		return nil, fmt.Errorf("apps: decode record %s: %w", id, err)
	}
	return &app, nil
}

func (m *BadgerManager) getApp(txn *badger.Txn, id string) (*App, error) {
	item, err := txn.Get(recordKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrAppNotFound
		}
		return nil, err
	}
	sealed, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return m.openRecord(id, sealed)
}

func (m *BadgerManager) getKeyIndex(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get(keyIndexKey(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", domain.ErrAppNotFound
		}
		return "", err
	}
	id, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

// ============================================================================
// Maintenance
// ============================================================================

// gcLoop runs periodic value log garbage collection.
func (m *BadgerManager) gcLoop(interval time.Duration) {
	defer close(m.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for {
				err := m.db.RunValueLogGC(valueLogGCThreshold)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						m.logger.Warn("app store gc failed", "error", err)
					}
					break
				}
			}

		case <-m.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
