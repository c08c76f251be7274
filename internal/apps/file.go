package apps

import (
	"log/slog"
	"path/filepath"

	"github.com/atymic/soketi/internal/core/domain"
	"github.com/atymic/soketi/internal/infra/confloader"
)

// appsFile is the on-disk shape of an apps file:
//
//	apps:
//	  - id: app-id
//	    key: app-key
//	    secret: app-secret
type appsFile struct {
	Apps []App `koanf:"apps"`
}

// LoadAppsFile reads an apps definition file (YAML).
func LoadAppsFile(path string) ([]App, error) {
	loader := confloader.NewLoader()
	if err := loader.LoadFile(path); err != nil {
		return nil, domain.ErrAppValidation.WithDetails("apps file unreadable").WithCause(err)
	}

	var f appsFile
	if err := loader.Unmarshal(&f); err != nil {
		return nil, domain.ErrAppValidation.WithDetails("apps file malformed").WithCause(err)
	}
	return f.Apps, nil
}

// WatchAppsFile reloads the manager whenever the apps file changes on
// disk. A reload that fails validation keeps the previous app set and
// logs the error.
//
// The caller owns the returned watcher and must Stop it on shutdown.
func WatchAppsFile(path string, mgr *MemoryManager, logger *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(path); err != nil {
		watcher.Stop()
		return nil, err
	}

	base := filepath.Base(path)
	watcher.OnChange(func(changed string) {
		// The watcher reports everything in the directory.
		if filepath.Base(changed) != base {
			return
		}

		list, err := LoadAppsFile(path)
		if err != nil {
			logger.Error("apps file reload failed",
				"path", path,
				"error", err,
			)
			return
		}
		if err := mgr.Replace(list); err != nil {
			logger.Error("apps file reload rejected",
				"path", path,
				"error", err,
			)
			return
		}
		logger.Info("apps reloaded",
			"path", path,
			"apps", len(list),
		)
	})

	watcher.StartAsync()
	return watcher, nil
}
