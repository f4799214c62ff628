package session

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/othala/internal/storage"
)

// Watch starts an fsnotify watcher on the local vault directory and
// reloads the session when another process commits to the vault
// database. Events caused by our own connection are filtered out by
// comparing SQLite's data_version, which only advances when a different
// connection commits.
func Watch(ctx context.Context, sess *Session, local *storage.Local, vaultDir string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(vaultDir); err != nil {
		return err
	}

	lastVersion, err := local.DataVersion(ctx, vaultDir)
	if err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("dir", vaultDir))

	// Settle timer debounces bursts of WAL churn into one reload.
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	scheduleReload := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(200 * time.Millisecond)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			v, err := local.DataVersion(ctx, vaultDir)
			if err != nil {
				logger.Warn("watcher: data version check failed", slog.String("error", err.Error()))
				continue
			}
			if v == lastVersion {
				continue // our own write, or no committed change
			}
			lastVersion = v
			logger.Debug("watcher: external change detected", slog.Int64("data_version", v))
			if err := sess.Reload(ctx); err != nil {
				logger.Warn("watcher: reload failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			// Only the vault database (and its WAL/journal side files)
			// matter.
			base := filepath.Base(ev.Name)
			if !strings.HasPrefix(base, storage.DBFileName) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			scheduleReload()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: error", slog.String("error", err.Error()))
		}
	}
}
