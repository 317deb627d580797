package policy

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch starts an fsnotify watcher on the config file and reloads the
// policy on every write until ctx is cancelled. reload re-reads the config
// file and returns the lending section; a failed reload keeps the current
// policy and is logged, never fatal.
//
// Editors replace files via rename, so the watch is installed on the
// containing directory and events are filtered by name. Reloads are
// debounced to ride out editors that fire several events per save.
func Watch(ctx context.Context, cfgPath string, h *Handle, reload func() (Policy, error), logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(cfgPath)
	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("policy: watching config", slog.String("path", cfgPath))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(200 * time.Millisecond)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("policy: watcher stopped")
			return nil

		case <-reloadCh:
			p, err := reload()
			if err != nil {
				logger.Warn("policy: reload failed, keeping current", slog.String("error", err.Error()))
				continue
			}
			h.Update(p)
			logger.Info("policy: reloaded",
				slog.Int("loan_period_days", p.LoanPeriodDays),
				slog.Int("grace_hours", p.GraceHours),
				slog.String("sweep_interval", p.SweepInterval.String()))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(cfgPath) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("policy: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
