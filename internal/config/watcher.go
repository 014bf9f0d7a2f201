package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"marketplace/internal/models"
)

// ApplyFunc installs a new rate limit policy. An error leaves the current
// policy in place.
type ApplyFunc func(models.RateLimitConfig) error

// Watcher reloads the rate limit section of the config file while the
// service runs. A reload is triggered when the file is written or replaced,
// or when the process receives SIGHUP. Other sections are read but ignored;
// changing them needs a restart.
type Watcher struct {
	path     string
	debounce time.Duration
	apply    ApplyFunc
	logger   *slog.Logger
	done     chan struct{}
}

// NewWatcher returns a watcher for path. File events arriving within
// debounce of each other trigger a single reload; a non-positive debounce
// reloads on every event.
func NewWatcher(path string, debounce time.Duration, apply ApplyFunc, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		apply:    apply,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start installs the file and signal watches and returns once they are in
// place. Watching continues in the background until ctx is done, after
// which Done is closed.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}

	// The directory is watched, not the file: saving by rename replaces the
	// file and would silently end a watch on the old one.
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	go w.run(ctx, fw, hup)
	return nil
}

// Done is closed when the background watch has stopped.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher, hup chan os.Signal) {
	defer close(w.done)
	defer signal.Stop(hup)
	defer fw.Close()

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			w.logger.Info("Received SIGHUP, reloading rate limit policy", "path", w.path)
			w.reloadAndLog()
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !w.affectsConfig(ev) {
				continue
			}
			if w.debounce <= 0 {
				w.reloadAndLog()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			w.reloadAndLog()
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config file watch error", "path", w.path, "error", err)
		}
	}
}

// affectsConfig reports whether ev wrote or replaced the watched file.
// A rename onto the path arrives as Create.
func (w *Watcher) affectsConfig(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Op&(fsnotify.Write|fsnotify.Create) != 0
}

// Reload reads the file and applies its rate limit section.
func (w *Watcher) Reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	if err := w.apply(cfg.RateLimit); err != nil {
		return fmt.Errorf("apply rate limit policy: %w", err)
	}
	return nil
}

func (w *Watcher) reloadAndLog() {
	if err := w.Reload(); err != nil {
		w.logger.Error("Rate limit policy reload failed, keeping current policy", "path", w.path, "error", err)
		return
	}
	w.logger.Info("Rate limit policy reloaded", "path", w.path)
}
