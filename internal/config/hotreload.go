package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultSettle = 300 * time.Millisecond

// ChangeHandler receives each successfully reloaded config.
type ChangeHandler func(cfg *Config)

// Watcher reloads a config file when it changes on disk and hands the
// validated result to its subscribers. Bursts of events are coalesced and
// rewrites that leave the content unchanged are ignored.
//
// The parent directory is watched rather than the file, so editors that
// save by rename are picked up.
type Watcher struct {
	path   string
	fs     *fsnotify.Watcher
	settle time.Duration

	mu       sync.Mutex
	handlers []ChangeHandler
	digest   [sha256.Size]byte

	done chan struct{}
}

// NewWatcher prepares a watcher for path. Nothing is observed until Run.
func NewWatcher(path string) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	w := &Watcher{
		path:   filepath.Clean(path),
		fs:     fs,
		settle: defaultSettle,
		done:   make(chan struct{}),
	}
	if data, err := os.ReadFile(w.path); err == nil {
		w.digest = sha256.Sum256(data)
	}
	return w, nil
}

// OnChange subscribes h to future reloads.
func (w *Watcher) OnChange(h ChangeHandler) {
	w.mu.Lock()
	w.handlers = append(w.handlers, h)
	w.mu.Unlock()
}

// Run watches until ctx is done. It returns once the watch is established;
// the event loop runs in the background and Done is closed when it exits.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		w.fs.Close()
		close(w.done)
		return fmt.Errorf("config watcher: %w", err)
	}
	slog.Info("config watcher started", "path", w.path)
	go w.loop(ctx)
	return nil
}

// Done is closed once the event loop has stopped.
func (w *Watcher) Done() <-chan struct{} { return w.done }

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	defer w.fs.Close()

	timer := time.NewTimer(w.settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("config watcher stopped", "path", w.path)
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if w.relevant(ev) {
				timer.Reset(w.settle)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "path", w.path, "error", err)
		case <-timer.C:
			cfg, err := w.Reload()
			switch {
			case errors.Is(err, errUnchanged):
				slog.Debug("config rewrite without changes", "path", w.path)
			case err != nil:
				slog.Error("config reload rejected", "path", w.path, "error", err)
			default:
				w.publish(cfg)
			}
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

var errUnchanged = errors.New("config unchanged")

// Reload reads the file, layers the environment over it and validates the
// result. It reports errUnchanged when the bytes match the last reload.
func (w *Watcher) Reload() (*Config, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)

	w.mu.Lock()
	same := bytes.Equal(sum[:], w.digest[:])
	w.mu.Unlock()
	if same {
		return nil, errUnchanged
	}

	cfg, err := Load(w.path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.digest = sum
	w.mu.Unlock()
	return cfg, nil
}

func (w *Watcher) publish(cfg *Config) {
	w.mu.Lock()
	subs := append([]ChangeHandler(nil), w.handlers...)
	w.mu.Unlock()

	slog.Info("config reloaded", "path", w.path, "subscribers", len(subs))
	for _, h := range subs {
		h(cfg)
	}
}
