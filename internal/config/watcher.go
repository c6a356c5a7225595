package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// fileState is what the watcher remembers about the last good load.
type fileState struct {
	cfg   *Config
	hash  [sha256.Size]byte
	mtime time.Time
}

// Watcher polls a config file and invokes a callback when its content
// changes and parses to a valid config. Polling keeps the dependency
// surface flat; a few seconds of reload latency is irrelevant here.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu    sync.Mutex
	state fileState

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the config at path, then polls it in the background. The
// callback receives the previous and the new config; it runs on the polling
// goroutine, outside the watcher's lock.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	st, err := w.snapshot()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.state = st

	go w.run()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.cfg
}

// Stop ends the polling goroutine. Idempotent.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.reloadIfChanged()
		}
	}
}

// reloadIfChanged re-reads the file when its mtime moved. Content-identical
// touches and invalid configs leave the current config in place; only a
// valid, different config triggers the callback.
func (w *Watcher) reloadIfChanged() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.state.mtime)
	w.mu.Unlock()
	if unchanged {
		return
	}

	st, err := w.snapshot()
	if err != nil {
		slog.Warn("config watcher: failed to load config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if st.hash == w.state.hash {
		w.state.mtime = st.mtime
		w.mu.Unlock()
		return
	}
	old := w.state.cfg
	w.state = st
	w.mu.Unlock()

	slog.Info("config watcher: configuration reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, st.cfg)
	}
}

// snapshot reads, parses, and validates the file once and returns the config
// together with the content hash and modification time it was read at.
func (w *Watcher) snapshot() (fileState, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return fileState{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fileState{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return fileState{}, err
	}
	return fileState{cfg: cfg, hash: sha256.Sum256(data), mtime: info.ModTime()}, nil
}
