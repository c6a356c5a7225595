package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glimmervoice/glimmer/internal/config"
)

const watcherYAML = `
server:
  log_level: info
providers:
  llm:
    name: openai
  stt:
    name: elevenlabs
  tts:
    name: elevenlabs
conversation:
  voice:
    voice_id: v1
`

// startWatcher writes content to a temp config file and returns a fast-polling
// watcher over it plus the file path.
func startWatcher(t *testing.T, content string, onChange func(old, new *config.Config)) (*config.Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	rewrite(t, path, content)

	w, err := config.NewWatcher(path, onChange, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, path
}

func rewrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

func TestWatcherInitialLoad(t *testing.T) {
	t.Parallel()
	w, _ := startWatcher(t, watcherYAML, nil)

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() is nil after initial load")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q, want info", cfg.Server.LogLevel)
	}
}

func TestWatcherDetectsContentChange(t *testing.T) {
	t.Parallel()
	type pair struct{ old, new *config.Config }
	got := make(chan pair, 1)

	w, path := startWatcher(t, watcherYAML, func(old, new *config.Config) {
		select {
		case got <- pair{old, new}:
		default:
		}
	})

	time.Sleep(100 * time.Millisecond)
	rewrite(t, path, strings.Replace(watcherYAML, "log_level: info", "log_level: debug", 1))

	var p pair
	select {
	case p = <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("change was never reported")
	}

	if p.old.Server.LogLevel != config.LogInfo || p.new.Server.LogLevel != config.LogDebug {
		t.Errorf("callback levels = %q -> %q, want info -> debug",
			p.old.Server.LogLevel, p.new.Server.LogLevel)
	}
	if cur := w.Current(); cur.Server.LogLevel != config.LogDebug {
		t.Errorf("Current() log_level = %q, want debug", cur.Server.LogLevel)
	}
}

func TestWatcherKeepsConfigWhenFileGoesBad(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	w, path := startWatcher(t, watcherYAML, func(_, _ *config.Config) {
		calls.Add(1)
	})

	time.Sleep(100 * time.Millisecond)
	rewrite(t, path, "server:\n  log_level: bananas\n")
	time.Sleep(300 * time.Millisecond)

	if n := calls.Load(); n != 0 {
		t.Errorf("callback fired %d times for an invalid file", n)
	}
	if cur := w.Current(); cur.Server.LogLevel != config.LogInfo {
		t.Errorf("Current() log_level = %q, old config was lost", cur.Server.LogLevel)
	}
}

func TestWatcherInitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher("/nonexistent/path.yaml", nil); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	t.Parallel()
	w, _ := startWatcher(t, watcherYAML, nil)
	w.Stop()
	w.Stop()
}

func TestWatcherIgnoresTouchOnly(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	_, path := startWatcher(t, watcherYAML, func(_, _ *config.Config) {
		calls.Add(1)
	})

	time.Sleep(100 * time.Millisecond)
	future := time.Now().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("touch: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if n := calls.Load(); n != 0 {
		t.Errorf("callback fired %d times for a content-identical touch", n)
	}
}
