package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonwraymond/gateops/observe"
	"github.com/jonwraymond/gateops/policy"
)

// Watcher polls policy sources and loads changed documents into the
// engine. Detection is mod-time based: each pass stats every document
// and recompiles the ones whose mod time advanced. A document that
// fails to compile is logged and skipped; the previously loaded policy
// stays live. Deleting a source file does not unload its policy.
type Watcher struct {
	sources  []string
	engine   *policy.Engine
	interval time.Duration
	logger   observe.Logger
	lastMod  map[string]time.Time
}

// NewWatcher creates a watcher over the given sources. Each source is
// a policy document file or a directory of *.json documents. An
// interval of zero or less defaults to 5 seconds.
func NewWatcher(sources []string, engine *policy.Engine, interval time.Duration, logger observe.Logger) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{
		sources:  sources,
		engine:   engine,
		interval: interval,
		logger:   logger,
		lastMod:  make(map[string]time.Time),
	}
}

// Watch blocks until ctx is done, running a sync pass every interval.
func (w *Watcher) Watch(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sync(ctx)
		}
	}
}

// Sync runs one reload pass and returns how many documents were
// compiled and swapped in. Unreadable sources and compile failures are
// logged, never fatal.
func (w *Watcher) Sync(ctx context.Context) int {
	loaded := 0
	for _, source := range w.sources {
		files, err := policyFiles(source)
		if err != nil {
			w.logger.Warn(ctx, "policy_source_unreadable",
				observe.Field{Key: "source", Value: source},
				observe.Field{Key: "error", Value: err.Error()},
			)
			continue
		}

		for _, file := range files {
			info, err := os.Stat(file)
			if err != nil {
				w.logger.Warn(ctx, "policy_source_unreadable",
					observe.Field{Key: "source", Value: file},
					observe.Field{Key: "error", Value: err.Error()},
				)
				continue
			}
			if !info.ModTime().After(w.lastMod[file]) {
				continue
			}
			w.lastMod[file] = info.ModTime()

			data, err := os.ReadFile(file)
			if err != nil {
				w.logger.Error(ctx, "policy_reload_failed",
					observe.Field{Key: "source", Value: file},
					observe.Field{Key: "error", Value: err.Error()},
				)
				continue
			}

			name := PolicyName(file)
			if err := w.engine.Load(name, data); err != nil {
				w.logger.Error(ctx, "policy_reload_failed",
					observe.Field{Key: "policy", Value: name},
					observe.Field{Key: "source", Value: file},
					observe.Field{Key: "error", Value: err.Error()},
				)
				continue
			}

			loaded++
			w.logger.Info(ctx, "policy_loaded",
				observe.Field{Key: "policy", Value: name},
				observe.Field{Key: "source", Value: file},
			)
		}
	}
	return loaded
}

// PolicyName derives the engine name for a policy document: the file
// base name without its extension.
func PolicyName(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// policyFiles expands a source into document paths. A file source is
// taken as-is regardless of extension; a directory source contributes
// its *.json entries in name order.
func policyFiles(source string) ([]string, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{source}, nil
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(source, e.Name()))
	}
	return files, nil
}
