package rule

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	watchDebounce = 500 * time.Millisecond
)

// Watch reloads the rules file at path whenever it changes and reports each
// revision to onChange: the new rule set, or the error that rejected it. A
// rejected revision leaves the caller on its previous rule set. Watch blocks
// until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*RuleSet, error)) error {
	if path == "" {
		return &ConfigError{Index: -1, Field: "path", Reason: "rules file path required"}
	}
	if onChange == nil {
		return fmt.Errorf("onChange callback required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer w.Close()

	// editors replace files on save, watch the parent dir and filter by name
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	slog.Debug("watching rules", "path", abs)

	timer := time.NewTimer(watchDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("rules watcher stopped", "path", abs)
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !relevant(ev) {
				continue
			}
			timer.Reset(watchDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Error("rules watcher error", "error", err)
		case <-timer.C:
			rs, err := Load(abs)
			if err != nil {
				slog.Error("rules reload rejected, keeping previous rules", "path", abs, "error", err)
				onChange(nil, err)
				continue
			}
			slog.Info("rules reloaded", "path", abs, "rules", len(rs.Rules))
			onChange(rs, nil)
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
