// Package watch re-runs a callback when watched firmware artifacts change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"github.com/samber/lo"

	"github.com/yaklabco/fwstat/internal/log"
	"github.com/yaklabco/fwstat/pkg/fsutils"
)

// DefaultDebounce is how long Watch waits for a burst of events to settle.
const DefaultDebounce = 500 * time.Millisecond

// ErrNoPaths is returned when Watch is given nothing to watch.
var ErrNoPaths = errors.New("watch: no paths given")

const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// Options tunes Watch.
type Options struct {
	// Debounce is the quiet period after the last matching event before fn
	// runs. Zero uses DefaultDebounce.
	Debounce time.Duration

	// Patterns are glob patterns matched against the absolute path of a
	// changed file. Relative patterns are resolved against the working
	// directory. When empty, only the watched paths themselves match.
	Patterns []string
}

// Func is called with the sorted absolute paths that changed.
type Func func(ctx context.Context, changed []string) error

// Watch watches the directories containing paths (symlinks resolved) and
// calls fn after matching files change. Calls are serialized; an error from
// fn is logged and watching continues. Watch returns nil when ctx is canceled.
func Watch(ctx context.Context, paths []string, opts Options, fn Func) error {
	if len(paths) == 0 {
		return ErrNoPaths
	}

	absPaths, err := absolute(paths)
	if err != nil {
		return err
	}

	matchers, err := compilePatterns(absPaths, opts.Patterns)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	dirs := lo.Uniq(lo.Map(absPaths, func(p string, _ int) string { return filepath.Dir(p) }))
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		slog.Debug("watching directory", slog.String(log.Dir, dir))
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	var (
		pending = map[string]struct{}{}
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&relevantOps == 0 {
				continue
			}
			name := filepath.Clean(event.Name)
			if !lo.SomeBy(matchers, func(g glob.Glob) bool { return g.Match(name) }) {
				continue
			}
			pending[name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			changed := lo.Keys(pending)
			sort.Strings(changed)
			clear(pending)

			slog.Debug("change detected", slog.Any(log.Path, changed))
			if err := fn(ctx, changed); err != nil {
				slog.Error("re-run failed", slog.Any(log.Error, err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.Any(log.Error, err))
		}
	}
}

func absolute(paths []string) ([]string, error) {
	absPaths := make([]string, 0, len(paths))
	for _, p := range paths {
		absP, err := fsutils.ResolvePath(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		absPaths = append(absPaths, absP)
	}
	return absPaths, nil
}

func compilePatterns(absPaths, patterns []string) ([]glob.Glob, error) {
	if len(patterns) == 0 {
		patterns = lo.Map(absPaths, func(p string, _ int) string { return glob.QuoteMeta(p) })
	}

	matchers := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		if !filepath.IsAbs(pattern) {
			absPattern, err := filepath.Abs(pattern)
			if err != nil {
				return nil, fmt.Errorf("resolving pattern %s: %w", pattern, err)
			}
			pattern = absPattern
		}
		matcher, err := glob.Compile(pattern, filepath.Separator)
		if err != nil {
			return nil, fmt.Errorf("invalid watch pattern %q: %w", pattern, err)
		}
		matchers = append(matchers, matcher)
	}
	return matchers, nil
}
