// Package watch re-runs a build whenever one of the files it read changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before a
// rebuild starts.
const DefaultDebounce = 100 * time.Millisecond

// BuildFunc runs one build and returns the files it read. The files are
// watched until the next build; a failed build may still report the files
// it got through.
type BuildFunc func(ctx context.Context) (files []string, err error)

// Options configures Run.
type Options struct {
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
	// Dirs are watched in addition to the directories of the built files,
	// so an include that does not exist yet is picked up once created.
	Dirs []string
	// AfterBuild, if set, is called once the files of a build are being
	// watched.
	AfterBuild func(err error)
	Logger     *slog.Logger
}

type watcher struct {
	fs      *fsnotify.Watcher
	logger  *slog.Logger
	build   BuildFunc
	extra   []string
	after   func(error)
	files   map[string]struct{}
	dirs    map[string]struct{}
	lastErr error
}

// Run builds once, then rebuilds on every relevant change until ctx is
// cancelled. Build errors are logged and do not stop the loop.
func Run(ctx context.Context, build BuildFunc, opts Options) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	w := &watcher{
		fs:     fw,
		logger: opts.Logger,
		build:  build,
		extra:  opts.Dirs,
		after:  opts.AfterBuild,
		files:  map[string]struct{}{},
		dirs:   map[string]struct{}{},
	}
	w.rebuild(ctx)

	var debounce *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("file changed", "file", event.Name, "op", event.Op.String())
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(opts.Debounce)
			fire = debounce.C

		case <-fire:
			fire = nil
			w.rebuild(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// relevant reports whether event touches a file of the last build. After a
// failed build any change in a watched directory counts.
func (w *watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if w.lastErr != nil {
		return true
	}
	_, ok := w.files[absPath(event.Name)]
	return ok
}

func (w *watcher) rebuild(ctx context.Context) {
	files, err := w.build(ctx)
	w.lastErr = err
	if err != nil {
		w.logger.Debug("build failed", "error", err)
	}

	w.files = make(map[string]struct{}, len(files))
	want := map[string]struct{}{}
	for _, f := range files {
		abs := absPath(f)
		w.files[abs] = struct{}{}
		want[filepath.Dir(abs)] = struct{}{}
	}
	for _, d := range w.extra {
		want[absPath(d)] = struct{}{}
	}

	for d := range w.dirs {
		if _, ok := want[d]; !ok {
			_ = w.fs.Remove(d)
			delete(w.dirs, d)
		}
	}
	for d := range want {
		if _, ok := w.dirs[d]; ok {
			continue
		}
		if err := w.fs.Add(d); err != nil {
			w.logger.Warn("failed to watch directory", "dir", d, "error", err)
			continue
		}
		w.dirs[d] = struct{}{}
	}

	if w.after != nil {
		w.after(err)
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	// Resolve the directory only: the file itself may have been removed.
	dir, base := filepath.Split(filepath.Clean(p))
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	return filepath.Join(dir, base)
}
