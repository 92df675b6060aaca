package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/stanfront/internal/testutil"
	"github.com/leapstack-labs/stanfront/pkg/preproc"
)

type result struct {
	lines int
	err   error
}

func startWatch(t *testing.T, root string, searchPath []string) <-chan result {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan result, 16)
	done := make(chan error, 1)

	var lines int
	build := func(context.Context) ([]string, error) {
		prog, err := preproc.ReadFile(root, searchPath)
		if err != nil {
			return []string{root}, err
		}
		lines = prog.LineCount()
		return prog.Sources(), nil
	}
	// AfterBuild runs on the watch goroutine right after build.
	after := func(err error) { results <- result{lines: lines, err: err} }

	go func() {
		done <- Run(ctx, build, Options{
			Debounce:   20 * time.Millisecond,
			Dirs:       searchPath,
			AfterBuild: after,
			Logger:     testutil.NewTestLogger(t),
		})
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watch did not stop")
		}
	})
	return results
}

func next(t *testing.T, results <-chan result) result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for build")
		return result{}
	}
}

func TestRunRebuildsOnIncludeChange(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"model.stan":   "a\n#include b.stan\nc\n",
		"inc/b.stan":   "b1\n",
		"inc/new.stan": "x\n",
	})
	inc := testutil.Dir(filepath.Join(dir, "inc"))

	results := startWatch(t, filepath.Join(dir, "model.stan"), []string{inc})
	first := next(t, results)
	require.NoError(t, first.err)
	assert.Equal(t, 3, first.lines)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "inc", "b.stan"), []byte("b1\nb2\nb3\n"), 0o600))

	second := next(t, results)
	require.NoError(t, second.err)
	assert.Equal(t, 5, second.lines)
}

func TestRunRecoversFromMissingInclude(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"model.stan": "a\n#include b.stan\n",
		"inc/.keep":  "",
	})
	inc := testutil.Dir(filepath.Join(dir, "inc"))

	results := startWatch(t, filepath.Join(dir, "model.stan"), []string{inc})
	first := next(t, results)
	assert.ErrorIs(t, first.err, preproc.ErrIncludeNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "inc", "b.stan"), []byte("b1\n"), 0o600))

	// Creating the file may surface as more than one event; wait for the
	// first successful build.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case r := <-results:
			if r.err == nil {
				assert.Equal(t, 2, r.lines)
				return
			}
		case <-deadline:
			t.Fatal("include was never picked up")
		}
	}
}

func TestRelevant(t *testing.T) {
	w := &watcher{files: map[string]struct{}{absPath("/tmp/x/model.stan"): {}}}

	assert.True(t, w.relevant(fsnotify.Event{Name: "/tmp/x/model.stan", Op: fsnotify.Write}))
	assert.True(t, w.relevant(fsnotify.Event{Name: "/tmp/x/model.stan", Op: fsnotify.Rename}))
	assert.False(t, w.relevant(fsnotify.Event{Name: "/tmp/x/other.stan", Op: fsnotify.Write}))
	assert.False(t, w.relevant(fsnotify.Event{Name: "/tmp/x/model.stan", Op: fsnotify.Chmod}))

	w.lastErr = assert.AnError
	assert.True(t, w.relevant(fsnotify.Event{Name: "/tmp/x/other.stan", Op: fsnotify.Create}))
}
