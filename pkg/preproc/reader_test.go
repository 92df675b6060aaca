package preproc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/stanfront/internal/testutil"
)

func mapFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, content := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

func readString(t *testing.T, root string, files map[string]string, searchPath []string, opts ...Option) (*Program, error) {
	t.Helper()
	opts = append([]Option{WithOpener(FSOpener(mapFS(files))), WithLogger(testutil.NewTestLogger(t))}, opts...)
	return Read(strings.NewReader(root), "model.stan", searchPath, opts...)
}

func TestReadEndToEnd(t *testing.T) {
	prog, err := readString(t, "A\n#include b.stan\nC\n", map[string]string{
		"b.stan": "B1\nB2\n",
	}, []string{"./"})
	require.NoError(t, err)

	assert.Equal(t, "A\nB1\nB2\nC\n", prog.Text())
	assert.Equal(t, 4, prog.LineCount())
	assert.Equal(t, "model.stan", prog.Name())

	trace, err := prog.IncludeTrace(3)
	require.NoError(t, err)
	assert.Equal(t, "in file 'b.stan' at line 2\nincluded from file 'model.stan' at line 2\n", trace)

	assert.Equal(t, History{
		{ConcatLine: 0, Line: 0, Action: Start, Path: "model.stan"},
		{ConcatLine: 1, Line: 1, Action: Include, Path: "b.stan"},
		{ConcatLine: 1, Line: 0, Action: Start, Path: "b.stan"},
		{ConcatLine: 3, Line: 2, Action: End, Path: "b.stan"},
		{ConcatLine: 3, Line: 2, Action: Restart, Path: "model.stan"},
		{ConcatLine: 4, Line: 3, Action: End, Path: "model.stan"},
	}, prog.History())
	assert.NoError(t, prog.History().Validate())
}

func TestIncludeStackWithoutIncludes(t *testing.T) {
	prog, err := readString(t, "data {\n  int N;\n}\n\nmodel {\n}\n", nil, []string{"./"})
	require.NoError(t, err)
	require.Equal(t, 6, prog.LineCount())

	for n := 1; n <= prog.LineCount(); n++ {
		assert.Equal(t, []Frame{{Path: "model.stan", Line: n}}, prog.IncludeStack(n), "line %d", n)
	}
	assert.Nil(t, prog.IncludeStack(0))
	assert.Nil(t, prog.IncludeStack(7))
}

func TestIncludeStackNested(t *testing.T) {
	prog, err := readString(t, "a\n#include b\nc\n", map[string]string{
		"b":      "b1\n#include c.stan\nb3\n",
		"c.stan": "c1\n",
	}, []string{"./"})
	require.NoError(t, err)
	require.Equal(t, "a\nb1\nc1\nb3\nc\n", prog.Text())

	tests := []struct {
		line int
		want []Frame
	}{
		{line: 1, want: []Frame{{"model.stan", 1}}},
		{line: 2, want: []Frame{{"model.stan", 2}, {"b", 1}}},
		{line: 3, want: []Frame{{"model.stan", 2}, {"b", 2}, {"c.stan", 1}}},
		{line: 4, want: []Frame{{"model.stan", 2}, {"b", 3}}},
		{line: 5, want: []Frame{{"model.stan", 3}}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("line %d", tt.line), func(t *testing.T) {
			assert.Equal(t, tt.want, prog.IncludeStack(tt.line))
		})
	}

	trace, err := prog.IncludeTrace(3)
	require.NoError(t, err)
	assert.Equal(t, "in file 'c.stan' at line 1\n"+
		"included from file 'b' at line 2\n"+
		"included from file 'model.stan' at line 2\n", trace)
	assert.NoError(t, prog.History().Validate())
}

func TestIncludeOnFirstLineAndEmptyInclude(t *testing.T) {
	prog, err := readString(t, "#include empty.stan\n#include one.stan\nlast\n", map[string]string{
		"empty.stan": "",
		"one.stan":   "only\n",
	}, []string{"./"})
	require.NoError(t, err)

	assert.Equal(t, "only\nlast\n", prog.Text())
	assert.Equal(t, []Frame{{"model.stan", 2}, {"one.stan", 1}}, prog.IncludeStack(1))
	assert.Equal(t, []Frame{{"model.stan", 3}}, prog.IncludeStack(2))
	assert.NoError(t, prog.History().Validate())
}

func TestIncludeTraceLineNotFound(t *testing.T) {
	prog, err := readString(t, "A\n#include b.stan\nC\n", map[string]string{"b.stan": "B1\nB2\n"}, []string{"./"})
	require.NoError(t, err)

	for _, line := range []int{-1, 0, 5, 100} {
		t.Run(fmt.Sprintf("line %d", line), func(t *testing.T) {
			_, err := prog.IncludeTrace(line)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrLineNotFound)

			var lnf *LineNotFoundError
			require.ErrorAs(t, err, &lnf)
			assert.Equal(t, line, lnf.Line)
			assert.Contains(t, err.Error(), fmt.Sprintf("target line number %d not found", line))
		})
	}
}

func TestSearchPathOrder(t *testing.T) {
	files := map[string]string{
		"second/only.stan":  "from second\n",
		"first/both.stan":   "from first\n",
		"second/both.stan":  "shadowed\n",
		"second/other.stan": "other\n",
	}
	searchPath := []string{"first/", "second/"}

	prog, err := readString(t, "#include only.stan\n", files, searchPath)
	require.NoError(t, err)
	assert.Equal(t, "from second\n", prog.Text())

	prog, err = readString(t, "#include both.stan\n", files, searchPath)
	require.NoError(t, err)
	assert.Equal(t, "from first\n", prog.Text())
}

func TestIncludeNotFound(t *testing.T) {
	_, err := readString(t, "A\n#include missing.stan\n", map[string]string{
		"lib/other.stan": "x\n",
	}, []string{"./", "lib/"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncludeNotFound)

	var nf *IncludeNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing.stan", nf.Target)
	assert.Equal(t, "model.stan", nf.From)
	assert.Equal(t, 2, nf.Line)
	assert.Equal(t, []string{"./", "lib/"}, nf.SearchPath)
}

func TestIncludeNotFoundEmptySearchPath(t *testing.T) {
	_, err := readString(t, "#include b.stan\n", map[string]string{"b.stan": "B\n"}, nil)
	assert.ErrorIs(t, err, ErrIncludeNotFound)
}

func TestIncludeTargetDirectoryIsNotFound(t *testing.T) {
	_, err := readString(t, "#include   \n", map[string]string{"lib/x.stan": "x\n"}, []string{"lib/"})
	assert.ErrorIs(t, err, ErrIncludeNotFound)
}

func TestDirectiveRecognition(t *testing.T) {
	files := map[string]string{"b.stan": "B\n"}
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "tab separator", src: "#include\tb.stan\n", want: "B\n"},
		{name: "surrounding whitespace", src: "#include    b.stan   \r\n", want: "B\n"},
		{name: "no separator", src: "#includeb.stan\n", want: "#includeb.stan\n"},
		{name: "bare keyword", src: "#include\n", want: "#include\n"},
		{name: "indented", src: "  #include b.stan\n", want: "  #include b.stan\n"},
		{name: "comment", src: "// #include b.stan\n", want: "// #include b.stan\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := readString(t, tt.src, files, []string{"./"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, prog.Text())
		})
	}
}

func TestMissingTrailingNewline(t *testing.T) {
	prog, err := readString(t, "A\n#include b.stan\nC", map[string]string{"b.stan": "B1"}, []string{"./"})
	require.NoError(t, err)

	assert.Equal(t, "A\nB1\nC\n", prog.Text())
	assert.Equal(t, 3, prog.LineCount())
	assert.Equal(t, []Frame{{"model.stan", 3}}, prog.IncludeStack(3))
}

func TestCyclicInclude(t *testing.T) {
	files := map[string]string{
		"a.stan": "a\n#include b.stan\n",
		"b.stan": "b\n#include a.stan\n",
	}

	_, err := readString(t, "#include a.stan\n", files, []string{"./"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCyclicInclude)

	var cyc *CyclicIncludeError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, "a.stan", cyc.Target)
	assert.Equal(t, "b.stan", cyc.From)
	assert.Len(t, cyc.Chain, 4)

	_, err = readString(t, "#include a.stan\n", files, []string{"./"}, WithCycleDetection(false), WithMaxDepth(5))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncludeDepth)
}

func TestRepeatedIncludeIsNotACycle(t *testing.T) {
	prog, err := readString(t, "#include c.stan\n#include c.stan\n", map[string]string{"c.stan": "c\n"}, []string{"./"})
	require.NoError(t, err)
	assert.Equal(t, "c\nc\n", prog.Text())
	assert.NoError(t, prog.History().Validate())
}

// trackingOpener records which candidates were opened and closed.
type trackingOpener struct {
	mu     sync.Mutex
	inner  Opener
	open   map[string]int
	opened []string
}

type trackedFile struct {
	io.ReadCloser
	name  string
	owner *trackingOpener
}

func (f *trackedFile) Close() error {
	f.owner.mu.Lock()
	f.owner.open[f.name]--
	f.owner.mu.Unlock()
	return f.ReadCloser.Close()
}

func (o *trackingOpener) Open(name string) (io.ReadCloser, error) {
	rc, err := o.inner.Open(name)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.open[name]++
	o.opened = append(o.opened, name)
	return &trackedFile{ReadCloser: rc, name: name, owner: o}, nil
}

func (o *trackingOpener) leaked() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var names []string
	for name, n := range o.open {
		if n != 0 {
			names = append(names, name)
		}
	}
	return names
}

func TestHandlesClosedOnFailure(t *testing.T) {
	tracker := &trackingOpener{
		inner: FSOpener(mapFS(map[string]string{
			"b.stan": "b\n#include c.stan\n",
			"c.stan": "c\n#include missing.stan\n",
		})),
		open: map[string]int{},
	}

	_, err := Read(strings.NewReader("#include b.stan\n"), "model.stan", []string{"./"}, WithOpener(tracker))
	require.ErrorIs(t, err, ErrIncludeNotFound)

	assert.Equal(t, []string{"./b.stan", "./c.stan"}, tracker.opened)
	assert.Empty(t, tracker.leaked())
}

func TestHandlesClosedOnSuccess(t *testing.T) {
	tracker := &trackingOpener{
		inner: FSOpener(mapFS(map[string]string{"b.stan": "b\n", "c.stan": "c\n"})),
		open:  map[string]int{},
	}

	prog, err := Read(strings.NewReader("#include b.stan\n#include c.stan\n"), "model.stan", []string{"./"}, WithOpener(tracker))
	require.NoError(t, err)
	assert.Equal(t, []string{"./b.stan", "./c.stan"}, prog.Sources())
	assert.Empty(t, tracker.leaked())
}

func TestTraceHook(t *testing.T) {
	var events []Event
	prog, err := readString(t, "A\n#include b.stan\nC\n", map[string]string{"b.stan": "B\n"}, []string{"./"},
		WithTraceHook(func(e Event) { events = append(events, e) }))
	require.NoError(t, err)
	assert.Equal(t, prog.History(), History(events))
}

func TestStreamIsIndependentOfText(t *testing.T) {
	prog, err := readString(t, "A\nB\n", nil, nil)
	require.NoError(t, err)

	consumed, err := io.ReadAll(prog.Stream())
	require.NoError(t, err)
	assert.Equal(t, "A\nB\n", string(consumed))
	assert.Equal(t, 0, prog.Stream().Len())
	assert.Equal(t, "A\nB\n", prog.Text())
}

func TestHistoryIsACopy(t *testing.T) {
	prog, err := readString(t, "A\n", nil, nil)
	require.NoError(t, err)

	h := prog.History()
	h[0].Path = "changed"
	assert.Equal(t, "model.stan", prog.History()[0].Path)
}

func TestReadFileFromDisk(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib")
	require.NoError(t, os.MkdirAll(lib, 0o750))

	root := filepath.Join(dir, "model.stan")
	require.NoError(t, os.WriteFile(root, []byte("model {\n#include priors.stan\n}\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(lib, "priors.stan"), []byte("  mu ~ normal(0, 1);\n"), 0o600))

	sep := string(filepath.Separator)
	prog, err := ReadFile(root, []string{dir + sep, lib + sep}, WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)

	assert.Equal(t, "model {\n  mu ~ normal(0, 1);\n}\n", prog.Text())
	assert.Equal(t, []string{root, lib + sep + "priors.stan"}, prog.Sources())

	trace, err := prog.IncludeTrace(2)
	require.NoError(t, err)
	assert.Equal(t, "in file 'priors.stan' at line 1\nincluded from file '"+root+"' at line 2\n", trace)
}

func TestReadFileMissingRoot(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.stan"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestConcurrentRuns(t *testing.T) {
	fsys := mapFS(map[string]string{"b.stan": "B1\nB2\n"})

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			name := fmt.Sprintf("model%d.stan", i)
			prog, err := Read(strings.NewReader("A\n#include b.stan\nC\n"), name, []string{"./"}, WithOpener(FSOpener(fsys)))
			if err != nil {
				return err
			}
			want := fmt.Sprintf("in file 'b.stan' at line 2\nincluded from file '%s' at line 2\n", name)
			got, err := prog.IncludeTrace(3)
			if err != nil {
				return err
			}
			if got != want {
				return fmt.Errorf("run %d: trace = %q, want %q", i, got, want)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
