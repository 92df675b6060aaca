// Package preproc expands include directives in a program and records
// where every line of the result came from.
//
// Read concatenates the root program with every file it includes,
// recursively, into one buffer with a single line numbering. Alongside
// the text it keeps a History of start, include, end and restart events
// that can map any line of the buffer back through the chain of includes
// to the original file and line:
//
//	prog, err := preproc.ReadFile("model.stan", []string{"./", "lib/"})
//	...
//	msg, err := prog.IncludeTrace(42)
//
// A line is an include directive when it starts with "#include" followed
// by a space or tab. The target is the rest of the line with surrounding
// whitespace trimmed. Each search path entry is prefixed to the target by
// plain string concatenation, so entries must end in a path separator.
// The first entry that opens wins.
//
// A run touches no shared state beyond the filesystem, so independent
// runs may proceed concurrently.
package preproc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
)

const directive = "#include"

// DefaultMaxDepth is the default include nesting limit.
const DefaultMaxDepth = 64

// Option configures a preprocessing run.
type Option func(*reader)

// WithOpener sets how include candidates are opened. The default is OSOpener.
func WithOpener(o Opener) Option {
	return func(r *reader) { r.opener = o }
}

// WithLogger sets the logger for include resolution messages.
func WithLogger(l *slog.Logger) Option {
	return func(r *reader) { r.logger = l }
}

// WithTraceHook registers fn to be called with each event as it is recorded.
func WithTraceHook(fn func(Event)) Option {
	return func(r *reader) { r.hook = fn }
}

// WithCycleDetection turns detection of self-referential includes on or
// off. It is on by default; with it off a cycle runs until the depth
// limit is hit.
func WithCycleDetection(on bool) Option {
	return func(r *reader) { r.detectCycles = on }
}

// WithMaxDepth limits include nesting. Zero or less means unlimited.
func WithMaxDepth(n int) Option {
	return func(r *reader) { r.maxDepth = n }
}

type reader struct {
	searchPath   []string
	opener       Opener
	logger       *slog.Logger
	hook         func(Event)
	detectCycles bool
	maxDepth     int

	program bytes.Buffer
	history History
	sources []string
	active  []string
	concat  int
}

func newReader(searchPath []string, opts []Option) *reader {
	r := &reader{
		searchPath:   slices.Clone(searchPath),
		opener:       OSOpener(),
		detectCycles: true,
		maxDepth:     DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// Read preprocesses the program read from in. name identifies the root
// in diagnostics; searchPath lists directories, each ending in a path
// separator, to search for included files. The caller owns in.
func Read(in io.Reader, name string, searchPath []string, opts ...Option) (*Program, error) {
	r := newReader(searchPath, opts)
	r.active = append(r.active, canonical(name))
	if err := r.read(in, name, 0); err != nil {
		return nil, err
	}
	return r.finish(name), nil
}

// ReadFile preprocesses the program in the file at path, opened with the
// configured Opener. The root is named path in diagnostics.
func ReadFile(path string, searchPath []string, opts ...Option) (*Program, error) {
	r := newReader(searchPath, opts)
	rc, err := r.opener.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open program: %w", err)
	}
	defer func() { _ = rc.Close() }()

	r.sources = append(r.sources, path)
	r.active = append(r.active, canonical(path))
	if err := r.read(rc, path, 0); err != nil {
		return nil, err
	}
	return r.finish(path), nil
}

func (r *reader) finish(name string) *Program {
	return &Program{
		name:    name,
		text:    r.program.String(),
		stream:  bytes.NewBuffer(slices.Clone(r.program.Bytes())),
		history: r.history,
		sources: r.sources,
	}
}

func (r *reader) emit(e Event) {
	r.history = append(r.history, e)
	if r.hook != nil {
		r.hook(e)
	}
}

// read appends the lines of in to the program, expanding includes.
func (r *reader) read(in io.Reader, path string, depth int) error {
	r.emit(Event{ConcatLine: r.concat, Line: 0, Action: Start, Path: path})
	br := bufio.NewReader(in)
	for lineNum := 1; ; lineNum++ {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read %s at line %d: %w", path, lineNum, err)
		}
		if line == "" {
			r.emit(Event{ConcatLine: r.concat, Line: lineNum - 1, Action: End, Path: path})
			return nil
		}
		if target, ok := includeTarget(line); ok {
			r.emit(Event{ConcatLine: r.concat, Line: lineNum - 1, Action: Include, Path: target})
			if err := r.include(target, path, lineNum, depth); err != nil {
				return err
			}
			r.emit(Event{ConcatLine: r.concat, Line: lineNum, Action: Restart, Path: path})
			continue
		}
		r.concat++
		r.program.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			r.program.WriteByte('\n')
		}
	}
}

// include resolves target against the search path and reads the first
// candidate that opens. Every opened candidate is closed before include
// returns, on success and on failure.
func (r *reader) include(target, from string, line, depth int) error {
	if r.maxDepth > 0 && depth+1 > r.maxDepth {
		return &IncludeDepthError{Target: target, From: from, Line: line, Max: r.maxDepth}
	}
	for _, dir := range r.searchPath {
		candidate := dir + target
		rc, err := r.opener.Open(candidate)
		if err != nil {
			r.logger.Debug("include candidate not found", "target", target, "candidate", candidate)
			continue
		}
		key := canonical(candidate)
		if r.detectCycles && slices.Contains(r.active, key) {
			_ = rc.Close()
			return &CyclicIncludeError{
				Target: target,
				From:   from,
				Line:   line,
				Chain:  append(slices.Clone(r.active), key),
			}
		}
		r.logger.Debug("include resolved", "target", target, "path", candidate, "from", from, "line", line)

		r.sources = append(r.sources, candidate)
		r.active = append(r.active, key)
		err = r.read(rc, target, depth+1)
		r.active = r.active[:len(r.active)-1]
		_ = rc.Close()
		return err
	}
	r.logger.Debug("include not found", "target", target, "from", from, "line", line)
	return &IncludeNotFoundError{
		Target:     target,
		From:       from,
		Line:       line,
		SearchPath: slices.Clone(r.searchPath),
	}
}

// includeTarget returns the include target if line is a directive.
func includeTarget(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, directive)
	if !ok || rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// canonical keys a path for cycle detection.
func canonical(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
