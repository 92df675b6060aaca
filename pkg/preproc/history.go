package preproc

import (
	"fmt"
	"strings"
)

// Action tags a preprocessing event.
type Action int

// Preprocessing actions.
const (
	// Start marks entering a file.
	Start Action = iota
	// Restart marks resuming a file after one of its includes ended.
	Restart
	// End marks leaving a file.
	End
	// Include marks an include directive in the current file.
	Include
)

var actionNames = map[Action]string{
	Start:   "start",
	Restart: "restart",
	End:     "end",
	Include: "include",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction is the inverse of Action.String.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown preprocessing action %q", s)
}

// Event is one preprocessing record.
type Event struct {
	// ConcatLine is the number of lines in the concatenated program when
	// the event was recorded.
	ConcatLine int
	// Line is the line number in the file being read. For Start it is 0,
	// for End the last line read, for Include the line before the
	// directive and for Restart the directive's own line.
	Line int
	// Action tags the event.
	Action Action
	// Path is the file entered, left or resumed, or the include target.
	Path string
}

func (e Event) String() string {
	return fmt.Sprintf("(%d, %d, %s, %s)", e.ConcatLine, e.Line, e.Action, e.Path)
}

// Frame is a file and line in original source.
type Frame struct {
	Path string
	Line int
}

// History is the ordered event log of one preprocessing run. It is only
// appended to while reading and never modified afterwards.
type History []Event

// IncludeStack returns the chain of files and lines leading to line
// target of the concatenated program, outermost first. Each enclosing
// frame gives the line of its include directive; the last frame is the
// original location of target. It returns nil when
// target is not covered by the history.
func (h History) IncludeStack(target int) []Frame {
	if target < 1 {
		return nil
	}
	var result []Frame
	file := ""
	fileStart, concatStart := -1, -1
	for _, e := range h {
		if target <= e.ConcatLine {
			return append(result, Frame{Path: file, Line: fileStart + target - concatStart})
		}
		switch e.Action {
		case Start, Restart:
			file = e.Path
			fileStart = e.Line
			concatStart = e.ConcatLine
		case End:
			if len(result) == 0 {
				return nil
			}
			result = result[:len(result)-1]
		case Include:
			result = append(result, Frame{Path: file, Line: e.Line + 1})
		}
	}
	return nil
}

// IncludeTrace renders IncludeStack(target) as
//
//	in file '<path>' at line <n>
//	included from file '<path>' at line <n>
//	...
//
// innermost first, one line per frame.
func (h History) IncludeTrace(target int) (string, error) {
	stack := h.IncludeStack(target)
	if len(stack) == 0 || target < 1 {
		return "", &LineNotFoundError{Line: target}
	}
	var sb strings.Builder
	last := stack[len(stack)-1]
	fmt.Fprintf(&sb, "in file '%s' at line %d\n", last.Path, last.Line)
	for i := len(stack) - 2; i >= 0; i-- {
		fmt.Fprintf(&sb, "included from file '%s' at line %d\n", stack[i].Path, stack[i].Line)
	}
	return sb.String(), nil
}

// LineCount returns the number of lines in the concatenated program the
// history describes.
func (h History) LineCount() int {
	if len(h) == 0 {
		return 0
	}
	return h[len(h)-1].ConcatLine
}

// Validate checks that h could have been produced by a preprocessing
// run: offsets never decrease, every include is followed by the start of
// its target, every end matches the innermost open file, and a file is
// restarted right after each of its includes ends.
func (h History) Validate() error {
	var open []string
	pending := ""
	resuming := false
	prev := 0
	for i, e := range h {
		if e.ConcatLine < prev {
			return fmt.Errorf("%w: event %d: offset %d after %d", ErrMalformedHistory, i, e.ConcatLine, prev)
		}
		prev = e.ConcatLine
		if resuming && e.Action != Restart {
			return fmt.Errorf("%w: event %d: expected restart, got %s", ErrMalformedHistory, i, e.Action)
		}
		if pending != "" && e.Action != Start {
			return fmt.Errorf("%w: event %d: expected start of %q, got %s", ErrMalformedHistory, i, pending, e.Action)
		}
		switch e.Action {
		case Start:
			if len(open) > 0 && pending == "" {
				return fmt.Errorf("%w: event %d: start of %q without include", ErrMalformedHistory, i, e.Path)
			}
			if pending != "" && e.Path != pending {
				return fmt.Errorf("%w: event %d: start of %q, include was %q", ErrMalformedHistory, i, e.Path, pending)
			}
			pending = ""
			open = append(open, e.Path)
		case Include:
			if len(open) == 0 {
				return fmt.Errorf("%w: event %d: include outside any file", ErrMalformedHistory, i)
			}
			pending = e.Path
		case End:
			if len(open) == 0 || open[len(open)-1] != e.Path {
				return fmt.Errorf("%w: event %d: end of %q does not match open file", ErrMalformedHistory, i, e.Path)
			}
			open = open[:len(open)-1]
			resuming = len(open) > 0
		case Restart:
			if !resuming || open[len(open)-1] != e.Path {
				return fmt.Errorf("%w: event %d: unexpected restart of %q", ErrMalformedHistory, i, e.Path)
			}
			resuming = false
		default:
			return fmt.Errorf("%w: event %d: %s", ErrMalformedHistory, i, e.Action)
		}
	}
	if len(open) > 0 || pending != "" {
		return fmt.Errorf("%w: history ends inside %v", ErrMalformedHistory, open)
	}
	return nil
}
