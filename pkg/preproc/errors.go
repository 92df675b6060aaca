package preproc

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for errors.Is.
var (
	ErrIncludeNotFound  = errors.New("include file not found")
	ErrLineNotFound     = errors.New("line not found")
	ErrCyclicInclude    = errors.New("cyclic include")
	ErrIncludeDepth     = errors.New("include depth exceeded")
	ErrMalformedHistory = errors.New("malformed history")
)

// IncludeNotFoundError is returned when no search path directory yields
// a readable file for an include target.
type IncludeNotFoundError struct {
	Target     string   // include target as written
	From       string   // file containing the directive
	Line       int      // line of the directive in From
	SearchPath []string // directories tried, in order
}

func (e *IncludeNotFoundError) Error() string {
	return fmt.Sprintf("%s:%d: could not find include file '%s' in search path [%s]",
		e.From, e.Line, e.Target, strings.Join(e.SearchPath, ", "))
}

// Is makes errors.Is(err, ErrIncludeNotFound) hold.
func (e *IncludeNotFoundError) Is(target error) bool { return target == ErrIncludeNotFound }

// LineNotFoundError is returned by IncludeTrace for a line number that no
// recorded segment of the history covers.
type LineNotFoundError struct {
	Line int
}

func (e *LineNotFoundError) Error() string {
	return fmt.Sprintf("target line number %d not found", e.Line)
}

// Is makes errors.Is(err, ErrLineNotFound) hold.
func (e *LineNotFoundError) Is(target error) bool { return target == ErrLineNotFound }

// CyclicIncludeError is returned when a file includes itself, directly or
// through other files.
type CyclicIncludeError struct {
	Target string   // include target as written
	From   string   // file containing the directive
	Line   int      // line of the directive in From
	Chain  []string // resolved paths from the root to the repeated file
}

func (e *CyclicIncludeError) Error() string {
	return fmt.Sprintf("%s:%d: cyclic include of '%s': %s",
		e.From, e.Line, e.Target, strings.Join(e.Chain, " -> "))
}

// Is makes errors.Is(err, ErrCyclicInclude) hold.
func (e *CyclicIncludeError) Is(target error) bool { return target == ErrCyclicInclude }

// IncludeDepthError is returned when includes nest deeper than the
// configured maximum.
type IncludeDepthError struct {
	Target string
	From   string
	Line   int
	Max    int
}

func (e *IncludeDepthError) Error() string {
	return fmt.Sprintf("%s:%d: including '%s' exceeds maximum include depth %d",
		e.From, e.Line, e.Target, e.Max)
}

// Is makes errors.Is(err, ErrIncludeDepth) hold.
func (e *IncludeDepthError) Is(target error) bool { return target == ErrIncludeDepth }
