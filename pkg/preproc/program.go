package preproc

import (
	"bytes"
	"slices"
)

// Program is the result of a preprocessing run.
type Program struct {
	name    string
	text    string
	stream  *bytes.Buffer
	history History
	sources []string
}

// Name returns the name given to the root program.
func (p *Program) Name() string { return p.name }

// Stream returns the concatenated program as a buffer the caller may
// consume. Reads from it do not affect Text or any other method.
func (p *Program) Stream() *bytes.Buffer { return p.stream }

// Text returns the full concatenated program.
func (p *Program) Text() string { return p.text }

// LineCount returns the number of lines in the concatenated program.
func (p *Program) LineCount() int { return p.history.LineCount() }

// History returns a copy of the run's event log.
func (p *Program) History() History { return slices.Clone(p.history) }

// Sources returns the paths of every file opened during the run in open
// order: the root first when it was read with ReadFile, then each include
// as resolved against the search path.
func (p *Program) Sources() []string { return slices.Clone(p.sources) }

// IncludeStack is History.IncludeStack on the run's history.
func (p *Program) IncludeStack(line int) []Frame { return p.history.IncludeStack(line) }

// IncludeTrace is History.IncludeTrace on the run's history.
func (p *Program) IncludeTrace(line int) (string, error) { return p.history.IncludeTrace(line) }
