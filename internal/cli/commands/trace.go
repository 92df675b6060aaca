package commands

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/stanfront/pkg/preproc"
)

// historySource names where a history comes from: a file that is
// preprocessed now, or a recorded run.
type historySource struct {
	runID  string
	latest bool
}

func (s *historySource) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.runID, "run", "", "Use the history of a recorded run instead of reading files")
	cmd.Flags().BoolVar(&s.latest, "latest", false, "Use the latest recorded run of <file> instead of reading files")
	cmd.MarkFlagsMutuallyExclusive("run", "latest")
}

// load returns the history selected by the flags. file is empty when
// --run is given.
func (s *historySource) load(ctx context.Context, c *CommandContext, file string) (preproc.History, error) {
	if s.runID == "" && !s.latest {
		prog, err := c.ReadFile(file)
		if err != nil {
			return nil, err
		}
		return prog.History(), nil
	}

	store, err := c.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	id := s.runID
	if s.latest {
		run, err := store.LatestRun(ctx, file)
		if err != nil {
			return nil, err
		}
		id = run.ID
	}
	return store.LoadHistory(ctx, id)
}

// splitArgs separates the optional file argument from the trailing line
// argument: with --run only the line is given.
func (s *historySource) splitArgs(args []string) (file, line string, err error) {
	switch {
	case s.runID != "" && len(args) == 1:
		return "", args[0], nil
	case s.runID == "" && len(args) == 2:
		return args[0], args[1], nil
	case s.runID != "":
		return "", "", fmt.Errorf("with --run, give only <line>")
	default:
		return "", "", fmt.Errorf("expected <file> <line>")
	}
}

// frameJSON is the JSON form of a frame.
type frameJSON struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

type traceJSON struct {
	Line   int         `json:"line"`
	Frames []frameJSON `json:"frames"`
	Trace  string      `json:"trace"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand() *cobra.Command {
	var src historySource

	cmd := &cobra.Command{
		Use:   "trace [<file>] <line>",
		Short: "Show where a line of the preprocessed program came from",
		Long: `Map a line number of the preprocessed program back to the file and line
it was read from, followed by the chain of includes that pulled that file
in, innermost first.`,
		Example: `  stanfront trace model.stan 42
  stanfront trace --run 0b6c0a7e-1f3a-4c53-a1d9-8f2c6ad1e9b4 42
  stanfront trace --latest model.stan 42`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, &src, args)
		},
	}
	src.addFlags(cmd)
	return cmd
}

func runTrace(cmd *cobra.Command, src *historySource, args []string) error {
	c := NewCommandContext(cmd)
	file, lineArg, err := src.splitArgs(args)
	if err != nil {
		return err
	}
	line, err := parseLine(lineArg)
	if err != nil {
		return err
	}

	h, err := src.load(cmd.Context(), c, file)
	if err != nil {
		return err
	}

	trace, err := h.IncludeTrace(line)
	if err != nil {
		return err
	}

	r := c.Renderer
	if r.IsJSON() {
		return r.JSON(traceJSON{Line: line, Frames: framesJSON(h.IncludeStack(line)), Trace: trace})
	}
	r.Printf("%s", trace)
	return nil
}

// NewStackCommand creates the stack command.
func NewStackCommand() *cobra.Command {
	var src historySource

	cmd := &cobra.Command{
		Use:   "stack [<file>] <line>",
		Short: "Show the include stack of a line as a table",
		Long: `Show every frame leading to a line of the preprocessed program, outermost
first. Enclosing frames give the line of the include directive; the last
frame is the line's original location.`,
		Example: `  stanfront stack model.stan 42`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStack(cmd, &src, args)
		},
	}
	src.addFlags(cmd)
	return cmd
}

func runStack(cmd *cobra.Command, src *historySource, args []string) error {
	c := NewCommandContext(cmd)
	file, lineArg, err := src.splitArgs(args)
	if err != nil {
		return err
	}
	line, err := parseLine(lineArg)
	if err != nil {
		return err
	}

	h, err := src.load(cmd.Context(), c, file)
	if err != nil {
		return err
	}

	stack := h.IncludeStack(line)
	if len(stack) == 0 {
		return &preproc.LineNotFoundError{Line: line}
	}

	r := c.Renderer
	if r.IsJSON() {
		return r.JSON(framesJSON(stack))
	}

	rows := make([]table.Row, len(stack))
	for i, f := range stack {
		rows[i] = table.Row{i, r.Styles().Path.Render(f.Path), f.Line}
	}
	r.Table(table.Row{"Depth", "File", "Line"}, rows)
	return nil
}

func framesJSON(stack []preproc.Frame) []frameJSON {
	out := make([]frameJSON, len(stack))
	for i, f := range stack {
		out[i] = frameJSON{Path: f.Path, Line: f.Line}
	}
	return out
}
