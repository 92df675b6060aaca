package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type eventJSON struct {
	ConcatLine int    `json:"concat_line"`
	Line       int    `json:"line"`
	Action     string `json:"action"`
	Path       string `json:"path"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var src historySource

	cmd := &cobra.Command{
		Use:   "history [<file>]",
		Short: "Show the include events of a preprocessing run",
		Long: `List the start, include, end and restart events recorded while
preprocessing a program. Each event carries the number of lines of the
concatenated program before it and the line within its own file.`,
		Example: `  stanfront history model.stan
  stanfront history --run 0b6c0a7e-1f3a-4c53-a1d9-8f2c6ad1e9b4`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewCommandContext(cmd)

			var file string
			switch {
			case src.runID != "" && len(args) == 0:
			case src.runID == "" && len(args) == 1:
				file = args[0]
			case src.runID != "":
				return fmt.Errorf("with --run, give no <file>")
			default:
				return fmt.Errorf("expected <file>")
			}

			h, err := src.load(cmd.Context(), c, file)
			if err != nil {
				return err
			}

			r := c.Renderer
			if r.IsJSON() {
				events := make([]eventJSON, len(h))
				for i, e := range h {
					events[i] = eventJSON{ConcatLine: e.ConcatLine, Line: e.Line, Action: e.Action.String(), Path: e.Path}
				}
				return r.JSON(events)
			}

			rows := make([]table.Row, len(h))
			for i, e := range h {
				rows[i] = table.Row{i, e.ConcatLine, e.Line, e.Action.String(), r.Styles().Path.Render(e.Path)}
			}
			r.Table(table.Row{"#", "Concat Line", "Line", "Action", "Path"}, rows)
			r.Println(r.Muted(fmt.Sprintf("%d events, %d lines", len(h), h.LineCount())))
			return nil
		},
	}
	src.addFlags(cmd)
	return cmd
}
