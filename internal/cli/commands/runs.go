package commands

import (
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewRunsCommand creates the runs command and its rm subcommand.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded preprocessing runs",
		Long: `List the runs saved with 'preprocess --record', newest first. A run's id
can be passed to trace, stack and history with --run.`,
		Example: `  stanfront runs
  stanfront runs --limit 5 -o json
  stanfront runs rm 0b6c0a7e-1f3a-4c53-a1d9-8f2c6ad1e9b4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := NewCommandContext(cmd)
			ctx := cmd.Context()

			store, err := c.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}

			r := c.Renderer
			if r.IsJSON() {
				return r.JSON(runs)
			}
			if len(runs) == 0 {
				r.Println(r.Muted("no recorded runs"))
				return nil
			}

			rows := make([]table.Row, len(runs))
			for i, run := range runs {
				rows[i] = table.Row{
					run.ID,
					r.Styles().Path.Render(run.Root),
					run.LineCount,
					strings.Join(run.SearchPath, " "),
					run.CreatedAt.Local().Format(time.DateTime),
				}
			}
			r.Table(table.Row{"ID", "Root", "Lines", "Search Path", "Recorded"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	cmd.AddCommand(newRunsRemoveCommand())
	return cmd
}

func newRunsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Delete recorded runs",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewCommandContext(cmd)
			ctx := cmd.Context()

			store, err := c.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			for _, id := range args {
				if err := store.DeleteRun(ctx, id); err != nil {
					return err
				}
				if !c.Renderer.IsJSON() {
					c.Renderer.Success("deleted run " + id)
				}
			}
			if c.Renderer.IsJSON() {
				return c.Renderer.JSON(map[string][]string{"deleted": args})
			}
			return nil
		},
	}
}
