package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/stanfront/internal/state"
	"github.com/leapstack-labs/stanfront/internal/watch"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var (
		record   bool
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-run preprocessing whenever an included file changes",
		Long: `Preprocess <file>, then watch it and every file it includes. On each change
the program is preprocessed again and the line count, or the error, is
printed. Directories on the search path are watched too, so an include
that is missing becomes available as soon as the file is created.

Stop with Ctrl-C.`,
		Example: `  stanfront watch -I include model.stan
  stanfront watch --record model.stan`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0], record, debounce)
		},
	}

	cmd.Flags().BoolVar(&record, "record", false, "Save the history of every successful run")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before re-running after a change")
	return cmd
}

func runWatch(cmd *cobra.Command, file string, record bool, debounce time.Duration) error {
	c := NewCommandContext(cmd)
	r := c.Renderer
	ctx := cmd.Context()

	var store state.Store
	if record {
		s, err := c.OpenStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		store = s
	}

	build := func(ctx context.Context) ([]string, error) {
		prog, err := c.ReadFile(file)
		if err != nil {
			r.Error(err.Error())
			// Keep watching the root so fixing it triggers a rebuild.
			return []string{file}, err
		}

		msg := fmt.Sprintf("%s: %d lines from %d files", file, prog.LineCount(), len(prog.Sources()))
		if store != nil {
			run, err := store.SaveRun(ctx, file, c.Cfg.SearchPath, prog.History(), prog.Sources())
			if err != nil {
				r.Error(err.Error())
			} else {
				msg += " " + r.Muted("run "+run.ID)
			}
		}
		r.Success(msg)
		return prog.Sources(), nil
	}

	c.Logger.Info("watching", "file", file, "search_path", c.Cfg.SearchPath)
	return watch.Run(ctx, build, watch.Options{
		Debounce: debounce,
		Dirs:     c.Cfg.SearchPath,
		Logger:   c.Logger,
	})
}
