// Package commands implements the stanfront subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/stanfront/internal/cli/output"
	"github.com/leapstack-labs/stanfront/internal/config"
	"github.com/leapstack-labs/stanfront/internal/state"
	"github.com/leapstack-labs/stanfront/pkg/preproc"
)

// CommandContext holds the shared dependencies of a command run.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the config, logger and renderer the root
// command stored on cmd's context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.GetConfig(ctx)

	r, ok := output.Lookup(ctx)
	if !ok {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output))
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(ctx),
		Renderer: r,
	}
}

// ReadOptions returns the preprocessor options the configuration selects.
func (c *CommandContext) ReadOptions() []preproc.Option {
	return []preproc.Option{
		preproc.WithLogger(c.Logger),
		preproc.WithCycleDetection(c.Cfg.DetectCycles),
		preproc.WithMaxDepth(c.Cfg.MaxDepth),
	}
}

// ReadFile preprocesses path with the configured search path and options.
func (c *CommandContext) ReadFile(path string) (*preproc.Program, error) {
	prog, err := preproc.ReadFile(path, c.Cfg.SearchPath, c.ReadOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess %s: %w", path, err)
	}
	return prog, nil
}

// OpenStore opens and migrates the state store. The caller closes it.
func (c *CommandContext) OpenStore(ctx context.Context) (*state.SQLiteStore, error) {
	store := state.NewSQLiteStore(c.Logger)
	if err := store.OpenAndMigrate(ctx, c.Cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return store, nil
}

// parseLine parses a 1-based line number argument.
func parseLine(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid line number %q: must be a positive integer", arg)
	}
	return n, nil
}
