package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/stanfront/internal/state"
)

// preprocessResult is the JSON form of one preprocessed program.
type preprocessResult struct {
	File    string   `json:"file"`
	Lines   int      `json:"lines"`
	Sources []string `json:"sources"`
	Output  string   `json:"output,omitempty"`
	RunID   string   `json:"run_id,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// NewPreprocessCommand creates the preprocess command.
func NewPreprocessCommand() *cobra.Command {
	var (
		outDir string
		record bool
		jobs   int
	)

	cmd := &cobra.Command{
		Use:   "preprocess <file>...",
		Short: "Expand #include directives into a single program",
		Long: `Read each program, replace every #include line with the contents of the
included file found on the search path, and write the concatenated result.

With a single file and no --out-dir the program is written to stdout.
Several files are processed concurrently and require --out-dir.

With --record the include history of each run is saved to the state
database so that 'trace --run' can map lines back later.`,
		Example: `  # Expand a model, searching ./include for included files
  stanfront preprocess -I include model.stan

  # Expand several models into build/ and record their histories
  stanfront preprocess --out-dir build --record a.stan b.stan`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreprocess(cmd, args, outDir, record, jobs)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "d", "", "Directory to write preprocessed programs to")
	cmd.Flags().BoolVar(&record, "record", false, "Save the include history to the state database")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 4, "Number of programs to preprocess at once")

	return cmd
}

func runPreprocess(cmd *cobra.Command, files []string, outDir string, record bool, jobs int) error {
	c := NewCommandContext(cmd)
	r := c.Renderer
	ctx := cmd.Context()

	if len(files) > 1 && outDir == "" {
		return fmt.Errorf("preprocessing %d files requires --out-dir", len(files))
	}
	if outDir != "" {
		if err := checkDistinctNames(files); err != nil {
			return err
		}
		if err := os.MkdirAll(outDir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	var store state.Store
	if record {
		s, err := c.OpenStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		store = s
	}

	// Each goroutine writes only its own slot.
	results := make([]preprocessResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, file := range files {
		g.Go(func() error {
			res, err := preprocessOne(gctx, c, store, file, outDir)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if r.IsJSON() {
		if len(files) == 1 {
			return r.JSON(results[0])
		}
		return r.JSON(results)
	}

	for _, res := range results {
		if res.Output == "" {
			r.Printf("%s", res.Text)
			continue
		}
		msg := fmt.Sprintf("%s -> %s (%d lines, %d files)", res.File, res.Output, res.Lines, len(res.Sources))
		if res.RunID != "" {
			msg += " " + r.Muted("run "+res.RunID)
		}
		r.Success(msg)
	}
	if outDir == "" && record && results[0].RunID != "" {
		_, _ = fmt.Fprintf(r.ErrWriter(), "recorded run %s\n", results[0].RunID)
	}
	return nil
}

func preprocessOne(ctx context.Context, c *CommandContext, store state.Store, file, outDir string) (preprocessResult, error) {
	prog, err := c.ReadFile(file)
	if err != nil {
		return preprocessResult{}, err
	}

	res := preprocessResult{
		File:    file,
		Lines:   prog.LineCount(),
		Sources: prog.Sources(),
	}

	if outDir == "" {
		res.Text = prog.Text()
	} else {
		res.Output = filepath.Join(outDir, filepath.Base(file))
		if err := os.WriteFile(res.Output, []byte(prog.Text()), 0o600); err != nil {
			return preprocessResult{}, fmt.Errorf("failed to write %s: %w", res.Output, err)
		}
	}

	if store != nil {
		run, err := store.SaveRun(ctx, file, c.Cfg.SearchPath, prog.History(), prog.Sources())
		if err != nil {
			return preprocessResult{}, fmt.Errorf("failed to record %s: %w", file, err)
		}
		res.RunID = run.ID
	}

	c.Logger.Debug("preprocessed", "file", file, "lines", res.Lines, "sources", len(res.Sources))
	return res, nil
}

// checkDistinctNames rejects inputs that would overwrite each other in
// the output directory.
func checkDistinctNames(files []string) error {
	seen := make(map[string]string, len(files))
	for _, f := range files {
		base := filepath.Base(f)
		if prev, ok := seen[base]; ok {
			return fmt.Errorf("%s and %s would both be written as %s", prev, f, base)
		}
		seen[base] = f
	}
	return nil
}
