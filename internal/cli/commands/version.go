package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display stanfront version and build information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "stanfront v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Include preprocessor and declaration model for Stan programs (%s)\n", runtime.Version())
		},
	}
}
