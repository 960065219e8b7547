package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gluufederation/shibwatcher/pkg/version"
)

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of shibwatcher.",
		Long:  "Print the version of shibwatcher, as a git commit hash.",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shibwatcher version: %s\n", version.Version)
		},
	}
}
