package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCommand returns the `version` subcommand.
// bundleVersion is printed next to the build metadata so that support can
// tell which library bundle a binary expects.
func NewCommand(bundleVersion func() int) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()

			_, _ = fmt.Fprintln(out, Get())

			if bundleVersion != nil {
				_, _ = fmt.Fprintf(out, "bundle version: %d\n", bundleVersion())
			}
		},
	}
}
