package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/libdeploy/internal/service/pack"
)

func newPackCommand() *cobra.Command {
	var variant string

	command := &cobra.Command{
		Use:   "pack [source-dir] [output-archive]",
		Short: "Build a bundle archive from a directory of libraries.",
		Long: `Packs every file of source-dir under the variant directory of a tar archive.
The output extension selects compression: .tar.zst, .tar.gz or .tar.
Without output-archive the archive path from the settings is used.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			options := &pack.Options{
				ConfigPath: configPath,
				SourceDir:  args[0],
				Variant:    variant,
			}

			if len(args) > 1 {
				options.Output = args[1]
			}

			return pack.Run(ctx, options)
		},
	}

	command.Flags().StringVar(&variant, "variant", "", "platform variant directory inside the archive (defaults to settings)")

	return command
}
