package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/libdeploy/internal/domain/bundle"
	"github.com/oshokin/libdeploy/internal/service/deploy"
)

func newDeployCommand() *cobra.Command {
	var (
		libraries         []string
		skipInstanceCheck bool
	)

	command := &cobra.Command{
		Use:   "deploy",
		Short: "Extract the bundle if needed, then load the named libraries.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signalContext()
			defer stop()

			return deploy.Run(ctx, &deploy.Options{
				ConfigPath:        configPath,
				Libraries:         libraries,
				SkipInstanceCheck: skipInstanceCheck,
			})
		},
	}

	command.Flags().StringSliceVarP(&libraries, "load", "l", nil, "libraries to load after deployment, in order")
	command.Flags().BoolVar(&skipInstanceCheck, "no-instance-check", false, "do not refuse to run next to another libdeploy")

	return command
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report whether the deployed bundle is complete and current.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			state, err := deploy.Check(ctx, &deploy.Options{ConfigPath: configPath})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), state)

			if state != bundle.StateValid {
				return deploy.ErrNotDeployed
			}

			return nil
		},
	}
}

func newPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the resolved library directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			path, err := deploy.Path(ctx, &deploy.Options{ConfigPath: configPath})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)

			return nil
		},
	}
}
