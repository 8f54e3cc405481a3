package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/gxo-labs/logguard/internal/settings"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or change the global default log size",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the global default log size in MB",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := settings.NewFileStore(afero.NewOsFs(), a.settingsPath(), a.logger())
				if err != nil {
					return withCode(ExitFailure, err)
				}
				fmt.Fprintf(a.stdout, "%d\n", store.GlobalDefaultMB())
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <MB>",
			Short: "Set the global default log size in MB (0 or less disables it)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := settings.NewFileStore(afero.NewOsFs(), a.settingsPath(), a.logger())
				if err != nil {
					return withCode(ExitFailure, err)
				}
				_, err = settings.ApplyDefaultLogSize(store, args[0])
				fmt.Fprintf(a.stdout, "global default log size: %d MB (%s)\n", store.GlobalDefaultMB(), store.Path())
				if err != nil {
					return withCode(ExitFailure, err)
				}
				return nil
			},
		},
	)
	return cmd
}
