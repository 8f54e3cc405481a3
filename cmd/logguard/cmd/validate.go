package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/gxo-labs/logguard/internal/config"
	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
)

func newValidateCmd(a *app) *cobra.Command {
	var jobPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a job file without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := a.logger()
			job, err := config.LoadJobFromFile(afero.NewOsFs(), jobPath)
			if err != nil {
				var validationErr *lgerrors.ValidationError
				if errors.As(err, &validationErr) {
					log.Errorf("Job validation failed:\n%s", err)
				} else {
					log.Errorf("Failed to load job: %v", err)
				}
				return withCode(ExitFailure, nil)
			}
			fmt.Fprintf(a.stdout, "Job '%s' is valid (%d tasks)\n", job.Name, len(job.Tasks))
			return nil
		},
	}
	cmd.Flags().StringVar(&jobPath, "job", "", "path to the job YAML file (required)")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}
