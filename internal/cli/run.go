package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nholik/probe-sentinel/internal/report"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		only    []string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the suite once and report verdicts",
		Long:  "Run every check once, print one verdict per check and exit 1 if any check failed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := loadDefinitions(a.cfg)
			if err != nil {
				return err
			}
			suite, err := buildSuite(a.cfg, a.logger, defs).Select(only...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result := suite.Run(ctx)
			if jsonOut {
				err = report.JSON(a.stdout, result)
			} else {
				err = report.Text(a.stdout, "probe-sentinel", result)
			}
			if err != nil {
				return err
			}

			if code := result.ExitCode(); code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&only, "only", nil, "Run only the named checks (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
