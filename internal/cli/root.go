// Package cli wires configuration, the check suite and output into cobra commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nholik/probe-sentinel/internal/config"
	"github.com/nholik/probe-sentinel/internal/logging"
)

// globalFlags override configuration loaded from the environment.
type globalFlags struct {
	LogLevel    string
	SuiteFile   string
	ProjectRoot string
}

func (f *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.SuiteFile, "suite-file", "", "YAML file with additional or overriding checks")
	fs.StringVar(&f.ProjectRoot, "root", "", "Project root that check paths are relative to")
}

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
	stdout io.Writer
}

// exitError ends the process with a specific code without printing anything.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// NewRootCmd creates the root cobra command.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags globalFlags
	a := &app{stdout: stdout}

	cmd := &cobra.Command{
		Use:           "probe-sentinel",
		Short:         "Environment-gated verification probes",
		Long:          "probe-sentinel checks a live inference endpoint, the terraform configuration and the GPU deployment and training scripts, skipping whatever the environment cannot reach.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if flags.LogLevel != "" {
				cfg.LogLevel = flags.LogLevel
			}
			if flags.SuiteFile != "" {
				cfg.SuiteFile = flags.SuiteFile
			}
			if flags.ProjectRoot != "" {
				cfg.ProjectRoot = flags.ProjectRoot
			}
			a.cfg = cfg
			a.logger = logging.NewWriter(stderr, cfg.LogLevel)
			return nil
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.PersistentFlags().SetInterspersed(true)
	flags.register(cmd.PersistentFlags())

	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newListCmd(a))
	cmd.AddCommand(newWatchCmd(a))

	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	cmd := NewRootCmd(os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			return exit.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}
