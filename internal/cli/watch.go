package cli

import (
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nholik/probe-sentinel/internal/check"
	"github.com/nholik/probe-sentinel/internal/coordinator"
	"github.com/nholik/probe-sentinel/internal/healthcheck"
	"github.com/nholik/probe-sentinel/internal/metrics"
	"github.com/nholik/probe-sentinel/internal/notify"
	"github.com/nholik/probe-sentinel/internal/runner"
	"github.com/nholik/probe-sentinel/internal/server"
	"github.com/nholik/probe-sentinel/internal/state"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the suite periodically and report verdict changes",
		Long: "Run the suite every poll interval, persist the last verdict per check, notify on " +
			"verdict transitions and serve /healthz, /readyz and /metrics. The suite file is " +
			"reloaded when it changes.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.logger
			cfg := a.cfg

			load := func() (*check.Suite, string, error) {
				defs, err := loadDefinitions(cfg)
				if err != nil {
					return nil, "", err
				}
				fingerprint, err := check.Fingerprint(defs)
				if err != nil {
					return nil, "", err
				}
				return buildSuite(cfg, logger, defs), fingerprint, nil
			}
			suite, fingerprint, err := load()
			if err != nil {
				return err
			}

			notifier, err := notify.New(logger, notify.Settings{
				SlackWebhookURL: cfg.SlackWebhookURL,
				WebhookURL:      cfg.WebhookURL,
				WebhookTemplate: cfg.WebhookTemplate,
				DryRun:          cfg.NotifyDryRun,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tracker := healthcheck.NewTracker()
			collector := metrics.New()
			if err := server.Start(ctx, logger, server.Options{
				HealthPort:   cfg.HealthPort,
				MetricsPort:  cfg.MetricsPort,
				PollInterval: cfg.PollInterval,
				Tracker:      tracker,
				Metrics:      collector,
			}); err != nil {
				return err
			}

			opts := []runner.Option{
				runner.WithSuite(cfg.SuiteName, suite, fingerprint),
				runner.WithNotifier(notifier),
				runner.WithMetrics(collector),
				runner.WithTracker(tracker),
			}
			if cfg.StatePath != "" {
				opts = append(opts, runner.WithStateStore(state.NewFileStore(cfg.StatePath, logger), &sync.Mutex{}))
			}
			r := runner.New(logger, cfg.PollInterval, opts...)

			logger.Info().
				Str("suite", cfg.SuiteName).
				Int("checks", len(suite.Checks())).
				Dur("poll_interval", cfg.PollInterval).
				Str("fingerprint", fingerprint).
				Msg("probe-sentinel watching")

			return coordinator.New(logger, r, load, suitePath(cfg)).Run(ctx)
		},
	}
}
