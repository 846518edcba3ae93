package notify

import (
	"context"

	"github.com/nholik/probe-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

// NoopNotifier drops notifications.
type NoopNotifier struct {
	logger zerolog.Logger
	reason string
}

// NewNoop returns a notifier that logs its reason once and does nothing thereafter.
func NewNoop(logger zerolog.Logger, reason string) *NoopNotifier {
	if reason != "" {
		logger.Info().Msg(reason)
	}
	return &NoopNotifier{logger: logger, reason: reason}
}

// Notify implements Notifier.
func (n *NoopNotifier) Notify(_ context.Context, suite string, transitions []transition.CheckTransition) error {
	if len(transitions) > 0 {
		n.logger.Debug().
			Str("suite", suiteLabel(suite)).
			Int("transitions", len(transitions)).
			Msg("transitions dropped")
	}
	return nil
}
