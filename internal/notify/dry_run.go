package notify

import (
	"context"

	"github.com/nholik/probe-sentinel/internal/transition"
	"github.com/nholik/probe-sentinel/internal/verdict"
	"github.com/rs/zerolog"
)

// DryRunNotifier logs what would be delivered and never calls the wrapped notifier.
type DryRunNotifier struct {
	logger zerolog.Logger
	inner  Notifier
}

// NewDryRunNotifier wraps inner, which may be nil when no channel is configured.
func NewDryRunNotifier(logger zerolog.Logger, inner Notifier) *DryRunNotifier {
	return &DryRunNotifier{logger: logger, inner: inner}
}

// Notify implements Notifier.
func (n *DryRunNotifier) Notify(_ context.Context, suite string, transitions []transition.CheckTransition) error {
	if len(transitions) == 0 {
		return nil
	}
	suiteName := suiteLabel(suite)

	var failing, recovered, skipped int
	for _, change := range transitions {
		event := n.logger.Info()
		switch {
		case change.CurrentStatus == verdict.StatusFail:
			failing++
			event = n.logger.Error()
		case change.Recovered():
			recovered++
		case change.CurrentStatus == verdict.StatusSkip:
			skipped++
			event = n.logger.Warn()
		}
		event.
			Str("suite", suiteName).
			Str("check", change.Name).
			Str("previous_status", statusLabel(change.PreviousStatus)).
			Str("current_status", statusLabel(change.CurrentStatus)).
			Str("detail", verdict.Truncate(change.Message, verdict.BodyExcerpt)).
			Msg("[DRY-RUN] would notify")
	}

	n.logger.Info().
		Str("suite", suiteName).
		Strs("channels", channelNames(n.inner)).
		Int("failing", failing).
		Int("recovered", recovered).
		Int("skipped", skipped).
		Msg("[DRY-RUN] notification suppressed")
	return nil
}

// channelNames lists the delivery channels behind a notifier.
func channelNames(notifier Notifier) []string {
	switch n := notifier.(type) {
	case *SlackNotifier:
		return []string{"slack"}
	case *WebhookNotifier:
		return []string{"webhook"}
	case *MultiNotifier:
		var names []string
		for _, inner := range n.notifiers {
			names = append(names, channelNames(inner)...)
		}
		return names
	default:
		return []string{}
	}
}
