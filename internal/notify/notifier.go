package notify

import (
	"context"

	"github.com/nholik/probe-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

// Notifier delivers verdict transitions to external systems.
type Notifier interface {
	Notify(ctx context.Context, suite string, transitions []transition.CheckTransition) error
}

// Settings selects the notification channels.
type Settings struct {
	SlackWebhookURL string
	WebhookURL      string
	WebhookTemplate string
	DryRun          bool
}

// New assembles the configured notifiers. Without any channel it returns a noop notifier.
func New(logger zerolog.Logger, settings Settings) (Notifier, error) {
	notifiers := make([]Notifier, 0, 2)
	if settings.SlackWebhookURL != "" {
		notifiers = append(notifiers, NewSlackNotifier(logger, settings.SlackWebhookURL))
	}
	if settings.WebhookURL != "" {
		webhook, err := NewWebhookNotifier(logger, settings.WebhookURL, settings.WebhookTemplate)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, webhook)
	}

	var notifier Notifier
	switch len(notifiers) {
	case 0:
		if !settings.DryRun {
			return NewNoop(logger, "no notification channel configured; notifications disabled"), nil
		}
	case 1:
		notifier = notifiers[0]
	default:
		notifier = NewMultiNotifier(notifiers...)
	}

	if settings.DryRun {
		return NewDryRunNotifier(logger, notifier), nil
	}
	return notifier, nil
}

func suiteLabel(suite string) string {
	if suite == "" {
		return "default"
	}
	return suite
}
