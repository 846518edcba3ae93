package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nholik/probe-sentinel/internal/transition"
	"github.com/nholik/probe-sentinel/internal/verdict"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

const (
	slackMaxBlocks = 50
	// header block + context block in each message
	slackReservedBlocks = 2
	slackMaxTransitions = slackMaxBlocks - slackReservedBlocks
	// Slack rejects section fields longer than 2000 characters.
	slackMessageExcerpt = 1500
)

// SlackNotifier posts verdict transitions to a Slack incoming webhook.
type SlackNotifier struct {
	logger     zerolog.Logger
	webhookURL string
	timing     timingConfig
	poster     *httpPoster
}

// SlackOption customizes SlackNotifier behavior.
type SlackOption func(*SlackNotifier)

// WithSlackTiming overrides timing parameters (primarily for testing).
func WithSlackTiming(rateInterval time.Duration, rateBurst int, backoffInitial, backoffMax, backoffMaxElapsed time.Duration) SlackOption {
	return func(s *SlackNotifier) {
		s.timing.rateInterval = rateInterval
		s.timing.rateBurst = rateBurst
		s.timing.backoffInitial = backoffInitial
		s.timing.backoffMax = backoffMax
		s.timing.backoffMaxElapsed = backoffMaxElapsed
	}
}

// NewSlackNotifier creates a Slack notifier or a noop notifier when the webhook is empty.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...SlackOption) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "slack webhook not configured; notifications disabled")
	}

	notifier := &SlackNotifier{
		logger:     logger,
		webhookURL: webhookURL,
		timing:     defaultTiming,
	}

	for _, opt := range opts {
		opt(notifier)
	}

	notifier.poster = newHTTPPoster(logger, "slack", webhookURL, "application/json", notifier.timing)

	return notifier
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, suite string, transitions []transition.CheckTransition) error {
	if len(transitions) == 0 {
		return nil
	}
	suiteName := suiteLabel(suite)
	if err := n.poster.waitTurn(ctx, suiteName); err != nil {
		return err
	}

	messages := buildSlackMessages(suiteName, transitions)
	for i, message := range messages {
		payload, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("marshal slack payload: %w", err)
		}
		start := i * slackMaxTransitions
		end := min(start+slackMaxTransitions, len(transitions))
		d := newDelivery(suiteName, transitions[start:end], payload)
		d.part, d.parts = i+1, len(messages)
		if err := n.poster.deliver(ctx, d); err != nil {
			return err
		}
	}

	n.logger.Debug().
		Str("suite", suiteName).
		Int("transitions", len(transitions)).
		Int("messages", len(messages)).
		Msg("slack notification sent")

	return nil
}

func (n *SlackNotifier) postOnce(ctx context.Context, payload []byte) error {
	return n.poster.postOnce(ctx, payload)
}

func buildSlackMessages(suite string, transitions []transition.CheckTransition) []slack.WebhookMessage {
	if len(transitions) == 0 {
		return nil
	}

	total := len(transitions)
	chunkTotal := (total + slackMaxTransitions - 1) / slackMaxTransitions
	messages := make([]slack.WebhookMessage, 0, chunkTotal)

	for i := 0; i < total; i += slackMaxTransitions {
		end := min(i+slackMaxTransitions, total)
		partIndex := (i / slackMaxTransitions) + 1
		messages = append(messages, buildSlackMessage(suite, transitions[i:end], total, partIndex, chunkTotal))
	}
	return messages
}

func buildSlackMessage(suite string, transitions []transition.CheckTransition, total int, partIndex int, partTotal int) slack.WebhookMessage {
	failing := 0
	for _, change := range transitions {
		if change.CurrentStatus == verdict.StatusFail {
			failing++
		}
	}

	summary := fmt.Sprintf("Suite %s: %d check transition(s)", suite, total)
	if partTotal > 1 {
		summary = fmt.Sprintf("%s (part %d/%d)", summary, partIndex, partTotal)
	}
	header := slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", summary, false, false))
	contextElements := []slack.MixedElement{
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Suite: *%s*", suite), false, false),
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Now failing: %d", failing), false, false),
	}
	if partTotal > 1 {
		contextElements = append(contextElements, slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Batch: %d/%d", partIndex, partTotal), false, false))
	}
	context := slack.NewContextBlock("", contextElements...)

	blocks := []slack.Block{header, context}
	for _, change := range transitions {
		blocks = append(blocks, buildTransitionBlock(change))
	}

	blockSet := slack.Blocks{BlockSet: blocks}
	return slack.WebhookMessage{
		Text:   summary,
		Blocks: &blockSet,
	}
}

func buildTransitionBlock(change transition.CheckTransition) slack.Block {
	title := fmt.Sprintf("%s *%s*: `%s` → `%s`", statusEmoji(change.CurrentStatus), change.Name, statusLabel(change.PreviousStatus), statusLabel(change.CurrentStatus))
	text := slack.NewTextBlockObject("mrkdwn", title, false, false)

	fields := make([]*slack.TextBlockObject, 0, 2)
	if change.Description != "" {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", "*Check:*\n"+change.Description, false, false))
	}
	if change.Message != "" {
		detail := verdict.Truncate(change.Message, slackMessageExcerpt)
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", "*Detail:*\n```"+detail+"```", false, false))
	}
	if len(fields) == 0 {
		fields = nil
	}

	return slack.NewSectionBlock(text, fields, nil)
}

func statusEmoji(status verdict.Status) string {
	switch status {
	case verdict.StatusPass:
		return ":white_check_mark:"
	case verdict.StatusFail:
		return ":x:"
	default:
		return ":fast_forward:"
	}
}

func statusLabel(status verdict.Status) string {
	if status == "" {
		return "UNKNOWN"
	}
	return string(status)
}
