package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/nholik/probe-sentinel/internal/transition"
)

const httpErrorBodyLimit = 1024

type timingConfig struct {
	timeout           time.Duration
	rateInterval      time.Duration
	rateBurst         int
	backoffMaxElapsed time.Duration
	backoffMax        time.Duration
	backoffInitial    time.Duration
}

var defaultTiming = timingConfig{
	timeout:           10 * time.Second,
	rateInterval:      1 * time.Second,
	rateBurst:         1,
	backoffMaxElapsed: 30 * time.Second,
	backoffMax:        10 * time.Second,
	backoffInitial:    1 * time.Second,
}

// delivery is one rendered payload sent on behalf of a suite. A Slack
// notification split into chunks produces one delivery per chunk.
type delivery struct {
	suite   string
	checks  []string
	part    int
	parts   int
	payload []byte
}

func newDelivery(suite string, transitions []transition.CheckTransition, payload []byte) delivery {
	checks := make([]string, len(transitions))
	for i, change := range transitions {
		checks[i] = change.Name
	}
	return delivery{suite: suite, checks: checks, part: 1, parts: 1, payload: payload}
}

// DeliveryError reports a notification that could not be delivered. The runner
// keeps the covered checks pending so the next cycle tries again.
type DeliveryError struct {
	Channel  string
	Suite    string
	Checks   []string
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery for suite %s (%s) failed after %d attempt(s): %v",
		e.Channel, e.Suite, strings.Join(e.Checks, ", "), e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// httpPoster sends deliveries to one endpoint. Each suite has its own rate
// limiter; 5xx, 429 and transport failures back off and retry.
type httpPoster struct {
	logger      zerolog.Logger
	channel     string
	endpoint    string
	contentType string
	client      *retryablehttp.Client
	timing      timingConfig

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

func newHTTPPoster(logger zerolog.Logger, channel, endpoint, contentType string, timing timingConfig) *httpPoster {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(context.Context, *http.Response, error) (bool, error) {
		return false, nil
	}
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: timing.timeout}

	return &httpPoster{
		logger:      logger.With().Str("channel", channel).Logger(),
		channel:     channel,
		endpoint:    endpoint,
		contentType: contentType,
		client:      client,
		timing:      timing,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// waitTurn blocks until the suite may send another notification.
func (p *httpPoster) waitTurn(ctx context.Context, suite string) error {
	p.limiterMu.Lock()
	limiter, ok := p.limiters[suite]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(p.timing.rateInterval), p.timing.rateBurst)
		p.limiters[suite] = limiter
	}
	p.limiterMu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit for suite %s: %w", p.channel, suite, err)
	}
	return nil
}

func (p *httpPoster) deliver(ctx context.Context, d delivery) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.timing.backoffInitial
	policy.MaxInterval = p.timing.backoffMax
	policy.MaxElapsedTime = p.timing.backoffMaxElapsed
	policy.Reset()

	log := p.logger.With().
		Str("suite", d.suite).
		Strs("checks", d.checks).
		Int("part", d.part).
		Int("parts", d.parts).
		Logger()

	attempts := 0
	fail := func(err error) error {
		return &DeliveryError{Channel: p.channel, Suite: d.suite, Checks: d.checks, Attempts: attempts, Err: err}
	}

	for {
		attempts++
		err := p.postOnce(ctx, d.payload)
		if err == nil {
			log.Debug().Int("attempts", attempts).Msg("notification delivered")
			return nil
		}

		var wait time.Duration
		var throttled *retryAfterError
		var transient *transientError
		switch {
		case errors.As(err, &throttled):
			wait = throttled.Duration
		case errors.As(err, &transient):
			wait = policy.NextBackOff()
			if wait == backoff.Stop {
				return fail(err)
			}
		default:
			return fail(err)
		}

		log.Debug().
			Err(err).
			Int("attempt", attempts).
			Dur("wait", wait).
			Msg("notification delivery failed, retrying")
		if !sleepWithContext(ctx, wait) {
			return fail(ctx.Err())
		}
	}
}

func (p *httpPoster) postOnce(ctx context.Context, payload []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.timing.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", p.channel, err)
	}
	req.Header.Set("Content-Type", p.contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &transientError{err: fmt.Errorf("%s request failed: %w", p.channel, err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, httpErrorBodyLimit))
	bodyText := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		err := fmt.Errorf("%s rate limited: %s", p.channel, resp.Status)
		if wait, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return &retryAfterError{Duration: wait, err: err}
		}
		return &transientError{err: err}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &transientError{err: fmt.Errorf("%s server error: %s", p.channel, resp.Status)}
	case bodyText != "":
		return fmt.Errorf("%s rejected notification: %s (%s)", p.channel, resp.Status, bodyText)
	default:
		return fmt.Errorf("%s rejected notification: %s", p.channel, resp.Status)
	}
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if wait := time.Until(when); wait > 0 {
			return wait, true
		}
	}
	return 0, false
}

func sleepWithContext(ctx context.Context, wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

type retryAfterError struct {
	Duration time.Duration
	err      error
}

func (e *retryAfterError) Error() string {
	return fmt.Sprintf("rate limited; retry after %s", e.Duration)
}

func (e *retryAfterError) Unwrap() error { return e.err }
