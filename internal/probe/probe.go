// Package probe issues single, bounded HTTP requests against live endpoints.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout bounds a probe when the request does not set one.
	DefaultTimeout = 15 * time.Second

	maxBodyBytes = 1 << 20
)

// Request describes one HTTP probe.
type Request struct {
	Method  string
	URL     string
	Body    any
	Header  map[string]string
	Timeout time.Duration
}

// Result holds what a probe observed. StatusCode is 0 when no response arrived,
// in which case TransportError explains why.
type Result struct {
	StatusCode     int
	Body           any
	RawBody        string
	TransportError string
	Duration       time.Duration
}

// Received reports whether an HTTP response was received.
func (r Result) Received() bool {
	return r.StatusCode != 0
}

// Client sends probes. It never retries.
type Client struct {
	logger zerolog.Logger
	client *retryablehttp.Client
}

// NewClient constructs a single-attempt probe client.
func NewClient(logger zerolog.Logger) *Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(_ context.Context, _ *http.Response, _ error) (bool, error) {
		return false, nil
	}
	client.Logger = nil
	client.HTTPClient = &http.Client{}

	return &Client{logger: logger, client: client}
}

// Do sends req once. Transport failures are captured in the Result rather than returned.
func (c *Client) Do(ctx context.Context, req Request) Result {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader = http.NoBody
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return Result{TransportError: fmt.Sprintf("encode request body: %v", err)}
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(reqCtx, method, req.URL, body)
	if err != nil {
		return Result{TransportError: fmt.Sprintf("build request: %v", err)}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for key, value := range req.Header {
		httpReq.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		result := Result{TransportError: err.Error(), Duration: time.Since(start)}
		c.logger.Debug().Str("method", method).Str("url", req.URL).Str("error", result.TransportError).Msg("probe transport failure")
		return result
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	result := Result{
		StatusCode: resp.StatusCode,
		RawBody:    string(raw),
		Duration:   time.Since(start),
	}
	if readErr != nil {
		c.logger.Debug().Err(readErr).Str("url", req.URL).Msg("probe body read incomplete")
	}

	if isJSON(resp.Header.Get("Content-Type")) && len(bytes.TrimSpace(raw)) > 0 {
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err == nil {
			result.Body = parsed
		}
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", req.URL).
		Int("status", result.StatusCode).
		Dur("duration", result.Duration).
		Msg("probe response received")

	return result
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
