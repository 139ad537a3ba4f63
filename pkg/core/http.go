package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/ecotripmcp/pkg/tracing"
)

// RetryOptions configures retry behavior for HTTP requests
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions provides sensible defaults for retries
var DefaultRetryOptions = RetryOptions{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	Multiplier:   2.0,
}

// DefaultClient provides a pre-configured HTTP client with secure defaults
var DefaultClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// retryable reports whether a response status is worth another attempt.
// Client errors other than 429 will not change on retry.
func retryable(status int) bool {
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout {
		return true
	}
	return status >= 500
}

// WithRetry performs a body-less HTTP request with exponential backoff.
// Only a 200 response is returned; anything else becomes an *MCPError.
func WithRetry(ctx context.Context, req *http.Request, client *http.Client, options RetryOptions) (*http.Response, error) {
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("http.request %s %s", req.Method, req.URL.Host),
		trace.WithAttributes(
			attribute.String(tracing.AttrHTTPMethod, req.Method),
			attribute.String("http.host", req.URL.Host),
			attribute.Int("http.retry.max_attempts", options.MaxAttempts),
		),
	)
	defer span.End()

	if req.Body != nil {
		span.SetStatus(codes.Error, "cannot retry request with body")
		return nil, NewError(ErrInternalError, "cannot retry request with non-nil body")
	}
	if client == nil {
		client = DefaultClient
	}
	if options.MaxAttempts < 1 {
		options.MaxAttempts = 1
	}

	logger := slog.Default().With("method", req.Method, "host", req.URL.Host)

	var lastErr error
	delay := options.InitialDelay

	for attempt := 0; attempt < options.MaxAttempts; attempt++ {
		if attempt > 0 {
			tracing.AddEvent(ctx, "retry_attempt",
				trace.WithAttributes(
					attribute.Int("attempt", attempt+1),
					attribute.Int64("delay_ms", delay.Milliseconds()),
				),
			)
			logger.Info("retrying request",
				"attempt", attempt+1,
				"max_attempts", options.MaxAttempts,
				"delay", delay,
				"last_error", lastErr,
			)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				span.SetStatus(codes.Error, "request cancelled")
				return nil, ctx.Err()
			}

			delay = time.Duration(float64(delay) * options.Multiplier)
			if delay > options.MaxDelay {
				delay = options.MaxDelay
			}
		}

		resp, err := client.Do(req.Clone(ctx))
		if err == nil && resp.StatusCode == http.StatusOK {
			span.SetAttributes(
				attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode),
				attribute.Int("http.retry.attempts", attempt+1),
			)
			span.SetStatus(codes.Ok, "")
			logger.Debug("request successful", "status", resp.StatusCode, "attempts", attempt+1)
			return resp, nil
		}

		if err != nil {
			lastErr = err
			logger.Warn("request failed", "error", err, "attempt", attempt+1)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		lastErr = ServiceError(req.URL.Host, resp.StatusCode, fmt.Sprintf("HTTP status %d", resp.StatusCode))
		logger.Warn("request returned error status", "status", resp.StatusCode, "attempt", attempt+1)
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("failed to close response body", "error", cerr)
		}
		if !retryable(resp.StatusCode) {
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "request failed")

	if mcpErr, ok := lastErr.(*MCPError); ok {
		return nil, mcpErr
	}
	return nil, NewError(ErrNetworkError, fmt.Sprintf("request to %s failed: %v", req.URL.Host, lastErr)).
		WithGuidance("The request failed after multiple attempts. Please try again later")
}

// DoWithRetry performs an HTTP request with default retry options
func DoWithRetry(ctx context.Context, req *http.Request, client *http.Client) (*http.Response, error) {
	return WithRetry(ctx, req, client, DefaultRetryOptions)
}
