package stages

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"legal-backend/internal/llm"
	"legal-backend/internal/shared/telemetry"
)

const llmRetryBaseDelay = 300 * time.Millisecond

// retryingLLM retries a completion once on transient provider errors.
type retryingLLM struct {
	base  llm.Client
	delay time.Duration
}

func newRetryingLLM(base llm.Client) llm.Client {
	if base == nil {
		return nil
	}
	return retryingLLM{base: base, delay: llmRetryBaseDelay}
}

func (r retryingLLM) CompleteJSON(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	resp, err := r.base.CompleteJSON(ctx, req)
	if err == nil || !shouldRetryLLM(err) || ctx.Err() != nil {
		return resp, err
	}

	telemetry.Warn("llm.retry", map[string]any{
		"attempt":    1,
		"task":       string(req.Task),
		"request_id": telemetry.RequestIDFromContext(ctx),
		"error":      err,
	})
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.base.CompleteJSON(ctx, req)
}

func shouldRetryLLM(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, llm.ErrNotImplemented) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "timeout") && (strings.Contains(msg, "openai") || strings.Contains(msg, "llm") || strings.Contains(msg, "client.timeout")) {
		return true
	}
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof")
}
