package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Task names the pipeline step a completion serves. It selects the prompt
// template and labels logs and metrics.
type Task string

const (
	TaskTranslate Task = "translate"
	TaskClassify  Task = "classify"
	TaskAnalyze   Task = "analyze"
	TaskReport    Task = "report"
)

// Request is one JSON completion call.
type Request struct {
	Task   Task
	System string
	User   string
}

// Client abstracts LLM providers. Implementations must return a single
// JSON object.
type Client interface {
	CompleteJSON(ctx context.Context, req Request) (json.RawMessage, error)
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is used when no provider is configured.
type PlaceholderClient struct{}

// CompleteJSON returns ErrNotImplemented.
func (PlaceholderClient) CompleteJSON(ctx context.Context, req Request) (json.RawMessage, error) {
	_ = ctx
	_ = req
	return nil, ErrNotImplemented
}
