package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal-backend/internal/llm"
	"legal-backend/internal/shared/telemetry"
)

func TestIsGPT5(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "gpt5", model: "gpt-5", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "gpt5 uppercase", model: " GPT-5o ", want: true},
		{name: "gpt4", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isGPT5(tt.model))
		})
	}
}

type recordedRequest struct {
	Temperature *float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

func startServer(t *testing.T, replies ...string) (*[]recordedRequest, func()) {
	t.Helper()
	var mu sync.Mutex
	var seen []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var payload recordedRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		idx := len(seen)
		seen = append(seen, payload)
		mu.Unlock()

		content := replies[len(replies)-1]
		if idx < len(replies) {
			content = replies[idx]
		}
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
			"usage":   map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	oldURL := apiURL
	apiURL = server.URL
	return &seen, func() {
		apiURL = oldURL
		server.Close()
	}
}

func TestCompleteJSONUsesTaskPrompt(t *testing.T) {
	var logs bytes.Buffer
	defer telemetry.SetOutput(&logs)()

	seen, stop := startServer(t, `{"type":"lease","confidence":0.9}`)
	defer stop()

	client, err := NewClient("test-key", "gpt-4o-mini", time.Second)
	require.NoError(t, err)

	raw, err := client.CompleteJSON(context.Background(), llm.Request{Task: llm.TaskClassify, User: "clauses"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"lease","confidence":0.9}`, string(raw))

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "json_object", req.ResponseFormat.Type)
	require.NotNil(t, req.Temperature)
	require.Len(t, req.Messages, 2)
	expected, _ := llm.SystemPrompt(llm.TaskClassify)
	assert.Equal(t, expected, req.Messages[0].Content)
	assert.Contains(t, logs.String(), `"task":"classify"`)
}

func TestCompleteJSONOmitsTemperatureForGPT5(t *testing.T) {
	seen, stop := startServer(t, `{}`)
	defer stop()

	client, err := NewClient("test-key", "gpt-5-mini", time.Second)
	require.NoError(t, err)
	_, err = client.CompleteJSON(context.Background(), llm.Request{Task: llm.TaskReport, System: "custom", User: "x"})
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	assert.Nil(t, (*seen)[0].Temperature)
	assert.Equal(t, "custom", (*seen)[0].Messages[0].Content)
}

func TestCompleteJSONRepairsInvalidJSON(t *testing.T) {
	seen, stop := startServer(t, `not json`, `{"clauses":[]}`)
	defer stop()

	client, err := NewClient("test-key", "gpt-4o", time.Second)
	require.NoError(t, err)
	raw, err := client.CompleteJSON(context.Background(), llm.Request{Task: llm.TaskTranslate, User: "text"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"clauses":[]}`, string(raw))
	require.Len(t, *seen, 2)
	assert.Len(t, (*seen)[1].Messages, 4)
}

func TestNewClientRequiresSettings(t *testing.T) {
	_, err := NewClient("", "gpt-4o", 0)
	assert.Error(t, err)
	_, err = NewClient("key", " ", 0)
	assert.Error(t, err)
}
