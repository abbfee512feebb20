package workerproc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal-backend/internal/pipeline"
	"legal-backend/internal/queue"
	"legal-backend/internal/shared/telemetry"
)

type fakeExecutor struct {
	jobs      []pipeline.Job
	requestID string
	err       error
}

func (f *fakeExecutor) Execute(ctx context.Context, job pipeline.Job) error {
	f.jobs = append(f.jobs, job)
	f.requestID = telemetry.RequestIDFromContext(ctx)
	return f.err
}

func encode(t *testing.T, msg queue.Message) string {
	t.Helper()
	body, err := queue.EncodeMessage(msg)
	require.NoError(t, err)
	return string(body)
}

func TestParseMessage(t *testing.T) {
	body := encode(t, queue.Message{Kind: "conjoint", DocumentIDs: []string{" doc-1 ", "", "doc-2"}, RequestID: "req-1", Version: queue.MessageVersion})

	msg, meta, err := ParseMessage(body)

	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1", "doc-2"}, msg.DocumentIDs)
	assert.Equal(t, len(body), meta.BodyLen)
	assert.Len(t, meta.BodySHA, 64)
}

func TestParseMessageErrors(t *testing.T) {
	_, _, err := ParseMessage("   ")
	assert.IsType(t, ErrEmptyBody{}, err)

	_, meta, err := ParseMessage("{not json")
	var decodeErr ErrDecode
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, meta, decodeErr.Meta)

	_, _, err = ParseMessage(encode(t, queue.Message{Kind: "single", RequestID: "req-2"}))
	var missing ErrMissingDocumentIDs
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "req-2", missing.RequestID)

	_, _, err = ParseMessage(encode(t, queue.Message{Kind: "batch", DocumentIDs: []string{"doc-1"}}))
	var unknown ErrUnknownKind
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, `unknown job kind "batch"`, err.Error())

	assert.True(t, Unrecoverable(err))
	assert.False(t, Unrecoverable(ErrProcess{Err: errors.New("boom")}))
}

func TestHandleMessageExecutesJob(t *testing.T) {
	exec := &fakeExecutor{}
	body := encode(t, queue.Message{Kind: "single", DocumentIDs: []string{"doc-1"}, Instructions: "brief", RequestID: "req-3"})

	require.NoError(t, HandleMessage(context.Background(), exec, body))

	require.Len(t, exec.jobs, 1)
	assert.Equal(t, pipeline.Job{Kind: pipeline.KindSingle, DocumentIDs: []string{"doc-1"}, Instructions: "brief", RequestID: "req-3"}, exec.jobs[0])
	assert.Equal(t, "req-3", exec.requestID)
}

func TestHandleMessageUsesParsedMessageFromContext(t *testing.T) {
	exec := &fakeExecutor{}
	msg := queue.Message{Kind: "regenerate", DocumentIDs: []string{"doc-9"}}

	require.NoError(t, HandleMessage(WithParsedMessage(context.Background(), msg), exec, "ignored"))

	require.Len(t, exec.jobs, 1)
	assert.Equal(t, pipeline.KindRegenerate, exec.jobs[0].Kind)
}

func TestHandleMessageWrapsProcessingErrors(t *testing.T) {
	exec := &fakeExecutor{err: pipeline.ErrUnreadableSource}
	body := encode(t, queue.Message{Kind: "single", DocumentIDs: []string{"doc-1"}, RequestID: "req-4"})

	err := HandleMessage(context.Background(), exec, body)

	var procErr ErrProcess
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, "doc-1", procErr.DocumentID)
	assert.Equal(t, "req-4", procErr.RequestID)
	assert.ErrorIs(t, err, pipeline.ErrUnreadableSource)
	assert.False(t, Unrecoverable(err))
}

func TestHandleMessageWithoutExecutor(t *testing.T) {
	assert.Error(t, HandleMessage(context.Background(), nil, "{}"))
}
