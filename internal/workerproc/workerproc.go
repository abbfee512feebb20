package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"legal-backend/internal/pipeline"
	"legal-backend/internal/queue"
	"legal-backend/internal/shared/telemetry"
)

// Executor runs one analysis job to completion.
type Executor interface {
	Execute(ctx context.Context, job pipeline.Job) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingDocumentIDs indicates a message without any target document.
type ErrMissingDocumentIDs struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingDocumentIDs) Error() string { return "missing document ids" }

// ErrUnknownKind indicates a message whose kind no worker understands.
type ErrUnknownKind struct {
	Meta      MessageMeta
	Kind      string
	RequestID string
}

func (e ErrUnknownKind) Error() string { return "unknown job kind " + strconv.Quote(e.Kind) }

// ErrProcess indicates processing failed after successful parsing.
type ErrProcess struct {
	DocumentID string
	RequestID  string
	Err        error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process analysis"
	}
	return "process analysis: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether err comes from a payload that can never be
// processed, so redelivering it is pointless.
func Unrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		missing ErrMissingDocumentIDs
		unknown ErrUnknownKind
	)
	return errors.As(err, &empty) || errors.As(err, &decode) ||
		errors.As(err, &missing) || errors.As(err, &unknown)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	ids := make([]string, 0, len(msg.DocumentIDs))
	for _, id := range msg.DocumentIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return msg, meta, ErrMissingDocumentIDs{Meta: meta, RequestID: msg.RequestID}
	}
	msg.DocumentIDs = ids
	switch pipeline.Kind(msg.Kind) {
	case pipeline.KindSingle, pipeline.KindConjoint, pipeline.KindRegenerate:
	default:
		return msg, meta, ErrUnknownKind{Meta: meta, Kind: msg.Kind, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// JobFromMessage converts a parsed message into a pipeline job.
func JobFromMessage(msg queue.Message) pipeline.Job {
	return pipeline.Job{
		Kind:         pipeline.Kind(msg.Kind),
		DocumentIDs:  msg.DocumentIDs,
		Instructions: msg.Instructions,
		RequestID:    msg.RequestID,
	}
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates, and runs a message payload synchronously.
func HandleMessage(ctx context.Context, exec Executor, body string) error {
	if exec == nil {
		return errors.New("analysis orchestrator not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}
	if len(msg.DocumentIDs) == 0 {
		return ErrMissingDocumentIDs{Meta: ComputeMeta(body), RequestID: msg.RequestID}
	}

	ctxWithRequest := telemetry.WithRequestID(ctx, msg.RequestID)
	if err := exec.Execute(ctxWithRequest, JobFromMessage(msg)); err != nil {
		return ErrProcess{DocumentID: msg.PrimaryDocumentID(), RequestID: msg.RequestID, Err: err}
	}
	return nil
}
