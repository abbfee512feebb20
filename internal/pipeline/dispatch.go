package pipeline

import (
	"context"
	"fmt"
	"time"

	"legal-backend/internal/queue"
	"legal-backend/internal/shared/telemetry"
)

// Job is a run request as it travels between the API, the queue and workers.
type Job struct {
	Kind         Kind
	DocumentIDs  []string
	Instructions string
	RequestID    string
}

// Run converts the job into the run it requests.
func (j Job) Run() Run {
	return Run{Kind: j.Kind, Targets: j.DocumentIDs, Instructions: j.Instructions}
}

// Execute runs job to completion on the calling goroutine.
func (o *Orchestrator) Execute(ctx context.Context, job Job) error {
	if job.RequestID != "" && telemetry.RequestIDFromContext(ctx) == "" {
		ctx = telemetry.WithRequestID(ctx, job.RequestID)
	}
	switch job.Kind {
	case KindSingle:
		if len(job.DocumentIDs) != 1 {
			return job.Run().Validate()
		}
		return o.RunSingle(ctx, job.DocumentIDs[0], job.Instructions)
	case KindConjoint:
		return o.RunConjoint(ctx, job.DocumentIDs, job.Instructions)
	case KindRegenerate:
		if len(job.DocumentIDs) != 1 {
			return job.Run().Validate()
		}
		return o.RegenerateReportOnly(ctx, job.DocumentIDs[0], job.Instructions, nil)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRun, job.Kind)
	}
}

// Submit starts job in the background and returns at once. The run outlives
// ctx but keeps its request id. Failures are already persisted on the
// document status and are only logged here.
func (o *Orchestrator) Submit(ctx context.Context, job Job) {
	bgCtx := telemetry.BackgroundWithRequestID(ctx)
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		defer func() {
			if rec := recover(); rec != nil {
				telemetry.Error("analysis.panic", map[string]any{
					"document_ids": job.DocumentIDs,
					"kind":         string(job.Kind),
					"request_id":   telemetry.RequestIDFromContext(bgCtx),
					"panic":        fmt.Sprint(rec),
				})
			}
		}()
		if err := o.Execute(bgCtx, job); err != nil {
			telemetry.Warn("analysis.submit.failed", map[string]any{
				"document_ids": job.DocumentIDs,
				"kind":         string(job.Kind),
				"request_id":   telemetry.RequestIDFromContext(bgCtx),
				"error":        err,
			})
		}
	}()
}

// Shutdown stops admitting runs and waits for submitted ones to return.
// Runs still waiting for a slot fail with ErrAdmissionClosed.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.admission.Close()
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatcher hands accepted jobs to whatever executes them.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// InProcessDispatcher runs jobs on this process through Submit.
type InProcessDispatcher struct {
	Orchestrator *Orchestrator
}

func (d InProcessDispatcher) Dispatch(ctx context.Context, job Job) error {
	if err := job.Run().Validate(); err != nil {
		return err
	}
	d.Orchestrator.Submit(ctx, job)
	return nil
}

// QueueDispatcher enqueues jobs for a worker process.
type QueueDispatcher struct {
	Queue queue.Client
	Now   func() time.Time
}

func (d QueueDispatcher) Dispatch(ctx context.Context, job Job) error {
	if err := job.Run().Validate(); err != nil {
		return err
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	requestID := job.RequestID
	if requestID == "" {
		requestID = telemetry.RequestIDFromContext(ctx)
	}
	msg := queue.Message{
		Kind:         string(job.Kind),
		DocumentIDs:  job.DocumentIDs,
		Instructions: job.Instructions,
		RequestID:    requestID,
		EnqueuedAt:   now().UTC().Format(time.RFC3339Nano),
		Version:      queue.MessageVersion,
	}
	if err := d.Queue.Send(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s run: %w", job.Kind, err)
	}
	telemetry.Info("analysis.enqueued", map[string]any{
		"document_ids": job.DocumentIDs,
		"kind":         string(job.Kind),
		"request_id":   requestID,
	})
	return nil
}

var (
	_ Dispatcher = InProcessDispatcher{}
	_ Dispatcher = QueueDispatcher{}
)
