package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"legal-backend/internal/analyses"
	"legal-backend/internal/documents"
	"legal-backend/internal/shared/metrics"
	"legal-backend/internal/shared/telemetry"
	"legal-backend/internal/stages"
)

const (
	defaultRunTimeout      = 180 * time.Second
	failureWriteTimeout    = 5 * time.Second
	maxPersistedMessageLen = 500
)

// Documents is the read side of the document store the pipeline needs.
type Documents interface {
	GetMetadata(ctx context.Context, documentID string) (documents.Document, error)
	RawBytes(ctx context.Context, doc documents.Document) ([]byte, error)
}

// Deps wires an Orchestrator.
type Deps struct {
	Documents Documents
	Analyses  analyses.Repo
	Stages    stages.Stages
	Admission *Admission
	// Locker defaults to an in-process KeyLocker.
	Locker Locker
	// RunTimeout bounds single-document runs and report regeneration.
	RunTimeout time.Duration
	// ConjointTimeoutPerDocument is multiplied by the number of targets.
	ConjointTimeoutPerDocument time.Duration
}

// Orchestrator drives documents through the analysis stages, one admitted
// run at a time per slot, persisting status before each stage.
type Orchestrator struct {
	docs           Documents
	repo           analyses.Repo
	stages         stages.Stages
	admission      *Admission
	locker         Locker
	runTimeout     time.Duration
	conjointPerDoc time.Duration

	inflight sync.WaitGroup
}

// New builds an Orchestrator. Missing timeouts default to 180s and a missing
// admission controller admits one run at a time.
func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		docs:           deps.Documents,
		repo:           deps.Analyses,
		stages:         deps.Stages,
		admission:      deps.Admission,
		locker:         deps.Locker,
		runTimeout:     deps.RunTimeout,
		conjointPerDoc: deps.ConjointTimeoutPerDocument,
	}
	if o.admission == nil {
		o.admission = NewAdmission(1)
	}
	if o.locker == nil {
		o.locker = NewKeyLocker()
	}
	if o.runTimeout <= 0 {
		o.runTimeout = defaultRunTimeout
	}
	if o.conjointPerDoc <= 0 {
		o.conjointPerDoc = defaultRunTimeout
	}
	return o
}

// Admission exposes the controller for health and metrics reporting.
func (o *Orchestrator) Admission() *Admission {
	return o.admission
}

// RunSingle analyzes one document from its raw upload. When the upload is
// gone but a prior analysis kept the extracted and translated text, only the
// report is rebuilt.
func (o *Orchestrator) RunSingle(ctx context.Context, documentID, instructions string) error {
	run := Run{Kind: KindSingle, Targets: []string{documentID}, Instructions: instructions}
	if err := run.Validate(); err != nil {
		return err
	}
	return o.guarded(ctx, run, o.runTimeout, func(ctx context.Context) error {
		return o.runSingle(ctx, run)
	})
}

func (o *Orchestrator) runSingle(ctx context.Context, run Run) error {
	id := run.Primary()
	doc, err := o.loadDocument(ctx, id)
	if err != nil {
		return err
	}

	data, err := o.docs.RawBytes(ctx, doc)
	if err != nil {
		if !errors.Is(err, documents.ErrContentUnavailable) {
			return fmt.Errorf("load content of %s: %w", id, err)
		}
		prior, ok, perr := o.reusablePrior(ctx, id)
		if perr != nil {
			return perr
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnreadableSource, id)
		}
		telemetry.Info("analysis.recovery", map[string]any{
			"document_id": id,
			"request_id":  telemetry.RequestIDFromContext(ctx),
			"reason":      err,
		})
		return o.regenerate(ctx, id, run.Instructions, &prior)
	}

	if err := o.repo.DeleteArtifact(ctx, id); err != nil {
		return fmt.Errorf("delete prior analysis of %s: %w", id, err)
	}

	artifact := analyses.Artifact{DocumentID: id}
	if err := o.setStatus(ctx, id, analyses.StatusOCR); err != nil {
		return err
	}
	text, err := runStage(ctx, analyses.StatusOCR, id, func(ctx context.Context) (string, error) {
		return o.stages.ExtractText(ctx, data, doc.MimeType, doc.FileName)
	})
	if err != nil {
		return err
	}
	artifact.Original = &analyses.Original{Text: text}
	if err := o.saveArtifact(ctx, artifact); err != nil {
		return err
	}

	if err := o.analyze(ctx, &artifact, text, run.Instructions, nil); err != nil {
		return err
	}
	return o.setStatus(ctx, id, analyses.StatusCompleted)
}

// reusablePrior reports whether id has a stored analysis the report can be
// rebuilt from.
func (o *Orchestrator) reusablePrior(ctx context.Context, id string) (analyses.ArtifactRecord, bool, error) {
	rec, err := o.repo.GetArtifact(ctx, id)
	if err != nil {
		if errors.Is(err, analyses.ErrNotFound) {
			return analyses.ArtifactRecord{}, false, nil
		}
		return analyses.ArtifactRecord{}, false, fmt.Errorf("load prior analysis of %s: %w", id, err)
	}
	a, err := rec.Decode()
	if err != nil || !a.HasSourceMaterial() {
		return analyses.ArtifactRecord{}, false, nil
	}
	return rec, true, nil
}

// analyze runs translating through saving for artifact, whose Original is
// already stored. The caller marks the run completed.
func (o *Orchestrator) analyze(ctx context.Context, artifact *analyses.Artifact, text, instructions string, sources []analyses.SourceDocument) error {
	id := artifact.DocumentID

	if err := o.setStatus(ctx, id, analyses.StatusTranslating); err != nil {
		return err
	}
	clauses, err := runStage(ctx, analyses.StatusTranslating, id, func(ctx context.Context) ([]analyses.Clause, error) {
		return o.stages.TranslateAndStructure(ctx, text)
	})
	if err != nil {
		return err
	}
	artifact.Translated = clauses
	if err := o.saveArtifact(ctx, *artifact); err != nil {
		return err
	}

	if err := o.setStatus(ctx, id, analyses.StatusClassifying); err != nil {
		return err
	}
	docType, err := runStage(ctx, analyses.StatusClassifying, id, func(ctx context.Context) (string, error) {
		return o.stages.Classify(ctx, clauses)
	})
	if err != nil {
		return err
	}
	artifact.Type = docType
	if err := o.saveArtifact(ctx, *artifact); err != nil {
		return err
	}

	if err := o.setStatus(ctx, id, analyses.StatusAnalyzing); err != nil {
		return err
	}
	checklist, err := runStage(ctx, analyses.StatusAnalyzing, id, func(ctx context.Context) (*analyses.Checklist, error) {
		return o.stages.DomainAnalyze(ctx, docType, clauses)
	})
	if err != nil {
		return err
	}
	if checklist == nil {
		checklist = analyses.UnspecializedChecklist(docType)
	}
	artifact.Checklist = checklist
	if err := o.saveArtifact(ctx, *artifact); err != nil {
		return err
	}

	if err := o.setStatus(ctx, id, analyses.StatusGeneratingReport); err != nil {
		return err
	}
	report, err := runStage(ctx, analyses.StatusGeneratingReport, id, func(ctx context.Context) (*analyses.Report, error) {
		return o.stages.SynthesizeReport(ctx, stages.ReportInput{
			DocumentType: docType,
			Original:     text,
			Clauses:      clauses,
			Checklist:    checklist,
			Instructions: instructions,
			Documents:    sources,
		})
	})
	if err != nil {
		return err
	}

	if err := o.setStatus(ctx, id, analyses.StatusSaving); err != nil {
		return err
	}
	artifact.Report = report
	return o.saveArtifact(ctx, *artifact)
}

// guarded takes the per-id lock, then a slot, then arms the budget and runs
// fn. Any failure after the lock is held is persisted on the primary id.
func (o *Orchestrator) guarded(ctx context.Context, run Run, budget time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	kind := string(run.Kind)
	id := run.Primary()
	metrics.IncRunStarted(kind)

	unlock, err := o.locker.Lock(ctx, run.Targets...)
	if err != nil {
		metrics.IncRunFailed(kind, failureReason(err))
		return fmt.Errorf("wait for concurrent run on %s: %w", id, err)
	}
	defer unlock()

	slot, err := o.admission.Acquire(ctx)
	if err != nil {
		return o.finish(ctx, run, start, err)
	}
	defer slot.Release()

	runCtx, cancel := context.WithTimeoutCause(ctx, budget, ErrTimeout)
	defer cancel()

	err = fn(runCtx)
	if err != nil && errors.Is(context.Cause(runCtx), ErrTimeout) {
		err = fmt.Errorf("%w after %s", ErrTimeout, budget)
	}
	return o.finish(ctx, run, start, err)
}

func (o *Orchestrator) finish(ctx context.Context, run Run, start time.Time, err error) error {
	kind := string(run.Kind)
	elapsed := time.Since(start)
	metrics.ObserveRunDuration(kind, elapsed)
	fields := map[string]any{
		"document_id":  run.Primary(),
		"document_ids": run.Targets,
		"kind":         kind,
		"request_id":   telemetry.RequestIDFromContext(ctx),
		"duration_ms":  elapsed.Milliseconds(),
	}
	if err == nil {
		metrics.IncRunCompleted(kind)
		telemetry.Info("analysis.completed", fields)
		return nil
	}

	reason := failureReason(err)
	metrics.IncRunFailed(kind, reason)
	fields["error"] = err
	fields["reason"] = reason
	telemetry.Error("analysis.failed", fields)
	o.markFailed(ctx, run.Primary(), err)
	return err
}

// markFailed persists the error on a context detached from the run, which
// may already be expired.
func (o *Orchestrator) markFailed(ctx context.Context, documentID string, cause error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()
	msg := sanitizeError(cause)
	if err := o.repo.SetError(writeCtx, documentID, msg); err != nil {
		telemetry.Error("analysis.status.write_failed", map[string]any{
			"document_id": documentID,
			"status":      string(analyses.StatusError),
			"error":       err,
		})
		return
	}
	telemetry.Info("analysis.status", map[string]any{
		"document_id":       documentID,
		"status":            string(analyses.StatusError),
		"progress":          analyses.StatusError.Progress(),
		"status_transition": "->" + string(analyses.StatusError),
		"request_id":        telemetry.RequestIDFromContext(ctx),
	})
}

func (o *Orchestrator) setStatus(ctx context.Context, documentID string, status analyses.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := o.repo.SetStatus(ctx, documentID, status); err != nil {
		return fmt.Errorf("set status %s on %s: %w", status, documentID, err)
	}
	telemetry.Info("analysis.status", map[string]any{
		"document_id":       documentID,
		"status":            string(status),
		"progress":          status.Progress(),
		"status_transition": "->" + string(status),
		"request_id":        telemetry.RequestIDFromContext(ctx),
	})
	return nil
}

func (o *Orchestrator) saveArtifact(ctx context.Context, a analyses.Artifact) error {
	rec, err := analyses.NewArtifactRecord(a)
	if err != nil {
		return err
	}
	if err := o.repo.UpsertArtifact(ctx, rec); err != nil {
		return fmt.Errorf("save analysis of %s: %w", a.DocumentID, err)
	}
	return nil
}

func (o *Orchestrator) loadDocument(ctx context.Context, id string) (documents.Document, error) {
	doc, err := o.docs.GetMetadata(ctx, id)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return documents.Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return documents.Document{}, fmt.Errorf("load document %s: %w", id, err)
	}
	return doc, nil
}

// runStage calls fn on its own goroutine so an expired run stops waiting even
// when the stage ignores ctx. The abandoned call's result is discarded.
func runStage[T any](ctx context.Context, stage analyses.Status, documentID string, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	var zero T
	start := time.Now()
	done := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{err: fmt.Errorf("panic in %s: %v", stage, rec)}
			}
		}()
		val, err := fn(ctx)
		done <- result{val: val, err: err}
	}()

	select {
	case res := <-done:
		elapsed := time.Since(start)
		metrics.ObserveStageDuration(string(stage), elapsed)
		telemetry.Info("pipeline.stage", map[string]any{
			"document_id": documentID,
			"stage":       string(stage),
			"duration_ms": elapsed.Milliseconds(),
			"ok":          res.err == nil,
			"request_id":  telemetry.RequestIDFromContext(ctx),
		})
		if res.err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, ctxErr
			}
			return zero, &StageError{Stage: stage, Err: res.err}
		}
		return res.val, nil
	case <-ctx.Done():
		telemetry.Warn("pipeline.stage.abandoned", map[string]any{
			"document_id": documentID,
			"stage":       string(stage),
			"request_id":  telemetry.RequestIDFromContext(ctx),
		})
		return zero, ctx.Err()
	}
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(strings.ToValidUTF8(msg, ""))
	if len(msg) > maxPersistedMessageLen {
		cut := maxPersistedMessageLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}
