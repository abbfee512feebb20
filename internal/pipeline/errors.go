package pipeline

import (
	"errors"

	"legal-backend/internal/analyses"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrUnreadableSource = errors.New("document content is unavailable and no prior analysis can be reused")
	ErrNoPriorAnalysis  = errors.New("no prior analysis to regenerate the report from")
	ErrTimeout          = errors.New("analysis timed out")
	ErrAdmissionClosed  = errors.New("admission closed")
	ErrInvalidRun       = errors.New("invalid run")
)

// StageError wraps a failure raised inside a pipeline stage. Its message is
// the stage's own message so pollers see what actually went wrong.
type StageError struct {
	Stage analyses.Status
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return "stage " + string(e.Stage) + " failed"
	}
	return e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// failureReason labels a run failure for metrics.
func failureReason(err error) string {
	var stageErr *StageError
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnreadableSource):
		return "unreadable_source"
	case errors.Is(err, ErrNoPriorAnalysis):
		return "no_prior_analysis"
	case errors.Is(err, ErrAdmissionClosed):
		return "admission_closed"
	case errors.Is(err, ErrInvalidRun):
		return "invalid_run"
	case errors.As(err, &stageErr):
		return "stage_" + string(stageErr.Stage)
	default:
		return "internal"
	}
}
