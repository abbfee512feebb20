package pipeline

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind selects which orchestrator operation a run executes.
type Kind string

const (
	KindSingle     Kind = "single"
	KindConjoint   Kind = "conjoint"
	KindRegenerate Kind = "regenerate"
)

// Run is one requested analysis. Targets[0] is the primary document.
type Run struct {
	Kind         Kind     `validate:"required,oneof=single conjoint regenerate"`
	Targets      []string `validate:"required,min=1,dive,required"`
	Instructions string   `validate:"max=2000"`
}

var validate = validator.New()

// Validate checks field constraints and the per-kind target count.
func (r Run) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRun, describeValidation(err))
	}
	switch r.Kind {
	case KindSingle, KindRegenerate:
		if len(r.Targets) != 1 {
			return fmt.Errorf("%w: %s runs take exactly one document", ErrInvalidRun, r.Kind)
		}
	case KindConjoint:
		if len(lockOrder(r.Targets)) < 2 || len(lockOrder(r.Targets)) != len(r.Targets) {
			return fmt.Errorf("%w: conjoint runs take at least two distinct documents", ErrInvalidRun)
		}
	}
	return nil
}

// Primary is the document whose status and artifact carry the result.
func (r Run) Primary() string {
	if len(r.Targets) == 0 {
		return ""
	}
	return r.Targets[0]
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", strings.ToLower(fe.Field()), fe.Param()))
		case "required", "min":
			parts = append(parts, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of %s", strings.ToLower(fe.Field()), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
