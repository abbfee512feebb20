package stages

import (
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"legal-backend/internal/llm"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// ErrSchemaMismatch is matched by every ValidationError.
var ErrSchemaMismatch = errors.New("llm output does not match schema")

var schemaFiles = map[llm.Task]string{
	llm.TaskTranslate: "schemas/translate.json",
	llm.TaskClassify:  "schemas/classify.json",
	llm.TaskAnalyze:   "schemas/checklist.json",
	llm.TaskReport:    "schemas/report.json",
}

var (
	schemasOnce sync.Once
	compiled    map[llm.Task]*gojsonschema.Schema
	compileErr  error
)

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Task   llm.Task
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field.
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	parts := make([]string, 0, len(ve.Errors))
	for _, fe := range ve.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("%s output invalid: %s", ve.Task, strings.Join(parts, "; "))
}

func (ve *ValidationError) Unwrap() error {
	return ErrSchemaMismatch
}

func loadSchemas() (map[llm.Task]*gojsonschema.Schema, error) {
	schemasOnce.Do(func() {
		compiled = make(map[llm.Task]*gojsonschema.Schema, len(schemaFiles))
		for task, path := range schemaFiles {
			raw, err := schemaFS.ReadFile(path)
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", path, err)
				return
			}
			schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", path, err)
				return
			}
			compiled[task] = schema
		}
	})
	return compiled, compileErr
}

// validateOutput checks raw against the schema registered for task.
func validateOutput(task llm.Task, raw []byte) error {
	schemas, err := loadSchemas()
	if err != nil {
		return err
	}
	schema, ok := schemas[task]
	if !ok {
		return fmt.Errorf("no schema for task %q", task)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%s output: %w: %v", task, ErrSchemaMismatch, err)
	}
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Task:   task,
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
