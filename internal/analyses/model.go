package analyses

import "time"

// Status is the pipeline stage a document is in, as seen by pollers.
type Status string

const (
	StatusOCR              Status = "ocr"
	StatusTranslating      Status = "translating"
	StatusClassifying      Status = "classifying"
	StatusAnalyzing        Status = "analyzing"
	StatusGeneratingReport Status = "generating_report"
	StatusSaving           Status = "saving"
	StatusCompleted        Status = "completed"
	StatusError            Status = "error"
)

var progressByStatus = map[Status]int{
	StatusOCR:              10,
	StatusTranslating:      25,
	StatusClassifying:      40,
	StatusAnalyzing:        60,
	StatusGeneratingReport: 80,
	StatusSaving:           90,
	StatusCompleted:        100,
	StatusError:            0,
}

// Progress returns the fixed checkpoint for the status. Unknown statuses report 0.
func (s Status) Progress() int {
	return progressByStatus[s]
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := progressByStatus[s]
	return ok
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// StatusRecord is the pollable progress of one document.
type StatusRecord struct {
	DocumentID   string    `json:"documentId"`
	Status       Status    `json:"status"`
	Progress     int       `json:"progress"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
