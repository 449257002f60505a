package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Decision
var (
	ErrEmptyDecisionSubject = errors.New("decision subject ID cannot be empty")
	ErrEmptyDecisionURL     = errors.New("decision document URL cannot be empty")
)

// Decision is a published administrative decision discovered by a
// pollDecisions task and linked to a meeting subject. Decisions are upserted
// by subject ID and never duplicated.
type Decision struct {
	ID             uuid.UUID  `json:"id"`
	SubjectID      string     `json:"subject_id"`
	DocumentURL    string     `json:"document_url"`
	ProtocolNumber string     `json:"protocol_number,omitempty"`
	OfficialID     string     `json:"official_id,omitempty"`
	Title          string     `json:"title,omitempty"`
	IssueDate      *time.Time `json:"issue_date,omitempty"`
	// TaskID references the pollDecisions task that discovered the decision.
	TaskID    *uuid.UUID `json:"task_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewDecision creates a Decision for the given subject and source document.
func NewDecision(subjectID, documentURL string) (*Decision, error) {
	d := &Decision{
		ID:          uuid.New(),
		SubjectID:   subjectID,
		DocumentURL: documentURL,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}

	return d, nil
}

// Validate checks if the Decision has valid data.
func (d *Decision) Validate() error {
	if d.SubjectID == "" {
		return ErrEmptyDecisionSubject
	}

	if d.DocumentURL == "" {
		return ErrEmptyDecisionURL
	}

	return nil
}
