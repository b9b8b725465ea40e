// Package pipeline sequences the validation stages over a session: documents
// to requirements to rule templates to compiled validation to results to
// remediation to audit. The orchestrator owns session state and enforces
// stage preconditions; an unmet precondition warns and no-ops rather than
// failing the run.
package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/compliq/compliq/internal/dataset"
	"github.com/compliq/compliq/internal/extract"
	"github.com/compliq/compliq/internal/schema"
)

// Session carries every slot one pipeline run can populate. Slots start
// empty (nil) and are populated monotonically within a run; later stages
// read but never mutate earlier slots. Re-running an earlier stage
// overwrites its slot without recomputing downstream slots.
type Session struct {
	ID        string
	StartedAt time.Time

	Docs        []extract.Document
	Sources     map[string]*dataset.Dataset
	sourceOrder []string

	Extracted      *extract.Requirements
	Refined        *extract.Requirements
	Templates      []schema.RuleTemplate
	ValidationCode string
	Validation     *schema.ValidationResult
	Remediation    *schema.RemediationSet
	Applied        []schema.AppliedRemediation
	Remediated     *dataset.Dataset
	Report         *schema.AuditReport
}

// NewSession returns an empty session with a fresh identity.
func NewSession(now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: now,
		Sources:   make(map[string]*dataset.Dataset),
	}
}

// AddSource registers a named dataset, preserving insertion order.
// Re-adding a name replaces the dataset without changing its position.
func (s *Session) AddSource(name string, ds *dataset.Dataset) {
	if _, exists := s.Sources[name]; !exists {
		s.sourceOrder = append(s.sourceOrder, name)
	}
	s.Sources[name] = ds
}

// PrimarySource returns the first-added dataset, or nil when none exist.
func (s *Session) PrimarySource() *dataset.Dataset {
	if len(s.sourceOrder) == 0 {
		return nil
	}
	return s.Sources[s.sourceOrder[0]]
}

// PrimarySourceName returns the name of the first-added dataset.
func (s *Session) PrimarySourceName() string {
	if len(s.sourceOrder) == 0 {
		return ""
	}
	return s.sourceOrder[0]
}
