// Package rules holds the rule template store and the template producers:
// LLM-backed generation from refined requirements and statistical discovery
// from data samples. Producers are pluggable — anything that emits valid
// schema.RuleTemplate values can feed the store.
package rules

import (
	"fmt"

	"github.com/compliq/compliq/internal/schema"
)

// MalformedRuleError reports a structurally invalid rule template: missing
// rule_id or an empty elements list. Structural errors fail fast; they are
// never silently skipped.
type MalformedRuleError struct {
	RuleID  string // empty when the id itself is missing
	Missing string // name of the absent required field
}

func (e *MalformedRuleError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("malformed rule template: missing %s", e.Missing)
	}
	return fmt.Sprintf("malformed rule template %q: missing %s", e.RuleID, e.Missing)
}

// Store is the session's ordered, append-only collection of rule templates.
// It does not deduplicate: duplicate rule_ids are a caller error surfaced at
// compile time.
type Store struct {
	templates []schema.RuleTemplate
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Add validates and appends one template. Returns *MalformedRuleError when
// rule_id or elements is missing.
func (s *Store) Add(t schema.RuleTemplate) error {
	if t.RuleID == "" {
		return &MalformedRuleError{Missing: "rule_id"}
	}
	if len(t.Elements) == 0 {
		return &MalformedRuleError{RuleID: t.RuleID, Missing: "elements"}
	}
	s.templates = append(s.templates, t)
	return nil
}

// AddAll appends templates in order, stopping at the first malformed one.
func (s *Store) AddAll(templates []schema.RuleTemplate) error {
	for _, t := range templates {
		if err := s.Add(t); err != nil {
			return err
		}
	}
	return nil
}

// List returns the templates in insertion order. The returned slice is a
// copy; the store itself stays append-only.
func (s *Store) List() []schema.RuleTemplate {
	return append([]schema.RuleTemplate(nil), s.templates...)
}

// Len returns the number of stored templates.
func (s *Store) Len() int { return len(s.templates) }
