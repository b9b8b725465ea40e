package schema

import "time"

// SchemaVersion is stamped into every persisted artifact so future readers
// can detect format changes.
const SchemaVersion = 1

// RuleType classifies the kind of validation a rule template encodes.
// The set is open: producers may emit new kinds, and the compiler skips
// kinds it does not recognize instead of failing the batch.
type RuleType string

const (
	RuleRangeCheck       RuleType = "range_check"
	RuleCategoricalCheck RuleType = "categorical_check"
	RuleNotNullCheck     RuleType = "not_null_check"
	RuleCrossFieldCheck  RuleType = "cross_field_check"
	RuleCorrelationCheck RuleType = "correlation_check"
)

// Severity levels for rule violations. Severity affects report ordering
// only, never control flow.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// SeverityOrdinal returns the numeric ordering for a severity, used to sort
// report rows most-severe first. critical(3) > high(2) > medium(1) > low(0).
// Returns -1 for an unrecognised severity.
func SeverityOrdinal(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 0
	default:
		return -1
	}
}

// RuleTemplate is the unit of compilation: a normalized validation rule
// produced upstream (LLM-backed generation or statistical discovery).
type RuleTemplate struct {
	RuleID      string   `json:"rule_id"`
	Elements    []string `json:"elements"`
	Type        RuleType `json:"type"`
	Logic       string   `json:"logic"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	// Confidence is set by statistical discovery ("high", "medium", "low");
	// empty for requirement-derived rules.
	Confidence string `json:"confidence,omitempty"`
}

// Summary holds the aggregate counts for one validation run.
// Invariant: Total == Passed + Failed.
type Summary struct {
	Total     int       `json:"total_rules"`
	Passed    int       `json:"passed_rules"`
	Failed    int       `json:"failed_rules"`
	Timestamp time.Time `json:"validation_timestamp"`
}

// MaxFailedRecords caps the failing-row list stored per rule for report
// size control.
const MaxFailedRecords = 100

// RuleResult records the outcome of executing one compiled rule.
// FailedRecords holds at most MaxFailedRecords row indices in ascending
// order; truncation never affects Passed or the summary counts.
type RuleResult struct {
	Passed        bool     `json:"passed"`
	Severity      Severity `json:"severity"`
	Description   string   `json:"description"`
	FailedRecords []int    `json:"failed_records,omitempty"`
	ErrorMessage  string   `json:"error_message,omitempty"`
}

// ValidationResult is produced once per executor run. Every rule_id present
// in the input templates appears exactly once in RuleResults, even when
// compilation or execution erred.
type ValidationResult struct {
	SchemaVersion int                   `json:"schema_version"`
	Summary       Summary               `json:"summary"`
	RuleResults   map[string]RuleResult `json:"rule_results"`
	// RuleOrder preserves input template order so rendered reports are
	// deterministic; map iteration order is not.
	RuleOrder []string `json:"rule_order"`
}

// RemediationPlan describes how to correct one failed rule. If CanAutomate
// is false, AutomationCode is never executed even when present.
type RemediationPlan struct {
	RuleID             string   `json:"rule_id"`
	RuleType           RuleType `json:"rule_type"`
	Severity           Severity `json:"severity"`
	Explanation        string   `json:"explanation"`
	RemediationSteps   []string `json:"remediation_steps"`
	CanAutomate        bool     `json:"can_automate"`
	AutomationCode     string   `json:"automation_code,omitempty"`
	AuditorExplanation string   `json:"auditor_explanation"`
}

// RemediationStatus is the terminal state of one attempted automated plan.
type RemediationStatus string

const (
	RemediationApplied      RemediationStatus = "applied"
	RemediationFailed       RemediationStatus = "failed"
	RemediationNotAttempted RemediationStatus = "not_attempted"
)

// AppliedRemediation records one attempted automated plan. At most one
// record exists per rule_id per remediation pass.
type AppliedRemediation struct {
	RuleID      string            `json:"rule_id"`
	Status      RemediationStatus `json:"status"`
	Error       string            `json:"error,omitempty"`
	Description string            `json:"description,omitempty"`
}

// RemediationSummary counts plans by disposition for one synthesis pass.
type RemediationSummary struct {
	TotalIssues        int `json:"total_issues"`
	AutomatableIssues  int `json:"automatable_issues"`
	ManualReviewIssues int `json:"manual_review_issues"`
}

// RemediationSet bundles the per-rule plans with their summary.
type RemediationSet struct {
	SchemaVersion int                        `json:"schema_version"`
	Summary       RemediationSummary         `json:"summary"`
	Plans         map[string]RemediationPlan `json:"remediation_plans"`
}

// IssueDetail joins one remediation plan with its applied-record status for
// the audit report.
type IssueDetail struct {
	RuleID             string            `json:"rule_id"`
	Description        string            `json:"description"`
	Severity           Severity          `json:"severity"`
	RemediationSteps   []string          `json:"remediation_steps"`
	Automated          bool              `json:"automated"`
	RemediationStatus  RemediationStatus `json:"remediation_status"`
	RemediationError   string            `json:"remediation_error,omitempty"`
	AuditorExplanation string            `json:"auditor_explanation"`
}

// AuditCounts breaks down remediation outcomes for the audit report.
type AuditCounts struct {
	TotalIssues           int `json:"total_issues"`
	AutomatedRemediations int `json:"automated_remediations"`
	FailedRemediations    int `json:"failed_remediations"`
	ManualReviewRequired  int `json:"manual_review_required"`
}

// ReportData is the deterministic aggregation the audit assembler computes
// before any narrative rendering. It must be reproducible independent of
// the narrative.
type ReportData struct {
	SchemaVersion      int           `json:"schema_version"`
	ValidationSummary  Summary       `json:"validation_summary"`
	RemediationSummary AuditCounts   `json:"remediation_summary"`
	IssueDetails       []IssueDetail `json:"issue_details"`
	DatasetDiff        string        `json:"dataset_diff,omitempty"`
}

// AuditReport is the final artifact: the deterministic aggregation plus a
// delegated narrative.
type AuditReport struct {
	Data      ReportData `json:"data"`
	Narrative string     `json:"narrative"`
}
