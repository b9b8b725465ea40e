// Package audit merges validation results, remediation plans, and applied
// remediation records into a single structured report, then delegates the
// narrative rendering to the external text-generation service. The
// aggregation itself is deterministic and reproducible independent of the
// narrative.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/compliq/compliq/internal/llm"
	"github.com/compliq/compliq/internal/schema"
)

const narrativeSystemPrompt = `You write compliance audit reports. Given validation and remediation data
as JSON, produce a well-structured markdown document with:
1. An executive summary
2. Validation results overview
3. Remediation actions taken
4. Issues requiring manual review
5. Recommendations for process improvement

Return the markdown document only.`

// Aggregate computes the deterministic report structure: remediation
// outcome counts and per-issue detail rows joining each plan with its
// applied-record status by rule_id. Issues are ordered most-severe first,
// ties broken by rule_id, so repeated runs render identically.
func Aggregate(result schema.ValidationResult, plans map[string]schema.RemediationPlan, applied []schema.AppliedRemediation, datasetDiff string) schema.ReportData {
	data := schema.ReportData{
		SchemaVersion:     schema.SchemaVersion,
		ValidationSummary: result.Summary,
		DatasetDiff:       datasetDiff,
	}
	data.RemediationSummary.TotalIssues = len(plans)

	status := make(map[string]schema.AppliedRemediation, len(applied))
	for _, rec := range applied {
		status[rec.RuleID] = rec
		switch rec.Status {
		case schema.RemediationApplied:
			data.RemediationSummary.AutomatedRemediations++
		case schema.RemediationFailed:
			data.RemediationSummary.FailedRemediations++
		}
	}
	for _, plan := range plans {
		if !plan.CanAutomate {
			data.RemediationSummary.ManualReviewRequired++
		}
	}

	ids := make([]string, 0, len(plans))
	for id := range plans {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		si := schema.SeverityOrdinal(plans[ids[i]].Severity)
		sj := schema.SeverityOrdinal(plans[ids[j]].Severity)
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})

	for _, id := range ids {
		plan := plans[id]
		detail := schema.IssueDetail{
			RuleID:             id,
			Description:        plan.Explanation,
			Severity:           plan.Severity,
			RemediationSteps:   plan.RemediationSteps,
			Automated:          plan.CanAutomate,
			RemediationStatus:  schema.RemediationNotAttempted,
			AuditorExplanation: plan.AuditorExplanation,
		}
		if rec, ok := status[id]; ok {
			detail.RemediationStatus = rec.Status
			if rec.Status == schema.RemediationFailed {
				detail.RemediationError = rec.Error
			}
		}
		data.IssueDetails = append(data.IssueDetails, detail)
	}
	return data
}

// Assembler renders the narrative for an aggregated report via the
// text-generation service.
type Assembler struct {
	provider llm.Provider
	temp     float64
	timeout  time.Duration
}

// NewAssembler returns an Assembler with the given per-call timeout.
func NewAssembler(provider llm.Provider, temperature float64, timeout time.Duration) *Assembler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Assembler{provider: provider, temp: temperature, timeout: timeout}
}

// Report attaches a narrative to the aggregated data. When the service
// fails or returns nothing usable, the narrative falls back to the
// deterministic markdown rendering — the report is degraded, never absent.
func (a *Assembler) Report(ctx context.Context, data schema.ReportData) schema.AuditReport {
	report := schema.AuditReport{Data: data}

	dataJSON, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		report.Narrative = fallbackNarrative(data)
		return report
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	resp, err := a.provider.Complete(callCtx, &llm.Request{
		SystemPrompt: narrativeSystemPrompt,
		UserPrompt:   fmt.Sprintf("Generate the audit report for this data:\n\n%s", dataJSON),
		Temperature:  a.temp,
	})
	if err != nil || resp.Content == "" {
		report.Narrative = fallbackNarrative(data)
		return report
	}

	report.Narrative = llm.StripFences(resp.Content)
	return report
}

// fallbackNarrative renders the structured data through the markdown
// renderer so a degraded report still reads as a document.
func fallbackNarrative(data schema.ReportData) string {
	out, err := (&markdownRenderer{}).Render(&schema.AuditReport{Data: data})
	if err != nil {
		return "Audit narrative unavailable; see structured report data."
	}
	return string(out)
}
