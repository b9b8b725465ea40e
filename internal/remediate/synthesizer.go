// Package remediate synthesizes corrective-transformation plans for failed
// rules and applies them to a dataset copy. Remediation logic is data, not
// code: the external service describes fixes, and the executor maps them
// onto a whitelisted set of column operations. Every failure mode here
// degrades to "flag for manual review" — a remediation pipeline never
// crashes the batch.
package remediate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/compliq/compliq/internal/dataset"
	"github.com/compliq/compliq/internal/llm"
	"github.com/compliq/compliq/internal/redact"
	"github.com/compliq/compliq/internal/schema"
)

// maxSampleRows bounds how many failing rows are shown to the service per
// rule.
const maxSampleRows = 10

// maxConcurrentCalls bounds the per-rule synthesis fan-out. Plans are
// independent of each other; aggregation waits for all of them.
const maxConcurrentCalls = 4

const synthSystemPrompt = `You generate remediation plans for data validation failures in regulated
datasets. Respond with a JSON object of this exact structure and nothing else:

{
  "explanation": "Clear explanation of why the data likely failed",
  "remediation_steps": ["Step 1", "Step 2"],
  "can_automate": true,
  "automation_code": "Plain description of the automatic fix, e.g. clamp amount to [0, 10000]",
  "auditor_explanation": "Explanation suitable for compliance auditors"
}

Set can_automate to true only when the fix is a simple column transformation
(clamping to a range, replacing invalid values, filling or clearing nulls,
dropping bad rows, copying one column to another).`

// Synthesizer requests remediation plans from the text-generation service.
type Synthesizer struct {
	provider llm.Provider
	temp     float64
	timeout  time.Duration
}

// NewSynthesizer returns a Synthesizer. timeout bounds every service call;
// a timeout is treated like a parse failure (safe fallback plan).
func NewSynthesizer(provider llm.Provider, temperature float64, timeout time.Duration) *Synthesizer {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Synthesizer{provider: provider, temp: temperature, timeout: timeout}
}

// Plan generates one remediation plan per failed rule. Rules that passed
// are not remediated. Sample failing rows are redacted before prompt
// insertion. Synthesis calls run concurrently; the summary is computed only
// after every call has finished.
func (s *Synthesizer) Plan(ctx context.Context, result schema.ValidationResult, ds *dataset.Dataset, templates []schema.RuleTemplate) schema.RemediationSet {
	byID := make(map[string]schema.RuleTemplate, len(templates))
	for _, t := range templates {
		byID[t.RuleID] = t
	}

	var failed []string
	for _, id := range result.RuleOrder {
		if !result.RuleResults[id].Passed {
			failed = append(failed, id)
		}
	}

	plans := make([]schema.RemediationPlan, len(failed))
	sem := make(chan struct{}, maxConcurrentCalls)
	var wg sync.WaitGroup
	for i, id := range failed {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			plans[i] = s.planOne(ctx, id, byID[id], result.RuleResults[id], ds)
		}(i, id)
	}
	wg.Wait()

	set := schema.RemediationSet{
		SchemaVersion: schema.SchemaVersion,
		Plans:         make(map[string]schema.RemediationPlan, len(plans)),
	}
	set.Summary.TotalIssues = len(plans)
	for _, p := range plans {
		set.Plans[p.RuleID] = p
		if p.CanAutomate {
			set.Summary.AutomatableIssues++
		} else {
			set.Summary.ManualReviewIssues++
		}
	}
	return set
}

// planPayload mirrors the response schema. Pointer fields distinguish
// "absent" from zero values so missing fields get the placeholder.
type planPayload struct {
	Explanation        *string  `json:"explanation"`
	RemediationSteps   []string `json:"remediation_steps"`
	CanAutomate        *bool    `json:"can_automate"`
	AutomationCode     string   `json:"automation_code"`
	AuditorExplanation *string  `json:"auditor_explanation"`
}

const notProvided = "Not provided"

func (s *Synthesizer) planOne(ctx context.Context, ruleID string, tmpl schema.RuleTemplate, rr schema.RuleResult, ds *dataset.Dataset) schema.RemediationPlan {
	sample := rr.FailedRecords
	if len(sample) > maxSampleRows {
		sample = sample[:maxSampleRows]
	}
	rows := redact.RedactRows(ds.Rows(sample))
	rowsJSON, _ := json.MarshalIndent(rows, "", "  ")

	prompt := fmt.Sprintf(`Generate a remediation plan for the following validation issue:

Rule ID: %s
Rule Type: %s
Rule Description: %s
Severity: %s
Rule Logic: %s
Failure Detail: %s

The validation failed on these example records:
%s`,
		ruleID, tmpl.Type, tmpl.Description, tmpl.Severity, tmpl.Logic, rr.ErrorMessage, rowsJSON)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	resp, err := s.provider.Complete(callCtx, &llm.Request{
		SystemPrompt: synthSystemPrompt,
		UserPrompt:   prompt,
		Temperature:  s.temp,
	})
	if err != nil {
		return fallbackPlan(ruleID, tmpl)
	}

	raw := llm.ExtractJSON(resp.Content)
	if raw == "" {
		return fallbackPlan(ruleID, tmpl)
	}
	var payload planPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fallbackPlan(ruleID, tmpl)
	}

	plan := schema.RemediationPlan{
		RuleID:         ruleID,
		RuleType:       tmpl.Type,
		Severity:       tmpl.Severity,
		AutomationCode: payload.AutomationCode,
	}
	plan.Explanation = orPlaceholder(payload.Explanation)
	plan.AuditorExplanation = orPlaceholder(payload.AuditorExplanation)
	if len(payload.RemediationSteps) > 0 {
		plan.RemediationSteps = payload.RemediationSteps
	} else {
		plan.RemediationSteps = []string{notProvided}
	}
	if payload.CanAutomate != nil {
		plan.CanAutomate = *payload.CanAutomate
	}
	return plan
}

func orPlaceholder(s *string) string {
	if s == nil || *s == "" {
		return notProvided
	}
	return *s
}

// fallbackPlan is the safe default when synthesis fails for any reason:
// manual review required, nothing automated.
func fallbackPlan(ruleID string, tmpl schema.RuleTemplate) schema.RemediationPlan {
	ruleType := tmpl.Type
	if ruleType == "" {
		ruleType = "unknown"
	}
	severity := tmpl.Severity
	if severity == "" {
		severity = "unknown"
	}
	return schema.RemediationPlan{
		RuleID:             ruleID,
		RuleType:           ruleType,
		Severity:           severity,
		Explanation:        "Could not generate explanation due to an error.",
		RemediationSteps:   []string{"Manual review required"},
		CanAutomate:        false,
		AuditorExplanation: "Validation failed, but an automatic remediation recommendation could not be generated. Manual review required.",
	}
}
