package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/compliq/compliq/internal/dataset"
	"github.com/compliq/compliq/internal/llm"
	"github.com/compliq/compliq/internal/schema"
)

func sampleInputs() (schema.ValidationResult, map[string]schema.RemediationPlan, []schema.AppliedRemediation) {
	result := schema.ValidationResult{
		SchemaVersion: schema.SchemaVersion,
		Summary: schema.Summary{
			Total:     4,
			Passed:    1,
			Failed:    3,
			Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		RuleOrder: []string{"R001", "R002", "R003", "R004"},
	}
	plans := map[string]schema.RemediationPlan{
		"R002": {
			RuleID:             "R002",
			Severity:           schema.SeverityMedium,
			Explanation:        "Age outside bounds",
			RemediationSteps:   []string{"Clamp to range"},
			CanAutomate:        true,
			AuditorExplanation: "Values corrected automatically",
		},
		"R003": {
			RuleID:             "R003",
			Severity:           schema.SeverityCritical,
			Explanation:        "Missing consent flag",
			CanAutomate:        false,
			AuditorExplanation: "Manual review required",
		},
		"R004": {
			RuleID:             "R004",
			Severity:           schema.SeverityMedium,
			Explanation:        "Unknown status code",
			CanAutomate:        true,
			AuditorExplanation: "Replaced with default",
		},
	}
	applied := []schema.AppliedRemediation{
		{RuleID: "R002", Status: schema.RemediationApplied},
		{RuleID: "R004", Status: schema.RemediationFailed, Error: "no transform produced"},
	}
	return result, plans, applied
}

func TestAggregate_Counts(t *testing.T) {
	result, plans, applied := sampleInputs()
	data := Aggregate(result, plans, applied, "")

	if data.SchemaVersion != schema.SchemaVersion {
		t.Errorf("schema version = %d", data.SchemaVersion)
	}
	c := data.RemediationSummary
	if c.TotalIssues != 3 {
		t.Errorf("TotalIssues = %d, want 3", c.TotalIssues)
	}
	if c.AutomatedRemediations != 1 {
		t.Errorf("AutomatedRemediations = %d, want 1", c.AutomatedRemediations)
	}
	if c.FailedRemediations != 1 {
		t.Errorf("FailedRemediations = %d, want 1", c.FailedRemediations)
	}
	if c.ManualReviewRequired != 1 {
		t.Errorf("ManualReviewRequired = %d, want 1", c.ManualReviewRequired)
	}
}

func TestAggregate_IssueOrderingAndJoin(t *testing.T) {
	result, plans, applied := sampleInputs()
	data := Aggregate(result, plans, applied, "")

	if len(data.IssueDetails) != 3 {
		t.Fatalf("issue count = %d, want 3", len(data.IssueDetails))
	}
	// Most severe first, then rule_id.
	wantOrder := []string{"R003", "R002", "R004"}
	for i, want := range wantOrder {
		if data.IssueDetails[i].RuleID != want {
			t.Errorf("issue[%d] = %s, want %s", i, data.IssueDetails[i].RuleID, want)
		}
	}

	byID := make(map[string]schema.IssueDetail)
	for _, d := range data.IssueDetails {
		byID[d.RuleID] = d
	}
	if byID["R002"].RemediationStatus != schema.RemediationApplied {
		t.Errorf("R002 status = %s", byID["R002"].RemediationStatus)
	}
	if byID["R003"].RemediationStatus != schema.RemediationNotAttempted {
		t.Errorf("R003 status = %s", byID["R003"].RemediationStatus)
	}
	if byID["R004"].RemediationStatus != schema.RemediationFailed {
		t.Errorf("R004 status = %s", byID["R004"].RemediationStatus)
	}
	if byID["R004"].RemediationError != "no transform produced" {
		t.Errorf("R004 error = %q", byID["R004"].RemediationError)
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	result, plans, applied := sampleInputs()
	first := Aggregate(result, plans, applied, "")
	for i := 0; i < 5; i++ {
		again := Aggregate(result, plans, applied, "")
		for j := range first.IssueDetails {
			if again.IssueDetails[j].RuleID != first.IssueDetails[j].RuleID {
				t.Fatalf("run %d: issue order changed at %d", i, j)
			}
		}
	}
}

func TestDatasetDiff(t *testing.T) {
	before, err := dataset.FromCSV(strings.NewReader("age\n150\n30\n"))
	if err != nil {
		t.Fatal(err)
	}
	after := before.Clone()
	after.SetCell(0, "age", "120")

	if got := DatasetDiff(before, before.Clone()); got != "" {
		t.Errorf("identical datasets produced diff: %q", got)
	}
	diff := DatasetDiff(before, after)
	if diff == "" {
		t.Fatal("changed dataset produced empty diff")
	}
	if !strings.Contains(diff, "150") || !strings.Contains(diff, "120") {
		t.Errorf("diff missing changed values: %q", diff)
	}
	// Whole rows, not character fragments.
	if !strings.Contains(diff, "-150\n") || !strings.Contains(diff, "+120\n") {
		t.Errorf("diff not rendered line by line: %q", diff)
	}
}

type stubProvider struct {
	content string
	err     error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Complete(_ context.Context, _ *llm.Request) (*llm.Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Content: p.content}, nil
}

func TestReport_Narrative(t *testing.T) {
	result, plans, applied := sampleInputs()
	data := Aggregate(result, plans, applied, "")

	a := NewAssembler(&stubProvider{content: "```markdown\n# Audit\nAll good.\n```"}, 0.3, time.Minute)
	report := a.Report(context.Background(), data)
	if report.Narrative != "# Audit\nAll good." {
		t.Errorf("narrative = %q", report.Narrative)
	}
	if report.Data.RemediationSummary.TotalIssues != 3 {
		t.Errorf("data not carried through")
	}
}

func TestReport_FallbackOnProviderError(t *testing.T) {
	result, plans, applied := sampleInputs()
	data := Aggregate(result, plans, applied, "")

	a := NewAssembler(&stubProvider{err: errors.New("service unavailable")}, 0.3, time.Minute)
	report := a.Report(context.Background(), data)
	if report.Narrative == "" {
		t.Fatal("fallback narrative empty")
	}
	if !strings.Contains(report.Narrative, "R003") {
		t.Errorf("fallback narrative missing issue detail: %q", report.Narrative)
	}
}

func TestRenderers(t *testing.T) {
	result, plans, applied := sampleInputs()
	report := &schema.AuditReport{
		Data:      Aggregate(result, plans, applied, ""),
		Narrative: "Narrative body.",
	}

	jr, err := NewRenderer("json")
	if err != nil {
		t.Fatal(err)
	}
	out, err := jr.Render(report)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"rule_id": "R003"`) {
		t.Errorf("json output missing issue: %s", out)
	}

	mr, err := NewRenderer("md")
	if err != nil {
		t.Fatal(err)
	}
	out, err = mr.Render(report)
	if err != nil {
		t.Fatal(err)
	}
	md := string(out)
	for _, want := range []string{"# Data Quality Audit Report", "R003", "Narrative body."} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	if _, err := NewRenderer("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
