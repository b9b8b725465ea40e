package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/compliq/compliq/internal/schema"
)

// Renderer formats an AuditReport into bytes for output.
type Renderer interface {
	Render(report *schema.AuditReport) ([]byte, error)
}

// NewRenderer returns a Renderer for the given format string.
// Supported formats: "json" (default), "md".
func NewRenderer(format string) (Renderer, error) {
	switch format {
	case "json":
		return &jsonRenderer{}, nil
	case "md":
		return &markdownRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q: supported formats are json, md", format)
	}
}

type jsonRenderer struct{}

func (r *jsonRenderer) Render(report *schema.AuditReport) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}

type markdownRenderer struct{}

var mdTemplate = template.Must(template.New("report").Parse(`# Data Quality Audit Report

**Validated:** {{ .Data.ValidationSummary.Timestamp.Format "2006-01-02 15:04:05 MST" }}
**Rules:** {{ .Data.ValidationSummary.Total }} total | {{ .Data.ValidationSummary.Passed }} passed | {{ .Data.ValidationSummary.Failed }} failed
**Remediation:** {{ .Data.RemediationSummary.AutomatedRemediations }} automated | {{ .Data.RemediationSummary.FailedRemediations }} failed | {{ .Data.RemediationSummary.ManualReviewRequired }} need manual review
{{ if .Data.IssueDetails }}
---

## Issues
{{ range .Data.IssueDetails }}
### {{ .RuleID }} · {{ .Severity }} · {{ .RemediationStatus }}
{{ .Description }}
{{ if .RemediationSteps }}
**Remediation steps:**
{{ range .RemediationSteps }}- {{ . }}
{{ end }}{{ end }}{{ if .RemediationError }}
**Remediation error:** {{ .RemediationError }}
{{ end }}
*Audit note:* {{ .AuditorExplanation }}
{{ end }}{{ end }}{{ if .Data.DatasetDiff }}
---

## Dataset Changes

` + "```" + `
{{ .Data.DatasetDiff }}
` + "```" + `
{{ end }}{{ if .Narrative }}
---

{{ .Narrative }}
{{ end }}`))

func (r *markdownRenderer) Render(report *schema.AuditReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := mdTemplate.Execute(&buf, report); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.Bytes(), nil
}
