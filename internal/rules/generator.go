package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/compliq/compliq/internal/llm"
	"github.com/compliq/compliq/internal/schema"
)

const generatorSystemPrompt = `You convert refined data validation requirements into rule templates
that can be compiled into executable validation checks.

For each rule provide:
- rule_id: a unique identifier
- elements: the data element(s) the rule reads (at least one; cross-field rules need two)
- type: one of range_check, categorical_check, not_null_check, cross_field_check
- logic: the validation logic, e.g. "amount >= 0 AND amount <= 10000" or "currency IN [\"USD\", \"EUR\"]"
- severity: one of critical, high, medium, low
- description: a human-readable summary

Return a JSON array of rule template objects only — no prose, no markdown fences.`

// Generator produces rule templates from refined requirements via the
// text-generation service.
type Generator struct {
	provider llm.Provider
	temp     float64
}

// NewGenerator returns a Generator backed by the given provider.
func NewGenerator(provider llm.Provider, temperature float64) *Generator {
	return &Generator{provider: provider, temp: temperature}
}

// GenerateTemplates asks the service to convert refined requirements into
// rule templates and parses the response. A non-parseable response is an
// error here: with no templates there is nothing downstream to run, so this
// producer has no permissive fallback.
func (g *Generator) GenerateTemplates(ctx context.Context, refinedRequirements string) ([]schema.RuleTemplate, error) {
	var sb strings.Builder
	sb.WriteString("Convert the following refined data validation requirements into rule templates:\n\n")
	sb.WriteString(refinedRequirements)

	resp, err := llm.CompleteWithRetry(ctx, g.provider, &llm.Request{
		SystemPrompt: generatorSystemPrompt,
		UserPrompt:   sb.String(),
		Temperature:  g.temp,
	}, llm.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("generating rule templates: %w", err)
	}

	raw := llm.ExtractJSONArray(resp.Content)
	if raw == "" {
		return nil, fmt.Errorf("rule template response contains no JSON array (got: %s)", snippet(resp.Content))
	}

	var templates []schema.RuleTemplate
	if err := json.Unmarshal([]byte(raw), &templates); err != nil {
		return nil, fmt.Errorf("parsing rule templates: %w", err)
	}
	return templates, nil
}

// snippet shortens a response for error messages.
func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
