package remediate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/compliq/compliq/internal/dataset"
	"github.com/compliq/compliq/internal/llm"
	"github.com/compliq/compliq/internal/schema"
)

const executorSystemPrompt = `You translate a remediation description into data transformation
operations. Respond with a JSON array of operation objects and nothing else.
Available operations:

[
  {"op": "clamp", "column": "amount", "lower": 0, "upper": 10000},
  {"op": "fill_null", "column": "currency", "value": "USD"},
  {"op": "replace", "column": "country", "from": "UK", "to": "GB"},
  {"op": "copy", "column": "billing_country", "source": "country"},
  {"op": "set_null", "column": "email", "where": {"equals": "unknown"}},
  {"op": "drop_rows", "column": "amount", "where": {"below": 0}}
]

Conditions for set_null/drop_rows: {"equals": v}, {"not_in": [..]},
{"below": n}, {"above": n}, or {"is_null": true}. If the description cannot
be expressed with these operations, return an empty array.`

// Executor applies automated remediation plans to a dataset copy. The
// caller's dataset is never mutated; each plan is applied in isolation so
// one failing transformation cannot corrupt another rule's remediation.
type Executor struct {
	provider llm.Provider
	temp     float64
	timeout  time.Duration
}

// NewExecutor returns an Executor with the given per-call timeout.
func NewExecutor(provider llm.Provider, temperature float64, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Executor{provider: provider, temp: temperature, timeout: timeout}
}

// Apply runs every plan with can_automate=true against a working copy of
// ds and returns the remediated copy plus one record per attempted plan.
// Plans run in rule_id order for reproducible output. Failures are recorded
// and never roll back remediations already applied for other rules.
func (e *Executor) Apply(ctx context.Context, ds *dataset.Dataset, plans map[string]schema.RemediationPlan) (*dataset.Dataset, []schema.AppliedRemediation) {
	working := ds.Clone()
	var records []schema.AppliedRemediation

	ids := make([]string, 0, len(plans))
	for id := range plans {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		plan := plans[id]
		if !plan.CanAutomate {
			continue
		}

		// Each plan transforms a scratch copy; the working copy advances
		// only on success, so a mid-application failure leaves no partial
		// state behind.
		scratch := working.Clone()
		if err := e.applyOne(ctx, scratch, plan); err != nil {
			records = append(records, schema.AppliedRemediation{
				RuleID: id,
				Status: schema.RemediationFailed,
				Error:  err.Error(),
			})
			continue
		}
		working = scratch
		records = append(records, schema.AppliedRemediation{
			RuleID:      id,
			Status:      schema.RemediationApplied,
			Description: plan.Explanation,
		})
	}
	return working, records
}

// applyOne asks the service to express the plan's automation description in
// the transform DSL and applies the resulting operations.
func (e *Executor) applyOne(ctx context.Context, ds *dataset.Dataset, plan schema.RemediationPlan) error {
	if plan.AutomationCode == "" {
		return fmt.Errorf("plan has no automation description")
	}

	prompt := fmt.Sprintf(`Translate the following remediation into transformation operations.

Rule ID: %s
Rule Type: %s
Remediation: %s

Dataset columns: %v`, plan.RuleID, plan.RuleType, plan.AutomationCode, ds.Columns())

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	resp, err := e.provider.Complete(callCtx, &llm.Request{
		SystemPrompt: executorSystemPrompt,
		UserPrompt:   prompt,
		Temperature:  e.temp,
	})
	if err != nil {
		return fmt.Errorf("requesting transformation: %w", err)
	}

	raw := llm.ExtractJSONArray(resp.Content)
	if raw == "" {
		return fmt.Errorf("transformation response contains no operation array")
	}
	ops, err := ParseOps(raw)
	if err != nil {
		return err
	}

	for i, op := range ops {
		if err := op.Apply(ds); err != nil {
			return fmt.Errorf("applying operation %d: %w", i, err)
		}
	}
	return nil
}
