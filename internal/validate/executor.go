// Package validate executes compiled predicates against a dataset snapshot
// and aggregates per-rule and summary results. One broken rule never aborts
// the run: execution errors are isolated per rule and recorded in that
// rule's result.
package validate

import (
	"fmt"
	"time"

	"github.com/compliq/compliq/internal/compile"
	"github.com/compliq/compliq/internal/dataset"
	"github.com/compliq/compliq/internal/schema"
)

// Run evaluates every compiled predicate against the same immutable dataset
// snapshot and returns the aggregated result. Report order follows the
// compiled input order. The caller supplies the run timestamp so results
// are reproducible under test.
func Run(compiled []compile.Compiled, ds *dataset.Dataset, now time.Time) schema.ValidationResult {
	result := schema.ValidationResult{
		SchemaVersion: schema.SchemaVersion,
		RuleResults:   make(map[string]schema.RuleResult, len(compiled)),
		RuleOrder:     make([]string, 0, len(compiled)),
	}

	for _, c := range compiled {
		rr := runOne(c, ds)
		result.RuleResults[c.Template.RuleID] = rr
		result.RuleOrder = append(result.RuleOrder, c.Template.RuleID)
	}

	// Summary counts come from a single pass after all rules ran, so
	// total == passed + failed holds even when individual predicates erred.
	summary := schema.Summary{Timestamp: now}
	for _, id := range result.RuleOrder {
		summary.Total++
		if result.RuleResults[id].Passed {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	result.Summary = summary
	return result
}

// runOne executes a single predicate with panic isolation. A predicate that
// panics yields a failed result carrying the panic description.
func runOne(c compile.Compiled, ds *dataset.Dataset) (rr schema.RuleResult) {
	rr = schema.RuleResult{
		Severity:    c.Template.Severity,
		Description: c.Template.Description,
	}

	defer func() {
		if r := recover(); r != nil {
			rr.Passed = false
			rr.FailedRecords = nil
			rr.ErrorMessage = fmt.Sprintf("error executing rule: %v", r)
		}
	}()

	res := c.Predicate(ds)
	rr.Passed = res.Passed
	rr.ErrorMessage = res.ErrorMessage

	// A compile-time note (e.g. an unparseable membership set) is surfaced
	// on the result without affecting pass/fail.
	if c.CompileNote != "" && rr.ErrorMessage == "" {
		rr.ErrorMessage = c.CompileNote
	}

	if !res.Passed {
		failed := res.FailedRows
		if len(failed) > schema.MaxFailedRecords {
			failed = failed[:schema.MaxFailedRecords]
		}
		rr.FailedRecords = append([]int(nil), failed...)
	}
	return rr
}
