// Package compile turns rule templates into executable predicates over a
// dataset. Compilation is pure and deterministic: no side effects, no
// network access. Logic strings come from a text-generation service, so
// parsing is defensive — unparseable bounds widen to ±Inf and unparseable
// membership sets compile to always-pass with a recorded diagnostic,
// rather than rejecting the rule.
package compile

import (
	"fmt"
	"strings"

	"github.com/compliq/compliq/internal/dataset"
	"github.com/compliq/compliq/internal/rules"
	"github.com/compliq/compliq/internal/schema"
)

// Result is the outcome of evaluating one predicate against a dataset.
// FailedRows is ascending and uncapped; the executor applies the report cap.
type Result struct {
	Passed       bool
	FailedRows   []int
	ErrorMessage string
}

// Predicate is a pure function of a dataset snapshot. Predicates are never
// shared across snapshots and must be recompiled if the template changes.
type Predicate func(ds *dataset.Dataset) Result

// Compiled pairs a template with its executable predicate. CompileNote
// carries a compile-time diagnostic (e.g. an unparseable membership set)
// that the executor copies into the rule's result.
type Compiled struct {
	Template    schema.RuleTemplate
	Predicate   Predicate
	CompileNote string
}

// Diagnostic records a template the compiler skipped and why.
type Diagnostic struct {
	RuleID  string
	Message string
}

// Batch compiles templates in order. Unknown rule types are skipped with a
// diagnostic; structurally malformed templates and duplicate rule_ids are
// caller errors and abort the batch.
func Batch(templates []schema.RuleTemplate) ([]Compiled, []Diagnostic, error) {
	compiled := make([]Compiled, 0, len(templates))
	var diags []Diagnostic
	seen := make(map[string]bool, len(templates))

	for _, t := range templates {
		if t.RuleID == "" {
			return nil, nil, &rules.MalformedRuleError{Missing: "rule_id"}
		}
		if len(t.Elements) == 0 {
			return nil, nil, &rules.MalformedRuleError{RuleID: t.RuleID, Missing: "elements"}
		}
		if seen[t.RuleID] {
			return nil, nil, fmt.Errorf("duplicate rule_id %q in template batch", t.RuleID)
		}
		seen[t.RuleID] = true

		if t.Type == schema.RuleCrossFieldCheck && len(t.Elements) < 2 {
			diags = append(diags, Diagnostic{
				RuleID:  t.RuleID,
				Message: "cross_field_check requires two elements: template skipped",
			})
			continue
		}

		c, ok := Compile(t)
		if !ok {
			diags = append(diags, Diagnostic{
				RuleID:  t.RuleID,
				Message: fmt.Sprintf("unsupported rule type %q: template skipped", t.Type),
			})
			continue
		}
		compiled = append(compiled, c)
	}
	return compiled, diags, nil
}

// Compile maps one template to a predicate. The second return is false when
// the rule type is not compilable; callers decide whether that is a skip
// (Batch) or an error.
func Compile(t schema.RuleTemplate) (Compiled, bool) {
	switch t.Type {
	case schema.RuleRangeCheck:
		return compileRange(t), true
	case schema.RuleCategoricalCheck:
		return compileCategorical(t), true
	case schema.RuleNotNullCheck:
		return compileNotNull(t), true
	case schema.RuleCrossFieldCheck:
		if len(t.Elements) < 2 {
			return Compiled{}, false
		}
		return compileCrossField(t), true
	default:
		return Compiled{}, false
	}
}

// compileRange builds a predicate failing rows whose value lies outside
// [lower, upper]. Bounds are parsed permissively from the logic string;
// absent or unparsable bounds default to ±Inf. Missing values never fail a
// range check; non-null values that do not parse as numbers do.
func compileRange(t schema.RuleTemplate) Compiled {
	lower, upper := parseBounds(t.Logic)
	column := t.Elements[0]

	return Compiled{
		Template: t,
		Predicate: func(ds *dataset.Dataset) Result {
			if !ds.HasColumn(column) {
				return missingColumns(ds, column)
			}
			var failed []int
			for i := 0; i < ds.NumRows(); i++ {
				v, _ := ds.Cell(i, column)
				if dataset.IsNull(v) {
					continue
				}
				f, ok := dataset.AsFloat(v)
				if !ok || f < lower || f > upper {
					failed = append(failed, i)
				}
			}
			return Result{Passed: len(failed) == 0, FailedRows: failed}
		},
	}
}

// compileCategorical builds a predicate failing rows whose non-null value
// is not in the membership set parsed after the IN token. An unparseable
// set compiles to always-pass with the parse failure recorded as a note.
func compileCategorical(t schema.RuleTemplate) Compiled {
	column := t.Elements[0]
	set, err := parseMembershipSet(t.Logic)
	if err != nil {
		return Compiled{
			Template:    t,
			CompileNote: fmt.Sprintf("could not parse membership set from logic %q: %v; rule treated as always passing", t.Logic, err),
			Predicate: func(*dataset.Dataset) Result {
				return Result{Passed: true}
			},
		}
	}

	return Compiled{
		Template: t,
		Predicate: func(ds *dataset.Dataset) Result {
			if !ds.HasColumn(column) {
				return missingColumns(ds, column)
			}
			var failed []int
			for i := 0; i < ds.NumRows(); i++ {
				v, _ := ds.Cell(i, column)
				if dataset.IsNull(v) {
					continue
				}
				if !set[dataset.AsString(v)] {
					failed = append(failed, i)
				}
			}
			return Result{Passed: len(failed) == 0, FailedRows: failed}
		},
	}
}

// compileNotNull builds a predicate failing rows exactly where the value is
// missing.
func compileNotNull(t schema.RuleTemplate) Compiled {
	column := t.Elements[0]

	return Compiled{
		Template: t,
		Predicate: func(ds *dataset.Dataset) Result {
			if !ds.HasColumn(column) {
				return missingColumns(ds, column)
			}
			var failed []int
			for i := 0; i < ds.NumRows(); i++ {
				v, _ := ds.Cell(i, column)
				if dataset.IsNull(v) {
					failed = append(failed, i)
				}
			}
			return Result{Passed: len(failed) == 0, FailedRows: failed}
		},
	}
}

// compileCrossField builds a predicate comparing the first two elements
// with the operator found in the logic string (default equality). Rows
// where either value is missing do not fail: absence of data is not a
// relation violation.
func compileCrossField(t schema.RuleTemplate) Compiled {
	first, second := t.Elements[0], t.Elements[1]
	op := parseOperator(t.Logic)

	return Compiled{
		Template: t,
		Predicate: func(ds *dataset.Dataset) Result {
			var missing []string
			for _, c := range []string{first, second} {
				if !ds.HasColumn(c) {
					missing = append(missing, c)
				}
			}
			if len(missing) > 0 {
				return missingColumns(ds, missing...)
			}
			var failed []int
			for i := 0; i < ds.NumRows(); i++ {
				a, _ := ds.Cell(i, first)
				b, _ := ds.Cell(i, second)
				if dataset.IsNull(a) || dataset.IsNull(b) {
					continue
				}
				if !compare(a, b, op) {
					failed = append(failed, i)
				}
			}
			return Result{Passed: len(failed) == 0, FailedRows: failed}
		},
	}
}

// missingColumns produces the failed result for absent columns: the rule is
// recorded as failed with a descriptive message, never a thrown error.
func missingColumns(_ *dataset.Dataset, columns ...string) Result {
	return Result{
		Passed:       false,
		ErrorMessage: fmt.Sprintf("column(s) not found in dataset: %s", strings.Join(columns, ", ")),
	}
}
