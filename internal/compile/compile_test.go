package compile

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/compliq/compliq/internal/dataset"
	"github.com/compliq/compliq/internal/rules"
	"github.com/compliq/compliq/internal/schema"
)

func datasetWith(t *testing.T, column string, values ...any) *dataset.Dataset {
	t.Helper()
	ds := dataset.New([]string{column})
	for _, v := range values {
		if err := ds.AppendRow([]any{v}); err != nil {
			t.Fatal(err)
		}
	}
	return ds
}

func rangeTemplate(logic string) schema.RuleTemplate {
	return schema.RuleTemplate{
		RuleID:   "range1",
		Elements: []string{"amount"},
		Type:     schema.RuleRangeCheck,
		Logic:    logic,
		Severity: schema.SeverityHigh,
	}
}

func TestRangeCheck_BoundsAndNulls(t *testing.T) {
	// [10, 20] against [5, 15, 25, null]: exactly the rows holding 5 and 25
	// fail; the null passes.
	ds := datasetWith(t, "amount", "5", "15", "25", nil)
	c, ok := Compile(rangeTemplate("amount >= 10 AND amount <= 20"))
	if !ok {
		t.Fatal("range_check should compile")
	}
	res := c.Predicate(ds)
	if res.Passed {
		t.Error("expected failure")
	}
	if !reflect.DeepEqual(res.FailedRows, []int{0, 2}) {
		t.Errorf("FailedRows = %v, want [0 2]", res.FailedRows)
	}
}

func TestRangeCheck_MissingBoundsDefaultToInf(t *testing.T) {
	lower, upper := parseBounds("no bounds here")
	if !math.IsInf(lower, -1) || !math.IsInf(upper, 1) {
		t.Errorf("bounds = %g, %g, want -Inf, +Inf", lower, upper)
	}

	ds := datasetWith(t, "amount", "-1000000", "1000000")
	c, _ := Compile(rangeTemplate("gibberish"))
	if res := c.Predicate(ds); !res.Passed {
		t.Errorf("unbounded range should pass everything: %+v", res)
	}
}

func TestRangeCheck_OneSidedBound(t *testing.T) {
	ds := datasetWith(t, "amount", "5", "50")
	c, _ := Compile(rangeTemplate("amount >= 10"))
	res := c.Predicate(ds)
	if !reflect.DeepEqual(res.FailedRows, []int{0}) {
		t.Errorf("FailedRows = %v, want [0]", res.FailedRows)
	}
}

func TestRangeCheck_NonNumericValueFails(t *testing.T) {
	ds := datasetWith(t, "amount", "abc", "15")
	c, _ := Compile(rangeTemplate("amount >= 10 AND amount <= 20"))
	res := c.Predicate(ds)
	if !reflect.DeepEqual(res.FailedRows, []int{0}) {
		t.Errorf("FailedRows = %v, want [0]", res.FailedRows)
	}
}

func TestRangeCheck_MissingColumn(t *testing.T) {
	ds := datasetWith(t, "other", "1")
	c, _ := Compile(rangeTemplate("amount >= 0"))
	res := c.Predicate(ds)
	if res.Passed || res.ErrorMessage == "" {
		t.Errorf("missing column must fail with message: %+v", res)
	}
}

func TestRangeCheck_EmptyDatasetPasses(t *testing.T) {
	ds := dataset.New([]string{"amount"})
	c, _ := Compile(rangeTemplate("amount >= 0 AND amount <= 1"))
	if res := c.Predicate(ds); !res.Passed {
		t.Errorf("empty dataset must pass vacuously: %+v", res)
	}
}

func categoricalTemplate(logic string) schema.RuleTemplate {
	return schema.RuleTemplate{
		RuleID:   "cat1",
		Elements: []string{"code"},
		Type:     schema.RuleCategoricalCheck,
		Logic:    logic,
		Severity: schema.SeverityMedium,
	}
}

func TestCategoricalCheck_MembershipAndNulls(t *testing.T) {
	// {"A","B"} against ["A","C",null]: exactly "C" fails, null passes.
	ds := datasetWith(t, "code", "A", "C", nil)
	c, ok := Compile(categoricalTemplate(`code IN ["A", "B"]`))
	if !ok {
		t.Fatal("categorical_check should compile")
	}
	res := c.Predicate(ds)
	if res.Passed {
		t.Error("expected failure")
	}
	if !reflect.DeepEqual(res.FailedRows, []int{1}) {
		t.Errorf("FailedRows = %v, want [1]", res.FailedRows)
	}
}

func TestCategoricalCheck_SingleQuotedList(t *testing.T) {
	ds := datasetWith(t, "code", "A", "Z")
	c, _ := Compile(categoricalTemplate("code IN ['A', 'B']"))
	res := c.Predicate(ds)
	if !reflect.DeepEqual(res.FailedRows, []int{1}) {
		t.Errorf("FailedRows = %v, want [1]", res.FailedRows)
	}
}

func TestCategoricalCheck_UnparseableSetAlwaysPasses(t *testing.T) {
	ds := datasetWith(t, "code", "anything")
	c, _ := Compile(categoricalTemplate("code must be sensible"))
	if c.CompileNote == "" {
		t.Error("expected a compile note for unparseable set")
	}
	if res := c.Predicate(ds); !res.Passed {
		t.Errorf("unparseable set must compile to always-pass: %+v", res)
	}
}

func TestNotNullCheck(t *testing.T) {
	ds := datasetWith(t, "id", "x", nil, "", "y")
	c, ok := Compile(schema.RuleTemplate{
		RuleID:   "nn1",
		Elements: []string{"id"},
		Type:     schema.RuleNotNullCheck,
	})
	if !ok {
		t.Fatal("not_null_check should compile")
	}
	res := c.Predicate(ds)
	if !reflect.DeepEqual(res.FailedRows, []int{1, 2}) {
		t.Errorf("FailedRows = %v, want [1 2]", res.FailedRows)
	}
}

func crossFieldTemplate(logic string) schema.RuleTemplate {
	return schema.RuleTemplate{
		RuleID:   "cf1",
		Elements: []string{"a", "b"},
		Type:     schema.RuleCrossFieldCheck,
		Logic:    logic,
	}
}

func crossFieldDataset(t *testing.T, rows ...[2]any) *dataset.Dataset {
	t.Helper()
	ds := dataset.New([]string{"a", "b"})
	for _, r := range rows {
		if err := ds.AppendRow([]any{r[0], r[1]}); err != nil {
			t.Fatal(err)
		}
	}
	return ds
}

func TestCrossField_DefaultEquality(t *testing.T) {
	ds := crossFieldDataset(t, [2]any{"1", "1"}, [2]any{"1", "2"}, [2]any{nil, "3"})
	c, _ := Compile(crossFieldTemplate(""))
	res := c.Predicate(ds)
	if !reflect.DeepEqual(res.FailedRows, []int{1}) {
		t.Errorf("FailedRows = %v, want [1]", res.FailedRows)
	}
}

func TestCrossField_OperatorInLogic(t *testing.T) {
	ds := crossFieldDataset(t, [2]any{"1", "2"}, [2]any{"3", "2"})
	c, _ := Compile(crossFieldTemplate("a <= b"))
	res := c.Predicate(ds)
	if !reflect.DeepEqual(res.FailedRows, []int{1}) {
		t.Errorf("FailedRows = %v, want [1]", res.FailedRows)
	}
}

func TestCrossField_NumericComparisonNotLexical(t *testing.T) {
	// Lexically "9" > "10"; numerically 9 < 10.
	ds := crossFieldDataset(t, [2]any{"9", "10"})
	c, _ := Compile(crossFieldTemplate("a < b"))
	if res := c.Predicate(ds); !res.Passed {
		t.Errorf("comparison must be numeric when both sides parse: %+v", res)
	}
}

func TestCrossField_MissingColumnsNamed(t *testing.T) {
	ds := dataset.New([]string{"a"})
	c, _ := Compile(crossFieldTemplate("a == b"))
	res := c.Predicate(ds)
	if res.Passed || res.ErrorMessage == "" {
		t.Errorf("expected named missing column: %+v", res)
	}
}

func TestParseOperator(t *testing.T) {
	cases := map[string]operator{
		"a != b":       "!=",
		"a <= b":       "<=",
		"a < b":        "<",
		"a equals b":   "==",
		"a >= b":       ">=",
	}
	for logic, want := range cases {
		if got := parseOperator(logic); got != want {
			t.Errorf("parseOperator(%q) = %q, want %q", logic, got, want)
		}
	}
}

func TestBatch_SkipsUnknownType(t *testing.T) {
	templates := []schema.RuleTemplate{
		rangeTemplate("amount >= 0"),
		{RuleID: "corr1", Elements: []string{"a", "b"}, Type: schema.RuleCorrelationCheck, Logic: "x"},
	}
	compiled, diags, err := Batch(templates)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(compiled) != 1 {
		t.Errorf("compiled = %d, want 1", len(compiled))
	}
	if len(diags) != 1 || diags[0].RuleID != "corr1" {
		t.Errorf("diags = %+v", diags)
	}
}

func TestBatch_SkipsSingleElementCrossField(t *testing.T) {
	templates := []schema.RuleTemplate{
		rangeTemplate("amount >= 0"),
		{RuleID: "cf1", Elements: []string{"amount"}, Type: schema.RuleCrossFieldCheck, Logic: "amount == total"},
	}
	compiled, diags, err := Batch(templates)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(compiled) != 1 {
		t.Errorf("compiled = %d, want 1", len(compiled))
	}
	if len(diags) != 1 || diags[0].RuleID != "cf1" {
		t.Errorf("diags = %+v", diags)
	}

	if _, ok := Compile(templates[1]); ok {
		t.Error("Compile must refuse a cross_field_check with one element")
	}
}

func TestBatch_RejectsMalformed(t *testing.T) {
	_, _, err := Batch([]schema.RuleTemplate{{RuleID: "r1", Type: schema.RuleNotNullCheck}})
	var merr *rules.MalformedRuleError
	if !errors.As(err, &merr) {
		t.Fatalf("err = %v, want *MalformedRuleError", err)
	}
}

func TestBatch_RejectsDuplicateRuleID(t *testing.T) {
	templates := []schema.RuleTemplate{rangeTemplate("amount >= 0"), rangeTemplate("amount >= 1")}
	if _, _, err := Batch(templates); err == nil {
		t.Fatal("duplicate rule_id must be rejected at compile time")
	}
}
