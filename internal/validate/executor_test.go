package validate

import (
	"testing"
	"time"

	"github.com/compliq/compliq/internal/compile"
	"github.com/compliq/compliq/internal/dataset"
	"github.com/compliq/compliq/internal/schema"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func tmpl(id string) schema.RuleTemplate {
	return schema.RuleTemplate{RuleID: id, Elements: []string{"x"}, Severity: schema.SeverityHigh, Description: "desc " + id}
}

func passing(id string) compile.Compiled {
	return compile.Compiled{
		Template:  tmpl(id),
		Predicate: func(*dataset.Dataset) compile.Result { return compile.Result{Passed: true} },
	}
}

func failingRows(id string, rows ...int) compile.Compiled {
	return compile.Compiled{
		Template: tmpl(id),
		Predicate: func(*dataset.Dataset) compile.Result {
			return compile.Result{Passed: false, FailedRows: rows}
		},
	}
}

func panicking(id string) compile.Compiled {
	return compile.Compiled{
		Template:  tmpl(id),
		Predicate: func(*dataset.Dataset) compile.Result { panic("boom") },
	}
}

func TestRun_SummaryInvariant(t *testing.T) {
	ds := dataset.New([]string{"x"})
	result := Run([]compile.Compiled{passing("a"), failingRows("b", 1), panicking("c")}, ds, testTime)

	s := result.Summary
	if s.Total != 3 || s.Passed != 1 || s.Failed != 2 {
		t.Errorf("summary = %+v", s)
	}
	if s.Total != s.Passed+s.Failed {
		t.Errorf("invariant violated: %d != %d + %d", s.Total, s.Passed, s.Failed)
	}
}

func TestRun_EveryRuleAppearsOnce(t *testing.T) {
	ds := dataset.New([]string{"x"})
	result := Run([]compile.Compiled{passing("a"), panicking("b")}, ds, testTime)

	if len(result.RuleResults) != 2 {
		t.Fatalf("RuleResults has %d entries, want 2", len(result.RuleResults))
	}
	if len(result.RuleOrder) != 2 || result.RuleOrder[0] != "a" || result.RuleOrder[1] != "b" {
		t.Errorf("RuleOrder = %v", result.RuleOrder)
	}
}

func TestRun_PanicIsolatedPerRule(t *testing.T) {
	ds := dataset.New([]string{"x"})
	result := Run([]compile.Compiled{panicking("bad"), passing("good")}, ds, testTime)

	bad := result.RuleResults["bad"]
	if bad.Passed || bad.ErrorMessage == "" {
		t.Errorf("panicking rule result = %+v", bad)
	}
	if !result.RuleResults["good"].Passed {
		t.Error("later rule must still run after a panic")
	}
}

func TestRun_FailedRecordsCappedWithoutAffectingCounts(t *testing.T) {
	rows := make([]int, 250)
	for i := range rows {
		rows[i] = i
	}
	ds := dataset.New([]string{"x"})
	result := Run([]compile.Compiled{failingRows("big", rows...)}, ds, testTime)

	rr := result.RuleResults["big"]
	if len(rr.FailedRecords) != schema.MaxFailedRecords {
		t.Errorf("FailedRecords length = %d, want %d", len(rr.FailedRecords), schema.MaxFailedRecords)
	}
	if rr.FailedRecords[0] != 0 || rr.FailedRecords[99] != 99 {
		t.Errorf("FailedRecords must be the first indices ascending: %v...", rr.FailedRecords[:3])
	}
	if rr.Passed {
		t.Error("truncation must not affect Passed")
	}
	if result.Summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Summary.Failed)
	}
}

func TestRun_CompileNoteSurfacedOnPassingRule(t *testing.T) {
	ds := dataset.New([]string{"x"})
	c := passing("noted")
	c.CompileNote = "could not parse membership set"
	result := Run([]compile.Compiled{c}, ds, testTime)

	rr := result.RuleResults["noted"]
	if !rr.Passed || rr.ErrorMessage == "" {
		t.Errorf("result = %+v, want passed with note", rr)
	}
	if result.Summary.Passed != 1 {
		t.Errorf("noted rule must count as passed: %+v", result.Summary)
	}
}

func TestRun_EmptyDatasetVacuouslyPasses(t *testing.T) {
	ds := dataset.New([]string{"amount", "code", "id"})
	templates := []schema.RuleTemplate{
		{RuleID: "r", Elements: []string{"amount"}, Type: schema.RuleRangeCheck, Logic: "amount >= 0 AND amount <= 1"},
		{RuleID: "c", Elements: []string{"code"}, Type: schema.RuleCategoricalCheck, Logic: `code IN ["A"]`},
		{RuleID: "n", Elements: []string{"id"}, Type: schema.RuleNotNullCheck},
	}
	compiled, _, err := compile.Batch(templates)
	if err != nil {
		t.Fatal(err)
	}
	result := Run(compiled, ds, testTime)
	if result.Summary.Failed != 0 || result.Summary.Passed != 3 {
		t.Errorf("summary = %+v, want all passing", result.Summary)
	}
}

func TestRun_Timestamp(t *testing.T) {
	ds := dataset.New([]string{"x"})
	result := Run(nil, ds, testTime)
	if !result.Summary.Timestamp.Equal(testTime) {
		t.Errorf("Timestamp = %v, want %v", result.Summary.Timestamp, testTime)
	}
}
