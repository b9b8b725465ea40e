package pipeline

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"

	"github.com/compliq/compliq/internal/compile"
	"github.com/compliq/compliq/internal/schema"
)

// RenderValidationSource renders the rule set as a standalone runnable Go
// program for audit archival: given a CSV path it applies every rule and
// prints the results as JSON. Templates the compiler would skip are left
// out, so the artifact reports the same rule set as the in-process run.
// The rendering is deterministic for a given template sequence; the
// pipeline itself never executes the artifact.
func RenderValidationSource(templates []schema.RuleTemplate) (string, error) {
	type ruleView struct {
		ID          string
		Type        string
		Columns     []string
		Description string
		Severity    string
		Lower       string
		Upper       string
		Set         []string
		Operator    string
	}

	views := make([]ruleView, 0, len(templates))
	for _, t := range templates {
		if _, ok := compile.Compile(t); !ok {
			continue
		}
		p := compile.ParseParams(t)
		views = append(views, ruleView{
			ID:          t.RuleID,
			Type:        string(t.Type),
			Columns:     t.Elements,
			Description: t.Description,
			Severity:    string(t.Severity),
			Lower:       goFloat(p.Lower),
			Upper:       goFloat(p.Upper),
			Set:         p.Set,
			Operator:    p.Operator,
		})
	}

	var buf bytes.Buffer
	if err := validationSourceTemplate.Execute(&buf, views); err != nil {
		return "", fmt.Errorf("rendering validation source: %w", err)
	}
	return buf.String(), nil
}

// goFloat renders a float as a Go expression, spelling out infinities.
func goFloat(f float64) string {
	switch {
	case math.IsInf(f, -1):
		return "negInf"
	case math.IsInf(f, 1):
		return "posInf"
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

var validationSourceTemplate = template.Must(template.New("validation").
	Funcs(template.FuncMap{
		"quote": strconv.Quote,
		"quoteAll": func(items []string) string {
			quoted := make([]string, len(items))
			for i, s := range items {
				quoted[i] = strconv.Quote(s)
			}
			return strings.Join(quoted, ", ")
		},
	}).
	Parse(`// Code generated by compliq; archival rendering of a validation rule set.
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"
)

// Open-ended range bounds.
var (
	negInf = math.Inf(-1)
	posInf = math.Inf(1)
)

type rule struct {
	ID          string
	Type        string
	Columns     []string
	Description string
	Severity    string
	Lower       float64
	Upper       float64
	Set         []string
	Operator    string
}

var ruleSet = []rule{
{{- range . }}
	{
		ID:          {{ quote .ID }},
		Type:        {{ quote .Type }},
		Columns:     []string{ {{- quoteAll .Columns -}} },
		Description: {{ quote .Description }},
		Severity:    {{ quote .Severity }},
		Lower:       {{ .Lower }},
		Upper:       {{ .Upper }},
{{- if .Set }}
		Set:         []string{ {{- quoteAll .Set -}} },
{{- end }}
{{- if .Operator }}
		Operator:    {{ quote .Operator }},
{{- end }}
	},
{{- end }}
}

type ruleResult struct {
	Passed        bool   ` + "`json:\"passed\"`" + `
	Severity      string ` + "`json:\"severity\"`" + `
	Description   string ` + "`json:\"description\"`" + `
	FailedRecords []int  ` + "`json:\"failed_records,omitempty\"`" + `
	ErrorMessage  string ` + "`json:\"error_message,omitempty\"`" + `
}

type output struct {
	Summary struct {
		Total     int    ` + "`json:\"total_rules\"`" + `
		Passed    int    ` + "`json:\"passed_rules\"`" + `
		Failed    int    ` + "`json:\"failed_rules\"`" + `
		Timestamp string ` + "`json:\"validation_timestamp\"`" + `
	} ` + "`json:\"summary\"`" + `
	RuleResults map[string]ruleResult ` + "`json:\"rule_results\"`" + `
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: validate <dataset.csv>")
		os.Exit(2)
	}
	header, rows, err := readCSV(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[name] = i
	}

	var out output
	out.Summary.Timestamp = time.Now().UTC().Format(time.RFC3339)
	out.RuleResults = make(map[string]ruleResult, len(ruleSet))

	for _, r := range ruleSet {
		rr := apply(r, colIdx, rows)
		rr.Severity = r.Severity
		rr.Description = r.Description
		out.RuleResults[r.ID] = rr
		out.Summary.Total++
		if rr.Passed {
			out.Summary.Passed++
		} else {
			out.Summary.Failed++
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("empty CSV: %s", path)
	}
	return records[0], records[1:], nil
}

func apply(r rule, colIdx map[string]int, rows [][]string) ruleResult {
	if len(r.Columns) == 0 {
		return ruleResult{ErrorMessage: "rule has no columns"}
	}
	col, ok := colIdx[r.Columns[0]]
	if !ok {
		return ruleResult{ErrorMessage: fmt.Sprintf("Column %s not found in dataset", r.Columns[0])}
	}

	var failed []int
	switch r.Type {
	case "range_check":
		for i, row := range rows {
			cell := row[col]
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || v < r.Lower || v > r.Upper {
				failed = append(failed, i)
			}
		}
	case "categorical_check":
		if len(r.Set) == 0 {
			break
		}
		allowed := make(map[string]bool, len(r.Set))
		for _, v := range r.Set {
			allowed[v] = true
		}
		for i, row := range rows {
			if row[col] != "" && !allowed[row[col]] {
				failed = append(failed, i)
			}
		}
	case "not_null_check":
		for i, row := range rows {
			if row[col] == "" {
				failed = append(failed, i)
			}
		}
	case "cross_field_check":
		if len(r.Columns) < 2 {
			return ruleResult{ErrorMessage: "cross-field rule needs two columns"}
		}
		other, ok := colIdx[r.Columns[1]]
		if !ok {
			return ruleResult{ErrorMessage: fmt.Sprintf("Column %s not found in dataset", r.Columns[1])}
		}
		for i, row := range rows {
			a, b := row[col], row[other]
			if a == "" || b == "" {
				continue
			}
			if !relate(a, b, r.Operator) {
				failed = append(failed, i)
			}
		}
	default:
		return ruleResult{Passed: true, ErrorMessage: fmt.Sprintf("unsupported rule type %q", r.Type)}
	}

	if len(failed) > 100 {
		failed = failed[:100]
	}
	return ruleResult{Passed: len(failed) == 0, FailedRecords: failed}
}

func relate(a, b, op string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch op {
		case "", "==":
			return fa == fb
		case "!=":
			return fa != fb
		case "<":
			return fa < fb
		case "<=":
			return fa <= fb
		case ">":
			return fa > fb
		case ">=":
			return fa >= fb
		}
	}
	switch op {
	case "", "==":
		return a == b
	case "!=":
		return a != b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}
`))
