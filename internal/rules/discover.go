package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/compliq/compliq/internal/dataset"
	"github.com/compliq/compliq/internal/schema"
)

// Discovery thresholds. Columns with too many nulls or too many distinct
// values produce noisy rules and are skipped.
const (
	maxNullFraction      = 0.5
	maxDistinctValues    = 20
	minCategoryShare     = 0.01
	correlationThreshold = 0.8
	defaultSampleRows    = 10000
)

// Discover derives candidate rule templates from the data itself: IQR range
// fences for numeric columns, frequent-value sets for categorical columns,
// and correlation hints for strongly related numeric pairs. Output order is
// deterministic (column order, then pair order) so repeated runs produce
// identical templates.
func Discover(ds *dataset.Dataset) []schema.RuleTemplate {
	sample := sampleRows(ds, defaultSampleRows)
	var out []schema.RuleTemplate

	numeric := sample.NumericColumns()
	numericSet := make(map[string]bool, len(numeric))
	for _, c := range numeric {
		numericSet[c] = true
	}

	// Range fences from the interquartile spread.
	for _, col := range numeric {
		values, nulls := sample.ColumnFloats(col)
		if len(values) == 0 {
			continue
		}
		if float64(nulls)/float64(len(values)+nulls) > maxNullFraction {
			continue
		}
		q1 := quantile(values, 0.25)
		q3 := quantile(values, 0.75)
		iqr := q3 - q1
		lower := q1 - 1.5*iqr
		upper := q3 + 1.5*iqr

		out = append(out, schema.RuleTemplate{
			RuleID:      "auto_range_" + col,
			Elements:    []string{col},
			Type:        schema.RuleRangeCheck,
			Logic:       fmt.Sprintf("%s >= %g AND %s <= %g", col, lower, col, upper),
			Severity:    schema.SeverityMedium,
			Confidence:  "medium",
			Description: fmt.Sprintf("Value of %s should typically be between %.2f and %.2f", col, lower, upper),
		})
	}

	// Frequent-value sets for low-cardinality non-numeric columns.
	for _, col := range sample.Columns() {
		if numericSet[col] {
			continue
		}
		counts := sample.ValueCounts(col)
		if len(counts) == 0 || len(counts) > maxDistinctValues {
			continue
		}
		total := 0
		for _, n := range counts {
			total += n
		}
		var common []string
		for v, n := range counts {
			if float64(n)/float64(total) > minCategoryShare {
				common = append(common, v)
			}
		}
		if len(common) == 0 {
			continue
		}
		sort.Strings(common)
		setJSON, _ := json.Marshal(common)

		out = append(out, schema.RuleTemplate{
			RuleID:      "auto_categorical_" + col,
			Elements:    []string{col},
			Type:        schema.RuleCategoricalCheck,
			Logic:       fmt.Sprintf("%s IN %s", col, setJSON),
			Severity:    schema.SeverityMedium,
			Confidence:  "medium",
			Description: fmt.Sprintf("%s typically contains one of these values: %s", col, strings.Join(common, ", ")),
		})
	}

	// Correlation hints between numeric pairs. These compile to nothing — the
	// compiler skips the kind — but they surface in the audit trail.
	for i := 1; i < len(numeric); i++ {
		for j := 0; j < i; j++ {
			col1, col2 := numeric[i], numeric[j]
			corr := pearson(sample, col1, col2)
			if math.Abs(corr) <= correlationThreshold {
				continue
			}
			out = append(out, schema.RuleTemplate{
				RuleID:      fmt.Sprintf("auto_correlation_%s_%s", col1, col2),
				Elements:    []string{col1, col2},
				Type:        schema.RuleCorrelationCheck,
				Logic:       fmt.Sprintf("Correlation between %s and %s", col1, col2),
				Severity:    schema.SeverityLow,
				Confidence:  "low",
				Description: fmt.Sprintf("%s and %s appear to be correlated (correlation: %.2f)", col1, col2, math.Abs(corr)),
			})
		}
	}

	return out
}

// sampleRows returns the first n rows of ds, or ds itself when it is small
// enough. A deterministic prefix keeps discovery reproducible across runs.
func sampleRows(ds *dataset.Dataset, n int) *dataset.Dataset {
	if ds.NumRows() <= n {
		return ds
	}
	out := dataset.New(ds.Columns())
	cols := ds.Columns()
	for i := 0; i < n; i++ {
		row := ds.Row(i)
		cells := make([]any, len(cols))
		for j, c := range cols {
			cells[j] = row[c]
		}
		// Widths always match; Row came from the same dataset.
		_ = out.AppendRow(cells)
	}
	return out
}

// quantile computes the q-th quantile of sorted values with linear
// interpolation between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// pearson computes the Pearson correlation of two columns over rows where
// both cells are numeric. Returns 0 when fewer than two such rows exist.
func pearson(ds *dataset.Dataset, col1, col2 string) float64 {
	var xs, ys []float64
	for i := 0; i < ds.NumRows(); i++ {
		v1, _ := ds.Cell(i, col1)
		v2, _ := ds.Cell(i, col2)
		f1, ok1 := dataset.AsFloat(v1)
		f2, ok2 := dataset.AsFloat(v2)
		if ok1 && ok2 {
			xs = append(xs, f1)
			ys = append(ys, f2)
		}
	}
	n := float64(len(xs))
	if n < 2 {
		return 0
	}
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n
	var cov, varX, varY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}
