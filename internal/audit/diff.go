package audit

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/compliq/compliq/internal/dataset"
)

// DatasetDiff renders the before/after change between the original and
// remediated datasets over their CSV serializations. The diff is computed
// line by line so each changed row appears whole, prefixed "-" and "+".
// Returns "" when the datasets serialize identically.
func DatasetDiff(before, after *dataset.Dataset) string {
	beforeCSV := before.CSVString()
	afterCSV := after.CSVString()
	if beforeCSV == afterCSV {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(beforeCSV, afterCSV)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
