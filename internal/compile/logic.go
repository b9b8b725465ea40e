package compile

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/compliq/compliq/internal/dataset"
)

// Logic strings are free text produced upstream, typically of the form
// "amount >= 0 AND amount <= 10000" or `currency IN ["USD", "EUR"]`. The
// parsers here mirror that convention and degrade permissively on anything
// else.

// parseBounds extracts the lower and upper bound from a range logic string:
// the first numeric literal after ">=" and the first after "<=". A bound
// that is absent or unparsable defaults to -Inf / +Inf.
func parseBounds(logic string) (lower, upper float64) {
	lower = math.Inf(-1)
	upper = math.Inf(1)

	if _, after, found := strings.Cut(logic, ">="); found {
		if f, ok := leadingNumber(after); ok {
			lower = f
		}
	}
	if _, after, found := strings.Cut(logic, "<="); found {
		if f, ok := leadingNumber(after); ok {
			upper = f
		}
	}
	return lower, upper
}

// leadingNumber parses the first whitespace-delimited token of s (with any
// trailing "AND ..." clause stripped) as a float.
func leadingNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if i := strings.Index(strings.ToUpper(s), " AND "); i >= 0 {
		s = s[:i]
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimRight(fields[0], ",;)"), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseMembershipSet extracts the literal list following the IN token as a
// membership set keyed by string rendering. Single-quoted lists (a common
// model artifact) are normalized to JSON before parsing.
func parseMembershipSet(logic string) (map[string]bool, error) {
	idx := strings.Index(logic, " IN ")
	if idx < 0 {
		// Also accept IN at the very start of the remaining clause.
		if strings.HasPrefix(strings.TrimSpace(logic), "IN ") {
			idx = strings.Index(logic, "IN ") - 1
		} else {
			return nil, fmt.Errorf("no IN token")
		}
	}
	listText := strings.TrimSpace(logic[idx+4:])
	listText = strings.ReplaceAll(listText, "'", `"`)

	var items []any
	if err := json.Unmarshal([]byte(listText), &items); err != nil {
		return nil, fmt.Errorf("invalid list literal: %w", err)
	}
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[dataset.AsString(item)] = true
	}
	return set, nil
}

// operator is a cross-field comparison relation.
type operator string

// parseOperator finds the relation carried in a cross-field logic string.
// Two-character operators are checked before their one-character prefixes.
// Equality is the default when no operator is present.
func parseOperator(logic string) operator {
	for _, op := range []string{"==", "!=", "<=", ">=", "<", ">"} {
		if strings.Contains(logic, op) {
			return operator(op)
		}
	}
	return "=="
}

// compare applies op to two non-null cells. When both parse as numbers the
// comparison is numeric, otherwise lexical on the string rendering.
func compare(a, b any, op operator) bool {
	fa, okA := dataset.AsFloat(a)
	fb, okB := dataset.AsFloat(b)
	if okA && okB {
		switch op {
		case "==":
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
	sa, sb := dataset.AsString(a), dataset.AsString(b)
	switch op {
	case "==":
		return sa == sb
	case "!=":
		return sa != sb
	case "<":
		return sa < sb
	case "<=":
		return sa <= sb
	case ">":
		return sa > sb
	case ">=":
		return sa >= sb
	}
	return false
}
