package compile

import (
	"sort"

	"github.com/compliq/compliq/internal/schema"
)

// Params is the parsed form of a template's logic string, exposed so
// artifact rendering can embed the same bounds and sets the predicates use.
type Params struct {
	// Lower and Upper are the range bounds (range_check); ±Inf when open.
	Lower, Upper float64
	// Set holds the membership values sorted ascending (categorical_check);
	// nil when the logic carries no parseable set.
	Set []string
	// Operator is the cross-field relation (cross_field_check).
	Operator string
}

// ParseParams parses t.Logic with the same permissive rules the compiler
// uses.
func ParseParams(t schema.RuleTemplate) Params {
	var p Params
	switch t.Type {
	case schema.RuleRangeCheck:
		p.Lower, p.Upper = parseBounds(t.Logic)
	case schema.RuleCategoricalCheck:
		if set, err := parseMembershipSet(t.Logic); err == nil {
			p.Set = make([]string, 0, len(set))
			for v := range set {
				p.Set = append(p.Set, v)
			}
			sort.Strings(p.Set)
		}
	case schema.RuleCrossFieldCheck:
		p.Operator = string(parseOperator(t.Logic))
	}
	return p
}
