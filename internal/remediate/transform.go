package remediate

import (
	"encoding/json"
	"fmt"

	"github.com/compliq/compliq/internal/dataset"
)

// The transform DSL is the sandbox boundary: service-returned remediation
// logic is parsed into these operations and nothing else is ever executed.
// Unknown operations, unknown columns, and malformed conditions are errors,
// not extension points.

// Op is one whitelisted column operation.
type Op struct {
	// Name is one of: clamp, fill_null, replace, set_null, drop_rows, copy.
	Name   string `json:"op"`
	Column string `json:"column"`

	// clamp
	Lower *float64 `json:"lower,omitempty"`
	Upper *float64 `json:"upper,omitempty"`

	// replace
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// fill_null
	Value string `json:"value,omitempty"`

	// copy
	Source string `json:"source,omitempty"`

	// set_null and drop_rows require a condition.
	Where *Condition `json:"where,omitempty"`
}

// Condition selects rows for set_null and drop_rows. Exactly one selector
// must be set.
type Condition struct {
	Equals *string  `json:"equals,omitempty"`
	NotIn  []string `json:"not_in,omitempty"`
	Below  *float64 `json:"below,omitempty"`
	Above  *float64 `json:"above,omitempty"`
	IsNull bool     `json:"is_null,omitempty"`
}

// ParseOps decodes a JSON array of operations and validates each against
// the whitelist.
func ParseOps(raw string) ([]Op, error) {
	var ops []Op
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		return nil, fmt.Errorf("parsing transformation operations: %w", err)
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("transformation contains no operations")
	}
	for i, op := range ops {
		if err := op.validate(); err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return ops, nil
}

func (o Op) validate() error {
	if o.Column == "" {
		return fmt.Errorf("%s: column is required", o.Name)
	}
	switch o.Name {
	case "clamp":
		if o.Lower == nil && o.Upper == nil {
			return fmt.Errorf("clamp: at least one of lower/upper is required")
		}
	case "fill_null":
		if o.Value == "" {
			return fmt.Errorf("fill_null: value is required")
		}
	case "replace":
		if o.From == "" {
			return fmt.Errorf("replace: from is required")
		}
	case "copy":
		if o.Source == "" {
			return fmt.Errorf("copy: source is required")
		}
	case "set_null", "drop_rows":
		if o.Where == nil {
			return fmt.Errorf("%s: where condition is required", o.Name)
		}
		if err := o.Where.validate(); err != nil {
			return fmt.Errorf("%s: %w", o.Name, err)
		}
	default:
		return fmt.Errorf("unknown operation %q", o.Name)
	}
	return nil
}

func (c *Condition) validate() error {
	selectors := 0
	if c.Equals != nil {
		selectors++
	}
	if c.NotIn != nil {
		selectors++
	}
	if c.Below != nil {
		selectors++
	}
	if c.Above != nil {
		selectors++
	}
	if c.IsNull {
		selectors++
	}
	if selectors != 1 {
		return fmt.Errorf("condition must have exactly one selector, got %d", selectors)
	}
	return nil
}

// matches reports whether the condition selects a cell value.
func (c *Condition) matches(v any) bool {
	switch {
	case c.IsNull:
		return dataset.IsNull(v)
	case c.Equals != nil:
		return !dataset.IsNull(v) && dataset.AsString(v) == *c.Equals
	case c.NotIn != nil:
		if dataset.IsNull(v) {
			return false
		}
		s := dataset.AsString(v)
		for _, allowed := range c.NotIn {
			if s == allowed {
				return false
			}
		}
		return true
	case c.Below != nil:
		f, ok := dataset.AsFloat(v)
		return ok && f < *c.Below
	case c.Above != nil:
		f, ok := dataset.AsFloat(v)
		return ok && f > *c.Above
	}
	return false
}

// Apply executes one operation against ds in place. ds is always a working
// copy owned by the remediation pass.
func (o Op) Apply(ds *dataset.Dataset) error {
	if !ds.HasColumn(o.Column) {
		return fmt.Errorf("%s: unknown column %q", o.Name, o.Column)
	}

	switch o.Name {
	case "clamp":
		for i := 0; i < ds.NumRows(); i++ {
			v, _ := ds.Cell(i, o.Column)
			f, ok := dataset.AsFloat(v)
			if !ok {
				continue
			}
			if o.Lower != nil && f < *o.Lower {
				if err := ds.SetCell(i, o.Column, *o.Lower); err != nil {
					return err
				}
			}
			if o.Upper != nil && f > *o.Upper {
				if err := ds.SetCell(i, o.Column, *o.Upper); err != nil {
					return err
				}
			}
		}
	case "fill_null":
		for i := 0; i < ds.NumRows(); i++ {
			v, _ := ds.Cell(i, o.Column)
			if dataset.IsNull(v) {
				if err := ds.SetCell(i, o.Column, o.Value); err != nil {
					return err
				}
			}
		}
	case "replace":
		for i := 0; i < ds.NumRows(); i++ {
			v, _ := ds.Cell(i, o.Column)
			if !dataset.IsNull(v) && dataset.AsString(v) == o.From {
				if err := ds.SetCell(i, o.Column, o.To); err != nil {
					return err
				}
			}
		}
	case "copy":
		if !ds.HasColumn(o.Source) {
			return fmt.Errorf("copy: unknown source column %q", o.Source)
		}
		for i := 0; i < ds.NumRows(); i++ {
			v, _ := ds.Cell(i, o.Source)
			if err := ds.SetCell(i, o.Column, v); err != nil {
				return err
			}
		}
	case "set_null":
		for i := 0; i < ds.NumRows(); i++ {
			v, _ := ds.Cell(i, o.Column)
			if o.Where.matches(v) {
				if err := ds.SetCell(i, o.Column, nil); err != nil {
					return err
				}
			}
		}
	case "drop_rows":
		var doomed []int
		for i := 0; i < ds.NumRows(); i++ {
			v, _ := ds.Cell(i, o.Column)
			if o.Where.matches(v) {
				doomed = append(doomed, i)
			}
		}
		ds.DropRows(doomed)
	default:
		return fmt.Errorf("unknown operation %q", o.Name)
	}
	return nil
}
