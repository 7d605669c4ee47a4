// Package query runs query descriptions against a backend through the result
// cache, the slot pool and the retry loop.
package query

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/hawkins7575/toozalink-sub000/errors"
)

// Operator is a filter comparison. The set is closed; every backend lowers it
// with an exhaustive switch.
type Operator string

// Supported operators
const (
	Eq       Operator = "eq"
	In       Operator = "in"
	Contains Operator = "contains"
	Gte      Operator = "gte"
	Lte      Operator = "lte"
)

// Operators lists every supported operator.
var Operators = []Operator{Eq, In, Contains, Gte, Lte}

// Valid reports whether op is one of the supported operators.
func (op Operator) Valid() bool {
	switch op {
	case Eq, In, Contains, Gte, Lte:
		return true
	default:
		return false
	}
}

// Filter is one predicate on a field. Filters within a description are ANDed.
type Filter struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Order sorts results by one field.
type Order struct {
	Field     string `json:"field"`
	Ascending bool   `json:"ascending"`
}

// Description is one logical read request. It must not be modified after it
// has been submitted.
type Description struct {
	Resource     string   `json:"resource"`
	Fields       string   `json:"fields,omitempty"`
	Filters      []Filter `json:"filters,omitempty"`
	OrderBy      *Order   `json:"order_by,omitempty"`
	Limit        *int     `json:"limit,omitempty"`
	CacheEnabled bool     `json:"cache_enabled"`
}

// Record is one result row.
type Record = map[string]any

// Result is what a backend returns for one call.
type Result struct {
	Rows []Record `json:"rows"`
}

// Outcome is one settled batch item: Rows on success, Err on failure.
type Outcome struct {
	Rows []Record `json:"rows,omitempty"`
	Err  error    `json:"-"`
}

// MarshalJSON renders Err as a string.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type wire struct {
		Rows  []Record `json:"rows,omitempty"`
		Error string   `json:"error,omitempty"`
	}
	w := wire{Rows: o.Rows}
	if o.Err != nil {
		w.Error = o.Err.Error()
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a description. cache_enabled defaults to true when
// the field is absent.
func (d *Description) UnmarshalJSON(data []byte) error {
	type alias Description
	a := alias{CacheEnabled: true}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*d = Description(a)
	return nil
}

// Validate checks the description for a resource, known operators and a
// sane limit.
func (d Description) Validate() error {
	if d.Resource == "" {
		return errors.WrapInvalid(errors.ErrInvalidQuery, "query", "Validate", "resource is required")
	}
	for i, f := range d.Filters {
		if f.Field == "" {
			return errors.WrapInvalid(errors.ErrInvalidQuery, "query", "Validate",
				fmt.Sprintf("filter %d has no field", i))
		}
		if !f.Operator.Valid() {
			return errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrUnknownOperator, f.Operator),
				"query", "Validate", fmt.Sprintf("filter %d", i))
		}
	}
	if d.OrderBy != nil && d.OrderBy.Field == "" {
		return errors.WrapInvalid(errors.ErrInvalidQuery, "query", "Validate", "order_by needs a field")
	}
	if d.Limit != nil && *d.Limit < 0 {
		return errors.WrapInvalid(errors.ErrInvalidQuery, "query", "Validate", "limit cannot be negative")
	}
	return nil
}

// SelectedFields returns Fields, or "*" when empty.
func (d Description) SelectedFields() string {
	if d.Fields == "" {
		return "*"
	}
	return d.Fields
}
