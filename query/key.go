package query

import (
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"

	"github.com/hawkins7575/toozalink-sub000/errors"
)

// MaxKeyLength is the longest canonical key stored verbatim. Longer keys are
// replaced by a digest that still carries the resource prefix.
const MaxKeyLength = 512

type canonicalFilter struct {
	Field    string   `json:"f"`
	Operator Operator `json:"o"`
	Value    any      `json:"v"`
}

type canonicalDescription struct {
	Fields  string            `json:"fields"`
	Filters []canonicalFilter `json:"filters"`
	OrderBy *Order            `json:"order"`
	Limit   *int              `json:"limit"`
}

// CacheKey returns the canonical cache key of d:
//
//	<resource>:<canonical JSON>
//
// Filters are sorted so their submission order does not matter, map values
// serialize with sorted keys, and CacheEnabled is not part of the key. Every
// key starts with "<resource>:" so a resource can be invalidated by prefix.
// Filter values that cannot be encoded make the description uncacheable.
func CacheKey(d Description) (string, error) {
	filters := make([]canonicalFilter, len(d.Filters))
	encodedValues := make([]string, len(d.Filters))
	for i, f := range d.Filters {
		filters[i] = canonicalFilter{Field: f.Field, Operator: f.Operator, Value: f.Value}
		encodedValues[i] = encodeValue(f.Value)
	}

	idx := make([]int, len(filters))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		fa, fb := filters[idx[a]], filters[idx[b]]
		if fa.Field != fb.Field {
			return fa.Field < fb.Field
		}
		if fa.Operator != fb.Operator {
			return fa.Operator < fb.Operator
		}
		return encodedValues[idx[a]] < encodedValues[idx[b]]
	})
	sorted := make([]canonicalFilter, len(filters))
	for i, j := range idx {
		sorted[i] = filters[j]
	}

	body, err := json.Marshal(canonicalDescription{
		Fields:  d.SelectedFields(),
		Filters: sorted,
		OrderBy: d.OrderBy,
		Limit:   d.Limit,
	})
	if err != nil {
		return "", errors.WrapInvalid(err, "query", "CacheKey", "encode description")
	}

	key := d.Resource + ":" + string(body)
	if len(key) <= MaxKeyLength {
		return key, nil
	}
	return d.Resource + ":#" + strconv.FormatUint(xxhash.Sum64(body), 16), nil
}

func encodeValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
