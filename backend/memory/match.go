package memory

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/hawkins7575/toozalink-sub000/query"
)

// match applies one filter to a field value. A missing field never matches.
func match(got any, op query.Operator, want any) bool {
	if got == nil {
		return false
	}
	switch op {
	case query.Eq:
		return equal(got, want)
	case query.In:
		for _, candidate := range asSlice(want) {
			if equal(got, candidate) {
				return true
			}
		}
		return false
	case query.Contains:
		if s, ok := got.(string); ok {
			return strings.Contains(strings.ToLower(s), strings.ToLower(fmt.Sprint(want)))
		}
		for _, item := range asSlice(got) {
			if equal(item, want) {
				return true
			}
		}
		return false
	case query.Gte:
		c, ok := compare(got, want)
		return ok && c >= 0
	case query.Lte:
		c, ok := compare(got, want)
		return ok && c <= 0
	default:
		return false
	}
}

func equal(a, b any) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two values of the same kind: numbers, times (including
// RFC 3339 strings) and strings. ok is false when they are not comparable.
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		return cmpOrdered(fa, fb), true
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Compare(tb), true
		}
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok && ba == bb {
			return 0, true
		}
	}
	return 0, false
}

func cmpOrdered(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
