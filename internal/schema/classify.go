// Package schema discovers, merges and persists the metadata schema of a
// collection.
//
// Discovery is automatic: every attribute seen in a collection's metadata is
// summarized by type, occurrence count and either its enumerated values or a
// single example. A curated schema written by a human is then overlaid on the
// discovered one; the curator's descriptions and value lists win, while type
// and count always come from the data.
package schema

import (
	"cmp"
	"encoding/json"
	"math"
	"slices"

	"github.com/queelius/arkiv/pkg/types"
)

// maxExactFloat is the largest magnitude at which every integer is exactly
// representable as a float64.
const maxExactFloat = 1 << 53

// Classify returns the semantic type of v. Booleans are checked before
// numbers. A nil value has no type and yields the empty ValueType.
func Classify(v any) types.ValueType {
	switch v.(type) {
	case nil:
		return ""
	case bool:
		return types.TypeBoolean
	case json.Number, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return types.TypeNumber
	case string:
		return types.TypeString
	case []any:
		return types.TypeArray
	case map[string]any:
		return types.TypeObject
	default:
		return types.TypeString
	}
}

// Normalize converts every number inside v to a canonical Go type: int64 for
// integral values that fit, float64 otherwise. Values decoded from JSON, YAML
// or the store therefore compare equal regardless of their source. Arrays and
// objects are normalized recursively into fresh containers.
func Normalize(v any) any {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		f, err := n.Float64()
		if err != nil {
			return n.String()
		}
		return normalizeFloat(f)
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return normalizeUint(uint64(n))
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return normalizeUint(n)
	case float32:
		return normalizeFloat(float64(n))
	case float64:
		return normalizeFloat(n)
	case []any:
		out := make([]any, len(n))
		for i, elem := range n {
			out[i] = Normalize(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, elem := range n {
			out[k] = Normalize(elem)
		}
		return out
	default:
		return v
	}
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) <= maxExactFloat {
		return int64(f)
	}
	return f
}

func normalizeUint(u uint64) any {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return float64(u)
}

// NormalizeAll normalizes each element of values. A nil slice stays nil.
func NormalizeAll(values []any) []any {
	if values == nil {
		return nil
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = Normalize(v)
	}
	return out
}

// typeRank orders scalar types within a sorted value list.
func typeRank(v any) int {
	switch v.(type) {
	case bool:
		return 0
	case int64, float64:
		return 1
	case string:
		return 2
	default:
		return 3
	}
}

// compareValues orders normalized scalars: booleans (false first), then
// numbers by magnitude, then strings lexically.
func compareValues(a, b any) int {
	if c := cmp.Compare(typeRank(a), typeRank(b)); c != 0 {
		return c
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case int64, float64:
		fa, fb := toFloat(a), toFloat(b)
		if c := cmp.Compare(fa, fb); c != 0 {
			return c
		}
		// int64 values beyond 2^53 can collide as floats.
		ia, aInt := a.(int64)
		ib, bInt := b.(int64)
		if aInt && bInt {
			return cmp.Compare(ia, ib)
		}
		return cmp.Compare(typeName(a), typeName(b))
	case string:
		return cmp.Compare(x, b.(string))
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func typeName(v any) string {
	switch v.(type) {
	case int64:
		return "int"
	case float64:
		return "float"
	}
	return ""
}

// SortValues sorts normalized scalar values in place into their canonical
// order and returns the slice.
func SortValues(values []any) []any {
	slices.SortStableFunc(values, compareValues)
	return values
}
