package litecache

import (
	"math"
	"reflect"
)

// Complexity classifies how a value is encoded into an artifact.
type Complexity int

const (
	// Simple values are embedded as typed literals.
	Simple Complexity = iota
	// Complex values are serialized into a blob appended after the code.
	Complex
)

// String returns the artifact header token for c.
func (c Complexity) String() string {
	if c == Simple {
		return "SIMPLE"
	}
	return "COMPLEX"
}

// Unlimited disables an entry-count or depth limit.
const Unlimited = -1

// Default complexity limits.
const (
	DefaultMaxEntries = 1000
	DefaultMaxDepth   = 10
)

// limits holds the effective bounds of one analysis.
type limits struct {
	entries int
	depth   int
}

// Analyze reports whether v can be embedded as a literal.
//
// Scalars and nil are Simple. Slices and maps are Simple when every element is
// Simple and neither the nesting depth nor the cumulative number of visited
// elements exceeds its limit; Unlimited (or any negative limit) means no bound.
// Everything else (structs, pointers, named types, channels, funcs, non-finite
// floats) is Complex.
//
// Analyze keeps no state between calls and is safe for concurrent use.
func Analyze(v any, maxEntries, maxDepth int) Complexity {
	lim := limits{entries: bound(maxEntries), depth: bound(maxDepth)}
	c, _ := analyzeValue(reflect.ValueOf(v), lim, 0, 0)
	return c
}

func bound(n int) int {
	if n < 0 {
		return math.MaxInt
	}
	return n
}

// analyzeValue walks v depth first. depth is the nesting level of v's parent
// and is restored implicitly on return; entries is cumulative over the whole
// traversal and is handed back to the caller.
func analyzeValue(v reflect.Value, lim limits, depth, entries int) (Complexity, int) {
	if !v.IsValid() {
		return Simple, entries
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return Simple, entries
		}
		return analyzeValue(v.Elem(), lim, depth, entries)
	}

	t := v.Type()
	if isByteSlice(t) {
		return Simple, entries
	}
	if isScalarType(t) {
		if k := t.Kind(); (k == reflect.Float32 || k == reflect.Float64) &&
			(math.IsNaN(v.Float()) || math.IsInf(v.Float(), 0)) {
			return Complex, entries
		}
		return Simple, entries
	}

	if t.Kind() != reflect.Slice && t.Kind() != reflect.Map {
		return Complex, entries
	}
	if _, ok := literalType(t); !ok {
		return Complex, entries
	}

	depth++
	if depth > lim.depth {
		return Complex, entries
	}

	var c Complexity
	if t.Kind() == reflect.Slice {
		for i := range v.Len() {
			entries++
			if entries > lim.entries {
				return Complex, entries
			}
			if c, entries = analyzeValue(v.Index(i), lim, depth, entries); c == Complex {
				return Complex, entries
			}
		}
		return Simple, entries
	}

	iter := v.MapRange()
	for iter.Next() {
		entries++
		if entries > lim.entries {
			return Complex, entries
		}
		if c, entries = analyzeValue(iter.Key(), lim, depth, entries); c == Complex {
			return Complex, entries
		}
		if c, entries = analyzeValue(iter.Value(), lim, depth, entries); c == Complex {
			return Complex, entries
		}
	}
	return Simple, entries
}
