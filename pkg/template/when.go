package template

import "reflect"

// EvalWhen evaluates a step's "when" guard: a bare dotted/indexed path
// (no {{ }} braces, unlike step inputs) whose resolved value is judged
// for truthiness. An unresolved path is treated as false, matching the
// "skip the step rather than fail the run" behavior a missing upstream
// variable should produce. An empty expression means "always run".
func EvalWhen(expr string, vars map[string]any) bool {
	if expr == "" {
		return true
	}
	val, ok := ResolvePath(expr, vars)
	if !ok {
		return false
	}
	return Truthy(val)
}

// Truthy applies Python-like truthiness: nil, false, zero numbers, empty
// strings, and empty slices/maps are false; everything else is true.
func Truthy(v any) bool {
	if v == nil {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int32:
		return x != 0
	case int64:
		return x != 0
	case float32:
		return x != 0
	case float64:
		return x != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Ptr:
		return !rv.IsNil()
	default:
		return true
	}
}
