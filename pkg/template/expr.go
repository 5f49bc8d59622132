package template

import (
	"reflect"
	"strconv"
	"strings"
)

// EvalListExpr evaluates a foreach list expression such as
// "{{seed_results | shortlist:5}}", "{{pages}}", or a bare "pages" (no
// braces). Returns the resolved slice and true, or (nil, false) if the
// expression didn't resolve to a slice-like value.
func EvalListExpr(expr string, vars map[string]any) ([]any, bool) {
	expr = strings.TrimSpace(expr)

	inner, braced := stripBraces(expr)
	if !braced {
		val, ok := ResolvePath(expr, vars)
		if !ok {
			return nil, false
		}
		return asSlice(val)
	}

	m := shortlistPattern.FindStringSubmatch(inner)
	if m == nil || m[2] == "" {
		val, ok := ResolvePath(inner, vars)
		if !ok {
			return nil, false
		}
		return asSlice(val)
	}

	val, ok := ResolvePath(m[1], vars)
	if !ok {
		return nil, false
	}
	k, err := strconv.Atoi(m[2])
	if err != nil {
		return asSlice(val)
	}
	return asSlice(shortlist(val, k))
}

func stripBraces(expr string) (string, bool) {
	if strings.HasPrefix(expr, "{{") && strings.HasSuffix(expr, "}}") {
		return strings.TrimSpace(expr[2 : len(expr)-2]), true
	}
	return expr, false
}

// asSlice converts a slice- or array-typed val into []any. Returns
// (nil, false) for anything else, including nil.
func asSlice(val any) ([]any, bool) {
	if val == nil {
		return nil, false
	}
	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
