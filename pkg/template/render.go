package template

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var (
	placeholderPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	shortlistPattern   = regexp.MustCompile(`^([a-zA-Z_][\w.]*(?:\[[^\]]+\])*)(?:\s*\|\s*shortlist\s*:\s*(\d+))?$`)
)

// RenderString replaces every {{expr}} placeholder in tmpl with its
// resolved scalar value. An expr may be a bare dotted/indexed path or a
// path piped through "| shortlist:N". Placeholders that resolve to a
// slice or map are left untouched in the output, rather than stringified,
// since interpolating a Go %v dump of a collection inline would be
// confusing; placeholders that cannot be resolved at all are also left
// as-is so a strategy author sees the literal token and can fix it.
func RenderString(tmpl string, vars map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		inner := match[2 : len(match)-2]
		val, ok := resolveExpr(inner, vars)
		if !ok {
			return match
		}
		if s, ok := scalarString(val); ok {
			return s
		}
		return match
	})
}

// resolveExpr resolves a single {{...}} inner expression: a bare path, or
// a path piped through "| shortlist:N".
func resolveExpr(expr string, vars map[string]any) (any, bool) {
	expr = strings.TrimSpace(expr)
	m := shortlistPattern.FindStringSubmatch(expr)
	if m == nil {
		return ResolvePath(expr, vars)
	}
	base, kStr := m[1], m[2]
	val, ok := ResolvePath(base, vars)
	if !ok {
		return nil, false
	}
	if kStr == "" {
		return val, true
	}
	k, err := strconv.Atoi(kStr)
	if err != nil {
		return val, true
	}
	return shortlist(val, k), true
}

// shortlist truncates a slice-like value to its first k elements. Returns
// val unchanged if it is not slice-like.
func shortlist(val any, k int) any {
	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return val
	}
	if k < 0 {
		k = 0
	}
	if k > rv.Len() {
		k = rv.Len()
	}
	out := make([]any, k)
	for i := 0; i < k; i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case int, int32, int64, float32, float64, bool:
		return fmt.Sprintf("%v", x), true
	default:
		return "", false
	}
}

// RenderInputs renders every string value in inputs via RenderString,
// passing through non-string values unchanged, so a step's typed inputs
// (numbers, bools, nested lists) never get accidentally stringified.
func RenderInputs(inputs map[string]any, vars map[string]any) map[string]any {
	out := make(map[string]any, len(inputs))
	for k, v := range inputs {
		if s, ok := v.(string); ok {
			out[k] = RenderString(s, vars)
		} else {
			out[k] = v
		}
	}
	return out
}
