// Package template implements the small dotted/indexed path resolver and
// {{var}} string renderer used to wire step inputs, when-expressions, and
// foreach list expressions together at runtime.
package template

import (
	"reflect"
	"strconv"
	"strings"
)

// ResolvePath resolves a dotted/indexed path like "foo[0].bar" against vars.
// It walks map[string]any keys, slice/array indices, and exported struct
// fields (case-sensitive first, then case-insensitive, so callers can use
// either Go-style or snake_case field names). Returns (nil, false) the
// moment any segment cannot be resolved.
func ResolvePath(path string, vars map[string]any) (any, bool) {
	tokens := tokenizePath(path)
	var cur any = vars
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		name, idx, hasIdx := splitIndex(tok)
		if name != "" {
			next, ok := lookupField(cur, name)
			if !ok {
				return nil, false
			}
			cur = next
		}
		if hasIdx {
			next, ok := lookupIndex(cur, idx)
			if !ok {
				return nil, false
			}
			cur = next
		}
	}
	return cur, true
}

// tokenizePath splits on dots that are not within brackets, mirroring the
// bracket-depth-aware splitter the reference renderer uses.
func tokenizePath(path string) []string {
	var out []string
	var buf strings.Builder
	depth := 0
	for _, ch := range path {
		switch {
		case ch == '.' && depth == 0:
			out = append(out, buf.String())
			buf.Reset()
		default:
			if ch == '[' {
				depth++
			} else if ch == ']' {
				if depth > 0 {
					depth--
				}
			}
			buf.WriteRune(ch)
		}
	}
	if buf.Len() > 0 {
		out = append(out, buf.String())
	}
	return out
}

// splitIndex splits a token like "name[3]" into ("name", 3, true), a bare
// "[3]" into ("", 3, true), or a plain "name" into ("name", 0, false).
func splitIndex(tok string) (name string, idx int, hasIdx bool) {
	open := strings.IndexByte(tok, '[')
	if open < 0 || !strings.HasSuffix(tok, "]") {
		return tok, 0, false
	}
	name = tok[:open]
	idxStr := tok[open+1 : len(tok)-1]
	n, err := strconv.Atoi(idxStr)
	if err != nil {
		return tok, 0, false
	}
	return name, n, true
}

func lookupField(cur any, name string) (any, bool) {
	switch m := cur.(type) {
	case map[string]any:
		v, ok := m[name]
		return v, ok
	case nil:
		return nil, false
	}

	rv := reflect.ValueOf(cur)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	if f := rv.FieldByName(name); f.IsValid() {
		return f.Interface(), true
	}
	// fall back to a case-insensitive match, since strategy vars tend to be
	// snake_case while Go struct fields are PascalCase.
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		if strings.EqualFold(rt.Field(i).Name, name) {
			return rv.Field(i).Interface(), true
		}
	}
	return nil, false
}

func lookupIndex(cur any, idx int) (any, bool) {
	rv := reflect.ValueOf(cur)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if idx < 0 || idx >= rv.Len() {
			return nil, false
		}
		return rv.Index(idx).Interface(), true
	default:
		return nil, false
	}
}
