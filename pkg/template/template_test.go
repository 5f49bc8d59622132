package template

import "testing"

func TestResolvePath(t *testing.T) {
	vars := map[string]any{
		"seed_results": []any{
			map[string]any{"url": "https://a.example/1"},
			map[string]any{"url": "https://a.example/2"},
		},
		"depth": "deep",
		"count": 3,
	}

	cases := []struct {
		path string
		want any
		ok   bool
	}{
		{"depth", "deep", true},
		{"count", 3, true},
		{"seed_results[0].url", "https://a.example/1", true},
		{"seed_results[1].url", "https://a.example/2", true},
		{"seed_results[5].url", nil, false},
		{"missing", nil, false},
	}
	for _, c := range cases {
		got, ok := ResolvePath(c.path, vars)
		if ok != c.ok {
			t.Errorf("ResolvePath(%q) ok = %v, want %v", c.path, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("ResolvePath(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestRenderString(t *testing.T) {
	vars := map[string]any{
		"depth": "deep",
		"seed_results": []any{
			map[string]any{"url": "https://a.example/1"},
		},
	}

	got := RenderString("depth={{depth}} first={{seed_results[0].url}}", vars)
	want := "depth=deep first=https://a.example/1"
	if got != want {
		t.Errorf("RenderString = %q, want %q", got, want)
	}

	// Unresolved placeholders are left verbatim.
	got = RenderString("missing={{nope}}", vars)
	if got != "missing={{nope}}" {
		t.Errorf("RenderString with unresolved path = %q", got)
	}

	// A placeholder resolving to a collection is left verbatim too.
	got = RenderString("all={{seed_results}}", vars)
	if got != "all={{seed_results}}" {
		t.Errorf("RenderString with collection-valued path = %q", got)
	}
}

func TestRenderStringShortlist(t *testing.T) {
	vars := map[string]any{
		"pages": []any{"a", "b", "c", "d"},
	}
	// shortlist only matters when evaluated as a list expr; inline render
	// of a shortlisted value still yields a collection, left verbatim.
	got := RenderString("{{pages | shortlist:2}}", vars)
	if got != "{{pages | shortlist:2}}" {
		t.Errorf("RenderString with shortlist on collection = %q", got)
	}
}

func TestEvalListExpr(t *testing.T) {
	vars := map[string]any{
		"pages": []any{"a", "b", "c", "d"},
	}

	got, ok := EvalListExpr("{{pages}}", vars)
	if !ok || len(got) != 4 {
		t.Fatalf("EvalListExpr({{pages}}) = %v, %v", got, ok)
	}

	got, ok = EvalListExpr("{{pages | shortlist:2}}", vars)
	if !ok || len(got) != 2 {
		t.Fatalf("EvalListExpr shortlist = %v, %v", got, ok)
	}

	got, ok = EvalListExpr("pages", vars)
	if !ok || len(got) != 4 {
		t.Fatalf("EvalListExpr bare path = %v, %v", got, ok)
	}

	_, ok = EvalListExpr("{{missing}}", vars)
	if ok {
		t.Fatalf("EvalListExpr(missing) should not resolve")
	}
}

func TestEvalWhen(t *testing.T) {
	vars := map[string]any{
		"found":     true,
		"empty_str": "",
		"count":     0,
		"items":     []any{"x"},
	}
	if !EvalWhen("", vars) {
		t.Error("empty when should default to true")
	}
	if !EvalWhen("found", vars) {
		t.Error("found should be truthy")
	}
	if EvalWhen("empty_str", vars) {
		t.Error("empty string should be falsy")
	}
	if EvalWhen("count", vars) {
		t.Error("zero should be falsy")
	}
	if !EvalWhen("items", vars) {
		t.Error("non-empty slice should be truthy")
	}
	if EvalWhen("missing", vars) {
		t.Error("unresolved path should be falsy")
	}
}
