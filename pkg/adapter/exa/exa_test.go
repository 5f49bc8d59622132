package exa

import "testing"

func TestApplyAliases(t *testing.T) {
	out := applyAliases(map[string]any{
		"max_results": 5,
		"start_date":  "2026-01-01",
		"domains":     []string{"example.com"},
		"type":        "neural",
	})
	if out["num_results"] != 5 {
		t.Errorf("max_results not aliased: %+v", out)
	}
	if out["start_published_date"] != "2026-01-01" {
		t.Errorf("start_date not aliased: %+v", out)
	}
	if _, ok := out["max_results"]; ok {
		t.Errorf("original alias key should be removed: %+v", out)
	}
	if out["type"] != "neural" {
		t.Errorf("non-aliased param dropped: %+v", out)
	}
}

func TestPickParams(t *testing.T) {
	out := pickParams(map[string]any{"num_results": 3, "unrelated": "x"}, searchParams)
	if out["num_results"] != 3 {
		t.Errorf("expected num_results to survive pick: %+v", out)
	}
	if _, ok := out["unrelated"]; ok {
		t.Errorf("expected unrelated param to be dropped: %+v", out)
	}
}

func TestCapabilities(t *testing.T) {
	a := &Adapter{apiKey: "test"}
	if a.Name() != "exa" {
		t.Errorf("Name() = %q", a.Name())
	}
	caps := a.Capabilities()
	if len(caps) != 4 {
		t.Errorf("expected 4 capabilities, got %v", caps)
	}
}
