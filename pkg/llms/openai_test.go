package llms

import "testing"

func TestNewOpenAIProviderRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIProvider(&ProviderConfig{Model: "gpt-4o-mini"})
	if err == nil {
		t.Fatal("expected error when API key is missing")
	}
}

func TestNewOpenAIProviderRequiresModel(t *testing.T) {
	_, err := NewOpenAIProvider(&ProviderConfig{APIKey: "sk-test"})
	if err == nil {
		t.Fatal("expected error when model is missing")
	}
}

func TestNewOpenAIProviderDefaults(t *testing.T) {
	p, err := NewOpenAIProvider(&ProviderConfig{APIKey: "sk-test", Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.GetModelName() != "gpt-4o-mini" {
		t.Errorf("GetModelName = %q", p.GetModelName())
	}
	if p.cfg.BaseURL != openAIDefaultBaseURL {
		t.Errorf("BaseURL default = %q", p.cfg.BaseURL)
	}
	if p.cfg.MaxTokens != 2048 {
		t.Errorf("MaxTokens default = %d", p.cfg.MaxTokens)
	}
}

func TestToChatMessagesAndTools(t *testing.T) {
	msgs := []Message{{Role: "user", Content: "hi"}}
	got := toChatMessages(msgs)
	if len(got) != 1 || got[0].Role != "user" || got[0].Content != "hi" {
		t.Fatalf("toChatMessages = %+v", got)
	}

	tools := []ToolDefinition{{Name: "sonar.search", Description: "web search"}}
	specs := toChatTools(tools)
	if len(specs) != 1 || specs[0].Function.Name != "sonar.search" {
		t.Fatalf("toChatTools = %+v", specs)
	}
}
