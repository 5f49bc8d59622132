package llms

import "testing"

func TestEstimateTokensKnownModel(t *testing.T) {
	n := EstimateTokens("gpt-4o-mini", "hello world, this is a short prompt")
	if n <= 0 {
		t.Fatalf("EstimateTokens = %d, want > 0", n)
	}
}

func TestEstimateTokensUnknownModelFallsBack(t *testing.T) {
	text := "this text has exactly forty-five characters!!"
	n := EstimateTokens("not-a-real-model-xyz", text)
	if n <= 0 {
		t.Fatalf("EstimateTokens fallback = %d, want > 0", n)
	}
}

func TestEstimatePromptTokensJoinsMessages(t *testing.T) {
	msgs := []Message{
		{Role: "system", Content: "you are a helpful research assistant"},
		{Role: "user", Content: "summarize the latest evidence"},
	}
	joined := estimatePromptTokens("gpt-4o-mini", msgs)
	single := EstimateTokens("gpt-4o-mini", msgs[0].Content)
	if joined <= single {
		t.Fatalf("estimatePromptTokens = %d, want > single-message estimate %d", joined, single)
	}
}
