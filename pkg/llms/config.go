package llms

import "time"

// ProviderConfig configures a single OpenAI-compatible chat completions
// backend. BaseURL defaults to the public OpenAI API, so pointing it at a
// compatible gateway (Azure, a local vLLM/Ollama OpenAI shim, etc.) is the
// only change needed to retarget a deployment.
type ProviderConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

func (c *ProviderConfig) withDefaults() *ProviderConfig {
	cfg := *c
	if cfg.BaseURL == "" {
		cfg.BaseURL = openAIDefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &cfg
}
