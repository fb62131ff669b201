package llm

import "github.com/sashabaranov/go-openai"

const defaultOpenAIModel = "gpt-4o"

// NewOpenAIAdapter creates an Oracle backed by OpenAI chat completions.
func NewOpenAIAdapter(cfg Config) *ChatAdapter {
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	return newChatAdapter("openai", openai.DefaultConfig(cfg.APIKey), cfg)
}
