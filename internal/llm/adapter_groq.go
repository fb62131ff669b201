package llm

import "github.com/sashabaranov/go-openai"

const (
	groqBaseURL      = "https://api.groq.com/openai/v1"
	defaultGroqModel = "llama-3.3-70b-versatile"
)

// NewGroqAdapter creates an Oracle backed by Groq's OpenAI-compatible API.
func NewGroqAdapter(cfg Config) *ChatAdapter {
	if cfg.Model == "" {
		cfg.Model = defaultGroqModel
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = groqBaseURL
	return newChatAdapter("groq", clientConfig, cfg)
}
