// Package llm talks to the chat-completion model that judges speech and
// rewrites the product description.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

var ErrEmptyCompletion = errors.New("no response choices")

// Oracle covers the three model calls of a correction session. It satisfies
// feedback.Classifier and correction.Engine.
type Oracle interface {
	IsFeedback(ctx context.Context, utterance, currentText string) (bool, error)
	Plan(ctx context.Context, text, feedback string) (string, error)
	Apply(ctx context.Context, text, plan, feedback string) (string, error)
}

type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string // overrides the provider endpoint
	Temperature float32
	Timeout     time.Duration

	// AffirmativeToken is the classifier answer that means "feedback".
	AffirmativeToken string
}

// NewAdapter creates an Oracle for the configured provider.
func NewAdapter(cfg Config) (*ChatAdapter, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		return NewOpenAIAdapter(cfg), nil
	case "groq":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Groq API key required")
		}
		return NewGroqAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// ChatAdapter implements Oracle over an OpenAI-compatible chat API.
type ChatAdapter struct {
	name   string
	client *openai.Client
	config Config
}

var _ Oracle = (*ChatAdapter)(nil)

func newChatAdapter(name string, clientConfig openai.ClientConfig, cfg Config) *ChatAdapter {
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.AffirmativeToken == "" {
		cfg.AffirmativeToken = "yes"
	}
	return &ChatAdapter{
		name:   name,
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

func (a *ChatAdapter) IsFeedback(ctx context.Context, utterance, currentText string) (bool, error) {
	answer, err := a.complete(ctx, "classify", ClassifySystemPrompt, BuildClassifyPrompt(utterance, currentText), 0)
	if err != nil {
		return false, err
	}
	return IsAffirmative(answer, a.config.AffirmativeToken), nil
}

func (a *ChatAdapter) Plan(ctx context.Context, text, feedback string) (string, error) {
	plan, err := a.complete(ctx, "plan", PlanSystemPrompt, BuildPlanPrompt(text, feedback), a.config.Temperature)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(plan), nil
}

func (a *ChatAdapter) Apply(ctx context.Context, text, plan, feedback string) (string, error) {
	revised, err := a.complete(ctx, "apply", ApplySystemPrompt, BuildApplyPrompt(text, plan, feedback), a.config.Temperature)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(revised), nil
}

// IsAffirmative compares a classifier answer to token, trimmed and
// case-insensitive. Anything else, "Yes." included, is not affirmative.
func IsAffirmative(answer, token string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(token))
}

func (a *ChatAdapter) complete(ctx context.Context, task, system, prompt string, temperature float32) (string, error) {
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: a.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		log.Printf("%s-llm-adapter: %s failed after %v: %v", a.name, task, duration, err)
		return "", fmt.Errorf("%s chat completion: %w", a.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s chat completion: %w", a.name, ErrEmptyCompletion)
	}

	result := resp.Choices[0].Message.Content
	log.Printf("%s-llm-adapter: %s done in %v", a.name, task, duration)
	return result, nil
}
