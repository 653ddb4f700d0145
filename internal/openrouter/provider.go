// Package openrouter is the OpenRouter backend. OpenRouter speaks the
// OpenAI chat/completions protocol, so requests go through internal/openai.
package openrouter

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hoanghonghuy/commita/internal/ai"
	"github.com/hoanghonghuy/commita/internal/config"
	"github.com/hoanghonghuy/commita/internal/openai"
)

const (
	Name           = "openrouter"
	KeyEnv         = "OPENROUTER_API_KEY"
	HelpURL        = "https://openrouter.ai/settings/keys"
	DefaultBaseURL = "https://openrouter.ai/api/v1"
)

var Models = ai.Catalog{
	"deepseek/deepseek-coder",
	"google/gemini-flash-1.5",
	"google/gemini-pro-1.5",
	"mistralai/mistral-nemo",
	"qwen/qwen-110b-chat",
	"cohere/command",
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Provider struct {
	ai.Cloud
	cfg Config
}

var _ ai.Provider = (*Provider)(nil)

func NewProvider(store *config.Store, cfg Config, log *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Provider{
		Cloud: ai.NewCloud(ai.BaseConfig{
			Name:    Name,
			KeyEnv:  KeyEnv,
			HelpURL: HelpURL,
			Store:   store,
			Log:     log,
		}, Models),
		cfg: cfg,
	}
}

func (p *Provider) RunPrompt(ctx context.Context, prompt, model string) (string, error) {
	m, err := p.Prepare(ctx, model)
	if err != nil {
		return "", err
	}

	client := openai.New(openai.Config{
		BaseURL: p.cfg.BaseURL,
		APIKey:  p.APIKey(),
		Headers: map[string]string{"X-Title": "commita"},
		Timeout: p.cfg.Timeout,
	})
	p.Logger().Debug("Running prompt", zap.String("model", m), zap.Int("prompt_len", len(prompt)))
	out, err := client.Chat(ctx, openai.ChatRequest{
		Model:    m,
		Messages: []openai.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", ai.Unavailable(Name, "prompt", err, "")
	}
	return strings.TrimSpace(out), nil
}
