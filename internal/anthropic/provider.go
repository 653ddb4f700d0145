package anthropic

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hoanghonghuy/commita/internal/ai"
	"github.com/hoanghonghuy/commita/internal/config"
)

const (
	Name    = "anthropic"
	KeyEnv  = "ANTHROPIC_API_KEY"
	HelpURL = "https://console.anthropic.com/settings/keys"
)

var Models = ai.Catalog{
	"claude-3-5-haiku-latest",
	"claude-3-5-sonnet-latest",
	"claude-3-7-sonnet-latest",
	"claude-sonnet-4-0",
}

type Provider struct {
	ai.Cloud
	cfg Config
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider returns the anthropic provider. cfg.APIKey is ignored; the key
// comes from the store or ANTHROPIC_API_KEY on Init.
func NewProvider(store *config.Store, cfg Config, log *zap.Logger) *Provider {
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

	cfg := p.cfg
	cfg.APIKey = p.APIKey()
	p.Logger().Debug("Running prompt", zap.String("model", m), zap.Int("prompt_len", len(prompt)))
	out, err := New(cfg).Message(ctx, m, prompt)
	if err != nil {
		return "", ai.Unavailable(Name, "prompt", err, "")
	}
	return strings.TrimSpace(out), nil
}
