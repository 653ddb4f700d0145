package gemini

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hoanghonghuy/commita/internal/ai"
	"github.com/hoanghonghuy/commita/internal/config"
)

const (
	// Name is the registry and config key for Google's Gemini API.
	Name    = "google"
	KeyEnv  = "GEMINI_API_KEY"
	HelpURL = "https://aistudio.google.com/app/apikey"
)

// Models is the curated catalog offered for selection.
var Models = ai.Catalog{
	"gemini-2.0-flash",
	"gemini-1.5-flash",
	"gemini-1.5-pro",
	"gemini-1.5-flash-latest",
	"gemini-1.5-pro-latest",
}

type Provider struct {
	ai.Cloud
	cfg Config
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider returns the google provider. cfg.APIKey is ignored; the key
// comes from the store or GEMINI_API_KEY on Init.
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
	out, err := New(cfg).Generate(ctx, m, prompt)
	if err != nil {
		return "", ai.Unavailable(Name, "prompt", err, "")
	}
	return strings.TrimSpace(out), nil
}
