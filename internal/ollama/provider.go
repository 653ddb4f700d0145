package ollama

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/hoanghonghuy/commita/internal/ai"
	"github.com/hoanghonghuy/commita/internal/config"
)

// Name identifies the local backend in the registry and the config file.
const Name = "ollama"

const unreachableHint = "is the Ollama server running? Start it with `ollama serve` or set OLLAMA_HOST"

// Provider is the keyless local-inference backend. Its model catalog is
// whatever is installed locally, so any model name is accepted.
type Provider struct {
	ai.Base
	client *Client
}

var _ ai.Provider = (*Provider)(nil)

func NewProvider(store *config.Store, cfg Config, log *zap.Logger) *Provider {
	return &Provider{
		Base:   ai.NewBase(ai.BaseConfig{Name: Name, Store: store, Log: log}),
		client: New(cfg),
	}
}

func (p *Provider) APIKeyRequired() bool { return false }

func (p *Provider) Init(ctx context.Context) error {
	p.LoadSettings()
	return nil
}

func (p *Provider) Models(ctx context.Context) ([]string, error) {
	models, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, ai.Unavailable(Name, "models", err, unreachableHint)
	}
	return models, nil
}

func (p *Provider) CheckAPIKey(ctx context.Context) (bool, error) {
	return false, errors.WithStack(ai.ErrNotApplicable)
}

func (p *Provider) SetAPIKey(ctx context.Context, key string) error {
	return errors.WithStack(ai.ErrNotApplicable)
}

func (p *Provider) SetModel(ctx context.Context, model string) error {
	if strings.TrimSpace(model) == "" {
		return errors.Wrap(ai.ErrInvalidModel, "empty model name")
	}
	p.StoreModel(model)
	return nil
}

func (p *Provider) UseModel(ctx context.Context, model string) error {
	if strings.TrimSpace(model) == "" {
		return errors.Wrap(ai.ErrInvalidModel, "empty model name")
	}
	p.SelectModel(model)
	return nil
}

func (p *Provider) RunPrompt(ctx context.Context, prompt, model string) (string, error) {
	m, err := p.ResolveModel(ctx, model, nil, p.SetModel)
	if err != nil {
		return "", err
	}

	p.Logger().Debug("Running prompt", zap.String("model", m), zap.Int("prompt_len", len(prompt)))
	out, err := p.client.Chat(ctx, m, prompt)
	if err != nil {
		return "", ai.Unavailable(Name, "prompt", err, unreachableHint)
	}
	return strings.TrimSpace(out), nil
}
