package ai

import (
	"context"
	"os"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/hoanghonghuy/commita/internal/config"
)

// Provider is one text-generation backend.
type Provider interface {
	// Name is the stable identifier, also the key of the provider's settings.
	Name() string
	// APIKeyRequired is fixed per backend kind.
	APIKeyRequired() bool
	// APIKeyHelpURL tells the user where to get a key. Empty for keyless backends.
	APIKeyHelpURL() string
	// Model is the currently selected model, "" if none.
	Model() string

	// Init loads persisted settings. An absent API key is not an error.
	Init(ctx context.Context) error
	// Models lists the model identifiers the backend offers.
	Models(ctx context.Context) ([]string, error)
	// CheckAPIKey reports whether a non-empty key is held.
	// Keyless backends return ErrNotApplicable.
	CheckAPIKey(ctx context.Context) (bool, error)
	// SetAPIKey stores the key used by later requests.
	SetAPIKey(ctx context.Context, key string) error
	// SetModel selects and stores the provider's default model.
	SetModel(ctx context.Context, model string) error
	// UseModel selects model for this process only. Nothing is stored.
	UseModel(ctx context.Context, model string) error
	// RunPrompt sends prompt as a single non-streaming request and returns
	// the trimmed response. model, when non-empty, overrides the selection
	// for this call.
	RunPrompt(ctx context.Context, prompt, model string) (string, error)
}

// ErrMissingAPIKey is returned when a key-requiring backend is used without a key.
var ErrMissingAPIKey = errors.New("API key not set")

// Catalog is a fixed list of models a cloud backend accepts.
type Catalog []string

// Contains reports whether model is in the catalog.
func (c Catalog) Contains(model string) bool {
	return slices.Contains(c, model)
}

// Base holds the state every provider shares: its name, its persisted
// settings and the store they live in. Backends embed it.
type Base struct {
	name    string
	keyEnv  string
	helpURL string
	store   *config.Store
	log     *zap.Logger

	apiKey      string
	storedKey   string
	model       string
	storedModel string
}

// BaseConfig configures a Base.
type BaseConfig struct {
	Name string
	// KeyEnv is the environment variable consulted for an API key when
	// none is stored. Empty for keyless backends.
	KeyEnv  string
	HelpURL string
	Store   *config.Store
	Log     *zap.Logger
}

// NewBase returns a Base for cfg. A nil logger is replaced with a no-op one.
func NewBase(cfg BaseConfig) Base {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return Base{
		name:    cfg.Name,
		keyEnv:  cfg.KeyEnv,
		helpURL: cfg.HelpURL,
		store:   cfg.Store,
		log:     log.With(zap.String("provider", cfg.Name)),
	}
}

func (b *Base) Name() string          { return b.name }
func (b *Base) APIKeyHelpURL() string { return b.helpURL }
func (b *Base) Model() string         { return b.model }

// APIKey returns the key currently held in memory.
func (b *Base) APIKey() string { return b.apiKey }

// Logger returns the provider-scoped logger.
func (b *Base) Logger() *zap.Logger { return b.log }

// LoadSettings reads this provider's settings from the store. The
// environment key is used when no key was stored. Storage failures are
// logged and leave the in-memory state as is.
func (b *Base) LoadSettings() {
	ps, err := b.store.LoadProvider(b.name)
	if err != nil {
		b.log.Warn("Could not load provider settings, using defaults", zap.Error(err))
	}

	var stored config.ProviderSettings
	if ps != nil {
		stored = *ps
	}
	b.storedModel = config.Value(stored.Model)
	b.model = b.storedModel
	b.storedKey = config.Value(stored.APIKey)

	var envKey string
	if b.keyEnv != "" {
		envKey = os.Getenv(b.keyEnv)
	}
	// A stored key wins; the environment only fills the gap.
	b.apiKey = config.ResolveString("", b.storedKey, envKey, "")

	b.log.Debug("Provider settings loaded",
		zap.String("model", b.model),
		zap.Bool("has_key", b.apiKey != ""))
}

// HasAPIKey reports whether a non-empty key is held.
func (b *Base) HasAPIKey() bool {
	return strings.TrimSpace(b.apiKey) != ""
}

// StoreAPIKey updates the key in memory and persists the full settings record.
func (b *Base) StoreAPIKey(key string) {
	b.apiKey = key
	b.storedKey = key
	b.persist()
}

// StoreModel updates the model in memory and persists the full settings record.
func (b *Base) StoreModel(model string) {
	b.model = model
	b.storedModel = model
	b.persist()
}

// SelectModel makes model active without storing it.
func (b *Base) SelectModel(model string) {
	b.model = model
}

// persist writes what was stored explicitly: never a key taken from the
// environment, never a model chosen with SelectModel.
func (b *Base) persist() {
	ps := config.ProviderSettings{}
	if b.storedKey != "" {
		ps.APIKey = config.String(b.storedKey)
	}
	if b.storedModel != "" {
		ps.Model = config.String(b.storedModel)
	}
	if err := b.store.SaveProvider(b.name, ps); err != nil {
		b.log.Warn("Could not save provider settings, keeping them in memory", zap.Error(err))
	}
}

// ResolveModel picks the model for one prompt. With no model selected, a
// non-empty override is selected through setModel first. Otherwise an
// override applies to this call only; when catalog is non-nil it must
// contain the override.
func (b *Base) ResolveModel(ctx context.Context, override string, catalog Catalog, setModel func(context.Context, string) error) (string, error) {
	if b.model == "" {
		if override == "" {
			return "", errors.WithStack(ErrModelNotSelected)
		}
		if err := setModel(ctx, override); err != nil {
			return "", err
		}
		return b.model, nil
	}
	if override == "" || override == b.model {
		return b.model, nil
	}
	if catalog != nil && !catalog.Contains(override) {
		return "", errors.Wrapf(ErrInvalidModel, "%s does not offer %q", b.name, override)
	}
	return override, nil
}

// CheckCatalog returns ErrInvalidModel unless catalog contains model.
func (b *Base) CheckCatalog(catalog Catalog, model string) error {
	if !catalog.Contains(model) {
		return errors.Wrapf(ErrInvalidModel, "%s does not offer %q", b.name, model)
	}
	return nil
}
