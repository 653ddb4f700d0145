package ai

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// Cloud is the shared part of a hosted backend: it needs an API key and
// only accepts models from a fixed catalog. Backends embed it and add
// RunPrompt.
type Cloud struct {
	Base
	catalog Catalog
}

func NewCloud(cfg BaseConfig, catalog Catalog) Cloud {
	return Cloud{Base: NewBase(cfg), catalog: catalog}
}

func (c *Cloud) APIKeyRequired() bool { return true }

func (c *Cloud) Init(ctx context.Context) error {
	c.LoadSettings()
	return nil
}

// Models returns a copy of the catalog.
func (c *Cloud) Models(ctx context.Context) ([]string, error) {
	return append([]string(nil), c.catalog...), nil
}

func (c *Cloud) CheckAPIKey(ctx context.Context) (bool, error) {
	return c.HasAPIKey(), nil
}

func (c *Cloud) SetAPIKey(ctx context.Context, key string) error {
	c.StoreAPIKey(strings.TrimSpace(key))
	return nil
}

func (c *Cloud) SetModel(ctx context.Context, model string) error {
	if err := c.CheckCatalog(c.catalog, model); err != nil {
		return err
	}
	c.StoreModel(model)
	return nil
}

func (c *Cloud) UseModel(ctx context.Context, model string) error {
	if err := c.CheckCatalog(c.catalog, model); err != nil {
		return err
	}
	c.SelectModel(model)
	return nil
}

// Prepare returns the model for one prompt and fails early when no key is held.
func (c *Cloud) Prepare(ctx context.Context, override string) (string, error) {
	m, err := c.ResolveModel(ctx, override, c.catalog, c.SetModel)
	if err != nil {
		return "", err
	}
	if !c.HasAPIKey() {
		return "", Unavailable(c.Name(), "prompt", errors.WithStack(ErrMissingAPIKey), "get a key at "+c.APIKeyHelpURL())
	}
	return m, nil
}
