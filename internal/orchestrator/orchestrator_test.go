package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoanghonghuy/commita/internal/ai"
	"github.com/hoanghonghuy/commita/internal/config"
)

const abort = "<abort>"

// scriptedPrompter answers prompts from queues and fails on any prompt it
// was not scripted for.
type scriptedPrompter struct {
	choices  []string
	confirms []bool
	texts    []string

	asked []string
	helps []string
	infos []string
	warns []string
}

func (p *scriptedPrompter) ChooseOne(_ context.Context, message string, choices []Choice) (string, error) {
	p.asked = append(p.asked, message)
	if len(p.choices) == 0 {
		return "", errors.Newf("unexpected prompt %q", message)
	}
	c := p.choices[0]
	p.choices = p.choices[1:]
	if c == abort {
		return "", errors.WithStack(ai.ErrAborted)
	}
	for _, ch := range choices {
		if ch.Value == c {
			return c, nil
		}
	}
	return "", errors.Newf("%q is not offered by %q", c, message)
}

func (p *scriptedPrompter) Confirm(_ context.Context, message string, _ bool) (bool, error) {
	p.asked = append(p.asked, message)
	if len(p.confirms) == 0 {
		return false, errors.Newf("unexpected prompt %q", message)
	}
	c := p.confirms[0]
	p.confirms = p.confirms[1:]
	return c, nil
}

func (p *scriptedPrompter) AskText(_ context.Context, message, help string, _ bool) (string, error) {
	p.asked = append(p.asked, message)
	p.helps = append(p.helps, help)
	if len(p.texts) == 0 {
		return "", errors.Newf("unexpected prompt %q", message)
	}
	t := p.texts[0]
	p.texts = p.texts[1:]
	if t == abort {
		return "", errors.WithStack(ai.ErrAborted)
	}
	return t, nil
}

func (p *scriptedPrompter) Info(message string) { p.infos = append(p.infos, message) }
func (p *scriptedPrompter) Warn(message string) { p.warns = append(p.warns, message) }

func (p *scriptedPrompter) done(t *testing.T) {
	t.Helper()
	assert.Empty(t, p.choices, "unused choices")
	assert.Empty(t, p.confirms, "unused confirms")
	assert.Empty(t, p.texts, "unused texts")
}

type fakeEditor struct {
	result string
	err    error

	gotInitial, gotTemp, gotEditor string
}

func (e *fakeEditor) Edit(_ context.Context, initial, tempName, editor string) (string, error) {
	e.gotInitial, e.gotTemp, e.gotEditor = initial, tempName, editor
	return e.result, e.err
}

type fakeProvider struct {
	ai.Base
	keyRequired bool
	models      []string
	catalog     ai.Catalog
	reply       string

	prompts    []string
	usedModels []string
}

func newLocal(store *config.Store, models ...string) *fakeProvider {
	return &fakeProvider{
		Base:   ai.NewBase(ai.BaseConfig{Name: "ollama", Store: store}),
		models: models,
		reply:  "feat: local",
	}
}

func newCloud(store *config.Store, models ...string) *fakeProvider {
	return &fakeProvider{
		Base:        ai.NewBase(ai.BaseConfig{Name: "google", HelpURL: "https://keys.example", Store: store}),
		keyRequired: true,
		models:      models,
		catalog:     ai.Catalog(models),
		reply:       "feat: cloud",
	}
}

func (p *fakeProvider) APIKeyRequired() bool { return p.keyRequired }

func (p *fakeProvider) Init(context.Context) error {
	p.LoadSettings()
	return nil
}

func (p *fakeProvider) Models(context.Context) ([]string, error) {
	return p.models, nil
}

func (p *fakeProvider) CheckAPIKey(context.Context) (bool, error) {
	if !p.keyRequired {
		return false, errors.WithStack(ai.ErrNotApplicable)
	}
	return p.HasAPIKey(), nil
}

func (p *fakeProvider) SetAPIKey(_ context.Context, key string) error {
	p.StoreAPIKey(strings.TrimSpace(key))
	return nil
}

func (p *fakeProvider) SetModel(_ context.Context, model string) error {
	if p.catalog != nil {
		if err := p.CheckCatalog(p.catalog, model); err != nil {
			return err
		}
	}
	p.StoreModel(model)
	return nil
}

func (p *fakeProvider) UseModel(_ context.Context, model string) error {
	if p.catalog != nil {
		if err := p.CheckCatalog(p.catalog, model); err != nil {
			return err
		}
	}
	p.SelectModel(model)
	return nil
}

func (p *fakeProvider) RunPrompt(ctx context.Context, prompt, model string) (string, error) {
	m, err := p.ResolveModel(ctx, model, p.catalog, p.SetModel)
	if err != nil {
		return "", err
	}
	p.prompts = append(p.prompts, prompt)
	p.usedModels = append(p.usedModels, m)
	return p.reply, nil
}

func newOrchestrator(store *config.Store, ui Prompter, ed Editor, providers ...ai.Provider) *Orchestrator {
	return New(Config{
		Store:    store,
		Registry: ai.NewRegistry(providers...),
		Prompter: ui,
		Editor:   ed,
	})
}

func TestFreshInstallThenSavedDefaults(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	cloud := newCloud(store, "gemini-1.5-flash", "gemini-1.5-pro")

	ui := &scriptedPrompter{
		choices:  []string{"google", "gemini-1.5-pro"},
		confirms: []bool{true, true},
		texts:    []string{"k1"},
	}
	o := newOrchestrator(store, ui, nil, newLocal(store, "llama3"), cloud)
	require.NoError(t, o.Init(ctx))
	assert.Nil(t, o.Provider())
	assert.Equal(t, config.DefaultPromptTemplate, o.Template())

	out, err := o.SuggestCommitMessage(ctx, "+added line")
	require.NoError(t, err)
	assert.Equal(t, "feat: cloud", out)
	ui.done(t)

	assert.Equal(t, []string{
		"Select an AI provider:",
		"Enter your API key:",
		"Set this provider as default?",
		"Select a model to use:",
		"Set this model as default?",
	}, ui.asked)
	assert.Contains(t, ui.helps[0], "https://keys.example")

	require.Len(t, cloud.prompts, 1)
	assert.Contains(t, cloud.prompts[0], "+added line")
	assert.Contains(t, cloud.prompts[0], "suggest a commit message")
	assert.Equal(t, []string{"gemini-1.5-pro"}, cloud.usedModels)

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "google", config.Value(doc.DefaultProvider))
	assert.Equal(t, "gemini-1.5-pro", config.Value(doc.DefaultModel))
	assert.Equal(t, "k1", config.Value(doc.Providers["google"].APIKey))
	assert.Equal(t, "gemini-1.5-pro", config.Value(doc.Providers["google"].Model))

	// Next run: everything comes from the store.
	ui2 := &scriptedPrompter{}
	cloud2 := newCloud(store, "gemini-1.5-flash", "gemini-1.5-pro")
	o2 := newOrchestrator(store, ui2, nil, newLocal(store, "llama3"), cloud2)
	require.NoError(t, o2.Init(ctx))
	assert.Equal(t, "google", o2.Provider().Name())
	assert.Equal(t, "gemini-1.5-pro", o2.Model())

	_, err = o2.SuggestCommitMessage(ctx, "diff")
	require.NoError(t, err)
	assert.Empty(t, ui2.asked)
	assert.Equal(t, []string{"gemini-1.5-pro"}, cloud2.usedModels)
}

func TestLocalProviderNeedsNoKey(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	local := newLocal(store, "llama3", "mistral")

	ui := &scriptedPrompter{
		choices:  []string{"ollama", "llama3"},
		confirms: []bool{true, true},
	}
	o := newOrchestrator(store, ui, nil, local)
	require.NoError(t, o.Init(ctx))
	require.NoError(t, o.EnsureReady(ctx))
	ui.done(t)

	assert.NotContains(t, ui.asked, "Enter your API key:")
	assert.Equal(t, "llama3", o.Model())

	ps, err := store.LoadProvider("ollama")
	require.NoError(t, err)
	assert.Nil(t, ps.APIKey)
	assert.Equal(t, "llama3", config.Value(ps.Model))
}

func TestSelectModelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	require.NoError(t, store.Save(config.Document{DefaultProvider: config.String("ollama")}))
	require.NoError(t, store.SaveProvider("ollama", config.ProviderSettings{Model: config.String("llama3")}))

	ui := &scriptedPrompter{}
	o := newOrchestrator(store, ui, nil, newLocal(store, "llama3"))
	require.NoError(t, o.Init(ctx))

	require.NoError(t, o.SelectModel(ctx, false, false))
	require.NoError(t, o.SelectModel(ctx, false, true))
	assert.Empty(t, ui.asked)
	assert.Equal(t, "llama3", o.Model())
}

func TestInitAdoptsProviderModelAsDefault(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	require.NoError(t, store.Save(config.Document{
		DefaultProvider: config.String("ollama"),
		DefaultModel:    config.String("stale"),
	}))
	require.NoError(t, store.SaveProvider("ollama", config.ProviderSettings{Model: config.String("llama3")}))

	o := newOrchestrator(store, &scriptedPrompter{}, nil, newLocal(store))
	require.NoError(t, o.Init(ctx))

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "llama3", config.Value(doc.DefaultModel))
}

func TestInitIgnoresUnknownDefaultProvider(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	require.NoError(t, store.Save(config.Document{DefaultProvider: config.String("removed")}))

	o := newOrchestrator(store, &scriptedPrompter{}, nil, newLocal(store))
	require.NoError(t, o.Init(ctx))
	assert.Nil(t, o.Provider())
	assert.Equal(t, "", o.Model())
}

func TestEmptyDiffIsStillSent(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	require.NoError(t, store.Save(config.Document{DefaultProvider: config.String("ollama")}))
	require.NoError(t, store.SaveProvider("ollama", config.ProviderSettings{Model: config.String("llama3")}))
	local := newLocal(store, "llama3")

	o := newOrchestrator(store, &scriptedPrompter{}, nil, local)
	require.NoError(t, o.Init(ctx))

	out, err := o.SuggestCommitMessage(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "feat: local", out)
	require.Len(t, local.prompts, 1)
	assert.Contains(t, local.prompts[0], "Changes:")
	assert.NotContains(t, local.prompts[0], "{{")
}

func TestCustomTemplateWithoutPlaceholderGetsDiff(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	require.NoError(t, store.Save(config.Document{
		DefaultProvider: config.String("ollama"),
		Prompt:          config.String("Write a haiku about this change."),
	}))
	require.NoError(t, store.SaveProvider("ollama", config.ProviderSettings{Model: config.String("llama3")}))
	local := newLocal(store, "llama3")

	o := newOrchestrator(store, &scriptedPrompter{}, nil, local)
	require.NoError(t, o.Init(ctx))

	_, err := o.SuggestCommitMessage(ctx, "+x := 1")
	require.NoError(t, err)
	require.Len(t, local.prompts, 1)
	assert.True(t, strings.HasPrefix(local.prompts[0], "Write a haiku about this change."))
	assert.Contains(t, local.prompts[0], "+x := 1")
}

func TestRemoveDefaults(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	require.NoError(t, store.Save(config.Document{
		DefaultProvider: config.String("ollama"),
		DefaultModel:    config.String("llama3"),
	}))
	require.NoError(t, store.SaveProvider("ollama", config.ProviderSettings{Model: config.String("llama3")}))

	ui := &scriptedPrompter{choices: []string{ActionRemove}}
	o := newOrchestrator(store, ui, nil, newLocal(store, "llama3"))
	require.NoError(t, o.Init(ctx))

	require.NoError(t, o.ChangeModel(ctx, true))
	ui.done(t)
	assert.Contains(t, ui.infos, "Current default model: llama3 (ollama)")
	assert.Contains(t, ui.infos, "Default model removed")
	assert.Nil(t, o.Provider())
	assert.Equal(t, "", o.Model())

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, doc.DefaultProvider)
	assert.Nil(t, doc.DefaultModel)
	// Provider records are kept.
	assert.Equal(t, "llama3", config.Value(doc.Providers["ollama"].Model))
}

func TestChangeModelPersistsWithoutAsking(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	ui := &scriptedPrompter{choices: []string{ActionChange, "ollama", "mistral"}}
	o := newOrchestrator(store, ui, nil, newLocal(store, "llama3", "mistral"))
	require.NoError(t, o.Init(ctx))

	require.NoError(t, o.ChangeModel(ctx, true))
	ui.done(t)
	assert.Contains(t, ui.infos, "Current default model: No default model set (No provider set)")
	assert.Contains(t, ui.infos, "Model changed to: mistral")

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "ollama", config.Value(doc.DefaultProvider))
	assert.Equal(t, "mistral", config.Value(doc.DefaultModel))
}

func TestChangeModelCancel(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	ui := &scriptedPrompter{choices: []string{ActionCancel}}
	o := newOrchestrator(store, ui, nil, newLocal(store, "llama3"))
	require.NoError(t, o.Init(ctx))

	require.NoError(t, o.ChangeModel(ctx, true))
	assert.Contains(t, ui.infos, "Operation cancelled")
}

func TestAPIKeyLoopRepeatsUntilKeyHeld(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	cloud := newCloud(store, "m1")

	ui := &scriptedPrompter{
		choices:  []string{"google"},
		confirms: []bool{false},
		texts:    []string{"  ", "k2"},
	}
	o := newOrchestrator(store, ui, nil, cloud)
	require.NoError(t, o.Init(ctx))
	require.NoError(t, o.SelectProvider(ctx, false))
	ui.done(t)

	assert.Equal(t, []string{"Invalid API key. Please try again."}, ui.warns)
	assert.Equal(t, "k2", cloud.APIKey())

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, doc.DefaultProvider)
}

func TestAbortStopsEverything(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	cloud := newCloud(store, "m1")

	ui := &scriptedPrompter{choices: []string{"google"}, texts: []string{abort}}
	o := newOrchestrator(store, ui, nil, cloud)
	require.NoError(t, o.Init(ctx))

	_, err := o.SuggestCommitMessage(ctx, "diff")
	require.Error(t, err)
	assert.True(t, ai.IsAborted(err))
	assert.Empty(t, cloud.prompts)

	ui = &scriptedPrompter{choices: []string{abort}}
	o = newOrchestrator(store, ui, nil, cloud)
	require.NoError(t, o.Init(ctx))
	assert.True(t, ai.IsAborted(o.EnsureReady(ctx)))
}

func TestNoProviders(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(config.NewMemoryStore(), &scriptedPrompter{}, nil)
	require.NoError(t, o.Init(ctx))

	_, err := o.SuggestCommitMessage(ctx, "diff")
	assert.True(t, errors.Is(err, ai.ErrNoProvidersAvailable))
}

func TestDeclinedDefaultsStayInMemory(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	local := newLocal(store, "llama3", "mistral")

	ui := &scriptedPrompter{
		choices:  []string{"ollama", "mistral"},
		confirms: []bool{false, false},
	}
	o := newOrchestrator(store, ui, nil, local)
	require.NoError(t, o.Init(ctx))

	_, err := o.SuggestCommitMessage(ctx, "diff")
	require.NoError(t, err)
	ui.done(t)

	assert.Equal(t, "mistral", o.Model())
	assert.Equal(t, "mistral", local.Model())
	assert.Equal(t, []string{"mistral"}, local.usedModels)

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, doc.DefaultProvider)
	assert.Nil(t, doc.DefaultModel)
	ps, err := store.LoadProvider("ollama")
	require.NoError(t, err)
	if ps != nil {
		assert.Nil(t, ps.Model)
	}

	// The next run has nothing saved and asks again.
	ui2 := &scriptedPrompter{
		choices:  []string{"ollama", "llama3"},
		confirms: []bool{false, false},
	}
	local2 := newLocal(store, "llama3", "mistral")
	o2 := newOrchestrator(store, ui2, nil, local2)
	require.NoError(t, o2.Init(ctx))
	_, err = o2.SuggestCommitMessage(ctx, "diff")
	require.NoError(t, err)
	ui2.done(t)
	assert.Contains(t, ui2.asked, "Select a model to use:")
	assert.Equal(t, []string{"llama3"}, local2.usedModels)
}

func TestDeclinedModelSurvivesKeyEntry(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	cloud := newCloud(store, "m1", "m2")

	ui := &scriptedPrompter{
		choices:  []string{"google", "m2"},
		confirms: []bool{false, false},
		texts:    []string{"k1"},
	}
	o := newOrchestrator(store, ui, nil, cloud)
	require.NoError(t, o.Init(ctx))
	require.NoError(t, o.EnsureReady(ctx))
	ui.done(t)

	// Saving the key later must not sneak the run-only model into the record.
	require.NoError(t, cloud.SetAPIKey(ctx, "k2"))
	ps, err := store.LoadProvider("google")
	require.NoError(t, err)
	require.NotNil(t, ps)
	assert.Equal(t, "k2", config.Value(ps.APIKey))
	assert.Nil(t, ps.Model)
	assert.Equal(t, "m2", cloud.Model())
}

func TestInvalidModelIsRetried(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	cloud := newCloud(store, "good")
	cloud.models = []string{"retired", "good"}
	require.NoError(t, cloud.SetAPIKey(ctx, "k"))

	ui := &scriptedPrompter{
		choices:  []string{"google", "retired", "good"},
		confirms: []bool{true, true, true},
	}
	o := newOrchestrator(store, ui, nil, cloud)
	require.NoError(t, o.Init(ctx))
	require.NoError(t, o.EnsureReady(ctx))
	ui.done(t)

	require.Len(t, ui.warns, 1)
	assert.Contains(t, ui.warns[0], "invalid model")
	assert.Equal(t, "good", o.Model())
	assert.Equal(t, "good", cloud.Model())
}

func TestNoModelsIsUnavailable(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	ui := &scriptedPrompter{choices: []string{"ollama"}, confirms: []bool{true}}
	o := newOrchestrator(store, ui, nil, newLocal(store))
	require.NoError(t, o.Init(ctx))

	err := o.EnsureReady(ctx)
	assert.True(t, errors.Is(err, ai.ErrBackendUnavailable))
}

func TestChangePromptTemplate(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	ed := &fakeEditor{result: "Summarize:\n{{diff}}"}
	ui := &scriptedPrompter{confirms: []bool{true}, choices: []string{"nano"}}

	o := newOrchestrator(store, ui, ed)
	require.NoError(t, o.Init(ctx))
	require.NoError(t, o.ChangePromptTemplate(ctx))
	ui.done(t)

	assert.Equal(t, config.DefaultPromptTemplate, ed.gotInitial)
	assert.Equal(t, ".prompt.txt", ed.gotTemp)
	assert.Equal(t, "nano", ed.gotEditor)
	assert.Equal(t, "Summarize:\n{{diff}}", o.Template())
	assert.Empty(t, ui.warns)

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "Summarize:\n{{diff}}", config.Value(doc.Prompt))
}

func TestChangePromptTemplateDeclined(t *testing.T) {
	ctx := context.Background()
	ed := &fakeEditor{result: "unused"}
	ui := &scriptedPrompter{confirms: []bool{false}}

	o := newOrchestrator(config.NewMemoryStore(), ui, ed)
	require.NoError(t, o.Init(ctx))
	require.NoError(t, o.ChangePromptTemplate(ctx))
	assert.Equal(t, "", ed.gotTemp)
	assert.Equal(t, config.DefaultPromptTemplate, o.Template())
}

func TestChangePromptTemplateWarnsWithoutPlaceholder(t *testing.T) {
	ctx := context.Background()
	ed := &fakeEditor{result: "Just describe it."}
	ui := &scriptedPrompter{confirms: []bool{true}, choices: []string{""}}

	o := newOrchestrator(config.NewMemoryStore(), ui, ed)
	require.NoError(t, o.Init(ctx))
	require.NoError(t, o.ChangePromptTemplate(ctx))

	require.Len(t, ui.warns, 1)
	assert.Contains(t, ui.warns[0], "placeholder")
	assert.Equal(t, "Just describe it.", o.Template())
}

func TestChangePromptTemplateEditorFailure(t *testing.T) {
	ctx := context.Background()
	store := config.NewMemoryStore()
	ed := &fakeEditor{err: errors.New("no editor")}
	ui := &scriptedPrompter{confirms: []bool{true}, choices: []string{"vim"}}

	o := newOrchestrator(store, ui, ed)
	require.NoError(t, o.Init(ctx))
	require.NoError(t, o.ChangePromptTemplate(ctx))
	assert.Equal(t, config.DefaultPromptTemplate, o.Template())
}
