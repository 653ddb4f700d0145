// Package orchestrator owns the active provider, model and prompt template,
// resolves them from saved preferences and asks the user for whatever is
// still missing before a commit message is generated.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/hoanghonghuy/commita/internal/ai"
	"github.com/hoanghonghuy/commita/internal/commitprompt"
	"github.com/hoanghonghuy/commita/internal/config"
)

// Menu actions offered by ChangeModel.
const (
	ActionChange = "change"
	ActionRemove = "remove"
	ActionCancel = "cancel"
)

// Config wires an Orchestrator to its collaborators.
type Config struct {
	Store    *config.Store
	Registry *ai.Registry
	Prompter Prompter
	Editor   Editor
	Log      *zap.Logger
}

// Orchestrator resolves provider, model and template independently. Each
// starts unresolved, may be filled from the store on Init, and is otherwise
// completed interactively the first time a suggestion is requested.
type Orchestrator struct {
	store    *config.Store
	registry *ai.Registry
	ui       Prompter
	editor   Editor
	log      *zap.Logger

	provider ai.Provider
	model    string
	template string
}

func New(cfg Config) *Orchestrator {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		store:    cfg.Store,
		registry: cfg.Registry,
		ui:       cfg.Prompter,
		editor:   cfg.Editor,
		log:      log,
		template: config.DefaultPromptTemplate,
	}
}

// Provider returns the active provider, nil while unresolved.
func (o *Orchestrator) Provider() ai.Provider { return o.provider }

// Model returns the active model, "" while unresolved.
func (o *Orchestrator) Model() string { return o.model }

// Template returns the active prompt template.
func (o *Orchestrator) Template() string { return o.template }

// Init loads preferences and prepares the default provider if one is saved
// and still registered.
func (o *Orchestrator) Init(ctx context.Context) error {
	doc, err := o.store.Load()
	o.warnPersist("load preferences", err)

	o.template = config.Value(doc.Prompt)
	if strings.TrimSpace(o.template) == "" {
		o.template = config.DefaultPromptTemplate
	}

	o.provider, o.model = nil, ""
	name := config.Value(doc.DefaultProvider)
	if name == "" {
		return nil
	}
	p, ok := o.registry.Lookup(name)
	if !ok {
		o.log.Debug("Saved default provider is not registered", zap.String("provider", name))
		return nil
	}
	o.provider = p
	return o.prepareProvider(ctx)
}

// prepareProvider runs whenever a provider becomes active: load its
// settings, adopt its model, and keep asking for an API key until one is
// held or the user aborts.
func (o *Orchestrator) prepareProvider(ctx context.Context) error {
	p := o.provider
	if err := p.Init(ctx); err != nil {
		return errors.Wrapf(err, "initialize %s", p.Name())
	}
	o.model = p.Model()
	o.saveDefaultModel(o.model)

	if !p.APIKeyRequired() {
		return nil
	}
	for {
		ok, err := p.CheckAPIKey(ctx)
		if errors.Is(err, ai.ErrNotApplicable) {
			return nil
		}
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		help := fmt.Sprintf("You can get an API key from the %s website: %s", p.Name(), p.APIKeyHelpURL())
		key, err := o.ui.AskText(ctx, "Enter your API key:", help, true)
		if err != nil {
			return err
		}
		if err := p.SetAPIKey(ctx, key); err != nil {
			return err
		}
		if ok, _ := p.CheckAPIKey(ctx); !ok {
			o.ui.Warn("Invalid API key. Please try again.")
		}
	}
}

// SelectProvider asks which provider to use and prepares it. The choice is
// saved as default when persist is set or the user agrees.
func (o *Orchestrator) SelectProvider(ctx context.Context, persist bool) error {
	if o.registry.Len() == 0 {
		return errors.WithStack(ai.ErrNoProvidersAvailable)
	}

	choices := make([]Choice, 0, o.registry.Len())
	for _, name := range o.registry.Names() {
		choices = append(choices, Choice{Value: name, Label: name})
	}
	name, err := o.ui.ChooseOne(ctx, "Select an AI provider:", choices)
	if err != nil {
		return err
	}
	p, ok := o.registry.Lookup(name)
	if !ok {
		return errors.Newf("unknown provider %q", name)
	}

	o.provider = p
	if err := o.prepareProvider(ctx); err != nil {
		return err
	}

	setDefault := persist
	if !setDefault {
		if setDefault, err = o.ui.Confirm(ctx, "Set this provider as default?", true); err != nil {
			return err
		}
	}
	if setDefault {
		o.warnPersist("save default provider", o.store.Save(config.Document{DefaultProvider: config.String(name)}))
	}
	o.log.Debug("Provider selected", zap.String("provider", name), zap.Bool("default", setDefault))
	return nil
}

// SelectModel makes sure a model is active. It is a no-op when one already
// is and force is false. The chosen model is always used for the rest of
// the run; it is saved, as the provider's model and as default, only when
// persist is set or the user agrees.
func (o *Orchestrator) SelectModel(ctx context.Context, force, persist bool) error {
	for o.provider == nil {
		if err := o.SelectProvider(ctx, false); err != nil {
			return err
		}
	}
	if o.model != "" && !force {
		return nil
	}

	p := o.provider
	models, err := p.Models(ctx)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return ai.Unavailable(p.Name(), "models", errors.New("no models available"), "install or enable a model first, e.g. `ollama pull llama3`")
	}
	choices := make([]Choice, 0, len(models))
	for _, m := range models {
		choices = append(choices, Choice{Value: m, Label: m})
	}

	for {
		model, err := o.ui.ChooseOne(ctx, "Select a model to use:", choices)
		if err != nil {
			return err
		}

		setDefault := persist
		if !setDefault {
			if setDefault, err = o.ui.Confirm(ctx, "Set this model as default?", true); err != nil {
				return err
			}
		}
		if setDefault {
			err = p.SetModel(ctx, model)
		} else {
			err = p.UseModel(ctx, model)
		}
		if errors.Is(err, ai.ErrInvalidModel) {
			o.ui.Warn(err.Error())
			continue
		}
		if err != nil {
			return err
		}
		if setDefault {
			o.saveDefaultModel(model)
			o.ui.Info(fmt.Sprintf("Default model for %s set to %s", p.Name(), model))
		}

		o.model = model
		o.log.Debug("Model selected", zap.String("provider", p.Name()), zap.String("model", model), zap.Bool("default", setDefault))
		return nil
	}
}

// ChangeModel offers to change or remove the default provider and model.
func (o *Orchestrator) ChangeModel(ctx context.Context, persist bool) error {
	current := o.model
	if current == "" {
		current = "No default model set"
	}
	providerName := "No provider set"
	if o.provider != nil {
		providerName = o.provider.Name()
	}
	o.ui.Info(fmt.Sprintf("Current default model: %s (%s)", current, providerName))

	action, err := o.ui.ChooseOne(ctx, "What would you like to do?", []Choice{
		{Value: ActionChange, Label: "Change default model"},
		{Value: ActionRemove, Label: "Remove default model"},
		{Value: ActionCancel, Label: "Cancel"},
	})
	if err != nil {
		return err
	}

	switch action {
	case ActionChange:
		if err := o.SelectProvider(ctx, persist); err != nil {
			return err
		}
		if err := o.SelectModel(ctx, true, persist); err != nil {
			return err
		}
		o.ui.Info(fmt.Sprintf("Model changed to: %s", o.model))
	case ActionRemove:
		o.RemoveDefaults()
		o.ui.Info("Default model removed")
	default:
		o.ui.Info("Operation cancelled")
	}
	return nil
}

// RemoveDefaults forgets the default provider and model, both saved and in memory.
func (o *Orchestrator) RemoveDefaults() {
	o.warnPersist("remove defaults", o.store.Unset(config.FieldDefaultProvider, config.FieldDefaultModel))
	o.provider, o.model = nil, ""
}

// ChangePromptTemplate shows the template and lets the user edit and save it.
func (o *Orchestrator) ChangePromptTemplate(ctx context.Context) error {
	o.ui.Info("Current prompt:\n" + o.template)

	change, err := o.ui.Confirm(ctx, "Do you want to change the prompt?", false)
	if err != nil || !change {
		return err
	}

	editor, err := o.ui.ChooseOne(ctx, "Select an editor:", []Choice{
		{Value: "", Label: "Default ($EDITOR)"},
		{Value: "vim", Label: "Vim"},
		{Value: "nano", Label: "Nano"},
	})
	if err != nil {
		return err
	}

	updated, err := o.editor.Edit(ctx, o.template, ".prompt.txt", editor)
	if err != nil {
		o.log.Warn("Editor failed, keeping the current prompt", zap.Error(err))
		updated = o.template
	}
	if strings.TrimSpace(updated) == "" {
		o.ui.Warn("Empty prompt, keeping the current one")
		return nil
	}
	if !commitprompt.HasPlaceholder(updated) {
		o.ui.Warn("The prompt has no {{diff}} placeholder; the changes will be appended after it")
	}

	o.template = updated
	o.warnPersist("save prompt", o.store.Save(config.Document{Prompt: config.String(updated)}))
	o.ui.Info("Prompt updated")
	return nil
}

// EnsureReady selects a provider and a model if either is still missing.
// It returns nil only once both are resolved.
func (o *Orchestrator) EnsureReady(ctx context.Context) error {
	for o.provider == nil {
		if err := o.SelectProvider(ctx, false); err != nil {
			return err
		}
	}
	for o.model == "" {
		if err := o.SelectModel(ctx, false, false); err != nil {
			return err
		}
	}
	return nil
}

// SuggestCommitMessage resolves whatever is missing, renders the template
// with diff and returns the backend's raw answer. An empty diff is sent
// like any other.
func (o *Orchestrator) SuggestCommitMessage(ctx context.Context, diff string) (string, error) {
	if err := o.EnsureReady(ctx); err != nil {
		return "", err
	}

	prompt, err := commitprompt.Render(o.template, diff)
	if err != nil {
		o.log.Warn("Prompt template did not render, substituting the diff literally", zap.Error(err))
		prompt = commitprompt.Literal(o.template, diff)
	}

	o.log.Debug("Requesting suggestion",
		zap.String("provider", o.provider.Name()),
		zap.String("model", o.model),
		zap.Int("diff_len", len(diff)))
	return o.provider.RunPrompt(ctx, prompt, o.model)
}

func (o *Orchestrator) saveDefaultModel(model string) {
	if model == "" {
		o.warnPersist("clear default model", o.store.Unset(config.FieldDefaultModel))
		return
	}
	o.warnPersist("save default model", o.store.Save(config.Document{DefaultModel: config.String(model)}))
}

// warnPersist logs a storage failure; the run continues on in-memory state.
func (o *Orchestrator) warnPersist(op string, err error) {
	if err != nil {
		o.log.Warn("Preferences not persisted", zap.String("op", op), zap.Error(err))
	}
}
