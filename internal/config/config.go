package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
)

// DefaultPromptTemplate is the instruction sent to the backend when the user
// has not customized it. {{diff}} is replaced with the pending changes.
const DefaultPromptTemplate = "Based on these Git changes, suggest a commit message. " +
	"Give me only the commit message with no explanations or extra text:\n" +
	"Changes:\n\n{{diff}}\n"

// ProviderSettings is the per-provider part of the preference document.
// A nil field was never set, which is not the same as an empty string.
type ProviderSettings struct {
	APIKey *string `json:"apiKey,omitempty"`
	Model  *string `json:"model,omitempty"`
}

// Document is the persisted preference document.
type Document struct {
	DefaultProvider *string                     `json:"defaultProvider,omitempty"`
	DefaultModel    *string                     `json:"defaultModel,omitempty"`
	Prompt          *string                     `json:"prompt,omitempty"`
	Providers       map[string]ProviderSettings `json:"providers,omitempty"`
}

// Field names a top-level document field that can be cleared with Unset.
type Field string

const (
	FieldDefaultProvider Field = "defaultProvider"
	FieldDefaultModel    Field = "defaultModel"
	FieldPrompt          Field = "prompt"
)

// String returns a pointer to s, for building documents.
func String(s string) *string {
	return &s
}

// Value dereferences p, treating nil as "".
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Defaults returns the document written on first use.
func Defaults() Document {
	return Document{Prompt: String(DefaultPromptTemplate)}
}

func (d Document) clone() Document {
	out := Document{
		DefaultProvider: clonePtr(d.DefaultProvider),
		DefaultModel:    clonePtr(d.DefaultModel),
		Prompt:          clonePtr(d.Prompt),
	}
	if d.Providers != nil {
		out.Providers = make(map[string]ProviderSettings, len(d.Providers))
		for name, ps := range d.Providers {
			out.Providers[name] = ps.clone()
		}
	}
	return out
}

func (ps ProviderSettings) clone() ProviderSettings {
	return ProviderSettings{APIKey: clonePtr(ps.APIKey), Model: clonePtr(ps.Model)}
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// backend is the raw byte storage under a Store.
// read returns an error matching os.ErrNotExist when nothing was stored yet.
type backend interface {
	read() ([]byte, error)
	write(b []byte) error
}

// Store persists the preference document. Every Save writes the whole
// document before returning. The last document seen is kept in memory so
// the tool keeps working with the user's choices if the file is unusable.
// A file that exists but cannot be read or parsed is never overwritten.
type Store struct {
	mu      sync.Mutex
	path    string
	backend backend
	cached  *Document
}

// NewStore returns a Store backed by the JSON file at path.
// An empty path resolves to DefaultPath.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{path: path, backend: fileBackend{path: path}}
}

// NewMemoryStore returns a Store that never touches the filesystem.
func NewMemoryStore() *Store {
	return &Store{path: ":memory:", backend: &memoryBackend{}}
}

// Path is where the document is stored.
func (s *Store) Path() string {
	return s.path
}

// Load returns the whole document. If nothing is stored yet the defaults are
// written first. The returned document is always usable; a non-nil error
// reports that it could not be read from or written to storage.
func (s *Store) Load() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked()
	return doc.clone(), err
}

// LoadProvider returns the settings stored for one provider, or nil if none.
func (s *Store) LoadProvider(name string) (*ProviderSettings, error) {
	doc, err := s.Load()
	ps, ok := doc.Providers[name]
	if !ok {
		return nil, err
	}
	return &ps, err
}

// Save merges patch into the document: every non-nil top-level field of
// patch overwrites, everything else is kept. Entries in patch.Providers
// replace the stored entry for that provider name.
func (s *Store) Save(patch Document) error {
	return s.update(func(doc *Document) {
		if patch.DefaultProvider != nil {
			doc.DefaultProvider = clonePtr(patch.DefaultProvider)
		}
		if patch.DefaultModel != nil {
			doc.DefaultModel = clonePtr(patch.DefaultModel)
		}
		if patch.Prompt != nil {
			doc.Prompt = clonePtr(patch.Prompt)
		}
		for name, ps := range patch.Providers {
			setProvider(doc, name, ps)
		}
	})
}

// SaveProvider replaces the whole settings record stored under name.
func (s *Store) SaveProvider(name string, settings ProviderSettings) error {
	return s.update(func(doc *Document) {
		setProvider(doc, name, settings)
	})
}

// Unset removes top-level fields from the document.
func (s *Store) Unset(fields ...Field) error {
	return s.update(func(doc *Document) {
		for _, f := range fields {
			switch f {
			case FieldDefaultProvider:
				doc.DefaultProvider = nil
			case FieldDefaultModel:
				doc.DefaultModel = nil
			case FieldPrompt:
				doc.Prompt = nil
			}
		}
	})
}

func setProvider(doc *Document, name string, ps ProviderSettings) {
	if doc.Providers == nil {
		doc.Providers = map[string]ProviderSettings{}
	}
	doc.Providers[name] = ps.clone()
}

// errUnreadable marks a stored document that exists but could not be read or parsed.
var errUnreadable = errors.New("config unreadable")

func (s *Store) update(mutate func(*Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked()
	mutate(&doc)
	s.cached = &doc

	// Never overwrite a file we could not read: it may still hold keys.
	if errors.Is(err, errUnreadable) {
		return errors.WithHint(errors.Wrap(err, "changes kept in memory only"),
			"fix or remove "+s.path)
	}
	return s.writeLocked(doc)
}

func (s *Store) loadLocked() (Document, error) {
	b, err := s.backend.read()
	if errors.Is(err, os.ErrNotExist) {
		doc := s.fallbackLocked()
		s.cached = &doc
		return doc.clone(), s.writeLocked(doc)
	}
	if err != nil {
		return s.fallbackLocked(), errors.Mark(errors.Wrapf(err, "read config %s", s.path), errUnreadable)
	}

	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return s.fallbackLocked(), errors.Mark(errors.Wrapf(err, "parse config %s", s.path), errUnreadable)
	}
	s.cached = &doc
	return doc.clone(), nil
}

func (s *Store) fallbackLocked() Document {
	if s.cached != nil {
		return s.cached.clone()
	}
	return Defaults()
}

func (s *Store) writeLocked(doc Document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := s.backend.write(b); err != nil {
		return errors.Wrapf(err, "write config %s", s.path)
	}
	return nil
}

// DefaultPath is ~/.config/git-commit/config.json, or a file in the working
// directory when no home directory is known.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".git-commit.json")
	}
	return filepath.Join(home, ".config", "git-commit", "config.json")
}

type fileBackend struct {
	path string
}

func (f fileBackend) read() ([]byte, error) {
	return os.ReadFile(f.path)
}

// write replaces the file through a rename so readers never see a partial document.
func (f fileBackend) write(b []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}

type memoryBackend struct {
	data []byte
}

func (m *memoryBackend) read() ([]byte, error) {
	if m.data == nil {
		return nil, os.ErrNotExist
	}
	return append([]byte(nil), m.data...), nil
}

func (m *memoryBackend) write(b []byte) error {
	m.data = append([]byte(nil), b...)
	return nil
}
