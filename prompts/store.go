// Package prompts serves named prompt templates. Built-in templates are
// embedded; a configured directory can override any of them by name.
package prompts

import (
	"bytes"
	"embed"
	"os"
	"path/filepath"
	"sync"
	"text/template"

	"github.com/rohanthewiz/serr"
)

//go:embed templates/*.tmpl
var builtin embed.FS

// ErrNotFound is returned when no template exists under a name.
// Callers degrade to a minimal built-in prompt rather than failing.
var ErrNotFound = serr.New("prompt template not found")

// Store resolves and renders prompt templates by name
type Store struct {
	overrideDir string

	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewStore creates a prompt store. overrideDir may be empty, in which
// case only the embedded templates are available.
func NewStore(overrideDir string) *Store {
	return &Store{
		overrideDir: overrideDir,
		cache:       make(map[string]*template.Template),
	}
}

// Render resolves the named template and executes it with data
func (s *Store) Render(name string, data interface{}) (string, error) {
	tmpl, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", serr.Wrap(err, "failed to render prompt", "name", name)
	}
	return buf.String(), nil
}

// lookup finds a template by name, preferring the override directory,
// and caches the parsed result
func (s *Store) lookup(name string) (*template.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tmpl, ok := s.cache[name]; ok {
		return tmpl, nil
	}

	text, err := s.read(name)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return nil, serr.Wrap(err, "failed to parse prompt template", "name", name)
	}
	s.cache[name] = tmpl
	return tmpl, nil
}

func (s *Store) read(name string) (string, error) {
	if s.overrideDir != "" {
		path := filepath.Join(s.overrideDir, name+".tmpl")
		if data, err := os.ReadFile(path); err == nil {
			return string(data), nil
		}
	}
	data, err := builtin.ReadFile("templates/" + name + ".tmpl")
	if err != nil {
		return "", ErrNotFound
	}
	return string(data), nil
}
