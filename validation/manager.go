// Package validation wraps JSON Schema validation behind a small manager
// that compiles schemas once and caches them. Validation here is
// advisory: a missing engine degrades to permissive rather than blocking
// the pipeline.
package validation

import (
	"fmt"
	"sync"

	"github.com/rohanthewiz/logger"
	"github.com/xeipuuv/gojsonschema"
)

// Result is the outcome of validating one payload
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Manager compiles and caches schema validators keyed by the serialized
// schema text. Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	cache    map[string]*gojsonschema.Schema
	disabled bool
	warned   bool
}

// NewManager creates a validation manager. Pass disabled=true to run
// without an engine; every payload then validates as permissively valid.
func NewManager(disabled bool) *Manager {
	return &Manager{
		cache:    make(map[string]*gojsonschema.Schema),
		disabled: disabled,
	}
}

// Validate checks data against a JSON Schema document. Errors are
// formatted "<path> <message>". A malformed schema yields
// {valid:false, errors:["Invalid schema"]}; this never panics or
// returns a Go error.
func (m *Manager) Validate(data interface{}, schema string) Result {
	if m.disabled {
		m.warnOnce()
		return Result{Valid: true, Errors: []string{}}
	}

	compiled, err := m.compile(schema)
	if err != nil {
		return Result{Valid: false, Errors: []string{"Invalid schema"}}
	}

	outcome, err := compiled.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return Result{Valid: false, Errors: []string{"Invalid schema"}}
	}

	result := Result{Valid: outcome.Valid(), Errors: []string{}}
	for _, issue := range outcome.Errors() {
		result.Errors = append(result.Errors,
			fmt.Sprintf("%s %s", issue.Field(), issue.Description()))
	}
	return result
}

// compile returns a cached validator for the schema, compiling on first use
func (m *Manager) compile(schema string) (*gojsonschema.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if compiled, ok := m.cache[schema]; ok {
		return compiled, nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, err
	}
	m.cache[schema] = compiled
	return compiled, nil
}

// ClearCache drops all compiled validators
func (m *Manager) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]*gojsonschema.Schema)
}

func (m *Manager) warnOnce() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.warned {
		logger.Info("Schema validation engine disabled - treating all payloads as valid")
		m.warned = true
	}
}
