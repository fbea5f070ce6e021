package validation

import (
	"strings"
	"testing"
)

const personSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {
		"name": {"type": "string"},
		"age": {"type": "integer"}
	}
}`

// TestValidatePasses tests a conforming payload
func TestValidatePasses(t *testing.T) {
	m := NewManager(false)
	result := m.Validate(map[string]interface{}{"name": "alice", "age": 30}, personSchema)
	if !result.Valid {
		t.Errorf("Expected valid, got errors: %v", result.Errors)
	}
}

// TestValidateReportsFieldErrors tests the "<path> <message>" format
func TestValidateReportsFieldErrors(t *testing.T) {
	m := NewManager(false)
	result := m.Validate(map[string]interface{}{"age": "not a number"}, personSchema)

	if result.Valid {
		t.Fatal("Expected invalid result")
	}
	if len(result.Errors) == 0 {
		t.Fatal("Expected field errors")
	}
	for _, msg := range result.Errors {
		if strings.TrimSpace(msg) == "" {
			t.Error("Expected non-empty error message")
		}
	}
}

// TestValidateMalformedSchema tests that a bad schema never panics
func TestValidateMalformedSchema(t *testing.T) {
	m := NewManager(false)
	result := m.Validate(map[string]interface{}{}, `{"type": ["not", 42`)

	if result.Valid {
		t.Error("Expected invalid result for malformed schema")
	}
	if len(result.Errors) != 1 || result.Errors[0] != "Invalid schema" {
		t.Errorf("Expected [Invalid schema], got %v", result.Errors)
	}
}

// TestValidateDisabledIsPermissive tests degrade-to-valid without an engine
func TestValidateDisabledIsPermissive(t *testing.T) {
	m := NewManager(true)
	result := m.Validate(map[string]interface{}{"anything": true}, personSchema)
	if !result.Valid {
		t.Error("Expected disabled manager to treat all data as valid")
	}
}

// TestClearCache tests that validation still works after invalidation
func TestClearCache(t *testing.T) {
	m := NewManager(false)
	m.Validate(map[string]interface{}{"name": "a"}, personSchema)
	m.ClearCache()

	result := m.Validate(map[string]interface{}{"name": "b"}, personSchema)
	if !result.Valid {
		t.Errorf("Expected valid after cache clear, got %v", result.Errors)
	}
}
