package config

import (
	"os"
	"path/filepath"
)

const (
	// Default Anthropic API URL
	defaultAnthropicAPIURL = "https://api.anthropic.com/v1/messages"
	defaultModel           = "claude-3-5-sonnet-20241022"
	defaultAddress         = ":8700"
)

// Config holds application configuration
type Config struct {
	Address         string
	DBPath          string
	AnthropicAPIURL string
	AnthropicAPIKey string
	Model           string
	ProjectsRoot    string
	PromptsDir      string
}

// globalConfig holds the application configuration instance
var globalConfig *Config

// Initialize sets up the configuration from environment variables
func Initialize() {
	globalConfig = &Config{
		Address:         envOr("TASKFORGE_ADDR", defaultAddress),
		DBPath:          getDBPath(),
		AnthropicAPIURL: getAnthropicAPIURL(),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		Model:           envOr("TASKFORGE_MODEL", defaultModel),
		ProjectsRoot:    envOr("TASKFORGE_PROJECTS_ROOT", "."),
		PromptsDir:      os.Getenv("TASKFORGE_PROMPTS_DIR"),
	}
}

// Get returns the global configuration instance
func Get() *Config {
	if globalConfig == nil {
		Initialize()
	}
	return globalConfig
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getDBPath returns the database path from environment or the default
// under the user's data directory
func getDBPath() string {
	if p := os.Getenv("TASKFORGE_DB"); p != "" {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "taskforge.db"
	}
	return filepath.Join(homeDir, ".local", "share", "taskforge", "taskforge.db")
}

// getAnthropicAPIURL returns the API URL from environment or default
func getAnthropicAPIURL() string {
	// MSG_PROXY allows routing through a local proxy for debugging
	if proxyURL := os.Getenv("MSG_PROXY"); proxyURL != "" {
		return proxyURL + "/v1/messages"
	}
	return defaultAnthropicAPIURL
}
