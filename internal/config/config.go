package config

import (
	"fmt"
	"os"
)

const (
	// DefaultEndpoint is the base URL of the structured-output generation API.
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultIdentityEndpoint is the base URL of the identity backend.
	DefaultIdentityEndpoint = "https://identitytoolkit.googleapis.com/v1"

	DefaultModel    = "gemini-2.0-flash"
	DefaultProvider = "rest"
)

// Config holds every setting the pipeline needs, resolved once at startup.
type Config struct {
	// APIKey is the generation-service credential, passed as a query parameter.
	APIKey string

	Model    string
	Endpoint string

	// Provider selects the generation backend: "rest" or "gemini".
	Provider string

	// AppNamespace scopes persisted records under artifacts/{AppNamespace}/...
	AppNamespace string

	// ContinuationToken is an optional custom sign-in token. When empty the
	// identity provider signs in anonymously.
	ContinuationToken string

	IdentityEndpoint string

	// FirebaseProjectID and CredentialsFile configure the record store and the
	// custom-token minter. CredentialsFile may be empty when application
	// default credentials are available.
	FirebaseProjectID string
	CredentialsFile   string
}

// ConfigError reports a missing or invalid configuration field.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s is required", e.Field)
}

// Load resolves configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		APIKey:            getEnv("GEMINI_API_KEY", ""),
		Model:             getEnv("KEYWORDER_MODEL", DefaultModel),
		Endpoint:          getEnv("KEYWORDER_ENDPOINT", DefaultEndpoint),
		Provider:          getEnv("KEYWORDER_PROVIDER", DefaultProvider),
		AppNamespace:      getEnv("KEYWORDER_APP_NAMESPACE", ""),
		ContinuationToken: getEnv("KEYWORDER_CONTINUATION_TOKEN", ""),
		IdentityEndpoint:  getEnv("KEYWORDER_IDENTITY_ENDPOINT", DefaultIdentityEndpoint),
		FirebaseProjectID: getEnv("FIREBASE_PROJECT_ID", ""),
		CredentialsFile:   getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields. Absence of a required field is a startup
// failure, not a per-action check.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return &ConfigError{Field: "GEMINI_API_KEY"}
	}

	if c.AppNamespace == "" {
		return &ConfigError{Field: "KEYWORDER_APP_NAMESPACE"}
	}

	switch c.Provider {
	case "rest", "gemini":
	default:
		return &ConfigError{Field: "KEYWORDER_PROVIDER"}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
