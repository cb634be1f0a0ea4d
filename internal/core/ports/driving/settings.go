package driving

import "github.com/custodia-labs/contentindex/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// Set updates a single key from its string form and persists it.
	Set(key, value string) error

	// SetIndexingEnabled flips the persisted kill switch.
	SetIndexingEnabled(enabled bool) error

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// Validate checks if current settings are consistent.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// Keys lists every key Set accepts.
	Keys() []string

	// Describe returns each setting's effective value as a string,
	// with secrets masked.
	Describe() (map[string]string, error)
}
