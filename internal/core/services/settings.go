package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/core/ports/driving"
	"github.com/custodia-labs/contentindex/internal/logger"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	KeyIndexingEnabled       = "indexing.enabled"
	KeySyncThreshold         = "indexing.sync_threshold"
	KeyIndexingConcurrency   = "indexing.concurrency"
	KeyFetchTimeout          = "acquisition.timeout"
	KeyUserAgent             = "acquisition.user_agent"
	KeyMinContentLength      = "acquisition.min_content_length"
	KeyRenderFallback        = "acquisition.render_fallback"
	KeyRenderTimeout         = "acquisition.render_timeout"
	KeyRequestsPerSecond     = "acquisition.requests_per_second"
	KeyYouTubeAPIKey         = "acquisition.youtube_api_key"
	KeyChunkTokens           = "chunking.chunk_tokens"
	KeyOverlapTokens         = "chunking.overlap_tokens"
	KeyEncoding              = "chunking.encoding"
	KeyEmbedProvider         = "embedding.provider"
	KeyEmbedModel            = "embedding.model"
	KeyEmbedBaseURL          = "embedding.base_url"
	KeyEmbedAPIKey           = "embedding.api_key"
	KeyEmbedDimensions       = "embedding.dimensions"
	KeyEmbedCacheDir         = "embedding.cache_dir"
	KeyRRFK                  = "search.rrf_k"
	KeyCandidateMultiplier   = "search.candidate_multiplier"
	KeyDefaultLimit          = "search.default_limit"
	KeySnippetLength         = "search.snippet_length"
	KeyRetryLimit            = "queue.retry_limit"
	KeyRetryDelay            = "queue.retry_delay"
	KeyRetryBackoff          = "queue.retry_backoff"
	KeyBatchSize             = "queue.batch_size"
	KeyPollInterval          = "queue.poll_interval"
	KeyArchiveAfter          = "queue.archive_after"
	KeyDeleteFailedAfter     = "queue.delete_failed_after"
	KeyExpireActiveAfter     = "queue.expire_active_after"
	KeyVectorBackend         = "vector_index.backend"
	KeyVectorDSN             = "vector_index.dsn"
	KeySchedulerEnabled      = "scheduler.enabled"
	KeyMaintenanceEnabled    = "scheduler.queue_maintenance.enabled"
	KeyMaintenanceInterval   = "scheduler.queue_maintenance.interval"
	defaultOllamaBaseURL     = "http://localhost:11434"
	secretMask               = "********"
	settingsValidatorTimeout = 30 * time.Second
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindDuration
)

// settingKinds lists every key Set accepts and how its value is parsed.
var settingKinds = map[string]valueKind{
	KeyIndexingEnabled:     kindBool,
	KeySyncThreshold:       kindInt,
	KeyIndexingConcurrency: kindInt,
	KeyFetchTimeout:        kindDuration,
	KeyUserAgent:           kindString,
	KeyMinContentLength:    kindInt,
	KeyRenderFallback:      kindBool,
	KeyRenderTimeout:       kindDuration,
	KeyRequestsPerSecond:   kindFloat,
	KeyYouTubeAPIKey:       kindString,
	KeyChunkTokens:         kindInt,
	KeyOverlapTokens:       kindInt,
	KeyEncoding:            kindString,
	KeyEmbedProvider:       kindString,
	KeyEmbedModel:          kindString,
	KeyEmbedBaseURL:        kindString,
	KeyEmbedAPIKey:         kindString,
	KeyEmbedDimensions:     kindInt,
	KeyEmbedCacheDir:       kindString,
	KeyRRFK:                kindInt,
	KeyCandidateMultiplier: kindInt,
	KeyDefaultLimit:        kindInt,
	KeySnippetLength:       kindInt,
	KeyRetryLimit:          kindInt,
	KeyRetryDelay:          kindDuration,
	KeyRetryBackoff:        kindFloat,
	KeyBatchSize:           kindInt,
	KeyPollInterval:        kindDuration,
	KeyArchiveAfter:        kindDuration,
	KeyDeleteFailedAfter:   kindDuration,
	KeyExpireActiveAfter:   kindDuration,
	KeyVectorBackend:       kindString,
	KeyVectorDSN:           kindString,
	KeySchedulerEnabled:    kindBool,
	KeyMaintenanceEnabled:  kindBool,
	KeyMaintenanceInterval: kindDuration,
}

// secretKeys are masked by Describe.
var secretKeys = map[string]bool{
	KeyEmbedAPIKey:   true,
	KeyYouTubeAPIKey: true,
	KeyVectorDSN:     true,
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	validator   driven.EmbeddingValidator

	mu        sync.Mutex
	listeners []func(*domain.AppSettings)
}

// NewSettingsService creates a new settings service.
// The validator is optional (can be nil).
func NewSettingsService(configStore driven.ConfigStore, validator driven.EmbeddingValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		validator:   validator,
	}
}

// OnChange registers fn to run with the new settings after every change
// made through the service or reported by Reload.
func (s *SettingsService) OnChange(fn func(*domain.AppSettings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Reload notifies listeners with the current settings. It is called after
// the underlying store changed outside the service.
func (s *SettingsService) Reload() {
	settings, err := s.Get()
	if err != nil {
		logger.Warn("Reload settings: %v", err)
		return
	}
	s.notify(settings)
}

func (s *SettingsService) notify(settings *domain.AppSettings) {
	s.mu.Lock()
	listeners := append([]func(*domain.AppSettings){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(settings)
	}
}

// Get retrieves current application settings, filling unset keys with defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Indexing: domain.IndexingSettings{
			Enabled:       s.getBool(KeyIndexingEnabled, d.Indexing.Enabled),
			SyncThreshold: s.getInt(KeySyncThreshold, d.Indexing.SyncThreshold),
			Concurrency:   s.getInt(KeyIndexingConcurrency, d.Indexing.Concurrency),
		},
		Acquisition: domain.AcquisitionSettings{
			Timeout:           s.getDuration(KeyFetchTimeout, d.Acquisition.Timeout),
			UserAgent:         s.getString(KeyUserAgent, d.Acquisition.UserAgent),
			MinContentLength:  s.getInt(KeyMinContentLength, d.Acquisition.MinContentLength),
			RenderFallback:    s.getBool(KeyRenderFallback, d.Acquisition.RenderFallback),
			RenderTimeout:     s.getDuration(KeyRenderTimeout, d.Acquisition.RenderTimeout),
			RequestsPerSecond: s.getFloat(KeyRequestsPerSecond, d.Acquisition.RequestsPerSecond),
			YouTubeAPIKey:     s.configStore.GetString(KeyYouTubeAPIKey),
		},
		Chunking: domain.ChunkingSettings{
			ChunkTokens:   s.getInt(KeyChunkTokens, d.Chunking.ChunkTokens),
			OverlapTokens: s.getInt(KeyOverlapTokens, d.Chunking.OverlapTokens),
			Encoding:      s.getString(KeyEncoding, d.Chunking.Encoding),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:   s.getProvider(KeyEmbedProvider),
			Model:      s.configStore.GetString(KeyEmbedModel),
			BaseURL:    s.configStore.GetString(KeyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:     s.configStore.GetString(KeyEmbedAPIKey),
			Dimensions: s.configStore.GetInt(KeyEmbedDimensions),
			CacheDir:   s.configStore.GetString(KeyEmbedCacheDir),
		},
		Search: domain.SearchSettings{
			RRFK:                s.getInt(KeyRRFK, d.Search.RRFK),
			CandidateMultiplier: s.getInt(KeyCandidateMultiplier, d.Search.CandidateMultiplier),
			DefaultLimit:        s.getInt(KeyDefaultLimit, d.Search.DefaultLimit),
			SnippetLength:       s.getInt(KeySnippetLength, d.Search.SnippetLength),
		},
		Queue: domain.QueueSettings{
			RetryLimit:        s.getIntAllowZero(KeyRetryLimit, d.Queue.RetryLimit),
			RetryDelay:        s.getDuration(KeyRetryDelay, d.Queue.RetryDelay),
			RetryBackoff:      s.getFloat(KeyRetryBackoff, d.Queue.RetryBackoff),
			BatchSize:         s.getInt(KeyBatchSize, d.Queue.BatchSize),
			PollInterval:      s.getDuration(KeyPollInterval, d.Queue.PollInterval),
			ArchiveAfter:      s.getDuration(KeyArchiveAfter, d.Queue.ArchiveAfter),
			DeleteFailedAfter: s.getDuration(KeyDeleteFailedAfter, d.Queue.DeleteFailedAfter),
			ExpireActiveAfter: s.getDuration(KeyExpireActiveAfter, d.Queue.ExpireActiveAfter),
		},
		VectorIndex: domain.VectorIndexSettings{
			Backend: domain.VectorBackend(s.getString(KeyVectorBackend, string(d.VectorIndex.Backend))),
			DSN:     s.configStore.GetString(KeyVectorDSN),
		},
	}

	// A provider without a model gets the provider's default model.
	if settings.Embedding.Provider != "" && settings.Embedding.Model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[settings.Embedding.Provider]
	}
	if settings.Embedding.Provider.IsLocal() && settings.Embedding.BaseURL == "" {
		settings.Embedding.BaseURL = defaultOllamaBaseURL
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key string
		val any
	}{
		{KeyIndexingEnabled, settings.Indexing.Enabled},
		{KeySyncThreshold, settings.Indexing.SyncThreshold},
		{KeyIndexingConcurrency, settings.Indexing.Concurrency},
		{KeyFetchTimeout, settings.Acquisition.Timeout.String()},
		{KeyUserAgent, settings.Acquisition.UserAgent},
		{KeyMinContentLength, settings.Acquisition.MinContentLength},
		{KeyRenderFallback, settings.Acquisition.RenderFallback},
		{KeyRenderTimeout, settings.Acquisition.RenderTimeout.String()},
		{KeyRequestsPerSecond, settings.Acquisition.RequestsPerSecond},
		{KeyChunkTokens, settings.Chunking.ChunkTokens},
		{KeyOverlapTokens, settings.Chunking.OverlapTokens},
		{KeyEncoding, settings.Chunking.Encoding},
		{KeyEmbedProvider, settings.Embedding.Provider.String()},
		{KeyEmbedModel, settings.Embedding.Model},
		{KeyEmbedBaseURL, settings.Embedding.BaseURL},
		{KeyEmbedDimensions, settings.Embedding.Dimensions},
		{KeyEmbedCacheDir, settings.Embedding.CacheDir},
		{KeyRRFK, settings.Search.RRFK},
		{KeyCandidateMultiplier, settings.Search.CandidateMultiplier},
		{KeyDefaultLimit, settings.Search.DefaultLimit},
		{KeySnippetLength, settings.Search.SnippetLength},
		{KeyRetryLimit, settings.Queue.RetryLimit},
		{KeyRetryDelay, settings.Queue.RetryDelay.String()},
		{KeyRetryBackoff, settings.Queue.RetryBackoff},
		{KeyBatchSize, settings.Queue.BatchSize},
		{KeyPollInterval, settings.Queue.PollInterval.String()},
		{KeyArchiveAfter, settings.Queue.ArchiveAfter.String()},
		{KeyDeleteFailedAfter, settings.Queue.DeleteFailedAfter.String()},
		{KeyExpireActiveAfter, settings.Queue.ExpireActiveAfter.String()},
		{KeyVectorBackend, string(settings.VectorIndex.Backend)},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.val); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Secrets are only written when set so a blank form never erases them.
	secrets := map[string]string{
		KeyEmbedAPIKey:   settings.Embedding.APIKey,
		KeyYouTubeAPIKey: settings.Acquisition.YouTubeAPIKey,
		KeyVectorDSN:     settings.VectorIndex.DSN,
	}
	for key, val := range secrets {
		if val == "" {
			continue
		}
		if err := s.configStore.Set(key, val); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	s.notify(settings)
	return nil
}

// Set parses value according to key's type and persists it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	parsed, err := parseSetting(kind, strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
	}

	switch key {
	case KeyEmbedProvider:
		if p := domain.AIProvider(value); value != "" && !p.IsValid() {
			return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidInput, value)
		}
	case KeyVectorBackend:
		if b := domain.VectorBackend(value); b != domain.VectorBackendSQLite && b != domain.VectorBackendPGVector {
			return fmt.Errorf("%w: invalid vector backend: %s", domain.ErrInvalidInput, value)
		}
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	logger.Debug("Setting %s updated", key)
	s.Reload()
	return nil
}

func parseSetting(kind valueKind, value string) (any, error) {
	switch kind {
	case kindInt:
		return strconv.Atoi(value)
	case kindFloat:
		return strconv.ParseFloat(value, 64)
	case kindBool:
		return strconv.ParseBool(value)
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, err
		}
		return d.String(), nil
	default:
		return value, nil
	}
}

// Keys returns every key Set accepts, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Describe returns the effective value of every setting as a string,
// with secrets masked.
func (s *SettingsService) Describe() (map[string]string, error) {
	settings, err := s.Get()
	if err != nil {
		return nil, err
	}
	sched := s.GetSchedulerConfig()
	maint := sched.QueueMaintenance

	out := map[string]string{
		KeyIndexingEnabled:     strconv.FormatBool(settings.Indexing.Enabled),
		KeySyncThreshold:       strconv.Itoa(settings.Indexing.SyncThreshold),
		KeyIndexingConcurrency: strconv.Itoa(settings.Indexing.Concurrency),
		KeyFetchTimeout:        settings.Acquisition.Timeout.String(),
		KeyUserAgent:           settings.Acquisition.UserAgent,
		KeyMinContentLength:    strconv.Itoa(settings.Acquisition.MinContentLength),
		KeyRenderFallback:      strconv.FormatBool(settings.Acquisition.RenderFallback),
		KeyRenderTimeout:       settings.Acquisition.RenderTimeout.String(),
		KeyRequestsPerSecond:   strconv.FormatFloat(settings.Acquisition.RequestsPerSecond, 'g', -1, 64),
		KeyYouTubeAPIKey:       settings.Acquisition.YouTubeAPIKey,
		KeyChunkTokens:         strconv.Itoa(settings.Chunking.ChunkTokens),
		KeyOverlapTokens:       strconv.Itoa(settings.Chunking.OverlapTokens),
		KeyEncoding:            settings.Chunking.Encoding,
		KeyEmbedProvider:       settings.Embedding.Provider.String(),
		KeyEmbedModel:          settings.Embedding.Model,
		KeyEmbedBaseURL:        settings.Embedding.BaseURL,
		KeyEmbedAPIKey:         settings.Embedding.APIKey,
		KeyEmbedDimensions:     strconv.Itoa(settings.Embedding.Dimensions),
		KeyEmbedCacheDir:       settings.Embedding.CacheDir,
		KeyRRFK:                strconv.Itoa(settings.Search.RRFK),
		KeyCandidateMultiplier: strconv.Itoa(settings.Search.CandidateMultiplier),
		KeyDefaultLimit:        strconv.Itoa(settings.Search.DefaultLimit),
		KeySnippetLength:       strconv.Itoa(settings.Search.SnippetLength),
		KeyRetryLimit:          strconv.Itoa(settings.Queue.RetryLimit),
		KeyRetryDelay:          settings.Queue.RetryDelay.String(),
		KeyRetryBackoff:        strconv.FormatFloat(settings.Queue.RetryBackoff, 'g', -1, 64),
		KeyBatchSize:           strconv.Itoa(settings.Queue.BatchSize),
		KeyPollInterval:        settings.Queue.PollInterval.String(),
		KeyArchiveAfter:        settings.Queue.ArchiveAfter.String(),
		KeyDeleteFailedAfter:   settings.Queue.DeleteFailedAfter.String(),
		KeyExpireActiveAfter:   settings.Queue.ExpireActiveAfter.String(),
		KeyVectorBackend:       string(settings.VectorIndex.Backend),
		KeyVectorDSN:           settings.VectorIndex.DSN,
		KeySchedulerEnabled:    strconv.FormatBool(sched.Enabled),
		KeyMaintenanceEnabled:  strconv.FormatBool(maint.Enabled),
		KeyMaintenanceInterval: maint.Interval.String(),
	}
	for key := range secretKeys {
		if out[key] != "" {
			out[key] = secretMask
		}
	}
	return out, nil
}

// SetIndexingEnabled flips the persisted kill switch.
func (s *SettingsService) SetIndexingEnabled(enabled bool) error {
	return s.Set(KeyIndexingEnabled, strconv.FormatBool(enabled))
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaBaseURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey
	settings.Embedding.Dimensions = domain.EmbeddingDimensions()[settings.Embedding.Model]

	return s.Save(settings)
}

// Validate checks if current settings are consistent.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if settings.Indexing.SyncThreshold < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeySyncThreshold))
	}
	if settings.Chunking.OverlapTokens >= settings.Chunking.ChunkTokens {
		errs = append(errs, fmt.Errorf("%s must be smaller than %s", KeyOverlapTokens, KeyChunkTokens))
	}
	if settings.Queue.RetryBackoff < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeyRetryBackoff))
	}

	if p := settings.Embedding.Provider; p != "" && !settings.Embedding.IsConfigured() {
		errs = append(errs, fmt.Errorf("embedding provider %s requires an API key", p.Description()))
	}

	switch settings.VectorIndex.Backend {
	case domain.VectorBackendSQLite:
	case domain.VectorBackendPGVector:
		if settings.VectorIndex.DSN == "" {
			errs = append(errs, fmt.Errorf("%s requires %s", domain.VectorBackendPGVector, KeyVectorDSN))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid vector backend: %s", settings.VectorIndex.Backend))
	}

	return errors.Join(errs...)
}

// ValidateEmbeddingConfig pings the configured embedding provider.
func (s *SettingsService) ValidateEmbeddingConfig(ctx context.Context) error {
	if s.validator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, settingsValidatorTimeout)
	defer cancel()
	return s.validator.ValidateEmbedding(ctx, &settings.Embedding)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// GetSchedulerConfig returns the scheduler configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	cfg := domain.DefaultSchedulerConfig()
	cfg.Enabled = s.getBool(KeySchedulerEnabled, cfg.Enabled)

	cfg.QueueMaintenance.Enabled = s.getBool(KeyMaintenanceEnabled, cfg.QueueMaintenance.Enabled)
	cfg.QueueMaintenance.Interval = s.getDuration(KeyMaintenanceInterval, cfg.QueueMaintenance.Interval)

	return cfg
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getIntAllowZero treats an explicit 0 as a value rather than "unset".
func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetDuration(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getProvider(key string) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(key))
	if !provider.IsValid() {
		return ""
	}
	return provider
}
