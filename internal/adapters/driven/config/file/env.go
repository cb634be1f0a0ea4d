package file

import (
	"errors"
	"io/fs"
	"reflect"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces environment overrides, e.g. CONTENTINDEX_INDEXING_ENABLED.
const EnvPrefix = "CONTENTINDEX"

// envOverrides lists the settings that can be overridden from the
// environment. Unset variables leave their field nil.
type envOverrides struct {
	IndexingEnabled       *bool    `envconfig:"INDEXING_ENABLED" key:"indexing.enabled"`
	IndexingSyncThreshold *int     `envconfig:"INDEXING_SYNC_THRESHOLD" key:"indexing.sync_threshold"`
	IndexingConcurrency   *int     `envconfig:"INDEXING_CONCURRENCY" key:"indexing.concurrency"`
	AcquisitionTimeout    *string  `envconfig:"ACQUISITION_TIMEOUT" key:"acquisition.timeout"`
	AcquisitionUserAgent  *string  `envconfig:"ACQUISITION_USER_AGENT" key:"acquisition.user_agent"`
	RenderFallback        *bool    `envconfig:"ACQUISITION_RENDER_FALLBACK" key:"acquisition.render_fallback"`
	RequestsPerSecond     *float64 `envconfig:"ACQUISITION_REQUESTS_PER_SECOND" key:"acquisition.requests_per_second"`
	YouTubeAPIKey         *string  `envconfig:"YOUTUBE_API_KEY" key:"acquisition.youtube_api_key"`
	ChunkTokens           *int     `envconfig:"CHUNKING_CHUNK_TOKENS" key:"chunking.chunk_tokens"`
	OverlapTokens         *int     `envconfig:"CHUNKING_OVERLAP_TOKENS" key:"chunking.overlap_tokens"`
	EmbeddingProvider     *string  `envconfig:"EMBEDDING_PROVIDER" key:"embedding.provider"`
	EmbeddingModel        *string  `envconfig:"EMBEDDING_MODEL" key:"embedding.model"`
	EmbeddingBaseURL      *string  `envconfig:"EMBEDDING_BASE_URL" key:"embedding.base_url"`
	EmbeddingAPIKey       *string  `envconfig:"EMBEDDING_API_KEY" key:"embedding.api_key"`
	EmbeddingDimensions   *int     `envconfig:"EMBEDDING_DIMENSIONS" key:"embedding.dimensions"`
	EmbeddingCacheDir     *string  `envconfig:"EMBEDDING_CACHE_DIR" key:"embedding.cache_dir"`
	SearchRRFK            *int     `envconfig:"SEARCH_RRF_K" key:"search.rrf_k"`
	QueueRetryLimit       *int     `envconfig:"QUEUE_RETRY_LIMIT" key:"queue.retry_limit"`
	QueueBatchSize        *int     `envconfig:"QUEUE_BATCH_SIZE" key:"queue.batch_size"`
	QueuePollInterval     *string  `envconfig:"QUEUE_POLL_INTERVAL" key:"queue.poll_interval"`
	VectorBackend         *string  `envconfig:"VECTOR_INDEX_BACKEND" key:"vector_index.backend"`
	VectorDSN             *string  `envconfig:"VECTOR_INDEX_DSN" key:"vector_index.dsn"`
}

// ApplyEnv loads the given .env files (missing files are skipped) and
// applies CONTENTINDEX_* variables as overrides. It returns the keys that
// were overridden.
func (s *ConfigStore) ApplyEnv(dotenvFiles ...string) ([]string, error) {
	for _, f := range dotenvFiles {
		// godotenv never replaces variables already set in the process.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, err
	}

	var applied []string
	v := reflect.ValueOf(env)
	t := v.Type()
	for i := range t.NumField() {
		field := v.Field(i)
		if field.IsNil() {
			continue
		}
		key := t.Field(i).Tag.Get("key")
		s.Override(key, field.Elem().Interface())
		applied = append(applied, key)
	}
	return applied, nil
}
