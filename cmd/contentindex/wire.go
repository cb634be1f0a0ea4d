package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/custodia-labs/contentindex/internal/adapters/driven/ai"
	"github.com/custodia-labs/contentindex/internal/adapters/driven/config/file"
	"github.com/custodia-labs/contentindex/internal/adapters/driven/search/bleve"
	"github.com/custodia-labs/contentindex/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/contentindex/internal/adapters/driven/tokenizer/tiktoken"
	"github.com/custodia-labs/contentindex/internal/adapters/driven/vector/pgvector"
	"github.com/custodia-labs/contentindex/internal/adapters/driving/cli"
	"github.com/custodia-labs/contentindex/internal/connectors"
	"github.com/custodia-labs/contentindex/internal/connectors/web"
	"github.com/custodia-labs/contentindex/internal/connectors/youtube"
	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/core/services"
	"github.com/custodia-labs/contentindex/internal/logger"
	"github.com/custodia-labs/contentindex/internal/normalisers"
	"github.com/custodia-labs/contentindex/internal/normalisers/html"
	"github.com/custodia-labs/contentindex/internal/postprocessors/chunker"
)

// closers releases resources in reverse order of acquisition.
type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

func (c closers) close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// bootstrap builds the service graph rooted at opts.DataDir.
func bootstrap(ctx context.Context, opts cli.Options) (svc *cli.Services, err error) {
	dataDir, err := resolveDataDir(opts.DataDir)
	if err != nil {
		return nil, err
	}

	var cleanup closers
	defer func() {
		if err != nil {
			_ = cleanup.close()
		}
	}()

	// Config: file, then .env and CONTENTINDEX_* overrides.
	configStore, err := file.NewConfigStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	overridden, err := configStore.ApplyEnv(".env", filepath.Join(dataDir, ".env"))
	if err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if len(overridden) > 0 {
		logger.Debug("Environment overrides: %v", overridden)
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if err := settingsService.Validate(); err != nil {
		logger.Warn("Settings need attention: %v", err)
	}

	// Storage.
	store, err := sqlite.NewStore(filepath.Join(dataDir, "data"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	cleanup.add(store.Close)

	engine, err := bleve.New(filepath.Join(dataDir, "keyword.bleve"))
	if err != nil {
		return nil, fmt.Errorf("open keyword index: %w", err)
	}
	cleanup.add(engine.Close)

	vectorIndex, err := openVectorIndex(ctx, store, settings.VectorIndex)
	if err != nil {
		return nil, err
	}
	cleanup.add(vectorIndex.Close)

	queue := store.JobQueue(settings.Queue)

	// Embedding, built on first use and rebuilt when settings change.
	embedder := ai.NewLazyEmbedder(func(context.Context) (*domain.EmbeddingSettings, error) {
		s, err := settingsService.Get()
		if err != nil {
			return nil, err
		}
		return &s.Embedding, nil
	})
	cleanup.add(embedder.Close)

	// Chunking.
	var tokenizer driven.Tokenizer
	tk, err := tiktoken.New(settings.Chunking.Encoding)
	if err != nil {
		logger.Warn("Tokenizer %q unavailable, counting words instead: %v", settings.Chunking.Encoding, err)
		tokenizer = chunker.WhitespaceTokenizer{}
	} else {
		tokenizer = tk
	}
	chunkProcessor := chunker.New(
		chunker.WithTokenizer(tokenizer),
		chunker.WithChunkSize(settings.Chunking.ChunkTokens),
		chunker.WithOverlap(settings.Chunking.OverlapTokens),
	)

	// Acquisition.
	acquirer, closeAcquirer, err := newAcquirer(ctx, settings.Acquisition)
	if err != nil {
		return nil, err
	}
	cleanup.add(closeAcquirer)

	orchestrator := services.NewIndexingOrchestrator(services.IndexingDeps{
		Acquirer:     acquirer,
		Chunker:      chunkProcessor,
		Tokenizer:    tokenizer,
		Embedder:     embedder,
		ContentStore: store.ContentStore(),
		ItemStore:    store.ItemStore(),
		SearchEngine: engine,
		VectorIndex:  vectorIndex,
		Queue:        queue,
	}, settings.Indexing)

	searchService := services.NewSearchService(store.ContentStore(), engine, vectorIndex, embedder, settings.Search)

	worker, err := services.NewWorker(queue, orchestrator, settings.Queue)
	if err != nil {
		return nil, err
	}
	cleanup.add(func() error {
		worker.Close()
		return nil
	})

	scheduler := services.NewScheduler(settingsService.GetSchedulerConfig(), store.SchedulerStore(), queue)

	// Settings edits reach the running process through the kill switch
	// and a fresh embedding provider.
	settingsService.OnChange(func(s *domain.AppSettings) {
		orchestrator.SetEnabled(s.Indexing.Enabled)
		if err := embedder.Reset(); err != nil {
			logger.Warn("Reset embedding provider: %v", err)
		}
	})
	configStore.OnChange(settingsService.Reload)

	watchCtx, stopWatch := context.WithCancel(context.Background())
	go func() {
		if err := configStore.Watch(watchCtx); err != nil {
			logger.Warn("Config watcher stopped: %v", err)
		}
	}()
	cleanup.add(func() error {
		stopWatch()
		return nil
	})

	logger.Debug("Data directory: %s", dataDir)

	return &cli.Services{
		Indexing:  orchestrator,
		Search:    searchService,
		Settings:  settingsService,
		Worker:    worker,
		Scheduler: scheduler,
		Close:     cleanup.close,
	}, nil
}

func resolveDataDir(dir string) (string, error) {
	if dir == "" {
		dir = os.Getenv("CONTENTINDEX_DATA_DIR")
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".contentindex")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	return dir, nil
}

// openVectorIndex returns the configured vector backend.
func openVectorIndex(ctx context.Context, store *sqlite.Store, cfg domain.VectorIndexSettings) (driven.VectorIndex, error) {
	if cfg.Backend != domain.VectorBackendPGVector {
		return store.VectorIndex(), nil
	}
	index, err := pgvector.Open(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open pgvector index: %w", err)
	}
	return index, nil
}

// newAcquirer builds the strategy dispatcher: video transcripts for
// YouTube URLs, plain HTTP for everything else, and an optional headless
// browser for pages whose static text is too short.
func newAcquirer(ctx context.Context, cfg domain.AcquisitionSettings) (driven.Acquirer, func() error, error) {
	registry := normalisers.Default(html.WithMinContentLength(cfg.MinContentLength))

	client := &http.Client{Timeout: cfg.Timeout}
	static := web.NewStaticPage(registry, web.Config{
		Timeout:           cfg.Timeout,
		UserAgent:         cfg.UserAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, client)

	captions, err := youtube.NewCaptionClient(ctx, youtube.ClientConfig{
		APIKey:     cfg.YouTubeAPIKey,
		HTTPClient: client,
	})
	if err != nil {
		return nil, nil, err
	}

	opts := []connectors.Option{
		connectors.WithStrategy(youtube.NewVideoTranscript(captions, registry, cfg.Timeout)),
	}

	closeFn := func() error { return nil }
	if cfg.RenderFallback {
		browser := web.NewBrowser()
		opts = append(opts, connectors.WithRenderedFallback(
			web.NewRenderedPage(browser, registry, cfg.RenderTimeout, web.DefaultSettle),
			cfg.MinContentLength,
		))
		closeFn = browser.Close
	}

	return connectors.NewDispatcher(static, opts...), closeFn, nil
}
