// Package cache persists embedding vectors in BadgerDB so unchanged chunk
// text is never sent to the provider twice.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/logger"
)

// Ensure Cache implements the interface.
var _ driven.EmbeddingCache = (*Cache)(nil)

const keyPrefix = "emb:"

// Cache is a BadgerDB-backed embedding cache.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// Option configures the cache.
type Option func(*Cache)

// WithTTL expires entries after d. Zero keeps entries forever.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		c.ttl = d
	}
}

// badgerLogger routes badger's internal logging through zap.
type badgerLogger struct {
	log *zap.SugaredLogger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l badgerLogger) Errorf(msg string, args ...any)   { l.log.Errorf(msg, args...) }
func (l badgerLogger) Warningf(msg string, args ...any) { l.log.Warnf(msg, args...) }
func (l badgerLogger) Infof(msg string, args ...any)    { l.log.Debugf(msg, args...) }
func (l badgerLogger) Debugf(msg string, args ...any)   { l.log.Debugf(msg, args...) }

// Open opens or creates a cache in dir. An empty dir opens an in-memory cache.
func Open(dir string, opts ...Option) (*Cache, error) {
	var bopts badger.Options
	if dir == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		bopts = badger.DefaultOptions(dir)
	}
	bopts.Logger = badgerLogger{log: logger.With("component", "embedding-cache")}
	bopts.Compression = options.None

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}

	c := &Cache{db: db}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the cached vector for text under model.
func (c *Cache) Get(_ context.Context, model, text string) ([]float32, bool, error) {
	var vec []float32
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(model, text))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			vec, err = decodeVector(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read embedding cache: %w", err)
	}
	return vec, true, nil
}

// Put stores vector for text under model.
func (c *Cache) Put(_ context.Context, model, text string, vector []float32) error {
	entry := badger.NewEntry(cacheKey(model, text), encodeVector(vector))
	if c.ttl > 0 {
		entry = entry.WithTTL(c.ttl)
	}
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	}); err != nil {
		return fmt.Errorf("write embedding cache: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func cacheKey(model, text string) []byte {
	sum := sha256.Sum256([]byte(text))
	return []byte(keyPrefix + model + ":" + hex.EncodeToString(sum[:]))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector of %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
