package memory

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/contentindex/internal/adapters/driven/config/configval"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings in a map. Nothing is persisted, so Save and
// Load are no-ops.
type ConfigStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore returns an empty store, optionally seeded with values.
func NewConfigStore(seed ...map[string]any) *ConfigStore {
	s := &ConfigStore{values: make(map[string]any)}
	for _, m := range seed {
		maps.Copy(s.values, m)
	}
	return s
}

func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *ConfigStore) raw(key string) any {
	v, _ := s.Get(key)
	return v
}

func (s *ConfigStore) GetString(key string) string          { return configval.String(s.raw(key)) }
func (s *ConfigStore) GetInt(key string) int                { return configval.Int(s.raw(key)) }
func (s *ConfigStore) GetFloat(key string) float64          { return configval.Float(s.raw(key)) }
func (s *ConfigStore) GetBool(key string) bool              { return configval.Bool(s.raw(key)) }
func (s *ConfigStore) GetDuration(key string) time.Duration { return configval.Duration(s.raw(key)) }
func (s *ConfigStore) GetStringSlice(key string) []string   { return configval.StringSlice(s.raw(key)) }

func (s *ConfigStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.values))
}

func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

func (s *ConfigStore) Save() error  { return nil }
func (s *ConfigStore) Load() error  { return nil }
func (s *ConfigStore) Path() string { return ":memory:" }
