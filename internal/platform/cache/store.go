package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/fantasy-auction/internal/platform/resilience"
)

// Store is a process-local TTL cache of arbitrary values with
// single-flight loading. A zero TTL keeps entries until they are deleted.
type Store struct {
	entries *TTLMap[any]
	flight  resilience.SingleFlight[any]
}

func NewStore(ttl time.Duration) *Store {
	return &Store{entries: NewTTLMap[any](ttl, 0)}
}

func (s *Store) Get(_ context.Context, key string) (any, bool) {
	if key == "" {
		return nil, false
	}
	return s.entries.Get(key)
}

func (s *Store) Set(_ context.Context, key string, value any) {
	if key != "" {
		s.entries.Set(key, value)
	}
}

func (s *Store) Delete(_ context.Context, key string) {
	s.entries.Delete(key)
}

// DeletePrefix drops every key that starts with prefix.
func (s *Store) DeletePrefix(_ context.Context, prefix string) int {
	if prefix == "" {
		return 0
	}
	return s.entries.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

func (s *Store) Len() int {
	return s.entries.Len()
}

// GetOrLoad returns the cached value or runs loader once per key even under
// concurrent misses. Loader errors are not cached.
func (s *Store) GetOrLoad(ctx context.Context, key string, loader func(context.Context) (any, error)) (any, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if key == "" {
		return loader(ctx)
	}
	if value, ok := s.Get(ctx, key); ok {
		return value, nil
	}

	value, err, _ := s.flight.Do(key, func() (any, error) {
		if cached, ok := s.Get(ctx, key); ok {
			return cached, nil
		}
		loaded, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		s.Set(ctx, key, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}
