// Package cache memoizes expensive NCBI-backed computations for the
// lifetime of a process.
package cache

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/henrybloomingdale/srtoolkit/internal/metrics"
)

// DefaultSize is the number of entries each Memo keeps when no size is
// configured.
const DefaultSize = 1024

// Memo caches the successful results of a keyed computation. Concurrent
// callers asking for the same key share one in-flight computation.
// Errors are returned to every waiter and never stored. A waiter whose
// own context is still live retries when the shared call was cancelled by
// the caller that started it.
type Memo[V any] struct {
	name  string
	lru   *lru.Cache[string, V]
	group singleflight.Group
}

// New creates a Memo holding at most size entries, evicting the least
// recently used. The name labels cache metrics.
func New[V any](name string, size int) (*Memo[V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, V](size)
	if err != nil {
		return nil, fmt.Errorf("creating %s cache: %w", name, err)
	}
	return &Memo[V]{name: name, lru: c}, nil
}

// Get returns the cached value for key, or runs fn to produce it.
func (m *Memo[V]) Get(ctx context.Context, key string, fn func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := m.lru.Get(key); ok {
		metrics.RecordCacheHit(m.name)
		return v, nil
	}
	metrics.RecordCacheMiss(m.name)

	res, err, shared := m.group.Do(key, func() (any, error) {
		if v, ok := m.lru.Get(key); ok {
			return v, nil
		}
		return m.load(ctx, key, fn)
	})
	if err != nil && shared && ctx.Err() == nil && isContextErr(err) {
		// The shared call ran under another caller's context, which ended
		// first. This caller is still live, so it loads for itself.
		res, err = m.load(ctx, key, fn)
	}
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

func (m *Memo[V]) load(ctx context.Context, key string, fn func(ctx context.Context) (V, error)) (any, error) {
	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	m.lru.Add(key, v)
	return v, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Len reports the number of cached entries.
func (m *Memo[V]) Len() int {
	return m.lru.Len()
}
