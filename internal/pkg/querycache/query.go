// internal/pkg/querycache/query.go
package querycache

import (
	"context"
	"fmt"
)

// Query pairs a key with a typed fetcher.
type Query[T any] struct {
	Key   Key
	Fetch func(ctx context.Context) (T, error)
}

func (q Query[T]) fetcher() Fetcher {
	return func(ctx context.Context) (any, error) {
		v, err := q.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// GetQuery is the typed form of Cache.Get.
func GetQuery[T any](ctx context.Context, c *Cache, q Query[T]) (T, error) {
	var zero T
	v, err := c.Get(ctx, q.Key, q.fetcher())
	if err != nil {
		return zero, err
	}
	return cast[T](q.Key, v)
}

// EnsureQuery is the typed form of Cache.Ensure.
func EnsureQuery[T any](c *Cache, q Query[T]) {
	c.Ensure(q.Key, q.fetcher())
}

// PeekQuery returns the cached value for key if one is held.
func PeekQuery[T any](c *Cache, key Key) (T, bool) {
	var zero T
	snap, ok := c.Peek(key)
	if !ok || !snap.HasData {
		return zero, false
	}
	v, ok := snap.Data.(T)
	return v, ok
}

// SetQueryData is the typed form of Cache.SetData. fn receives ok=false when
// the key holds no value yet.
func SetQueryData[T any](c *Cache, key Key, fn func(old T, ok bool) T) T {
	next := c.SetData(key, func(old any) any {
		v, ok := old.(T)
		return fn(v, ok)
	})
	v, _ := next.(T)
	return v
}

// UpdateQueryData is the typed form of Cache.Update.
func UpdateQueryData[T any](c *Cache, key Key, fn func(old T) T) bool {
	_, ok := c.Update(key, func(old any) any {
		v, _ := old.(T)
		return fn(v)
	})
	return ok
}

// WatchQuery subscribes to typed snapshots of key.
func WatchQuery[T any](c *Cache, key Key, fn func(data T, snap Snapshot)) func() {
	return c.Subscribe(key, func(s Snapshot) {
		v, _ := s.Data.(T)
		fn(v, s)
	})
}

func cast[T any](key Key, v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("query %s: cached value has type %T, want %T", key.Operation(), v, zero)
	}
	return t, nil
}
