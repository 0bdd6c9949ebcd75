// Package db defines the key-value store contract backing the embedding cache.
package db

import (
	"context"
	"time"
)

// Store is the key-value store facade used by the embedding cache.
type Store interface {
	KVStore
	Ping(ctx context.Context) error
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}
