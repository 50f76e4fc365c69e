// Package cache stores computed metrics under derived keys for a bounded time.
//
// Every backend is optional for correctness: callers treat any error as a miss and
// recompute from the event store.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

// ErrUnavailable wraps every backend failure so callers can tell it apart from a miss.
var ErrUnavailable = errors.New("cache backend unavailable")

// Lookup is the result of Get. Value is only meaningful when Hit is true.
type Lookup struct {
	Value []byte
	Hit   bool
}

// Info describes a backend for the admin cache endpoint.
type Info struct {
	Backend    string        `json:"backend"`
	Available  bool          `json:"available"`
	Items      int64         `json:"items"`
	DefaultTTL time.Duration `json:"default_ttl"`
}

type Cache interface {
	Get(ctx context.Context, key string) (Lookup, error)
	// Set stores value under key. A ttl <= 0 selects the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Flush drops every entry in the namespace.
	Flush(ctx context.Context) error
	Info(ctx context.Context) (Info, error)
}

// Key derives a stable cache key from the query kind and its normalized parameters.
// Maps are encoded with sorted keys, so parameter order never changes the result.
func Key(kind string, params map[string]string) string {
	raw, _ := json.Marshal(params)
	sum := sha256.Sum256(raw)
	return kind + ":" + hex.EncodeToString(sum[:])
}
