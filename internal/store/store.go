// ABOUTME: Store interface for arcbot persistence
// ABOUTME: Defines plugin key/value storage and event accounting contracts

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested key does not exist.
var ErrNotFound = errors.New("not found")

// Entry is a single plugin-scoped key/value record.
type Entry struct {
	Plugin    string
	Key       string
	Value     string
	UpdatedAt time.Time
}

// EventCount aggregates how many events of a given type this shard has seen.
type EventCount struct {
	EventType string
	Count     int64
}

// Store is the persistence collaborator. The core never defines queries
// beyond this surface; plugins obtain a handle through the bot facade.
type Store interface {
	// Plugin key/value storage, namespaced by plugin name.
	Get(ctx context.Context, plugin, key string) (string, error)
	Set(ctx context.Context, plugin, key, value string) error
	Delete(ctx context.Context, plugin, key string) error
	List(ctx context.Context, plugin string) ([]Entry, error)

	// Event accounting, used by the status surfaces.
	RecordEvent(ctx context.Context, shardID int, eventType string) error
	EventCounts(ctx context.Context, shardID int) ([]EventCount, error)

	Close() error
}
