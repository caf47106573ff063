package audit

import (
	"context"
	"encoding/json"
	"time"
)

// Enqueuer admits payloads into a named analysis queue. Implementations
// validate the payload at the boundary and own retry scheduling.
type Enqueuer interface {
	Enqueue(ctx context.Context, id string, payload TaskPayload, opts TaskOptions) error
}

// TaskReader exposes queue task state to the read side. Task returns
// ErrNotFound once a task ages out of the bounded retention window.
type TaskReader interface {
	Task(ctx context.Context, id string) (Task, error)
}

// Fetcher retrieves markup (or any body) from a URL with explicit timeouts.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Cache is a key-value store with per-entry TTL for short-lived task
// results. Get returns ErrNotFound for absent or expired keys.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Record is the durable, merged document for one (userId, url) pair. Each
// analyzer field stays null until its task completes.
type Record struct {
	UserID     string          `json:"userId"`
	URL        string          `json:"url"`
	Title      string          `json:"title"`
	Structural json.RawMessage `json:"structural,omitempty"`
	Content    json.RawMessage `json:"content,omitempty"`
	Technical  json.RawMessage `json:"technical,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// RecordStore persists merged analysis records. UpsertResult must be atomic
// with respect to the existence check: concurrent writers for different
// analyzer types may not clobber each other's fields or duplicate rows.
type RecordStore interface {
	UpsertResult(ctx context.Context, userID, url string, typ AnalyzerType, title string, result json.RawMessage) error
	Get(ctx context.Context, userID, url string) (Record, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces session IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
