// Package remote holds the optional network mirror of the site document: an
// append-only table of full snapshots with a feed of new inserts.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNoSnapshot is returned by FetchLatest when nothing has been inserted.
var ErrNoSnapshot = errors.New("no snapshot")

// Snapshot is one inserted copy of the whole document.
type Snapshot struct {
	ID        string          `json:"id"`
	Origin    string          `json:"origin"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Store is implemented by every remote backend. Rows are never updated or
// deleted.
type Store interface {
	Name() string
	// FetchLatest returns the most recently inserted snapshot.
	FetchLatest(ctx context.Context) (Snapshot, error)
	// InsertSnapshot appends content tagged with the writer's origin.
	InsertSnapshot(ctx context.Context, origin string, content json.RawMessage) (Snapshot, error)
	// SubscribeInserts calls fn for every snapshot inserted by any writer
	// until unsubscribe is called. Feed errors end the subscription and are
	// logged, not retried.
	SubscribeInserts(ctx context.Context, fn func(Snapshot)) (unsubscribe func(), err error)
	Ping(ctx context.Context) error
	Close() error
}

// Noop is the stand-in used when no remote backend is configured.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) FetchLatest(context.Context) (Snapshot, error) {
	return Snapshot{}, ErrNoSnapshot
}

func (Noop) InsertSnapshot(_ context.Context, origin string, content json.RawMessage) (Snapshot, error) {
	return Snapshot{Origin: origin, Content: content, CreatedAt: time.Now().UTC()}, nil
}

func (Noop) SubscribeInserts(context.Context, func(Snapshot)) (func(), error) {
	return func() {}, nil
}

func (Noop) Ping(context.Context) error { return nil }
func (Noop) Close() error               { return nil }
