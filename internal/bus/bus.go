// Package bus carries storage-change notifications between instances that
// share one local store, like storage events between tabs of one origin.
package bus

import "context"

// Event reports that Key now holds NewValue. Origin identifies the writer so
// it can skip its own notifications.
type Event struct {
	Key      string `json:"key"`
	NewValue string `json:"newValue"`
	Origin   string `json:"origin"`
}

// Bus fans events out to every subscriber.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe delivers events to fn, in publish order, until the returned
	// unsubscribe func is called.
	Subscribe(ctx context.Context, fn func(Event)) (unsubscribe func(), err error)
	Ping(ctx context.Context) error
	Close() error
}
