package bus

import (
	"context"
	"sync"
)

const localBuffer = 256

// Local is an in-process Bus for a single process or tests.
type Local struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewLocal() *Local {
	return &Local{subs: make(map[int]chan Event)}
}

func (b *Local) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *Local) Subscribe(_ context.Context, fn func(Event)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}, nil
	}
	id := b.nextID
	b.nextID++
	ch := make(chan Event, localBuffer)
	b.subs[id] = ch

	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range ch {
			fn(event)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
			b.mu.Unlock()
			<-done
		})
	}, nil
}

func (b *Local) Ping(context.Context) error {
	return nil
}

func (b *Local) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	b.closed = true
	return nil
}
