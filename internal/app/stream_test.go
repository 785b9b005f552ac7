package app

import (
	"context"
	"sync"
	"testing"

	"milesofsmiles/api/internal/content"
)

func TestBroadcastSurvivesViewersLeaving(t *testing.T) {
	stream := NewStream("*")
	doc := content.Defaults()

	for round := 0; round < 20; round++ {
		clients := make([]*streamClient, 128)
		for i := range clients {
			clients[i] = &streamClient{send: make(chan []byte, 1)}
			stream.clients.Add(clients[i])
		}

		var wg sync.WaitGroup
		panics := make(chan any, 1)
		for _, c := range clients {
			wg.Add(1)
			go func(c *streamClient) {
				defer wg.Done()
				stream.clients.Remove(c)
				c.close()
			}(c)
		}
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						select {
						case panics <- r:
						default:
						}
					}
				}()
				stream.Broadcast(doc)
			}()
		}
		wg.Wait()

		select {
		case r := <-panics:
			t.Fatalf("round %d: broadcast panicked: %v", round, r)
		default:
		}
		if stream.Len() != 0 {
			t.Fatalf("round %d: expected no viewers left, got %d", round, stream.Len())
		}
	}
}

func TestBroadcastDropsSlowViewer(t *testing.T) {
	stream := NewStream("*")
	slow := &streamClient{send: make(chan []byte, 1)}
	stream.clients.Add(slow)

	stream.Broadcast(content.Defaults())
	if stream.Len() != 1 {
		t.Fatalf("expected viewer to stay after first message, got %d", stream.Len())
	}
	stream.Broadcast(content.Defaults())
	if stream.Len() != 0 {
		t.Fatalf("expected slow viewer to be dropped, got %d", stream.Len())
	}
	if !slow.trySend([]byte("late")) {
		t.Fatal("send to a closed viewer should be ignored")
	}
}

func TestWatchersRunOutsideDocumentLock(t *testing.T) {
	svc := New(testConfig(), newFakeLocal(), nil, nil, nil)
	defer svc.Close()

	seen := make(chan int, 1)
	unwatch := svc.Watch(func(content.Document) {
		// Reading content from a watcher must not deadlock.
		seen <- len(svc.Content().Destinations)
	})
	defer unwatch()

	if _, err := svc.UpdateContent(context.Background(), content.AddDestination()); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := <-seen; got != 9 {
		t.Fatalf("expected 9 destinations, got %d", got)
	}
}
