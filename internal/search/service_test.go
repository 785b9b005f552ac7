package search

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milesofsmiles/api/internal/content"
)

type fakeIndex struct {
	mu      sync.Mutex
	healthy bool
	gate    chan struct{}
	started chan struct{}
	applied [][]DestinationRecord
	closed  bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{healthy: true, gate: make(chan struct{}), started: make(chan struct{}, 8)}
}

func (f *fakeIndex) Healthy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthy
}

func (f *fakeIndex) Search(Query) ([]Result, int, error) {
	return nil, 0, nil
}

func (f *fakeIndex) ReplaceDestinations(records []DestinationRecord) error {
	f.started <- struct{}{}
	<-f.gate
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, records)
	return nil
}

func (f *fakeIndex) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeIndex) lastName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.applied) == 0 {
		return ""
	}
	last := f.applied[len(f.applied)-1]
	return last[0].Name
}

func named(name string) content.Document {
	doc := content.Defaults()
	doc.Destinations[0].Name = name
	return doc
}

func TestReindexNewestRecordSetWins(t *testing.T) {
	index := newFakeIndex()
	svc := newService(index)
	defer svc.Close()

	svc.Reindex(named("first"))
	<-index.started

	// first is still being written; second is superseded before it starts.
	svc.Reindex(named("second"))
	svc.Reindex(named("third"))
	close(index.gate)

	require.Eventually(t, func() bool { return index.lastName() == "third" }, 2*time.Second, 5*time.Millisecond)
	index.mu.Lock()
	defer index.mu.Unlock()
	require.Len(t, index.applied, 2)
	assert.Equal(t, "first", index.applied[0][0].Name)
}

func TestReindexUpdatesMemorySynchronously(t *testing.T) {
	index := newFakeIndex()
	index.healthy = false
	svc := newService(index)
	defer svc.Close()

	svc.Reindex(named("Lunar Retreat"))
	resp := svc.Search(Query{Text: "lunar"})
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "Lunar Retreat", resp.Results[0].Name)
}

func TestCloseStopsIndexWorker(t *testing.T) {
	index := newFakeIndex()
	close(index.gate)
	svc := newService(index)

	svc.Reindex(named("first"))
	svc.Close()
	svc.Close()

	index.mu.Lock()
	defer index.mu.Unlock()
	assert.True(t, index.closed)
}
