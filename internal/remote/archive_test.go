package remote

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: map[string][]byte{}}
}

func (m *memoryObjects) PutObject(_ context.Context, bucket, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[bucket+"/"+key] = body
	return nil
}

func (m *memoryObjects) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return body, nil
}

func (m *memoryObjects) ListKeys(_ context.Context, bucket, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for full := range m.objects {
		key := strings.TrimPrefix(full, bucket+"/")
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

type sequenceStore struct {
	Noop
	n int
}

func (s *sequenceStore) InsertSnapshot(_ context.Context, origin string, content json.RawMessage) (Snapshot, error) {
	s.n++
	return Snapshot{
		ID:        strings.Repeat("a", s.n),
		Origin:    origin,
		Content:   content,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, s.n, 0, time.UTC),
	}, nil
}

func TestArchiveRoundTrip(t *testing.T) {
	objects := newMemoryObjects()
	archive := NewArchive(&sequenceStore{}, objects, "content")
	ctx := context.Background()

	_, err := archive.InsertSnapshot(ctx, "o1", json.RawMessage(`{"header":{"logoText":"First"}}`))
	require.NoError(t, err)
	_, err = archive.InsertSnapshot(ctx, "o1", json.RawMessage(`{"header":{"logoText":"Second"}}`))
	require.NoError(t, err)

	keys, err := archive.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.True(t, strings.HasSuffix(keys[0], "-aa.json.br"), "newest first, got %v", keys)

	raw, err := archive.Load(ctx, keys[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"header":{"logoText":"Second"}}`, string(raw))
}

func TestArchiveFailureDoesNotFailInsert(t *testing.T) {
	objects := newMemoryObjects()
	objects.putErr = errors.New("bucket offline")
	archive := NewArchive(&sequenceStore{}, objects, "content")

	snapshot, err := archive.InsertSnapshot(context.Background(), "o1", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "a", snapshot.ID)
	assert.Equal(t, "sequence+archive", (&Archive{Store: namedStore{}}).Name())
}

type namedStore struct{ Noop }

func (namedStore) Name() string { return "sequence" }

func TestCompressRoundTrip(t *testing.T) {
	raw := []byte(`{"destinations":[]}`)
	body, err := compress(raw)
	require.NoError(t, err)
	out, err := decompress(body)
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(out))
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var store Store = Noop{}

	_, err := store.FetchLatest(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	snapshot, err := store.InsertSnapshot(ctx, "o", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "o", snapshot.Origin)

	unsubscribe, err := store.SubscribeInserts(ctx, func(Snapshot) { t.Fatal("noop must not deliver") })
	require.NoError(t, err)
	unsubscribe()
	assert.NoError(t, store.Ping(ctx))
	assert.NoError(t, store.Close())
}
