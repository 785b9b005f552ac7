package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milesofsmiles/api/internal/content"
)

func TestRecordsUsePositionAsID(t *testing.T) {
	records := Records(content.Defaults())
	require.Len(t, records, 8)
	assert.Equal(t, "0", records[0].ID)
	assert.Equal(t, 7, records[7].Index)
	assert.Equal(t, "Magical Kerala", records[0].Name)
}

func TestMemorySearchIsCaseInsensitive(t *testing.T) {
	m := NewMemory()
	m.Replace(Records(content.Defaults()))

	results, total, err := m.Search(Query{Text: "KERALA"})
	require.NoError(t, err)
	require.NotZero(t, total)
	assert.Equal(t, "Magical Kerala", results[0].Name)
	assert.Equal(t, 0, results[0].Index)
}

func TestMemorySearchRequiresEveryTerm(t *testing.T) {
	m := NewMemory()
	m.Replace([]DestinationRecord{
		{ID: "0", Index: 0, Name: "Goa", Description: "Beaches and forts"},
		{ID: "1", Index: 1, Name: "Ladakh", Description: "Mountains", Highlights: []string{"Pangong lake"}},
	})

	results, total, _ := m.Search(Query{Text: "pangong mountains"})
	assert.Equal(t, 1, total)
	assert.Equal(t, "Ladakh", results[0].Name)

	_, total, _ = m.Search(Query{Text: "goa mountains"})
	assert.Zero(t, total)
}

func TestMemorySearchTagAndLimit(t *testing.T) {
	m := NewMemory()
	m.Replace([]DestinationRecord{
		{Index: 0, Name: "A", Tag: "Popular"},
		{Index: 1, Name: "B", Tag: "popular"},
		{Index: 2, Name: "C", Tag: "Luxury"},
	})

	results, total, _ := m.Search(Query{Tag: "Popular", Limit: 1})
	assert.Equal(t, 2, total)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].Name)
}

func TestServiceFallsBackToMemory(t *testing.T) {
	s := NewService(nil)
	defer s.Close()

	resp := s.Search(Query{Text: "kerala"})
	assert.Empty(t, resp.Results)
	assert.NotNil(t, resp.Results)

	doc := content.Defaults()
	doc.Destinations = doc.Destinations[:1]
	s.Reindex(doc)

	resp = s.Search(Query{Text: "kerala"})
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "kerala", resp.Query)
}
