package search

import (
	"strconv"

	"milesofsmiles/api/internal/content"
)

// Result is a single destination hit returned to the caller.
type Result struct {
	Index    int     `json:"index"`
	Name     string  `json:"name"`
	Tag      string  `json:"tag,omitempty"`
	Duration string  `json:"duration"`
	Rating   float64 `json:"rating"`
	Snippet  string  `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text  string
	Tag   string // empty = any tag
	Limit int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over destinations.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// DestinationRecord is the data we index for one destination. Destinations
// have no identity of their own, so the record id is the list position.
type DestinationRecord struct {
	ID          string   `json:"id"`
	Index       int      `json:"index"`
	Name        string   `json:"name"`
	Tag         string   `json:"tag"`
	Duration    string   `json:"duration"`
	Rating      float64  `json:"rating"`
	Description string   `json:"description"`
	Highlights  []string `json:"highlights"`
}

// Records flattens the destinations of doc into index records.
func Records(doc content.Document) []DestinationRecord {
	out := make([]DestinationRecord, 0, len(doc.Destinations))
	for i, d := range doc.Destinations {
		out = append(out, DestinationRecord{
			ID:          strconv.Itoa(i),
			Index:       i,
			Name:        d.Name,
			Tag:         d.Tag,
			Duration:    d.Duration,
			Rating:      d.Rating,
			Description: d.Description,
			Highlights:  append([]string(nil), d.Highlights...),
		})
	}
	return out
}

func (r DestinationRecord) result(snippet string) Result {
	return Result{
		Index:    r.Index,
		Name:     r.Name,
		Tag:      r.Tag,
		Duration: r.Duration,
		Rating:   r.Rating,
		Snippet:  snippet,
	}
}
