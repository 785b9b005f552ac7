package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	log "github.com/sirupsen/logrus"
)

const idxDestinations = "mos_destinations"

var errUnhealthy = errors.New("meilisearch unhealthy")

// Meili implements Searcher over a single destinations index.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}

	mu      sync.Mutex
	indexed int
}

// NewMeili creates a Meilisearch client and configures the index.
// The client is returned even when the server is down; Healthy reports it.
func NewMeili(url, apiKey string) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		log.WithError(err).WithField("url", url).Warn("search: meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxDestinations,
		PrimaryKey: "id",
	}); err != nil {
		log.WithError(err).Debugf("search: create index %s (may already exist)", idxDestinations)
	}

	index := m.client.Index(idxDestinations)
	filterable := []interface{}{"tag"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.WithError(err).Warn("search: update filterable attributes")
	}
	searchable := []string{"name", "tag", "description", "highlights"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.WithError(err).Warn("search: update searchable attributes")
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Info("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search runs q against the destinations index.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, errUnhealthy
	}

	limit := int64(q.Limit)
	if limit <= 0 {
		limit = defaultLimit
	}
	sr := &meili.SearchRequest{
		IndexUID:              idxDestinations,
		Query:                 q.Text,
		Limit:                 limit,
		AttributesToHighlight: []string{"description"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	}
	if q.Tag != "" {
		sr.Filter = fmt.Sprintf("tag = %q", q.Tag)
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{sr},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := []Result{}
	total := 0
	for _, r := range resp.Results {
		total += int(r.EstimatedTotalHits)
		for _, hit := range r.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

func hitToResult(hit meili.Hit) Result {
	r := Result{
		Name:     decodeString(hit, "name"),
		Tag:      decodeString(hit, "tag"),
		Duration: decodeString(hit, "duration"),
		Snippet:  firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description")),
	}
	if raw, ok := hit["index"]; ok {
		_ = json.Unmarshal(raw, &r.Index)
	}
	if raw, ok := hit["rating"]; ok {
		_ = json.Unmarshal(raw, &r.Rating)
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	s, _ := formatted[key].(string)
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// ReplaceDestinations upserts records and deletes positions that no longer
// exist since the previous call.
func (m *Meili) ReplaceDestinations(records []DestinationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	index := m.client.Index(idxDestinations)
	if len(records) > 0 {
		if _, err := index.AddDocuments(records, nil); err != nil {
			return err
		}
	}
	for i := len(records); i < m.indexed; i++ {
		if _, err := index.DeleteDocument(strconv.Itoa(i), nil); err != nil {
			return err
		}
	}
	m.indexed = len(records)
	return nil
}
