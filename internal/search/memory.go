package search

import (
	"strings"
	"sync"
)

const defaultLimit = 20

// Memory is the in-process fallback searcher. It matches every query word
// case-insensitively against name, tag, description and highlights.
type Memory struct {
	mu      sync.RWMutex
	records []DestinationRecord
}

// NewMemory returns an empty fallback index.
func NewMemory() *Memory {
	return &Memory{}
}

// Replace swaps the indexed records for records.
func (m *Memory) Replace(records []DestinationRecord) {
	copied := make([]DestinationRecord, len(records))
	copy(copied, records)
	m.mu.Lock()
	m.records = copied
	m.mu.Unlock()
}

// Healthy is always true; the fallback cannot be unreachable.
func (m *Memory) Healthy() bool { return true }

// Search returns matches in list order.
func (m *Memory) Search(q Query) ([]Result, int, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	terms := strings.Fields(strings.ToLower(q.Text))

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := []Result{}
	total := 0
	for _, r := range m.records {
		if q.Tag != "" && !strings.EqualFold(q.Tag, r.Tag) {
			continue
		}
		snippet, ok := match(r, terms)
		if !ok {
			continue
		}
		total++
		if len(results) < limit {
			results = append(results, r.result(snippet))
		}
	}
	return results, total, nil
}

// match reports whether every term occurs somewhere in r, and picks the
// first field that contains the first term as the snippet.
func match(r DestinationRecord, terms []string) (string, bool) {
	fields := append([]string{r.Name, r.Tag, r.Description}, r.Highlights...)
	lowered := make([]string, len(fields))
	for i, f := range fields {
		lowered[i] = strings.ToLower(f)
	}
	if len(terms) == 0 {
		return r.Description, true
	}
	snippet := ""
	for n, term := range terms {
		found := false
		for i, f := range lowered {
			if strings.Contains(f, term) {
				if n == 0 && snippet == "" {
					snippet = fields[i]
				}
				found = true
				break
			}
		}
		if !found {
			return "", false
		}
	}
	return snippet, true
}
