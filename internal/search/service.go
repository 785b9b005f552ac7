package search

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"milesofsmiles/api/internal/content"
)

// destinationIndex is the slice of Meili the service drives.
type destinationIndex interface {
	Healthy() bool
	Search(q Query) ([]Result, int, error)
	ReplaceDestinations(records []DestinationRecord) error
	Close()
}

// Service is the facade that tries Meilisearch first and falls back to the
// in-memory index.
type Service struct {
	meili  destinationIndex
	memory *Memory

	// pending holds at most the newest record set not yet sent to Meili.
	queueMu   sync.Mutex
	pending   chan []DestinationRecord
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili) *Service {
	// A nil *Meili must not become a non-nil interface.
	if meili == nil {
		return newService(nil)
	}
	return newService(meili)
}

func newService(index destinationIndex) *Service {
	s := &Service{
		meili:   index,
		memory:  NewMemory(),
		pending: make(chan []DestinationRecord, 1),
		done:    make(chan struct{}),
	}
	if index != nil {
		s.wg.Add(1)
		go s.indexLoop()
	}
	return s
}

// Search tries Meilisearch if healthy, otherwise the in-memory index.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.WithError(err).Warn("search: meilisearch error, falling back to memory")
	}

	results, total, _ := s.memory.Search(q)
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// Reindex refreshes both indexes from doc. The memory index is updated
// synchronously. Meilisearch is updated in the background and only ever
// receives the newest record set; older queued sets are replaced.
func (s *Service) Reindex(doc content.Document) {
	records := Records(doc)
	s.memory.Replace(records)
	if s.meili == nil {
		return
	}
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	select {
	case <-s.pending:
	default:
	}
	s.pending <- records
}

func (s *Service) indexLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case records := <-s.pending:
			if !s.meili.Healthy() {
				// The memory index serves queries; the next change after
				// recovery brings Meili up to date.
				continue
			}
			if err := s.meili.ReplaceDestinations(records); err != nil {
				log.WithError(err).Warn("search: reindex destinations")
			}
		}
	}
}

// Close stops the indexing worker and the Meilisearch health monitor.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		if s.meili != nil {
			s.meili.Close()
		}
	})
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
