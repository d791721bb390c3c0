package projects

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store holds the current project snapshot. Readers never observe a partially
// replaced snapshot, and every read returns a deep copy.
type Store struct {
	snapshot atomic.Pointer[map[string]ProjectRecord]
	running  atomic.Bool

	mu     sync.RWMutex
	status CrawlStatus
}

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{}
	empty := map[string]ProjectRecord{}
	s.snapshot.Store(&empty)
	return s
}

// Replace swaps in a new snapshot wholesale.
func (s *Store) Replace(projects map[string]ProjectRecord) {
	next := cloneProjects(projects)
	s.snapshot.Store(&next)
}

// List returns a copy of the whole snapshot.
func (s *Store) List() map[string]ProjectRecord {
	return cloneProjects(*s.snapshot.Load())
}

// Get returns a copy of one record.
func (s *Store) Get(id string) (ProjectRecord, bool) {
	record, ok := (*s.snapshot.Load())[id]
	if !ok {
		return ProjectRecord{}, false
	}
	return record.Clone(), true
}

// Len reports the number of records in the snapshot.
func (s *Store) Len() int {
	return len(*s.snapshot.Load())
}

// TryBegin marks a crawl as running. It returns false when one already is.
func (s *Store) TryBegin() bool {
	return s.running.CompareAndSwap(false, true)
}

// End clears the running flag set by TryBegin.
func (s *Store) End() {
	s.running.Store(false)
}

// RecordSuccess stores the report of a successful crawl.
func (s *Store) RecordSuccess(report CrawlReport, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := report
	s.status.LastReport = &copied
	s.status.LastCrawlID = report.CrawlID
	s.status.LastSuccessAt = at
	s.status.LastError = ""
}

// RecordFailure stores the reason of a failed crawl.
func (s *Store) RecordFailure(crawlID string, err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastCrawlID = crawlID
	s.status.LastFailureAt = at
	if err != nil {
		s.status.LastError = err.Error()
	}
}

// Status returns the crawl bookkeeping.
func (s *Store) Status() CrawlStatus {
	s.mu.RLock()
	status := s.status
	s.mu.RUnlock()
	if status.LastReport != nil {
		report := *status.LastReport
		status.LastReport = &report
	}
	status.InProgress = s.running.Load()
	status.ProjectCount = s.Len()
	return status
}
