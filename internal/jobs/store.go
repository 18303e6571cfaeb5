// Package jobs holds the in-memory job registry. A single mutex guards every
// read and write; each exported method takes the lock for the duration of the
// access only and never across network or browsing operations.
package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"promowatch/internal/models"
	"promowatch/internal/rules"
)

// Store is the mutable registry of jobs. Every job mutation after Create goes
// through a Store method so snapshots are always taken under the lock.
type Store struct {
	mu      sync.Mutex
	jobs    map[string]*models.Job
	cancels map[string]context.CancelFunc

	maxJobs int
	ttl     time.Duration
}

// NewStore creates a registry bounded by maxJobs entries, with terminal jobs
// retained for ttl.
func NewStore(maxJobs int, ttl time.Duration) *Store {
	return &Store{
		jobs:    make(map[string]*models.Job),
		cancels: make(map[string]context.CancelFunc),
		maxJobs: maxJobs,
		ttl:     ttl,
	}
}

// Create registers a new job with status queued. A missing ID is assigned.
func (s *Store) Create(job *models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = models.StatusQueued
	job.CreatedAt = time.Now()
	if job.TestedURLs == nil {
		job.TestedURLs = make(map[string]struct{})
	}
	s.jobs[job.ID] = job
}

// Snapshot returns the full status view of a job.
func (s *Store) Snapshot(id string) (*models.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Snapshot(), true
}

// Summaries returns up to limit job summaries, newest first.
func (s *Store) Summaries(limit int) []models.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Summary, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SearchURLs returns the raw collected URL list of a job.
func (s *Store) SearchURLs(id string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return append([]string(nil), job.SearchURLs...), true
}

// MarkCancelled flips the job's cancellation flag and cancels its execution
// context if one is bound. The scheduler performs the terminal transition at
// its next checkpoint; already-terminal jobs are left untouched.
func (s *Store) MarkCancelled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	if job.Status == models.StatusDone || job.Status == models.StatusStopped {
		return true
	}
	job.Cancelled = true
	if cancel, ok := s.cancels[id]; ok {
		cancel()
	}
	return true
}

// IsCancelled reports the job's cancellation flag.
func (s *Store) IsCancelled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	return ok && job.Cancelled
}

// BindCancel attaches the cancel function of the job's execution context so a
// stop request interrupts waits mid-flight. Unbind with a nil check via
// UnbindCancel when the job leaves the scheduler.
func (s *Store) BindCancel(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		s.cancels[id] = cancel
		// A stop that raced job start still cancels the fresh context.
		if job.Cancelled {
			cancel()
		}
	}
}

// UnbindCancel drops the job's cancel function.
func (s *Store) UnbindCancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, id)
}

// Prune removes terminal jobs older than the TTL, then — if the registry
// still exceeds its capacity — evicts the oldest entries by creation time.
// Queued and running jobs are never pruned.
func (s *Store) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()

	for id, job := range s.jobs {
		if job.FinishedAt != nil && now.Sub(*job.FinishedAt) > s.ttl {
			delete(s.jobs, id)
			delete(s.cancels, id)
		}
	}

	if s.maxJobs <= 0 || len(s.jobs) <= s.maxJobs {
		return
	}
	var evictable []*models.Job
	for _, job := range s.jobs {
		if job.Status == models.StatusQueued || job.Status == models.StatusRunning {
			continue
		}
		evictable = append(evictable, job)
	}
	sort.Slice(evictable, func(i, j int) bool {
		return evictable[i].CreatedAt.Before(evictable[j].CreatedAt)
	})
	excess := len(s.jobs) - s.maxJobs
	for i := 0; i < excess && i < len(evictable); i++ {
		delete(s.jobs, evictable[i].ID)
		delete(s.cancels, evictable[i].ID)
	}
}

// Len returns the number of registered jobs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Plan is the scheduler's copy of the fields it needs to execute a job.
type Plan struct {
	AutoSearch          bool
	SearchOnly          bool
	SearchQuery         string
	SearchMaxPages      int
	SellerFilter        string
	SellerFilterApplied bool
	Settings            models.SearchSettings
	Rules               rules.Set
	URLs                []string
	Cancelled           bool
}

// Plan snapshots the execution fields of a job.
func (s *Store) Plan(id string) (Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Plan{}, false
	}
	return Plan{
		AutoSearch:          job.AutoSearch,
		SearchOnly:          job.SearchOnly,
		SearchQuery:         job.SearchQuery,
		SearchMaxPages:      job.SearchMaxPages,
		SellerFilter:        job.SellerFilter,
		SellerFilterApplied: job.SellerFilterApplied,
		Settings:            job.SearchSettings,
		Rules:               job.Rules,
		URLs:                append([]string(nil), job.URLs...),
		Cancelled:           job.Cancelled,
	}, true
}

// Begin moves a queued job to running and stamps its start time.
func (s *Store) Begin(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	job.Status = models.StatusRunning
	now := time.Now()
	job.StartedAt = &now
	return true
}

// SetPhase records a phase change and resets the phase-scoped counters.
func (s *Store) SetPhase(id string, phase models.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.Phase = phase
	job.PhaseCount = 0
	now := time.Now()
	job.PhaseStartedAt = &now
	switch phase {
	case models.PhaseSearch:
		job.SearchETASec = nil
	case models.PhaseSeller:
		job.SellerChecked = 0
		job.SellerTotal = 0
		job.SellerKept = 0
	}
}

// SetCollected records the URL list gathered so far during collection.
func (s *Store) SetCollected(id string, urls []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.PendingURLs = urls
	job.CollectedCount = len(urls)
	job.Total = len(urls)
	job.PhaseCount = len(urls)
}

// SetSearchRaw records the full collected list before seller narrowing.
func (s *Store) SetSearchRaw(id string, urls []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.SearchURLs = urls
	job.SearchTotal = len(urls)
}

// SetSellerProgress records the seller-phase counters.
func (s *Store) SetSellerProgress(id string, checked, total, kept int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.SellerChecked = checked
	job.SellerTotal = total
	job.SellerKept = kept
	job.PhaseCount = kept
}

// SetSearchETA records the estimated remaining search-phase duration.
func (s *Store) SetSearchETA(id string, sec float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.SearchETASec = &sec
	}
}

// FinishSearch fixes the job's URL list after the collection phases.
func (s *Store) FinishSearch(id string, urls []string, sellerFiltered bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.URLs = urls
	job.Total = len(urls)
	job.PendingURLs = append([]string(nil), urls...)
	job.CollectedCount = len(urls)
	job.SearchDone = true
	job.SellerFilterApplied = sellerFiltered
	if len(job.SearchURLs) == 0 {
		job.SearchURLs = append([]string(nil), urls...)
		job.SearchTotal = len(urls)
	}
	if sellerFiltered {
		job.SellerKept = len(urls)
	}
}

// SetCurrentURL records the URL being tested right now.
func (s *Store) SetCurrentURL(id, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.CurrentURL = url
	}
}

// AlreadyTested reports whether the URL was visited in an earlier run of the
// testing phase; if so it is also dropped from the pending list.
func (s *Store) AlreadyTested(id, url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	if _, tested := job.TestedURLs[url]; !tested {
		return false
	}
	removePending(job, url)
	return true
}

// AppendResult appends a classified result and advances progress. The URL is
// marked tested so re-entering the testing phase never re-visits it.
func (s *Store) AppendResult(id string, res models.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.Results = append(job.Results, res)
	job.Done++
	job.TestedURLs[res.URL] = struct{}{}
	removePending(job, res.URL)
}

// SkipURL advances progress past a URL without appending a result (seller
// mismatch discovered during the testing phase). The URL still counts as
// tested.
func (s *Store) SkipURL(id, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.Done++
	job.TestedURLs[url] = struct{}{}
	removePending(job, url)
}

// Complete moves a job to done, unless a cancellation already stopped it.
// Returns the history record to persist, or nil.
func (s *Store) Complete(id string) *models.HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status == models.StatusStopped {
		return nil
	}
	if job.SearchOnly {
		job.Done = job.Total
	}
	job.Status = models.StatusDone
	job.Phase = models.PhaseNone
	job.CurrentURL = ""
	if job.FinishedAt == nil {
		now := time.Now()
		job.FinishedAt = &now
	}
	return job.HistoryRecord()
}

// Stop moves a job to stopped, optionally recording a fatal error. Returns
// the history record to persist, or nil for an unknown job.
func (s *Store) Stop(id, errMsg string) *models.HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	job.Status = models.StatusStopped
	job.Phase = models.PhaseNone
	job.CurrentURL = ""
	if errMsg != "" {
		job.Error = errMsg
	}
	if job.FinishedAt == nil {
		now := time.Now()
		job.FinishedAt = &now
	}
	return job.HistoryRecord()
}

func removePending(job *models.Job, url string) {
	for i, u := range job.PendingURLs {
		if u == url {
			job.PendingURLs = append(job.PendingURLs[:i], job.PendingURLs[i+1:]...)
			return
		}
	}
}
