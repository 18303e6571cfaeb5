package models

import (
	"time"

	"promowatch/internal/rules"
)

// Status is a job's lifecycle state. Transitions are monotonic except that a
// running job may be stopped by cancellation.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusStopped Status = "stopped"
)

// Phase is the sub-state of a running job.
type Phase string

const (
	PhaseNone    Phase = ""
	PhaseSearch  Phase = "search"
	PhaseSeller  Phase = "seller"
	PhaseTesting Phase = "testing"
)

// CheckResult is what the page inspector reports for one product URL. It is
// immutable once created.
type CheckResult struct {
	URL        string `json:"url"`
	OK         bool   `json:"ok"`
	HasLabel   bool   `json:"has_label"`
	SellerOK   *bool  `json:"seller_ok"`
	SellerName string `json:"seller_name,omitempty"`
	LabelText  string `json:"label_text"`
	Error      string `json:"error,omitempty"`
}

// Result is a CheckResult after classification. Appended to a job's results
// and never mutated or reordered afterwards.
type Result struct {
	CheckResult
	Verdict       rules.Verdict `json:"verdict"`
	VerdictReason string        `json:"verdict_reason"`
	Debug         *rules.Trace  `json:"debug,omitempty"`
}

// SearchSettings are per-job overrides for the search collector. Nil fields
// fall back to the configured defaults.
type SearchSettings struct {
	Scrolls        *int     `json:"scrolls"`
	LoadWaitSec    *float64 `json:"load_wait_sec"`
	ScrollWaitSec  *float64 `json:"scroll_wait_sec"`
	StableHits     *int     `json:"stable_hits"`
	StablePauseSec *float64 `json:"stable_pause_sec"`
	FreshProfile   bool     `json:"fresh_profile"`
}

// Job is one unit of orchestration. The scheduler owns it while processing;
// everyone else reads and mutates it only through the store's lock.
type Job struct {
	ID     string
	Status Status
	Phase  Phase

	AutoSearch bool
	SearchOnly bool

	SearchQuery    string
	SearchMaxPages int
	SellerFilter   string
	SearchSettings SearchSettings
	Rules          rules.Set
	Meta           map[string]string

	URLs        []string
	PendingURLs []string
	TestedURLs  map[string]struct{}
	Results     []Result

	Total          int
	Done           int
	CurrentURL     string
	CollectedCount int

	SearchDone          bool
	SellerFilterApplied bool
	SearchURLs          []string
	SearchTotal         int
	SellerChecked       int
	SellerTotal         int
	SellerKept          int
	SearchETASec        *float64
	PhaseCount          int

	CreatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
	PhaseStartedAt *time.Time

	Cancelled bool
	Error     string
}

// Summary is the job-list view.
type Summary struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Total     int       `json:"total"`
	Done      int       `json:"done"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is the full job status view served to the HTTP layer.
type Snapshot struct {
	ID             string     `json:"id"`
	Status         Status     `json:"status"`
	Phase          Phase      `json:"phase"`
	Total          int        `json:"total"`
	Done           int        `json:"done"`
	CurrentURL     string     `json:"current_url,omitempty"`
	PendingURLs    []string   `json:"pending_urls"`
	CollectedCount int        `json:"collected_count"`
	SearchDone     bool       `json:"search_done"`
	SearchOnly     bool       `json:"search_only"`
	SearchTotal    int        `json:"search_total"`
	SellerChecked  int        `json:"seller_checked"`
	SellerTotal    int        `json:"seller_total"`
	SellerKept     int        `json:"seller_kept"`
	SearchETASec   *float64   `json:"search_eta_sec"`
	PhaseCount     int        `json:"phase_count"`
	StartedAt      *time.Time `json:"started_at"`
	PhaseStartedAt *time.Time `json:"phase_started_at"`
	Error          string     `json:"error,omitempty"`
	Results        []Result   `json:"results"`
}

// HistoryRecord is the terminal-job snapshot written to the history sink.
type HistoryRecord struct {
	ID         string     `json:"id"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Total      int        `json:"total"`
	Results    []Result   `json:"results"`
}

// Snapshot builds the status view from the job. Callers must hold the store
// lock; slices are copied so the snapshot is safe to use after release.
func (j *Job) Snapshot() *Snapshot {
	return &Snapshot{
		ID:             j.ID,
		Status:         j.Status,
		Phase:          j.Phase,
		Total:          j.Total,
		Done:           j.Done,
		CurrentURL:     j.CurrentURL,
		PendingURLs:    append([]string(nil), j.PendingURLs...),
		CollectedCount: j.CollectedCount,
		SearchDone:     j.SearchDone,
		SearchOnly:     j.SearchOnly,
		SearchTotal:    j.SearchTotal,
		SellerChecked:  j.SellerChecked,
		SellerTotal:    j.SellerTotal,
		SellerKept:     j.SellerKept,
		SearchETASec:   j.SearchETASec,
		PhaseCount:     j.PhaseCount,
		StartedAt:      j.StartedAt,
		PhaseStartedAt: j.PhaseStartedAt,
		Error:          j.Error,
		Results:        append([]Result(nil), j.Results...),
	}
}

// HistoryRecord builds the terminal snapshot for the history sink. Callers
// must hold the store lock.
func (j *Job) HistoryRecord() *HistoryRecord {
	return &HistoryRecord{
		ID:         j.ID,
		Status:     j.Status,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
		Total:      j.Total,
		Results:    append([]Result(nil), j.Results...),
	}
}

// Summary builds the job-list view. Callers must hold the store lock.
func (j *Job) Summary() Summary {
	return Summary{
		ID:        j.ID,
		Status:    j.Status,
		Total:     j.Total,
		Done:      j.Done,
		CreatedAt: j.CreatedAt,
	}
}
