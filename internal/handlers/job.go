package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"promowatch/internal/jobs"
	"promowatch/internal/models"
	"promowatch/internal/ozon"
	"promowatch/internal/rules"
	"promowatch/internal/worker"
)

// JobHandler serves job creation, listing, status and stop.
type JobHandler struct {
	store  *jobs.Store
	worker *worker.Worker
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(store *jobs.Store, w *worker.Worker) *JobHandler {
	return &JobHandler{store: store, worker: w}
}

type batchRequest struct {
	URLs  string            `json:"urls"`
	Rules rules.Set         `json:"rules"`
	Meta  map[string]string `json:"meta"`
}

type searchRequest struct {
	Search         string                `json:"search"`
	Seller         string                `json:"seller"`
	MaxPages       int                   `json:"max_pages"`
	Rules          rules.Set             `json:"rules"`
	Meta           map[string]string     `json:"meta"`
	SearchSettings models.SearchSettings `json:"search_settings"`
}

// CreateBatch enqueues a job over an explicit URL list, one URL per line.
func (h *JobHandler) CreateBatch(c echo.Context) error {
	var req batchRequest
	_ = c.Bind(&req)

	urls := splitURLLines(req.URLs)
	if len(urls) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "error": "Список ссылок пуст."})
	}
	var invalid []string
	for _, u := range urls {
		if !ozon.IsProductURL(u) {
			invalid = append(invalid, u)
		}
	}
	if len(invalid) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"ok":      false,
			"error":   "В списке есть ссылки не на карточку Ozon.",
			"invalid": invalid,
		})
	}

	h.store.Prune()
	job := &models.Job{
		URLs:           urls,
		PendingURLs:    append([]string(nil), urls...),
		Total:          len(urls),
		CollectedCount: len(urls),
		SearchDone:     true,
		SearchURLs:     append([]string(nil), urls...),
		SearchTotal:    len(urls),
		SellerKept:     len(urls),
		Rules:          req.Rules,
		Meta:           req.Meta,
	}
	h.store.Create(job)
	return h.submit(c, job, len(urls))
}

// CreateAutoBatch enqueues a search-then-test job.
func (h *JobHandler) CreateAutoBatch(c echo.Context) error {
	return h.createSearchJob(c, false)
}

// CreateSearchOnly enqueues a collection-only job: the search phases run and
// the URL list is fixed, but no page is classified.
func (h *JobHandler) CreateSearchOnly(c echo.Context) error {
	return h.createSearchJob(c, true)
}

func (h *JobHandler) createSearchJob(c echo.Context, searchOnly bool) error {
	var req searchRequest
	_ = c.Bind(&req)

	query := strings.TrimSpace(req.Search)
	if query == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "error": "Поиск не указан."})
	}

	h.store.Prune()
	job := &models.Job{
		AutoSearch:     true,
		SearchOnly:     searchOnly,
		SearchQuery:    query,
		SearchMaxPages: req.MaxPages,
		SellerFilter:   strings.TrimSpace(req.Seller),
		SearchSettings: req.SearchSettings,
		Meta:           req.Meta,
	}
	if !searchOnly {
		job.Rules = req.Rules
	}
	h.store.Create(job)
	return h.submit(c, job, 0)
}

func (h *JobHandler) submit(c echo.Context, job *models.Job, total int) error {
	if err := h.worker.Submit(job.ID); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"ok": false, "error": "Очередь задач переполнена."})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "job_id": job.ID, "total": total})
}

// List returns the 20 most recent jobs.
func (h *JobHandler) List(c echo.Context) error {
	h.store.Prune()
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "jobs": h.store.Summaries(20)})
}

type statusResponse struct {
	OK bool `json:"ok"`
	*models.Snapshot
}

// Status returns the full snapshot of one job.
func (h *JobHandler) Status(c echo.Context) error {
	h.store.Prune()
	snap, ok := h.store.Snapshot(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"ok": false, "error": "Задача не найдена."})
	}
	return c.JSON(http.StatusOK, statusResponse{OK: true, Snapshot: snap})
}

// Stop requests cancellation. The scheduler observes the flag at its next
// checkpoint and performs the terminal transition.
func (h *JobHandler) Stop(c echo.Context) error {
	h.store.Prune()
	if !h.store.MarkCancelled(c.Param("id")) {
		return c.JSON(http.StatusNotFound, echo.Map{"ok": false, "error": "Задача не найдена."})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// splitURLLines parses a line-separated URL list, dropping blanks and exact
// duplicates while preserving order.
func splitURLLines(raw string) []string {
	var urls []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(raw, "\n") {
		candidate := strings.TrimSpace(line)
		if candidate == "" {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		urls = append(urls, candidate)
	}
	return urls
}
