package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"promowatch/internal/collector"
	"promowatch/internal/config"
	"promowatch/internal/jobs"
	"promowatch/internal/models"
	"promowatch/internal/worker"
)

// idleSession satisfies the session contract for handlers that never browse.
type idleSession struct{}

func (idleSession) Open(context.Context, string) bool          { return false }
func (idleSession) Links() []string                            { return nil }
func (idleSession) ScrollBottom()                              {}
func (idleSession) Seller() string                             { return "" }
func (idleSession) CheckCurrent(u string) models.CheckResult   { return models.CheckResult{URL: u} }
func (idleSession) Close()                                     {}

func newTestEnv(t *testing.T) (*jobs.Store, *JobHandler) {
	t.Helper()
	store := jobs.NewStore(50, time.Hour)
	// The worker is never started: submitted ids just sit in the queue, so
	// handler tests observe jobs exactly as created.
	w := worker.New(store, nil, func(bool) (collector.Session, error) { return idleSession{}, nil }, config.Config{})
	return store, NewJobHandler(store, w)
}

func doJSON(t *testing.T, handler echo.HandlerFunc, method, target, body string, params ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("bad response %q: %v", rec.Body.String(), err)
	}
	return rec, payload
}

func TestCreateBatch(t *testing.T) {
	store, h := newTestEnv(t)

	body := `{"urls":"https://www.ozon.ru/product/a-1\n\nhttps://www.ozon.ru/product/b-2\nhttps://www.ozon.ru/product/a-1",` +
		`"rules":{"ok_conditions":["подарок"]}}`
	rec, payload := doJSON(t, h.CreateBatch, http.MethodPost, "/batch", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if payload["ok"] != true || payload["total"] != float64(2) {
		t.Fatalf("payload = %v, want ok with 2 deduplicated urls", payload)
	}

	id := payload["job_id"].(string)
	snap, ok := store.Snapshot(id)
	if !ok {
		t.Fatal("job not registered")
	}
	if snap.Status != models.StatusQueued {
		t.Errorf("status = %q, want queued", snap.Status)
	}
	if !snap.SearchDone || snap.SearchTotal != 2 || len(snap.PendingURLs) != 2 {
		t.Errorf("snapshot = %+v, want a pre-collected url list", snap)
	}
}

func TestCreateBatchRejectsEmptyAndForeign(t *testing.T) {
	_, h := newTestEnv(t)

	rec, payload := doJSON(t, h.CreateBatch, http.MethodPost, "/batch", `{"urls":"  \n \n"}`)
	if rec.Code != http.StatusBadRequest || payload["error"] != "Список ссылок пуст." {
		t.Errorf("empty list: code %d payload %v", rec.Code, payload)
	}

	rec, payload = doJSON(t, h.CreateBatch, http.MethodPost, "/batch",
		`{"urls":"https://www.ozon.ru/product/a-1\nhttps://example.com/x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("foreign url accepted: %d", rec.Code)
	}
	invalid, _ := payload["invalid"].([]any)
	if len(invalid) != 1 || invalid[0] != "https://example.com/x" {
		t.Errorf("invalid = %v, want the foreign url listed", payload["invalid"])
	}
}

func TestCreateAutoBatch(t *testing.T) {
	store, h := newTestEnv(t)

	body := `{"search":" tecno spark ","seller":"ozon","max_pages":3,` +
		`"search_settings":{"scrolls":4,"fresh_profile":true}}`
	rec, payload := doJSON(t, h.CreateAutoBatch, http.MethodPost, "/auto-batch", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if payload["total"] != float64(0) {
		t.Errorf("total = %v, want 0 before collection", payload["total"])
	}

	plan, ok := store.Plan(payload["job_id"].(string))
	if !ok {
		t.Fatal("job not registered")
	}
	if !plan.AutoSearch || plan.SearchOnly {
		t.Errorf("plan = %+v, want auto-search without search-only", plan)
	}
	if plan.SearchQuery != "tecno spark" || plan.SellerFilter != "ozon" || plan.SearchMaxPages != 3 {
		t.Errorf("plan = %+v, trimmed query/seller and max pages expected", plan)
	}
	if plan.Settings.Scrolls == nil || *plan.Settings.Scrolls != 4 || !plan.Settings.FreshProfile {
		t.Errorf("settings = %+v, want overrides carried through", plan.Settings)
	}
}

func TestCreateSearchOnlyRequiresQuery(t *testing.T) {
	_, h := newTestEnv(t)
	rec, payload := doJSON(t, h.CreateSearchOnly, http.MethodPost, "/search-only", `{"search":"  "}`)
	if rec.Code != http.StatusBadRequest || payload["error"] != "Поиск не указан." {
		t.Errorf("code %d payload %v", rec.Code, payload)
	}
}

func TestStatusAndListAndStop(t *testing.T) {
	store, h := newTestEnv(t)

	job := &models.Job{URLs: []string{"https://www.ozon.ru/product/a-1"}}
	store.Create(job)

	rec, payload := doJSON(t, h.Status, http.MethodGet, "/jobs/"+job.ID, "", "id", job.ID)
	if rec.Code != http.StatusOK || payload["ok"] != true || payload["id"] != job.ID {
		t.Errorf("status: code %d payload %v", rec.Code, payload)
	}
	if _, present := payload["results"]; !present {
		t.Error("snapshot payload lacks results")
	}

	rec, payload = doJSON(t, h.Status, http.MethodGet, "/jobs/nope", "", "id", "nope")
	if rec.Code != http.StatusNotFound || payload["error"] != "Задача не найдена." {
		t.Errorf("missing job: code %d payload %v", rec.Code, payload)
	}

	rec, payload = doJSON(t, h.List, http.MethodGet, "/jobs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if list, _ := payload["jobs"].([]any); len(list) != 1 {
		t.Errorf("jobs = %v, want one entry", payload["jobs"])
	}

	rec, _ = doJSON(t, h.Stop, http.MethodPost, "/jobs/"+job.ID+"/stop", "", "id", job.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}
	if !store.IsCancelled(job.ID) {
		t.Error("stop did not set the cancellation flag")
	}
	snap, _ := store.Snapshot(job.ID)
	if snap.Status != models.StatusQueued {
		t.Errorf("status = %q, stop must not perform the terminal transition", snap.Status)
	}
}

func TestSplitURLLines(t *testing.T) {
	// Windows line endings trim away, and repeats collapse to the first
	// occurrence.
	got := splitURLLines(" a \n\nb\r\na\n")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("got %v, want [a b]", got)
	}
}
