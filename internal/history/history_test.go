package history

import (
	"path/filepath"
	"testing"
	"time"

	"promowatch/internal/models"
	"promowatch/internal/rules"
)

func openTestSink(t *testing.T) *Sink {
	t.Helper()
	sink, err := Open(filepath.Join(t.TempDir(), "data", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { sink.Close() })
	return sink
}

func TestAppendAndRecent(t *testing.T) {
	sink := openTestSink(t)

	started := time.Now().Add(-time.Minute).Truncate(time.Second)
	finished := time.Now().Truncate(time.Second)
	rec := &models.HistoryRecord{
		ID:         "job-1",
		Status:     models.StatusDone,
		CreatedAt:  started.Add(-time.Second),
		StartedAt:  &started,
		FinishedAt: &finished,
		Total:      1,
		Results: []models.Result{{
			CheckResult:   models.CheckResult{URL: "https://www.ozon.ru/product/x-1", OK: true, HasLabel: true, LabelText: "подарок"},
			Verdict:       rules.VerdictOK,
			VerdictReason: "Совпало с условием: подарок",
		}},
	}
	if err := sink.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := sink.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("records = %d, want 1", len(got))
	}
	r := got[0]
	if r.ID != "job-1" || r.Status != models.StatusDone || r.Total != 1 {
		t.Errorf("record = %+v", r)
	}
	if r.StartedAt == nil || !r.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", r.StartedAt, started)
	}
	if len(r.Results) != 1 || r.Results[0].Verdict != rules.VerdictOK {
		t.Errorf("results = %+v", r.Results)
	}
}

func TestAppendStoppedWithoutTimestamps(t *testing.T) {
	sink := openTestSink(t)

	rec := &models.HistoryRecord{
		ID:        "job-2",
		Status:    models.StatusStopped,
		CreatedAt: time.Now(),
	}
	if err := sink.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := sink.Recent(1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("records = %d, want 1", len(got))
	}
	if got[0].StartedAt != nil || got[0].FinishedAt != nil {
		t.Errorf("nil timestamps not preserved: %+v", got[0])
	}
	if got[0].Results == nil {
		t.Error("empty results should decode as an empty slice")
	}
}
