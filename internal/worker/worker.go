// Package worker runs the job scheduler: a single consumer pulling job ids
// off a FIFO queue and executing each job's phases in order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"promowatch/internal/collector"
	"promowatch/internal/config"
	"promowatch/internal/history"
	"promowatch/internal/jobs"
	"promowatch/internal/models"
	"promowatch/internal/ozon"
	"promowatch/internal/rules"
	"promowatch/internal/sellers"
)

// SessionFactory opens a browsing session; fresh requests a throwaway
// browser profile.
type SessionFactory func(fresh bool) (collector.Session, error)

// ErrQueueFull is returned by Submit when the job queue is at capacity.
var ErrQueueFull = errors.New("job queue is full")

// Worker executes jobs one at a time, strictly in submission order.
type Worker struct {
	store    *jobs.Store
	sink     *history.Sink
	sessions SessionFactory
	cfg      config.Config

	queue chan string
	stop  chan struct{}
	wg    sync.WaitGroup
}

// New creates a worker. sink may be nil to disable history persistence.
func New(store *jobs.Store, sink *history.Sink, sessions SessionFactory, cfg config.Config) *Worker {
	return &Worker{
		store:    store,
		sink:     sink,
		sessions: sessions,
		cfg:      cfg,
		queue:    make(chan string, 100),
		stop:     make(chan struct{}),
	}
}

// Submit enqueues a job id for processing.
func (w *Worker) Submit(id string) error {
	select {
	case w.queue <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start begins processing jobs.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
	log.Println("Worker started")
}

// Stop waits for the current job to reach its next cancellation checkpoint
// and shuts the loop down.
func (w *Worker) Stop() {
	close(w.stop)
	w.wg.Wait()
	log.Println("Worker stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			return
		case id := <-w.queue:
			w.process(id)
			w.store.Prune()
		}
	}
}

func (w *Worker) process(id string) {
	plan, ok := w.store.Plan(id)
	if !ok {
		return
	}
	if plan.Cancelled {
		w.persist(w.store.Stop(id, ""))
		return
	}
	w.store.Begin(id)
	log.Printf("Processing job %s", id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.store.BindCancel(id, cancel)
	defer w.store.UnbindCancel(id)

	if plan.AutoSearch {
		if err := w.runSearch(ctx, id, plan); err != nil {
			w.persist(w.store.Stop(id, fmt.Sprintf("Ошибка поиска: %v", err)))
			return
		}
		if w.store.IsCancelled(id) {
			w.persist(w.store.Stop(id, ""))
			return
		}
		// The search phase fixed the final URL list.
		plan, _ = w.store.Plan(id)
	}

	if plan.SearchOnly {
		w.persist(w.store.Complete(id))
		log.Printf("Job %s completed (search only, %d urls)", id, len(plan.URLs))
		return
	}

	w.runTesting(ctx, id, plan)
}

// runSearch executes the search (and optional seller) phase in its own
// browsing session.
func (w *Worker) runSearch(ctx context.Context, id string, plan jobs.Plan) error {
	sess, err := w.sessions(plan.Settings.FreshProfile)
	if err != nil {
		return err
	}
	defer sess.Close()

	opts := w.collectOptions(id, plan, sess)
	urls := collector.Collect(ctx, sess, opts, w.eventSink(id))
	w.store.FinishSearch(id, urls, plan.SellerFilter != "")
	return nil
}

// collectOptions merges the configured defaults with the job's overrides and
// binds the collector to the marketplace.
func (w *Worker) collectOptions(id string, plan jobs.Plan, sess collector.Session) collector.Options {
	maxPages := plan.SearchMaxPages
	if maxPages == 0 {
		maxPages = w.cfg.SearchMaxPages
	}
	opts := collector.Options{
		Query:        plan.SearchQuery,
		MaxPages:     maxPages,
		Scrolls:      w.cfg.SearchScrolls,
		LoadWait:     w.cfg.SearchLoadWait,
		ScrollWait:   w.cfg.SearchScrollWait,
		StableHits:   w.cfg.StableHits,
		StablePause:  w.cfg.StablePause,
		SearchURL:    ozon.BuildSearchURL,
		NormalizeURL: ozon.NormalizeProductURL,
	}
	if s := plan.Settings.Scrolls; s != nil {
		opts.Scrolls = *s
	}
	if v := plan.Settings.LoadWaitSec; v != nil {
		opts.LoadWait = secDuration(*v)
	}
	if v := plan.Settings.ScrollWaitSec; v != nil {
		opts.ScrollWait = secDuration(*v)
	}
	if h := plan.Settings.StableHits; h != nil {
		opts.StableHits = *h
	}
	if v := plan.Settings.StablePauseSec; v != nil {
		opts.StablePause = secDuration(*v)
	}

	if plan.SellerFilter != "" {
		table := w.loadAliases()
		filter := plan.SellerFilter
		opts.KeepSeller = func(name string) bool {
			return table.Matches(filter, name)
		}
		if !plan.SearchOnly {
			opts.InlineCheck = sess.CheckCurrent
		}
	}
	return opts
}

// eventSink maps collector events onto job store updates. Inline check
// results are classified here, the same way the testing phase does it.
func (w *Worker) eventSink(id string) collector.Sink {
	return func(ev collector.Event) {
		switch ev.Kind {
		case collector.EventPhase:
			w.store.SetPhase(id, ev.Phase)
		case collector.EventLinks:
			w.store.SetCollected(id, ev.URLs)
		case collector.EventRawLinks:
			w.store.SetSearchRaw(id, ev.URLs)
		case collector.EventSellerProgress:
			w.store.SetSellerProgress(id, ev.Checked, ev.Total, ev.Kept)
		case collector.EventETA:
			w.store.SetSearchETA(id, ev.ETASec)
		case collector.EventResult:
			plan, ok := w.store.Plan(id)
			if !ok {
				return
			}
			w.store.AppendResult(id, classify(*ev.Result, plan.Rules))
		}
	}
}

// runTesting visits every URL of the job in one browsing session and
// classifies each page.
func (w *Worker) runTesting(ctx context.Context, id string, plan jobs.Plan) {
	w.store.SetPhase(id, models.PhaseTesting)

	remaining := 0
	for _, u := range plan.URLs {
		if !w.store.AlreadyTested(id, u) {
			remaining++
		}
	}
	if remaining == 0 {
		w.persist(w.store.Complete(id))
		log.Printf("Job %s completed (nothing left to test)", id)
		return
	}

	sess, err := w.sessions(plan.Settings.FreshProfile)
	if err != nil {
		w.persist(w.store.Stop(id, fmt.Sprintf("Ошибка запуска браузера: %v", err)))
		return
	}
	defer sess.Close()

	var table sellers.Table
	if !plan.SellerFilterApplied && plan.SellerFilter != "" {
		table = w.loadAliases()
	}

	for _, u := range plan.URLs {
		if w.store.AlreadyTested(id, u) {
			continue
		}
		if w.store.IsCancelled(id) {
			w.persist(w.store.Stop(id, ""))
			return
		}
		w.store.SetCurrentURL(id, u)

		if !sess.Open(ctx, u) {
			if w.store.IsCancelled(id) {
				w.persist(w.store.Stop(id, ""))
				return
			}
			w.store.AppendResult(id, errorResult(u, "Не удалось открыть страницу после повторов."))
			continue
		}
		res := sess.CheckCurrent(u)

		// A filter that was not applied during search narrows here instead;
		// mismatches advance progress without producing a result.
		if !plan.SellerFilterApplied && plan.SellerFilter != "" {
			if !table.Matches(plan.SellerFilter, res.SellerName) {
				w.store.SkipURL(id, u)
				continue
			}
		}

		w.store.AppendResult(id, classify(res, plan.Rules))
	}

	if rec := w.store.Complete(id); rec != nil {
		w.persist(rec)
		log.Printf("Job %s completed", id)
	}
}

func (w *Worker) loadAliases() sellers.Table {
	table, err := sellers.Load(w.cfg.SellerAliasesPath)
	if err != nil {
		log.Printf("Error loading seller aliases: %v", err)
		return sellers.Table{}
	}
	return table
}

// persist writes a terminal record to the history sink. Failures are logged
// and swallowed.
func (w *Worker) persist(rec *models.HistoryRecord) {
	if rec == nil || w.sink == nil {
		return
	}
	if err := w.sink.Append(rec); err != nil {
		log.Printf("Error persisting job %s history: %v", rec.ID, err)
	}
}

// classify attaches the verdict to an inspected page.
func classify(res models.CheckResult, set rules.Set) models.Result {
	verdict, reason, trace := rules.Evaluate(res.LabelText, res.HasLabel, set)
	return models.Result{
		CheckResult:   res,
		Verdict:       verdict,
		VerdictReason: reason,
		Debug:         &trace,
	}
}

func errorResult(url, msg string) models.Result {
	return models.Result{
		CheckResult: models.CheckResult{
			URL:   url,
			Error: msg,
		},
		Verdict:       rules.VerdictError,
		VerdictReason: "Ошибка проверки карточки",
	}
}

func secDuration(sec float64) time.Duration {
	if sec < 0 {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}
