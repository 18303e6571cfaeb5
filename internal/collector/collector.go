// Package collector drives one browsing session through paginated,
// infinite-scroll search results: it deduplicates discovered product links,
// terminates each page through a count-stabilization heuristic, and optionally
// narrows the result set by seller. Progress is reported as a typed event
// stream; the caller decides what to do with each event.
package collector

import (
	"context"
	"math/rand"
	"time"

	"promowatch/internal/models"
)

// Session is one live browsing session against the marketplace. Open reports
// false after exhausting its navigation retries; the extraction methods are
// best-effort and return zero values for anything not found.
type Session interface {
	Open(ctx context.Context, url string) bool
	// Links returns the product links currently rendered inside the primary
	// results grid, excluding any recommendation block below it.
	Links() []string
	ScrollBottom()
	// Seller extracts the seller name from the currently open page.
	Seller() string
	// CheckCurrent inspects the currently open page and reports label and
	// seller data for the given URL.
	CheckCurrent(url string) models.CheckResult
	Close()
}

// EventKind tags a collector event.
type EventKind int

const (
	// EventPhase announces a phase change (search, seller).
	EventPhase EventKind = iota
	// EventLinks carries the current kept-URL list after a new link was
	// accepted (collection order is first-seen and never reshuffled).
	EventLinks
	// EventRawLinks carries the full collected list before seller narrowing.
	EventRawLinks
	// EventSellerProgress reports checked/total/kept counters during the
	// seller phase, after every URL.
	EventSellerProgress
	// EventETA reports the estimated remaining search-phase duration.
	EventETA
	// EventResult carries an inline check result for a seller-kept URL.
	EventResult
)

// Event is one progress notification. Slices are copies and safe to retain.
type Event struct {
	Kind    EventKind
	Phase   models.Phase
	URLs    []string
	Checked int
	Total   int
	Kept    int
	ETASec  float64
	Result  *models.CheckResult
}

// Sink consumes events. It is invoked synchronously while the collector holds
// no locks; implementations must not block on I/O.
type Sink func(Event)

// Options tune one collection run. SearchURL and NormalizeURL bind the
// collector to a concrete marketplace.
type Options struct {
	Query       string
	MaxPages    int // 0 = unbounded
	Scrolls     int
	LoadWait    time.Duration
	ScrollWait  time.Duration
	StableHits  int // 0 disables stabilization
	StablePause time.Duration

	SearchURL    func(query string, page int) string
	NormalizeURL func(raw string) (string, bool)

	// KeepSeller, when set, enables the seller phase: every collected URL is
	// visited and kept only if its extracted seller name passes.
	KeepSeller func(name string) bool
	// InlineCheck, when set, inspects each seller-kept URL in the same
	// session; results are delivered as EventResult.
	InlineCheck func(url string) models.CheckResult
}

// sellerSettle is the short pause after opening a page in the seller phase.
var sellerSettle = 150 * time.Millisecond

// Collect runs the search (and optional seller) phase and returns the final
// URL list in first-seen order. Cancellation via ctx stops the run at the next
// checkpoint; the URLs gathered so far are returned.
func Collect(ctx context.Context, sess Session, opts Options, emit Sink) []string {
	if emit == nil {
		emit = func(Event) {}
	}

	var urls []string
	seen := make(map[string]struct{})

	collectNew := func(hrefs []string) int {
		added := 0
		for _, href := range hrefs {
			norm, ok := opts.NormalizeURL(href)
			if !ok {
				continue
			}
			if _, dup := seen[norm]; dup {
				continue
			}
			seen[norm] = struct{}{}
			urls = append(urls, norm)
			added++
			emit(Event{Kind: EventLinks, URLs: append([]string(nil), urls...)})
		}
		return added
	}

	emit(Event{Kind: EventPhase, Phase: models.PhaseSearch})

	var pageTimes []time.Duration
	page := 1
	for ctx.Err() == nil {
		target := opts.SearchURL(opts.Query, page)
		pageStart := time.Now()
		if !sess.Open(ctx, target) {
			break
		}
		sleepJittered(ctx, opts.LoadWait)

		links := sess.Links()
		pageNew := collectNew(links)
		lastCount := len(links)

		scrolls := opts.Scrolls
		if scrolls < 1 {
			scrolls = 1
		}
		for i := 0; i < scrolls && ctx.Err() == nil; i++ {
			sess.ScrollBottom()
			sleep(ctx, opts.ScrollWait)
			links = sess.Links()
			pageNew += collectNew(links)
			lastCount = len(links)
		}

		if opts.StableHits > 0 {
			stabilize(ctx, func() int { return len(sess.Links()) },
				lastCount, opts.StableHits, opts.StablePause)
			pageNew += collectNew(sess.Links())
		}

		// A page with zero new links means the end of results.
		if pageNew == 0 {
			break
		}
		if opts.MaxPages > 0 && page >= opts.MaxPages {
			break
		}
		page++
		pageTimes = append(pageTimes, time.Since(pageStart))
		if opts.MaxPages > 0 {
			emit(Event{Kind: EventETA, ETASec: etaSeconds(pageTimes, opts.MaxPages-page)})
		}
	}

	emit(Event{Kind: EventRawLinks, URLs: append([]string(nil), urls...)})

	if opts.KeepSeller == nil {
		return urls
	}

	emit(Event{Kind: EventPhase, Phase: models.PhaseSeller})
	var kept []string
	total := len(urls)
	checked := 0
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		if !sess.Open(ctx, u) {
			continue
		}
		sleep(ctx, sellerSettle)
		name := sess.Seller()
		checked++
		if opts.KeepSeller(name) {
			kept = append(kept, u)
			emit(Event{Kind: EventLinks, URLs: append([]string(nil), kept...)})
			if opts.InlineCheck != nil {
				res := opts.InlineCheck(u)
				emit(Event{Kind: EventResult, Result: &res})
			}
		}
		emit(Event{Kind: EventSellerProgress, Checked: checked, Total: total, Kept: len(kept)})
	}
	return kept
}

// stabilize probes the rendered link count until it is unchanged and non-zero
// for hits consecutive probes, starting from the count the caller last
// observed. Returns the number of probes performed.
func stabilize(ctx context.Context, probe func() int, last, hits int, pause time.Duration) int {
	stable := 0
	probes := 0
	for ctx.Err() == nil {
		n := probe()
		probes++
		if n == last && n > 0 {
			stable++
		} else {
			stable = 0
		}
		last = n
		if stable >= hits {
			break
		}
		if !sleep(ctx, pause) {
			break
		}
	}
	return probes
}

// etaSeconds estimates remaining duration from a moving average of the last
// five page times.
func etaSeconds(pageTimes []time.Duration, remaining int) float64 {
	if len(pageTimes) == 0 {
		return 0
	}
	recent := pageTimes
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	var sum time.Duration
	for _, d := range recent {
		sum += d
	}
	avg := sum / time.Duration(len(recent))
	if remaining < 0 {
		remaining = 0
	}
	return (time.Duration(remaining) * avg).Seconds()
}

// sleep waits for d or until ctx is cancelled; reports whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// sleepJittered adds up to 600ms of jitter so page loads are not probed on a
// fixed cadence. A zero base wait skips the pause entirely.
func sleepJittered(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	return sleep(ctx, d+time.Duration(rand.Int63n(600))*time.Millisecond)
}
