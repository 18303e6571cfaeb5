package ozon

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"promowatch/internal/models"
	"promowatch/internal/textnorm"
)

// SessionConfig tunes one browsing session.
type SessionConfig struct {
	Headless    bool
	UserDataDir string // ignored when FreshProfile is set
	// FreshProfile starts from a throwaway profile directory, removed on
	// Close. Useful when the persistent profile has been rate-limited.
	FreshProfile bool

	PageTimeout time.Duration
	GetRetries  int
	LabelWait   time.Duration
}

// Session is one live browser against the marketplace. It implements the
// collector's session contract. Not safe for concurrent use.
type Session struct {
	cfg     SessionConfig
	launch  *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page
	tempDir string
}

// NewSession launches the browser and opens a stealth page.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 90 * time.Second
	}
	if cfg.GetRetries < 1 {
		cfg.GetRetries = 3
	}
	if cfg.LabelWait <= 0 {
		cfg.LabelWait = 10 * time.Second
	}

	s := &Session{cfg: cfg}

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("no-first-run").
		Set("no-default-browser-check")

	switch {
	case cfg.FreshProfile:
		dir, err := os.MkdirTemp("", "ozon_profile_")
		if err != nil {
			return nil, fmt.Errorf("create temp profile: %w", err)
		}
		s.tempDir = dir
		l = l.UserDataDir(dir)
	case cfg.UserDataDir != "":
		l = l.UserDataDir(cfg.UserDataDir)
	}
	if cfg.Headless {
		l = l.Set("window-size", "1400,900")
	}

	controlURL, err := l.Launch()
	if err != nil {
		s.cleanupTemp()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		s.cleanupTemp()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		browser.Close()
		l.Cleanup()
		s.cleanupTemp()
		return nil, fmt.Errorf("open stealth page: %w", err)
	}

	s.launch = l
	s.browser = browser
	s.page = page
	return s, nil
}

// Open navigates to url, retrying with a growing backoff. Reports false when
// every attempt failed or the context was cancelled.
func (s *Session) Open(ctx context.Context, url string) bool {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.GetRetries; attempt++ {
		if ctx.Err() != nil {
			return false
		}
		if lastErr = s.navigate(ctx, url); lastErr == nil {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Duration(2+attempt) * time.Second):
		}
	}
	if lastErr != nil {
		log.Printf("[ozon] navigation failed: %s: %v", url, lastErr)
	}
	return false
}

func (s *Session) navigate(ctx context.Context, url string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("navigate %s: %v", url, r)
		}
	}()
	page := s.page.Context(ctx).Timeout(s.cfg.PageTimeout)
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

// collectLinksJS pulls every product link out of the primary results grid.
// The recommendations block below the results starts at the "возможно, вам
// понравится" heading; grids rendered under it are excluded by position.
const collectLinksJS = `() => {
	const container = document.querySelector("#contentScrollPaginator") || document;

	const heading = Array.from(container.querySelectorAll("h2, h3, h4, span, div"))
		.find((el) => (el.textContent || "").trim().toLowerCase().includes("возможно, вам понравится"));

	const grids = container.querySelectorAll("[data-widget='tileGridDesktop'], [data-widget*='tileGrid']");

	let root = null;
	if (grids.length) {
		if (heading) {
			const headTop = heading.getBoundingClientRect().top + window.scrollY;
			root = Array.from(grids).find((grid) => {
				const gridTop = grid.getBoundingClientRect().top + window.scrollY;
				return gridTop < headTop;
			});
		}
		root = root || grids[0];
	}
	if (!root) root = container;

	const out = [];
	root.querySelectorAll("a[href*='/product/']").forEach((link) => {
		const href = link.getAttribute("href");
		if (href) out.push(href);
	});
	return out;
}`

// Links returns the product links currently rendered in the results grid.
func (s *Session) Links() []string {
	return s.evalStrings(collectLinksJS)
}

// ScrollBottom scrolls the page to its full height.
func (s *Session) ScrollBottom() {
	s.eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
}

var sellerSelectors = []string{
	"[data-widget='webProductSeller']",
	"[data-widget='webOutOfStockSeller']",
	"div[class*='b35_3_18-a9'] span[class*='b35_3_18-b6']",
	"span[class*='b35_3_18-b6']",
	"div[class*='pdp_a5m'] span[class*='b35_3_18-b6']",
}

// Seller extracts the seller name from the currently open product page:
// seller widget first, then the embedded state JSON, then the visible text.
func (s *Session) Seller() string {
	s.waitTrue(fmt.Sprintf(`() => !!document.querySelector(%q)`, strings.Join(sellerSelectors, ", ")))

	if name := s.sellerFromDOM(); name != "" {
		return name
	}
	if name := extractSellerFromSource(s.pageSource()); name != "" {
		return name
	}
	return extractSellerFromText(s.bodyText())
}

// CheckCurrent inspects the already-open product page for the promo label and
// the seller. A sweep of partial scrolls triggers the lazy-loaded widgets.
func (s *Session) CheckCurrent(url string) models.CheckResult {
	sweeps := []string{
		`() => window.scrollTo(0, Math.floor(document.body.scrollHeight * 0.3))`,
		`() => window.scrollTo(0, Math.floor(document.body.scrollHeight * 0.6))`,
		`() => window.scrollTo(0, document.body.scrollHeight)`,
		`() => window.scrollTo(0, 0)`,
	}
	for _, js := range sweeps {
		s.eval(js)
		time.Sleep(sweepPause)
	}

	labelText := s.collectLabelText()
	hasLabel := labelPresent(labelText)

	bodyText := s.bodyText()
	source := s.pageSource()

	if !hasLabel {
		if fromSource := extractLabelFromSource(source); fromSource != "" {
			labelText = fromSource
			hasLabel = true
		}
	}

	sellerName := s.sellerFromDOM()
	if sellerName == "" {
		sellerName = extractSellerFromSource(source)
	}
	if sellerName == "" {
		sellerName = extractSellerFromText(bodyText)
	}

	return models.CheckResult{
		URL:        url,
		OK:         true,
		HasLabel:   hasLabel,
		SellerOK:   IsOzonSeller(sellerName, bodyText),
		SellerName: sellerName,
		LabelText:  labelText,
	}
}

// sweepPause separates the partial scrolls of the check sweep.
var sweepPause = 200 * time.Millisecond

// labelWidgetReadyJS reports whether the marketing-label widget rendered
// something extractable.
const labelWidgetReadyJS = `() => {
	const root = document.querySelectorAll("[data-widget='webMarketingLabels']");
	for (const node of root) {
		if (node.innerText && node.innerText.trim()) return true;
		if (node.querySelector("[title],[aria-label],img[alt]")) return true;
	}
	return !!document.querySelector(".b5_5_1-a5");
}`

// labelChunksJS gathers label text from the widget and the legacy class:
// visible text plus title/aria-label/alt attributes.
const labelChunksJS = `() => {
	const out = [];
	document.querySelectorAll("[data-widget='webMarketingLabels']").forEach((node) => {
		if (node.innerText) out.push(node.innerText);
		node.querySelectorAll("[title],[aria-label],img[alt]").forEach((el) => {
			const t = el.getAttribute("title") || el.getAttribute("aria-label") || el.getAttribute("alt");
			if (t) out.push(t);
		});
	});
	document.querySelectorAll(".b5_5_1-a5").forEach((node) => {
		if (node.innerText) out.push(node.innerText);
		const t = node.getAttribute("title");
		if (t) out.push(t);
	});
	return out;
}`

const labelIconJS = `() => {
	const roots = document.querySelectorAll("[data-widget='webMarketingLabels']");
	for (const node of roots) {
		if (node.querySelector("img,svg")) return true;
	}
	return false;
}`

// labelDeepWalkJS is the last-resort sweep over the whole DOM, shadow roots
// included, for any leaf text or attribute that looks like the label.
const labelDeepWalkJS = `() => {
	const out = [];
	const isHit = (t) => {
		if (!t) return false;
		const s = String(t).toLowerCase();
		return s.includes("sim") && s.includes("tecno") && (s.includes("🎁") || s.includes("подар"));
	};
	const pushIfHit = (t) => { if (isHit(t)) out.push(t); };
	const walk = (node) => {
		if (!node) return;
		if (node.nodeType === Node.ELEMENT_NODE) {
			const el = node;
			if (!el.children || el.children.length === 0) {
				pushIfHit(el.textContent);
			}
			pushIfHit(el.getAttribute && el.getAttribute("title"));
			pushIfHit(el.getAttribute && el.getAttribute("aria-label"));
			pushIfHit(el.getAttribute && el.getAttribute("alt"));
			if (el.shadowRoot) walk(el.shadowRoot);
		}
		if (node.childNodes) node.childNodes.forEach(walk);
	};
	walk(document.body);
	return out;
}`

// collectLabelText runs the label-extraction cascade: the marketing widget,
// then the DOM-wide deep walk.
func (s *Session) collectLabelText() string {
	s.waitTrue(labelWidgetReadyJS)

	chunks := s.evalStrings(labelChunksJS)
	hasIcon := s.evalBool(labelIconJS)
	if filtered := filterLabelChunks(chunks, hasIcon); len(filtered) > 0 {
		combined := strings.Join(filtered, " ")
		// An icon-only gift mark gets spelled out so the evaluator sees it.
		if hasIcon && !strings.Contains(textnorm.Normalize(combined), textnorm.GiftWord) {
			return combined + " " + textnorm.GiftGlyph
		}
		return combined
	}

	if filtered := filterLabelChunks(s.evalStrings(labelDeepWalkJS), false); len(filtered) > 0 {
		return strings.Join(filtered, " ")
	}
	return ""
}

func (s *Session) sellerFromDOM() string {
	for _, sel := range sellerSelectors {
		text := s.evalString(`(sel) => {
			const el = document.querySelector(sel);
			return el ? (el.textContent || "").trim() : "";
		}`, sel)
		if text != "" && textnorm.Normalize(text) != "перейти" {
			return text
		}
	}
	return ""
}

// Close shuts the browser down and removes any throwaway profile. Safe to
// call after a failed open.
func (s *Session) Close() {
	if s.browser != nil {
		_ = s.browser.Close()
	}
	if s.launch != nil {
		s.launch.Cleanup()
	}
	s.cleanupTemp()
}

func (s *Session) cleanupTemp() {
	if s.tempDir != "" {
		_ = os.RemoveAll(s.tempDir)
		s.tempDir = ""
	}
}

// waitTrue polls the predicate until it holds or the label-wait budget runs
// out. Extraction proceeds with whatever is rendered at that point.
func (s *Session) waitTrue(js string) {
	deadline := time.Now().Add(s.cfg.LabelWait)
	for time.Now().Before(deadline) {
		if s.evalBool(js) {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// evalResult wraps an evaluated remote object; a nil obj means the script
// could not run.
type evalResult struct {
	obj *proto.RuntimeRemoteObject
}

func (s *Session) eval(js string, args ...any) (result evalResult) {
	defer func() {
		if r := recover(); r != nil {
			result = evalResult{}
		}
	}()
	obj, err := s.page.Timeout(s.cfg.PageTimeout).Eval(js, args...)
	if err != nil || obj == nil {
		return evalResult{}
	}
	return evalResult{obj: obj}
}

func (s *Session) evalStrings(js string, args ...any) []string {
	res := s.eval(js, args...)
	if res.obj == nil {
		return nil
	}
	var out []string
	for _, v := range res.obj.Value.Arr() {
		if str := v.Str(); str != "" {
			out = append(out, str)
		}
	}
	return out
}

func (s *Session) evalString(js string, args ...any) string {
	res := s.eval(js, args...)
	if res.obj == nil {
		return ""
	}
	return res.obj.Value.Str()
}

func (s *Session) evalBool(js string, args ...any) bool {
	res := s.eval(js, args...)
	if res.obj == nil {
		return false
	}
	return res.obj.Value.Bool()
}

func (s *Session) pageSource() string {
	html, err := s.page.Timeout(s.cfg.PageTimeout).HTML()
	if err != nil {
		return ""
	}
	return html
}

func (s *Session) bodyText() string {
	return s.evalString(`() => document.body ? document.body.innerText : ""`)
}
