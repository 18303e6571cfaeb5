// Package config collects the environment-driven settings of the checker.
// Values are read once at startup; .env loading happens in the entrypoints.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the crawler, scheduler and store.
type Config struct {
	// Browsing session.
	PageTimeout time.Duration // per page operation
	GetRetries  int           // navigation attempts per URL
	LabelWait   time.Duration // max wait for the promo-label widget
	Headless    bool
	UserDataDir string // persistent browser profile, "" for a throwaway

	// Search collection defaults; jobs may override per request.
	SearchScrolls    int
	SearchMaxPages   int // 0 = unbounded
	SearchLoadWait   time.Duration
	SearchScrollWait time.Duration
	StableHits       int
	StablePause      time.Duration

	// Seller aliases table.
	SellerAliasesPath string

	// Job registry.
	MaxJobs int
	JobTTL  time.Duration

	// History sink.
	HistoryDBPath string
}

// Load reads the configuration from the environment, applying defaults for
// anything unset or unparsable.
func Load() Config {
	return Config{
		PageTimeout: envDuration("OZON_PAGE_TIMEOUT", 90*time.Second),
		GetRetries:  envInt("OZON_GET_RETRIES", 3),
		LabelWait:   envDuration("OZON_LABEL_WAIT", 10*time.Second),
		Headless:    envBool("OZON_HEADLESS", true),
		UserDataDir: os.Getenv("OZON_USER_DATA_DIR"),

		SearchScrolls:    envInt("OZON_SEARCH_SCROLLS", 2),
		SearchMaxPages:   envInt("OZON_SEARCH_MAX_PAGES", 0),
		SearchLoadWait:   envDuration("OZON_SEARCH_LOAD_WAIT", time.Second),
		SearchScrollWait: envDuration("OZON_SEARCH_SCROLL_WAIT", 700*time.Millisecond),
		StableHits:       envInt("OZON_SEARCH_STABLE_HITS", 1),
		StablePause:      envDuration("OZON_SEARCH_STABLE_PAUSE", 300*time.Millisecond),

		SellerAliasesPath: envString("OZON_SELLER_ALIASES", "seller_aliases.json"),

		MaxJobs: envInt("OZON_MAX_JOBS", 50),
		JobTTL:  envDuration("OZON_JOB_TTL_SEC", 6*time.Hour),

		HistoryDBPath: envString("OZON_HISTORY_DB", "data/history.db"),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

// envDuration reads a duration given in seconds, fractional values allowed.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	sec, err := strconv.ParseFloat(v, 64)
	if err != nil || sec < 0 {
		return def
	}
	return time.Duration(sec * float64(time.Second))
}
