package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.PageTimeout != 90*time.Second {
		t.Errorf("PageTimeout = %v", cfg.PageTimeout)
	}
	if cfg.GetRetries != 3 {
		t.Errorf("GetRetries = %d", cfg.GetRetries)
	}
	if !cfg.Headless {
		t.Error("Headless should default to true")
	}
	if cfg.MaxJobs != 50 || cfg.JobTTL != 6*time.Hour {
		t.Errorf("MaxJobs/JobTTL = %d/%v", cfg.MaxJobs, cfg.JobTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OZON_SEARCH_LOAD_WAIT", "2.5")
	t.Setenv("OZON_SEARCH_SCROLLS", "5")
	t.Setenv("OZON_HEADLESS", "false")
	t.Setenv("OZON_JOB_TTL_SEC", "60")

	cfg := Load()
	if cfg.SearchLoadWait != 2500*time.Millisecond {
		t.Errorf("SearchLoadWait = %v, want 2.5s", cfg.SearchLoadWait)
	}
	if cfg.SearchScrolls != 5 {
		t.Errorf("SearchScrolls = %d, want 5", cfg.SearchScrolls)
	}
	if cfg.Headless {
		t.Error("OZON_HEADLESS=false not honored")
	}
	if cfg.JobTTL != time.Minute {
		t.Errorf("JobTTL = %v, want 1m", cfg.JobTTL)
	}
}

func TestLoadIgnoresGarbage(t *testing.T) {
	t.Setenv("OZON_GET_RETRIES", "many")
	t.Setenv("OZON_SEARCH_STABLE_PAUSE", "-1")

	cfg := Load()
	if cfg.GetRetries != 3 {
		t.Errorf("GetRetries = %d, want default on parse failure", cfg.GetRetries)
	}
	if cfg.StablePause != 300*time.Millisecond {
		t.Errorf("StablePause = %v, want default on negative value", cfg.StablePause)
	}
}
