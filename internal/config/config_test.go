package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAGE_WORKERS", "0")
	t.Setenv("CROSSCHECK_TOLERANCE", "")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PageWorkers != 1 {
		t.Fatalf("page workers=%d", cfg.PageWorkers)
	}
	if cfg.CrossCheckTolerance != 1.0 || cfg.CrossCheckMode != "warn" {
		t.Fatalf("crosscheck=%v %q", cfg.CrossCheckTolerance, cfg.CrossCheckMode)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DOC_WORKERS", "6")
	t.Setenv("CROSSCHECK_MODE", "Reject")
	t.Setenv("EXPORT_XLSX", "off")
	t.Setenv("FETCH_MAX_ATTEMPTS", "not-a-number")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DocWorkers != 6 || cfg.CrossCheckMode != "reject" || cfg.ExportXLSX {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.FetchMaxAttempts != 5 {
		t.Fatalf("fetch attempts=%d", cfg.FetchMaxAttempts)
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	t.Setenv("CROSSCHECK_MODE", "ignore")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}

func TestRequire(t *testing.T) {
	cfg := Config{}
	if err := cfg.Require("DB_PATH", "  "); err == nil {
		t.Fatal("expected error for blank value")
	}
	if err := cfg.Require("DB_PATH", "data/results.db"); err != nil {
		t.Fatal(err)
	}
}
