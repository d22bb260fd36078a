package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	DataDir   string
	OutputDir string

	RosterPath string
	PlansPath  string

	PageWorkers int
	DocWorkers  int

	CrossCheckTolerance float64
	CrossCheckMode      string

	FetchTimeoutMs    int
	FetchRateLimitRPS int
	FetchMaxAttempts  int

	ExportXLSX bool
	LogLevel   string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "results.db")),
		DataDir:   getEnv("DATA_DIR", filepath.Join(cwd, "texas_election_data")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		RosterPath: getEnv("ROSTER_PATH", ""),
		PlansPath:  getEnv("PLANS_PATH", ""),

		PageWorkers: getEnvInt("PAGE_WORKERS", 4),
		DocWorkers:  getEnvInt("DOC_WORKERS", 2),

		CrossCheckTolerance: getEnvFloat("CROSSCHECK_TOLERANCE", 1.0),
		CrossCheckMode:      strings.ToLower(getEnv("CROSSCHECK_MODE", "warn")),

		FetchTimeoutMs:    getEnvInt("FETCH_TIMEOUT_MS", 30000),
		FetchRateLimitRPS: getEnvInt("FETCH_RATE_LIMIT_RPS", 2),
		FetchMaxAttempts:  getEnvInt("FETCH_MAX_ATTEMPTS", 5),

		ExportXLSX: getEnvBool("EXPORT_XLSX", true),
		LogLevel:   strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if cfg.PageWorkers < 1 {
		cfg.PageWorkers = 1
	}
	if cfg.DocWorkers < 1 {
		cfg.DocWorkers = 1
	}
	if cfg.CrossCheckMode != "warn" && cfg.CrossCheckMode != "reject" {
		return Config{}, fmt.Errorf("CROSSCHECK_MODE must be warn or reject, got %q", cfg.CrossCheckMode)
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
