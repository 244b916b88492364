// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/dvloznov/spend-signals/internal/analytics"
)

// History backends.
const (
	BackendFile      = "file"
	BackendGCS       = "gcs"
	BackendBigQuery  = "bigquery"
	BackendFirestore = "firestore"
	BackendSQLite    = "sqlite"
)

// Assessment stores.
const (
	StoreNone     = "none"
	StoreBigQuery = "bigquery"
	StoreSQLite   = "sqlite"
)

// Candidate timestamp policies.
const (
	CandidateTSNow    = "now"
	CandidateTSReject = "reject"
)

// Defaults.
const (
	DefaultPort              = "8080"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "console"
	DefaultDataset           = "finance"
	DefaultHistoryDir        = "./data"
	DefaultGCSHistoryPrefix  = "history"
	DefaultFirestoreColl     = "transactions"
	DefaultSQLitePath        = "./spend-signals.db"
	DefaultGeminiModel       = "gemini-2.5-flash"
	DefaultZTimeThreshold    = -2.0
	DefaultZAmountThreshold  = -3.0
	DefaultSnapshotTTL       = 5 * time.Minute
	DefaultJobQueueSize      = 100
	DefaultJobWorkers        = 5
	DefaultBatchConcurrency  = 8
	DefaultCandidateTSPolicy = CandidateTSNow
	DefaultRateLimitRPS      = 20.0
	DefaultRateLimitBurst    = 40
)

// Config holds all service configuration.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	ProjectID string
	Dataset   string

	HistoryBackend      string
	HistoryDir          string
	GCSBucket           string
	GCSHistoryPrefix    string
	FirestoreCollection string
	SQLitePath          string

	AssessmentStore string

	GeminiAPIKey string
	GeminiModel  string

	NotionToken string
	NotionDBID  string

	ZTimeThreshold    float64
	ZAmountThreshold  float64
	LenientHistory    bool
	CandidateTSPolicy string
	Timezone          string

	SnapshotTTL      time.Duration
	JobQueueSize     int
	JobWorkers       int
	BatchConcurrency int

	// RateLimitRPS limits API requests per second; zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory or its parent when present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load("../.env")

	cfg := &Config{
		Port:      getEnv("PORT", DefaultPort),
		LogLevel:  getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat: getEnv("LOG_FORMAT", DefaultLogFormat),

		ProjectID: os.Getenv("GCP_PROJECT_ID"),
		Dataset:   getEnv("BQ_DATASET", DefaultDataset),

		HistoryBackend:      strings.ToLower(getEnv("HISTORY_BACKEND", BackendFile)),
		HistoryDir:          getEnv("HISTORY_DIR", DefaultHistoryDir),
		GCSBucket:           os.Getenv("GCS_BUCKET"),
		GCSHistoryPrefix:    getEnv("GCS_HISTORY_PREFIX", DefaultGCSHistoryPrefix),
		FirestoreCollection: getEnv("FIRESTORE_COLLECTION", DefaultFirestoreColl),
		SQLitePath:          getEnv("SQLITE_PATH", DefaultSQLitePath),

		AssessmentStore: strings.ToLower(getEnv("ASSESSMENT_STORE", StoreNone)),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", DefaultGeminiModel),

		NotionToken: os.Getenv("NOTION_TOKEN"),
		NotionDBID:  os.Getenv("NOTION_DB_ID"),

		ZTimeThreshold:    getEnvAsFloat("SIGNALS_Z_TIME_THRESHOLD", DefaultZTimeThreshold),
		ZAmountThreshold:  getEnvAsFloat("SIGNALS_Z_AMOUNT_THRESHOLD", DefaultZAmountThreshold),
		LenientHistory:    getEnvAsBool("SIGNALS_LENIENT_HISTORY", false),
		CandidateTSPolicy: strings.ToLower(getEnv("SIGNALS_CANDIDATE_TS_POLICY", DefaultCandidateTSPolicy)),
		Timezone:          getEnv("SIGNALS_TIMEZONE", "UTC"),

		SnapshotTTL:      getEnvAsDuration("SNAPSHOT_TTL", DefaultSnapshotTTL),
		JobQueueSize:     getEnvAsInt("JOB_QUEUE_SIZE", DefaultJobQueueSize),
		JobWorkers:       getEnvAsInt("JOB_WORKERS", DefaultJobWorkers),
		BatchConcurrency: getEnvAsInt("BATCH_CONCURRENCY", DefaultBatchConcurrency),

		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", DefaultRateLimitRPS),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", DefaultRateLimitBurst),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	switch c.HistoryBackend {
	case BackendFile:
	case BackendGCS:
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for the gcs history backend")
		}
	case BackendBigQuery, BackendFirestore:
		if c.ProjectID == "" {
			return fmt.Errorf("GCP_PROJECT_ID is required for the %s history backend", c.HistoryBackend)
		}
	case BackendSQLite:
	default:
		return fmt.Errorf("unknown HISTORY_BACKEND %q", c.HistoryBackend)
	}

	switch c.AssessmentStore {
	case StoreNone, StoreSQLite:
	case StoreBigQuery:
		if c.ProjectID == "" {
			return fmt.Errorf("GCP_PROJECT_ID is required for the bigquery assessment store")
		}
	default:
		return fmt.Errorf("unknown ASSESSMENT_STORE %q", c.AssessmentStore)
	}

	if c.CandidateTSPolicy != CandidateTSNow && c.CandidateTSPolicy != CandidateTSReject {
		return fmt.Errorf("SIGNALS_CANDIDATE_TS_POLICY must be %q or %q", CandidateTSNow, CandidateTSReject)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid SIGNALS_TIMEZONE %q: %w", c.Timezone, err)
	}

	if c.BatchConcurrency < 1 {
		return fmt.Errorf("BATCH_CONCURRENCY must be positive")
	}

	if c.RateLimitRPS < 0 || (c.RateLimitRPS > 0 && c.RateLimitBurst < 1) {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0 and RATE_LIMIT_BURST positive when limiting")
	}

	return nil
}

// EngineConfig converts the signal settings into an analytics.Config.
func (c *Config) EngineConfig() analytics.Config {
	cfg := analytics.DefaultConfig()
	cfg.TimeZThreshold = c.ZTimeThreshold
	cfg.AmountZThreshold = c.ZAmountThreshold
	cfg.LenientHistory = c.LenientHistory
	cfg.DefaultCandidateTimestamp = c.CandidateTSPolicy != CandidateTSReject
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		cfg.Location = loc
	}
	return cfg
}

// ReasoningEnabled reports whether a reasoning model is configured.
func (c *Config) ReasoningEnabled() bool {
	return c.GeminiAPIKey != ""
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
