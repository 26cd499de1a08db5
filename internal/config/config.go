// Package config reads process configuration from the environment. A .env
// file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/commission-tracker/internal/logger"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreBigQuery = "bigquery"
)

const (
	defaultPort              = "8080"
	defaultDataset           = "commissions"
	defaultRetentionInterval = 24 * time.Hour
	defaultQueueBuffer       = 100
	defaultQueueWorkers      = 5
)

// Config holds application configuration. Binaries use the values as flag
// defaults, so command-line flags always win.
type Config struct {
	Port string

	// Store selects the repository backend: memory or bigquery.
	Store     string
	BQProject string
	BQDataset string

	// SnapshotPath persists the memory store. A gs:// URI stores the snapshot
	// as a GCS object, anything else is a local file. Empty disables it.
	SnapshotPath string

	// GCSBucket receives archived exports. Empty disables archiving.
	GCSBucket string

	RetentionInterval time.Duration

	QueueBuffer  int
	QueueWorkers int

	// APIToken is the bearer token required on /api/ routes.
	APIToken string

	NotionToken string
	NotionDBID  string

	Log logger.Config
}

// Load loads configuration from environment variables and .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	interval, err := getenvDuration("RETENTION_INTERVAL", defaultRetentionInterval)
	if err != nil {
		return Config{}, err
	}
	buffer, err := getenvInt("QUEUE_BUFFER", defaultQueueBuffer)
	if err != nil {
		return Config{}, err
	}
	workers, err := getenvInt("QUEUE_WORKERS", defaultQueueWorkers)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:              getenv("PORT", defaultPort),
		Store:             strings.ToLower(getenv("STORE", StoreMemory)),
		BQProject:         getenv("BQ_PROJECT", ""),
		BQDataset:         getenv("BQ_DATASET", defaultDataset),
		SnapshotPath:      getenv("SNAPSHOT_PATH", ""),
		GCSBucket:         getenv("GCS_BUCKET", ""),
		RetentionInterval: interval,
		QueueBuffer:       buffer,
		QueueWorkers:      workers,
		APIToken:          strings.TrimSpace(getenv("API_TOKEN", "")),
		NotionToken:       strings.TrimSpace(getenv("NOTION_TOKEN", "")),
		NotionDBID:        getenv("NOTION_DB_ID", ""),
		Log:               logger.ConfigFromEnv(),
	}
	return cfg, nil
}

// ValidateStore checks the repository settings.
func (c Config) ValidateStore() error {
	switch c.Store {
	case StoreMemory:
		return nil
	case StoreBigQuery:
		if c.BQProject == "" {
			return fmt.Errorf("BQ_PROJECT is required when STORE=%s", StoreBigQuery)
		}
		if c.BQDataset == "" {
			return fmt.Errorf("BQ_DATASET is required when STORE=%s", StoreBigQuery)
		}
		return nil
	}
	return fmt.Errorf("unknown store %q, expected %s or %s", c.Store, StoreMemory, StoreBigQuery)
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := getenv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getenv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return d, nil
}
