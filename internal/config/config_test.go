package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE", "BQ_PROJECT", "BQ_DATASET", "SNAPSHOT_PATH", "GCS_BUCKET",
		"RETENTION_INTERVAL", "QUEUE_BUFFER", "QUEUE_WORKERS", "API_TOKEN", "NOTION_TOKEN", "NOTION_DB_ID"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "commissions", cfg.BQDataset)
	assert.Equal(t, 24*time.Hour, cfg.RetentionInterval)
	assert.Equal(t, 100, cfg.QueueBuffer)
	assert.Equal(t, 5, cfg.QueueWorkers)
	assert.NoError(t, cfg.ValidateStore())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE", "BigQuery")
	t.Setenv("BQ_PROJECT", "acme")
	t.Setenv("RETENTION_INTERVAL", "6h")
	t.Setenv("API_TOKEN", " secret ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreBigQuery, cfg.Store)
	assert.Equal(t, "acme", cfg.BQProject)
	assert.Equal(t, 6*time.Hour, cfg.RetentionInterval)
	assert.Equal(t, "secret", cfg.APIToken)
	assert.NoError(t, cfg.ValidateStore())
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("RETENTION_INTERVAL", "daily")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("RETENTION_INTERVAL", "-1h")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("RETENTION_INTERVAL", "")
	t.Setenv("QUEUE_WORKERS", "many")
	_, err = Load()
	assert.Error(t, err)
}

func TestValidateStore(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Store: StoreMemory}, false},
		{"bigquery", Config{Store: StoreBigQuery, BQProject: "p", BQDataset: "d"}, false},
		{"bigquery without project", Config{Store: StoreBigQuery, BQDataset: "d"}, true},
		{"bigquery without dataset", Config{Store: StoreBigQuery, BQProject: "p"}, true},
		{"unknown", Config{Store: "postgres"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateStore()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
