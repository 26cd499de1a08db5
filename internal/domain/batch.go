package domain

import "time"

// UploadBatch records one imported export. Deleting it removes every
// transaction whose SourceFileID equals ID.
type UploadBatch struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	SourceURI   string    `json:"source_uri,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
	RecordCount int       `json:"record_count"`
	TotalAmount float64   `json:"total_amount"`
}

// BatchMeta is supplied by the caller when rows come from an uploaded file.
type BatchMeta struct {
	Filename  string `json:"filename"`
	SourceURI string `json:"source_uri,omitempty"`
}

// IngestResult reports how an AddTransactions call went.
type IngestResult struct {
	Inserted   int    `json:"inserted"`
	Duplicates int    `json:"duplicates"`
	Skipped    int    `json:"skipped"`
	BatchID    string `json:"batch_id,omitempty"`
}
