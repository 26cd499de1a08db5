package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/commission-tracker/internal/csvimport"
	"github.com/dvloznov/commission-tracker/internal/domain"
	"github.com/dvloznov/commission-tracker/internal/gcsuploader"
)

// PipelineStep represents a single step in the import pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	// SourceURI is either a gs:// URI or a local path.
	SourceURI string

	// Filename is recorded on the upload batch.
	Filename string

	Data   []byte
	Parsed csvimport.Result
	Result domain.IngestResult
}

// Step 1: FetchExportStep loads the export bytes. It is a no-op when Data
// is already populated, as it is for direct uploads.
type FetchExportStep struct {
	storage StorageService
}

func (s *FetchExportStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Data != nil {
		return nil
	}
	if state.SourceURI == "" {
		return &domain.ValidationError{Field: "source_uri", Reason: "is required"}
	}

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(state.SourceURI, "gs://") {
		if s.storage == nil {
			return fmt.Errorf("no storage configured for %s", state.SourceURI)
		}
		data, err = s.storage.FetchFromGCS(ctx, state.SourceURI)
		if state.Filename == "" {
			state.Filename = gcsuploader.ExtractFilenameFromGCSURI(state.SourceURI)
		}
	} else {
		data, err = os.ReadFile(state.SourceURI)
		if state.Filename == "" {
			state.Filename = filepath.Base(state.SourceURI)
		}
	}
	if err != nil {
		return fmt.Errorf("fetching %s: %w", state.SourceURI, err)
	}
	state.Data = data
	return nil
}

// Step 2: ParseExportStep maps the CSV rows onto transactions.
type ParseExportStep struct{}

func (s *ParseExportStep) Execute(ctx context.Context, state *PipelineState) error {
	parsed, err := csvimport.Parse(bytes.NewReader(state.Data), "")
	if err != nil {
		return err
	}
	state.Parsed = parsed
	return nil
}

// Step 3: IngestStep hands the rows to the store and records a batch.
type IngestStep struct {
	ingester Ingester
}

func (s *IngestStep) Execute(ctx context.Context, state *PipelineState) error {
	meta := &domain.BatchMeta{Filename: state.Filename}
	if strings.HasPrefix(state.SourceURI, "gs://") {
		meta.SourceURI = state.SourceURI
	}
	result, err := s.ingester.AddTransactions(ctx, state.Parsed.Rows, meta)
	if err != nil {
		return err
	}
	result.Skipped += state.Parsed.Skipped
	state.Result = result
	return nil
}
