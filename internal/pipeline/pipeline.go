// Package pipeline turns a carrier commission export into stored
// transactions: fetch, parse, then ingest.
package pipeline

import (
	"context"
	"fmt"
)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewImportPipeline creates the standard 3-step export import pipeline.
// storage may be nil when only local files and direct uploads are imported.
func NewImportPipeline(storage StorageService, ingester Ingester) *Pipeline {
	return NewPipeline(
		&FetchExportStep{storage: storage},
		&ParseExportStep{},
		&IngestStep{ingester: ingester},
	)
}
