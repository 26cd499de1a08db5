package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/commission-tracker/internal/jobs"
)

// NewImportHandler adapts p to the job queue. The ingest outcome is stored
// on the job so it is visible through the job store.
func NewImportHandler(p *Pipeline, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		importJob, ok := job.(*jobs.ImportJob)
		if !ok {
			return fmt.Errorf("unsupported job type %q", job.GetType())
		}

		jlog := log.With().Str("job_id", importJob.JobID).Str("source_uri", importJob.SourceURI).Logger()
		jlog.Info().Int("attempt", importJob.RetryCount+1).Msg("Importing export")

		state := &PipelineState{SourceURI: importJob.SourceURI, Filename: importJob.Filename}
		if err := p.Execute(ctx, state); err != nil {
			jlog.Error().Err(err).Msg("Import failed")
			return err
		}

		result := state.Result
		importJob.Result = &result
		jlog.Info().
			Int("inserted", result.Inserted).
			Int("duplicates", result.Duplicates).
			Int("skipped", result.Skipped).
			Str("batch_id", result.BatchID).
			Msg("Import completed")
		return nil
	}
}
