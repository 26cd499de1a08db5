package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/commission-tracker/internal/commission"
	"github.com/dvloznov/commission-tracker/internal/config"
	"github.com/dvloznov/commission-tracker/internal/gcsuploader"
	"github.com/dvloznov/commission-tracker/internal/infra"
	"github.com/dvloznov/commission-tracker/internal/jobs"
	"github.com/dvloznov/commission-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/commission-tracker/internal/logger"
	"github.com/dvloznov/commission-tracker/internal/pipeline"
)

const pollInterval = 250 * time.Millisecond

// worker imports a set of exports already stored in GCS through the job
// queue, so each export gets the queue's retry behaviour, and exits once
// every job has finished.
func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	store := flag.String("store", cfg.Store, "Repository backend: memory or bigquery (or set STORE env)")
	workers := flag.Int("workers", cfg.QueueWorkers, "Concurrent import workers")
	retries := flag.Int("max-retries", 3, "Retries per export before the job fails")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: worker [flags] gs://bucket/export.csv ...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	cfg.Store = *store

	uris := flag.Args()
	if len(uris) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	for _, uri := range uris {
		if !strings.HasPrefix(uri, "gs://") {
			log.Fatal().Str("gcs_uri", uri).Msg("Only gs:// URIs are supported")
		}
	}

	// Create context that cancels on interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	repo, err := infra.OpenRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open repository")
	}
	defer repo.Close()

	svc := commission.NewService(repo, log)
	importPipeline := pipeline.NewImportPipeline(gcsuploader.NewGCSStorageService(), svc)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(len(uris), jobStore, inmemory.WithWorkers(*workers))
	if err := jobQueue.Start(ctx, pipeline.NewImportHandler(importPipeline, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Int("exports", len(uris)).Msg("Starting worker")

	ids := make([]string, 0, len(uris))
	for _, uri := range uris {
		job := &jobs.ImportJob{SourceURI: uri, MaxRetries: *retries}
		if err := jobQueue.PublishImport(ctx, job); err != nil {
			log.Fatal().Err(err).Str("gcs_uri", uri).Msg("Failed to enqueue import")
		}
		ids = append(ids, job.JobID)
	}

	finished, err := waitForJobs(ctx, jobStore, ids)
	if err != nil {
		log.Error().Err(err).Msg("Interrupted before all imports finished")
	}

	// Stop the queue and wait for in-flight jobs
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	if failed := report(log, finished); failed > 0 || err != nil {
		os.Exit(1)
	}
}

// waitForJobs polls the store until every job is completed or failed.
func waitForJobs(ctx context.Context, store jobs.JobStore, ids []string) ([]*jobs.ImportJob, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		finished := make([]*jobs.ImportJob, 0, len(ids))
		for _, id := range ids {
			job, err := store.GetJob(ctx, id)
			if err != nil {
				return finished, err
			}
			if job.Status == jobs.JobStatusCompleted || job.Status == jobs.JobStatusFailed {
				finished = append(finished, job)
			}
		}
		if len(finished) == len(ids) {
			return finished, nil
		}

		select {
		case <-ctx.Done():
			return finished, ctx.Err()
		case <-ticker.C:
		}
	}
}

func report(log zerolog.Logger, finished []*jobs.ImportJob) int {
	failed := 0
	for _, job := range finished {
		event := log.Info()
		if job.Status == jobs.JobStatusFailed {
			failed++
			event = log.Error().Str("error", job.Error)
		}
		if job.Result != nil {
			event = event.
				Int("inserted", job.Result.Inserted).
				Int("duplicates", job.Result.Duplicates).
				Int("skipped", job.Result.Skipped)
		}
		event.
			Str("job_id", job.JobID).
			Str("gcs_uri", job.SourceURI).
			Str("status", string(job.Status)).
			Int("retries", job.RetryCount).
			Msg("Import finished")
	}
	return failed
}
