package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/commission-tracker/internal/commission"
	"github.com/dvloznov/commission-tracker/internal/config"
	"github.com/dvloznov/commission-tracker/internal/infra"
	"github.com/dvloznov/commission-tracker/internal/logger"
	"github.com/dvloznov/commission-tracker/internal/notionsync"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Parse CLI flags
	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (or set NOTION_TOKEN env)")
	notionDBID := flag.String("notion-db-id", cfg.NotionDBID, "Notion database ID (or set NOTION_DB_ID env)")
	retries := flag.Int("retries", notionsync.DefaultRetries, "Retries for rate-limited Notion requests")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	// Validate required flags
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("store", cfg.Store).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	repo, err := infra.OpenRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open repository")
	}
	defer repo.Close()

	svc := commission.NewService(repo, log)
	notionClient := notionsync.NewNotionClient(*notionToken, *retries)

	result, err := notionsync.SyncDevices(ctx, svc, notionClient, *notionDBID, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed.\n",
		result.Created, result.Updated, result.Archived, result.Failed)
}
