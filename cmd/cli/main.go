package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/commission-tracker/internal/commission"
	"github.com/dvloznov/commission-tracker/internal/config"
	"github.com/dvloznov/commission-tracker/internal/infra"
	"github.com/dvloznov/commission-tracker/internal/logger"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if configured, err := logger.NewFromConfig(cfg.Log, os.Stderr); err == nil {
		log = configured
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "import":
		runImport(log, cfg, args)
	case "upload":
		runUpload(log, cfg, args)
	case "devices":
		runDevices(log, cfg, args)
	case "alerts":
		runAlerts(log, cfg, args)
	case "metrics":
		runMetrics(log, cfg, args)
	case "annotate":
		runAnnotate(log, cfg, args)
	case "sweep":
		runSweep(log, cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Commission Tracker CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  import    Import a commission export from a local file or gs:// URI")
	fmt.Println("  upload    Upload a commission export to GCS")
	fmt.Println("  devices   List device payout timelines")
	fmt.Println("  alerts    List payment alerts")
	fmt.Println("  metrics   Show dashboard totals")
	fmt.Println("  annotate  Update a device's notes and flags")
	fmt.Println("  sweep     Purge devices whose six payments are complete")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
	fmt.Println("\nThe repository is chosen by STORE (memory or bigquery). With STORE=memory,")
	fmt.Println("set SNAPSHOT_PATH so data survives between invocations.")
}

// openService opens the configured repository. The returned func closes it.
func openService(ctx context.Context, log zerolog.Logger, cfg config.Config) (*commission.Service, func()) {
	if cfg.Store == config.StoreMemory && cfg.SnapshotPath == "" {
		log.Warn().Msg("SNAPSHOT_PATH not set - the memory store starts empty and is discarded on exit")
	}
	repo, err := infra.OpenRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open repository")
	}
	return commission.NewService(repo, log), func() { _ = repo.Close() }
}

func commandContext(log zerolog.Logger, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return logger.WithContext(ctx, log), cancel
}
