package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/commission-tracker/internal/commission"
	"github.com/dvloznov/commission-tracker/internal/config"
	"github.com/dvloznov/commission-tracker/internal/domain"
	"github.com/dvloznov/commission-tracker/internal/gcsuploader"
	"github.com/dvloznov/commission-tracker/internal/pipeline"
	"github.com/dvloznov/commission-tracker/internal/retention"
)

func runImport(log zerolog.Logger, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	source := fs.String("source", "", "Local CSV path or gs:// URI of the export")
	filename := fs.String("filename", "", "Filename recorded on the batch (defaults to the source name)")
	fs.Parse(args)

	if *source == "" && fs.NArg() > 0 {
		*source = fs.Arg(0)
	}
	if *source == "" {
		log.Fatal().Msg("Usage: cli import [-filename NAME] PATH|gs://bucket/object")
	}

	ctx, cancel := commandContext(log, 5*time.Minute)
	defer cancel()

	svc, closeRepo := openService(ctx, log, cfg)
	defer closeRepo()

	p := pipeline.NewImportPipeline(gcsuploader.NewGCSStorageService(), svc)
	state := &pipeline.PipelineState{SourceURI: *source, Filename: *filename}

	log.Info().Str("source", *source).Msg("Starting import")
	if err := p.Execute(ctx, state); err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	renderIngestResult(os.Stdout, state.Filename, state.Result)
}

func runUpload(log zerolog.Logger, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", cfg.GCSBucket, "GCS bucket name (or set GCS_BUCKET env)")
	objectName := fs.String("object", "", "GCS object name (defaults to the dated export path)")
	filePath := fs.String("file", "", "Path to local CSV export")
	fs.Parse(args)

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}
	if *objectName == "" {
		*objectName = gcsuploader.ExportObjectName(uuid.New().String(), filepath.Base(*filePath), time.Now())
	}

	ctx, cancel := commandContext(log, 5*time.Minute)
	defer cancel()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := gcsuploader.NewGCSStorageService().UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, *bucketName, *objectName)
}

func runDevices(log zerolog.Logger, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("devices", flag.ExitOnError)
	store := fs.String("store", "", "Only devices sold at this store")
	saleType := fs.String("sale-type", "", "Only devices with this sale type")
	from := fs.String("activated-from", "", "Activation date lower bound (YYYY-MM-DD)")
	to := fs.String("activated-to", "", "Activation date upper bound (YYYY-MM-DD)")
	category := fs.String("category", "", "overdue or withheld")
	fs.Parse(args)

	activation, err := domain.ParseDateRange(*from, *to)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid activation range")
	}
	cat, err := domain.ParseSummaryCategory(*category)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid category")
	}

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	svc, closeRepo := openService(ctx, log, cfg)
	defer closeRepo()

	summaries, err := svc.Summaries(ctx, domain.SummaryFilter{
		Store:           *store,
		SaleType:        *saleType,
		ActivationRange: activation,
		Category:        cat,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list devices")
	}
	renderDevices(os.Stdout, summaries)
}

func runAlerts(log zerolog.Logger, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("alerts", flag.ExitOnError)
	device := fs.String("imei", "", "Only alerts for this device")
	alertType := fs.String("type", "", "sequence_gap, overdue or negative")
	severity := fs.String("severity", "", "high, medium or low")
	hideAck := fs.Bool("hide-acknowledged", false, "Hide alerts of acknowledged devices")
	fs.Parse(args)

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	svc, closeRepo := openService(ctx, log, cfg)
	defer closeRepo()

	alerts, err := svc.Alerts(ctx, commission.AlertFilter{
		DeviceID:         *device,
		Type:             domain.AlertType(*alertType),
		Severity:         domain.Severity(*severity),
		HideAcknowledged: *hideAck,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list alerts")
	}
	renderAlerts(os.Stdout, alerts)
}

func runMetrics(log zerolog.Logger, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	start := fs.String("start-date", "", "Payment date lower bound (YYYY-MM-DD)")
	end := fs.String("end-date", "", "Payment date upper bound (YYYY-MM-DD)")
	store := fs.String("store", "", "Only payments from this store")
	category := fs.String("category", "", "earned or withheld")
	fs.Parse(args)

	payments, err := domain.ParseDateRange(*start, *end)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid date range")
	}
	cat, err := domain.ParseMetricsCategory(*category)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid category")
	}

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	svc, closeRepo := openService(ctx, log, cfg)
	defer closeRepo()

	m, err := svc.Metrics(ctx, domain.MetricsFilter{PaymentRange: payments, Store: *store, Category: cat})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute metrics")
	}
	renderMetrics(os.Stdout, m)
}

func runAnnotate(log zerolog.Logger, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("annotate", flag.ExitOnError)
	device := fs.String("imei", "", "Device IMEI (required)")
	notes := fs.String("notes", "", "Free-form notes")
	customerName := fs.String("customer-name", "", "Customer name")
	customerNumber := fs.String("customer-number", "", "Customer phone number")
	customerEmail := fs.String("customer-email", "", "Customer email")
	resolved := fs.Bool("withholding-resolved", false, "Withholding has been resolved")
	acknowledged := fs.Bool("alerts-acknowledged", false, "Alerts have been acknowledged")
	suspended := fs.Bool("suspended", false, "Line is suspended")
	deactivated := fs.Bool("deactivated", false, "Line is deactivated")
	blacklisted := fs.Bool("blacklisted", false, "Device is blacklisted")
	byod := fs.Bool("byod", false, "Device was a BYOD swap")
	fs.Parse(args)

	if *device == "" {
		log.Fatal().Msg("Error: --imei is required")
	}

	patch := annotationPatch(fs, map[string]*string{
		"notes":           notes,
		"customer-name":   customerName,
		"customer-number": customerNumber,
		"customer-email":  customerEmail,
	}, map[string]*bool{
		"withholding-resolved": resolved,
		"alerts-acknowledged":  acknowledged,
		"suspended":            suspended,
		"deactivated":          deactivated,
		"blacklisted":          blacklisted,
		"byod":                 byod,
	})

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	svc, closeRepo := openService(ctx, log, cfg)
	defer closeRepo()

	a, err := svc.SetAnnotation(ctx, *device, patch)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to update annotation")
	}
	renderAnnotation(os.Stdout, *a)
}

// annotationPatch includes only the flags that were given on the command
// line, so omitted flags leave the stored values untouched.
func annotationPatch(fs *flag.FlagSet, strs map[string]*string, bools map[string]*bool) domain.AnnotationPatch {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	pickStr := func(name string) *string {
		if !set[name] {
			return nil
		}
		v := strings.TrimSpace(*strs[name])
		return &v
	}
	pickBool := func(name string) *bool {
		if !set[name] {
			return nil
		}
		v := *bools[name]
		return &v
	}

	return domain.AnnotationPatch{
		Notes:               pickStr("notes"),
		CustomerName:        pickStr("customer-name"),
		CustomerNumber:      pickStr("customer-number"),
		CustomerEmail:       pickStr("customer-email"),
		WithholdingResolved: pickBool("withholding-resolved"),
		AlertsAcknowledged:  pickBool("alerts-acknowledged"),
		Suspended:           pickBool("suspended"),
		Deactivated:         pickBool("deactivated"),
		Blacklisted:         pickBool("blacklisted"),
		BYODSwap:            pickBool("byod"),
	}
}

func runSweep(log zerolog.Logger, cfg config.Config, args []string) {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	fs.Parse(args)

	ctx, cancel := commandContext(log, 5*time.Minute)
	defer cancel()

	svc, closeRepo := openService(ctx, log, cfg)
	defer closeRepo()

	result, err := retention.NewScheduler(svc, nil, 0, log).Trigger(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Retention sweep failed")
	}
	renderPurge(os.Stdout, result)
}
