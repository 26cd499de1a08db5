// Command migrate applies the BigQuery schema in migrations/bigquery to a
// dataset, recording each applied file in schema_migrations.
package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/commission-tracker/internal/logger"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// Pattern to match migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

type config struct {
	projectID     string
	datasetID     string
	appliedBy     string
	migrationsDir string
	dryRun        bool
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	var cfg config
	flag.StringVar(&cfg.projectID, "project", os.Getenv("BQ_PROJECT"), "GCP project ID (or set BQ_PROJECT env)")
	flag.StringVar(&cfg.datasetID, "dataset", envOr("BQ_DATASET", "commissions"), "BigQuery dataset ID (or set BQ_DATASET env)")
	flag.StringVar(&cfg.appliedBy, "applied-by", "migrate-cli", "Name of the tool applying migrations")
	flag.StringVar(&cfg.migrationsDir, "migrations", "migrations/bigquery", "Path to migrations directory")
	flag.BoolVar(&cfg.dryRun, "dry-run", false, "List pending migrations without applying them")
	flag.Parse()

	log := logger.New()

	if cfg.projectID == "" {
		log.Fatal().Msg("-project flag or BQ_PROJECT is required")
	}

	if err := run(context.Background(), cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}

func run(ctx context.Context, cfg config, log zerolog.Logger) error {
	client, err := bigquery.NewClient(ctx, cfg.projectID)
	if err != nil {
		return fmt.Errorf("creating BigQuery client: %w", err)
	}
	defer client.Close()

	log.Info().Str("project", cfg.projectID).Str("dataset", cfg.datasetID).Msg("Connected to BigQuery")

	if err := execSQL(ctx, client, schemaMigrationsDDL(cfg)); err != nil {
		return fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	migrations, err := readMigrations(findMigrationsDir(cfg.migrationsDir), cfg.projectID, cfg.datasetID, log)
	if err != nil {
		return err
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	applied, err := getAppliedMigrations(ctx, client, cfg)
	if err != nil {
		return err
	}
	log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	for _, m := range changedSinceApplied(migrations, applied) {
		log.Warn().Str("migration", m.Filename).Msg("Migration file changed after it was applied")
	}

	pending := pendingMigrations(migrations, applied)
	for _, m := range pending {
		mlog := log.With().Str("migration", m.Filename).Logger()
		if cfg.dryRun {
			mlog.Info().Msg("[DRY RUN] Would apply migration")
			continue
		}

		mlog.Info().Msg("Applying migration")
		if err := execSQL(ctx, client, m.SQL); err != nil {
			return fmt.Errorf("executing %s: %w", m.Filename, err)
		}
		if err := recordMigration(ctx, client, cfg, m); err != nil {
			return fmt.Errorf("recording %s: %w", m.Filename, err)
		}
		mlog.Info().Msg("Migration applied")
	}

	if len(pending) == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else if !cfg.dryRun {
		log.Info().Int("applied", len(pending)).Msg("Migrations applied")
	}
	return nil
}

// findMigrationsDir falls back to the repository root when run from cmd/migrate.
func findMigrationsDir(dir string) string {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if alt := filepath.Join("..", "..", dir); dirExists(alt) {
			return alt
		}
	}
	return dir
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// parseMigrationFilename extracts version and name from 0001_name.sql.
func parseMigrationFilename(filename string) (int, string, bool) {
	matches := migrationPattern.FindStringSubmatch(filename)
	if matches == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, "", false
	}
	return version, matches[2], true
}

// renderSQL substitutes the project and dataset placeholders.
func renderSQL(sql, projectID, datasetID string) string {
	sql = strings.ReplaceAll(sql, "{{PROJECT_ID}}", projectID)
	return strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)
}

// readMigrations reads all migration files from dir, sorted by version.
// The checksum covers the file before placeholder substitution so the same
// migration has one checksum across projects.
func readMigrations(dir, projectID, datasetID string, log zerolog.Logger) ([]Migration, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		version, name, ok := parseMigrationFilename(file.Name())
		if !ok {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid format")
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: file.Name(),
			SQL:      renderSQL(string(content), projectID, datasetID),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func pendingMigrations(migrations []Migration, applied []AppliedMigration) []Migration {
	done := make(map[int]bool, len(applied))
	for _, am := range applied {
		done[am.Version] = true
	}
	var pending []Migration
	for _, m := range migrations {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

// changedSinceApplied returns applied migrations whose file checksum no
// longer matches the recorded one.
func changedSinceApplied(migrations []Migration, applied []AppliedMigration) []Migration {
	recorded := make(map[int]string, len(applied))
	for _, am := range applied {
		recorded[am.Version] = am.Checksum
	}
	var changed []Migration
	for _, m := range migrations {
		if sum, ok := recorded[m.Version]; ok && sum != "" && sum != m.Checksum {
			changed = append(changed, m)
		}
	}
	return changed
}

func schemaMigrationsTable(cfg config) string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", cfg.projectID, cfg.datasetID)
}

func schemaMigrationsDDL(cfg config) string {
	return `CREATE TABLE IF NOT EXISTS ` + schemaMigrationsTable(cfg) + ` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)`
}

// getAppliedMigrations retrieves the list of already applied migrations
func getAppliedMigrations(ctx context.Context, client *bigquery.Client, cfg config) ([]AppliedMigration, error) {
	query := client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + schemaMigrationsTable(cfg) + `
		ORDER BY version ASC`)
	it, err := query.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating applied migrations: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

func execSQL(ctx context.Context, client *bigquery.Client, sql string) error {
	return execQuery(ctx, client.Query(sql))
}

func execQuery(ctx context.Context, query *bigquery.Query) error {
	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

// recordMigration records a successfully applied migration in schema_migrations
func recordMigration(ctx context.Context, client *bigquery.Client, cfg config, m Migration) error {
	query := client.Query(`
		INSERT INTO ` + schemaMigrationsTable(cfg) + `
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)`)
	query.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: cfg.appliedBy},
	}
	return execQuery(ctx, query)
}
