package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvloznov/commission-tracker/internal/logger"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_create_transactions.sql", true, 1, "create_transactions"},
		{"0012_add_index.sql", true, 12, "add_index"},
		{"001_invalid.sql", false, 0, ""},       // wrong number format
		{"0001_test", false, 0, ""},             // missing .sql
		{"0001.sql", false, 0, ""},              // missing name
		{"invalid_0001_test.sql", false, 0, ""}, // wrong order
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.valid {
				t.Fatalf("expected valid=%v, got %v", tt.valid, ok)
			}
			if version != tt.version || name != tt.name {
				t.Errorf("expected (%d, %q), got (%d, %q)", tt.version, tt.name, version, name)
			}
		})
	}
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"0002_create_device_annotations.sql": "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.device_annotations` (imei STRING);",
		"0001_create_transactions.sql":       "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.transactions` (imei STRING);",
		"README.md":                          "not a migration",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	migrations, err := readMigrations(dir, "proj", "commissions", logger.NewWithWriter(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("readMigrations: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("expected migrations sorted by version, got %d then %d", migrations[0].Version, migrations[1].Version)
	}
	if !strings.Contains(migrations[0].SQL, "`proj.commissions.transactions`") {
		t.Errorf("placeholders not rendered: %s", migrations[0].SQL)
	}

	again, _ := readMigrations(dir, "other", "elsewhere", logger.NewWithWriter(&bytes.Buffer{}))
	if again[0].Checksum != migrations[0].Checksum {
		t.Error("checksum must not depend on project or dataset")
	}
}

func TestPendingAndChanged(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Filename: "0001_a.sql", Checksum: "aaa"},
		{Version: 2, Filename: "0002_b.sql", Checksum: "bbb"},
		{Version: 3, Filename: "0003_c.sql", Checksum: "ccc"},
	}
	applied := []AppliedMigration{
		{Version: 1, Checksum: "aaa"},
		{Version: 2, Checksum: "old"},
	}

	pending := pendingMigrations(migrations, applied)
	if len(pending) != 1 || pending[0].Version != 3 {
		t.Fatalf("expected only migration 3 pending, got %+v", pending)
	}

	changed := changedSinceApplied(migrations, applied)
	if len(changed) != 1 || changed[0].Version != 2 {
		t.Fatalf("expected migration 2 to be flagged as changed, got %+v", changed)
	}
}

func TestRenderSQL(t *testing.T) {
	got := renderSQL("SELECT * FROM `{{PROJECT_ID}}.{{DATASET_ID}}.t`", "p", "d")
	if got != "SELECT * FROM `p.d.t`" {
		t.Errorf("unexpected render: %s", got)
	}
}
