package sqlitemigrate

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func TestApplyMigrationsRunsOncePerFile(t *testing.T) {
	migrationFS := fstest.MapFS{
		"engine/0001_init.sql": &fstest.MapFile{Data: []byte(`
-- +migrate Up
CREATE TABLE widgets (id TEXT PRIMARY KEY);
-- +migrate Down
DROP TABLE widgets;
`)},
		"engine/0002_seed.sql": &fstest.MapFile{Data: []byte(`
-- +migrate Up
INSERT INTO widgets (id) VALUES ('w1');
`)},
	}

	sqlDB := openTestDB(t)
	if err := ApplyMigrations(sqlDB, migrationFS, "engine"); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	// A second apply must not re-run the insert.
	if err := ApplyMigrations(sqlDB, migrationFS, "engine"); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	var count int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM widgets").Scan(&count); err != nil {
		t.Fatalf("count widgets: %v", err)
	}
	if count != 1 {
		t.Fatalf("widgets count = %d, want 1", count)
	}
}

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id TEXT);\n-- +migrate Down\nDROP TABLE a;\n"
	up := ExtractUpMigration(content)
	if up != "\nCREATE TABLE a (id TEXT);\n" {
		t.Fatalf("unexpected up migration: %q", up)
	}

	plain := "CREATE TABLE b (id TEXT);"
	if ExtractUpMigration(plain) != plain {
		t.Fatal("content without sections should pass through unchanged")
	}
}

func TestIsAlreadyExistsError(t *testing.T) {
	if !IsAlreadyExistsError(errors.New("table widgets already exists")) {
		t.Fatal("already exists errors should be treated as idempotent DDL")
	}
	if IsAlreadyExistsError(errors.New("syntax error")) {
		t.Fatal("syntax errors should not pass as already-exists")
	}
}
