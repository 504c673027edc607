package sqlitemigrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func TestApplyMigrationsRunsOnce(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_init.sql": &fstest.MapFile{Data: []byte(`
-- +migrate Up
CREATE TABLE notes (id TEXT PRIMARY KEY);
-- +migrate Down
DROP TABLE notes;
`)},
	}
	sqlDB := openTestDB(t)

	if err := ApplyMigrations(sqlDB, fsys, ""); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	// Second run must be a no-op.
	if err := ApplyMigrations(sqlDB, fsys, ""); err != nil {
		t.Fatalf("reapply migrations: %v", err)
	}

	if _, err := sqlDB.Exec("INSERT INTO notes (id) VALUES ('a')"); err != nil {
		t.Fatalf("insert into migrated table: %v", err)
	}

	var count int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migration records: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 migration record, got %d", count)
	}
}

func TestExtractUpMigration(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "no markers returns full content",
			content: "CREATE TABLE a (id TEXT);",
			want:    "CREATE TABLE a (id TEXT);",
		},
		{
			name:    "up and down markers",
			content: "-- +migrate Up\nCREATE TABLE a (id TEXT);\n-- +migrate Down\nDROP TABLE a;",
			want:    "\nCREATE TABLE a (id TEXT);\n",
		},
		{
			name:    "up marker only",
			content: "-- +migrate Up\nCREATE TABLE a (id TEXT);",
			want:    "\nCREATE TABLE a (id TEXT);",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractUpMigration(tt.content); got != tt.want {
				t.Fatalf("extract up migration = %q, want %q", got, tt.want)
			}
		})
	}
}
