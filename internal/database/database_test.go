package database

import (
	"path/filepath"
	"testing"
)

func TestOpenMemoryRunsMigrations(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"users", "projects", "tasks", "goals", "expenses", "activities", "notifications", "notification_preferences"} {
		var n int
		err := db.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		if err != nil {
			t.Fatalf("lookup %s: %v", table, err)
		}
		if n != 1 {
			t.Errorf("table %s missing", table)
		}
	}

	var fk int
	if err := db.Get(&fk, `PRAGMA foreign_keys`); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if fk != 1 {
		t.Error("foreign keys not enabled")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coretrack.db")

	first, err := Migrate(path)
	if err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	second, err := Migrate(path)
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if first == 0 || first != second {
		t.Errorf("versions = %d then %d, want the same non-zero version", first, second)
	}
}
