package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestRunMigrations_InvalidDirection(t *testing.T) {
	err := RunMigrations(nil, "sideways")
	if err == nil || !strings.Contains(err.Error(), "invalid migration direction") {
		t.Errorf("RunMigrations() error = %v, want invalid direction", err)
	}
}

func TestEmbeddedMigrations_Paired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file in migrations: %s", name)
		}
	}
	if len(ups) == 0 {
		t.Fatal("no migrations embedded")
	}
	for v := range ups {
		if !downs[v] {
			t.Errorf("migration %s has no down file", v)
		}
	}
}

func TestSessionsMigration_CreatesTable(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/000001_create_sessions.up.sql")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, col := range []string{"id", "subject_id", "payload", "sealed_token", "expires_at"} {
		if !strings.Contains(string(data), col) {
			t.Errorf("sessions migration missing column %s", col)
		}
	}
}
