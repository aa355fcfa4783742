package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMigrationFiles_Order(t *testing.T) {
	files, err := migrationFiles("../../migrations")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"001_buses.sql", "002_bus_version.sql"}
	if len(files) < len(want) {
		t.Fatalf("expected at least %d migrations, got %v", len(want), files)
	}
	for i, name := range want {
		if filepath.Base(files[i]) != name {
			t.Errorf("migration %d: got %s, want %s", i, filepath.Base(files[i]), name)
		}
	}

	if _, err := migrationFiles(t.TempDir()); err == nil {
		t.Error("expected error for an empty directory")
	}
}

// JSONB rewrites objects with sorted keys, which loses the order of the
// location properties.
func TestMigrations_StoreLocationAsJSON(t *testing.T) {
	files, err := migrationFiles("../../migrations")
	if err != nil {
		t.Fatal(err)
	}
	var all strings.Builder
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			t.Fatal(err)
		}
		all.Write(data)
	}
	sql := strings.ToUpper(all.String())
	if !strings.Contains(sql, "CURRENT_LOCATION      JSON,") {
		t.Error("buses.current_location should be created as JSON")
	}
	if !strings.Contains(sql, "ALTER COLUMN CURRENT_LOCATION TYPE JSON ") {
		t.Error("older databases should be converted to JSON")
	}
	if !strings.Contains(sql, "ADD COLUMN IF NOT EXISTS VERSION") {
		t.Error("older databases need the version column")
	}
}
