package database_test

import (
	"path/filepath"
	"testing"

	"github.com/mnemo-ai/mnemo/internal/database"
)

func TestOpen_CreatesSchema(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "knowledge.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	for _, table := range []string{"documents", "chunks"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after migration: %v", table, err)
		}
	}
}

func TestOpen_ForeignKeysEnforced(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "knowledge.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	_, err = db.Exec(
		"INSERT INTO chunks (id, document_id, sequence_index, content, embedding) VALUES (?, ?, ?, ?, ?)",
		"c1", "no-such-document", 0, "text", []byte{0},
	)
	if err == nil {
		t.Fatal("expected foreign key violation inserting orphan chunk, got nil")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.db")

	db, err := database.Open(path)
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	db.Close()

	// Reopening an already migrated database must not fail.
	db, err = database.Open(path)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	db.Close()
}
