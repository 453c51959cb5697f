package storage

import (
	"context"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedLanguages inserts the languages most tests translate between.
func seedLanguages(t *testing.T, s *Store) {
	t.Helper()
	err := s.UpsertLanguages(context.Background(),
		Language{Code: "spa_Latn", Name: "Spanish"},
		Language{Code: "eng_Latn", Name: "English"},
		Language{Code: "quy_Latn", Name: "Quechua", IsNative: true},
		Language{Code: "grn_Latn", Name: "Guarani", IsNative: true},
	)
	if err != nil {
		t.Fatalf("UpsertLanguages: %v", err)
	}
}

// TestMigrationsIdempotent opens the same directory twice and checks that
// no migration is applied a second time.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) == 0 || len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	for _, idx := range []string{"idx_records_cache", "idx_records_src_fold", "idx_records_dst_fold", "idx_records_created"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("007_add_things.sql")
	if err != nil {
		t.Fatalf("parseMigrationVersion: %v", err)
	}
	if v != 7 {
		t.Errorf("version = %d, want 7", v)
	}
	if _, err := parseMigrationVersion("initial.sql"); err == nil {
		t.Error("expected error for filename without version prefix")
	}
}

func TestFoldText(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"Hola Mundo", "hola mundo", true},
		{"ÑANDÚ", "ñandú", true},
		{"hola", "hola ", false},
		{"hola", "ola", false},
	}
	for _, tt := range tests {
		if got := foldText(tt.a) == foldText(tt.b); got != tt.same {
			t.Errorf("foldText(%q) == foldText(%q) is %v, want %v", tt.a, tt.b, got, tt.same)
		}
	}
}
