package config

import (
	"strings"
	"testing"
)

func TestLoadDatabase_Defaults(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("DB_DISABLE_PREPARED_BINARY_RESULT", "")

	db, err := LoadDatabase()
	if err != nil {
		t.Fatalf("load database: %v", err)
	}
	if db.URL != defaultDBURL || !db.DisablePreparedBinary {
		t.Fatalf("unexpected defaults: %+v", db)
	}
	if db.Name() != "matchpulse" {
		t.Fatalf("unexpected db name %q", db.Name())
	}
}

func TestLoadDatabase_InvalidFlag(t *testing.T) {
	t.Setenv("DB_DISABLE_PREPARED_BINARY_RESULT", "sometimes")
	if _, err := LoadDatabase(); err == nil {
		t.Fatalf("expected error for invalid DB_DISABLE_PREPARED_BINARY_RESULT")
	}
}

func TestDatabaseDSN(t *testing.T) {
	t.Run("appends flag", func(t *testing.T) {
		db := Database{URL: "postgres://u:p@localhost:5432/matchpulse?sslmode=disable", DisablePreparedBinary: true}
		if got := db.DSN(); !strings.Contains(got, preparedBinaryResultFlag+"=yes") || !strings.Contains(got, "sslmode=disable") {
			t.Fatalf("unexpected dsn %q", got)
		}
	})

	t.Run("keeps explicit flag", func(t *testing.T) {
		in := "postgres://u:p@localhost:5432/matchpulse?" + preparedBinaryResultFlag + "=no"
		db := Database{URL: in, DisablePreparedBinary: true}
		if got := db.DSN(); got != in {
			t.Fatalf("expected dsn unchanged, got %q", got)
		}
	})

	t.Run("flag off", func(t *testing.T) {
		in := "postgres://u:p@localhost:5432/matchpulse"
		if got := (Database{URL: in}).DSN(); got != in {
			t.Fatalf("expected dsn unchanged, got %q", got)
		}
	})

	t.Run("key value string", func(t *testing.T) {
		in := "host=localhost user=postgres dbname=matchpulse sslmode=disable"
		db := Database{URL: in, DisablePreparedBinary: true}
		if got := db.DSN(); got != in {
			t.Fatalf("expected key/value dsn unchanged, got %q", got)
		}
		if db.Name() != "matchpulse" {
			t.Fatalf("unexpected db name %q", db.Name())
		}
	})
}
