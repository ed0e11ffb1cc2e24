package db

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/canchat/canchat/internal/config"
)

func TestDSN(t *testing.T) {
	cfg := config.PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "chat",
		Password: "pw",
		Database: "canchat",
		SSLMode:  "disable",
	}
	want := "postgres://chat:pw@localhost:5432/canchat?sslmode=disable"
	if got := DSN(cfg); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}

func TestTextRoundTrip(t *testing.T) {
	if got := TextToString(ToPgText("")); got != "" {
		t.Errorf("empty text round trip = %q", got)
	}
	if got := TextToString(ToPgText("hello")); got != "hello" {
		t.Errorf("text round trip = %q", got)
	}
	if ToPgText("").Valid {
		t.Error("empty string should map to NULL")
	}
}

func TestTimeFromPg(t *testing.T) {
	if !TimeFromPg(pgtype.Timestamptz{}).IsZero() {
		t.Error("invalid timestamptz should map to zero time")
	}
	now := time.Now()
	if got := TimeFromPg(pgtype.Timestamptz{Time: now, Valid: true}); !got.Equal(now) {
		t.Errorf("TimeFromPg = %v, want %v", got, now)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Error("nil is not a unique violation")
	}
	if !IsUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Error("23505 should be a unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("23503 is not a unique violation")
	}
}
