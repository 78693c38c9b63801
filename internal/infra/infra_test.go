package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestRandomSequenceFormat(t *testing.T) {
	at := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	re := regexp.MustCompile(`^TRIP-20260314-\d{4}$`)
	for i := 0; i < 20; i++ {
		got, err := RandomSequence{}.Next(context.Background(), "TRIP", at)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !re.MatchString(got) {
			t.Fatalf("unexpected number %q", got)
		}
	}
}

func TestFormatNumberPads(t *testing.T) {
	at := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	if got := formatNumber("ORD", at, 7); got != "ORD-20260102-0007" {
		t.Fatalf("got %q", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "trip_routes_trip_number_key"}
	if !IsUniqueViolation(err, "") {
		t.Error("expected any-constraint match")
	}
	if !IsUniqueViolation(err, "trip_routes_trip_number_key") {
		t.Error("expected named match")
	}
	if IsUniqueViolation(err, "other") {
		t.Error("unexpected match on other constraint")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Error("foreign key violation is not a unique violation")
	}
}

func TestLoggerJSONShape(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "truckmatch-api", "debug")
	log.Debug("hello", "trip_id", "t1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for _, key := range []string{"timestamp", "message", "service", "host", "trip_id"} {
		if _, ok := line[key]; !ok {
			t.Errorf("missing %q in %v", key, line)
		}
	}
	if line["message"] != "hello" {
		t.Errorf("message = %v", line["message"])
	}
}
