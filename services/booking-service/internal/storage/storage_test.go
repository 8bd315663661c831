package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
)

func TestErrorClassification(t *testing.T) {
	conflict := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23P01"})
	fk := &pgconn.PgError{Code: "23503"}

	if !IsConflict(conflict) || IsConflict(fk) {
		t.Fatal("IsConflict misclassified")
	}
	if !IsForeignKey(fk) || IsForeignKey(conflict) {
		t.Fatal("IsForeignKey misclassified")
	}
	if !IsNotFound(fmt.Errorf("load: %w", pgx.ErrNoRows)) || IsNotFound(errors.New("other")) {
		t.Fatal("IsNotFound misclassified")
	}
}

func TestDecodeScheduleNullIsMissingData(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte("null")} {
		ws, err := decodeSchedule(raw)
		if err != nil || ws != nil {
			t.Fatalf("expected nil schedule for %q, got %v err=%v", raw, ws, err)
		}
	}
}

func TestScheduleRoundTrip(t *testing.T) {
	raw, err := encodeSchedule(availability.DefaultWeeklySchedule())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ws, err := decodeSchedule(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := ws.Validate(); err != nil {
		t.Fatalf("decoded schedule invalid: %v", err)
	}
	if !ws["monday"].IsWorking || ws["sunday"].IsWorking {
		t.Fatalf("unexpected schedule: %v", ws)
	}

	if raw, _ := encodeSchedule(nil); raw != nil {
		t.Fatalf("nil schedule should encode as NULL, got %q", raw)
	}
	if _, err := decodeSchedule([]byte("{bad")); err == nil {
		t.Fatal("expected decode error")
	}
}
