package migrations

import (
	"strings"
	"testing"
)

func TestEmbeddedSchema(t *testing.T) {
	names, err := Names()
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) == 0 || names[0] != "0001_init.sql" {
		t.Fatalf("unexpected migrations: %v", names)
	}

	body, err := files.ReadFile(names[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, table := range []string{"shops", "staff", "staff_leaves", "shop_services", "bookings", "booking_idempotency_keys", "outbox_events"} {
		if !strings.Contains(string(body), "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("schema is missing table %s", table)
		}
	}
	if !strings.Contains(string(body), "int4range(start_minute, end_minute) WITH &&") {
		t.Fatal("bookings must carry the overlap exclusion constraint")
	}
}
