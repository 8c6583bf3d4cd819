package db

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func seedEvent(t *testing.T, gdb *gorm.DB, ownerID uint, mutate func(*LiveEvent)) *LiveEvent {
	t.Helper()
	ev := &LiveEvent{
		ID:             uuid.NewString(),
		UserID:         ownerID,
		URL:            "/api/orders",
		Method:         "GET",
		ClientIP:       "198.51.100.7",
		ServerIP:       "203.0.113.10",
		ServerHostname: "shop.example.com",
		MatchResult:    "ip",
		Timestamp:      time.Now().UTC(),
	}
	if mutate != nil {
		mutate(ev)
	}
	if err := InsertEvent(gdb, ev); err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return ev
}

func TestQueryEventsScopedToOwner(t *testing.T) {
	gdb := openTestDB(t)
	u1 := mustCreateUser(t, gdb, "one@example.com")
	u2 := mustCreateUser(t, gdb, "two@example.com")

	mine := seedEvent(t, gdb, u1.ID, nil)
	seedEvent(t, gdb, u2.ID, nil)

	events, err := QueryEvents(gdb, u1.ID, EventFilter{})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].ID != mine.ID {
		t.Errorf("event id = %s, want %s", events[0].ID, mine.ID)
	}
}

func TestQueryEventsFilters(t *testing.T) {
	gdb := openTestDB(t)
	u := mustCreateUser(t, gdb, "filters@example.com")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := seedEvent(t, gdb, u.ID, func(ev *LiveEvent) {
		ev.Timestamp = base.Add(-48 * time.Hour)
		ev.Method = "POST"
		ev.ServerHostname = "api.example.com"
		ev.ServerIP = "192.0.2.50"
	})
	recent := seedEvent(t, gdb, u.ID, func(ev *LiveEvent) {
		ev.Timestamp = base
		ev.Method = "GET"
		ev.ServerHostname = "shop.example.com"
		ev.ServerIP = "203.0.113.10"
	})

	start := base.Add(-time.Hour)
	end := base.Add(time.Hour)

	tests := []struct {
		name   string
		filter EventFilter
		want   []string
	}{
		{"no filter returns all newest first", EventFilter{}, []string{recent.ID, old.ID}},
		{"start bound", EventFilter{Start: &start}, []string{recent.ID}},
		{"end bound", EventFilter{End: &start}, []string{old.ID}},
		{"start and end", EventFilter{Start: &start, End: &end}, []string{recent.ID}},
		{"host substring case-insensitive", EventFilter{ServerHost: "SHOP"}, []string{recent.ID}},
		{"host substring mid-string", EventFilter{ServerHost: "example"}, []string{recent.ID, old.ID}},
		{"server ip substring", EventFilter{ServerIP: "192.0.2"}, []string{old.ID}},
		{"method exact", EventFilter{Method: "POST"}, []string{old.ID}},
		{"method is not substring", EventFilter{Method: "POS"}, nil},
		{"filters combine with AND", EventFilter{Method: "GET", ServerHost: "api"}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			events, err := QueryEvents(gdb, u.ID, tc.filter)
			if err != nil {
				t.Fatalf("QueryEvents: %v", err)
			}
			if len(events) != len(tc.want) {
				t.Fatalf("got %d events, want %d", len(events), len(tc.want))
			}
			for i, id := range tc.want {
				if events[i].ID != id {
					t.Errorf("events[%d].ID = %s, want %s", i, events[i].ID, id)
				}
			}
		})
	}
}

func TestQueryEventsCap(t *testing.T) {
	gdb := openTestDB(t)
	u := mustCreateUser(t, gdb, "cap@example.com")

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	total := queryLimit + 5
	rows := make([]LiveEvent, 0, total)
	for i := 0; i < total; i++ {
		rows = append(rows, LiveEvent{
			ID:             uuid.NewString(),
			UserID:         u.ID,
			URL:            fmt.Sprintf("/req/%d", i),
			Method:         "GET",
			ServerHostname: "bulk.example.com",
			Timestamp:      base.Add(time.Duration(i) * time.Second),
		})
	}
	if err := gdb.CreateInBatches(rows, 200).Error; err != nil {
		t.Fatalf("bulk insert: %v", err)
	}

	events, err := QueryEvents(gdb, u.ID, EventFilter{})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(events) != queryLimit {
		t.Fatalf("got %d events, want %d", len(events), queryLimit)
	}
	// Newest first means the oldest five rows fall off.
	if events[0].URL != fmt.Sprintf("/req/%d", total-1) {
		t.Errorf("first event = %s, want newest row", events[0].URL)
	}
	if events[len(events)-1].URL != fmt.Sprintf("/req/%d", total-queryLimit) {
		t.Errorf("last event = %s, want row %d", events[len(events)-1].URL, total-queryLimit)
	}
}

func TestDeleteEventsScopedToOwner(t *testing.T) {
	gdb := openTestDB(t)
	u1 := mustCreateUser(t, gdb, "del1@example.com")
	u2 := mustCreateUser(t, gdb, "del2@example.com")

	mine := seedEvent(t, gdb, u1.ID, nil)
	theirs := seedEvent(t, gdb, u2.ID, nil)

	// Foreign and unknown ids reduce the count instead of failing.
	count, err := DeleteEvents(gdb, u1.ID, []string{mine.ID, theirs.ID, uuid.NewString()})
	if err != nil {
		t.Fatalf("DeleteEvents: %v", err)
	}
	if count != 1 {
		t.Errorf("deleted %d rows, want 1", count)
	}

	var survivors []LiveEvent
	if err := gdb.Find(&survivors).Error; err != nil {
		t.Fatal(err)
	}
	if len(survivors) != 1 || survivors[0].ID != theirs.ID {
		t.Errorf("survivors = %v, want only the other tenant's event", survivors)
	}
}

func TestDeleteEventsEmptyIDs(t *testing.T) {
	gdb := openTestDB(t)
	u := mustCreateUser(t, gdb, "noop@example.com")
	seedEvent(t, gdb, u.ID, nil)

	count, err := DeleteEvents(gdb, u.ID, nil)
	if err != nil {
		t.Fatalf("DeleteEvents: %v", err)
	}
	if count != 0 {
		t.Errorf("deleted %d rows, want 0", count)
	}
}

func TestDeleteAllEventsScopedToOwner(t *testing.T) {
	gdb := openTestDB(t)
	u1 := mustCreateUser(t, gdb, "wipe1@example.com")
	u2 := mustCreateUser(t, gdb, "wipe2@example.com")

	seedEvent(t, gdb, u1.ID, nil)
	seedEvent(t, gdb, u1.ID, nil)
	kept := seedEvent(t, gdb, u2.ID, nil)

	count, err := DeleteAllEvents(gdb, u1.ID)
	if err != nil {
		t.Fatalf("DeleteAllEvents: %v", err)
	}
	if count != 2 {
		t.Errorf("deleted %d rows, want 2", count)
	}

	var survivors []LiveEvent
	if err := gdb.Find(&survivors).Error; err != nil {
		t.Fatal(err)
	}
	if len(survivors) != 1 || survivors[0].ID != kept.ID {
		t.Errorf("survivors = %v, want only the other tenant's event", survivors)
	}
}

func TestAdminListEventsJoinsOwners(t *testing.T) {
	gdb := openTestDB(t)
	u := mustCreateUser(t, gdb, "joined@example.com")

	seedEvent(t, gdb, u.ID, func(ev *LiveEvent) {
		ev.Timestamp = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	})
	// Addressee deleted after delivery; the listing still shows the row.
	seedEvent(t, gdb, u.ID+1000, func(ev *LiveEvent) {
		ev.Timestamp = time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	})

	events, err := AdminListEvents(gdb)
	if err != nil {
		t.Fatalf("AdminListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].UserName != "Unknown" || events[0].UserEmail != "Unknown" {
		t.Errorf("orphan event owner = %s/%s, want Unknown", events[0].UserName, events[0].UserEmail)
	}
	if events[1].UserName != "Test joined@example.com" || events[1].UserEmail != "joined@example.com" {
		t.Errorf("joined owner = %s/%s", events[1].UserName, events[1].UserEmail)
	}
}
