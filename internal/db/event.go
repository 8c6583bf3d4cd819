package db

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// queryLimit caps the query path. Truncation past the cap is silent; the
// client narrows with filters instead of paging.
const queryLimit = 1000

// EventFilter holds the independently optional query-path filters.
type EventFilter struct {
	// Start/End bound Timestamp inclusively.
	Start *time.Time
	End   *time.Time

	// ServerHost and ServerIP are case-insensitive substring matches.
	ServerHost string
	ServerIP   string

	// Method is an exact match.
	Method string
}

// InsertEvent persists one live event.
func InsertEvent(db *gorm.DB, ev *LiveEvent) error {
	return db.Create(ev).Error
}

// QueryEvents returns ownerID's events matching the filter, newest first,
// capped at 1000 rows. The owner predicate is part of the query itself;
// results are never filtered after the fact.
func QueryEvents(db *gorm.DB, ownerID uint, f EventFilter) ([]LiveEvent, error) {
	q := db.Where("user_id = ?", ownerID)

	if f.Start != nil {
		q = q.Where("timestamp >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("timestamp <= ?", *f.End)
	}
	if f.ServerHost != "" {
		q = q.Where("LOWER(server_hostname) LIKE ?", "%"+strings.ToLower(f.ServerHost)+"%")
	}
	if f.ServerIP != "" {
		q = q.Where("LOWER(server_ip) LIKE ?", "%"+strings.ToLower(f.ServerIP)+"%")
	}
	if f.Method != "" {
		q = q.Where("method = ?", f.Method)
	}

	var events []LiveEvent
	if err := q.Order("timestamp DESC").Limit(queryLimit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// DeleteEvents removes the given ids where ownerID owns the row. The count
// may be less than len(ids); ids owned by other tenants or already gone are
// skipped silently, not an error.
func DeleteEvents(db *gorm.DB, ownerID uint, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.Where("id IN ? AND user_id = ?", ids, ownerID).Delete(&LiveEvent{})
	return res.RowsAffected, res.Error
}

// DeleteAllEvents removes every event owned by ownerID.
func DeleteAllEvents(db *gorm.DB, ownerID uint) (int64, error) {
	res := db.Where("user_id = ?", ownerID).Delete(&LiveEvent{})
	return res.RowsAffected, res.Error
}

// AdminEvent is a live event joined with its addressee's identity, for the
// cross-tenant admin listing.
type AdminEvent struct {
	LiveEvent
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

// AdminListEvents returns every tenant's events, newest first, with owner
// name and email joined in.
func AdminListEvents(db *gorm.DB) ([]AdminEvent, error) {
	var events []LiveEvent
	if err := db.Order("timestamp DESC").Find(&events).Error; err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(events))
	seen := make(map[uint]bool)
	for _, ev := range events {
		if !seen[ev.UserID] {
			seen[ev.UserID] = true
			ids = append(ids, ev.UserID)
		}
	}

	users := make(map[uint]User)
	if len(ids) > 0 {
		var rows []User
		if err := db.Select("id", "name", "email").Where("id IN ?", ids).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, u := range rows {
			users[u.ID] = u
		}
	}

	out := make([]AdminEvent, 0, len(events))
	for _, ev := range events {
		ae := AdminEvent{LiveEvent: ev, UserName: "Unknown", UserEmail: "Unknown"}
		if u, ok := users[ev.UserID]; ok {
			ae.UserName = u.Name
			ae.UserEmail = u.Email
		}
		out = append(out, ae)
	}
	return out, nil
}
