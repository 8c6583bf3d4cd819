package db

import (
	"time"

	"gorm.io/datatypes"
)

// User is a dashboard account. Users own endpoints, live events and API
// keys; they are never deleted in-product.
type User struct {
	ID uint `gorm:"primaryKey" json:"id"`

	CreatedAt time.Time `json:"createdAt"`

	Name         string `gorm:"size:128;not null" json:"name"`
	Email        string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`

	// IsAdmin marks users that can see all tenants' data and manage API
	// keys. Mutated only through the admin promote path.
	IsAdmin bool `gorm:"default:false" json:"isAdmin"`
}

// APIKey is a bearer credential for machine producers pushing events into
// the ingestion gateway. The key value is generated once and shown to the
// creator exactly once.
type APIKey struct {
	ID uint `gorm:"primaryKey" json:"id"`

	CreatedAt time.Time `json:"createdAt"`

	UserID uint `gorm:"index;not null" json:"userId"`

	// Name is a user-friendly identifier for this key (e.g. "probe-eu-1").
	Name string `gorm:"size:128;not null" json:"name"`

	// Key is the secret token value, 32 random bytes hex encoded.
	Key string `gorm:"uniqueIndex;size:128;not null" json:"-"`

	// LastUsed is updated best-effort on every successful producer auth.
	LastUsed *time.Time `json:"lastUsed,omitempty"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// Endpoint is a tracked (ip, domain, port) triple owned by one user.
//
// Uniqueness is asymmetric on purpose: an IP may be re-registered by its
// owner but never claimed by a second user, while a domain is globally
// unique across all users including its own owner. The domain rule is
// backed by a unique index; the IP rule is a cross-owner check at write
// time (same-owner duplicates are allowed).
type Endpoint struct {
	ID uint `gorm:"primaryKey" json:"id"`

	CreatedAt time.Time `json:"createdAt"`

	UserID uint   `gorm:"index;not null" json:"userId"`
	IP     string `gorm:"index;size:64;not null" json:"ip"`
	Domain string `gorm:"uniqueIndex;size:255;not null" json:"domain"`
	Port   *int   `json:"port,omitempty"`
}

// LiveEvent is one ingested HTTP observation, addressed to one user.
// Immutable once stored, except for deletion.
//
// ID is a UUID assigned by the gateway before persist; it is the stable
// identity clients dedup on when a live push and a query-path backfill
// race over the same event.
type LiveEvent struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`

	CreatedAt time.Time `json:"createdAt"`

	UserID uint `gorm:"index;not null" json:"userId"`

	URL    string `gorm:"size:2048" json:"url"`
	Method string `gorm:"index;size:16" json:"method"`

	// Headers is a schema-less string map; the producer may vary its
	// shape freely, so it is validated for type only.
	Headers datatypes.JSONMap `gorm:"type:json" json:"headers"`
	Body    string            `json:"body,omitempty"`

	ClientIP string `gorm:"index;size:64" json:"client_ip"`

	// ServerIP is canonically a dotted string. Legacy producers sent an
	// array of octets; the gateway normalizes at the boundary and
	// NormalizeLegacyServerIPs rewrites pre-existing rows.
	ServerIP       string `gorm:"size:64" json:"server_ip"`
	ServerHostname string `gorm:"index;size:255" json:"server_hostname"`
	Port           *int   `json:"port,omitempty"`

	MatchResult string `gorm:"size:255" json:"match_result,omitempty"`

	// Timestamp is event time (producer-supplied, defaulted to receipt
	// time); CreatedAt is receipt time.
	Timestamp time.Time `gorm:"index" json:"timestamp"`
}
