package db

import (
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"packetwatch/internal/config"
)

// Connect opens a GORM database connection using APP_DATABASE_URL (PostgreSQL URL).
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		return nil, errors.New("APP_DATABASE_URL is required (PostgreSQL URL)")
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil, errors.New("APP_DATABASE_URL must be a postgres:// or postgresql:// URL")
	}

	// TranslateError turns driver duplicate-key failures into
	// gorm.ErrDuplicatedKey, which is the backstop for the uniqueness
	// invariants when two registrations race past the read-then-write check.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{PrepareStmt: true, TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&User{}, &APIKey{}, &Endpoint{}, &LiveEvent{}); err != nil {
		return nil, err
	}

	return db, nil
}

// EnsureBootstrapAdmin makes sure there is at least one admin user
// corresponding to the bootstrap credentials in config. If a user with
// that email already exists, it is left as-is.
func EnsureBootstrapAdmin(db *gorm.DB, cfg *config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	var count int64
	if err := db.Model(&User{}).Where("email = ?", cfg.AdminEmail).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &User{
		Name:         cfg.AdminName,
		Email:        cfg.AdminEmail,
		PasswordHash: string(hash),
		IsAdmin:      true,
	}

	return db.Create(admin).Error
}

// NormalizeLegacyServerIPs rewrites live events whose server_ip was stored
// in the legacy array-of-octets shape (`["127","0","0","1"]`) into the
// canonical dotted string. Runs once at startup; rows already in canonical
// form are untouched.
func NormalizeLegacyServerIPs(db *gorm.DB) (int64, error) {
	var rows []LiveEvent
	if err := db.Select("id", "server_ip").Where("server_ip LIKE ?", "[%").Find(&rows).Error; err != nil {
		return 0, err
	}

	var fixed int64
	for _, row := range rows {
		var octets []string
		if err := json.Unmarshal([]byte(row.ServerIP), &octets); err != nil {
			// Not the shape we expect; leave the row alone.
			continue
		}
		normalized := strings.Join(octets, ".")
		if err := db.Model(&LiveEvent{}).Where("id = ?", row.ID).
			Update("server_ip", normalized).Error; err != nil {
			return fixed, err
		}
		fixed++
	}
	return fixed, nil
}
