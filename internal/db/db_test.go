package db

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"packetwatch/internal/config"
)

// openTestDB returns an isolated in-memory database with the full schema.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Each sqlite connection gets its own :memory: database; pin the pool
	// to one connection so every query sees the same schema.
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.AutoMigrate(&User{}, &APIKey{}, &Endpoint{}, &LiveEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// mustCreateUser seeds a user and returns it.
func mustCreateUser(t *testing.T, gdb *gorm.DB, email string) *User {
	t.Helper()
	user, err := CreateUser(gdb, "Test "+email, email, "hunter22")
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	gdb := openTestDB(t)
	cfg := &config.Config{
		AdminName:     "Root",
		AdminEmail:    "root@example.com",
		AdminPassword: "bootstrap",
	}

	if err := EnsureBootstrapAdmin(gdb, cfg); err != nil {
		t.Fatalf("EnsureBootstrapAdmin: %v", err)
	}

	admin, err := Authenticate(gdb, "root@example.com", "bootstrap")
	if err != nil {
		t.Fatalf("authenticate bootstrap admin: %v", err)
	}
	if !admin.IsAdmin {
		t.Error("bootstrap user is not admin")
	}

	// Idempotent: a second run leaves the existing row alone.
	if err := EnsureBootstrapAdmin(gdb, cfg); err != nil {
		t.Fatalf("second EnsureBootstrapAdmin: %v", err)
	}
	var count int64
	if err := gdb.Model(&User{}).Where("email = ?", cfg.AdminEmail).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("admin rows = %d, want 1", count)
	}
}

func TestNormalizeLegacyServerIPs(t *testing.T) {
	gdb := openTestDB(t)
	u := mustCreateUser(t, gdb, "a@example.com")

	rows := []LiveEvent{
		{ID: "legacy-1", UserID: u.ID, ServerIP: `["192","168","1","100"]`},
		{ID: "legacy-2", UserID: u.ID, ServerIP: `["10","0","0","1"]`},
		{ID: "canonical", UserID: u.ID, ServerIP: "172.16.0.1"},
		{ID: "garbage", UserID: u.ID, ServerIP: "[not json"},
	}
	for i := range rows {
		if err := InsertEvent(gdb, &rows[i]); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	fixed, err := NormalizeLegacyServerIPs(gdb)
	if err != nil {
		t.Fatalf("NormalizeLegacyServerIPs: %v", err)
	}
	if fixed != 2 {
		t.Errorf("fixed = %d, want 2", fixed)
	}

	want := map[string]string{
		"legacy-1":  "192.168.1.100",
		"legacy-2":  "10.0.0.1",
		"canonical": "172.16.0.1",
		"garbage":   "[not json",
	}
	for id, ip := range want {
		var ev LiveEvent
		if err := gdb.First(&ev, "id = ?", id).Error; err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
		if ev.ServerIP != ip {
			t.Errorf("%s server_ip = %q, want %q", id, ev.ServerIP, ip)
		}
	}

	// Second run is a no-op.
	fixed, err = NormalizeLegacyServerIPs(gdb)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if fixed != 0 {
		t.Errorf("second run fixed = %d, want 0", fixed)
	}
}
