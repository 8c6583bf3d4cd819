package db

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"gorm.io/gorm"

	"packetwatch/internal/apperr"
)

// GenerateKey returns a fresh API key secret: 32 random bytes, hex encoded.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateAPIKey mints a new key for owner. The returned record carries the
// secret; this is the only time it leaves the store in the clear at the
// API surface.
func CreateAPIKey(db *gorm.DB, ownerID uint, name string) (*APIKey, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	apiKey := &APIKey{
		UserID: ownerID,
		Name:   name,
		Key:    key,
	}
	if err := db.Create(apiKey).Error; err != nil {
		return nil, err
	}
	return apiKey, nil
}

// ListAPIKeys returns the owner's keys. Secrets are cleared; callers only
// ever see the value once, at creation.
func ListAPIKeys(db *gorm.DB, ownerID uint) ([]APIKey, error) {
	var keys []APIKey
	if err := db.Where("user_id = ?", ownerID).Order("created_at DESC").Find(&keys).Error; err != nil {
		return nil, err
	}
	for i := range keys {
		keys[i].Key = ""
	}
	return keys, nil
}

// DeleteAPIKey removes a key only when it belongs to ownerID. A missing or
// foreign key reports not-found either way.
func DeleteAPIKey(db *gorm.DB, ownerID, id uint) error {
	res := db.Where("id = ? AND user_id = ?", id, ownerID).Delete(&APIKey{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// FindAPIKey resolves a secret to its record with the owner preloaded.
func FindAPIKey(db *gorm.DB, secret string) (*APIKey, error) {
	var apiKey APIKey
	if err := db.Where("key = ?", secret).Preload("User").First(&apiKey).Error; err != nil {
		return nil, err
	}
	return &apiKey, nil
}

// TouchAPIKeyLastUsed stamps the key's lastUsed. Best-effort; callers run
// it in a goroutine and ignore the result.
func TouchAPIKeyLastUsed(db *gorm.DB, id uint) error {
	now := time.Now()
	return db.Model(&APIKey{}).Where("id = ?", id).Update("last_used", now).Error
}
