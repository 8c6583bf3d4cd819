package db

import (
	"errors"

	"gorm.io/gorm"

	"packetwatch/internal/apperr"
)

// EndpointRef is the cross-tenant projection served to any logged-in user
// for client-side duplicate pre-checks.
type EndpointRef struct {
	ID     uint   `json:"id"`
	IP     string `json:"ip"`
	Domain string `json:"domain"`
	UserID uint   `json:"userId"`
}

// CreateEndpoint registers a tracked target for ownerID.
//
// The IP may already be registered by the same owner (update-style
// re-registration) but conflicts if any other owner holds it. The domain
// conflicts if it exists at all, including under the same owner. The checks
// are read-then-write; the unique index on domain catches the race.
func CreateEndpoint(db *gorm.DB, ownerID uint, ip, domain string, port *int) (*Endpoint, error) {
	if ip == "" {
		return nil, &apperr.InvalidArgument{Field: "ip", Message: "ip is required"}
	}
	if domain == "" {
		return nil, &apperr.InvalidArgument{Field: "domain", Message: "domain is required"}
	}
	if port != nil && (*port < 1 || *port > 65535) {
		return nil, &apperr.InvalidArgument{Field: "port", Message: "port must be a number between 1 and 65535"}
	}

	var count int64
	if err := db.Model(&Endpoint{}).Where("ip = ? AND user_id <> ?", ip, ownerID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &apperr.Conflict{Field: "ip", Message: "this IP address is already being tracked by another user"}
	}

	if err := db.Model(&Endpoint{}).Where("domain = ?", domain).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &apperr.Conflict{Field: "domain", Message: "this domain is already being tracked in the system"}
	}

	ep := &Endpoint{
		UserID: ownerID,
		IP:     ip,
		Domain: domain,
		Port:   port,
	}
	if err := db.Create(ep).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &apperr.Conflict{Field: "domain", Message: "this domain is already being tracked in the system"}
		}
		return nil, err
	}
	return ep, nil
}

// ListEndpoints returns ownerID's endpoints, newest first.
func ListEndpoints(db *gorm.DB, ownerID uint) ([]Endpoint, error) {
	var eps []Endpoint
	if err := db.Where("user_id = ?", ownerID).Order("created_at DESC, id DESC").Find(&eps).Error; err != nil {
		return nil, err
	}
	return eps, nil
}

// ListAllEndpoints returns identity fields of every endpoint across all
// tenants. Deliberate relaxation of isolation for this one read path.
func ListAllEndpoints(db *gorm.DB) ([]EndpointRef, error) {
	var refs []EndpointRef
	if err := db.Model(&Endpoint{}).Select("id", "ip", "domain", "user_id").Find(&refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}

// FindEndpointsByIP returns every endpoint tracking the given IP, across
// all owners. The gateway fans out per distinct owner and must not assume
// the single-owner invariant holds.
func FindEndpointsByIP(db *gorm.DB, ip string) ([]Endpoint, error) {
	var eps []Endpoint
	if err := db.Where("ip = ?", ip).Find(&eps).Error; err != nil {
		return nil, err
	}
	return eps, nil
}

// DeleteEndpoint removes the endpoint only when ownerID owns it. A missing
// or foreign row reports not-found either way, never forbidden.
func DeleteEndpoint(db *gorm.DB, ownerID, id uint) error {
	res := db.Where("id = ? AND user_id = ?", id, ownerID).Delete(&Endpoint{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
