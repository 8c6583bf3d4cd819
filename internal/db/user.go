package db

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"packetwatch/internal/apperr"
)

// CreateUser registers a new non-admin account. The email must not be taken.
func CreateUser(db *gorm.DB, name, email, password string) (*User, error) {
	var count int64
	if err := db.Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &apperr.Conflict{Field: "email", Message: "user already exists with this email"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      false,
	}
	if err := db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &apperr.Conflict{Field: "email", Message: "user already exists with this email"}
		}
		return nil, err
	}
	return user, nil
}

// Authenticate verifies credentials and returns the matching user.
// Unknown email and wrong password both come back as ErrInvalidCredentials.
func Authenticate(db *gorm.DB, email, password string) (*User, error) {
	var user User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.ErrInvalidCredentials
	}
	return &user, nil
}

// UserExists reports whether a user row with the given id exists.
func UserExists(db *gorm.DB, id uint) (bool, error) {
	var count int64
	if err := db.Model(&User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// PromoteUser grants admin to the user with the given email.
func PromoteUser(db *gorm.DB, email string) error {
	res := db.Model(&User{}).Where("email = ?", email).Update("is_admin", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
