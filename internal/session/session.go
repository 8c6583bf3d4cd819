// Package session issues and verifies the signed session tokens carried in
// the session cookie (or an Authorization header). The token encodes the
// identity including the admin flag, so it must be tamper-evident: every
// admin decision re-verifies the signature, never client-supplied state.
package session

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TTL is the session lifetime.
const TTL = 30 * 24 * time.Hour

// ErrInvalidToken is returned when a token is malformed, tampered with,
// or expired.
var ErrInvalidToken = errors.New("invalid or expired session token")

// Identity is the authenticated principal a token resolves to.
type Identity struct {
	UserID  uint
	Name    string
	Email   string
	IsAdmin bool
}

// Claims is the JWT payload for a session token.
type Claims struct {
	jwt.RegisteredClaims
	Name  string `json:"name"`
	Email string `json:"email"`
	Admin bool   `json:"admin"`
}

// Issue signs a session token for id, valid for TTL from now.
func Issue(secret []byte, id Identity, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(id.UserID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
		},
		Name:  id.Name,
		Email: id.Email,
		Admin: id.IsAdmin,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verify parses and validates a token and returns the identity it encodes.
func Verify(secret []byte, token string) (*Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || userID == 0 {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UserID:  uint(userID),
		Name:    claims.Name,
		Email:   claims.Email,
		IsAdmin: claims.Admin,
	}, nil
}
