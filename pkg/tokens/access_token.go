package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const RoleAdmin = "admin"

type AccessClaims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func AccessClaimsFromToken(TokenStr string, AccessSecret []byte) (*AccessClaims, error) {
	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(TokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return AccessSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return &claims, nil
}

// NewAccessToken signs a short-lived token. Login lives in the auth service;
// this is used by tooling and tests.
func NewAccessToken(userID uuid.UUID, role string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now().UTC()
	claims := AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Credential is the authenticated caller, passed explicitly into services.
type Credential struct {
	UserID uuid.UUID
	Role   string
	Email  string
}

func (c *Credential) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

func CredentialFromClaims(claims *AccessClaims) (*Credential, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.New("subject is not a user id")
	}
	return &Credential{UserID: id, Role: claims.Role, Email: claims.Email}, nil
}
