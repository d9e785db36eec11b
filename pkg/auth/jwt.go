// Package auth verifies bearer tokens issued by the identity service.
// Tokens are never minted here.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
	RoleAdmin   = "admin"
	// RoleService is held by collaborators such as payment and fulfillment.
	RoleService = "service"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenClaims are the claims read from an access token. The subject is the
// doctor or patient id.
type TokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SubjectID parses the subject claim as a uuid.
func (c *TokenClaims) SubjectID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

type JWTVerifier interface {
	ValidateToken(token string) (*TokenClaims, error)
}

type hmacVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) JWTVerifier {
	return &hmacVerifier{secret: []byte(secret)}
}

func (v *hmacVerifier) ValidateToken(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.SubjectID(); err != nil {
		return nil, fmt.Errorf("%w: subject is not an id", ErrInvalidToken)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role", ErrInvalidToken)
	}
	return claims, nil
}
