package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"medstock/internal/core/appctx"
)

// Claims carried in access tokens issued by the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Name       string `json:"name,omitempty"`
	Role       string `json:"role,omitempty"`
	FacilityID string `json:"facilityId,omitempty"`
	Admin      bool   `json:"admin,omitempty"`
}

// TokenValidator verifies HMAC-signed access tokens and maps their
// claims onto an Actor. Token issuance belongs to the identity
// provider; this side only validates.
type TokenValidator struct {
	secret []byte
	issuer string
}

func NewTokenValidator(secret []byte, issuer string) *TokenValidator {
	return &TokenValidator{secret: secret, issuer: issuer}
}

// ValidateToken parses and verifies a token string.
func (v *TokenValidator) ValidateToken(tokenString string) (*appctx.Actor, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token invalid")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return &appctx.Actor{
		UserID:     claims.Subject,
		Name:       claims.Name,
		Role:       claims.Role,
		FacilityID: claims.FacilityID,
		IsAdmin:    claims.Admin,
	}, nil
}
