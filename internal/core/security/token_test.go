package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			Issuer:    "medstock-idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Name:       "Asha Verma",
		Role:       "pharmacist",
		FacilityID: "fac-1",
	}
}

func TestValidateToken(t *testing.T) {
	v := NewTokenValidator(testSecret, "medstock-idp")

	actor, err := v.ValidateToken(signToken(t, testSecret, validClaims()))
	require.NoError(t, err)

	assert.Equal(t, "user-42", actor.UserID)
	assert.Equal(t, "Asha Verma", actor.Name)
	assert.Equal(t, "pharmacist", actor.Role)
	assert.Equal(t, "fac-1", actor.FacilityID)
	assert.False(t, actor.IsAdmin)
}

func TestValidateToken_AdminClaim(t *testing.T) {
	v := NewTokenValidator(testSecret, "")
	claims := validClaims()
	claims.Admin = true

	actor, err := v.ValidateToken(signToken(t, testSecret, claims))
	require.NoError(t, err)
	assert.True(t, actor.IsAdmin)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	v := NewTokenValidator(testSecret, "")

	_, err := v.ValidateToken(signToken(t, []byte("other-secret"), validClaims()))
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	v := NewTokenValidator(testSecret, "")
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	_, err := v.ValidateToken(signToken(t, testSecret, claims))
	assert.Error(t, err)
}

func TestValidateToken_MissingExpiry(t *testing.T) {
	v := NewTokenValidator(testSecret, "")
	claims := validClaims()
	claims.ExpiresAt = nil

	_, err := v.ValidateToken(signToken(t, testSecret, claims))
	assert.Error(t, err)
}

func TestValidateToken_WrongIssuer(t *testing.T) {
	v := NewTokenValidator(testSecret, "medstock-idp")
	claims := validClaims()
	claims.Issuer = "someone-else"

	_, err := v.ValidateToken(signToken(t, testSecret, claims))
	assert.Error(t, err)
}

func TestValidateToken_NoSubject(t *testing.T) {
	v := NewTokenValidator(testSecret, "")
	claims := validClaims()
	claims.Subject = ""

	_, err := v.ValidateToken(signToken(t, testSecret, claims))
	assert.Error(t, err)
}

func TestValidateToken_RejectsUnsignedAlgorithm(t *testing.T) {
	v := NewTokenValidator(testSecret, "")

	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims())
	unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.ValidateToken(unsigned)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	v := NewTokenValidator(testSecret, "")

	_, err := v.ValidateToken("not-a-token")
	assert.Error(t, err)
}
