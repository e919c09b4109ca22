package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
)

func TestCheckPasswordHash(t *testing.T) {
	hash, err := HashPassword("very-secure")
	assert.Nil(t, err)

	assert.True(t, CheckPasswordHash("very-secure", hash))
	assert.False(t, CheckPasswordHash("not-the-password", hash))
	assert.False(t, CheckPasswordHash("very-secure", nil))
}

func TestNormalizePasswordHash(t *testing.T) {
	hash, err := HashPassword("very-secure")
	assert.Nil(t, err)

	// Raw bcrypt bytes pass through untouched
	assert.Equal(t, hash, NormalizePasswordHash(hash))

	// Older records hold the hash base64-encoded
	encoded := []byte(base64.StdEncoding.EncodeToString(hash))
	assert.Equal(t, hash, NormalizePasswordHash(encoded))
	assert.True(t, CheckPasswordHash("very-secure", encoded))

	// Anything else comes back as-is
	assert.Equal(t, []byte("not-a-hash"), NormalizePasswordHash([]byte("not-a-hash")))
	assert.Empty(t, NormalizePasswordHash(nil))
}

func TestEncodeDecodeJWT(t *testing.T) {
	jwtSecret := "test-secret"

	tokenString, err := EncodeJWT("42", "Tony Stark", jwtSecret)
	assert.Nil(t, err)
	assert.NotEmpty(t, tokenString)

	claims, err := DecodeJWT(tokenString, jwtSecret)
	assert.Nil(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "Tony Stark", claims.Name)

	// Expiry is bound to TokenDuration from issuance
	assert.InDelta(t, time.Now().Add(TokenDuration).Unix(), claims.ExpiresAt, 5)
}

func TestDecodeJWTWithWrongSecret(t *testing.T) {
	tokenString, err := EncodeJWT("42", "Tony Stark", "test-secret")
	assert.Nil(t, err)

	claims, err := DecodeJWT(tokenString, "some-other-secret")
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	claims, err = DecodeJWT("definitely-not-a-token", "test-secret")
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDecodeExpiredJWT(t *testing.T) {
	jwtSecret := "test-secret"

	expiredClaims := EchocheckTokenClaims{
		Name: "Tony Stark",
		StandardClaims: jwt.StandardClaims{
			Subject:   "42",
			IssuedAt:  time.Now().Add(-2 * time.Hour).Unix(),
			ExpiresAt: time.Now().Add(-1 * time.Hour).Unix(),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims).
		SignedString([]byte(jwtSecret))
	assert.Nil(t, err)

	claims, err := DecodeJWT(tokenString, jwtSecret)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
