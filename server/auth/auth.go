package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"
)

// TokenDuration is how long an issued token stays valid.
const TokenDuration = 30 * 24 * time.Hour

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

type EchocheckTokenClaims struct {
	Name string `json:"name,omitempty"`
	jwt.StandardClaims
}

func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), 14)
}

// NormalizePasswordHash coerces whatever representation the storage layer
// hands back into the raw bcrypt hash bytes. Older records may hold the hash
// as plain text or as base64-encoded text instead of raw bytes.
func NormalizePasswordHash(stored []byte) []byte {
	if len(stored) == 0 {
		return stored
	}

	// A bcrypt hash always starts with its version prefix e.g "$2a$"
	if strings.HasPrefix(string(stored), "$2") {
		return stored
	}

	decoded, err := base64.StdEncoding.DecodeString(string(stored))
	if err == nil && strings.HasPrefix(string(decoded), "$2") {
		return decoded
	}

	return stored
}

func CheckPasswordHash(password string, storedHash []byte) bool {
	err := bcrypt.CompareHashAndPassword(NormalizePasswordHash(storedHash), []byte(password))
	return err == nil
}

// EncodeJWT issues a signed token bound to the given user id,
// valid for TokenDuration.
func EncodeJWT(userID, name, jwtSecret string) (string, error) {
	claims := EchocheckTokenClaims{
		Name: name,
		StandardClaims: jwt.StandardClaims{
			Subject:   userID,
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(TokenDuration).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// DecodeJWT verifies the token signature & expiry, and returns the embedded
// claims. Expired tokens fail with ErrTokenExpired, anything else that does
// not verify fails with ErrTokenInvalid.
func DecodeJWT(tokenString string, jwtSecret string) (*EchocheckTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &EchocheckTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		// validate the alg is what you expect:
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return []byte(jwtSecret), nil
	})

	if err != nil {
		var validationErr *jwt.ValidationError
		if errors.As(err, &validationErr) && validationErr.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	tokenClaims, ok := token.Claims.(*EchocheckTokenClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return tokenClaims, nil
}
