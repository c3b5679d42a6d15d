package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ServiceClaims identifies an internal function calling this service.
type ServiceClaims struct {
	Function string `json:"function"`
	jwt.RegisteredClaims
}

var ErrInvalidServiceToken = errors.New("invalid service token")

// SignServiceToken issues a short-lived HS256 token for an internal caller.
// The signing key is the shared system secret.
func SignServiceToken(secret, function string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	now := time.Now()
	claims := ServiceClaims{
		Function: function,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "orbit-api",
			Subject:   function,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateServiceToken parses and verifies a service token. Only HS256 is
// accepted; anything else is rejected regardless of signature.
func ValidateServiceToken(secret, tokenString string) (*ServiceClaims, error) {
	claims := &ServiceClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServiceToken, err)
	}
	if !token.Valid || claims.Function == "" {
		return nil, ErrInvalidServiceToken
	}
	return claims, nil
}
