package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// GenerateToken signs a token whose "id" claim is the caller's profile id.
// Token issuance belongs to the auth service; this exists for tooling and tests.
func GenerateToken(profileID, secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"id":  profileID,
		"exp": time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(tokenString, secret string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
}

// SubjectFromToken validates tokenString and returns its "id" claim.
func SubjectFromToken(tokenString, secret string) (string, error) {
	token, err := ValidateToken(tokenString, secret)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	switch id := claims["id"].(type) {
	case string:
		if id == "" {
			return "", ErrInvalidToken
		}
		return id, nil
	case float64:
		return fmt.Sprintf("%.0f", id), nil
	default:
		return "", ErrInvalidToken
	}
}
