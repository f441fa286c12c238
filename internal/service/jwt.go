package service

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var jwtSecret []byte

func InitJWT() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		panic("JWT_SECRET is not set")
	}
	jwtSecret = []byte(secret)
}

// InitJWTWithSecret is used by tests.
func InitJWTWithSecret(secret string) {
	jwtSecret = []byte(secret)
}

// GenerateJWT issues a token for an anonymous participant identity.
func GenerateJWT(participantID string) (string, error) {
	now := time.Now().Unix()
	claims := jwt.MapClaims{
		"participant_id": participantID,
		"exp":            time.Now().Add(72 * time.Hour).Unix(),
		"iat":            now,
		"nbf":            now,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseJWT validates a token and returns the participant id.
func ParseJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})

	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	now := time.Now().Unix()
	if exp, ok := claims["exp"].(float64); ok {
		if int64(exp) < now {
			return "", errors.New("token expired")
		}
	}
	if nbf, ok := claims["nbf"].(float64); ok {
		if int64(nbf) > now {
			return "", errors.New("token not valid yet")
		}
	}

	participantID, ok := claims["participant_id"].(string)
	if !ok || participantID == "" {
		return "", errors.New("participant_id not found")
	}

	return participantID, nil
}
