package secrets

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// probeSubject marks tokens minted only to exercise a fresh secret.
const probeSubject = "pdsinstall-selfcheck"

// SignProbe mints a short-lived HS256 token with the given secret.
func SignProbe(secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   probeSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyProbe checks a token produced by SignProbe.
func VerifyProbe(secret, tokenStr string) error {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(_ *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.Subject != probeSubject {
		return ErrInvalidToken
	}
	return nil
}

// CheckJWTSecret round-trips a probe token through the secret.
func CheckJWTSecret(secret string) error {
	tok, err := SignProbe(secret, time.Minute)
	if err != nil {
		return err
	}
	return VerifyProbe(secret, tok)
}
