package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what an authenticated leader session carries.
type Identity struct {
	SessionID string
	LeaderID  string
	Name      string
}

// Claims represents the session cookie payload.
type Claims struct {
	LeaderID string `json:"lid"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// Identity returns the session identity held by the claims.
func (c Claims) Identity() Identity {
	return Identity{SessionID: c.ID, LeaderID: c.LeaderID, Name: c.Name}
}

// Issue signs a session token for id valid for ttl.
func Issue(id Identity, issuer, key string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := Claims{
		LeaderID: id.LeaderID,
		Name:     id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.SessionID,
			Issuer:    issuer,
			Subject:   id.LeaderID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.ID == "" || claims.LeaderID == "" {
		return Claims{}, errors.New("incomplete session claims")
	}
	return *claims, nil
}
