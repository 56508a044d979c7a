package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 24 * time.Hour

type Claims struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
	jwt.RegisteredClaims
}

// Issuer signs session tokens handed to the browser at login, so callers can
// thread their session explicitly instead of relying on the held one.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

func (i *Issuer) Issue(s Session) (string, error) {
	now := i.now()
	claims := &Claims{
		SessionID: s.ID,
		Username:  s.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) Parse(tokenString string) (Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return Session{}, fmt.Errorf("invalid session token: %w", err)
	}
	if claims.SessionID == "" {
		return Session{}, fmt.Errorf("session token carries no session id")
	}

	s := Session{ID: claims.SessionID, Username: claims.Username}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time
	}
	return s, nil
}
