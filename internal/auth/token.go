// Package auth mints and validates the application session credential: a
// signed HS256 bearer token handed to the Mini App client after launch-data
// verification. The token binds the internal account id, the Telegram user
// id, and the session row it was issued for, so the HTTP layer can check a
// session's state at read time without a separate lookup key.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a presented token fails signature or
// claims validation, including expiry.
var ErrInvalidToken = errors.New("auth: invalid session token")

// Claims carries the registered JWT claims plus the identifiers the
// application needs to resolve the caller.
type Claims struct {
	jwt.RegisteredClaims
	TelegramID int64  `json:"tid"`
	SessionID  string `json:"sid"`
}

// TokenIssuer signs and parses session tokens with a shared secret.
// The zero value is unusable; construct with NewTokenIssuer.
type TokenIssuer struct {
	secret []byte
}

// NewTokenIssuer returns an issuer signing with the given secret.
func NewTokenIssuer(secret []byte) *TokenIssuer {
	return &TokenIssuer{secret: secret}
}

// Issue signs a token for the account/session pair. The token expires
// together with the session it represents.
func (ti *TokenIssuer) Issue(accountID string, telegramID int64, sessionID string, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TelegramID: telegramID,
		SessionID:  sessionID,
	})
	return token.SignedString(ti.secret)
}

// Parse validates tokenString and returns its claims. Only HS256 is
// accepted; any other signing method, a bad signature, or expired claims
// yield ErrInvalidToken.
func (ti *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return ti.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
