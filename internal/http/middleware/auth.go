// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication for the versioned API.
// The middleware parses the Authorization header, validates the signed
// session token, and checks the referenced session row is still usable
// (active and unexpired) at read time. On success it stores the caller's
// account id, Telegram id, and session id in the Gin context for handlers
// and the rate limiter.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thoudof/house-of-arh-bets-sub000/internal/auth"
	"github.com/thoudof/house-of-arh-bets-sub000/internal/services"
)

// Gin context keys populated by RequireSession.
const (
	ctxKeyAccountID  = "accountID"
	ctxKeySessionID  = "sessionID"
	ctxKeyTelegramID = "telegramID"
)

// RequireSession returns middleware enforcing a valid bearer credential
// backed by a usable session. Requests failing any check are rejected with
// 401 and a stable error envelope; the session store being unreachable is
// reported as 500 instead, since the caller may retry.
func RequireSession(tokens *auth.TokenIssuer, sessions *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			abortUnauthorized(c, "invalid session token")
			return
		}

		// Read-time session check: revoked and expired sessions are rejected
		// even when the token signature is still valid.
		if _, err := sessions.Active(c.Request.Context(), claims.SessionID); err != nil {
			switch {
			case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, services.ErrSessionNotActive):
				abortUnauthorized(c, "session revoked or expired")
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"request_id": c.Writer.Header().Get(requestIDHeader),
					"code":       "internal_error",
					"message":    "session lookup failed",
				})
			}
			return
		}

		c.Set(ctxKeyAccountID, claims.Subject)
		c.Set(ctxKeySessionID, claims.SessionID)
		c.Set(ctxKeyTelegramID, claims.TelegramID)
		c.Next()
	}
}

// AccountID returns the authenticated account id set by RequireSession,
// or "" when the request is unauthenticated.
func AccountID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyAccountID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SessionID returns the authenticated session id set by RequireSession,
// or "" when the request is unauthenticated.
func SessionID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeySessionID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header value, case-insensitively on the scheme.
func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}
