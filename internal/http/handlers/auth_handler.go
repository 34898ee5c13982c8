// Telegram launch-data authentication handler.
//
// This file exposes the single unversioned endpoint the Mini App client
// calls on startup:
//   - POST /telegram-auth  (exchange signed launch data for a session)
//
// Its request/response contract — field names, status codes, and the
// localized 401 error string — is fixed by the deployed web client and
// must not drift, which is why this handler writes its payloads directly
// instead of using the versioned API's error envelope.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thoudof/house-of-arh-bets-sub000/internal/domain"
	"github.com/thoudof/house-of-arh-bets-sub000/internal/http/middleware"
	"github.com/thoudof/house-of-arh-bets-sub000/internal/services"
	"github.com/thoudof/house-of-arh-bets-sub000/internal/telegram"
)

// authFailedMessage is what the Mini App shows the user on a signature or
// freshness failure. The client matches on this exact string.
const authFailedMessage = "Недействительные данные авторизации"

// maxClientMetadataLen caps the audit metadata stored per session.
const maxClientMetadataLen = 512

//
// Service contracts (context-aware)
//

// Authenticator exchanges raw launch data for a session. Implementations
// must be safe for concurrent use and honor the provided context.
type Authenticator interface {
	// Authenticate verifies rawInitData and issues an account session.
	Authenticate(ctx context.Context, rawInitData, clientMeta string) (*services.AuthResult, error)
	// Account fetches an account by internal id.
	Account(ctx context.Context, id string) (*domain.Account, error)
}

// SessionLifecycle manages issued sessions after authentication.
type SessionLifecycle interface {
	// Revoke signs the given session out.
	Revoke(ctx context.Context, accountID, sessionID string) error
	// ListPage returns a page of the account's session audit trail.
	ListPage(ctx context.Context, accountID string, page, pageSize int) ([]domain.Session, int64, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for authentication and session
// management. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	authSvc    Authenticator
	sessionSvc SessionLifecycle
}

// New constructs a Handlers instance bound to the given services.
func New(authSvc Authenticator, sessionSvc SessionLifecycle) *Handlers {
	return &Handlers{authSvc: authSvc, sessionSvc: sessionSvc}
}

//
// DTOs
//

// TelegramAuthRequest is the JSON payload for the launch-data exchange.
type TelegramAuthRequest struct {
	// InitData is the raw, URL-encoded launch-data string from
	// Telegram.WebApp.initData.
	InitData string `json:"initData" binding:"required"`
}

// AuthUser is the account summary returned to the client after a
// successful exchange.
type AuthUser struct {
	ID         string `json:"id"`
	TelegramID int64  `json:"telegram_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Username   string `json:"username"`
}

// TelegramAuthResponse is the success payload of POST /telegram-auth.
type TelegramAuthResponse struct {
	Success      bool     `json:"success"`
	User         AuthUser `json:"user"`
	SessionToken string   `json:"session_token"`
}

//
// Handlers
//

// TelegramAuth godoc
// @ID          telegramAuth
// @Summary     Exchange Telegram launch data for a session
// @Description Verifies the signed initData string from the Mini App and returns an account summary plus a bearer session token.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.TelegramAuthRequest  true  "Launch data payload"
//
// @Success     200  {object}  handlers.TelegramAuthResponse
// @Failure     400  {object}  map[string]string  "Missing or malformed input"
// @Failure     401  {object}  map[string]string  "Signature or freshness failure"
// @Failure     500  {object}  map[string]string  "Infrastructure failure"
// @Router      /telegram-auth [post]
func (h *Handlers) TelegramAuth(c *gin.Context) {
	var req TelegramAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.InitData) == "" {
		middleware.ObserveAuthAttempt("malformed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "initData is required"})
		return
	}

	res, err := h.authSvc.Authenticate(c.Request.Context(), req.InitData, clientMetadata(c))
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	middleware.ObserveAuthAttempt("success")
	ok(c, http.StatusOK, TelegramAuthResponse{
		Success: true,
		User: AuthUser{
			ID:         res.Account.ID,
			TelegramID: res.Account.TelegramID,
			FirstName:  res.Account.FirstName,
			LastName:   res.Account.LastName,
			Username:   res.Account.Username,
		},
		SessionToken: res.Token,
	})
}

// writeAuthError maps verifier and storage errors onto the fixed client
// contract: 400 for malformed input, 401 for authentication failures, 500
// (retryable) for infrastructure.
func (h *Handlers) writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, telegram.ErrMalformedData):
		middleware.ObserveAuthAttempt("malformed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "initData is not a valid launch-data string"})

	case errors.Is(err, telegram.ErrMissingHash):
		middleware.ObserveAuthAttempt("missing_hash")
		c.JSON(http.StatusBadRequest, gin.H{"error": "initData is missing its hash"})

	case errors.Is(err, telegram.ErrBadIdentity):
		middleware.ObserveAuthAttempt("bad_identity")
		c.JSON(http.StatusBadRequest, gin.H{"error": "initData user payload is malformed"})

	case errors.Is(err, telegram.ErrExpired):
		middleware.ObserveAuthAttempt("expired")
		c.JSON(http.StatusUnauthorized, gin.H{"error": authFailedMessage})

	case errors.Is(err, telegram.ErrBadSignature):
		middleware.ObserveAuthAttempt("bad_signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": authFailedMessage})

	default:
		middleware.ObserveAuthAttempt("storage_error")
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Msg("authentication storage failure")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "authentication temporarily unavailable",
			"details": err.Error(),
		})
	}
}

// clientMetadata summarizes the request for the session audit row.
func clientMetadata(c *gin.Context) string {
	meta := fmt.Sprintf("ip=%s ua=%s", c.ClientIP(), c.Request.UserAgent())
	if len(meta) > maxClientMetadataLen {
		meta = meta[:maxClientMetadataLen]
	}
	return meta
}
