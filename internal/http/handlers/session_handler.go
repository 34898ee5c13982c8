// Authenticated session endpoints.
//
// This file exposes the versioned API for callers holding a valid bearer
// session token:
//   - GET  /auth/me        (account summary)
//   - GET  /auth/sessions  (paginated session audit trail)
//   - POST /auth/logout    (revoke the current session)
//
// Handlers are transport-thin: they read the identity RequireSession put
// into the Gin context, call application services, and translate results
// into HTTP responses.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thoudof/house-of-arh-bets-sub000/internal/domain"
	"github.com/thoudof/house-of-arh-bets-sub000/internal/http/middleware"
	"github.com/thoudof/house-of-arh-bets-sub000/internal/services"
	"github.com/thoudof/house-of-arh-bets-sub000/internal/utils"
)

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListSessionsResponse wraps a page of sessions and pagination information.
type ListSessionsResponse struct {
	Sessions   []domain.Session `json:"sessions"`
	Pagination Pagination       `json:"pagination"`
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// Me godoc
// @ID          me
// @Summary     Current account
// @Description Returns the account bound to the presented session token.
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  domain.Account
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Account missing"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	account, err := h.authSvc.Account(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "account not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, account)
}

// ListSessions godoc
// @ID          listSessions
// @Summary     List sessions (paginated)
// @Description Returns the authenticated account's session audit trail, newest first.
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
//
// @Param       page       query  int  false "Page number"    minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page" minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListSessionsResponse
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /auth/sessions [get]
func (h *Handlers) ListSessions(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.sessionSvc.ListPage(c.Request.Context(), middleware.AccountID(c), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListSessionsResponse{
		Sessions: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// Logout godoc
// @ID          logout
// @Summary     Sign out
// @Description Revokes the session behind the presented token. Terminal: the session cannot be reactivated.
// @Tags        Auth
// @Security    BearerAuth
//
// @Success     204  {string} string "No Content"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Session already gone"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	err := h.sessionSvc.Revoke(c.Request.Context(), middleware.AccountID(c), middleware.SessionID(c))
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeLogoutFailed, err.Error())
		return
	}
	noContent(c)
}
