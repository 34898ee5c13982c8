// Package services – SessionService
//
// This file implements the SessionService, which manages the lifecycle of
// issued sessions after authentication: read-time validity checks for the
// bearer middleware, explicit sign-out, the paginated audit trail, and the
// periodic sweep that deactivates expired rows.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/thoudof/house-of-arh-bets-sub000/internal/domain"
	"github.com/thoudof/house-of-arh-bets-sub000/internal/repo"
)

// SessionService provides session lifecycle operations on top of the
// session repository.
type SessionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// Active fetches a session and checks it can still authenticate requests.
// Expiry is evaluated here, at read time; the sweep only catches up the
// is_active flag for bookkeeping.
//
// Returns ErrSessionNotFound for missing rows and ErrSessionNotActive for
// revoked or expired ones.
func (s *SessionService) Active(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := repo.GetSession(ctx, s.DB, sessionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if !sess.Usable(time.Now()) {
		return nil, ErrSessionNotActive
	}
	return sess, nil
}

// Revoke performs an explicit sign-out: it flips the session's is_active
// flag, provided the session belongs to accountID and is still active.
// Already revoked, expired-and-swept, or foreign sessions come back as
// ErrSessionNotFound; there is no transition out of the revoked state.
func (s *SessionService) Revoke(ctx context.Context, accountID, sessionID string) error {
	err := repo.RevokeSession(ctx, s.DB, sessionID, accountID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrSessionNotFound
	}
	return err
}

// ListPage returns a page of the account's session audit trail, newest
// first, together with the total row count. Invalid page/pageSize values
// fall back to defaults.
func (s *SessionService) ListPage(ctx context.Context, accountID string, page, pageSize int) ([]domain.Session, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountSessions(ctx, s.DB, accountID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Session{}, 0, nil
	}

	items, err := repo.ListSessionsPage(ctx, s.DB, accountID, offset, pageSize)
	return items, total, err
}

// SweepExpired deactivates every active session whose expiry has passed
// and reports how many rows were flipped. Intended to be run periodically
// by the server's janitor goroutine.
func (s *SessionService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return repo.DeactivateExpiredSessions(ctx, s.DB, now)
}
