// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Session
// audit model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thoudof/house-of-arh-bets-sub000/internal/domain"
)

// CreateSession inserts a new session row for the account. IssuedAt is set
// to now (UTC) and ExpiresAt to now+ttl, keeping the expires_at > issued_at
// invariant by construction.
func CreateSession(ctx context.Context, db *gorm.DB, accountID string, telegramID int64, fingerprint, clientMeta string, ttl time.Duration) (*domain.Session, error) {
	now := time.Now().UTC()
	s := &domain.Session{
		ID:                   uuid.NewString(),
		AccountID:            accountID,
		TelegramID:           telegramID,
		SignatureFingerprint: fingerprint,
		ClientMetadata:       clientMeta,
		IssuedAt:             now,
		ExpiresAt:            now.Add(ttl),
		IsActive:             true,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession fetches a session by id, or ErrNotFound.
func GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error) {
	var s domain.Session
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// RevokeSession flips is_active to false for a session owned by accountID.
// Only active sessions transition; revoking a revoked or missing session
// returns ErrNotFound. There is no transition back.
func RevokeSession(ctx context.Context, db *gorm.DB, id, accountID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ? AND account_id = ? AND is_active = ?", id, accountID, true).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountSessions returns the total number of sessions recorded for the
// account, regardless of state. Used for audit-trail pagination.
func CountSessions(ctx context.Context, db *gorm.DB, accountID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("account_id = ?", accountID).
		Count(&total).Error
	return total, err
}

// ListSessionsPage returns a page of the account's sessions, newest first.
func ListSessionsPage(ctx context.Context, db *gorm.DB, accountID string, offset, limit int) ([]domain.Session, error) {
	var out []domain.Session
	err := db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("issued_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeactivateExpiredSessions flips is_active to false on every active
// session whose expiry has passed. Returns the number of rows swept.
// Rows stay in place afterwards: the table is an audit trail, not a cache.
func DeactivateExpiredSessions(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("is_active = ? AND expires_at <= ?", true, now.UTC()).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
