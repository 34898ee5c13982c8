// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Account
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an account is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - CreateAccount maps unique-constraint violations on telegram_id to
//     ErrDuplicateAccount so the service layer can apply idempotent-create
//     semantics (re-fetch and proceed).
//   - Other DB errors are propagated raw.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thoudof/house-of-arh-bets-sub000/internal/domain"
	"github.com/thoudof/house-of-arh-bets-sub000/internal/telegram"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service
// layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicateAccount indicates an account row for the same telegram_id
// already exists. Callers treat it as "created concurrently, re-fetch".
var ErrDuplicateAccount = errors.New("account already exists")

// CreateAccount inserts a new Account for the verified identity with a
// fresh UUID primary key and UTC timestamps. The unique constraint on
// telegram_id turns concurrent first-time sign-ins into ErrDuplicateAccount
// for every caller except the one whose insert landed first.
func CreateAccount(ctx context.Context, db *gorm.DB, id *telegram.Identity, languageCode string) (*domain.Account, error) {
	now := time.Now().UTC()
	a := &domain.Account{
		ID:           uuid.NewString(),
		TelegramID:   id.ID,
		FirstName:    id.FirstName,
		LastName:     id.LastName,
		Username:     id.Username,
		LanguageCode: languageCode,
		PhotoURL:     id.PhotoURL,
		IsPremium:    id.IsPremium,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicate(err) {
			return nil, ErrDuplicateAccount
		}
		return nil, err
	}
	return a, nil
}

// GetAccountByTelegramID fetches the account bound to a Telegram user id,
// or ErrNotFound when no such account exists.
func GetAccountByTelegramID(ctx context.Context, db *gorm.DB, telegramID int64) (*domain.Account, error) {
	var a domain.Account
	err := db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccount fetches an account by its internal UUID, or ErrNotFound.
func GetAccount(ctx context.Context, db *gorm.DB, id string) (*domain.Account, error) {
	var a domain.Account
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// TouchAccount refreshes last_active_at for the given account. Missing rows
// yield ErrNotFound. Profile fields are deliberately left alone here.
func TouchAccount(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("id = ?", id).
		Update("last_active_at", now.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// isDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
