// Package domain defines the persistence models for accounts and sessions.
// These types are mapped with GORM and form the core data layer of the
// Telegram Mini App authentication backend.
package domain

import "time"

// Account represents one Telegram identity known to the application.
// Exactly one row exists per Telegram user id: the row is created on the
// first successful launch-data authentication and reused afterwards.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - TelegramID: the Telegram user id; immutable and unique. Concurrent
//     first-time authentications race on this constraint, and the loser
//     re-fetches the winner's row.
//   - FirstName / LastName / Username: profile snapshot taken at creation;
//     later profile updates belong to the application CRUD layer, not to
//     the authenticator.
//   - LanguageCode: BCP 47 tag normalized from Telegram's language_code.
//   - PhotoURL: avatar URL as supplied by Telegram, may be empty.
//   - IsPremium: Telegram Premium flag at the time of first sign-in.
//   - CreatedAt: set once at creation.
//   - LastActiveAt: refreshed on every successful authentication.
type Account struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	TelegramID   int64     `json:"telegram_id"   gorm:"not null;uniqueIndex:ux_accounts_telegram_id"`
	FirstName    string    `json:"first_name"    gorm:"type:varchar(128);not null"`
	LastName     string    `json:"last_name"     gorm:"type:varchar(128)"`
	Username     string    `json:"username"      gorm:"type:varchar(64);index"`
	LanguageCode string    `json:"language_code" gorm:"type:varchar(16)"`
	PhotoURL     string    `json:"photo_url"     gorm:"type:varchar(512)"`
	IsPremium    bool      `json:"is_premium"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// TableName returns the database table name for Account.
func (Account) TableName() string { return "accounts" }

// Session is the audit record of one successful authentication. A new row
// is written per sign-in; rows are never updated afterwards except for the
// IsActive flag, which flips to false on explicit sign-out or when the
// expiry sweep catches up with an expired session. Expiry itself is passive:
// readers compare ExpiresAt against the current time.
//
// Invariant: ExpiresAt > IssuedAt.
type Session struct {
	ID                   string    `json:"id"                    gorm:"type:char(36);primaryKey"`
	AccountID            string    `json:"account_id"            gorm:"type:char(36);not null;index:idx_account_sessions"`
	TelegramID           int64     `json:"telegram_id"           gorm:"not null;index"`
	SignatureFingerprint string    `json:"signature_fingerprint" gorm:"type:varchar(64);not null"`
	ClientMetadata       string    `json:"client_metadata"       gorm:"type:varchar(512)"`
	IssuedAt             time.Time `json:"issued_at"`
	ExpiresAt            time.Time `json:"expires_at"            gorm:"index"`
	IsActive             bool      `json:"is_active"             gorm:"not null;default:true;index"`

	// Account is the owning identity. Sessions are cascade-deleted if the
	// account row is removed.
	Account Account `json:"-" gorm:"foreignKey:AccountID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// Expired reports whether the session has passed its expiry at the given
// instant. Revocation (IsActive=false) is tracked separately.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Usable reports whether the session may still authenticate requests:
// it must be active and not expired.
func (s *Session) Usable(now time.Time) bool {
	return s.IsActive && !s.Expired(now)
}
