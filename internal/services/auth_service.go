// Package services – AuthService
//
// This file implements the AuthService, which exchanges a signed Telegram
// launch-data string for an application session. It runs the launch-data
// verifier, resolves or creates the account bound to the verified Telegram
// identity, records a session audit row, and mints the bearer credential
// returned to the Mini App client.
//
// Verification failures are surfaced as the telegram package's sentinel
// errors so handlers can translate them into stable HTTP results. No
// storage is touched before verification succeeds.
package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/thoudof/house-of-arh-bets-sub000/internal/auth"
	"github.com/thoudof/house-of-arh-bets-sub000/internal/domain"
	"github.com/thoudof/house-of-arh-bets-sub000/internal/repo"
	"github.com/thoudof/house-of-arh-bets-sub000/internal/telegram"
)

// DefaultSessionTTL is the lifetime of a newly issued session.
const DefaultSessionTTL = 7 * 24 * time.Hour

// AuthResult is the outcome of a successful authentication: the resolved
// account, the freshly recorded session, and the signed bearer credential.
type AuthResult struct {
	Account *domain.Account
	Session *domain.Session
	Token   string
}

// AuthService verifies launch data and issues sessions. Each call is
// stateless; the only shared mutable resource is the database, and the
// unique constraint on accounts.telegram_id makes concurrent first-time
// sign-ins safe.
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Verifier validates raw launch-data strings.
	Verifier *telegram.Verifier
	// Tokens signs the bearer credential bound to the issued session.
	Tokens *auth.TokenIssuer

	// SessionTTL overrides DefaultSessionTTL when positive.
	SessionTTL time.Duration
}

// NewAuthService constructs an AuthService with the default session
// lifetime.
func NewAuthService(db *gorm.DB, v *telegram.Verifier, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{
		DB:         db,
		Verifier:   v,
		Tokens:     tokens,
		SessionTTL: DefaultSessionTTL,
	}
}

// Authenticate validates rawInitData and, on success, resolves the account,
// records a session, and mints the credential. clientMeta is an opaque
// request summary (user agent, client IP) stored on the session row for
// auditing.
//
// Error semantics:
//   - verification failures: the telegram package sentinels, storage
//     untouched;
//   - storage failures: the raw error, retryable by the caller. A created
//     account surviving a later session-insert failure is fine: accounts
//     are idempotently reusable on retry.
func (s *AuthService) Authenticate(ctx context.Context, rawInitData, clientMeta string) (*AuthResult, error) {
	identity, fingerprint, err := s.Verifier.Verify(rawInitData)
	if err != nil {
		return nil, err
	}

	account, err := s.resolveAccount(ctx, identity)
	if err != nil {
		return nil, err
	}

	session, err := repo.CreateSession(ctx, s.DB, account.ID, account.TelegramID, fingerprint, clientMeta, s.ttl())
	if err != nil {
		return nil, err
	}

	token, err := s.Tokens.Issue(account.ID, account.TelegramID, session.ID, session.ExpiresAt)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Account: account, Session: session, Token: token}, nil
}

// resolveAccount looks the account up by Telegram id, creating it on first
// sign-in. A duplicate-key result from the create means a concurrent
// request inserted the row between our lookup and insert; the row is
// re-fetched and used as is. Existing profile fields stay untouched, only
// last_active_at is refreshed.
func (s *AuthService) resolveAccount(ctx context.Context, identity *telegram.Identity) (*domain.Account, error) {
	account, err := repo.GetAccountByTelegramID(ctx, s.DB, identity.ID)
	switch {
	case err == nil:
		if err := repo.TouchAccount(ctx, s.DB, account.ID, time.Now()); err != nil {
			return nil, err
		}
		return account, nil

	case errors.Is(err, repo.ErrNotFound):
		created, err := repo.CreateAccount(ctx, s.DB, identity, normalizeLocale(identity.LanguageCode))
		if errors.Is(err, repo.ErrDuplicateAccount) {
			return repo.GetAccountByTelegramID(ctx, s.DB, identity.ID)
		}
		return created, err

	default:
		return nil, err
	}
}

// Account fetches an account by its internal id for authenticated reads.
func (s *AuthService) Account(ctx context.Context, id string) (*domain.Account, error) {
	account, err := repo.GetAccount(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	return account, err
}

func (s *AuthService) ttl() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return DefaultSessionTTL
}

// normalizeLocale canonicalizes Telegram's language_code into a BCP 47 tag
// ("ru" -> "ru", "pt-br" -> "pt-BR"). Unparseable values are dropped rather
// than persisted raw.
func normalizeLocale(code string) string {
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	return tag.String()
}
