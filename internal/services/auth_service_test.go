package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/thoudof/house-of-arh-bets-sub000/internal/auth"
	"github.com/thoudof/house-of-arh-bets-sub000/internal/domain"
	"github.com/thoudof/house-of-arh-bets-sub000/internal/telegram"
)

const testBotToken = "123456:TEST-TOKEN-abcdef"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:authsvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(&domain.Account{}, &domain.Session{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newAuthService(t *testing.T, db *gorm.DB) *AuthService {
	t.Helper()
	return NewAuthService(db,
		telegram.NewVerifier(testBotToken, 0),
		auth.NewTokenIssuer([]byte("test-token-secret")),
	)
}

// signInitData builds a raw launch-data string signed with botToken.
func signInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}

	secretMAC := hmac.New(sha256.New, []byte("WebAppData"))
	secretMAC.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secretMAC.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))

	v := url.Values{}
	for k, val := range fields {
		v.Set(k, val)
	}
	v.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return v.Encode()
}

func validInitData(t *testing.T, user string) string {
	t.Helper()
	return signInitData(t, testBotToken, map[string]string{
		"user":      user,
		"auth_date": fmt.Sprintf("%d", time.Now().Unix()),
	})
}

func TestAuthenticate_Success(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(t, db)

	raw := validInitData(t, `{"id":123,"first_name":"Anna","username":"anna_k","language_code":"pt-br"}`)
	res, err := svc.Authenticate(context.Background(), raw, "ua=test ip=203.0.113.7")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if res.Account.TelegramID != 123 || res.Account.FirstName != "Anna" {
		t.Fatalf("unexpected account: %+v", res.Account)
	}
	if res.Account.LanguageCode != "pt-BR" {
		t.Fatalf("locale not normalized: %q", res.Account.LanguageCode)
	}
	if res.Token == "" {
		t.Fatal("empty credential")
	}
	if got := res.Session.ExpiresAt.Sub(res.Session.IssuedAt); got != DefaultSessionTTL {
		t.Fatalf("session lifetime = %v, want %v", got, DefaultSessionTTL)
	}
	if res.Session.AccountID != res.Account.ID || !res.Session.IsActive {
		t.Fatalf("unexpected session: %+v", res.Session)
	}
	if res.Session.ClientMetadata != "ua=test ip=203.0.113.7" {
		t.Fatalf("client metadata not recorded: %q", res.Session.ClientMetadata)
	}

	// Fingerprint is the verified hash from the payload.
	parsed, _ := url.ParseQuery(raw)
	if res.Session.SignatureFingerprint != parsed.Get("hash") {
		t.Fatalf("fingerprint %q != payload hash %q", res.Session.SignatureFingerprint, parsed.Get("hash"))
	}
}

func TestAuthenticate_IdempotentAccountCreate(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(t, db)

	raw := validInitData(t, `{"id":123,"first_name":"Anna"}`)
	first, err := svc.Authenticate(context.Background(), raw, "")
	if err != nil {
		t.Fatalf("first Authenticate: %v", err)
	}
	second, err := svc.Authenticate(context.Background(), raw, "")
	if err != nil {
		t.Fatalf("second Authenticate: %v", err)
	}

	if first.Account.ID != second.Account.ID {
		t.Fatalf("expected same account, got %s and %s", first.Account.ID, second.Account.ID)
	}
	var accounts int64
	if err := db.Model(&domain.Account{}).Count(&accounts).Error; err != nil {
		t.Fatalf("count accounts: %v", err)
	}
	if accounts != 1 {
		t.Fatalf("expected exactly 1 account, got %d", accounts)
	}
	var sessions int64
	if err := db.Model(&domain.Session{}).Count(&sessions).Error; err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if sessions != 2 {
		t.Fatalf("expected 2 sessions, got %d", sessions)
	}
}

func TestAuthenticate_ExistingProfileUntouched(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(t, db)

	if _, err := svc.Authenticate(context.Background(),
		validInitData(t, `{"id":123,"first_name":"Anna","username":"anna_k"}`), ""); err != nil {
		t.Fatalf("first Authenticate: %v", err)
	}

	// Same Telegram id, renamed profile: the stored snapshot must not change
	// here (profile sync is the CRUD layer's job), but last_active_at must.
	before, err := svc.Authenticate(context.Background(),
		validInitData(t, `{"id":123,"first_name":"Anya","username":"anya_new"}`), "")
	if err != nil {
		t.Fatalf("second Authenticate: %v", err)
	}
	if before.Account.FirstName != "Anna" || before.Account.Username != "anna_k" {
		t.Fatalf("profile snapshot changed: %+v", before.Account)
	}

	var stored domain.Account
	if err := db.First(&stored, "telegram_id = ?", 123).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.FirstName != "Anna" {
		t.Fatalf("stored profile changed: %+v", stored)
	}
	if time.Since(stored.LastActiveAt) > time.Minute {
		t.Fatalf("last_active_at not refreshed: %v", stored.LastActiveAt)
	}
}

func TestAuthenticate_BadSignature_NoSideEffects(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(t, db)

	v := url.Values{}
	v.Set("user", `{"id":123,"first_name":"Anna"}`)
	v.Set("auth_date", fmt.Sprintf("%d", time.Now().Unix()))
	v.Set("hash", "deadbeef")

	_, err := svc.Authenticate(context.Background(), v.Encode(), "")
	if !errors.Is(err, telegram.ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}

	var accounts, sessions int64
	db.Model(&domain.Account{}).Count(&accounts)
	db.Model(&domain.Session{}).Count(&sessions)
	if accounts != 0 || sessions != 0 {
		t.Fatalf("state persisted on failure: accounts=%d sessions=%d", accounts, sessions)
	}
}

func TestAuthenticate_StaleData(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(t, db)

	// 25h old with an otherwise valid signature.
	raw := signInitData(t, testBotToken, map[string]string{
		"user":      `{"id":123,"first_name":"Anna"}`,
		"auth_date": fmt.Sprintf("%d", time.Now().Add(-25*time.Hour).Unix()),
	})
	if _, err := svc.Authenticate(context.Background(), raw, ""); !errors.Is(err, telegram.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestAuthenticate_MissingHash(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(t, db)

	v := url.Values{}
	v.Set("user", `{"id":123,"first_name":"Anna"}`)
	v.Set("auth_date", fmt.Sprintf("%d", time.Now().Unix()))

	if _, err := svc.Authenticate(context.Background(), v.Encode(), ""); !errors.Is(err, telegram.ErrMissingHash) {
		t.Fatalf("expected ErrMissingHash, got %v", err)
	}
}

func TestAuthenticate_CredentialBindsSession(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(t, db)

	res, err := svc.Authenticate(context.Background(),
		validInitData(t, `{"id":123,"first_name":"Anna"}`), "")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	claims, err := svc.Tokens.Parse(res.Token)
	if err != nil {
		t.Fatalf("Parse credential: %v", err)
	}
	if claims.Subject != res.Account.ID || claims.TelegramID != 123 || claims.SessionID != res.Session.ID {
		t.Fatalf("credential claims mismatch: %+v", claims)
	}
}
