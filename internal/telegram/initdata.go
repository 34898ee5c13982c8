// Package telegram implements server-side verification of the launch data
// ("initData") that a Telegram Mini App receives from the Telegram client
// and forwards to the backend. Verification proves the payload was produced
// by Telegram for a specific bot and user, and bounds its age to limit
// replay exposure.
//
// The signing scheme is fixed by Telegram and must be reproduced exactly:
//
//	secret = HMAC-SHA256(key = "WebAppData", message = botToken)
//	hash   = hex(HMAC-SHA256(key = secret, message = dataCheckString))
//
// where dataCheckString is every field except "hash", sorted by key and
// joined as "key=value" lines with "\n". The two-step key derivation is
// part of the protocol and must not be collapsed into a single HMAC over
// the bot token.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Verification errors. Handlers map these to stable HTTP results, so they
// must stay distinct: malformed input is a client error, while a stale or
// forged payload is an authentication failure.
var (
	// ErrMalformedData indicates the raw launch data was empty or not a
	// parseable URL-encoded key-value string.
	ErrMalformedData = errors.New("telegram: malformed launch data")

	// ErrMissingHash indicates the launch data carries no "hash" field,
	// so there is no signature to verify.
	ErrMissingHash = errors.New("telegram: launch data has no hash")

	// ErrExpired indicates auth_date is missing, unparseable, or older
	// than the configured maximum age.
	ErrExpired = errors.New("telegram: launch data expired")

	// ErrBadSignature indicates the recomputed HMAC does not match the
	// provided hash.
	ErrBadSignature = errors.New("telegram: invalid launch data signature")

	// ErrBadIdentity indicates the "user" field is absent or not valid
	// identity JSON.
	ErrBadIdentity = errors.New("telegram: malformed user payload")
)

// Identity is the user object embedded in verified launch data. It is
// untrusted until Verify succeeds; callers must never act on an Identity
// obtained any other way.
type Identity struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
}

// Verifier validates launch-data strings against a bot token. It is
// immutable after construction and safe for concurrent use.
type Verifier struct {
	secret []byte
	maxAge time.Duration

	// now is an injectable clock for freshness tests.
	now func() time.Time
}

// DefaultMaxAge bounds how old a launch-data payload may be. Telegram signs
// auth_date at issue time; anything older is treated as a replay.
const DefaultMaxAge = 24 * time.Hour

// NewVerifier derives the signing secret from botToken and returns a
// Verifier enforcing the given maximum payload age. A maxAge <= 0 falls
// back to DefaultMaxAge. The bot token itself is not retained.
func NewVerifier(botToken string, maxAge time.Duration) *Verifier {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return &Verifier{
		secret: mac.Sum(nil),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Verify checks integrity and freshness of raw launch data and, on success,
// returns the embedded identity together with the verified hash (kept by
// callers as an audit fingerprint, never reused for verification).
//
// Check order is fixed: parse, hash presence, freshness, signature,
// identity. Freshness runs before the signature so replayed payloads are
// rejected without revealing whether their signature would still match.
func (v *Verifier) Verify(raw string) (*Identity, string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, "", ErrMalformedData
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, "", ErrMalformedData
	}

	providedHash := values.Get("hash")
	if providedHash == "" {
		return nil, "", ErrMissingHash
	}
	values.Del("hash")

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, "", ErrExpired
	}
	if v.now().Unix()-authDate > int64(v.maxAge.Seconds()) {
		return nil, "", ErrExpired
	}

	computed := v.sign(dataCheckString(values))
	// Comparison must be constant-time.
	if !hmac.Equal([]byte(computed), []byte(providedHash)) {
		return nil, "", ErrBadSignature
	}

	userJSON := values.Get("user")
	if userJSON == "" {
		return nil, "", ErrBadIdentity
	}
	var id Identity
	if err := json.Unmarshal([]byte(userJSON), &id); err != nil || id.ID == 0 {
		return nil, "", ErrBadIdentity
	}

	return &id, providedHash, nil
}

// sign computes the hex-encoded HMAC-SHA256 of msg under the derived secret.
func (v *Verifier) sign(msg string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// dataCheckString canonicalizes the remaining fields: keys sorted
// lexicographically, joined as "key=value" lines. The output is
// byte-identical regardless of the order fields appeared in the raw string.
// Telegram sends each key at most once; only the first value is used.
func dataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(values.Get(k))
	}
	return b.String()
}
