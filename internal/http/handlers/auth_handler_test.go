package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/thoudof/house-of-arh-bets-sub000/internal/domain"
	"github.com/thoudof/house-of-arh-bets-sub000/internal/services"
	"github.com/thoudof/house-of-arh-bets-sub000/internal/telegram"
)

// --- fakes ---

type fakeAuthenticator struct {
	res     *services.AuthResult
	err     error
	account *domain.Account
	accErr  error

	gotInitData string
	gotMeta     string
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, rawInitData, clientMeta string) (*services.AuthResult, error) {
	f.gotInitData = rawInitData
	f.gotMeta = clientMeta
	return f.res, f.err
}

func (f *fakeAuthenticator) Account(_ context.Context, _ string) (*domain.Account, error) {
	return f.account, f.accErr
}

type fakeSessions struct {
	revokeErr error
	items     []domain.Session
	total     int64
	listErr   error

	gotPage, gotSize int
}

func (f *fakeSessions) Revoke(_ context.Context, _, _ string) error { return f.revokeErr }

func (f *fakeSessions) ListPage(_ context.Context, _ string, page, pageSize int) ([]domain.Session, int64, error) {
	f.gotPage, f.gotSize = page, pageSize
	return f.items, f.total, f.listErr
}

func postAuth(t *testing.T, h *Handlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/telegram-auth", h.TelegramAuth)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/telegram-auth", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestTelegramAuth_Success(t *testing.T) {
	fa := &fakeAuthenticator{
		res: &services.AuthResult{
			Account: &domain.Account{
				ID:         "acc-1",
				TelegramID: 123,
				FirstName:  "Anna",
				Username:   "anna_k",
			},
			Token: "signed-token",
		},
	}
	h := New(fa, &fakeSessions{})

	w := postAuth(t, h, `{"initData":"user=x&auth_date=1&hash=abc"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d body=%s", w.Code, w.Body.String())
	}

	var resp TelegramAuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.SessionToken != "signed-token" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.User.ID != "acc-1" || resp.User.TelegramID != 123 || resp.User.FirstName != "Anna" {
		t.Fatalf("unexpected user: %+v", resp.User)
	}
	if fa.gotInitData != "user=x&auth_date=1&hash=abc" {
		t.Fatalf("service got %q", fa.gotInitData)
	}
	if !strings.Contains(fa.gotMeta, "ip=") {
		t.Fatalf("client metadata not captured: %q", fa.gotMeta)
	}
}

func TestTelegramAuth_MissingInitData(t *testing.T) {
	h := New(&fakeAuthenticator{}, &fakeSessions{})

	for _, body := range []string{`{}`, `{"initData":""}`, `{"initData":"   "}`, `not json`} {
		w := postAuth(t, h, body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: code = %d, want 400", body, w.Code)
		}
		if !strings.Contains(w.Body.String(), `"error"`) {
			t.Fatalf("body %q: missing error field: %s", body, w.Body.String())
		}
	}
}

func TestTelegramAuth_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"malformed", telegram.ErrMalformedData, http.StatusBadRequest, "launch-data"},
		{"missing hash", telegram.ErrMissingHash, http.StatusBadRequest, "hash"},
		{"bad identity", telegram.ErrBadIdentity, http.StatusBadRequest, "user payload"},
		{"expired", telegram.ErrExpired, http.StatusUnauthorized, authFailedMessage},
		{"bad signature", telegram.ErrBadSignature, http.StatusUnauthorized, authFailedMessage},
		{"storage", errors.New("disk on fire"), http.StatusInternalServerError, "temporarily unavailable"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := New(&fakeAuthenticator{err: tc.err}, &fakeSessions{})
			w := postAuth(t, h, `{"initData":"whatever"}`)
			if w.Code != tc.wantStatus {
				t.Fatalf("code = %d, want %d", w.Code, tc.wantStatus)
			}
			var resp map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !strings.Contains(resp["error"], tc.wantMsg) {
				t.Fatalf("error = %q, want substring %q", resp["error"], tc.wantMsg)
			}
		})
	}
}

func TestTelegramAuth_AuthFailureBodyIsExact(t *testing.T) {
	h := New(&fakeAuthenticator{err: telegram.ErrBadSignature}, &fakeSessions{})
	w := postAuth(t, h, `{"initData":"whatever"}`)

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 1 || resp["error"] != "Недействительные данные авторизации" {
		t.Fatalf("401 body must be exactly the localized error: %s", w.Body.String())
	}
}
