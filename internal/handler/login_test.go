package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/internal/security/audit"
	"github.com/surelog/surelog/internal/security/middleware"
	"github.com/surelog/surelog/internal/security/ratelimit"
	"github.com/surelog/surelog/internal/service"
	"github.com/surelog/surelog/internal/session"
)

type fakeUserRepo struct {
	users map[string]*domain.User
}

func (f *fakeUserRepo) Create(ctx context.Context, u *domain.User) error { return nil }
func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}
func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if u, ok := f.users[email]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}
func (f *fakeUserRepo) Update(ctx context.Context, u *domain.User) error { return nil }
func (f *fakeUserRepo) ListByTenant(ctx context.Context, tenantID int64) ([]*domain.User, error) {
	return nil, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type loginFixture struct {
	handler  *LoginHandler
	sessions *session.Store
	redis    *miniredis.Miniredis
	limiter  *ratelimit.Limiter
}

func newLoginFixture(t *testing.T, loginLimit int) *loginFixture {
	t.Helper()
	log := discardLogger()

	mr := miniredis.RunT(t)
	sessions, err := session.NewStore("redis://"+mr.Addr(), time.Hour, log)
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	t.Cleanup(func() { sessions.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("Password1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	users := &fakeUserRepo{users: map[string]*domain.User{
		"alice@example.com": {ID: 7, Email: "alice@example.com", PasswordHash: string(hash)},
	}}

	limiter := ratelimit.NewLimiter(1000, time.Minute)
	t.Cleanup(limiter.Stop)

	authService := service.NewAuthService(users, nil, time.Minute, log)
	h := NewLoginHandler(authService, sessions, limiter, audit.NewLogger(log), log,
		loginLimit, time.Minute, time.Hour, false)
	return &loginFixture{handler: h, sessions: sessions, redis: mr, limiter: limiter}
}

func postLogin(t *testing.T, h *LoginHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.9:51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginSuccessSetsSessionCookie(t *testing.T) {
	fx := newLoginFixture(t, 10)

	rec := postLogin(t, fx.handler, `{"email":"alice@example.com","password":"Password1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp LoginStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "success" {
		t.Fatalf("expected status success, got %q", resp.Status)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatalf("expected session cookie")
	}
	if !cookie.HttpOnly {
		t.Fatalf("session cookie must be HttpOnly")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected SameSite=Lax, got %v", cookie.SameSite)
	}

	sess, err := fx.sessions.Get(context.Background(), cookie.Value)
	if err != nil {
		t.Fatalf("cookie does not map to a stored session: %v", err)
	}
	if sess.UserID != 7 {
		t.Fatalf("wrong session user: %d", sess.UserID)
	}
}

func TestLoginRejectionsAreIndistinguishable(t *testing.T) {
	fx := newLoginFixture(t, 100)

	unknown := postLogin(t, fx.handler, `{"email":"ghost@example.com","password":"Password1"}`)
	wrongPw := postLogin(t, fx.handler, `{"email":"alice@example.com","password":"nope"}`)

	if unknown.Code != http.StatusUnauthorized || wrongPw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", unknown.Code, wrongPw.Code)
	}
	// The body must not reveal whether the account exists.
	if unknown.Body.String() != wrongPw.Body.String() {
		t.Fatalf("response bodies differ: %q vs %q", unknown.Body.String(), wrongPw.Body.String())
	}

	var resp LoginStatusResponse
	if err := json.Unmarshal(unknown.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "invalidCredentials" {
		t.Fatalf("expected invalidCredentials, got %q", resp.Status)
	}
}

func TestLoginRejectsBadRequests(t *testing.T) {
	fx := newLoginFixture(t, 100)

	if rec := postLogin(t, fx.handler, `{not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: expected 400, got %d", rec.Code)
	}
	if rec := postLogin(t, fx.handler, `{"email":"alice@example.com"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing password: expected 400, got %d", rec.Code)
	}
	if rec := postLogin(t, fx.handler, `{"password":"Password1"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing email: expected 400, got %d", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	fx := newLoginFixture(t, 2)

	body := `{"email":"alice@example.com","password":"nope"}`
	postLogin(t, fx.handler, body)
	postLogin(t, fx.handler, body)

	rec := postLogin(t, fx.handler, body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exceeding login budget, got %d", rec.Code)
	}
}

func TestLoginFailsWhenSessionStoreDown(t *testing.T) {
	fx := newLoginFixture(t, 100)
	fx.redis.Close()

	rec := postLogin(t, fx.handler, `{"email":"alice@example.com","password":"Password1"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when session store is down, got %d", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			t.Fatalf("no session cookie may be issued without a stored session")
		}
	}
}
