package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/internal/security/audit"
	"github.com/surelog/surelog/internal/security/auth"
	"github.com/surelog/surelog/internal/security/middleware"
	"github.com/surelog/surelog/internal/security/ratelimit"
	"github.com/surelog/surelog/internal/service"
	"github.com/surelog/surelog/internal/session"
)

type signinFixture struct {
	handler  *SigninHandler
	sessions *session.Store
	redis    *miniredis.Miniredis
	authn    func(http.Handler) http.Handler
}

func newSigninFixture(t *testing.T) *signinFixture {
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
	h, err := NewSigninHandler(authService, sessions, limiter, audit.NewLogger(log), log,
		100, time.Minute, time.Hour, false)
	if err != nil {
		t.Fatalf("signin handler: %v", err)
	}

	tm := auth.NewTokenManager("test-secret", "surelog")
	return &signinFixture{
		handler:  h,
		sessions: sessions,
		redis:    mr,
		authn:    middleware.Authenticate(tm, sessions, log),
	}
}

func submitSignin(t *testing.T, fx *signinFixture, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"email": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/signin", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	fx.handler.Submit(rec, req)
	return rec
}

func TestSigninShowRendersForm(t *testing.T) {
	fx := newSigninFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/signin", nil)
	rec := httptest.NewRecorder()
	fx.authn(http.HandlerFunc(fx.handler.Show)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `name="email"`) || !strings.Contains(body, `name="password"`) {
		t.Fatalf("expected sign-in form fields, got: %s", body)
	}
}

func TestSigninShowWithSessionRendersSignedIn(t *testing.T) {
	fx := newSigninFixture(t)

	sess, err := fx.sessions.Create(context.Background(), 7, "alice@example.com")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/signin", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: sess.ID})
	rec := httptest.NewRecorder()
	fx.authn(http.HandlerFunc(fx.handler.Show)).ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "alice@example.com") {
		t.Fatalf("signed-in view should show the account email, got: %s", body)
	}
	if strings.Contains(body, `name="password"`) {
		t.Fatalf("signed-in view must not render the credential form")
	}
}

func TestSigninSubmitSuccessRedirects(t *testing.T) {
	fx := newSigninFixture(t)

	rec := submitSignin(t, fx, "alice@example.com", "Password1")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Fatalf("expected redirect to /dashboard, got %q", loc)
	}

	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected session cookie on successful sign-in")
	}
}

func TestSigninSubmitRejectionRerendersWithError(t *testing.T) {
	fx := newSigninFixture(t)

	rec := submitSignin(t, fx, "alice@example.com", "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Invalid email or password.") {
		t.Fatalf("expected inline error message, got: %s", body)
	}
	// The rejected email is kept so the visitor can correct the password.
	if !strings.Contains(body, "alice@example.com") {
		t.Fatalf("expected submitted email to be preserved")
	}

	// Unknown account renders the identical message.
	ghost := submitSignin(t, fx, "ghost@example.com", "Password1")
	if !strings.Contains(ghost.Body.String(), "Invalid email or password.") {
		t.Fatalf("unknown email must render the same error")
	}
}

func TestDashboardRedirectsAnonymous(t *testing.T) {
	fx := newSigninFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rec := httptest.NewRecorder()
	fx.authn(http.HandlerFunc(fx.handler.Dashboard)).ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/signin" {
		t.Fatalf("expected redirect to /signin, got %q", loc)
	}
}
