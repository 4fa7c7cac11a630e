package handler

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/internal/observability/metrics"
	"github.com/surelog/surelog/internal/security/audit"
	"github.com/surelog/surelog/internal/security/middleware"
	"github.com/surelog/surelog/internal/security/ratelimit"
	"github.com/surelog/surelog/internal/service"
	"github.com/surelog/surelog/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// signinView carries the state the sign-in page renders: an inline error
// message and a highlight flag that paints the input borders red.
type signinView struct {
	Error     string
	Highlight bool
	Email     string
}

type signedInView struct {
	Email string
}

// SigninHandler serves the server-rendered sign-in flow: the form, the
// already-signed-in view with switch-account and sign-out, and the landing
// page behind it.
type SigninHandler struct {
	authService  *service.AuthService
	sessions     *session.Store
	limiter      *ratelimit.Limiter
	auditLog     *audit.Logger
	logger       *slog.Logger
	templates    *template.Template
	loginLimit   int
	loginWindow  time.Duration
	sessionTTL   time.Duration
	secureCookie bool
}

// NewSigninHandler creates a new sign-in page handler
func NewSigninHandler(
	authService *service.AuthService,
	sessions *session.Store,
	limiter *ratelimit.Limiter,
	auditLog *audit.Logger,
	logger *slog.Logger,
	loginLimit int,
	loginWindow time.Duration,
	sessionTTL time.Duration,
	secureCookie bool,
) (*SigninHandler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &SigninHandler{
		authService:  authService,
		sessions:     sessions,
		limiter:      limiter,
		auditLog:     auditLog,
		logger:       logger,
		templates:    tmpl,
		loginLimit:   loginLimit,
		loginWindow:  loginWindow,
		sessionTTL:   sessionTTL,
		secureCookie: secureCookie,
	}, nil
}

// Show handles GET /signin
func (h *SigninHandler) Show(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal != nil && principal.SessionID != "" {
		h.render(w, http.StatusOK, "signedin.html", signedInView{Email: principal.Email})
		return
	}
	h.render(w, http.StatusOK, "signin.html", signinView{})
}

// Submit handles POST /signin (form submission). A rejected attempt
// re-renders the form with the inline error and highlighted fields; a
// successful one sets the session cookie and redirects to the landing route.
func (h *SigninHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, "signin.html", signinView{Error: "Invalid form submission.", Highlight: true})
		return
	}

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	if !h.limiter.AllowStrict(middleware.ClientIP(r), h.loginLimit, h.loginWindow) {
		h.render(w, http.StatusTooManyRequests, "signin.html", signinView{
			Error: "Too many attempts. Please wait a moment and try again.",
			Email: email,
		})
		return
	}

	user, err := h.authService.VerifyCredentials(r.Context(), email, password)
	if err != nil {
		metrics.ObserveLogin("rejected")
		h.auditLog.LogLogin(r.Context(), 0, "rejected")
		view := signinView{Email: email}
		if errors.Is(err, domain.ErrInvalidCredentials) {
			view.Error = "Invalid email or password."
			view.Highlight = true
			h.render(w, http.StatusUnauthorized, "signin.html", view)
			return
		}
		h.logger.Error("sign-in failed", slog.String("error", err.Error()))
		view.Error = "Something went wrong. Please try again."
		h.render(w, http.StatusInternalServerError, "signin.html", view)
		return
	}

	sess, err := h.sessions.Create(r.Context(), user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to create session", slog.String("error", err.Error()))
		h.render(w, http.StatusInternalServerError, "signin.html", signinView{
			Error: "Something went wrong. Please try again.",
			Email: email,
		})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	metrics.ObserveLogin("success")
	h.auditLog.LogLogin(r.Context(), user.ID, "success")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Dashboard handles GET /dashboard, the landing route. Unauthenticated
// visitors are sent back to the sign-in page.
func (h *SigninHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		http.Redirect(w, r, "/signin", http.StatusSeeOther)
		return
	}
	h.render(w, http.StatusOK, "dashboard.html", signedInView{Email: principal.Email})
}

func (h *SigninHandler) render(w http.ResponseWriter, code int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
	}
}
