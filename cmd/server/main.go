package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/surelog/surelog/internal/handler"
	"github.com/surelog/surelog/internal/infrastructure/logger"
	"github.com/surelog/surelog/internal/observability/metrics"
	"github.com/surelog/surelog/internal/observability/tracing"
	"github.com/surelog/surelog/internal/repository"
	"github.com/surelog/surelog/internal/security/audit"
	"github.com/surelog/surelog/internal/security/auth"
	"github.com/surelog/surelog/internal/security/middleware"
	"github.com/surelog/surelog/internal/security/ratelimit"
	"github.com/surelog/surelog/internal/service"
	"github.com/surelog/surelog/internal/session"
	"github.com/surelog/surelog/internal/worker"
	"github.com/surelog/surelog/pkg/config"
	"github.com/surelog/surelog/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting SureLog server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize tracing (no-op unless an OTLP endpoint is configured)
	shutdownTracing, err := tracing.Init(ctx, log, "surelog", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Open the Postgres pool and run migrations
	dbCfg := database.DefaultConfig()
	dbCfg.Host = cfg.DBHost
	dbCfg.Port = cfg.DBPort
	dbCfg.User = cfg.DBUser
	dbCfg.Password = cfg.DBPassword
	dbCfg.Database = cfg.DBName
	dbCfg.SSLMode = cfg.DBSSLMode

	pool, err := database.NewConnectionPool(ctx, dbCfg, log)
	if err != nil {
		log.Error("failed to connect to Postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	db := pool.GetDB()

	repos := repository.NewPostgresManager(log)
	if err := repos.RunMigrations(ctx, db); err != nil {
		log.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Initialize the Redis session store
	sessions, err := session.NewStore(cfg.RedisURL, cfg.SessionTTL, log)
	if err != nil {
		log.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer sessions.Close()

	// 6. Initialize services
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "surelog")
	userService := service.NewUserService(db, repos, cfg.BcryptCost, log)
	tenantService := service.NewTenantService(db, repos, log)
	authService := service.NewAuthService(repos.Users(db), tokenManager, cfg.TokenTTL, log)
	authzService := service.NewAuthzService(repos.Memberships(db), repos.Masters(db), repos.Permissions(db), log)

	// 7. Security components
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	defer rateLimiter.Stop()
	auditLogger := audit.NewLogger(log)

	secureCookie := cfg.Environment == "production"

	// 8. Handlers
	loginHandler := handler.NewLoginHandler(authService, sessions, rateLimiter, auditLogger, log,
		cfg.LoginRateLimit, cfg.LoginRateWindow, cfg.SessionTTL, secureCookie)
	sessionHandler := handler.NewSessionHandler(sessions, auditLogger, log, secureCookie)
	tokenHandler := handler.NewTokenHandler(authService, rateLimiter, log, cfg.LoginRateLimit, cfg.LoginRateWindow)
	signinHandler, err := handler.NewSigninHandler(authService, sessions, rateLimiter, auditLogger, log,
		cfg.LoginRateLimit, cfg.LoginRateWindow, cfg.SessionTTL, secureCookie)
	if err != nil {
		log.Error("failed to load sign-in templates", slog.String("error", err.Error()))
		os.Exit(1)
	}
	userHandler := handler.NewUserHandler(userService, authzService, auditLogger, log)
	tenantHandler := handler.NewTenantHandler(tenantService, authzService, log)
	permissionHandler := handler.NewPermissionHandler(tenantService, authzService, auditLogger, log)
	healthHandler := handler.NewHealthHandler(db, sessions)

	// 9. Routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET /signin", signinHandler.Show)
	mux.HandleFunc("POST /signin", signinHandler.Submit)
	mux.HandleFunc("GET /dashboard", signinHandler.Dashboard)
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/signin", http.StatusSeeOther)
	})

	mux.Handle("POST /api/login", loginHandler)
	mux.HandleFunc("POST /api/logout", sessionHandler.Logout)
	mux.HandleFunc("GET /api/checkLoggedInStatus", sessionHandler.CheckLoggedInStatus)
	mux.Handle("POST /api/auth/token", tokenHandler)

	mux.HandleFunc("GET /api/me", userHandler.Me)
	mux.HandleFunc("GET /api/me/tenants", tenantHandler.MyTenants)

	mux.HandleFunc("POST /api/tenants", tenantHandler.Create)
	mux.HandleFunc("GET /api/tenants/{id}", tenantHandler.Get)
	mux.HandleFunc("GET /api/tenants/{id}/users", userHandler.List)
	mux.HandleFunc("POST /api/tenants/{id}/users", userHandler.Create)
	mux.HandleFunc("POST /api/tenants/{id}/members", tenantHandler.AddMember)
	mux.HandleFunc("PUT /api/tenants/{id}/permissions/{role}", permissionHandler.SetRolePermission)

	mux.HandleFunc("PUT /api/masters/{id}/permissions", permissionHandler.SetMasterPermission)
	mux.HandleFunc("POST /api/masters/{id}/bindings", permissionHandler.BindMaster)

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	// CORS honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain: request ID -> metrics -> rate limit -> session/JWT auth ->
	// content type -> CORS -> mux
	chained := withRequestID(
		metrics.HTTPMetricsMiddleware(
			middleware.RateLimitMiddleware(rateLimiter, log)(
				middleware.Authenticate(tokenManager, sessions, log)(
					middleware.ValidateJSONContentType(log)(handlerWithCORS),
				),
			),
		),
		log,
	)
	rootHandler := otelhttp.NewHandler(chained, "surelog.http")

	// 10. Background reconcile worker
	reconcileWorker := worker.NewReconcileWorker(repos.Tenants(db), sessions, log, cfg.ReconcileInterval)
	go reconcileWorker.Start(ctx)

	// 11. HTTP server with graceful shutdown
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
		slog.Duration("session_ttl", cfg.SessionTTL),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	cancel()
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
