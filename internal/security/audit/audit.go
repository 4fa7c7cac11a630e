package audit

import (
	"context"
	"log/slog"
	"time"
)

// Logger emits structured audit events for security-relevant actions. Audit
// entries are ordinary log lines with a fixed shape so they can be filtered
// downstream.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, userID int64, action, resource, resourceID, status, details string) {
	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.Int64("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogLogin(ctx context.Context, userID int64, status string) {
	al.LogAction(ctx, userID, "login", "session", "", status, "")
}

func (al *Logger) LogLogout(ctx context.Context, userID int64) {
	al.LogAction(ctx, userID, "logout", "session", "", "success", "")
}

func (al *Logger) LogDenied(ctx context.Context, userID int64, reason string) {
	al.LogAction(ctx, userID, "access_denied", "api", "", "denied", reason)
}

func (al *Logger) LogUserCreated(ctx context.Context, actorID int64, createdID string) {
	al.LogAction(ctx, actorID, "create", "user", createdID, "success", "")
}

func (al *Logger) LogPermissionChange(ctx context.Context, actorID int64, scope, key string) {
	al.LogAction(ctx, actorID, "set_permission", scope, key, "success", "")
}
