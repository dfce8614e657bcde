package audit

import (
	"context"
	"log/slog"
	"time"
)

type Logger struct {
	logger *slog.Logger
}

type requestIDKey struct{}

// WithRequestID returns a context whose request id is picked up by LogAction.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, groupID int64, userID, action, resource, resourceID, status, details string) {
	requestID := ""
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		requestID = reqID
	}

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.Int64("group_id", groupID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogGatheringChange(ctx context.Context, groupID int64, userID, action, gatheringID, status, details string) {
	al.LogAction(ctx, groupID, userID, action, "gathering", gatheringID, status, details)
}

func (al *Logger) LogGroupChange(ctx context.Context, groupID int64, userID, action, status, details string) {
	al.LogAction(ctx, groupID, userID, action, "group", "", status, details)
}

func (al *Logger) LogDenied(ctx context.Context, groupID int64, userID, reason string) {
	al.LogAction(ctx, groupID, userID, "access_denied", "api", "", "denied", reason)
}
