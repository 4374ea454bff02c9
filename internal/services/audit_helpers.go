package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/mysterymsg/mystery/internal/auditctx"
)

// auditLogger annotates log with the request actor, when one is attached to ctx.
func auditLogger(log *zap.Logger, ctx context.Context) *zap.Logger {
	actor, ok := auditctx.FromContext(ctx)
	if !ok {
		return log
	}

	fields := make([]zap.Field, 0, 4)
	if actor.IPAddress != "" {
		fields = append(fields, zap.String("client_ip", actor.IPAddress))
	}
	if actor.UserAgent != "" {
		fields = append(fields, zap.String("user_agent", actor.UserAgent))
	}
	if actor.AccountID != "" {
		fields = append(fields, zap.String("actor_id", actor.AccountID))
	}
	if actor.Username != "" {
		fields = append(fields, zap.String("actor", actor.Username))
	}
	return log.With(fields...)
}
