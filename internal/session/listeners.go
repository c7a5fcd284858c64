package session

import (
	"context"
	"log/slog"

	"inkwell/internal/platform/metrics"
	"inkwell/internal/platform/privacy"
	"inkwell/pkg/requestcontext"
)

// MetricsListener counts logins and logouts.
func MetricsListener(m *metrics.Metrics) Listener {
	return func(_ context.Context, e Event) {
		switch e.Kind {
		case LoggedIn:
			m.IncrementLogins()
		case LoggedOut:
			m.IncrementLogouts()
		}
	}
}

// LogListener writes one line per session change. Tokens are never logged
// and the client address is truncated to its network.
func LogListener(logger *slog.Logger) Listener {
	return func(ctx context.Context, e Event) {
		attrs := []any{
			"event", string(e.Kind),
			"client_ip", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
			"request_id", requestcontext.RequestID(ctx),
		}
		if e.Session.User != nil {
			attrs = append(attrs, "user_id", e.Session.User.ID, "admin", e.Session.User.Admin)
		}
		logger.InfoContext(ctx, "session changed", attrs...)
	}
}
