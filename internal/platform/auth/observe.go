package auth

import (
	"context"
	"time"
)

// Logger is the minimal logging surface used by the auth middleware.
type Logger interface {
	Printf(format string, args ...interface{})
}

// MetricsRecorder receives verification outcomes for monitoring.
type MetricsRecorder interface {
	RecordVerification(ctx context.Context, scheme string, success bool, reason string, duration time.Duration)
}
