package errors

import (
	"context"
)

// Tracker reports errors to an external service (Sentry or no-op)
type Tracker interface {
	// CaptureError sends an error to the tracking service
	CaptureError(ctx context.Context, err error, tags map[string]string) error

	// CaptureMessage sends a message to the tracking service
	CaptureMessage(ctx context.Context, message string, level Level, tags map[string]string) error

	// AddBreadcrumb records a conversation step leading up to a later error
	AddBreadcrumb(ctx context.Context, message string, category string, level Level, data map[string]interface{})

	// Flush waits for all pending events to be sent
	Flush(ctx context.Context) error
}

// Level represents the severity level of an error or message
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// String returns the string representation of the level
func (l Level) String() string {
	return string(l)
}

type telegramIDKey struct{}

// WithTelegramID attaches the telegram user ID to ctx so trackers can tag events with it
func WithTelegramID(ctx context.Context, telegramID int64) context.Context {
	return context.WithValue(ctx, telegramIDKey{}, telegramID)
}

// TelegramIDFrom returns the telegram user ID stored by WithTelegramID
func TelegramIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(telegramIDKey{}).(int64)
	return id, ok
}
