package sentry

import (
	"context"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"

	"shrinkbot/pkg/errors"
)

// maxBreadcrumbs keeps roughly the last few conversations of context per event
const maxBreadcrumbs = 50

// Tracker implements error tracking via Sentry
type Tracker struct {
	hub *sentry.Hub
}

// New creates a new Sentry tracker
func New(dsn string, environment string, release string) (*Tracker, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
		MaxBreadcrumbs:   maxBreadcrumbs,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to init sentry")
	}

	return &Tracker{
		hub: sentry.CurrentHub(),
	}, nil
}

// scoped returns a hub clone carrying tags and the telegram user from ctx
func (t *Tracker) scoped(ctx context.Context, tags map[string]string, configure func(*sentry.Scope)) *sentry.Hub {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		if telegramID, ok := errors.TelegramIDFrom(ctx); ok {
			scope.SetUser(sentry.User{ID: strconv.FormatInt(telegramID, 10)})
		}
		if configure != nil {
			configure(scope)
		}
	})
	return hub
}

// CaptureError sends an error to Sentry. Validation errors also carry the offending field.
func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	hub := t.scoped(ctx, tags, func(scope *sentry.Scope) {
		var verr *errors.ValidationError
		if errors.As(err, &verr) {
			scope.SetTag("field", verr.Field)
		}
	})

	hub.CaptureException(err)
	return nil
}

// CaptureMessage sends a message to Sentry
func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	hub := t.scoped(ctx, tags, func(scope *sentry.Scope) {
		scope.SetLevel(convertLevel(level))
	})

	hub.CaptureMessage(message)
	return nil
}

// AddBreadcrumb records a conversation step. Breadcrumbs from concurrent users share
// one buffer, so each is stamped with its telegram_id.
func (t *Tracker) AddBreadcrumb(ctx context.Context, message string, category string, level errors.Level, data map[string]interface{}) {
	if telegramID, ok := errors.TelegramIDFrom(ctx); ok {
		stamped := make(map[string]interface{}, len(data)+1)
		for k, v := range data {
			stamped[k] = v
		}
		stamped["telegram_id"] = telegramID
		data = stamped
	}

	t.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Message:   message,
		Category:  category,
		Level:     convertLevel(level),
		Data:      data,
		Timestamp: time.Now(),
	}, &sentry.BreadcrumbHint{})
}

// Flush waits for pending events, bounded by ctx deadline or 2s
func (t *Tracker) Flush(ctx context.Context) error {
	timeout := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !sentry.Flush(timeout) {
		return errors.Wrap(errors.ErrTimeout, "sentry flush")
	}
	return nil
}

func convertLevel(level errors.Level) sentry.Level {
	switch level {
	case errors.LevelDebug:
		return sentry.LevelDebug
	case errors.LevelInfo:
		return sentry.LevelInfo
	case errors.LevelWarning:
		return sentry.LevelWarning
	case errors.LevelError:
		return sentry.LevelError
	case errors.LevelFatal:
		return sentry.LevelFatal
	default:
		return sentry.LevelInfo
	}
}

var _ errors.Tracker = (*Tracker)(nil)
