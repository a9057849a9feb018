package sentry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shrinkbot/pkg/errors"
)

// An empty DSN initializes a disabled client, so nothing leaves the process.
func TestTracker_DisabledClient(t *testing.T) {
	tracker, err := New("", "test", "dev")
	require.NoError(t, err)

	ctx := errors.WithTelegramID(context.Background(), 42)
	tracker.AddBreadcrumb(ctx, "awaiting_photo -> awaiting_size", "conversation", errors.LevelInfo,
		map[string]interface{}{"event": "photo"})

	verr := errors.NewValidationError(errors.ErrInvalidQuality, "quality", "Quality must be between 1 and 95.", 120)
	assert.NoError(t, tracker.CaptureError(ctx, errors.Wrap(verr, "round failed"), map[string]string{"component": "test"}))
	assert.NoError(t, tracker.CaptureMessage(ctx, "hello", errors.LevelWarning, nil))

	flushCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, tracker.Flush(flushCtx))
}

func TestConvertLevel(t *testing.T) {
	assert.Equal(t, "fatal", string(convertLevel(errors.LevelFatal)))
	assert.Equal(t, "warning", string(convertLevel(errors.LevelWarning)))
	assert.Equal(t, "info", string(convertLevel(errors.Level("bogus"))))
}
