package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithKind(t *testing.T) {
	cause := New("connection reset")
	err := WithKind(Wrap(cause, "failed to download photo"), ErrRetrieval)

	assert.Equal(t, "failed to download photo: connection reset", err.Error())
	assert.True(t, Is(err, ErrRetrieval))
	assert.True(t, Is(err, cause))
	assert.False(t, Is(err, ErrCodec))
	assert.Nil(t, WithKind(nil, ErrCodec))
}

func TestValidationError(t *testing.T) {
	err := NewValidationError(ErrInvalidQuality, "quality", "Quality must be between 1 and 95.", 120)

	assert.Equal(t, "Quality must be between 1 and 95.", err.Error())
	assert.True(t, Is(err, ErrInvalidQuality))

	var verr *ValidationError
	assert.True(t, As(Wrap(err, "set quality"), &verr))
	assert.Equal(t, "quality", verr.Field)
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "anything"))
	assert.Nil(t, Wrapf(nil, "anything %d", 1))
}
