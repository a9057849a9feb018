package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shrinkbot/internal/domain/compression"
	"shrinkbot/internal/domain/conversation"
	"shrinkbot/pkg/errors"
)

func TestSessionRepository_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()

	_, err := repo.Get(ctx, 42)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	s := conversation.NewSession(42, 100, time.Now())
	s.State = conversation.StateAwaitingQuality
	s.Photo = &conversation.PhotoRef{FileID: "file-1"}
	s.Target = &conversation.SizeTarget{Size: 500, Unit: compression.UnitKB}
	require.NoError(t, repo.Save(ctx, s, time.Hour))

	got, err := repo.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	require.NoError(t, repo.Delete(ctx, 42))
	require.NoError(t, repo.Delete(ctx, 42))

	_, err = repo.Get(ctx, 42)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSessionRepository_CopiesOnSaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()

	s := conversation.NewSession(1, 1, time.Now())
	s.Photo = &conversation.PhotoRef{FileID: "original"}
	require.NoError(t, repo.Save(ctx, s, time.Hour))

	s.Photo.FileID = "mutated-after-save"

	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Photo.FileID)

	got.Photo.FileID = "mutated-after-get"
	again, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Photo.FileID)
}

func TestSessionRepository_Expiry(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Save(ctx, conversation.NewSession(1, 1, now), time.Minute))
	require.NoError(t, repo.Save(ctx, conversation.NewSession(2, 2, now), time.Hour))
	require.NoError(t, repo.Save(ctx, conversation.NewSession(3, 3, now), 0))
	assert.Equal(t, 3, repo.Count())

	now = now.Add(2 * time.Minute)

	_, err := repo.Get(ctx, 1)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Equal(t, 2, repo.Count())

	removed, err := repo.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	now = now.Add(24 * time.Hour)
	removed, err = repo.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = repo.Get(ctx, 3)
	assert.NoError(t, err)
}

func TestSessionRepository_CountByState(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()

	states := []conversation.State{
		conversation.StateAwaitingPhoto,
		conversation.StateAwaitingPhoto,
		conversation.StateAwaitingSize,
		conversation.StateAwaitingQuality,
	}
	for i, st := range states {
		s := conversation.NewSession(int64(i+1), int64(i+1), time.Now())
		s.State = st
		require.NoError(t, repo.Save(ctx, s, time.Hour))
	}

	counts, err := repo.CountByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"awaiting_photo":   2,
		"awaiting_size":    1,
		"awaiting_quality": 1,
	}, counts)
}

func TestSessionRepository_SaveNil(t *testing.T) {
	err := NewSessionRepository().Save(context.Background(), nil, time.Hour)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
