package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repairdesk/repair-desk/internal/domain"
	"github.com/repairdesk/repair-desk/internal/intake"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	_, err := store.Get(ctx, "1")
	assert.ErrorIs(t, err, ErrNotFound)

	sess := intake.Session{
		UserID: "1",
		Step:   intake.StepCollectPhotos,
		Draft:  intake.Draft{Channel: domain.ChannelSelfDropOff, Photos: []string{"a"}},
	}
	require.NoError(t, store.Save(ctx, sess))
	sess.Draft.Photos[0] = "mutated"

	got, err := store.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, intake.StepCollectPhotos, got.Step)
	assert.Equal(t, []string{"a"}, got.Draft.Photos)

	require.NoError(t, store.Delete(ctx, "1"))
	_, err = store.Get(ctx, "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreIdleExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(30 * time.Minute)
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	require.NoError(t, store.Save(ctx, intake.Session{UserID: "1", Step: intake.StepEnterProblem}))

	clock = clock.Add(29 * time.Minute)
	_, err := store.Get(ctx, "1")
	require.NoError(t, err)

	clock = clock.Add(time.Minute)
	_, err = store.Get(ctx, "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreWithoutIdleNeverExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	clock := time.Now()
	store.now = func() time.Time { return clock }
	require.NoError(t, store.Save(ctx, intake.Session{UserID: "1", Step: intake.StepChooseBranch}))

	clock = clock.Add(24 * 365 * time.Hour)
	got, err := store.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, intake.StepChooseBranch, got.Step)
}
