package memory

import (
	"context"
	"testing"
	"time"

	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uid(s string) valueobjects.UserID {
	return valueobjects.MustUserID(s)
}

func TestInMemoryUserRepository_ScreenNameLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryUserRepository()
	user, err := entities.NewUser(uid("42"), "Alice")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, user))

	got, err := repo.GetByScreenName(ctx, "@ALICE")
	require.NoError(t, err)
	assert.Equal(t, "42", got.ID.String())

	// Renaming releases the old screen name
	user.ScreenName = "alice2"
	require.NoError(t, repo.Save(ctx, user))
	_, err = repo.GetByScreenName(ctx, "alice")
	assert.True(t, pkgerrors.IsNotFound(err))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestInMemoryUserRepository_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryUserRepository()
	user, _ := entities.NewUser(uid("1"), "bob")
	require.NoError(t, repo.Save(ctx, user))

	got, err := repo.GetByID(ctx, uid("1"))
	require.NoError(t, err)
	got.ScreenName = "changed"

	again, _ := repo.GetByID(ctx, uid("1"))
	assert.Equal(t, "bob", again.ScreenName)
}

func TestInMemoryTweetRepository_Queries(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := NewInMemoryTweetRepository()
	cutoff := entities.DefaultTweetCutoff
	before := cutoff.Add(-time.Hour)
	after := cutoff.Add(time.Hour)

	require.NoError(t, repo.SaveBatch(ctx, []*entities.Tweet{
		{ID: 1, UserID: uid("5"), CreatedAt: before},
		{ID: 2, UserID: uid("5"), CreatedAt: after},
		{ID: 3, UserID: uid("5"), CreatedAt: after, RetweetUserID: uid("9")},
		{ID: 4, UserID: uid("6"), CreatedAt: cutoff, RetweetUserID: uid("9")},
	}))

	tests := []struct {
		name string
		run  func() ([]*entities.Tweet, error)
		want []int64
	}{
		{"by user", func() ([]*entities.Tweet, error) { return repo.ListByUser(ctx, uid("5")) }, []int64{1, 2, 3}},
		{"by user since", func() ([]*entities.Tweet, error) { return repo.ListByUserSince(ctx, uid("5"), cutoff) }, []int64{2, 3}},
		{"retweets by user", func() ([]*entities.Tweet, error) { return repo.ListRetweetsByUser(ctx, uid("5")) }, []int64{3}},
		{"retweets of user since", func() ([]*entities.Tweet, error) { return repo.ListRetweetsOfUserSince(ctx, uid("9"), cutoff) }, []int64{4, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			tweets, err := tt.run()

			// Assert
			require.NoError(t, err)
			got := make([]int64, 0, len(tweets))
			for _, tw := range tweets {
				got = append(got, tw.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	found, err := repo.ContainsTweetsFrom(ctx, uid("6"), cutoff)
	require.NoError(t, err)
	assert.True(t, found)
	found, _ = repo.ContainsTweetsFrom(ctx, uid("6"), after)
	assert.False(t, found)
}

func TestInMemoryClusterRepository_KeyedByParams(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryClusterRepository()

	_, err := repo.Get(ctx, uid("1"), valueobjects.UnionParams())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestInMemoryRunLock(t *testing.T) {
	ctx := context.Background()
	lock := NewInMemoryRunLock()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lock.now = func() time.Time { return now }

	release, err := lock.Acquire(ctx, "detection#1", "a", time.Minute)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, "detection#1", "b", time.Minute)
	assert.True(t, pkgerrors.IsConflict(err))

	// Expired locks can be taken over; the stale release is a no-op
	now = now.Add(2 * time.Minute)
	releaseB, err := lock.Acquire(ctx, "detection#1", "b", time.Minute)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
	_, err = lock.Acquire(ctx, "detection#1", "c", time.Minute)
	assert.True(t, pkgerrors.IsConflict(err))

	require.NoError(t, releaseB(ctx))
	_, err = lock.Acquire(ctx, "detection#1", "c", time.Minute)
	assert.NoError(t, err)
}
