package download

import (
	"context"
	"testing"
	"time"

	"coredetect/application/ports/mocks"
	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
	"coredetect/infrastructure/persistence/memory"
	pkgerrors "coredetect/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func uid(s string) valueobjects.UserID {
	return valueobjects.MustUserID(s)
}

func uids(raw ...string) []valueobjects.UserID {
	out := make([]valueobjects.UserID, len(raw))
	for i, r := range raw {
		out[i] = uid(r)
	}
	return out
}

func TestUserMaterializer_SavesProfile(t *testing.T) {
	ctx := context.Background()
	client := new(mocks.MockSocialNetworkClient)
	users := memory.NewInMemoryUserRepository()
	m := NewUserMaterializer(client, users, zap.NewNop())

	profile, _ := entities.NewUser(uid("42"), "alice")
	client.On("GetUserByScreenName", mock.Anything, "@Alice").Return(profile, nil)

	require.NoError(t, m.MaterializeByScreenName(ctx, "@Alice"))

	got, err := users.GetByScreenName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "42", got.ID.String())
	assert.False(t, got.MaterializedAt.IsZero())
}

func TestUserMaterializer_UnknownIdentity(t *testing.T) {
	client := new(mocks.MockSocialNetworkClient)
	m := NewUserMaterializer(client, memory.NewInMemoryUserRepository(), zap.NewNop())
	client.On("GetUser", mock.Anything, uid("9")).Return(nil, pkgerrors.NewNotFoundError("social network user"))

	err := m.MaterializeByID(context.Background(), uid("9"))

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestFriendsMaterializer_FollowsCursor(t *testing.T) {
	ctx := context.Background()
	client := new(mocks.MockSocialNetworkClient)
	friends := memory.NewInMemoryFriendsRepository()
	m := NewFriendsMaterializer(client, friends, zap.NewNop())

	client.On("GetFriendIDs", mock.Anything, uid("1"), "").Return(uids("3", "2"), "next", nil)
	client.On("GetFriendIDs", mock.Anything, uid("1"), "next").Return(uids("2", "1"), "", nil)

	require.NoError(t, m.MaterializeFriends(ctx, uid("1")))

	list, err := friends.Get(ctx, uid("1"))
	require.NoError(t, err)
	assert.Equal(t, uids("3", "2", "2", "1"), list.Friends)

	// Cleaning drops the duplicate and the self reference
	cleaner := NewFriendsCleaner(friends, zap.NewNop())
	require.NoError(t, cleaner.Clean(ctx, uid("1")))
	list, _ = friends.Get(ctx, uid("1"))
	assert.Equal(t, uids("2", "3"), list.Friends)
}

func TestNeighbourhoodMaterializer_BuildsRestrictedFollows(t *testing.T) {
	// Arrange
	ctx := context.Background()
	client := new(mocks.MockSocialNetworkClient)
	friends := memory.NewInMemoryFriendsRepository()
	neighbourhoods := memory.NewInMemoryNeighbourhoodRepository()
	m := NewNeighbourhoodMaterializer(
		friends,
		NewFriendsMaterializer(client, friends, zap.NewNop()),
		NewFriendsCleaner(friends, zap.NewNop()),
		neighbourhoods,
		2,
		zap.NewNop(),
	)

	client.On("GetFriendIDs", mock.Anything, uid("1"), "").Return(uids("2", "3", "4"), "", nil)
	client.On("GetFriendIDs", mock.Anything, uid("2"), "").Return(uids("3", "99"), "", nil)
	client.On("GetFriendIDs", mock.Anything, uid("3"), "").Return(uids("1"), "", nil)
	// Protected account
	client.On("GetFriendIDs", mock.Anything, uid("4"), "").Return(nil, "", pkgerrors.NewForbiddenError("protected"))

	// Act
	err := m.Materialize(ctx, uid("1"))

	// Assert
	require.NoError(t, err)
	n, err := neighbourhoods.Get(ctx, uid("1"))
	require.NoError(t, err)
	assert.Equal(t, uids("1", "2", "3", "4"), n.UserIDs())
	assert.Equal(t, uids("3"), n.Follows(uid("2")))
	assert.Equal(t, uids("1"), n.Follows(uid("3")))
	assert.Empty(t, n.Follows(uid("4")))
	assert.Equal(t, 5, n.EdgeCount())
}

func TestNeighbourhoodMaterializer_UsesStoredFriends(t *testing.T) {
	ctx := context.Background()
	client := new(mocks.MockSocialNetworkClient)
	friends := memory.NewInMemoryFriendsRepository()
	require.NoError(t, friends.Save(ctx, &entities.FriendsList{UserID: uid("1"), Friends: uids("2")}))
	require.NoError(t, friends.Save(ctx, &entities.FriendsList{UserID: uid("2"), Friends: uids("1")}))
	m := NewNeighbourhoodMaterializer(friends, NewFriendsMaterializer(client, friends, zap.NewNop()),
		NewFriendsCleaner(friends, zap.NewNop()), memory.NewInMemoryNeighbourhoodRepository(), 1, zap.NewNop())

	require.NoError(t, m.Materialize(ctx, uid("1")))

	client.AssertNotCalled(t, "GetFriendIDs", mock.Anything, mock.Anything, mock.Anything)
}

func TestContentMaterializer_StreamForUsers(t *testing.T) {
	cutoff := entities.DefaultTweetCutoff
	tests := []struct {
		name          string
		failing       []string
		expectedErr   bool
		expectedCount int64
	}{
		{
			name:          "all users download",
			expectedCount: 3,
		},
		{
			name:          "one failure is reported and the others still download",
			failing:       []string{"3"},
			expectedErr:   true,
			expectedCount: 2,
		},
		{
			name:          "every user failing is reported",
			failing:       []string{"2", "3"},
			expectedErr:   true,
			expectedCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			ctx := context.Background()
			client := new(mocks.MockSocialNetworkClient)
			tweets := memory.NewInMemoryTweetRepository()
			require.NoError(t, tweets.Save(ctx, &entities.Tweet{ID: 1, UserID: uid("1"), CreatedAt: cutoff.Add(time.Hour)}))

			failing := make(map[string]bool)
			for _, id := range tt.failing {
				failing[id] = true
			}
			for i, id := range []string{"2", "3"} {
				if failing[id] {
					client.On("GetUserTweets", mock.Anything, uid(id), cutoff).
						Return(nil, pkgerrors.NewForbiddenError("protected"))
					continue
				}
				client.On("GetUserTweets", mock.Anything, uid(id), cutoff).
					Return([]*entities.Tweet{{ID: int64(i + 2), UserID: uid(id), CreatedAt: cutoff}}, nil)
			}

			m := NewContentMaterializer(client, tweets, cutoff, 4, zap.NewNop())

			// Act
			err := m.StreamForUsers(ctx, uids("1", "2", "3"))

			// Assert
			if tt.expectedErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeForbidden))
			} else {
				require.NoError(t, err)
			}
			count, _ := tweets.Count(ctx)
			assert.Equal(t, tt.expectedCount, count)
			client.AssertNotCalled(t, "GetUserTweets", mock.Anything, uid("1"), mock.Anything)
			client.AssertNumberOfCalls(t, "GetUserTweets", 2)
		})
	}
}

func TestNeighbourhoodTweetDownloader(t *testing.T) {
	ctx := context.Background()
	neighbourhoods := memory.NewInMemoryNeighbourhoodRepository()
	content := new(mocks.MockContentMaterializer)
	d := NewNeighbourhoodTweetDownloader(neighbourhoods, content, zap.NewNop())

	_, err := d.Download(ctx, uid("1"))
	assert.True(t, pkgerrors.IsNotFound(err))

	friends := memory.NewInMemoryFriendsRepository()
	require.NoError(t, friends.Save(ctx, &entities.FriendsList{UserID: uid("1"), Friends: uids("2", "3")}))
	require.NoError(t, friends.Save(ctx, &entities.FriendsList{UserID: uid("2")}))
	require.NoError(t, friends.Save(ctx, &entities.FriendsList{UserID: uid("3")}))
	m := NewNeighbourhoodMaterializer(friends, nil, nil, neighbourhoods, 1, zap.NewNop())
	require.NoError(t, m.Materialize(ctx, uid("1")))
	content.On("StreamForUsers", mock.Anything, uids("1", "2", "3")).Return(nil)

	size, err := d.Download(ctx, uid("1"))

	require.NoError(t, err)
	assert.Equal(t, 3, size)
}
