// Package download materializes social network data into the repositories.
package download

import (
	"context"
	"time"

	"coredetect/application/ports"
	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"

	"go.uber.org/zap"
)

// UserMaterializer downloads user profiles and saves them
type UserMaterializer struct {
	client ports.SocialNetworkClient
	users  ports.UserRepository
	logger *zap.Logger
}

// NewUserMaterializer creates a new UserMaterializer
func NewUserMaterializer(client ports.SocialNetworkClient, users ports.UserRepository, logger *zap.Logger) *UserMaterializer {
	return &UserMaterializer{client: client, users: users, logger: logger}
}

var _ ports.UserMaterializer = (*UserMaterializer)(nil)

// MaterializeByID downloads and saves the profile of id
func (m *UserMaterializer) MaterializeByID(ctx context.Context, id valueobjects.UserID) error {
	user, err := m.client.GetUser(ctx, id)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to download user %s", id)
	}
	return m.save(ctx, user)
}

// MaterializeByScreenName downloads and saves the profile of screenName
func (m *UserMaterializer) MaterializeByScreenName(ctx context.Context, screenName string) error {
	user, err := m.client.GetUserByScreenName(ctx, screenName)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to download user @%s", entities.NormalizedScreenName(screenName))
	}
	return m.save(ctx, user)
}

func (m *UserMaterializer) save(ctx context.Context, user *entities.User) error {
	user.MaterializedAt = time.Now().UTC()
	if err := m.users.Save(ctx, user); err != nil {
		return err
	}
	m.logger.Debug("Materialized user",
		zap.String("userID", user.ID.String()),
		zap.String("screenName", user.ScreenName),
	)
	return nil
}

// FriendsMaterializer downloads complete following lists
type FriendsMaterializer struct {
	client  ports.SocialNetworkClient
	friends ports.FriendsRepository
	logger  *zap.Logger
}

// NewFriendsMaterializer creates a new FriendsMaterializer
func NewFriendsMaterializer(client ports.SocialNetworkClient, friends ports.FriendsRepository, logger *zap.Logger) *FriendsMaterializer {
	return &FriendsMaterializer{client: client, friends: friends, logger: logger}
}

var _ ports.FriendsMaterializer = (*FriendsMaterializer)(nil)

// MaterializeFriends follows the cursor until the last page and saves the list
func (m *FriendsMaterializer) MaterializeFriends(ctx context.Context, userID valueobjects.UserID) error {
	var all []valueobjects.UserID
	cursor := ""
	for {
		ids, next, err := m.client.GetFriendIDs(ctx, userID, cursor)
		if err != nil {
			return pkgerrors.Wrapf(err, "failed to download friends of %s", userID)
		}
		all = append(all, ids...)
		if next == "" {
			break
		}
		cursor = next
	}

	if err := m.friends.Save(ctx, &entities.FriendsList{
		UserID:    userID,
		Friends:   all,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	m.logger.Debug("Materialized friends",
		zap.String("userID", userID.String()),
		zap.Int("friends", len(all)),
	)
	return nil
}

// FriendsCleaner normalizes stored friends lists
type FriendsCleaner struct {
	friends ports.FriendsRepository
	logger  *zap.Logger
}

// NewFriendsCleaner creates a new FriendsCleaner
func NewFriendsCleaner(friends ports.FriendsRepository, logger *zap.Logger) *FriendsCleaner {
	return &FriendsCleaner{friends: friends, logger: logger}
}

var _ ports.FriendsCleaner = (*FriendsCleaner)(nil)

// Clean dedupes and sorts the friends of userID, saving only when something changed
func (c *FriendsCleaner) Clean(ctx context.Context, userID valueobjects.UserID) error {
	list, err := c.friends.Get(ctx, userID)
	if err != nil {
		return err
	}
	before := len(list.Friends)
	if !list.Clean() {
		return nil
	}
	list.UpdatedAt = time.Now().UTC()
	if err := c.friends.Save(ctx, list); err != nil {
		return err
	}

	c.logger.Debug("Cleaned friends list",
		zap.String("userID", userID.String()),
		zap.Int("before", before),
		zap.Int("after", len(list.Friends)),
	)
	return nil
}
