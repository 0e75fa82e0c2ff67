// Package memory provides in-memory implementations of the repositories for
// local runs and tests.
package memory

import (
	"context"
	"sync"

	"coredetect/application/ports"
	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"
)

// InMemoryUserRepository provides an in-memory implementation of UserRepository
type InMemoryUserRepository struct {
	mu           sync.RWMutex
	users        map[valueobjects.UserID]entities.User
	screenToUser map[string]valueobjects.UserID
}

// NewInMemoryUserRepository creates a new in-memory user repository
func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:        make(map[valueobjects.UserID]entities.User),
		screenToUser: make(map[string]valueobjects.UserID),
	}
}

var _ ports.UserRepository = (*InMemoryUserRepository)(nil)

// Save stores a copy of the user
func (r *InMemoryUserRepository) Save(ctx context.Context, user *entities.User) error {
	if user == nil || user.ID.IsZero() {
		return pkgerrors.NewValidationError("invalid user")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if previous, ok := r.users[user.ID]; ok {
		delete(r.screenToUser, entities.NormalizedScreenName(previous.ScreenName))
	}
	r.users[user.ID] = *user
	r.screenToUser[entities.NormalizedScreenName(user.ScreenName)] = user.ID
	return nil
}

// GetByID retrieves a user by its ID
func (r *InMemoryUserRepository) GetByID(ctx context.Context, id valueobjects.UserID) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("user").WithDetail("user_id", id.String())
	}
	return &user, nil
}

// GetByScreenName retrieves a user by case-insensitive screen name
func (r *InMemoryUserRepository) GetByScreenName(ctx context.Context, screenName string) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.screenToUser[entities.NormalizedScreenName(screenName)]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("user").WithDetail("screen_name", screenName)
	}
	user := r.users[id]
	return &user, nil
}

// Exists checks whether a user is stored
func (r *InMemoryUserRepository) Exists(ctx context.Context, id valueobjects.UserID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[id]
	return ok, nil
}

// Count returns the number of stored users
func (r *InMemoryUserRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.users)), nil
}

// InMemoryFriendsRepository provides an in-memory implementation of FriendsRepository
type InMemoryFriendsRepository struct {
	mu      sync.RWMutex
	friends map[valueobjects.UserID]entities.FriendsList
}

// NewInMemoryFriendsRepository creates a new in-memory friends repository
func NewInMemoryFriendsRepository() *InMemoryFriendsRepository {
	return &InMemoryFriendsRepository{friends: make(map[valueobjects.UserID]entities.FriendsList)}
}

var _ ports.FriendsRepository = (*InMemoryFriendsRepository)(nil)

// Save stores a copy of the friends list
func (r *InMemoryFriendsRepository) Save(ctx context.Context, friends *entities.FriendsList) error {
	if friends == nil || friends.UserID.IsZero() {
		return pkgerrors.NewValidationError("invalid friends list")
	}
	stored := *friends
	stored.Friends = append([]valueobjects.UserID(nil), friends.Friends...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.friends[friends.UserID] = stored
	return nil
}

// Get retrieves the friends list of a user
func (r *InMemoryFriendsRepository) Get(ctx context.Context, userID valueobjects.UserID) (*entities.FriendsList, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.friends[userID]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("friends").WithDetail("user_id", userID.String())
	}
	stored.Friends = append([]valueobjects.UserID(nil), stored.Friends...)
	return &stored, nil
}

// Exists checks whether a friends list is stored
func (r *InMemoryFriendsRepository) Exists(ctx context.Context, userID valueobjects.UserID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.friends[userID]
	return ok, nil
}
