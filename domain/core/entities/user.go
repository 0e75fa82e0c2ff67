package entities

import (
	"strings"
	"time"

	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"
)

// User is a participant of the social network as it was last materialized
type User struct {
	ID             valueobjects.UserID
	ScreenName     string
	Name           string
	Description    string
	Location       string
	FollowersCount int
	FriendsCount   int
	StatusesCount  int
	Protected      bool
	CreatedAt      time.Time
	MaterializedAt time.Time
}

// NewUser validates the identity fields of a user
func NewUser(id valueobjects.UserID, screenName string) (*User, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("user id cannot be empty")
	}
	screenName = strings.TrimPrefix(strings.TrimSpace(screenName), "@")
	if screenName == "" {
		return nil, pkgerrors.NewValidationError("screen name cannot be empty")
	}
	return &User{
		ID:             id,
		ScreenName:     screenName,
		MaterializedAt: time.Now().UTC(),
	}, nil
}

// NormalizedScreenName is the case-insensitive lookup key for a screen name
func NormalizedScreenName(screenName string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(screenName), "@"))
}

// FriendsList is the set of accounts a user follows
type FriendsList struct {
	UserID    valueobjects.UserID
	Friends   []valueobjects.UserID
	UpdatedAt time.Time
}

// Clean removes duplicates, self references and zero ids and sorts the list.
// It reports whether anything changed.
func (f *FriendsList) Clean() bool {
	seen := valueobjects.NewUserIDSet()
	cleaned := make([]valueobjects.UserID, 0, len(f.Friends))
	for _, id := range f.Friends {
		if id.IsZero() || id.Equals(f.UserID) || seen.Contains(id) {
			continue
		}
		seen.Add(id)
		cleaned = append(cleaned, id)
	}
	valueobjects.SortUserIDs(cleaned)

	changed := len(cleaned) != len(f.Friends)
	if !changed {
		for i := range cleaned {
			if !cleaned[i].Equals(f.Friends[i]) {
				changed = true
				break
			}
		}
	}
	f.Friends = cleaned
	return changed
}
