package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"coredetect/application/ports"
	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"
)

// InMemoryTweetRepository provides an in-memory implementation of TweetRepository.
// Results are ordered by creation time then tweet id.
type InMemoryTweetRepository struct {
	mu     sync.RWMutex
	tweets map[int64]entities.Tweet
}

// NewInMemoryTweetRepository creates a new in-memory tweet repository
func NewInMemoryTweetRepository() *InMemoryTweetRepository {
	return &InMemoryTweetRepository{tweets: make(map[int64]entities.Tweet)}
}

var _ ports.TweetRepository = (*InMemoryTweetRepository)(nil)

// Save stores a tweet
func (r *InMemoryTweetRepository) Save(ctx context.Context, tweet *entities.Tweet) error {
	return r.SaveBatch(ctx, []*entities.Tweet{tweet})
}

// SaveBatch stores multiple tweets
func (r *InMemoryTweetRepository) SaveBatch(ctx context.Context, tweets []*entities.Tweet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tweets {
		if t == nil || t.UserID.IsZero() {
			return pkgerrors.NewValidationError("invalid tweet")
		}
		r.tweets[t.ID] = *t
	}
	return nil
}

// GetByID retrieves a tweet by its ID
func (r *InMemoryTweetRepository) GetByID(ctx context.Context, id int64) (*entities.Tweet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tweets[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("tweet").WithDetail("tweet_id", id)
	}
	return &t, nil
}

// ListByUser retrieves all tweets authored by a user
func (r *InMemoryTweetRepository) ListByUser(ctx context.Context, userID valueobjects.UserID) ([]*entities.Tweet, error) {
	return r.filter(func(t *entities.Tweet) bool { return t.UserID.Equals(userID) }), nil
}

// ListByUserSince retrieves tweets authored by a user on or after the cutoff
func (r *InMemoryTweetRepository) ListByUserSince(ctx context.Context, userID valueobjects.UserID, cutoff time.Time) ([]*entities.Tweet, error) {
	return r.filter(func(t *entities.Tweet) bool {
		return t.UserID.Equals(userID) && t.CreatedSince(cutoff)
	}), nil
}

// ListRetweetsByUser retrieves retweets made by a user
func (r *InMemoryTweetRepository) ListRetweetsByUser(ctx context.Context, userID valueobjects.UserID) ([]*entities.Tweet, error) {
	return r.filter(func(t *entities.Tweet) bool {
		return t.UserID.Equals(userID) && t.IsRetweet()
	}), nil
}

// ListRetweetsByUserSince retrieves retweets made by a user on or after the cutoff
func (r *InMemoryTweetRepository) ListRetweetsByUserSince(ctx context.Context, userID valueobjects.UserID, cutoff time.Time) ([]*entities.Tweet, error) {
	return r.filter(func(t *entities.Tweet) bool {
		return t.UserID.Equals(userID) && t.IsRetweet() && t.CreatedSince(cutoff)
	}), nil
}

// ListRetweetsOfUserSince retrieves retweets of a user's tweets made on or after the cutoff
func (r *InMemoryTweetRepository) ListRetweetsOfUserSince(ctx context.Context, userID valueobjects.UserID, cutoff time.Time) ([]*entities.Tweet, error) {
	return r.filter(func(t *entities.Tweet) bool {
		return t.RetweetUserID.Equals(userID) && t.CreatedSince(cutoff)
	}), nil
}

// ContainsTweetsFrom reports whether any tweet by the user exists on or after the cutoff
func (r *InMemoryTweetRepository) ContainsTweetsFrom(ctx context.Context, userID valueobjects.UserID, cutoff time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tweets {
		if t.UserID.Equals(userID) && t.CreatedSince(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

// Count returns the number of stored tweets
func (r *InMemoryTweetRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.tweets)), nil
}

func (r *InMemoryTweetRepository) filter(keep func(*entities.Tweet) bool) []*entities.Tweet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Tweet
	for _, t := range r.tweets {
		t := t
		if keep(&t) {
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
