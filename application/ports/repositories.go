package ports

import (
	"context"
	"time"

	"coredetect/domain/core/aggregates"
	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
	"coredetect/domain/events"
)

// UserRepository defines the interface for user persistence.
// Lookups of a missing user return a NOT_FOUND AppError.
type UserRepository interface {
	// Save persists a user (create or update)
	Save(ctx context.Context, user *entities.User) error

	// GetByID retrieves a user by its ID
	GetByID(ctx context.Context, id valueobjects.UserID) (*entities.User, error)

	// GetByScreenName retrieves a user by case-insensitive screen name
	GetByScreenName(ctx context.Context, screenName string) (*entities.User, error)

	// Exists checks whether a user has been materialized
	Exists(ctx context.Context, id valueobjects.UserID) (bool, error)

	// Count returns the number of stored users
	Count(ctx context.Context) (int64, error)
}

// FriendsRepository persists the accounts each user follows
type FriendsRepository interface {
	Save(ctx context.Context, friends *entities.FriendsList) error
	Get(ctx context.Context, userID valueobjects.UserID) (*entities.FriendsList, error)
	Exists(ctx context.Context, userID valueobjects.UserID) (bool, error)
}

// TweetRepository defines the interface for tweet persistence
type TweetRepository interface {
	// Save persists a tweet
	Save(ctx context.Context, tweet *entities.Tweet) error

	// SaveBatch persists multiple tweets
	SaveBatch(ctx context.Context, tweets []*entities.Tweet) error

	// GetByID retrieves a tweet by its ID
	GetByID(ctx context.Context, id int64) (*entities.Tweet, error)

	// ListByUser retrieves all tweets authored by a user
	ListByUser(ctx context.Context, userID valueobjects.UserID) ([]*entities.Tweet, error)

	// ListByUserSince retrieves tweets authored by a user on or after the cutoff
	ListByUserSince(ctx context.Context, userID valueobjects.UserID, cutoff time.Time) ([]*entities.Tweet, error)

	// ListRetweetsByUser retrieves retweets made by a user
	ListRetweetsByUser(ctx context.Context, userID valueobjects.UserID) ([]*entities.Tweet, error)

	// ListRetweetsByUserSince retrieves retweets made by a user on or after the cutoff
	ListRetweetsByUserSince(ctx context.Context, userID valueobjects.UserID, cutoff time.Time) ([]*entities.Tweet, error)

	// ListRetweetsOfUserSince retrieves retweets of a user's tweets made on or after the cutoff
	ListRetweetsOfUserSince(ctx context.Context, userID valueobjects.UserID, cutoff time.Time) ([]*entities.Tweet, error)

	// ContainsTweetsFrom reports whether any tweet by the user exists on or after the cutoff
	ContainsTweetsFrom(ctx context.Context, userID valueobjects.UserID, cutoff time.Time) (bool, error)

	// Count returns the number of stored tweets
	Count(ctx context.Context) (int64, error)
}

// NeighbourhoodRepository persists local neighbourhoods keyed by their seed user
type NeighbourhoodRepository interface {
	Save(ctx context.Context, n *aggregates.Neighbourhood) error
	Get(ctx context.Context, userID valueobjects.UserID) (*aggregates.Neighbourhood, error)
}

// SocialGraphRepository persists social graphs keyed by (user, graph type)
type SocialGraphRepository interface {
	Save(ctx context.Context, g *aggregates.SocialGraph) error
	Get(ctx context.Context, userID valueobjects.UserID, graphType valueobjects.GraphType) (*aggregates.SocialGraph, error)
}

// ClusterRepository persists clustering results keyed by (user, params)
type ClusterRepository interface {
	Save(ctx context.Context, result *aggregates.ClusteringResult) error
	Get(ctx context.Context, userID valueobjects.UserID, params valueobjects.ClusteringParams) (*aggregates.ClusteringResult, error)
}

// RankingRepository persists rankings keyed by their pivot user
type RankingRepository interface {
	Save(ctx context.Context, ranking *aggregates.Ranking) error
	Get(ctx context.Context, pivot valueobjects.UserID) (*aggregates.Ranking, error)
}

// RunEventStore keeps the events of each detection run, oldest first
type RunEventStore interface {
	Append(ctx context.Context, records []events.Record) error
	List(ctx context.Context, runID string) ([]events.Record, error)
}
