package ports

import (
	"context"
	"time"

	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
	"coredetect/domain/events"
)

// UserMaterializer downloads a user profile and persists it. Calls are idempotent.
// An identity that does not exist upstream yields a NOT_FOUND AppError.
type UserMaterializer interface {
	MaterializeByID(ctx context.Context, id valueobjects.UserID) error
	MaterializeByScreenName(ctx context.Context, screenName string) error
}

// FriendsMaterializer downloads and persists the accounts a user follows
type FriendsMaterializer interface {
	MaterializeFriends(ctx context.Context, userID valueobjects.UserID) error
}

// FriendsCleaner normalizes a friends list that is already persisted
type FriendsCleaner interface {
	Clean(ctx context.Context, userID valueobjects.UserID) error
}

// NeighbourhoodMaterializer ensures a user's local neighbourhood is persisted
type NeighbourhoodMaterializer interface {
	Materialize(ctx context.Context, userID valueobjects.UserID) error
}

// SocialGraphBuilder builds and persists the social graphs of a user's neighbourhood
type SocialGraphBuilder interface {
	Build(ctx context.Context, userID valueobjects.UserID) error
}

// Clusterer partitions a user's social graph and persists the result
type Clusterer interface {
	Cluster(ctx context.Context, userID valueobjects.UserID, params valueobjects.ClusteringParams) error
}

// Ranker scores the members of a cluster relative to a pivot and persists the ranking
type Ranker interface {
	Rank(ctx context.Context, pivot valueobjects.UserID, cluster []valueobjects.UserID) error
}

// ContentMaterializer downloads recent content for a set of users
type ContentMaterializer interface {
	StreamForUsers(ctx context.Context, userIDs []valueobjects.UserID) error
}

// SocialNetworkClient is the upstream social network API
type SocialNetworkClient interface {
	// GetUser fetches a profile by id
	GetUser(ctx context.Context, id valueobjects.UserID) (*entities.User, error)

	// GetUserByScreenName fetches a profile by screen name
	GetUserByScreenName(ctx context.Context, screenName string) (*entities.User, error)

	// GetFriendIDs fetches one page of the accounts a user follows.
	// An empty next cursor means the last page.
	GetFriendIDs(ctx context.Context, id valueobjects.UserID, cursor string) (ids []valueobjects.UserID, next string, err error)

	// GetUserTweets fetches a user's tweets created on or after since
	GetUserTweets(ctx context.Context, id valueobjects.UserID, since time.Time) ([]*entities.Tweet, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// ProgressNotifier pushes detection progress to a connected client
type ProgressNotifier interface {
	Notify(ctx context.Context, connectionID string, event events.DomainEvent) error
}

// RunLock serializes work on a shared resource across processes.
// Acquire fails with a CONFLICT AppError while another owner holds the lock.
type RunLock interface {
	Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (release func(context.Context) error, err error)
}
