// Package mocks provides testify mocks of the application ports
package mocks

import (
	"context"
	"time"

	"coredetect/domain/core/aggregates"
	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
	"coredetect/domain/events"
	"github.com/stretchr/testify/mock"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Save(ctx context.Context, user *entities.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id valueobjects.UserID) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*entities.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) GetByScreenName(ctx context.Context, screenName string) (*entities.User, error) {
	args := m.Called(ctx, screenName)
	if args.Get(0) != nil {
		return args.Get(0).(*entities.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) Exists(ctx context.Context, id valueobjects.UserID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockUserMaterializer struct {
	mock.Mock
}

func (m *MockUserMaterializer) MaterializeByID(ctx context.Context, id valueobjects.UserID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserMaterializer) MaterializeByScreenName(ctx context.Context, screenName string) error {
	args := m.Called(ctx, screenName)
	return args.Error(0)
}

type MockFriendsMaterializer struct {
	mock.Mock
}

func (m *MockFriendsMaterializer) MaterializeFriends(ctx context.Context, userID valueobjects.UserID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockFriendsCleaner struct {
	mock.Mock
}

func (m *MockFriendsCleaner) Clean(ctx context.Context, userID valueobjects.UserID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockNeighbourhoodMaterializer struct {
	mock.Mock
}

func (m *MockNeighbourhoodMaterializer) Materialize(ctx context.Context, userID valueobjects.UserID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockSocialGraphBuilder struct {
	mock.Mock
}

func (m *MockSocialGraphBuilder) Build(ctx context.Context, userID valueobjects.UserID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockClusterer struct {
	mock.Mock
}

func (m *MockClusterer) Cluster(ctx context.Context, userID valueobjects.UserID, params valueobjects.ClusteringParams) error {
	args := m.Called(ctx, userID, params)
	return args.Error(0)
}

type MockClusterRepository struct {
	mock.Mock
}

func (m *MockClusterRepository) Save(ctx context.Context, result *aggregates.ClusteringResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockClusterRepository) Get(ctx context.Context, userID valueobjects.UserID, params valueobjects.ClusteringParams) (*aggregates.ClusteringResult, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) != nil {
		return args.Get(0).(*aggregates.ClusteringResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockRanker struct {
	mock.Mock
}

func (m *MockRanker) Rank(ctx context.Context, pivot valueobjects.UserID, cluster []valueobjects.UserID) error {
	args := m.Called(ctx, pivot, cluster)
	return args.Error(0)
}

type MockRankingRepository struct {
	mock.Mock
}

func (m *MockRankingRepository) Save(ctx context.Context, ranking *aggregates.Ranking) error {
	args := m.Called(ctx, ranking)
	return args.Error(0)
}

func (m *MockRankingRepository) Get(ctx context.Context, pivot valueobjects.UserID) (*aggregates.Ranking, error) {
	args := m.Called(ctx, pivot)
	if args.Get(0) != nil {
		return args.Get(0).(*aggregates.Ranking), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockContentMaterializer struct {
	mock.Mock
}

func (m *MockContentMaterializer) StreamForUsers(ctx context.Context, userIDs []valueobjects.UserID) error {
	args := m.Called(ctx, userIDs)
	return args.Error(0)
}

type MockSocialNetworkClient struct {
	mock.Mock
}

func (m *MockSocialNetworkClient) GetUser(ctx context.Context, id valueobjects.UserID) (*entities.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*entities.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSocialNetworkClient) GetUserByScreenName(ctx context.Context, screenName string) (*entities.User, error) {
	args := m.Called(ctx, screenName)
	if args.Get(0) != nil {
		return args.Get(0).(*entities.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSocialNetworkClient) GetFriendIDs(ctx context.Context, id valueobjects.UserID, cursor string) ([]valueobjects.UserID, string, error) {
	args := m.Called(ctx, id, cursor)
	var ids []valueobjects.UserID
	if args.Get(0) != nil {
		ids = args.Get(0).([]valueobjects.UserID)
	}
	return ids, args.String(1), args.Error(2)
}

func (m *MockSocialNetworkClient) GetUserTweets(ctx context.Context, id valueobjects.UserID, since time.Time) ([]*entities.Tweet, error) {
	args := m.Called(ctx, id, since)
	if args.Get(0) != nil {
		return args.Get(0).([]*entities.Tweet), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	args := m.Called(ctx, evts)
	return args.Error(0)
}

type MockProgressNotifier struct {
	mock.Mock
}

func (m *MockProgressNotifier) Notify(ctx context.Context, connectionID string, event events.DomainEvent) error {
	args := m.Called(ctx, connectionID, event)
	return args.Error(0)
}

type MockRunLock struct {
	mock.Mock
}

func (m *MockRunLock) Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (func(context.Context) error, error) {
	args := m.Called(ctx, resource, owner, ttl)
	if args.Get(0) != nil {
		return args.Get(0).(func(context.Context) error), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockFriendsRepository struct {
	mock.Mock
}

func (m *MockFriendsRepository) Save(ctx context.Context, friends *entities.FriendsList) error {
	args := m.Called(ctx, friends)
	return args.Error(0)
}

func (m *MockFriendsRepository) Get(ctx context.Context, userID valueobjects.UserID) (*entities.FriendsList, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).(*entities.FriendsList), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFriendsRepository) Exists(ctx context.Context, userID valueobjects.UserID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}
