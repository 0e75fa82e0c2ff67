package dynamodb

import (
	"context"
	"fmt"
	"time"

	"coredetect/application/ports"
	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"go.uber.org/zap"
)

// FriendsRepository implements ports.FriendsRepository using DynamoDB
type FriendsRepository struct {
	table
	logger *zap.Logger
}

// NewFriendsRepository creates a new FriendsRepository
func NewFriendsRepository(client Client, tableName string, metrics Metrics, logger *zap.Logger) *FriendsRepository {
	return &FriendsRepository{
		table:  table{client: client, name: tableName, metrics: metrics},
		logger: logger,
	}
}

var _ ports.FriendsRepository = (*FriendsRepository)(nil)

type friendsItem struct {
	PK         string  `dynamodbav:"PK"`
	SK         string  `dynamodbav:"SK"`
	EntityType string  `dynamodbav:"EntityType"`
	UserID     int64   `dynamodbav:"UserID"`
	Friends    []int64 `dynamodbav:"Friends"`
	UpdatedAt  string  `dynamodbav:"UpdatedAt"`
}

// Save persists a friends list
func (r *FriendsRepository) Save(ctx context.Context, friends *entities.FriendsList) error {
	updatedAt := friends.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	item := friendsItem{
		PK:         userPK(friends.UserID),
		SK:         skFriends,
		EntityType: entityFriends,
		UserID:     friends.UserID.Int64(),
		Friends:    userIDsToInt64(friends.Friends),
		UpdatedAt:  formatTime(updatedAt),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal friends: %w", err)
	}
	if err := r.putItem(ctx, "SaveFriends", av); err != nil {
		return err
	}

	r.logger.Debug("Saved friends list",
		zap.String("userID", friends.UserID.String()),
		zap.Int("friends", len(friends.Friends)),
	)
	return nil
}

// Get retrieves the friends list of a user
func (r *FriendsRepository) Get(ctx context.Context, userID valueobjects.UserID) (*entities.FriendsList, error) {
	raw, err := r.getItem(ctx, "GetFriends", userPK(userID), skFriends)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, pkgerrors.NewNotFoundError("friends").WithDetail("user_id", userID.String())
	}

	var item friendsItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal friends: %w", err)
	}
	ids, err := userIDsFromInt64(item.Friends)
	if err != nil {
		return nil, fmt.Errorf("invalid stored friend id: %w", err)
	}
	return &entities.FriendsList{
		UserID:    userID,
		Friends:   ids,
		UpdatedAt: parseTime(item.UpdatedAt),
	}, nil
}

// Exists checks whether a friends list has been materialized
func (r *FriendsRepository) Exists(ctx context.Context, userID valueobjects.UserID) (bool, error) {
	raw, err := r.getItem(ctx, "FriendsExist", userPK(userID), skFriends)
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}
