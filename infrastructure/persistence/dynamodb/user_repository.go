package dynamodb

import (
	"context"
	"fmt"

	"coredetect/application/ports"
	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// UserRepository implements ports.UserRepository using DynamoDB.
// Screen name lookups go through GSI1 keyed by the normalized screen name.
type UserRepository struct {
	table
	logger *zap.Logger
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(client Client, tableName, indexName string, metrics Metrics, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		table:  table{client: client, name: tableName, indexName: indexName, metrics: metrics},
		logger: logger,
	}
}

var _ ports.UserRepository = (*UserRepository)(nil)

// userItem represents the DynamoDB item structure for a user profile
type userItem struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	GSI1PK         string `dynamodbav:"GSI1PK"` // SCREEN#<normalized screen name>
	GSI1SK         string `dynamodbav:"GSI1SK"` // USER#<id>
	EntityType     string `dynamodbav:"EntityType"`
	UserID         int64  `dynamodbav:"UserID"`
	ScreenName     string `dynamodbav:"ScreenName"`
	Name           string `dynamodbav:"Name,omitempty"`
	Description    string `dynamodbav:"Description,omitempty"`
	Location       string `dynamodbav:"Location,omitempty"`
	FollowersCount int    `dynamodbav:"FollowersCount"`
	FriendsCount   int    `dynamodbav:"FriendsCount"`
	StatusesCount  int    `dynamodbav:"StatusesCount"`
	Protected      bool   `dynamodbav:"Protected"`
	CreatedAt      string `dynamodbav:"CreatedAt,omitempty"`
	MaterializedAt string `dynamodbav:"MaterializedAt"`
}

// Save persists a user, replacing any previous profile
func (r *UserRepository) Save(ctx context.Context, user *entities.User) error {
	item := userItem{
		PK:             userPK(user.ID),
		SK:             skProfile,
		GSI1PK:         screenNameKey(entities.NormalizedScreenName(user.ScreenName)),
		GSI1SK:         userPK(user.ID),
		EntityType:     entityUser,
		UserID:         user.ID.Int64(),
		ScreenName:     user.ScreenName,
		Name:           user.Name,
		Description:    user.Description,
		Location:       user.Location,
		FollowersCount: user.FollowersCount,
		FriendsCount:   user.FriendsCount,
		StatusesCount:  user.StatusesCount,
		Protected:      user.Protected,
		MaterializedAt: formatTime(user.MaterializedAt),
	}
	if !user.CreatedAt.IsZero() {
		item.CreatedAt = formatTime(user.CreatedAt)
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := r.putItem(ctx, "SaveUser", av); err != nil {
		r.logger.Error("Failed to save user to DynamoDB",
			zap.Error(err),
			zap.String("userID", user.ID.String()),
		)
		return err
	}

	r.logger.Debug("Saved user",
		zap.String("userID", user.ID.String()),
		zap.String("screenName", user.ScreenName),
	)
	return nil
}

// GetByID retrieves a user by its ID
func (r *UserRepository) GetByID(ctx context.Context, id valueobjects.UserID) (*entities.User, error) {
	raw, err := r.getItem(ctx, "GetUser", userPK(id), skProfile)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, pkgerrors.NewNotFoundError("user").WithDetail("user_id", id.String())
	}

	var item userItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return item.toEntity()
}

// GetByScreenName retrieves a user by case-insensitive screen name
func (r *UserRepository) GetByScreenName(ctx context.Context, screenName string) (*entities.User, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(screenNameKey(entities.NormalizedScreenName(screenName))))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build screen name query: %w", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.name),
		IndexName:                 aws.String(r.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	r.observe("GetUserByScreenName", err)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("GetUserByScreenName", err)
	}
	if len(out.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError("user").WithDetail("screen_name", screenName)
	}

	var item userItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return item.toEntity()
}

// Exists checks whether a user has been materialized
func (r *UserRepository) Exists(ctx context.Context, id valueobjects.UserID) (bool, error) {
	raw, err := r.getItem(ctx, "UserExists", userPK(id), skProfile)
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

// Count returns the number of stored users
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	return r.countEntities(ctx, "CountUsers", entityUser)
}

func (i userItem) toEntity() (*entities.User, error) {
	id, err := valueobjects.NewUserIDFromInt64(i.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid stored user id: %w", err)
	}
	user := &entities.User{
		ID:             id,
		ScreenName:     i.ScreenName,
		Name:           i.Name,
		Description:    i.Description,
		Location:       i.Location,
		FollowersCount: i.FollowersCount,
		FriendsCount:   i.FriendsCount,
		StatusesCount:  i.StatusesCount,
		Protected:      i.Protected,
		MaterializedAt: parseTime(i.MaterializedAt),
	}
	if i.CreatedAt != "" {
		user.CreatedAt = parseTime(i.CreatedAt)
	}
	return user, nil
}
