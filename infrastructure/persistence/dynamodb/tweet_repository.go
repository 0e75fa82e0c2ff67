package dynamodb

import (
	"context"
	"fmt"
	"time"

	"coredetect/application/ports"
	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// tweetRangeEnd sorts after every timestamp so SK BETWEEN stays inside the tweet prefix
const tweetRangeEnd = skTweetPrefix + "~"

// TweetRepository implements ports.TweetRepository using DynamoDB.
// A tweet is stored under its author ordered by creation time; retweets get a second
// item under the retweeted user so "retweets of" queries are a single partition read.
type TweetRepository struct {
	table
	logger *zap.Logger
}

// NewTweetRepository creates a new TweetRepository
func NewTweetRepository(client Client, tableName, indexName string, metrics Metrics, logger *zap.Logger) *TweetRepository {
	return &TweetRepository{
		table:  table{client: client, name: tableName, indexName: indexName, metrics: metrics},
		logger: logger,
	}
}

var _ ports.TweetRepository = (*TweetRepository)(nil)

type tweetItem struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	GSI1PK        string `dynamodbav:"GSI1PK,omitempty"` // TWEETID#<id>, author item only
	GSI1SK        string `dynamodbav:"GSI1SK,omitempty"`
	EntityType    string `dynamodbav:"EntityType"`
	TweetID       int64  `dynamodbav:"TweetID"`
	UserID        int64  `dynamodbav:"UserID"`
	Text          string `dynamodbav:"Text"`
	CreatedAt     string `dynamodbav:"CreatedAt"`
	IsRetweet     bool   `dynamodbav:"IsRetweet"`
	RetweetID     int64  `dynamodbav:"RetweetID,omitempty"`
	RetweetUserID int64  `dynamodbav:"RetweetUserID,omitempty"`
	QuotedUserID  int64  `dynamodbav:"QuotedUserID,omitempty"`
	ReplyToUserID int64  `dynamodbav:"ReplyToUserID,omitempty"`
	RetweetCount  int    `dynamodbav:"RetweetCount"`
	LikeCount     int    `dynamodbav:"LikeCount"`
	Language      string `dynamodbav:"Language,omitempty"`
}

// Save persists a tweet
func (r *TweetRepository) Save(ctx context.Context, tweet *entities.Tweet) error {
	items, err := r.itemsFor(tweet)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := r.putItem(ctx, "SaveTweet", item); err != nil {
			return err
		}
	}
	return nil
}

// SaveBatch persists multiple tweets with BatchWriteItem
func (r *TweetRepository) SaveBatch(ctx context.Context, tweets []*entities.Tweet) error {
	if len(tweets) == 0 {
		return nil
	}

	// The same key twice in one BatchWriteItem call is rejected
	seen := make(map[int64]struct{}, len(tweets))
	all := make([]map[string]types.AttributeValue, 0, len(tweets))
	for _, tweet := range tweets {
		if _, dup := seen[tweet.ID]; dup {
			continue
		}
		seen[tweet.ID] = struct{}{}
		items, err := r.itemsFor(tweet)
		if err != nil {
			return err
		}
		all = append(all, items...)
	}

	if err := r.batchPut(ctx, "SaveTweets", all); err != nil {
		r.logger.Error("Failed to save tweet batch",
			zap.Error(err),
			zap.Int("tweets", len(tweets)),
		)
		return err
	}

	r.logger.Debug("Saved tweet batch",
		zap.Int("tweets", len(seen)),
		zap.Int("items", len(all)),
	)
	return nil
}

// GetByID retrieves a tweet through GSI1
func (r *TweetRepository) GetByID(ctx context.Context, id int64) (*entities.Tweet, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(tweetIDKey(id)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build tweet query: %w", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.name),
		IndexName:                 aws.String(r.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	r.observe("GetTweet", err)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("GetTweet", err)
	}
	if len(out.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError("tweet").WithDetail("tweet_id", id)
	}

	var item tweetItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tweet: %w", err)
	}
	return item.toEntity()
}

// ListByUser retrieves all tweets authored by a user
func (r *TweetRepository) ListByUser(ctx context.Context, userID valueobjects.UserID) ([]*entities.Tweet, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(userPK(userID))).
		And(expression.Key("SK").BeginsWith(skTweetPrefix))
	return r.list(ctx, "ListTweets", keyCond, nil, 0)
}

// ListByUserSince retrieves tweets authored by a user on or after the cutoff
func (r *TweetRepository) ListByUserSince(ctx context.Context, userID valueobjects.UserID, cutoff time.Time) ([]*entities.Tweet, error) {
	return r.list(ctx, "ListTweetsSince", sinceCondition(userPK(userID), cutoff), nil, 0)
}

// ListRetweetsByUser retrieves retweets made by a user
func (r *TweetRepository) ListRetweetsByUser(ctx context.Context, userID valueobjects.UserID) ([]*entities.Tweet, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(userPK(userID))).
		And(expression.Key("SK").BeginsWith(skTweetPrefix))
	filter := expression.Name("IsRetweet").Equal(expression.Value(true))
	return r.list(ctx, "ListRetweets", keyCond, &filter, 0)
}

// ListRetweetsByUserSince retrieves retweets made by a user on or after the cutoff
func (r *TweetRepository) ListRetweetsByUserSince(ctx context.Context, userID valueobjects.UserID, cutoff time.Time) ([]*entities.Tweet, error) {
	filter := expression.Name("IsRetweet").Equal(expression.Value(true))
	return r.list(ctx, "ListRetweetsSince", sinceCondition(userPK(userID), cutoff), &filter, 0)
}

// ListRetweetsOfUserSince retrieves retweets of a user's tweets made on or after the cutoff
func (r *TweetRepository) ListRetweetsOfUserSince(ctx context.Context, userID valueobjects.UserID, cutoff time.Time) ([]*entities.Tweet, error) {
	return r.list(ctx, "ListRetweetsOfSince", sinceCondition(retweetsOfPK(userID), cutoff), nil, 0)
}

// ContainsTweetsFrom reports whether any tweet by the user exists on or after the cutoff
func (r *TweetRepository) ContainsTweetsFrom(ctx context.Context, userID valueobjects.UserID, cutoff time.Time) (bool, error) {
	tweets, err := r.list(ctx, "ContainsTweets", sinceCondition(userPK(userID), cutoff), nil, 1)
	if err != nil {
		return false, err
	}
	return len(tweets) > 0, nil
}

// Count returns the number of stored tweets
func (r *TweetRepository) Count(ctx context.Context) (int64, error) {
	return r.countEntities(ctx, "CountTweets", entityTweet)
}

func sinceCondition(pk string, cutoff time.Time) expression.KeyConditionBuilder {
	return expression.Key("PK").Equal(expression.Value(pk)).
		And(expression.Key("SK").Between(expression.Value(tweetCutoffSK(cutoff)), expression.Value(tweetRangeEnd)))
}

// list runs a query over tweet items. A positive limit reads a single page.
func (r *TweetRepository) list(ctx context.Context, operation string, keyCond expression.KeyConditionBuilder, filter *expression.ConditionBuilder, limit int32) ([]*entities.Tweet, error) {
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if filter != nil {
		builder = builder.WithFilter(*filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build tweet query: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.name),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var raw []map[string]types.AttributeValue
	if limit > 0 {
		input.Limit = aws.Int32(limit)
		out, err := r.client.Query(ctx, input)
		r.observe(operation, err)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError(operation, err)
		}
		raw = out.Items
	} else {
		raw, err = r.queryAll(ctx, operation, input)
		if err != nil {
			return nil, err
		}
	}

	var items []tweetItem
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tweets: %w", err)
	}
	tweets := make([]*entities.Tweet, 0, len(items))
	for _, item := range items {
		tweet, err := item.toEntity()
		if err != nil {
			return nil, err
		}
		tweets = append(tweets, tweet)
	}
	return tweets, nil
}

func (r *TweetRepository) itemsFor(tweet *entities.Tweet) ([]map[string]types.AttributeValue, error) {
	item := tweetItem{
		PK:            userPK(tweet.UserID),
		SK:            tweetSK(tweet.CreatedAt, tweet.ID),
		GSI1PK:        tweetIDKey(tweet.ID),
		GSI1SK:        entityTweet,
		EntityType:    entityTweet,
		TweetID:       tweet.ID,
		UserID:        tweet.UserID.Int64(),
		Text:          tweet.Text,
		CreatedAt:     formatTime(tweet.CreatedAt),
		IsRetweet:     tweet.IsRetweet(),
		RetweetID:     tweet.RetweetID,
		RetweetUserID: tweet.RetweetUserID.Int64(),
		QuotedUserID:  tweet.QuotedUserID.Int64(),
		ReplyToUserID: tweet.ReplyToUserID.Int64(),
		RetweetCount:  tweet.RetweetCount,
		LikeCount:     tweet.LikeCount,
		Language:      tweet.Language,
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tweet: %w", err)
	}
	out := []map[string]types.AttributeValue{av}

	if tweet.IsRetweet() {
		edge := item
		edge.PK = retweetsOfPK(tweet.RetweetUserID)
		edge.GSI1PK = ""
		edge.GSI1SK = ""
		edge.EntityType = entityRetweetOf
		edgeAV, err := attributevalue.MarshalMap(edge)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal retweet edge: %w", err)
		}
		out = append(out, edgeAV)
	}
	return out, nil
}

func (i tweetItem) toEntity() (*entities.Tweet, error) {
	author, err := valueobjects.NewUserIDFromInt64(i.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid stored tweet author: %w", err)
	}
	return &entities.Tweet{
		ID:            i.TweetID,
		UserID:        author,
		Text:          i.Text,
		CreatedAt:     parseTime(i.CreatedAt),
		RetweetID:     i.RetweetID,
		RetweetUserID: optionalUserID(i.RetweetUserID),
		QuotedUserID:  optionalUserID(i.QuotedUserID),
		ReplyToUserID: optionalUserID(i.ReplyToUserID),
		RetweetCount:  i.RetweetCount,
		LikeCount:     i.LikeCount,
		Language:      i.Language,
	}, nil
}

// optionalUserID maps the omitted zero value back to an empty id
func optionalUserID(n int64) valueobjects.UserID {
	if n <= 0 {
		return valueobjects.UserID{}
	}
	id, _ := valueobjects.NewUserIDFromInt64(n)
	return id
}
