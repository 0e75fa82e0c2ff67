package dynamodb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Client is the subset of the DynamoDB API the repositories use.
// *dynamodb.Client satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// Metrics records the outcome of table operations
type Metrics interface {
	ObserveDBOperation(operation string, err error)
}

// Single table layout. Every entity of a user lives under USER#<id>.
const (
	entityUser          = "USER"
	entityFriends       = "FRIENDS"
	entityTweet         = "TWEET"
	entityRetweetOf     = "RETWEET_OF"
	entityNeighbourhood = "NEIGHBOURHOOD"
	entitySocialGraph   = "SOCIAL_GRAPH"
	entityClustering    = "CLUSTERING"
	entityRanking       = "RANKING"

	skProfile       = "PROFILE"
	skFriends       = "FRIENDS"
	skNeighbourhood = "NEIGHBOURHOOD"
	skRanking       = "RANKING"
	skTweetPrefix   = "TWEET#"

	// batchWriteLimit is the DynamoDB maximum number of requests per BatchWriteItem
	batchWriteLimit = 25
	maxBatchRetries = 5
)

func userPK(id valueobjects.UserID) string {
	return "USER#" + id.String()
}

func screenNameKey(normalized string) string {
	return "SCREEN#" + normalized
}

func retweetsOfPK(id valueobjects.UserID) string {
	return "RETWEETS_OF#" + id.String()
}

func tweetIDKey(id int64) string {
	return "TWEETID#" + strconv.FormatInt(id, 10)
}

// tweetSK sorts a user's tweets by creation time so cutoffs become range conditions
func tweetSK(createdAt time.Time, id int64) string {
	return fmt.Sprintf("%s%s#%020d", skTweetPrefix, sortableTime(createdAt), id)
}

func tweetCutoffSK(cutoff time.Time) string {
	return skTweetPrefix + sortableTime(cutoff)
}

func graphSK(graphType valueobjects.GraphType) string {
	return "GRAPH#" + string(graphType)
}

func clusteringSK(params valueobjects.ClusteringParams) string {
	return "CLUSTERS#" + params.Key()
}

// table holds what every repository needs to talk to the shared table
type table struct {
	client    Client
	name      string
	indexName string
	metrics   Metrics
}

func (t table) observe(operation string, err error) {
	if t.metrics != nil {
		t.metrics.ObserveDBOperation(operation, err)
	}
}

func (t table) key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func (t table) putItem(ctx context.Context, operation string, item map[string]types.AttributeValue) error {
	_, err := t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.name),
		Item:      item,
	})
	t.observe(operation, err)
	if err != nil {
		return pkgerrors.NewDatabaseError(operation, err)
	}
	return nil
}

// getItem returns nil without error when the item does not exist
func (t table) getItem(ctx context.Context, operation, pk, sk string) (map[string]types.AttributeValue, error) {
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.name),
		Key:            t.key(pk, sk),
		ConsistentRead: aws.Bool(true),
	})
	t.observe(operation, err)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError(operation, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return out.Item, nil
}

// queryAll follows LastEvaluatedKey until the query is exhausted
func (t table) queryAll(ctx context.Context, operation string, input *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(t.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		t.observe(operation, err)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError(operation, err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// countEntities scans the table counting items of one entity type
func (t table) countEntities(ctx context.Context, operation, entityType string) (int64, error) {
	expr, err := expression.NewBuilder().
		WithFilter(expression.Name("EntityType").Equal(expression.Value(entityType))).
		Build()
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to build count expression")
	}

	var count int64
	paginator := dynamodb.NewScanPaginator(t.client, &dynamodb.ScanInput{
		TableName:                 aws.String(t.name),
		Select:                    types.SelectCount,
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		t.observe(operation, err)
		if err != nil {
			return 0, pkgerrors.NewDatabaseError(operation, err)
		}
		count += int64(page.Count)
	}
	return count, nil
}

// batchPut writes items in chunks of 25, resubmitting unprocessed items
func (t table) batchPut(ctx context.Context, operation string, items []map[string]types.AttributeValue) error {
	requests := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	return t.batchWrite(ctx, operation, requests)
}

// batchDelete deletes the items with the given keys
func (t table) batchDelete(ctx context.Context, operation string, keys []map[string]types.AttributeValue) error {
	requests := make([]types.WriteRequest, 0, len(keys))
	for _, key := range keys {
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: key}})
	}
	return t.batchWrite(ctx, operation, requests)
}

func (t table) batchWrite(ctx context.Context, operation string, requests []types.WriteRequest) error {
	for start := 0; start < len(requests); start += batchWriteLimit {
		end := start + batchWriteLimit
		if end > len(requests) {
			end = len(requests)
		}

		pending := map[string][]types.WriteRequest{t.name: requests[start:end]}
		for attempt := 0; len(pending[t.name]) > 0; attempt++ {
			if attempt >= maxBatchRetries {
				return pkgerrors.NewUnavailableError("dynamodb").
					WithDetail("operation", operation).
					WithDetail("unprocessed", len(pending[t.name]))
			}
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(attempt*attempt) * 50 * time.Millisecond):
				}
			}

			out, err := t.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			t.observe(operation, err)
			if err != nil {
				return pkgerrors.NewDatabaseError(operation, err)
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}

func userIDsToInt64(ids []valueobjects.UserID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = id.Int64()
	}
	return out
}

func userIDsFromInt64(raw []int64) ([]valueobjects.UserID, error) {
	out := make([]valueobjects.UserID, 0, len(raw))
	for _, n := range raw {
		id, err := valueobjects.NewUserIDFromInt64(n)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// sortableTime has a fixed width so sort keys order lexically by time
func sortableTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
