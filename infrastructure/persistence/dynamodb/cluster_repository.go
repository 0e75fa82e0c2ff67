package dynamodb

import (
	"context"
	"fmt"

	"coredetect/application/ports"
	"coredetect/domain/core/aggregates"
	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"go.uber.org/zap"
)

// ClusterRepository implements ports.ClusterRepository using DynamoDB.
// The clusters of one (user, params) are stored in order as part items keyed by cluster index.
type ClusterRepository struct {
	table
	logger *zap.Logger
}

// NewClusterRepository creates a new ClusterRepository
func NewClusterRepository(client Client, tableName string, metrics Metrics, logger *zap.Logger) *ClusterRepository {
	return &ClusterRepository{
		table:  table{client: client, name: tableName, metrics: metrics},
		logger: logger,
	}
}

var _ ports.ClusterRepository = (*ClusterRepository)(nil)

type clusteringItem struct {
	PK           string            `dynamodbav:"PK"`
	SK           string            `dynamodbav:"SK"` // CLUSTERS#<params key>
	EntityType   string            `dynamodbav:"EntityType"`
	UserID       int64             `dynamodbav:"UserID"`
	GraphType    string            `dynamodbav:"GraphType"`
	Extra        map[string]string `dynamodbav:"Extra,omitempty"`
	ClusterCount int               `dynamodbav:"ClusterCount"`
	CreatedAt    string            `dynamodbav:"CreatedAt"`
	partHeader
}

// Save persists a clustering result
func (r *ClusterRepository) Save(ctx context.Context, result *aggregates.ClusteringResult) error {
	pk, sk := userPK(result.UserID), clusteringSK(result.Params)
	header, err := attributevalue.MarshalMap(clusteringItem{
		PK:           pk,
		SK:           sk,
		EntityType:   entityClustering,
		UserID:       result.UserID.Int64(),
		GraphType:    string(result.Params.GraphType),
		Extra:        result.Params.Extra,
		ClusterCount: len(result.Clusters),
		CreatedAt:    formatTime(result.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal clustering: %w", err)
	}

	entries := make([]idList, 0, len(result.Clusters))
	for i, c := range result.Clusters {
		entries = append(entries, idList{Key: int64(i), IDs: userIDsToInt64(c.Users())})
	}
	parts := chunkEntries(entries, maxPartIDs)

	stale, err := r.writeGeneration(ctx, "SaveClustering", pk, sk, entityClustering, header, parts)
	if err != nil {
		return err
	}
	if err := r.deleteGeneration(ctx, "SaveClustering", pk, sk, stale); err != nil {
		r.logger.Warn("Failed to remove previous clustering parts",
			zap.Error(err),
			zap.String("userID", result.UserID.String()),
		)
	}

	r.logger.Info("Saved clustering",
		zap.String("userID", result.UserID.String()),
		zap.String("params", result.Params.Key()),
		zap.Int("clusters", len(result.Clusters)),
		zap.Int("parts", len(parts)),
	)
	return nil
}

// Get retrieves the clustering of a user for the given params
func (r *ClusterRepository) Get(ctx context.Context, userID valueobjects.UserID, params valueobjects.ClusteringParams) (*aggregates.ClusteringResult, error) {
	raw, parts, err := r.readGeneration(ctx, "GetClustering", userPK(userID), clusteringSK(params))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, pkgerrors.NewNotFoundError("clustering").
			WithDetail("user_id", userID.String()).
			WithDetail("params", params.Key())
	}

	var item clusteringItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal clustering: %w", err)
	}

	stored := valueobjects.ClusteringParams{GraphType: valueobjects.GraphType(item.GraphType), Extra: item.Extra}
	keys, members := mergeEntries(parts)
	clusters := make([]*aggregates.Cluster, 0, len(keys))
	for _, k := range keys {
		ids, err := userIDsFromInt64(members[k])
		if err != nil {
			return nil, fmt.Errorf("invalid stored cluster member: %w", err)
		}
		clusters = append(clusters, aggregates.NewCluster(ids, stored))
	}

	result := aggregates.NewClusteringResult(userID, stored, clusters)
	result.CreatedAt = parseTime(item.CreatedAt)
	return result, nil
}
