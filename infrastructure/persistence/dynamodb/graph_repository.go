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

// GraphRepository implements ports.SocialGraphRepository using DynamoDB.
// Only the directed follow edges are stored, as part items; adjacency is rebuilt on load.
type GraphRepository struct {
	table
	logger *zap.Logger
}

// NewGraphRepository creates a new GraphRepository
func NewGraphRepository(client Client, tableName string, metrics Metrics, logger *zap.Logger) *GraphRepository {
	return &GraphRepository{
		table:  table{client: client, name: tableName, metrics: metrics},
		logger: logger,
	}
}

var _ ports.SocialGraphRepository = (*GraphRepository)(nil)

// graphItem is the header of a stored social graph
type graphItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"` // GRAPH#<type>
	EntityType string `dynamodbav:"EntityType"`
	SeedID     int64  `dynamodbav:"SeedID"`
	GraphType  string `dynamodbav:"GraphType"`
	NodeCount  int    `dynamodbav:"NodeCount"`
	EdgeCount  int    `dynamodbav:"EdgeCount"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
	partHeader
}

// Save persists a graph to DynamoDB
func (r *GraphRepository) Save(ctx context.Context, g *aggregates.SocialGraph) error {
	pk, sk := userPK(g.SeedID), graphSK(g.Type)
	nodes := g.Nodes()
	header, err := attributevalue.MarshalMap(graphItem{
		PK:         pk,
		SK:         sk,
		EntityType: entitySocialGraph,
		SeedID:     g.SeedID.Int64(),
		GraphType:  string(g.Type),
		NodeCount:  len(nodes),
		EdgeCount:  g.EdgeCount(),
		CreatedAt:  formatTime(g.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	parts := chunkEntries(adjacencyEntries(nodes, g.Following), maxPartIDs)
	stale, err := r.writeGeneration(ctx, "SaveSocialGraph", pk, sk, entitySocialGraph, header, parts)
	if err != nil {
		r.logger.Error("Failed to save graph to DynamoDB",
			zap.Error(err),
			zap.String("seedID", g.SeedID.String()),
			zap.String("graphType", string(g.Type)),
		)
		return err
	}
	if err := r.deleteGeneration(ctx, "SaveSocialGraph", pk, sk, stale); err != nil {
		r.logger.Warn("Failed to remove previous graph parts",
			zap.Error(err),
			zap.String("seedID", g.SeedID.String()),
			zap.String("graphType", string(g.Type)),
		)
	}

	r.logger.Info("Successfully saved graph to DynamoDB",
		zap.String("seedID", g.SeedID.String()),
		zap.String("graphType", string(g.Type)),
		zap.Int("nodeCount", len(nodes)),
		zap.Int("edgeCount", g.EdgeCount()),
		zap.Int("parts", len(parts)),
	)
	return nil
}

// Get retrieves the graph of a user for one graph type
func (r *GraphRepository) Get(ctx context.Context, userID valueobjects.UserID, graphType valueobjects.GraphType) (*aggregates.SocialGraph, error) {
	raw, parts, err := r.readGeneration(ctx, "GetSocialGraph", userPK(userID), graphSK(graphType))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, pkgerrors.NewNotFoundError("social graph").
			WithDetail("user_id", userID.String()).
			WithDetail("graph_type", string(graphType))
	}

	var item graphItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph: %w", err)
	}
	nodes, follows, err := adjacencyFromEntries(parts)
	if err != nil {
		return nil, fmt.Errorf("invalid stored graph: %w", err)
	}

	r.logger.Debug("Retrieved graph from DynamoDB",
		zap.String("seedID", userID.String()),
		zap.String("graphType", item.GraphType),
		zap.Int("nodeCount", len(nodes)),
	)
	return aggregates.ReconstructSocialGraph(userID, graphType, nodes, follows, parseTime(item.CreatedAt)), nil
}
