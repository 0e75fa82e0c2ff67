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

// NeighbourhoodRepository implements ports.NeighbourhoodRepository using DynamoDB.
// Members and their follow lists are stored as part items behind a header.
type NeighbourhoodRepository struct {
	table
	logger *zap.Logger
}

// NewNeighbourhoodRepository creates a new NeighbourhoodRepository
func NewNeighbourhoodRepository(client Client, tableName string, metrics Metrics, logger *zap.Logger) *NeighbourhoodRepository {
	return &NeighbourhoodRepository{
		table:  table{client: client, name: tableName, metrics: metrics},
		logger: logger,
	}
}

var _ ports.NeighbourhoodRepository = (*NeighbourhoodRepository)(nil)

type neighbourhoodItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	SeedID     int64  `dynamodbav:"SeedID"`
	UserCount  int    `dynamodbav:"UserCount"`
	EdgeCount  int    `dynamodbav:"EdgeCount"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
	partHeader
}

// Save persists a neighbourhood, replacing the previous one of the seed
func (r *NeighbourhoodRepository) Save(ctx context.Context, n *aggregates.Neighbourhood) error {
	pk := userPK(n.SeedID)
	header, err := attributevalue.MarshalMap(neighbourhoodItem{
		PK:         pk,
		SK:         skNeighbourhood,
		EntityType: entityNeighbourhood,
		SeedID:     n.SeedID.Int64(),
		UserCount:  n.Size(),
		EdgeCount:  n.EdgeCount(),
		CreatedAt:  formatTime(n.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal neighbourhood: %w", err)
	}

	parts := chunkEntries(adjacencyEntries(n.UserIDs(), n.Follows), maxPartIDs)
	stale, err := r.writeGeneration(ctx, "SaveNeighbourhood", pk, skNeighbourhood, entityNeighbourhood, header, parts)
	if err != nil {
		r.logger.Error("Failed to save neighbourhood",
			zap.Error(err),
			zap.String("seedID", n.SeedID.String()),
		)
		return err
	}
	if err := r.deleteGeneration(ctx, "SaveNeighbourhood", pk, skNeighbourhood, stale); err != nil {
		r.logger.Warn("Failed to remove previous neighbourhood parts",
			zap.Error(err),
			zap.String("seedID", n.SeedID.String()),
		)
	}

	r.logger.Info("Saved neighbourhood",
		zap.String("seedID", n.SeedID.String()),
		zap.Int("users", n.Size()),
		zap.Int("edges", n.EdgeCount()),
		zap.Int("parts", len(parts)),
	)
	return nil
}

// Get retrieves the neighbourhood of a seed user
func (r *NeighbourhoodRepository) Get(ctx context.Context, userID valueobjects.UserID) (*aggregates.Neighbourhood, error) {
	raw, parts, err := r.readGeneration(ctx, "GetNeighbourhood", userPK(userID), skNeighbourhood)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, pkgerrors.NewNotFoundError("neighbourhood").WithDetail("user_id", userID.String())
	}

	var item neighbourhoodItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal neighbourhood: %w", err)
	}
	users, follows, err := adjacencyFromEntries(parts)
	if err != nil {
		return nil, fmt.Errorf("invalid stored neighbourhood: %w", err)
	}

	n := aggregates.NewNeighbourhood(userID, users, follows)
	n.CreatedAt = parseTime(item.CreatedAt)
	return n, nil
}
