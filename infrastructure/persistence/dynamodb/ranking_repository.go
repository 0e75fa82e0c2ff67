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

// RankingRepository implements ports.RankingRepository using DynamoDB
type RankingRepository struct {
	table
	logger *zap.Logger
}

// NewRankingRepository creates a new RankingRepository
func NewRankingRepository(client Client, tableName string, metrics Metrics, logger *zap.Logger) *RankingRepository {
	return &RankingRepository{
		table:  table{client: client, name: tableName, metrics: metrics},
		logger: logger,
	}
}

var _ ports.RankingRepository = (*RankingRepository)(nil)

type rankedItem struct {
	UserID int64   `dynamodbav:"UserID"`
	Score  float64 `dynamodbav:"Score"`
}

type rankingItem struct {
	PK         string       `dynamodbav:"PK"`
	SK         string       `dynamodbav:"SK"`
	EntityType string       `dynamodbav:"EntityType"`
	PivotID    int64        `dynamodbav:"PivotID"`
	Method     string       `dynamodbav:"Method"`
	Entries    []rankedItem `dynamodbav:"Entries"`
	CreatedAt  string       `dynamodbav:"CreatedAt"`
}

// Save persists a ranking in score order
func (r *RankingRepository) Save(ctx context.Context, ranking *aggregates.Ranking) error {
	entries := ranking.Entries()
	item := rankingItem{
		PK:         userPK(ranking.PivotID),
		SK:         skRanking,
		EntityType: entityRanking,
		PivotID:    ranking.PivotID.Int64(),
		Method:     ranking.Method,
		Entries:    make([]rankedItem, 0, len(entries)),
		CreatedAt:  formatTime(ranking.CreatedAt),
	}
	for _, e := range entries {
		item.Entries = append(item.Entries, rankedItem{UserID: e.UserID.Int64(), Score: e.Score})
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal ranking: %w", err)
	}
	if err := r.putItem(ctx, "SaveRanking", av); err != nil {
		return err
	}

	r.logger.Debug("Saved ranking",
		zap.String("pivotID", ranking.PivotID.String()),
		zap.String("method", ranking.Method),
		zap.Int("entries", len(entries)),
	)
	return nil
}

// Get retrieves the ranking of a pivot user
func (r *RankingRepository) Get(ctx context.Context, pivot valueobjects.UserID) (*aggregates.Ranking, error) {
	raw, err := r.getItem(ctx, "GetRanking", userPK(pivot), skRanking)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, pkgerrors.NewNotFoundError("ranking").WithDetail("user_id", pivot.String())
	}

	var item rankingItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ranking: %w", err)
	}
	ranked := make([]aggregates.RankedUser, 0, len(item.Entries))
	for _, e := range item.Entries {
		id, err := valueobjects.NewUserIDFromInt64(e.UserID)
		if err != nil {
			return nil, fmt.Errorf("invalid stored ranked user: %w", err)
		}
		ranked = append(ranked, aggregates.RankedUser{UserID: id, Score: e.Score})
	}
	return aggregates.ReconstructRanking(pivot, item.Method, ranked, parseTime(item.CreatedAt)), nil
}
