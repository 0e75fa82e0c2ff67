// Package graph builds the social graphs of stored neighbourhoods.
package graph

import (
	"context"

	"coredetect/application/ports"
	"coredetect/domain/core/aggregates"
	"coredetect/domain/core/valueobjects"

	"go.uber.org/zap"
)

// Builder derives union and intersection graphs from a neighbourhood and saves them
type Builder struct {
	neighbourhoods ports.NeighbourhoodRepository
	graphs         ports.SocialGraphRepository
	logger         *zap.Logger
}

// NewBuilder creates a new Builder
func NewBuilder(neighbourhoods ports.NeighbourhoodRepository, graphs ports.SocialGraphRepository, logger *zap.Logger) *Builder {
	return &Builder{neighbourhoods: neighbourhoods, graphs: graphs, logger: logger}
}

var _ ports.SocialGraphBuilder = (*Builder)(nil)

// Build replaces both graphs of userID
func (b *Builder) Build(ctx context.Context, userID valueobjects.UserID) error {
	n, err := b.neighbourhoods.Get(ctx, userID)
	if err != nil {
		return err
	}

	for _, graphType := range []valueobjects.GraphType{valueobjects.GraphTypeUnion, valueobjects.GraphTypeIntersection} {
		g := aggregates.BuildSocialGraph(n, graphType)
		if err := b.graphs.Save(ctx, g); err != nil {
			return err
		}
		b.logger.Debug("Built social graph",
			zap.String("userID", userID.String()),
			zap.String("graphType", string(graphType)),
			zap.Int("nodes", len(g.Nodes())),
			zap.Int("edges", g.EdgeCount()),
		)
	}
	return nil
}
