// Package clustering partitions social graphs into communities.
package clustering

import (
	"context"
	"math/rand"
	"sort"

	"coredetect/application/ports"
	"coredetect/domain/core/aggregates"
	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"

	"go.uber.org/zap"
)

// DefaultMaxIterations bounds label propagation passes
const DefaultMaxIterations = 100

// LabelPropagationClusterer detects communities with asynchronous label propagation.
// The visiting order is a shuffle seeded by the graph's user id, so a given graph
// always yields the same clusters.
type LabelPropagationClusterer struct {
	graphs        ports.SocialGraphRepository
	clusters      ports.ClusterRepository
	maxIterations int
	logger        *zap.Logger
}

// NewLabelPropagationClusterer creates a clusterer
func NewLabelPropagationClusterer(graphs ports.SocialGraphRepository, clusters ports.ClusterRepository, maxIterations int, logger *zap.Logger) *LabelPropagationClusterer {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &LabelPropagationClusterer{
		graphs:        graphs,
		clusters:      clusters,
		maxIterations: maxIterations,
		logger:        logger,
	}
}

var _ ports.Clusterer = (*LabelPropagationClusterer)(nil)

// Cluster partitions the graph selected by params and saves the result
func (c *LabelPropagationClusterer) Cluster(ctx context.Context, userID valueobjects.UserID, params valueobjects.ClusteringParams) error {
	graphType := params.GraphType
	if graphType == "" {
		graphType = valueobjects.GraphTypeUnion
	}
	if !graphType.IsValid() {
		return pkgerrors.NewValidationError("unknown graph type").WithDetail("graph_type", string(graphType))
	}

	g, err := c.graphs.Get(ctx, userID, graphType)
	if err != nil {
		return err
	}

	labels, passes, err := c.propagate(ctx, g)
	if err != nil {
		return err
	}
	members := groupByLabel(labels)

	clusters := make([]*aggregates.Cluster, 0, len(members))
	for _, m := range members {
		clusters = append(clusters, aggregates.NewCluster(m, params))
	}
	if err := c.clusters.Save(ctx, aggregates.NewClusteringResult(userID, params, clusters)); err != nil {
		return err
	}

	c.logger.Info("Clustered social graph",
		zap.String("userID", userID.String()),
		zap.String("params", params.Key()),
		zap.Int("nodes", len(labels)),
		zap.Int("clusters", len(clusters)),
		zap.Int("passes", passes),
	)
	return nil
}

func (c *LabelPropagationClusterer) propagate(ctx context.Context, g *aggregates.SocialGraph) (map[valueobjects.UserID]valueobjects.UserID, int, error) {
	nodes := g.Nodes()
	labels := make(map[valueobjects.UserID]valueobjects.UserID, len(nodes))
	neighbours := make(map[valueobjects.UserID][]valueobjects.UserID, len(nodes))
	for _, u := range nodes {
		labels[u] = u
		neighbours[u] = g.Neighbors(u)
	}

	rng := rand.New(rand.NewSource(g.SeedID.Int64()))
	order := make([]valueobjects.UserID, len(nodes))
	copy(order, nodes)

	passes := 0
	for passes < c.maxIterations {
		if err := ctx.Err(); err != nil {
			return nil, passes, err
		}
		passes++

		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		changed := false
		for _, u := range order {
			next, ok := winningLabel(neighbours[u], labels)
			if !ok || next == labels[u] {
				continue
			}
			labels[u] = next
			changed = true
		}
		if !changed {
			break
		}
	}
	return labels, passes, nil
}

// winningLabel returns the most frequent neighbour label, ties going to the smallest label.
// Isolated users report false and keep their own label.
func winningLabel(neighbours []valueobjects.UserID, labels map[valueobjects.UserID]valueobjects.UserID) (valueobjects.UserID, bool) {
	if len(neighbours) == 0 {
		return valueobjects.UserID{}, false
	}

	votes := make(map[valueobjects.UserID]int, len(neighbours))
	for _, v := range neighbours {
		votes[labels[v]]++
	}

	var best valueobjects.UserID
	bestVotes := 0
	for label, n := range votes {
		if n > bestVotes || (n == bestVotes && label.Less(best)) {
			best = label
			bestVotes = n
		}
	}
	return best, true
}

// groupByLabel orders clusters by size descending, then by smallest member
func groupByLabel(labels map[valueobjects.UserID]valueobjects.UserID) [][]valueobjects.UserID {
	byLabel := make(map[valueobjects.UserID][]valueobjects.UserID)
	for u, label := range labels {
		byLabel[label] = append(byLabel[label], u)
	}

	out := make([][]valueobjects.UserID, 0, len(byLabel))
	for _, members := range byLabel {
		valueobjects.SortUserIDs(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i][0].Less(out[j][0])
	})
	return out
}
