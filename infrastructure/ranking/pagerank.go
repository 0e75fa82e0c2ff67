// Package ranking scores the members of a cluster relative to a pivot user.
package ranking

import (
	"context"
	"math"

	"coredetect/application/ports"
	"coredetect/domain/core/aggregates"
	"coredetect/domain/core/valueobjects"

	"go.uber.org/zap"
)

// Ranking method names stored with each ranking
const (
	MethodPageRank = "pagerank"
	MethodRetweet  = "retweet"
)

// PageRankConfig holds configuration for PageRank computation
type PageRankConfig struct {
	Iterations    int
	DampingFactor float64
	Tolerance     float64
}

// DefaultPageRankConfig returns the standard PageRank configuration
func DefaultPageRankConfig() PageRankConfig {
	return PageRankConfig{
		Iterations:    20,
		DampingFactor: 0.85,
		Tolerance:     1e-6,
	}
}

// PageRankRanker ranks cluster members by PageRank over the follow edges among them
type PageRankRanker struct {
	graphs   ports.SocialGraphRepository
	rankings ports.RankingRepository
	config   PageRankConfig
	logger   *zap.Logger
}

// NewPageRankRanker creates a new PageRankRanker
func NewPageRankRanker(graphs ports.SocialGraphRepository, rankings ports.RankingRepository, config PageRankConfig, logger *zap.Logger) *PageRankRanker {
	return &PageRankRanker{graphs: graphs, rankings: rankings, config: config, logger: logger}
}

var _ ports.Ranker = (*PageRankRanker)(nil)

// Rank scores cluster using the pivot's union graph and saves the ranking
func (r *PageRankRanker) Rank(ctx context.Context, pivot valueobjects.UserID, cluster []valueobjects.UserID) error {
	g, err := r.graphs.Get(ctx, pivot, valueobjects.GraphTypeUnion)
	if err != nil {
		return err
	}

	scores, iterations, err := ComputePageRank(ctx, g, cluster, r.config)
	if err != nil {
		return err
	}
	ranking := aggregates.NewRanking(pivot, MethodPageRank, scores)
	if err := r.rankings.Save(ctx, ranking); err != nil {
		return err
	}

	r.logger.Debug("Ranked cluster",
		zap.String("pivotID", pivot.String()),
		zap.String("method", MethodPageRank),
		zap.Int("members", len(cluster)),
		zap.Int("iterations", iterations),
	)
	return nil
}

// ComputePageRank runs PageRank over the follow edges of g restricted to members.
// Scores are normalized to sum to 1.
func ComputePageRank(ctx context.Context, g *aggregates.SocialGraph, members []valueobjects.UserID, config PageRankConfig) (map[valueobjects.UserID]float64, int, error) {
	n := len(members)
	scores := make(map[valueobjects.UserID]float64, n)
	if n == 0 {
		return scores, 0, nil
	}

	index := make(map[valueobjects.UserID]int, n)
	for i, id := range members {
		index[id] = i
	}

	// inLinks[i] lists the members following i
	inLinks := make([][]int, n)
	outCount := make([]int, n)
	for i, from := range members {
		for _, to := range g.Following(from) {
			if j, ok := index[to]; ok && j != i {
				inLinks[j] = append(inLinks[j], i)
				outCount[i]++
			}
		}
	}

	current := make([]float64, n)
	next := make([]float64, n)
	for i := range current {
		current[i] = 1.0 / float64(n)
	}
	d := config.DampingFactor
	teleport := (1.0 - d) / float64(n)

	iterations := 0
	for iterations < config.Iterations {
		if err := ctx.Err(); err != nil {
			return nil, iterations, err
		}
		iterations++

		// Members following nobody spread their score evenly
		dangling := 0.0
		for i := range current {
			if outCount[i] == 0 {
				dangling += current[i]
			}
		}
		for i := range next {
			sum := 0.0
			for _, j := range inLinks[i] {
				sum += current[j] / float64(outCount[j])
			}
			next[i] = teleport + d*(sum+dangling/float64(n))
		}

		maxDiff := 0.0
		for i := range current {
			maxDiff = math.Max(maxDiff, math.Abs(next[i]-current[i]))
		}
		current, next = next, current
		if maxDiff < config.Tolerance {
			break
		}
	}

	total := 0.0
	for _, s := range current {
		total += s
	}
	for i, id := range members {
		scores[id] = current[i] / total
	}
	return scores, iterations, nil
}
