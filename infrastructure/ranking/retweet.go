package ranking

import (
	"context"
	"time"

	"coredetect/application/ports"
	"coredetect/domain/core/aggregates"
	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"

	"go.uber.org/zap"
)

// RetweetRanker ranks cluster members by how often the other members retweeted them
// since the cutoff. Ties are broken by follower count inside the cluster, then by id.
type RetweetRanker struct {
	tweets   ports.TweetRepository
	graphs   ports.SocialGraphRepository
	rankings ports.RankingRepository
	cutoff   time.Time
	logger   *zap.Logger
}

// NewRetweetRanker creates a new RetweetRanker
func NewRetweetRanker(tweets ports.TweetRepository, graphs ports.SocialGraphRepository, rankings ports.RankingRepository, cutoff time.Time, logger *zap.Logger) *RetweetRanker {
	return &RetweetRanker{
		tweets:   tweets,
		graphs:   graphs,
		rankings: rankings,
		cutoff:   cutoff,
		logger:   logger,
	}
}

var _ ports.Ranker = (*RetweetRanker)(nil)

// Rank counts in-cluster retweets of each member and saves the ranking
func (r *RetweetRanker) Rank(ctx context.Context, pivot valueobjects.UserID, cluster []valueobjects.UserID) error {
	members := valueobjects.NewUserIDSet(cluster...)

	g, err := r.graphs.Get(ctx, pivot, valueobjects.GraphTypeUnion)
	if err != nil && !pkgerrors.IsNotFound(err) {
		return err
	}

	// The follower tie-break is scaled below one so it never outweighs a retweet
	tieScale := 1.0 / float64(len(cluster)+1)

	scores := make(map[valueobjects.UserID]float64, len(cluster))
	for _, u := range cluster {
		retweets, err := r.tweets.ListRetweetsOfUserSince(ctx, u, r.cutoff)
		if err != nil {
			return err
		}
		count := 0
		for _, t := range retweets {
			if !t.UserID.Equals(u) && members.Contains(t.UserID) {
				count++
			}
		}

		followers := 0
		if g != nil {
			followers = g.FollowerCountWithin(u, members)
		}
		scores[u] = float64(count) + float64(followers)*tieScale
	}

	ranking := aggregates.NewRanking(pivot, MethodRetweet, scores)
	if err := r.rankings.Save(ctx, ranking); err != nil {
		return err
	}

	r.logger.Debug("Ranked cluster",
		zap.String("pivotID", pivot.String()),
		zap.String("method", MethodRetweet),
		zap.Int("members", len(cluster)),
	)
	return nil
}
