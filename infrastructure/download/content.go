package download

import (
	"context"
	"sync"
	"time"

	"coredetect/application/ports"
	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ContentMaterializer downloads recent tweets of users in parallel
type ContentMaterializer struct {
	client  ports.SocialNetworkClient
	tweets  ports.TweetRepository
	cutoff  time.Time
	workers int
	logger  *zap.Logger
}

// NewContentMaterializer creates a new ContentMaterializer.
// Only tweets created on or after cutoff are downloaded.
func NewContentMaterializer(client ports.SocialNetworkClient, tweets ports.TweetRepository, cutoff time.Time, workers int, logger *zap.Logger) *ContentMaterializer {
	if workers < 1 {
		workers = 1
	}
	return &ContentMaterializer{
		client:  client,
		tweets:  tweets,
		cutoff:  cutoff,
		workers: workers,
		logger:  logger,
	}
}

var _ ports.ContentMaterializer = (*ContentMaterializer)(nil)

// StreamForUsers downloads every user's tweets, skipping users that already have tweets
// since the cutoff. A failing user does not stop the others. The first failure is returned.
func (m *ContentMaterializer) StreamForUsers(ctx context.Context, userIDs []valueobjects.UserID) error {
	var (
		mu      sync.Mutex
		saved   int
		skipped int
		failed  int
	)

	var g errgroup.Group
	g.SetLimit(m.workers)
	for _, id := range userIDs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			n, err := m.downloadUser(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				failed++
				return err
			case n < 0:
				skipped++
			default:
				saved += n
			}
			return nil
		})
	}
	failures := g.Wait()

	m.logger.Info("Content download finished",
		zap.Int("users", len(userIDs)),
		zap.Int("tweetsSaved", saved),
		zap.Int("usersSkipped", skipped),
		zap.Int("failures", failed),
	)

	if err := ctx.Err(); err != nil {
		return err
	}
	return failures
}

// downloadUser returns the number of tweets saved, or -1 when the user was already current
func (m *ContentMaterializer) downloadUser(ctx context.Context, id valueobjects.UserID) (int, error) {
	current, err := m.tweets.ContainsTweetsFrom(ctx, id, m.cutoff)
	if err != nil {
		return 0, err
	}
	if current {
		return -1, nil
	}

	tweets, err := m.client.GetUserTweets(ctx, id, m.cutoff)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to download tweets of %s", id)
	}
	if err := m.tweets.SaveBatch(ctx, tweets); err != nil {
		return 0, err
	}
	return len(tweets), nil
}

// NeighbourhoodTweetDownloader downloads tweets for every member of a user's neighbourhood
type NeighbourhoodTweetDownloader struct {
	neighbourhoods ports.NeighbourhoodRepository
	content        ports.ContentMaterializer
	logger         *zap.Logger
}

// NewNeighbourhoodTweetDownloader creates a new NeighbourhoodTweetDownloader
func NewNeighbourhoodTweetDownloader(neighbourhoods ports.NeighbourhoodRepository, content ports.ContentMaterializer, logger *zap.Logger) *NeighbourhoodTweetDownloader {
	return &NeighbourhoodTweetDownloader{neighbourhoods: neighbourhoods, content: content, logger: logger}
}

// Download streams tweets for the stored neighbourhood of userID and returns its size
func (d *NeighbourhoodTweetDownloader) Download(ctx context.Context, userID valueobjects.UserID) (int, error) {
	n, err := d.neighbourhoods.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	users := n.UserIDs()
	d.logger.Info("Downloading neighbourhood tweets",
		zap.String("userID", userID.String()),
		zap.Int("users", len(users)),
	)
	return len(users), d.content.StreamForUsers(ctx, users)
}
