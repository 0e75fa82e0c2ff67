package download

import (
	"context"
	"sync"

	"coredetect/application/ports"
	"coredetect/domain/core/aggregates"
	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NeighbourhoodMaterializer persists the local neighbourhood of a user: the user,
// its friends, and the follow edges among them.
type NeighbourhoodMaterializer struct {
	friends        ports.FriendsRepository
	downloader     ports.FriendsMaterializer
	cleaner        ports.FriendsCleaner
	neighbourhoods ports.NeighbourhoodRepository
	workers        int
	logger         *zap.Logger
}

// NewNeighbourhoodMaterializer creates a new NeighbourhoodMaterializer
func NewNeighbourhoodMaterializer(
	friends ports.FriendsRepository,
	downloader ports.FriendsMaterializer,
	cleaner ports.FriendsCleaner,
	neighbourhoods ports.NeighbourhoodRepository,
	workers int,
	logger *zap.Logger,
) *NeighbourhoodMaterializer {
	if workers < 1 {
		workers = 1
	}
	return &NeighbourhoodMaterializer{
		friends:        friends,
		downloader:     downloader,
		cleaner:        cleaner,
		neighbourhoods: neighbourhoods,
		workers:        workers,
		logger:         logger,
	}
}

var _ ports.NeighbourhoodMaterializer = (*NeighbourhoodMaterializer)(nil)

// Materialize downloads missing friends lists of the user's friends and saves the neighbourhood.
// Friends whose lists cannot be downloaded stay members without outgoing edges.
func (m *NeighbourhoodMaterializer) Materialize(ctx context.Context, userID valueobjects.UserID) error {
	seed, err := m.ensureFriends(ctx, userID)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	follows := make(map[valueobjects.UserID][]valueobjects.UserID, len(seed)+1)
	follows[userID] = seed
	skipped := 0

	var g errgroup.Group
	g.SetLimit(m.workers)
	for _, friend := range seed {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			list, err := m.ensureFriends(ctx, friend)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				m.logger.Warn("Skipping friends of neighbour",
					zap.String("userID", userID.String()),
					zap.String("neighbourID", friend.String()),
					zap.Error(err),
				)
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			follows[friend] = list
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	n := aggregates.NewNeighbourhood(userID, seed, follows)
	if err := m.neighbourhoods.Save(ctx, n); err != nil {
		return err
	}

	m.logger.Info("Materialized neighbourhood",
		zap.String("userID", userID.String()),
		zap.Int("users", n.Size()),
		zap.Int("edges", n.EdgeCount()),
		zap.Int("skipped", skipped),
	)
	return nil
}

// ensureFriends returns the stored friends of userID, downloading them first when missing
func (m *NeighbourhoodMaterializer) ensureFriends(ctx context.Context, userID valueobjects.UserID) ([]valueobjects.UserID, error) {
	list, err := m.friends.Get(ctx, userID)
	if err == nil {
		return list.Friends, nil
	}
	if !pkgerrors.IsNotFound(err) {
		return nil, err
	}

	if err := m.downloader.MaterializeFriends(ctx, userID); err != nil {
		return nil, err
	}
	if err := m.cleaner.Clean(ctx, userID); err != nil {
		return nil, err
	}
	list, err = m.friends.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return list.Friends, nil
}
