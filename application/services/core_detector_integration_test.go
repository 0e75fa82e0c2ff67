package services_test

import (
	"context"
	"testing"
	"time"

	"coredetect/application/services"
	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
	"coredetect/infrastructure/clustering"
	"coredetect/infrastructure/download"
	"coredetect/infrastructure/graph"
	"coredetect/infrastructure/persistence/memory"
	"coredetect/infrastructure/ranking"
	pkgerrors "coredetect/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// staticNetwork serves a fixed follow graph with no tweets
type staticNetwork struct {
	friends map[string][]string
}

func (n *staticNetwork) GetUser(ctx context.Context, id valueobjects.UserID) (*entities.User, error) {
	if _, ok := n.friends[id.String()]; !ok {
		return nil, pkgerrors.NewNotFoundError("user " + id.String())
	}
	return &entities.User{ID: id, ScreenName: "user" + id.String()}, nil
}

func (n *staticNetwork) GetUserByScreenName(ctx context.Context, screenName string) (*entities.User, error) {
	return nil, pkgerrors.NewNotFoundError("user @" + screenName)
}

func (n *staticNetwork) GetFriendIDs(ctx context.Context, id valueobjects.UserID, cursor string) ([]valueobjects.UserID, string, error) {
	raw, ok := n.friends[id.String()]
	if !ok {
		return nil, "", pkgerrors.NewNotFoundError("friends of " + id.String())
	}
	ids := make([]valueobjects.UserID, 0, len(raw))
	for _, r := range raw {
		ids = append(ids, valueobjects.MustUserID(r))
	}
	return ids, "", nil
}

func (n *staticNetwork) GetUserTweets(ctx context.Context, id valueobjects.UserID, since time.Time) ([]*entities.Tweet, error) {
	return nil, nil
}

// newWiredDetector assembles the detector from the real collaborators over memory repositories
func newWiredDetector(client *staticNetwork) *services.CoreDetector {
	logger := zap.NewNop()
	users := memory.NewInMemoryUserRepository()
	friends := memory.NewInMemoryFriendsRepository()
	neighbourhoods := memory.NewInMemoryNeighbourhoodRepository()
	graphs := memory.NewInMemorySocialGraphRepository()
	clusters := memory.NewInMemoryClusterRepository()
	rankings := memory.NewInMemoryRankingRepository()
	tweets := memory.NewInMemoryTweetRepository()

	friendsMaterializer := download.NewFriendsMaterializer(client, friends, logger)
	cleaner := download.NewFriendsCleaner(friends, logger)

	collab := services.Collaborators{
		Users:            users,
		UserMaterializer: download.NewUserMaterializer(client, users, logger),
		Friends:          friendsMaterializer,
		FriendsCleaner:   cleaner,
		Neighbourhoods:   download.NewNeighbourhoodMaterializer(friends, friendsMaterializer, cleaner, neighbourhoods, 2, logger),
		NeighbourhoodsDB: neighbourhoods,
		GraphBuilder:     graph.NewBuilder(neighbourhoods, graphs, logger),
		Clusterer:        clustering.NewLabelPropagationClusterer(graphs, clusters, 0, logger),
		Clusters:         clusters,
		Ranker:           ranking.NewPageRankRanker(graphs, rankings, ranking.DefaultPageRankConfig(), logger),
		Rankings:         rankings,
		Content:          download.NewContentMaterializer(client, tweets, entities.DefaultTweetCutoff, 2, logger),
	}
	return services.NewCoreDetector(collab, services.DetectorConfig{MaxIterations: 10}, nil, nil, nil, nil, logger)
}

func TestCoreDetector_Detect_WiredCollaborators(t *testing.T) {
	// Every neighbourhood below is a clique once follows are made undirected,
	// so label propagation yields a single cluster per step.
	network := map[string][]string{
		"1": {"2", "3", "4"},
		"2": {"1", "3", "5"},
		"3": {"2", "4"},
		"4": {"2"},
		"5": {"1", "2", "3"},
	}

	tests := []struct {
		name                 string
		seed                 string
		expectedCore         string
		expectedSteps        int
		expectedNext         []string
		expectedClusterSizes []int
		expectedSimilarity   []float64
	}{
		{
			name:                 "seed moves to the most followed friend",
			seed:                 "1",
			expectedCore:         "2",
			expectedSteps:        2,
			expectedNext:         []string{"2", "2"},
			expectedClusterSizes: []int{4, 4},
			expectedSimilarity:   []float64{0, 0.6},
		},
		{
			name:                 "seed that ranks itself first converges at once",
			seed:                 "2",
			expectedCore:         "2",
			expectedSteps:        1,
			expectedNext:         []string{"2"},
			expectedClusterSizes: []int{4},
			expectedSimilarity:   []float64{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			d := newWiredDetector(&staticNetwork{friends: network})

			// Act
			result, err := d.Detect(context.Background(), valueobjects.MustUserID(tt.seed), services.DetectOptions{})

			// Assert
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCore, result.Core.String())
			assert.Equal(t, tt.expectedSteps, result.Steps)
			require.Len(t, result.Iterations, tt.expectedSteps)
			for i, record := range result.Iterations {
				assert.Equal(t, i+1, record.Step)
				assert.Equal(t, tt.expectedNext[i], record.NextUserID.String())
				assert.Equal(t, tt.expectedClusterSizes[i], record.ClusterSize)
				assert.InDelta(t, tt.expectedSimilarity[i], record.Similarity, 1e-9)
				assert.Equal(t, tt.expectedNext[i], record.TopUsers[0].String())
			}
		})
	}
}

func TestCoreDetector_Detect_UnknownSeed(t *testing.T) {
	// Arrange
	d := newWiredDetector(&staticNetwork{friends: map[string][]string{"1": {}}})

	// Act
	result, err := d.Detect(context.Background(), valueobjects.MustUserID("99"), services.DetectOptions{})

	// Assert
	assert.Nil(t, result)
	assert.True(t, pkgerrors.IsNotFound(err))
}
