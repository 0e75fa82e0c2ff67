package clustering

import (
	"context"
	"testing"

	"coredetect/domain/core/aggregates"
	"coredetect/domain/core/valueobjects"
	"coredetect/infrastructure/persistence/memory"
	pkgerrors "coredetect/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ids(raw ...string) []valueobjects.UserID {
	out := make([]valueobjects.UserID, len(raw))
	for i, r := range raw {
		out[i] = valueobjects.MustUserID(r)
	}
	return out
}

// clique makes every member follow every other member
func clique(follows map[valueobjects.UserID][]valueobjects.UserID, members []valueobjects.UserID) {
	for _, u := range members {
		for _, v := range members {
			if !u.Equals(v) {
				follows[u] = append(follows[u], v)
			}
		}
	}
}

func seedGraph(t *testing.T, graphs *memory.InMemorySocialGraphRepository) {
	t.Helper()
	follows := make(map[valueobjects.UserID][]valueobjects.UserID)
	clique(follows, ids("1", "2", "3", "4"))
	clique(follows, ids("5", "6", "7"))
	n := aggregates.NewNeighbourhood(valueobjects.MustUserID("1"), ids("2", "3", "4", "5", "6", "7", "8"), follows)
	require.NoError(t, graphs.Save(context.Background(), aggregates.BuildSocialGraph(n, valueobjects.GraphTypeUnion)))
}

func TestLabelPropagationClusterer_FindsComponents(t *testing.T) {
	// Arrange
	ctx := context.Background()
	graphs := memory.NewInMemorySocialGraphRepository()
	clusters := memory.NewInMemoryClusterRepository()
	seedGraph(t, graphs)
	c := NewLabelPropagationClusterer(graphs, clusters, 0, zap.NewNop())

	// Act
	err := c.Cluster(ctx, valueobjects.MustUserID("1"), valueobjects.UnionParams())

	// Assert
	require.NoError(t, err)
	result, err := clusters.Get(ctx, valueobjects.MustUserID("1"), valueobjects.UnionParams())
	require.NoError(t, err)
	require.Equal(t, 3, result.Len())
	assert.Equal(t, ids("1", "2", "3", "4"), result.Clusters[0].Users())
	assert.Equal(t, ids("5", "6", "7"), result.Clusters[1].Users())
	assert.Equal(t, ids("8"), result.Clusters[2].Users())
}

func TestLabelPropagationClusterer_Deterministic(t *testing.T) {
	ctx := context.Background()
	graphs := memory.NewInMemorySocialGraphRepository()
	seedGraph(t, graphs)

	var runs [][][]valueobjects.UserID
	for i := 0; i < 3; i++ {
		clusters := memory.NewInMemoryClusterRepository()
		c := NewLabelPropagationClusterer(graphs, clusters, 10, zap.NewNop())
		require.NoError(t, c.Cluster(ctx, valueobjects.MustUserID("1"), valueobjects.UnionParams()))
		result, err := clusters.Get(ctx, valueobjects.MustUserID("1"), valueobjects.UnionParams())
		require.NoError(t, err)

		var run [][]valueobjects.UserID
		for _, cl := range result.Clusters {
			run = append(run, cl.Users())
		}
		runs = append(runs, run)
	}

	assert.Equal(t, runs[0], runs[1])
	assert.Equal(t, runs[1], runs[2])
}

func TestLabelPropagationClusterer_Errors(t *testing.T) {
	ctx := context.Background()
	c := NewLabelPropagationClusterer(memory.NewInMemorySocialGraphRepository(), memory.NewInMemoryClusterRepository(), 0, zap.NewNop())

	err := c.Cluster(ctx, valueobjects.MustUserID("1"), valueobjects.UnionParams())
	assert.True(t, pkgerrors.IsNotFound(err))

	err = c.Cluster(ctx, valueobjects.MustUserID("1"), valueobjects.ClusteringParams{GraphType: "directed"})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestLabelPropagationClusterer_Cancelled(t *testing.T) {
	graphs := memory.NewInMemorySocialGraphRepository()
	seedGraph(t, graphs)
	c := NewLabelPropagationClusterer(graphs, memory.NewInMemoryClusterRepository(), 0, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Cluster(ctx, valueobjects.MustUserID("1"), valueobjects.UnionParams())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestWinningLabel_TiesGoToSmallest(t *testing.T) {
	labels := map[valueobjects.UserID]valueobjects.UserID{
		valueobjects.MustUserID("10"): valueobjects.MustUserID("10"),
		valueobjects.MustUserID("9"):  valueobjects.MustUserID("9"),
	}

	got, ok := winningLabel(ids("10", "9"), labels)

	require.True(t, ok)
	assert.Equal(t, "9", got.String())

	_, ok = winningLabel(nil, labels)
	assert.False(t, ok)
}
