package dynamodb

import (
	"context"
	"strconv"
	"testing"

	"coredetect/domain/core/aggregates"
	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// denseNeighbourhood has size members where each follows the next fanOut members
func denseNeighbourhood(size, fanOut int) *aggregates.Neighbourhood {
	members := make([]valueobjects.UserID, 0, size)
	for i := 1; i <= size; i++ {
		members = append(members, valueobjects.MustUserID(strconv.Itoa(1_000_000_000_000+i)))
	}
	follows := make(map[valueobjects.UserID][]valueobjects.UserID, size)
	for i, u := range members {
		for k := 1; k <= fanOut; k++ {
			follows[u] = append(follows[u], members[(i+k)%size])
		}
	}
	return aggregates.NewNeighbourhood(members[0], members, follows)
}

func TestChunkEntries(t *testing.T) {
	tests := []struct {
		name     string
		entries  []idList
		limit    int
		expected [][]idList
	}{
		{
			name:     "fits in one part",
			entries:  []idList{{Key: 1, IDs: []int64{2, 3}}, {Key: 2}},
			limit:    10,
			expected: [][]idList{{{Key: 1, IDs: []int64{2, 3}}, {Key: 2, IDs: []int64{}}}},
		},
		{
			name:    "long list continues in the next part",
			entries: []idList{{Key: 1, IDs: []int64{1, 2, 3, 4, 5}}},
			limit:   3,
			expected: [][]idList{
				{{Key: 1, IDs: []int64{1, 2, 3}}},
				{{Key: 1, IDs: []int64{4, 5}}},
			},
		},
		{
			name:    "empty lists still take room",
			entries: []idList{{Key: 1}, {Key: 2}, {Key: 3}},
			limit:   2,
			expected: [][]idList{
				{{Key: 1}, {Key: 2}},
				{{Key: 3}},
			},
		},
		{
			name:  "no entries",
			limit: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := chunkEntries(tt.entries, tt.limit)

			require.Len(t, parts, len(tt.expected))
			for i := range parts {
				require.Len(t, parts[i], len(tt.expected[i]))
				for j := range parts[i] {
					assert.Equal(t, tt.expected[i][j].Key, parts[i][j].Key)
					assert.Equal(t, len(tt.expected[i][j].IDs), len(parts[i][j].IDs))
				}
			}
			keys, lists := mergeEntries(parts)
			for _, e := range tt.entries {
				assert.Contains(t, keys, e.Key)
				assert.Equal(t, len(e.IDs), len(lists[e.Key]))
			}
		})
	}
}

func TestNeighbourhoodRepository_LargeNeighbourhoodIsSplit(t *testing.T) {
	// Arrange
	ctx := context.Background()
	client := newFakeTable()
	repo := NewNeighbourhoodRepository(client, "core", nil, zap.NewNop())
	n := denseNeighbourhood(800, 60)

	// The adjacency alone is larger than one item may be
	av, err := attributevalue.Marshal(adjacencyEntries(n.UserIDs(), n.Follows))
	require.NoError(t, err)
	require.Greater(t, attrSize(av), maxItemBytes)

	// Act
	err = repo.Save(ctx, n)

	// Assert
	require.NoError(t, err)
	assert.Greater(t, client.countPrefix(userPK(n.SeedID), skNeighbourhood+"#"), 1)

	got, err := repo.Get(ctx, n.SeedID)
	require.NoError(t, err)
	assert.Equal(t, n.UserIDs(), got.UserIDs())
	assert.Equal(t, 48000, got.EdgeCount())
	for _, u := range n.UserIDs()[:5] {
		assert.Equal(t, n.Follows(u), got.Follows(u))
	}
}

func TestNeighbourhoodRepository_SaveReplacesPreviousParts(t *testing.T) {
	// Arrange
	ctx := context.Background()
	client := newFakeTable()
	repo := NewNeighbourhoodRepository(client, "core", nil, zap.NewNop())
	large := denseNeighbourhood(800, 60)
	require.NoError(t, repo.Save(ctx, large))

	small := aggregates.NewNeighbourhood(large.SeedID, large.UserIDs()[:3], nil)

	// Act
	require.NoError(t, repo.Save(ctx, small))

	// Assert
	got, err := repo.Get(ctx, large.SeedID)
	require.NoError(t, err)
	assert.Equal(t, small.UserIDs(), got.UserIDs())
	assert.Equal(t, 0, got.EdgeCount())
	assert.Equal(t, 1, client.countPrefix(userPK(large.SeedID), skNeighbourhood+"#"))
}

func TestNeighbourhoodRepository_MissingPartIsError(t *testing.T) {
	ctx := context.Background()
	client := newFakeTable()
	repo := NewNeighbourhoodRepository(client, "core", nil, zap.NewNop())
	n := denseNeighbourhood(800, 60)
	require.NoError(t, repo.Save(ctx, n))

	for key, item := range client.items {
		if stringAttr(item["SK"]) != skNeighbourhood {
			delete(client.items, key)
			break
		}
	}

	_, err := repo.Get(ctx, n.SeedID)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeInternal))
}

func TestGraphRepository_LargeGraphRoundTrip(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := NewGraphRepository(newFakeTable(), "core", nil, zap.NewNop())
	n := denseNeighbourhood(800, 60)
	g := aggregates.BuildSocialGraph(n, valueobjects.GraphTypeUnion)

	// Act
	require.NoError(t, repo.Save(ctx, g))
	got, err := repo.Get(ctx, n.SeedID, valueobjects.GraphTypeUnion)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, g.Nodes(), got.Nodes())
	assert.Equal(t, g.EdgeCount(), got.EdgeCount())
	assert.Equal(t, g.Following(n.SeedID), got.Following(n.SeedID))

	_, err = repo.Get(ctx, n.SeedID, valueobjects.GraphTypeIntersection)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestClusterRepository_LargeClusterKeepsOrder(t *testing.T) {
	// Arrange
	ctx := context.Background()
	repo := NewClusterRepository(newFakeTable(), "core", nil, zap.NewNop())
	params := valueobjects.ClusteringParams{GraphType: valueobjects.GraphTypeUnion}

	big := make([]valueobjects.UserID, 0, 25000)
	for i := 1; i <= 25000; i++ {
		big = append(big, valueobjects.MustUserID(strconv.Itoa(1_000_000_000_000+i)))
	}
	small := []valueobjects.UserID{uid("7"), uid("3")}
	result := aggregates.NewClusteringResult(uid("1"), params, []*aggregates.Cluster{
		aggregates.NewCluster(big, params),
		aggregates.NewCluster(small, params),
		aggregates.NewCluster(nil, params),
	})

	// Act
	require.NoError(t, repo.Save(ctx, result))
	got, err := repo.Get(ctx, uid("1"), params)

	// Assert
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, big, got.Clusters[0].Users())
	assert.Equal(t, small, got.Clusters[1].Users())
	assert.Empty(t, got.Clusters[2].Users())
}
