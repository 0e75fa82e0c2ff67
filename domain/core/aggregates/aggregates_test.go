package aggregates

import (
	"testing"

	"coredetect/domain/core/valueobjects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(raw ...string) []valueobjects.UserID {
	out := make([]valueobjects.UserID, len(raw))
	for i, r := range raw {
		out[i] = valueobjects.MustUserID(r)
	}
	return out
}

func TestNewCluster_CopiesMembers(t *testing.T) {
	members := ids("1", "2", "3")
	c := NewCluster(members, valueobjects.UnionParams())

	members[0] = valueobjects.MustUserID("99")

	assert.Equal(t, ids("1", "2", "3"), c.Users())
	assert.Equal(t, 3, c.Size())
	assert.True(t, c.Contains(valueobjects.MustUserID("2")))
	assert.False(t, c.Contains(valueobjects.MustUserID("99")))
	assert.Equal(t, "graph_type=union", c.Params().Key())
}

func TestNewCluster_Empty(t *testing.T) {
	c := NewCluster(nil, valueobjects.UnionParams())
	assert.True(t, c.IsEmpty())
	assert.Empty(t, c.UserSet())
}

func TestNewRanking_OrdersByScoreThenID(t *testing.T) {
	pivot := valueobjects.MustUserID("7")
	r := NewRanking(pivot, "pagerank", map[valueobjects.UserID]float64{
		valueobjects.MustUserID("30"): 0.2,
		valueobjects.MustUserID("4"):  0.5,
		valueobjects.MustUserID("12"): 0.2,
	})

	top, err := r.Top1()
	require.NoError(t, err)
	assert.Equal(t, "4", top.String())
	assert.Equal(t, ids("4", "12", "30"), r.TopN(10))
	assert.Equal(t, ids("4", "12"), r.TopN(2))
	assert.Len(t, r.Top20(), 3)
}

func TestRanking_Top1Empty(t *testing.T) {
	r := NewRanking(valueobjects.MustUserID("1"), "pagerank", nil)

	_, err := r.Top1()

	assert.ErrorIs(t, err, ErrEmptyRanking)
	assert.Equal(t, 0, r.Len())
}

func TestNewNeighbourhood_RestrictsFollowsToMembers(t *testing.T) {
	seed := valueobjects.MustUserID("1")
	follows := map[valueobjects.UserID][]valueobjects.UserID{
		seed:                         ids("2", "3", "3"),
		valueobjects.MustUserID("2"): ids("1", "2", "500"),
		valueobjects.MustUserID("3"): ids("2"),
	}

	n := NewNeighbourhood(seed, ids("3", "2"), follows)

	assert.Equal(t, ids("1", "2", "3"), n.UserIDs())
	assert.Equal(t, ids("2", "3"), n.Follows(seed))
	assert.Equal(t, ids("1"), n.Follows(valueobjects.MustUserID("2")))
	assert.Equal(t, 4, n.EdgeCount())
}

func TestBuildSocialGraph(t *testing.T) {
	seed := valueobjects.MustUserID("1")
	follows := map[valueobjects.UserID][]valueobjects.UserID{
		seed:                         ids("2", "3"),
		valueobjects.MustUserID("2"): ids("1"),
	}
	n := NewNeighbourhood(seed, ids("2", "3", "4"), follows)

	tests := []struct {
		name      string
		graphType valueobjects.GraphType
		edges     int
		seedNbrs  []valueobjects.UserID
	}{
		{name: "union keeps one-way follows", graphType: valueobjects.GraphTypeUnion, edges: 2, seedNbrs: ids("2", "3")},
		{name: "intersection keeps mutual follows", graphType: valueobjects.GraphTypeIntersection, edges: 1, seedNbrs: ids("2")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := BuildSocialGraph(n, tt.graphType)

			assert.Equal(t, tt.edges, g.EdgeCount())
			assert.Equal(t, tt.seedNbrs, g.Neighbors(seed))
			assert.True(t, g.HasNode(valueobjects.MustUserID("4")))
			assert.Empty(t, g.Neighbors(valueobjects.MustUserID("4")))
			assert.Equal(t, ids("2", "3"), g.Following(seed))
		})
	}
}

func TestSocialGraph_FollowerCountWithin(t *testing.T) {
	seed := valueobjects.MustUserID("1")
	follows := map[valueobjects.UserID][]valueobjects.UserID{
		valueobjects.MustUserID("2"): ids("1"),
		valueobjects.MustUserID("3"): ids("1"),
	}
	g := BuildSocialGraph(NewNeighbourhood(seed, ids("2", "3"), follows), valueobjects.GraphTypeUnion)

	assert.Equal(t, 2, g.FollowerCountWithin(seed, valueobjects.NewUserIDSet(ids("1", "2", "3")...)))
	assert.Equal(t, 1, g.FollowerCountWithin(seed, valueobjects.NewUserIDSet(ids("2")...)))
}

func TestReconstructSocialGraph_RoundTripsFollowEdges(t *testing.T) {
	seed := valueobjects.MustUserID("1")
	follows := map[valueobjects.UserID][]valueobjects.UserID{
		seed:                         ids("2"),
		valueobjects.MustUserID("3"): ids("1", "2"),
	}
	g := BuildSocialGraph(NewNeighbourhood(seed, ids("2", "3"), follows), valueobjects.GraphTypeUnion)

	rebuilt := ReconstructSocialGraph(seed, g.Type, g.Nodes(), g.FollowEdges(), g.CreatedAt)

	assert.Equal(t, g.Nodes(), rebuilt.Nodes())
	assert.Equal(t, g.EdgeCount(), rebuilt.EdgeCount())
	assert.Equal(t, g.CreatedAt, rebuilt.CreatedAt)
}
