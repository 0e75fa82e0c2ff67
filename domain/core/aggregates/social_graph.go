package aggregates

import (
	"time"

	"coredetect/domain/core/valueobjects"
)

// SocialGraph is an undirected graph over a neighbourhood, plus the directed follow
// edges it was derived from.
type SocialGraph struct {
	SeedID    valueobjects.UserID
	Type      valueobjects.GraphType
	nodes     []valueobjects.UserID
	adjacency map[valueobjects.UserID]valueobjects.UserIDSet
	follows   map[valueobjects.UserID]valueobjects.UserIDSet
	CreatedAt time.Time
}

// BuildSocialGraph derives a graph of the given type from a neighbourhood
func BuildSocialGraph(n *Neighbourhood, graphType valueobjects.GraphType) *SocialGraph {
	g := newSocialGraph(n.SeedID, graphType, n.UserIDs())
	for _, u := range g.nodes {
		for _, v := range n.Follows(u) {
			g.follows[u].Add(v)
		}
	}

	for _, u := range g.nodes {
		for v := range g.follows[u] {
			reverse := g.follows[v].Contains(u)
			if graphType == valueobjects.GraphTypeIntersection && !reverse {
				continue
			}
			g.adjacency[u].Add(v)
			g.adjacency[v].Add(u)
		}
	}
	return g
}

// ReconstructSocialGraph rebuilds a stored graph from its directed follow edges
func ReconstructSocialGraph(seed valueobjects.UserID, graphType valueobjects.GraphType, nodes []valueobjects.UserID, follows map[valueobjects.UserID][]valueobjects.UserID, createdAt time.Time) *SocialGraph {
	n := NewNeighbourhood(seed, nodes, follows)
	g := BuildSocialGraph(n, graphType)
	g.CreatedAt = createdAt
	return g
}

func newSocialGraph(seed valueobjects.UserID, graphType valueobjects.GraphType, nodes []valueobjects.UserID) *SocialGraph {
	g := &SocialGraph{
		SeedID:    seed,
		Type:      graphType,
		nodes:     nodes,
		adjacency: make(map[valueobjects.UserID]valueobjects.UserIDSet, len(nodes)),
		follows:   make(map[valueobjects.UserID]valueobjects.UserIDSet, len(nodes)),
		CreatedAt: time.Now().UTC(),
	}
	for _, u := range nodes {
		g.adjacency[u] = valueobjects.NewUserIDSet()
		g.follows[u] = valueobjects.NewUserIDSet()
	}
	return g
}

// Nodes returns the graph's users in ascending id order
func (g *SocialGraph) Nodes() []valueobjects.UserID {
	out := make([]valueobjects.UserID, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Neighbors returns the undirected neighbours of u in ascending id order
func (g *SocialGraph) Neighbors(u valueobjects.UserID) []valueobjects.UserID {
	return sortedMembers(g.adjacency[u])
}

// Following returns the users u follows in ascending id order
func (g *SocialGraph) Following(u valueobjects.UserID) []valueobjects.UserID {
	return sortedMembers(g.follows[u])
}

// FollowerCountWithin counts followers of u among the given members
func (g *SocialGraph) FollowerCountWithin(u valueobjects.UserID, members valueobjects.UserIDSet) int {
	count := 0
	for m := range members {
		if g.follows[m].Contains(u) {
			count++
		}
	}
	return count
}

// HasNode reports membership
func (g *SocialGraph) HasNode(u valueobjects.UserID) bool {
	_, ok := g.adjacency[u]
	return ok
}

// EdgeCount is the number of undirected edges
func (g *SocialGraph) EdgeCount() int {
	total := 0
	for _, vs := range g.adjacency {
		total += len(vs)
	}
	return total / 2
}

// FollowEdges returns the directed follow lists, used for persistence
func (g *SocialGraph) FollowEdges() map[valueobjects.UserID][]valueobjects.UserID {
	out := make(map[valueobjects.UserID][]valueobjects.UserID, len(g.follows))
	for u, vs := range g.follows {
		if len(vs) > 0 {
			out[u] = sortedMembers(vs)
		}
	}
	return out
}

func sortedMembers(s valueobjects.UserIDSet) []valueobjects.UserID {
	out := make([]valueobjects.UserID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	valueobjects.SortUserIDs(out)
	return out
}
