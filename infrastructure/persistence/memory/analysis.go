package memory

import (
	"context"
	"sync"

	"coredetect/application/ports"
	"coredetect/domain/core/aggregates"
	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"
)

// InMemoryNeighbourhoodRepository stores neighbourhoods by seed user.
// Aggregates are immutable after construction so they are shared, not copied.
type InMemoryNeighbourhoodRepository struct {
	mu     sync.RWMutex
	byUser map[valueobjects.UserID]*aggregates.Neighbourhood
}

// NewInMemoryNeighbourhoodRepository creates a new in-memory neighbourhood repository
func NewInMemoryNeighbourhoodRepository() *InMemoryNeighbourhoodRepository {
	return &InMemoryNeighbourhoodRepository{byUser: make(map[valueobjects.UserID]*aggregates.Neighbourhood)}
}

var _ ports.NeighbourhoodRepository = (*InMemoryNeighbourhoodRepository)(nil)

func (r *InMemoryNeighbourhoodRepository) Save(ctx context.Context, n *aggregates.Neighbourhood) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[n.SeedID] = n
	return nil
}

func (r *InMemoryNeighbourhoodRepository) Get(ctx context.Context, userID valueobjects.UserID) (*aggregates.Neighbourhood, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.byUser[userID]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("neighbourhood").WithDetail("user_id", userID.String())
	}
	return n, nil
}

type graphKey struct {
	user      valueobjects.UserID
	graphType valueobjects.GraphType
}

// InMemorySocialGraphRepository stores social graphs by (user, graph type)
type InMemorySocialGraphRepository struct {
	mu     sync.RWMutex
	graphs map[graphKey]*aggregates.SocialGraph
}

// NewInMemorySocialGraphRepository creates a new in-memory graph repository
func NewInMemorySocialGraphRepository() *InMemorySocialGraphRepository {
	return &InMemorySocialGraphRepository{graphs: make(map[graphKey]*aggregates.SocialGraph)}
}

var _ ports.SocialGraphRepository = (*InMemorySocialGraphRepository)(nil)

func (r *InMemorySocialGraphRepository) Save(ctx context.Context, g *aggregates.SocialGraph) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphs[graphKey{user: g.SeedID, graphType: g.Type}] = g
	return nil
}

func (r *InMemorySocialGraphRepository) Get(ctx context.Context, userID valueobjects.UserID, graphType valueobjects.GraphType) (*aggregates.SocialGraph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.graphs[graphKey{user: userID, graphType: graphType}]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("social graph").
			WithDetail("user_id", userID.String()).
			WithDetail("graph_type", string(graphType))
	}
	return g, nil
}

type clusteringKey struct {
	user   valueobjects.UserID
	params string
}

// InMemoryClusterRepository stores clustering results by (user, params)
type InMemoryClusterRepository struct {
	mu      sync.RWMutex
	results map[clusteringKey]*aggregates.ClusteringResult
}

// NewInMemoryClusterRepository creates a new in-memory cluster repository
func NewInMemoryClusterRepository() *InMemoryClusterRepository {
	return &InMemoryClusterRepository{results: make(map[clusteringKey]*aggregates.ClusteringResult)}
}

var _ ports.ClusterRepository = (*InMemoryClusterRepository)(nil)

func (r *InMemoryClusterRepository) Save(ctx context.Context, result *aggregates.ClusteringResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[clusteringKey{user: result.UserID, params: result.Params.Key()}] = result
	return nil
}

func (r *InMemoryClusterRepository) Get(ctx context.Context, userID valueobjects.UserID, params valueobjects.ClusteringParams) (*aggregates.ClusteringResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, ok := r.results[clusteringKey{user: userID, params: params.Key()}]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("clustering").
			WithDetail("user_id", userID.String()).
			WithDetail("params", params.Key())
	}
	return result, nil
}

// InMemoryRankingRepository stores rankings by pivot user
type InMemoryRankingRepository struct {
	mu       sync.RWMutex
	rankings map[valueobjects.UserID]*aggregates.Ranking
}

// NewInMemoryRankingRepository creates a new in-memory ranking repository
func NewInMemoryRankingRepository() *InMemoryRankingRepository {
	return &InMemoryRankingRepository{rankings: make(map[valueobjects.UserID]*aggregates.Ranking)}
}

var _ ports.RankingRepository = (*InMemoryRankingRepository)(nil)

func (r *InMemoryRankingRepository) Save(ctx context.Context, ranking *aggregates.Ranking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rankings[ranking.PivotID] = ranking
	return nil
}

func (r *InMemoryRankingRepository) Get(ctx context.Context, pivot valueobjects.UserID) (*aggregates.Ranking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ranking, ok := r.rankings[pivot]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("ranking").WithDetail("user_id", pivot.String())
	}
	return ranking, nil
}
