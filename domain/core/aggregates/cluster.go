package aggregates

import (
	"time"

	"coredetect/domain/core/valueobjects"
)

// Cluster is one community candidate produced by a single clustering run.
// Clusters have no identity that survives a re-run; they are compared by membership.
type Cluster struct {
	users  []valueobjects.UserID
	params valueobjects.ClusteringParams
}

// NewCluster copies the members so the cluster cannot be mutated after creation
func NewCluster(users []valueobjects.UserID, params valueobjects.ClusteringParams) *Cluster {
	members := make([]valueobjects.UserID, len(users))
	copy(members, users)
	return &Cluster{users: members, params: params}
}

// Users returns a copy of the members in clustering order
func (c *Cluster) Users() []valueobjects.UserID {
	out := make([]valueobjects.UserID, len(c.users))
	copy(out, c.users)
	return out
}

// UserSet returns the members as a set
func (c *Cluster) UserSet() valueobjects.UserIDSet {
	if c == nil {
		return valueobjects.NewUserIDSet()
	}
	return valueobjects.NewUserIDSet(c.users...)
}

// Size is the number of members. A nil cluster has none.
func (c *Cluster) Size() int {
	if c == nil {
		return 0
	}
	return len(c.users)
}

// IsEmpty reports a cluster without members
func (c *Cluster) IsEmpty() bool {
	return c.Size() == 0
}

// Contains reports membership
func (c *Cluster) Contains(id valueobjects.UserID) bool {
	for _, u := range c.users {
		if u.Equals(id) {
			return true
		}
	}
	return false
}

// Params returns the configuration the cluster was produced with
func (c *Cluster) Params() valueobjects.ClusteringParams {
	return c.params
}

// ClusteringResult is the ordered output of clustering a user's graph
type ClusteringResult struct {
	UserID    valueobjects.UserID
	Params    valueobjects.ClusteringParams
	Clusters  []*Cluster
	CreatedAt time.Time
}

// NewClusteringResult groups clusters for a (user, params) key
func NewClusteringResult(userID valueobjects.UserID, params valueobjects.ClusteringParams, clusters []*Cluster) *ClusteringResult {
	return &ClusteringResult{
		UserID:    userID,
		Params:    params,
		Clusters:  clusters,
		CreatedAt: time.Now().UTC(),
	}
}

// Len is the number of clusters
func (r *ClusteringResult) Len() int {
	return len(r.Clusters)
}
