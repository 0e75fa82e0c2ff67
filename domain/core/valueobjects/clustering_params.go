package valueobjects

import (
	"fmt"
	"sort"
	"strings"
)

// GraphType selects which relationship edges a social graph is built from
type GraphType string

const (
	// GraphTypeUnion keeps an edge when either user follows the other
	GraphTypeUnion GraphType = "union"
	// GraphTypeIntersection keeps an edge only for mutual follows
	GraphTypeIntersection GraphType = "intersection"
)

// IsValid checks the graph type against the known set
func (g GraphType) IsValid() bool {
	return g == GraphTypeUnion || g == GraphTypeIntersection
}

// ClusteringParams is the configuration a clustering run was produced with.
// It is used together with the user id as the key of a clustering result.
type ClusteringParams struct {
	GraphType GraphType         `json:"graph_type"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// UnionParams is the only configuration the core detection loop uses
func UnionParams() ClusteringParams {
	return ClusteringParams{GraphType: GraphTypeUnion}
}

// Key renders the params deterministically for use in storage keys
func (p ClusteringParams) Key() string {
	graphType := p.GraphType
	if graphType == "" {
		graphType = GraphTypeUnion
	}
	if len(p.Extra) == 0 {
		return fmt.Sprintf("graph_type=%s", graphType)
	}
	keys := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := []string{fmt.Sprintf("graph_type=%s", graphType)}
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, p.Extra[k]))
	}
	return strings.Join(parts, ";")
}

// Equals compares params by key
func (p ClusteringParams) Equals(other ClusteringParams) bool {
	return p.Key() == other.Key()
}
