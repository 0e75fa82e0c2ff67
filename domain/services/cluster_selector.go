package services

import (
	"errors"

	"coredetect/domain/core/aggregates"
)

var (
	// ErrNoClusters is returned when a clustering result has no clusters to choose from
	ErrNoClusters = errors.New("clustering produced no clusters")
	// ErrEmptyCluster is returned when the chosen cluster has no members
	ErrEmptyCluster = errors.New("selected cluster is empty")
)

// Selection is the outcome of choosing a cluster
type Selection struct {
	Index int
	// Score is the similarity to the previous cluster, or 0 on the first iteration
	Score   float64
	Cluster *aggregates.Cluster
}

// ClusterSelector chooses the cluster that continues a detection run
type ClusterSelector struct {
	scorer SimilarityScorer
}

// NewClusterSelector creates a selector. A nil scorer means Jaccard.
func NewClusterSelector(scorer SimilarityScorer) *ClusterSelector {
	if scorer == nil {
		scorer = JaccardScorer{}
	}
	return &ClusterSelector{scorer: scorer}
}

// Select picks the largest cluster when previous is nil, lowest index on ties.
// Otherwise it picks the cluster most similar to previous, first index on ties.
func (s *ClusterSelector) Select(clusters []*aggregates.Cluster, previous *aggregates.Cluster) (Selection, error) {
	if len(clusters) == 0 {
		return Selection{}, ErrNoClusters
	}

	best := 0
	bestScore := 0.0
	if previous == nil {
		for i, c := range clusters {
			if c.Size() > clusters[best].Size() {
				best = i
			}
		}
	} else {
		prevSet := previous.UserSet()
		bestScore = -1
		for i, c := range clusters {
			score := s.scorer.Score(prevSet, c.UserSet())
			if score > bestScore {
				best, bestScore = i, score
			}
		}
	}

	chosen := clusters[best]
	if chosen.IsEmpty() {
		return Selection{}, ErrEmptyCluster
	}
	return Selection{Index: best, Score: bestScore, Cluster: chosen}, nil
}
