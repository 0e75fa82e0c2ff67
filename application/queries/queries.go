// Package queries defines the read-only requests the service answers.
package queries

import (
	"coredetect/domain/core/validators"
)

// GetUserQuery looks a stored user up by id or screen name
type GetUserQuery struct {
	UserID     string `validate:"required_without=ScreenName,userid"`
	ScreenName string `validate:"required_without=UserID,max=50"`
}

// Validate implements bus.Query
func (q GetUserQuery) Validate() error {
	return validators.Struct(q)
}

// GetRankingQuery fetches the stored ranking pivoted on a user
type GetRankingQuery struct {
	UserID string `validate:"required,userid"`
	Limit  int    `validate:"min=0,max=1000"`
}

// Validate implements bus.Query
func (q GetRankingQuery) Validate() error {
	return validators.Struct(q)
}

// GetClustersQuery fetches the stored clustering of a user's graph
type GetClustersQuery struct {
	UserID    string `validate:"required,userid"`
	GraphType string `validate:"omitempty,oneof=union intersection"`
}

// Validate implements bus.Query
func (q GetClustersQuery) Validate() error {
	return validators.Struct(q)
}

// GetRunQuery fetches the recorded history of a detection run
type GetRunQuery struct {
	RunID string `validate:"required,uuid"`
}

// Validate implements bus.Query
func (q GetRunQuery) Validate() error {
	return validators.Struct(q)
}
