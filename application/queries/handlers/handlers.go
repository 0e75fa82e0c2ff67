// Package handlers answers read queries from the repositories.
package handlers

import (
	"context"
	"time"

	"coredetect/application/ports"
	"coredetect/application/queries"
	"coredetect/application/queries/bus"
	"coredetect/domain/core/aggregates"
	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"
)

// UserView is the public shape of a stored user
type UserView struct {
	ID             valueobjects.UserID `json:"id"`
	ScreenName     string              `json:"screen_name"`
	Name           string              `json:"name,omitempty"`
	Description    string              `json:"description,omitempty"`
	FollowersCount int                 `json:"followers_count"`
	FriendsCount   int                 `json:"friends_count"`
	Protected      bool                `json:"protected"`
	MaterializedAt time.Time           `json:"materialized_at"`
}

// RankingView is a stored ranking, optionally truncated
type RankingView struct {
	PivotID   valueobjects.UserID     `json:"pivot_id"`
	Method    string                  `json:"method"`
	Total     int                     `json:"total"`
	Ranked    []aggregates.RankedUser `json:"ranked"`
	CreatedAt time.Time               `json:"created_at"`
}

// ClustersView is a stored clustering result
type ClustersView struct {
	UserID    valueobjects.UserID     `json:"user_id"`
	Params    string                  `json:"params"`
	Clusters  [][]valueobjects.UserID `json:"clusters"`
	CreatedAt time.Time               `json:"created_at"`
}

// GetUserHandler handles GetUserQuery
type GetUserHandler struct {
	users ports.UserRepository
}

// NewGetUserHandler creates a new handler
func NewGetUserHandler(users ports.UserRepository) *GetUserHandler {
	return &GetUserHandler{users: users}
}

// Handle implements bus.QueryHandler
func (h *GetUserHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetUserQuery)
	if !ok {
		return nil, pkgerrors.NewInternalError("unexpected query type")
	}

	var (
		user *entities.User
		err  error
	)
	if query.UserID != "" {
		id, idErr := valueobjects.NewUserID(query.UserID)
		if idErr != nil {
			return nil, idErr
		}
		user, err = h.users.GetByID(ctx, id)
	} else {
		user, err = h.users.GetByScreenName(ctx, query.ScreenName)
	}
	if err != nil {
		return nil, err
	}

	return &UserView{
		ID:             user.ID,
		ScreenName:     user.ScreenName,
		Name:           user.Name,
		Description:    user.Description,
		FollowersCount: user.FollowersCount,
		FriendsCount:   user.FriendsCount,
		Protected:      user.Protected,
		MaterializedAt: user.MaterializedAt,
	}, nil
}

// GetRankingHandler handles GetRankingQuery
type GetRankingHandler struct {
	rankings ports.RankingRepository
}

// NewGetRankingHandler creates a new handler
func NewGetRankingHandler(rankings ports.RankingRepository) *GetRankingHandler {
	return &GetRankingHandler{rankings: rankings}
}

// Handle implements bus.QueryHandler
func (h *GetRankingHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetRankingQuery)
	if !ok {
		return nil, pkgerrors.NewInternalError("unexpected query type")
	}
	pivot, err := valueobjects.NewUserID(query.UserID)
	if err != nil {
		return nil, err
	}

	ranking, err := h.rankings.Get(ctx, pivot)
	if err != nil {
		return nil, err
	}

	entries := ranking.Entries()
	if query.Limit > 0 && len(entries) > query.Limit {
		entries = entries[:query.Limit]
	}
	return &RankingView{
		PivotID:   ranking.PivotID,
		Method:    ranking.Method,
		Total:     ranking.Len(),
		Ranked:    entries,
		CreatedAt: ranking.CreatedAt,
	}, nil
}

// GetClustersHandler handles GetClustersQuery
type GetClustersHandler struct {
	clusters ports.ClusterRepository
}

// NewGetClustersHandler creates a new handler
func NewGetClustersHandler(clusters ports.ClusterRepository) *GetClustersHandler {
	return &GetClustersHandler{clusters: clusters}
}

// Handle implements bus.QueryHandler
func (h *GetClustersHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetClustersQuery)
	if !ok {
		return nil, pkgerrors.NewInternalError("unexpected query type")
	}
	userID, err := valueobjects.NewUserID(query.UserID)
	if err != nil {
		return nil, err
	}

	params := valueobjects.UnionParams()
	if query.GraphType != "" {
		params.GraphType = valueobjects.GraphType(query.GraphType)
	}

	result, err := h.clusters.Get(ctx, userID, params)
	if err != nil {
		return nil, err
	}

	view := &ClustersView{
		UserID:    result.UserID,
		Params:    result.Params.Key(),
		Clusters:  make([][]valueobjects.UserID, 0, result.Len()),
		CreatedAt: result.CreatedAt,
	}
	for _, c := range result.Clusters {
		view.Clusters = append(view.Clusters, c.Users())
	}
	return view, nil
}
