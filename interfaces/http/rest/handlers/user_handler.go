package handlers

import (
	"net/http"
	"strconv"

	"coredetect/application/queries"
	querybus "coredetect/application/queries/bus"
	"coredetect/pkg/common"
	pkgerrors "coredetect/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserHandler serves stored users, their analysis results and run histories
type UserHandler struct {
	queryBus *querybus.QueryBus
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(queryBus *querybus.QueryBus, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *UserHandler {
	return &UserHandler{queryBus: queryBus, errors: errHandler, logger: logger}
}

// GetUser handles GET /users/{userID}. A leading @ looks the user up by screen name.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "userID")
	query := queries.GetUserQuery{UserID: ref}
	if len(ref) > 1 && ref[0] == '@' {
		query = queries.GetUserQuery{ScreenName: ref[1:]}
	}
	h.ask(w, r, query)
}

// GetRanking handles GET /users/{userID}/ranking?limit=
func (h *UserHandler) GetRanking(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("limit must be an integer"))
			return
		}
		limit = parsed
	}
	h.ask(w, r, queries.GetRankingQuery{UserID: chi.URLParam(r, "userID"), Limit: limit})
}

// GetClusters handles GET /users/{userID}/clusters?graph_type=
func (h *UserHandler) GetClusters(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.GetClustersQuery{
		UserID:    chi.URLParam(r, "userID"),
		GraphType: r.URL.Query().Get("graph_type"),
	})
}

// GetRun handles GET /detections/{runID}
func (h *UserHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.GetRunQuery{RunID: chi.URLParam(r, "runID")})
}

func (h *UserHandler) ask(w http.ResponseWriter, r *http.Request, query querybus.Query) {
	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, result)
}
