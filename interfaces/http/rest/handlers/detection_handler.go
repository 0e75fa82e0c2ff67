// Package handlers translates HTTP requests into commands and queries.
package handlers

import (
	"encoding/json"
	"net/http"

	"coredetect/application/commands"
	"coredetect/application/commands/bus"
	commandhandlers "coredetect/application/commands/handlers"
	"coredetect/pkg/auth"
	"coredetect/pkg/common"
	pkgerrors "coredetect/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DetectionHandler starts detections and neighbourhood downloads
type DetectionHandler struct {
	commandBus *bus.CommandBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewDetectionHandler creates a new detection handler
func NewDetectionHandler(commandBus *bus.CommandBus, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *DetectionHandler {
	return &DetectionHandler{commandBus: commandBus, errors: errHandler, logger: logger}
}

// CreateDetection handles POST /detections
func (h *DetectionHandler) CreateDetection(w http.ResponseWriter, r *http.Request) {
	var cmd commands.DetectCoreCommand
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cmd); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body").WithCause(err))
		return
	}
	if user, err := auth.GetUserFromContext(r.Context()); err == nil {
		cmd.RequestedBy = user.UserID
	}

	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	status := http.StatusOK
	if _, accepted := result.(*commandhandlers.DetectionAccepted); accepted {
		status = http.StatusAccepted
	}
	common.RespondJSON(w, r, status, result)
}

// DownloadTweets handles POST /users/{userID}/tweets/download
func (h *DetectionHandler) DownloadTweets(w http.ResponseWriter, r *http.Request) {
	cmd := commands.DownloadNeighbourhoodTweetsCommand{UserID: chi.URLParam(r, "userID")}

	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, result)
}
