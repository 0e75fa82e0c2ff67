// Package worker runs detections requested through the event bus.
package worker

import (
	"context"
	"encoding/json"

	"coredetect/application/commands"
	"coredetect/application/commands/bus"
	"coredetect/application/services"
	domainevents "coredetect/domain/events"
	pkgerrors "coredetect/pkg/errors"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// Dispatcher sends commands to their handlers
type Dispatcher interface {
	Send(ctx context.Context, cmd bus.Command) (interface{}, error)
}

// Handler turns detection.requested events into inline detection runs
type Handler struct {
	commands Dispatcher
	logger   *zap.Logger
}

// NewHandler creates a new worker handler
func NewHandler(dispatcher Dispatcher, logger *zap.Logger) *Handler {
	return &Handler{commands: dispatcher, logger: logger}
}

// Handle runs the requested detection. Only failures worth a retry are returned;
// runs that fail on their own terms were already reported through detection events.
func (h *Handler) Handle(ctx context.Context, event events.CloudWatchEvent) error {
	if event.DetailType != domainevents.TypeDetectionRequested {
		h.logger.Warn("Ignoring unexpected event", zap.String("detailType", event.DetailType))
		return nil
	}

	var requested domainevents.DetectionRequested
	if err := json.Unmarshal(event.Detail, &requested); err != nil {
		h.logger.Error("Malformed detection request", zap.Error(err), zap.String("eventID", event.ID))
		return nil
	}

	cmd := commands.DetectCoreCommand{
		SeedUserID:    requested.SeedUserID,
		ScreenName:    requested.ScreenName,
		MaxIterations: requested.MaxIterations,
		SkipDownload:  requested.SkipDownload,
		ConnectionID:  requested.ConnectionID,
		RunID:         requested.GetAggregateID(),
	}

	logger := h.logger.With(zap.String("runID", cmd.RunID), zap.String("seed", cmd.Identity()))
	result, err := h.commands.Send(ctx, cmd)
	if err == nil {
		if r, ok := result.(*services.DetectionResult); ok {
			logger.Info("Detection finished", zap.String("core", r.Core.String()), zap.Int("steps", r.Steps))
		}
		return nil
	}

	if !pkgerrors.IsRetryable(err) {
		logger.Warn("Detection ended without retry", zap.Error(err))
		return nil
	}
	logger.Error("Detection failed, requesting retry", zap.Error(err))
	return err
}
