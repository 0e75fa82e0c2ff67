// Package handlers executes commands against the detection services.
package handlers

import (
	"context"
	"errors"
	"time"

	"coredetect/application/commands"
	"coredetect/application/commands/bus"
	"coredetect/application/ports"
	"coredetect/application/services"
	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
	"coredetect/domain/events"
	pkgerrors "coredetect/pkg/errors"

	"go.uber.org/zap"
)

// Detector runs the convergence loop
type Detector interface {
	Detect(ctx context.Context, seed valueobjects.UserID, opts services.DetectOptions) (*services.DetectionResult, error)
	DetectByScreenName(ctx context.Context, screenName string, opts services.DetectOptions) (*services.DetectionResult, error)
}

// DetectionAccepted is returned for asynchronous requests
type DetectionAccepted struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// DetectCoreHandler runs or enqueues detections. Inline runs hold a lock per seed
// so two runs never refine the same neighbourhood concurrently.
type DetectCoreHandler struct {
	detector  Detector
	lock      ports.RunLock
	publisher ports.EventPublisher
	lockTTL   time.Duration
	logger    *zap.Logger
}

// NewDetectCoreHandler creates a new handler
func NewDetectCoreHandler(detector Detector, lock ports.RunLock, publisher ports.EventPublisher, lockTTL time.Duration, logger *zap.Logger) *DetectCoreHandler {
	return &DetectCoreHandler{
		detector:  detector,
		lock:      lock,
		publisher: publisher,
		lockTTL:   lockTTL,
		logger:    logger,
	}
}

// Handle implements bus.CommandHandler
func (h *DetectCoreHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.DetectCoreCommand)
	if !ok {
		return nil, pkgerrors.NewInternalError("unexpected command type")
	}
	if cmd.RunID == "" {
		cmd.RunID = events.NewRunID()
	}

	if cmd.Async {
		return h.enqueue(ctx, cmd)
	}
	return h.run(ctx, cmd)
}

func (h *DetectCoreHandler) enqueue(ctx context.Context, cmd commands.DetectCoreCommand) (*DetectionAccepted, error) {
	if h.publisher == nil {
		return nil, pkgerrors.NewUnavailableError("event bus")
	}
	event := events.NewDetectionRequested(cmd.RunID, cmd.SeedUserID, cmd.ScreenName, cmd.MaxIterations, cmd.SkipDownload, time.Now().UTC())
	event.ConnectionID = cmd.ConnectionID
	if err := h.publisher.Publish(ctx, event); err != nil {
		return nil, err
	}

	h.logger.Info("Detection enqueued",
		zap.String("runID", cmd.RunID),
		zap.String("seed", cmd.Identity()),
	)
	return &DetectionAccepted{RunID: cmd.RunID, Status: "accepted"}, nil
}

func (h *DetectCoreHandler) run(ctx context.Context, cmd commands.DetectCoreCommand) (*services.DetectionResult, error) {
	resource := "detection#" + lockKey(cmd)
	release, err := h.lock.Acquire(ctx, resource, cmd.RunID, h.lockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		// The run context may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Warn("Failed to release detection lock", zap.String("resource", resource), zap.Error(err))
		}
	}()

	opts := services.DetectOptions{
		MaxIterations: cmd.MaxIterations,
		SkipDownload:  cmd.SkipDownload,
		RunID:         cmd.RunID,
		ConnectionID:  cmd.ConnectionID,
	}
	if cmd.SeedUserID != "" {
		seed, err := valueobjects.NewUserID(cmd.SeedUserID)
		if err != nil {
			return nil, err
		}
		return h.detector.Detect(ctx, seed, opts)
	}
	return h.detector.DetectByScreenName(ctx, cmd.ScreenName, opts)
}

func lockKey(cmd commands.DetectCoreCommand) string {
	if cmd.SeedUserID != "" {
		return cmd.SeedUserID
	}
	return "@" + entities.NormalizedScreenName(cmd.ScreenName)
}
