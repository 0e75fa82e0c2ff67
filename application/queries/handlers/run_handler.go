package handlers

import (
	"context"
	"encoding/json"

	"coredetect/application/ports"
	"coredetect/application/queries"
	"coredetect/application/queries/bus"
	"coredetect/domain/events"
	pkgerrors "coredetect/pkg/errors"
)

// RunView summarises a detection run from its recorded events
type RunView struct {
	RunID      string          `json:"run_id"`
	Status     string          `json:"status"`
	SeedUserID string          `json:"seed_user_id,omitempty"`
	ScreenName string          `json:"screen_name,omitempty"`
	CoreUserID string          `json:"core_user_id,omitempty"`
	Steps      int             `json:"steps"`
	Reason     string          `json:"reason,omitempty"`
	Error      string          `json:"error,omitempty"`
	Events     []events.Record `json:"events"`
}

// GetRunHandler handles GetRunQuery
type GetRunHandler struct {
	runs ports.RunEventStore
}

// NewGetRunHandler creates a new handler
func NewGetRunHandler(runs ports.RunEventStore) *GetRunHandler {
	return &GetRunHandler{runs: runs}
}

// Handle implements bus.QueryHandler
func (h *GetRunHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetRunQuery)
	if !ok {
		return nil, pkgerrors.NewInternalError("unexpected query type")
	}

	records, err := h.runs.List(ctx, query.RunID)
	if err != nil {
		return nil, err
	}

	view := &RunView{RunID: query.RunID, Status: events.RunStatus(records), Events: records}
	for _, rec := range records {
		if err := view.apply(rec); err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to decode %s event", rec.EventType)
		}
	}
	return view, nil
}

func (v *RunView) apply(rec events.Record) error {
	switch rec.EventType {
	case events.TypeDetectionRequested:
		var e events.DetectionRequested
		if err := json.Unmarshal(rec.Data, &e); err != nil {
			return err
		}
		v.SeedUserID, v.ScreenName = e.SeedUserID, e.ScreenName
	case events.TypeDetectionStarted:
		var e events.DetectionStarted
		if err := json.Unmarshal(rec.Data, &e); err != nil {
			return err
		}
		v.SeedUserID = e.SeedUserID
	case events.TypeDetectionStepCompleted:
		var e events.DetectionStepCompleted
		if err := json.Unmarshal(rec.Data, &e); err != nil {
			return err
		}
		v.Steps = e.Step
	case events.TypeDetectionConverged:
		var e events.DetectionConverged
		if err := json.Unmarshal(rec.Data, &e); err != nil {
			return err
		}
		v.CoreUserID, v.Steps = e.CoreUserID, e.Steps
	case events.TypeDetectionFailed:
		var e events.DetectionFailed
		if err := json.Unmarshal(rec.Data, &e); err != nil {
			return err
		}
		v.Reason, v.Error, v.Steps = e.Reason, e.Error, e.Steps
	}
	return nil
}
