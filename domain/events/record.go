package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is a stored event of a detection run
type Record struct {
	EventID   string          `json:"event_id"`
	RunID     string          `json:"run_id"`
	EventType string          `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewRecord captures an event for storage
func NewRecord(event DomainEvent) (Record, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return Record{}, fmt.Errorf("failed to marshal event %s: %w", event.GetEventType(), err)
	}
	return Record{
		EventID:   event.GetEventID(),
		RunID:     event.GetAggregateID(),
		EventType: event.GetEventType(),
		Timestamp: event.GetTimestamp().UTC(),
		Data:      data,
	}, nil
}

// Run statuses derived from recorded events
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusConverged = "converged"
	RunStatusFailed    = "failed"
)

// RunStatus derives the status of a run from its last recorded event
func RunStatus(records []Record) string {
	if len(records) == 0 {
		return ""
	}
	switch records[len(records)-1].EventType {
	case TypeDetectionRequested:
		return RunStatusPending
	case TypeDetectionConverged:
		return RunStatusConverged
	case TypeDetectionFailed:
		return RunStatusFailed
	default:
		return RunStatusRunning
	}
}
