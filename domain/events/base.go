package events

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetEventID() string
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventID     string    `json:"event_id"`
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetEventID() string      { return e.EventID }
func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBaseEvent(runID, eventType string, timestamp time.Time) BaseEvent {
	return BaseEvent{
		EventID:     uuid.New().String(),
		AggregateID: runID,
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     1,
	}
}

// Event types
const (
	TypeDetectionRequested     = "detection.requested"
	TypeDetectionStarted       = "detection.started"
	TypeDetectionStepCompleted = "detection.step_completed"
	TypeDetectionConverged     = "detection.converged"
	TypeDetectionFailed        = "detection.failed"
)

// NewRunID creates an identifier for a detection run
func NewRunID() string {
	return uuid.New().String()
}

// DetectionRequested asks a worker to run a detection asynchronously
type DetectionRequested struct {
	BaseEvent
	SeedUserID    string `json:"seed_user_id,omitempty"`
	ScreenName    string `json:"screen_name,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty"`
	SkipDownload  bool   `json:"skip_download"`
	ConnectionID  string `json:"connection_id,omitempty"`
}

// NewDetectionRequested creates a DetectionRequested event
func NewDetectionRequested(runID, seedUserID, screenName string, maxIterations int, skipDownload bool, timestamp time.Time) DetectionRequested {
	return DetectionRequested{
		BaseEvent:     newBaseEvent(runID, TypeDetectionRequested, timestamp),
		SeedUserID:    seedUserID,
		ScreenName:    screenName,
		MaxIterations: maxIterations,
		SkipDownload:  skipDownload,
	}
}

// DetectionStarted is raised when a run begins from a resolved seed
type DetectionStarted struct {
	BaseEvent
	SeedUserID    string `json:"seed_user_id"`
	MaxIterations int    `json:"max_iterations"`
	SkipDownload  bool   `json:"skip_download"`
}

// NewDetectionStarted creates a DetectionStarted event
func NewDetectionStarted(runID, seedUserID string, maxIterations int, skipDownload bool, timestamp time.Time) DetectionStarted {
	return DetectionStarted{
		BaseEvent:     newBaseEvent(runID, TypeDetectionStarted, timestamp),
		SeedUserID:    seedUserID,
		MaxIterations: maxIterations,
		SkipDownload:  skipDownload,
	}
}

// DetectionStepCompleted is raised after each successful step
type DetectionStepCompleted struct {
	BaseEvent
	Step         int      `json:"step"`
	InputUserID  string   `json:"input_user_id"`
	OutputUserID string   `json:"output_user_id"`
	ClusterSize  int      `json:"cluster_size"`
	Similarity   float64  `json:"similarity"`
	TopUsers     []string `json:"top_users"`
}

// NewDetectionStepCompleted creates a DetectionStepCompleted event
func NewDetectionStepCompleted(runID string, step int, input, output string, clusterSize int, similarity float64, topUsers []string, timestamp time.Time) DetectionStepCompleted {
	return DetectionStepCompleted{
		BaseEvent:    newBaseEvent(runID, TypeDetectionStepCompleted, timestamp),
		Step:         step,
		InputUserID:  input,
		OutputUserID: output,
		ClusterSize:  clusterSize,
		Similarity:   similarity,
		TopUsers:     topUsers,
	}
}

// DetectionConverged is raised when a fixed point is reached
type DetectionConverged struct {
	BaseEvent
	SeedUserID string `json:"seed_user_id"`
	CoreUserID string `json:"core_user_id"`
	Steps      int    `json:"steps"`
}

// NewDetectionConverged creates a DetectionConverged event
func NewDetectionConverged(runID, seed, core string, steps int, timestamp time.Time) DetectionConverged {
	return DetectionConverged{
		BaseEvent:  newBaseEvent(runID, TypeDetectionConverged, timestamp),
		SeedUserID: seed,
		CoreUserID: core,
		Steps:      steps,
	}
}

// DetectionFailed is raised when a run ends without a core user
type DetectionFailed struct {
	BaseEvent
	SeedUserID string `json:"seed_user_id"`
	Reason     string `json:"reason"`
	Error      string `json:"error"`
	Steps      int    `json:"steps"`
}

// NewDetectionFailed creates a DetectionFailed event
func NewDetectionFailed(runID, seed, reason string, err error, steps int, timestamp time.Time) DetectionFailed {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return DetectionFailed{
		BaseEvent:  newBaseEvent(runID, TypeDetectionFailed, timestamp),
		SeedUserID: seed,
		Reason:     reason,
		Error:      msg,
		Steps:      steps,
	}
}
