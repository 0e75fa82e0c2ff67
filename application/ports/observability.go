package ports

import (
	"context"
	"time"
)

// Tracer wraps a unit of work in a trace subsegment
type Tracer interface {
	TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error
}

// DetectionMetrics records the outcomes of detection runs and their steps
type DetectionMetrics interface {
	ObserveStep(outcome string, duration time.Duration)
	ObserveDetection(ctx context.Context, outcome string, steps int, duration time.Duration)
	IncContentFailures()
}
