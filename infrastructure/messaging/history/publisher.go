// Package history records detection events so runs can be inspected after the fact.
package history

import (
	"context"

	"coredetect/application/ports"
	"coredetect/domain/events"

	"go.uber.org/zap"
)

// Publisher stores every event in the run history, then forwards it to the next
// publisher when there is one. A history write failure is logged, never returned.
type Publisher struct {
	store  ports.RunEventStore
	next   ports.EventPublisher
	logger *zap.Logger
}

// NewPublisher creates a recording publisher. next may be nil.
func NewPublisher(store ports.RunEventStore, next ports.EventPublisher, logger *zap.Logger) *Publisher {
	return &Publisher{store: store, next: next, logger: logger}
}

var _ ports.EventPublisher = (*Publisher)(nil)

// Publish records and forwards a single event
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch records and forwards events
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	if len(domainEvents) == 0 {
		return nil
	}

	records := make([]events.Record, 0, len(domainEvents))
	for _, event := range domainEvents {
		rec, err := events.NewRecord(event)
		if err != nil {
			p.logger.Warn("Failed to record event", zap.String("eventType", event.GetEventType()), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	if err := p.store.Append(ctx, records); err != nil {
		p.logger.Warn("Failed to store run events", zap.Int("count", len(records)), zap.Error(err))
	}

	if p.next == nil {
		return nil
	}
	return p.next.PublishBatch(ctx, domainEvents)
}
