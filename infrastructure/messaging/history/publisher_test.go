package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"coredetect/application/ports/mocks"
	"coredetect/domain/events"
	"coredetect/infrastructure/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingStore struct{}

func (failingStore) Append(ctx context.Context, records []events.Record) error {
	return errors.New("table unavailable")
}

func (failingStore) List(ctx context.Context, runID string) ([]events.Record, error) {
	return nil, errors.New("table unavailable")
}

func TestPublisher_RecordsAndForwards(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewInMemoryRunEventStore()
	next := new(mocks.MockEventPublisher)
	next.On("PublishBatch", mock.Anything, mock.Anything).Return(nil)
	p := NewPublisher(store, next, zap.NewNop())
	now := time.Now().UTC()

	// Act
	require.NoError(t, p.Publish(ctx, events.NewDetectionStarted("run-1", "42", 5, false, now)))
	require.NoError(t, p.Publish(ctx, events.NewDetectionConverged("run-1", "42", "7", 2, now)))

	// Assert
	records, err := store.List(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, events.TypeDetectionStarted, records[0].EventType)
	assert.Equal(t, events.RunStatusConverged, events.RunStatus(records))
	next.AssertNumberOfCalls(t, "PublishBatch", 2)
}

func TestPublisher_WithoutNext(t *testing.T) {
	store := memory.NewInMemoryRunEventStore()
	p := NewPublisher(store, nil, zap.NewNop())

	err := p.Publish(context.Background(), events.NewDetectionRequested("run-2", "42", "", 0, false, time.Now()))

	require.NoError(t, err)
	records, err := store.List(context.Background(), "run-2")
	require.NoError(t, err)
	assert.Equal(t, events.RunStatusPending, events.RunStatus(records))
}

func TestPublisher_StoreFailureStillForwards(t *testing.T) {
	next := new(mocks.MockEventPublisher)
	next.On("PublishBatch", mock.Anything, mock.Anything).Return(errors.New("bus down"))
	p := NewPublisher(failingStore{}, next, zap.NewNop())

	err := p.Publish(context.Background(), events.NewDetectionStarted("run-3", "1", 1, false, time.Now()))

	assert.EqualError(t, err, "bus down")
	next.AssertExpectations(t)
}
