package handlers

import (
	"context"
	"testing"
	"time"

	"coredetect/application/commands"
	"coredetect/application/commands/bus"
	"coredetect/application/ports/mocks"
	"coredetect/application/services"
	"coredetect/domain/core/valueobjects"
	"coredetect/domain/events"
	"coredetect/infrastructure/persistence/memory"
	pkgerrors "coredetect/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockDetector struct {
	mock.Mock
}

func (m *mockDetector) Detect(ctx context.Context, seed valueobjects.UserID, opts services.DetectOptions) (*services.DetectionResult, error) {
	args := m.Called(ctx, seed, opts)
	if args.Get(0) != nil {
		return args.Get(0).(*services.DetectionResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDetector) DetectByScreenName(ctx context.Context, screenName string, opts services.DetectOptions) (*services.DetectionResult, error) {
	args := m.Called(ctx, screenName, opts)
	if args.Get(0) != nil {
		return args.Get(0).(*services.DetectionResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockDownloader struct {
	mock.Mock
}

func (m *mockDownloader) Download(ctx context.Context, userID valueobjects.UserID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func newBus(t *testing.T, detector Detector, lock *memory.InMemoryRunLock, publisher *mocks.MockEventPublisher, downloader TweetDownloader) *bus.CommandBus {
	t.Helper()
	b := bus.NewCommandBus(bus.LoggingMiddleware(zap.NewNop()))
	require.NoError(t, b.Register(commands.DetectCoreCommand{}, NewDetectCoreHandler(detector, lock, publisher, time.Minute, zap.NewNop())))
	require.NoError(t, b.Register(commands.DownloadNeighbourhoodTweetsCommand{}, NewDownloadTweetsHandler(downloader, zap.NewNop())))
	return b
}

func TestDetectCoreHandler_RunsInline(t *testing.T) {
	// Arrange
	detector := new(mockDetector)
	expected := &services.DetectionResult{RunID: "run-1", Core: valueobjects.MustUserID("7"), Steps: 2}
	detector.On("Detect", mock.Anything, valueobjects.MustUserID("42"), services.DetectOptions{
		MaxIterations: 5,
		RunID:         "run-1",
	}).Return(expected, nil)
	lock := memory.NewInMemoryRunLock()
	b := newBus(t, detector, lock, new(mocks.MockEventPublisher), new(mockDownloader))

	// Act
	result, err := b.Send(context.Background(), commands.DetectCoreCommand{SeedUserID: "42", MaxIterations: 5, RunID: "run-1"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, expected, result)
	detector.AssertExpectations(t)

	// the lock is released once the run ends
	release, err := lock.Acquire(context.Background(), "detection#42", "other", time.Minute)
	require.NoError(t, err)
	require.NoError(t, release(context.Background()))
}

func TestDetectCoreHandler_ScreenName(t *testing.T) {
	detector := new(mockDetector)
	detector.On("DetectByScreenName", mock.Anything, "Alice", mock.AnythingOfType("services.DetectOptions")).
		Return(&services.DetectionResult{}, nil)
	b := newBus(t, detector, memory.NewInMemoryRunLock(), new(mocks.MockEventPublisher), new(mockDownloader))

	_, err := b.Send(context.Background(), commands.DetectCoreCommand{ScreenName: "Alice"})

	require.NoError(t, err)
	detector.AssertExpectations(t)
}

func TestDetectCoreHandler_LockHeld(t *testing.T) {
	detector := new(mockDetector)
	lock := memory.NewInMemoryRunLock()
	_, err := lock.Acquire(context.Background(), "detection#@alice", "someone", time.Minute)
	require.NoError(t, err)
	b := newBus(t, detector, lock, new(mocks.MockEventPublisher), new(mockDownloader))

	_, err = b.Send(context.Background(), commands.DetectCoreCommand{ScreenName: "@Alice"})

	assert.True(t, pkgerrors.IsConflict(err))
	detector.AssertNotCalled(t, "DetectByScreenName", mock.Anything, mock.Anything, mock.Anything)
}

func TestDetectCoreHandler_Async(t *testing.T) {
	// Arrange
	publisher := new(mocks.MockEventPublisher)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e events.DomainEvent) bool {
		req, ok := e.(events.DetectionRequested)
		return ok && req.SeedUserID == "42" && req.ConnectionID == "conn-1" && req.GetAggregateID() == "run-9"
	})).Return(nil)
	b := newBus(t, new(mockDetector), memory.NewInMemoryRunLock(), publisher, new(mockDownloader))

	// Act
	result, err := b.Send(context.Background(), commands.DetectCoreCommand{
		SeedUserID:   "42",
		Async:        true,
		ConnectionID: "conn-1",
		RunID:        "run-9",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, &DetectionAccepted{RunID: "run-9", Status: "accepted"}, result)
	publisher.AssertExpectations(t)
}

func TestDetectCoreCommand_Validation(t *testing.T) {
	tests := []struct {
		name string
		cmd  commands.DetectCoreCommand
	}{
		{name: "no seed", cmd: commands.DetectCoreCommand{}},
		{name: "both seeds", cmd: commands.DetectCoreCommand{SeedUserID: "1", ScreenName: "a"}},
		{name: "non numeric id", cmd: commands.DetectCoreCommand{SeedUserID: "abc"}},
		{name: "too many iterations", cmd: commands.DetectCoreCommand{SeedUserID: "1", MaxIterations: commands.MaxIterationsLimit + 1}},
	}

	b := newBus(t, new(mockDetector), memory.NewInMemoryRunLock(), new(mocks.MockEventPublisher), new(mockDownloader))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Send(context.Background(), tt.cmd)
			assert.True(t, pkgerrors.IsValidation(err))
		})
	}
}

func TestDownloadTweetsHandler(t *testing.T) {
	downloader := new(mockDownloader)
	downloader.On("Download", mock.Anything, valueobjects.MustUserID("5")).Return(12, nil)
	b := newBus(t, new(mockDetector), memory.NewInMemoryRunLock(), new(mocks.MockEventPublisher), downloader)

	result, err := b.Send(context.Background(), commands.DownloadNeighbourhoodTweetsCommand{UserID: "5"})

	require.NoError(t, err)
	assert.Equal(t, &DownloadResult{UserID: valueobjects.MustUserID("5"), Users: 12}, result)
}
