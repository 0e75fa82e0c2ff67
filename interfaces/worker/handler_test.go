package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"coredetect/application/commands"
	"coredetect/application/commands/bus"
	"coredetect/application/services"
	"coredetect/domain/core/valueobjects"
	domainevents "coredetect/domain/events"
	pkgerrors "coredetect/pkg/errors"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Send(ctx context.Context, cmd bus.Command) (interface{}, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0), args.Error(1)
}

func requestedEvent(t *testing.T) events.CloudWatchEvent {
	t.Helper()
	requested := domainevents.NewDetectionRequested("run-1", "42", "", 5, true, time.Now().UTC())
	requested.ConnectionID = "conn-1"
	detail, err := json.Marshal(requested)
	require.NoError(t, err)
	return events.CloudWatchEvent{
		ID:         "evt-1",
		DetailType: domainevents.TypeDetectionRequested,
		Source:     "coredetect.detector",
		Detail:     detail,
	}
}

func TestHandler_RunsRequestedDetection(t *testing.T) {
	// Arrange
	dispatcher := new(mockDispatcher)
	expected := commands.DetectCoreCommand{
		SeedUserID:    "42",
		MaxIterations: 5,
		SkipDownload:  true,
		ConnectionID:  "conn-1",
		RunID:         "run-1",
	}
	dispatcher.On("Send", mock.Anything, expected).
		Return(&services.DetectionResult{Core: valueobjects.MustUserID("7"), Steps: 3}, nil)
	h := NewHandler(dispatcher, zap.NewNop())

	// Act
	err := h.Handle(context.Background(), requestedEvent(t))

	// Assert
	require.NoError(t, err)
	dispatcher.AssertExpectations(t)
}

func TestHandler_RetriesOnlyTransientFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"not converged", &services.NotConvergedError{MaxIterations: 5}, false},
		{"lock held", pkgerrors.NewConflictError("detection already running"), false},
		{"unknown user", &services.StepFailedError{Step: 0, Cause: pkgerrors.NewNotFoundError("user")}, false},
		{"rate limited upstream", &services.StepFailedError{Step: 2, Cause: pkgerrors.NewRateLimitError("social")}, true},
		{"deadline", context.DeadlineExceeded, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := new(mockDispatcher)
			dispatcher.On("Send", mock.Anything, mock.Anything).Return(nil, tt.err)
			h := NewHandler(dispatcher, zap.NewNop())

			err := h.Handle(context.Background(), requestedEvent(t))

			if tt.wantErr {
				assert.True(t, errors.Is(err, tt.err) || err == tt.err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHandler_IgnoresOtherEvents(t *testing.T) {
	dispatcher := new(mockDispatcher)
	h := NewHandler(dispatcher, zap.NewNop())

	assert.NoError(t, h.Handle(context.Background(), events.CloudWatchEvent{DetailType: domainevents.TypeDetectionConverged}))
	assert.NoError(t, h.Handle(context.Background(), events.CloudWatchEvent{
		DetailType: domainevents.TypeDetectionRequested,
		Detail:     json.RawMessage(`{not json`),
	}))
	dispatcher.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
