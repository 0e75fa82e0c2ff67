package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewDatabaseError_ClassifiesAWSErrors(t *testing.T) {
	tests := []struct {
		name     string
		cause    error
		wantType ErrorType
	}{
		{
			name:     "throttling",
			cause:    &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException"},
			wantType: ErrorTypeRateLimit,
		},
		{
			name:     "conditional check",
			cause:    &smithy.GenericAPIError{Code: "ConditionalCheckFailedException"},
			wantType: ErrorTypeConflict,
		},
		{
			name:     "other api error",
			cause:    &smithy.GenericAPIError{Code: "ValidationException"},
			wantType: ErrorTypeDatabase,
		},
		{
			name:     "plain error",
			cause:    errors.New("boom"),
			wantType: ErrorTypeDatabase,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDatabaseError("PutItem", fmt.Errorf("wrapped: %w", tt.cause))

			assert.Equal(t, tt.wantType, err.Type)
			assert.True(t, errors.Is(err, tt.cause))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewRateLimitError("social")))
	assert.True(t, IsRetryable(NewUnavailableError("social")))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(NewNotFoundError("user")))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestWrap_PreservesAppErrorType(t *testing.T) {
	err := Wrap(NewNotFoundError("user"), "resolving seed")

	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "resolving seed: user not found")
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestWrap_LeavesOriginalUntouched(t *testing.T) {
	// Arrange
	original := NewRateLimitError("social").WithDetail("retry_after", 30)
	message := original.Message

	// Act
	var wg sync.WaitGroup
	wrapped := make([]error, 8)
	for i := range wrapped {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wrapped[i] = Wrapf(original, "downloading tweets of %d", i)
		}(i)
	}
	wg.Wait()

	// Assert
	assert.Equal(t, message, original.Message)
	for i, err := range wrapped {
		appErr := GetAppError(err)
		require.NotNil(t, appErr)
		assert.NotSame(t, original, appErr)
		assert.Equal(t, fmt.Sprintf("downloading tweets of %d: %s", i, message), appErr.Message)
		assert.Equal(t, original.HTTPStatus, appErr.HTTPStatus)
		assert.True(t, errors.Is(err, original))
		assert.True(t, IsRetryable(err))

		appErr.Details["retry_after"] = 0
	}
	assert.Equal(t, 30, original.Details["retry_after"])
}

func TestErrorHandler_Handle(t *testing.T) {
	sentinel := errors.New("did not converge")
	classify := func(err error) (int, string, map[string]interface{}, bool) {
		if errors.Is(err, sentinel) {
			return http.StatusUnprocessableEntity, "NOT_CONVERGED", nil, true
		}
		return 0, "", nil, false
	}
	h := NewErrorHandler(zap.NewNop(), false, classify)

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "classified", err: fmt.Errorf("detect: %w", sentinel), wantStatus: http.StatusUnprocessableEntity},
		{name: "app error", err: NewNotFoundError("user"), wantStatus: http.StatusNotFound},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/1", nil)

			h.Handle(rec, req, tt.err)

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}
