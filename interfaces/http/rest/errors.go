package rest

import (
	"context"
	"errors"
	"net/http"

	"coredetect/application/services"
	pkgerrors "coredetect/pkg/errors"
)

// ClassifyDetectionError maps detection failures that are not AppErrors onto HTTP responses
func ClassifyDetectionError(err error) (int, string, map[string]interface{}, bool) {
	var stepErr *services.StepFailedError
	if errors.As(err, &stepErr) {
		details := map[string]interface{}{
			"step":    stepErr.Step,
			"user_id": stepErr.UserID.String(),
		}
		if stepErr.Phase != "" {
			details["phase"] = stepErr.Phase
		}
		if appErr := pkgerrors.GetAppError(stepErr.Cause); appErr != nil {
			details["cause_type"] = string(appErr.Type)
		}
		return http.StatusBadGateway, "STEP_FAILED", details, true
	}

	var notConverged *services.NotConvergedError
	if errors.As(err, &notConverged) {
		return http.StatusUnprocessableEntity, "NOT_CONVERGED", map[string]interface{}{
			"max_iterations": notConverged.MaxIterations,
			"last":           notConverged.Last.String(),
			"previous":       notConverged.Previous.String(),
		}, true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, string(pkgerrors.ErrorTypeTimeout), nil, true
	}
	return 0, "", nil, false
}
