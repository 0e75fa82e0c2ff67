// Package websocket accepts detection requests over an API Gateway WebSocket API.
// Progress of an accepted run is pushed back to the same connection.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"coredetect/application/commands"
	"coredetect/application/commands/bus"
	commandhandlers "coredetect/application/commands/handlers"
	"coredetect/pkg/auth"
	pkgerrors "coredetect/pkg/errors"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// Route keys handled besides the custom detect route
const (
	RouteConnect    = "$connect"
	RouteDisconnect = "$disconnect"
	RouteDetect     = "detect"
)

// Dispatcher sends commands to their handlers
type Dispatcher interface {
	Send(ctx context.Context, cmd bus.Command) (interface{}, error)
}

// DetectRequest is the body of a detect message
type DetectRequest struct {
	Action        string `json:"action"`
	SeedUserID    string `json:"seed_user_id,omitempty"`
	ScreenName    string `json:"screen_name,omitempty"`
	MaxIterations int    `json:"max_iterations,omitempty"`
	SkipDownload  bool   `json:"skip_download,omitempty"`
}

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Handler routes WebSocket events
type Handler struct {
	commands  Dispatcher
	validator *auth.JWTValidator
	logger    *zap.Logger
}

// NewHandler creates a handler. A nil validator accepts every connection.
func NewHandler(dispatcher Dispatcher, validator *auth.JWTValidator, logger *zap.Logger) *Handler {
	return &Handler{commands: dispatcher, validator: validator, logger: logger}
}

// Handle implements the Lambda handler for every route of the API
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := req.RequestContext.ConnectionID
	logger := h.logger.With(
		zap.String("connectionID", connectionID),
		zap.String("routeKey", req.RequestContext.RouteKey),
	)

	switch req.RequestContext.RouteKey {
	case RouteConnect:
		return h.connect(req, logger), nil
	case RouteDisconnect:
		logger.Debug("WebSocket disconnected")
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
	default:
		return h.detect(ctx, connectionID, req.Body, logger), nil
	}
}

func (h *Handler) connect(req events.APIGatewayWebsocketProxyRequest, logger *zap.Logger) events.APIGatewayProxyResponse {
	if h.validator != nil {
		claims, err := h.validator.ValidateToken(req.QueryStringParameters["token"])
		if err != nil {
			logger.Warn("WebSocket authentication failed", zap.Error(err))
			return respond(http.StatusUnauthorized, errorBody{Type: string(pkgerrors.ErrorTypeUnauthorized), Message: "invalid token"})
		}
		logger = logger.With(zap.String("userID", claims.UserID))
	}
	logger.Info("WebSocket connected")
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}
}

func (h *Handler) detect(ctx context.Context, connectionID, body string, logger *zap.Logger) events.APIGatewayProxyResponse {
	var msg DetectRequest
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return respond(http.StatusBadRequest, errorBody{Type: string(pkgerrors.ErrorTypeValidation), Message: "invalid message body"})
	}
	if msg.Action != RouteDetect {
		return respond(http.StatusBadRequest, errorBody{Type: string(pkgerrors.ErrorTypeValidation), Message: "unknown action"})
	}

	result, err := h.commands.Send(ctx, commands.DetectCoreCommand{
		SeedUserID:    msg.SeedUserID,
		ScreenName:    msg.ScreenName,
		MaxIterations: msg.MaxIterations,
		SkipDownload:  msg.SkipDownload,
		Async:         true,
		ConnectionID:  connectionID,
		RequestedBy:   "websocket:" + connectionID,
	})
	if err != nil {
		appErr := pkgerrors.GetAppError(err)
		if appErr == nil {
			logger.Error("Detection request failed", zap.Error(err))
			return respond(http.StatusInternalServerError, errorBody{Type: string(pkgerrors.ErrorTypeInternal), Message: "internal error"})
		}
		return respond(appErr.HTTPStatus, errorBody{Type: string(appErr.Type), Message: appErr.Message})
	}

	accepted, _ := result.(*commandhandlers.DetectionAccepted)
	logger.Info("Detection accepted over WebSocket")
	return respond(http.StatusAccepted, accepted)
}

func respond(status int, body interface{}) events.APIGatewayProxyResponse {
	payload, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(payload),
	}
}
