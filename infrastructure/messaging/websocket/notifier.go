// Package websocket pushes detection progress to API Gateway WebSocket connections.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"coredetect/application/ports"
	"coredetect/domain/events"
	pkgerrors "coredetect/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwTypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"go.uber.org/zap"
)

// Client is the subset of the API Gateway Management API the notifier uses
type Client interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// Message is the frame sent to clients
type Message struct {
	Type      string             `json:"type"`
	Timestamp int64              `json:"timestamp"`
	Data      events.DomainEvent `json:"data"`
}

// Notifier implements ports.ProgressNotifier
type Notifier struct {
	client Client
	logger *zap.Logger
}

// NewNotifier creates a notifier
func NewNotifier(client Client, logger *zap.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

// NewClient builds a management API client bound to the WebSocket stage endpoint
func NewClient(cfg aws.Config, endpoint string) *apigatewaymanagementapi.Client {
	return apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s", endpoint))
	})
}

var _ ports.ProgressNotifier = (*Notifier)(nil)

// Notify sends event to connectionID. Connections that have gone away are skipped.
func (n *Notifier) Notify(ctx context.Context, connectionID string, event events.DomainEvent) error {
	if connectionID == "" {
		return nil
	}

	payload, err := json.Marshal(Message{
		Type:      event.GetEventType(),
		Timestamp: event.GetTimestamp().UnixMilli(),
		Data:      event,
	})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal websocket message")
	}

	_, err = n.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         payload,
	})
	if err != nil {
		var gone *apigwTypes.GoneException
		if errors.As(err, &gone) {
			n.logger.Debug("WebSocket connection gone",
				zap.String("connectionID", connectionID),
			)
			return nil
		}
		return pkgerrors.NewExternalError("websocket", err)
	}
	return nil
}
