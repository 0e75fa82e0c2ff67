package handlers

import (
	"context"

	"coredetect/application/commands"
	"coredetect/application/commands/bus"
	"coredetect/domain/core/valueobjects"
	pkgerrors "coredetect/pkg/errors"

	"go.uber.org/zap"
)

// TweetDownloader streams tweets for a stored neighbourhood
type TweetDownloader interface {
	Download(ctx context.Context, userID valueobjects.UserID) (int, error)
}

// DownloadResult reports how many users were covered
type DownloadResult struct {
	UserID valueobjects.UserID `json:"user_id"`
	Users  int                 `json:"users"`
}

// DownloadTweetsHandler handles DownloadNeighbourhoodTweetsCommand
type DownloadTweetsHandler struct {
	downloader TweetDownloader
	logger     *zap.Logger
}

// NewDownloadTweetsHandler creates a new handler
func NewDownloadTweetsHandler(downloader TweetDownloader, logger *zap.Logger) *DownloadTweetsHandler {
	return &DownloadTweetsHandler{downloader: downloader, logger: logger}
}

// Handle implements bus.CommandHandler
func (h *DownloadTweetsHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.DownloadNeighbourhoodTweetsCommand)
	if !ok {
		return nil, pkgerrors.NewInternalError("unexpected command type")
	}
	userID, err := valueobjects.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}

	users, err := h.downloader.Download(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &DownloadResult{UserID: userID, Users: users}, nil
}
