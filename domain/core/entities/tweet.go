package entities

import (
	"time"

	"coredetect/domain/core/valueobjects"
)

// DefaultTweetCutoff is the lower bound used by time restricted tweet queries
var DefaultTweetCutoff = time.Date(2020, time.June, 30, 0, 0, 0, 0, time.UTC)

// Tweet is a piece of content authored by a user
type Tweet struct {
	ID            int64
	UserID        valueobjects.UserID
	Text          string
	CreatedAt     time.Time
	RetweetID     int64
	RetweetUserID valueobjects.UserID
	QuotedUserID  valueobjects.UserID
	ReplyToUserID valueobjects.UserID
	RetweetCount  int
	LikeCount     int
	Language      string
}

// IsRetweet reports whether the tweet re-shares another user's tweet
func (t *Tweet) IsRetweet() bool {
	return !t.RetweetUserID.IsZero()
}

// CreatedSince reports whether the tweet was created on or after the cutoff
func (t *Tweet) CreatedSince(cutoff time.Time) bool {
	return !t.CreatedAt.Before(cutoff)
}
