package social

import (
	"fmt"
	"time"

	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
)

// createdAtLayout is the timestamp format of the v1.1 API
const createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

type apiUser struct {
	IDStr          string `json:"id_str"`
	ScreenName     string `json:"screen_name"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Location       string `json:"location"`
	FollowersCount int    `json:"followers_count"`
	FriendsCount   int    `json:"friends_count"`
	StatusesCount  int    `json:"statuses_count"`
	Protected      bool   `json:"protected"`
	CreatedAt      string `json:"created_at"`
}

func (u apiUser) toEntity() (*entities.User, error) {
	id, err := valueobjects.NewUserID(u.IDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", u.IDStr, err)
	}
	user, err := entities.NewUser(id, u.ScreenName)
	if err != nil {
		return nil, err
	}
	user.Name = u.Name
	user.Description = u.Description
	user.Location = u.Location
	user.FollowersCount = u.FollowersCount
	user.FriendsCount = u.FriendsCount
	user.StatusesCount = u.StatusesCount
	user.Protected = u.Protected
	if created, err := time.Parse(createdAtLayout, u.CreatedAt); err == nil {
		user.CreatedAt = created.UTC()
	}
	return user, nil
}

type friendIDsPage struct {
	IDs        []string `json:"ids"`
	NextCursor string   `json:"next_cursor_str"`
}

type apiUserRef struct {
	IDStr string `json:"id_str"`
}

type apiStatusRef struct {
	ID   int64      `json:"id"`
	User apiUserRef `json:"user"`
}

type apiTweet struct {
	ID                 int64         `json:"id"`
	CreatedAt          string        `json:"created_at"`
	Text               string        `json:"text"`
	FullText           string        `json:"full_text"`
	User               apiUserRef    `json:"user"`
	RetweetedStatus    *apiStatusRef `json:"retweeted_status"`
	QuotedStatus       *apiStatusRef `json:"quoted_status"`
	InReplyToUserIDStr string        `json:"in_reply_to_user_id_str"`
	RetweetCount       int           `json:"retweet_count"`
	FavoriteCount      int           `json:"favorite_count"`
	Lang               string        `json:"lang"`
}

// toEntity converts a timeline entry; author is used when the user object is trimmed
func (t apiTweet) toEntity(author valueobjects.UserID) (*entities.Tweet, error) {
	created, err := time.Parse(createdAtLayout, t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", t.CreatedAt, err)
	}
	if t.User.IDStr != "" {
		if author, err = valueobjects.NewUserID(t.User.IDStr); err != nil {
			return nil, fmt.Errorf("invalid tweet author: %w", err)
		}
	}

	text := t.FullText
	if text == "" {
		text = t.Text
	}
	tweet := &entities.Tweet{
		ID:           t.ID,
		UserID:       author,
		Text:         text,
		CreatedAt:    created.UTC(),
		RetweetCount: t.RetweetCount,
		LikeCount:    t.FavoriteCount,
		Language:     t.Lang,
	}
	if t.RetweetedStatus != nil {
		tweet.RetweetID = t.RetweetedStatus.ID
		tweet.RetweetUserID = optionalID(t.RetweetedStatus.User.IDStr)
	}
	if t.QuotedStatus != nil {
		tweet.QuotedUserID = optionalID(t.QuotedStatus.User.IDStr)
	}
	tweet.ReplyToUserID = optionalID(t.InReplyToUserIDStr)
	return tweet, nil
}

func optionalID(raw string) valueobjects.UserID {
	if raw == "" {
		return valueobjects.UserID{}
	}
	id, err := valueobjects.NewUserID(raw)
	if err != nil {
		return valueobjects.UserID{}
	}
	return id
}
