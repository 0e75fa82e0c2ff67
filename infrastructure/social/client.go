// Package social is the HTTP client of the upstream social network API.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"coredetect/application/ports"
	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
	"coredetect/infrastructure/config"
	pkgerrors "coredetect/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	serviceName     = "social-api"
	timelinePage    = 200
	maxRetries      = 3
	maxResponseSize = 10 << 20
)

// Metrics records upstream request outcomes
type Metrics interface {
	ObserveSocialRequest(endpoint, status string)
}

// Client implements ports.SocialNetworkClient over the v1.1 style REST API.
// Every request waits on a shared rate limiter and runs through a circuit breaker.
type Client struct {
	baseURL  string
	token    string
	pageSize int
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	metrics  Metrics
	logger   *zap.Logger
	backoffs []time.Duration
}

// NewClient creates a client from the social section of the configuration
func NewClient(cfg config.SocialConfig, metrics Metrics, logger *zap.Logger) *Client {
	c := &Client{
		baseURL:  cfg.BaseURL,
		token:    cfg.BearerToken,
		pageSize: cfg.PageSize,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		metrics:  metrics,
		logger:   logger,
		backoffs: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        serviceName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// Missing and protected accounts are answers, not upstream failures
		IsSuccessful: func(err error) bool {
			return err == nil || pkgerrors.IsNotFound(err) || pkgerrors.IsUnauthorized(err) ||
				pkgerrors.IsType(err, pkgerrors.ErrorTypeForbidden)
		},
	})
	return c
}

var _ ports.SocialNetworkClient = (*Client)(nil)

// GetUser fetches a profile by id
func (c *Client) GetUser(ctx context.Context, id valueobjects.UserID) (*entities.User, error) {
	var raw apiUser
	if err := c.get(ctx, "users/show", url.Values{"user_id": {id.String()}}, &raw); err != nil {
		return nil, err
	}
	return raw.toEntity()
}

// GetUserByScreenName fetches a profile by screen name
func (c *Client) GetUserByScreenName(ctx context.Context, screenName string) (*entities.User, error) {
	var raw apiUser
	params := url.Values{"screen_name": {entities.NormalizedScreenName(screenName)}}
	if err := c.get(ctx, "users/show", params, &raw); err != nil {
		return nil, err
	}
	return raw.toEntity()
}

// GetFriendIDs fetches one page of the accounts a user follows
func (c *Client) GetFriendIDs(ctx context.Context, id valueobjects.UserID, cursor string) ([]valueobjects.UserID, string, error) {
	if cursor == "" {
		cursor = "-1"
	}
	params := url.Values{
		"user_id":       {id.String()},
		"cursor":        {cursor},
		"count":         {strconv.Itoa(c.pageSize)},
		"stringify_ids": {"true"},
	}

	var page friendIDsPage
	if err := c.get(ctx, "friends/ids", params, &page); err != nil {
		return nil, "", err
	}
	ids, err := valueobjects.ParseUserIDs(page.IDs)
	if err != nil {
		return nil, "", pkgerrors.NewExternalError(serviceName, err)
	}

	next := page.NextCursor
	if next == "0" {
		next = ""
	}
	return ids, next, nil
}

// GetUserTweets pages backwards through the timeline until tweets are older than since
func (c *Client) GetUserTweets(ctx context.Context, id valueobjects.UserID, since time.Time) ([]*entities.Tweet, error) {
	var tweets []*entities.Tweet
	var maxID int64

	for {
		params := url.Values{
			"user_id":     {id.String()},
			"count":       {strconv.Itoa(timelinePage)},
			"include_rts": {"true"},
			"tweet_mode":  {"extended"},
		}
		if maxID > 0 {
			params.Set("max_id", strconv.FormatInt(maxID, 10))
		}

		var page []apiTweet
		if err := c.get(ctx, "statuses/user_timeline", params, &page); err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return tweets, nil
		}

		reachedCutoff := false
		for _, raw := range page {
			tweet, err := raw.toEntity(id)
			if err != nil {
				return nil, pkgerrors.NewExternalError(serviceName, err)
			}
			if !tweet.CreatedSince(since) {
				reachedCutoff = true
				continue
			}
			tweets = append(tweets, tweet)
			if maxID == 0 || tweet.ID <= maxID {
				maxID = tweet.ID - 1
			}
		}
		if reachedCutoff {
			return tweets, nil
		}
	}
}

// get performs a GET with rate limiting, circuit breaking and retries of transient failures
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoffs[min(attempt-1, len(c.backoffs)-1)]):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return pkgerrors.NewRateLimitError(serviceName).WithCause(err)
		}

		_, err := c.breaker.Execute(func() (interface{}, error) {
			return nil, c.do(ctx, endpoint, params, out)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.observe(endpoint, "breaker_open")
			return pkgerrors.NewUnavailableError(serviceName).WithCause(err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !pkgerrors.IsRetryable(err) {
			return err
		}

		lastErr = err
		c.logger.Warn("Retrying social API request",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	reqURL := fmt.Sprintf("%s/%s.json?%s", c.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return pkgerrors.NewInternalError("failed to create request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(endpoint, "error")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return pkgerrors.NewNetworkError("social API request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.observe(endpoint, "error")
		return pkgerrors.NewNetworkError("failed to read social API response", err)
	}
	c.observe(endpoint, strconv.Itoa(resp.StatusCode))

	if err := statusError(resp.StatusCode, endpoint); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return pkgerrors.NewExternalError(serviceName, fmt.Errorf("failed to decode %s response: %w", endpoint, err))
	}
	return nil
}

func statusError(status int, endpoint string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return pkgerrors.NewNotFoundError("social network user").WithDetail("endpoint", endpoint)
	case status == http.StatusUnauthorized:
		return pkgerrors.NewUnauthorizedError("social API rejected the request").WithDetail("endpoint", endpoint)
	case status == http.StatusForbidden:
		return pkgerrors.NewForbiddenError("account is protected or suspended").WithDetail("endpoint", endpoint)
	case status == http.StatusTooManyRequests:
		return pkgerrors.NewRateLimitError(serviceName).WithDetail("endpoint", endpoint)
	case status >= 500:
		return pkgerrors.NewUnavailableError(serviceName).WithDetail("status", status)
	default:
		return pkgerrors.NewExternalError(serviceName, fmt.Errorf("unexpected status %d from %s", status, endpoint))
	}
}

func (c *Client) observe(endpoint, status string) {
	if c.metrics != nil {
		c.metrics.ObserveSocialRequest(endpoint, status)
	}
}
