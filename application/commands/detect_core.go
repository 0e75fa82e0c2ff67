// Package commands defines the state-changing requests the service accepts.
package commands

import (
	"coredetect/domain/core/validators"
)

// MaxIterationsLimit caps the iterations a caller may request
const MaxIterationsLimit = 100

// DetectCoreCommand starts a core detection run from a seed user id or screen name
type DetectCoreCommand struct {
	SeedUserID    string `json:"seed_user_id" validate:"required_without=ScreenName,excluded_with=ScreenName,userid"`
	ScreenName    string `json:"screen_name" validate:"required_without=SeedUserID,max=50"`
	MaxIterations int    `json:"max_iterations" validate:"min=0,max=100"`
	SkipDownload  bool   `json:"skip_download"`
	// Async publishes the request for a worker instead of running it inline
	Async        bool   `json:"async"`
	ConnectionID string `json:"connection_id,omitempty" validate:"max=128"`
	RunID        string `json:"-"`
	RequestedBy  string `json:"-"`
}

// Validate implements bus.Command
func (c DetectCoreCommand) Validate() error {
	return validators.Struct(c)
}

// Identity is the seed id, or the screen name prefixed with @
func (c DetectCoreCommand) Identity() string {
	if c.SeedUserID != "" {
		return c.SeedUserID
	}
	return "@" + c.ScreenName
}

// DownloadNeighbourhoodTweetsCommand streams recent tweets for every member of a stored neighbourhood
type DownloadNeighbourhoodTweetsCommand struct {
	UserID string `json:"user_id" validate:"required,userid"`
}

// Validate implements bus.Command
func (c DownloadNeighbourhoodTweetsCommand) Validate() error {
	return validators.Struct(c)
}
