package services

import (
	"errors"
	"fmt"

	"coredetect/domain/core/valueobjects"
)

// Step phases reported by StepFailedError
const (
	PhaseMaterializeUser    = "materialize_user"
	PhaseMaterializeFriends = "materialize_friends"
	PhaseCleanFriends       = "clean_friends"
	PhaseNeighbourhood      = "materialize_neighbourhood"
	PhaseLoadNeighbourhood  = "load_neighbourhood"
	PhaseBuildGraph         = "build_graph"
	PhaseCluster            = "cluster"
	PhaseLoadClusters       = "load_clusters"
	PhaseSelectCluster      = "select_cluster"
	PhaseRank               = "rank"
	PhaseLoadRanking        = "load_ranking"
)

// StepFailedError reports a refinement step that could not complete
type StepFailedError struct {
	Step   int
	UserID valueobjects.UserID
	Phase  string
	Cause  error
}

func (e *StepFailedError) Error() string {
	if e.Phase == "" {
		return fmt.Sprintf("step %d for user %s failed: %v", e.Step, e.UserID, e.Cause)
	}
	return fmt.Sprintf("step %d for user %s failed during %s: %v", e.Step, e.UserID, e.Phase, e.Cause)
}

func (e *StepFailedError) Unwrap() error {
	return e.Cause
}

// NotConvergedError reports a run that hit its iteration cap
type NotConvergedError struct {
	MaxIterations int
	Last          valueobjects.UserID
	Previous      valueobjects.UserID
}

func (e *NotConvergedError) Error() string {
	return fmt.Sprintf("detection did not converge after %d iterations (last candidate %s, previous %s)",
		e.MaxIterations, e.Last, e.Previous)
}

// phaseError tags a collaborator failure with the phase it happened in
type phaseError struct {
	phase string
	err   error
}

func (e *phaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.phase, e.err)
}

func (e *phaseError) Unwrap() error {
	return e.err
}

func inPhase(phase string, err error) error {
	if err == nil {
		return nil
	}
	return &phaseError{phase: phase, err: err}
}

// newStepFailedError unwraps a phase tag into the typed error
func newStepFailedError(step int, userID valueobjects.UserID, err error) *StepFailedError {
	var pe *phaseError
	if errors.As(err, &pe) {
		return &StepFailedError{Step: step, UserID: userID, Phase: pe.phase, Cause: pe.err}
	}
	return &StepFailedError{Step: step, UserID: userID, Cause: err}
}

// IsStepFailed reports whether err is a StepFailedError
func IsStepFailed(err error) bool {
	var target *StepFailedError
	return errors.As(err, &target)
}

// IsNotConverged reports whether err is a NotConvergedError
func IsNotConverged(err error) bool {
	var target *NotConvergedError
	return errors.As(err, &target)
}
