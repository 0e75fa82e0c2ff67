package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"coredetect/application/ports"
	"coredetect/domain/core/aggregates"
	"coredetect/domain/core/entities"
	"coredetect/domain/core/valueobjects"
	"coredetect/domain/events"
	domainservices "coredetect/domain/services"
	pkgerrors "coredetect/pkg/errors"
	"go.uber.org/zap"
)

// DefaultMaxIterations bounds a run when nothing else is configured
const DefaultMaxIterations = 25

// Collaborators is the set of ports the detector drives
type Collaborators struct {
	Users            ports.UserRepository
	UserMaterializer ports.UserMaterializer
	Friends          ports.FriendsMaterializer
	FriendsCleaner   ports.FriendsCleaner
	Neighbourhoods   ports.NeighbourhoodMaterializer
	NeighbourhoodsDB ports.NeighbourhoodRepository
	GraphBuilder     ports.SocialGraphBuilder
	Clusterer        ports.Clusterer
	Clusters         ports.ClusterRepository
	Ranker           ports.Ranker
	Rankings         ports.RankingRepository
	Content          ports.ContentMaterializer
}

// DetectorConfig holds the defaults applied to runs that do not override them
type DetectorConfig struct {
	MaxIterations int
	SkipDownload  bool
}

// DetectOptions tunes a single run
type DetectOptions struct {
	// MaxIterations caps executed steps; zero uses the configured default
	MaxIterations int
	// SkipDownload reuses persisted users, friends and neighbourhoods
	SkipDownload bool
	// RunID identifies the run in events; generated when empty
	RunID string
	// ConnectionID receives progress events when set
	ConnectionID string
}

// StepRecord describes one executed step
type StepRecord struct {
	Step        int                   `json:"step"`
	InputUserID valueobjects.UserID   `json:"input_user_id"`
	NextUserID  valueobjects.UserID   `json:"next_user_id"`
	ClusterSize int                   `json:"cluster_size"`
	Similarity  float64               `json:"similarity"`
	TopUsers    []valueobjects.UserID `json:"top_users"`
}

// DetectionResult is the outcome of a converged run
type DetectionResult struct {
	RunID      string              `json:"run_id"`
	Seed       valueobjects.UserID `json:"seed"`
	Core       valueobjects.UserID `json:"core"`
	Steps      int                 `json:"steps"`
	Iterations []StepRecord        `json:"iterations"`
}

// stepOutcome is what one refinement cycle hands back to the loop
type stepOutcome struct {
	next       valueobjects.UserID
	cluster    *aggregates.Cluster
	similarity float64
	top        []valueobjects.UserID
}

type stepFunc func(ctx context.Context, userID valueobjects.UserID, previous *aggregates.Cluster, opts DetectOptions) (stepOutcome, error)

// iterationState is the working memory of one run
type iterationState struct {
	current         valueobjects.UserID
	previous        valueobjects.UserID
	previousCluster *aggregates.Cluster
	steps           int
}

func (s *iterationState) converged() bool {
	return !s.previous.IsZero() && s.current.Equals(s.previous)
}

// CoreDetector finds the core user of the community around a seed by
// repeatedly clustering a user's neighbourhood and promoting the top ranked
// member of the chosen cluster until the candidate stops changing.
type CoreDetector struct {
	collab    Collaborators
	selector  *domainservices.ClusterSelector
	params    valueobjects.ClusteringParams
	defaults  atomic.Pointer[DetectorConfig]
	publisher ports.EventPublisher
	notifier  ports.ProgressNotifier
	tracer    ports.Tracer
	metrics   ports.DetectionMetrics
	logger    *zap.Logger
}

// NewCoreDetector creates a detector. Publisher, notifier, tracer and metrics may be nil.
func NewCoreDetector(
	collab Collaborators,
	cfg DetectorConfig,
	publisher ports.EventPublisher,
	notifier ports.ProgressNotifier,
	tracer ports.Tracer,
	metrics ports.DetectionMetrics,
	logger *zap.Logger,
) *CoreDetector {
	d := &CoreDetector{
		collab:    collab,
		selector:  domainservices.NewClusterSelector(domainservices.JaccardScorer{}),
		params:    valueobjects.UnionParams(),
		publisher: publisher,
		notifier:  notifier,
		tracer:    tracer,
		metrics:   metrics,
		logger:    logger,
	}
	d.SetDefaults(cfg)
	return d
}

// SetDefaults replaces the run defaults; safe to call while runs are in flight
func (d *CoreDetector) SetDefaults(cfg DetectorConfig) {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	d.defaults.Store(&cfg)
}

// Defaults returns the current run defaults
func (d *CoreDetector) Defaults() DetectorConfig {
	return *d.defaults.Load()
}

// DetectByScreenName resolves a screen name to a user, materializing it if needed, and detects from it
func (d *CoreDetector) DetectByScreenName(ctx context.Context, screenName string, opts DetectOptions) (*DetectionResult, error) {
	user, err := d.resolve(ctx, screenName,
		func(ctx context.Context) (*entities.User, error) {
			return d.collab.Users.GetByScreenName(ctx, screenName)
		},
		func(ctx context.Context) error {
			return d.collab.UserMaterializer.MaterializeByScreenName(ctx, screenName)
		},
	)
	if err != nil {
		return nil, err
	}
	return d.Detect(ctx, user.ID, opts)
}

// Detect runs the convergence loop from a seed user id
func (d *CoreDetector) Detect(ctx context.Context, seed valueobjects.UserID, opts DetectOptions) (*DetectionResult, error) {
	if seed.IsZero() {
		return nil, pkgerrors.NewValidationError("seed user id is required")
	}
	if _, err := d.resolve(ctx, seed.String(),
		func(ctx context.Context) (*entities.User, error) {
			return d.collab.Users.GetByID(ctx, seed)
		},
		func(ctx context.Context) error {
			return d.collab.UserMaterializer.MaterializeByID(ctx, seed)
		},
	); err != nil {
		return nil, err
	}
	return d.run(ctx, seed, d.withDefaults(opts), d.step)
}

// resolve looks a user up, materializing and looking again when it is absent
func (d *CoreDetector) resolve(
	ctx context.Context,
	identity string,
	lookup func(context.Context) (*entities.User, error),
	materialize func(context.Context) error,
) (*entities.User, error) {
	user, err := lookup(ctx)
	if err == nil && user != nil {
		return user, nil
	}
	if err != nil && !pkgerrors.IsNotFound(err) {
		return nil, fmt.Errorf("failed to look up seed user %s: %w", identity, err)
	}

	d.logger.Info("Downloading initial user", zap.String("user", identity))
	if err := materialize(ctx); err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, pkgerrors.NewNotFoundError("user " + identity).WithCause(err)
		}
		return nil, fmt.Errorf("failed to download initial user %s: %w", identity, err)
	}

	user, err = lookup(ctx)
	if err != nil || user == nil {
		d.logger.Error("Could not download initial user", zap.String("user", identity), zap.Error(err))
		return nil, pkgerrors.NewNotFoundError("user " + identity).WithCause(err)
	}
	return user, nil
}

func (d *CoreDetector) withDefaults(opts DetectOptions) DetectOptions {
	defaults := d.Defaults()
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaults.MaxIterations
	}
	opts.SkipDownload = opts.SkipDownload || defaults.SkipDownload
	if opts.RunID == "" {
		opts.RunID = events.NewRunID()
	}
	return opts
}

// run is the convergence loop. The candidate only changes at step boundaries,
// which is also where cancellation is observed.
func (d *CoreDetector) run(ctx context.Context, seed valueobjects.UserID, opts DetectOptions, step stepFunc) (*DetectionResult, error) {
	started := time.Now()
	logger := d.logger.With(zap.String("runID", opts.RunID), zap.String("seed", seed.String()))
	logger.Info("Beginning core detection",
		zap.Int("maxIterations", opts.MaxIterations),
		zap.Bool("skipDownload", opts.SkipDownload),
	)
	d.emit(ctx, opts, events.NewDetectionStarted(opts.RunID, seed.String(), opts.MaxIterations, opts.SkipDownload, time.Now()))

	state := &iterationState{current: seed}
	result := &DetectionResult{RunID: opts.RunID, Seed: seed}

	for !state.converged() {
		if err := ctx.Err(); err != nil {
			logger.Warn("Core detection cancelled", zap.Int("steps", state.steps), zap.Error(err))
			d.finish(ctx, opts, seed, outcomeCancelled, err, state.steps, started)
			return nil, err
		}
		if state.steps >= opts.MaxIterations {
			err := &NotConvergedError{MaxIterations: opts.MaxIterations, Last: state.current, Previous: state.previous}
			logger.Error("Core detection did not converge",
				zap.Int("steps", state.steps),
				zap.String("last", state.current.String()),
				zap.String("previous", state.previous.String()),
			)
			d.finish(ctx, opts, seed, outcomeNotConverged, err, state.steps, started)
			return nil, err
		}

		state.previous = state.current
		stepNumber := state.steps + 1
		logger.Info("Starting step", zap.Int("step", stepNumber), zap.String("userID", state.current.String()))

		stepStarted := time.Now()
		var out stepOutcome
		err := d.trace(ctx, fmt.Sprintf("detection.step.%d", stepNumber), func(ctx context.Context) error {
			var stepErr error
			out, stepErr = step(ctx, state.current, state.previousCluster, opts)
			return stepErr
		})
		if err != nil {
			d.observeStep(outcomeFailure, time.Since(stepStarted))
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Warn("Core detection cancelled", zap.Int("step", stepNumber), zap.Error(err))
				d.finish(ctx, opts, seed, outcomeCancelled, err, state.steps, started)
				return nil, err
			}
			failed := newStepFailedError(stepNumber, state.current, err)
			logger.Error("Step failed",
				zap.Int("step", stepNumber),
				zap.String("userID", state.current.String()),
				zap.String("phase", failed.Phase),
				zap.Error(failed.Cause),
			)
			d.finish(ctx, opts, seed, outcomeFailure, failed, state.steps, started)
			return nil, failed
		}
		d.observeStep(outcomeSuccess, time.Since(stepStarted))

		state.steps = stepNumber
		state.previousCluster = out.cluster
		state.current = out.next

		record := StepRecord{
			Step:        stepNumber,
			InputUserID: state.previous,
			NextUserID:  out.next,
			ClusterSize: out.cluster.Size(),
			Similarity:  out.similarity,
			TopUsers:    out.top,
		}
		result.Iterations = append(result.Iterations, record)
		d.emit(ctx, opts, events.NewDetectionStepCompleted(opts.RunID, stepNumber,
			record.InputUserID.String(), record.NextUserID.String(), record.ClusterSize, record.Similarity,
			valueobjects.UserIDStrings(record.TopUsers), time.Now()))
	}

	result.Core = state.current
	result.Steps = state.steps
	logger.Info("Core detection converged",
		zap.String("core", result.Core.String()),
		zap.Int("steps", result.Steps),
		zap.Duration("duration", time.Since(started)),
	)
	d.emit(ctx, opts, events.NewDetectionConverged(opts.RunID, seed.String(), result.Core.String(), result.Steps, time.Now()))
	if d.metrics != nil {
		d.metrics.ObserveDetection(ctx, outcomeSuccess, result.Steps, time.Since(started))
	}
	return result, nil
}

// step is one refinement cycle: refresh data, cluster, select, rank, promote
func (d *CoreDetector) step(ctx context.Context, userID valueobjects.UserID, previous *aggregates.Cluster, opts DetectOptions) (stepOutcome, error) {
	logger := d.logger.With(zap.String("runID", opts.RunID), zap.String("userID", userID.String()))

	if !opts.SkipDownload {
		logger.Info("Downloading user")
		if err := d.collab.UserMaterializer.MaterializeByID(ctx, userID); err != nil {
			return stepOutcome{}, inPhase(PhaseMaterializeUser, err)
		}
		logger.Info("Downloading user friends")
		if err := d.collab.Friends.MaterializeFriends(ctx, userID); err != nil {
			return stepOutcome{}, inPhase(PhaseMaterializeFriends, err)
		}
		logger.Info("Cleaning friends list")
		if err := d.collab.FriendsCleaner.Clean(ctx, userID); err != nil {
			return stepOutcome{}, inPhase(PhaseCleanFriends, err)
		}
		logger.Info("Downloading local neighbourhood")
		if err := d.collab.Neighbourhoods.Materialize(ctx, userID); err != nil {
			return stepOutcome{}, inPhase(PhaseNeighbourhood, err)
		}
	}

	neighbourhood, err := d.collab.NeighbourhoodsDB.Get(ctx, userID)
	if err != nil {
		return stepOutcome{}, inPhase(PhaseLoadNeighbourhood, err)
	}
	logger.Info("Loaded local neighbourhood", zap.Int("users", neighbourhood.Size()))

	logger.Info("Constructing social graph")
	if err := d.collab.GraphBuilder.Build(ctx, userID); err != nil {
		return stepOutcome{}, inPhase(PhaseBuildGraph, err)
	}

	logger.Info("Performing clustering", zap.String("params", d.params.Key()))
	if err := d.collab.Clusterer.Cluster(ctx, userID, d.params); err != nil {
		return stepOutcome{}, inPhase(PhaseCluster, err)
	}
	clustering, err := d.collab.Clusters.Get(ctx, userID, d.params)
	if err != nil {
		return stepOutcome{}, inPhase(PhaseLoadClusters, err)
	}
	if clustering == nil {
		return stepOutcome{}, inPhase(PhaseSelectCluster, domainservices.ErrNoClusters)
	}

	selection, err := d.selector.Select(clustering.Clusters, previous)
	if err != nil {
		return stepOutcome{}, inPhase(PhaseSelectCluster, err)
	}
	members := selection.Cluster.Users()
	logger.Info("Picked cluster",
		zap.Bool("firstIteration", previous == nil),
		zap.Int("index", selection.Index),
		zap.Int("clusters", clustering.Len()),
		zap.Int("size", len(members)),
		zap.Float64("similarity", selection.Score),
		zap.Strings("users", valueobjects.UserIDStrings(members)),
	)

	logger.Info("Downloading cluster tweets")
	if err := d.collab.Content.StreamForUsers(ctx, members); err != nil {
		if ctx.Err() != nil {
			return stepOutcome{}, ctx.Err()
		}
		logger.Warn("Cluster tweet download incomplete", zap.Error(err))
		if d.metrics != nil {
			d.metrics.IncContentFailures()
		}
	}

	logger.Info("Ranking cluster")
	if err := d.collab.Ranker.Rank(ctx, userID, members); err != nil {
		return stepOutcome{}, inPhase(PhaseRank, err)
	}
	ranking, err := d.collab.Rankings.Get(ctx, userID)
	if err != nil {
		return stepOutcome{}, inPhase(PhaseLoadRanking, err)
	}
	if ranking == nil {
		return stepOutcome{}, inPhase(PhaseLoadRanking, aggregates.ErrEmptyRanking)
	}
	next, err := ranking.Top1()
	if err != nil {
		return stepOutcome{}, inPhase(PhaseLoadRanking, err)
	}

	top := ranking.Top20()
	logger.Info("Ranked cluster",
		zap.Strings("top20", valueobjects.UserIDStrings(top)),
		zap.String("highestRanking", next.String()),
	)

	return stepOutcome{
		next:       next,
		cluster:    selection.Cluster,
		similarity: selection.Score,
		top:        top,
	}, nil
}

func (d *CoreDetector) trace(ctx context.Context, name string, fn func(context.Context) error) error {
	if d.tracer == nil {
		return fn(ctx)
	}
	return d.tracer.TraceFunction(ctx, name, fn)
}

func (d *CoreDetector) observeStep(outcome string, duration time.Duration) {
	if d.metrics != nil {
		d.metrics.ObserveStep(outcome, duration)
	}
}

func (d *CoreDetector) finish(ctx context.Context, opts DetectOptions, seed valueobjects.UserID, outcome string, err error, steps int, started time.Time) {
	// The failure event is still delivered after cancellation
	emitCtx := context.WithoutCancel(ctx)
	d.emit(emitCtx, opts, events.NewDetectionFailed(opts.RunID, seed.String(), outcome, err, steps, time.Now()))
	if d.metrics != nil {
		d.metrics.ObserveDetection(emitCtx, outcome, steps, time.Since(started))
	}
}

// emit publishes an event and pushes progress; failures are only logged
func (d *CoreDetector) emit(ctx context.Context, opts DetectOptions, event events.DomainEvent) {
	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, event); err != nil {
			d.logger.Warn("Failed to publish detection event",
				zap.String("eventType", event.GetEventType()),
				zap.String("runID", opts.RunID),
				zap.Error(err),
			)
		}
	}
	if d.notifier != nil && opts.ConnectionID != "" {
		if err := d.notifier.Notify(ctx, opts.ConnectionID, event); err != nil {
			d.logger.Warn("Failed to push detection progress",
				zap.String("connectionID", opts.ConnectionID),
				zap.String("eventType", event.GetEventType()),
				zap.Error(err),
			)
		}
	}
}

const (
	outcomeSuccess      = "success"
	outcomeFailure      = "failure"
	outcomeNotConverged = "not_converged"
	outcomeCancelled    = "cancelled"
)
