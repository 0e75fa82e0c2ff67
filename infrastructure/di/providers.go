package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coredetect/application/commands"
	"coredetect/application/commands/bus"
	commandhandlers "coredetect/application/commands/handlers"
	"coredetect/application/ports"
	"coredetect/application/queries"
	querybus "coredetect/application/queries/bus"
	queryhandlers "coredetect/application/queries/handlers"
	"coredetect/application/services"
	"coredetect/domain/core/valueobjects"
	"coredetect/infrastructure/clustering"
	"coredetect/infrastructure/config"
	"coredetect/infrastructure/download"
	"coredetect/infrastructure/graph"
	"coredetect/infrastructure/messaging/eventbridge"
	"coredetect/infrastructure/messaging/history"
	"coredetect/infrastructure/messaging/websocket"
	"coredetect/infrastructure/persistence/dynamodb"
	"coredetect/infrastructure/persistence/memory"
	"coredetect/infrastructure/ranking"
	"coredetect/infrastructure/social"
	"coredetect/interfaces/http/rest"
	"coredetect/interfaces/http/rest/middleware"
	"coredetect/pkg/auth"
	pkgerrors "coredetect/pkg/errors"
	"coredetect/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Inline runs hold their lock at most this long when no request timeout bounds them
const defaultLockTTL = 15 * time.Minute

// ProvideLogger creates a logger at the configured level
func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	zcfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With(zap.String("environment", cfg.Environment))

	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideMetrics creates the Prometheus collectors, mirrored to CloudWatch when enabled
func ProvideMetrics(cfg *config.Config, client *awscloudwatch.Client, logger *zap.Logger) *observability.Metrics {
	var recorder *observability.CloudWatchRecorder
	if cfg.EnableCloudWatch {
		namespace := fmt.Sprintf("%s/%s", cfg.MetricsNamespace, cfg.Environment)
		recorder = observability.NewCloudWatchRecorder(namespace, client, logger)
	}
	return observability.NewMetrics(cfg.MetricsNamespace, recorder)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("coredetect", cfg.EnableTracing)
}

// ProvideRepositories selects the storage backend
func ProvideRepositories(cfg *config.Config, client *awsdynamodb.Client, metrics *observability.Metrics, logger *zap.Logger) *Repositories {
	if cfg.Storage == "memory" {
		logger.Info("Using in-memory storage")
		return &Repositories{
			Users:          memory.NewInMemoryUserRepository(),
			Friends:        memory.NewInMemoryFriendsRepository(),
			Tweets:         memory.NewInMemoryTweetRepository(),
			Neighbourhoods: memory.NewInMemoryNeighbourhoodRepository(),
			Graphs:         memory.NewInMemorySocialGraphRepository(),
			Clusters:       memory.NewInMemoryClusterRepository(),
			Rankings:       memory.NewInMemoryRankingRepository(),
			Lock:           memory.NewInMemoryRunLock(),
			Runs:           memory.NewInMemoryRunEventStore(),
		}
	}

	logger.Info("Using DynamoDB storage",
		zap.String("table", cfg.DynamoDBTable),
		zap.String("index", cfg.IndexName),
	)
	return &Repositories{
		Users:          dynamodb.NewUserRepository(client, cfg.DynamoDBTable, cfg.IndexName, metrics, logger),
		Friends:        dynamodb.NewFriendsRepository(client, cfg.DynamoDBTable, metrics, logger),
		Tweets:         dynamodb.NewTweetRepository(client, cfg.DynamoDBTable, cfg.IndexName, metrics, logger),
		Neighbourhoods: dynamodb.NewNeighbourhoodRepository(client, cfg.DynamoDBTable, metrics, logger),
		Graphs:         dynamodb.NewGraphRepository(client, cfg.DynamoDBTable, metrics, logger),
		Clusters:       dynamodb.NewClusterRepository(client, cfg.DynamoDBTable, metrics, logger),
		Rankings:       dynamodb.NewRankingRepository(client, cfg.DynamoDBTable, metrics, logger),
		Lock:           dynamodb.NewDistributedLock(client, cfg.DynamoDBTable, logger),
		Runs:           dynamodb.NewRunEventRepository(client, cfg.DynamoDBTable, metrics, logger),
	}
}

// ProvideSocialClient creates the rate limited social network client
func ProvideSocialClient(cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) *social.Client {
	return social.NewClient(cfg.Social, metrics, logger)
}

// ProvideEventPublisher records every run event in the run history and forwards
// it to EventBridge when an event bus is configured.
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, repos *Repositories, logger *zap.Logger) ports.EventPublisher {
	var next ports.EventPublisher
	if eventBusEnabled(cfg) {
		next = eventbridge.NewPublisher(client, cfg.EventBusName, cfg.EventSource, logger)
	} else {
		logger.Info("Event bus disabled, run events are only recorded")
	}
	return history.NewPublisher(repos.Runs, next, logger)
}

// In-memory deployments have no bus
func eventBusEnabled(cfg *config.Config) bool {
	return cfg.Storage != "memory" && cfg.EventBusName != ""
}

// ProvideProgressNotifier pushes run progress over the WebSocket API when one is configured
func ProvideProgressNotifier(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.ProgressNotifier {
	if cfg.WebSocketEndpoint == "" {
		return nil
	}
	return websocket.NewNotifier(websocket.NewClient(awsCfg, cfg.WebSocketEndpoint), logger)
}

// ProvideContentMaterializer creates the tweet downloader shared by the detector and the download command
func ProvideContentMaterializer(cfg *config.Config, client *social.Client, repos *Repositories, logger *zap.Logger) *download.ContentMaterializer {
	return download.NewContentMaterializer(client, repos.Tweets, cfg.Detection.TweetCutoff, cfg.Detection.ContentWorkers, logger)
}

// ProvideRanker selects the ranking strategy
func ProvideRanker(cfg *config.Config, repos *Repositories, logger *zap.Logger) ports.Ranker {
	if cfg.Detection.Ranker == ranking.MethodRetweet {
		return ranking.NewRetweetRanker(repos.Tweets, repos.Graphs, repos.Rankings, cfg.Detection.TweetCutoff, logger)
	}
	return ranking.NewPageRankRanker(repos.Graphs, repos.Rankings, ranking.DefaultPageRankConfig(), logger)
}

// ProvideCoreDetector assembles the convergence loop and its collaborators
func ProvideCoreDetector(
	cfg *config.Config,
	repos *Repositories,
	client *social.Client,
	content *download.ContentMaterializer,
	ranker ports.Ranker,
	publisher ports.EventPublisher,
	notifier ports.ProgressNotifier,
	tracer *observability.Tracer,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *services.CoreDetector {
	friends := download.NewFriendsMaterializer(client, repos.Friends, logger)
	cleaner := download.NewFriendsCleaner(repos.Friends, logger)

	collab := services.Collaborators{
		Users:            repos.Users,
		UserMaterializer: download.NewUserMaterializer(client, repos.Users, logger),
		Friends:          friends,
		FriendsCleaner:   cleaner,
		Neighbourhoods: download.NewNeighbourhoodMaterializer(
			repos.Friends, friends, cleaner, repos.Neighbourhoods, cfg.Detection.NeighbourhoodWorkers, logger,
		),
		NeighbourhoodsDB: repos.Neighbourhoods,
		GraphBuilder:     graph.NewBuilder(repos.Neighbourhoods, repos.Graphs, logger),
		Clusterer:        clustering.NewLabelPropagationClusterer(repos.Graphs, repos.Clusters, cfg.Detection.ClusteringIterations, logger),
		Clusters:         repos.Clusters,
		Ranker:           ranker,
		Rankings:         repos.Rankings,
		Content:          content,
	}

	return services.NewCoreDetector(collab, detectorConfig(cfg), publisher, notifier, tracer, metrics, logger)
}

func detectorConfig(cfg *config.Config) services.DetectorConfig {
	return services.DetectorConfig{
		MaxIterations: cfg.Detection.MaxIterations,
		SkipDownload:  cfg.Detection.SkipDownload,
	}
}

// ProvideTweetDownloader creates the neighbourhood tweet downloader
func ProvideTweetDownloader(repos *Repositories, content *download.ContentMaterializer, logger *zap.Logger) *download.NeighbourhoodTweetDownloader {
	return download.NewNeighbourhoodTweetDownloader(repos.Neighbourhoods, content, logger)
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	cfg *config.Config,
	detector *services.CoreDetector,
	downloader *download.NeighbourhoodTweetDownloader,
	repos *Repositories,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(bus.LoggingMiddleware(logger))

	lockTTL := cfg.RequestTimeout
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	// Async requests need a bus to reach the worker
	var async ports.EventPublisher
	if eventBusEnabled(cfg) {
		async = publisher
	}
	if err := commandBus.Register(commands.DetectCoreCommand{},
		commandhandlers.NewDetectCoreHandler(detector, repos.Lock, async, lockTTL, logger)); err != nil {
		return nil, err
	}
	if err := commandBus.Register(commands.DownloadNeighbourhoodTweetsCommand{},
		commandhandlers.NewDownloadTweetsHandler(downloader, logger)); err != nil {
		return nil, err
	}
	return commandBus, nil
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(repos *Repositories, metrics *observability.Metrics) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus()
	withMetrics := querybus.NewMetricsMiddleware(metrics)

	registrations := []struct {
		query   querybus.Query
		handler querybus.QueryHandler
	}{
		{queries.GetUserQuery{}, queryhandlers.NewGetUserHandler(repos.Users)},
		{queries.GetRankingQuery{}, queryhandlers.NewGetRankingHandler(repos.Rankings)},
		{queries.GetClustersQuery{}, queryhandlers.NewGetClustersHandler(repos.Clusters)},
		{queries.GetRunQuery{}, queryhandlers.NewGetRunHandler(repos.Runs)},
	}
	for _, reg := range registrations {
		if err := queryBus.Register(reg.query, withMetrics.Wrap(reg.handler)); err != nil {
			return nil, err
		}
	}
	return queryBus, nil
}

// ProvideErrorHandler creates the HTTP error handler with detection error mapping
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment(), rest.ClassifyDetectionError)
}

// ProvideJWTValidator returns nil when no secret is configured, which admits
// every API request as the anonymous development user.
func ProvideJWTValidator(cfg *config.Config, logger *zap.Logger) (*auth.JWTValidator, error) {
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, API authentication disabled")
		return nil, nil
	}

	var audience []string
	if cfg.JWTAudience != "" {
		audience = strings.Split(cfg.JWTAudience, ",")
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  audience,
	})
}

// ProvideAuthenticator creates the authentication and rate limiting middleware
func ProvideAuthenticator(validator *auth.JWTValidator, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *middleware.Authenticator {
	ipLimiter := auth.NewKeyedLimiter(600, 60, 10*time.Minute)
	userLimiter := auth.NewKeyedLimiter(120, 20, 10*time.Minute)
	return middleware.NewAuthenticator(validator, ipLimiter, userLimiter, errHandler, logger)
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	authenticator *middleware.Authenticator,
	errHandler *pkgerrors.ErrorHandler,
	metrics *observability.Metrics,
	repos *Repositories,
	logger *zap.Logger,
) *rest.Router {
	routerCfg := rest.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		HTTPMetrics:    metrics,
		Readiness: map[string]rest.ReadinessCheck{
			"storage": func(ctx context.Context) error {
				_, err := repos.Users.Exists(ctx, valueobjects.MustUserID("0"))
				return err
			},
		},
	}
	if cfg.EnableCORS {
		routerCfg.AllowedOrigins = cfg.AllowedOrigins
	}
	if cfg.EnableMetrics {
		routerCfg.MetricsHandler = metrics.Handler()
	}
	return rest.NewRouter(commandBus, queryBus, authenticator, errHandler, routerCfg, logger)
}

// ProvideConfigWatcher reapplies detection defaults when the config file changes
func ProvideConfigWatcher(cfg *config.Config, detector *services.CoreDetector, logger *zap.Logger) (*config.Watcher, func(), error) {
	watcher, err := config.NewWatcher(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	watcher.OnChange(func(updated *config.Config) {
		detector.SetDefaults(detectorConfig(updated))
		logger.Info("Detection defaults reloaded",
			zap.Int("maxIterations", updated.Detection.MaxIterations),
			zap.Bool("skipDownload", updated.Detection.SkipDownload),
		)
	})
	return watcher, watcher.Stop, nil
}
