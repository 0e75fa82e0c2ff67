package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address" validate:"required"`
	Environment   string `yaml:"environment" validate:"oneof=development test staging production"`

	// AWS configuration
	AWSRegion     string `yaml:"aws_region" validate:"required"`
	Storage       string `yaml:"storage" validate:"oneof=dynamodb memory"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	IndexName     string `yaml:"index_name"` // GSI1 - screen name and owner lookups
	EventBusName  string `yaml:"event_bus_name"`
	EventSource   string `yaml:"event_source"`

	// Lambda configuration
	IsLambda           bool   `yaml:"is_lambda"`
	LambdaFunctionName string `yaml:"-"`

	// WebSocket configuration
	WebSocketEndpoint string `yaml:"websocket_endpoint"`

	// Logging
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// Authentication
	JWTSecret   string `yaml:"-"`
	JWTIssuer   string `yaml:"jwt_issuer"`
	JWTAudience string `yaml:"jwt_audience"`

	// Feature flags
	EnableMetrics    bool          `yaml:"enable_metrics"`
	EnableCloudWatch bool          `yaml:"enable_cloudwatch"`
	EnableTracing    bool          `yaml:"enable_tracing"`
	EnableCORS       bool          `yaml:"enable_cors"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	MetricsNamespace string        `yaml:"metrics_namespace" validate:"required"`
	HotReload        bool          `yaml:"hot_reload"`
	ConfigFile       string        `yaml:"-"`
	RequestTimeout   time.Duration `yaml:"request_timeout" validate:"min=0"`

	Social    SocialConfig    `yaml:"social"`
	Detection DetectionConfig `yaml:"detection"`
}

// SocialConfig configures the social network API client
type SocialConfig struct {
	BaseURL           string        `yaml:"base_url" validate:"required,url"`
	BearerToken       string        `yaml:"-"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gt=0"`
	Burst             int           `yaml:"burst" validate:"min=1"`
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
	BreakerFailures   uint32        `yaml:"breaker_failures" validate:"min=1"`
	BreakerTimeout    time.Duration `yaml:"breaker_timeout" validate:"gt=0"`
	PageSize          int           `yaml:"page_size" validate:"min=1,max=5000"`
}

// DetectionConfig configures the core detection loop and its collaborators
type DetectionConfig struct {
	MaxIterations        int       `yaml:"max_iterations" validate:"min=1"`
	SkipDownload         bool      `yaml:"skip_download"`
	TweetCutoff          time.Time `yaml:"tweet_cutoff"`
	Ranker               string    `yaml:"ranker" validate:"oneof=pagerank retweet"`
	NeighbourhoodWorkers int       `yaml:"neighbourhood_workers" validate:"min=1,max=64"`
	ContentWorkers       int       `yaml:"content_workers" validate:"min=1,max=64"`
	ClusteringIterations int       `yaml:"clustering_iterations" validate:"min=1"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Defaults returns the configuration used when nothing else is set
func Defaults() *Config {
	return &Config{
		ServerAddress:    ":8080",
		Environment:      "development",
		AWSRegion:        "us-west-2",
		Storage:          "dynamodb",
		DynamoDBTable:    "coredetect",
		IndexName:        "GSI1",
		EventBusName:     "coredetect-events",
		EventSource:      "coredetect.detector",
		LogLevel:         "info",
		JWTIssuer:        "coredetect",
		EnableCORS:       true,
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		MetricsNamespace: "coredetect",
		RequestTimeout:   15 * time.Minute,
		Social: SocialConfig{
			BaseURL:           "https://api.twitter.com/1.1",
			RequestsPerSecond: 1,
			Burst:             5,
			Timeout:           30 * time.Second,
			BreakerFailures:   5,
			BreakerTimeout:    60 * time.Second,
			PageSize:          5000,
		},
		Detection: DetectionConfig{
			MaxIterations:        25,
			TweetCutoff:          time.Date(2020, time.June, 30, 0, 0, 0, 0, time.UTC),
			Ranker:               "pagerank",
			NeighbourhoodWorkers: 8,
			ContentWorkers:       8,
			ClusteringIterations: 100,
		},
	}
}

// LoadConfig loads defaults, overlays the YAML file named by CONFIG_FILE,
// then applies environment variables.
func LoadConfig() (*Config, error) {
	cfg := Defaults()
	cfg.ConfigFile = os.Getenv("CONFIG_FILE")

	if cfg.ConfigFile != "" {
		if err := cfg.loadFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig for backwards compatibility
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.Storage = getEnv("STORAGE", c.Storage)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.IndexName = getEnv("INDEX_NAME", c.IndexName)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)
	c.EventSource = getEnv("EVENT_SOURCE", c.EventSource)

	// Lambda configuration
	c.IsLambda = getEnvBool("IS_LAMBDA", c.IsLambda)
	c.LambdaFunctionName = getEnv("AWS_LAMBDA_FUNCTION_NAME", c.LambdaFunctionName)
	if c.LambdaFunctionName != "" {
		c.IsLambda = true
	}

	c.WebSocketEndpoint = getEnv("WEBSOCKET_ENDPOINT", c.WebSocketEndpoint)

	// Authentication
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)
	c.JWTAudience = getEnv("JWT_AUDIENCE", c.JWTAudience)

	// Logging and features
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableCloudWatch = getEnvBool("ENABLE_CLOUDWATCH", c.EnableCloudWatch)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = strings.Split(origins, ",")
	}
	c.MetricsNamespace = getEnv("METRICS_NAMESPACE", c.MetricsNamespace)
	c.HotReload = getEnvBool("CONFIG_HOT_RELOAD", c.HotReload)
	c.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout)

	// Social network API
	c.Social.BaseURL = getEnv("SOCIAL_API_BASE_URL", c.Social.BaseURL)
	c.Social.BearerToken = getEnv("SOCIAL_API_BEARER_TOKEN", c.Social.BearerToken)
	c.Social.RequestsPerSecond = getEnvFloat("SOCIAL_API_RPS", c.Social.RequestsPerSecond)
	c.Social.Burst = getEnvInt("SOCIAL_API_BURST", c.Social.Burst)
	c.Social.Timeout = getEnvDuration("SOCIAL_API_TIMEOUT", c.Social.Timeout)
	c.Social.BreakerFailures = uint32(getEnvInt("SOCIAL_API_BREAKER_FAILURES", int(c.Social.BreakerFailures)))
	c.Social.BreakerTimeout = getEnvDuration("SOCIAL_API_BREAKER_TIMEOUT", c.Social.BreakerTimeout)
	c.Social.PageSize = getEnvInt("SOCIAL_API_PAGE_SIZE", c.Social.PageSize)

	// Detection
	c.Detection.MaxIterations = getEnvInt("CORE_MAX_ITERATIONS", c.Detection.MaxIterations)
	c.Detection.SkipDownload = getEnvBool("CORE_SKIP_DOWNLOAD", c.Detection.SkipDownload)
	c.Detection.TweetCutoff = getEnvTime("TWEET_CUTOFF", c.Detection.TweetCutoff)
	c.Detection.Ranker = getEnv("DETECTION_RANKER", c.Detection.Ranker)
	c.Detection.NeighbourhoodWorkers = getEnvInt("NEIGHBOURHOOD_WORKERS", c.Detection.NeighbourhoodWorkers)
	c.Detection.ContentWorkers = getEnvInt("CONTENT_WORKERS", c.Detection.ContentWorkers)
	c.Detection.ClusteringIterations = getEnvInt("CLUSTERING_ITERATIONS", c.Detection.ClusteringIterations)
}

// Validate checks struct constraints and the production requirements
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Storage == "dynamodb" && c.DynamoDBTable == "" {
		return fmt.Errorf("DYNAMODB_TABLE is required")
	}

	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required")
		}
		if c.Social.BearerToken == "" {
			return fmt.Errorf("SOCIAL_API_BEARER_TOKEN is required in production")
		}
		if c.Storage != "dynamodb" {
			return fmt.Errorf("STORAGE must be dynamodb in production")
		}
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvTime accepts RFC 3339 timestamps or plain dates
func getEnvTime(key string, defaultValue time.Time) time.Time {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t
	}
	return defaultValue
}
