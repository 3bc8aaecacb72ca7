package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/region-data-service/internal/fetch"
	"github.com/couchcryptid/region-data-service/internal/normalize"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// LiveFetchEnabled gates every upstream fetch.
	LiveFetchEnabled   bool
	RevalidateInterval time.Duration

	PricesSourceURL  string
	SchoolsSourceURL string
	ParksSourceURL   string
	ParksBBox        normalize.BBox
	FetchPolicy      fetch.RetryPolicy

	ReferenceDataPath string
	ReferenceWatch    bool

	StoreBackend     string
	DynamoDBTable    string
	AWSRegion        string
	DynamoDBEndpoint string

	// KafkaBrokers is empty when change publishing is disabled.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	liveFetch, err := parseBool("LIVE_FETCH_ENABLED", false)
	if err != nil {
		return nil, err
	}
	refWatch, err := parseBool("REFERENCE_WATCH", false)
	if err != nil {
		return nil, err
	}

	revalidate, err := parseDuration("REVALIDATE_INTERVAL", "24h", true)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "10s", false)
	if err != nil {
		return nil, err
	}
	retryDelay, err := parseDuration("FETCH_RETRY_DELAY", "2s", false)
	if err != nil {
		return nil, err
	}
	maxRetries, err := strconv.Atoi(sharedcfg.EnvOrDefault("FETCH_MAX_RETRIES", "2"))
	if err != nil || maxRetries < 0 {
		return nil, errors.New("invalid FETCH_MAX_RETRIES")
	}

	bbox, err := normalize.ParseBBox(sharedcfg.EnvOrDefault("PARKS_BBOX", "32.55,-97.45,33.45,-96.45"))
	if err != nil {
		return nil, fmt.Errorf("invalid PARKS_BBOX: %w", err)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		LiveFetchEnabled:   liveFetch,
		RevalidateInterval: revalidate,

		PricesSourceURL:  os.Getenv("PRICES_SOURCE_URL"),
		SchoolsSourceURL: os.Getenv("SCHOOLS_SOURCE_URL"),
		ParksSourceURL:   sharedcfg.EnvOrDefault("PARKS_SOURCE_URL", "https://overpass-api.de/api/interpreter"),
		ParksBBox:        bbox,
		FetchPolicy: fetch.RetryPolicy{
			Timeout:    fetchTimeout,
			MaxRetries: maxRetries,
			RetryDelay: retryDelay,
		},

		ReferenceDataPath: os.Getenv("REFERENCE_DATA_PATH"),
		ReferenceWatch:    refWatch,

		StoreBackend:     sharedcfg.EnvOrDefault("STORE_BACKEND", StoreMemory),
		DynamoDBTable:    sharedcfg.EnvOrDefault("DYNAMODB_TABLE", "region-cache"),
		AWSRegion:        sharedcfg.EnvOrDefault("AWS_REGION", "us-east-1"),
		DynamoDBEndpoint: os.Getenv("DYNAMODB_ENDPOINT"),

		KafkaTopic: sharedcfg.EnvOrDefault("KAFKA_TOPIC", "region-updates"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	switch cfg.StoreBackend {
	case StoreMemory:
	case StoreDynamoDB:
		if cfg.DynamoDBTable == "" {
			return nil, errors.New("DYNAMODB_TABLE is required when STORE_BACKEND is dynamodb")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: want memory or dynamodb", cfg.StoreBackend)
	}
	if cfg.ReferenceWatch && cfg.ReferenceDataPath == "" {
		return nil, errors.New("REFERENCE_WATCH is true but REFERENCE_DATA_PATH is not set")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// PublishEnabled reports whether applied merges go to Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

// parseDuration reads key as a duration. Zero is accepted only when
// allowZero is set; negative values never are.
func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
