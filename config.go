package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	awspkg "github.com/yousufaayman/barcode-manage-cpc-sub000/pkg/aws"
	"go.uber.org/zap"
)

// Session backends.
const (
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// Print transports.
const (
	PrintTransportHTTP = "http"
	PrintTransportSQS  = "sqs"
)

// Config holds all environment variables for the ingest service.
type Config struct {
	Port string
	Env  string

	StoreURL   string
	StoreToken string

	PrintServiceURL string
	PrintTransport  string
	PrintQueueURL   string

	SessionBackend string
	RedisURL       string
	DynamoTable    string
	MongoURI       string
	MongoDatabase  string
	SessionTTL     time.Duration

	S3Bucket   string
	S3Prefix   string
	StorageDir string

	EventsTopicARN string

	NetworkTimeout    time.Duration
	ScanQuietInterval time.Duration
	MaxImportRows     int
	MaxUploadBytes    int64
	CheckChunkSize    int
	MaxPrintCopies    int

	AllowedOrigins string

	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string

	AWS awspkg.Options
}

// LoadConfig loads environment variables into Config struct and validates them.
// If AWS_USE_SECRETS=true the store token is read from Secrets Manager,
// falling back to the env var on failure.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8086"),
		Env:                 getEnv("ENV", "development"),
		StoreURL:            strings.TrimSpace(os.Getenv("REMOTE_STORE_URL")),
		StoreToken:          os.Getenv("STORE_API_TOKEN"),
		PrintServiceURL:     strings.TrimSpace(os.Getenv("PRINT_SERVICE_URL")),
		PrintTransport:      strings.ToLower(getEnv("PRINT_TRANSPORT", PrintTransportHTTP)),
		PrintQueueURL:       os.Getenv("PRINT_QUEUE_URL"),
		SessionBackend:      strings.ToLower(getEnv("SESSION_BACKEND", BackendRedis)),
		RedisURL:            getEnv("REDIS_URL", "redis://redis:6379"),
		DynamoTable:         getEnv("DDB_TABLE_IMPORT_SESSIONS", "ImportSessions"),
		MongoURI:            os.Getenv("MONGO_URI"),
		MongoDatabase:       getEnv("MONGO_DATABASE", "barcode_ingest"),
		S3Bucket:            os.Getenv("AWS_S3_BUCKET"),
		S3Prefix:            getEnv("AWS_S3_PREFIX", "bulk-imports/"),
		StorageDir:          getEnv("BULK_STORAGE_DIR", "./data/bulk_imports"),
		EventsTopicARN:      os.Getenv("IMPORT_EVENTS_TOPIC_ARN"),
		AllowedOrigins:      getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		CloudWatchEnabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "BarcodeIngest"),
		CloudWatchLogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "/barcode/ingest"),
		AWS:                 awspkg.OptionsFromEnv(),
	}

	var err error
	if cfg.NetworkTimeout, err = getDuration("NETWORK_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ScanQuietInterval, err = getDuration("SCAN_QUIET_INTERVAL", 50*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MaxImportRows, err = getInt("MAX_IMPORT_ROWS", 1000); err != nil {
		return nil, err
	}
	if cfg.CheckChunkSize, err = getInt("CHECK_CHUNK_SIZE", 200); err != nil {
		return nil, err
	}
	if cfg.MaxPrintCopies, err = getInt("MAX_PRINT_COPIES", 100); err != nil {
		return nil, err
	}
	maxUploadMB, err := getInt("MAX_UPLOAD_MB", 10)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUploadMB) * 1024 * 1024

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := awspkg.LoadAWSConfig(context.Background(), cfg.AWS); err == nil {
			sm := awspkg.NewSecretsClient(awsCfg)
			if token, err := sm.GetSecret(context.Background(), "ingest/STORE_API_TOKEN"); err == nil && token != "" {
				cfg.StoreToken = token
			} else if err != nil {
				zap.L().Warn("Failed to read store token from Secrets Manager, using env", zap.Error(err))
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.StoreURL == "" {
		return fmt.Errorf("REMOTE_STORE_URL is required")
	}
	switch c.PrintTransport {
	case PrintTransportHTTP:
		if c.PrintServiceURL == "" {
			return fmt.Errorf("PRINT_SERVICE_URL is required when PRINT_TRANSPORT=http")
		}
	case PrintTransportSQS:
		if c.PrintQueueURL == "" {
			return fmt.Errorf("PRINT_QUEUE_URL is required when PRINT_TRANSPORT=sqs")
		}
	default:
		return fmt.Errorf("PRINT_TRANSPORT must be http or sqs, got %q", c.PrintTransport)
	}
	switch c.SessionBackend {
	case BackendRedis, BackendDynamoDB, BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when SESSION_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("SESSION_BACKEND must be redis, dynamodb, mongo or memory, got %q", c.SessionBackend)
	}
	if c.NetworkTimeout <= 0 {
		return fmt.Errorf("NETWORK_TIMEOUT must be positive")
	}
	if c.MaxImportRows <= 0 || c.CheckChunkSize <= 0 || c.MaxPrintCopies <= 0 || c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_IMPORT_ROWS, CHECK_CHUNK_SIZE, MAX_PRINT_COPIES and MAX_UPLOAD_MB must be positive")
	}
	return nil
}

// UsesAWS reports whether any configured component needs an AWS client.
func (c *Config) UsesAWS() bool {
	return c.SessionBackend == BackendDynamoDB ||
		c.PrintTransport == PrintTransportSQS ||
		c.S3Bucket != "" ||
		c.EventsTopicARN != "" ||
		c.CloudWatchEnabled
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
