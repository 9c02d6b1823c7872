package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/utafrali/reviewrank/internal/scoring"
	pkgconfig "github.com/utafrali/reviewrank/pkg/config"
)

// ReferenceDateLayout is the accepted form of SCORING_REFERENCE_DATE.
const ReferenceDateLayout = "2006-01-02"

// Config holds all configuration for the review service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int      `env:"REVIEW_HTTP_PORT" envDefault:"8013"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"reviewrank"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"reviewrank_secret"`
	PostgresDB   string `env:"REVIEW_DB_NAME" envDefault:"review_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis holds processed event IDs for the Kafka consumer.
	RedisAddr           string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass           string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB             int    `env:"REDIS_DB" envDefault:"0"`
	IdempotencyTTLHours int    `env:"IDEMPOTENCY_TTL_HOURS" envDefault:"168"`

	// Kafka
	KafkaBrokers       []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"review-service"`

	// Product catalog, consulted before accepting a review.
	ProductServiceURL string `env:"PRODUCT_SERVICE_URL" envDefault:"http://localhost:8001"`

	// Circuit breaker settings for the product catalog
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`

	// Scoring
	ScoringConfidence    float64         `env:"SCORING_CONFIDENCE" envDefault:"0.95"`
	ScoringWeights       scoring.Weights `env:"SCORING_WEIGHTS" envDefault:"50,25,15,10"`
	ScoringTopN          int             `env:"SCORING_TOP_N" envDefault:"20"`
	ScoringWorkers       int             `env:"SCORING_WORKERS" envDefault:"0"`
	ScoringReferenceDate string          `env:"SCORING_REFERENCE_DATE" envDefault:""`
	RatingCacheMaxAge    int             `env:"RATING_CACHE_MAX_AGE_SECONDS" envDefault:"60"`

	referenceDate time.Time
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load review config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReferenceDate is the fixed "today" used for day differences, or the zero
// time when scoring should use the wall clock.
func (c *Config) ReferenceDate() time.Time {
	return c.referenceDate
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.IdempotencyTTLHours < 1 {
		return fmt.Errorf("IDEMPOTENCY_TTL_HOURS must be positive, got %d", c.IdempotencyTTLHours)
	}
	if u, err := url.Parse(c.ProductServiceURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid PRODUCT_SERVICE_URL: %q", c.ProductServiceURL)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.OTELSampleRate)
	}
	if err := scoring.ValidateConfidence(c.ScoringConfidence); err != nil {
		return fmt.Errorf("SCORING_CONFIDENCE: %w", err)
	}
	if err := c.ScoringWeights.Validate(); err != nil {
		return fmt.Errorf("SCORING_WEIGHTS: %w", err)
	}
	if c.ScoringTopN < 1 {
		return fmt.Errorf("SCORING_TOP_N must be at least 1, got %d", c.ScoringTopN)
	}
	if c.ScoringWorkers < 0 {
		return fmt.Errorf("SCORING_WORKERS must not be negative, got %d", c.ScoringWorkers)
	}
	if c.RatingCacheMaxAge < 0 {
		return fmt.Errorf("RATING_CACHE_MAX_AGE_SECONDS must not be negative, got %d", c.RatingCacheMaxAge)
	}
	if c.ScoringReferenceDate != "" {
		d, err := time.Parse(ReferenceDateLayout, c.ScoringReferenceDate)
		if err != nil {
			return fmt.Errorf("SCORING_REFERENCE_DATE must look like %s: %w", ReferenceDateLayout, err)
		}
		c.referenceDate = d
	}
	return nil
}
