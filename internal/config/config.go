// Package config loads runtime configuration from the environment,
// optionally seeded from a .env file in development.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration of the marketplace service.
type Config struct {
	Port        int    `env:"PORT,default=4000"`
	Environment string `env:"ENVIRONMENT,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	// DatabaseURL selects the postgres backend; empty means the
	// in-memory store, which is what tests and local runs use.
	DatabaseURL string `env:"DATABASE_URL,default="`

	JWTSecret string        `env:"JWT_SECRET,default=dev-insecure-secret"`
	JWTTTL    time.Duration `env:"JWT_TTL,default=168h"`

	// ReviewDelay is how long a publish request sits in the moderation
	// queue before auto-approval; ReviewSweepInterval is the sweeper's
	// polling cadence.
	ReviewDelay         time.Duration `env:"REVIEW_DELAY,default=5m"`
	ReviewSweepInterval time.Duration `env:"REVIEW_SWEEP_INTERVAL,default=15s"`

	AWSRegion    string        `env:"AWS_REGION,default=us-east-1"`
	AWSAccessKey string        `env:"AWS_ACCESS_KEY_ID,default="`
	AWSSecretKey string        `env:"AWS_SECRET_ACCESS_KEY,default="`
	S3Bucket     string        `env:"S3_BUCKET,default="`
	S3Endpoint   string        `env:"S3_ENDPOINT,default="`
	UploadURLTTL time.Duration `env:"UPLOAD_URL_TTL,default=5m"`

	CORSAllowedOrigins string  `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RateLimitPerSecond float64 `env:"RATE_LIMIT_PER_SECOND,default=50"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST,default=100"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`
}

// Load reads .env if present, then decodes the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Production reports whether the service runs with production settings.
func (c Config) Production() bool {
	return c.Environment == "production"
}
