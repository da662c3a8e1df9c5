// Package config provides configuration loading and management for the NovaMarket service.
// It handles environment variable parsing and provides default values for all settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// init loads environment variables from .env files during package initialization.
// In development, it loads .env and .env.local files if they exist.
// In production, it relies solely on system environment variables.
// The loading order ensures that system environment variables take precedence over .env files.
func init() {
	// In dev, load .env files if they exist; in production, rely only on environment variables
	// godotenv.Load() does not override already-set environment variables,
	// preserving OS env > .env precedence

	// Load .env file if it exists (for shared development config)
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}

	// Load .env.local if it exists (for local overrides, gitignored)
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env.local file: %v\n", err)
		}
	}
}

// Config captures environment-driven settings for the NovaMarket service.
// It contains all configuration parameters needed to run the storefront backend.
type Config struct {
	Env         string // Deployment environment (dev, staging, prod)
	Port        string // HTTP server port
	DatabaseDSN string // Database connection string (PostgreSQL)
	NATSURL     string // NATS server URL
	RedisAddr   string // Redis address for the product cache (empty disables caching)
	S3Endpoint  string // S3-compatible storage endpoint for large delivery binaries
	S3Region    string // S3 region
	S3Bucket    string // S3 bucket name
	S3AccessKey string // S3 access key
	S3SecretKey string // S3 secret key
	JWTIssuer   string // Expected issuer for JWT validation
	JWTAudience string // Expected audience for JWT validation

	// Request board persistence
	RequestsBackend string // "shared" (database-backed) or "local" (device-local file)
	RequestsPath    string // Board file path when RequestsBackend is "local"

	// Admin editor limits
	MaxImageSize int64 // Maximum attachment size in bytes (default 10MiB)

	// CORS configuration
	CORSAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
}

// Default configuration values used when environment variables are not set
const (
	defaultPort            = "8080"               // Default HTTP server port
	defaultS3Region        = "us-east-1"          // Default S3 region
	defaultEnv             = "dev"                // Default environment
	defaultRequestsBackend = "shared"             // Default board persistence
	defaultRequestsPath    = "nova_requests.json" // Default local board file
)

// Load reads environment variables and produces a Config suitable for wiring the service.
// It handles both required and optional configuration parameters, providing defaults where appropriate.
// Returns an error if required parameters are missing or invalid.
func Load() (Config, error) {
	cfg := Config{}

	// Handle environment variable
	if env, exists := os.LookupEnv("NOVA_ENV"); exists {
		cfg.Env = env
	} else {
		cfg.Env = defaultEnv
	}

	// Handle port
	if port, exists := os.LookupEnv("NOVA_PORT"); exists {
		cfg.Port = port
	} else {
		cfg.Port = defaultPort
	}

	// Handle optional variables
	if dsn, exists := os.LookupEnv("NOVA_DB_DSN"); exists {
		cfg.DatabaseDSN = dsn
	}

	if natsURL, exists := os.LookupEnv("NOVA_NATS_URL"); exists {
		cfg.NATSURL = natsURL
	}

	if redisAddr, exists := os.LookupEnv("NOVA_REDIS_ADDR"); exists {
		cfg.RedisAddr = redisAddr
	}

	if s3Endpoint, exists := os.LookupEnv("NOVA_S3_ENDPOINT"); exists {
		cfg.S3Endpoint = s3Endpoint
	}

	if s3Region, exists := os.LookupEnv("NOVA_S3_REGION"); exists {
		cfg.S3Region = s3Region
	} else {
		cfg.S3Region = defaultS3Region
	}

	if s3Bucket, exists := os.LookupEnv("NOVA_S3_BUCKET"); exists {
		cfg.S3Bucket = s3Bucket
	}

	if s3AccessKey, exists := os.LookupEnv("NOVA_S3_ACCESS_KEY"); exists {
		cfg.S3AccessKey = s3AccessKey
	}

	if s3SecretKey, exists := os.LookupEnv("NOVA_S3_SECRET_KEY"); exists {
		cfg.S3SecretKey = s3SecretKey
	}

	if jwtIssuer, exists := os.LookupEnv("NOVA_JWT_ISSUER"); exists {
		cfg.JWTIssuer = jwtIssuer
	}

	if jwtAudience, exists := os.LookupEnv("NOVA_JWT_AUDIENCE"); exists {
		cfg.JWTAudience = jwtAudience
	}

	// Handle request board persistence
	if backend, exists := os.LookupEnv("NOVA_REQUESTS_BACKEND"); exists {
		cfg.RequestsBackend = backend
	} else {
		cfg.RequestsBackend = defaultRequestsBackend
	}
	if cfg.RequestsBackend != "shared" && cfg.RequestsBackend != "local" {
		return cfg, fmt.Errorf("NOVA_REQUESTS_BACKEND must be \"shared\" or \"local\", got %q", cfg.RequestsBackend)
	}

	if path, exists := os.LookupEnv("NOVA_REQUESTS_PATH"); exists {
		cfg.RequestsPath = path
	} else {
		cfg.RequestsPath = defaultRequestsPath
	}

	// Handle editor limits
	if maxImageSize, exists := os.LookupEnv("NOVA_MAX_IMAGE_SIZE"); exists {
		if size, err := strconv.ParseInt(maxImageSize, 10, 64); err == nil {
			cfg.MaxImageSize = size
		}
	}
	if cfg.MaxImageSize <= 0 {
		// Default to 10MiB
		cfg.MaxImageSize = 10 * 1024 * 1024
	}

	// Handle CORS configuration
	if corsOrigins, exists := os.LookupEnv("NOVA_CORS_ALLOWED_ORIGINS"); exists {
		cfg.CORSAllowedOrigins = strings.Split(corsOrigins, ",")
		// Trim whitespace from each origin
		for i, origin := range cfg.CORSAllowedOrigins {
			cfg.CORSAllowedOrigins[i] = strings.TrimSpace(origin)
		}
	}

	// Validate required parameters
	if cfg.JWTIssuer == "" {
		return cfg, fmt.Errorf("NOVA_JWT_ISSUER is required")
	}

	if cfg.JWTAudience == "" {
		return cfg, fmt.Errorf("NOVA_JWT_AUDIENCE is required")
	}

	return cfg, nil
}
