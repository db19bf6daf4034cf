package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort              = "8080"
	defaultRateLimitRequests = 100
	defaultRateLimitWindow   = 15 * time.Minute
)

// loads configuration from environment variables. Every variable has a
// development default; production deployments are expected to set
// ALLOWED_ORIGINS explicitly.
func LoadEnvironmentVariables() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		_ = err // not an error - production environments may not have .env file
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	var allowedOrigins []string
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		allowedOrigins = strings.Split(raw, ",")
		for i := range allowedOrigins {
			allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
		}
	}

	if environment == "production" && len(allowedOrigins) == 0 {
		return nil, fmt.Errorf("ALLOWED_ORIGINS environment variable is required in production")
	}

	rateLimitRequests := int64(defaultRateLimitRequests)
	if raw := os.Getenv("RATE_LIMIT_REQUESTS"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_REQUESTS value: %q", raw)
		}
		rateLimitRequests = parsed
	}

	rateLimitWindow := defaultRateLimitWindow
	if raw := os.Getenv("RATE_LIMIT_WINDOW"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW value: %q", raw)
		}
		rateLimitWindow = parsed
	}

	return &Config{
		Port:              port,
		Environment:       environment,
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: rateLimitRequests,
		RateLimitWindow:   rateLimitWindow,
	}, nil
}
