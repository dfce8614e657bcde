package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration
type Config struct {
	Environment string
	ServerPort  int
	LogLevel    string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Identity provider. AuthJWTSecret is the provider's shared HS256 secret
	// used to verify bearer tokens locally. SkipAuth substitutes a fixed
	// local identity for development without a provider.
	AuthJWTSecret string
	AuthIssuer    string
	SkipAuth      bool

	CORSAllowedOrigins []string

	// Uploads and photos
	UploadDir              string
	PhotoMaxWidth          int
	PhotoJPEGQuality       int
	OptimizeThresholdBytes int

	// Rate limiting (per client IP)
	RateLimitRequests      int
	RateLimitWindowMinutes int

	// Pagination
	DefaultPageLimit int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "2404"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	photoMaxWidth, err := strconv.Atoi(getEnv("PHOTO_MAX_WIDTH", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid PHOTO_MAX_WIDTH: %w", err)
	}

	photoQuality, err := strconv.Atoi(getEnv("PHOTO_JPEG_QUALITY", "80"))
	if err != nil {
		return nil, fmt.Errorf("invalid PHOTO_JPEG_QUALITY: %w", err)
	}

	optimizeThreshold, err := strconv.Atoi(getEnv("OPTIMIZE_THRESHOLD_BYTES", "100000"))
	if err != nil {
		return nil, fmt.Errorf("invalid OPTIMIZE_THRESHOLD_BYTES: %w", err)
	}

	rateLimitReqs, err := strconv.Atoi(getEnv("RATE_LIMIT_REQUESTS", "300"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REQUESTS: %w", err)
	}

	rateLimitWindow, err := strconv.Atoi(getEnv("RATE_LIMIT_WINDOW_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW_MINUTES: %w", err)
	}

	pageLimit, err := strconv.Atoi(getEnv("DEFAULT_PAGE_LIMIT", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_PAGE_LIMIT: %w", err)
	}

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  port,
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASS", "postgres"),
		DBName:     getEnv("DB_NAME", "juntadas"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		AuthJWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		AuthIssuer:    getEnv("AUTH_ISSUER", ""),
		SkipAuth:      parseBoolEnv("SKIP_AUTH"),

		CORSAllowedOrigins: parseCSVEnv("CORS_ORIGINS", []string{
			"http://localhost:2403",
			"http://localhost:3000",
		}),

		UploadDir:              getEnv("UPLOAD_DIR", "./uploads"),
		PhotoMaxWidth:          photoMaxWidth,
		PhotoJPEGQuality:       photoQuality,
		OptimizeThresholdBytes: optimizeThreshold,

		RateLimitRequests:      rateLimitReqs,
		RateLimitWindowMinutes: rateLimitWindow,

		DefaultPageLimit: pageLimit,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
