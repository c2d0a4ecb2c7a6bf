// config/config.go
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type Config struct {
	Environment string
	Port        string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	OperatorKey string

	// Firebase Config
	FirebaseCredentials string

	// Twilio Config
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	// Dispatch settings
	NotifyCount       int    // officers notified per emergency
	RoutingServiceURL string // GraphHopper-compatible; empty = straight-line

	// Tracking settings
	BackgroundCapable  bool
	GraceWindowMinutes int
	StaleSeconds       int

	// Rate limiting
	RateLimitRequests      int
	RateLimitWindowMinutes int
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "mongodb://localhost:27017/gppo"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:   getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
		OperatorKey: getEnv("OPERATOR_ACCESS_KEY", ""),

		// Firebase
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),

		// Twilio
		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),

		// Dispatch
		NotifyCount:       getEnvAsInt("EMERGENCY_NOTIFY_COUNT", 3),
		RoutingServiceURL: getEnv("ROUTING_SERVICE_URL", ""),

		// Tracking
		BackgroundCapable:  getEnvAsBool("TRACKING_BACKGROUND_CAPABLE", true),
		GraceWindowMinutes: getEnvAsInt("TRACKING_GRACE_MINUTES", 5),
		StaleSeconds:       getEnvAsInt("TRACKING_STALE_SECONDS", 120),

		// Rate limiting
		RateLimitRequests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindowMinutes: getEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 1),
	}
}

// GraceWindow returns the configured app-background grace period.
func (c *Config) GraceWindow() time.Duration {
	return time.Duration(c.GraceWindowMinutes) * time.Minute
}

// StaleAfter returns how long without a fix before a session counts as
// stale.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleSeconds) * time.Second
}

func InitRedis(cfg *Config) *redis.Client {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		// Fallback to default config
		opt = &redis.Options{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		}
	}

	return redis.NewClient(opt)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
