package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const devTokenKey = "dev-registration-key-change-in-production"

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string

	DatabaseURL string
	Redis       RedisConfig

	// Blob storage and document analysis
	StorageBucket   string
	CredentialsFile string
	VisionEndpoint  string
	VisionTimeout   time.Duration

	// Registration
	GatingMode       string
	TokenSigningKey  string
	SessionTTL       time.Duration
	UploadLimitBytes int64
	RateLimitOff     bool

	Kafka KafkaConfig

	// RosterSeed lists "nationalID=Full Name" pairs upserted at startup.
	RosterSeed []string
}

// RedisConfig configures the session store connection. An empty URL selects
// the in-memory store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the notification producer. No brokers selects the
// log-only notifier.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:        getEnv("INTAKE_ADDR", ":8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		StorageBucket:    os.Getenv("GCS_BUCKET"),
		CredentialsFile:  os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		VisionEndpoint:   os.Getenv("VISION_ENDPOINT"),
		VisionTimeout:    getDuration("VISION_TIMEOUT", 20*time.Second),
		GatingMode:       getEnv("GATING_MODE", "enforced"),
		TokenSigningKey:  getEnv("REGISTRATION_TOKEN_KEY", devTokenKey),
		SessionTTL:       getDuration("REGISTRATION_SESSION_TTL", 2*time.Hour),
		UploadLimitBytes: int64(getInt("UPLOAD_LIMIT_BYTES", 10<<20)),
		RateLimitOff:     getBool("RATE_LIMIT_DISABLED", false),
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_NOTIFICATION_TOPIC", "registration.notifications"),
		},
		RosterSeed: splitList(os.Getenv("ROSTER_SEED")),
	}
}

// IsProduction reports whether the service runs with production safeguards.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// Validate rejects settings the service cannot start with.
func (s Server) Validate() error {
	var errs []error
	switch s.GatingMode {
	case "off", "enforced":
	default:
		errs = append(errs, fmt.Errorf("GATING_MODE must be off or enforced, got %q", s.GatingMode))
	}
	if s.IsProduction() {
		if s.TokenSigningKey == devTokenKey {
			errs = append(errs, errors.New("REGISTRATION_TOKEN_KEY must be set in production"))
		}
		if s.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL must be set in production"))
		}
		if s.StorageBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET must be set in production"))
		}
	}
	if s.SessionTTL <= 0 {
		errs = append(errs, errors.New("REGISTRATION_SESSION_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
