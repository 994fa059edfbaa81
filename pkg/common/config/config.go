package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort   string
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	MatchCacheTTL time.Duration

	// Kafka
	KafkaBrokers          []string
	KafkaGroupID          string
	ProfileEventsTopic    string
	MatchEventsTopic      string
	OfferEventsTopic      string
	CareRequestTopic      string

	// Collaborators
	ProfileServiceURL   string
	BillingServiceURL   string
	CollaboratorTimeout time.Duration
	CollaboratorRetries int

	// Matching
	MatchingThreshold   int
	MatchingWeightsPath string

	// Offers
	OfferExpirationDays int
	OfferSweepInterval  time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "matchcare"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "matchcare123"),
		PostgresDB:       getEnv("POSTGRES_DB", "matchcare"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		MatchCacheTTL: getDuration("MATCH_CACHE_TTL", 10*time.Minute),

		KafkaBrokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "match-service"),
		ProfileEventsTopic: getEnv("PROFILE_EVENTS_TOPIC", "profile-events"),
		MatchEventsTopic:   getEnv("MATCH_EVENTS_TOPIC", "match-events"),
		OfferEventsTopic:   getEnv("OFFER_EVENTS_TOPIC", "offer-events"),
		CareRequestTopic:   getEnv("CARE_REQUEST_EVENTS_TOPIC", "care-request-events"),

		ProfileServiceURL:   getEnv("PROFILE_SERVICE_URL", "http://localhost:8081"),
		BillingServiceURL:   getEnv("BILLING_SERVICE_URL", "http://localhost:8082"),
		CollaboratorTimeout: getDuration("COLLABORATOR_TIMEOUT", 5*time.Second),
		CollaboratorRetries: getIntEnv("COLLABORATOR_RETRIES", 2),

		MatchingThreshold:   getIntEnv("MATCHING_THRESHOLD", 70),
		MatchingWeightsPath: getEnv("MATCHING_WEIGHTS_PATH", ""),

		OfferExpirationDays: getIntEnv("OFFER_EXPIRATION_DAYS", 7),
		OfferSweepInterval:  getDuration("OFFER_SWEEP_INTERVAL", time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
