package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                         string
	DatabaseURL                  string
	StoreDriver                  string
	LogLevel                     string
	LogFormat                    string
	RemoteGraceMinutes           int
	ExpiryInterval               time.Duration
	NATSURL                      string
	RelayInterval                time.Duration
	RelayBatchSize               int
	RateLimitPerMinute           int
	RateLimitBurst               int
	RestaurantRateLimitPerMinute int
	RestaurantRateLimitBurst     int
	HistoryWeeks                 int
	PrioritizePhysical           bool
	TimeZone                     string
	Environment                  string
}

// Load reads the environment, after filling it from a .env file in the
// working directory when one exists. Variables already set win over the
// file.
func Load() Config {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	driver := os.Getenv("STORE_DRIVER")
	if driver == "" {
		driver = "postgres"
	}

	return Config{
		Port:                         port,
		DatabaseURL:                  os.Getenv("DB_DSN"),
		StoreDriver:                  driver,
		LogLevel:                     readString("LOG_LEVEL", "info"),
		LogFormat:                    readString("LOG_FORMAT", "text"),
		RemoteGraceMinutes:           readNonNegativeInt("REMOTE_GRACE_MINUTES", 15),
		ExpiryInterval:               readDurationSeconds("EXPIRY_SCAN_INTERVAL_SECONDS", 60),
		NATSURL:                      os.Getenv("NATS_URL"),
		RelayInterval:                readDurationSeconds("RELAY_INTERVAL_SECONDS", 5),
		RelayBatchSize:               readInt("RELAY_BATCH_SIZE", 100),
		RateLimitPerMinute:           readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:               readInt("RATE_LIMIT_BURST", 30),
		RestaurantRateLimitPerMinute: readInt("RESTAURANT_RATE_LIMIT_PER_MIN", 600),
		RestaurantRateLimitBurst:     readInt("RESTAURANT_RATE_LIMIT_BURST", 120),
		HistoryWeeks:                 readInt("HISTORY_WEEKS", 8),
		PrioritizePhysical:           readBool("PRIORITIZE_PHYSICAL", true),
		TimeZone:                     readString("RESTAURANT_TZ", "UTC"),
		Environment:                  readString("DEPLOYMENT_ENV", "development"),
	}
}

// Location resolves RESTAURANT_TZ. Demand rules and history buckets use
// this wall clock.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("RESTAURANT_TZ %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

func readString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// readNonNegativeInt treats negative values like garbage; zero is kept.
func readNonNegativeInt(key string, fallback int) int {
	value := readInt(key, fallback)
	if value < 0 {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
