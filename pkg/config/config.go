package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL      string
	GoogleMapsAPIKey string
	OpenAIAPIKey     string
	Port             string

	// Database performance settings
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime int // minutes
	DBConnMaxIdleTime int // minutes
	DBReadTimeout     time.Duration
	DBWriteTimeout    time.Duration

	// Dedup scan defaults
	DedupMaxDistanceM     float64 // pairwise matcher radius cap
	DedupDefaultMinSim    float64 // caller default for the >=200m tier
	DedupRowLimit         int     // source-level truncation for cost control
	CandidateRadiusM      float64 // candidate generator default radius
	CandidateLimitDefault int

	// OpenAI duplicate reviewer settings
	OpenAIModel   string
	OpenAITimeout time.Duration

	// Geocoder settings
	GeocodeRatePerSecond float64

	// Monitoring and logging settings
	LogLevel  string
	LogFormat string // "json" or "text"
	LogOutput string // stdout, stderr, or file path

	// Environment & metrics
	Env            string // development, staging, production
	MetricsEnabled bool
	MetricsPath    string

	// Actor resolution for mutating endpoints
	AdminsYAMLPath string
}

func Load() *Config {
	// Database performance settings with defaults
	dbMaxOpenConns, _ := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "50"))
	dbMaxIdleConns, _ := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "15"))
	dbConnMaxLifetime, _ := strconv.Atoi(getEnv("DB_CONN_MAX_LIFETIME_MINUTES", "10"))
	dbConnMaxIdleTime, _ := strconv.Atoi(getEnv("DB_CONN_MAX_IDLE_TIME_MINUTES", "5"))

	// Timeouts
	dbReadTO, _ := time.ParseDuration(getEnv("DB_READ_TIMEOUT", "8s"))
	dbWriteTO, _ := time.ParseDuration(getEnv("DB_WRITE_TIMEOUT", "6s"))

	// Dedup knobs
	maxDistance, _ := strconv.ParseFloat(getEnv("DEDUP_MAX_DISTANCE_M", "500"), 64)
	defaultMinSim, _ := strconv.ParseFloat(getEnv("DEDUP_DEFAULT_MIN_SIMILARITY", "0.35"), 64)
	rowLimit, _ := strconv.Atoi(getEnv("DEDUP_ROW_LIMIT", "500"))
	candRadius, _ := strconv.ParseFloat(getEnv("CANDIDATE_RADIUS_M", "200"), 64)
	candLimit, _ := strconv.Atoi(getEnv("CANDIDATE_LIMIT", "25"))

	if maxDistance < 0 {
		log.Printf("[Warning] DEDUP_MAX_DISTANCE_M is negative (%v), using 500", maxDistance)
		maxDistance = 500
	}
	if defaultMinSim < 0 || defaultMinSim > 1 {
		log.Printf("[Warning] DEDUP_DEFAULT_MIN_SIMILARITY out of range (%v), using 0.35", defaultMinSim)
		defaultMinSim = 0.35
	}

	// OpenAI reviewer
	openAIModel := getEnv("OPENAI_MODEL", "gpt-4o-mini")
	openAIReqTimeoutSec, _ := strconv.Atoi(getEnv("OPENAI_REQUEST_TIMEOUT_SECONDS", "60"))

	// Geocoder
	geocodeRate, _ := strconv.ParseFloat(getEnv("GEOCODE_RATE_PER_SECOND", "10"), 64)

	// Environment and metrics defaults
	env := strings.ToLower(getEnv("ENV", "development"))
	metricsDefault := env == "development" || env == "staging"
	metricsEnabled, _ := strconv.ParseBool(getEnv("METRICS_ENABLED", strconv.FormatBool(metricsDefault)))

	return &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		GoogleMapsAPIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		Port:             getEnv("PORT", "8080"),

		DBMaxOpenConns:    dbMaxOpenConns,
		DBMaxIdleConns:    dbMaxIdleConns,
		DBConnMaxLifetime: dbConnMaxLifetime,
		DBConnMaxIdleTime: dbConnMaxIdleTime,
		DBReadTimeout:     dbReadTO,
		DBWriteTimeout:    dbWriteTO,

		DedupMaxDistanceM:     maxDistance,
		DedupDefaultMinSim:    defaultMinSim,
		DedupRowLimit:         rowLimit,
		CandidateRadiusM:      candRadius,
		CandidateLimitDefault: candLimit,

		OpenAIModel:   openAIModel,
		OpenAITimeout: time.Duration(openAIReqTimeoutSec) * time.Second,

		GeocodeRatePerSecond: geocodeRate,

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogOutput: getEnv("LOG_OUTPUT", "stdout"),

		Env:            env,
		MetricsEnabled: metricsEnabled,
		MetricsPath:    getEnv("METRICS_PATH", "/metrics"),

		AdminsYAMLPath: getEnv("ADMINS_YAML_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
