package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	DBRunMigrations   bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Source  SourceConfig
	Kafka   KafkaConfig
	Capture CaptureConfig
	Webhook WebhookConfig
	Push    PushMetricsConfig

	HistoryCacheTTL   time.Duration
	MetricsPolicyPath string
}

// SourceConfig points at the upstream commerce API.
type SourceConfig struct {
	BaseURL  string
	PageSize int
	Timeout  time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// WebhookConfig limits webhook-triggered captures per company. A zero rate disables limiting.
type WebhookConfig struct {
	Rate  float64
	Burst int
}

// PushMetricsConfig ships deployment gauges to a Prometheus remote_write
// endpoint or a Pushgateway. An empty exporter disables pushing.
type PushMetricsConfig struct {
	Exporter  string
	Endpoint  string
	AuthToken string
	Interval  time.Duration
}

// CaptureConfig drives the snapshot scheduler.
type CaptureConfig struct {
	Interval    time.Duration
	Timeout     time.Duration
	BatchSize   int
	LockTTL     time.Duration
	EnabledJobs []string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:           getenv("APP_NAME", "revlens"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", ""),
		DBType:            getenv("DB_TYPE", "postgres"),
		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBName:            getenv("DB_NAME", "revlens"),
		DBUser:            getenv("DB_USER", "postgres"),
		DBPassword:        getenv("DB_PASSWORD", ""),
		DBSSLMode:         getenv("DB_SSL_MODE", "disable"),
		DBMaxIdleConn:     getenvInt("DB_MAX_IDLE_CONNS", 5),
		DBMaxOpenConn:     getenvInt("DB_MAX_OPEN_CONNS", 20),
		DBConnMaxLifetime: getenvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		DBConnMaxIdleTime: getenvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		DBRunMigrations:   getenvBool("DB_RUN_MIGRATIONS", true),
		RedisAddr:         getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           getenvInt("REDIS_DB", 0),
		Source: SourceConfig{
			BaseURL:  strings.TrimRight(getenv("SOURCE_BASE_URL", "https://api.whop.com/api/v5"), "/"),
			PageSize: getenvInt("SOURCE_PAGE_SIZE", 50),
			Timeout:  getenvDuration("SOURCE_TIMEOUT", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getenv("KAFKA_BROKERS", "")),
			Topic:   getenv("KAFKA_TOPIC", "revlens.snapshots"),
		},
		Capture: CaptureConfig{
			Interval:    getenvDuration("CAPTURE_INTERVAL", 24*time.Hour),
			Timeout:     getenvDuration("CAPTURE_TIMEOUT", 5*time.Minute),
			BatchSize:   getenvInt("CAPTURE_BATCH_SIZE", 25),
			LockTTL:     getenvDuration("CAPTURE_LOCK_TTL", 10*time.Minute),
			EnabledJobs: splitList(getenv("SCHEDULER_ENABLED_JOBS", "")),
		},
		Webhook: WebhookConfig{
			Rate:  getenvFloat("WEBHOOK_RATE", 0.2),
			Burst: getenvInt("WEBHOOK_BURST", 5),
		},
		Push: PushMetricsConfig{
			Exporter:  strings.ToLower(getenv("PUSH_METRICS_EXPORTER", "")),
			Endpoint:  getenv("PUSH_METRICS_ENDPOINT", ""),
			AuthToken: getenv("PUSH_METRICS_AUTH_TOKEN", ""),
			Interval:  getenvDuration("PUSH_METRICS_INTERVAL", 15*time.Minute),
		},
		HistoryCacheTTL:   getenvDuration("HISTORY_CACHE_TTL", 10*time.Minute),
		MetricsPolicyPath: strings.TrimSpace(getenv("METRICS_POLICY_PATH", "")),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
