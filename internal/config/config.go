package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// PublicBaseURL is the origin used to build invite and activation links.
	PublicBaseURL string

	OTLPEndpoint string

	// SchedulerEnabled runs the invite expiry sweeper in this process.
	SchedulerEnabled bool

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBMetricsEnabled  bool

	Email         EmailConfig
	Redis         RedisConfig
	RateLimit     RateLimitConfig
	MetricsExport MetricsExportConfig
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	// AdminRecipients receive new-member notifications.
	AdminRecipients []string
}

// Enabled reports whether an SMTP relay is configured.
func (c EmailConfig) Enabled() bool {
	return strings.TrimSpace(c.SMTPHost) != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address is configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// RateLimitConfig throttles anonymous token routes per client address.
type RateLimitConfig struct {
	Enabled bool
	// ProbeRate is the refill rate in requests per second.
	ProbeRate  float64
	ProbeBurst int
}

// MetricsExportConfig pushes the invite funnel gauges to a remote store.
type MetricsExportConfig struct {
	// Exporter is prometheus_remote_write or prometheus_pushgateway. Empty disables export.
	Exporter        string
	Endpoint        string
	AuthToken       string
	IntervalSeconds int
}

// Enabled reports whether an exporter is configured.
func (c MetricsExportConfig) Enabled() bool {
	return strings.TrimSpace(c.Exporter) != ""
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "tandem"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL:     strings.TrimRight(strings.TrimSpace(getenv("PUBLIC_BASE_URL", "http://localhost:8080")), "/"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		SchedulerEnabled:  getenvBool("SCHEDULER_ENABLED", true),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "tandem"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		DBMetricsEnabled:  getenvBool("DATABASE_METRICS_ENABLED", false),
		Email: EmailConfig{
			SMTPHost:        strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:        getenvInt("SMTP_PORT", 587),
			SMTPUsername:    strings.TrimSpace(getenv("SMTP_USERNAME", "")),
			SMTPPassword:    getenv("SMTP_PASSWORD", ""),
			SMTPFrom:        strings.TrimSpace(getenv("SMTP_FROM", "no-reply@tandem.local")),
			AdminRecipients: parseList(getenv("ADMIN_NOTIFICATION_EMAILS", "")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:    getenvBool("TOKEN_RATE_LIMIT_ENABLED", true),
			ProbeRate:  getenvFloat("TOKEN_RATE_LIMIT_RATE", 0.2),
			ProbeBurst: getenvInt("TOKEN_RATE_LIMIT_BURST", 10),
		},
		MetricsExport: MetricsExportConfig{
			Exporter:        strings.TrimSpace(getenv("METRICS_EXPORTER", "")),
			Endpoint:        strings.TrimSpace(getenv("METRICS_EXPORT_ENDPOINT", "")),
			AuthToken:       strings.TrimSpace(getenv("METRICS_EXPORT_AUTH_TOKEN", "")),
			IntervalSeconds: getenvInt("METRICS_EXPORT_INTERVAL_SECONDS", 60),
		},
	}

	return cfg
}

// IsProduction reports whether the service runs in the production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
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

func parseList(raw string) []string {
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
