package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	Database DatabaseConfig
	RedisURL string

	Casdoor     CasdoorConfig
	Kafka       KafkaConfig
	Midtrans    MidtransConfig
	Certificate CertificateConfig
	OSS         OSSConfig
	Proctoring  ProctoringConfig

	AdmissionRatePerMinute int
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns DATABASE_URL when set, otherwise a key/value postgres DSN.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
}

type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
}

type MidtransConfig struct {
	ServerKey  string
	Production bool
}

type CertificateConfig struct {
	Storage        string // "local" or "oss"
	LocalDir       string
	PublicBaseURL  string
	TemplatePath   string
	RepairSchedule string
	RepairBatch    int
}

type OSSConfig struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	PublicBaseURL   string
}

type ProctoringConfig struct {
	MaxViolations    int
	LivenessInterval time.Duration
	MinViewportWidth int
	FullscreenWait   time.Duration
	AllowedOrigins   []string
	LateGrace        time.Duration
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(envOrDefault("LOG_LEVEL", "info")),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            envOrDefault("DB_HOST", "localhost"),
			Port:            envOrDefault("DB_PORT", "5432"),
			User:            envOrDefault("DB_USER", "postgres"),
			Password:        os.Getenv("DB_PASSWORD"),
			Name:            envOrDefault("DB_NAME", "skill_assessment"),
			SSLMode:         envOrDefault("DB_SSLMODE", "disable"),
			MaxOpenConns:    intOrDefault("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    intOrDefault("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: durationOrDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		RedisURL: os.Getenv("REDIS_URL"),
		Casdoor: CasdoorConfig{
			Endpoint:     os.Getenv("CASDOOR_ENDPOINT"),
			ClientID:     os.Getenv("CASDOOR_CLIENT_ID"),
			ClientSecret: os.Getenv("CASDOOR_CLIENT_SECRET"),
			Cert:         os.Getenv("CASDOOR_CERT"),
			Organization: os.Getenv("CASDOOR_ORGANIZATION"),
			Application:  os.Getenv("CASDOOR_APPLICATION"),
		},
		Kafka: KafkaConfig{
			Brokers:       listOrEmpty("KAFKA_BROKERS"),
			ConsumerGroup: envOrDefault("KAFKA_CONSUMER_GROUP", "skill-assessment-service"),
		},
		Midtrans: MidtransConfig{
			ServerKey:  os.Getenv("MIDTRANS_SERVER_KEY"),
			Production: boolOrDefault("MIDTRANS_PRODUCTION", false),
		},
		Certificate: CertificateConfig{
			Storage:        envOrDefault("CERT_STORAGE", "local"),
			LocalDir:       envOrDefault("CERT_LOCAL_DIR", "./data"),
			PublicBaseURL:  envOrDefault("CERT_PUBLIC_BASE_URL", "http://localhost:8080/files"),
			TemplatePath:   os.Getenv("CERT_TEMPLATE_PATH"),
			RepairSchedule: envOrDefault("CERT_REPAIR_SCHEDULE", "@every 10m"),
			RepairBatch:    intOrDefault("CERT_REPAIR_BATCH", 50),
		},
		OSS: OSSConfig{
			Endpoint:        os.Getenv("OSS_ENDPOINT"),
			AccessKeyID:     os.Getenv("OSS_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("OSS_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("OSS_BUCKET"),
			PublicBaseURL:   os.Getenv("OSS_PUBLIC_BASE_URL"),
		},
		Proctoring: ProctoringConfig{
			MaxViolations:    intOrDefault("PROCTOR_MAX_VIOLATIONS", 3),
			LivenessInterval: durationOrDefault("PROCTOR_LIVENESS_INTERVAL", 3*time.Second),
			MinViewportWidth: intOrDefault("PROCTOR_MIN_VIEWPORT_WIDTH", 1024),
			FullscreenWait:   durationOrDefault("PROCTOR_FULLSCREEN_WAIT", 10*time.Second),
			AllowedOrigins:   listOrEmpty("PROCTOR_ALLOWED_ORIGINS"),
			LateGrace:        durationOrDefault("SUBMISSION_LATE_GRACE", 30*time.Second),
		},
		AdmissionRatePerMinute: intOrDefault("ADMISSION_RATE_PER_MINUTE", 10),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Certificate.Storage {
	case "local":
	case "oss":
		if c.OSS.Endpoint == "" || c.OSS.Bucket == "" {
			return fmt.Errorf("CERT_STORAGE=oss requires OSS_ENDPOINT and OSS_BUCKET")
		}
	default:
		return fmt.Errorf("unknown CERT_STORAGE %q", c.Certificate.Storage)
	}
	if c.Proctoring.MaxViolations < 1 {
		return fmt.Errorf("PROCTOR_MAX_VIOLATIONS must be positive")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intOrDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolOrDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func durationOrDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func listOrEmpty(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
