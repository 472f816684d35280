package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBackendMemory = "memory"
	StoreBackendMySQL  = "mysql"
	StoreBackendRedis  = "redis"
)

const (
	yappyTestBaseURL = "https://api-comecom-uat.yappycloud.com"
	yappyProdBaseURL = "https://api-comecom.yappycloud.com"
)

type Config struct {
	App         AppConfig
	HTTP        ServerConfig
	MySQL       MySQLConfig
	Redis       RedisConfig
	Log         LogConfig
	Yappy       YappyConfig
	Sessions    SessionsConfig
	Fulfillment FulfillmentConfig
	Store       StoreConfig
	Jobs        JobsConfig
}

type AppConfig struct {
	ServiceName string
	APIKey      string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LogConfig struct {
	Level string
}

type YappyConfig struct {
	// Available gates the real client; when false, or when MerchantID is
	// empty, the simulation fallback is used.
	Available     bool
	Environment   string
	BaseURL       string
	MerchantID    string
	Domain        string
	AliasYappy    string
	IPNURL        string
	WebhookSecret string
	HTTPTimeout   time.Duration
}

// SimulationMode reports whether the simulation fallback replaces the real
// provider client.
func (c YappyConfig) SimulationMode() bool {
	return !c.Available || strings.TrimSpace(c.MerchantID) == ""
}

type SessionsConfig struct {
	TTL                 time.Duration
	ReconcileStaleAfter time.Duration
	JobBatchSize        int32
}

type FulfillmentConfig struct {
	EnrollmentURL string
	HTTPTimeout   time.Duration
}

type StoreConfig struct {
	Backend string
}

type JobsConfig struct {
	ExpirePendingInterval time.Duration
	ReconcileInterval     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "yappy-gateway"),
			APIKey:      getEnv("APP_API_KEY", ""),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             getEnv("MYSQL_DSN", ""),
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Yappy: YappyConfig{
			Available:     getBoolEnv("YAPPY_AVAILABLE", false),
			Environment:   strings.ToLower(getEnv("YAPPY_ENVIRONMENT", "test")),
			BaseURL:       getEnv("YAPPY_BASE_URL", ""),
			MerchantID:    getEnv("YAPPY_MERCHANT_ID", ""),
			Domain:        getEnv("YAPPY_DOMAIN", ""),
			AliasYappy:    getEnv("YAPPY_ALIAS", ""),
			IPNURL:        getEnv("YAPPY_IPN_URL", ""),
			WebhookSecret: getEnv("YAPPY_WEBHOOK_SECRET", ""),
			HTTPTimeout:   getSecondsEnv("YAPPY_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Sessions: SessionsConfig{
			TTL:                 getMinutesEnv("SESSIONS_TTL_MINUTES", 15*time.Minute),
			ReconcileStaleAfter: getMinutesEnv("SESSIONS_RECONCILE_STALE_AFTER_MINUTES", 5*time.Minute),
			JobBatchSize:        int32(getIntEnv("SESSIONS_JOB_BATCH_SIZE", 100)),
		},
		Fulfillment: FulfillmentConfig{
			EnrollmentURL: getEnv("FULFILLMENT_ENROLLMENT_URL", ""),
			HTTPTimeout:   getSecondsEnv("FULFILLMENT_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("SESSIONS_STORE_BACKEND", StoreBackendMemory)),
		},
		Jobs: JobsConfig{
			ExpirePendingInterval: getMinutesEnv("JOBS_EXPIRE_PENDING_INTERVAL_MINUTES", 5*time.Minute),
			ReconcileInterval:     getMinutesEnv("JOBS_RECONCILE_INTERVAL_MINUTES", 2*time.Minute),
		},
	}

	if cfg.Yappy.BaseURL == "" {
		switch cfg.Yappy.Environment {
		case "prod", "production":
			cfg.Yappy.BaseURL = yappyProdBaseURL
		case "test", "uat", "staging":
			cfg.Yappy.BaseURL = yappyTestBaseURL
		default:
			return nil, fmt.Errorf("unknown YAPPY_ENVIRONMENT %q", cfg.Yappy.Environment)
		}
	}

	if cfg.Yappy.Available {
		if strings.TrimSpace(cfg.Yappy.MerchantID) == "" {
			return nil, errors.New("YAPPY_MERCHANT_ID is required when YAPPY_AVAILABLE is true")
		}
		if strings.TrimSpace(cfg.Yappy.Domain) == "" {
			return nil, errors.New("YAPPY_DOMAIN is required when YAPPY_AVAILABLE is true")
		}
	}

	switch cfg.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendMySQL:
		if cfg.MySQL.DSN == "" {
			return nil, errors.New("MYSQL_DSN is required for the mysql store backend")
		}
	case StoreBackendRedis:
		if cfg.Redis.Addr == "" {
			return nil, errors.New("REDIS_ADDR is required for the redis store backend")
		}
	default:
		return nil, fmt.Errorf("unknown SESSIONS_STORE_BACKEND %q", cfg.Store.Backend)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
