package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Firebase   FirebaseConfig
	Completion CompletionConfig
	Deploy     DeployConfig
	Access     AccessConfig
	Analytics  AnalyticsConfig
	Worker     WorkerConfig
	App        AppConfig
}

type ServerConfig struct {
	Port             string
	CORSOrigins      []string
	RuntimeRatePerS  float64
	RuntimeRateBurst int
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory"; memory keeps everything in process
	// and is refused in production.
	Driver        string
	DSN           string
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	MaxOpenConns  int
	MaxIdleConns  int
	RunMigrations bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type FirebaseConfig struct {
	CredentialsPath string
	// AuthMode is "firebase" or "header". Header mode trusts X-User-Id and is
	// only accepted outside production.
	AuthMode string
}

type CompletionConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

type DeployConfig struct {
	BaseDomain      string
	PublicScheme    string
	APIPublicURL    string
	BundleHost      string // "fs" or "s3"
	BundleDir       string
	S3Bucket        string
	S3Prefix        string
	S3Region        string
	S3Endpoint      string
	RetainSubdomain bool
	ReservationTTL  time.Duration
}

type AccessConfig struct {
	RegisteredDailyLimit int64
	EntitlementCacheTTL  time.Duration
}

type AnalyticsConfig struct {
	ClickHouseDSN string
}

type WorkerConfig struct {
	SweepSchedule string
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:             getEnv("PORT", "8080"),
			CORSOrigins:      getEnvAsList("CORS_ORIGINS", []string{"*"}),
			RuntimeRatePerS:  getEnvAsFloat("RUNTIME_RATE_PER_SECOND", 5),
			RuntimeRateBurst: getEnvAsInt("RUNTIME_RATE_BURST", 10),
		},
		Database: DatabaseConfig{
			Driver:        getEnv("STORE_DRIVER", "postgres"),
			DSN:           getEnv("DB_DSN", ""),
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnvAsInt("DB_PORT", 5432),
			User:          getEnv("DB_USER", "postgres"),
			Password:      getEnv("DB_PASSWORD", ""),
			Name:          getEnv("DB_NAME", "toolsmith"),
			MaxOpenConns:  getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			RunMigrations: getEnvAsBool("RUN_MIGRATIONS", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Firebase: FirebaseConfig{
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			AuthMode:        getEnv("AUTH_MODE", "firebase"),
		},
		Completion: CompletionConfig{
			BaseURL: getEnv("COMPLETION_BASE_URL", "http://localhost:8088/v1"),
			Model:   getEnv("COMPLETION_MODEL", "gpt-4o-mini"),
			APIKey:  getEnv("COMPLETION_API_KEY", ""),
			Timeout: getEnvAsDuration("COMPLETION_TIMEOUT", 60*time.Second),
		},
		Deploy: DeployConfig{
			BaseDomain:      getEnv("BASE_DOMAIN", "localhost"),
			PublicScheme:    getEnv("PUBLIC_SCHEME", "https"),
			APIPublicURL:    getEnv("API_PUBLIC_URL", "http://localhost:8080"),
			BundleHost:      getEnv("BUNDLE_HOST", "fs"),
			BundleDir:       getEnv("BUNDLE_DIR", "public/tools"),
			S3Bucket:        getEnv("BUNDLE_S3_BUCKET", ""),
			S3Prefix:        getEnv("BUNDLE_S3_PREFIX", "tools"),
			S3Region:        getEnv("BUNDLE_S3_REGION", "us-east-1"),
			S3Endpoint:      getEnv("BUNDLE_S3_ENDPOINT", ""),
			RetainSubdomain: getEnvAsBool("RETAIN_SUBDOMAIN_ON_UNDEPLOY", false),
			ReservationTTL:  getEnvAsDuration("SLUG_RESERVATION_GRACE", 0),
		},
		Access: AccessConfig{
			RegisteredDailyLimit: int64(getEnvAsInt("REGISTERED_DAILY_LIMIT", 20)),
			EntitlementCacheTTL:  getEnvAsDuration("ENTITLEMENT_CACHE_TTL", 30*time.Second),
		},
		Analytics: AnalyticsConfig{
			ClickHouseDSN: getEnv("CLICKHOUSE_DSN", ""),
		},
		Worker: WorkerConfig{
			SweepSchedule: getEnv("SWEEP_SCHEDULE", "0 */5 * * * *"),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" && c.Database.Host == "" {
			return fmt.Errorf("DB_HOST or DB_DSN is required")
		}
	case "memory":
		if c.IsProduction() {
			return fmt.Errorf("STORE_DRIVER=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.Database.Driver)
	}

	switch c.Deploy.BundleHost {
	case "fs":
		if c.Deploy.BundleDir == "" {
			return fmt.Errorf("BUNDLE_DIR is required when BUNDLE_HOST=fs")
		}
	case "s3":
		if c.Deploy.S3Bucket == "" {
			return fmt.Errorf("BUNDLE_S3_BUCKET is required when BUNDLE_HOST=s3")
		}
	default:
		return fmt.Errorf("BUNDLE_HOST must be fs or s3, got %q", c.Deploy.BundleHost)
	}

	switch c.Firebase.AuthMode {
	case "firebase":
		if c.Firebase.CredentialsPath == "" && c.IsProduction() {
			return fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required")
		}
	case "header":
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=header is not allowed in production")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be firebase or header, got %q", c.Firebase.AuthMode)
	}

	if c.Deploy.BaseDomain == "" {
		return fmt.Errorf("BASE_DOMAIN is required")
	}

	if c.Completion.Timeout <= 0 {
		return fmt.Errorf("COMPLETION_TIMEOUT must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid number for %s, using default: %v", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean for %s, using default: %t", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
