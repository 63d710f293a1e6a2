package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds session-service configuration.
type Config struct {
	AppEnv   string // APP_ENV
	AppHost  string // APP_HOST
	HTTPPort string // APP_PORT or HTTP_PORT
	LogLevel string // LOG_LEVEL

	// PostgreSQL
	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
	}

	// WebSocket
	WSReadBufferSize  int
	WSWriteBufferSize int
	WSMaxMessageSize  int64

	// Session policy
	SessionDefaultTimeLimit  int // minutes, used when a create request omits timeLimit
	SessionConclusionMinutes int // grace period after the budget runs out
	SessionOvertimeBound     int // minutes; overtime beyond this is treated as a clock anomaly
	SessionSweepInterval     int // seconds between sweeper runs

	// AI report service notified on session end (empty = disabled)
	ReportServiceURL string

	// WebSocket URL base returned in session responses (e.g. wss://gd.example.com)
	WSBaseURL string
}

// Load loads config from environment (.env if present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	readBuf, _ := strconv.Atoi(getEnv("WS_READ_BUFFER_SIZE", "4096"))
	writeBuf, _ := strconv.Atoi(getEnv("WS_WRITE_BUFFER_SIZE", "4096"))
	maxMsg, _ := strconv.ParseInt(getEnv("WS_MAX_MESSAGE_SIZE", "65536"), 10, 64)
	defLimit, _ := strconv.Atoi(getEnv("SESSION_DEFAULT_TIME_LIMIT", "60"))
	conclusion, _ := strconv.Atoi(getEnv("SESSION_CONCLUSION_MINUTES", "2"))
	overtime, _ := strconv.Atoi(getEnv("SESSION_OVERTIME_BOUND", "1000"))
	sweep, _ := strconv.Atoi(getEnv("SESSION_SWEEP_INTERVAL", "60"))

	cfg := &Config{
		AppEnv:                   getEnv("APP_ENV", "development"),
		AppHost:                  getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:                 firstEnv("APP_PORT", "HTTP_PORT", "8085"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		WSReadBufferSize:         readBuf,
		WSWriteBufferSize:        writeBuf,
		WSMaxMessageSize:         maxMsg,
		SessionDefaultTimeLimit:  defLimit,
		SessionConclusionMinutes: conclusion,
		SessionOvertimeBound:     overtime,
		SessionSweepInterval:     sweep,
		ReportServiceURL:         getEnv("REPORT_SERVICE_URL", ""),
		WSBaseURL:                getEnv("WS_BASE_URL", ""),
	}
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "gd_sessions")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg, nil
}

// Validate checks required fields and production safety.
func (c *Config) Validate() error {
	if c.DB.Host == "" {
		return errors.New("config: DB_HOST is required")
	}
	if c.DB.User == "" {
		return errors.New("config: DB_USER is required")
	}
	if c.DB.Database == "" {
		return errors.New("config: DB_DATABASE is required")
	}
	if c.AppEnv == "production" && c.DB.Password == "" {
		return errors.New("config: in production DB_PASSWORD is required")
	}
	if c.WSReadBufferSize <= 0 || c.WSWriteBufferSize <= 0 {
		return errors.New("config: WS_READ_BUFFER_SIZE and WS_WRITE_BUFFER_SIZE must be positive")
	}
	if c.WSMaxMessageSize <= 0 {
		return errors.New("config: WS_MAX_MESSAGE_SIZE must be positive")
	}
	if c.SessionDefaultTimeLimit <= 0 {
		return errors.New("config: SESSION_DEFAULT_TIME_LIMIT must be positive")
	}
	if c.SessionConclusionMinutes <= 0 {
		return errors.New("config: SESSION_CONCLUSION_MINUTES must be positive")
	}
	if c.SessionOvertimeBound <= c.SessionConclusionMinutes {
		return errors.New("config: SESSION_OVERTIME_BOUND must exceed SESSION_CONCLUSION_MINUTES")
	}
	// Malformed numeric env values parse to zero in Load; the sweeper feeds
	// this straight into a ticker, so reject it here instead of at runtime.
	if c.SessionSweepInterval <= 0 {
		return errors.New("config: SESSION_SWEEP_INTERVAL must be positive")
	}
	return nil
}

// DSN returns PostgreSQL connection string for GORM.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

// DatabaseURL returns postgres URL for golang-migrate.
func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

// Addr returns listen address for HTTP server.
func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	keys := keysAndDef[:len(keysAndDef)-1]
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
