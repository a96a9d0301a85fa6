package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds proctoring-service configuration.
type Config struct {
	AppEnv   string // APP_ENV
	AppHost  string // APP_HOST
	HTTPPort string // APP_PORT or HTTP_PORT
	LogLevel string // LOG_LEVEL

	// Persistence: "postgres" (default) or "memory".
	StoreDriver string

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
	WSSendBuffer      int
	WSMaxMessageSize  int64

	// Hub heartbeat
	HeartbeatInterval time.Duration

	// Risk engine
	RiskDecayWindow     time.Duration
	RiskWeightOverrides map[string]float64
	HighRiskThreshold   float64

	// Risk trend
	TrendWindow         time.Duration
	TrendSampleInterval time.Duration

	// WebSocket URL advertised in StartSession responses (e.g. wss://proctor.example.com)
	WSBaseURL string
}

// Load loads config from environment (.env if present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	readBuf, _ := strconv.Atoi(getEnv("WS_READ_BUFFER_SIZE", "4096"))
	writeBuf, _ := strconv.Atoi(getEnv("WS_WRITE_BUFFER_SIZE", "4096"))
	sendBuf, _ := strconv.Atoi(getEnv("WS_SEND_BUFFER", "256"))
	maxMsg, _ := strconv.ParseInt(getEnv("WS_MAX_MESSAGE_SIZE", "1048576"), 10, 64)
	heartbeat, _ := strconv.Atoi(getEnv("HEARTBEAT_INTERVAL", "30"))
	decayHours, _ := strconv.ParseFloat(getEnv("RISK_DECAY_WINDOW_HOURS", "1.0"), 64)
	highRisk, _ := strconv.ParseFloat(getEnv("HIGH_RISK_THRESHOLD", "0.7"), 64)
	trendHours, _ := strconv.Atoi(getEnv("TREND_WINDOW_HOURS", "24"))
	sampleMin, _ := strconv.Atoi(getEnv("TREND_SAMPLE_MINUTES", "15"))

	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		AppHost:             getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:            firstEnv("APP_PORT", "HTTP_PORT", "8090"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		StoreDriver:         getEnv("STORE_DRIVER", "postgres"),
		WSReadBufferSize:    readBuf,
		WSWriteBufferSize:   writeBuf,
		WSSendBuffer:        sendBuf,
		WSMaxMessageSize:    maxMsg,
		HeartbeatInterval:   time.Duration(heartbeat) * time.Second,
		RiskDecayWindow:     time.Duration(decayHours * float64(time.Hour)),
		HighRiskThreshold:   highRisk,
		TrendWindow:         time.Duration(trendHours) * time.Hour,
		TrendSampleInterval: time.Duration(sampleMin) * time.Minute,
		WSBaseURL:           getEnv("WS_BASE_URL", ""),
	}
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "proctoring_service")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")

	// Operator severity overrides, e.g. RISK_WEIGHTS={"tab_switch":0.7}
	if raw := os.Getenv("RISK_WEIGHTS"); raw != "" {
		overrides := map[string]float64{}
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			return nil, fmt.Errorf("config: RISK_WEIGHTS: %w", err)
		}
		cfg.RiskWeightOverrides = overrides
	}
	return cfg, nil
}

// Validate checks required fields and production safety.
func (c *Config) Validate() error {
	if c.StoreDriver != "postgres" && c.StoreDriver != "memory" {
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("config: HEARTBEAT_INTERVAL must be positive")
	}
	for typ, w := range c.RiskWeightOverrides {
		if w < 0 || w > 1 {
			return fmt.Errorf("config: RISK_WEIGHTS[%s] = %v outside [0,1]", typ, w)
		}
	}
	if c.StoreDriver == "memory" {
		return nil
	}
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
	return nil
}

// DSN returns the PostgreSQL connection string for GORM.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

// DatabaseURL returns a postgres URL for golang-migrate.
func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

// Addr returns the listen address for the HTTP server.
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
