package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort string
	// MetricsPort はworkerモードで/metricsを公開するポート。
	MetricsPort string

	// Logging
	LogLevel slog.Level

	// Fetch
	FetchTimeout     time.Duration
	FetchMaxRetries  int
	FetchBackoffBase time.Duration
	FetchMaxSize     int64
	FetchHostRPS     float64

	// Headless
	HeadlessEnabled bool
	HeadlessBin     string

	// Alert
	PriceDropThreshold float64

	// Polling interval bounds (minutes)
	PollIntervalDefault int
	PollIntervalMin     int
	PollIntervalMax     int

	// Scheduler / Worker
	SchedulerInterval  time.Duration
	JobMaxRetries      int
	JobRetryDelay      time.Duration
	JobLease           time.Duration
	WorkerConcurrency  int
	WorkerPollInterval time.Duration

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	NotifyQueueSize int

	// Retention
	QueueRetentionDays int
	CleanupSchedule    string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、または値の範囲が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9091")
	cfg.LogLevel = getEnvLogLevel("LOG_LEVEL", slog.LevelInfo)

	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxRetries = getEnvInt("FETCH_MAX_RETRIES", 3)
	cfg.FetchBackoffBase = getEnvDuration("FETCH_BACKOFF_BASE", 1500*time.Millisecond)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchHostRPS = getEnvFloat("FETCH_HOST_RPS", 1)

	cfg.HeadlessEnabled = getEnvBool("HEADLESS_ENABLED", false)
	cfg.HeadlessBin = getEnvString("HEADLESS_BIN", "")

	cfg.PriceDropThreshold = getEnvFloat("PRICE_DROP_THRESHOLD", 5)

	cfg.PollIntervalDefault = getEnvInt("POLL_INTERVAL_DEFAULT", 60)
	cfg.PollIntervalMin = getEnvInt("POLL_INTERVAL_MIN", 5)
	cfg.PollIntervalMax = getEnvInt("POLL_INTERVAL_MAX", 1440)

	cfg.SchedulerInterval = getEnvDuration("SCHEDULER_INTERVAL", 5*time.Minute)
	cfg.JobMaxRetries = getEnvInt("JOB_MAX_RETRIES", 3)
	cfg.JobRetryDelay = getEnvDuration("JOB_RETRY_DELAY", 120*time.Second)
	cfg.JobLease = getEnvDuration("JOB_LEASE", 15*time.Minute)
	cfg.WorkerConcurrency = getEnvInt("WORKER_CONCURRENCY", 10)
	cfg.WorkerPollInterval = getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second)

	cfg.SMTPHost = getEnvString("SMTP_HOST", "smtp.gmail.com")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPUser = getEnvString("SMTP_USER", "")
	cfg.SMTPPassword = getEnvString("SMTP_PASSWORD", "")
	cfg.SMTPFrom = getEnvString("SMTP_FROM", "noreply@salescout.com")
	cfg.NotifyQueueSize = getEnvInt("NOTIFY_QUEUE_SIZE", 100)

	cfg.QueueRetentionDays = getEnvInt("QUEUE_RETENTION_DAYS", 7)
	cfg.CleanupSchedule = getEnvString("CLEANUP_SCHEDULE", "@daily")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PollingBounds はポーリング間隔の下限と上限（分）を返す。
func (c *Config) PollingBounds() (minMinutes, maxMinutes int) {
	return c.PollIntervalMin, c.PollIntervalMax
}

func (c *Config) validate() error {
	if c.PollIntervalMin < 1 || c.PollIntervalMin > c.PollIntervalMax {
		return fmt.Errorf("invalid polling interval bounds: min=%d max=%d", c.PollIntervalMin, c.PollIntervalMax)
	}
	if c.PollIntervalDefault < c.PollIntervalMin || c.PollIntervalDefault > c.PollIntervalMax {
		return fmt.Errorf("POLL_INTERVAL_DEFAULT=%d is out of range [%d, %d]", c.PollIntervalDefault, c.PollIntervalMin, c.PollIntervalMax)
	}
	if c.FetchMaxRetries < 1 {
		return fmt.Errorf("FETCH_MAX_RETRIES must be >= 1: %d", c.FetchMaxRetries)
	}
	if c.JobMaxRetries < 0 {
		return fmt.Errorf("JOB_MAX_RETRIES must be >= 0: %d", c.JobMaxRetries)
	}
	if c.JobLease <= 0 {
		return fmt.Errorf("JOB_LEASE must be > 0: %v", c.JobLease)
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be >= 1: %d", c.WorkerConcurrency)
	}
	if c.PriceDropThreshold <= 0 {
		return fmt.Errorf("PRICE_DROP_THRESHOLD must be > 0: %v", c.PriceDropThreshold)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvLogLevel(key string, defaultVal slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return level
}
