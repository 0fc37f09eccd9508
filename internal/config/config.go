// Package config loads the daemon's YAML configuration with environment
// variable overrides, modeled on the teacher's internal/config/config.go
// singleton-with-overrides pattern.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/auditwriter"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/reconciler"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/wirecapture"
)

// Config is the root configuration document for cmd/recond.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Redis       RedisConfig       `yaml:"redis"`
	Reconciler  ReconcilerConfig  `yaml:"reconciler"`
	AuditLog    AuditLogConfig    `yaml:"audit_log"`
	WireCapture WireCaptureConfig `yaml:"wire_capture"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig configures the HTTP listener serving /metrics and /healthz.
type ServerConfig struct {
	Port               string `yaml:"port"`
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec"`
}

// RedisConfig configures the pub/sub feed adapter (internal/ingest/redisfeed).
type RedisConfig struct {
	Addr            string `yaml:"addr"`
	PrimaryChannel  string `yaml:"primary_channel"`
	DropCopyChannel string `yaml:"dropcopy_channel"`
}

// ReconcilerConfig mirrors reconciler.Config in wire-friendly units
// (milliseconds, not time.Duration, so the YAML stays plain integers).
type ReconcilerConfig struct {
	GracePeriodMs         int64 `yaml:"grace_period_ms"`
	GapRecheckPeriodMs    int64 `yaml:"gap_recheck_period_ms"`
	DivergenceDedupMs     int64 `yaml:"divergence_dedup_window_ms"`
	QtyTolerance          int64 `yaml:"qty_tolerance"`
	PxTolerance           int64 `yaml:"px_tolerance"`
	TimingSlackMs         int64 `yaml:"timing_slack_ms"`
	GapCloseTimeoutMs     int64 `yaml:"gap_close_timeout_ms"`
	EnableWindowedRecon   bool  `yaml:"enable_windowed_recon"`
	EnableGapSuppression  bool  `yaml:"enable_gap_suppression"`
}

// AuditLogConfig mirrors auditwriter.Config in wire-friendly units.
type AuditLogConfig struct {
	OutputDir             string `yaml:"output_dir"`
	RotateMaxBytes        int64  `yaml:"rotate_max_bytes"`
	RotateIntervalSec     int64  `yaml:"rotate_interval_sec"`
	BatchMaxRecords       int    `yaml:"batch_max_records"`
	BatchMaxBytes         int    `yaml:"batch_max_bytes"`
	FlushIdleTimeoutMs    int64  `yaml:"flush_idle_timeout_ms"`
	StagingBufferBytes    int    `yaml:"staging_buffer_bytes"`
	RecoveryBackoffMinMs  int64  `yaml:"recovery_backoff_min_ms"`
	RecoveryBackoffMaxMs  int64  `yaml:"recovery_backoff_max_ms"`
}

// WireCaptureConfig mirrors wirecapture.Config in wire-friendly units.
type WireCaptureConfig struct {
	OutputDir          string `yaml:"output_dir"`
	RotateIntervalSec  int64  `yaml:"rotate_interval_sec"`
	RotateMaxBytes     int64  `yaml:"rotate_max_bytes"`
	BatchRecords       int    `yaml:"batch_records"`
	BatchBytes         int    `yaml:"batch_bytes"`
	SubmitRingCapacity int    `yaml:"submit_ring_capacity"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ToReconcilerConfig converts to the reconciler's native duration-typed
// Config, filling in spec.md's documented defaults for any zero duration
// field. QtyTolerance, PxTolerance, EnableWindowedRecon and
// EnableGapSuppression are copied as given, so zero/false disables them.
func (c ReconcilerConfig) ToReconcilerConfig() reconciler.Config {
	def := reconciler.DefaultConfig()
	cfg := def
	if c.GracePeriodMs > 0 {
		cfg.GracePeriodNanos = c.GracePeriodMs * int64(time.Millisecond)
	}
	if c.GapRecheckPeriodMs > 0 {
		cfg.GapRecheckPeriodNanos = c.GapRecheckPeriodMs * int64(time.Millisecond)
	}
	if c.DivergenceDedupMs > 0 {
		cfg.DivergenceDedupWindowNanos = c.DivergenceDedupMs * int64(time.Millisecond)
	}
	cfg.QtyTolerance = c.QtyTolerance
	cfg.PxTolerance = c.PxTolerance
	if c.TimingSlackMs > 0 {
		cfg.TimingSlackNanos = c.TimingSlackMs * int64(time.Millisecond)
	}
	if c.GapCloseTimeoutMs > 0 {
		cfg.GapCloseTimeoutNanos = c.GapCloseTimeoutMs * int64(time.Millisecond)
	}
	cfg.EnableWindowedRecon = c.EnableWindowedRecon
	cfg.EnableGapSuppression = c.EnableGapSuppression
	return cfg
}

// ToAuditWriterConfig converts to auditwriter's native Config.
func (c AuditLogConfig) ToAuditWriterConfig() auditwriter.Config {
	cfg := auditwriter.DefaultConfig()
	if c.OutputDir != "" {
		cfg.OutputDir = c.OutputDir
	}
	if c.RotateMaxBytes > 0 {
		cfg.RotateMaxBytes = c.RotateMaxBytes
	}
	if c.RotateIntervalSec > 0 {
		cfg.RotateInterval = time.Duration(c.RotateIntervalSec) * time.Second
	}
	if c.BatchMaxRecords > 0 {
		cfg.BatchMaxRecords = c.BatchMaxRecords
	}
	if c.BatchMaxBytes > 0 {
		cfg.BatchMaxBytes = c.BatchMaxBytes
	}
	if c.FlushIdleTimeoutMs > 0 {
		cfg.FlushIdleTimeout = time.Duration(c.FlushIdleTimeoutMs) * time.Millisecond
	}
	if c.StagingBufferBytes > 0 {
		cfg.StagingBufferBytes = c.StagingBufferBytes
	}
	if c.RecoveryBackoffMinMs > 0 {
		cfg.RecoveryBackoffMin = time.Duration(c.RecoveryBackoffMinMs) * time.Millisecond
	}
	if c.RecoveryBackoffMaxMs > 0 {
		cfg.RecoveryBackoffMax = time.Duration(c.RecoveryBackoffMaxMs) * time.Millisecond
	}
	return cfg
}

// ToWireCaptureConfig converts to wirecapture's native Config.
func (c WireCaptureConfig) ToWireCaptureConfig() wirecapture.Config {
	cfg := wirecapture.DefaultConfig()
	if c.OutputDir != "" {
		cfg.OutputDir = c.OutputDir
	}
	if c.RotateIntervalSec > 0 {
		cfg.RotateInterval = time.Duration(c.RotateIntervalSec) * time.Second
	}
	if c.RotateMaxBytes > 0 {
		cfg.RotateMaxBytes = c.RotateMaxBytes
	}
	if c.BatchRecords > 0 {
		cfg.BatchRecords = c.BatchRecords
	}
	if c.BatchBytes > 0 {
		cfg.BatchBytes = c.BatchBytes
	}
	if c.SubmitRingCapacity > 0 {
		cfg.SubmitRingCapacity = c.SubmitRingCapacity
	}
	return cfg
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the process-wide singleton Config, loading it from
// CONFIG_PATH (default "config.yaml") on first call.
func Get() *Config {
	once.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		cfg.applyDefaults()
		instance = cfg
	})
	return instance
}

// LoadConfig reads and parses the YAML document at path.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Port = getEnv("RECOND_PORT", c.Server.Port)
	if v := getEnvInt("RECOND_SHUTDOWN_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ShutdownTimeoutSec = v
	}

	c.Redis.Addr = getEnv("RECOND_REDIS_ADDR", c.Redis.Addr)
	c.Redis.PrimaryChannel = getEnv("RECOND_PRIMARY_CHANNEL", c.Redis.PrimaryChannel)
	c.Redis.DropCopyChannel = getEnv("RECOND_DROPCOPY_CHANNEL", c.Redis.DropCopyChannel)

	if v := getEnvInt64("RECOND_GRACE_PERIOD_MS", 0); v > 0 {
		c.Reconciler.GracePeriodMs = v
	}
	if v := getEnvInt64("RECOND_GAP_RECHECK_MS", 0); v > 0 {
		c.Reconciler.GapRecheckPeriodMs = v
	}

	c.AuditLog.OutputDir = getEnv("RECOND_AUDIT_DIR", c.AuditLog.OutputDir)
	c.WireCapture.OutputDir = getEnv("RECOND_CAPTURE_DIR", c.WireCapture.OutputDir)

	c.Logging.Level = getEnv("RECOND_LOG_LEVEL", c.Logging.Level)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ShutdownTimeoutSec == 0 {
		c.Server.ShutdownTimeoutSec = 30
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PrimaryChannel == "" {
		c.Redis.PrimaryChannel = "execreports.primary"
	}
	if c.Redis.DropCopyChannel == "" {
		c.Redis.DropCopyChannel = "execreports.dropcopy"
	}
	if c.AuditLog.OutputDir == "" {
		c.AuditLog.OutputDir = "./audit_logs"
	}
	if c.WireCapture.OutputDir == "" {
		c.WireCapture.OutputDir = "./capture"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

// SlogLevel maps the configured log level name to a slog.Level,
// defaulting to Info on an unrecognized value.
func (c LoggingConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
