package gpu

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by Config.Backend.
const (
	BackendAuto   = ""
	BackendHost   = "host"
	BackendWebGPU = "webgpu"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvBackend    = "DEVSORT_BACKEND"
	EnvWorkers    = "DEVSORT_WORKERS"
	EnvQueueDepth = "DEVSORT_QUEUE_DEPTH"
	EnvBudgetMB   = "DEVSORT_BUDGET_MB"
	EnvMapTimeout = "DEVSORT_MAP_TIMEOUT"
	EnvLogLevel   = "DEVSORT_LOG_LEVEL"
)

// EnvKeys lists every variable ConfigFromEnv understands.
var EnvKeys = []string{EnvBackend, EnvWorkers, EnvQueueDepth, EnvBudgetMB, EnvMapTimeout, EnvLogLevel}

// Config selects and tunes the device backend.
type Config struct {
	// Backend is BackendHost, BackendWebGPU or BackendAuto. Auto tries
	// WebGPU when it is compiled in and falls back to the host backend.
	Backend string

	// Workers is the number of batches a host launch is split into.
	// Zero picks a default from GOMAXPROCS.
	Workers int

	// QueueDepth is the number of operations a stream buffers before
	// enqueueing blocks.
	QueueDepth int

	// MemoryBudget caps host backend allocations in bytes. Zero means
	// unlimited.
	MemoryBudget int64

	// MapTimeout bounds how long a WebGPU readback waits for its
	// staging buffer to map.
	MapTimeout time.Duration

	// Logger, when set, replaces the package logger.
	Logger *slog.Logger
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendAuto,
		QueueDepth: 1024,
		MapTimeout: 2 * time.Second,
	}
}

// ConfigFromEnv starts from DefaultConfig and applies DEVSORT_* overrides.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv(EnvBackend); v != "" {
		cfg.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		cfg.Workers = n
	}
	if v := os.Getenv(EnvQueueDepth); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvQueueDepth, err)
		}
		cfg.QueueDepth = n
	}
	if v := os.Getenv(EnvBudgetMB); v != "" {
		mb, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvBudgetMB, err)
		}
		cfg.MemoryBudget = mb * 1024 * 1024
	}
	if v := os.Getenv(EnvMapTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvMapTimeout, err)
		}
		cfg.MapTimeout = d
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		cfg.Logger = NewTextLogger(level)
	}

	return cfg, cfg.Validate()
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendHost, BackendWebGPU:
	default:
		return newError(CodeInvalidValue, "config", "unknown backend %q", c.Backend)
	}
	if c.Workers < 0 {
		return newError(CodeInvalidValue, "config", "workers must be >= 0, got %d", c.Workers)
	}
	if c.QueueDepth < 1 {
		return newError(CodeInvalidValue, "config", "queue depth must be >= 1, got %d", c.QueueDepth)
	}
	if c.MemoryBudget < 0 {
		return newError(CodeInvalidValue, "config", "memory budget must be >= 0, got %d", c.MemoryBudget)
	}
	if c.MapTimeout <= 0 {
		return newError(CodeInvalidValue, "config", "map timeout must be > 0, got %v", c.MapTimeout)
	}
	return nil
}
