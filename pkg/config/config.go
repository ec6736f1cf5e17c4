// Package config is the orchestrator's process configuration: the
// tunables the orchestrator needs (refresh intervals, worker-pool
// width, executor timeouts, the serve loop's idle period) plus the
// logging and data-directory settings every cephadmd process needs at
// startup. Persistent flags are bound at cobra.OnInitialize the same
// way log-level/log-json are resolved, generalized so every value
// resolves flag > environment > default instead of flag-only.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cuemby/cephadmd/pkg/hostcache"
	"github.com/cuemby/cephadmd/pkg/log"
)

// Config holds every process-wide tunable.
type Config struct {
	DataDir string

	LogLevel string
	LogJSON  bool

	HostCheckInterval  time.Duration
	DaemonCacheTimeout time.Duration
	DeviceCacheTimeout time.Duration

	WorkerWidth    int
	ExecTimeout    time.Duration
	DeployTimeout  time.Duration
	ConnectTimeout time.Duration

	WakeTimeout time.Duration

	SSHUser string
	SSHPort int

	// MetricsAddr is the listen address for the /metrics, /health,
	// /ready, and /live endpoints. Empty disables the listener.
	MetricsAddr string
}

// Default returns the stock tunables: 600s host-check
// and daemon-cache timeouts, 1800s device-cache timeout, worker width
// 10, 30s executor/connect timeout, 600s serve-loop idle period.
func Default() Config {
	return Config{
		DataDir:            "/var/lib/cephadmd",
		LogLevel:           "info",
		LogJSON:            false,
		HostCheckInterval:  600 * time.Second,
		DaemonCacheTimeout: 600 * time.Second,
		DeviceCacheTimeout: 1800 * time.Second,
		WorkerWidth:        10,
		ExecTimeout:        30 * time.Second,
		DeployTimeout:      120 * time.Second,
		ConnectTimeout:     30 * time.Second,
		WakeTimeout:        600 * time.Second,
		SSHUser:            "root",
		SSHPort:            22,
		MetricsAddr:        ":9283",
	}
}

// HostCacheConfig adapts this Config into the hostcache package's Config
// shape.
func (c Config) HostCacheConfig() hostcache.Config {
	return hostcache.Config{
		HostCheckInterval:  c.HostCheckInterval,
		DaemonCacheTimeout: c.DaemonCacheTimeout,
		DeviceCacheTimeout: c.DeviceCacheTimeout,
	}
}

// LogConfig adapts this Config into pkg/log's Config shape.
func (c Config) LogConfig() log.Config {
	return log.Config{Level: log.Level(c.LogLevel), JSONOutput: c.LogJSON}
}

// FromEnv overlays environment variables onto a base Config: every
// variable that is set replaces base's value. Callers apply explicitly
// set flags afterwards, so the precedence is flag > environment >
// default. Variable names follow
// the upper-snake-case CEPHADMD_ prefix convention.
func FromEnv(base Config) Config {
	c := base
	if v := os.Getenv("CEPHADMD_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("CEPHADMD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("CEPHADMD_LOG_JSON"); v != "" {
		c.LogJSON = v == "true" || v == "1"
	}
	if v := envDuration("CEPHADMD_HOST_CHECK_INTERVAL"); v > 0 {
		c.HostCheckInterval = v
	}
	if v := envDuration("CEPHADMD_DAEMON_CACHE_TIMEOUT"); v > 0 {
		c.DaemonCacheTimeout = v
	}
	if v := envDuration("CEPHADMD_DEVICE_CACHE_TIMEOUT"); v > 0 {
		c.DeviceCacheTimeout = v
	}
	if v := envInt("CEPHADMD_WORKER_WIDTH"); v > 0 {
		c.WorkerWidth = v
	}
	if v := envDuration("CEPHADMD_EXEC_TIMEOUT"); v > 0 {
		c.ExecTimeout = v
	}
	if v := envDuration("CEPHADMD_WAKE_TIMEOUT"); v > 0 {
		c.WakeTimeout = v
	}
	if v := os.Getenv("CEPHADMD_SSH_USER"); v != "" {
		c.SSHUser = v
	}
	if v := envInt("CEPHADMD_SSH_PORT"); v > 0 {
		c.SSHPort = v
	}
	if v := os.Getenv("CEPHADMD_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	return c
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
