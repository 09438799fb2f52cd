package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from .env, YAML and the environment.
type Config struct {
	ServerPort     string
	RequestTimeout time.Duration

	EngineLatencyMin time.Duration
	EngineLatencyMax time.Duration
	EngineSeed       uint64 // 0 draws a fresh seed per request

	HistoryDefaultPoints int
	HistoryMaxPoints     int

	StrictValidation bool

	SnapshotBackend      string // in_memory, memcached or redis
	SnapshotTTL          time.Duration
	SnapshotPoints       int
	SnapshotWarmInterval time.Duration // 0 disables warming
	SnapshotWarmLengths  []int

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTimeout  time.Duration

	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerOpenTimeout      time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout time.Duration

	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	IdleThresholdReqPerMin int
	IdleWindow             time.Duration
	MinimumLifespan        time.Duration
	DegradedWindow         time.Duration
	DegradedErrorPct       int
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Engine struct {
		LatencyMin string `yaml:"latency_min"`
		LatencyMax string `yaml:"latency_max"`
		Seed       uint64 `yaml:"seed"`
	} `yaml:"engine"`

	History struct {
		DefaultPoints int `yaml:"default_points"`
		MaxPoints     int `yaml:"max_points"`
	} `yaml:"history"`

	Validation struct {
		Strict bool `yaml:"strict"`
	} `yaml:"validation"`

	Snapshots struct {
		Backend      string `yaml:"backend"`
		TTL          string `yaml:"ttl"`
		Points       int    `yaml:"points"`
		WarmInterval string `yaml:"warm_interval"`
		WarmLengths  []int  `yaml:"warm_lengths"`
		Memcached    struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Timeout  string `yaml:"timeout"`
		} `yaml:"redis"`
	} `yaml:"snapshots"`

	Reliability struct {
		RateLimitRPS            int    `yaml:"rate_limit_rps"`
		RateLimitBurst          int    `yaml:"rate_limit_burst"`
		BreakerFailureThreshold int    `yaml:"breaker_failure_threshold"`
		BreakerSuccessThreshold int    `yaml:"breaker_success_threshold"`
		BreakerOpenTimeout      string `yaml:"breaker_open_timeout"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow         string `yaml:"overload_window"`
		OverloadThresholdPct   int    `yaml:"overload_threshold_pct"`
		IdleThresholdReqPerMin int    `yaml:"idle_threshold_req_per_min"`
		IdleWindow             string `yaml:"idle_window"`
		MinimumLifespan        string `yaml:"minimum_lifespan"`
		DegradedWindow         string `yaml:"degraded_window"`
		DegradedErrorPct       int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`
}

// Load reads .env (optional), then config/{ENV_NAME}.yaml (default dev) relative
// to the working directory, then applies environment overrides. Call from project root.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := fromFile(fc)
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromFile(fc fileConfig) *Config {
	cfg := &Config{}

	cfg.ServerPort = orString(fc.Server.Port, "8080")
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)

	cfg.EngineLatencyMin = parseDurationOrZero(fc.Engine.LatencyMin, 400*time.Millisecond)
	cfg.EngineLatencyMax = parseDurationOrZero(fc.Engine.LatencyMax, 900*time.Millisecond)
	cfg.EngineSeed = fc.Engine.Seed

	cfg.HistoryDefaultPoints = orInt(fc.History.DefaultPoints, 50)
	cfg.HistoryMaxPoints = orInt(fc.History.MaxPoints, 5000)
	cfg.StrictValidation = fc.Validation.Strict

	cfg.SnapshotBackend = strings.ToLower(strings.TrimSpace(fc.Snapshots.Backend))
	if cfg.SnapshotBackend == "" {
		cfg.SnapshotBackend = "in_memory"
	}
	cfg.SnapshotTTL = parseDuration(fc.Snapshots.TTL, 10*time.Minute)
	cfg.SnapshotPoints = orInt(fc.Snapshots.Points, 30)
	cfg.SnapshotWarmInterval = parseDurationOrZero(fc.Snapshots.WarmInterval, 0)
	cfg.SnapshotWarmLengths = fc.Snapshots.WarmLengths
	if len(cfg.SnapshotWarmLengths) == 0 {
		cfg.SnapshotWarmLengths = []int{cfg.SnapshotPoints}
	}

	cfg.MemcachedAddrs = orString(strings.TrimSpace(fc.Snapshots.Memcached.Addrs), "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Snapshots.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = orInt(fc.Snapshots.Memcached.MaxIdleConns, 2)

	cfg.RedisAddr = orString(strings.TrimSpace(fc.Snapshots.Redis.Addr), "localhost:6379")
	cfg.RedisPassword = fc.Snapshots.Redis.Password
	cfg.RedisDB = fc.Snapshots.Redis.DB
	cfg.RedisTimeout = parseDuration(fc.Snapshots.Redis.Timeout, 500*time.Millisecond)

	cfg.RateLimitRPS = orInt(fc.Reliability.RateLimitRPS, 100)
	cfg.RateLimitBurst = orInt(fc.Reliability.RateLimitBurst, 250)
	cfg.BreakerFailureThreshold = orInt(fc.Reliability.BreakerFailureThreshold, 5)
	cfg.BreakerSuccessThreshold = orInt(fc.Reliability.BreakerSuccessThreshold, 2)
	cfg.BreakerOpenTimeout = parseDuration(fc.Reliability.BreakerOpenTimeout, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = orInt(fc.Lifecycle.OverloadThresholdPct, 80)
	cfg.IdleThresholdReqPerMin = orInt(fc.Lifecycle.IdleThresholdReqPerMin, 1)
	cfg.IdleWindow = parseDuration(fc.Lifecycle.IdleWindow, 5*time.Minute)
	cfg.MinimumLifespan = parseDuration(fc.Lifecycle.MinimumLifespan, 5*time.Minute)
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = orInt(fc.Lifecycle.DegradedErrorPct, 5)
	return cfg
}

// applyEnv overrides file values with SERVER_PORT, CACHE_BACKEND, MEMCACHED_ADDRS,
// REDIS_ADDR, REDIS_PASSWORD, ENGINE_LATENCY_MIN and ENGINE_LATENCY_MAX.
func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("SERVER_PORT")); v != "" {
		cfg.ServerPort = v
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("CACHE_BACKEND"))); v != "" {
		cfg.SnapshotBackend = v
	}
	if v := strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS")); v != "" {
		cfg.MemcachedAddrs = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	for name, dst := range map[string]*time.Duration{
		"ENGINE_LATENCY_MIN": &cfg.EngineLatencyMin,
		"ENGINE_LATENCY_MAX": &cfg.EngineLatencyMax,
	} {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_SEED")); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("ENGINE_SEED: %w", err)
		}
		cfg.EngineSeed = seed
	}
	return nil
}

func orString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orInt(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero and negative durations are returned as-is.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate checks cross-field constraints. A request timeout shorter than the
// slowest simulated inference is raised so /api/predict can complete.
func validate(cfg *Config) error {
	if cfg.EngineLatencyMin < 0 || cfg.EngineLatencyMax < cfg.EngineLatencyMin {
		return fmt.Errorf("engine latency range invalid: min %v, max %v", cfg.EngineLatencyMin, cfg.EngineLatencyMax)
	}
	if cfg.RequestTimeout <= cfg.EngineLatencyMax {
		cfg.RequestTimeout = cfg.EngineLatencyMax + time.Second
	}
	if cfg.HistoryDefaultPoints > cfg.HistoryMaxPoints {
		return fmt.Errorf("history.default_points %d exceeds history.max_points %d", cfg.HistoryDefaultPoints, cfg.HistoryMaxPoints)
	}
	if cfg.SnapshotPoints > cfg.HistoryMaxPoints {
		return fmt.Errorf("snapshots.points %d exceeds history.max_points %d", cfg.SnapshotPoints, cfg.HistoryMaxPoints)
	}
	for _, n := range cfg.SnapshotWarmLengths {
		if n < 0 || n > cfg.HistoryMaxPoints {
			return fmt.Errorf("snapshots.warm_lengths entry %d outside [0, %d]", n, cfg.HistoryMaxPoints)
		}
	}
	switch cfg.SnapshotBackend {
	case "in_memory", "memcached", "redis":
	default:
		return fmt.Errorf("snapshots.backend must be in_memory, memcached or redis, got %q", cfg.SnapshotBackend)
	}
	return nil
}
