package main

import (
	"fmt"
	"os"
	"time"

	"codebattle/internal/common/cache"
	"codebattle/internal/common/mq"
	"codebattle/internal/common/storage"
	"codebattle/internal/match/sandbox"
	"codebattle/internal/match/service"
	"codebattle/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8090"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultTickPeriod      = time.Second
	defaultRunTimeout      = 2 * time.Minute
	defaultResultTopic     = "match.result.final"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
	JWTIssuer string `yaml:"jwtIssuer"`
}

// MatchConfig holds matchmaking and execution settings.
type MatchConfig struct {
	GameTypes  []string      `yaml:"gameTypes"`
	TickPeriod time.Duration `yaml:"tickPeriod"`
	RunTimeout time.Duration `yaml:"runTimeout"`
	HarnessDir string        `yaml:"harnessDir"`
}

// ResultConfig holds result fan-out settings.
type ResultConfig struct {
	Topic  string `yaml:"topic"`
	Bucket string `yaml:"replayBucket"`
}

// AppConfig is the root configuration.
type AppConfig struct {
	Server ServerConfig        `yaml:"server"`
	Logger logger.Config       `yaml:"logger"`
	Auth   AuthConfig          `yaml:"auth"`
	Redis  cache.RedisConfig   `yaml:"redis"`
	Kafka  mq.KafkaConfig      `yaml:"kafka"`
	MinIO  storage.MinIOConfig `yaml:"minio"`
	Match  MatchConfig         `yaml:"match"`
	Judge  sandbox.Config      `yaml:"judge"`
	Result ResultConfig        `yaml:"result"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	applyRedisDefaults(&cfg.Redis)
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth jwtSecret is required")
	}
	if len(cfg.Match.GameTypes) == 0 {
		return nil, fmt.Errorf("at least one game type is required")
	}
	if cfg.Judge.Command == "" {
		return nil, fmt.Errorf("judge command is required")
	}
	if cfg.Judge.WorkRoot == "" {
		return nil, fmt.Errorf("judge workRoot is required")
	}
	if cfg.Match.HarnessDir == "" {
		return nil, fmt.Errorf("match harnessDir is required")
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Match.TickPeriod == 0 {
		cfg.Match.TickPeriod = defaultTickPeriod
	}
	if cfg.Match.RunTimeout == 0 {
		cfg.Match.RunTimeout = defaultRunTimeout
	}
	if cfg.Result.Topic == "" {
		cfg.Result.Topic = defaultResultTopic
	}
	return &cfg, nil
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
}

func matcherConfig(cfg *AppConfig) service.MatcherConfig {
	return service.MatcherConfig{
		GameTypes:  cfg.Match.GameTypes,
		TickPeriod: cfg.Match.TickPeriod,
	}
}
