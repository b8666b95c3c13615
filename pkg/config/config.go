package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Config struct {
	Environment string `yaml:"environment" default:"production" validate:"oneof=development production test"`
	Log         struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Store struct {
		// Path of the embedded SQLite database file. The parent
		// directory is created on first open.
		Path string `yaml:"path" validate:"required"`
	} `yaml:"store"`
	Redis struct {
		Enabled  bool   `yaml:"enabled" default:"true"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		DB       int    `yaml:"db" default:"0"`
		Password string `yaml:"password"`
		Prefix   string `yaml:"prefix" default:"alphaspike"`
	} `yaml:"redis"`
	Vendor struct {
		Token        string        `yaml:"token"`
		BaseURL      string        `yaml:"base_url" default:"http://api.tushare.pro"`
		RateInterval time.Duration `yaml:"rate_interval" default:"1400ms"`
		Timeout      time.Duration `yaml:"timeout" default:"30s"`
		MaxRetries   int           `yaml:"max_retries" default:"3" validate:"gte=0"`
		RetryBackoff time.Duration `yaml:"retry_backoff" default:"500ms"`
		// Per-minute call quota on top of the fixed call interval.
		// Zero disables the quota guard.
		QuotaPerMinute int `yaml:"quota_per_minute" default:"45" validate:"gte=0"`
	} `yaml:"vendor"`
	Catalog struct {
		SSEFile      string `yaml:"sse_file" default:"data/sse.csv"`
		SZSEFile     string `yaml:"szse_file" default:"data/szse.csv"`
		ExcludeST    bool   `yaml:"exclude_st" default:"true"`
		MinListYears int    `yaml:"min_list_years" default:"2" validate:"gte=0"`
	} `yaml:"catalog"`
	Scan struct {
		Workers     int           `yaml:"workers" default:"6" validate:"gte=1"`
		SyncWorkers int           `yaml:"sync_workers" default:"4" validate:"gte=1"`
		CacheTTL    time.Duration `yaml:"cache_ttl" default:"336h"` // 14 days
		HoldingDays int           `yaml:"holding_days" default:"5" validate:"gte=1"`
	} `yaml:"scan"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled" default:"false"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"alphaspike.signals"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`
	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Schedule struct {
		Enabled bool   `yaml:"enabled" default:"false"`
		SyncAt  string `yaml:"sync_at" default:"17:30"` // local time, after A-share close
	} `yaml:"schedule"`
}

// Load reads and parses a YAML configuration file, applies defaults
// and validates required fields.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides secrets and
// connection settings from environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("TUSHARE_TOKEN"); v != "" {
		c.Vendor.Token = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}

	return c, nil
}
