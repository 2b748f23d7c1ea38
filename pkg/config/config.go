package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"QuotePull/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"production" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Provider struct {
		BaseURL             string        `yaml:"base_url" default:"https://www.alphavantage.co/query" validate:"required,url"`
		APIKey              string        `yaml:"api_key" validate:"required"`
		Timeout             time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
		MaxAttempts         int           `yaml:"max_attempts" default:"5" validate:"gte=1"`
		BackoffDelay        time.Duration `yaml:"backoff_delay" default:"5s" validate:"gte=0"`
		RateLimitDelay      time.Duration `yaml:"rate_limit_delay" default:"20s" validate:"gte=0"`
		MaxRateLimitRetries int           `yaml:"max_rate_limit_retries" validate:"gte=0"`
		PacingDelay         time.Duration `yaml:"pacing_delay" default:"12s" validate:"gte=0"`
		MaxDays             int           `yaml:"max_days" default:"3" validate:"gte=1"`
	} `yaml:"provider"`
	Symbols []string `yaml:"symbols" validate:"min=1"`
	Storage struct {
		Backend   string `yaml:"backend" default:"postgres" validate:"oneof=postgres sqlite clickhouse"`
		Table     string `yaml:"table" default:"stock_quotes" validate:"required"`
		ChunkSize int    `yaml:"chunk_size" default:"500" validate:"gte=1"`
	} `yaml:"storage"`
	Postgres struct {
		Host           string        `yaml:"host" default:"postgres"`
		Port           int           `yaml:"port" default:"5432"`
		User           string        `yaml:"user" default:"airflow"`
		Password       string        `yaml:"password" default:"airflow"`
		Database       string        `yaml:"database" default:"airflow"`
		SSLMode        string        `yaml:"sslmode" default:"disable"`
		ConnectTimeout time.Duration `yaml:"connect_timeout" default:"10s"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path" default:"quotes.db"`
	} `yaml:"sqlite"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"default"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Host     string        `yaml:"host" default:"localhost"`
		Port     int           `yaml:"port" default:"6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"quotepull"`
		LockKey  string        `yaml:"lock_key" default:"run-lock"`
		LockTTL  time.Duration `yaml:"lock_ttl" default:"30m" validate:"gt=0"`
	} `yaml:"redis"`
	Metrics struct {
		PushgatewayURL string `yaml:"pushgateway_url" validate:"omitempty,url"`
		Job            string `yaml:"job" default:"quotepull"`
	} `yaml:"metrics"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file. A missing file is not an
// error; defaults are used instead.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if len(c.Symbols) == 0 {
		c.Symbols = []string{"IBM"}
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML, overrides with environment variables
// and validates the result.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnv(c, os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func applyEnv(c *Config, getenv func(string) string) {
	if v := getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := getenv("ALPHA_VANTAGE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := getenv("STOCK_SYMBOLS"); v != "" {
		c.Symbols = util.SplitList(v)
	}
	if v := getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := getenv("POSTGRES_HOST"); v != "" {
		c.Postgres.Host = v
	}
	c.Postgres.Port = util.ParseIntDefault(getenv("POSTGRES_PORT"), c.Postgres.Port)
	if v := getenv("POSTGRES_USER"); v != "" {
		c.Postgres.User = v
	}
	if v := getenv("POSTGRES_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := getenv("POSTGRES_DB"); v != "" {
		c.Postgres.Database = v
	}
	if v := getenv("SQLITE_PATH"); v != "" {
		c.SQLite.Path = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v, err := strconv.ParseBool(getenv("REDIS_ENABLED")); err == nil {
		c.Redis.Enabled = v
	}
	if v := getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	c.Redis.Port = util.ParseIntDefault(getenv("REDIS_PORT"), c.Redis.Port)
	if v := getenv("PUSHGATEWAY_URL"); v != "" {
		c.Metrics.PushgatewayURL = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param())
		}
		return err
	}
	return nil
}
