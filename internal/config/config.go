package config

import (
	"bytes"
	_ "embed"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig      `mapstructure:"http"`
	Log        LogConfig       `mapstructure:"log"`
	MySQL      DatabaseConfig  `mapstructure:"mysql"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Queue      QueueConfig     `mapstructure:"queue"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	Vault      VaultConfig     `mapstructure:"vault"`
	Webhook    WebhookConfig   `mapstructure:"webhook"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// QueueConfig tunes the dispatch queue and its worker pool.
type QueueConfig struct {
	Concurrency  int           `mapstructure:"concurrency"`   // consumer goroutines, default 5
	MaxAttempts  int           `mapstructure:"max_attempts"`  // total attempts per job, default 3
	RetryBase    time.Duration `mapstructure:"retry_base"`    // first backoff delay
	RetryCap     time.Duration `mapstructure:"retry_cap"`     // backoff ceiling
	SendTimeout  time.Duration `mapstructure:"send_timeout"`  // per provider call
	Retention    time.Duration `mapstructure:"retention"`     // completed job retention
	SendRPS      int           `mapstructure:"send_rps"`      // provider-facing rate ceiling
	SendBurst    int           `mapstructure:"send_burst"`    // limiter burst
	BreakerFails int           `mapstructure:"breaker_fails"` // consecutive failures before open
	BreakerOpen  time.Duration `mapstructure:"breaker_open"`  // open window per connector
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type VaultConfig struct {
	Secret string `mapstructure:"secret"`
}

type WebhookConfig struct {
	VerifyToken string `mapstructure:"verify_token"`
}

type RateLimitConfig struct {
	RPS   int `mapstructure:"rps"`
	Burst int `mapstructure:"burst"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (MSGGW_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (MSGGW_*)
	v.SetEnvPrefix("MSGGW")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
