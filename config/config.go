package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Store    StoreConfig    `mapstructure:"store"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Mpesa    MpesaConfig    `mapstructure:"mpesa"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// StoreConfig selects where the callback log lives.
type StoreConfig struct {
	Backend      string        `mapstructure:"backend"` // postgres, memory
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	NodeID       int64         `mapstructure:"node_id"` // snowflake node for record ids
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// DispatchConfig sizes the notification worker pool.
type DispatchConfig struct {
	Workers          int    `mapstructure:"workers"`
	QueueSize        int    `mapstructure:"queue_size"`
	UnresolvedPolicy string `mapstructure:"unresolved_policy"` // broadcast, drop
}

type GatewayConfig struct {
	SendBuffer   int           `mapstructure:"send_buffer"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// MpesaConfig holds the Daraja credentials used for STK push initiation.
type MpesaConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	ConsumerKey    string        `mapstructure:"consumer_key"`
	ConsumerSecret string        `mapstructure:"consumer_secret"`
	Shortcode      string        `mapstructure:"shortcode"`
	Passkey        string        `mapstructure:"passkey"`
	CallbackURL    string        `mapstructure:"callback_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether enough credentials are present to call the provider.
func (m MpesaConfig) Enabled() bool {
	return m.ConsumerKey != "" && m.ConsumerSecret != "" &&
		m.Shortcode != "" && m.Passkey != "" && m.CallbackURL != ""
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: MCR_ (M-Pesa Callback Relay).
// Nested keys use underscore: MCR_DATABASE_HOST, MCR_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "callbacks")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("store.backend", "postgres")
	v.SetDefault("store.write_timeout", "3s")
	v.SetDefault("store.node_id", 1)
	v.SetDefault("jwt.secret", "dev")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "mpesa-callback-relay")
	v.SetDefault("dispatch.workers", 4)
	v.SetDefault("dispatch.queue_size", 256)
	v.SetDefault("dispatch.unresolved_policy", "broadcast")
	v.SetDefault("gateway.send_buffer", 32)
	v.SetDefault("gateway.write_timeout", "10s")
	v.SetDefault("gateway.ping_interval", "25s")
	v.SetDefault("mpesa.base_url", "https://sandbox.safaricom.co.ke")
	v.SetDefault("mpesa.timeout", "15s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: MCR_DATABASE_HOST -> database.host
	v.SetEnvPrefix("MCR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("store.backend must be postgres or memory, got %q", c.Store.Backend)
	}
	switch c.Dispatch.UnresolvedPolicy {
	case "broadcast", "drop":
	default:
		return fmt.Errorf("dispatch.unresolved_policy must be broadcast or drop, got %q", c.Dispatch.UnresolvedPolicy)
	}
	if c.Dispatch.Workers < 1 {
		return fmt.Errorf("dispatch.workers must be at least 1")
	}
	if c.Dispatch.QueueSize < 1 {
		return fmt.Errorf("dispatch.queue_size must be at least 1")
	}
	if c.Store.WriteTimeout <= 0 {
		return fmt.Errorf("store.write_timeout must be positive")
	}
	if c.Gateway.SendBuffer < 1 {
		return fmt.Errorf("gateway.send_buffer must be at least 1")
	}
	if c.Gateway.WriteTimeout <= 0 {
		return fmt.Errorf("gateway.write_timeout must be positive")
	}
	if c.Gateway.PingInterval <= 0 {
		return fmt.Errorf("gateway.ping_interval must be positive")
	}
	return nil
}
