package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Order    OrderConfig    `yaml:"order"`
	Redis    RedisConfig    `yaml:"redis"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// LogConfig selects the zap level and encoder. Encoding is "json" or "console".
type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type OrderConfig struct {
	ReservationTxTimeout time.Duration `yaml:"reservationTxTimeout"`
	MaxRetryAttempts     int           `yaml:"maxRetryAttempts"`
	MaxCartItems         int           `yaml:"maxCartItems"`
}

type RedisConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	IdempotencyTTL time.Duration `yaml:"idempotencyTTL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "10s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "30s")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 3306)
	v.SetDefault("DB_USER", "larder")
	v.SetDefault("DB_PASSWORD", "secret")
	v.SetDefault("DB_NAME", "larder")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_ENCODING", "json")
	v.SetDefault("ORDER_RESERVATION_TX_TIMEOUT", "5s")
	v.SetDefault("ORDER_MAX_RETRY_ATTEMPTS", 3)
	v.SetDefault("ORDER_MAX_CART_ITEMS", 100)
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_IDEMPOTENCY_TTL", "24h")
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real env vars take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

// Override replaces the fields of base whose env vars are explicitly set.
func Override(base *Config) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setFromConfig(v, base)

	return fromViper(v)
}

func setFromConfig(v *viper.Viper, c *Config) {
	setDefaults(v)
	set := func(key string, value any, zero bool) {
		if !zero {
			v.SetDefault(key, value)
		}
	}
	set("SERVER_PORT", c.Server.Port, c.Server.Port == 0)
	set("SERVER_READ_TIMEOUT", c.Server.ReadTimeout.String(), c.Server.ReadTimeout == 0)
	set("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout.String(), c.Server.WriteTimeout == 0)
	set("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout.String(), c.Server.IdleTimeout == 0)
	set("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout.String(), c.Server.ShutdownTimeout == 0)
	set("DB_HOST", c.Database.Host, c.Database.Host == "")
	set("DB_PORT", c.Database.Port, c.Database.Port == 0)
	set("DB_USER", c.Database.User, c.Database.User == "")
	set("DB_PASSWORD", c.Database.Password, c.Database.Password == "")
	set("DB_NAME", c.Database.Name, c.Database.Name == "")
	set("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns, c.Database.MaxOpenConns == 0)
	set("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns, c.Database.MaxIdleConns == 0)
	set("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime.String(), c.Database.ConnMaxLifetime == 0)
	set("LOG_LEVEL", c.Log.Level, c.Log.Level == "")
	set("LOG_ENCODING", c.Log.Encoding, c.Log.Encoding == "")
	set("ORDER_RESERVATION_TX_TIMEOUT", c.Order.ReservationTxTimeout.String(), c.Order.ReservationTxTimeout == 0)
	set("ORDER_MAX_RETRY_ATTEMPTS", c.Order.MaxRetryAttempts, c.Order.MaxRetryAttempts == 0)
	set("ORDER_MAX_CART_ITEMS", c.Order.MaxCartItems, c.Order.MaxCartItems == 0)
	set("REDIS_ENABLED", c.Redis.Enabled, !c.Redis.Enabled)
	set("REDIS_ADDR", c.Redis.Addr, c.Redis.Addr == "")
	set("REDIS_PASSWORD", c.Redis.Password, c.Redis.Password == "")
	set("REDIS_DB", c.Redis.DB, c.Redis.DB == 0)
	set("REDIS_IDEMPOTENCY_TTL", c.Redis.IdempotencyTTL.String(), c.Redis.IdempotencyTTL == 0)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var parseErr error
	duration := func(key string) time.Duration {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("parsing %s: %w", key, err)
		}
		return d
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetInt("SERVER_PORT"),
			ReadTimeout:     duration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    duration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     duration("SERVER_IDLE_TIMEOUT"),
			ShutdownTimeout: duration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: duration("DB_CONN_MAX_LIFETIME"),
		},
		Log: LogConfig{
			Level:    v.GetString("LOG_LEVEL"),
			Encoding: v.GetString("LOG_ENCODING"),
		},
		Order: OrderConfig{
			ReservationTxTimeout: duration("ORDER_RESERVATION_TX_TIMEOUT"),
			MaxRetryAttempts:     v.GetInt("ORDER_MAX_RETRY_ATTEMPTS"),
			MaxCartItems:         v.GetInt("ORDER_MAX_CART_ITEMS"),
		},
		Redis: RedisConfig{
			Enabled:        v.GetBool("REDIS_ENABLED"),
			Addr:           v.GetString("REDIS_ADDR"),
			Password:       v.GetString("REDIS_PASSWORD"),
			DB:             v.GetInt("REDIS_DB"),
			IdempotencyTTL: duration("REDIS_IDEMPOTENCY_TTL"),
		},
	}
	if parseErr != nil {
		return nil, parseErr
	}

	return cfg, nil
}
