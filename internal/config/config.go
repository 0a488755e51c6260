// Package config загружает конфигурацию сервиса из YAML файла и переменных окружения
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config содержит конфигурацию сервиса
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Data     DataConfig    `yaml:"data"`
	Sessions SessionConfig `yaml:"sessions"`
	Redis    RedisConfig   `yaml:"redis"`
	Log      LogConfig     `yaml:"log"`
	Reload   ReloadConfig  `yaml:"reload"`
}

// ServerConfig параметры HTTP сервера
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Gzip            bool          `yaml:"gzip"`
}

// DataConfig расположение наборов данных
type DataConfig struct {
	Root     string        `yaml:"root"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// SessionConfig время жизни сессий отношений
type SessionConfig struct {
	IdleTTL       time.Duration `yaml:"idle_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// RedisConfig подключение к Redis, пустой Addr отключает Redis
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig параметры логирования
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ReloadConfig ограничение частоты перестроений реестра
type ReloadConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// Default возвращает конфигурацию по умолчанию
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			Gzip:            true,
		},
		Data: DataConfig{
			Root:     "../Master_Data_Sets",
			Debounce: 500 * time.Millisecond,
		},
		Sessions: SessionConfig{
			IdleTTL:       2 * time.Hour,
			SweepInterval: time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
		Reload: ReloadConfig{
			PerSecond: 1,
			Burst:     3,
		},
	}
}

// Load читает YAML файл (если path не пуст) поверх значений по умолчанию
// и применяет переменные окружения
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	LoadFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFromEnv применяет переменные окружения
func LoadFromEnv(cfg *Config) {
	cfg.Server.Addr = getEnv("VIZLAB_ADDR", cfg.Server.Addr)
	cfg.Data.Root = getEnv("VIZLAB_DATA_ROOT", cfg.Data.Root)
	cfg.Data.Watch = getEnvBool("VIZLAB_WATCH", cfg.Data.Watch)
	cfg.Log.Level = getEnv("VIZLAB_LOG_LEVEL", cfg.Log.Level)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	var errs []error
	if c.Data.Root == "" {
		errs = append(errs, errors.New("data.root is required"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		errs = append(errs, errors.New("server timeouts must be positive"))
	}
	if c.Sessions.IdleTTL <= 0 || c.Sessions.SweepInterval <= 0 {
		errs = append(errs, errors.New("sessions.idle_ttl and sessions.sweep_interval must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// getEnv получает переменную окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленную переменную окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvBool получает логическую переменную окружения
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
