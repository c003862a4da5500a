package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации плагина.

type Config struct {
	Flags     FlagsConfig     `yaml:"flags"`
	Storage   StorageConfig   `yaml:"storage"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type FlagsConfig struct {
	IncreasingSizeStep float64            `yaml:"increasing_size_step"`
	MaxSize            float32            `yaml:"max_size"`
	WallClearance      map[string]float32 `yaml:"wall_clearance"` // материал -> отступ
}

type StorageConfig struct {
	Backend   string `yaml:"backend"` // memory | badger | redis
	DataPath  string `yaml:"data_path"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // пусто - in-memory шина
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type ServerConfig struct {
	MetricsPort int `yaml:"metrics_port"`
}

// APIConfig - админский REST API. Без jwt_secret доступны только эндпоинты чтения.
type APIConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Port          int    `yaml:"port"`
	JWTSecret     string `yaml:"jwt_secret"` // base64, не меньше 32 байт
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // host:port OTLP HTTP коллектора
	Insecure bool   `yaml:"insecure"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Flags: FlagsConfig{
			IncreasingSizeStep: 0.5,
			MaxSize:            5,
		},
		Storage: StorageConfig{
			Backend:   "badger",
			DataPath:  "data",
			RedisAddr: "localhost:6379",
			KeyPrefix: "flagsh:",
		},
		EventBus: EventBusConfig{
			Stream:    "FLAGS",
			Retention: 24,
			Buffer:    256,
		},
		API: APIConfig{
			Enabled:       true,
			TokenTTLHours: 24,
		},
		Telemetry: TelemetryConfig{
			Insecure: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetPort возвращает порт REST API с поддержкой fallback значений
func (a *APIConfig) GetPort() int {
	return getPortWithEnvFallback(a.Port, "FLAGSH_API_PORT", 8088)
}

// TokenTTL возвращает срок жизни токенов админского API
func (a *APIConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

// RetentionDuration возвращает срок хранения событий в JetStream
func (e *EventBusConfig) RetentionDuration() time.Duration {
	return time.Duration(e.Retention) * time.Hour
}

// GetMetricsPort возвращает порт Prometheus метрик с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "FLAGSH_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Validate проверяет значения, которые плагин не может исправить сам
func (c *Config) Validate() error {
	if c.Flags.IncreasingSizeStep <= 0 {
		return fmt.Errorf("flags.increasing_size_step must be positive, got %v", c.Flags.IncreasingSizeStep)
	}
	if c.Flags.MaxSize < 1 {
		return fmt.Errorf("flags.max_size must be at least 1, got %v", c.Flags.MaxSize)
	}
	switch c.Storage.Backend {
	case "memory", "badger", "redis":
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	return nil
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать путь из ENV FLAGSH_CONFIG; без него возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("FLAGSH_CONFIG")
		if path == "" {
			applyEnv(cfg)
			return cfg, cfg.Validate()
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv переопределяет адреса внешних сервисов из окружения
func applyEnv(cfg *Config) {
	if v := os.Getenv("FLAGSH_REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	if v := os.Getenv("FLAGSH_NATS_URL"); v != "" {
		cfg.EventBus.URL = v
	}
	if v := os.Getenv("FLAGSH_STORAGE"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("FLAGSH_JWT_SECRET"); v != "" {
		cfg.API.JWTSecret = v
	}
}
