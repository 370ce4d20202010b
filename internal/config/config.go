package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/annel0/session-replay/internal/auth"
	"github.com/annel0/session-replay/internal/catalog"
	"github.com/annel0/session-replay/internal/logging"
	"github.com/annel0/session-replay/internal/timeref"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера воспроизведения
type Config struct {
	Recording RecordingConfig `yaml:"recording"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Scripting ScriptingConfig `yaml:"scripting"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	API       APIConfig       `yaml:"api"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type RecordingConfig struct {
	Dir      string `yaml:"dir"`
	Compress bool   `yaml:"compress"`
}

type ScheduleConfig struct {
	Enabled  bool     `yaml:"enabled"`
	TimeMode string   `yaml:"time_mode"`
	Files    []string `yaml:"files"`
}

type PlaybackConfig struct {
	DefaultMode string `yaml:"default_mode"`
}

type ScriptingConfig struct {
	Startup []string `yaml:"startup"`
}

// EventBusConfig - пустой URL означает шину в памяти
type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

// CatalogConfig - хранилище каталога выбирается полем backend. Без него при
// заданном redis_addr используется Redis, иначе BadgerDB по пути path
// (пустой путь - в памяти).
type CatalogConfig struct {
	Backend       string             `yaml:"backend"`
	Path          string             `yaml:"path"`
	RedisAddr     string             `yaml:"redis_addr"`
	RedisPassword string             `yaml:"redis_password"`
	RedisDB       int                `yaml:"redis_db"`
	Mongo         MongoCatalogConfig `yaml:"mongo"`
	Maria         MariaCatalogConfig `yaml:"maria"`
}

type MongoCatalogConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type MariaCatalogConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ResolvedBackend возвращает хранилище каталога с учётом значения по умолчанию
func (c *CatalogConfig) ResolvedBackend() string {
	if b := strings.ToLower(strings.TrimSpace(c.Backend)); b != "" {
		return b
	}
	if c.RedisAddr != "" {
		return catalog.BackendRedis
	}
	return catalog.BackendBadger
}

// Settings переводит секцию catalog в параметры catalog.Open
func (c *CatalogConfig) Settings() catalog.Settings {
	return catalog.Settings{
		Backend:    c.ResolvedBackend(),
		BadgerPath: c.Path,
		Redis: catalog.RedisConfig{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		},
		Mongo: catalog.MongoConfig{
			URI:        c.Mongo.URI,
			Database:   c.Mongo.Database,
			Collection: c.Mongo.Collection,
		},
		Maria: catalog.MariaConfig{
			Host:     c.Maria.Host,
			Port:     c.Maria.Port,
			Database: c.Maria.Database,
			Username: c.Maria.Username,
			Password: c.Maria.Password,
		},
	}
}

// APIConfig - REST API управления. Без пользователей аутентификация выключена.
type APIConfig struct {
	Enabled  bool        `yaml:"enabled"`
	Port     int         `yaml:"port"`
	Secret   string      `yaml:"secret"` // base64, не меньше 32 байт
	TokenTTL int         `yaml:"token_ttl_minutes"`
	Users    []auth.User `yaml:"users"`
}

type ServerConfig struct {
	TickRate    int     `yaml:"tick_rate_hz"`
	MetricsPort int     `yaml:"metrics_port"`
	SimStart    float64 `yaml:"simulation_start"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"`
}

type LoggingConfig struct {
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
	Dir          string `yaml:"dir"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Recording: RecordingConfig{Dir: "recordings"},
		Schedule:  ScheduleConfig{Enabled: true, TimeMode: timeref.ModeSimulationTime.String()},
		Playback:  PlaybackConfig{DefaultMode: timeref.ModeRecordedTime.String()},
		EventBus:  EventBusConfig{Stream: "REPLAY", Retention: 24},
		API:       APIConfig{Enabled: true, TokenTTL: 24 * 60},
		Server:    ServerConfig{TickRate: 60},
		Telemetry: TelemetryConfig{ServiceName: "session-replay", Endpoint: "localhost:4318"},
		Logging:   LoggingConfig{ConsoleLevel: "INFO", FileLevel: "TRACE", Dir: "logs"},
	}
}

// GetMetricsPort возвращает порт Prometheus метрик с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "REPLAY_METRICS_PORT", 2112)
}

// GetPort возвращает порт REST API с поддержкой fallback значений
func (a *APIConfig) GetPort() int {
	return getPortWithEnvFallback(a.Port, "REPLAY_API_PORT", 8088)
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

// ScheduleMode разбирает режим времени планировщика
func (c *Config) ScheduleMode() (timeref.Mode, error) {
	return timeref.ParseMode(c.Schedule.TimeMode)
}

// PlaybackMode разбирает режим воспроизведения по умолчанию
func (c *Config) PlaybackMode() (timeref.Mode, error) {
	return timeref.ParseMode(c.Playback.DefaultMode)
}

// LoggingOptions переводит секцию logging в параметры пакета logging
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Dir:          c.Logging.Dir,
		ConsoleLevel: logging.ParseLevel(c.Logging.ConsoleLevel),
		FileLevel:    logging.ParseLevel(c.Logging.FileLevel),
	}
}

// Validate проверяет значения, которые нельзя молча заменить дефолтом
func (c *Config) Validate() error {
	if _, err := c.ScheduleMode(); err != nil {
		return fmt.Errorf("schedule.time_mode: %w", err)
	}
	if _, err := c.PlaybackMode(); err != nil {
		return fmt.Errorf("playback.default_mode: %w", err)
	}
	if c.Server.TickRate <= 0 {
		return fmt.Errorf("server.tick_rate_hz must be positive, got %d", c.Server.TickRate)
	}
	for i, u := range c.API.Users {
		if u.Username == "" || u.PasswordHash == "" {
			return fmt.Errorf("api.users[%d]: username and password_hash are required", i)
		}
	}
	switch c.Catalog.ResolvedBackend() {
	case catalog.BackendBadger, catalog.BackendMongo, catalog.BackendMaria:
	case catalog.BackendRedis:
		if c.Catalog.RedisAddr == "" {
			return fmt.Errorf("catalog.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("catalog.backend: unknown backend %q", c.Catalog.Backend)
	}
	if c.EventBus.URL != "" && strings.TrimSpace(c.EventBus.Stream) == "" {
		return fmt.Errorf("eventbus.stream is required with eventbus.url")
	}
	return nil
}

// Load читает YAML файл конфигурации поверх Default().
// Если path == "", пытается прочитать из ENV REPLAY_CONFIG, иначе
// возвращает дефолты.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("REPLAY_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
