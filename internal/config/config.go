package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Environment    string   `koanf:"env"`
	Port           string   `koanf:"port"`
	AllowedOrigins []string `koanf:"allowed_origins"` // CORS origins; FRONTEND_URL is used when empty
	FrontendURL    string   `koanf:"frontend_url"`
	RedisURI       string   `koanf:"redis_uri"`
	RateLimitRPM   int      `koanf:"rate_limit_per_minute"`
	TrustedProxies []string `koanf:"trusted_proxies"` // CIDRs whose X-Forwarded-For is honoured

	Log     LogConfig     `koanf:"log"`
	Store   StoreConfig   `koanf:"store"`
	Auth    AuthConfig    `koanf:"auth"`
	Journal JournalConfig `koanf:"journal"`
	Weather WeatherConfig `koanf:"weather"`
	Media   MediaConfig   `koanf:"media"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// StoreConfig selects the journal persistence backend.
type StoreConfig struct {
	Driver        string `koanf:"driver"` // mongo | postgres | memory
	MongoURI      string `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`
	PostgresURI   string `koanf:"postgres_uri"`
}

type AuthConfig struct {
	JWTSecret       string `koanf:"jwt_secret"`
	SessionsEnabled bool   `koanf:"sessions_enabled"` // accept Redis session tokens as well as JWTs
}

// JournalConfig holds the feature flags read by the mutation engine.
type JournalConfig struct {
	EnrichmentEnabled     bool `koanf:"enrichment_enabled"`
	MediaCallbacksEnabled bool `koanf:"media_callbacks_enabled"`
}

type WeatherConfig struct {
	BaseURL           string        `koanf:"base_url"`
	APIKey            string        `koanf:"api_key"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerMinute int           `koanf:"requests_per_minute"`
	CacheTTL          time.Duration `koanf:"cache_ttl"` // 0 disables the Redis lookup cache
}

type MediaConfig struct {
	Driver              string        `koanf:"driver"` // http | cloudinary | none
	BaseURL             string        `koanf:"base_url"`
	Timeout             time.Duration `koanf:"timeout"`
	CloudinaryName      string        `koanf:"cloudinary_name"`
	CloudinaryAPIKey    string        `koanf:"cloudinary_api_key"`
	CloudinaryAPISecret string        `koanf:"cloudinary_api_secret"`
}

// DefaultConfigPaths are searched in order when CONFIG_PATH is not set.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tripjournal/config.yaml",
}

const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Environment:  "development",
		Port:         "8080",
		FrontendURL:  "http://localhost:3000",
		RedisURI:     "redis://localhost:6379/0",
		RateLimitRPM: 120,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Driver:        "mongo",
			MongoURI:      "mongodb://localhost:27017/tripjournal",
			MongoDatabase: "tripjournal",
			PostgresURI:   "postgres://localhost:5432/tripjournal?sslmode=disable",
		},
		Auth: AuthConfig{
			SessionsEnabled: true,
		},
		Journal: JournalConfig{
			EnrichmentEnabled:     true,
			MediaCallbacksEnabled: true,
		},
		Weather: WeatherConfig{
			BaseURL:           "https://api.openweathermap.org",
			Timeout:           5 * time.Second,
			RequestsPerMinute: 60,
		},
		Media: MediaConfig{
			Driver:  "http",
			BaseURL: "http://tripmedia:9096",
			Timeout: 5 * time.Second,
		},
	}
}

// envMappings maps flat environment variable names onto koanf paths.
var envMappings = map[string]string{
	"env":                     "env",
	"port":                    "port",
	"allowed_origins":         "allowed_origins",
	"frontend_url":            "frontend_url",
	"redis_uri":               "redis_uri",
	"rate_limit_per_minute":   "rate_limit_per_minute",
	"trusted_proxies":         "trusted_proxies",
	"log_level":               "log.level",
	"log_format":              "log.format",
	"store_driver":            "store.driver",
	"mongodb_uri":             "store.mongo_uri",
	"mongo_uri":               "store.mongo_uri",
	"mongo_db":                "store.mongo_database",
	"postgres_uri":            "store.postgres_uri",
	"jwt_secret":              "auth.jwt_secret",
	"auth_sessions_enabled":   "auth.sessions_enabled",
	"enrichment_enabled":      "journal.enrichment_enabled",
	"media_callbacks_enabled": "journal.media_callbacks_enabled",
	"openweather_base_url":    "weather.base_url",
	"openweather_api_key":     "weather.api_key",
	"openweather_timeout":     "weather.timeout",
	"openweather_rpm":         "weather.requests_per_minute",
	"enrichment_cache_ttl":    "weather.cache_ttl",
	"media_driver":            "media.driver",
	"tripmedia_base_url":      "media.base_url",
	"tripmedia_timeout":       "media.timeout",
	"cloudinary_cloud_name":   "media.cloudinary_name",
	"cloudinary_api_key":      "media.cloudinary_api_key",
	"cloudinary_api_secret":   "media.cloudinary_api_secret",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load layers defaults, an optional YAML file and environment variables, in
// that order of increasing priority.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	for _, key := range []string{"allowed_origins", "trusted_proxies"} {
		if raw, ok := k.Get(key).(string); ok {
			if err := k.Set(key, parseOrigins(raw)); err != nil {
				return nil, fmt.Errorf("failed to set %s: %w", key, err)
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if len(cfg.AllowedOrigins) == 0 && strings.TrimSpace(cfg.FrontendURL) != "" {
		cfg.AllowedOrigins = []string{strings.TrimSpace(cfg.FrontendURL)}
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Media.Driver = strings.ToLower(strings.TrimSpace(cfg.Media.Driver))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "mongo":
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("store.mongo_uri is required for the mongo driver"))
		}
	case "postgres":
		if c.Store.PostgresURI == "" {
			errs = append(errs, errors.New("store.postgres_uri is required for the postgres driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	switch c.Media.Driver {
	case "http":
		if c.Media.BaseURL == "" {
			errs = append(errs, errors.New("media.base_url is required for the http media driver"))
		}
	case "cloudinary":
		if c.Media.CloudinaryName == "" || c.Media.CloudinaryAPIKey == "" || c.Media.CloudinaryAPISecret == "" {
			errs = append(errs, errors.New("cloudinary credentials are required for the cloudinary media driver"))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("unknown media driver %q", c.Media.Driver))
	}

	if c.Weather.Timeout <= 0 {
		errs = append(errs, errors.New("weather.timeout must be positive"))
	}
	if c.Media.Timeout <= 0 {
		errs = append(errs, errors.New("media.timeout must be positive"))
	}
	if c.Weather.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("weather.requests_per_minute must not be negative"))
	}
	if c.Weather.CacheTTL < 0 {
		errs = append(errs, errors.New("weather.cache_ttl must not be negative"))
	}
	if c.IsProduction() && c.Auth.JWTSecret == "" && !c.Auth.SessionsEnabled {
		errs = append(errs, errors.New("production requires auth.jwt_secret or auth.sessions_enabled"))
	}

	return errors.Join(errs...)
}

func parseOrigins(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}
