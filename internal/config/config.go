package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig describes the store handle. The DSN is taken as-is; how it
// was built (tunnels, secrets) is outside this service.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Path            string        `mapstructure:"path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"`
}

// ConnString returns the driver-specific connection string.
func (c *DatabaseConfig) ConnString() string {
	if c.Driver == "postgres" {
		return c.DSN
	}
	if c.DSN != "" {
		return c.DSN
	}
	return c.Path
}

type ProvidersConfig struct {
	Timeout         time.Duration  `mapstructure:"timeout"`
	UserAgent       string         `mapstructure:"user_agent"`
	RequestsPerSec  float64        `mapstructure:"requests_per_sec"`
	Burst           int            `mapstructure:"burst"`
	BreakerFailures uint32         `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration  `mapstructure:"breaker_cooldown"`
	MemeAPI         EndpointConfig `mapstructure:"memeapi"`
	Reddit          EndpointConfig `mapstructure:"reddit"`
	Giphy           GiphyConfig    `mapstructure:"giphy"`
	Pikabu          EndpointConfig `mapstructure:"pikabu"`
	PrimarySubs     []string       `mapstructure:"primary_subs"`
	SecondarySubs   []string       `mapstructure:"secondary_subs"`
}

type EndpointConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type GiphyConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Rating  string `mapstructure:"rating"`
	Limit   int    `mapstructure:"limit"`
}

type DeliveryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	DownloadDir     string        `mapstructure:"download_dir"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	KeepFiles       int           `mapstructure:"keep_files"`
	RetentionCron   string        `mapstructure:"retention_cron"`
}

// StorageConfig configures the optional S3-compatible mirror of
// downloaded images.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
	Prefix    string `mapstructure:"prefix"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and connection parameters come from the environment
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.dsn", "DATABASE_DSN")
	v.BindEnv("providers.giphy.api_key", "GIPHY_KEY")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("delivery.download_dir", "MEME_DOWNLOAD_DIR")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/memes.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("providers.timeout", 20*time.Second)
	v.SetDefault("providers.user_agent", "MemeFetcher/4.0")
	v.SetDefault("providers.requests_per_sec", 1.0)
	v.SetDefault("providers.burst", 5)
	v.SetDefault("providers.breaker_failures", 5)
	v.SetDefault("providers.breaker_cooldown", time.Minute)
	v.SetDefault("providers.memeapi.base_url", "https://meme-api.com")
	v.SetDefault("providers.reddit.base_url", "https://www.reddit.com")
	v.SetDefault("providers.giphy.base_url", "https://api.giphy.com")
	v.SetDefault("providers.giphy.rating", "pg-13")
	v.SetDefault("providers.giphy.limit", 25)
	v.SetDefault("providers.pikabu.base_url", "https://api.pikabu.ru")
	v.SetDefault("providers.primary_subs", []string{"memes", "dankmemes", "me_irl"})
	v.SetDefault("providers.secondary_subs", []string{"ru_memes", "RussianMemes", "pikabu"})

	v.SetDefault("delivery.max_attempts", 20)
	v.SetDefault("delivery.workers", 4)
	v.SetDefault("delivery.queue_size", 64)
	v.SetDefault("delivery.download_dir", "./data/memes")
	v.SetDefault("delivery.download_timeout", 30*time.Second)
	v.SetDefault("delivery.keep_files", 500)
	v.SetDefault("delivery.retention_cron", "*/10 * * * *")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "memes")
	v.SetDefault("storage.prefix", "memes")
}

// Validate checks values that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database: dsn is required for postgres")
		}
	case "sqlite":
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}
	if c.Delivery.MaxAttempts <= 0 {
		return fmt.Errorf("delivery: max_attempts must be positive")
	}
	if c.Delivery.Workers <= 0 {
		return fmt.Errorf("delivery: workers must be positive")
	}
	if c.Delivery.DownloadDir == "" {
		return fmt.Errorf("delivery: download_dir is required")
	}
	if len(c.Providers.PrimarySubs) == 0 || len(c.Providers.SecondarySubs) == 0 {
		return fmt.Errorf("providers: primary_subs and secondary_subs must not be empty")
	}
	if c.Storage.Enabled && c.Storage.Endpoint == "" {
		return fmt.Errorf("storage: endpoint is required when enabled")
	}
	return nil
}
