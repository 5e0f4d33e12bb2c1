package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/stashbox/database"
	stashboxhttp "github.com/sagarc03/stashbox/http"
	"github.com/sagarc03/stashbox/objectstore"
	"github.com/sagarc03/stashbox/tokenfile"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for stashbox.
type Config struct {
	Server   ServerConfig            `mapstructure:"server" yaml:"server"`
	Service  ServiceConfig           `mapstructure:"service" yaml:"service"`
	Database database.Config         `mapstructure:"database" yaml:"database"`
	Storage  StorageConfig           `mapstructure:"storage" yaml:"storage"`
	Tokens   tokenfile.Config        `mapstructure:"tokens" yaml:"tokens"`
	CORS     stashboxhttp.CORSConfig `mapstructure:"cors" yaml:"cors"`
	Metrics  MetricsConfig           `mapstructure:"metrics" yaml:"metrics"`
	Log      LogConfig               `mapstructure:"log" yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          int    `mapstructure:"port" yaml:"port" validate:"required,min=1,max=65535"`
	PublicURL     string `mapstructure:"public_url" yaml:"public_url" validate:"omitempty,url"`
	BasePath      string `mapstructure:"base_path" yaml:"base_path"`
	MaxUploadSize int64  `mapstructure:"max_upload_size" yaml:"max_upload_size" validate:"min=0"`
}

// ServiceConfig holds service-level configuration. Timeouts are in seconds.
type ServiceConfig struct {
	CleanupTimeout   int `mapstructure:"cleanup_timeout" yaml:"cleanup_timeout" validate:"min=1"`
	TelemetryTimeout int `mapstructure:"telemetry_timeout" yaml:"telemetry_timeout" validate:"min=1"`
}

// StorageConfig selects and configures the file storage backend.
type StorageConfig struct {
	Backend string             `mapstructure:"backend" yaml:"backend" validate:"required,oneof=filesystem minio"`
	Path    string             `mapstructure:"path" yaml:"path" validate:"required_if=Backend filesystem"`
	MinIO   objectstore.Config `mapstructure:"minio" yaml:"minio"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":         "database.type",
	"db-dsn":          "database.dsn",
	"storage-backend": "storage.backend",
	"storage-path":    "storage.path",
	"port":            "server.port",
	"public-url":      "server.public_url",
	"base-path":       "server.base_path",
	"log-level":       "log.level",
	"log-format":      "log.format",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5708)
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.base_path", "/v1")
	v.SetDefault("server.max_upload_size", 0) // 0 means no limit

	v.SetDefault("service.cleanup_timeout", 30)   // seconds
	v.SetDefault("service.telemetry_timeout", 10) // seconds

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "stashbox.db")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.acquire_timeout", 5) // seconds
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.tables.tokens", "stashbox_tokens")
	v.SetDefault("database.tables.objects", "stashbox_objects")
	v.SetDefault("database.tables.views", "stashbox_views")

	v.SetDefault("storage.backend", "filesystem")
	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.bucket", "stashbox")
	v.SetDefault("storage.minio.region", "")
	v.SetDefault("storage.minio.use_ssl", false)
	v.SetDefault("storage.minio.prefix", "")
	v.SetDefault("storage.minio.part_size", objectstore.DefaultPartSize)

	v.SetDefault("tokens.file", "")

	v.SetDefault("cors.enabled", false)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("STASHBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.Database.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if cfg.Storage.Backend == "minio" && cfg.Storage.MinIO.Bucket == "" {
		return nil, errors.New("validate config: storage.minio.bucket is required for the minio backend")
	}
	if cfg.Storage.Backend == "minio" && cfg.Storage.MinIO.PartSize < objectstore.MinPartSize {
		return nil, fmt.Errorf("validate config: storage.minio.part_size must be at least %d bytes", objectstore.MinPartSize)
	}

	return &cfg, nil
}
