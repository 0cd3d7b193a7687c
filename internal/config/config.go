package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"video-cloud/internal/domain"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string `validate:"required,hostname_port"`
	}
	Database struct {
		URL string `validate:"required"`
	}
	Auth struct {
		Secret                string `validate:"required"`
		SessionMaxAgeDays     int    `validate:"gte=1"`
		SessionUpdateAgeHours int    `validate:"gte=1"`
		CookieSecure          bool
	}
	Pages struct {
		SignIn string `validate:"required,startswith=/"`
		Error  string `validate:"required,startswith=/"`
	}
	Storage struct {
		Bucket        string
		KeyPrefix     string
		Region        string `validate:"required_with=Bucket"`
		Endpoint      string `validate:"omitempty,url"`
		PublicBaseURL string `validate:"omitempty,url"`
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level string `validate:"oneof=trace debug info warn warning error fatal"`
	}
}

// SessionMaxAge converts the configured day count into a duration.
func (c Config) SessionMaxAge() time.Duration {
	return time.Duration(c.Auth.SessionMaxAgeDays) * 24 * time.Hour
}

// SessionUpdateAge is how old a cookie session gets before it is re-issued.
func (c Config) SessionUpdateAge() time.Duration {
	return time.Duration(c.Auth.SessionUpdateAgeHours) * time.Hour
}

// Option tweaks how Load discovers configuration sources.
type Option func(*loadOptions)

type loadOptions struct {
	dotEnvFiles []string
	configPaths []string
}

// WithDotEnv overrides the .env files consulted before reading the environment.
func WithDotEnv(files ...string) Option {
	return func(o *loadOptions) {
		o.dotEnvFiles = files
	}
}

// WithConfigPaths overrides the directories searched for a config file.
func WithConfigPaths(paths ...string) Option {
	return func(o *loadOptions) {
		o.configPaths = paths
	}
}

// Load reads configuration from environment variables and optional config files.
// Missing or invalid required settings are reported as domain.ErrConfiguration.
func Load(opts ...Option) (Config, error) {
	options := loadOptions{
		dotEnvFiles: []string{".env"},
		configPaths: []string{"."},
	}
	for _, opt := range opts {
		opt(&options)
	}

	loadDotEnv(options.dotEnvFiles)

	v := viper.New()
	v.SetEnvPrefix("VIDEOCLOUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// unprefixed names commonly exported by hosting platforms
	_ = v.BindEnv("database.url", "VIDEOCLOUD_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("auth.secret", "VIDEOCLOUD_AUTH_SECRET", "SESSION_SECRET")

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.url", "")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.sessionmaxagedays", 30)
	v.SetDefault("auth.sessionupdateagehours", 24)
	v.SetDefault("auth.cookiesecure", false)
	v.SetDefault("pages.signin", "/login")
	v.SetDefault("pages.error", "/login")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "uploads")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.publicbaseurl", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("log.level", "info")

	v.SetConfigName("config")
	for _, p := range options.configPaths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return cfg, nil
}

// loadDotEnv exports variables from the given files; values already present
// in the environment win.
func loadDotEnv(files []string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}
