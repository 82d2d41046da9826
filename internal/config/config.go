package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	ServerPort int
	Env        string
	LogLevel   string
	CORSOrigin string

	Database   DatabaseConfig
	JWT        JWTConfig
	Upload     UploadConfig
	Summarizer SummarizerConfig
	MediaSweep MediaSweepConfig
}

// DatabaseConfig selects and locates the post/user store.
type DatabaseConfig struct {
	Driver string // sqlite, mongo or memory
	URL    string // file path for sqlite, connection URI for mongo
	Name   string // database name for mongo
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type UploadConfig struct {
	Dir       string
	URLPrefix string
	MaxSize   int64
}

type SummarizerConfig struct {
	APIKey  string
	URL     string
	Timeout time.Duration
}

// MediaSweepConfig controls the orphaned media sweeper. An empty Schedule disables it.
type MediaSweepConfig struct {
	Schedule string
	Grace    time.Duration
}

const (
	DefaultSummarizerURL = "https://api-inference.huggingface.co/models/facebook/bart-large-cnn"
	DefaultMaxUploadSize = 5 * 1024 * 1024
)

var drivers = map[string]bool{"sqlite": true, "mongo": true, "memory": true}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from the environment, overlaid on an optional config file.
// If path is empty, config.yaml in the working directory is used when present.
// All problems are reported together.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var problems []string

	port, err := strconv.Atoi(v.GetString("port"))
	if err != nil || port <= 0 {
		problems = append(problems, fmt.Sprintf("invalid PORT %q", v.GetString("port")))
	}

	driver := strings.ToLower(v.GetString("database_driver"))
	if !drivers[driver] {
		problems = append(problems, fmt.Sprintf("unsupported DATABASE_DRIVER %q", driver))
	}

	secret := v.GetString("jwt_secret")
	if secret == "" {
		problems = append(problems, "missing required JWT_SECRET")
	}

	expiry, err := ParseExpiry(v.GetString("jwt_expiry"))
	if err != nil {
		problems = append(problems, fmt.Sprintf("invalid JWT_EXPIRY: %v", err))
	}

	maxSize, err := strconv.ParseInt(v.GetString("max_upload_size"), 10, 64)
	if err != nil || maxSize <= 0 {
		problems = append(problems, fmt.Sprintf("invalid MAX_UPLOAD_SIZE %q", v.GetString("max_upload_size")))
	}

	timeout, err := time.ParseDuration(v.GetString("summarizer_timeout"))
	if err != nil || timeout <= 0 {
		problems = append(problems, fmt.Sprintf("invalid SUMMARIZER_TIMEOUT %q", v.GetString("summarizer_timeout")))
	}

	grace, err := time.ParseDuration(v.GetString("media_sweep_grace"))
	if err != nil || grace < 0 {
		problems = append(problems, fmt.Sprintf("invalid MEDIA_SWEEP_GRACE %q", v.GetString("media_sweep_grace")))
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("configuration errors:\n- %s", strings.Join(problems, "\n- "))
	}

	return &Config{
		ServerPort: port,
		Env:        v.GetString("app_env"),
		LogLevel:   v.GetString("log_level"),
		CORSOrigin: v.GetString("cors_origin"),
		Database: DatabaseConfig{
			Driver: driver,
			URL:    v.GetString("database_url"),
			Name:   v.GetString("database_name"),
		},
		JWT: JWTConfig{
			Secret: secret,
			Expiry: expiry,
		},
		Upload: UploadConfig{
			Dir:       v.GetString("upload_dir"),
			URLPrefix: "/" + strings.Trim(v.GetString("upload_url_prefix"), "/"),
			MaxSize:   maxSize,
		},
		Summarizer: SummarizerConfig{
			APIKey:  v.GetString("huggingface_api_key"),
			URL:     v.GetString("summarizer_url"),
			Timeout: timeout,
		},
		MediaSweep: MediaSweepConfig{
			Schedule: v.GetString("media_sweep_schedule"),
			Grace:    grace,
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "3000")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("cors_origin", "http://localhost:5173")
	v.SetDefault("database_driver", "sqlite")
	v.SetDefault("database_url", "./nukta.db")
	v.SetDefault("database_name", "Nukta")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_expiry", "7d")
	v.SetDefault("upload_dir", "./uploads")
	v.SetDefault("upload_url_prefix", "/uploads")
	v.SetDefault("max_upload_size", strconv.Itoa(DefaultMaxUploadSize))
	v.SetDefault("huggingface_api_key", "")
	v.SetDefault("summarizer_url", DefaultSummarizerURL)
	v.SetDefault("summarizer_timeout", "30s")
	v.SetDefault("media_sweep_schedule", "")
	v.SetDefault("media_sweep_grace", "1h")
}

// ParseExpiry accepts Go durations ("168h") and whole days ("7d").
func ParseExpiry(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("expected a positive number of days, got %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("expiry must be positive, got %q", s)
	}
	return d, nil
}
