package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Profile   ProfileConfig   `mapstructure:"profile" yaml:"profile"`
	Cadence   CadenceConfig   `mapstructure:"cadence" yaml:"cadence"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
	Content   ContentConfig   `mapstructure:"content" yaml:"content"`
	Image     ImageConfig     `mapstructure:"image" yaml:"image"`
	Inference InferenceConfig `mapstructure:"inference" yaml:"inference"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Privacy   PrivacyConfig   `mapstructure:"privacy" yaml:"privacy"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// ProfileConfig is the first-run profile snapshot. Editing it is an explicit
// user action; a running pipeline only ever sees a copy.
type ProfileConfig struct {
	Name            string   `mapstructure:"name" yaml:"name"`
	Industry        string   `mapstructure:"industry" yaml:"industry"`
	ExperienceLevel string   `mapstructure:"experience_level" yaml:"experience_level"`
	CurrentWork     string   `mapstructure:"current_work" yaml:"current_work"`
	Skills          []string `mapstructure:"skills" yaml:"skills"`
	Goals           string   `mapstructure:"goals" yaml:"goals"`
	Tone            string   `mapstructure:"tone" yaml:"tone"`
	Cadence         string   `mapstructure:"cadence" yaml:"cadence"`
}

type CadenceConfig struct {
	MiniIntervalDays int `mapstructure:"mini_interval_days" yaml:"mini_interval_days"`
	MainIntervalDays int `mapstructure:"main_interval_days" yaml:"main_interval_days"`
	HorizonDays      int `mapstructure:"horizon_days" yaml:"horizon_days"`
}

type PipelineConfig struct {
	// PerStageTimeoutMS bounds a single stage attempt. Zero means every stage
	// draws from the shared PipelineTimeoutMS budget.
	PerStageTimeoutMS int `mapstructure:"per_stage_timeout_ms" yaml:"per_stage_timeout_ms"`
	PipelineTimeoutMS int `mapstructure:"pipeline_timeout_ms" yaml:"pipeline_timeout_ms"`
	MaxRetries        int `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoffMS    int `mapstructure:"retry_backoff_ms" yaml:"retry_backoff_ms"`
	WorkerLimit       int `mapstructure:"worker_limit" yaml:"worker_limit"`
}

func (p PipelineConfig) PerStageTimeout() time.Duration {
	return time.Duration(p.PerStageTimeoutMS) * time.Millisecond
}

func (p PipelineConfig) PipelineTimeout() time.Duration {
	return time.Duration(p.PipelineTimeoutMS) * time.Millisecond
}

func (p PipelineConfig) RetryBackoff() time.Duration {
	return time.Duration(p.RetryBackoffMS) * time.Millisecond
}

type ContentConfig struct {
	MaxPostLength   int      `mapstructure:"max_post_length" yaml:"max_post_length"`
	MaxHashtags     int      `mapstructure:"max_hashtags" yaml:"max_hashtags"`
	DefaultHashtags []string `mapstructure:"default_hashtags" yaml:"default_hashtags"`
}

type ImageConfig struct {
	DefaultStyle string `mapstructure:"default_style" yaml:"default_style"`
	Width        int    `mapstructure:"width" yaml:"width"`
	Height       int    `mapstructure:"height" yaml:"height"`
}

// InferenceConfig points at an OpenAI-compatible endpoint of the local
// runtime. Ollama serves one under /v1.
type InferenceConfig struct {
	BaseURL           string  `mapstructure:"base_url" yaml:"base_url"`
	Model             string  `mapstructure:"model" yaml:"model"`
	APIKey            string  `mapstructure:"api_key" yaml:"api_key"`
	MaxTokens         int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature" yaml:"temperature"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

type SchedulerConfig struct {
	LookaheadDays int    `mapstructure:"lookahead_days" yaml:"lookahead_days"`
	MissedPolicy  string `mapstructure:"missed_policy" yaml:"missed_policy"`
	Cron          string `mapstructure:"cron" yaml:"cron"`
	Timezone      string `mapstructure:"timezone" yaml:"timezone"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver" yaml:"driver"`
	Path     string `mapstructure:"path" yaml:"path"`
	LockPath string `mapstructure:"lock_path" yaml:"lock_path"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

type PrivacyConfig struct {
	Encrypt bool   `mapstructure:"encrypt" yaml:"encrypt"`
	KeyFile string `mapstructure:"key_file" yaml:"key_file"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

const (
	MissedDrop       = "drop"
	MissedReschedule = "reschedule"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("cadence.mini_interval_days", 15)
	v.SetDefault("cadence.main_interval_days", 30)
	v.SetDefault("cadence.horizon_days", 90)

	v.SetDefault("pipeline.per_stage_timeout_ms", 0)
	v.SetDefault("pipeline.pipeline_timeout_ms", 600000)
	v.SetDefault("pipeline.max_retries", 2)
	v.SetDefault("pipeline.retry_backoff_ms", 500)
	v.SetDefault("pipeline.worker_limit", 2)

	v.SetDefault("content.max_post_length", 3000)
	v.SetDefault("content.max_hashtags", 5)
	v.SetDefault("content.default_hashtags", []string{"#LinkedInPost", "#PersonaForgeAI"})

	v.SetDefault("image.default_style", "professional")
	v.SetDefault("image.width", 1200)
	v.SetDefault("image.height", 630)

	v.SetDefault("inference.base_url", "http://localhost:11434/v1")
	v.SetDefault("inference.model", "llama3:8b")
	v.SetDefault("inference.api_key", "ollama")
	v.SetDefault("inference.max_tokens", 1024)
	v.SetDefault("inference.temperature", 0.7)
	v.SetDefault("inference.requests_per_second", 0)

	v.SetDefault("scheduler.lookahead_days", 3)
	v.SetDefault("scheduler.missed_policy", MissedReschedule)
	v.SetDefault("scheduler.cron", "0 9 * * *")
	v.SetDefault("scheduler.timezone", "UTC")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/forge.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "persona_forge")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("privacy.encrypt", true)
	v.SetDefault("privacy.key_file", "data/.encryption_key")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Driver:   "postgres",
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

// LoadConfig reads path (if it exists) on top of the built-in defaults.
// A .env file next to the working directory is loaded first when present.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		config.Inference.BaseURL = strings.TrimRight(host, "/") + "/v1"
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		config.Inference.Model = model
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns the configuration LoadConfig produces with no file and no
// environment overrides.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	_ = v.Unmarshal(&config)
	return config
}

func (c *Config) Validate() error {
	if c.Cadence.MiniIntervalDays <= 0 || c.Cadence.MainIntervalDays <= 0 || c.Cadence.HorizonDays <= 0 {
		return fmt.Errorf("cadence intervals must be positive: mini=%d main=%d horizon=%d",
			c.Cadence.MiniIntervalDays, c.Cadence.MainIntervalDays, c.Cadence.HorizonDays)
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("pipeline.max_retries must not be negative")
	}
	if c.Pipeline.WorkerLimit <= 0 {
		c.Pipeline.WorkerLimit = 1
	}
	switch c.Scheduler.MissedPolicy {
	case MissedDrop, MissedReschedule:
	default:
		return fmt.Errorf("unknown scheduler.missed_policy %q", c.Scheduler.MissedPolicy)
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	return nil
}

// Save writes cfg as YAML to path, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
