package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"NewsIntent/internal/domain"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "NEWSINTENT_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	inferenceKeyEnv   = "INFERENCE_API_KEY"
	chatGPTAPIKeyEnv  = "CHATGPT_API_KEY"
	chatGPTModelEnv   = "CHATGPT_MODEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	redisAddressEnv   = "REDIS_ADDRESS"
	redisPasswordEnv  = "REDIS_PASSWORD"
	logLevelEnv       = "LOG_LEVEL"
)

// Classifier backends.
const (
	BackendInference = "inference"
	BackendChatGPT   = "chatgpt"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds high-level settings required across the application.
type Config struct {
	Feed          FeedConfig         `yaml:"feed"`
	Resolver      ResolverConfig     `yaml:"resolver"`
	Extraction    ExtractionConfig   `yaml:"extraction"`
	Classifier    ClassifierConfig   `yaml:"classifier"`
	ML            MLConfig           `yaml:"ml"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Cache         CacheConfig        `yaml:"cache"`
	Database      DatabaseConfig     `yaml:"database"`
	Notifications NotificationConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// FeedConfig describes the news aggregator search feed.
type FeedConfig struct {
	Sources    []string      `yaml:"sources"`
	BaseURL    string        `yaml:"baseUrl"`
	Language   string        `yaml:"language"`
	Region     string        `yaml:"region"`
	MaxResults int           `yaml:"maxResults"`
	UserAgent  string        `yaml:"userAgent"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ResolverConfig tunes redirect-link decoding.
type ResolverConfig struct {
	BaseURL           string        `yaml:"baseUrl"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
}

// ExtractionConfig tunes full-text downloads.
type ExtractionConfig struct {
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ClassifierConfig selects the zero-shot backend and its worker pool.
type ClassifierConfig struct {
	Backend             string        `yaml:"backend"`
	Workers             int           `yaml:"workers"`
	Timeout             time.Duration `yaml:"timeout"`
	MaxChars            int           `yaml:"maxChars"`
	MinConfidence       float64       `yaml:"minConfidence"`
	LowConfidenceIntent string        `yaml:"lowConfidenceIntent"`
}

// MLConfig describes the zero-shot inference service.
type MLConfig struct {
	InferenceURL string `yaml:"inferenceUrl"`
	APIKey       string `yaml:"apiKey"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// CacheConfig selects where resolved links and extracted text are kept.
type CacheConfig struct {
	Type  string        `yaml:"type"`
	TTL   time.Duration `yaml:"ttl"`
	Redis RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection details.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig describes where runs are persisted. An empty driver disables persistence.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// SchedulerConfig defines how often the watch mode re-runs the pipeline.
type SchedulerConfig struct {
	Interval   time.Duration  `yaml:"interval"`
	WindowDays int            `yaml:"windowDays"`
	Timezone   string         `yaml:"timezone"`
	location   *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads YAML configuration (if any) and applies environment overrides.
// An empty path falls back to NEWSINTENT_CONFIG; with neither, defaults are used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := Parse(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Parse decodes YAML over cfg; keys absent from raw keep their current values.
func Parse(raw []byte, cfg *Config) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	return yaml.Unmarshal(raw, cfg)
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Feed.Sources) == 0 {
		errs = append(errs, errors.New("feed.sources must name at least one source"))
	}
	if c.Feed.BaseURL == "" {
		errs = append(errs, errors.New("feed.baseUrl cannot be empty"))
	}
	if c.Feed.MaxResults < 1 {
		errs = append(errs, errors.New("feed.maxResults must be at least 1"))
	}
	if c.Extraction.Concurrency < 1 {
		errs = append(errs, errors.New("extraction.concurrency must be at least 1"))
	}
	if c.Classifier.Workers < 1 {
		errs = append(errs, errors.New("classifier.workers must be at least 1"))
	}
	if c.Classifier.MinConfidence < 0 || c.Classifier.MinConfidence > 1 {
		errs = append(errs, errors.New("classifier.minConfidence must be within [0, 1]"))
	}
	if _, ok := domain.ParseIntent(c.Classifier.LowConfidenceIntent); !ok {
		errs = append(errs, fmt.Errorf("classifier.lowConfidenceIntent %q is not a known intent", c.Classifier.LowConfidenceIntent))
	}

	switch c.Classifier.Backend {
	case BackendInference:
		if c.ML.InferenceURL == "" {
			errs = append(errs, errors.New("ml.inferenceUrl cannot be empty for the inference backend"))
		}
	case BackendChatGPT:
		if c.ChatGPT.Endpoint == "" || c.ChatGPT.Model == "" {
			errs = append(errs, errors.New("chatgpt.endpoint and chatgpt.model are required for the chatgpt backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("classifier.backend must be %q or %q", BackendInference, BackendChatGPT))
	}

	switch c.Cache.Type {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.Redis.Address == "" {
			errs = append(errs, errors.New("cache.redis.address cannot be empty when using redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.type must be one of none, memory, redis"))
	}

	switch c.Database.Driver {
	case "":
	case DriverPostgres, DriverSQLite:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn cannot be empty when a driver is set"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be %q or %q", DriverPostgres, DriverSQLite))
	}

	if c.Scheduler.WindowDays < 1 {
		errs = append(errs, errors.New("scheduler.windowDays must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(inferenceKeyEnv); v != "" {
		c.ML.APIKey = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(chatGPTAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}

	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}

	if v := os.Getenv(redisAddressEnv); v != "" {
		c.Cache.Redis.Address = v
	}

	if v := os.Getenv(redisPasswordEnv); v != "" {
		c.Cache.Redis.Password = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc, _ = time.LoadLocation(defaultTimezone)
		c.Scheduler.Timezone = defaultTimezone
	}
	c.Scheduler.location = loc
}

// Default returns the built-in configuration.
func Default() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Feed: FeedConfig{
			Sources:    []string{"googlenews"},
			BaseURL:    "https://news.google.com/rss/search",
			Language:   "pt",
			Region:     "BR",
			MaxResults: 30,
			UserAgent:  "Mozilla/5.0",
		},
		Resolver: ResolverConfig{
			BaseURL:           "https://news.google.com",
			RequestsPerSecond: 2,
			Burst:             2,
		},
		Extraction: ExtractionConfig{
			Concurrency: 16,
		},
		Classifier: ClassifierConfig{
			Backend:             BackendInference,
			Workers:             4,
			MaxChars:            2000,
			LowConfidenceIntent: string(domain.IntentNeutralInfo),
		},
		ML: MLConfig{InferenceURL: "http://localhost:8080", APIKey: ""},
		ChatGPT: ChatGPTConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			APIKey:       "",
			SystemPrompt: "",
		},
		Cache: CacheConfig{
			Type:  CacheMemory,
			TTL:   24 * time.Hour,
			Redis: RedisConfig{Address: "localhost:6379"},
		},
		Scheduler: SchedulerConfig{
			Interval:   24 * time.Hour,
			WindowDays: 1,
			Timezone:   defaultTimezone,
			location:   tz,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}
