// Package config loads relay settings from an optional YAML file and the
// environment. Environment variables win over file values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CacheSQLite   = "sqlite"
	CachePostgres = "postgres"

	DeliverySync  = "sync"
	DeliveryQueue = "queue"

	QueueMemory = "memory"
	QueueRedis  = "redis"
	QueueNATS   = "nats"
)

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Log      Log      `yaml:"log"`
	Slack    Slack    `yaml:"slack"`
	Cache    Cache    `yaml:"cache"`
	Redis    Redis    `yaml:"redis"`
	Delivery Delivery `yaml:"delivery"`
	Tracing  Tracing  `yaml:"tracing"`
}

type HTTP struct {
	Addr       string `yaml:"addr" env:"HTTP_ADDR" env-default:":8080" validate:"required"`
	EventsPath string `yaml:"events_path" env:"EVENTS_PATH" env-default:"/slack/events" validate:"required,startswith=/"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text" validate:"oneof=text json"`
}

type Slack struct {
	VerificationToken   string `yaml:"verification_token" env:"VERIFICATION_TOKEN" validate:"required"`
	IncomingWebhooksURL string `yaml:"incoming_webhooks_url" env:"INCOMING_WEBHOOKS_URL" validate:"required,url"`
	AccessToken         string `yaml:"access_token" env:"ACCESS_TOKEN"`
	APIURL              string `yaml:"api_url" env:"SLACK_API_URL" validate:"omitempty,url"`
	NotificationMessage string `yaml:"notification_message" env:"NOTIFICATION_MESSAGE" env-default:"A new emoji is added"`
}

type Cache struct {
	Backend string        `yaml:"backend" env:"CACHE_BACKEND" env-default:"memory" validate:"oneof=memory redis sqlite postgres"`
	TTL     time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"60s" validate:"gt=0"`
	Scope   string        `yaml:"scope" env:"CACHE_SCOPE" env-default:"EventDispatcher" validate:"required"`
	DSN     string        `yaml:"dsn" env:"DATABASE_DSN" validate:"required_if=Backend sqlite,required_if=Backend postgres"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0" validate:"gte=0"`
}

type Delivery struct {
	Mode           string        `yaml:"mode" env:"DELIVERY_MODE" env-default:"sync" validate:"oneof=sync queue"`
	Queue          string        `yaml:"queue" env:"QUEUE_BACKEND" env-default:"memory" validate:"oneof=memory redis nats"`
	QueueKey       string        `yaml:"queue_key" env:"QUEUE_KEY" env-default:"notification_queue" validate:"required"`
	QueueSize      int           `yaml:"queue_size" env:"QUEUE_SIZE" env-default:"1024" validate:"gt=0"`
	NATSURL        string        `yaml:"nats_url" env:"NATS_URL" env-default:"nats://127.0.0.1:4222"`
	Workers        int           `yaml:"workers" env:"WORKERS" env-default:"5" validate:"gt=0"`
	MaxRetries     int           `yaml:"max_retries" env:"MAX_RETRIES" env-default:"3" validate:"gte=0,lte=20"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" env:"RETRY_BASE_DELAY" env-default:"1s" validate:"gt=0"`
}

type Tracing struct {
	Endpoint    string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT" validate:"omitempty,url"`
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"new-emoji-webhook"`
}

var validate = validator.New()

// Load reads .env (if present), then path (if set), then the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.Slack.VerificationToken = mask(c.Slack.VerificationToken)
	c.Slack.AccessToken = mask(c.Slack.AccessToken)
	c.Slack.IncomingWebhooksURL = mask(c.Slack.IncomingWebhooksURL)
	c.Redis.Password = mask(c.Redis.Password)
	c.Cache.DSN = mask(c.Cache.DSN)
	return c
}
