package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("VERIFICATION_TOKEN", "secret")
	t.Setenv("INCOMING_WEBHOOKS_URL", "https://hooks.slack.com/services/T000/B000/XXXX")
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "/slack/events", cfg.HTTP.EventsPath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "A new emoji is added", cfg.Slack.NotificationMessage)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.Equal(t, 60*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "EventDispatcher", cfg.Cache.Scope)
	assert.Equal(t, DeliverySync, cfg.Delivery.Mode)
	assert.Equal(t, 5, cfg.Delivery.Workers)
	assert.Equal(t, 3, cfg.Delivery.MaxRetries)
	assert.Equal(t, time.Second, cfg.Delivery.RetryBaseDelay)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("CACHE_TTL", "2m")
	t.Setenv("DELIVERY_MODE", "queue")
	t.Setenv("QUEUE_BACKEND", "nats")
	t.Setenv("WORKERS", "2")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, DeliveryQueue, cfg.Delivery.Mode)
	assert.Equal(t, QueueNATS, cfg.Delivery.Queue)
	assert.Equal(t, 2, cfg.Delivery.Workers)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9090"
slack:
  verification_token: from-file
  incoming_webhooks_url: https://hooks.slack.com/services/T1/B1/Y
cache:
  backend: sqlite
  dsn: relay.db
  ttl: 30s
`), 0o600))
	t.Setenv("HTTP_ADDR", ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "from-file", cfg.Slack.VerificationToken)
	assert.Equal(t, CacheSQLite, cfg.Cache.Backend)
	assert.Equal(t, "relay.db", cfg.Cache.DSN)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("VERIFICATION_TOKEN", "")
	t.Setenv("INCOMING_WEBHOOKS_URL", "")
	os.Unsetenv("VERIFICATION_TOKEN")
	os.Unsetenv("INCOMING_WEBHOOKS_URL")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("VERIFICATION_TOKEN=dotenv\nINCOMING_WEBHOOKS_URL=https://hooks.slack.com/services/T/B/Z\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("VERIFICATION_TOKEN")
		os.Unsetenv("INCOMING_WEBHOOKS_URL")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv", cfg.Slack.VerificationToken)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing token", env: map[string]string{"VERIFICATION_TOKEN": ""}},
		{name: "bad webhook url", env: map[string]string{"INCOMING_WEBHOOKS_URL": "not a url"}},
		{name: "unknown cache backend", env: map[string]string{"CACHE_BACKEND": "memcached"}},
		{name: "sqlite without dsn", env: map[string]string{"CACHE_BACKEND": "sqlite"}},
		{name: "unknown delivery mode", env: map[string]string{"DELIVERY_MODE": "async"}},
		{name: "zero workers", env: map[string]string{"WORKERS": "0"}},
		{name: "too many retries", env: map[string]string{"MAX_RETRIES": "64"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Config{}
	cfg.Slack.VerificationToken = "secret"
	cfg.Slack.IncomingWebhooksURL = "https://hooks.slack.com/services/T/B/Z"
	cfg.Redis.Password = ""

	r := cfg.Redacted()
	assert.Equal(t, "********", r.Slack.VerificationToken)
	assert.Equal(t, "********", r.Slack.IncomingWebhooksURL)
	assert.Empty(t, r.Redis.Password)
	assert.Equal(t, "secret", cfg.Slack.VerificationToken)
}
