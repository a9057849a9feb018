package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "shrinkbot", cfg.App.Name)
	assert.Equal(t, SessionStoreMemory, cfg.Session.Store)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 5, cfg.Compression.QualityStep)
	assert.Equal(t, 5, cfg.Compression.MinQuality)
	assert.Equal(t, int64(20*1024*1024), cfg.Compression.MaxSourceBytes)
	assert.False(t, cfg.Telegram.WebhookMode())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoad_RequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "unused")
	require.NoError(t, os.Unsetenv("TELEGRAM_BOT_TOKEN"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Session:     SessionConfig{Store: SessionStoreMemory, TTL: time.Hour},
			Compression: CompressionConfig{QualityStep: 5, MinQuality: 5},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "redis store", mutate: func(c *Config) { c.Session.Store = SessionStoreRedis }},
		{name: "unknown store", mutate: func(c *Config) { c.Session.Store = "etcd" }, wantErr: true},
		{name: "zero step", mutate: func(c *Config) { c.Compression.QualityStep = 0 }, wantErr: true},
		{name: "zero floor", mutate: func(c *Config) { c.Compression.MinQuality = 0 }, wantErr: true},
		{name: "zero ttl", mutate: func(c *Config) { c.Session.TTL = 0 }, wantErr: true},
		{name: "lock ttl above wait", mutate: func(c *Config) {
			c.Session.Store = SessionStoreRedis
			c.Session.LockTTL = 5 * time.Minute
			c.Session.LockWait = 2 * time.Minute
		}},
		{name: "lock ttl not above wait", mutate: func(c *Config) {
			c.Session.Store = SessionStoreRedis
			c.Session.LockTTL = time.Minute
			c.Session.LockWait = time.Minute
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
