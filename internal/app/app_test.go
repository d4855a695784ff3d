package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/memebot/internal/config"
	"github.com/timmy/memebot/internal/domain"
	"github.com/timmy/memebot/internal/logger"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			Path:        filepath.Join(dir, "memes.db"),
			AutoMigrate: true,
			LogLevel:    "silent",
		},
		Providers: config.ProvidersConfig{
			PrimarySubs:   []string{"memes"},
			SecondarySubs: []string{"ru_memes"},
		},
		Delivery: config.DeliveryConfig{
			MaxAttempts: 20,
			Workers:     1,
			DownloadDir: filepath.Join(dir, "memes"),
		},
	}
}

func TestNew(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), logger.Discard())
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	require.NoError(t, a.Ping(ctx))

	// Registration goes through to the migrated store.
	require.NoError(t, a.Memes.Register(ctx, domain.UserIdentity(42), domain.LanguagePrimary))
	ok, err := a.Memes.IsRegistered(ctx, domain.UserIdentity(42))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewProviders(t *testing.T) {
	cfg := config.ProvidersConfig{}

	p := NewProviders(cfg)
	assert.NotNil(t, p.Random)
	assert.NotNil(t, p.Search)
	assert.NotNil(t, p.SecondaryFallback)
	assert.Nil(t, p.SecondarySearch, "gif stage needs a key")

	cfg.Giphy.APIKey = "key"
	p = NewProviders(cfg)
	assert.NotNil(t, p.SecondarySearch)
}
