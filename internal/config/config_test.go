package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("SLC_CHAT_ID", "-1001234567890")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "GFxQeqQBhgu4yLYLf7BFUBkRkhbfTnkAfwsrN9TEaTZv", cfg.ReceivingWallet)
	assert.Equal(t, int64(150_000_000), cfg.MinLamports)
	assert.Equal(t, "SLC30", cfg.MemoMarker)
	assert.Equal(t, 30*24*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 50, cfg.ScanLimit)
	assert.Equal(t, "slc_users.json", cfg.DataFile)
	assert.Equal(t, "file", cfg.StoreDriver)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Len(t, cfg.Whitelist, len(DefaultWhitelist))
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("SLC_CHAT_ID", "@slc_private")
	t.Setenv("MIN_PAYMENT_SOL", "0.5")
	t.Setenv("ACCESS_TTL_DAYS", "7")
	t.Setenv("SLC_DATA_FILE", "/data/slc_users.json")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("WHITELIST", " @Alice, bob ,,")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SOLSCAN_BASE_URL", "https://example.test/api/")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int64(500_000_000), cfg.MinLamports)
	assert.Equal(t, 7*24*time.Hour, cfg.AccessTTL)
	assert.Equal(t, "/data/slc_users.json", cfg.DataFile)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "https://example.test/api", cfg.SolscanBaseURL)
	assert.Len(t, cfg.Whitelist, 2)
	assert.True(t, cfg.IsWhitelisted("@alice"))
	assert.True(t, cfg.IsWhitelisted("BOB"))
	assert.False(t, cfg.IsWhitelisted("@leopex1"))
}

func TestValidateRejectsMissingToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("SLC_CHAT_ID", "")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BotToken")
	assert.Contains(t, err.Error(), "ChatID")
}

func TestValidateRejectsBadDriver(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("SLC_CHAT_ID", "-100")
	t.Setenv("STORE_DRIVER", "postgres")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "StoreDriver")
}

func TestValidateSeenLimitCoversScanWindow(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("SLC_CHAT_ID", "-100")
	t.Setenv("SEEN_TX_LIMIT", "10")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SEEN_TX_LIMIT")
}

func TestWhitelistDefaultsMatchCaseInsensitively(t *testing.T) {
	cfg := &Config{Whitelist: NewWhitelist(DefaultWhitelist)}

	assert.True(t, cfg.IsWhitelisted("@steez431"))
	assert.True(t, cfg.IsWhitelisted("@degenetive"))
	assert.True(t, cfg.IsWhitelisted("arc"))
	assert.False(t, cfg.IsWhitelisted("@someone"))
}
