package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// DefaultWhitelist is exempt from expiry unless WHITELIST overrides it
var DefaultWhitelist = []string{"leopex1", "Degenetive", "SLCScannerBot", "Steez431", "cripplingdegen", "ARC", "MoneyMalicia"}

type Config struct {
	// Telegram
	BotToken       string `validate:"required"`
	ChatID         string `validate:"required"`
	TelegramAPIURL string `validate:"required,url"`

	// Payments
	ReceivingWallet string        `validate:"required"`
	MinLamports     int64         `validate:"gt=0"`
	MemoMarker      string        `validate:"required"`
	AccessTTL       time.Duration `validate:"gt=0"`
	InviteTTL       time.Duration `validate:"gte=0"`
	Whitelist       map[string]struct{}

	// Solscan
	SolscanBaseURL string        `validate:"required,url"`
	SolscanAPIKey  string
	SolscanRPS     float64       `validate:"gte=0"`
	PollInterval   time.Duration `validate:"gt=0"`
	ScanLimit      int           `validate:"gt=0,lte=100"`

	// Storage
	DataFile       string `validate:"required"`
	LegacyDataFile string
	StoreDriver    string `validate:"oneof=file sqlite"`
	SQLitePath     string `validate:"required_if=StoreDriver sqlite"`
	SeenTxLimit    int    `validate:"gte=0"`

	// Ops
	HTTPPort int `validate:"gte=0,lte=65535"`
	LogLevel slog.Level
}

func Load() *Config {
	cfg := &Config{
		// Telegram
		BotToken:       getEnv("TELEGRAM_BOT_TOKEN", ""),
		ChatID:         getEnv("SLC_CHAT_ID", ""),
		TelegramAPIURL: strings.TrimSuffix(getEnv("TELEGRAM_API_URL", "https://api.telegram.org"), "/"),

		// Payments
		ReceivingWallet: getEnv("RECEIVING_WALLET", "GFxQeqQBhgu4yLYLf7BFUBkRkhbfTnkAfwsrN9TEaTZv"),
		MinLamports:     int64(math.Round(getEnvFloat("MIN_PAYMENT_SOL", 0.15) * 1e9)),
		MemoMarker:      getEnv("MEMO_MARKER", "SLC30"),
		AccessTTL:       time.Duration(getEnvInt("ACCESS_TTL_DAYS", 30)) * 24 * time.Hour,
		InviteTTL:       time.Duration(getEnvInt("INVITE_TTL_HOURS", 24)) * time.Hour,

		// Solscan
		SolscanBaseURL: strings.TrimSuffix(getEnv("SOLSCAN_BASE_URL", "https://public-api.solscan.io"), "/"),
		SolscanAPIKey:  getEnv("SOLSCAN_API_KEY", ""),
		SolscanRPS:     getEnvFloat("SOLSCAN_RPS", 4),
		PollInterval:   time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 30)) * time.Second,
		ScanLimit:      getEnvInt("SCAN_LIMIT", 50),

		// Storage
		DataFile:       getEnv("SLC_DATA_FILE", "slc_users.json"),
		LegacyDataFile: getEnv("LEGACY_DATA_FILE", "slc_users.json"),
		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", "file")),
		SQLitePath:     getEnv("SQLITE_PATH", "slc_state.db"),
		SeenTxLimit:    getEnvInt("SEEN_TX_LIMIT", 10000),

		// Ops
		HTTPPort: getEnvInt("HTTP_PORT", 8080),
		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),
	}

	whitelist := DefaultWhitelist
	if raw := os.Getenv("WHITELIST"); raw != "" {
		whitelist = strings.Split(raw, ",")
	}
	cfg.Whitelist = NewWhitelist(whitelist)

	return cfg
}

var validate = validator.New()

// Validate checks required settings and ranges
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		msgs := lo.Map(ve, func(fe validator.FieldError, _ int) string {
			return fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag())
		})
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	if c.SeenTxLimit > 0 && c.SeenTxLimit < c.ScanLimit {
		return fmt.Errorf("invalid config: SEEN_TX_LIMIT %d is below SCAN_LIMIT %d", c.SeenTxLimit, c.ScanLimit)
	}
	return nil
}

// IsWhitelisted reports whether username is exempt from expiry
func (c *Config) IsWhitelisted(username string) bool {
	_, ok := c.Whitelist[normalize(username)]
	return ok
}

// NewWhitelist builds the exemption set; entries are matched without "@"
// and case-insensitively.
func NewWhitelist(names []string) map[string]struct{} {
	names = lo.Compact(lo.Map(names, func(n string, _ int) string { return normalize(n) }))
	return lo.SliceToMap(names, func(n string) (string, struct{}) { return n, struct{}{} })
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(name), "@"))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
