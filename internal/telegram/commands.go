package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Steez431/SLC-PAYMENTBOT/internal/config"
	"github.com/Steez431/SLC-PAYMENTBOT/internal/metrics"
	"github.com/Steez431/SLC-PAYMENTBOT/internal/solscan"
	"github.com/Steez431/SLC-PAYMENTBOT/internal/storage"
)

// ErrInvalidWallet is returned for a /start argument that is not a Solana address
var ErrInvalidWallet = errors.New("invalid wallet address")

const (
	commandStart  = "start"
	commandMyJoin = "myjoin"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

// Inbound is a text message from a user
type Inbound struct {
	UserID int64
	Handle string
	Text   string
}

// Replier sends a reply to a user
type Replier interface {
	SendMessage(ctx context.Context, chatID any, text string) error
}

// Commands handles /start and /myjoin
type Commands struct {
	store   *storage.Store
	replier Replier
	metrics *metrics.Metrics
	log     *slog.Logger

	receivingWallet string
	minLamports     int64
	memoMarker      string
	ttl             time.Duration

	now func() time.Time
}

// NewCommands creates the command handler
func NewCommands(cfg *config.Config, store *storage.Store, replier Replier, m *metrics.Metrics, log *slog.Logger) *Commands {
	return &Commands{
		store:           store,
		replier:         replier,
		metrics:         m,
		log:             log,
		receivingWallet: cfg.ReceivingWallet,
		minLamports:     cfg.MinLamports,
		memoMarker:      cfg.MemoMarker,
		ttl:             cfg.AccessTTL,
		now:             time.Now,
	}
}

// Handle runs the command in msg, if any, and reports whether it was one.
// Commands match case-insensitively by prefix; other text is ignored.
func (c *Commands) Handle(ctx context.Context, msg Inbound) bool {
	text := strings.TrimSpace(msg.Text)
	lower := strings.ToLower(text)

	switch {
	case strings.HasPrefix(lower, "/"+commandStart):
		c.metrics.Commands.WithLabelValues(commandStart).Inc()
		c.start(ctx, msg, text)
	case strings.HasPrefix(lower, "/"+commandMyJoin):
		c.metrics.Commands.WithLabelValues(commandMyJoin).Inc()
		c.myJoin(ctx, msg)
	default:
		return false
	}
	return true
}

func (c *Commands) start(ctx context.Context, msg Inbound, text string) {
	username := storage.Username(msg.Handle, msg.UserID)

	parts := strings.Fields(text)
	if len(parts) < 2 {
		c.register(username, msg.UserID, "")
		c.reply(ctx, msg.UserID, "Send /start <your_solana_wallet_address> so I can match your payment. Example: /start DqTx...")
		return
	}

	wallet, err := parseWallet(parts[1])
	if err != nil {
		c.log.Info("rejected wallet", "username", username, "error", err)
		c.reply(ctx, msg.UserID, "That does not look like a Solana wallet address. Send /start <your_solana_wallet_address>.")
		return
	}

	c.register(username, msg.UserID, wallet)
	c.log.Info("wallet mapped", "username", username, "wallet", wallet)

	c.reply(ctx, msg.UserID, fmt.Sprintf(
		"Thanks %s. I mapped wallet %s to your Telegram account. Now send payment of >=%s SOL with memo %s to %s.",
		username, wallet, formatSOL(c.minLamports), c.memoMarker, c.receivingWallet,
	))
}

func (c *Commands) myJoin(ctx context.Context, msg Inbound) {
	username := storage.Username(msg.Handle, msg.UserID)

	m, err := c.store.Member(username)
	if errors.Is(err, storage.ErrNotFound) {
		c.reply(ctx, msg.UserID, "No join record found. Use /start <wallet> first before paying.")
		return
	}
	if err != nil {
		c.log.Error("look up member", "username", username, "error", err)
		return
	}

	last, expires := "never", "not available"
	if m.LastPaid != nil {
		last = m.LastPaid.UTC().Format(timeLayout)
		expires = m.LastPaid.Add(c.ttl).UTC().Format(timeLayout)
	}

	c.reply(ctx, msg.UserID, fmt.Sprintf("Joined: %s\nLast paid: %s\nExpires: %s",
		m.Join.UTC().Format(timeLayout), last, expires))
}

// register updates the record; a failed save is logged and the in-memory
// state stays authoritative until the next successful write
func (c *Commands) register(username string, userID int64, wallet string) {
	if _, err := c.store.Register(username, userID, wallet, c.now()); err != nil {
		c.metrics.UpstreamErrors.WithLabelValues(metrics.SourceStore).Inc()
		c.log.Error("save registration", "username", username, "error", err)
	}
}

func (c *Commands) reply(ctx context.Context, userID int64, text string) {
	if err := c.replier.SendMessage(ctx, userID, text); err != nil {
		c.metrics.UpstreamErrors.WithLabelValues(metrics.SourceTelegram).Inc()
		c.log.Warn("send reply", "user_id", userID, "error", err)
	}
}

func parseWallet(arg string) (string, error) {
	wallet := strings.Trim(strings.TrimSpace(arg), "`")
	if err := solscan.ValidateAddress(wallet); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidWallet, err)
	}
	return wallet, nil
}

func formatSOL(lamports int64) string {
	return strconv.FormatFloat(solscan.LamportsToSOL(lamports), 'f', -1, 64)
}
