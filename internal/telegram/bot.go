package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Steez431/SLC-PAYMENTBOT/internal/config"
)

const (
	callTimeout = 10 * time.Second
	pollTimeout = 20 * time.Second
)

// Bot wraps the telegram bot for the private group
type Bot struct {
	bot       *bot.Bot
	chatID    any
	inviteTTL time.Duration
	commands  *Commands
	log       *slog.Logger

	now func() time.Time
}

// New creates a new telegram bot
func New(cfg *config.Config, log *slog.Logger) (*Bot, error) {
	b := &Bot{
		chatID:    ParseChatID(cfg.ChatID),
		inviteTTL: cfg.InviteTTL,
		log:       log,
		now:       time.Now,
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(b.defaultHandler),
		bot.WithErrorsHandler(func(err error) {
			log.Warn("telegram polling", "error", err)
		}),
		bot.WithServerURL(cfg.TelegramAPIURL),
		bot.WithHTTPClient(pollTimeout, &http.Client{Timeout: pollTimeout + 5*time.Second}),
	}

	tgBot, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	b.bot = tgBot
	return b, nil
}

// Start long-polls updates and dispatches them to commands until ctx is done
func (b *Bot) Start(ctx context.Context, commands *Commands) {
	b.commands = commands
	b.bot.Start(ctx)
}

func (b *Bot) defaultHandler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.From == nil || msg.Text == "" || b.commands == nil {
		return
	}

	b.commands.Handle(ctx, Inbound{
		UserID: msg.From.ID,
		Handle: msg.From.Username,
		Text:   msg.Text,
	})
}

// SendMessage sends plain text to a user id or @username
func (b *Bot) SendMessage(ctx context.Context, chatID any, text string) error {
	return b.send(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
}

// SendInvite sends text with the invite link attached as a button
func (b *Bot) SendInvite(ctx context.Context, chatID any, text, link string) error {
	return b.send(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: InviteKeyboard(link),
	})
}

func (b *Bot) send(ctx context.Context, params *bot.SendMessageParams) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	disablePreview := true
	params.LinkPreviewOptions = &models.LinkPreviewOptions{IsDisabled: &disablePreview}

	if _, err := b.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// CreateInviteLink creates a single-use invite link for the group
func (b *Bot) CreateInviteLink(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	params := &bot.CreateChatInviteLinkParams{
		ChatID:      b.chatID,
		Name:        name,
		MemberLimit: 1,
	}
	if b.inviteTTL > 0 {
		params.ExpireDate = int(b.now().Add(b.inviteTTL).Unix())
	}

	link, err := b.bot.CreateChatInviteLink(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create invite link: %w", err)
	}
	return link.InviteLink, nil
}

// RemoveMember kicks a user from the group. The ban is lifted right away so
// the user can come back through a new invite link after paying again.
func (b *Bot) RemoveMember(ctx context.Context, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if _, err := b.bot.BanChatMember(ctx, &bot.BanChatMemberParams{
		ChatID: b.chatID,
		UserID: userID,
	}); err != nil {
		return fmt.Errorf("ban member: %w", err)
	}

	if _, err := b.bot.UnbanChatMember(ctx, &bot.UnbanChatMemberParams{
		ChatID:       b.chatID,
		UserID:       userID,
		OnlyIfBanned: true,
	}); err != nil {
		return fmt.Errorf("unban member: %w", err)
	}
	return nil
}

// ParseChatID returns a numeric chat id as int64 and anything else,
// such as @channelname, unchanged
func ParseChatID(raw string) any {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id
	}
	return raw
}
