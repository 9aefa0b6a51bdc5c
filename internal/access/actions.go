package access

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Steez431/SLC-PAYMENTBOT/internal/metrics"
	"github.com/Steez431/SLC-PAYMENTBOT/internal/storage"
)

const welcomeText = "Welcome to the SLC Trench Scanner. This channel provides raw contract addresses scans from inside the SLC ecosystem in real-time. " +
	"There is no delay, every CA inside the SLC will be immediately sent into here. You are only seeing the data, no theories, no due diligence, no inside info. " +
	"There will be duplicates, there will be times of noise and times of silence. The alpha is there, the runner is there, it is up to you to find it. " +
	"For full Discord access, inquire via DM at 431steez. Join the SLC, access the edge."

const inviteText = "Join the private SLC Trench Scanner here: %s"

const expiredText = "Your %d-day access expired and you have been removed from the SLC Trench Scanner. " +
	"Send /start <your_solana_wallet_address> and pay again to regain access."

// Messenger is the messaging platform as seen by grants and revocations.
// Every call is best effort; errors are reported, never retried.
type Messenger interface {
	SendMessage(ctx context.Context, chatID any, text string) error
	SendInvite(ctx context.Context, chatID any, text, link string) error
	CreateInviteLink(ctx context.Context, name string) (string, error)
	RemoveMember(ctx context.Context, userID int64) error
}

// Actions performs grants and revocations
type Actions struct {
	store     *storage.Store
	messenger Messenger
	metrics   *metrics.Metrics
	ttl       time.Duration
	log       *slog.Logger

	now func() time.Time
}

// NewActions creates Actions; ttl is only used in the expiry notice
func NewActions(store *storage.Store, messenger Messenger, m *metrics.Metrics, ttl time.Duration, log *slog.Logger) *Actions {
	return &Actions{
		store:     store,
		messenger: messenger,
		metrics:   m,
		ttl:       ttl,
		log:       log,
		now:       time.Now,
	}
}

// Grant records a qualifying payment and sends the welcome message and a
// fresh invite link. Messages go out on every payment, including renewals.
// Only a failure to persist the payment is returned.
func (a *Actions) Grant(ctx context.Context, username, wallet, signature string) error {
	member, err := a.store.RecordPayment(username, wallet, a.now())
	if err != nil {
		a.metrics.UpstreamErrors.WithLabelValues(metrics.SourceStore).Inc()
		return fmt.Errorf("record payment: %w", err)
	}
	a.metrics.Grants.Inc()

	target := recipient(username, member)
	if err := a.messenger.SendMessage(ctx, target, welcomeText); err != nil {
		a.metrics.UpstreamErrors.WithLabelValues(metrics.SourceTelegram).Inc()
		a.log.Warn("send welcome", "username", username, "error", err)
	}

	link, err := a.messenger.CreateInviteLink(ctx, inviteName(username))
	if err != nil {
		a.metrics.UpstreamErrors.WithLabelValues(metrics.SourceTelegram).Inc()
		a.log.Warn("create invite link", "username", username, "error", err)
	} else if link != "" {
		if err := a.messenger.SendInvite(ctx, target, fmt.Sprintf(inviteText, link), link); err != nil {
			a.metrics.UpstreamErrors.WithLabelValues(metrics.SourceTelegram).Inc()
			a.log.Warn("send invite", "username", username, "error", err)
		}
	}

	a.log.Info("granted access",
		"username", username,
		"wallet", wallet,
		"signature", signature,
	)
	return nil
}

// Revoke removes an expired member from the group and tells them. The record
// is already gone from the store; both steps are best effort.
func (a *Actions) Revoke(ctx context.Context, exp storage.Expired) {
	a.metrics.Revocations.Inc()

	if exp.Member.UserID == nil {
		a.log.Info("expired member without user id", "username", exp.Username)
		return
	}
	userID := *exp.Member.UserID

	if err := a.messenger.RemoveMember(ctx, userID); err != nil {
		a.metrics.UpstreamErrors.WithLabelValues(metrics.SourceTelegram).Inc()
		a.log.Warn("remove member", "username", exp.Username, "user_id", userID, "error", err)
	}

	days := int(a.ttl / (24 * time.Hour))
	if err := a.messenger.SendMessage(ctx, userID, fmt.Sprintf(expiredText, days)); err != nil {
		a.metrics.UpstreamErrors.WithLabelValues(metrics.SourceTelegram).Inc()
		a.log.Warn("send expiry notice", "username", exp.Username, "user_id", userID, "error", err)
	}

	a.log.Info("revoked access", "username", exp.Username, "user_id", userID)
}

// recipient prefers the numeric user id, falling back to the username.
func recipient(username string, m storage.Member) any {
	if m.UserID != nil {
		return *m.UserID
	}
	return username
}

// inviteName labels a link in the group's link list; Telegram caps it at 32 characters.
func inviteName(username string) string {
	name := "grant " + username
	if len(name) > 32 {
		name = name[:32]
	}
	return name
}
