package access

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/Steez431/SLC-PAYMENTBOT/internal/metrics"
	"github.com/Steez431/SLC-PAYMENTBOT/internal/solscan"
	"github.com/Steez431/SLC-PAYMENTBOT/internal/storage"
)

const (
	receivingWallet = "GFxQeqQBhgu4yLYLf7BFUBkRkhbfTnkAfwsrN9TEaTZv"
	walletA         = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	walletB         = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	ttl             = 30 * 24 * time.Hour
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// --- fakes ---

type sentMessage struct {
	ChatID any
	Text   string
	Link   string
}

type fakeMessenger struct {
	mu        sync.Mutex
	messages  []sentMessage
	invites   []string
	removed   []int64
	linkCount int

	failSend   bool
	failRemove bool
}

func (f *fakeMessenger) SendMessage(ctx context.Context, chatID any, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return errors.New("telegram down")
	}
	f.messages = append(f.messages, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (f *fakeMessenger) SendInvite(ctx context.Context, chatID any, text, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return errors.New("telegram down")
	}
	f.messages = append(f.messages, sentMessage{ChatID: chatID, Text: text, Link: link})
	return nil
}

func (f *fakeMessenger) CreateInviteLink(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkCount++
	link := fmt.Sprintf("https://t.me/+invite%d", f.linkCount)
	f.invites = append(f.invites, link)
	return link, nil
}

func (f *fakeMessenger) RemoveMember(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, userID)
	if f.failRemove {
		return errors.New("not enough rights")
	}
	return nil
}

func (f *fakeMessenger) sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.messages...)
}

type fakeLedger struct {
	txs       []solscan.TxSummary
	details   map[string]string
	detailErr map[string]error
	listErr   error
	calls     map[string]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		details:   make(map[string]string),
		detailErr: make(map[string]error),
		calls:     make(map[string]int),
	}
}

func (l *fakeLedger) add(signature, detail string) {
	l.txs = append(l.txs, solscan.TxSummary{TxHash: signature})
	l.details[signature] = detail
}

func (l *fakeLedger) RecentTransactions(ctx context.Context, address string, limit int) ([]solscan.TxSummary, error) {
	if l.listErr != nil {
		return nil, l.listErr
	}
	return l.txs, nil
}

func (l *fakeLedger) TransactionDetail(ctx context.Context, signature string) (*solscan.TxDetail, error) {
	l.calls[signature]++
	if err := l.detailErr[signature]; err != nil {
		return nil, err
	}
	return solscan.ParseDetail(signature, []byte(l.details[signature]))
}

// --- harness ---

type harness struct {
	store     *storage.Store
	messenger *fakeMessenger
	ledger    *fakeLedger
	metrics   *metrics.Metrics
	actions   *Actions
	scanner   *Scanner
	sweeper   *Sweeper
	clock     time.Time
}

func newHarness(t *testing.T, whitelist ...string) *harness {
	t.Helper()

	backend, err := storage.NewFileBackend(filepath.Join(t.TempDir(), "slc_users.json"))
	require.NoError(t, err)
	store, err := storage.Open(backend, 1000)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		store:     store,
		messenger: &fakeMessenger{},
		ledger:    newFakeLedger(),
		metrics:   metrics.New(prometheus.NewRegistry()),
		clock:     t0,
	}
	now := func() time.Time { return h.clock }

	h.actions = NewActions(store, h.messenger, h.metrics, ttl, log)
	h.actions.now = now

	h.scanner = NewScanner(ScannerConfig{
		ReceivingWallet: receivingWallet,
		MinLamports:     solscan.SOLToLamports(0.15),
		MemoMarker:      "SLC30",
		Limit:           50,
		Interval:        30 * time.Second,
	}, store, h.ledger, h.actions, h.metrics, log)

	exempt := func(username string) bool {
		for _, w := range whitelist {
			if w == username {
				return true
			}
		}
		return false
	}
	h.sweeper = NewSweeper(store, h.actions, ttl, exempt, h.metrics, log)
	h.sweeper.now = now

	return h
}

func paymentDetail(payer string, lamports string, memo string) string {
	return `{"feePayer":"` + payer + `","status":"Success",` +
		`"solTransfers":[{"source":"` + payer + `","destination":"` + receivingWallet + `","amount":` + lamports + `}],` +
		`"parsedInstruction":[{"type":"memo","params":{"memo":"` + memo + `"}}]}`
}
