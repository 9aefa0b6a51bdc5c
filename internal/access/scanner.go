package access

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Steez431/SLC-PAYMENTBOT/internal/metrics"
	"github.com/Steez431/SLC-PAYMENTBOT/internal/solscan"
	"github.com/Steez431/SLC-PAYMENTBOT/internal/storage"
)

// Ledger is the explorer API the scanner reads
type Ledger interface {
	RecentTransactions(ctx context.Context, address string, limit int) ([]solscan.TxSummary, error)
	TransactionDetail(ctx context.Context, signature string) (*solscan.TxDetail, error)
}

// Outcome is what processing one transaction led to
type Outcome string

const (
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeFailedTx     Outcome = Outcome(metrics.OutcomeFailedTx)
	OutcomeBelowMinimum Outcome = Outcome(metrics.OutcomeBelowMinimum)
	OutcomeNoMemo       Outcome = Outcome(metrics.OutcomeNoMemo)
	OutcomeUnknownPayer Outcome = Outcome(metrics.OutcomeUnknownPayer)
	OutcomeGranted      Outcome = Outcome(metrics.OutcomeGranted)
)

// ScannerConfig holds the payment rules
type ScannerConfig struct {
	ReceivingWallet string
	MinLamports     int64
	MemoMarker      string
	Limit           int
	Interval        time.Duration
}

// Scanner polls the receiving wallet for qualifying payments
type Scanner struct {
	cfg     ScannerConfig
	store   *storage.Store
	ledger  Ledger
	actions *Actions
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewScanner creates a new scanner
func NewScanner(cfg ScannerConfig, store *storage.Store, ledger Ledger, actions *Actions, m *metrics.Metrics, log *slog.Logger) *Scanner {
	return &Scanner{
		cfg:     cfg,
		store:   store,
		ledger:  ledger,
		actions: actions,
		metrics: m,
		log:     log,
	}
}

// Start scans once, then on every interval until ctx is done
func (s *Scanner) Start(ctx context.Context) {
	s.log.Info("ledger scanner started",
		"wallet", s.cfg.ReceivingWallet,
		"interval", s.cfg.Interval,
		"min_lamports", s.cfg.MinLamports,
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.Scan(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("scan ledger", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Scan processes the most recent transactions of the receiving wallet.
// A failure on one transaction does not stop the others; the first
// persistence error is returned after the pass.
func (s *Scanner) Scan(ctx context.Context) error {
	txs, err := s.ledger.RecentTransactions(ctx, s.cfg.ReceivingWallet, s.cfg.Limit)
	if err != nil {
		s.metrics.UpstreamErrors.WithLabelValues(metrics.SourceSolscan).Inc()
		return fmt.Errorf("list transactions: %w", err)
	}

	var firstErr error
	for _, tx := range txs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		outcome, err := s.Process(ctx, tx.ID())
		if err != nil {
			s.log.Warn("process transaction", "signature", tx.ID(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if outcome != OutcomeDuplicate {
			s.log.Debug("transaction processed",
				"signature", tx.ID(),
				"block_time", tx.BlockTime,
				"outcome", outcome,
			)
		}
	}
	return firstErr
}

// Process evaluates one transaction. A transaction whose detail cannot be
// fetched stays unseen and is retried on the next scan. Once the detail is
// in hand the signature is marked seen before anything else, so a later
// failure never leads to a second attempt.
func (s *Scanner) Process(ctx context.Context, signature string) (Outcome, error) {
	if signature == "" || s.store.IsSeen(signature) {
		return OutcomeDuplicate, nil
	}

	detail, err := s.ledger.TransactionDetail(ctx, signature)
	if err != nil {
		s.metrics.UpstreamErrors.WithLabelValues(metrics.SourceSolscan).Inc()
		return "", fmt.Errorf("transaction detail: %w", err)
	}

	isNew, err := s.store.MarkSeen(signature)
	if err != nil {
		s.metrics.UpstreamErrors.WithLabelValues(metrics.SourceStore).Inc()
		return "", fmt.Errorf("mark seen: %w", err)
	}
	if !isNew {
		return OutcomeDuplicate, nil
	}
	s.metrics.TransactionsSeen.Inc()

	outcome, username, payer := s.evaluate(detail)
	s.metrics.Payments.WithLabelValues(string(outcome)).Inc()
	if outcome != OutcomeGranted {
		if outcome == OutcomeUnknownPayer {
			s.log.Info("payment from unregistered wallet dropped",
				"signature", signature,
				"payer", solscan.ShortAddr(payer, 4),
			)
		}
		return outcome, nil
	}

	if err := s.actions.Grant(ctx, username, payer, signature); err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (s *Scanner) evaluate(detail *solscan.TxDetail) (outcome Outcome, username, payer string) {
	if detail.Failed() {
		return OutcomeFailedTx, "", ""
	}
	if detail.LamportsTo(s.cfg.ReceivingWallet) < s.cfg.MinLamports {
		return OutcomeBelowMinimum, "", ""
	}
	if !detail.Contains(s.cfg.MemoMarker) {
		return OutcomeNoMemo, "", ""
	}

	payer = detail.Payer()
	if payer == "" {
		return OutcomeUnknownPayer, "", ""
	}
	username, ok := s.store.UsernameForWallet(payer)
	if !ok {
		return OutcomeUnknownPayer, "", payer
	}
	return OutcomeGranted, username, payer
}
