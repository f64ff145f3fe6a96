// Package repayment watches student accounts of REPAYING agreements and
// credits memo-tagged payments through the lifecycle orchestrator.
package repayment

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/domain/ledger"
	domain "tuition-escrow/internal/domain/repayment"
	"tuition-escrow/internal/infrastructure/metrics"
	"tuition-escrow/internal/usecase/lifecycle"
)

// MemoType tags a payment as a loan repayment; the memo data carries the agreement id.
const MemoType = "LoanRepayment"

const resultSuccess = "tesSUCCESS"

type Applier interface {
	ApplyRepayment(ctx context.Context, p lifecycle.Payment) (*lifecycle.RepaymentResult, error)
}

type Config struct {
	RefreshInterval time.Duration
	BackoffMin      time.Duration
	BackoffMax      time.Duration
}

type Listener struct {
	agreements agreement.Repository
	cursors    domain.Repository
	gateway    ledger.Gateway
	applier    Applier
	cfg        Config
	log        *slog.Logger

	refresh chan struct{}
}

func NewListener(agreements agreement.Repository, cursors domain.Repository, gw ledger.Gateway, applier Applier, cfg Config, log *slog.Logger) *Listener {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Minute
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = time.Second
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Listener{
		agreements: agreements,
		cursors:    cursors,
		gateway:    gw,
		applier:    applier,
		cfg:        cfg,
		log:        log.With("component", "repayment_listener"),
		refresh:    make(chan struct{}, 1),
	}
}

// Refresh asks the listener to recompute its watch set. It never blocks.
func (l *Listener) Refresh() {
	select {
	case l.refresh <- struct{}{}:
	default:
	}
}

// Run keeps a payment subscription open for the current watch set until ctx
// ends, reconnecting with exponential backoff when the stream drops.
func (l *Listener) Run(ctx context.Context) error {
	l.log.Info("repayment listener started")
	backoff := l.cfg.BackoffMin
	for ctx.Err() == nil {
		accounts, err := l.watchSet(ctx)
		if err != nil {
			l.log.Error("compute watch set", "err", err)
			l.sleep(ctx, &backoff)
			continue
		}
		metrics.WatchedAccounts.Set(float64(len(accounts)))
		if len(accounts) == 0 {
			l.idle(ctx)
			continue
		}

		subscribed, err := l.session(ctx, accounts)
		if subscribed {
			backoff = l.cfg.BackoffMin
		}
		if err != nil && ctx.Err() == nil {
			l.log.Warn("payment stream ended", "err", err, "retry_in", backoff)
			l.sleep(ctx, &backoff)
		}
	}
	l.log.Info("repayment listener stopped")
	return nil
}

var (
	errStreamClosed = errors.New("payment stream closed")
	errApplyFailed  = errors.New("repayment apply failed")
)

const outcomeFailed = "failed"

// session subscribes, replays missed payments and drains the stream. It
// returns nil when the watch set changed and a resubscribe is due. A failed
// apply ends the session so the next one replays from the stuck cursor
// before any later payment can move it on.
func (l *Listener) session(ctx context.Context, accounts []string) (subscribed bool, err error) {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := l.gateway.SubscribeToPayments(subCtx, accounts)
	if err != nil {
		return false, err
	}
	metrics.ListenerSubscriptions.Inc()
	l.log.Info("subscribed to payments", "accounts", len(accounts))

	// subscribe first so nothing validated between replay and stream is missed
	if err := l.replay(ctx, accounts); err != nil {
		return false, err
	}

	ticker := time.NewTicker(l.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case ev, ok := <-events:
			if !ok {
				return true, errStreamClosed
			}
			if l.HandlePayment(ctx, accounts, ev) == outcomeFailed {
				return false, fmt.Errorf("%w: %s", errApplyFailed, ev.TxHash)
			}
		case <-l.refresh:
			if l.changed(ctx, accounts) {
				return true, nil
			}
		case <-ticker.C:
			if l.changed(ctx, accounts) {
				return true, nil
			}
		}
	}
}

// replay re-reads every watched account from its cursor ledger inclusive.
// Events already applied there come back as duplicates.
func (l *Listener) replay(ctx context.Context, accounts []string) error {
	for _, acct := range accounts {
		from, ok, err := l.cursors.Cursor(ctx, acct)
		if err != nil {
			return fmt.Errorf("read cursor of %s: %w", acct, err)
		}
		if !ok {
			continue
		}
		missed, err := l.gateway.PaymentsSince(ctx, acct, from)
		if err != nil {
			return fmt.Errorf("replay %s from ledger %d: %w", acct, from, err)
		}
		for _, ev := range missed {
			if l.HandlePayment(ctx, accounts, ev) == outcomeFailed {
				return fmt.Errorf("%w: %s", errApplyFailed, ev.TxHash)
			}
		}
	}
	return nil
}

// HandlePayment applies one ledger event and then moves the cursor of every
// watched account it touches to the event's ledger. The cursor marks where a
// replay resumes, inclusive, so it moves on a failed apply too and the
// failed event is read again.
func (l *Listener) HandlePayment(ctx context.Context, watched []string, ev ledger.PaymentEvent) string {
	outcome, err := l.apply(ctx, ev)
	metrics.RepaymentEvents.WithLabelValues(outcome).Inc()
	if err != nil {
		l.log.Error("apply repayment", "tx_hash", ev.TxHash, "ledger_index", ev.LedgerIndex, "err", err)
	}
	for _, acct := range []string{ev.Source, ev.Destination} {
		if !slices.Contains(watched, acct) {
			continue
		}
		if err := l.cursors.AdvanceCursor(ctx, acct, ev.LedgerIndex); err != nil {
			l.log.Error("advance cursor", "account", acct, "ledger_index", ev.LedgerIndex, "err", err)
		}
	}
	return outcome
}

func (l *Listener) apply(ctx context.Context, ev ledger.PaymentEvent) (string, error) {
	if ev.TransactionType != "Payment" || ev.Result != resultSuccess || !ev.Native {
		return "ignored", nil
	}
	agreementID, ok := RepaymentTarget(ev.Memos)
	if !ok {
		return "ignored", nil
	}
	res, err := l.applier.ApplyRepayment(ctx, lifecycle.Payment{
		TxHash:      ev.TxHash,
		LedgerIndex: ev.LedgerIndex,
		AgreementID: agreementID,
		Source:      ev.Source,
		Destination: ev.Destination,
		Amount:      ev.Amount,
	})
	switch {
	case errors.Is(err, agreement.ErrNotFound):
		l.log.Warn("repayment for unknown agreement", "agreement_id", agreementID, "tx_hash", ev.TxHash)
		return "ignored", nil
	case err != nil:
		return outcomeFailed, err
	case res.Duplicate:
		return "duplicate", nil
	}
	l.log.Info("repayment processed", "agreement_id", agreementID, "tx_hash", ev.TxHash,
		"outcome", res.Outcome, "credited", res.Credited, "status", res.Status)
	return string(res.Outcome), nil
}

// RepaymentTarget returns the agreement id of the first LoanRepayment memo.
func RepaymentTarget(memos []ledger.Memo) (string, bool) {
	for _, m := range memos {
		if decodeMemo(m.Type) != MemoType {
			continue
		}
		if id := strings.TrimSpace(decodeMemo(m.Data)); id != "" {
			return id, true
		}
	}
	return "", false
}

func decodeMemo(s string) string {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ""
	}
	return string(b)
}

// watchSet is the sorted distinct student accounts of REPAYING agreements.
func (l *Listener) watchSet(ctx context.Context) ([]string, error) {
	list, err := l.agreements.ListByStatus(ctx, agreement.StatusRepaying)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.StudentAddress)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (l *Listener) changed(ctx context.Context, current []string) bool {
	next, err := l.watchSet(ctx)
	if err != nil {
		l.log.Error("refresh watch set", "err", err)
		return false
	}
	if slices.Equal(next, current) {
		return false
	}
	l.log.Info("watch set changed", "from", len(current), "to", len(next))
	return true
}

func (l *Listener) idle(ctx context.Context) {
	t := time.NewTimer(l.cfg.RefreshInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-l.refresh:
	case <-t.C:
	}
}

func (l *Listener) sleep(ctx context.Context, backoff *time.Duration) {
	t := time.NewTimer(*backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	*backoff = min(*backoff*2, l.cfg.BackoffMax)
}
