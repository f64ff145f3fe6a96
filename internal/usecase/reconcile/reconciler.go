// Package reconcile releases matured installment locks and records
// installments whose locks are already gone from the ledger.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/domain/ledger"
	"tuition-escrow/internal/infrastructure/lock"
	"tuition-escrow/internal/infrastructure/metrics"
)

type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// Releaser is the part of the lifecycle orchestrator the loop writes through.
type Releaser interface {
	MarkInstallmentReleased(ctx context.Context, agreementID string, index int) (*agreement.Agreement, error)
}

type Config struct {
	Interval         time.Duration
	AgreementTimeout time.Duration
	LockTTL          time.Duration
}

type Reconciler struct {
	agreements agreement.Repository
	gateway    ledger.Gateway
	releaser   Releaser
	locker     Locker
	cfg        Config
	now        func() time.Time
	log        *slog.Logger

	// OnRepaying is called after an agreement moves to REPAYING.
	OnRepaying func(agreementID string)
}

func New(agreements agreement.Repository, gw ledger.Gateway, rel Releaser, locker Locker, cfg Config, log *slog.Logger) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.AgreementTimeout <= 0 {
		cfg.AgreementTimeout = 2 * time.Minute
	}
	if cfg.LockTTL < cfg.AgreementTimeout {
		cfg.LockTTL = cfg.AgreementTimeout + 30*time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		agreements: agreements,
		gateway:    gw,
		releaser:   rel,
		locker:     locker,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log.With("component", "reconciler"),
	}
}

func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Run reconciles once immediately and then on every tick until ctx ends.
func (r *Reconciler) Run(ctx context.Context) error {
	r.log.Info("reconciler started", "interval", r.cfg.Interval)
	t := time.NewTicker(r.cfg.Interval)
	defer t.Stop()
	for {
		r.RunOnce(ctx)
		select {
		case <-ctx.Done():
			r.log.Info("reconciler stopped")
			return nil
		case <-t.C:
		}
	}
}

// RunOnce makes a single pass over FUNDED agreements with unreleased locks.
// Failures are logged per agreement and never end the pass.
func (r *Reconciler) RunOnce(ctx context.Context) {
	defer metrics.ReconcileRuns.Inc()

	pending, err := r.agreements.ListAwaitingRelease(ctx)
	if err != nil {
		r.log.Error("list agreements awaiting release", "err", err)
		return
	}
	for i := range pending {
		if ctx.Err() != nil {
			return
		}
		a := &pending[i]
		if err := r.reconcileAgreement(ctx, a); err != nil {
			r.log.Error("reconcile agreement", "agreement_id", a.AgreementID, "err", err)
		}
	}
}

func (r *Reconciler) reconcileAgreement(ctx context.Context, a *agreement.Agreement) error {
	unlock, err := r.locker.TryLock(ctx, "agreement:"+a.AgreementID, r.cfg.LockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		metrics.ReconcileInstallments.WithLabelValues("skipped_locked").Add(float64(len(a.PendingRelease())))
		r.log.Debug("agreement locked elsewhere", "agreement_id", a.AgreementID)
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		// release with a fresh context so a timed out pass still frees the key
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := unlock(rctx); err != nil {
			r.log.Warn("release agreement lock", "agreement_id", a.AgreementID, "err", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.AgreementTimeout)
	defer cancel()

	// the listed row may predate another worker's pass that held the key
	cur, err := r.agreements.GetByAgreementID(ctx, a.AgreementID)
	if err != nil {
		return err
	}
	if cur.Status != agreement.StatusFunded || len(cur.PendingRelease()) == 0 {
		r.log.Debug("agreement settled since listing", "agreement_id", cur.AgreementID, "status", cur.Status)
		return nil
	}
	a = cur

	objects, err := r.gateway.GetAccountObjects(ctx, a.CompanyAddress)
	if err != nil {
		metrics.ReconcileInstallments.WithLabelValues("failed").Add(float64(len(a.PendingRelease())))
		return err
	}
	onLedger := make(map[string]ledger.Lock, len(objects))
	for _, o := range objects {
		onLedger[o.Ref] = o
	}

	now := r.now()
	for _, in := range a.PendingRelease() {
		ref := *in.LockRef
		log := r.log.With("agreement_id", a.AgreementID, "installment", in.Seq, "lock_ref", ref)

		obj, present := onLedger[ref]
		outcome := "released_out_of_band"
		switch {
		case !present:
			log.Info("lock no longer on ledger")
		case !obj.Matured(now):
			metrics.ReconcileInstallments.WithLabelValues("not_matured").Inc()
			continue
		default:
			res, err := r.gateway.ReleaseLockedFunds(ctx, obj)
			if err != nil {
				metrics.ReconcileInstallments.WithLabelValues("failed").Inc()
				log.Error("release lock", "err", err)
				continue
			}
			outcome = "released"
			log.Info("lock released", "tx_hash", res.TxHash, "ledger_index", res.LedgerIndex)
		}

		updated, err := r.releaser.MarkInstallmentReleased(ctx, a.AgreementID, in.Seq)
		if err != nil {
			metrics.ReconcileInstallments.WithLabelValues("failed").Inc()
			log.Error("mark installment released", "err", err)
			continue
		}
		metrics.ReconcileInstallments.WithLabelValues(outcome).Inc()
		if updated.Status == agreement.StatusRepaying && r.OnRepaying != nil {
			r.OnRepaying(a.AgreementID)
		}
	}
	return nil
}
