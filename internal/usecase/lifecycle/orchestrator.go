// Package lifecycle drives loan agreements through
// AWAITING_FUNDING → FUNDED → REPAYING → REPAID → CLOSED.
// It is the only writer of agreement status.
package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/domain/failure"
	"tuition-escrow/internal/domain/ledger"
	"tuition-escrow/internal/domain/metadata"
	"tuition-escrow/internal/domain/uow"
)

// TransitionFunc observes committed status changes.
type TransitionFunc func(agreementID string, from, to agreement.Status)

type Settings struct {
	// MaturityZone fixes the calendar day boundary for installment due dates.
	MaturityZone *time.Location
	// MinLockLead keeps FinishAfter in the future for overdue installments.
	MinLockLead time.Duration
}

type Orchestrator struct {
	repos     uow.Repos // reads outside a transaction
	uow       uow.UnitOfWork
	gateway   ledger.Gateway
	publisher metadata.Publisher
	settings  Settings

	now         func() time.Time
	log         *slog.Logger
	transitions []TransitionFunc
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.log = l } }

func OnTransition(fn TransitionFunc) Option {
	return func(o *Orchestrator) { o.transitions = append(o.transitions, fn) }
}

func NewOrchestrator(repos uow.Repos, tx uow.UnitOfWork, gw ledger.Gateway, pub metadata.Publisher, s Settings, opts ...Option) *Orchestrator {
	if s.MaturityZone == nil {
		s.MaturityZone = time.UTC
	}
	o := &Orchestrator{
		repos:     repos,
		uow:       tx,
		gateway:   gw,
		publisher: pub,
		settings:  s,
		now:       func() time.Time { return time.Now().UTC() },
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AddTransitionHook registers fn after construction, for wiring cycles
// such as the repayment listener that itself depends on the orchestrator.
func (o *Orchestrator) AddTransitionHook(fn TransitionFunc) {
	o.transitions = append(o.transitions, fn)
}

func (o *Orchestrator) GetAgreement(ctx context.Context, agreementID string) (*agreement.Agreement, error) {
	return o.repos.Agreements.GetByAgreementID(ctx, agreementID)
}

// mutate runs fn against the locked agreement, then the shared settle check,
// and persists only if something changed.
func (o *Orchestrator) mutate(ctx context.Context, agreementID string, fn func(r uow.Repos, a *agreement.Agreement, now time.Time) (bool, error)) (*agreement.Agreement, error) {
	var (
		out   *agreement.Agreement
		steps []agreement.Status
	)
	err := o.uow.WithinAgreementTx(ctx, agreementID, func(r uow.Repos, a *agreement.Agreement) error {
		now := o.now()
		steps = []agreement.Status{a.Status}

		changed, err := fn(r, a, now)
		if err != nil {
			return err
		}
		if a.Status != steps[len(steps)-1] {
			steps = append(steps, a.Status)
		}
		if _, settled := a.Settle(now); settled {
			steps = append(steps, a.Status)
			changed = true
		}
		out = a
		if !changed {
			return nil
		}
		return r.Agreements.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(steps); i++ {
		o.notify(agreementID, steps[i-1], steps[i])
	}
	return out, nil
}

func (o *Orchestrator) notify(agreementID string, from, to agreement.Status) {
	o.log.Info("agreement status changed", "agreement_id", agreementID, "from", from, "to", to)
	for _, fn := range o.transitions {
		fn(agreementID, from, to)
	}
}

func (o *Orchestrator) load(ctx context.Context, agreementID string) (*agreement.Agreement, error) {
	return o.repos.Agreements.GetByAgreementID(ctx, agreementID)
}

func ledgerErr(err error) error {
	if err == nil {
		return nil
	}
	return failure.External("ledger_unavailable", err)
}
