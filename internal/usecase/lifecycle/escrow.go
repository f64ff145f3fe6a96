package lifecycle

import (
	"context"
	"time"

	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/domain/failure"
	"tuition-escrow/internal/domain/ledger"
	"tuition-escrow/internal/domain/uow"
)

// PrepareInstallmentLocks builds one unsigned lock per installment that has
// neither a lock nor a release. It writes nothing and may be repeated.
func (o *Orchestrator) PrepareInstallmentLocks(ctx context.Context, agreementID string) ([]LockInstruction, error) {
	a, err := o.load(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	if a.Status != agreement.StatusFunded {
		return nil, failure.Wrap(agreement.ErrInvalidTransition, "status is %s", a.Status)
	}

	earliest := o.now().Add(o.settings.MinLockLead)
	out := make([]LockInstruction, 0, len(a.Installments))
	for _, in := range a.Unlocked() {
		matures := o.maturity(in.DueDate, earliest)
		ins, err := o.gateway.PrepareLockFunds(ctx, ledger.LockParams{
			Account:     a.CompanyAddress,
			Destination: a.SchoolAddress,
			Amount:      in.Amount,
			MaturesAt:   matures,
		})
		if err != nil {
			return nil, ledgerErr(err)
		}
		out = append(out, LockInstruction{
			InstallmentIndex: in.Seq,
			Amount:           in.Amount,
			MaturesAt:        matures,
			Instruction:      ins,
		})
	}
	return out, nil
}

func (o *Orchestrator) maturity(due, earliest time.Time) time.Time {
	t := ledger.MaturityFor(due, o.settings.MaturityZone)
	if t.Before(earliest) {
		return earliest.Truncate(time.Second)
	}
	return t
}

// RecordInstallmentLock stores lockRef, the ledger object index of the
// escrow, once the company's account shows a lock paying the installment to
// the school. Re-recording the same reference skips the ledger lookup.
func (o *Orchestrator) RecordInstallmentLock(ctx context.Context, agreementID string, index int, lockRef string) (*agreement.Agreement, error) {
	a, err := o.load(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	if a.Status != agreement.StatusFunded {
		return nil, failure.Wrap(agreement.ErrInvalidTransition, "status is %s", a.Status)
	}
	in, err := a.Installment(index)
	if err != nil {
		return nil, err
	}
	if in.LockRef == nil {
		if err := o.verifyLock(ctx, a, in, lockRef); err != nil {
			return nil, err
		}
	}
	return o.mutate(ctx, agreementID, func(_ uow.Repos, a *agreement.Agreement, _ time.Time) (bool, error) {
		return a.RecordLock(index, lockRef)
	})
}

func (o *Orchestrator) verifyLock(ctx context.Context, a *agreement.Agreement, in *agreement.Installment, lockRef string) error {
	locks, err := o.gateway.GetAccountObjects(ctx, a.CompanyAddress)
	if err != nil {
		return ledgerErr(err)
	}
	for _, l := range locks {
		if l.Ref != lockRef {
			continue
		}
		if l.Destination != a.SchoolAddress || !l.Amount.Equal(in.Amount) {
			return failure.Wrap(agreement.ErrLockTerms, "lock pays %s to %s, installment %d is %s to %s",
				l.Amount, l.Destination, in.Seq, in.Amount, a.SchoolAddress)
		}
		return nil
	}
	return failure.Wrap(agreement.ErrLockNotOnLedger, "%s", lockRef)
}

// MarkInstallmentReleased records that the lock of installment index no
// longer holds funds, then lets the agreement advance to REPAYING.
func (o *Orchestrator) MarkInstallmentReleased(ctx context.Context, agreementID string, index int) (*agreement.Agreement, error) {
	return o.mutate(ctx, agreementID, func(_ uow.Repos, a *agreement.Agreement, _ time.Time) (bool, error) {
		return a.MarkReleased(index)
	})
}
