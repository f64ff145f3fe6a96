package lifecycle

import (
	"context"
	"errors"
	"time"

	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/domain/repayment"
	"tuition-escrow/internal/domain/uow"

	"github.com/shopspring/decimal"
)

// ApplyRepayment credits an observed payment to its agreement at most once
// per transaction hash. Payments that cannot be credited are still recorded
// with their outcome so a redelivery stays a no-op.
func (o *Orchestrator) ApplyRepayment(ctx context.Context, p Payment) (*RepaymentResult, error) {
	res := &RepaymentResult{Credited: decimal.Zero, Excess: decimal.Zero}
	a, err := o.mutate(ctx, p.AgreementID, func(r uow.Repos, a *agreement.Agreement, now time.Time) (bool, error) {
		if _, err := r.Repayments.GetByTxHash(ctx, p.TxHash); err == nil {
			res.Duplicate = true
			return false, nil
		} else if !errors.Is(err, repayment.ErrNotFound) {
			return false, err
		}

		rec := &repayment.Repayment{
			TxHash:      p.TxHash,
			AgreementID: a.AgreementID,
			LedgerIndex: p.LedgerIndex,
			Source:      p.Source,
			Destination: p.Destination,
			Amount:      p.Amount,
			Credited:    decimal.Zero,
			Excess:      decimal.Zero,
			AppliedAt:   now,
		}
		changed := false
		switch {
		case p.Source != a.StudentAddress || p.Destination != a.CompanyAddress:
			rec.Outcome = repayment.OutcomeMismatch
		case a.Status != agreement.StatusRepaying:
			rec.Outcome = repayment.OutcomeNotRepaying
		default:
			credited, excess, err := a.Credit(p.Amount)
			if err != nil {
				return false, err
			}
			rec.Outcome = repayment.OutcomeApplied
			rec.Credited, rec.Excess = credited, excess
			changed = credited.IsPositive()
		}
		if err := r.Repayments.Record(ctx, rec); err != nil {
			return false, err
		}
		res.Outcome, res.Credited, res.Excess = rec.Outcome, rec.Credited, rec.Excess
		return changed, nil
	})
	if errors.Is(err, repayment.ErrDuplicate) {
		// lost the insert race to another delivery of the same transaction
		a, gerr := o.load(ctx, p.AgreementID)
		if gerr != nil {
			return nil, gerr
		}
		return &RepaymentResult{Duplicate: true, Credited: decimal.Zero, Excess: decimal.Zero, Status: a.Status}, nil
	}
	if err != nil {
		return nil, err
	}
	res.Status = a.Status
	if res.Outcome != "" && res.Outcome != repayment.OutcomeApplied {
		o.log.Warn("repayment not credited", "agreement_id", p.AgreementID, "tx_hash", p.TxHash, "outcome", res.Outcome)
	}
	return res, nil
}
