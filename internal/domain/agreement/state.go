package agreement

import (
	"time"

	"tuition-escrow/internal/domain/failure"
	"tuition-escrow/pkg/money"

	"github.com/shopspring/decimal"
)

// forward lists the only permitted successor of each status.
var forward = map[Status]Status{
	StatusAwaitingFunding: StatusFunded,
	StatusFunded:          StatusRepaying,
	StatusRepaying:        StatusRepaid,
	StatusRepaid:          StatusClosed,
}

func (s Status) Next() (Status, bool) {
	n, ok := forward[s]
	return n, ok
}

// Rank orders statuses along the lifecycle; unknown statuses rank -1.
func (s Status) Rank() int {
	switch s {
	case StatusAwaitingFunding:
		return 0
	case StatusFunded:
		return 1
	case StatusRepaying:
		return 2
	case StatusRepaid:
		return 3
	case StatusClosed:
		return 4
	}
	return -1
}

func (a *Agreement) advanceTo(to Status, at time.Time) error {
	if next, ok := a.Status.Next(); !ok || next != to {
		return failure.Wrap(ErrInvalidTransition, "%s -> %s", a.Status, to)
	}
	a.Status = to
	a.StatusUpdatedAt = at
	return nil
}

func (a *Agreement) require(s Status) error {
	if a.Status != s {
		return failure.Wrap(ErrInvalidTransition, "status is %s, want %s", a.Status, s)
	}
	return nil
}

// RecordAsset stores the minted asset id while awaiting funding.
func (a *Agreement) RecordAsset(assetID string) (changed bool, err error) {
	if err := a.require(StatusAwaitingFunding); err != nil {
		return false, err
	}
	return setOnce(&a.AssetID, assetID, ErrAssetMismatch)
}

func (a *Agreement) RecordTransferOffer(ref string) (changed bool, err error) {
	if err := a.require(StatusAwaitingFunding); err != nil {
		return false, err
	}
	return setOnce(&a.TransferOfferRef, ref, ErrTransferMismatch)
}

// MarkFunded moves AWAITING_FUNDING to FUNDED. Repeating it with the same
// asset id after funding is a no-op.
func (a *Agreement) MarkFunded(assetID string, at time.Time) (changed bool, err error) {
	if a.Status != StatusAwaitingFunding {
		if a.Status.Rank() > StatusAwaitingFunding.Rank() && a.AssetID != nil {
			if *a.AssetID == assetID {
				return false, nil
			}
			return false, ErrAssetMismatch
		}
		return false, a.require(StatusAwaitingFunding)
	}
	if _, err := setOnce(&a.AssetID, assetID, ErrAssetMismatch); err != nil {
		return false, err
	}
	return true, a.advanceTo(StatusFunded, at)
}

func (a *Agreement) Installment(index int) (*Installment, error) {
	for i := range a.Installments {
		if a.Installments[i].Seq == index {
			return &a.Installments[i], nil
		}
	}
	return nil, failure.Wrap(ErrInstallmentIndex, "index %d", index)
}

func (a *Agreement) RecordLock(index int, ref string) (changed bool, err error) {
	if err := a.require(StatusFunded); err != nil {
		return false, err
	}
	in, err := a.Installment(index)
	if err != nil {
		return false, err
	}
	return setOnce(&in.LockRef, ref, ErrLockMismatch)
}

// Unlocked returns the installments that still need a fund lock, in schedule order.
func (a *Agreement) Unlocked() []Installment {
	var out []Installment
	for _, in := range a.Installments {
		if !in.Locked() && !in.Released {
			out = append(out, in)
		}
	}
	return out
}

// PendingRelease returns locked installments not yet released.
func (a *Agreement) PendingRelease() []Installment {
	var out []Installment
	for _, in := range a.Installments {
		if in.Locked() && !in.Released {
			out = append(out, in)
		}
	}
	return out
}

func (a *Agreement) AllReleased() bool {
	for _, in := range a.Installments {
		if !in.Released {
			return false
		}
	}
	return true
}

// MarkReleased flags a locked installment as released. Only the release flag
// changes here; status moves through Settle.
func (a *Agreement) MarkReleased(index int) (changed bool, err error) {
	if err := a.require(StatusFunded); err != nil {
		return false, err
	}
	in, err := a.Installment(index)
	if err != nil {
		return false, err
	}
	if !in.Locked() {
		return false, failure.Wrap(ErrNotLocked, "index %d", index)
	}
	if in.Released {
		return false, nil
	}
	in.Released = true
	return true, nil
}

// Credit adds a repayment to AmountPaid, never beyond TotalOwed.
func (a *Agreement) Credit(amount decimal.Decimal) (credited, excess decimal.Decimal, err error) {
	if err := a.require(StatusRepaying); err != nil {
		return decimal.Zero, amount, err
	}
	credited, excess = money.Credit(a.AmountPaid, a.TotalOwed, amount)
	a.AmountPaid = a.AmountPaid.Add(credited)
	return credited, excess, nil
}

// Settle is the shared maybe-advance check run after sub-field changes.
// It moves FUNDED to REPAYING once every installment is released and
// REPAYING to REPAID once the debt is covered. Re-running it is harmless.
func (a *Agreement) Settle(at time.Time) (from Status, changed bool) {
	from = a.Status
	switch a.Status {
	case StatusFunded:
		if a.AllReleased() {
			_ = a.advanceTo(StatusRepaying, at)
		}
	case StatusRepaying:
		if a.AmountPaid.GreaterThanOrEqual(a.TotalOwed) {
			_ = a.advanceTo(StatusRepaid, at)
		}
	}
	return from, a.Status != from
}

// CanBurn reports the burn precondition: REPAID with a recorded asset.
func (a *Agreement) CanBurn() error {
	if err := a.require(StatusRepaid); err != nil {
		return err
	}
	if a.AssetID == nil || *a.AssetID == "" {
		return ErrAssetMissing
	}
	return nil
}

func (a *Agreement) Close(at time.Time) error {
	if err := a.CanBurn(); err != nil {
		return err
	}
	return a.advanceTo(StatusClosed, at)
}

func setOnce(field **string, v string, mismatch *failure.Error) (bool, error) {
	if *field != nil {
		if **field == v {
			return false, nil
		}
		return false, failure.Wrap(mismatch, "have %s, got %s", **field, v)
	}
	*field = &v
	return true, nil
}
