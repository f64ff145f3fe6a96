package lifecycle

import (
	"context"
	"time"

	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/domain/ledger"
	"tuition-escrow/internal/domain/uow"
)

func (o *Orchestrator) PrepareBurn(ctx context.Context, agreementID string) (ledger.Instruction, error) {
	a, err := o.load(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	if err := a.CanBurn(); err != nil {
		return nil, err
	}
	// the company holds the asset after funding
	ins, err := o.gateway.PrepareBurnAsset(ctx, ledger.BurnParams{Account: a.CompanyAddress, AssetID: *a.AssetID})
	return ins, ledgerErr(err)
}

// RecordClosed moves a REPAID agreement to CLOSED once its asset is burned.
func (o *Orchestrator) RecordClosed(ctx context.Context, agreementID string) (*agreement.Agreement, error) {
	return o.mutate(ctx, agreementID, func(_ uow.Repos, a *agreement.Agreement, now time.Time) (bool, error) {
		if err := a.Close(now); err != nil {
			return false, err
		}
		return true, nil
	})
}
