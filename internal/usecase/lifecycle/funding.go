package lifecycle

import (
	"context"
	"time"

	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/domain/failure"
	"tuition-escrow/internal/domain/ledger"
	"tuition-escrow/internal/domain/uow"
)

// PrepareMint re-issues the unsigned mint for an agreement whose metadata is
// published but whose asset is not recorded yet.
func (o *Orchestrator) PrepareMint(ctx context.Context, agreementID string) (ledger.Instruction, error) {
	a, err := o.load(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	switch {
	case a.Status != agreement.StatusAwaitingFunding:
		return nil, failure.Wrap(agreement.ErrInvalidTransition, "status is %s", a.Status)
	case a.MetadataURI == nil:
		return nil, agreement.ErrMetadataMissing
	case a.AssetID != nil:
		return nil, failure.Wrap(agreement.ErrInvalidTransition, "asset %s already minted", *a.AssetID)
	}
	ins, err := o.gateway.PrepareCreateAsset(ctx, ledger.MintParams{Account: a.StudentAddress, URI: *a.MetadataURI})
	return ins, ledgerErr(err)
}

func (o *Orchestrator) RecordAssetMinted(ctx context.Context, agreementID, assetID string) (*agreement.Agreement, error) {
	return o.mutate(ctx, agreementID, func(_ uow.Repos, a *agreement.Agreement, _ time.Time) (bool, error) {
		return a.RecordAsset(assetID)
	})
}

func (o *Orchestrator) PrepareTransferOffer(ctx context.Context, agreementID string) (ledger.Instruction, error) {
	a, err := o.load(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	if a.Status != agreement.StatusAwaitingFunding {
		return nil, failure.Wrap(agreement.ErrInvalidTransition, "status is %s", a.Status)
	}
	if a.AssetID == nil {
		return nil, agreement.ErrAssetMissing
	}
	ins, err := o.gateway.PrepareCreateTransferOffer(ctx, ledger.TransferOfferParams{
		Account:     a.StudentAddress,
		AssetID:     *a.AssetID,
		Destination: a.CompanyAddress,
	})
	return ins, ledgerErr(err)
}

func (o *Orchestrator) RecordTransferOfferReference(ctx context.Context, agreementID, ref string) (*agreement.Agreement, error) {
	return o.mutate(ctx, agreementID, func(_ uow.Repos, a *agreement.Agreement, _ time.Time) (bool, error) {
		return a.RecordTransferOffer(ref)
	})
}

func (o *Orchestrator) PrepareAcceptTransfer(ctx context.Context, agreementID string) (ledger.Instruction, error) {
	a, err := o.load(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	if a.Status != agreement.StatusAwaitingFunding {
		return nil, failure.Wrap(agreement.ErrInvalidTransition, "status is %s", a.Status)
	}
	if a.TransferOfferRef == nil {
		return nil, agreement.ErrTransferMissing
	}
	ins, err := o.gateway.PrepareAcceptTransferOffer(ctx, ledger.AcceptTransferParams{
		Account:  a.CompanyAddress,
		OfferRef: *a.TransferOfferRef,
	})
	return ins, ledgerErr(err)
}

// RecordFunded marks the asset as held by the company. Repeating it with the
// same asset id is a no-op.
func (o *Orchestrator) RecordFunded(ctx context.Context, agreementID, assetID string) (*agreement.Agreement, error) {
	return o.mutate(ctx, agreementID, func(_ uow.Repos, a *agreement.Agreement, now time.Time) (bool, error) {
		return a.MarkFunded(assetID, now)
	})
}
