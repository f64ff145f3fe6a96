package agreement

import "context"

type Repository interface {
	// Create inserts the agreement and its installments.
	Create(ctx context.Context, a *Agreement) error
	GetByAgreementID(ctx context.Context, agreementID string) (*Agreement, error)
	GetByAgreementIDForUpdate(ctx context.Context, agreementID string) (*Agreement, error)
	GetByRequestOffer(ctx context.Context, requestID, offerID string) (*Agreement, error)
	ExistsForRequest(ctx context.Context, requestID string) (bool, error)
	// Update writes the agreement and its installments when a.Version still
	// matches the stored row, then bumps a.Version. Otherwise ErrStaleVersion.
	Update(ctx context.Context, a *Agreement) error
	// ListAwaitingRelease returns FUNDED agreements with a locked, unreleased installment.
	ListAwaitingRelease(ctx context.Context) ([]Agreement, error)
	ListByStatus(ctx context.Context, status Status) ([]Agreement, error)
}
