package agreementmock

import (
	"context"

	domain "tuition-escrow/internal/domain/agreement"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Writes default to a nil error; reads default to context.Canceled.
type Repo struct {
	CreateFn                    func(ctx context.Context, a *domain.Agreement) error
	GetByAgreementIDFn          func(ctx context.Context, agreementID string) (*domain.Agreement, error)
	GetByAgreementIDForUpdateFn func(ctx context.Context, agreementID string) (*domain.Agreement, error)
	GetByRequestOfferFn         func(ctx context.Context, requestID, offerID string) (*domain.Agreement, error)
	ExistsForRequestFn          func(ctx context.Context, requestID string) (bool, error)
	UpdateFn                    func(ctx context.Context, a *domain.Agreement) error
	ListAwaitingReleaseFn       func(ctx context.Context) ([]domain.Agreement, error)
	ListByStatusFn              func(ctx context.Context, status domain.Status) ([]domain.Agreement, error)
}

func (m *Repo) Create(ctx context.Context, a *domain.Agreement) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, a)
	}
	return nil
}

func (m *Repo) GetByAgreementID(ctx context.Context, agreementID string) (*domain.Agreement, error) {
	if m.GetByAgreementIDFn != nil {
		return m.GetByAgreementIDFn(ctx, agreementID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByAgreementIDForUpdate(ctx context.Context, agreementID string) (*domain.Agreement, error) {
	if m.GetByAgreementIDForUpdateFn != nil {
		return m.GetByAgreementIDForUpdateFn(ctx, agreementID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByRequestOffer(ctx context.Context, requestID, offerID string) (*domain.Agreement, error) {
	if m.GetByRequestOfferFn != nil {
		return m.GetByRequestOfferFn(ctx, requestID, offerID)
	}
	return nil, context.Canceled
}

func (m *Repo) ExistsForRequest(ctx context.Context, requestID string) (bool, error) {
	if m.ExistsForRequestFn != nil {
		return m.ExistsForRequestFn(ctx, requestID)
	}
	return false, context.Canceled
}

func (m *Repo) Update(ctx context.Context, a *domain.Agreement) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, a)
	}
	return nil
}

func (m *Repo) ListAwaitingRelease(ctx context.Context) ([]domain.Agreement, error) {
	if m.ListAwaitingReleaseFn != nil {
		return m.ListAwaitingReleaseFn(ctx)
	}
	return nil, context.Canceled
}

func (m *Repo) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Agreement, error) {
	if m.ListByStatusFn != nil {
		return m.ListByStatusFn(ctx, status)
	}
	return nil, context.Canceled
}
