package uow

import (
	"context"

	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/domain/loanrequest"
	"tuition-escrow/internal/domain/offer"
	"tuition-escrow/internal/domain/repayment"
)

type Repos struct {
	Requests   loanrequest.Repository
	Offers     offer.Repository
	Agreements agreement.Repository
	Repayments repayment.Repository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// lock the agreement row first, then pass it in with its installments
	WithinAgreementTx(ctx context.Context, agreementID string, fn func(r Repos, a *agreement.Agreement) error) error
}
