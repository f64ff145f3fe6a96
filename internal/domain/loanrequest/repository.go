package loanrequest

import "context"

type Repository interface {
	Create(ctx context.Context, r *LoanRequest) error
	GetByRequestID(ctx context.Context, requestID string) (*LoanRequest, error)
	// Locks the request row for the rest of the transaction.
	GetByRequestIDForUpdate(ctx context.Context, requestID string) (*LoanRequest, error)
	// Save persists the request row; installments are written only by Create.
	Save(ctx context.Context, r *LoanRequest) error
	ListByStatus(ctx context.Context, statuses []Status, industry string) ([]LoanRequest, error)
	Delete(ctx context.Context, r *LoanRequest) error
}
