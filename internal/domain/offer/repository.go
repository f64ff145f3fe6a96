package offer

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, o *Offer) error
	GetByOfferID(ctx context.Context, offerID string) (*Offer, error)
	// Transition moves the offer from status from to status to, failing with
	// ErrNotPending when it is no longer in from.
	Transition(ctx context.Context, offerID string, from, to Status, at time.Time) error
	ListByRequest(ctx context.Context, requestID string, status Status) ([]Offer, error)
	// SetPendingStatus moves every PENDING offer of the request, except keepOfferID, to status.
	SetPendingStatus(ctx context.Context, requestID, keepOfferID string, status Status, at time.Time) (int64, error)
}
