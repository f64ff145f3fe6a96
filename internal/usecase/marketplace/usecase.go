// Package marketplace handles loan requests and the offers made on them up
// to acceptance, which belongs to the lifecycle orchestrator.
package marketplace

import (
	"context"
	"log/slog"
	"time"

	"tuition-escrow/internal/domain/failure"
	"tuition-escrow/internal/domain/loanrequest"
	"tuition-escrow/internal/domain/offer"
	"tuition-escrow/internal/domain/uow"
	"tuition-escrow/pkg/id"
)

type Usecase struct {
	repos uow.Repos
	uow   uow.UnitOfWork
	now   func() time.Time
	log   *slog.Logger
}

func NewUsecase(repos uow.Repos, tx uow.UnitOfWork, log *slog.Logger) *Usecase {
	if log == nil {
		log = slog.Default()
	}
	return &Usecase{repos: repos, uow: tx, now: func() time.Time { return time.Now().UTC() }, log: log}
}

// WithClock replaces the time source, for tests.
func (u *Usecase) WithClock(now func() time.Time) *Usecase {
	u.now = now
	return u
}

func (u *Usecase) CreateRequest(ctx context.Context, in CreateRequestInput) (*loanrequest.LoanRequest, error) {
	now := u.now()
	r := &loanrequest.LoanRequest{
		RequestID:       id.NewID32(),
		StudentAddress:  in.StudentAddress,
		StudentName:     in.StudentName,
		SchoolAddress:   in.SchoolAddress,
		Program:         in.Program,
		TotalAmount:     in.TotalAmount,
		Currency:        in.Currency,
		GraduationDate:  in.GraduationDate,
		Industry:        in.Industry,
		Description:     in.Description,
		Status:          loanrequest.StatusOpen,
		StatusUpdatedAt: now,
	}
	if r.Currency == "" {
		r.Currency = "XRP"
	}
	if in.Draft {
		r.Status = loanrequest.StatusDraft
	}
	for i, it := range in.Installments {
		r.Installments = append(r.Installments, loanrequest.Installment{Seq: i, Amount: it.Amount, DueDate: it.DueDate.UTC()})
	}
	if r.Status != loanrequest.StatusDraft {
		if err := r.CheckComplete(); err != nil {
			return nil, err
		}
	}
	if err := u.repos.Requests.Create(ctx, r); err != nil {
		return nil, err
	}
	u.log.Info("loan request created", "request_id", r.RequestID, "status", r.Status)
	return r, nil
}

// SubmitRequest publishes a draft once it is complete.
func (u *Usecase) SubmitRequest(ctx context.Context, requestID string) (*loanrequest.LoanRequest, error) {
	var out *loanrequest.LoanRequest
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		req, err := r.Requests.GetByRequestIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != loanrequest.StatusDraft {
			return failure.Wrap(loanrequest.ErrInvalidTransition, "status is %s", req.Status)
		}
		if err := req.CheckComplete(); err != nil {
			return err
		}
		req.SetStatus(loanrequest.StatusOpen, u.now())
		out = req
		return r.Requests.Save(ctx, req)
	})
	return out, err
}

func (u *Usecase) GetRequest(ctx context.Context, requestID string) (*loanrequest.LoanRequest, error) {
	return u.repos.Requests.GetByRequestID(ctx, requestID)
}

// ListOpenRequests returns requests still taking offers, newest first.
func (u *Usecase) ListOpenRequests(ctx context.Context, industry string) ([]loanrequest.LoanRequest, error) {
	return u.repos.Requests.ListByStatus(ctx, []loanrequest.Status{loanrequest.StatusOpen, loanrequest.StatusUnderNegotiation}, industry)
}

// WithdrawRequest closes a request that has not been accepted and cancels
// its pending offers.
func (u *Usecase) WithdrawRequest(ctx context.Context, requestID string) (*loanrequest.LoanRequest, error) {
	var out *loanrequest.LoanRequest
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		req, err := r.Requests.GetByRequestIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if !req.Acceptable() {
			return failure.Wrap(loanrequest.ErrInvalidTransition, "status is %s", req.Status)
		}
		now := u.now()
		n, err := r.Offers.SetPendingStatus(ctx, req.RequestID, "", offer.StatusCancelled, now)
		if err != nil {
			return err
		}
		req.SetStatus(loanrequest.StatusClosed, now)
		if err := r.Requests.Save(ctx, req); err != nil {
			return err
		}
		u.log.Info("loan request withdrawn", "request_id", req.RequestID, "offers_cancelled", n)
		out = req
		return nil
	})
	return out, err
}

func (u *Usecase) DeleteRequest(ctx context.Context, requestID string) error {
	return u.uow.WithinTx(ctx, func(r uow.Repos) error {
		req, err := r.Requests.GetByRequestIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		switch req.Status {
		case loanrequest.StatusDraft:
		case loanrequest.StatusOpen:
			exists, err := r.Agreements.ExistsForRequest(ctx, req.RequestID)
			if err != nil {
				return err
			}
			if exists {
				return loanrequest.ErrNotDeletable
			}
		default:
			return loanrequest.ErrNotDeletable
		}
		return r.Requests.Delete(ctx, req)
	})
}

// CreateOffer records a company's offer and moves an OPEN request into negotiation.
func (u *Usecase) CreateOffer(ctx context.Context, in CreateOfferInput) (*offer.Offer, error) {
	var out *offer.Offer
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		req, err := r.Requests.GetByRequestIDForUpdate(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if !req.Acceptable() {
			return failure.Wrap(loanrequest.ErrInvalidTransition, "status is %s", req.Status)
		}
		now := u.now()
		o := &offer.Offer{
			OfferID:             id.NewID32(),
			RequestID:           req.RequestID,
			CompanyAddress:      in.CompanyAddress,
			InterestRate:        in.InterestRate,
			WorkObligationYears: in.WorkObligationYears,
			TermsURI:            in.TermsURI,
			Status:              offer.StatusPending,
			StatusUpdatedAt:     now,
		}
		if err := r.Offers.Create(ctx, o); err != nil {
			return err
		}
		if req.Status == loanrequest.StatusOpen {
			req.SetStatus(loanrequest.StatusUnderNegotiation, now)
			if err := r.Requests.Save(ctx, req); err != nil {
				return err
			}
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info("offer created", "offer_id", out.OfferID, "request_id", out.RequestID)
	return out, nil
}

func (u *Usecase) ListPendingOffers(ctx context.Context, requestID string) ([]offer.Offer, error) {
	if _, err := u.repos.Requests.GetByRequestID(ctx, requestID); err != nil {
		return nil, err
	}
	return u.repos.Offers.ListByRequest(ctx, requestID, offer.StatusPending)
}

// CancelOffer withdraws a pending offer on behalf of the company that made it.
func (u *Usecase) CancelOffer(ctx context.Context, offerID, companyAddress string) (*offer.Offer, error) {
	var out *offer.Offer
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		o, err := r.Offers.GetByOfferID(ctx, offerID)
		if err != nil {
			return err
		}
		if o.CompanyAddress != companyAddress {
			return offer.ErrNotOwner
		}
		if o.Terminal() {
			return failure.Wrap(offer.ErrNotPending, "status is %s", o.Status)
		}
		now := u.now()
		if err := r.Offers.Transition(ctx, o.OfferID, offer.StatusPending, offer.StatusCancelled, now); err != nil {
			return err
		}
		o.SetStatus(offer.StatusCancelled, now)
		out = o
		return nil
	})
	return out, err
}
