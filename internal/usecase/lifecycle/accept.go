package lifecycle

import (
	"context"
	"errors"
	"time"

	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/domain/failure"
	"tuition-escrow/internal/domain/ledger"
	"tuition-escrow/internal/domain/loanrequest"
	"tuition-escrow/internal/domain/metadata"
	"tuition-escrow/internal/domain/offer"
	"tuition-escrow/internal/domain/uow"
	"tuition-escrow/pkg/id"
	"tuition-escrow/pkg/money"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// AcceptOffer turns a pending offer into an agreement awaiting funding,
// publishes its terms and returns the unsigned mint for the student.
// A retry after a failed publish resumes the same agreement.
func (o *Orchestrator) AcceptOffer(ctx context.Context, in AcceptOfferInput) (*AcceptOfferResult, error) {
	var (
		ag  *agreement.Agreement
		req *loanrequest.LoanRequest
		off *offer.Offer
	)
	err := o.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		req, err = r.Requests.GetByRequestIDForUpdate(ctx, in.RequestID)
		if err != nil {
			return err
		}
		off, err = r.Offers.GetByOfferID(ctx, in.OfferID)
		if err != nil {
			return err
		}
		if off.RequestID != req.RequestID {
			return offer.ErrWrongRequest
		}

		existing, err := r.Agreements.GetByRequestOffer(ctx, req.RequestID, off.OfferID)
		switch {
		case err == nil:
			if existing.MetadataURI != nil {
				return loanrequest.ErrAlreadyAccepted
			}
			ag = existing
			return o.settleAcceptance(ctx, r, req, off)
		case !errors.Is(err, agreement.ErrNotFound):
			return err
		}

		if req.Status == loanrequest.StatusAccepted {
			return loanrequest.ErrAlreadyAccepted
		}
		if !req.Acceptable() {
			return failure.Wrap(loanrequest.ErrInvalidTransition, "status is %s", req.Status)
		}
		if off.Status != offer.StatusPending {
			return offer.ErrNotPending
		}

		ag = newAgreement(req, off, o.now())
		if err := r.Agreements.Create(ctx, ag); err != nil {
			return err
		}
		o.log.Info("agreement created", "agreement_id", ag.AgreementID, "request_id", req.RequestID, "offer_id", off.OfferID)
		return o.settleAcceptance(ctx, r, req, off)
	})
	if err != nil {
		return nil, err
	}

	uri, err := o.publisher.Publish(ctx, "agreement-"+ag.AgreementID, buildDocument(ag, req, off))
	if err != nil {
		return nil, failure.External("metadata_publish_failed", err)
	}

	ag, err = o.mutate(ctx, ag.AgreementID, func(_ uow.Repos, a *agreement.Agreement, _ time.Time) (bool, error) {
		if a.MetadataURI != nil {
			// a concurrent retry stored its URI first
			return false, nil
		}
		a.MetadataURI = &uri
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	mint, err := o.gateway.PrepareCreateAsset(ctx, ledger.MintParams{Account: ag.StudentAddress, URI: *ag.MetadataURI})
	if err != nil {
		return nil, ledgerErr(err)
	}
	return &AcceptOfferResult{AgreementID: ag.AgreementID, MetadataURI: *ag.MetadataURI, MintInstruction: mint}, nil
}

// settleAcceptance applies the request and offer side of an acceptance.
// Every step is a no-op when already done.
func (o *Orchestrator) settleAcceptance(ctx context.Context, r uow.Repos, req *loanrequest.LoanRequest, off *offer.Offer) error {
	now := o.now()
	if off.Status != offer.StatusAccepted {
		// conditional so a cancel committed since the read wins
		if err := r.Offers.Transition(ctx, off.OfferID, offer.StatusPending, offer.StatusAccepted, now); err != nil {
			return err
		}
		off.SetStatus(offer.StatusAccepted, now)
	}
	if _, err := r.Offers.SetPendingStatus(ctx, req.RequestID, off.OfferID, offer.StatusRejected, now); err != nil {
		return err
	}
	if req.Status != loanrequest.StatusAccepted {
		req.SetStatus(loanrequest.StatusAccepted, now)
		if err := r.Requests.Save(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func newAgreement(req *loanrequest.LoanRequest, off *offer.Offer, now time.Time) *agreement.Agreement {
	ag := &agreement.Agreement{
		AgreementID:     id.NewID32(),
		RequestID:       req.RequestID,
		OfferID:         off.OfferID,
		StudentAddress:  req.StudentAddress,
		CompanyAddress:  off.CompanyAddress,
		SchoolAddress:   req.SchoolAddress,
		Currency:        req.Currency,
		InterestRate:    off.InterestRate,
		Principal:       req.TotalAmount,
		TotalOwed:       money.TotalOwed(req.TotalAmount, off.InterestRate),
		AmountPaid:      decimal.Zero,
		Status:          agreement.StatusAwaitingFunding,
		StatusUpdatedAt: now,
	}
	for _, in := range req.Installments {
		ag.Installments = append(ag.Installments, agreement.Installment{
			Seq:     in.Seq,
			Amount:  in.Amount,
			DueDate: in.DueDate,
		})
	}
	return ag
}

func buildDocument(ag *agreement.Agreement, req *loanrequest.LoanRequest, off *offer.Offer) metadata.Document {
	doc := metadata.Document{
		AgreementID:         ag.AgreementID,
		StudentName:         req.StudentName,
		StudentAddress:      ag.StudentAddress,
		CompanyAddress:      ag.CompanyAddress,
		SchoolAddress:       ag.SchoolAddress,
		Program:             req.Program,
		Currency:            ag.Currency,
		Principal:           ag.Principal.String(),
		InterestRate:        ag.InterestRate.String(),
		TotalOwed:           ag.TotalOwed.String(),
		WorkObligationYears: off.WorkObligationYears,
		TermsURI:            off.TermsURI,
		CreatedAt:           ag.CreatedAt.UTC(),
	}
	for _, in := range ag.Installments {
		doc.Schedule = append(doc.Schedule, metadata.ScheduleEntry{
			Amount:  in.Amount.String(),
			DueDate: in.DueDate.UTC().Format(dateLayout),
		})
	}
	return doc
}
