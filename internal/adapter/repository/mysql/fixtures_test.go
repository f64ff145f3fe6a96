package mysql

import (
	"time"

	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/domain/loanrequest"
	"tuition-escrow/internal/domain/offer"

	"github.com/shopspring/decimal"
)

var (
	jan15 = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	jul15 = time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
)

func strp(s string) *string { return &s }

func makeRequest(requestID string, status loanrequest.Status) *loanrequest.LoanRequest {
	grad := time.Date(2028, 6, 30, 0, 0, 0, 0, time.UTC)
	return &loanrequest.LoanRequest{
		RequestID:      requestID,
		StudentAddress: "rStudent",
		StudentName:    "Ada",
		SchoolAddress:  "rSchool",
		Program:        "BSc",
		TotalAmount:    decimal.NewFromInt(4_000_000),
		Currency:       "XRP",
		GraduationDate: &grad,
		Industry:       "software",
		Description:    "tuition",
		Status:         status,
		Installments: []loanrequest.Installment{
			{Seq: 0, Amount: decimal.NewFromInt(2_000_000), DueDate: jan15},
			{Seq: 1, Amount: decimal.NewFromInt(2_000_000), DueDate: jul15},
		},
	}
}

func makeOffer(offerID, requestID string) *offer.Offer {
	return &offer.Offer{
		OfferID:             offerID,
		RequestID:           requestID,
		CompanyAddress:      "rCompany",
		InterestRate:        decimal.RequireFromString("0.02"),
		WorkObligationYears: 2,
		TermsURI:            "https://example.com/terms",
		Status:              offer.StatusPending,
	}
}

func makeAgreement(agreementID, requestID, offerID string, status agreement.Status) *agreement.Agreement {
	return &agreement.Agreement{
		AgreementID:    agreementID,
		RequestID:      requestID,
		OfferID:        offerID,
		StudentAddress: "rStudent",
		CompanyAddress: "rCompany",
		SchoolAddress:  "rSchool",
		Currency:       "XRP",
		InterestRate:   decimal.RequireFromString("0.02"),
		Principal:      decimal.NewFromInt(4_000_000),
		TotalOwed:      decimal.NewFromInt(4_080_000),
		AmountPaid:     decimal.Zero,
		Status:         status,
		Installments: []agreement.Installment{
			{Seq: 0, Amount: decimal.NewFromInt(2_000_000), DueDate: jan15},
			{Seq: 1, Amount: decimal.NewFromInt(2_000_000), DueDate: jul15},
		},
	}
}
