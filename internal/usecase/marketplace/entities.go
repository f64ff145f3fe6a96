package marketplace

import (
	"time"

	"github.com/shopspring/decimal"
)

type InstallmentInput struct {
	Amount  decimal.Decimal
	DueDate time.Time
}

type CreateRequestInput struct {
	StudentAddress string
	StudentName    string
	SchoolAddress  string
	Program        string
	TotalAmount    decimal.Decimal
	Currency       string // XRP when empty
	GraduationDate *time.Time
	Industry       string
	Description    string
	Installments   []InstallmentInput
	Draft          bool
}

type CreateOfferInput struct {
	RequestID           string
	CompanyAddress      string
	InterestRate        decimal.Decimal
	WorkObligationYears int
	TermsURI            string
}
