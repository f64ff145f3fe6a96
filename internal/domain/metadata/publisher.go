package metadata

import (
	"context"
	"time"
)

// Document is the immutable record of agreed terms pinned off-ledger and
// referenced by the minted asset.
type Document struct {
	AgreementID         string          `json:"agreementId"`
	StudentName         string          `json:"studentName"`
	StudentAddress      string          `json:"studentAddress"`
	CompanyAddress      string          `json:"companyAddress"`
	SchoolAddress       string          `json:"schoolAddress"`
	Program             string          `json:"program"`
	Currency            string          `json:"currency"`
	Principal           string          `json:"principal"`
	InterestRate        string          `json:"interestRate"`
	TotalOwed           string          `json:"totalOwed"`
	Schedule            []ScheduleEntry `json:"schedule"`
	WorkObligationYears int             `json:"workObligationYears"`
	TermsURI            string          `json:"termsUri"`
	CreatedAt           time.Time       `json:"createdAt"`
}

type ScheduleEntry struct {
	Amount  string `json:"amount"`
	DueDate string `json:"dueDate"` // YYYY-MM-DD
}

type Publisher interface {
	// Publish pins doc and returns its content URI (ipfs://...).
	Publish(ctx context.Context, name string, doc Document) (string, error)
}
