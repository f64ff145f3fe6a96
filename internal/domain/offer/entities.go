package offer

import (
	"time"

	"tuition-escrow/internal/domain/failure"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRejected  Status = "REJECTED"
	StatusAccepted  Status = "ACCEPTED"
	StatusCancelled Status = "CANCELLED"
)

var (
	ErrNotFound     = failure.NotFound("offer_not_found", "offer not found")
	ErrNotPending   = failure.Validation("offer_not_pending", "offer is not pending")
	ErrWrongRequest = failure.Validation("offer_request_mismatch", "offer does not belong to this loan request")
	ErrNotOwner     = failure.Validation("offer_not_owner", "only the offering company may cancel this offer")
)

type Offer struct {
	ID                  uint64          `gorm:"primaryKey;column:id" json:"-"`
	OfferID             string          `gorm:"size:32;uniqueIndex:ux_offers_offer_id" json:"offer_id"`
	RequestID           string          `gorm:"size:32;index:idx_offers_request_status,priority:1" json:"request_id"`
	CompanyAddress      string          `gorm:"size:64" json:"company_address"`
	InterestRate        decimal.Decimal `gorm:"type:varchar(32)" json:"interest_rate"`
	WorkObligationYears int             `json:"work_obligation_years"`
	TermsURI            string          `gorm:"size:512" json:"terms_uri"`
	Status              Status          `gorm:"size:16;index:idx_offers_request_status,priority:2" json:"status"`
	StatusUpdatedAt     time.Time       `json:"status_updated_at"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Offer) TableName() string { return "offers" }

func (o *Offer) Terminal() bool { return o.Status != StatusPending }

func (o *Offer) SetStatus(s Status, at time.Time) {
	o.Status = s
	o.StatusUpdatedAt = at
}
