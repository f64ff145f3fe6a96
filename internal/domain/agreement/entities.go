package agreement

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusAwaitingFunding Status = "AWAITING_FUNDING"
	StatusFunded          Status = "FUNDED"
	StatusRepaying        Status = "REPAYING"
	StatusRepaid          Status = "REPAID"
	StatusClosed          Status = "CLOSED"
)

// Agreement is the settlement record created when an offer is accepted.
// Rows are never deleted.
type Agreement struct {
	ID               uint64          `gorm:"primaryKey;column:id" json:"-"`
	AgreementID      string          `gorm:"size:32;uniqueIndex:ux_agreements_agreement_id" json:"agreement_id"`
	RequestID        string          `gorm:"size:32;uniqueIndex:ux_agreements_request_offer,priority:1" json:"request_id"`
	OfferID          string          `gorm:"size:32;uniqueIndex:ux_agreements_request_offer,priority:2" json:"offer_id"`
	StudentAddress   string          `gorm:"size:64;index:idx_agreements_student" json:"student_address"`
	CompanyAddress   string          `gorm:"size:64" json:"company_address"`
	SchoolAddress    string          `gorm:"size:64" json:"school_address"`
	Currency         string          `gorm:"size:8" json:"currency"`
	InterestRate     decimal.Decimal `gorm:"type:varchar(32)" json:"interest_rate"`
	Principal        decimal.Decimal `gorm:"type:varchar(40)" json:"principal"`
	TotalOwed        decimal.Decimal `gorm:"type:varchar(40)" json:"total_owed"`
	AmountPaid       decimal.Decimal `gorm:"type:varchar(40)" json:"amount_paid"`
	AssetID          *string         `gorm:"size:64" json:"asset_id"`
	TransferOfferRef *string         `gorm:"size:64" json:"transfer_offer_ref"`
	MetadataURI      *string         `gorm:"size:255" json:"metadata_uri"`
	Status           Status          `gorm:"size:24;index:idx_agreements_status" json:"status"`
	StatusUpdatedAt  time.Time       `json:"status_updated_at"`
	Version          int64           `gorm:"not null;default:0" json:"-"`
	Installments     []Installment   `gorm:"foreignKey:AgreementID" json:"installments"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Agreement) TableName() string { return "agreements" }

type Installment struct {
	ID          uint64          `gorm:"primaryKey;column:id" json:"-"`
	AgreementID uint64          `gorm:"index:idx_agreement_installments_agreement" json:"-"`
	Seq         int             `json:"index"`
	Amount      decimal.Decimal `gorm:"type:varchar(40)" json:"amount"`
	DueDate     time.Time       `gorm:"type:date" json:"due_date"`
	LockRef     *string         `gorm:"size:64" json:"lock_ref"`
	Released    bool            `gorm:"not null;default:false" json:"released"`
}

func (Installment) TableName() string { return "agreement_installments" }

func (i *Installment) Locked() bool { return i.LockRef != nil }
