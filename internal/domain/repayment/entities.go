package repayment

import (
	"context"
	"time"

	"tuition-escrow/internal/domain/failure"

	"github.com/shopspring/decimal"
)

type Outcome string

const (
	OutcomeApplied     Outcome = "applied"
	OutcomeNotRepaying Outcome = "not_repaying"
	OutcomeMismatch    Outcome = "party_mismatch"
)

var (
	ErrDuplicate = failure.Conflict("repayment_duplicate", "repayment transaction already recorded")
	ErrNotFound  = failure.NotFound("repayment_not_found", "repayment not found")
)

// Repayment is one observed ledger payment attributed to an agreement.
// TxHash is unique, so a redelivered event cannot be counted twice.
type Repayment struct {
	ID          uint64          `gorm:"primaryKey;column:id"`
	TxHash      string          `gorm:"size:64;uniqueIndex:ux_repayments_tx_hash"`
	AgreementID string          `gorm:"size:32;index:idx_repayments_agreement"`
	LedgerIndex uint64          `gorm:"not null"`
	Source      string          `gorm:"size:64"`
	Destination string          `gorm:"size:64"`
	Amount      decimal.Decimal `gorm:"type:varchar(40)"`
	Credited    decimal.Decimal `gorm:"type:varchar(40)"`
	Excess      decimal.Decimal `gorm:"type:varchar(40)"`
	Outcome     Outcome         `gorm:"size:24"`
	AppliedAt   time.Time
}

func (Repayment) TableName() string { return "repayments" }

// Cursor is the last ledger index fully processed for a watched account.
type Cursor struct {
	Account     string `gorm:"primaryKey;size:64"`
	LedgerIndex uint64 `gorm:"not null"`
	UpdatedAt   time.Time
}

func (Cursor) TableName() string { return "ledger_cursors" }

type Repository interface {
	// Record inserts r; ErrDuplicate when the tx hash is already present.
	Record(ctx context.Context, r *Repayment) error
	GetByTxHash(ctx context.Context, txHash string) (*Repayment, error)
	Cursor(ctx context.Context, account string) (uint64, bool, error)
	// AdvanceCursor stores ledgerIndex unless a higher one is already stored.
	AdvanceCursor(ctx context.Context, account string, ledgerIndex uint64) error
}
