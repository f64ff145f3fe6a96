package lifecycle

import (
	"time"

	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/domain/ledger"
	"tuition-escrow/internal/domain/repayment"

	"github.com/shopspring/decimal"
)

type AcceptOfferInput struct {
	RequestID string
	OfferID   string
}

type AcceptOfferResult struct {
	AgreementID     string             `json:"agreementId"`
	MetadataURI     string             `json:"metadataUri"`
	MintInstruction ledger.Instruction `json:"mintInstruction"`
}

type LockInstruction struct {
	InstallmentIndex int                `json:"installmentIndex"`
	Amount           decimal.Decimal    `json:"amount"`
	MaturesAt        time.Time          `json:"maturesAt"`
	Instruction      ledger.Instruction `json:"instruction"`
}

// Payment is a ledger payment already attributed to an agreement by its memo.
type Payment struct {
	TxHash      string
	LedgerIndex uint64
	AgreementID string
	Source      string
	Destination string
	Amount      decimal.Decimal
}

type RepaymentResult struct {
	Duplicate bool
	Outcome   repayment.Outcome
	Credited  decimal.Decimal
	Excess    decimal.Decimal
	Status    agreement.Status
}
