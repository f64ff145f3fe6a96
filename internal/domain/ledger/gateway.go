// Package ledger describes the capabilities the settlement engine needs from
// the distributed ledger. Prepare* calls return unsigned instructions for the
// owning party to sign and submit; they never submit anything themselves.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Instruction is an unsigned transaction in the ledger's JSON form.
type Instruction map[string]any

func (i Instruction) Type() string {
	s, _ := i["TransactionType"].(string)
	return s
}

type MintParams struct {
	Account string // minter, the student
	URI     string // metadata content URI
}

type TransferOfferParams struct {
	Account     string // current owner
	AssetID     string
	Destination string // only this account may accept
}

type AcceptTransferParams struct {
	Account  string
	OfferRef string
}

type LockParams struct {
	Account     string // funder
	Destination string // beneficiary
	Amount      decimal.Decimal
	MaturesAt   time.Time
}

type BurnParams struct {
	Account string
	AssetID string
}

// Lock is a fund lock (escrow) currently present on the ledger.
type Lock struct {
	Ref          string // ledger object index
	Owner        string
	Destination  string
	Amount       decimal.Decimal
	MaturesAt    time.Time
	CreatedTxRef string // transaction that created the object
}

func (l Lock) Matured(now time.Time) bool { return !l.MaturesAt.After(now) }

type ReleaseResult struct {
	TxHash      string
	LedgerIndex uint64
}

type Memo struct {
	Type   string
	Data   string
	Format string
}

// PaymentEvent is a validated transaction touching a watched account.
type PaymentEvent struct {
	TxHash          string
	LedgerIndex     uint64
	TransactionType string
	Result          string
	Source          string
	Destination     string
	Amount          decimal.Decimal
	Native          bool // amount is in drops rather than an issued currency
	Memos           []Memo
}

var (
	ErrObjectNotFound = errors.New("ledger: object not found")
	ErrNotValidated   = errors.New("ledger: transaction not validated")
	ErrRejected       = errors.New("ledger: transaction rejected")
)

type Gateway interface {
	PrepareCreateAsset(ctx context.Context, p MintParams) (Instruction, error)
	PrepareCreateTransferOffer(ctx context.Context, p TransferOfferParams) (Instruction, error)
	PrepareAcceptTransferOffer(ctx context.Context, p AcceptTransferParams) (Instruction, error)
	PrepareLockFunds(ctx context.Context, p LockParams) (Instruction, error)
	PrepareBurnAsset(ctx context.Context, p BurnParams) (Instruction, error)

	// ReleaseLockedFunds finishes a matured lock as the configured releaser and
	// returns only after the ledger confirms success.
	ReleaseLockedFunds(ctx context.Context, lock Lock) (ReleaseResult, error)
	// GetAccountObjects lists the fund locks owned by account.
	GetAccountObjects(ctx context.Context, account string) ([]Lock, error)

	// SubscribeToPayments streams validated transactions for accounts until ctx
	// ends or the connection drops; the channel is closed in both cases.
	SubscribeToPayments(ctx context.Context, accounts []string) (<-chan PaymentEvent, error)
	// PaymentsSince replays validated transactions of account from ledger index fromLedger on.
	PaymentsSince(ctx context.Context, account string, fromLedger uint64) ([]PaymentEvent, error)
}
