package xrpl

import (
	"encoding/json"
	"strings"

	"tuition-escrow/internal/domain/ledger"

	"github.com/shopspring/decimal"
)

type memoWrapper struct {
	Memo struct {
		MemoType   string `json:"MemoType"`
		MemoData   string `json:"MemoData"`
		MemoFormat string `json:"MemoFormat"`
	} `json:"Memo"`
}

// txJSON is the subset of a transaction the gateway reads.
type txJSON struct {
	TransactionType string          `json:"TransactionType"`
	Account         string          `json:"Account"`
	Destination     string          `json:"Destination"`
	Amount          json.RawMessage `json:"Amount"`
	Sequence        uint32          `json:"Sequence"`
	TicketSequence  uint32          `json:"TicketSequence"`
	Memos           []memoWrapper   `json:"Memos"`
	Hash            string          `json:"hash"`
	LedgerIndex     uint64          `json:"ledger_index"`
}

type metaJSON struct {
	TransactionResult string          `json:"TransactionResult"`
	DeliveredAmount   json.RawMessage `json:"delivered_amount"`
}

// parseAmount reads either a drops string or an issued currency object.
func parseAmount(raw json.RawMessage) (amount decimal.Decimal, native, ok bool) {
	if len(raw) == 0 {
		return decimal.Zero, false, false
	}
	var drops string
	if err := json.Unmarshal(raw, &drops); err == nil {
		d, err := decimal.NewFromString(drops)
		return d, true, err == nil
	}
	var issued struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &issued); err != nil {
		return decimal.Zero, false, false
	}
	d, err := decimal.NewFromString(issued.Value)
	return d, false, err == nil
}

// toEvent builds a PaymentEvent, preferring delivered_amount over Amount
// since partial payments deliver less than they state.
func toEvent(tx txJSON, meta metaJSON, hash string, ledgerIndex uint64) ledger.PaymentEvent {
	ev := ledger.PaymentEvent{
		TxHash:          hash,
		LedgerIndex:     ledgerIndex,
		TransactionType: tx.TransactionType,
		Result:          meta.TransactionResult,
		Source:          tx.Account,
		Destination:     tx.Destination,
	}
	if ev.TxHash == "" {
		ev.TxHash = tx.Hash
	}
	if ev.LedgerIndex == 0 {
		ev.LedgerIndex = tx.LedgerIndex
	}
	raw := meta.DeliveredAmount
	if len(raw) == 0 || string(raw) == `"unavailable"` {
		raw = tx.Amount
	}
	if amt, native, ok := parseAmount(raw); ok {
		ev.Amount, ev.Native = amt, native
	}
	for _, m := range tx.Memos {
		ev.Memos = append(ev.Memos, ledger.Memo{
			Type:   strings.ToUpper(m.Memo.MemoType),
			Data:   strings.ToUpper(m.Memo.MemoData),
			Format: strings.ToUpper(m.Memo.MemoFormat),
		})
	}
	return ev
}
