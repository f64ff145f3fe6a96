package xrpl

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tuition-escrow/internal/domain/ledger"
)

const (
	// tfTransferable lets the minted asset move to the company.
	tfTransferable = 8
	// tfSellNFToken marks an NFTokenCreateOffer as a sell offer.
	tfSellNFToken = 1

	pageLimit = 200
)

type Config struct {
	RPCURL string
	WSURL  string
	// ReleaserAccount finishes matured locks; its secret is handed to the
	// node in sign-and-submit mode and never leaves this process otherwise.
	ReleaserAccount string
	ReleaserSecret  string
	// LedgerWindow is added to the current ledger for LastLedgerSequence.
	LedgerWindow uint32
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

var _ ledger.Gateway = (*Gateway)(nil)

type Gateway struct {
	rpc *rpcClient
	cfg Config
	log *slog.Logger
}

func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.RPCURL == "" {
		return nil, errors.New("xrpl: RPCURL is required")
	}
	if cfg.LedgerWindow == 0 {
		cfg.LedgerWindow = 20
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gateway{
		rpc: &rpcClient{url: cfg.RPCURL, http: cfg.HTTPClient},
		cfg: cfg,
		log: cfg.Logger.With("component", "xrpl"),
	}, nil
}

func (g *Gateway) PrepareCreateAsset(ctx context.Context, p ledger.MintParams) (ledger.Instruction, error) {
	return g.autofill(ctx, ledger.Instruction{
		"TransactionType": "NFTokenMint",
		"Account":         p.Account,
		"NFTokenTaxon":    0,
		"Flags":           tfTransferable,
		"URI":             strings.ToUpper(hex.EncodeToString([]byte(p.URI))),
	})
}

func (g *Gateway) PrepareCreateTransferOffer(ctx context.Context, p ledger.TransferOfferParams) (ledger.Instruction, error) {
	return g.autofill(ctx, ledger.Instruction{
		"TransactionType": "NFTokenCreateOffer",
		"Account":         p.Account,
		"NFTokenID":       p.AssetID,
		"Amount":          "0",
		"Flags":           tfSellNFToken,
		"Destination":     p.Destination,
	})
}

func (g *Gateway) PrepareAcceptTransferOffer(ctx context.Context, p ledger.AcceptTransferParams) (ledger.Instruction, error) {
	return g.autofill(ctx, ledger.Instruction{
		"TransactionType":  "NFTokenAcceptOffer",
		"Account":          p.Account,
		"NFTokenSellOffer": p.OfferRef,
	})
}

func (g *Gateway) PrepareLockFunds(ctx context.Context, p ledger.LockParams) (ledger.Instruction, error) {
	if !p.Amount.IsPositive() || !p.Amount.IsInteger() {
		return nil, fmt.Errorf("xrpl: lock amount %s is not positive drops", p.Amount)
	}
	return g.autofill(ctx, ledger.Instruction{
		"TransactionType": "EscrowCreate",
		"Account":         p.Account,
		"Destination":     p.Destination,
		"Amount":          p.Amount.String(),
		"FinishAfter":     ledger.ToRippleTime(p.MaturesAt),
	})
}

func (g *Gateway) PrepareBurnAsset(ctx context.Context, p ledger.BurnParams) (ledger.Instruction, error) {
	return g.autofill(ctx, ledger.Instruction{
		"TransactionType": "NFTokenBurn",
		"Account":         p.Account,
		"NFTokenID":       p.AssetID,
	})
}

// autofill sets Sequence, Fee and LastLedgerSequence the way client
// libraries do before handing a transaction to its signer.
func (g *Gateway) autofill(ctx context.Context, tx ledger.Instruction) (ledger.Instruction, error) {
	account, _ := tx["Account"].(string)

	var info struct {
		AccountData struct {
			Sequence uint32 `json:"Sequence"`
		} `json:"account_data"`
	}
	if err := g.rpc.call(ctx, "account_info", map[string]any{"account": account, "ledger_index": "current"}, &info); err != nil {
		return nil, err
	}
	fee, err := g.fee(ctx)
	if err != nil {
		return nil, err
	}
	current, err := g.currentLedger(ctx)
	if err != nil {
		return nil, err
	}
	tx["Sequence"] = info.AccountData.Sequence
	tx["Fee"] = fee
	tx["LastLedgerSequence"] = current + g.cfg.LedgerWindow
	return tx, nil
}

func (g *Gateway) fee(ctx context.Context) (string, error) {
	var out struct {
		Drops struct {
			OpenLedgerFee string `json:"open_ledger_fee"`
			BaseFee       string `json:"base_fee"`
		} `json:"drops"`
	}
	if err := g.rpc.call(ctx, "fee", map[string]any{}, &out); err != nil {
		return "", err
	}
	fee := out.Drops.OpenLedgerFee
	if fee == "" {
		fee = out.Drops.BaseFee
	}
	if fee == "" {
		fee = "12"
	}
	return fee, nil
}

func (g *Gateway) currentLedger(ctx context.Context) (uint32, error) {
	var out struct {
		LedgerCurrentIndex uint32 `json:"ledger_current_index"`
	}
	if err := g.rpc.call(ctx, "ledger_current", map[string]any{}, &out); err != nil {
		return 0, err
	}
	return out.LedgerCurrentIndex, nil
}

type escrowObject struct {
	LedgerEntryType string          `json:"LedgerEntryType"`
	Index           string          `json:"index"`
	Account         string          `json:"Account"`
	Destination     string          `json:"Destination"`
	Amount          json.RawMessage `json:"Amount"`
	FinishAfter     uint32          `json:"FinishAfter"`
	PreviousTxnID   string          `json:"PreviousTxnID"`
}

// GetAccountObjects pages through the escrows in account's owner directory.
func (g *Gateway) GetAccountObjects(ctx context.Context, account string) ([]ledger.Lock, error) {
	var (
		out    []ledger.Lock
		marker any
	)
	for {
		params := map[string]any{
			"account":      account,
			"type":         "escrow",
			"ledger_index": "validated",
			"limit":        pageLimit,
		}
		if marker != nil {
			params["marker"] = marker
		}
		var page struct {
			AccountObjects []escrowObject `json:"account_objects"`
			Marker         any            `json:"marker"`
		}
		if err := g.rpc.call(ctx, "account_objects", params, &page); err != nil {
			return nil, err
		}
		for _, o := range page.AccountObjects {
			amt, native, ok := parseAmount(o.Amount)
			if !ok || !native {
				continue
			}
			l := ledger.Lock{
				Ref:          o.Index,
				Owner:        o.Account,
				Destination:  o.Destination,
				Amount:       amt,
				CreatedTxRef: o.PreviousTxnID,
			}
			if o.FinishAfter != 0 {
				l.MaturesAt = ledger.FromRippleTime(o.FinishAfter)
			}
			out = append(out, l)
		}
		if page.Marker == nil {
			return out, nil
		}
		marker = page.Marker
	}
}

// ReleaseLockedFunds finishes lock as the releaser account and waits for
// the result to be validated.
func (g *Gateway) ReleaseLockedFunds(ctx context.Context, lock ledger.Lock) (ledger.ReleaseResult, error) {
	if g.cfg.ReleaserSecret == "" || g.cfg.ReleaserAccount == "" {
		return ledger.ReleaseResult{}, errors.New("xrpl: releaser identity not configured")
	}
	seq, err := g.createSequence(ctx, lock)
	if err != nil {
		return ledger.ReleaseResult{}, err
	}
	current, err := g.currentLedger(ctx)
	if err != nil {
		return ledger.ReleaseResult{}, err
	}
	lastLedger := current + g.cfg.LedgerWindow

	var sub struct {
		EngineResult string `json:"engine_result"`
		EngineMsg    string `json:"engine_result_message"`
		TxJSON       struct {
			Hash string `json:"hash"`
		} `json:"tx_json"`
	}
	err = g.rpc.call(ctx, "submit", map[string]any{
		"secret": g.cfg.ReleaserSecret,
		"tx_json": map[string]any{
			"TransactionType":    "EscrowFinish",
			"Account":            g.cfg.ReleaserAccount,
			"Owner":              lock.Owner,
			"OfferSequence":      seq,
			"LastLedgerSequence": lastLedger,
		},
	}, &sub)
	if err != nil {
		return ledger.ReleaseResult{}, err
	}
	if rejectedOnSubmit(sub.EngineResult) {
		return ledger.ReleaseResult{}, fmt.Errorf("%w: %s %s", ledger.ErrRejected, sub.EngineResult, sub.EngineMsg)
	}
	g.log.Info("escrow finish submitted", "lock_ref", lock.Ref, "tx_hash", sub.TxJSON.Hash, "engine_result", sub.EngineResult)
	return g.waitValidated(ctx, sub.TxJSON.Hash, lastLedger)
}

// createSequence finds the OfferSequence of the lock through the
// transaction that created it.
func (g *Gateway) createSequence(ctx context.Context, lock ledger.Lock) (uint32, error) {
	if lock.CreatedTxRef == "" {
		return 0, fmt.Errorf("%w: lock %s has no creating transaction", ledger.ErrObjectNotFound, lock.Ref)
	}
	var tx txJSON
	if err := g.rpc.call(ctx, "tx", map[string]any{"transaction": lock.CreatedTxRef}, &tx); err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == "txnNotFound" {
			return 0, fmt.Errorf("%w: %s", ledger.ErrObjectNotFound, lock.CreatedTxRef)
		}
		return 0, err
	}
	if tx.TransactionType != "EscrowCreate" {
		return 0, fmt.Errorf("xrpl: %s is %s, not EscrowCreate", lock.CreatedTxRef, tx.TransactionType)
	}
	if tx.Sequence == 0 {
		return tx.TicketSequence, nil
	}
	return tx.Sequence, nil
}

func rejectedOnSubmit(code string) bool {
	for _, p := range []string{"tem", "tef", "tel"} {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

func (g *Gateway) waitValidated(ctx context.Context, hash string, lastLedger uint32) (ledger.ReleaseResult, error) {
	t := time.NewTicker(g.cfg.PollInterval)
	defer t.Stop()
	for {
		var out struct {
			Validated   bool     `json:"validated"`
			LedgerIndex uint64   `json:"ledger_index"`
			Meta        metaJSON `json:"meta"`
		}
		err := g.rpc.call(ctx, "tx", map[string]any{"transaction": hash}, &out)
		var rpcErr *RPCError
		switch {
		case err == nil && out.Validated:
			if out.Meta.TransactionResult != "tesSUCCESS" {
				return ledger.ReleaseResult{}, fmt.Errorf("%w: %s", ledger.ErrRejected, out.Meta.TransactionResult)
			}
			return ledger.ReleaseResult{TxHash: hash, LedgerIndex: out.LedgerIndex}, nil
		case err != nil && !(errors.As(err, &rpcErr) && rpcErr.Code == "txnNotFound"):
			return ledger.ReleaseResult{}, err
		}

		current, err := g.currentLedger(ctx)
		if err != nil {
			return ledger.ReleaseResult{}, err
		}
		if current > lastLedger {
			return ledger.ReleaseResult{}, fmt.Errorf("%w: %s expired at ledger %d", ledger.ErrNotValidated, hash, lastLedger)
		}
		select {
		case <-ctx.Done():
			return ledger.ReleaseResult{}, fmt.Errorf("%w: %s: %v", ledger.ErrNotValidated, hash, ctx.Err())
		case <-t.C:
		}
	}
}

type accountTxEntry struct {
	Tx        txJSON   `json:"tx"`
	Meta      metaJSON `json:"meta"`
	Validated bool     `json:"validated"`
}

// PaymentsSince replays validated transactions of account in ledger order.
func (g *Gateway) PaymentsSince(ctx context.Context, account string, fromLedger uint64) ([]ledger.PaymentEvent, error) {
	var (
		out    []ledger.PaymentEvent
		marker any
	)
	for {
		params := map[string]any{
			"account":          account,
			"ledger_index_min": fromLedger,
			"ledger_index_max": -1,
			"forward":          true,
			"limit":            pageLimit,
			"api_version":      1,
		}
		if marker != nil {
			params["marker"] = marker
		}
		var page struct {
			Transactions []accountTxEntry `json:"transactions"`
			Marker       any              `json:"marker"`
		}
		if err := g.rpc.call(ctx, "account_tx", params, &page); err != nil {
			return nil, err
		}
		for _, e := range page.Transactions {
			if !e.Validated {
				continue
			}
			out = append(out, toEvent(e.Tx, e.Meta, "", 0))
		}
		if page.Marker == nil {
			return out, nil
		}
		marker = page.Marker
	}
}
