package ledgermock

import (
	"context"
	"errors"
	"sync"

	"tuition-escrow/internal/domain/ledger"
)

var _ ledger.Gateway = (*Gateway)(nil)

var ErrUnimplemented = errors.New("ledgermock: method not implemented")

// Gateway is a function-backed ledger.Gateway. Unset Prepare* funcs echo
// their parameters as an instruction; unset query funcs return ErrUnimplemented.
// Calls to ReleaseLockedFunds are recorded in Released. Locks added with
// AddLock are served by GetAccountObjects when GetAccountObjectsFn is unset.
type Gateway struct {
	PrepareCreateAssetFn         func(ctx context.Context, p ledger.MintParams) (ledger.Instruction, error)
	PrepareCreateTransferOfferFn func(ctx context.Context, p ledger.TransferOfferParams) (ledger.Instruction, error)
	PrepareAcceptTransferOfferFn func(ctx context.Context, p ledger.AcceptTransferParams) (ledger.Instruction, error)
	PrepareLockFundsFn           func(ctx context.Context, p ledger.LockParams) (ledger.Instruction, error)
	PrepareBurnAssetFn           func(ctx context.Context, p ledger.BurnParams) (ledger.Instruction, error)
	ReleaseLockedFundsFn         func(ctx context.Context, lock ledger.Lock) (ledger.ReleaseResult, error)
	GetAccountObjectsFn          func(ctx context.Context, account string) ([]ledger.Lock, error)
	SubscribeToPaymentsFn        func(ctx context.Context, accounts []string) (<-chan ledger.PaymentEvent, error)
	PaymentsSinceFn              func(ctx context.Context, account string, fromLedger uint64) ([]ledger.PaymentEvent, error)

	mu       sync.Mutex
	Released []ledger.Lock
	locks    []ledger.Lock
}

func (g *Gateway) AddLock(l ledger.Lock) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.locks = append(g.locks, l)
}

func (g *Gateway) PrepareCreateAsset(ctx context.Context, p ledger.MintParams) (ledger.Instruction, error) {
	if g.PrepareCreateAssetFn != nil {
		return g.PrepareCreateAssetFn(ctx, p)
	}
	return ledger.Instruction{"TransactionType": "NFTokenMint", "Account": p.Account, "URI": p.URI}, nil
}

func (g *Gateway) PrepareCreateTransferOffer(ctx context.Context, p ledger.TransferOfferParams) (ledger.Instruction, error) {
	if g.PrepareCreateTransferOfferFn != nil {
		return g.PrepareCreateTransferOfferFn(ctx, p)
	}
	return ledger.Instruction{"TransactionType": "NFTokenCreateOffer", "Account": p.Account, "NFTokenID": p.AssetID, "Destination": p.Destination}, nil
}

func (g *Gateway) PrepareAcceptTransferOffer(ctx context.Context, p ledger.AcceptTransferParams) (ledger.Instruction, error) {
	if g.PrepareAcceptTransferOfferFn != nil {
		return g.PrepareAcceptTransferOfferFn(ctx, p)
	}
	return ledger.Instruction{"TransactionType": "NFTokenAcceptOffer", "Account": p.Account, "NFTokenSellOffer": p.OfferRef}, nil
}

func (g *Gateway) PrepareLockFunds(ctx context.Context, p ledger.LockParams) (ledger.Instruction, error) {
	if g.PrepareLockFundsFn != nil {
		return g.PrepareLockFundsFn(ctx, p)
	}
	return ledger.Instruction{
		"TransactionType": "EscrowCreate",
		"Account":         p.Account,
		"Destination":     p.Destination,
		"Amount":          p.Amount.String(),
		"FinishAfter":     ledger.ToRippleTime(p.MaturesAt),
	}, nil
}

func (g *Gateway) PrepareBurnAsset(ctx context.Context, p ledger.BurnParams) (ledger.Instruction, error) {
	if g.PrepareBurnAssetFn != nil {
		return g.PrepareBurnAssetFn(ctx, p)
	}
	return ledger.Instruction{"TransactionType": "NFTokenBurn", "Account": p.Account, "NFTokenID": p.AssetID}, nil
}

func (g *Gateway) ReleaseLockedFunds(ctx context.Context, lock ledger.Lock) (ledger.ReleaseResult, error) {
	g.mu.Lock()
	g.Released = append(g.Released, lock)
	g.mu.Unlock()
	if g.ReleaseLockedFundsFn != nil {
		return g.ReleaseLockedFundsFn(ctx, lock)
	}
	return ledger.ReleaseResult{}, ErrUnimplemented
}

func (g *Gateway) ReleasedRefs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.Released))
	for _, l := range g.Released {
		out = append(out, l.Ref)
	}
	return out
}

func (g *Gateway) GetAccountObjects(ctx context.Context, account string) ([]ledger.Lock, error) {
	if g.GetAccountObjectsFn != nil {
		return g.GetAccountObjectsFn(ctx, account)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.locks == nil {
		return nil, ErrUnimplemented
	}
	var out []ledger.Lock
	for _, l := range g.locks {
		if l.Owner == account {
			out = append(out, l)
		}
	}
	return out, nil
}

func (g *Gateway) SubscribeToPayments(ctx context.Context, accounts []string) (<-chan ledger.PaymentEvent, error) {
	if g.SubscribeToPaymentsFn != nil {
		return g.SubscribeToPaymentsFn(ctx, accounts)
	}
	return nil, ErrUnimplemented
}

func (g *Gateway) PaymentsSince(ctx context.Context, account string, fromLedger uint64) ([]ledger.PaymentEvent, error) {
	if g.PaymentsSinceFn != nil {
		return g.PaymentsSinceFn(ctx, account, fromLedger)
	}
	return nil, nil
}
