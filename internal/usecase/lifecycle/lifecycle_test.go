package lifecycle

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/domain/failure"
	"tuition-escrow/internal/domain/ledger"
	"tuition-escrow/internal/domain/repayment"

	"github.com/shopspring/decimal"
)

func TestLifecycle_FullFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reqID, offers := h.seedMarket(t, []int64{2_000_000, 2_000_000}, "0.02")

	res, err := h.orch.AcceptOffer(ctx, AcceptOfferInput{RequestID: reqID, OfferID: offers[0]})
	if err != nil {
		t.Fatalf("AcceptOffer: %v", err)
	}
	agID := res.AgreementID
	if !h.agreement(t, agID).TotalOwed.Equal(decimal.NewFromInt(4_080_000)) {
		t.Fatal("total owed != 4080000")
	}

	if _, err := h.orch.PrepareTransferOffer(ctx, agID); !errors.Is(err, agreement.ErrAssetMissing) {
		t.Fatalf("transfer before mint: %v", err)
	}
	if _, err := h.orch.RecordAssetMinted(ctx, agID, "ASSET-1"); err != nil {
		t.Fatalf("RecordAssetMinted: %v", err)
	}
	if _, err := h.orch.PrepareMint(ctx, agID); !errors.Is(err, agreement.ErrInvalidTransition) {
		t.Fatalf("PrepareMint after mint: %v", err)
	}

	sell, err := h.orch.PrepareTransferOffer(ctx, agID)
	if err != nil {
		t.Fatalf("PrepareTransferOffer: %v", err)
	}
	if sell.Type() != "NFTokenCreateOffer" || sell["Destination"] != "rCompany" || sell["NFTokenID"] != "ASSET-1" {
		t.Fatalf("transfer offer = %v", sell)
	}
	if _, err := h.orch.PrepareAcceptTransfer(ctx, agID); !errors.Is(err, agreement.ErrTransferMissing) {
		t.Fatalf("accept before offer: %v", err)
	}
	if _, err := h.orch.RecordTransferOfferReference(ctx, agID, "OFFER-1"); err != nil {
		t.Fatalf("RecordTransferOfferReference: %v", err)
	}
	acc, err := h.orch.PrepareAcceptTransfer(ctx, agID)
	if err != nil || acc["Account"] != "rCompany" || acc["NFTokenSellOffer"] != "OFFER-1" {
		t.Fatalf("PrepareAcceptTransfer = %v, %v", acc, err)
	}

	if _, err := h.orch.PrepareInstallmentLocks(ctx, agID); !errors.Is(err, agreement.ErrInvalidTransition) {
		t.Fatalf("locks before funding: %v", err)
	}
	a, err := h.orch.RecordFunded(ctx, agID, "ASSET-1")
	if err != nil || a.Status != agreement.StatusFunded {
		t.Fatalf("RecordFunded = %v, %v", a, err)
	}

	locks, err := h.orch.PrepareInstallmentLocks(ctx, agID)
	if err != nil || len(locks) != 2 {
		t.Fatalf("PrepareInstallmentLocks = %d, %v", len(locks), err)
	}
	for i, l := range locks {
		h.escrow([]string{"LOCK-0", "LOCK-1"}[i], l.Amount)
		if _, err := h.orch.RecordInstallmentLock(ctx, agID, l.InstallmentIndex, []string{"LOCK-0", "LOCK-1"}[i]); err != nil {
			t.Fatalf("RecordInstallmentLock(%d): %v", i, err)
		}
	}
	if rest, _ := h.orch.PrepareInstallmentLocks(ctx, agID); len(rest) != 0 {
		t.Fatalf("locks left after recording: %d", len(rest))
	}

	h.now = time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)
	if a, _ := h.orch.MarkInstallmentReleased(ctx, agID, 0); a.Status != agreement.StatusFunded {
		t.Fatalf("status after first release = %s", a.Status)
	}
	h.now = time.Date(2026, 7, 16, 0, 0, 0, 0, time.UTC)
	if a, _ := h.orch.MarkInstallmentReleased(ctx, agID, 1); a.Status != agreement.StatusRepaying {
		t.Fatalf("status after last release = %s", a.Status)
	}

	pay := func(hash string, amount int64) *RepaymentResult {
		t.Helper()
		r, err := h.orch.ApplyRepayment(ctx, Payment{
			TxHash: hash, LedgerIndex: 100, AgreementID: agID,
			Source: "rStudent", Destination: "rCompany", Amount: decimal.NewFromInt(amount),
		})
		if err != nil {
			t.Fatalf("ApplyRepayment(%s): %v", hash, err)
		}
		return r
	}
	if r := pay("TX1", 4_000_000); r.Status != agreement.StatusRepaying || !r.Credited.Equal(decimal.NewFromInt(4_000_000)) {
		t.Fatalf("first payment = %+v", r)
	}
	if r := pay("TX2", 80_000); r.Status != agreement.StatusRepaid {
		t.Fatalf("second payment = %+v", r)
	}

	burn, err := h.orch.PrepareBurn(ctx, agID)
	if err != nil || burn.Type() != "NFTokenBurn" || burn["Account"] != "rCompany" || burn["NFTokenID"] != "ASSET-1" {
		t.Fatalf("PrepareBurn = %v, %v", burn, err)
	}
	if a, err := h.orch.RecordClosed(ctx, agID); err != nil || a.Status != agreement.StatusClosed {
		t.Fatalf("RecordClosed = %v, %v", a, err)
	}
	if _, err := h.orch.RecordClosed(ctx, agID); !errors.Is(err, agreement.ErrInvalidTransition) {
		t.Fatalf("second RecordClosed: %v", err)
	}

	want := []transition{
		{agreement.StatusAwaitingFunding, agreement.StatusFunded},
		{agreement.StatusFunded, agreement.StatusRepaying},
		{agreement.StatusRepaying, agreement.StatusRepaid},
		{agreement.StatusRepaid, agreement.StatusClosed},
	}
	if got := h.transitions(); !reflect.DeepEqual(got, want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
}

func TestPrepareInstallmentLocks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.seedAgreement(t, agreement.StatusFunded, nil)

	first, err := h.orch.PrepareInstallmentLocks(ctx, a.AgreementID)
	if err != nil {
		t.Fatalf("PrepareInstallmentLocks: %v", err)
	}
	second, err := h.orch.PrepareInstallmentLocks(ctx, a.AgreementID)
	if err != nil {
		t.Fatalf("PrepareInstallmentLocks again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("not repeatable:\n%v\n%v", first, second)
	}

	// midnight 2026-01-15 at +08:00
	wantMature := time.Date(2026, 1, 14, 16, 0, 0, 0, time.UTC)
	l := first[0]
	if l.InstallmentIndex != 0 || !l.MaturesAt.Equal(wantMature) {
		t.Fatalf("lock 0 = %+v", l)
	}
	ins := l.Instruction
	if ins.Type() != "EscrowCreate" || ins["Account"] != "rCompany" || ins["Destination"] != "rSchool" || ins["Amount"] != "2000000" {
		t.Fatalf("instruction = %v", ins)
	}
	if ins["FinishAfter"] != ledger.ToRippleTime(wantMature) {
		t.Fatalf("FinishAfter = %v", ins["FinishAfter"])
	}

	if h.agreement(t, a.AgreementID).Version != a.Version {
		t.Fatal("prepare wrote the agreement")
	}
}

func TestPrepareInstallmentLocks_OverdueUsesLead(t *testing.T) {
	h := newHarness(t)
	h.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := h.seedAgreement(t, agreement.StatusFunded, func(a *agreement.Agreement) {
		ref := "LOCK-1"
		a.Installments[1].LockRef = &ref
	})

	locks, err := h.orch.PrepareInstallmentLocks(context.Background(), a.AgreementID)
	if err != nil {
		t.Fatalf("PrepareInstallmentLocks: %v", err)
	}
	if len(locks) != 1 || locks[0].InstallmentIndex != 0 {
		t.Fatalf("locks = %+v", locks)
	}
	if want := h.now.Add(time.Minute); !locks[0].MaturesAt.Equal(want) {
		t.Fatalf("matures at %s, want %s", locks[0].MaturesAt, want)
	}
}

func TestRecordFunded_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.seedAgreement(t, agreement.StatusAwaitingFunding, func(a *agreement.Agreement) { a.AssetID = nil })

	if _, err := h.orch.RecordFunded(ctx, a.AgreementID, "ASSET-9"); err != nil {
		t.Fatalf("RecordFunded: %v", err)
	}
	version := h.agreement(t, a.AgreementID).Version
	if _, err := h.orch.RecordFunded(ctx, a.AgreementID, "ASSET-9"); err != nil {
		t.Fatalf("repeat RecordFunded: %v", err)
	}
	if got := h.agreement(t, a.AgreementID).Version; got != version {
		t.Fatalf("repeat wrote the agreement: version %d -> %d", version, got)
	}
	_, err := h.orch.RecordFunded(ctx, a.AgreementID, "ASSET-X")
	if !errors.Is(err, agreement.ErrAssetMismatch) || failure.KindOf(err) != failure.KindConflict {
		t.Fatalf("different asset: %v", err)
	}
	if len(h.transitions()) != 1 {
		t.Fatalf("transitions = %v", h.transitions())
	}
}

func TestRecordReferences_Conflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.seedAgreement(t, agreement.StatusAwaitingFunding, nil)

	if _, err := h.orch.RecordTransferOfferReference(ctx, a.AgreementID, "OFFER-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.orch.RecordTransferOfferReference(ctx, a.AgreementID, "OFFER-1"); err != nil {
		t.Fatalf("same ref: %v", err)
	}
	if _, err := h.orch.RecordTransferOfferReference(ctx, a.AgreementID, "OFFER-2"); !errors.Is(err, agreement.ErrTransferMismatch) {
		t.Fatalf("different ref: %v", err)
	}
	if _, err := h.orch.RecordAssetMinted(ctx, a.AgreementID, "ASSET-2"); !errors.Is(err, agreement.ErrAssetMismatch) {
		t.Fatalf("different asset: %v", err)
	}

	funded := h.seedAgreement(t, agreement.StatusFunded, nil)
	if _, err := h.orch.RecordInstallmentLock(ctx, funded.AgreementID, 5, "L"); !errors.Is(err, agreement.ErrInstallmentIndex) {
		t.Fatalf("index out of range: %v", err)
	}
	h.escrow("L0", decimal.NewFromInt(2_000_000))
	if _, err := h.orch.RecordInstallmentLock(ctx, funded.AgreementID, 0, "L0"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.orch.RecordInstallmentLock(ctx, funded.AgreementID, 0, "L9"); !errors.Is(err, agreement.ErrLockMismatch) {
		t.Fatalf("different lock: %v", err)
	}
	if _, err := h.orch.MarkInstallmentReleased(ctx, funded.AgreementID, 1); !errors.Is(err, agreement.ErrNotLocked) {
		t.Fatalf("release without lock: %v", err)
	}
}

func TestRecordInstallmentLock_VerifiesLedger(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.seedAgreement(t, agreement.StatusFunded, nil)
	h.escrow("OBJ-0", decimal.NewFromInt(2_000_000))
	h.gw.AddLock(ledger.Lock{Ref: "OBJ-WRONG", Owner: "rCompany", Destination: "rElsewhere", Amount: decimal.NewFromInt(2_000_000)})

	// the EscrowCreate hash is not an object on the ledger
	if _, err := h.orch.RecordInstallmentLock(ctx, a.AgreementID, 0, "CREATE-TX-HASH"); !errors.Is(err, agreement.ErrLockNotOnLedger) {
		t.Fatalf("tx hash as lock ref: %v", err)
	}
	if _, err := h.orch.RecordInstallmentLock(ctx, a.AgreementID, 0, "OBJ-WRONG"); !errors.Is(err, agreement.ErrLockTerms) {
		t.Fatalf("lock paying someone else: %v", err)
	}
	if in := h.agreement(t, a.AgreementID).Installments[0]; in.LockRef != nil {
		t.Fatalf("lock ref stored after rejection: %s", *in.LockRef)
	}

	if _, err := h.orch.RecordInstallmentLock(ctx, a.AgreementID, 0, "OBJ-0"); err != nil {
		t.Fatal(err)
	}
	// once recorded, a repeat is answered without the ledger
	h.gw.GetAccountObjectsFn = func(context.Context, string) ([]ledger.Lock, error) {
		return nil, errors.New("rippled unreachable")
	}
	if _, err := h.orch.RecordInstallmentLock(ctx, a.AgreementID, 0, "OBJ-0"); err != nil {
		t.Fatalf("repeat: %v", err)
	}
	_, err := h.orch.RecordInstallmentLock(ctx, a.AgreementID, 1, "OBJ-1")
	if failure.KindOf(err) != failure.KindExternal {
		t.Fatalf("ledger down: %v, want external", err)
	}
}

func TestApplyRepayment(t *testing.T) {
	ctx := context.Background()
	payment := func(a *agreement.Agreement, hash string, amount int64) Payment {
		return Payment{TxHash: hash, LedgerIndex: 7, AgreementID: a.AgreementID, Source: "rStudent", Destination: "rCompany", Amount: decimal.NewFromInt(amount)}
	}

	t.Run("duplicate delivery credits once", func(t *testing.T) {
		h := newHarness(t)
		a := h.seedAgreement(t, agreement.StatusRepaying, nil)
		p := payment(a, "TX-DUP", 1_000_000)

		first, err := h.orch.ApplyRepayment(ctx, p)
		if err != nil || first.Duplicate {
			t.Fatalf("first = %+v, %v", first, err)
		}
		second, err := h.orch.ApplyRepayment(ctx, p)
		if err != nil || !second.Duplicate {
			t.Fatalf("second = %+v, %v", second, err)
		}
		if got := h.agreement(t, a.AgreementID).AmountPaid; !got.Equal(decimal.NewFromInt(1_000_000)) {
			t.Fatalf("amount paid = %s", got)
		}
	})

	t.Run("overpayment is capped", func(t *testing.T) {
		h := newHarness(t)
		a := h.seedAgreement(t, agreement.StatusRepaying, func(a *agreement.Agreement) {
			a.AmountPaid = decimal.NewFromInt(4_000_000)
		})
		r, err := h.orch.ApplyRepayment(ctx, payment(a, "TX-OVER", 100_000))
		if err != nil {
			t.Fatal(err)
		}
		if !r.Credited.Equal(decimal.NewFromInt(80_000)) || !r.Excess.Equal(decimal.NewFromInt(20_000)) || r.Status != agreement.StatusRepaid {
			t.Fatalf("result = %+v", r)
		}
		if got := h.agreement(t, a.AgreementID).AmountPaid; !got.Equal(a.TotalOwed) {
			t.Fatalf("amount paid = %s", got)
		}
	})

	t.Run("party mismatch is recorded only", func(t *testing.T) {
		h := newHarness(t)
		a := h.seedAgreement(t, agreement.StatusRepaying, nil)
		p := payment(a, "TX-ODD", 1_000)
		p.Source = "rSomeoneElse"
		r, err := h.orch.ApplyRepayment(ctx, p)
		if err != nil || r.Outcome != repayment.OutcomeMismatch || !r.Credited.IsZero() {
			t.Fatalf("result = %+v, %v", r, err)
		}
		rec, err := h.repos.Repayments.GetByTxHash(ctx, "TX-ODD")
		if err != nil || rec.Outcome != repayment.OutcomeMismatch {
			t.Fatalf("record = %+v, %v", rec, err)
		}
		if !h.agreement(t, a.AgreementID).AmountPaid.IsZero() {
			t.Fatal("mismatched payment credited")
		}
	})

	t.Run("not repaying", func(t *testing.T) {
		h := newHarness(t)
		a := h.seedAgreement(t, agreement.StatusFunded, nil)
		r, err := h.orch.ApplyRepayment(ctx, payment(a, "TX-EARLY", 1_000))
		if err != nil || r.Outcome != repayment.OutcomeNotRepaying || r.Status != agreement.StatusFunded {
			t.Fatalf("result = %+v, %v", r, err)
		}

		// the early payment stays on record for manual review and is not
		// credited by a redelivery once repayment starts
		cur := h.agreement(t, a.AgreementID)
		cur.Status = agreement.StatusRepaying
		if err := h.repos.Agreements.Update(ctx, cur); err != nil {
			t.Fatal(err)
		}
		again, err := h.orch.ApplyRepayment(ctx, payment(a, "TX-EARLY", 1_000))
		if err != nil || !again.Duplicate {
			t.Fatalf("redelivery = %+v, %v", again, err)
		}
		if !h.agreement(t, a.AgreementID).AmountPaid.IsZero() {
			t.Fatal("early payment credited")
		}
	})

	t.Run("unknown agreement", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.orch.ApplyRepayment(ctx, Payment{TxHash: "TX", AgreementID: "nope", Amount: decimal.NewFromInt(1)})
		if !errors.Is(err, agreement.ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestRecordClosed_Guard(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name    string
		status  agreement.Status
		asset   bool
		wantErr error
	}{
		{"repaying", agreement.StatusRepaying, true, agreement.ErrInvalidTransition},
		{"funded", agreement.StatusFunded, true, agreement.ErrInvalidTransition},
		{"repaid without asset", agreement.StatusRepaid, false, agreement.ErrAssetMissing},
		{"repaid", agreement.StatusRepaid, true, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			a := h.seedAgreement(t, tc.status, func(a *agreement.Agreement) {
				if !tc.asset {
					a.AssetID = nil
				}
			})
			if _, err := h.orch.PrepareBurn(ctx, a.AgreementID); !errors.Is(err, tc.wantErr) {
				t.Fatalf("PrepareBurn err = %v, want %v", err, tc.wantErr)
			}
			_, err := h.orch.RecordClosed(ctx, a.AgreementID)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("RecordClosed err = %v, want %v", err, tc.wantErr)
			}
			want := tc.status
			if tc.wantErr == nil {
				want = agreement.StatusClosed
			}
			if got := h.agreement(t, a.AgreementID).Status; got != want {
				t.Fatalf("status = %s, want %s", got, want)
			}
		})
	}
}

func TestLedgerFailureIsExternal(t *testing.T) {
	h := newHarness(t)
	a := h.seedAgreement(t, agreement.StatusRepaid, nil)
	h.gw.PrepareBurnAssetFn = func(context.Context, ledger.BurnParams) (ledger.Instruction, error) {
		return nil, errors.New("rippled unreachable")
	}
	_, err := h.orch.PrepareBurn(context.Background(), a.AgreementID)
	if failure.KindOf(err) != failure.KindExternal {
		t.Fatalf("err = %v, want external", err)
	}
}
