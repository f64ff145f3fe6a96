package repayment

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"tuition-escrow/internal/adapter/repository/mysql"
	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/domain/ledger"
	"tuition-escrow/internal/domain/uow"
	"tuition-escrow/internal/testutil/dbtest"
	"tuition-escrow/internal/testutil/ledgermock"
	"tuition-escrow/internal/testutil/metadatamock"
	"tuition-escrow/internal/usecase/lifecycle"
	"tuition-escrow/pkg/logging"

	"github.com/shopspring/decimal"
)

type fixture struct {
	repos    uow.Repos
	gw       *ledgermock.Gateway
	orch     *lifecycle.Orchestrator
	listener *Listener
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	f := &fixture{repos: mysql.Repos(gdb), gw: &ledgermock.Gateway{}}
	f.orch = lifecycle.NewOrchestrator(f.repos, mysql.NewGormUoW(gdb), f.gw, &metadatamock.Publisher{},
		lifecycle.Settings{}, lifecycle.WithLogger(logging.Discard()))
	f.listener = f.newListener(f.orch)
	return f
}

func (f *fixture) newListener(applier Applier) *Listener {
	return NewListener(f.repos.Agreements, f.repos.Repayments, f.gw, applier,
		Config{RefreshInterval: time.Hour, BackoffMin: time.Millisecond, BackoffMax: 5 * time.Millisecond},
		logging.Discard())
}

// flakyApplier fails the listed transactions the given number of times
// before handing them to the wrapped applier.
type flakyApplier struct {
	Applier

	mu    sync.Mutex
	fails map[string]int
}

func (a *flakyApplier) ApplyRepayment(ctx context.Context, p lifecycle.Payment) (*lifecycle.RepaymentResult, error) {
	a.mu.Lock()
	n := a.fails[p.TxHash]
	if n > 0 {
		a.fails[p.TxHash] = n - 1
	}
	a.mu.Unlock()
	if n > 0 {
		return nil, errors.New("database is locked")
	}
	return a.Applier.ApplyRepayment(ctx, p)
}

func (f *fixture) seedRepaying(t *testing.T, agreementID, student string) {
	t.Helper()
	asset := "ASSET-" + agreementID
	a := &agreement.Agreement{
		AgreementID:    agreementID,
		RequestID:      "req-" + agreementID,
		OfferID:        "off-" + agreementID,
		StudentAddress: student,
		CompanyAddress: "rCompany",
		SchoolAddress:  "rSchool",
		Currency:       "XRP",
		InterestRate:   decimal.RequireFromString("0.02"),
		Principal:      decimal.NewFromInt(4_000_000),
		TotalOwed:      decimal.NewFromInt(4_080_000),
		AmountPaid:     decimal.Zero,
		AssetID:        &asset,
		Status:         agreement.StatusRepaying,
	}
	if err := f.repos.Agreements.Create(context.Background(), a); err != nil {
		t.Fatalf("create agreement: %v", err)
	}
}

func (f *fixture) paid(t *testing.T, agreementID string) decimal.Decimal {
	t.Helper()
	a, err := f.repos.Agreements.GetByAgreementID(context.Background(), agreementID)
	if err != nil {
		t.Fatal(err)
	}
	return a.AmountPaid
}

func memo(typ, data string) ledger.Memo {
	return ledger.Memo{Type: hex.EncodeToString([]byte(typ)), Data: hex.EncodeToString([]byte(data))}
}

func repaymentEvent(hash string, ledgerIndex uint64, agreementID string, drops int64) ledger.PaymentEvent {
	return ledger.PaymentEvent{
		TxHash:          hash,
		LedgerIndex:     ledgerIndex,
		TransactionType: "Payment",
		Result:          "tesSUCCESS",
		Source:          "rStudent",
		Destination:     "rCompany",
		Amount:          decimal.NewFromInt(drops),
		Native:          true,
		Memos:           []ledger.Memo{memo(MemoType, agreementID)},
	}
}

func TestHandlePayment_DuplicateDeliveryIsMonotonic(t *testing.T) {
	f := newFixture(t)
	f.seedRepaying(t, "ag-1", "rStudent")
	ctx := context.Background()
	watched := []string{"rStudent"}

	ev := repaymentEvent("TX1", 100, "ag-1", 1_000_000)
	if got := f.listener.HandlePayment(ctx, watched, ev); got != "applied" {
		t.Fatalf("first delivery outcome = %s", got)
	}
	if got := f.listener.HandlePayment(ctx, watched, ev); got != "duplicate" {
		t.Fatalf("second delivery outcome = %s", got)
	}
	if got := f.paid(t, "ag-1"); !got.Equal(decimal.NewFromInt(1_000_000)) {
		t.Fatalf("amount paid = %s", got)
	}

	// an older ledger index never moves the cursor back
	f.listener.HandlePayment(ctx, watched, repaymentEvent("TX0", 90, "ag-1", 500_000))
	cur, ok, err := f.repos.Repayments.Cursor(ctx, "rStudent")
	if err != nil || !ok || cur != 100 {
		t.Fatalf("cursor = %d, %v, %v", cur, ok, err)
	}
	if got := f.paid(t, "ag-1"); !got.Equal(decimal.NewFromInt(1_500_000)) {
		t.Fatalf("amount paid after late event = %s", got)
	}
}

func TestHandlePayment_Filtering(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(ev *ledger.PaymentEvent)
		want   string
	}{
		{"not a payment", func(ev *ledger.PaymentEvent) { ev.TransactionType = "OfferCreate" }, "ignored"},
		{"failed result", func(ev *ledger.PaymentEvent) { ev.Result = "tecUNFUNDED_PAYMENT" }, "ignored"},
		{"issued currency", func(ev *ledger.PaymentEvent) { ev.Native = false }, "ignored"},
		{"no memo", func(ev *ledger.PaymentEvent) { ev.Memos = nil }, "ignored"},
		{"other memo type", func(ev *ledger.PaymentEvent) { ev.Memos = []ledger.Memo{memo("Invoice", "ag-1")} }, "ignored"},
		{"unknown agreement", func(ev *ledger.PaymentEvent) { ev.Memos = []ledger.Memo{memo(MemoType, "nope")} }, "ignored"},
		{"wrong sender", func(ev *ledger.PaymentEvent) { ev.Source = "rMallory" }, "party_mismatch"},
		{"second memo matches", func(ev *ledger.PaymentEvent) {
			ev.Memos = []ledger.Memo{memo("Invoice", "x"), memo(MemoType, "ag-1")}
		}, "applied"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedRepaying(t, "ag-1", "rStudent")
			ctx := context.Background()

			ev := repaymentEvent("TX-"+tc.name, 55, "ag-1", 1_000)
			tc.mutate(&ev)
			if got := f.listener.HandlePayment(ctx, []string{"rStudent"}, ev); got != tc.want {
				t.Fatalf("outcome = %s, want %s", got, tc.want)
			}
			wantPaid := decimal.Zero
			if tc.want == "applied" {
				wantPaid = decimal.NewFromInt(1_000)
			}
			if got := f.paid(t, "ag-1"); !got.Equal(wantPaid) {
				t.Fatalf("amount paid = %s, want %s", got, wantPaid)
			}
			if ev.Source == "rStudent" {
				if cur, ok, _ := f.repos.Repayments.Cursor(ctx, "rStudent"); !ok || cur != 55 {
					t.Fatalf("cursor = %d, %v", cur, ok)
				}
			}
		})
	}
}

func TestRepaymentTarget(t *testing.T) {
	if id, ok := RepaymentTarget([]ledger.Memo{{Type: "zz", Data: "zz"}}); ok {
		t.Fatalf("bad hex accepted: %q", id)
	}
	if _, ok := RepaymentTarget([]ledger.Memo{memo(MemoType, "")}); ok {
		t.Fatal("empty agreement id accepted")
	}
	if id, ok := RepaymentTarget([]ledger.Memo{memo(MemoType, "abc123")}); !ok || id != "abc123" {
		t.Fatalf("target = %q, %v", id, ok)
	}
}

func TestRun_ReconnectsAndReplaysFromCursor(t *testing.T) {
	f := newFixture(t)
	f.seedRepaying(t, "ag-1", "rStudent")

	subs := make(chan chan ledger.PaymentEvent, 4)
	watched := make(chan []string, 4)
	f.gw.SubscribeToPaymentsFn = func(_ context.Context, accounts []string) (<-chan ledger.PaymentEvent, error) {
		ch := make(chan ledger.PaymentEvent, 4)
		watched <- accounts
		subs <- ch
		return ch, nil
	}
	replayed := make(chan uint64, 4)
	f.gw.PaymentsSinceFn = func(_ context.Context, account string, from uint64) ([]ledger.PaymentEvent, error) {
		replayed <- from
		// the cursor ledger again, with a payment missed while disconnected
		return []ledger.PaymentEvent{
			repaymentEvent("TX-LIVE", 10, "ag-1", 4_000_000),
			repaymentEvent("TX-MISSED", 10, "ag-1", 80_000),
		}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.listener.Run(ctx) }()

	first := recv(t, subs)
	if got := recv(t, watched); len(got) != 1 || got[0] != "rStudent" {
		t.Fatalf("watched = %v", got)
	}
	first <- repaymentEvent("TX-LIVE", 10, "ag-1", 4_000_000)
	close(first)

	recv(t, subs)
	if from := recv(t, replayed); from != 10 {
		t.Fatalf("replayed from ledger %d, want 10", from)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !f.paid(t, "ag-1").Equal(decimal.NewFromInt(4_080_000)) {
		if time.Now().After(deadline) {
			t.Fatalf("amount paid = %s", f.paid(t, "ag-1"))
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRun_FailedApplyIsReplayedBeforeLaterPayments(t *testing.T) {
	f := newFixture(t)
	f.seedRepaying(t, "ag-1", "rStudent")
	l := f.newListener(&flakyApplier{Applier: f.orch, fails: map[string]int{"TX-A": 1}})

	history := []ledger.PaymentEvent{
		repaymentEvent("TX-A", 100, "ag-1", 1_000),
		repaymentEvent("TX-B", 101, "ag-1", 2_000),
	}
	subs := make(chan chan ledger.PaymentEvent, 4)
	f.gw.SubscribeToPaymentsFn = func(context.Context, []string) (<-chan ledger.PaymentEvent, error) {
		ch := make(chan ledger.PaymentEvent, 4)
		subs <- ch
		return ch, nil
	}
	replayed := make(chan uint64, 4)
	f.gw.PaymentsSinceFn = func(_ context.Context, _ string, from uint64) ([]ledger.PaymentEvent, error) {
		replayed <- from
		var out []ledger.PaymentEvent
		for _, ev := range history {
			if ev.LedgerIndex >= from {
				out = append(out, ev)
			}
		}
		return out, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	first := recv(t, subs)
	first <- history[0]
	first <- history[1]

	// the session ends on TX-A so TX-B cannot move the cursor past it
	recv(t, subs)
	if from := recv(t, replayed); from != 100 {
		t.Fatalf("replayed from ledger %d, want 100", from)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !f.paid(t, "ag-1").Equal(decimal.NewFromInt(3_000)) {
		if time.Now().After(deadline) {
			t.Fatalf("amount paid = %s, want 3000", f.paid(t, "ag-1"))
		}
		time.Sleep(5 * time.Millisecond)
	}
	for _, hash := range []string{"TX-A", "TX-B"} {
		if _, err := f.repos.Repayments.GetByTxHash(context.Background(), hash); err != nil {
			t.Fatalf("%s not recorded: %v", hash, err)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestHandlePayment_FailedApplyPinsCursor(t *testing.T) {
	f := newFixture(t)
	f.seedRepaying(t, "ag-1", "rStudent")
	ctx := context.Background()
	l := f.newListener(&flakyApplier{Applier: f.orch, fails: map[string]int{"TX-A": 1}})

	if got := l.HandlePayment(ctx, []string{"rStudent"}, repaymentEvent("TX-A", 42, "ag-1", 1_000)); got != "failed" {
		t.Fatalf("outcome = %s, want failed", got)
	}
	if cur, ok, err := f.repos.Repayments.Cursor(ctx, "rStudent"); err != nil || !ok || cur != 42 {
		t.Fatalf("cursor = %d, %v, %v", cur, ok, err)
	}
	if !f.paid(t, "ag-1").IsZero() {
		t.Fatal("failed apply credited")
	}
}

func recv[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting")
	}
	var zero T
	return zero
}
