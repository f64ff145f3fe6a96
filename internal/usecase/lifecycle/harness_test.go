package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"tuition-escrow/internal/adapter/repository/mysql"
	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/domain/ledger"
	"tuition-escrow/internal/domain/loanrequest"
	"tuition-escrow/internal/domain/offer"
	"tuition-escrow/internal/domain/uow"
	"tuition-escrow/internal/testutil/dbtest"
	"tuition-escrow/internal/testutil/ledgermock"
	"tuition-escrow/internal/testutil/metadatamock"
	"tuition-escrow/pkg/id"
	"tuition-escrow/pkg/logging"

	"github.com/shopspring/decimal"
)

var (
	jan15 = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	jul15 = time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
)

type transition struct {
	from, to agreement.Status
}

type harness struct {
	repos uow.Repos
	gw    *ledgermock.Gateway
	pub   *metadatamock.Publisher
	orch  *Orchestrator
	now   time.Time

	mu    sync.Mutex
	moves []transition
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gdb := dbtest.Open(t)
	h := &harness{
		repos: mysql.Repos(gdb),
		gw:    &ledgermock.Gateway{},
		pub:   &metadatamock.Publisher{},
		now:   time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC),
	}
	plus8 := time.FixedZone("UTC+08:00", 8*3600)
	h.orch = NewOrchestrator(h.repos, mysql.NewGormUoW(gdb), h.gw, h.pub,
		Settings{MaturityZone: plus8, MinLockLead: time.Minute},
		WithClock(func() time.Time { return h.now }),
		WithLogger(logging.Discard()),
		OnTransition(func(_ string, from, to agreement.Status) {
			h.mu.Lock()
			h.moves = append(h.moves, transition{from, to})
			h.mu.Unlock()
		}),
	)
	return h
}

func (h *harness) transitions() []transition {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]transition(nil), h.moves...)
}

// seedMarket stores an OPEN request with the given schedule and one pending
// offer per rate, returning their ids.
func (h *harness) seedMarket(t *testing.T, amounts []int64, rates ...string) (string, []string) {
	t.Helper()
	ctx := context.Background()
	grad := time.Date(2028, 6, 30, 0, 0, 0, 0, time.UTC)
	req := &loanrequest.LoanRequest{
		RequestID:      id.NewID32(),
		StudentAddress: "rStudent",
		StudentName:    "Ada",
		SchoolAddress:  "rSchool",
		Program:        "BSc Computer Science",
		Currency:       "XRP",
		GraduationDate: &grad,
		Industry:       "software",
		Description:    "tuition",
		Status:         loanrequest.StatusOpen,
	}
	dues := []time.Time{jan15, jul15}
	total := decimal.Zero
	for i, a := range amounts {
		amt := decimal.NewFromInt(a)
		total = total.Add(amt)
		req.Installments = append(req.Installments, loanrequest.Installment{Seq: i, Amount: amt, DueDate: dues[i%len(dues)]})
	}
	req.TotalAmount = total
	if err := h.repos.Requests.Create(ctx, req); err != nil {
		t.Fatalf("create request: %v", err)
	}

	var offerIDs []string
	for _, rate := range rates {
		o := &offer.Offer{
			OfferID:             id.NewID32(),
			RequestID:           req.RequestID,
			CompanyAddress:      "rCompany",
			InterestRate:        decimal.RequireFromString(rate),
			WorkObligationYears: 2,
			TermsURI:            "https://example.com/terms",
			Status:              offer.StatusPending,
		}
		if err := h.repos.Offers.Create(ctx, o); err != nil {
			t.Fatalf("create offer: %v", err)
		}
		offerIDs = append(offerIDs, o.OfferID)
	}
	return req.RequestID, offerIDs
}

// seedAgreement stores an agreement directly in the given status with two
// 2,000,000 installments at 2%.
func (h *harness) seedAgreement(t *testing.T, status agreement.Status, mutate func(a *agreement.Agreement)) *agreement.Agreement {
	t.Helper()
	asset := "ASSET-1"
	a := &agreement.Agreement{
		AgreementID:     id.NewID32(),
		RequestID:       id.NewID32(),
		OfferID:         id.NewID32(),
		StudentAddress:  "rStudent",
		CompanyAddress:  "rCompany",
		SchoolAddress:   "rSchool",
		Currency:        "XRP",
		InterestRate:    decimal.RequireFromString("0.02"),
		Principal:       decimal.NewFromInt(4_000_000),
		TotalOwed:       decimal.NewFromInt(4_080_000),
		AmountPaid:      decimal.Zero,
		AssetID:         &asset,
		Status:          status,
		StatusUpdatedAt: h.now,
		Installments: []agreement.Installment{
			{Seq: 0, Amount: decimal.NewFromInt(2_000_000), DueDate: jan15},
			{Seq: 1, Amount: decimal.NewFromInt(2_000_000), DueDate: jul15},
		},
	}
	if mutate != nil {
		mutate(a)
	}
	if err := h.repos.Agreements.Create(context.Background(), a); err != nil {
		t.Fatalf("create agreement: %v", err)
	}
	return a
}

// escrow puts a company-owned lock paying the school on the fake ledger.
func (h *harness) escrow(ref string, amount decimal.Decimal) {
	h.gw.AddLock(ledger.Lock{Ref: ref, Owner: "rCompany", Destination: "rSchool", Amount: amount})
}

func (h *harness) agreement(t *testing.T, agreementID string) *agreement.Agreement {
	t.Helper()
	a, err := h.repos.Agreements.GetByAgreementID(context.Background(), agreementID)
	if err != nil {
		t.Fatalf("load agreement: %v", err)
	}
	return a
}
