package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tuition-escrow/internal/adapter/repository/mysql"
	"tuition-escrow/internal/testutil/dbtest"
	"tuition-escrow/internal/testutil/ledgermock"
	"tuition-escrow/internal/testutil/metadatamock"
	"tuition-escrow/internal/usecase/lifecycle"
	"tuition-escrow/internal/usecase/marketplace"
	"tuition-escrow/pkg/logging"

	"github.com/labstack/echo/v4"
)

const (
	student = "rPT1Sjq2YGrBMTttX4GZHjKu9dyfzbpAYe"
	school  = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	company = "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH"
)

func newEchoWithValidator() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = NewValidator()
	return e
}

func mustJSON(v any) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func containsFieldMsg(list []FieldError, field, substr string) bool {
	for _, e := range list {
		if e.Field == field && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

type apiServer struct {
	e   *echo.Echo
	gw  *ledgermock.Gateway
	pub *metadatamock.Publisher
}

// newAPI wires every route over an in-memory store and mocked ledger/metadata.
func newAPI(t *testing.T) *apiServer {
	t.Helper()
	gdb := dbtest.Open(t)
	repos := mysql.Repos(gdb)
	tx := mysql.NewGormUoW(gdb)
	s := &apiServer{e: newEchoWithValidator(), gw: &ledgermock.Gateway{}, pub: &metadatamock.Publisher{}}

	mkt := marketplace.NewUsecase(repos, tx, logging.Discard())
	orch := lifecycle.NewOrchestrator(repos, tx, s.gw, s.pub,
		lifecycle.Settings{MaturityZone: time.UTC, MinLockLead: time.Minute},
		lifecycle.WithLogger(logging.Discard()))
	Register(s.e, Handlers{
		Health:     NewHandler(),
		Requests:   NewRequestHandler(mkt),
		Offers:     NewOfferHandler(mkt),
		Agreements: NewAgreementHandler(orch),
	})
	return s
}

func (s *apiServer) do(t *testing.T, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = mustJSON(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

// expect asserts the status and decodes the body into out when non-nil.
func expect(t *testing.T, rec *httptest.ResponseRecorder, code int, out any) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, code, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("bad json: %v; raw=%s", err, rec.Body.String())
		}
	}
}

func requestBody() map[string]any {
	return map[string]any{
		"studentAddress": student,
		"studentName":    "Ana Lim",
		"schoolAddress":  school,
		"program":        "BSc Computer Science",
		"totalAmount":    "4000000",
		"graduationDate": "2029-06-30",
		"industry":       "software",
		"installments": []map[string]string{
			{"amount": "2000000", "dueDate": "2030-01-15"},
			{"amount": "2000000", "dueDate": "2030-07-15"},
		},
	}
}
