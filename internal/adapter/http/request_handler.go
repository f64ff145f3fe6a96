package http

import (
	"net/http"
	"time"

	"tuition-escrow/internal/usecase/marketplace"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type RequestHandler struct{ uc *marketplace.Usecase }

func NewRequestHandler(uc *marketplace.Usecase) *RequestHandler { return &RequestHandler{uc: uc} }

type installmentReq struct {
	Amount  string `json:"amount"  validate:"required,drops"`
	DueDate string `json:"dueDate" validate:"required,datetime=2006-01-02"`
}

// Drafts may omit everything but the student; completeness is a use case rule.
type createRequestReq struct {
	StudentAddress string           `json:"studentAddress" validate:"required,xrpaddr"`
	StudentName    string           `json:"studentName"    validate:"max=128"`
	SchoolAddress  string           `json:"schoolAddress"  validate:"omitempty,xrpaddr"`
	Program        string           `json:"program"        validate:"max=255"`
	TotalAmount    string           `json:"totalAmount"    validate:"omitempty,drops"`
	Currency       string           `json:"currency"       validate:"omitempty,oneof=XRP USDC"`
	GraduationDate string           `json:"graduationDate" validate:"omitempty,datetime=2006-01-02"`
	Industry       string           `json:"industry"       validate:"max=64"`
	Description    string           `json:"description"`
	Installments   []installmentReq `json:"installments"   validate:"dive"`
	Draft          bool             `json:"draft"`
}

func (r createRequestReq) input() marketplace.CreateRequestInput {
	in := marketplace.CreateRequestInput{
		StudentAddress: r.StudentAddress,
		StudentName:    r.StudentName,
		SchoolAddress:  r.SchoolAddress,
		Program:        r.Program,
		Currency:       r.Currency,
		Industry:       r.Industry,
		Description:    r.Description,
		Draft:          r.Draft,
	}
	// formats were checked by the validator
	if r.TotalAmount != "" {
		in.TotalAmount = decimal.RequireFromString(r.TotalAmount)
	}
	if r.GraduationDate != "" {
		t, _ := time.Parse(dateLayout, r.GraduationDate)
		in.GraduationDate = &t
	}
	for _, it := range r.Installments {
		due, _ := time.Parse(dateLayout, it.DueDate)
		in.Installments = append(in.Installments, marketplace.InstallmentInput{
			Amount:  decimal.RequireFromString(it.Amount),
			DueDate: due,
		})
	}
	return in
}

func (h *RequestHandler) Create(c echo.Context) error {
	var req createRequestReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	r, err := h.uc.CreateRequest(c.Request().Context(), req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *RequestHandler) List(c echo.Context) error {
	list, err := h.uc.ListOpenRequests(c.Request().Context(), c.QueryParam("industry"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *RequestHandler) Get(c echo.Context) error {
	requestID, ok, err := pathID(c, "requestId")
	if !ok {
		return err
	}
	r, err := h.uc.GetRequest(c.Request().Context(), requestID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *RequestHandler) Submit(c echo.Context) error {
	requestID, ok, err := pathID(c, "requestId")
	if !ok {
		return err
	}
	r, err := h.uc.SubmitRequest(c.Request().Context(), requestID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *RequestHandler) Withdraw(c echo.Context) error {
	requestID, ok, err := pathID(c, "requestId")
	if !ok {
		return err
	}
	r, err := h.uc.WithdrawRequest(c.Request().Context(), requestID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *RequestHandler) Delete(c echo.Context) error {
	requestID, ok, err := pathID(c, "requestId")
	if !ok {
		return err
	}
	if err := h.uc.DeleteRequest(c.Request().Context(), requestID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
