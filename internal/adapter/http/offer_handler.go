package http

import (
	"net/http"
	"strings"

	"tuition-escrow/internal/usecase/marketplace"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// HeaderActorID carries the ledger address of the caller.
const HeaderActorID = "Ax-Actor-Id"

type OfferHandler struct{ uc *marketplace.Usecase }

func NewOfferHandler(uc *marketplace.Usecase) *OfferHandler { return &OfferHandler{uc: uc} }

type createOfferReq struct {
	CompanyAddress      string `json:"companyAddress"      validate:"required,xrpaddr"`
	InterestRate        string `json:"interestRate"        validate:"required,rate"`
	WorkObligationYears int    `json:"workObligationYears" validate:"gte=0,lte=40"`
	TermsURI            string `json:"termsUri"            validate:"omitempty,url"`
}

func (h *OfferHandler) Create(c echo.Context) error {
	requestID, ok, err := pathID(c, "requestId")
	if !ok {
		return err
	}
	var req createOfferReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	o, err := h.uc.CreateOffer(c.Request().Context(), marketplace.CreateOfferInput{
		RequestID:           requestID,
		CompanyAddress:      req.CompanyAddress,
		InterestRate:        decimal.RequireFromString(req.InterestRate),
		WorkObligationYears: req.WorkObligationYears,
		TermsURI:            req.TermsURI,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *OfferHandler) ListPending(c echo.Context) error {
	requestID, ok, err := pathID(c, "requestId")
	if !ok {
		return err
	}
	list, err := h.uc.ListPendingOffers(c.Request().Context(), requestID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *OfferHandler) Cancel(c echo.Context) error {
	offerID, ok, err := pathID(c, "offerId")
	if !ok {
		return err
	}
	actor := strings.TrimSpace(c.Request().Header.Get(HeaderActorID))
	if actor == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing " + HeaderActorID})
	}
	o, err := h.uc.CancelOffer(c.Request().Context(), offerID, actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}
