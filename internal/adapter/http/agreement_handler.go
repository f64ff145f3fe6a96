package http

import (
	"net/http"

	"tuition-escrow/internal/domain/agreement"
	"tuition-escrow/internal/domain/ledger"
	"tuition-escrow/internal/usecase/lifecycle"

	"github.com/labstack/echo/v4"
)

// AgreementHandler exposes the orchestrator. Prepare routes hand back unsigned
// instructions; record routes take the ledger references once signed and validated.
type AgreementHandler struct{ o *lifecycle.Orchestrator }

func NewAgreementHandler(o *lifecycle.Orchestrator) *AgreementHandler {
	return &AgreementHandler{o: o}
}

type acceptOfferReq struct {
	OfferID string `json:"offerId" validate:"required,id32"`
}

type recordAssetReq struct {
	AssetID string `json:"assetId" validate:"required,hexadecimal,len=64"`
}

type recordTransferOfferReq struct {
	TransferOfferRef string `json:"transferOfferRef" validate:"required,hexadecimal,len=64"`
}

type recordEscrowReq struct {
	InstallmentIndex *int   `json:"installmentIndex" validate:"required,gte=0"`
	LockRef          string `json:"lockRef"          validate:"required,hexadecimal,len=64"`
}

type recordedResp struct {
	OK     bool             `json:"ok"`
	Status agreement.Status `json:"status"`
}

func recorded(c echo.Context, a *agreement.Agreement) error {
	return c.JSON(http.StatusOK, recordedResp{OK: true, Status: a.Status})
}

func (h *AgreementHandler) AcceptOffer(c echo.Context) error {
	requestID, ok, err := pathID(c, "requestId")
	if !ok {
		return err
	}
	var req acceptOfferReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	res, err := h.o.AcceptOffer(c.Request().Context(), lifecycle.AcceptOfferInput{RequestID: requestID, OfferID: req.OfferID})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *AgreementHandler) Get(c echo.Context) error {
	id, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	a, err := h.o.GetAgreement(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// prepare wraps a Prepare* call returning a single instruction under key.
func (h *AgreementHandler) prepare(key string, fn func(c echo.Context, id string) (ledger.Instruction, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok, err := pathID(c, "id")
		if !ok {
			return err
		}
		ins, err := fn(c, id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]ledger.Instruction{key: ins})
	}
}

func (h *AgreementHandler) PrepareMint(c echo.Context) error {
	return h.prepare("mintInstruction", func(c echo.Context, id string) (ledger.Instruction, error) {
		return h.o.PrepareMint(c.Request().Context(), id)
	})(c)
}

func (h *AgreementHandler) RecordMint(c echo.Context) error {
	id, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	var req recordAssetReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	a, err := h.o.RecordAssetMinted(c.Request().Context(), id, req.AssetID)
	if err != nil {
		return respondError(c, err)
	}
	return recorded(c, a)
}

func (h *AgreementHandler) PrepareTransferOffer(c echo.Context) error {
	return h.prepare("transferOfferInstruction", func(c echo.Context, id string) (ledger.Instruction, error) {
		return h.o.PrepareTransferOffer(c.Request().Context(), id)
	})(c)
}

func (h *AgreementHandler) RecordTransferOffer(c echo.Context) error {
	id, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	var req recordTransferOfferReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	a, err := h.o.RecordTransferOfferReference(c.Request().Context(), id, req.TransferOfferRef)
	if err != nil {
		return respondError(c, err)
	}
	return recorded(c, a)
}

func (h *AgreementHandler) PrepareAcceptTransfer(c echo.Context) error {
	return h.prepare("acceptInstruction", func(c echo.Context, id string) (ledger.Instruction, error) {
		return h.o.PrepareAcceptTransfer(c.Request().Context(), id)
	})(c)
}

func (h *AgreementHandler) RecordAccepted(c echo.Context) error {
	id, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	var req recordAssetReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	a, err := h.o.RecordFunded(c.Request().Context(), id, req.AssetID)
	if err != nil {
		return respondError(c, err)
	}
	return recorded(c, a)
}

func (h *AgreementHandler) PrepareEscrows(c echo.Context) error {
	id, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	locks, err := h.o.PrepareInstallmentLocks(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if locks == nil {
		locks = []lifecycle.LockInstruction{}
	}
	return c.JSON(http.StatusOK, map[string]any{"lockInstructions": locks})
}

func (h *AgreementHandler) RecordEscrow(c echo.Context) error {
	id, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	var req recordEscrowReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	a, err := h.o.RecordInstallmentLock(c.Request().Context(), id, *req.InstallmentIndex, req.LockRef)
	if err != nil {
		return respondError(c, err)
	}
	return recorded(c, a)
}

func (h *AgreementHandler) PrepareBurn(c echo.Context) error {
	return h.prepare("burnInstruction", func(c echo.Context, id string) (ledger.Instruction, error) {
		return h.o.PrepareBurn(c.Request().Context(), id)
	})(c)
}

func (h *AgreementHandler) RecordBurn(c echo.Context) error {
	id, ok, err := pathID(c, "id")
	if !ok {
		return err
	}
	a, err := h.o.RecordClosed(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return recorded(c, a)
}
