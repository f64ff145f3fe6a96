package http

import "github.com/labstack/echo/v4"

type Handlers struct {
	Health     *Handler
	Requests   *RequestHandler
	Offers     *OfferHandler
	Agreements *AgreementHandler
}

// Register mounts every API route on e. /metrics is mounted by the caller.
func Register(e *echo.Echo, h Handlers) {
	e.GET("/health", h.Health.Health)

	lr := e.Group("/loan-requests")
	lr.POST("", h.Requests.Create)
	lr.GET("", h.Requests.List)
	lr.GET("/:requestId", h.Requests.Get)
	lr.POST("/:requestId/submit", h.Requests.Submit)
	lr.POST("/:requestId/withdraw", h.Requests.Withdraw)
	lr.DELETE("/:requestId", h.Requests.Delete)
	lr.POST("/:requestId/offers", h.Offers.Create)
	lr.GET("/:requestId/offers", h.Offers.ListPending)
	lr.POST("/:requestId/accept-offer", h.Agreements.AcceptOffer)

	e.POST("/offers/:offerId/cancel", h.Offers.Cancel)

	ag := e.Group("/loan-agreements/:id")
	ag.GET("", h.Agreements.Get)
	ag.GET("/prepare-mint", h.Agreements.PrepareMint)
	ag.POST("/record-mint", h.Agreements.RecordMint)
	ag.GET("/prepare-transfer-offer", h.Agreements.PrepareTransferOffer)
	ag.POST("/record-transfer-offer", h.Agreements.RecordTransferOffer)
	ag.GET("/prepare-accept-transfer", h.Agreements.PrepareAcceptTransfer)
	ag.POST("/record-accepted", h.Agreements.RecordAccepted)
	ag.GET("/prepare-escrows", h.Agreements.PrepareEscrows)
	ag.POST("/record-escrow", h.Agreements.RecordEscrow)
	ag.GET("/prepare-burn", h.Agreements.PrepareBurn)
	ag.POST("/record-burn", h.Agreements.RecordBurn)
}
