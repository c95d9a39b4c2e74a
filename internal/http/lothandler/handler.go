package lothandler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"antiquebid/internal/ledger"
	"antiquebid/internal/services/bidding"
)

type Handler struct {
	svc bidding.IBiddingService
}

func New(svc bidding.IBiddingService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/lots", h.create)
	r.GET("/lots", h.list)
	r.GET("/lots/:id", h.info)
	r.POST("/lots/:id/activate", h.activate)
	r.POST("/lots/:id/close", h.close)
	r.POST("/lots/:id/bids", h.bid)
	r.GET("/lots/:id/bids", h.bids)
	r.PUT("/lots/:id/autobid", h.autobid)
	r.DELETE("/bids/:id", h.cancelBid)
}

// @Summary		Create a lot
// @Description	Seller lists a new antique lot. The lot starts pending; activate it to open bidding.
// @Tags			Lots
// @Param			body	body		CreateLotBody	true	"Lot payload"
// @Success		201		{object}	models.Lot
// @Failure		400		{object}	ErrorResponse
// @Router			/lots [post]
func (h *Handler) create(c *gin.Context) {
	var body CreateLotBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	lot, err := h.svc.CreateLot(c.Request.Context(), bidding.CreateLotParams{
		SellerID:      body.SellerID,
		Title:         body.Title,
		Description:   body.Description,
		StartingPrice: body.StartingPrice,
		BidIncrement:  body.BidIncrement,
		ReservePrice:  body.ReservePrice,
		AuctionStart:  body.AuctionStart.UTC(),
		AuctionEnd:    body.AuctionEnd.UTC(),
		ExtendOnBid:   body.ExtendOnBid,
		ExtensionTime: time.Duration(body.ExtensionMs) * time.Millisecond,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lot)
}

// @Summary		List lots
// @Description	Retrieves a paginated list of lots, optionally filtered by status.
// @Tags			Lots
// @Param			status	query		string	false	"Status filter"			Enums(pending,active,sold,unsold)
// @Param			limit	query		int		false	"Max results (0-100)"	minimum(0)	maximum(100)	default(10)
// @Param			offset	query		int		false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		models.Lot
// @Failure		400		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/lots [get]
func (h *Handler) list(c *gin.Context) {
	var q ListLotsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.svc.ListLots(c.Request.Context(), q.Status, q.Limit, q.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Get lot details
// @Description	Returns full information about a single lot.
// @Tags			Lots
// @Param			id	path		string	true	"Lot ID"
// @Success		200	{object}	models.Lot
// @Failure		404	{object}	ErrorResponse
// @Router			/lots/{id} [get]
func (h *Handler) info(c *gin.Context) {
	lot, err := h.svc.GetLot(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

// @Summary		Activate a lot
// @Description	Opens the lot for bidding and arms the close timer.
// @Tags			Lots
// @Param			id	path	string	true	"Lot ID"
// @Success		200	{object}	models.Lot
// @Failure		409	{object}	ErrorResponse
// @Router			/lots/{id}/activate [post]
func (h *Handler) activate(c *gin.Context) {
	lot, err := h.svc.ActivateLot(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

// @Summary		Close a lot
// @Description	Settles the auction early (admin/seller action). Idempotent.
// @Tags			Lots
// @Param			id	path	string	true	"Lot ID"
// @Success		202
// @Failure		409	{object}	ErrorResponse
// @Router			/lots/{id}/close [post]
func (h *Handler) close(c *gin.Context) {
	if err := h.svc.CloseAuction(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// @Summary		Place a bid
// @Description	Admits a bid on an active lot. Rejections carry the computed minimum.
// @Tags			Bids
// @Param			id		path	string			true	"Lot ID"
// @Param			body	body	PlaceBidBody	true	"Bid payload"
// @Success		201	{object}	BidPlacedResponse
// @Failure		400	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/lots/{id}/bids [post]
func (h *Handler) bid(c *gin.Context) {
	var body PlaceBidBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	adm, err := h.svc.PlaceBid(c.Request.Context(), c.Param("id"), body.BidderID, body.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, BidPlacedResponse{
		BidID:      adm.Accepted.ID,
		Amount:     adm.Accepted.Amount,
		FraudScore: adm.Accepted.FraudScore,
		CurrentBid: adm.Lot.CurrentBid,
		TotalBids:  adm.Lot.TotalBids,
		AuctionEnd: adm.Lot.AuctionEnd,
		Extended:   adm.Extended,
	})
}

// @Summary		List bids
// @Description	Returns the lot's bid history, oldest first.
// @Tags			Bids
// @Param			id	path		string	true	"Lot ID"
// @Success		200	{array}		models.Bid
// @Failure		500	{object}	ErrorResponse
// @Router			/lots/{id}/bids [get]
func (h *Handler) bids(c *gin.Context) {
	out, err := h.svc.ListBids(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Set an auto-bid ceiling
// @Description	Registers or raises a standing maximum-bid order on the lot.
// @Tags			Bids
// @Param			id		path	string		true	"Lot ID"
// @Param			body	body	AutoBidBody	true	"Ceiling payload"
// @Success		200	{object}	models.Bid
// @Failure		400	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/lots/{id}/autobid [put]
func (h *Handler) autobid(c *gin.Context) {
	var body AutoBidBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	bid, err := h.svc.SetAutoBid(c.Request.Context(), c.Param("id"), body.BidderID, body.MaxAmount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bid)
}

// @Summary		Cancel a bid
// @Description	Withdraws a bid inside its cancellation window; the runner-up is promoted.
// @Tags			Bids
// @Param			id	path	string	true	"Bid ID"
// @Success		200	{object}	models.Bid
// @Failure		404	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/bids/{id} [delete]
func (h *Handler) cancelBid(c *gin.Context) {
	cn, err := h.svc.CancelBid(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cn.Cancelled)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var ve *ledger.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ve.Error(), Minimum: ve.Minimum})
	case errors.Is(err, bidding.ErrInvalidLot):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, ledger.ErrLotNotFound), errors.Is(err, ledger.ErrBidNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, ledger.ErrAuctionNotActive),
		errors.Is(err, ledger.ErrSelfBid),
		errors.Is(err, ledger.ErrCancellationNotAllowed),
		errors.Is(err, ledger.ErrConcurrencyConflict),
		errors.Is(err, bidding.ErrNotActivatable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}
