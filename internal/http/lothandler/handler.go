package lothandler

import (
	"errors"
	"flowerbidgo/internal/identity"
	"flowerbidgo/internal/lot"
	"flowerbidgo/internal/services/auction"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc  auction.IAuctionService
	auth *identity.Provider
}

func New(svc auction.IAuctionService, auth *identity.Provider) *Handler {
	return &Handler{svc: svc, auth: auth}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/lots", h.list)
	r.GET("/lots/:id", h.info)
	r.GET("/lots/:id/bids", h.bids)

	authed := identity.RequireAuth(h.auth)
	r.POST("/lots", authed, identity.RequireRole(identity.RoleSeller), h.create)
	r.DELETE("/lots/:id", authed, identity.RequireRole(identity.RoleSeller), h.remove)
	r.POST("/lots/:id/bid", authed, h.bid)
	r.POST("/lots/:id/finalize", authed, identity.RequireRole(identity.RoleSeller), h.finalize)
	r.GET("/me/bids", authed, h.myBids)
}

// statusFor maps service sentinels onto HTTP status codes so the handlers
// stay a thin translation layer.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auction.ErrLotNotFound):
		return http.StatusNotFound
	case errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrBidBelowIncrement),
		errors.Is(err, auction.ErrInvalidLot):
		return http.StatusBadRequest
	case errors.Is(err, auction.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, auction.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, auction.ErrNotStarted),
		errors.Is(err, auction.ErrAlreadyClosed),
		errors.Is(err, auction.ErrCannotOutbidSelf),
		errors.Is(err, auction.ErrLotHasBids),
		errors.Is(err, auction.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// @Summary		Get lot details
// @Description	Returns full information about a single lot, with its status evaluated against the clock.
// @Tags			Lots
// @Param			id	path		string	true	"Lot ID"
// @Success		200	{object}	lot.Lot
// @Failure		404	{object}	ErrorResponse
// @Router			/lots/{id} [get]
func (h *Handler) info(c *gin.Context) {
	l, err := h.svc.GetLot(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, l)
}

// @Summary		List lots
// @Description	Retrieves a paginated list of lots, optionally filtered by status.
// @Tags			Lots
// @Param			status	query		string	false	"Status filter"			Enums(UPCOMING,LIVE,CLOSED)
// @Param			limit	query		int		false	"Max results (0-100)"	minimum(0)	maximum(100)	default(10)
// @Param			offset	query		int		false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		lot.Lot
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

// @Summary		List bids on a lot
// @Description	Returns every bid placed on the lot, highest first.
// @Tags			Lots
// @Param			id	path		string	true	"Lot ID"
// @Success		200	{array}		bidledger.Bid
// @Failure		404	{object}	ErrorResponse
// @Router			/lots/{id}/bids [get]
func (h *Handler) bids(ginCtx *gin.Context) {
	out, err := h.svc.ListBids(ginCtx.Request.Context(), ginCtx.Param("id"))
	if err != nil {
		ginCtx.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusOK, out)
}

// @Summary		Create a lot
// @Description	Seller registers a new lot for a scheduled auction window.
// @Tags			Lots
// @Security		BearerAuth
// @Param			body	body		CreateLotBody	true	"Lot payload"
// @Success		201		{object}	lot.Lot
// @Failure		400		{object}	ErrorResponse
// @Router			/lots [post]
func (h *Handler) create(ginCtx *gin.Context) {
	var body CreateLotBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	id, _ := identity.FromContext(ginCtx)

	created, err := h.svc.CreateLot(ginCtx.Request.Context(), lot.Lot{
		SellerID:     id.UserID,
		Name:         body.Name,
		Category:     body.Category,
		Size:         body.Size,
		Quantity:     body.Quantity,
		LotNumber:    body.LotNumber,
		InitialPrice: body.InitialPrice,
		StartsAt:     body.StartsAt.UTC(),
		EndsAt:       body.EndsAt.UTC(),
	})
	if err != nil {
		ginCtx.JSON(statusFor(err), &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusCreated, created)
}

// @Summary		Delete a lot
// @Description	Seller withdraws a lot that has not received any bids.
// @Tags			Lots
// @Security		BearerAuth
// @Param			id	path	string	true	"Lot ID"
// @Success		204
// @Failure		409	{object}	ErrorResponse
// @Router			/lots/{id} [delete]
func (h *Handler) remove(ginCtx *gin.Context) {
	id, _ := identity.FromContext(ginCtx)
	if err := h.svc.DeleteLot(ginCtx.Request.Context(), ginCtx.Param("id"), id.UserID); err != nil {
		ginCtx.JSON(statusFor(err), &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.Status(http.StatusNoContent)
}

// @Summary		Place a bid
// @Description	Bidder places a bid strictly above the current price.
// @Tags			Lots
// @Security		BearerAuth
// @Param			id		path	string			true	"Lot ID"
// @Param			body	body	PlaceBidBody	true	"Bid payload"
// @Success		201	{object}	bidledger.Bid
// @Failure		400	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Failure		429	{object}	ErrorResponse
// @Router			/lots/{id}/bid [post]
func (h *Handler) bid(ginCtx *gin.Context) {
	var body PlaceBidBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	id, _ := identity.FromContext(ginCtx)

	b, err := h.svc.PlaceBid(ginCtx.Request.Context(), ginCtx.Param("id"), id.UserID, body.Amount)
	if err != nil {
		ginCtx.JSON(statusFor(err), &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusCreated, b)
}

// @Summary		Finalize a lot
// @Description	Settles a closed lot immediately instead of waiting for the sweep. Owning seller or admin only.
// @Tags			Lots
// @Security		BearerAuth
// @Param			id	path		string	true	"Lot ID"
// @Success		200	{object}	auction.SettlementResult
// @Failure		409	{object}	ErrorResponse
// @Router			/lots/{id}/finalize [post]
func (h *Handler) finalize(ginCtx *gin.Context) {
	id, _ := identity.FromContext(ginCtx)
	requester := id.UserID
	if id.Role == identity.RoleAdmin {
		requester = "" // admins may settle any lot
	}
	res, err := h.svc.Finalize(ginCtx.Request.Context(), ginCtx.Param("id"), requester)
	if err != nil {
		ginCtx.JSON(statusFor(err), &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusOK, res)
}

// @Summary		Recent bids of the caller
// @Description	Returns the caller's most recent bids, newest first.
// @Tags			Bidders
// @Security		BearerAuth
// @Success		200	{array}	bidhistory.Entry
// @Router			/me/bids [get]
func (h *Handler) myBids(ginCtx *gin.Context) {
	id, _ := identity.FromContext(ginCtx)
	out, err := h.svc.BidHistory(ginCtx.Request.Context(), id.UserID)
	if err != nil {
		ginCtx.JSON(http.StatusInternalServerError, &ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.JSON(http.StatusOK, out)
}
