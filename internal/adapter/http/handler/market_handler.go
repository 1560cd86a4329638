package handler

import (
	"net/http"

	"reelhouse-economy/internal/adapter/http/dto"
	"reelhouse-economy/internal/adapter/http/middleware"
	"reelhouse-economy/internal/core/ports"
	"reelhouse-economy/pkg/apperror"
	"reelhouse-economy/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MarketHandler handles the marketplace endpoints.
type MarketHandler struct {
	marketSvc ports.MarketplaceService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc ports.MarketplaceService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// ListListings handles GET /api/v1/market/listings.
func (h *MarketHandler) ListListings(c *gin.Context) {
	listings, err := h.marketSvc.ActiveListings(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.ListingResponse, 0, len(listings))
	for _, l := range listings {
		items = append(items, dto.FromListing(l))
	}
	response.OK(c, items)
}

// CreateListing handles POST /api/v1/market/listings.
func (h *MarketHandler) CreateListing(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	cardID, err := uuid.Parse(req.CardID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid card id"))
		return
	}

	listing, err := h.marketSvc.List(c.Request.Context(), callerID, cardID, req.AskingPrice)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromListing(*listing))
}

// DeleteListing handles DELETE /api/v1/market/listings/:id.
func (h *MarketHandler) DeleteListing(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid listing id"))
		return
	}

	if err := h.marketSvc.Delist(c.Request.Context(), callerID, listingID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// BuyListing handles POST /api/v1/market/listings/:id/buy.
func (h *MarketHandler) BuyListing(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid listing id"))
		return
	}

	listing, err := h.marketSvc.BuyListing(c.Request.Context(), callerID, listingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromListing(*listing))
}

// ListBuyOrders handles GET /api/v1/market/orders.
func (h *MarketHandler) ListBuyOrders(c *gin.Context) {
	orders, err := h.marketSvc.ActiveBuyOrders(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.BuyOrderResponse, 0, len(orders))
	for _, o := range orders {
		items = append(items, dto.FromBuyOrder(o))
	}
	response.OK(c, items)
}

// CreateBuyOrder handles POST /api/v1/market/orders.
func (h *MarketHandler) CreateBuyOrder(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateBuyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	order, err := h.marketSvc.CreateBuyOrder(c.Request.Context(), callerID, req.CharacterID, req.OfferPrice)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromBuyOrder(*order))
}

// DeleteBuyOrder handles DELETE /api/v1/market/orders/:id.
func (h *MarketHandler) DeleteBuyOrder(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid order id"))
		return
	}

	if err := h.marketSvc.CancelBuyOrder(c.Request.Context(), callerID, orderID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetStatus handles GET /api/v1/market/status.
func (h *MarketHandler) GetStatus(c *gin.Context) {
	enabled, err := h.marketSvc.Status(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.MarketStatusResponse{Enabled: enabled})
}
