package handler

import (
	"context"
	"net/http"

	"reelhouse-economy/internal/adapter/http/dto"
	"reelhouse-economy/internal/adapter/http/middleware"
	"reelhouse-economy/internal/core/ports"
	"reelhouse-economy/pkg/apperror"
	"reelhouse-economy/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TradeHandler handles the bilateral trade endpoints.
type TradeHandler struct {
	tradeSvc ports.TradeService
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(tradeSvc ports.TradeService) *TradeHandler {
	return &TradeHandler{tradeSvc: tradeSvc}
}

// List handles GET /api/v1/trades.
func (h *TradeHandler) List(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	trades, err := h.tradeSvc.ListForUser(c.Request.Context(), callerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TradeResponse, 0, len(trades))
	for _, t := range trades {
		items = append(items, dto.FromTrade(t))
	}
	response.OK(c, items)
}

// Create handles POST /api/v1/trades.
func (h *TradeHandler) Create(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	counterpartyID, err := uuid.Parse(req.CounterpartyID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid counterparty id"))
		return
	}
	offered, err := parseUUIDs(req.OfferedCardIDs)
	if err != nil {
		response.Error(c, apperror.Validation("invalid offered card id"))
		return
	}
	requested, err := parseUUIDs(req.RequestedCardIDs)
	if err != nil {
		response.Error(c, apperror.Validation("invalid requested card id"))
		return
	}

	trade, err := h.tradeSvc.Create(c.Request.Context(), ports.CreateTradeRequest{
		InitiatorID:      callerID,
		CounterpartyID:   counterpartyID,
		OfferedCardIDs:   offered,
		RequestedCardIDs: requested,
		OfferedCredits:   req.OfferedCredits,
		RequestedCredits: req.RequestedCredits,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromTrade(*trade))
}

// Get handles GET /api/v1/trades/:id.
func (h *TradeHandler) Get(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	tradeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid trade id"))
		return
	}

	trade, err := h.tradeSvc.Get(c.Request.Context(), callerID, tradeID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromTrade(*trade))
}

// Accept handles POST /api/v1/trades/:id/accept.
func (h *TradeHandler) Accept(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	tradeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid trade id"))
		return
	}

	trade, err := h.tradeSvc.Accept(c.Request.Context(), callerID, tradeID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromTrade(*trade))
}

// Deny handles POST /api/v1/trades/:id/deny.
func (h *TradeHandler) Deny(c *gin.Context) {
	h.resolve(c, h.tradeSvc.Deny)
}

// Cancel handles POST /api/v1/trades/:id/cancel.
func (h *TradeHandler) Cancel(c *gin.Context) {
	h.resolve(c, h.tradeSvc.Cancel)
}

func (h *TradeHandler) resolve(c *gin.Context, fn func(ctx context.Context, callerID, tradeID uuid.UUID) error) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	tradeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid trade id"))
		return
	}

	if err := fn(c.Request.Context(), callerID, tradeID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
