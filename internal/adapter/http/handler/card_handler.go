package handler

import (
	"reelhouse-economy/internal/adapter/http/dto"
	"reelhouse-economy/internal/adapter/http/middleware"
	"reelhouse-economy/internal/core/ports"
	"reelhouse-economy/pkg/apperror"
	"reelhouse-economy/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CardHandler handles the member card collection endpoints.
type CardHandler struct {
	inventorySvc ports.InventoryService
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(inventorySvc ports.InventoryService) *CardHandler {
	return &CardHandler{inventorySvc: inventorySvc}
}

// ListOwn handles GET /api/v1/cards.
func (h *CardHandler) ListOwn(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	cards, err := h.inventorySvc.ListCards(c.Request.Context(), callerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.CardResponse, 0, len(cards))
	for _, card := range cards {
		items = append(items, dto.FromCard(card))
	}
	response.OK(c, items)
}

// Get handles GET /api/v1/cards/:id.
func (h *CardHandler) Get(c *gin.Context) {
	cardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid card id"))
		return
	}

	card, err := h.inventorySvc.GetCard(c.Request.Context(), cardID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromCard(*card))
}

// GetEncumbrance handles GET /api/v1/cards/:id/encumbered.
func (h *CardHandler) GetEncumbrance(c *gin.Context) {
	cardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid card id"))
		return
	}

	encumbered, err := h.inventorySvc.IsEncumbered(c.Request.Context(), cardID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.EncumbranceResponse{
		CardID:     cardID.String(),
		Encumbered: encumbered,
	})
}
