package handler

import (
	"time"

	"reelhouse-economy/internal/adapter/http/dto"
	"reelhouse-economy/internal/core/domain"
	"reelhouse-economy/internal/core/ports"
	"reelhouse-economy/pkg/apperror"
	"reelhouse-economy/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler handles the administrator endpoints: credit grants and
// debits, balance corrections, card minting, marketplace switching, and
// user rollbacks.
type AdminHandler struct {
	ledgerSvc    ports.LedgerService
	inventorySvc ports.InventoryService
	marketSvc    ports.MarketplaceService
	rollbackSvc  ports.RollbackService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	ledgerSvc ports.LedgerService,
	inventorySvc ports.InventoryService,
	marketSvc ports.MarketplaceService,
	rollbackSvc ports.RollbackService,
) *AdminHandler {
	return &AdminHandler{
		ledgerSvc:    ledgerSvc,
		inventorySvc: inventorySvc,
		marketSvc:    marketSvc,
		rollbackSvc:  rollbackSvc,
	}
}

// GrantCredits handles POST /api/v1/admin/credits/grant.
func (h *AdminHandler) GrantCredits(c *gin.Context) {
	var req dto.AdjustCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	balance, err := h.ledgerSvc.Credit(c.Request.Context(), ports.CreditRequest{
		UserID:   req.UserID,
		Amount:   req.Amount,
		Reason:   domain.ReasonAdminGrant,
		Metadata: req.Memo,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Balance: balance})
}

// DebitCredits handles POST /api/v1/admin/credits/debit.
func (h *AdminHandler) DebitCredits(c *gin.Context) {
	var req dto.AdjustCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	balance, err := h.ledgerSvc.Debit(c.Request.Context(), ports.DebitRequest{
		UserID:   req.UserID,
		Amount:   req.Amount,
		Reason:   domain.ReasonAdminDebit,
		Metadata: req.Memo,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Balance: balance})
}

// SetBalance handles PUT /api/v1/admin/users/:id/balance.
func (h *AdminHandler) SetBalance(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid user id"))
		return
	}

	var req dto.SetBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	balance, err := h.ledgerSvc.SetBalance(c.Request.Context(), userID, req.Target)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Balance: balance})
}

// GrantCard handles POST /api/v1/admin/cards/grant.
func (h *AdminHandler) GrantCard(c *gin.Context) {
	var req dto.GrantCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	card, err := h.inventorySvc.MintCard(c.Request.Context(), ports.MintCardRequest{
		OwnerID:       req.OwnerID,
		CharacterID:   req.CharacterID,
		CharacterName: req.CharacterName,
		MovieTitle:    req.MovieTitle,
		Rarity:        domain.Rarity(req.Rarity),
		Finish:        domain.Finish(req.Finish),
		CardType:      req.CardType,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromCard(*card))
}

// Rollback handles POST /api/v1/admin/users/:id/rollback.
func (h *AdminHandler) Rollback(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid user id"))
		return
	}

	var req dto.RollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	summary, err := h.rollbackSvc.Rollback(c.Request.Context(), userID, time.Unix(req.TargetDate, 0).UTC())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, summary)
}

// UndoRollback handles POST /api/v1/admin/users/:id/rollback/undo.
func (h *AdminHandler) UndoRollback(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid user id"))
		return
	}

	if err := h.rollbackSvc.UndoRollback(c.Request.Context(), userID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"user_id": userID.String(), "undone": true})
}

// GetRollbackStatus handles GET /api/v1/admin/users/:id/rollback.
func (h *AdminHandler) GetRollbackStatus(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid user id"))
		return
	}

	available, err := h.rollbackSvc.HasUndoAvailable(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.UndoAvailableResponse{
		UserID:        userID.String(),
		UndoAvailable: available,
	})
}

// DisableMarket handles POST /api/v1/admin/market/disable.
func (h *AdminHandler) DisableMarket(c *gin.Context) {
	summary, err := h.marketSvc.Disable(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// EnableMarket handles POST /api/v1/admin/market/enable.
func (h *AdminHandler) EnableMarket(c *gin.Context) {
	if err := h.marketSvc.Enable(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.MarketStatusResponse{Enabled: true})
}
