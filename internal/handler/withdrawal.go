package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carshare/internal/domain"
	"carshare/internal/service"
)

// WithdrawalHandler handles HTTP requests for owner balances and payouts.
type WithdrawalHandler struct {
	settlement *service.SettlementService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(settlement *service.SettlementService) *WithdrawalHandler {
	return &WithdrawalHandler{settlement: settlement}
}

// RequestWithdrawalRequest is the HTTP request body for a withdrawal.
// The owner is the authenticated actor.
type RequestWithdrawalRequest struct {
	Amount        string `json:"amount"` // major units, e.g. "500.00"
	Currency      string `json:"currency,omitempty"`
	Method        string `json:"method"` // MPESA, AIRTEL_MONEY, BANK_CARD
	MethodDetails string `json:"method_details"`
}

// FailWithdrawalRequest is the HTTP request body for a failed payout callback.
type FailWithdrawalRequest struct {
	Reason string `json:"reason"`
}

// WithdrawalResponse is the HTTP response for withdrawal data.
type WithdrawalResponse struct {
	ID            string        `json:"id"`
	OwnerID       string        `json:"owner_id"`
	Amount        MoneyResponse `json:"amount"`
	Method        string        `json:"method"`
	MethodDetails string        `json:"method_details"`
	Status        string        `json:"status"`
	Reference     string        `json:"reference"`
	FailureReason string        `json:"failure_reason,omitempty"`
	CreatedAt     string        `json:"created_at"`
	UpdatedAt     string        `json:"updated_at"`
}

// BalanceResponse is the HTTP response for an owner's balance.
type BalanceResponse struct {
	OwnerID           string        `json:"owner_id"`
	TotalEarnings     MoneyResponse `json:"total_earnings"`
	Eligible          MoneyResponse `json:"eligible"`
	Withdrawn         MoneyResponse `json:"withdrawn"`
	Available         MoneyResponse `json:"available"`
	LiquidRatio       string        `json:"liquid_ratio"`
	MinimumWithdrawal MoneyResponse `json:"minimum_withdrawal"`
}

func toWithdrawalResponse(w *domain.WithdrawalRequest) WithdrawalResponse {
	return WithdrawalResponse{
		ID:            w.ID,
		OwnerID:       w.OwnerID,
		Amount:        toMoneyResponse(w.Amount),
		Method:        string(w.Method),
		MethodDetails: w.MethodDetails,
		Status:        string(w.Status),
		Reference:     w.Reference,
		FailureReason: w.FailureReason,
		CreatedAt:     w.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     w.UpdatedAt.Format(time.RFC3339),
	}
}

// RequestWithdrawal handles POST /v1/withdrawals
func (h *WithdrawalHandler) RequestWithdrawal(c *gin.Context) {
	ownerID, ok := requireActor(c)
	if !ok {
		return
	}

	var req RequestWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = h.settlement.Policy().Currency
	}
	amount, err := domain.ParseMoney(req.Amount, currency)
	if err != nil {
		respondError(c, err)
		return
	}

	withdrawal, err := h.settlement.RequestWithdrawal(c.Request.Context(), service.RequestWithdrawalRequest{
		OwnerID:       ownerID,
		Amount:        amount,
		Method:        req.Method,
		MethodDetails: req.MethodDetails,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toWithdrawalResponse(withdrawal))
}

// GetWithdrawal handles GET /v1/withdrawals/:id
func (h *WithdrawalHandler) GetWithdrawal(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	withdrawal, err := h.settlement.GetWithdrawal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if withdrawal.OwnerID != actorID {
		respondError(c, ErrForbidden)
		return
	}

	respondJSON(c, http.StatusOK, toWithdrawalResponse(withdrawal))
}

// ListWithdrawals handles GET /v1/owners/:id/withdrawals
func (h *WithdrawalHandler) ListWithdrawals(c *gin.Context) {
	ownerID, ok := requireSelf(c)
	if !ok {
		return
	}

	withdrawals, err := h.settlement.ListWithdrawals(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]WithdrawalResponse, 0, len(withdrawals))
	for _, w := range withdrawals {
		response = append(response, toWithdrawalResponse(w))
	}
	respondJSON(c, http.StatusOK, response)
}

// GetBalance handles GET /v1/owners/:id/balance
func (h *WithdrawalHandler) GetBalance(c *gin.Context) {
	ownerID, ok := requireSelf(c)
	if !ok {
		return
	}

	summary, err := h.settlement.GetBalanceSummary(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, BalanceResponse{
		OwnerID:           summary.OwnerID,
		TotalEarnings:     toMoneyResponse(summary.TotalEarnings),
		Eligible:          toMoneyResponse(summary.Eligible),
		Withdrawn:         toMoneyResponse(summary.Withdrawn),
		Available:         toMoneyResponse(summary.Available),
		LiquidRatio:       summary.LiquidRatio.String(),
		MinimumWithdrawal: toMoneyResponse(summary.MinimumWithdrawal),
	})
}

// MarkProcessing handles POST /v1/withdrawals/:id/processing
func (h *WithdrawalHandler) MarkProcessing(c *gin.Context) {
	h.callback(c, func() (*domain.WithdrawalRequest, error) {
		return h.settlement.MarkWithdrawalProcessing(c.Request.Context(), c.Param("id"))
	})
}

// Complete handles POST /v1/withdrawals/:id/complete
func (h *WithdrawalHandler) Complete(c *gin.Context) {
	h.callback(c, func() (*domain.WithdrawalRequest, error) {
		return h.settlement.CompleteWithdrawal(c.Request.Context(), c.Param("id"))
	})
}

// Fail handles POST /v1/withdrawals/:id/fail
func (h *WithdrawalHandler) Fail(c *gin.Context) {
	var req FailWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Reason == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "reason is required"})
		return
	}
	h.callback(c, func() (*domain.WithdrawalRequest, error) {
		return h.settlement.FailWithdrawal(c.Request.Context(), c.Param("id"), req.Reason)
	})
}

func (h *WithdrawalHandler) callback(c *gin.Context, apply func() (*domain.WithdrawalRequest, error)) {
	withdrawal, err := apply()
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toWithdrawalResponse(withdrawal))
}
