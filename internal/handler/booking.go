package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carshare/internal/domain"
	"carshare/internal/service"
)

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	settlement *service.SettlementService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(settlement *service.SettlementService) *BookingHandler {
	return &BookingHandler{settlement: settlement}
}

// CreateBookingRequest is the HTTP request body for creating a booking.
// The renter is the authenticated actor.
type CreateBookingRequest struct {
	ProviderID          string    `json:"provider_id"`
	ProviderRole        string    `json:"provider_role,omitempty"` // OWNER (default) or DRIVER
	VehicleID           string    `json:"vehicle_id"`
	PickupAt            time.Time `json:"pickup_at"`
	DropoffAt           time.Time `json:"dropoff_at"`
	GrossAmount         string    `json:"gross_amount"` // major units, e.g. "135.00"
	Currency            string    `json:"currency,omitempty"`
	SpecialInstructions string    `json:"special_instructions,omitempty"`
}

// ReasonRequest is the HTTP request body for reject and cancel.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// StatusChangeResponse is one entry of a booking's history.
type StatusChangeResponse struct {
	Status  string `json:"status"`
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason,omitempty"`
	At      string `json:"at"`
}

// BookingResponse is the HTTP response for booking data.
type BookingResponse struct {
	ID                  string                 `json:"id"`
	RenterID            string                 `json:"renter_id"`
	ProviderID          string                 `json:"provider_id"`
	ProviderRole        string                 `json:"provider_role"`
	VehicleID           string                 `json:"vehicle_id"`
	PickupAt            string                 `json:"pickup_at"`
	DropoffAt           string                 `json:"dropoff_at"`
	Status              string                 `json:"status"`
	GrossAmount         MoneyResponse          `json:"gross_amount"`
	CommissionRate      string                 `json:"commission_rate"`
	CommissionAmount    MoneyResponse          `json:"commission_amount"`
	NetAmount           MoneyResponse          `json:"net_amount"`
	RefundAmount        MoneyResponse          `json:"refund_amount"`
	RejectionReason     string                 `json:"rejection_reason,omitempty"`
	SpecialInstructions string                 `json:"special_instructions,omitempty"`
	StartedAt           string                 `json:"started_at,omitempty"`
	StatusHistory       []StatusChangeResponse `json:"status_history"`
	CreatedAt           string                 `json:"created_at"`
	UpdatedAt           string                 `json:"updated_at"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	resp := BookingResponse{
		ID:                  b.ID,
		RenterID:            b.RenterID,
		ProviderID:          b.ProviderID,
		ProviderRole:        string(b.ProviderRole),
		VehicleID:           b.VehicleID,
		PickupAt:            b.PickupAt.Format(time.RFC3339),
		DropoffAt:           b.DropoffAt.Format(time.RFC3339),
		Status:              string(b.Status),
		GrossAmount:         toMoneyResponse(b.GrossAmount),
		CommissionRate:      b.CommissionRate.String(),
		CommissionAmount:    toMoneyResponse(b.CommissionAmount),
		NetAmount:           toMoneyResponse(b.NetAmount),
		RefundAmount:        toMoneyResponse(b.RefundAmount),
		RejectionReason:     b.RejectionReason,
		SpecialInstructions: b.SpecialInstructions,
		StatusHistory:       make([]StatusChangeResponse, 0, len(b.StatusHistory)),
		CreatedAt:           b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           b.UpdatedAt.Format(time.RFC3339),
	}
	if b.IsStarted() {
		resp.StartedAt = b.StartedAt.Format(time.RFC3339)
	}
	for _, h := range b.StatusHistory {
		resp.StatusHistory = append(resp.StatusHistory, StatusChangeResponse{
			Status:  string(h.Status),
			ActorID: h.ActorID,
			Reason:  h.Reason,
			At:      h.At.Format(time.RFC3339),
		})
	}
	return resp
}

// CreateBooking handles POST /v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	renterID, ok := requireActor(c)
	if !ok {
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = h.settlement.Policy().Currency
	}
	gross, err := domain.ParseMoney(req.GrossAmount, currency)
	if err != nil {
		respondError(c, err)
		return
	}

	booking, err := h.settlement.CreateBooking(c.Request.Context(), service.CreateBookingRequest{
		RenterID:            renterID,
		ProviderID:          req.ProviderID,
		ProviderRole:        domain.PartyRole(req.ProviderRole),
		VehicleID:           req.VehicleID,
		PickupAt:            req.PickupAt,
		DropoffAt:           req.DropoffAt,
		GrossAmount:         gross,
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toBookingResponse(booking))
}

// GetBooking handles GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	booking, err := h.settlement.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if _, isParty := booking.RoleOf(actorID); !isParty {
		respondError(c, ErrForbidden)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// AcceptBooking handles POST /v1/bookings/:id/accept
func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	h.transition(c, func(actorID string) (*domain.Booking, error) {
		return h.settlement.AcceptBooking(c.Request.Context(), c.Param("id"), actorID)
	})
}

// RejectBooking handles POST /v1/bookings/:id/reject
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	h.transition(c, func(actorID string) (*domain.Booking, error) {
		return h.settlement.RejectBooking(c.Request.Context(), c.Param("id"), actorID, req.Reason)
	})
}

// StartRide handles POST /v1/bookings/:id/start
func (h *BookingHandler) StartRide(c *gin.Context) {
	h.transition(c, func(actorID string) (*domain.Booking, error) {
		return h.settlement.StartRide(c.Request.Context(), c.Param("id"), actorID)
	})
}

// CompleteBooking handles POST /v1/bookings/:id/complete
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	h.transition(c, func(actorID string) (*domain.Booking, error) {
		return h.settlement.CompleteBooking(c.Request.Context(), c.Param("id"), actorID)
	})
}

// CancelBooking handles POST /v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	// The reason is optional, so an empty body is fine.
	var req ReasonRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}
	h.transition(c, func(actorID string) (*domain.Booking, error) {
		return h.settlement.CancelBooking(c.Request.Context(), c.Param("id"), actorID, req.Reason)
	})
}

// ListProviderBookings handles GET /v1/owners/:id/bookings
func (h *BookingHandler) ListProviderBookings(c *gin.Context) {
	providerID, ok := requireSelf(c)
	if !ok {
		return
	}

	bookings, err := h.settlement.ListProviderBookings(c.Request.Context(), providerID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		response = append(response, toBookingResponse(b))
	}
	respondJSON(c, http.StatusOK, response)
}

func (h *BookingHandler) transition(c *gin.Context, apply func(actorID string) (*domain.Booking, error)) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	booking, err := apply(actorID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// requireSelf allows only the party named by the :id path parameter.
func requireSelf(c *gin.Context) (string, bool) {
	actorID, ok := requireActor(c)
	if !ok {
		return "", false
	}
	if c.Param("id") != actorID {
		respondError(c, ErrForbidden)
		return "", false
	}
	return actorID, true
}
