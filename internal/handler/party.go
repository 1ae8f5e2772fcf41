package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"carshare/internal/domain"
	"carshare/internal/repository"
)

// PartyHandler handles HTTP requests for renters, owners and drivers.
type PartyHandler struct {
	partyRepo repository.PartyRepository
}

// NewPartyHandler creates a new PartyHandler.
func NewPartyHandler(partyRepo repository.PartyRepository) *PartyHandler {
	return &PartyHandler{partyRepo: partyRepo}
}

// RegisterRequest is the HTTP request body for party registration.
type RegisterRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// PartyResponse is the HTTP response for party data.
type PartyResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

func toPartyResponse(p *domain.Party) PartyResponse {
	return PartyResponse{
		ID:    p.ID,
		Name:  p.Name,
		Phone: p.Phone,
		Email: p.Email,
		Role:  string(p.Role),
	}
}

// Register handles POST /v1/parties/register
func (h *PartyHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Name == "" || req.Phone == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name and phone are required"})
		return
	}

	role := domain.PartyRole(strings.ToUpper(req.Role))
	if !domain.ValidPartyRole(role) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "role must be RENTER, OWNER or DRIVER"})
		return
	}

	// Check if party already exists
	existing, err := h.partyRepo.GetByPhone(c.Request.Context(), req.Phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		respondError(c, err)
		return
	}

	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{
			"message": "Party already registered",
			"party":   toPartyResponse(existing),
		})
		return
	}

	party := &domain.Party{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Phone:     req.Phone,
		Email:     req.Email,
		Role:      role,
		CreatedAt: time.Now(),
	}

	if err := h.partyRepo.Create(c.Request.Context(), party); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toPartyResponse(party))
}

// GetAll handles GET /v1/parties
func (h *PartyHandler) GetAll(c *gin.Context) {
	parties, err := h.partyRepo.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]PartyResponse, 0, len(parties))
	for _, p := range parties {
		response = append(response, toPartyResponse(p))
	}

	c.JSON(http.StatusOK, response)
}
