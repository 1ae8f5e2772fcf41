package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"carshare/internal/domain"
	"carshare/internal/middleware"
	"carshare/internal/repository"
	"carshare/internal/service"
)

var (
	// ErrUnauthenticated is returned when a route needs an actor and none was identified.
	ErrUnauthenticated = errors.New("actor identity required")

	// ErrForbidden is returned when the actor may not see or change the resource.
	ErrForbidden = errors.New("not allowed for this actor")
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MoneyResponse is the wire form of an amount.
type MoneyResponse struct {
	AmountMinor int64  `json:"amount_minor"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

func toMoneyResponse(m domain.Money) MoneyResponse {
	return MoneyResponse{AmountMinor: m.Amount, Amount: m.Major(), Currency: m.Currency}
}

// respondError sends an error response with the appropriate HTTP status code.
// Server-side failures are attached to the context for error reporting and
// their details are not exposed to the client.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(code, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// requireActor returns the identified actor or writes a 401.
func requireActor(c *gin.Context) (string, bool) {
	actorID := middleware.ActorID(c)
	if actorID == "" {
		respondError(c, ErrUnauthenticated)
		return "", false
	}
	return actorID, true
}

// mapErrorToHTTPStatus maps domain/service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Identity
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidBookingID),
		errors.Is(err, service.ErrInvalidRenterID),
		errors.Is(err, service.ErrInvalidProviderID),
		errors.Is(err, service.ErrInvalidProviderRole),
		errors.Is(err, service.ErrInvalidVehicleID),
		errors.Is(err, service.ErrInvalidActorID),
		errors.Is(err, service.ErrInvalidOwnerID),
		errors.Is(err, service.ErrInvalidWithdrawalID),
		errors.Is(err, service.ErrRenterIsProvider),
		errors.Is(err, service.ErrUnsupportedCurrency),
		errors.Is(err, domain.ErrInvalidSchedule),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidRate),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrReasonRequired),
		errors.Is(err, domain.ErrInvalidMethod),
		errors.Is(err, domain.ErrInvalidMethodDetails):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, service.ErrConflictingTransition),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict

	// Business rule errors
	case errors.Is(err, service.ErrBelowMinimum),
		errors.Is(err, service.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
