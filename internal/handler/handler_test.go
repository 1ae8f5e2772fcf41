package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carshare/internal/app"
	"carshare/internal/domain"
	"carshare/internal/handler"
	"carshare/internal/middleware"
	"carshare/internal/service"
	"carshare/internal/tests"
)

const (
	renter         = "renter-1"
	owner          = "owner-1"
	callbackSecret = "processor-secret"
)

type apiFixture struct {
	router      *gin.Engine
	bookings    *tests.MockBookingRepository
	withdrawals *tests.MockWithdrawalRepository
	parties     *tests.MockPartyRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &apiFixture{
		bookings:    tests.NewMockBookingRepository(),
		withdrawals: tests.NewMockWithdrawalRepository(),
		parties:     tests.NewMockPartyRepository(),
	}
	settlement := service.NewSettlementService(
		f.bookings, f.withdrawals, tests.NewMockLockStore(), nil, nil, tests.NewMockPayouts(),
		service.DefaultSettlementPolicy(),
	)

	f.router = app.NewRouter(app.RouterDeps{
		BookingHandler:    handler.NewBookingHandler(settlement),
		WithdrawalHandler: handler.NewWithdrawalHandler(settlement),
		PartyHandler:      handler.NewPartyHandler(f.parties),
		Auth:              middleware.AuthOptions{PayoutCallbackSecret: callbackSecret},
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return f.doWithHeaders(t, method, path, actor, nil, body)
}

// callback posts a payout processor status update for a withdrawal.
func (f *apiFixture) callback(t *testing.T, withdrawalID, status string, body any) *httptest.ResponseRecorder {
	t.Helper()
	headers := map[string]string{middleware.PayoutSecretHeader: callbackSecret}
	return f.doWithHeaders(t, http.MethodPost, "/v1/withdrawals/"+withdrawalID+"/"+status, "", headers, body)
}

func (f *apiFixture) doWithHeaders(t *testing.T, method, path, actor string, headers map[string]string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (f *apiFixture) createBooking(t *testing.T, gross string) handler.BookingResponse {
	t.Helper()
	w := f.do(t, http.MethodPost, "/v1/bookings", renter, handler.CreateBookingRequest{
		ProviderID:  owner,
		VehicleID:   "vehicle-1",
		PickupAt:    time.Now().Add(72 * time.Hour).UTC(),
		DropoffAt:   time.Now().Add(96 * time.Hour).UTC(),
		GrossAmount: gross,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[handler.BookingResponse](t, w)
}

func (f *apiFixture) addCompletedBooking(t *testing.T, id string, grossMinor int64) {
	t.Helper()
	b, err := domain.NewBooking(domain.NewBookingParams{
		ID:          id,
		RenterID:    renter,
		ProviderID:  owner,
		VehicleID:   "vehicle-1",
		PickupAt:    time.Now(),
		DropoffAt:   time.Now().Add(time.Hour),
		GrossAmount: domain.NewMoney(grossMinor, "USD"),
	}, domain.CommissionPolicy{Rate: domain.DefaultCommissionRate}, time.Now())
	require.NoError(t, err)
	b.Status = domain.BookingStatusCompleted
	f.bookings.AddBooking(b)
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateBooking_ReturnsBreakdown(t *testing.T) {
	f := newAPIFixture(t)

	b := f.createBooking(t, "135.00")

	assert.Equal(t, "PENDING", b.Status)
	assert.Equal(t, renter, b.RenterID)
	assert.Equal(t, "OWNER", b.ProviderRole)
	assert.Equal(t, handler.MoneyResponse{AmountMinor: 2025, Amount: "20.25", Currency: "USD"}, b.CommissionAmount)
	assert.Equal(t, "114.75", b.NetAmount.Amount)
	assert.Equal(t, "0.00", b.RefundAmount.Amount)
	require.Len(t, b.StatusHistory, 1)
}

func TestCreateBooking_Errors(t *testing.T) {
	f := newAPIFixture(t)

	testCases := []struct {
		name  string
		actor string
		body  any
		want  int
	}{
		{"anonymous", "", handler.CreateBookingRequest{}, http.StatusUnauthorized},
		{"malformed body", renter, "not an object", http.StatusBadRequest},
		{"sub-cent amount", renter, handler.CreateBookingRequest{ProviderID: owner, VehicleID: "v", GrossAmount: "1.005"}, http.StatusBadRequest},
		{"own vehicle", owner, handler.CreateBookingRequest{
			ProviderID:  owner,
			VehicleID:   "v",
			PickupAt:    time.Now().Add(time.Hour),
			DropoffAt:   time.Now().Add(2 * time.Hour),
			GrossAmount: "10.00",
		}, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/v1/bookings", tc.actor, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

func TestBookingTransitions_OverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	b := f.createBooking(t, "80.00")
	base := "/v1/bookings/" + b.ID

	// Renter may not accept.
	w := f.do(t, http.MethodPost, base+"/accept", renter, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Reject needs a reason.
	w = f.do(t, http.MethodPost, base+"/reject", owner, handler.ReasonRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, base+"/accept", owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ACTIVE", decode[handler.BookingResponse](t, w).Status)

	w = f.do(t, http.MethodPost, base+"/start", owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode[handler.BookingResponse](t, w).StartedAt)

	w = f.do(t, http.MethodPost, base+"/complete", owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, base+"/cancel", renter, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Only the parties can read the booking.
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, base, renter, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, base, "stranger", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/bookings/missing", renter, nil).Code)
}

func TestCancelBooking_WithoutBody(t *testing.T) {
	f := newAPIFixture(t)
	b := f.createBooking(t, "135.00")

	w := f.do(t, http.MethodPost, "/v1/bookings/"+b.ID+"/cancel", renter, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[handler.BookingResponse](t, w)
	assert.Equal(t, "CANCELLED", resp.Status)
	assert.Equal(t, int64(13500), resp.RefundAmount.AmountMinor)
}

func TestOwnerRoutes_RequireSelf(t *testing.T) {
	f := newAPIFixture(t)
	f.createBooking(t, "10.00")

	for _, path := range []string{"/v1/owners/" + owner + "/bookings", "/v1/owners/" + owner + "/balance", "/v1/owners/" + owner + "/withdrawals"} {
		assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, path, renter, nil).Code, path)
		assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, path, "", nil).Code, path)
		assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, owner, nil).Code, path)
	}

	w := f.do(t, http.MethodGet, "/v1/owners/"+owner+"/bookings", owner, nil)
	assert.Len(t, decode[[]handler.BookingResponse](t, w), 1)
}

func TestWithdrawal_OverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	f.addCompletedBooking(t, "b-done", 100000)

	// net 850.00, 70% withdrawable
	w := f.do(t, http.MethodGet, "/v1/owners/"+owner+"/balance", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	balance := decode[handler.BalanceResponse](t, w)
	assert.Equal(t, "595.00", balance.Available.Amount)
	assert.Equal(t, "0.7", balance.LiquidRatio)

	w = f.do(t, http.MethodPost, "/v1/withdrawals", owner, handler.RequestWithdrawalRequest{Amount: "600.00", Method: "MPESA", MethodDetails: "0712345678"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/v1/withdrawals", owner, handler.RequestWithdrawalRequest{Amount: "5.00", Method: "MPESA", MethodDetails: "0712345678"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/v1/withdrawals", owner, handler.RequestWithdrawalRequest{Amount: "95.00", Method: "BANK_CARD", MethodDetails: "1234"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/v1/withdrawals", owner, handler.RequestWithdrawalRequest{Amount: "95.00", Method: "BANK_CARD", MethodDetails: "4111 1111 1111 1111"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	withdrawal := decode[handler.WithdrawalResponse](t, w)
	assert.Equal(t, "SUBMITTED", withdrawal.Status)
	assert.Equal(t, "************1111", withdrawal.MethodDetails)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/v1/withdrawals/"+withdrawal.ID, renter, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/withdrawals/"+withdrawal.ID, owner, nil).Code)

	// Payout callbacks.
	assert.Equal(t, http.StatusBadRequest, f.callback(t, withdrawal.ID, "fail", nil).Code)
	assert.Equal(t, http.StatusOK, f.callback(t, withdrawal.ID, "processing", nil).Code)
	w = f.callback(t, withdrawal.ID, "fail", handler.FailWithdrawalRequest{Reason: "card expired"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "card expired", decode[handler.WithdrawalResponse](t, w).FailureReason)
	assert.Equal(t, http.StatusConflict, f.callback(t, withdrawal.ID, "complete", nil).Code)

	w = f.do(t, http.MethodGet, "/v1/owners/"+owner+"/balance", owner, nil)
	assert.Equal(t, "595.00", decode[handler.BalanceResponse](t, w).Available.Amount)
}

func TestPayoutCallbacks_RequireProcessorCredential(t *testing.T) {
	f := newAPIFixture(t)
	f.addCompletedBooking(t, "b-done", 100000)

	w := f.do(t, http.MethodPost, "/v1/withdrawals", owner, handler.RequestWithdrawalRequest{Amount: "595.00", Method: "MPESA", MethodDetails: "0712345678"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	withdrawalID := decode[handler.WithdrawalResponse](t, w).ID
	base := "/v1/withdrawals/" + withdrawalID

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, base+"/processing", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, base+"/processing", owner, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, base+"/fail", owner, handler.FailWithdrawalRequest{Reason: "changed my mind"}).Code)

	wrong := map[string]string{middleware.PayoutSecretHeader: "guess"}
	assert.Equal(t, http.StatusForbidden, f.doWithHeaders(t, http.MethodPost, base+"/processing", owner, wrong, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.doWithHeaders(t, http.MethodPost, base+"/fail", owner, wrong, handler.FailWithdrawalRequest{Reason: "x"}).Code)

	// The held amount stays held, so the same money cannot be withdrawn twice.
	w = f.do(t, http.MethodGet, "/v1/owners/"+owner+"/balance", owner, nil)
	assert.Equal(t, "0.00", decode[handler.BalanceResponse](t, w).Available.Amount)
	w = f.do(t, http.MethodPost, "/v1/withdrawals", owner, handler.RequestWithdrawalRequest{Amount: "595.00", Method: "MPESA", MethodDetails: "0712345678"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	stored := f.withdrawals.GetWithdrawal(withdrawalID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.WithdrawalStatusSubmitted, stored.Status)
}

func TestPayoutCallbacks_ClosedWithoutSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := app.NewRouter(app.RouterDeps{
		BookingHandler:    handler.NewBookingHandler(nil),
		WithdrawalHandler: handler.NewWithdrawalHandler(nil),
		PartyHandler:      handler.NewPartyHandler(nil),
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/withdrawals/w-1/complete", nil)
	req.Header.Set(middleware.PayoutSecretHeader, "anything")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestParties_RegisterAndList(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/v1/parties/register", "", handler.RegisterRequest{Name: "Ann", Phone: "0712000000", Role: "owner"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "OWNER", decode[handler.PartyResponse](t, w).Role)

	w = f.do(t, http.MethodPost, "/v1/parties/register", "", handler.RegisterRequest{Name: "Ann", Phone: "0712000000", Role: "OWNER"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/v1/parties/register", "", handler.RegisterRequest{Name: "Bo", Phone: "0712000001", Role: "mechanic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/v1/parties", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]handler.PartyResponse](t, w), 1)
}

func TestInternalErrorsAreHidden(t *testing.T) {
	f := newAPIFixture(t)
	f.parties.GetAllError = tests.ErrMockTimeout

	w := f.do(t, http.MethodGet, "/v1/parties", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}
