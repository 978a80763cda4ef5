package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/mooveit-booking/internal/config"
	"github.com/chachabrian/mooveit-booking/internal/logging"
	"github.com/chachabrian/mooveit-booking/internal/models"
	"github.com/chachabrian/mooveit-booking/internal/repository"
	"github.com/chachabrian/mooveit-booking/internal/services"
	"github.com/chachabrian/mooveit-booking/pkg/utils"
)

const testSecret = "handler-secret"

type api struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(t *testing.T, checks map[string]HealthCheck) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := services.New(
		repository.NewMemoryStore(),
		services.NewMemoryReconciliationQueue(),
		config.Compensation{MaxAttempts: 1, BaseDelay: time.Millisecond},
		logging.Discard(),
	)
	r := gin.New()
	RegisterRoutes(r, svc, testSecret, checks)
	return &api{t: t, router: r}
}

func (a *api) do(method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := utils.GenerateToken(userID, testSecret, time.Hour)
		require.NoError(a.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *api) createProfile(userID, name string) {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/profiles", userID, gin.H{"name": name, "age": 28})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
}

func (a *api) createTrip(driverID string, seats int) models.Trip {
	a.t.Helper()
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	w := a.do(http.MethodPost, "/api/trips", driverID, gin.H{
		"fromLocation": "Nairobi",
		"toLocation":   "Nakuru",
		"startTime":    start,
		"reachTime":    start.Add(3 * time.Hour),
		"totalSeats":   seats,
		"pricePerSeat": 800,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Trip](a.t, w)
}

func (a *api) createListing(ownerID string) models.VehicleListing {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/listings", ownerID, gin.H{
		"vehicleType":  "car",
		"vehicleModel": "Subaru Forester",
		"city":         "Nairobi",
		"latitude":     -1.2864,
		"longitude":    36.8172,
		"rentalType":   "long_term",
		"rentPrice":    500,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.VehicleListing](a.t, w)
}

var pickup = gin.H{"pickupLocation": "Archives", "pickupTime": "07:30", "phoneNumber": "+254711000000"}

func TestHealth(t *testing.T) {
	a := newAPI(t, map[string]HealthCheck{"store": func(context.Context) error { return nil }})
	w := a.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	a = newAPI(t, map[string]HealthCheck{"redis": func(context.Context) error { return errors.New("dial tcp: refused") }})
	w = a.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestRequiresAuth(t *testing.T) {
	a := newAPI(t, nil)
	w := a.do(http.MethodGet, "/api/trips", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTripBookingFlow(t *testing.T) {
	a := newAPI(t, nil)
	trip := a.createTrip("driver-1", 1)

	w := a.do(http.MethodPost, "/api/trips/"+trip.ID+"/bookings", "passenger-1", pickup)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booking := decode[models.TripBooking](t, w)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, "passenger-1", booking.PassengerID)

	w = a.do(http.MethodPost, "/api/trips/"+trip.ID+"/bookings", "passenger-2", pickup)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "TRIP_FULL", decode[map[string]interface{}](t, w)["code"])

	w = a.do(http.MethodGet, "/api/trip-bookings", "passenger-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.TripBooking](t, w), 1)

	w = a.do(http.MethodPost, "/api/trip-bookings/"+booking.ID+"/cancel", "passenger-2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPost, "/api/trip-bookings/"+booking.ID+"/cancel", "passenger-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodPost, "/api/trip-bookings/"+booking.ID+"/cancel", "passenger-1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_CANCELLED", decode[map[string]interface{}](t, w)["code"])

	w = a.do(http.MethodGet, "/api/trips/"+trip.ID, "passenger-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[models.Trip](t, w).AvailableSeats)
}

func TestBookTripValidation(t *testing.T) {
	a := newAPI(t, nil)
	trip := a.createTrip("driver-1", 2)

	w := a.do(http.MethodPost, "/api/trips/"+trip.ID+"/bookings", "passenger-1", gin.H{"pickupLocation": "Archives"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, "INVALID_INPUT", body["code"])
	assert.Equal(t, "pickupTime", body["field"])

	w = a.do(http.MethodPost, "/api/trips/missing/bookings", "passenger-1", pickup)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTripLifecycle(t *testing.T) {
	a := newAPI(t, nil)
	trip := a.createTrip("driver-1", 2)

	w := a.do(http.MethodGet, "/api/trips?from=nairobi&available=true&date=2024-05-01", "passenger-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Trip](t, w), 1)

	w = a.do(http.MethodGet, "/api/trips?date=May-1", "passenger-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/trips/"+trip.ID+"/cancel", "passenger-1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPost, "/api/trips/"+trip.ID+"/complete", "driver-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.TripStatusCompleted, decode[models.Trip](t, w).Status)

	w = a.do(http.MethodPost, "/api/trips/"+trip.ID+"/cancel", "driver-1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "TRIP_CLOSED", decode[map[string]interface{}](t, w)["code"])
}

func TestDriverViews(t *testing.T) {
	a := newAPI(t, nil)
	trip := a.createTrip("driver-1", 2)
	a.createTrip("driver-2", 3)

	w := a.do(http.MethodPost, "/api/trips/"+trip.ID+"/bookings", "passenger-1", pickup)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/api/trips/"+trip.ID+"/complete", "driver-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, "/api/trips/mine", "driver-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	mine := decode[[]models.Trip](t, w)
	require.Len(t, mine, 1)
	assert.Equal(t, trip.ID, mine[0].ID)
	assert.Equal(t, models.TripStatusCompleted, mine[0].Status)

	w = a.do(http.MethodGet, "/api/trips/"+trip.ID+"/bookings", "driver-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	passengers := decode[[]models.TripBooking](t, w)
	require.Len(t, passengers, 1)
	assert.Equal(t, "passenger-1", passengers[0].PassengerID)
	assert.Equal(t, models.BookingStatusCompleted, passengers[0].Status)

	w = a.do(http.MethodGet, "/api/trips/"+trip.ID+"/bookings", "passenger-1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodGet, "/api/trips/missing/bookings", "driver-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVehicleRentalFlow(t *testing.T) {
	a := newAPI(t, nil)
	a.createProfile("renter-1", "Wanjiru")
	a.createProfile("renter-2", "Odhiambo")
	listing := a.createListing("owner-1")

	w := a.do(http.MethodGet, "/api/listings/"+listing.ID+"/quote?fromDate=2024-06-01&toDate=2024-06-03", "renter-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.InDelta(t, 1000, decode[utils.RentalQuote](t, w).TotalPrice, 0.001)

	window := gin.H{"fromDate": "2024-06-01", "toDate": "2024-06-03"}
	w = a.do(http.MethodPost, "/api/listings/"+listing.ID+"/bookings", "renter-1", window)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booking := decode[models.VehicleBooking](t, w)
	assert.InDelta(t, 1000, booking.TotalPrice, 0.001)

	w = a.do(http.MethodPost, "/api/listings/"+listing.ID+"/bookings", "renter-2", gin.H{"fromDate": "2024-06-03", "toDate": "2024-06-04"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "OVERLAP", decode[map[string]interface{}](t, w)["code"])

	w = a.do(http.MethodPost, "/api/listings/"+listing.ID+"/bookings", "renter-2", gin.H{"fromDate": "2024-06-05", "toDate": "2024-06-04"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_DATE_RANGE", decode[map[string]interface{}](t, w)["code"])

	w = a.do(http.MethodGet, "/api/vehicle-bookings", "renter-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.VehicleBooking](t, w), 1)

	w = a.do(http.MethodPost, "/api/vehicle-bookings/"+booking.ID+"/complete", "renter-1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPost, "/api/vehicle-bookings/"+booking.ID+"/cancel", "renter-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.BookingStatusCancelled, decode[models.VehicleBooking](t, w).Status)

	w = a.do(http.MethodGet, "/api/listings?city=nairobi&available=true&lat=-1.28&lng=36.81&radius=10", "renter-2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.VehicleListing](t, w), 1)
}

func TestProfilesAndRatings(t *testing.T) {
	a := newAPI(t, nil)
	a.createProfile("rider-1", "Amani")
	a.createProfile("driver-1", "Kiprop")

	w := a.do(http.MethodPost, "/api/profiles", "rider-1", gin.H{"name": "Amani"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(http.MethodPut, "/api/profiles/driver-1", "rider-1", gin.H{"name": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPut, "/api/profiles/rider-1", "rider-1", gin.H{"userType": "experienced"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.UserTypeExperienced, decode[models.UserProfile](t, w).UserType)

	w = a.do(http.MethodPost, "/api/profiles/driver-1/ratings", "rider-1", gin.H{"rating": 5, "review": "Great"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/api/profiles/driver-1/ratings", "rider-1", gin.H{"rating": 1})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_RATING", decode[map[string]interface{}](t, w)["code"])

	w = a.do(http.MethodPost, "/api/profiles/rider-1/ratings", "rider-1", gin.H{"rating": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SELF_RATING", decode[map[string]interface{}](t, w)["code"])

	w = a.do(http.MethodGet, "/api/profiles/driver-1", "rider-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[models.UserProfile](t, w)
	assert.Equal(t, 1, profile.TotalRatings)
	assert.InDelta(t, 5.0, profile.Rating, 0.0001)

	w = a.do(http.MethodGet, "/api/profiles/driver-1/ratings", "rider-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.UserRating](t, w), 1)

	w = a.do(http.MethodGet, "/api/profiles/ghost", "rider-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRespondErrorHidesStoreFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, "Failed to process request", body["error"])
	assert.Equal(t, "STORE_FAILURE", body["code"])
}
