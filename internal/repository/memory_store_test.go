package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/mooveit-booking/internal/models"
	"github.com/chachabrian/mooveit-booking/pkg/utils"
)

func seedTrip(t *testing.T, store Store, id string, seats int) {
	t.Helper()
	err := store.Transaction(context.Background(), func(tx Tx) error {
		return tx.Trips().Create(&models.Trip{
			ID:             id,
			DriverID:       "driver-1",
			FromLocation:   "Nairobi CBD",
			ToLocation:     "Westlands",
			StartTime:      time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
			ReachTime:      time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
			TotalSeats:     seats,
			AvailableSeats: seats,
			Status:         models.TripStatusActive,
		})
	})
	require.NoError(t, err)
}

func getTrip(t *testing.T, store Store, id string) *models.Trip {
	t.Helper()
	var trip *models.Trip
	err := store.Transaction(context.Background(), func(tx Tx) error {
		var err error
		trip, err = tx.Trips().Get(id)
		return err
	})
	require.NoError(t, err)
	return trip
}

func TestMemoryStoreRollsBackOnError(t *testing.T) {
	store := NewMemoryStore()
	seedTrip(t, store, "trip-1", 3)

	boom := errors.New("boom")
	err := store.Transaction(context.Background(), func(tx Tx) error {
		ok, err := tx.Trips().DecrementSeats("trip-1", 2)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, getTrip(t, store, "trip-1").AvailableSeats)
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.Transaction(ctx, func(tx Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMemoryTripSeats(t *testing.T) {
	store := NewMemoryStore()
	seedTrip(t, store, "trip-1", 2)

	err := store.Transaction(context.Background(), func(tx Tx) error {
		trips := tx.Trips()

		ok, err := trips.DecrementSeats("trip-1", 3)
		require.NoError(t, err)
		assert.False(t, ok, "cannot take more seats than remain")

		ok, err = trips.DecrementSeats("trip-1", 2)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = trips.DecrementSeats("missing", 1)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, trips.IncrementSeats("trip-1", 5))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, getTrip(t, store, "trip-1").AvailableSeats, "release is clamped at total seats")
}

func TestMemoryDecrementRequiresActiveTrip(t *testing.T) {
	store := NewMemoryStore()
	seedTrip(t, store, "trip-1", 2)

	err := store.Transaction(context.Background(), func(tx Tx) error {
		changed, err := tx.Trips().SetStatus("trip-1", models.TripStatusActive, models.TripStatusCancelled)
		require.NoError(t, err)
		require.True(t, changed)

		changed, err = tx.Trips().SetStatus("trip-1", models.TripStatusActive, models.TripStatusCompleted)
		require.NoError(t, err)
		assert.False(t, changed)

		ok, err := tx.Trips().DecrementSeats("trip-1", 1)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryTripSearch(t *testing.T) {
	store := NewMemoryStore()
	seedTrip(t, store, "trip-1", 2)
	seedTrip(t, store, "trip-2", 1)

	err := store.Transaction(context.Background(), func(tx Tx) error {
		ok, err := tx.Trips().DecrementSeats("trip-2", 1)
		require.NoError(t, err)
		require.True(t, ok)
		return nil
	})
	require.NoError(t, err)

	day := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	var found []models.Trip
	err = store.Transaction(context.Background(), func(tx Tx) error {
		found, err = tx.Trips().Search(TripFilter{From: "nairobi", Date: &day, OnlyAvailable: true})
		return err
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "trip-1", found[0].ID)

	other := day.Add(48 * time.Hour)
	err = store.Transaction(context.Background(), func(tx Tx) error {
		found, err = tx.Trips().Search(TripFilter{Date: &other})
		return err
	})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestMemoryRatingUniqueness(t *testing.T) {
	store := NewMemoryStore()

	rate := func(id string) error {
		return store.Transaction(context.Background(), func(tx Tx) error {
			return tx.Ratings().Create(&models.UserRating{ID: id, RaterID: "a", RateeID: "b", Rating: 4})
		})
	}

	require.NoError(t, rate("r1"))
	assert.ErrorIs(t, rate("r2"), ErrDuplicate)

	err := store.Transaction(context.Background(), func(tx Tx) error {
		return tx.Ratings().Create(&models.UserRating{ID: "r3", RaterID: "a", RateeID: "a", Rating: 4})
	})
	assert.ErrorIs(t, err, ErrCheck)
}

func TestMemoryApplyRating(t *testing.T) {
	store := NewMemoryStore()

	err := store.Transaction(context.Background(), func(tx Tx) error {
		require.NoError(t, tx.Profiles().Create(&models.UserProfile{ID: "p1", Name: "Amina", UserType: models.UserTypeNew}))
		for _, score := range []int{5, 4, 4} {
			require.NoError(t, tx.Profiles().ApplyRating("p1", score))
		}
		return nil
	})
	require.NoError(t, err)

	err = store.Transaction(context.Background(), func(tx Tx) error {
		p, err := tx.Profiles().Get("p1")
		require.NoError(t, err)
		assert.Equal(t, 3, p.TotalRatings)
		assert.InDelta(t, 4.3333, p.Rating, 0.001)

		assert.ErrorIs(t, tx.Profiles().ApplyRating("missing", 3), ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryVehicleBookingExclusion(t *testing.T) {
	store := NewMemoryStore()
	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }

	err := store.Transaction(context.Background(), func(tx Tx) error {
		bookings := tx.VehicleBookings()
		require.NoError(t, bookings.Create(&models.VehicleBooking{
			ID: "b1", ListingID: "l1", RenterID: "r1", StartAt: day(1), EndAt: day(3), Status: models.BookingStatusConfirmed,
		}))

		err := bookings.Create(&models.VehicleBooking{
			ID: "b2", ListingID: "l1", RenterID: "r2", StartAt: day(3), EndAt: day(5), Status: models.BookingStatusPending,
		})
		assert.ErrorIs(t, err, ErrExclusion)

		n, err := bookings.CountOverlapping("l1", models.DateRange{Start: day(2), End: day(2)})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		ok, err := bookings.Transition("b1", models.BookingStatusConfirmed, models.BookingStatusCancelled)
		require.NoError(t, err)
		require.True(t, ok)

		n, err = bookings.CountActive("l1")
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		return bookings.Create(&models.VehicleBooking{
			ID: "b3", ListingID: "l1", RenterID: "r2", StartAt: day(3), EndAt: day(5), Status: models.BookingStatusPending,
		})
	})
	require.NoError(t, err)
}

func TestMemoryListingSearchBox(t *testing.T) {
	store := NewMemoryStore()

	err := store.Transaction(context.Background(), func(tx Tx) error {
		require.NoError(t, tx.Listings().Create(&models.VehicleListing{
			ID: "near", City: "Nairobi", Latitude: -1.28, Longitude: 36.82,
			VehicleType: models.VehicleTypeCar, RentalType: models.RentalTypeShortTerm, IsAvailable: true,
		}))
		require.NoError(t, tx.Listings().Create(&models.VehicleListing{
			ID: "far", City: "Mombasa", Latitude: -4.04, Longitude: 39.66,
			VehicleType: models.VehicleTypeCar, RentalType: models.RentalTypeShortTerm, IsAvailable: true,
		}))
		return nil
	})
	require.NoError(t, err)

	var found []models.VehicleListing
	err = store.Transaction(context.Background(), func(tx Tx) error {
		var err error
		found, err = tx.Listings().Search(ListingFilter{
			Box: &utils.BoundingBox{
				SouthWest: utils.Point{Lat: -1.5, Lng: 36.5},
				NorthEast: utils.Point{Lat: -1.0, Lng: 37.0},
			},
		})
		return err
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "near", found[0].ID)
}

func TestMemoryListByDriver(t *testing.T) {
	store := NewMemoryStore()
	seedTrip(t, store, "trip-1", 2)
	err := store.Transaction(context.Background(), func(tx Tx) error {
		if err := tx.Trips().Create(&models.Trip{
			ID:             "trip-2",
			DriverID:       "driver-1",
			FromLocation:   "Westlands",
			ToLocation:     "Nairobi CBD",
			StartTime:      time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC),
			ReachTime:      time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
			TotalSeats:     3,
			AvailableSeats: 3,
			Status:         models.TripStatusActive,
		}); err != nil {
			return err
		}
		_, err := tx.Trips().SetStatus("trip-2", models.TripStatusActive, models.TripStatusCancelled)
		return err
	})
	require.NoError(t, err)

	err = store.Transaction(context.Background(), func(tx Tx) error {
		trips, err := tx.Trips().ListByDriver("driver-1")
		require.NoError(t, err)
		require.Len(t, trips, 2)
		assert.Equal(t, "trip-2", trips[0].ID)
		assert.Equal(t, models.TripStatusCancelled, trips[0].Status)
		assert.Equal(t, "trip-1", trips[1].ID)

		none, err := tx.Trips().ListByDriver("driver-2")
		require.NoError(t, err)
		assert.Empty(t, none)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryRejectsUnknownEnumValues(t *testing.T) {
	store := NewMemoryStore()
	seedTrip(t, store, "trip-1", 2)

	err := store.Transaction(context.Background(), func(tx Tx) error {
		_, err := tx.Trips().SetStatus("trip-1", models.TripStatusActive, models.TripStatus("paused"))
		assert.ErrorIs(t, err, ErrCheck)

		_, err = tx.TripBookings().Transition("b1", models.BookingStatusConfirmed, models.BookingStatus("lost"))
		assert.ErrorIs(t, err, ErrCheck)
		_, err = tx.TripBookings().TransitionByTrip("trip-1", models.BookingStatusConfirmed, models.BookingStatus("lost"))
		assert.ErrorIs(t, err, ErrCheck)
		_, err = tx.VehicleBookings().Transition("v1", models.BookingStatusPending, models.BookingStatus("lost"))
		assert.ErrorIs(t, err, ErrCheck)

		err = tx.Listings().Create(&models.VehicleListing{
			ID: "l1", VehicleType: models.VehicleType("truck"), RentalType: models.RentalTypeShortTerm,
		})
		assert.ErrorIs(t, err, ErrCheck)
		err = tx.Listings().Create(&models.VehicleListing{
			ID: "l2", VehicleType: models.VehicleTypeCar, RentalType: models.RentalType("weekly"),
		})
		assert.ErrorIs(t, err, ErrCheck)

		err = tx.Profiles().Create(&models.UserProfile{ID: "p1", Name: "Amina", UserType: models.UserType("vip")})
		assert.ErrorIs(t, err, ErrCheck)

		require.NoError(t, tx.Profiles().Create(&models.UserProfile{ID: "p2", Name: "Otieno"}))
		profile, err := tx.Profiles().Get("p2")
		require.NoError(t, err)
		assert.Equal(t, models.UserTypeNew, profile.UserType)

		vip := models.UserType("vip")
		assert.ErrorIs(t, tx.Profiles().Update("p2", ProfileUpdate{UserType: &vip}), ErrCheck)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.TripStatusActive, getTrip(t, store, "trip-1").Status)
}
