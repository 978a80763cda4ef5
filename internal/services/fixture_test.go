package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/mooveit-booking/internal/config"
	"github.com/chachabrian/mooveit-booking/internal/models"
	"github.com/chachabrian/mooveit-booking/internal/repository"
)

// faultyStore wraps a store and fails selected repository calls.
type faultyStore struct {
	repository.Store

	mu                  sync.Mutex
	tripBookingCreate   error
	confirmVehicle      error
	incrementSeatsFails int
	incrementSeatsErr   error

	// beforeTransaction runs ahead of the nth transaction, counting from 1,
	// outside of the store lock.
	beforeTransaction func(n int)
	transactions      int
}

func (s *faultyStore) Transaction(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	s.transactions++
	n, before := s.transactions, s.beforeTransaction
	s.mu.Unlock()
	if before != nil {
		before(n)
	}

	return s.Store.Transaction(ctx, func(tx repository.Tx) error {
		return fn(&faultyTx{Tx: tx, s: s})
	})
}

func (s *faultyStore) set(fn func(s *faultyStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

type faultyTx struct {
	repository.Tx
	s *faultyStore
}

func (t *faultyTx) Trips() repository.TripRepository {
	return &faultyTrips{TripRepository: t.Tx.Trips(), s: t.s}
}

func (t *faultyTx) TripBookings() repository.TripBookingRepository {
	return &faultyTripBookings{TripBookingRepository: t.Tx.TripBookings(), s: t.s}
}

func (t *faultyTx) VehicleBookings() repository.VehicleBookingRepository {
	return &faultyVehicleBookings{VehicleBookingRepository: t.Tx.VehicleBookings(), s: t.s}
}

type faultyTrips struct {
	repository.TripRepository
	s *faultyStore
}

func (r *faultyTrips) IncrementSeats(id string, seats int) error {
	r.s.mu.Lock()
	if r.s.incrementSeatsFails != 0 {
		if r.s.incrementSeatsFails > 0 {
			r.s.incrementSeatsFails--
		}
		err := r.s.incrementSeatsErr
		r.s.mu.Unlock()
		return err
	}
	r.s.mu.Unlock()
	return r.TripRepository.IncrementSeats(id, seats)
}

type faultyTripBookings struct {
	repository.TripBookingRepository
	s *faultyStore
}

func (r *faultyTripBookings) Create(booking *models.TripBooking) error {
	r.s.mu.Lock()
	err := r.s.tripBookingCreate
	r.s.mu.Unlock()
	if err != nil {
		return err
	}
	return r.TripBookingRepository.Create(booking)
}

type faultyVehicleBookings struct {
	repository.VehicleBookingRepository
	s *faultyStore
}

func (r *faultyVehicleBookings) Transition(id string, from, to models.BookingStatus) (bool, error) {
	r.s.mu.Lock()
	err := r.s.confirmVehicle
	r.s.mu.Unlock()
	if err != nil && to == models.BookingStatusConfirmed {
		return false, err
	}
	return r.VehicleBookingRepository.Transition(id, from, to)
}

type fixture struct {
	store  *faultyStore
	queue  *MemoryReconciliationQueue
	svc    *Services
	logs   *test.Hook
	delays []time.Duration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: &faultyStore{Store: repository.NewMemoryStore()},
		queue: NewMemoryReconciliationQueue(),
	}
	log, hook := test.NewNullLogger()
	f.logs = hook
	f.svc = New(f.store, f.queue, config.Compensation{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond}, log)
	f.svc.Compensator.sleep = func(_ context.Context, d time.Duration) error {
		f.delays = append(f.delays, d)
		return nil
	}
	return f
}

func (f *fixture) profile(t *testing.T, id, name string) *models.UserProfile {
	t.Helper()
	p, err := f.svc.Profiles.CreateProfile(context.Background(), id, CreateProfileRequest{Name: name, Age: 30})
	require.NoError(t, err)
	return p
}

func (f *fixture) trip(t *testing.T, driverID string, seats int) *models.Trip {
	t.Helper()
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	trip, err := f.svc.Catalog.CreateTrip(context.Background(), driverID, CreateTripRequest{
		FromLocation: "Nairobi CBD",
		ToLocation:   "Thika",
		StartTime:    start,
		ReachTime:    start.Add(90 * time.Minute),
		TotalSeats:   seats,
		PricePerSeat: 250,
		CarModel:     "Toyota Axio",
	})
	require.NoError(t, err)
	return trip
}

func (f *fixture) listing(t *testing.T, ownerID string, rental models.RentalType, rate float64, maxPeriod int) *models.VehicleListing {
	t.Helper()
	l, err := f.svc.Catalog.CreateListing(context.Background(), ownerID, CreateListingRequest{
		VehicleType:     models.VehicleTypeCar,
		VehicleModel:    "Mazda Demio",
		City:            "Nairobi",
		Latitude:        -1.2864,
		Longitude:       36.8172,
		RentalType:      rental,
		RentPrice:       rate,
		MaxRentalPeriod: maxPeriod,
	})
	require.NoError(t, err)
	return l
}

func (f *fixture) getTrip(t *testing.T, id string) *models.Trip {
	t.Helper()
	trip, err := f.svc.Catalog.GetTrip(context.Background(), id)
	require.NoError(t, err)
	return trip
}

func (f *fixture) getListing(t *testing.T, id string) *models.VehicleListing {
	t.Helper()
	l, err := f.svc.Catalog.GetListing(context.Background(), id)
	require.NoError(t, err)
	return l
}

func (f *fixture) vehicleBooking(t *testing.T, id string) *models.VehicleBooking {
	t.Helper()
	var b *models.VehicleBooking
	err := f.store.Transaction(context.Background(), func(tx repository.Tx) error {
		var err error
		b, err = tx.VehicleBookings().Get(id)
		return err
	})
	require.NoError(t, err)
	return b
}

// assertSeatLedger checks that taken seats equal confirmed bookings.
func (f *fixture) assertSeatLedger(t *testing.T, tripID string) {
	t.Helper()
	trip := f.getTrip(t, tripID)

	var bookings []models.TripBooking
	err := f.store.Transaction(context.Background(), func(tx repository.Tx) error {
		var err error
		bookings, err = tx.TripBookings().ListByTrip(tripID)
		return err
	})
	require.NoError(t, err)

	confirmed := 0
	for _, b := range bookings {
		if b.Status == models.BookingStatusConfirmed {
			confirmed += b.Seats
		}
	}

	assert.GreaterOrEqual(t, trip.AvailableSeats, 0)
	assert.LessOrEqual(t, trip.AvailableSeats, trip.TotalSeats)
	if trip.Status == models.TripStatusActive {
		assert.Equal(t, confirmed, trip.TotalSeats-trip.AvailableSeats)
	}
}

// beforeNth runs fn just before the nth transaction from now.
func (f *fixture) beforeNth(n int, fn func()) {
	f.store.set(func(s *faultyStore) {
		target := s.transactions + n
		s.beforeTransaction = func(i int) {
			if i == target {
				fn()
			}
		}
	})
}

func bookTripRequest(tripID, passengerID string) BookTripRequest {
	return BookTripRequest{
		TripID:         tripID,
		PassengerID:    passengerID,
		PickupLocation: "Kenyatta Avenue",
		PickupTime:     "07:45",
		PhoneNumber:    "+254700000000",
	}
}
