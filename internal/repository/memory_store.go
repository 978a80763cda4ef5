package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chachabrian/mooveit-booking/internal/models"
	"github.com/chachabrian/mooveit-booking/pkg/utils"
)

// MemoryStore is an in-process Store. Transactions run one at a time against
// a private copy of the data that replaces the committed copy only when fn
// succeeds.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData(), now: time.Now}
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&memTx{d: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work
	return nil
}

type memData struct {
	trips           map[string]models.Trip
	tripBookings    map[string]models.TripBooking
	listings        map[string]models.VehicleListing
	vehicleBookings map[string]models.VehicleBooking
	profiles        map[string]models.UserProfile
	ratings         map[string]models.UserRating
}

func newMemData() *memData {
	return &memData{
		trips:           map[string]models.Trip{},
		tripBookings:    map[string]models.TripBooking{},
		listings:        map[string]models.VehicleListing{},
		vehicleBookings: map[string]models.VehicleBooking{},
		profiles:        map[string]models.UserProfile{},
		ratings:         map[string]models.UserRating{},
	}
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (d *memData) clone() *memData {
	trips := make(map[string]models.Trip, len(d.trips))
	for id, trip := range d.trips {
		trip.Stops = append([]models.TripStop(nil), trip.Stops...)
		trips[id] = trip
	}
	return &memData{
		trips:           trips,
		tripBookings:    cloneMap(d.tripBookings),
		listings:        cloneMap(d.listings),
		vehicleBookings: cloneMap(d.vehicleBookings),
		profiles:        cloneMap(d.profiles),
		ratings:         cloneMap(d.ratings),
	}
}

type memTx struct {
	d   *memData
	now func() time.Time
}

func (t *memTx) Trips() TripRepository                     { return &memTrips{t} }
func (t *memTx) TripBookings() TripBookingRepository       { return &memTripBookings{t} }
func (t *memTx) Listings() ListingRepository               { return &memListings{t} }
func (t *memTx) VehicleBookings() VehicleBookingRepository { return &memVehicleBookings{t} }
func (t *memTx) Profiles() ProfileRepository               { return &memProfiles{t} }
func (t *memTx) Ratings() RatingRepository                 { return &memRatings{t} }

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

type memTrips struct{ *memTx }

func (r *memTrips) Create(trip *models.Trip) error {
	if _, ok := r.d.trips[trip.ID]; ok {
		return ErrDuplicate
	}
	if trip.AvailableSeats < 0 || trip.AvailableSeats > trip.TotalSeats {
		return ErrCheck
	}
	now := r.now()
	trip.CreatedAt, trip.UpdatedAt = now, now
	stored := *trip
	stored.Stops = append([]models.TripStop(nil), trip.Stops...)
	sort.SliceStable(stored.Stops, func(i, j int) bool {
		return stored.Stops[i].StopOrder < stored.Stops[j].StopOrder
	})
	r.d.trips[trip.ID] = stored
	return nil
}

func (r *memTrips) Get(id string) (*models.Trip, error) {
	trip, ok := r.d.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	trip.Stops = append([]models.TripStop(nil), trip.Stops...)
	return &trip, nil
}

func (r *memTrips) GetForUpdate(id string) (*models.Trip, error) {
	return r.Get(id)
}

func (r *memTrips) DecrementSeats(id string, seats int) (bool, error) {
	trip, ok := r.d.trips[id]
	if !ok || trip.Status != models.TripStatusActive || trip.AvailableSeats < seats {
		return false, nil
	}
	trip.AvailableSeats -= seats
	trip.UpdatedAt = r.now()
	r.d.trips[id] = trip
	return true, nil
}

func (r *memTrips) IncrementSeats(id string, seats int) error {
	trip, ok := r.d.trips[id]
	if !ok {
		return ErrNotFound
	}
	trip.AvailableSeats = min(trip.AvailableSeats+seats, trip.TotalSeats)
	trip.UpdatedAt = r.now()
	r.d.trips[id] = trip
	return nil
}

func (r *memTrips) RestoreAllSeats(id string) error {
	trip, ok := r.d.trips[id]
	if !ok {
		return ErrNotFound
	}
	trip.AvailableSeats = trip.TotalSeats
	trip.UpdatedAt = r.now()
	r.d.trips[id] = trip
	return nil
}

func (r *memTrips) SetStatus(id string, from, to models.TripStatus) (bool, error) {
	if !to.Valid() {
		return false, ErrCheck
	}
	trip, ok := r.d.trips[id]
	if !ok || trip.Status != from {
		return false, nil
	}
	trip.Status = to
	trip.UpdatedAt = r.now()
	r.d.trips[id] = trip
	return true, nil
}

func (r *memTrips) Search(filter TripFilter) ([]models.Trip, error) {
	trips := []models.Trip{}
	for _, trip := range r.d.trips {
		if trip.Status != models.TripStatusActive {
			continue
		}
		if filter.From != "" && !containsFold(trip.FromLocation, filter.From) {
			continue
		}
		if filter.To != "" && !containsFold(trip.ToLocation, filter.To) {
			continue
		}
		if filter.Date != nil {
			day := filter.Date.UTC().Truncate(24 * time.Hour)
			start := trip.StartTime.UTC()
			if start.Before(day) || !start.Before(day.Add(24*time.Hour)) {
				continue
			}
		}
		if filter.OnlyAvailable && trip.AvailableSeats == 0 {
			continue
		}
		trip.Stops = append([]models.TripStop(nil), trip.Stops...)
		trips = append(trips, trip)
	}
	sort.Slice(trips, func(i, j int) bool {
		if trips[i].StartTime.Equal(trips[j].StartTime) {
			return trips[i].ID < trips[j].ID
		}
		return trips[i].StartTime.Before(trips[j].StartTime)
	})
	return trips, nil
}

func (r *memTrips) ListByDriver(driverID string) ([]models.Trip, error) {
	trips := []models.Trip{}
	for _, trip := range r.d.trips {
		if trip.DriverID != driverID {
			continue
		}
		trip.Stops = append([]models.TripStop(nil), trip.Stops...)
		trips = append(trips, trip)
	}
	sort.Slice(trips, func(i, j int) bool {
		if trips[i].StartTime.Equal(trips[j].StartTime) {
			return trips[i].ID < trips[j].ID
		}
		return trips[i].StartTime.After(trips[j].StartTime)
	})
	return trips, nil
}

type memTripBookings struct{ *memTx }

func (r *memTripBookings) Create(booking *models.TripBooking) error {
	if _, ok := r.d.tripBookings[booking.ID]; ok {
		return ErrDuplicate
	}
	now := r.now()
	booking.CreatedAt, booking.UpdatedAt = now, now
	r.d.tripBookings[booking.ID] = *booking
	return nil
}

func (r *memTripBookings) Get(id string) (*models.TripBooking, error) {
	booking, ok := r.d.tripBookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &booking, nil
}

func (r *memTripBookings) Transition(id string, from, to models.BookingStatus) (bool, error) {
	if !to.Valid() {
		return false, ErrCheck
	}
	booking, ok := r.d.tripBookings[id]
	if !ok || booking.Status != from {
		return false, nil
	}
	booking.Status = to
	booking.UpdatedAt = r.now()
	r.d.tripBookings[id] = booking
	return true, nil
}

func (r *memTripBookings) TransitionByTrip(tripID string, from, to models.BookingStatus) (int64, error) {
	if !to.Valid() {
		return 0, ErrCheck
	}
	var n int64
	for id, booking := range r.d.tripBookings {
		if booking.TripID != tripID || booking.Status != from {
			continue
		}
		booking.Status = to
		booking.UpdatedAt = r.now()
		r.d.tripBookings[id] = booking
		n++
	}
	return n, nil
}

func (r *memTripBookings) ListByPassenger(passengerID string) ([]models.TripBooking, error) {
	bookings := []models.TripBooking{}
	for _, booking := range r.d.tripBookings {
		if booking.PassengerID == passengerID {
			bookings = append(bookings, booking)
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].CreatedAt.Equal(bookings[j].CreatedAt) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})
	return bookings, nil
}

func (r *memTripBookings) ListByTrip(tripID string) ([]models.TripBooking, error) {
	bookings := []models.TripBooking{}
	for _, booking := range r.d.tripBookings {
		if booking.TripID == tripID {
			bookings = append(bookings, booking)
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].CreatedAt.Equal(bookings[j].CreatedAt) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].CreatedAt.Before(bookings[j].CreatedAt)
	})
	return bookings, nil
}

type memListings struct{ *memTx }

func (r *memListings) Create(listing *models.VehicleListing) error {
	if _, ok := r.d.listings[listing.ID]; ok {
		return ErrDuplicate
	}
	if !listing.RentalType.Valid() || !listing.VehicleType.Valid() {
		return ErrCheck
	}
	now := r.now()
	listing.CreatedAt, listing.UpdatedAt = now, now
	r.d.listings[listing.ID] = *listing
	return nil
}

func (r *memListings) Get(id string) (*models.VehicleListing, error) {
	listing, ok := r.d.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &listing, nil
}

func (r *memListings) GetForUpdate(id string) (*models.VehicleListing, error) {
	return r.Get(id)
}

func (r *memListings) SetAvailable(id string, available bool) error {
	listing, ok := r.d.listings[id]
	if !ok {
		return ErrNotFound
	}
	listing.IsAvailable = available
	listing.UpdatedAt = r.now()
	r.d.listings[id] = listing
	return nil
}

func (r *memListings) Search(filter ListingFilter) ([]models.VehicleListing, error) {
	listings := []models.VehicleListing{}
	for _, l := range r.d.listings {
		if filter.VehicleType != "" && l.VehicleType != filter.VehicleType {
			continue
		}
		if filter.RentalType != "" && l.RentalType != filter.RentalType {
			continue
		}
		if filter.City != "" && !containsFold(l.City, filter.City) {
			continue
		}
		if b := filter.Box; b != nil {
			if !b.Contains(utils.Point{Lat: l.Latitude, Lng: l.Longitude}) {
				continue
			}
		}
		if filter.OnlyAvailable && !l.IsAvailable {
			continue
		}
		listings = append(listings, l)
	}
	sort.Slice(listings, func(i, j int) bool {
		if listings[i].CreatedAt.Equal(listings[j].CreatedAt) {
			return listings[i].ID < listings[j].ID
		}
		return listings[i].CreatedAt.After(listings[j].CreatedAt)
	})
	return listings, nil
}

type memVehicleBookings struct{ *memTx }

func (r *memVehicleBookings) Create(booking *models.VehicleBooking) error {
	if _, ok := r.d.vehicleBookings[booking.ID]; ok {
		return ErrDuplicate
	}
	if booking.Status.OccupiesCalendar() {
		for _, other := range r.d.vehicleBookings {
			if other.ListingID == booking.ListingID && other.Status.OccupiesCalendar() &&
				other.Range().Overlaps(booking.Range()) {
				return ErrExclusion
			}
		}
	}
	now := r.now()
	booking.CreatedAt, booking.UpdatedAt = now, now
	r.d.vehicleBookings[booking.ID] = *booking
	return nil
}

func (r *memVehicleBookings) Get(id string) (*models.VehicleBooking, error) {
	booking, ok := r.d.vehicleBookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &booking, nil
}

func (r *memVehicleBookings) CountOverlapping(listingID string, rng models.DateRange) (int64, error) {
	var n int64
	for _, b := range r.d.vehicleBookings {
		if b.ListingID == listingID && b.Status.OccupiesCalendar() && b.Range().Overlaps(rng) {
			n++
		}
	}
	return n, nil
}

func (r *memVehicleBookings) CountActive(listingID string) (int64, error) {
	var n int64
	for _, b := range r.d.vehicleBookings {
		if b.ListingID == listingID && b.Status.Active() {
			n++
		}
	}
	return n, nil
}

func (r *memVehicleBookings) Transition(id string, from, to models.BookingStatus) (bool, error) {
	if !to.Valid() {
		return false, ErrCheck
	}
	booking, ok := r.d.vehicleBookings[id]
	if !ok || booking.Status != from {
		return false, nil
	}
	booking.Status = to
	booking.UpdatedAt = r.now()
	r.d.vehicleBookings[id] = booking
	return true, nil
}

func (r *memVehicleBookings) ListByRenter(renterID string) ([]models.VehicleBooking, error) {
	bookings := []models.VehicleBooking{}
	for _, b := range r.d.vehicleBookings {
		if b.RenterID == renterID {
			bookings = append(bookings, b)
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].StartAt.Equal(bookings[j].StartAt) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].StartAt.After(bookings[j].StartAt)
	})
	return bookings, nil
}

type memProfiles struct{ *memTx }

func (r *memProfiles) Create(profile *models.UserProfile) error {
	if _, ok := r.d.profiles[profile.ID]; ok {
		return ErrDuplicate
	}
	if profile.UserType == "" {
		profile.UserType = models.UserTypeNew
	}
	if !profile.UserType.Valid() {
		return ErrCheck
	}
	now := r.now()
	profile.CreatedAt, profile.UpdatedAt = now, now
	r.d.profiles[profile.ID] = *profile
	return nil
}

func (r *memProfiles) Get(id string) (*models.UserProfile, error) {
	profile, ok := r.d.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &profile, nil
}

func (r *memProfiles) Update(id string, update ProfileUpdate) error {
	profile, ok := r.d.profiles[id]
	if !ok {
		return ErrNotFound
	}
	if update.Name != nil {
		profile.Name = *update.Name
	}
	if update.Age != nil {
		profile.Age = *update.Age
	}
	if update.UserType != nil {
		if !update.UserType.Valid() {
			return ErrCheck
		}
		profile.UserType = *update.UserType
	}
	profile.UpdatedAt = r.now()
	r.d.profiles[id] = profile
	return nil
}

func (r *memProfiles) ApplyRating(id string, score int) error {
	profile, ok := r.d.profiles[id]
	if !ok {
		return ErrNotFound
	}
	total := float64(profile.TotalRatings)
	profile.Rating = (profile.Rating*total + float64(score)) / (total + 1)
	profile.TotalRatings++
	profile.UpdatedAt = r.now()
	r.d.profiles[id] = profile
	return nil
}

type memRatings struct{ *memTx }

func (r *memRatings) Create(rating *models.UserRating) error {
	if _, ok := r.d.ratings[rating.ID]; ok {
		return ErrDuplicate
	}
	if rating.RaterID == rating.RateeID || rating.Rating < 1 || rating.Rating > 5 {
		return ErrCheck
	}
	for _, other := range r.d.ratings {
		if other.RaterID == rating.RaterID && other.RateeID == rating.RateeID {
			return ErrDuplicate
		}
	}
	rating.CreatedAt = r.now()
	r.d.ratings[rating.ID] = *rating
	return nil
}

func (r *memRatings) Exists(raterID, rateeID string) (bool, error) {
	for _, rating := range r.d.ratings {
		if rating.RaterID == raterID && rating.RateeID == rateeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRatings) ListByRatee(rateeID string) ([]models.UserRating, error) {
	ratings := []models.UserRating{}
	for _, rating := range r.d.ratings {
		if rating.RateeID == rateeID {
			ratings = append(ratings, rating)
		}
	}
	sort.Slice(ratings, func(i, j int) bool {
		if ratings[i].CreatedAt.Equal(ratings[j].CreatedAt) {
			return ratings[i].ID < ratings[j].ID
		}
		return ratings[i].CreatedAt.After(ratings[j].CreatedAt)
	})
	return ratings, nil
}
