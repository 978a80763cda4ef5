package repository

import (
	"context"
	"errors"
	"time"

	"github.com/chachabrian/mooveit-booking/internal/models"
	"github.com/chachabrian/mooveit-booking/pkg/utils"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicate     = errors.New("duplicate record")
	ErrExclusion     = errors.New("exclusion constraint violated")
	ErrCheck         = errors.New("check constraint violated")
	ErrSerialization = errors.New("serialization failure")
)

// Store runs fn inside one serializable transaction. Any error returned by fn
// rolls back every write made through tx.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	Trips() TripRepository
	TripBookings() TripBookingRepository
	Listings() ListingRepository
	VehicleBookings() VehicleBookingRepository
	Profiles() ProfileRepository
	Ratings() RatingRepository
}

type TripRepository interface {
	Create(trip *models.Trip) error
	Get(id string) (*models.Trip, error)
	GetForUpdate(id string) (*models.Trip, error)
	// DecrementSeats takes seats from an active trip only when enough remain.
	// It reports false when the condition did not hold.
	DecrementSeats(id string, seats int) (bool, error)
	// IncrementSeats gives seats back, clamped at total_seats.
	IncrementSeats(id string, seats int) error
	RestoreAllSeats(id string) error
	SetStatus(id string, from, to models.TripStatus) (bool, error)
	Search(filter TripFilter) ([]models.Trip, error)
	// ListByDriver returns the driver's trips in every status, newest first.
	ListByDriver(driverID string) ([]models.Trip, error)
}

type TripBookingRepository interface {
	Create(booking *models.TripBooking) error
	Get(id string) (*models.TripBooking, error)
	// Transition moves a booking from -> to and reports false if the booking
	// was not in from.
	Transition(id string, from, to models.BookingStatus) (bool, error)
	TransitionByTrip(tripID string, from, to models.BookingStatus) (int64, error)
	ListByPassenger(passengerID string) ([]models.TripBooking, error)
	ListByTrip(tripID string) ([]models.TripBooking, error)
}

type ListingRepository interface {
	Create(listing *models.VehicleListing) error
	Get(id string) (*models.VehicleListing, error)
	GetForUpdate(id string) (*models.VehicleListing, error)
	SetAvailable(id string, available bool) error
	Search(filter ListingFilter) ([]models.VehicleListing, error)
}

type VehicleBookingRepository interface {
	Create(booking *models.VehicleBooking) error
	Get(id string) (*models.VehicleBooking, error)
	// CountOverlapping counts bookings on the listing whose range touches r
	// and whose status still occupies the calendar.
	CountOverlapping(listingID string, r models.DateRange) (int64, error)
	CountActive(listingID string) (int64, error)
	Transition(id string, from, to models.BookingStatus) (bool, error)
	ListByRenter(renterID string) ([]models.VehicleBooking, error)
}

type ProfileRepository interface {
	Create(profile *models.UserProfile) error
	Get(id string) (*models.UserProfile, error)
	Update(id string, update ProfileUpdate) error
	// ApplyRating folds score into the running mean in a single statement.
	ApplyRating(id string, score int) error
}

type RatingRepository interface {
	Create(rating *models.UserRating) error
	Exists(raterID, rateeID string) (bool, error)
	ListByRatee(rateeID string) ([]models.UserRating, error)
}

type TripFilter struct {
	From          string
	To            string
	Date          *time.Time
	OnlyAvailable bool
}

type ListingFilter struct {
	VehicleType   models.VehicleType
	RentalType    models.RentalType
	City          string
	Box           *utils.BoundingBox
	OnlyAvailable bool
}

type ProfileUpdate struct {
	Name     *string
	Age      *int
	UserType *models.UserType
}
