package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chachabrian/mooveit-booking/internal/apperrors"
	"github.com/chachabrian/mooveit-booking/internal/models"
	"github.com/chachabrian/mooveit-booking/internal/repository"
	"github.com/chachabrian/mooveit-booking/pkg/utils"
)

const DateLayout = "2006-01-02"

var timeLayouts = []string{"15:04", "15:04:05"}

type BookTripRequest struct {
	TripID         string `json:"tripId" validate:"required"`
	PassengerID    string `json:"passengerId" validate:"required"`
	PickupLocation string `json:"pickupLocation" validate:"required"`
	PickupTime     string `json:"pickupTime" validate:"required"`
	PhoneNumber    string `json:"phoneNumber" validate:"required"`
}

func (r *BookTripRequest) normalize() {
	r.TripID = strings.TrimSpace(r.TripID)
	r.PassengerID = strings.TrimSpace(r.PassengerID)
	r.PickupLocation = strings.TrimSpace(r.PickupLocation)
	r.PickupTime = strings.TrimSpace(r.PickupTime)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
}

// BookVehicleRequest dates use 2006-01-02. Times use 15:04 and are optional
// unless the rental starts and ends on the same day.
type BookVehicleRequest struct {
	ListingID string `json:"listingId" validate:"required"`
	RenterID  string `json:"renterId" validate:"required"`
	FromDate  string `json:"fromDate" validate:"required"`
	ToDate    string `json:"toDate" validate:"required"`
	FromTime  string `json:"fromTime"`
	ToTime    string `json:"toTime"`
}

func (r *BookVehicleRequest) normalize() {
	r.ListingID = strings.TrimSpace(r.ListingID)
	r.RenterID = strings.TrimSpace(r.RenterID)
	r.FromDate = strings.TrimSpace(r.FromDate)
	r.ToDate = strings.TrimSpace(r.ToDate)
	r.FromTime = strings.TrimSpace(r.FromTime)
	r.ToTime = strings.TrimSpace(r.ToTime)
}

type BookingService struct {
	store       repository.Store
	ledger      *Ledger
	compensator *Compensator
	log         *logrus.Logger
}

func NewBookingService(store repository.Store, ledger *Ledger, compensator *Compensator, log *logrus.Logger) *BookingService {
	return &BookingService{store: store, ledger: ledger, compensator: compensator, log: log}
}

// BookTrip reserves one seat and records a confirmed booking. If the booking
// cannot be stored the seat is released again.
func (s *BookingService) BookTrip(ctx context.Context, req BookTripRequest) (*models.TripBooking, error) {
	req.normalize()
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	token, err := s.ledger.Reserve(ctx, req.TripID, 1)
	if err != nil {
		if errors.Is(err, apperrors.ErrInsufficientCapacity) {
			return nil, apperrors.Wrap(apperrors.ErrTripFull, err)
		}
		return nil, err
	}

	booking := &models.TripBooking{
		ID:             uuid.NewString(),
		TripID:         req.TripID,
		PassengerID:    req.PassengerID,
		PickupLocation: req.PickupLocation,
		PickupTime:     req.PickupTime,
		PhoneNumber:    req.PhoneNumber,
		Seats:          token.Seats,
		Status:         models.BookingStatusConfirmed,
		ReservationID:  token.ID,
	}

	// The trip may have been cancelled or completed since the seat was taken.
	err = s.store.Transaction(ctx, func(tx repository.Tx) error {
		trip, err := tx.Trips().GetForUpdate(req.TripID)
		if err != nil {
			return notFound(err, "trip")
		}
		if trip.Status != models.TripStatusActive {
			return apperrors.Newf(apperrors.CodeTripClosed, "trip is %s", trip.Status)
		}
		return tx.TripBookings().Create(booking)
	})
	if err != nil {
		s.compensate(ctx, token, err)
		return nil, storeError(err)
	}

	s.log.WithFields(logrus.Fields{
		"booking_id":   booking.ID,
		"trip_id":      booking.TripID,
		"passenger_id": booking.PassengerID,
	}).Info("Trip booked")
	return booking, nil
}

// BookVehicle prices the rental, holds the vehicle and confirms the hold.
func (s *BookingService) BookVehicle(ctx context.Context, req BookVehicleRequest) (*models.VehicleBooking, error) {
	req.normalize()
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	rng, err := ParseRentalRange(req.FromDate, req.ToDate, req.FromTime, req.ToTime)
	if err != nil {
		return nil, err
	}

	var renter *models.UserProfile
	var listing *models.VehicleListing
	err = s.store.Transaction(ctx, func(tx repository.Tx) error {
		var err error
		if renter, err = tx.Profiles().Get(req.RenterID); err != nil {
			return notFound(err, "renter profile")
		}
		if listing, err = tx.Listings().Get(req.ListingID); err != nil {
			return notFound(err, "vehicle listing")
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	if listing.OwnerID == req.RenterID {
		return nil, apperrors.Validation("renterId", "cannot rent your own vehicle")
	}

	units := utils.DurationUnits(listing.RentalType, rng.Start, rng.End)
	quote, err := utils.ComputeRentalPrice(listing.RentPrice, listing.RentalType, units, listing.MaxRentalPeriod)
	if err != nil {
		return nil, err
	}

	token, err := s.ledger.ReserveVehicle(ctx, VehicleHold{
		ListingID:     listing.ID,
		RenterID:      renter.ID,
		RenterName:    renter.Name,
		Range:         rng,
		TotalPrice:    quote.TotalPrice,
		BillableUnits: quote.BillableUnits,
	})
	if err != nil {
		return nil, err
	}

	var booking *models.VehicleBooking
	err = s.store.Transaction(ctx, func(tx repository.Tx) error {
		ok, err := tx.VehicleBookings().Transition(token.BookingID, models.BookingStatusPending, models.BookingStatusConfirmed)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.Newf(apperrors.CodeInvalidTransition, "vehicle hold %s is no longer pending", token.BookingID)
		}
		booking, err = tx.VehicleBookings().Get(token.BookingID)
		return err
	})
	if err != nil {
		s.compensate(ctx, token, err)
		return nil, storeError(err)
	}

	s.log.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"listing_id":  booking.ListingID,
		"renter_id":   booking.RenterID,
		"total_price": booking.TotalPrice,
	}).Info("Vehicle booked")
	return booking, nil
}

// CancelTripBooking lets the passenger cancel a confirmed booking. The seat
// goes back to the trip in the same transaction.
func (s *BookingService) CancelTripBooking(ctx context.Context, bookingID, requesterID string) (*models.TripBooking, error) {
	var booking *models.TripBooking
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		b, err := tx.TripBookings().Get(bookingID)
		if err != nil {
			return notFound(err, "trip booking")
		}
		if err := checkCancellable(b.PassengerID, requesterID, b.Status); err != nil {
			return err
		}

		ok, err := tx.TripBookings().Transition(b.ID, b.Status, models.BookingStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrInvalidTransition
		}
		if err := s.ledger.releaseTx(tx, b.TripID, b.Seats); err != nil {
			return err
		}

		b.Status = models.BookingStatusCancelled
		booking = b
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	s.log.WithFields(logrus.Fields{"booking_id": booking.ID, "trip_id": booking.TripID}).Info("Trip booking cancelled")
	return booking, nil
}

// CancelVehicleBooking lets the renter cancel a confirmed rental.
func (s *BookingService) CancelVehicleBooking(ctx context.Context, bookingID, requesterID string) (*models.VehicleBooking, error) {
	var booking *models.VehicleBooking
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		b, err := tx.VehicleBookings().Get(bookingID)
		if err != nil {
			return notFound(err, "vehicle booking")
		}
		if err := checkCancellable(b.RenterID, requesterID, b.Status); err != nil {
			return err
		}

		ok, err := tx.VehicleBookings().Transition(b.ID, b.Status, models.BookingStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrInvalidTransition
		}
		if err := s.ledger.releaseVehicleTx(tx, b.ListingID, b.ID); err != nil {
			return err
		}

		b.Status = models.BookingStatusCancelled
		booking = b
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	s.log.WithFields(logrus.Fields{"booking_id": booking.ID, "listing_id": booking.ListingID}).Info("Vehicle booking cancelled")
	return booking, nil
}

// CompleteVehicleBooking is called by the listing owner once the vehicle is
// returned.
func (s *BookingService) CompleteVehicleBooking(ctx context.Context, bookingID, ownerID string) (*models.VehicleBooking, error) {
	var booking *models.VehicleBooking
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		b, err := tx.VehicleBookings().Get(bookingID)
		if err != nil {
			return notFound(err, "vehicle booking")
		}
		listing, err := tx.Listings().Get(b.ListingID)
		if err != nil {
			return notFound(err, "vehicle listing")
		}
		if listing.OwnerID != ownerID {
			return apperrors.ErrNotOwner
		}
		if !b.Status.CanTransition(models.BookingStatusCompleted) {
			return apperrors.Newf(apperrors.CodeInvalidTransition, "cannot complete a %s booking", b.Status)
		}

		ok, err := tx.VehicleBookings().Transition(b.ID, b.Status, models.BookingStatusCompleted)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrInvalidTransition
		}
		if err := s.ledger.refreshAvailabilityTx(tx, b.ListingID); err != nil {
			return err
		}

		b.Status = models.BookingStatusCompleted
		booking = b
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	s.log.WithFields(logrus.Fields{"booking_id": booking.ID, "listing_id": booking.ListingID}).Info("Vehicle booking completed")
	return booking, nil
}

func (s *BookingService) ListTripBookings(ctx context.Context, passengerID string) ([]models.TripBooking, error) {
	var bookings []models.TripBooking
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		var err error
		bookings, err = tx.TripBookings().ListByPassenger(passengerID)
		return err
	})
	return bookings, storeError(err)
}

func (s *BookingService) ListVehicleBookings(ctx context.Context, renterID string) ([]models.VehicleBooking, error) {
	var bookings []models.VehicleBooking
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		var err error
		bookings, err = tx.VehicleBookings().ListByRenter(renterID)
		return err
	})
	return bookings, storeError(err)
}

// compensate gives back capacity taken for a booking that was not stored.
// The caller still reports cause; a release that could not be applied is
// logged here.
func (s *BookingService) compensate(ctx context.Context, token ReservationToken, cause error) {
	if err := s.compensator.Compensate(ctx, token, cause); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"reservation_id": token.ID,
			"trip_id":        token.TripID,
			"listing_id":     token.ListingID,
			"booking_id":     token.BookingID,
		}).Warn("Booking failed and its reservation is still held")
	}
}

func checkCancellable(ownerID, requesterID string, status models.BookingStatus) error {
	if ownerID != requesterID {
		return apperrors.ErrNotOwner
	}
	if status == models.BookingStatusCancelled {
		return apperrors.ErrAlreadyCancelled
	}
	if !status.CanTransition(models.BookingStatusCancelled) {
		return apperrors.Newf(apperrors.CodeInvalidTransition, "cannot cancel a %s booking", status)
	}
	return nil
}

// ParseRentalRange builds a UTC range from date and optional time strings.
// The range must move forward: a later toDate, or the same day with a later
// toTime.
func ParseRentalRange(fromDate, toDate, fromTime, toTime string) (models.DateRange, error) {
	from, err := time.Parse(DateLayout, fromDate)
	if err != nil {
		return models.DateRange{}, apperrors.Validation("fromDate", "must be formatted as YYYY-MM-DD")
	}
	to, err := time.Parse(DateLayout, toDate)
	if err != nil {
		return models.DateRange{}, apperrors.Validation("toDate", "must be formatted as YYYY-MM-DD")
	}

	fromOffset, err := parseClock("fromTime", fromTime)
	if err != nil {
		return models.DateRange{}, err
	}
	toOffset, err := parseClock("toTime", toTime)
	if err != nil {
		return models.DateRange{}, err
	}

	switch {
	case from.After(to):
		return models.DateRange{}, apperrors.New(apperrors.CodeInvalidDateRange, "fromDate must not be after toDate")
	case from.Equal(to):
		if fromTime == "" || toTime == "" || fromOffset >= toOffset {
			return models.DateRange{}, apperrors.New(apperrors.CodeInvalidDateRange, "same-day rentals need fromTime before toTime")
		}
	}

	return models.DateRange{Start: from.Add(fromOffset), End: to.Add(toOffset)}, nil
}

func parseClock(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, apperrors.Validation(field, "must be formatted as HH:MM")
}
