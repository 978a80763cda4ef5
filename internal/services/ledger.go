package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chachabrian/mooveit-booking/internal/apperrors"
	"github.com/chachabrian/mooveit-booking/internal/models"
	"github.com/chachabrian/mooveit-booking/internal/repository"
)

type ReservationKind string

const (
	ReservationSeat    ReservationKind = "seat"
	ReservationVehicle ReservationKind = "vehicle"
)

// ReservationToken identifies capacity taken by the ledger so that it can be
// given back exactly once.
type ReservationToken struct {
	ID        string            `json:"id"`
	Kind      ReservationKind   `json:"kind"`
	TripID    string            `json:"tripId,omitempty"`
	Seats     int               `json:"seats,omitempty"`
	ListingID string            `json:"listingId,omitempty"`
	BookingID string            `json:"bookingId,omitempty"`
	Range     *models.DateRange `json:"range,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// VehicleHold describes a rental the ledger should admit as a pending booking.
type VehicleHold struct {
	ListingID     string
	RenterID      string
	RenterName    string
	Range         models.DateRange
	TotalPrice    float64
	BillableUnits int
}

// Ledger is the only writer of available_seats and is_available.
type Ledger struct {
	store repository.Store
	log   *logrus.Logger
}

func NewLedger(store repository.Store, log *logrus.Logger) *Ledger {
	return &Ledger{store: store, log: log}
}

// Reserve takes seats from a trip in one transaction.
func (l *Ledger) Reserve(ctx context.Context, tripID string, seats int) (ReservationToken, error) {
	if tripID == "" {
		return ReservationToken{}, apperrors.Validation("tripId", "is required")
	}
	if seats < 1 {
		return ReservationToken{}, apperrors.Validation("seats", "must be at least 1")
	}

	err := l.store.Transaction(ctx, func(tx repository.Tx) error {
		return l.reserveTx(tx, tripID, seats)
	})
	if err != nil {
		return ReservationToken{}, storeError(err)
	}

	token := ReservationToken{
		ID:        uuid.NewString(),
		Kind:      ReservationSeat,
		TripID:    tripID,
		Seats:     seats,
		CreatedAt: time.Now().UTC(),
	}
	l.log.WithFields(logrus.Fields{
		"reservation_id": token.ID,
		"trip_id":        tripID,
		"seats":          seats,
	}).Debug("Seats reserved")
	return token, nil
}

func (l *Ledger) reserveTx(tx repository.Tx, tripID string, seats int) error {
	ok, err := tx.Trips().DecrementSeats(tripID, seats)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	trip, err := tx.Trips().Get(tripID)
	if err != nil {
		return notFound(err, "trip")
	}
	if trip.Status != models.TripStatusActive {
		return apperrors.Newf(apperrors.CodeTripClosed, "trip is %s", trip.Status)
	}
	return apperrors.Newf(apperrors.CodeInsufficientCapacity,
		"requested %d seats, %d available", seats, trip.AvailableSeats)
}

// Release gives seats back to a trip, never above its total.
func (l *Ledger) Release(ctx context.Context, tripID string, seats int) error {
	if seats < 1 {
		return apperrors.Validation("seats", "must be at least 1")
	}
	err := l.store.Transaction(ctx, func(tx repository.Tx) error {
		return l.releaseTx(tx, tripID, seats)
	})
	if err != nil {
		return storeError(err)
	}
	l.log.WithFields(logrus.Fields{"trip_id": tripID, "seats": seats}).Debug("Seats released")
	return nil
}

func (l *Ledger) releaseTx(tx repository.Tx, tripID string, seats int) error {
	return notFound(tx.Trips().IncrementSeats(tripID, seats), "trip")
}

// ReserveVehicle admits a rental as a pending booking when no live booking of
// the listing touches the requested range.
func (l *Ledger) ReserveVehicle(ctx context.Context, hold VehicleHold) (ReservationToken, error) {
	if hold.ListingID == "" {
		return ReservationToken{}, apperrors.Validation("listingId", "is required")
	}
	if hold.Range.End.Before(hold.Range.Start) {
		return ReservationToken{}, apperrors.ErrInvalidDateRange
	}

	booking := &models.VehicleBooking{
		ID:            uuid.NewString(),
		ListingID:     hold.ListingID,
		RenterID:      hold.RenterID,
		RenterName:    hold.RenterName,
		StartAt:       hold.Range.Start,
		EndAt:         hold.Range.End,
		BillableUnits: hold.BillableUnits,
		TotalPrice:    hold.TotalPrice,
		Status:        models.BookingStatusPending,
	}

	err := l.store.Transaction(ctx, func(tx repository.Tx) error {
		return l.reserveVehicleTx(tx, booking)
	})
	if err != nil {
		return ReservationToken{}, storeError(err)
	}

	rng := hold.Range
	token := ReservationToken{
		ID:        uuid.NewString(),
		Kind:      ReservationVehicle,
		ListingID: hold.ListingID,
		BookingID: booking.ID,
		Range:     &rng,
		CreatedAt: time.Now().UTC(),
	}
	l.log.WithFields(logrus.Fields{
		"reservation_id": token.ID,
		"listing_id":     hold.ListingID,
		"booking_id":     booking.ID,
	}).Debug("Vehicle held")
	return token, nil
}

func (l *Ledger) reserveVehicleTx(tx repository.Tx, booking *models.VehicleBooking) error {
	if _, err := tx.Listings().GetForUpdate(booking.ListingID); err != nil {
		return notFound(err, "vehicle listing")
	}

	overlapping, err := tx.VehicleBookings().CountOverlapping(booking.ListingID, booking.Range())
	if err != nil {
		return err
	}
	if overlapping > 0 {
		return apperrors.ErrOverlap
	}

	if err := tx.VehicleBookings().Create(booking); err != nil {
		if errors.Is(err, repository.ErrExclusion) {
			return apperrors.Wrap(apperrors.ErrOverlap, err)
		}
		return err
	}
	return tx.Listings().SetAvailable(booking.ListingID, false)
}

// ReleaseVehicle takes a booking out of the listing's calendar and marks the
// listing available again unless another active booking remains.
func (l *Ledger) ReleaseVehicle(ctx context.Context, listingID, bookingID string) error {
	err := l.store.Transaction(ctx, func(tx repository.Tx) error {
		return l.releaseVehicleTx(tx, listingID, bookingID)
	})
	if err != nil {
		return storeError(err)
	}
	l.log.WithFields(logrus.Fields{"listing_id": listingID, "booking_id": bookingID}).Debug("Vehicle released")
	return nil
}

func (l *Ledger) releaseVehicleTx(tx repository.Tx, listingID, bookingID string) error {
	booking, err := tx.VehicleBookings().Get(bookingID)
	if err != nil {
		return notFound(err, "vehicle booking")
	}
	if booking.ListingID != listingID {
		return apperrors.Validation("bookingId", "does not belong to listing")
	}

	// An aborted hold is rejected and a live rental is cancelled.
	if !booking.Status.Terminal() {
		next := models.BookingStatusCancelled
		if booking.Status == models.BookingStatusPending {
			next = models.BookingStatusRejected
		}
		if _, err := tx.VehicleBookings().Transition(bookingID, booking.Status, next); err != nil {
			return err
		}
	}

	return l.refreshAvailabilityTx(tx, listingID)
}

func (l *Ledger) refreshAvailabilityTx(tx repository.Tx, listingID string) error {
	active, err := tx.VehicleBookings().CountActive(listingID)
	if err != nil {
		return err
	}
	return notFound(tx.Listings().SetAvailable(listingID, active == 0), "vehicle listing")
}
