package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chachabrian/mooveit-booking/internal/apperrors"
	"github.com/chachabrian/mooveit-booking/internal/models"
	"github.com/chachabrian/mooveit-booking/internal/repository"
	"github.com/chachabrian/mooveit-booking/pkg/utils"
)

type TripStopInput struct {
	Location string    `json:"location" validate:"required"`
	StopTime time.Time `json:"stopTime"`
}

type CreateTripRequest struct {
	FromLocation   string          `json:"fromLocation" validate:"required"`
	ToLocation     string          `json:"toLocation" validate:"required"`
	StartTime      time.Time       `json:"startTime" validate:"required"`
	ReachTime      time.Time       `json:"reachTime" validate:"required"`
	TotalSeats     int             `json:"totalSeats" validate:"min=1,max=50"`
	PricePerSeat   float64         `json:"pricePerSeat" validate:"gte=0"`
	CarModel       string          `json:"carModel"`
	CarColor       string          `json:"carColor"`
	CarNumberPlate string          `json:"carNumberPlate"`
	Stops          []TripStopInput `json:"stops" validate:"dive"`
}

type CreateListingRequest struct {
	VehicleType        models.VehicleType `json:"vehicleType" validate:"required,oneof=car bike"`
	VehicleModel       string             `json:"vehicleModel" validate:"required"`
	VehicleColor       string             `json:"vehicleColor"`
	VehicleNumberPlate string             `json:"vehicleNumberPlate"`
	City               string             `json:"city" validate:"required"`
	Latitude           float64            `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude          float64            `json:"longitude" validate:"gte=-180,lte=180"`
	RentalType         models.RentalType  `json:"rentalType" validate:"required,oneof=short_term long_term"`
	RentPrice          float64            `json:"rentPrice" validate:"gte=0"`
	MaxRentalPeriod    int                `json:"maxRentalPeriod" validate:"gte=0"`
}

// ListingSearch filters listings. A positive RadiusKm restricts results to
// that distance from (Lat, Lng).
type ListingSearch struct {
	VehicleType   models.VehicleType
	RentalType    models.RentalType
	City          string
	Lat, Lng      float64
	RadiusKm      float64
	OnlyAvailable bool
}

// CatalogService manages the trips and vehicle listings that can be booked.
type CatalogService struct {
	store repository.Store
	log   *logrus.Logger
}

func NewCatalogService(store repository.Store, log *logrus.Logger) *CatalogService {
	return &CatalogService{store: store, log: log}
}

func (s *CatalogService) CreateTrip(ctx context.Context, driverID string, req CreateTripRequest) (*models.Trip, error) {
	req.FromLocation = strings.TrimSpace(req.FromLocation)
	req.ToLocation = strings.TrimSpace(req.ToLocation)
	if driverID == "" {
		return nil, apperrors.Validation("driverId", "is required")
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if !req.ReachTime.After(req.StartTime) {
		return nil, apperrors.Validation("reachTime", "must be after startTime")
	}

	trip := &models.Trip{
		ID:             uuid.NewString(),
		DriverID:       driverID,
		FromLocation:   req.FromLocation,
		ToLocation:     req.ToLocation,
		StartTime:      req.StartTime.UTC(),
		ReachTime:      req.ReachTime.UTC(),
		TotalSeats:     req.TotalSeats,
		AvailableSeats: req.TotalSeats,
		PricePerSeat:   req.PricePerSeat,
		CarModel:       req.CarModel,
		CarColor:       req.CarColor,
		CarNumberPlate: req.CarNumberPlate,
		Status:         models.TripStatusActive,
	}
	for i, stop := range req.Stops {
		trip.Stops = append(trip.Stops, models.TripStop{
			ID:        uuid.NewString(),
			TripID:    trip.ID,
			Location:  strings.TrimSpace(stop.Location),
			StopTime:  stop.StopTime.UTC(),
			StopOrder: i + 1,
		})
	}

	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		return tx.Trips().Create(trip)
	})
	if err != nil {
		return nil, storeError(err)
	}

	s.log.WithFields(logrus.Fields{"trip_id": trip.ID, "driver_id": driverID, "seats": trip.TotalSeats}).Info("Trip created")
	return trip, nil
}

func (s *CatalogService) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	var trip *models.Trip
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		var err error
		trip, err = tx.Trips().Get(tripID)
		return notFound(err, "trip")
	})
	return trip, storeError(err)
}

func (s *CatalogService) SearchTrips(ctx context.Context, filter repository.TripFilter) ([]models.Trip, error) {
	var trips []models.Trip
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		var err error
		trips, err = tx.Trips().Search(filter)
		return err
	})
	return trips, storeError(err)
}

// ListDriverTrips returns every trip the driver has published, whatever its
// status, newest first.
func (s *CatalogService) ListDriverTrips(ctx context.Context, driverID string) ([]models.Trip, error) {
	if driverID == "" {
		return nil, apperrors.Validation("driverId", "is required")
	}
	var trips []models.Trip
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		var err error
		trips, err = tx.Trips().ListByDriver(driverID)
		return err
	})
	return trips, storeError(err)
}

// ListTripPassengers returns every booking on the trip. Only its driver may
// see them.
func (s *CatalogService) ListTripPassengers(ctx context.Context, tripID, driverID string) ([]models.TripBooking, error) {
	var bookings []models.TripBooking
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		trip, err := tx.Trips().Get(tripID)
		if err != nil {
			return notFound(err, "trip")
		}
		if trip.DriverID != driverID {
			return apperrors.ErrNotOwner
		}
		bookings, err = tx.TripBookings().ListByTrip(tripID)
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}
	return bookings, nil
}

// CompleteTrip closes an active trip and completes its confirmed bookings.
func (s *CatalogService) CompleteTrip(ctx context.Context, tripID, driverID string) (*models.Trip, error) {
	return s.closeTrip(ctx, tripID, driverID, models.TripStatusCompleted, models.BookingStatusCompleted)
}

// CancelTrip cancels an active trip and its confirmed bookings, giving every
// seat back.
func (s *CatalogService) CancelTrip(ctx context.Context, tripID, driverID string) (*models.Trip, error) {
	return s.closeTrip(ctx, tripID, driverID, models.TripStatusCancelled, models.BookingStatusCancelled)
}

func (s *CatalogService) closeTrip(ctx context.Context, tripID, driverID string, status models.TripStatus, bookingStatus models.BookingStatus) (*models.Trip, error) {
	var trip *models.Trip
	var affected int64
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		t, err := tx.Trips().GetForUpdate(tripID)
		if err != nil {
			return notFound(err, "trip")
		}
		if t.DriverID != driverID {
			return apperrors.ErrNotOwner
		}
		if t.Status != models.TripStatusActive {
			return apperrors.Newf(apperrors.CodeTripClosed, "trip is already %s", t.Status)
		}

		changed, err := tx.Trips().SetStatus(tripID, models.TripStatusActive, status)
		if err != nil {
			return err
		}
		if !changed {
			return apperrors.ErrTripClosed
		}
		if affected, err = tx.TripBookings().TransitionByTrip(tripID, models.BookingStatusConfirmed, bookingStatus); err != nil {
			return err
		}
		if status == models.TripStatusCancelled {
			if err := tx.Trips().RestoreAllSeats(tripID); err != nil {
				return err
			}
		}

		trip, err = tx.Trips().Get(tripID)
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}

	s.log.WithFields(logrus.Fields{"trip_id": tripID, "status": status, "bookings": affected}).Info("Trip closed")
	return trip, nil
}

func (s *CatalogService) CreateListing(ctx context.Context, ownerID string, req CreateListingRequest) (*models.VehicleListing, error) {
	req.VehicleModel = strings.TrimSpace(req.VehicleModel)
	req.City = strings.TrimSpace(req.City)
	if ownerID == "" {
		return nil, apperrors.Validation("ownerId", "is required")
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	listing := &models.VehicleListing{
		ID:                 uuid.NewString(),
		OwnerID:            ownerID,
		VehicleType:        req.VehicleType,
		VehicleModel:       req.VehicleModel,
		VehicleColor:       req.VehicleColor,
		VehicleNumberPlate: req.VehicleNumberPlate,
		City:               req.City,
		Latitude:           req.Latitude,
		Longitude:          req.Longitude,
		RentalType:         req.RentalType,
		RentPrice:          req.RentPrice,
		MaxRentalPeriod:    req.MaxRentalPeriod,
		IsAvailable:        true,
	}

	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		return tx.Listings().Create(listing)
	})
	if err != nil {
		return nil, storeError(err)
	}

	s.log.WithFields(logrus.Fields{"listing_id": listing.ID, "owner_id": ownerID}).Info("Vehicle listed")
	return listing, nil
}

func (s *CatalogService) GetListing(ctx context.Context, listingID string) (*models.VehicleListing, error) {
	var listing *models.VehicleListing
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		var err error
		listing, err = tx.Listings().Get(listingID)
		return notFound(err, "vehicle listing")
	})
	return listing, storeError(err)
}

// SearchListings prefilters on a bounding box in the store and then applies
// the exact radius, nearest first.
func (s *CatalogService) SearchListings(ctx context.Context, search ListingSearch) ([]models.VehicleListing, error) {
	if search.VehicleType != "" && !search.VehicleType.Valid() {
		return nil, apperrors.Validation("vehicleType", "must be car or bike")
	}
	if search.RentalType != "" && !search.RentalType.Valid() {
		return nil, apperrors.Validation("rentalType", "must be short_term or long_term")
	}
	filter := repository.ListingFilter{
		VehicleType:   search.VehicleType,
		RentalType:    search.RentalType,
		City:          search.City,
		OnlyAvailable: search.OnlyAvailable,
	}
	center := utils.Point{Lat: search.Lat, Lng: search.Lng}
	if search.RadiusKm > 0 {
		box := utils.GetBoundingBox(center, search.RadiusKm)
		filter.Box = &box
	}

	var listings []models.VehicleListing
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		var err error
		listings, err = tx.Listings().Search(filter)
		return err
	})
	if err != nil {
		return nil, storeError(err)
	}
	if search.RadiusKm <= 0 {
		return listings, nil
	}

	nearby := listings[:0]
	for _, l := range listings {
		if utils.IsWithinRadius(center, utils.Point{Lat: l.Latitude, Lng: l.Longitude}, search.RadiusKm) {
			nearby = append(nearby, l)
		}
	}
	sort.SliceStable(nearby, func(i, j int) bool {
		return utils.HaversineDistance(search.Lat, search.Lng, nearby[i].Latitude, nearby[i].Longitude) <
			utils.HaversineDistance(search.Lat, search.Lng, nearby[j].Latitude, nearby[j].Longitude)
	})
	return nearby, nil
}

// QuoteListing prices a rental of the listing without holding it.
func (s *CatalogService) QuoteListing(ctx context.Context, listingID string, rng models.DateRange) (utils.RentalQuote, error) {
	listing, err := s.GetListing(ctx, listingID)
	if err != nil {
		return utils.RentalQuote{}, err
	}
	units := utils.DurationUnits(listing.RentalType, rng.Start, rng.End)
	return utils.ComputeRentalPrice(listing.RentPrice, listing.RentalType, units, listing.MaxRentalPeriod)
}
