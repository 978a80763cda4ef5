package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chachabrian/mooveit-booking/internal/models"
)

// Postgres SQLSTATE codes the store reacts to.
const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgExclusionViolation   = "23P01"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&gormTx{db: db})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	return translate(err)
}

// translate maps driver errors onto the repository sentinels and leaves every
// other error untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case pgExclusionViolation:
			return fmt.Errorf("%w: %s", ErrExclusion, pgErr.ConstraintName)
		case pgCheckViolation:
			return fmt.Errorf("%w: %s", ErrCheck, pgErr.ConstraintName)
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrSerialization, pgErr.Message)
		}
	}
	return err
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) Trips() TripRepository                     { return &gormTrips{db: t.db} }
func (t *gormTx) TripBookings() TripBookingRepository       { return &gormTripBookings{db: t.db} }
func (t *gormTx) Listings() ListingRepository               { return &gormListings{db: t.db} }
func (t *gormTx) VehicleBookings() VehicleBookingRepository { return &gormVehicleBookings{db: t.db} }
func (t *gormTx) Profiles() ProfileRepository               { return &gormProfiles{db: t.db} }
func (t *gormTx) Ratings() RatingRepository                 { return &gormRatings{db: t.db} }

func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}

type gormTrips struct {
	db *gorm.DB
}

func (r *gormTrips) Create(trip *models.Trip) error {
	return translate(r.db.Create(trip).Error)
}

func (r *gormTrips) Get(id string) (*models.Trip, error) {
	var trip models.Trip
	err := r.db.Preload("Stops", func(db *gorm.DB) *gorm.DB {
		return db.Order("stop_order")
	}).First(&trip, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &trip, nil
}

func (r *gormTrips) GetForUpdate(id string) (*models.Trip, error) {
	var trip models.Trip
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&trip, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &trip, nil
}

func (r *gormTrips) DecrementSeats(id string, seats int) (bool, error) {
	result := r.db.Model(&models.Trip{}).
		Where("id = ? AND status = ? AND available_seats >= ?", id, models.TripStatusActive, seats).
		Update("available_seats", gorm.Expr("available_seats - ?", seats))
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *gormTrips) IncrementSeats(id string, seats int) error {
	result := r.db.Model(&models.Trip{}).
		Where("id = ?", id).
		Update("available_seats", gorm.Expr("LEAST(available_seats + ?, total_seats)", seats))
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormTrips) RestoreAllSeats(id string) error {
	result := r.db.Model(&models.Trip{}).
		Where("id = ?", id).
		Update("available_seats", gorm.Expr("total_seats"))
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormTrips) SetStatus(id string, from, to models.TripStatus) (bool, error) {
	result := r.db.Model(&models.Trip{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *gormTrips) Search(filter TripFilter) ([]models.Trip, error) {
	query := r.db.Model(&models.Trip{}).Where("status = ?", models.TripStatusActive)

	if filter.From != "" {
		query = query.Where("LOWER(from_location) LIKE ?", likePattern(filter.From))
	}
	if filter.To != "" {
		query = query.Where("LOWER(to_location) LIKE ?", likePattern(filter.To))
	}
	if filter.Date != nil {
		day := filter.Date.UTC().Truncate(24 * time.Hour)
		query = query.Where("start_time >= ? AND start_time < ?", day, day.Add(24*time.Hour))
	}
	if filter.OnlyAvailable {
		query = query.Where("available_seats > 0")
	}

	var trips []models.Trip
	err := query.Preload("Stops", func(db *gorm.DB) *gorm.DB {
		return db.Order("stop_order")
	}).Order("start_time ASC").Find(&trips).Error
	return trips, translate(err)
}

func (r *gormTrips) ListByDriver(driverID string) ([]models.Trip, error) {
	var trips []models.Trip
	err := r.db.Where("driver_id = ?", driverID).
		Preload("Stops", func(db *gorm.DB) *gorm.DB {
			return db.Order("stop_order")
		}).Order("start_time DESC").Find(&trips).Error
	return trips, translate(err)
}

type gormTripBookings struct {
	db *gorm.DB
}

func (r *gormTripBookings) Create(booking *models.TripBooking) error {
	return translate(r.db.Create(booking).Error)
}

func (r *gormTripBookings) Get(id string) (*models.TripBooking, error) {
	var booking models.TripBooking
	if err := r.db.First(&booking, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &booking, nil
}

func (r *gormTripBookings) Transition(id string, from, to models.BookingStatus) (bool, error) {
	result := r.db.Model(&models.TripBooking{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *gormTripBookings) TransitionByTrip(tripID string, from, to models.BookingStatus) (int64, error) {
	result := r.db.Model(&models.TripBooking{}).
		Where("trip_id = ? AND status = ?", tripID, from).
		Update("status", to)
	return result.RowsAffected, translate(result.Error)
}

func (r *gormTripBookings) ListByPassenger(passengerID string) ([]models.TripBooking, error) {
	var bookings []models.TripBooking
	err := r.db.Where("passenger_id = ?", passengerID).Order("created_at DESC").Find(&bookings).Error
	return bookings, translate(err)
}

func (r *gormTripBookings) ListByTrip(tripID string) ([]models.TripBooking, error) {
	var bookings []models.TripBooking
	err := r.db.Where("trip_id = ?", tripID).Order("created_at ASC").Find(&bookings).Error
	return bookings, translate(err)
}

type gormListings struct {
	db *gorm.DB
}

func (r *gormListings) Create(listing *models.VehicleListing) error {
	return translate(r.db.Create(listing).Error)
}

func (r *gormListings) Get(id string) (*models.VehicleListing, error) {
	var listing models.VehicleListing
	if err := r.db.First(&listing, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &listing, nil
}

func (r *gormListings) GetForUpdate(id string) (*models.VehicleListing, error) {
	var listing models.VehicleListing
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&listing, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &listing, nil
}

func (r *gormListings) SetAvailable(id string, available bool) error {
	result := r.db.Model(&models.VehicleListing{}).Where("id = ?", id).Update("is_available", available)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormListings) Search(filter ListingFilter) ([]models.VehicleListing, error) {
	query := r.db.Model(&models.VehicleListing{})

	if filter.VehicleType != "" {
		query = query.Where("vehicle_type = ?", filter.VehicleType)
	}
	if filter.RentalType != "" {
		query = query.Where("rental_type = ?", filter.RentalType)
	}
	if filter.City != "" {
		query = query.Where("LOWER(city) LIKE ?", likePattern(filter.City))
	}
	if filter.Box != nil {
		query = query.Where("latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?",
			filter.Box.SouthWest.Lat, filter.Box.NorthEast.Lat, filter.Box.SouthWest.Lng, filter.Box.NorthEast.Lng)
	}
	if filter.OnlyAvailable {
		query = query.Where("is_available = ?", true)
	}

	var listings []models.VehicleListing
	err := query.Order("created_at DESC").Find(&listings).Error
	return listings, translate(err)
}

type gormVehicleBookings struct {
	db *gorm.DB
}

func (r *gormVehicleBookings) Create(booking *models.VehicleBooking) error {
	return translate(r.db.Create(booking).Error)
}

func (r *gormVehicleBookings) Get(id string) (*models.VehicleBooking, error) {
	var booking models.VehicleBooking
	if err := r.db.First(&booking, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &booking, nil
}

func (r *gormVehicleBookings) CountOverlapping(listingID string, rng models.DateRange) (int64, error) {
	var count int64
	err := r.db.Model(&models.VehicleBooking{}).
		Where("listing_id = ? AND status IN ? AND start_at <= ? AND end_at >= ?",
			listingID, models.CalendarStatuses, rng.End, rng.Start).
		Count(&count).Error
	return count, translate(err)
}

func (r *gormVehicleBookings) CountActive(listingID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.VehicleBooking{}).
		Where("listing_id = ? AND status IN ?", listingID, models.ActiveStatuses).
		Count(&count).Error
	return count, translate(err)
}

func (r *gormVehicleBookings) Transition(id string, from, to models.BookingStatus) (bool, error) {
	result := r.db.Model(&models.VehicleBooking{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *gormVehicleBookings) ListByRenter(renterID string) ([]models.VehicleBooking, error) {
	var bookings []models.VehicleBooking
	err := r.db.Where("renter_id = ?", renterID).Order("start_at DESC").Find(&bookings).Error
	return bookings, translate(err)
}

type gormProfiles struct {
	db *gorm.DB
}

func (r *gormProfiles) Create(profile *models.UserProfile) error {
	return translate(r.db.Create(profile).Error)
}

func (r *gormProfiles) Get(id string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.First(&profile, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &profile, nil
}

func (r *gormProfiles) Update(id string, update ProfileUpdate) error {
	fields := map[string]interface{}{}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.Age != nil {
		fields["age"] = *update.Age
	}
	if update.UserType != nil {
		fields["user_type"] = *update.UserType
	}
	if len(fields) == 0 {
		return nil
	}

	result := r.db.Model(&models.UserProfile{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormProfiles) ApplyRating(id string, score int) error {
	result := r.db.Model(&models.UserProfile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"rating":        gorm.Expr("(rating * total_ratings + ?) / (total_ratings + 1)", score),
			"total_ratings": gorm.Expr("total_ratings + 1"),
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type gormRatings struct {
	db *gorm.DB
}

func (r *gormRatings) Create(rating *models.UserRating) error {
	return translate(r.db.Create(rating).Error)
}

func (r *gormRatings) Exists(raterID, rateeID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.UserRating{}).
		Where("rater_id = ? AND ratee_id = ?", raterID, rateeID).
		Count(&count).Error
	return count > 0, translate(err)
}

func (r *gormRatings) ListByRatee(rateeID string) ([]models.UserRating, error) {
	var ratings []models.UserRating
	err := r.db.Where("ratee_id = ?", rateeID).Order("created_at DESC").Find(&ratings).Error
	return ratings, translate(err)
}
