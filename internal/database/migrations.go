package database

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/chachabrian/mooveit-booking/internal/models"
)

type constraint struct {
	table string
	name  string
	def   string
}

// Multi-column checks applied after AutoMigrate.
var constraints = []constraint{
	{"trips", "trips_seats_check", "CHECK (available_seats >= 0 AND available_seats <= total_seats)"},
	{"trips", "trips_status_check", "CHECK (status IN ('active', 'completed', 'cancelled'))"},
	{"trip_bookings", "trip_bookings_status_check", "CHECK (status IN ('pending', 'confirmed', 'rejected', 'cancelled', 'completed'))"},
	{"vehicle_bookings", "vehicle_bookings_status_check", "CHECK (status IN ('pending', 'confirmed', 'rejected', 'cancelled', 'completed'))"},
	{"vehicle_bookings", "vehicle_bookings_range_check", "CHECK (start_at <= end_at)"},
	{"vehicle_listings", "vehicle_listings_rental_type_check", "CHECK (rental_type IN ('short_term', 'long_term'))"},
	{"vehicle_listings", "vehicle_listings_vehicle_type_check", "CHECK (vehicle_type IN ('car', 'bike'))"},
	{"user_profiles", "user_profiles_user_type_check", "CHECK (user_type IN ('new', 'experienced'))"},
	{"user_ratings", "user_ratings_not_self_check", "CHECK (rater_id <> ratee_id)"},
}

// vehicleOverlapExclusion keeps two live bookings of one listing from sharing
// any instant, using inclusive bounds.
const vehicleOverlapExclusion = `EXCLUDE USING gist (
	listing_id WITH =,
	tstzrange(start_at, end_at, '[]') WITH &&
) WHERE (status IN ('pending', 'confirmed', 'completed'))`

func RunMigrations(db *gorm.DB, log *logrus.Logger) error {
	err := db.AutoMigrate(
		&models.UserProfile{},
		&models.UserRating{},
		&models.Trip{},
		&models.TripStop{},
		&models.TripBooking{},
		&models.VehicleListing{},
		&models.VehicleBooking{},
	)
	if err != nil {
		return err
	}

	for _, c := range constraints {
		if err := replaceConstraint(db, c); err != nil {
			return err
		}
	}

	// Without btree_gist only the ledger's locked overlap check applies.
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS btree_gist`).Error; err != nil {
		log.WithError(err).Warn("btree_gist unavailable, skipping vehicle booking exclusion constraint")
		return nil
	}
	err = replaceConstraint(db, constraint{"vehicle_bookings", "vehicle_bookings_no_overlap", vehicleOverlapExclusion})
	if err != nil {
		log.WithError(err).Warn("Could not add vehicle booking exclusion constraint")
	}

	return nil
}

func replaceConstraint(db *gorm.DB, c constraint) error {
	if err := db.Exec(`ALTER TABLE ` + c.table + ` DROP CONSTRAINT IF EXISTS ` + c.name).Error; err != nil {
		return err
	}
	return db.Exec(`ALTER TABLE ` + c.table + ` ADD CONSTRAINT ` + c.name + ` ` + c.def).Error
}
