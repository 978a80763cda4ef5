package models

import (
	"time"
)

type RentalType string

const (
	RentalTypeShortTerm RentalType = "short_term"
	RentalTypeLongTerm  RentalType = "long_term"
)

func (t RentalType) Valid() bool {
	return t == RentalTypeShortTerm || t == RentalTypeLongTerm
}

type VehicleType string

const (
	VehicleTypeCar  VehicleType = "car"
	VehicleTypeBike VehicleType = "bike"
)

func (t VehicleType) Valid() bool {
	return t == VehicleTypeCar || t == VehicleTypeBike
}

// VehicleListing is a car or bike offered for rent. MaxRentalPeriod is in
// hours for short-term listings and in days for long-term ones.
type VehicleListing struct {
	ID                 string      `json:"id" gorm:"type:varchar(64);primaryKey"`
	OwnerID            string      `json:"ownerId" gorm:"type:varchar(64);not null;index"`
	VehicleType        VehicleType `json:"vehicleType" gorm:"type:varchar(10);not null"`
	VehicleModel       string      `json:"vehicleModel" gorm:"not null"`
	VehicleColor       string      `json:"vehicleColor"`
	VehicleNumberPlate string      `json:"vehicleNumberPlate"`
	City               string      `json:"city" gorm:"index"`
	Latitude           float64     `json:"latitude"`
	Longitude          float64     `json:"longitude"`
	RentalType         RentalType  `json:"rentalType" gorm:"type:varchar(20);not null"`
	RentPrice          float64     `json:"rentPrice" gorm:"not null;check:rent_price >= 0"`
	MaxRentalPeriod    int         `json:"maxRentalPeriod" gorm:"not null;default:0"`
	IsAvailable        bool        `json:"isAvailable" gorm:"not null;default:true"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

// TableName specifies the table name
func (VehicleListing) TableName() string {
	return "vehicle_listings"
}

type VehicleBooking struct {
	ID            string        `json:"id" gorm:"type:varchar(64);primaryKey"`
	ListingID     string        `json:"listingId" gorm:"type:varchar(64);not null;index"`
	RenterID      string        `json:"renterId" gorm:"type:varchar(64);not null;index"`
	RenterName    string        `json:"renterName"`
	StartAt       time.Time     `json:"startAt" gorm:"not null"`
	EndAt         time.Time     `json:"endAt" gorm:"not null"`
	BillableUnits int           `json:"billableUnits"`
	TotalPrice    float64       `json:"totalPrice" gorm:"not null"`
	Status        BookingStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// TableName specifies the table name
func (VehicleBooking) TableName() string {
	return "vehicle_bookings"
}

func (b VehicleBooking) Range() DateRange {
	return DateRange{Start: b.StartAt, End: b.EndAt}
}

// DateRange is a closed interval: both endpoints belong to it.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps uses inclusive bounds, so ranges sharing an endpoint overlap.
func (r DateRange) Overlaps(o DateRange) bool {
	return !r.Start.After(o.End) && !o.Start.After(r.End)
}
