package models

import (
	"time"
)

type TripStatus string

const (
	TripStatusActive    TripStatus = "active"
	TripStatusCompleted TripStatus = "completed"
	TripStatusCancelled TripStatus = "cancelled"
)

func (s TripStatus) Valid() bool {
	switch s {
	case TripStatusActive, TripStatusCompleted, TripStatusCancelled:
		return true
	}
	return false
}

// Trip is a carpool ride offered by a driver.
type Trip struct {
	ID             string     `json:"id" gorm:"type:varchar(64);primaryKey"`
	DriverID       string     `json:"driverId" gorm:"type:varchar(64);not null;index"`
	FromLocation   string     `json:"fromLocation" gorm:"not null"`
	ToLocation     string     `json:"toLocation" gorm:"not null"`
	StartTime      time.Time  `json:"startTime" gorm:"not null;index"`
	ReachTime      time.Time  `json:"reachTime" gorm:"not null"`
	TotalSeats     int        `json:"totalSeats" gorm:"not null;check:total_seats > 0"`
	AvailableSeats int        `json:"availableSeats" gorm:"not null"`
	PricePerSeat   float64    `json:"pricePerSeat" gorm:"not null;check:price_per_seat >= 0"`
	CarModel       string     `json:"carModel"`
	CarColor       string     `json:"carColor"`
	CarNumberPlate string     `json:"carNumberPlate"`
	Status         TripStatus `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	Stops          []TripStop `json:"stops,omitempty" gorm:"foreignKey:TripID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// TableName specifies the table name
func (Trip) TableName() string {
	return "trips"
}

type TripStop struct {
	ID        string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	TripID    string    `json:"tripId" gorm:"type:varchar(64);not null;index"`
	Location  string    `json:"location" gorm:"not null"`
	StopTime  time.Time `json:"stopTime"`
	StopOrder int       `json:"stopOrder" gorm:"not null"`
}

// TableName specifies the table name
func (TripStop) TableName() string {
	return "trip_stops"
}

// TripBooking is one confirmed seat on a trip.
type TripBooking struct {
	ID             string        `json:"id" gorm:"type:varchar(64);primaryKey"`
	TripID         string        `json:"tripId" gorm:"type:varchar(64);not null;index"`
	PassengerID    string        `json:"passengerId" gorm:"type:varchar(64);not null;index"`
	PickupLocation string        `json:"pickupLocation" gorm:"not null"`
	PickupTime     string        `json:"pickupTime" gorm:"not null"`
	PhoneNumber    string        `json:"phoneNumber" gorm:"not null"`
	Seats          int           `json:"seats" gorm:"not null;default:1"`
	Status         BookingStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	ReservationID  string        `json:"reservationId" gorm:"type:varchar(64)"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// TableName specifies the table name
func (TripBooking) TableName() string {
	return "trip_bookings"
}
