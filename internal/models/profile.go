package models

import (
	"time"
)

type UserType string

const (
	UserTypeNew         UserType = "new"
	UserTypeExperienced UserType = "experienced"
)

func (t UserType) Valid() bool {
	return t == UserTypeNew || t == UserTypeExperienced
}

// UserProfile carries the public reputation of a user. Rating is the mean of
// every UserRating received and is only ever written by the rating aggregator.
type UserProfile struct {
	ID           string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	Name         string    `json:"name" gorm:"not null"`
	Age          int       `json:"age"`
	Rating       float64   `json:"rating" gorm:"not null;default:0;check:rating >= 0 AND rating <= 5"`
	TotalRatings int       `json:"totalRatings" gorm:"not null;default:0"`
	UserType     UserType  `json:"userType" gorm:"type:varchar(20);not null;default:'new'"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (UserProfile) TableName() string {
	return "user_profiles"
}

type UserRating struct {
	ID        string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	RaterID   string    `json:"raterId" gorm:"type:varchar(64);not null;uniqueIndex:idx_user_ratings_pair"`
	RateeID   string    `json:"rateeId" gorm:"type:varchar(64);not null;uniqueIndex:idx_user_ratings_pair;index"`
	Rating    int       `json:"rating" gorm:"not null;check:rating >= 1 AND rating <= 5"`
	Review    string    `json:"review,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name
func (UserRating) TableName() string {
	return "user_ratings"
}
