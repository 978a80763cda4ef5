package utils

import (
	"math"
	"time"

	"github.com/chachabrian/mooveit-booking/internal/apperrors"
	"github.com/chachabrian/mooveit-booking/internal/models"
)

// RentalQuote contains the calculated rental price and how it was derived
type RentalQuote struct {
	RentalType    models.RentalType `json:"rentalType"`
	Unit          string            `json:"unit"`
	DurationUnits float64           `json:"durationUnits"`
	BillableUnits int               `json:"billableUnits"`
	Rate          float64           `json:"rate"`
	TotalPrice    float64           `json:"totalPrice"`
}

const (
	UnitHour = "hour"
	UnitDay  = "day"

	// Long-term rentals are billed for at least one day
	MinimumLongTermDays = 1
)

// DurationUnits converts a rental range to hours for short-term rentals and
// to days for long-term rentals.
func DurationUnits(rentalType models.RentalType, start, end time.Time) float64 {
	elapsed := end.Sub(start)
	if rentalType == models.RentalTypeLongTerm {
		return elapsed.Hours() / 24
	}
	return elapsed.Hours()
}

// ComputeRentalPrice prices a rental of durationUnits (hours or days, see
// DurationUnits) at rate per unit. maxRentalPeriod caps the billable units;
// zero means the listing has no cap.
func ComputeRentalPrice(rate float64, rentalType models.RentalType, durationUnits float64, maxRentalPeriod int) (RentalQuote, error) {
	if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return RentalQuote{}, apperrors.Validation("rate", "must be a non-negative amount")
	}
	if durationUnits < 0 || math.IsNaN(durationUnits) || math.IsInf(durationUnits, 0) {
		return RentalQuote{}, apperrors.ErrInvalidDateRange
	}
	if !rentalType.Valid() {
		return RentalQuote{}, apperrors.Validation("rentalType", "must be short_term or long_term")
	}

	unit := UnitHour
	billable := int(math.Ceil(durationUnits))
	if rentalType == models.RentalTypeLongTerm {
		unit = UnitDay
		if billable < MinimumLongTermDays {
			billable = MinimumLongTermDays
		}
	}

	if maxRentalPeriod > 0 && billable > maxRentalPeriod {
		return RentalQuote{}, apperrors.Newf(apperrors.CodeDurationExceeded,
			"rental of %d %ss exceeds the maximum of %d", billable, unit, maxRentalPeriod)
	}

	// Round to 2 decimal places
	total := math.Round(rate*float64(billable)*100) / 100

	return RentalQuote{
		RentalType:    rentalType,
		Unit:          unit,
		DurationUnits: math.Round(durationUnits*100) / 100,
		BillableUnits: billable,
		Rate:          rate,
		TotalPrice:    total,
	}, nil
}
