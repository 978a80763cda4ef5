package services

import (
	"github.com/sirupsen/logrus"

	"github.com/chachabrian/mooveit-booking/internal/config"
	"github.com/chachabrian/mooveit-booking/internal/repository"
)

// Services bundles the components built over one store.
type Services struct {
	Ledger      *Ledger
	Compensator *Compensator
	Bookings    *BookingService
	Ratings     *RatingService
	Catalog     *CatalogService
	Profiles    *ProfileService
}

func New(store repository.Store, queue ReconciliationQueue, cfg config.Compensation, log *logrus.Logger) *Services {
	ledger := NewLedger(store, log)
	compensator := NewCompensator(ledger, queue, cfg, log)

	return &Services{
		Ledger:      ledger,
		Compensator: compensator,
		Bookings:    NewBookingService(store, ledger, compensator, log),
		Ratings:     NewRatingService(store, log),
		Catalog:     NewCatalogService(store, log),
		Profiles:    NewProfileService(store, log),
	}
}
