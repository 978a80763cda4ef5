package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/mooveit-booking/internal/middleware"
	"github.com/chachabrian/mooveit-booking/internal/repository"
	"github.com/chachabrian/mooveit-booking/internal/services"
)

// CreateTrip publishes a trip driven by the caller
func CreateTrip(catalog *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.CreateTripRequest
		if !bindJSON(c, &req) {
			return
		}

		trip, err := catalog.CreateTrip(c.Request.Context(), middleware.UserID(c), req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(201, trip)
	}
}

// SearchTrips lists active trips, optionally by origin, destination and day
func SearchTrips(catalog *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query struct {
			From      string `form:"from"`
			To        string `form:"to"`
			Date      string `form:"date"`
			Available bool   `form:"available"`
		}
		if err := c.ShouldBindQuery(&query); err != nil {
			badRequest(c, "Invalid query: "+err.Error())
			return
		}

		filter := repository.TripFilter{From: query.From, To: query.To, OnlyAvailable: query.Available}
		if query.Date != "" {
			day, err := time.Parse(services.DateLayout, query.Date)
			if err != nil {
				badRequest(c, "date must be formatted as YYYY-MM-DD")
				return
			}
			filter.Date = &day
		}

		trips, err := catalog.SearchTrips(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, trips)
	}
}

func GetTrip(catalog *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		trip, err := catalog.GetTrip(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, trip)
	}
}

// ListMyTrips returns every trip the caller drives, including closed ones
func ListMyTrips(catalog *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		trips, err := catalog.ListDriverTrips(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, trips)
	}
}

// GetTripPassengers lists the bookings on a trip for its driver
func GetTripPassengers(catalog *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookings, err := catalog.ListTripPassengers(c.Request.Context(), c.Param("id"), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, bookings)
	}
}

func CompleteTrip(catalog *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		trip, err := catalog.CompleteTrip(c.Request.Context(), c.Param("id"), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, trip)
	}
}

func CancelTrip(catalog *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		trip, err := catalog.CancelTrip(c.Request.Context(), c.Param("id"), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, trip)
	}
}

// BookTrip reserves a seat on the trip for the caller
func BookTrip(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			PickupLocation string `json:"pickupLocation"`
			PickupTime     string `json:"pickupTime"`
			PhoneNumber    string `json:"phoneNumber"`
		}
		if !bindJSON(c, &input) {
			return
		}

		booking, err := bookings.BookTrip(c.Request.Context(), services.BookTripRequest{
			TripID:         c.Param("id"),
			PassengerID:    middleware.UserID(c),
			PickupLocation: input.PickupLocation,
			PickupTime:     input.PickupTime,
			PhoneNumber:    input.PhoneNumber,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(201, booking)
	}
}

// GetTripBookings retrieves all trip bookings of the caller
func GetTripBookings(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := bookings.ListTripBookings(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, list)
	}
}

func CancelTripBooking(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		booking, err := bookings.CancelTripBooking(c.Request.Context(), c.Param("id"), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, booking)
	}
}
