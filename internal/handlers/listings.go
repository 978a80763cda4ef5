package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/chachabrian/mooveit-booking/internal/middleware"
	"github.com/chachabrian/mooveit-booking/internal/models"
	"github.com/chachabrian/mooveit-booking/internal/services"
)

// rentalWindow is the date/time shape shared by quotes and bookings.
type rentalWindow struct {
	FromDate string `json:"fromDate" form:"fromDate"`
	ToDate   string `json:"toDate" form:"toDate"`
	FromTime string `json:"fromTime" form:"fromTime"`
	ToTime   string `json:"toTime" form:"toTime"`
}

// CreateListing offers one of the caller's vehicles for rent
func CreateListing(catalog *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.CreateListingRequest
		if !bindJSON(c, &req) {
			return
		}

		listing, err := catalog.CreateListing(c.Request.Context(), middleware.UserID(c), req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(201, listing)
	}
}

// SearchListings filters listings and, given lat/lng/radius, returns the
// nearest first
func SearchListings(catalog *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query struct {
			VehicleType string  `form:"vehicleType"`
			RentalType  string  `form:"rentalType"`
			City        string  `form:"city"`
			Lat         float64 `form:"lat"`
			Lng         float64 `form:"lng"`
			Radius      float64 `form:"radius"`
			Available   bool    `form:"available"`
		}
		if err := c.ShouldBindQuery(&query); err != nil {
			badRequest(c, "Invalid query: "+err.Error())
			return
		}
		if query.Radius < 0 {
			badRequest(c, "radius must not be negative")
			return
		}

		listings, err := catalog.SearchListings(c.Request.Context(), services.ListingSearch{
			VehicleType:   models.VehicleType(query.VehicleType),
			RentalType:    models.RentalType(query.RentalType),
			City:          query.City,
			Lat:           query.Lat,
			Lng:           query.Lng,
			RadiusKm:      query.Radius,
			OnlyAvailable: query.Available,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, listings)
	}
}

func GetListing(catalog *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		listing, err := catalog.GetListing(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, listing)
	}
}

// QuoteListing prices a rental window without booking it
func QuoteListing(catalog *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var window rentalWindow
		if err := c.ShouldBindQuery(&window); err != nil {
			badRequest(c, "Invalid query: "+err.Error())
			return
		}

		rng, err := services.ParseRentalRange(window.FromDate, window.ToDate, window.FromTime, window.ToTime)
		if err != nil {
			respondError(c, err)
			return
		}

		quote, err := catalog.QuoteListing(c.Request.Context(), c.Param("id"), rng)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, quote)
	}
}

// BookVehicle rents the listing to the caller for the requested window
func BookVehicle(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var window rentalWindow
		if !bindJSON(c, &window) {
			return
		}

		booking, err := bookings.BookVehicle(c.Request.Context(), services.BookVehicleRequest{
			ListingID: c.Param("id"),
			RenterID:  middleware.UserID(c),
			FromDate:  window.FromDate,
			ToDate:    window.ToDate,
			FromTime:  window.FromTime,
			ToTime:    window.ToTime,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(201, booking)
	}
}

func GetVehicleBookings(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := bookings.ListVehicleBookings(c.Request.Context(), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, list)
	}
}

func CancelVehicleBooking(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		booking, err := bookings.CancelVehicleBooking(c.Request.Context(), c.Param("id"), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, booking)
	}
}

// CompleteVehicleBooking is called by the listing owner once the vehicle is back
func CompleteVehicleBooking(bookings *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		booking, err := bookings.CompleteVehicleBooking(c.Request.Context(), c.Param("id"), middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, booking)
	}
}
