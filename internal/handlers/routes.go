package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/mooveit-booking/internal/middleware"
	"github.com/chachabrian/mooveit-booking/internal/services"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Health answers 200 when every check passes and 503 otherwise.
func Health(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := 200
		results := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = 503
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		state := "ok"
		if status != 200 {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	}
}

// RegisterRoutes mounts the booking API under /api.
func RegisterRoutes(r *gin.Engine, svc *services.Services, jwtSecret string, checks map[string]HealthCheck) {
	api := r.Group("/api")
	{
		api.GET("/health", Health(checks))

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			profiles := protected.Group("/profiles")
			{
				profiles.POST("", CreateProfile(svc.Profiles))
				profiles.GET("/:id", GetProfile(svc.Profiles))
				profiles.PUT("/:id", UpdateProfile(svc.Profiles))
				profiles.GET("/:id/ratings", ListRatings(svc.Profiles))
				profiles.POST("/:id/ratings", SubmitRating(svc.Ratings))
			}

			trips := protected.Group("/trips")
			{
				trips.POST("", CreateTrip(svc.Catalog))
				trips.GET("", SearchTrips(svc.Catalog))
				trips.GET("/mine", ListMyTrips(svc.Catalog))
				trips.GET("/:id", GetTrip(svc.Catalog))
				trips.GET("/:id/bookings", GetTripPassengers(svc.Catalog))
				trips.POST("/:id/bookings", BookTrip(svc.Bookings))
				trips.POST("/:id/complete", CompleteTrip(svc.Catalog))
				trips.POST("/:id/cancel", CancelTrip(svc.Catalog))
			}

			tripBookings := protected.Group("/trip-bookings")
			{
				tripBookings.GET("", GetTripBookings(svc.Bookings))
				tripBookings.POST("/:id/cancel", CancelTripBooking(svc.Bookings))
			}

			listings := protected.Group("/listings")
			{
				listings.POST("", CreateListing(svc.Catalog))
				listings.GET("", SearchListings(svc.Catalog))
				listings.GET("/:id", GetListing(svc.Catalog))
				listings.GET("/:id/quote", QuoteListing(svc.Catalog))
				listings.POST("/:id/bookings", BookVehicle(svc.Bookings))
			}

			vehicleBookings := protected.Group("/vehicle-bookings")
			{
				vehicleBookings.GET("", GetVehicleBookings(svc.Bookings))
				vehicleBookings.POST("/:id/cancel", CancelVehicleBooking(svc.Bookings))
				vehicleBookings.POST("/:id/complete", CompleteVehicleBooking(svc.Bookings))
			}
		}
	}
}
