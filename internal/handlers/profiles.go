package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/chachabrian/mooveit-booking/internal/middleware"
	"github.com/chachabrian/mooveit-booking/internal/services"
)

// CreateProfile registers the caller's public profile
func CreateProfile(profiles *services.ProfileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.CreateProfileRequest
		if !bindJSON(c, &req) {
			return
		}

		profile, err := profiles.CreateProfile(c.Request.Context(), middleware.UserID(c), req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(201, profile)
	}
}

func GetProfile(profiles *services.ProfileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := profiles.GetProfile(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, profile)
	}
}

// UpdateProfile lets users edit their own name, age and user type
func UpdateProfile(profiles *services.ProfileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.UpdateProfileRequest
		if !bindJSON(c, &req) {
			return
		}

		profile, err := profiles.UpdateProfile(c.Request.Context(), c.Param("id"), middleware.UserID(c), req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, profile)
	}
}

func ListRatings(profiles *services.ProfileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ratings, err := profiles.ListRatings(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, ratings)
	}
}

// SubmitRating records the caller's rating of the profile in the path
func SubmitRating(ratings *services.RatingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Rating int    `json:"rating"`
			Review string `json:"review"`
		}
		if !bindJSON(c, &input) {
			return
		}

		rating, err := ratings.SubmitRating(c.Request.Context(), services.RatingRequest{
			RaterID: middleware.UserID(c),
			RateeID: c.Param("id"),
			Score:   input.Rating,
			Review:  input.Review,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(201, rating)
	}
}
