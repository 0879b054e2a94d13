package handlers

import (
	"strconv"

	"github.com/chachabrian/rydio-backend/internal/booking"
	"github.com/gin-gonic/gin"
)

// GetDriverProfile returns the caller's driver profile
func GetDriverProfile(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		driver, err := svc.DriverProfile(c.Request.Context(), actorFrom(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, driver)
	}
}

// UpdateDriver updates a driver's location or availability
func UpdateDriver(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		driverID, err := strconv.ParseUint(c.Param("driverId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid driver ID"})
			return
		}

		var input struct {
			Location     *string `json:"location"`
			Availability *bool   `json:"availability"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		driver, err := svc.UpdateDriver(c.Request.Context(), actorFrom(c), uint(driverID), booking.UpdateDriverInput{
			Location:     input.Location,
			Availability: input.Availability,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "Driver updated", "driver": driver})
	}
}

// GetAvailableDrivers lists available drivers ranked by distance to the
// booking's pickup point (admin only)
func GetAvailableDrivers(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, err := strconv.ParseUint(c.Query("bookingId"), 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "bookingId query parameter is required"})
			return
		}

		drivers, err := svc.AvailableDrivers(c.Request.Context(), actorFrom(c), uint(bookingID))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"drivers": drivers})
	}
}

// GetDriverEarnings summarizes the caller's paid chauffeur trips
func GetDriverEarnings(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := svc.DriverEarnings(c.Request.Context(), actorFrom(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, summary)
	}
}
