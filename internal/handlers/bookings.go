package handlers

import (
	"strconv"
	"time"

	"github.com/chachabrian/rydio-backend/internal/booking"
	"github.com/chachabrian/rydio-backend/internal/services"
	"github.com/gin-gonic/gin"
)

func bookingIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid booking ID"})
		return 0, false
	}
	return uint(id), true
}

// CreateBooking handles the creation of a new booking
func CreateBooking(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			VehicleID    uint      `json:"vehicleId" binding:"required"`
			StartDate    time.Time `json:"startDate" binding:"required"`
			EndDate      time.Time `json:"endDate" binding:"required"`
			DropLocation string    `json:"dropLocation"`
			NeedsDriver  bool      `json:"needsDriver"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		b, err := svc.Create(c.Request.Context(), actorFrom(c), booking.CreateInput{
			VehicleID:    input.VehicleID,
			StartDate:    input.StartDate,
			EndDate:      input.EndDate,
			DropLocation: input.DropLocation,
			NeedsDriver:  input.NeedsDriver,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(201, gin.H{"message": "Booking created", "booking": b})
	}
}

// GetBookings lists the bookings visible to the caller's role
func GetBookings(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookings, err := svc.ListForActor(c.Request.Context(), actorFrom(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, bookings)
	}
}

// GetBooking retrieves a single booking with its parties
func GetBooking(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bookingIDParam(c)
		if !ok {
			return
		}

		b, err := svc.Get(c.Request.Context(), actorFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, b)
	}
}

// ApproveBooking lets the vehicle owner accept or decline a pending booking
func ApproveBooking(svc *booking.Service, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bookingIDParam(c)
		if !ok {
			return
		}

		var input struct {
			Approval *bool `json:"approval" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		b, err := svc.Approve(c.Request.Context(), actorFrom(c), id, *input.Approval)
		if err != nil {
			respondError(c, err)
			return
		}

		message := "Booking approved"
		if !*input.Approval {
			message = "Booking declined"
		}

		hub.SendBookingStatus(b.CustomerID, services.BookingStatusUpdate{
			BookingID: b.ID,
			Status:    string(b.Status),
			Message:   message,
		})

		c.JSON(200, gin.H{"message": message, "booking": b})
	}
}

// AssignDriver lets an admin attach an available driver to a booking.
// Assignment is admin-only; drivers do not self-assign.
func AssignDriver(svc *booking.Service, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bookingIDParam(c)
		if !ok {
			return
		}

		var input struct {
			DriverID uint `json:"driverId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		b, err := svc.AssignDriver(c.Request.Context(), actorFrom(c), id, input.DriverID)
		if err != nil {
			respondError(c, err)
			return
		}

		update := services.BookingStatusUpdate{
			BookingID: b.ID,
			Status:    string(b.Status),
			Message:   "Driver assigned",
		}
		hub.SendBookingStatus(b.CustomerID, update)
		hub.SendBookingStatus(input.DriverID, update)

		c.JSON(200, gin.H{"message": "Driver assigned successfully", "booking": b})
	}
}

// ConfirmPickup lets the assigned driver confirm pickup readiness
func ConfirmPickup(svc *booking.Service, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bookingIDParam(c)
		if !ok {
			return
		}

		b, err := svc.ConfirmPickup(c.Request.Context(), actorFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}

		hub.SendBookingStatus(b.CustomerID, services.BookingStatusUpdate{
			BookingID: b.ID,
			Status:    string(b.Status),
			Message:   "Driver confirmed pickup readiness",
		})

		c.JSON(200, gin.H{"message": "Pickup readiness confirmed", "booking": b})
	}
}

// CompleteTrip finishes the trip and releases the vehicle and driver
func CompleteTrip(svc *booking.Service, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bookingIDParam(c)
		if !ok {
			return
		}

		b, err := svc.CompleteTrip(c.Request.Context(), actorFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}

		hub.SendBookingStatus(b.CustomerID, services.BookingStatusUpdate{
			BookingID: b.ID,
			Status:    string(b.Status),
			Message:   "Trip completed",
		})

		c.JSON(200, gin.H{"message": "Trip completed", "booking": b})
	}
}

// CancelBooking lets the customer cancel before the trip starts
func CancelBooking(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bookingIDParam(c)
		if !ok {
			return
		}

		b, err := svc.Cancel(c.Request.Context(), actorFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "Booking cancelled", "booking": b})
	}
}

// CancelDriverRequest drops the chauffeur request before assignment
func CancelDriverRequest(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bookingIDParam(c)
		if !ok {
			return
		}

		b, err := svc.CancelDriverRequest(c.Request.Context(), actorFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "Driver request cancelled", "booking": b})
	}
}

// RateTrip records the customer's one-time trip rating
func RateTrip(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bookingIDParam(c)
		if !ok {
			return
		}

		var input struct {
			Rating int `json:"rating" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		b, err := svc.Rate(c.Request.Context(), actorFrom(c), id, input.Rating)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "Driver rated", "booking": b})
	}
}

// GetTripLocation returns pickup, drop and live position for a trip
func GetTripLocation(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bookingIDParam(c)
		if !ok {
			return
		}

		b, err := svc.TripLocation(c.Request.Context(), actorFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}

		response := gin.H{
			"pickupLocation":  b.PickupLocation,
			"dropLocation":    b.DropLocation,
			"currentLocation": nil,
		}
		if b.CurrentLat != nil && b.CurrentLng != nil {
			response["currentLocation"] = gin.H{
				"latitude":  *b.CurrentLat,
				"longitude": *b.CurrentLng,
				"updatedAt": b.LocationUpdatedAt,
			}
		}
		if b.Vehicle != nil {
			response["vehicleModel"] = b.Vehicle.CarModel
		}

		c.JSON(200, gin.H{"message": "Trip location retrieved", "location": response})
	}
}

// UpdateTripLocation stores the assigned driver's live position
func UpdateTripLocation(svc *booking.Service, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bookingIDParam(c)
		if !ok {
			return
		}

		var input struct {
			Latitude  *float64 `json:"latitude" binding:"required"`
			Longitude *float64 `json:"longitude" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		b, err := svc.UpdateTripLocation(c.Request.Context(), actorFrom(c), id, *input.Latitude, *input.Longitude)
		if err != nil {
			respondError(c, err)
			return
		}

		hub.SendTripLocation(b.CustomerID, services.TripLocationUpdate{
			BookingID: b.ID,
			Latitude:  *input.Latitude,
			Longitude: *input.Longitude,
		})

		c.JSON(200, gin.H{"message": "Location updated", "location": gin.H{
			"latitude":  *input.Latitude,
			"longitude": *input.Longitude,
			"updatedAt": b.LocationUpdatedAt,
		}})
	}
}
