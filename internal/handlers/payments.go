package handlers

import (
	"github.com/chachabrian/rydio-backend/internal/booking"
	"github.com/chachabrian/rydio-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// ProcessPayment charges the customer for a completed trip and settles
// the owner and driver shares
func ProcessPayment(svc *booking.Service, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := bookingIDParam(c)
		if !ok {
			return
		}

		var input struct {
			PaymentMethodID string `json:"paymentMethodId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		payment, err := svc.ProcessPayment(c.Request.Context(), actorFrom(c), id, input.PaymentMethodID)
		if err != nil {
			respondError(c, err)
			return
		}

		update := services.BookingStatusUpdate{
			BookingID: payment.BookingID,
			Status:    "paid",
			Message:   "Payment received",
		}
		hub.SendBookingStatus(payment.OwnerID, update)
		if payment.DriverID != nil {
			hub.SendBookingStatus(*payment.DriverID, update)
		}

		c.JSON(200, gin.H{"message": "Payment processed successfully", "payment": payment})
	}
}

// GetAllPayments returns the full payment ledger (admin only)
func GetAllPayments(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		payments, err := svc.ListPayments(c.Request.Context(), actorFrom(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, payments)
	}
}

// GetOwnerEarnings summarizes completed payments on the caller's vehicles
func GetOwnerEarnings(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := svc.OwnerEarnings(c.Request.Context(), actorFrom(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, summary)
	}
}
