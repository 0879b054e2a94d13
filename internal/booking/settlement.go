package booking

import (
	"context"
	"errors"

	"github.com/chachabrian/rydio-backend/internal/models"
	"github.com/chachabrian/rydio-backend/pkg/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProcessPayment settles a completed booking: it measures the trip's road
// distance to split the total between owner and driver, charges the
// customer for the full amount, and commits the payment ledger entry,
// booking status and driver earnings in one transaction.
//
// The distance lookup runs before the transaction so no row is held across
// a network call, and a lookup failure degrades to a zero driver fee
// instead of blocking the payment. A charge failure is recorded as a
// failed ledger entry and mutates nothing else.
func (s *Service) ProcessPayment(ctx context.Context, actor Actor, bookingID uint, paymentMethodToken string) (*models.Payment, error) {
	if paymentMethodToken == "" {
		return nil, validationErrorf("payment method is required")
	}

	booking, err := s.findBooking(ctx, bookingID, "Vehicle", "Driver")
	if err != nil {
		return nil, err
	}
	if booking.CustomerID != actor.ID {
		return nil, authorizationErrorf("not authorized for this booking")
	}
	if !booking.Status.CanTransition(models.BookingStatusPaid) {
		return nil, conflictErrorf("booking must be completed to process payment")
	}
	if booking.Vehicle == nil {
		return nil, &NotFoundError{Entity: "vehicle"}
	}

	var distanceKm float64
	if booking.NeedsDriver && booking.DriverID != nil {
		distanceCtx, cancel := context.WithTimeout(ctx, s.cfg.ExternalTimeout)
		km, err := s.distance.DistanceKm(distanceCtx, booking.PickupLocation, booking.DropLocation)
		cancel()
		if err != nil {
			// Documented fallback: an unreachable distance service must not
			// block settlement, the driver fee defaults to zero.
			s.log.WithFields(logrus.Fields{
				"bookingId": bookingID,
			}).WithError(err).Warn("distance lookup failed, driver fee defaults to 0")
		} else {
			distanceKm = km
		}
	}

	split := utils.SplitFees(booking.TotalPrice, distanceKm, s.cfg.DriverRatePerKm)

	payment := &models.Payment{
		BookingID:   booking.ID,
		Amount:      booking.TotalPrice,
		Method:      "card",
		CustomerID:  booking.CustomerID,
		OwnerID:     booking.Vehicle.OwnerID,
		DriverID:    booking.DriverID,
		DriverFee:   split.DriverFee,
		OwnerAmount: split.OwnerAmount,
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.cfg.ExternalTimeout)
	result, chargeErr := s.charger.Charge(chargeCtx,
		utils.AmountToMinorUnits(booking.TotalPrice), s.cfg.Currency, paymentMethodToken)
	cancel()

	if chargeErr != nil || !result.Succeeded {
		// Failed attempts are recorded, not silently dropped.
		payment.Status = models.PaymentStatusFailed
		if result != nil {
			payment.ProviderRef = result.ProviderRef
		}
		if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
			s.log.WithError(err).Error("failed to record failed payment attempt")
		}
		if chargeErr == nil {
			chargeErr = errors.New("charge declined")
			if result.FailureReason != "" {
				chargeErr = errors.New(result.FailureReason)
			}
		}
		return nil, &DependencyError{Service: "charge provider", Err: chargeErr}
	}

	payment.Status = models.PaymentStatusCompleted
	payment.ProviderRef = result.ProviderRef

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	res := tx.Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, models.BookingStatusCompleted).
		Updates(map[string]interface{}{
			"status":     models.BookingStatusPaid,
			"driver_fee": split.DriverFee,
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, &InternalError{Err: res.Error}
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, conflictErrorf("booking is no longer awaiting payment")
	}

	if err := tx.Create(payment).Error; err != nil {
		tx.Rollback()
		return nil, &InternalError{Err: err}
	}

	if booking.NeedsDriver && booking.DriverID != nil {
		if err := tx.Model(&models.Driver{}).
			Where("user_id = ?", *booking.DriverID).
			Updates(map[string]interface{}{
				"earnings":    gorm.Expr("earnings + ?", split.DriverFee),
				"total_trips": gorm.Expr("total_trips + 1"),
			}).Error; err != nil {
			tx.Rollback()
			return nil, &InternalError{Err: err}
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, &InternalError{Err: err}
	}

	s.publishTransition(ctx, bookingID, models.BookingStatusPaid)

	s.log.WithFields(logrus.Fields{
		"bookingId":   bookingID,
		"amount":      payment.Amount,
		"driverFee":   payment.DriverFee,
		"ownerAmount": payment.OwnerAmount,
		"providerRef": payment.ProviderRef,
	}).Info("payment settled")

	return payment, nil
}
