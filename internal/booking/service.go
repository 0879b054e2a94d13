package booking

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/chachabrian/rydio-backend/internal/models"
	"github.com/chachabrian/rydio-backend/internal/services"
	"github.com/chachabrian/rydio-backend/pkg/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Actor identifies the authenticated caller of an engine operation.
type Actor struct {
	ID   uint
	Role models.UserRole
}

// DistanceService measures road distance in kilometers between two
// free-text locations. An error means the distance is unknown, which is
// distinct from a zero-kilometer trip.
type DistanceService interface {
	DistanceKm(ctx context.Context, origin, destination string) (float64, error)
}

// ChargeProvider captures funds from a payment method token.
type ChargeProvider interface {
	Charge(ctx context.Context, amountMinorUnits int64, currency, paymentMethodToken string) (*services.ChargeResult, error)
}

// Config holds the engine's tunables.
type Config struct {
	DriverRatePerKm float64
	Currency        string
	// ExternalTimeout bounds each distance and charge call.
	ExternalTimeout time.Duration
}

// ConfigFromEnv builds a Config from environment variables with defaults.
func ConfigFromEnv() Config {
	cfg := Config{
		DriverRatePerKm: utils.DefaultDriverRatePerKm,
		Currency:        utils.PaymentCurrency,
		ExternalTimeout: 10 * time.Second,
	}
	if v := os.Getenv("DRIVER_RATE_PER_KM"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil && rate > 0 {
			cfg.DriverRatePerKm = rate
		}
	}
	return cfg
}

// Service is the booking lifecycle engine. All vehicle and driver
// availability flags are flipped here, inside the same transaction as the
// booking status change they track.
type Service struct {
	db       *gorm.DB
	distance DistanceService
	charger  ChargeProvider
	cfg      Config
	log      *logrus.Logger
}

func NewService(db *gorm.DB, distance DistanceService, charger ChargeProvider, cfg Config, log *logrus.Logger) *Service {
	return &Service{
		db:       db,
		distance: distance,
		charger:  charger,
		cfg:      cfg,
		log:      log,
	}
}

// CreateInput carries the customer's booking request.
type CreateInput struct {
	VehicleID    uint
	StartDate    time.Time
	EndDate      time.Time
	DropLocation string
	NeedsDriver  bool
}

// Create books a vehicle for the customer. The vehicle must be approved
// and available; the availability flip is a guarded update so two
// concurrent creates against the same vehicle cannot both win.
func (s *Service) Create(ctx context.Context, actor Actor, input CreateInput) (*models.Booking, error) {
	if actor.Role != models.RoleCustomer {
		return nil, authorizationErrorf("only customers can create bookings")
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return nil, validationErrorf("start and end dates are required")
	}
	if !input.EndDate.After(input.StartDate) {
		return nil, validationErrorf("end date must be after start date")
	}

	var vehicle models.Vehicle
	if err := s.db.WithContext(ctx).First(&vehicle, input.VehicleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "vehicle"}
		}
		return nil, &InternalError{Err: err}
	}
	if !vehicle.IsApproved || !vehicle.Availability {
		return nil, conflictErrorf("vehicle not available or not approved")
	}
	if vehicle.Location == "" {
		return nil, validationErrorf("vehicle location not set")
	}

	pickupLocation := vehicle.Location
	dropLocation := input.DropLocation
	if dropLocation == "" {
		dropLocation = pickupLocation
	}

	booking := &models.Booking{
		CustomerID:     actor.ID,
		VehicleID:      vehicle.ID,
		StartDate:      input.StartDate,
		EndDate:        input.EndDate,
		PickupLocation: pickupLocation,
		DropLocation:   dropLocation,
		TotalPrice:     utils.RentalPrice(vehicle.Price, input.StartDate, input.EndDate),
		NeedsDriver:    input.NeedsDriver,
		Status:         models.BookingStatusPending,
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	res := tx.Model(&models.Vehicle{}).
		Where("id = ? AND availability = ? AND is_approved = ?", vehicle.ID, true, true).
		Update("availability", false)
	if res.Error != nil {
		tx.Rollback()
		return nil, &InternalError{Err: res.Error}
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, conflictErrorf("vehicle not available or not approved")
	}

	if err := tx.Create(booking).Error; err != nil {
		tx.Rollback()
		return nil, &InternalError{Err: err}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, &InternalError{Err: err}
	}

	s.log.WithFields(logrus.Fields{
		"bookingId":  booking.ID,
		"vehicleId":  vehicle.ID,
		"customerId": actor.ID,
		"totalPrice": booking.TotalPrice,
	}).Info("booking created")

	return booking, nil
}

// Approve lets the vehicle's owner accept or decline a pending booking.
// Declining restores the vehicle's availability.
func (s *Service) Approve(ctx context.Context, actor Actor, bookingID uint, approve bool) (*models.Booking, error) {
	booking, err := s.findBooking(ctx, bookingID, "Vehicle")
	if err != nil {
		return nil, err
	}
	if booking.Vehicle == nil || booking.Vehicle.OwnerID != actor.ID {
		return nil, authorizationErrorf("only the vehicle owner can approve this booking")
	}
	if booking.Status != models.BookingStatusPending {
		return nil, conflictErrorf("booking already processed")
	}

	newStatus := models.BookingStatusApproved
	if !approve {
		newStatus = models.BookingStatusCancelled
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	res := tx.Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, models.BookingStatusPending).
		Updates(map[string]interface{}{
			"status":         newStatus,
			"owner_approved": approve,
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, &InternalError{Err: res.Error}
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, conflictErrorf("booking already processed")
	}

	if !approve {
		if err := tx.Model(&models.Vehicle{}).
			Where("id = ?", booking.VehicleID).
			Update("availability", true).Error; err != nil {
			tx.Rollback()
			return nil, &InternalError{Err: err}
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, &InternalError{Err: err}
	}

	booking.Status = newStatus
	booking.OwnerApproved = approve
	s.publishTransition(ctx, bookingID, newStatus)

	s.log.WithFields(logrus.Fields{
		"bookingId": bookingID,
		"approved":  approve,
	}).Info("booking approval decided")

	return booking, nil
}

// AssignDriver attaches an available driver to an approved booking that
// needs one. Assignment is admin-only; both the driver's availability flag
// and the booking's empty driver slot are test-and-set in one transaction
// so the same driver cannot be handed two trips.
func (s *Service) AssignDriver(ctx context.Context, actor Actor, bookingID, driverUserID uint) (*models.Booking, error) {
	if actor.Role != models.RoleAdmin {
		return nil, authorizationErrorf("only admins can assign drivers")
	}

	var driver models.Driver
	if err := s.db.WithContext(ctx).Preload("User").
		Where("user_id = ?", driverUserID).First(&driver).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "driver"}
		}
		return nil, &InternalError{Err: err}
	}
	if driver.User == nil || driver.User.Role != models.RoleDriver {
		return nil, validationErrorf("selected user is not a driver")
	}
	if !driver.Availability {
		return nil, conflictErrorf("driver is currently unavailable")
	}

	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.NeedsDriver {
		return nil, conflictErrorf("booking does not require a driver")
	}
	if booking.DriverID != nil {
		return nil, conflictErrorf("a driver is already assigned to this booking")
	}
	if !booking.Status.CanTransition(models.BookingStatusAssigned) || !booking.OwnerApproved {
		return nil, conflictErrorf("booking must be approved by owner first")
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	res := tx.Model(&models.Driver{}).
		Where("user_id = ? AND availability = ?", driverUserID, true).
		Update("availability", false)
	if res.Error != nil {
		tx.Rollback()
		return nil, &InternalError{Err: res.Error}
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, conflictErrorf("driver is currently unavailable")
	}

	res = tx.Model(&models.Booking{}).
		Where("id = ? AND status = ? AND driver_id IS NULL", bookingID, models.BookingStatusApproved).
		Updates(map[string]interface{}{
			"driver_id": driverUserID,
			"status":    models.BookingStatusAssigned,
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, &InternalError{Err: res.Error}
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, conflictErrorf("booking is no longer eligible for assignment")
	}

	if err := tx.Commit().Error; err != nil {
		return nil, &InternalError{Err: err}
	}

	if err := services.SetDriverAvailability(ctx, driverUserID, false); err != nil {
		s.log.WithError(err).Warn("failed to mirror driver availability")
	}

	booking.DriverID = &driverUserID
	booking.Status = models.BookingStatusAssigned
	s.publishTransition(ctx, bookingID, models.BookingStatusAssigned)

	s.log.WithFields(logrus.Fields{
		"bookingId": bookingID,
		"driverId":  driverUserID,
	}).Info("driver assigned")

	return booking, nil
}

// ConfirmPickup records the assigned driver's readiness for pickup.
func (s *Service) ConfirmPickup(ctx context.Context, actor Actor, bookingID uint) (*models.Booking, error) {
	if actor.Role != models.RoleDriver {
		return nil, authorizationErrorf("not authorized as a driver")
	}

	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.DriverID == nil || *booking.DriverID != actor.ID {
		return nil, authorizationErrorf("not assigned to this booking")
	}
	if !booking.Status.CanTransition(models.BookingStatusPickupConfirmed) || booking.DriverConfirmed {
		return nil, conflictErrorf("cannot confirm pickup readiness at this stage")
	}

	res := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ? AND driver_id = ?", bookingID, models.BookingStatusAssigned, actor.ID).
		Updates(map[string]interface{}{
			"driver_confirmed": true,
			"status":           models.BookingStatusPickupConfirmed,
		})
	if res.Error != nil {
		return nil, &InternalError{Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return nil, conflictErrorf("cannot confirm pickup readiness at this stage")
	}

	booking.DriverConfirmed = true
	booking.Status = models.BookingStatusPickupConfirmed
	s.publishTransition(ctx, bookingID, models.BookingStatusPickupConfirmed)
	return booking, nil
}

// CompleteTrip moves a booking to completed and releases the vehicle (and
// driver, when one was involved). With a driver the assigned driver
// completes from pickup-confirmed; without one the customer completes
// directly from approved.
func (s *Service) CompleteTrip(ctx context.Context, actor Actor, bookingID uint) (*models.Booking, error) {
	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.NeedsDriver && booking.DriverID != nil {
		if actor.Role != models.RoleDriver || *booking.DriverID != actor.ID {
			return nil, authorizationErrorf("not assigned to this booking")
		}
		if !booking.Status.CanTransition(models.BookingStatusCompleted) {
			return nil, conflictErrorf("pickup must be confirmed before completion")
		}
	} else {
		if booking.CustomerID != actor.ID {
			return nil, authorizationErrorf("not authorized for this booking")
		}
		if booking.NeedsDriver {
			return nil, conflictErrorf("booking is waiting for a driver")
		}
		if !booking.Status.CanTransition(models.BookingStatusCompleted) {
			return nil, conflictErrorf("booking is not in progress")
		}
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// Guarded on the snapshot status: if the booking moved concurrently the
	// update hits nothing and the whole operation is rejected.
	res := tx.Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, booking.Status).
		Update("status", models.BookingStatusCompleted)
	if res.Error != nil {
		tx.Rollback()
		return nil, &InternalError{Err: res.Error}
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, conflictErrorf("booking is no longer eligible for completion")
	}

	if err := tx.Model(&models.Vehicle{}).
		Where("id = ?", booking.VehicleID).
		Update("availability", true).Error; err != nil {
		tx.Rollback()
		return nil, &InternalError{Err: err}
	}

	if booking.DriverID != nil {
		if err := tx.Model(&models.Driver{}).
			Where("user_id = ?", *booking.DriverID).
			Update("availability", true).Error; err != nil {
			tx.Rollback()
			return nil, &InternalError{Err: err}
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, &InternalError{Err: err}
	}

	if booking.DriverID != nil {
		if err := services.SetDriverAvailability(ctx, *booking.DriverID, true); err != nil {
			s.log.WithError(err).Warn("failed to mirror driver availability")
		}
	}

	booking.Status = models.BookingStatusCompleted
	s.publishTransition(ctx, bookingID, models.BookingStatusCompleted)

	s.log.WithField("bookingId", bookingID).Info("trip completed")

	return booking, nil
}

// Cancel lets the booking's customer abandon a booking before the trip has
// started. The vehicle is released, and an already assigned driver is
// freed and cleared from the booking.
func (s *Service) Cancel(ctx context.Context, actor Actor, bookingID uint) (*models.Booking, error) {
	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.CustomerID != actor.ID {
		return nil, authorizationErrorf("not authorized for this booking")
	}

	// Cancellable until the driver confirms pickup readiness.
	if !booking.Status.CanTransition(models.BookingStatusCancelled) {
		return nil, conflictErrorf("booking can no longer be cancelled")
	}

	assignedDriver := booking.DriverID

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// The snapshot status guard keeps the driver snapshot coherent: driver
	// assignment always changes the status, so a stale driver pointer also
	// means a failed guard here.
	res := tx.Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, booking.Status).
		Updates(map[string]interface{}{
			"status":    models.BookingStatusCancelled,
			"driver_id": nil,
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, &InternalError{Err: res.Error}
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, conflictErrorf("booking can no longer be cancelled")
	}

	if err := tx.Model(&models.Vehicle{}).
		Where("id = ?", booking.VehicleID).
		Update("availability", true).Error; err != nil {
		tx.Rollback()
		return nil, &InternalError{Err: err}
	}

	if assignedDriver != nil {
		if err := tx.Model(&models.Driver{}).
			Where("user_id = ?", *assignedDriver).
			Update("availability", true).Error; err != nil {
			tx.Rollback()
			return nil, &InternalError{Err: err}
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, &InternalError{Err: err}
	}

	if assignedDriver != nil {
		if err := services.SetDriverAvailability(ctx, *assignedDriver, true); err != nil {
			s.log.WithError(err).Warn("failed to mirror driver availability")
		}
	}

	booking.Status = models.BookingStatusCancelled
	booking.DriverID = nil
	s.publishTransition(ctx, bookingID, models.BookingStatusCancelled)

	s.log.WithField("bookingId", bookingID).Info("booking cancelled")

	return booking, nil
}

// CancelDriverRequest drops the chauffeur request on an approved booking
// before any driver has been assigned. The booking itself stays approved.
func (s *Service) CancelDriverRequest(ctx context.Context, actor Actor, bookingID uint) (*models.Booking, error) {
	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.CustomerID != actor.ID {
		return nil, authorizationErrorf("not authorized for this booking")
	}
	if booking.Status != models.BookingStatusApproved || !booking.NeedsDriver || booking.DriverID != nil {
		return nil, conflictErrorf("driver request can no longer be cancelled")
	}

	res := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ? AND needs_driver = ? AND driver_id IS NULL",
			bookingID, models.BookingStatusApproved, true).
		Update("needs_driver", false)
	if res.Error != nil {
		return nil, &InternalError{Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return nil, conflictErrorf("driver request can no longer be cancelled")
	}

	booking.NeedsDriver = false
	return booking, nil
}

// Rate records the customer's one-time trip rating and folds it into the
// driver's running average as (existing + rating) / 2 when an average
// already exists. The fold is intentionally the historical two-point
// average, not a weighted mean over all trips.
func (s *Service) Rate(ctx context.Context, actor Actor, bookingID uint, rating int) (*models.Booking, error) {
	if rating < 1 || rating > 5 {
		return nil, validationErrorf("rating must be between 1 and 5")
	}

	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.CustomerID != actor.ID {
		return nil, authorizationErrorf("not authorized for this booking")
	}
	if booking.Status != models.BookingStatusCompleted && booking.Status != models.BookingStatusPaid {
		return nil, conflictErrorf("trip is not completed yet")
	}
	if booking.Rating != nil {
		return nil, conflictErrorf("booking already rated")
	}
	if booking.DriverID == nil {
		return nil, conflictErrorf("booking has no driver to rate")
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	res := tx.Model(&models.Booking{}).
		Where("id = ? AND rating IS NULL AND status IN ?", bookingID,
			[]models.BookingStatus{models.BookingStatusCompleted, models.BookingStatusPaid}).
		Update("rating", rating)
	if res.Error != nil {
		tx.Rollback()
		return nil, &InternalError{Err: res.Error}
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, conflictErrorf("booking already rated")
	}

	if err := tx.Model(&models.Driver{}).
		Where("user_id = ?", *booking.DriverID).
		Update("average_rating", gorm.Expr(
			"CASE WHEN average_rating > 0 THEN (average_rating + ?) / 2.0 ELSE ? END",
			float64(rating), float64(rating),
		)).Error; err != nil {
		tx.Rollback()
		return nil, &InternalError{Err: err}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, &InternalError{Err: err}
	}

	booking.Rating = &rating

	s.log.WithFields(logrus.Fields{
		"bookingId": bookingID,
		"rating":    rating,
	}).Info("trip rated")

	return booking, nil
}

// UpdateTripLocation stores the assigned driver's live position on the
// booking.
func (s *Service) UpdateTripLocation(ctx context.Context, actor Actor, bookingID uint, lat, lng float64) (*models.Booking, error) {
	if actor.Role != models.RoleDriver {
		return nil, authorizationErrorf("not authorized as a driver")
	}

	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.DriverID == nil || *booking.DriverID != actor.ID {
		return nil, authorizationErrorf("not assigned to this booking")
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ?", bookingID).
		Updates(map[string]interface{}{
			"current_lat":         lat,
			"current_lng":         lng,
			"location_updated_at": now,
		}).Error; err != nil {
		return nil, &InternalError{Err: err}
	}

	booking.CurrentLat = &lat
	booking.CurrentLng = &lng
	booking.LocationUpdatedAt = &now
	return booking, nil
}

// TripLocation returns the pickup, drop and live position of a booking for
// its customer or assigned driver.
func (s *Service) TripLocation(ctx context.Context, actor Actor, bookingID uint) (*models.Booking, error) {
	booking, err := s.findBooking(ctx, bookingID, "Vehicle")
	if err != nil {
		return nil, err
	}
	isCustomer := booking.CustomerID == actor.ID
	isDriver := booking.DriverID != nil && *booking.DriverID == actor.ID
	if !isCustomer && !isDriver {
		return nil, authorizationErrorf("not authorized for this booking")
	}
	return booking, nil
}

// publishTransition fans the status change out over redis pub/sub for any
// other instance holding the interested websocket connections.
func (s *Service) publishTransition(ctx context.Context, bookingID uint, status models.BookingStatus) {
	if err := services.PublishBookingUpdate(ctx, bookingID, string(status), nil); err != nil {
		s.log.WithError(err).Warn("failed to publish booking update")
	}
}

func (s *Service) findBooking(ctx context.Context, bookingID uint, preloads ...string) (*models.Booking, error) {
	q := s.db.WithContext(ctx)
	for _, preload := range preloads {
		q = q.Preload(preload)
	}
	var booking models.Booking
	if err := q.First(&booking, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "booking"}
		}
		return nil, &InternalError{Err: err}
	}
	return &booking, nil
}
