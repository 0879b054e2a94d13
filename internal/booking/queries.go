package booking

import (
	"context"
	"errors"
	"sort"

	"github.com/chachabrian/rydio-backend/internal/models"
	"github.com/chachabrian/rydio-backend/internal/services"
	"github.com/chachabrian/rydio-backend/pkg/utils"
	"gorm.io/gorm"
)

// Get returns a booking to any party involved in it (customer, vehicle
// owner, assigned driver) or to an admin.
func (s *Service) Get(ctx context.Context, actor Actor, bookingID uint) (*models.Booking, error) {
	booking, err := s.findBooking(ctx, bookingID, "Vehicle", "Customer", "Driver")
	if err != nil {
		return nil, err
	}

	allowed := actor.Role == models.RoleAdmin ||
		booking.CustomerID == actor.ID ||
		(booking.Vehicle != nil && booking.Vehicle.OwnerID == actor.ID) ||
		(booking.DriverID != nil && *booking.DriverID == actor.ID)
	if !allowed {
		return nil, authorizationErrorf("not authorized for this booking")
	}
	return booking, nil
}

// ListForActor returns the bookings relevant to the caller's role:
// customers see their own, owners see pending approvals on their vehicles,
// drivers see their assignments, admins see everything.
func (s *Service) ListForActor(ctx context.Context, actor Actor) ([]models.Booking, error) {
	var bookings []models.Booking
	q := s.db.WithContext(ctx).Preload("Vehicle").Preload("Customer").Preload("Driver")

	switch actor.Role {
	case models.RoleCustomer:
		q = q.Where("customer_id = ?", actor.ID)
	case models.RoleOwner:
		q = q.Joins("JOIN vehicles ON vehicles.id = bookings.vehicle_id").
			Where("vehicles.owner_id = ?", actor.ID).
			Where("bookings.status = ? AND bookings.owner_approved = ?", models.BookingStatusPending, false)
	case models.RoleDriver:
		q = q.Where("driver_id = ?", actor.ID)
	case models.RoleAdmin:
		// no filter
	default:
		return nil, authorizationErrorf("not authorized")
	}

	if err := q.Order("created_at DESC").Find(&bookings).Error; err != nil {
		return nil, &InternalError{Err: err}
	}
	return bookings, nil
}

// EarningsDetail is one settled trip in an earnings summary.
type EarningsDetail struct {
	BookingID uint    `json:"bookingId"`
	Vehicle   string  `json:"vehicle"`
	Amount    float64 `json:"amount"`
	Date      string  `json:"date"`
}

// EarningsSummary aggregates a driver's or owner's settled trips.
type EarningsSummary struct {
	TotalEarnings     float64          `json:"totalEarnings"`
	CompletedBookings int              `json:"completedBookings"`
	Details           []EarningsDetail `json:"details"`
}

// DriverEarnings summarizes the caller's paid chauffeur trips.
func (s *Service) DriverEarnings(ctx context.Context, actor Actor) (*EarningsSummary, error) {
	if actor.Role != models.RoleDriver {
		return nil, authorizationErrorf("not authorized as a driver")
	}

	var bookings []models.Booking
	if err := s.db.WithContext(ctx).Preload("Vehicle").
		Where("driver_id = ? AND status = ?", actor.ID, models.BookingStatusPaid).
		Order("end_date DESC").
		Find(&bookings).Error; err != nil {
		return nil, &InternalError{Err: err}
	}

	summary := &EarningsSummary{Details: make([]EarningsDetail, 0, len(bookings))}
	for _, b := range bookings {
		detail := EarningsDetail{
			BookingID: b.ID,
			Vehicle:   "N/A",
			Amount:    b.DriverFee,
			Date:      b.EndDate.Format("2006-01-02"),
		}
		if b.Vehicle != nil {
			detail.Vehicle = b.Vehicle.CarModel
		}
		summary.TotalEarnings += detail.Amount
		summary.Details = append(summary.Details, detail)
	}
	summary.CompletedBookings = len(summary.Details)
	return summary, nil
}

// OwnerEarnings summarizes completed payments on the caller's vehicles.
func (s *Service) OwnerEarnings(ctx context.Context, actor Actor) (*EarningsSummary, error) {
	if actor.Role != models.RoleOwner {
		return nil, authorizationErrorf("not authorized as an owner")
	}

	var payments []models.Payment
	if err := s.db.WithContext(ctx).Preload("Booking").Preload("Booking.Vehicle").
		Where("owner_id = ? AND status = ?", actor.ID, models.PaymentStatusCompleted).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		return nil, &InternalError{Err: err}
	}

	summary := &EarningsSummary{Details: make([]EarningsDetail, 0, len(payments))}
	for _, p := range payments {
		detail := EarningsDetail{
			BookingID: p.BookingID,
			Vehicle:   "N/A",
			Amount:    p.OwnerAmount,
			Date:      p.CreatedAt.Format("2006-01-02"),
		}
		if p.Booking != nil && p.Booking.Vehicle != nil {
			detail.Vehicle = p.Booking.Vehicle.CarModel
		}
		summary.TotalEarnings += detail.Amount
		summary.Details = append(summary.Details, detail)
	}
	summary.CompletedBookings = len(summary.Details)
	return summary, nil
}

// ListPayments returns the full payment ledger to admins.
func (s *Service) ListPayments(ctx context.Context, actor Actor) ([]models.Payment, error) {
	if actor.Role != models.RoleAdmin {
		return nil, authorizationErrorf("only admins can view all payments")
	}

	var payments []models.Payment
	if err := s.db.WithContext(ctx).
		Preload("Customer").Preload("Owner").Preload("Driver").Preload("Booking").
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		return nil, &InternalError{Err: err}
	}
	return payments, nil
}

// AvailableDrivers lists available drivers for a booking ranked by road
// distance from the driver's last known location to the pickup point.
// Drivers without a usable distance sort last. The ranking is cached
// briefly since each entry costs a geocoding round trip.
func (s *Service) AvailableDrivers(ctx context.Context, actor Actor, bookingID uint) ([]map[string]interface{}, error) {
	if actor.Role != models.RoleAdmin {
		return nil, authorizationErrorf("only admins can view available drivers")
	}

	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.PickupLocation == "" {
		return nil, validationErrorf("booking has no pickup location")
	}

	if cached, err := services.GetRankedDrivers(ctx, bookingID); err == nil {
		return cached, nil
	}

	var drivers []models.Driver
	if err := s.db.WithContext(ctx).Preload("User").
		Where("availability = ?", true).
		Find(&drivers).Error; err != nil {
		return nil, &InternalError{Err: err}
	}

	type rankedDriver struct {
		entry    map[string]interface{}
		distance float64
		known    bool
	}

	ranked := make([]rankedDriver, 0, len(drivers))
	for _, d := range drivers {
		entry := map[string]interface{}{
			"driverId":      d.UserID,
			"location":      d.Location,
			"averageRating": d.AverageRating,
			"totalTrips":    d.TotalTrips,
		}
		if d.User != nil {
			entry["name"] = d.User.Name
		}

		rd := rankedDriver{entry: entry}
		if d.Location != "" {
			distanceCtx, cancel := context.WithTimeout(ctx, s.cfg.ExternalTimeout)
			km, err := s.distance.DistanceKm(distanceCtx, d.Location, booking.PickupLocation)
			cancel()
			if err != nil {
				s.log.WithError(err).Warn("driver distance lookup failed")
				entry["distanceKm"] = nil
			} else {
				entry["distanceKm"] = km
				entry["etaMinutes"] = utils.CalculateETA(km, 30)
				rd.distance = km
				rd.known = true
			}
		} else {
			entry["distanceKm"] = nil
		}
		ranked = append(ranked, rd)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].known != ranked[j].known {
			return ranked[i].known
		}
		return ranked[i].distance < ranked[j].distance
	})

	result := make([]map[string]interface{}, len(ranked))
	for i, rd := range ranked {
		result[i] = rd.entry
	}

	if err := services.SetRankedDrivers(ctx, bookingID, result); err != nil {
		s.log.WithError(err).Warn("failed to cache ranked drivers")
	}

	return result, nil
}

// DriverProfile returns the caller's driver profile.
func (s *Service) DriverProfile(ctx context.Context, actor Actor) (*models.Driver, error) {
	if actor.Role != models.RoleDriver {
		return nil, authorizationErrorf("not authorized as a driver")
	}

	var driver models.Driver
	if err := s.db.WithContext(ctx).Preload("User").
		Where("user_id = ?", actor.ID).First(&driver).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "driver"}
		}
		return nil, &InternalError{Err: err}
	}
	return &driver, nil
}

// UpdateDriverInput carries optional driver profile changes.
type UpdateDriverInput struct {
	Location     *string
	Availability *bool
}

// UpdateDriver updates a driver's location or availability. Only the
// driver themselves or an admin may call it, and it refuses to mark a
// driver available while they still hold an active assignment so the flag
// cannot drift from booking state.
func (s *Service) UpdateDriver(ctx context.Context, actor Actor, driverUserID uint, input UpdateDriverInput) (*models.Driver, error) {
	if actor.Role != models.RoleAdmin && actor.ID != driverUserID {
		return nil, authorizationErrorf("not authorized to update this driver")
	}

	var driver models.Driver
	if err := s.db.WithContext(ctx).Where("user_id = ?", driverUserID).First(&driver).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "driver"}
		}
		return nil, &InternalError{Err: err}
	}

	updates := map[string]interface{}{}
	if input.Location != nil {
		updates["location"] = *input.Location
		driver.Location = *input.Location
	}
	if input.Availability != nil {
		if *input.Availability {
			var active int64
			if err := s.db.WithContext(ctx).Model(&models.Booking{}).
				Where("driver_id = ? AND status IN ?", driverUserID,
					[]models.BookingStatus{models.BookingStatusAssigned, models.BookingStatusPickupConfirmed}).
				Count(&active).Error; err != nil {
				return nil, &InternalError{Err: err}
			}
			if active > 0 {
				return nil, conflictErrorf("driver still holds an active assignment")
			}
		}
		updates["availability"] = *input.Availability
		driver.Availability = *input.Availability
	}

	if len(updates) == 0 {
		return &driver, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Driver{}).
		Where("user_id = ?", driverUserID).
		Updates(updates).Error; err != nil {
		return nil, &InternalError{Err: err}
	}

	if input.Availability != nil {
		if err := services.SetDriverAvailability(ctx, driverUserID, *input.Availability); err != nil {
			s.log.WithError(err).Warn("failed to mirror driver availability")
		}
	}

	return &driver, nil
}
