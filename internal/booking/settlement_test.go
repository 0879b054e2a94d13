package booking

import (
	"context"
	"strings"
	"testing"

	"github.com/chachabrian/rydio-backend/internal/models"
	"github.com/chachabrian/rydio-backend/internal/services"
)

// setupCompletedBooking drives a fresh booking to completed so settlement
// can start from a clean state.
func setupCompletedBooking(t *testing.T, svc *Service, needsDriver bool) (customer, driverUser *models.User, booking *models.Booking) {
	t.Helper()
	ctx := context.Background()
	db := svc.db

	owner := seedUser(t, db, models.RoleOwner)
	customer = seedUser(t, db, models.RoleCustomer)
	vehicle := seedVehicle(t, db, owner.ID)
	start, end := rentalDates()

	var err error
	booking, err = svc.Create(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer}, CreateInput{
		VehicleID:    vehicle.ID,
		StartDate:    start,
		EndDate:      end,
		DropLocation: "Kumasi",
		NeedsDriver:  needsDriver,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Approve(ctx, Actor{ID: owner.ID, Role: models.RoleOwner}, booking.ID, true); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	if needsDriver {
		driverUser = seedUser(t, db, models.RoleDriver)
		admin := seedUser(t, db, models.RoleAdmin)
		seedDriver(t, db, driverUser.ID)
		if _, err := svc.AssignDriver(ctx, Actor{ID: admin.ID, Role: models.RoleAdmin}, booking.ID, driverUser.ID); err != nil {
			t.Fatalf("AssignDriver failed: %v", err)
		}
		if _, err := svc.ConfirmPickup(ctx, Actor{ID: driverUser.ID, Role: models.RoleDriver}, booking.ID); err != nil {
			t.Fatalf("ConfirmPickup failed: %v", err)
		}
		if _, err := svc.CompleteTrip(ctx, Actor{ID: driverUser.ID, Role: models.RoleDriver}, booking.ID); err != nil {
			t.Fatalf("CompleteTrip failed: %v", err)
		}
	} else {
		if _, err := svc.CompleteTrip(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer}, booking.ID); err != nil {
			t.Fatalf("CompleteTrip failed: %v", err)
		}
	}
	return customer, driverUser, booking
}

func TestProcessPaymentSettlesDriverAndOwner(t *testing.T) {
	db := newTestDB(t)
	charger := &fakeCharger{result: &services.ChargeResult{Succeeded: true, ProviderRef: "pi_test_1"}}
	svc := newTestService(t, db, &fakeDistance{km: 10}, charger)
	ctx := context.Background()

	customer, driverUser, booking := setupCompletedBooking(t, svc, true)

	payment, err := svc.ProcessPayment(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer}, booking.ID, "pm_card_visa")
	if err != nil {
		t.Fatalf("ProcessPayment failed: %v", err)
	}

	// 10 km at the default 15/km rate.
	if payment.DriverFee != 150 {
		t.Fatalf("expected driver fee 150, got %v", payment.DriverFee)
	}
	if payment.OwnerAmount+payment.DriverFee != payment.Amount {
		t.Fatalf("split does not sum to total: owner=%v driver=%v total=%v",
			payment.OwnerAmount, payment.DriverFee, payment.Amount)
	}
	if payment.Status != models.PaymentStatusCompleted {
		t.Fatalf("expected completed payment, got %s", payment.Status)
	}
	if payment.ProviderRef != "pi_test_1" {
		t.Fatalf("expected provider ref recorded, got %q", payment.ProviderRef)
	}
	if charger.calls != 1 {
		t.Fatalf("expected exactly one charge attempt, got %d", charger.calls)
	}

	var stored models.Booking
	if err := db.First(&stored, booking.ID).Error; err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if stored.Status != models.BookingStatusPaid {
		t.Fatalf("expected paid booking, got %s", stored.Status)
	}
	if stored.DriverFee != 150 {
		t.Fatalf("expected driver fee persisted on booking, got %v", stored.DriverFee)
	}

	var driver models.Driver
	if err := db.Where("user_id = ?", driverUser.ID).First(&driver).Error; err != nil {
		t.Fatalf("failed to reload driver: %v", err)
	}
	if driver.Earnings != 150 {
		t.Fatalf("expected driver earnings 150, got %v", driver.Earnings)
	}
	if driver.TotalTrips != 1 {
		t.Fatalf("expected one counted trip, got %d", driver.TotalTrips)
	}
}

func TestProcessPaymentDistanceFailureZeroesFee(t *testing.T) {
	db := newTestDB(t)
	charger := &fakeCharger{result: &services.ChargeResult{Succeeded: true, ProviderRef: "pi_test_2"}}
	svc := newTestService(t, db, &fakeDistance{err: services.ErrNoRoute}, charger)
	ctx := context.Background()

	customer, driverUser, booking := setupCompletedBooking(t, svc, true)

	payment, err := svc.ProcessPayment(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer}, booking.ID, "pm_card_visa")
	if err != nil {
		t.Fatalf("ProcessPayment failed: %v", err)
	}
	if payment.DriverFee != 0 {
		t.Fatalf("unknown distance should default the driver fee to 0, got %v", payment.DriverFee)
	}
	if payment.OwnerAmount != payment.Amount {
		t.Fatalf("owner should receive the full amount, got %v of %v", payment.OwnerAmount, payment.Amount)
	}

	var driver models.Driver
	if err := db.Where("user_id = ?", driverUser.ID).First(&driver).Error; err != nil {
		t.Fatalf("failed to reload driver: %v", err)
	}
	if driver.Earnings != 0 {
		t.Fatalf("driver earnings should stay 0, got %v", driver.Earnings)
	}
	if driver.TotalTrips != 1 {
		t.Fatalf("trip should still be counted, got %d", driver.TotalTrips)
	}
}

func TestProcessPaymentChargeFailureRecordsLedgerOnly(t *testing.T) {
	db := newTestDB(t)
	charger := &fakeCharger{result: &services.ChargeResult{Succeeded: false, FailureReason: "card declined: insufficient funds"}, err: nil}
	svc := newTestService(t, db, &fakeDistance{km: 10}, charger)
	ctx := context.Background()

	customer, driverUser, booking := setupCompletedBooking(t, svc, true)

	var dependency *DependencyError
	_, err := svc.ProcessPayment(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer}, booking.ID, "pm_card_declined")
	if !asError(err, &dependency) {
		t.Fatalf("expected dependency error on declined charge, got %v", err)
	}
	if !strings.Contains(dependency.Error(), "insufficient funds") {
		t.Fatalf("decline reason should surface in the error, got %q", dependency.Error())
	}

	// The attempt is recorded but nothing else moves.
	var failed models.Payment
	if err := db.Where("booking_id = ? AND status = ?", booking.ID, models.PaymentStatusFailed).First(&failed).Error; err != nil {
		t.Fatalf("expected a failed ledger entry: %v", err)
	}

	var stored models.Booking
	if err := db.First(&stored, booking.ID).Error; err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if stored.Status != models.BookingStatusCompleted {
		t.Fatalf("booking should stay completed after a failed charge, got %s", stored.Status)
	}

	var driver models.Driver
	if err := db.Where("user_id = ?", driverUser.ID).First(&driver).Error; err != nil {
		t.Fatalf("failed to reload driver: %v", err)
	}
	if driver.Earnings != 0 || driver.TotalTrips != 0 {
		t.Fatalf("driver must not be credited on a failed charge: earnings=%v trips=%d",
			driver.Earnings, driver.TotalTrips)
	}

	// Retrying with a working card settles normally.
	charger.result = &services.ChargeResult{Succeeded: true, ProviderRef: "pi_retry"}
	payment, err := svc.ProcessPayment(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer}, booking.ID, "pm_card_visa")
	if err != nil {
		t.Fatalf("retry ProcessPayment failed: %v", err)
	}
	if payment.Status != models.PaymentStatusCompleted {
		t.Fatalf("expected completed payment on retry, got %s", payment.Status)
	}
}

func TestProcessPaymentNoDriverBooking(t *testing.T) {
	db := newTestDB(t)
	distance := &fakeDistance{km: 25}
	charger := &fakeCharger{result: &services.ChargeResult{Succeeded: true, ProviderRef: "pi_test_3"}}
	svc := newTestService(t, db, distance, charger)
	ctx := context.Background()

	customer, _, booking := setupCompletedBooking(t, svc, false)

	payment, err := svc.ProcessPayment(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer}, booking.ID, "pm_card_visa")
	if err != nil {
		t.Fatalf("ProcessPayment failed: %v", err)
	}
	if payment.DriverFee != 0 {
		t.Fatalf("self-drive bookings carry no driver fee, got %v", payment.DriverFee)
	}
	if payment.OwnerAmount != payment.Amount {
		t.Fatalf("owner should receive the full amount, got %v of %v", payment.OwnerAmount, payment.Amount)
	}
}

func TestProcessPaymentGuards(t *testing.T) {
	db := newTestDB(t)
	charger := &fakeCharger{result: &services.ChargeResult{Succeeded: true, ProviderRef: "pi_test_4"}}
	svc := newTestService(t, db, &fakeDistance{km: 10}, charger)
	ctx := context.Background()

	customer, _, booking := setupCompletedBooking(t, svc, true)

	var validation *ValidationError
	if _, err := svc.ProcessPayment(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer}, booking.ID, ""); !asError(err, &validation) {
		t.Fatalf("expected validation error on empty payment method, got %v", err)
	}

	var authz *AuthorizationError
	if _, err := svc.ProcessPayment(ctx, Actor{ID: customer.ID + 999, Role: models.RoleCustomer}, booking.ID, "pm_card_visa"); !asError(err, &authz) {
		t.Fatalf("expected authorization error for another customer, got %v", err)
	}

	if _, err := svc.ProcessPayment(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer}, booking.ID, "pm_card_visa"); err != nil {
		t.Fatalf("ProcessPayment failed: %v", err)
	}

	// Paying twice must fail.
	var conflict *ConflictError
	if _, err := svc.ProcessPayment(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer}, booking.ID, "pm_card_visa"); !asError(err, &conflict) {
		t.Fatalf("expected conflict on double payment, got %v", err)
	}
	if charger.calls != 1 {
		t.Fatalf("double payment must not reach the provider again, got %d calls", charger.calls)
	}
}
