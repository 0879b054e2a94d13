package booking

import (
	"context"
	"testing"

	"github.com/chachabrian/rydio-backend/internal/models"
	"github.com/chachabrian/rydio-backend/internal/services"
)

func TestListForActorRoleFilters(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &fakeDistance{}, &fakeCharger{})
	ctx := context.Background()

	owner := seedUser(t, db, models.RoleOwner)
	customer := seedUser(t, db, models.RoleCustomer)
	otherCustomer := seedUser(t, db, models.RoleCustomer)
	driverUser := seedUser(t, db, models.RoleDriver)
	admin := seedUser(t, db, models.RoleAdmin)
	seedDriver(t, db, driverUser.ID)
	start, end := rentalDates()

	first, err := svc.Create(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer}, CreateInput{
		VehicleID: seedVehicle(t, db, owner.ID).ID, StartDate: start, EndDate: end, NeedsDriver: true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := svc.Create(ctx, Actor{ID: otherCustomer.ID, Role: models.RoleCustomer}, CreateInput{
		VehicleID: seedVehicle(t, db, owner.ID).ID, StartDate: start, EndDate: end,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Move the first booking through approval and assignment so the owner's
	// pending view shrinks and the driver's view grows.
	if _, err := svc.Approve(ctx, Actor{ID: owner.ID, Role: models.RoleOwner}, first.ID, true); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if _, err := svc.AssignDriver(ctx, Actor{ID: admin.ID, Role: models.RoleAdmin}, first.ID, driverUser.ID); err != nil {
		t.Fatalf("AssignDriver failed: %v", err)
	}

	mine, err := svc.ListForActor(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer})
	if err != nil {
		t.Fatalf("customer ListForActor failed: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != first.ID {
		t.Fatalf("customer should see only their booking, got %d", len(mine))
	}

	pending, err := svc.ListForActor(ctx, Actor{ID: owner.ID, Role: models.RoleOwner})
	if err != nil {
		t.Fatalf("owner ListForActor failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("owner should see only the pending approval, got %d", len(pending))
	}

	assigned, err := svc.ListForActor(ctx, Actor{ID: driverUser.ID, Role: models.RoleDriver})
	if err != nil {
		t.Fatalf("driver ListForActor failed: %v", err)
	}
	if len(assigned) != 1 || assigned[0].ID != first.ID {
		t.Fatalf("driver should see their assignment, got %d", len(assigned))
	}

	all, err := svc.ListForActor(ctx, Actor{ID: admin.ID, Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("admin ListForActor failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("admin should see every booking, got %d", len(all))
	}
}

func TestGetBookingAccess(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &fakeDistance{}, &fakeCharger{})
	ctx := context.Background()

	owner := seedUser(t, db, models.RoleOwner)
	customer := seedUser(t, db, models.RoleCustomer)
	stranger := seedUser(t, db, models.RoleCustomer)
	vehicle := seedVehicle(t, db, owner.ID)
	start, end := rentalDates()

	booking, err := svc.Create(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer}, CreateInput{
		VehicleID: vehicle.ID, StartDate: start, EndDate: end,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.Get(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer}, booking.ID); err != nil {
		t.Fatalf("customer Get failed: %v", err)
	}
	if _, err := svc.Get(ctx, Actor{ID: owner.ID, Role: models.RoleOwner}, booking.ID); err != nil {
		t.Fatalf("owner Get failed: %v", err)
	}

	var authz *AuthorizationError
	if _, err := svc.Get(ctx, Actor{ID: stranger.ID, Role: models.RoleCustomer}, booking.ID); !asError(err, &authz) {
		t.Fatalf("expected authorization error for stranger, got %v", err)
	}

	var notFound *NotFoundError
	if _, err := svc.Get(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer}, 9999); !asError(err, &notFound) {
		t.Fatalf("expected not-found for unknown booking, got %v", err)
	}
}

func TestEarningsSummaries(t *testing.T) {
	db := newTestDB(t)
	charger := &fakeCharger{result: &services.ChargeResult{Succeeded: true, ProviderRef: "pi_earn"}}
	svc := newTestService(t, db, &fakeDistance{km: 10}, charger)
	ctx := context.Background()

	customer, driverUser, booking := setupCompletedBooking(t, svc, true)
	payment, err := svc.ProcessPayment(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer}, booking.ID, "pm_card_visa")
	if err != nil {
		t.Fatalf("ProcessPayment failed: %v", err)
	}

	driverSummary, err := svc.DriverEarnings(ctx, Actor{ID: driverUser.ID, Role: models.RoleDriver})
	if err != nil {
		t.Fatalf("DriverEarnings failed: %v", err)
	}
	if driverSummary.CompletedBookings != 1 || driverSummary.TotalEarnings != payment.DriverFee {
		t.Fatalf("unexpected driver summary: %+v", driverSummary)
	}

	ownerSummary, err := svc.OwnerEarnings(ctx, Actor{ID: payment.OwnerID, Role: models.RoleOwner})
	if err != nil {
		t.Fatalf("OwnerEarnings failed: %v", err)
	}
	if ownerSummary.CompletedBookings != 1 || ownerSummary.TotalEarnings != payment.OwnerAmount {
		t.Fatalf("unexpected owner summary: %+v", ownerSummary)
	}

	// Only admins can read the full ledger.
	if _, err := svc.ListPayments(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer}); err == nil {
		t.Fatal("expected non-admin ledger read to be rejected")
	}
	admin := seedUser(t, db, models.RoleAdmin)
	ledger, err := svc.ListPayments(ctx, Actor{ID: admin.ID, Role: models.RoleAdmin})
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	if len(ledger) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(ledger))
	}
}

func TestUpdateDriverAvailabilityGuard(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &fakeDistance{}, &fakeCharger{})
	ctx := context.Background()

	owner := seedUser(t, db, models.RoleOwner)
	customer := seedUser(t, db, models.RoleCustomer)
	driverUser := seedUser(t, db, models.RoleDriver)
	admin := seedUser(t, db, models.RoleAdmin)
	vehicle := seedVehicle(t, db, owner.ID)
	seedDriver(t, db, driverUser.ID)
	start, end := rentalDates()

	booking, err := svc.Create(ctx, Actor{ID: customer.ID, Role: models.RoleCustomer}, CreateInput{
		VehicleID: vehicle.ID, StartDate: start, EndDate: end, NeedsDriver: true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Approve(ctx, Actor{ID: owner.ID, Role: models.RoleOwner}, booking.ID, true); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if _, err := svc.AssignDriver(ctx, Actor{ID: admin.ID, Role: models.RoleAdmin}, booking.ID, driverUser.ID); err != nil {
		t.Fatalf("AssignDriver failed: %v", err)
	}

	// Drivers cannot free themselves while holding an assignment.
	avail := true
	var conflict *ConflictError
	if _, err := svc.UpdateDriver(ctx, Actor{ID: driverUser.ID, Role: models.RoleDriver}, driverUser.ID, UpdateDriverInput{
		Availability: &avail,
	}); !asError(err, &conflict) {
		t.Fatalf("expected conflict freeing a held driver, got %v", err)
	}

	// Other drivers cannot touch the profile.
	otherDriver := seedUser(t, db, models.RoleDriver)
	loc := "Tema"
	var authz *AuthorizationError
	if _, err := svc.UpdateDriver(ctx, Actor{ID: otherDriver.ID, Role: models.RoleDriver}, driverUser.ID, UpdateDriverInput{
		Location: &loc,
	}); !asError(err, &authz) {
		t.Fatalf("expected authorization error, got %v", err)
	}

	// Location updates are always allowed for the driver themselves.
	updated, err := svc.UpdateDriver(ctx, Actor{ID: driverUser.ID, Role: models.RoleDriver}, driverUser.ID, UpdateDriverInput{
		Location: &loc,
	})
	if err != nil {
		t.Fatalf("UpdateDriver failed: %v", err)
	}
	if updated.Location != "Tema" {
		t.Fatalf("expected location updated, got %q", updated.Location)
	}
}
