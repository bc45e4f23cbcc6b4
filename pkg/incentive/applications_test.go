package incentive

import (
	"context"
	"errors"
	"testing"
)

func TestApplyApproveAffiliatesDriver(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	driverID := seedDriver(test, store, "driver-1", SponsorID{}, 0)
	service := mustApplicationService(test, store)
	driver := driverActor(test, store, driverID)

	application, err := service.Apply(context.Background(), driver, sponsorID)
	if err != nil {
		test.Fatalf("apply: %v", err)
	}
	if application.Status != ApplicationStatusPending {
		test.Fatalf("expected pending application, got %s", application.Status)
	}

	if err := service.Approve(context.Background(), sponsorActor(test, sponsorID), application.ApplicationID); err != nil {
		test.Fatalf("approve: %v", err)
	}

	updated := store.drivers[driverID.String()]
	if updated.SponsorID != sponsorID {
		test.Fatalf("driver not affiliated: %s", updated.SponsorID)
	}
	if updated.Status != DriverStatusActive {
		test.Fatalf("expected active driver, got %s", updated.Status)
	}
	if store.applications[application.ApplicationID].Status != ApplicationStatusApproved {
		test.Fatalf("application not marked approved")
	}
}

func TestApplyBlockedWhilePendingOrApproved(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	driverID := seedDriver(test, store, "driver-1", SponsorID{}, 0)
	service := mustApplicationService(test, store)
	driver := driverActor(test, store, driverID)

	application, err := service.Apply(context.Background(), driver, sponsorID)
	if err != nil {
		test.Fatalf("apply: %v", err)
	}
	if _, err := service.Apply(context.Background(), driver, sponsorID); !errors.Is(err, ErrApplicationExists) {
		test.Fatalf("expected ErrApplicationExists while pending, got %v", err)
	}

	if err := service.Approve(context.Background(), sponsorActor(test, sponsorID), application.ApplicationID); err != nil {
		test.Fatalf("approve: %v", err)
	}
	if _, err := service.Apply(context.Background(), driver, sponsorID); !errors.Is(err, ErrApplicationExists) {
		test.Fatalf("expected ErrApplicationExists while approved, got %v", err)
	}
}

func TestRejectLeavesDriverUnaffiliated(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	driverID := seedDriver(test, store, "driver-1", SponsorID{}, 0)
	service := mustApplicationService(test, store)

	application, err := service.Apply(context.Background(), driverActor(test, store, driverID), sponsorID)
	if err != nil {
		test.Fatalf("apply: %v", err)
	}
	if err := service.Reject(context.Background(), sponsorActor(test, sponsorID), application.ApplicationID); err != nil {
		test.Fatalf("reject: %v", err)
	}
	if !store.drivers[driverID.String()].SponsorID.IsZero() {
		test.Fatalf("rejected driver gained affiliation")
	}
	if store.applications[application.ApplicationID].Status != ApplicationStatusRejected {
		test.Fatalf("application not marked rejected")
	}
}

func TestApproveForeignSponsorDenied(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	otherSponsor := seedSponsor(test, store, "sponsor-2")
	driverID := seedDriver(test, store, "driver-1", SponsorID{}, 0)
	service := mustApplicationService(test, store)

	application, err := service.Apply(context.Background(), driverActor(test, store, driverID), sponsorID)
	if err != nil {
		test.Fatalf("apply: %v", err)
	}
	if err := service.Approve(context.Background(), sponsorActor(test, otherSponsor), application.ApplicationID); !errors.Is(err, ErrUnauthorized) {
		test.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if store.applications[application.ApplicationID].Status != ApplicationStatusPending {
		test.Fatalf("foreign sponsor mutated the application")
	}
}

func TestDropForfeitsBalanceThroughLedger(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	driverID := seedDriver(test, store, "driver-1", sponsorID, 640)
	store.applications["app-1"] = DriverApplication{
		ApplicationID:   "app-1",
		DriverProfileID: driverID,
		SponsorID:       sponsorID,
		Status:          ApplicationStatusApproved,
	}
	service := mustApplicationService(test, store)
	sponsor := sponsorActor(test, sponsorID)

	if err := service.Drop(context.Background(), sponsor, driverID); err != nil {
		test.Fatalf("drop: %v", err)
	}

	dropped := store.drivers[driverID.String()]
	if !dropped.SponsorID.IsZero() {
		test.Fatalf("driver still affiliated: %s", dropped.SponsorID)
	}
	if dropped.Status != DriverStatusDropped {
		test.Fatalf("expected dropped status, got %s", dropped.Status)
	}
	if dropped.PointsBalance != 0 {
		test.Fatalf("expected forfeited balance, got %d", dropped.PointsBalance)
	}
	if len(store.changes) != 1 {
		test.Fatalf("expected a forfeiture ledger entry, got %d", len(store.changes))
	}
	forfeit := store.changes[0]
	if forfeit.Amount.Int64() != -640 {
		test.Fatalf("expected -640 forfeiture, got %d", forfeit.Amount.Int64())
	}
	if forfeit.Reason.String() != reasonAffiliationForfeited {
		test.Fatalf("unexpected forfeiture reason: %q", forfeit.Reason)
	}
	if forfeit.ChangedBy != sponsor.UserID {
		test.Fatalf("expected acting identity on forfeiture, got %s", forfeit.ChangedBy)
	}
	if store.applications["app-1"].Status != ApplicationStatusDropped {
		test.Fatalf("approved application not marked dropped")
	}
	assertConserved(test, store, driverID, 640)
}

func TestDropZeroBalanceSkipsLedger(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	driverID := seedDriver(test, store, "driver-1", sponsorID, 0)
	service := mustApplicationService(test, store)

	if err := service.Drop(context.Background(), sponsorActor(test, sponsorID), driverID); err != nil {
		test.Fatalf("drop: %v", err)
	}
	if len(store.changes) != 0 {
		test.Fatalf("expected no ledger entry for a zero balance, got %d", len(store.changes))
	}
}

func TestDropUnaffiliatedDriverFails(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedSponsor(test, store, "sponsor-1")
	driverID := seedDriver(test, store, "driver-1", SponsorID{}, 0)
	service := mustApplicationService(test, store)

	err := service.Drop(context.Background(), adminActor(test), driverID)
	if !errors.Is(err, ErrNoSponsor) {
		test.Fatalf("expected ErrNoSponsor, got %v", err)
	}
}

func TestReapplyAfterDrop(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	driverID := seedDriver(test, store, "driver-1", sponsorID, 100)
	store.applications["app-1"] = DriverApplication{
		ApplicationID:   "app-1",
		DriverProfileID: driverID,
		SponsorID:       sponsorID,
		Status:          ApplicationStatusApproved,
	}
	service := mustApplicationService(test, store)

	if err := service.Drop(context.Background(), sponsorActor(test, sponsorID), driverID); err != nil {
		test.Fatalf("drop: %v", err)
	}

	// The dropped application is removed so the driver can start over.
	application, err := service.Apply(context.Background(), driverActor(test, store, driverID), sponsorID)
	if err != nil {
		test.Fatalf("reapply: %v", err)
	}
	if application.Status != ApplicationStatusPending {
		test.Fatalf("expected fresh pending application, got %s", application.Status)
	}
	if _, ok := store.applications["app-1"]; ok {
		test.Fatalf("dropped application not deleted on reapplication")
	}
}

func TestPendingApplicationsScopedToSponsor(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	otherSponsor := seedSponsor(test, store, "sponsor-2")
	driverID := seedDriver(test, store, "driver-1", SponsorID{}, 0)
	service := mustApplicationService(test, store)

	if _, err := service.Apply(context.Background(), driverActor(test, store, driverID), sponsorID); err != nil {
		test.Fatalf("apply: %v", err)
	}

	pending, err := service.PendingApplications(context.Background(), sponsorActor(test, sponsorID), sponsorID)
	if err != nil {
		test.Fatalf("pending applications: %v", err)
	}
	if len(pending) != 1 {
		test.Fatalf("expected 1 pending application, got %d", len(pending))
	}

	if _, err := service.PendingApplications(context.Background(), sponsorActor(test, otherSponsor), sponsorID); !errors.Is(err, ErrUnauthorized) {
		test.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
