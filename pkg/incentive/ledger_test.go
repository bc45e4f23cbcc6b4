package incentive

import (
	"context"
	"errors"
	"testing"
)

func TestApplyPointChangeAppendsAuditEntry(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	driverID := seedDriver(test, store, "driver-1", sponsorID, 0)
	service := mustLedgerService(test, store)
	actor := sponsorActor(test, sponsorID)

	err := service.ApplyPointChange(context.Background(), actor, driverID, mustPoints(test, 50), mustReason(test, "Safe driving bonus"))
	if err != nil {
		test.Fatalf("apply point change: %v", err)
	}

	if len(store.changes) != 1 {
		test.Fatalf("expected 1 point change, got %d", len(store.changes))
	}
	change := store.changes[0]
	if change.Amount.Int64() != 50 {
		test.Fatalf("expected amount 50, got %d", change.Amount.Int64())
	}
	if change.ChangedBy != actor.UserID {
		test.Fatalf("expected changedBy %s, got %s", actor.UserID, change.ChangedBy)
	}
	if change.SponsorID != sponsorID {
		test.Fatalf("expected sponsor %s, got %s", sponsorID, change.SponsorID)
	}
	assertConserved(test, store, driverID, 0)
}

func TestApplyPointChangeUnknownDriver(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustLedgerService(test, store)

	err := service.ApplyPointChange(context.Background(), adminActor(test), mustDriverProfileID(test, "missing"), mustPoints(test, 10), mustReason(test, "bonus"))
	if !errors.Is(err, ErrNotFound) {
		test.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyPointChangeForeignSponsorDenied(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	ownSponsor := seedSponsor(test, store, "sponsor-own")
	otherSponsor := seedSponsor(test, store, "sponsor-other")
	driverID := seedDriver(test, store, "driver-1", ownSponsor, 100)
	service := mustLedgerService(test, store)

	err := service.ApplyPointChange(context.Background(), sponsorActor(test, otherSponsor), driverID, mustPoints(test, 25), mustReason(test, "bonus"))
	if !errors.Is(err, ErrUnauthorized) {
		test.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if len(store.changes) != 0 {
		test.Fatalf("expected no point changes, got %d", len(store.changes))
	}
	if store.drivers[driverID.String()].PointsBalance != 100 {
		test.Fatalf("balance mutated on denied change")
	}
}

func TestApplyPointChangeDoesNotGuardNegativeBalance(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	driverID := seedDriver(test, store, "driver-1", sponsorID, 20)
	service := mustLedgerService(test, store)

	// Affordability is the caller's rule; the ledger primitive is unconditional.
	err := service.ApplyPointChange(context.Background(), adminActor(test), driverID, mustPoints(test, -50), mustReason(test, "Manual correction"))
	if err != nil {
		test.Fatalf("apply point change: %v", err)
	}
	if store.drivers[driverID.String()].PointsBalance != -30 {
		test.Fatalf("expected balance -30, got %d", store.drivers[driverID.String()].PointsBalance)
	}
	assertConserved(test, store, driverID, 20)
}

func TestApplyPointChangeRollsBackWhenAuditInsertFails(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	driverID := seedDriver(test, store, "driver-1", sponsorID, 100)
	store.failOn = "InsertPointChange"
	service := mustLedgerService(test, store)

	err := service.ApplyPointChange(context.Background(), adminActor(test), driverID, mustPoints(test, 40), mustReason(test, "bonus"))
	if !errors.Is(err, errStubFailure) {
		test.Fatalf("expected stub failure, got %v", err)
	}
	if store.drivers[driverID.String()].PointsBalance != 100 {
		test.Fatalf("balance mutated despite rollback: %d", store.drivers[driverID.String()].PointsBalance)
	}
	if len(store.changes) != 0 {
		test.Fatalf("expected no point changes after rollback, got %d", len(store.changes))
	}
}

func TestSequentialDeltasAccumulate(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	driverID := seedDriver(test, store, "driver-1", sponsorID, 200)
	service := mustLedgerService(test, store)
	actor := adminActor(test)

	if err := service.ApplyPointChange(context.Background(), actor, driverID, mustPoints(test, 50), mustReason(test, "grant")); err != nil {
		test.Fatalf("credit: %v", err)
	}
	if err := service.ApplyPointChange(context.Background(), actor, driverID, mustPoints(test, -30), mustReason(test, "debit")); err != nil {
		test.Fatalf("debit: %v", err)
	}
	if balance := store.drivers[driverID.String()].PointsBalance; balance != 220 {
		test.Fatalf("expected balance 220, got %d", balance)
	}
	assertConserved(test, store, driverID, 200)
}

func TestBalanceVisibleToSelfSponsorAndAdmin(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	strangerSponsor := seedSponsor(test, store, "sponsor-2")
	driverID := seedDriver(test, store, "driver-1", sponsorID, 375)
	service := mustLedgerService(test, store)

	for _, actor := range []Actor{
		driverActor(test, store, driverID),
		sponsorActor(test, sponsorID),
		adminActor(test),
	} {
		balance, err := service.Balance(context.Background(), actor, driverID)
		if err != nil {
			test.Fatalf("balance for %s: %v", actor.Role, err)
		}
		if balance != 375 {
			test.Fatalf("expected balance 375 for %s, got %d", actor.Role, balance)
		}
	}

	if _, err := service.Balance(context.Background(), sponsorActor(test, strangerSponsor), driverID); !errors.Is(err, ErrUnauthorized) {
		test.Fatalf("expected ErrUnauthorized for foreign sponsor, got %v", err)
	}
}

func TestListPointChangesNewestFirst(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	driverID := seedDriver(test, store, "driver-1", sponsorID, 0)
	store.changes = append(store.changes,
		PointChange{PointChangeID: "pc-1", DriverProfileID: driverID, Amount: Points(10), CreatedUnixUTC: 100},
		PointChange{PointChangeID: "pc-2", DriverProfileID: driverID, Amount: Points(20), CreatedUnixUTC: 200},
	)
	store.drivers[driverID.String()] = func() DriverProfile {
		driver := store.drivers[driverID.String()]
		driver.PointsBalance = 30
		return driver
	}()
	service := mustLedgerService(test, store)

	changes, err := service.ListPointChanges(context.Background(), driverActor(test, store, driverID), driverID, 10)
	if err != nil {
		test.Fatalf("list point changes: %v", err)
	}
	if len(changes) != 2 {
		test.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if changes[0].PointChangeID != "pc-2" {
		test.Fatalf("expected newest first, got %s", changes[0].PointChangeID)
	}
}
