package incentive

import (
	"context"
	"fmt"
)

// LedgerService is the single path through which a driver's point balance may
// change. Every mutation increments the balance and appends one immutable
// PointChange inside the same transaction, so the balance and its audit trail
// never diverge.
type LedgerService struct {
	store  Store
	nowFn  func() int64
	logger OperationLogger
}

// NewLedgerService wires a LedgerService.
func NewLedgerService(store Store, now func() int64, options ...LedgerOption) (*LedgerService, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &LedgerService{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// ApplyPointChange atomically adds a signed delta to the driver's balance and
// appends the matching audit entry. The ledger does not reject debits that
// drive the balance negative; affordability is the caller's rule.
func (service *LedgerService) ApplyPointChange(ctx context.Context, actor Actor, driverProfileID DriverProfileID, amount Points, reason Reason) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		driver, err := transactionStore.GetDriverProfileForUpdate(ctx, driverProfileID)
		if err != nil {
			return err
		}
		if err := authorizePointChange(actor, driver); err != nil {
			return err
		}
		return service.apply(ctx, transactionStore, driver, actor, amount, reason)
	})
	service.logOperation(ctx, OperationLog{
		Operation:       operationApplyPointChange,
		Actor:           actor.UserID,
		DriverProfileID: driverProfileID,
		Amount:          amount,
		Reason:          reason.String(),
		Error:           operationError,
	})
	return operationError
}

// apply performs the balance increment and audit append within an already
// open transaction. The caller must hold the driver row lock.
func (service *LedgerService) apply(ctx context.Context, transactionStore Store, driver DriverProfile, actor Actor, amount Points, reason Reason) error {
	if err := transactionStore.AddToDriverBalance(ctx, driver.DriverProfileID, amount.Int64()); err != nil {
		return err
	}
	return transactionStore.InsertPointChange(ctx, PointChange{
		DriverProfileID: driver.DriverProfileID,
		SponsorID:       driver.SponsorID,
		Amount:          amount,
		Reason:          reason,
		ChangedBy:       actor.UserID,
		CreatedUnixUTC:  service.nowFn(),
	})
}

// Balance returns the driver's current point balance.
func (service *LedgerService) Balance(ctx context.Context, actor Actor, driverProfileID DriverProfileID) (int64, error) {
	driver, err := service.store.GetDriverProfile(ctx, driverProfileID)
	if err != nil {
		return 0, err
	}
	if err := authorizeDriverView(actor, driver); err != nil {
		return 0, err
	}
	return driver.PointsBalance, nil
}

// ListPointChanges returns the driver's audit trail, newest first.
func (service *LedgerService) ListPointChanges(ctx context.Context, actor Actor, driverProfileID DriverProfileID, limit int) ([]PointChange, error) {
	driver, err := service.store.GetDriverProfile(ctx, driverProfileID)
	if err != nil {
		return nil, err
	}
	if err := authorizeDriverView(actor, driver); err != nil {
		return nil, err
	}
	return service.store.ListPointChanges(ctx, driverProfileID, limit)
}

func (service *LedgerService) logOperation(ctx context.Context, entry OperationLog) {
	emitOperationLog(ctx, service.logger, entry)
}
