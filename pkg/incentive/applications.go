package incentive

import (
	"context"
	"fmt"
)

const reasonAffiliationForfeited = "Affiliation ended - points forfeited"

// ApplicationService runs the driver-to-sponsor affiliation workflow.
type ApplicationService struct {
	store  Store
	ledger *LedgerService
	nowFn  func() int64
	logger OperationLogger
}

// NewApplicationService wires an ApplicationService.
func NewApplicationService(store Store, ledger *LedgerService, now func() int64) (*ApplicationService, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if ledger == nil {
		return nil, fmt.Errorf("%w: ledger dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	return &ApplicationService{store: store, ledger: ledger, nowFn: now}, nil
}

// Apply files a driver's application to a sponsor. A pending or approved
// application to the same sponsor blocks reapplication; a dropped one is
// deleted first so the driver can try again.
func (service *ApplicationService) Apply(ctx context.Context, actor Actor, sponsorID SponsorID) (DriverApplication, error) {
	driverProfileID, err := authorizeDriverSelf(actor)
	if err != nil {
		return DriverApplication{}, err
	}
	if _, err := service.store.GetSponsor(ctx, sponsorID); err != nil {
		return DriverApplication{}, err
	}
	var created DriverApplication
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		existing, err := transactionStore.ListApplications(ctx, driverProfileID, sponsorID)
		if err != nil {
			return err
		}
		for _, application := range existing {
			switch application.Status {
			case ApplicationStatusPending, ApplicationStatusApproved:
				return fmt.Errorf("%w: already %s with this sponsor", ErrApplicationExists, application.Status)
			case ApplicationStatusDropped:
				if err := transactionStore.DeleteApplication(ctx, application.ApplicationID); err != nil {
					return err
				}
			}
		}
		created, err = transactionStore.CreateApplication(ctx, DriverApplication{
			DriverProfileID: driverProfileID,
			SponsorID:       sponsorID,
			Status:          ApplicationStatusPending,
			CreatedUnixUTC:  service.nowFn(),
		})
		return err
	})
	if operationError != nil {
		return DriverApplication{}, operationError
	}
	return created, nil
}

// Approve accepts a pending application and affiliates the driver with the
// sponsor, atomically.
func (service *ApplicationService) Approve(ctx context.Context, actor Actor, applicationID string) error {
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		application, err := transactionStore.GetApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		if err := authorizeSponsorScope(actor, application.SponsorID); err != nil {
			return err
		}
		if application.Status != ApplicationStatusPending {
			return fmt.Errorf("%w: application is %s", ErrInvalidApplicationStatus, application.Status)
		}
		if err := transactionStore.UpdateApplicationStatus(ctx, applicationID, ApplicationStatusApproved); err != nil {
			return err
		}
		return transactionStore.UpdateDriverAffiliation(ctx, application.DriverProfileID, application.SponsorID, DriverStatusActive)
	})
}

// Reject declines a pending application; the driver remains unaffiliated.
func (service *ApplicationService) Reject(ctx context.Context, actor Actor, applicationID string) error {
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		application, err := transactionStore.GetApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		if err := authorizeSponsorScope(actor, application.SponsorID); err != nil {
			return err
		}
		if application.Status != ApplicationStatusPending {
			return fmt.Errorf("%w: application is %s", ErrInvalidApplicationStatus, application.Status)
		}
		return transactionStore.UpdateApplicationStatus(ctx, applicationID, ApplicationStatusRejected)
	})
}

// Drop ends a driver's affiliation. Any remaining positive balance is
// forfeited through the ledger so the audit trail stays conserved, then the
// profile is unaffiliated and the approved application marked dropped.
func (service *ApplicationService) Drop(ctx context.Context, actor Actor, driverProfileID DriverProfileID) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		driver, err := transactionStore.GetDriverProfileForUpdate(ctx, driverProfileID)
		if err != nil {
			return err
		}
		if driver.SponsorID.IsZero() {
			return fmt.Errorf("%w: driver is not affiliated", ErrNoSponsor)
		}
		if err := authorizeSponsorScope(actor, driver.SponsorID); err != nil {
			return err
		}
		if driver.PointsBalance != 0 {
			forfeit, err := NewPoints(-driver.PointsBalance)
			if err != nil {
				return err
			}
			reason, err := NewReason(reasonAffiliationForfeited)
			if err != nil {
				return err
			}
			if err := service.ledger.apply(ctx, transactionStore, driver, actor, forfeit, reason); err != nil {
				return err
			}
		}
		applications, err := transactionStore.ListApplications(ctx, driverProfileID, driver.SponsorID)
		if err != nil {
			return err
		}
		for _, application := range applications {
			if application.Status == ApplicationStatusApproved {
				if err := transactionStore.UpdateApplicationStatus(ctx, application.ApplicationID, ApplicationStatusDropped); err != nil {
					return err
				}
			}
		}
		return transactionStore.UpdateDriverAffiliation(ctx, driverProfileID, SponsorID{}, DriverStatusDropped)
	})
	emitOperationLog(ctx, service.logger, OperationLog{
		Operation:       operationDropDriver,
		Actor:           actor.UserID,
		DriverProfileID: driverProfileID,
		Error:           operationError,
	})
	return operationError
}

// PendingApplications lists a sponsor's pending applications.
func (service *ApplicationService) PendingApplications(ctx context.Context, actor Actor, sponsorID SponsorID) ([]DriverApplication, error) {
	if err := authorizeSponsorScope(actor, sponsorID); err != nil {
		return nil, err
	}
	return service.store.ListApplicationsBySponsor(ctx, sponsorID, ApplicationStatusPending)
}
