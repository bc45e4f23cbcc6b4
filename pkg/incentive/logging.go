package incentive

import "context"

const (
	operationApplyPointChange = "apply_point_change"
	operationCheckout         = "checkout"
	operationTransitionStatus = "transition_status"
	operationCancelByDriver   = "cancel_by_driver"
	operationResolveRefund    = "resolve_refund_request"
	operationDropDriver       = "drop_driver"

	operationStatusOK    = "ok"
	operationStatusError = "error"
)

// OperationLogger records domain-level events emitted by service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing operation.
type OperationLog struct {
	Operation       string
	Actor           UserID
	DriverProfileID DriverProfileID
	OrderID         OrderID
	Amount          Points
	Reason          string
	Status          string
	Error           error
}

// LedgerOption configures a LedgerService instance.
type LedgerOption func(*LedgerService)

// WithLedgerOperationLogger wires a logger that receives callbacks for every
// ledger operation.
func WithLedgerOperationLogger(logger OperationLogger) LedgerOption {
	return func(service *LedgerService) {
		service.logger = logger
	}
}

// OrderOption configures an OrderService instance.
type OrderOption func(*OrderService)

// WithOrderOperationLogger wires a logger that receives callbacks for every
// order operation.
func WithOrderOperationLogger(logger OperationLogger) OrderOption {
	return func(service *OrderService) {
		service.logger = logger
	}
}

func emitOperationLog(ctx context.Context, logger OperationLogger, entry OperationLog) {
	if logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	logger.LogOperation(ctx, entry)
}
