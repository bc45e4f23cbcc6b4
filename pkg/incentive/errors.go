package incentive

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the incentive services.
var (
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInsufficientPoints   = errors.New("insufficient points")
	ErrIllegalTransition    = errors.New("illegal order status transition")
	ErrNoSponsor            = errors.New("driver has no sponsor affiliation")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrProductUnavailable   = errors.New("product unavailable")
	ErrApplicationExists    = errors.New("application already exists")
	ErrRefundRequestClosed  = errors.New("refund request already resolved")
	ErrInvalidServiceConfig = errors.New("invalid service config")

	ErrInvalidUserID            = errors.New("invalid user id")
	ErrInvalidDriverProfileID   = errors.New("invalid driver profile id")
	ErrInvalidSponsorID         = errors.New("invalid sponsor id")
	ErrInvalidOrderID           = errors.New("invalid order id")
	ErrInvalidPoints            = errors.New("invalid point amount")
	ErrInvalidReason            = errors.New("invalid reason")
	ErrInvalidRole              = errors.New("invalid role")
	ErrInvalidDriverStatus      = errors.New("invalid driver status")
	ErrInvalidOrderStatus       = errors.New("invalid order status")
	ErrInvalidApplicationStatus = errors.New("invalid application status")
	ErrInvalidDeliveryInfo      = errors.New("invalid delivery info")
	ErrInvalidQuantity          = errors.New("invalid quantity")
	ErrInvalidTitle             = errors.New("invalid title")
	ErrInvalidPointValue        = errors.New("invalid point value")
)

// InsufficientPointsError reports the exact deficit of a failed debit.
type InsufficientPointsError struct {
	DeficitPoints int64
}

// Error returns the formatted message.
func (insufficientError InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: need %d more", insufficientError.DeficitPoints)
}

// Unwrap ties the struct error to its sentinel.
func (insufficientError InsufficientPointsError) Unwrap() error {
	return ErrInsufficientPoints
}

// IllegalTransitionError reports a rejected order-status transition.
type IllegalTransitionError struct {
	Current   OrderStatus
	Attempted OrderStatus
}

// Error returns the formatted message.
func (transitionError IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal order status transition: %s -> %s", transitionError.Current, transitionError.Attempted)
}

// Unwrap ties the struct error to its sentinel.
func (transitionError IllegalTransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
