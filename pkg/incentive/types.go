package incentive

import (
	"fmt"
	"strings"
)

// UserID identifies an authenticated account (driver, sponsor user, or admin).
type UserID struct {
	value string
}

// DriverProfileID identifies a driver's point account.
type DriverProfileID struct {
	value string
}

// SponsorID identifies a sponsor organization.
type SponsorID struct {
	value string
}

// OrderID identifies a committed purchase.
type OrderID struct {
	value string
}

// Points is a signed point amount.
type Points int64

// Reason is the mandatory free-text cause attached to every point change.
type Reason struct {
	value string
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// IsZero reports whether the id is unset.
func (id UserID) IsZero() bool {
	return id.value == ""
}

// NewDriverProfileID validates and normalizes a driver profile id.
func NewDriverProfileID(raw string) (DriverProfileID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DriverProfileID{}, fmt.Errorf("%w: empty value", ErrInvalidDriverProfileID)
	}
	return DriverProfileID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id DriverProfileID) String() string {
	return id.value
}

// IsZero reports whether the id is unset.
func (id DriverProfileID) IsZero() bool {
	return id.value == ""
}

// NewSponsorID validates and normalizes a sponsor id.
func NewSponsorID(raw string) (SponsorID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return SponsorID{}, fmt.Errorf("%w: empty value", ErrInvalidSponsorID)
	}
	return SponsorID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id SponsorID) String() string {
	return id.value
}

// IsZero reports whether the id is unset.
func (id SponsorID) IsZero() bool {
	return id.value == ""
}

// NewOrderID validates and normalizes an order id.
func NewOrderID(raw string) (OrderID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return OrderID{}, fmt.Errorf("%w: empty value", ErrInvalidOrderID)
	}
	return OrderID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id OrderID) String() string {
	return id.value
}

// IsZero reports whether the id is unset.
func (id OrderID) IsZero() bool {
	return id.value == ""
}

// Short returns the order-id tail used in ledger reasons ("Order #a1b2c3d4").
func (id OrderID) Short() string {
	if len(id.value) <= 8 {
		return id.value
	}
	return id.value[len(id.value)-8:]
}

// NewPoints validates a signed, non-zero point delta.
func NewPoints(raw int64) (Points, error) {
	if raw == 0 {
		return 0, fmt.Errorf("%w: must be non-zero", ErrInvalidPoints)
	}
	return Points(raw), nil
}

// Int64 returns the raw signed amount.
func (points Points) Int64() int64 {
	return int64(points)
}

// Negated returns the additive inverse.
func (points Points) Negated() Points {
	return -points
}

// NewReason validates and normalizes a point-change reason.
func NewReason(raw string) (Reason, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Reason{}, fmt.Errorf("%w: empty value", ErrInvalidReason)
	}
	return Reason{value: trimmed}, nil
}

// String returns the normalized reason text.
func (reason Reason) String() string {
	return reason.value
}

// Role is the caller's resolved role.
type Role string

const (
	RoleDriver  Role = "driver"
	RoleSponsor Role = "sponsor"
	RoleAdmin   Role = "admin"
)

// ParseRole validates a role string.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleDriver:
		return RoleDriver, nil
	case RoleSponsor:
		return RoleSponsor, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
}

// String returns the role name.
func (role Role) String() string {
	return string(role)
}

// Actor is the resolved caller identity produced by the authorization gate.
// The services trust it for every capability check.
type Actor struct {
	UserID          UserID
	Role            Role
	SponsorID       SponsorID       // set for sponsor users
	DriverProfileID DriverProfileID // set for drivers
}

// DriverStatus is the lifecycle state of a driver profile.
type DriverStatus string

const (
	DriverStatusPending  DriverStatus = "pending"
	DriverStatusActive   DriverStatus = "active"
	DriverStatusDropped  DriverStatus = "dropped"
	DriverStatusDisabled DriverStatus = "disabled"
)

// ParseDriverStatus validates a driver status string.
func ParseDriverStatus(raw string) (DriverStatus, error) {
	switch DriverStatus(raw) {
	case DriverStatusPending, DriverStatusActive, DriverStatusDropped, DriverStatusDisabled:
		return DriverStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDriverStatus, raw)
}

// String returns the status name.
func (status DriverStatus) String() string {
	return string(status)
}

// OrderStatus is a state in the order lifecycle machine.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// ParseOrderStatus validates an order status string.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	switch OrderStatus(raw) {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return OrderStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOrderStatus, raw)
}

// String returns the status name.
func (status OrderStatus) String() string {
	return string(status)
}

// ApplicationStatus is the lifecycle state of a driver's sponsor application.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusApproved ApplicationStatus = "approved"
	ApplicationStatusRejected ApplicationStatus = "rejected"
	ApplicationStatusDropped  ApplicationStatus = "dropped"
)

// ParseApplicationStatus validates an application status string.
func ParseApplicationStatus(raw string) (ApplicationStatus, error) {
	switch ApplicationStatus(raw) {
	case ApplicationStatusPending, ApplicationStatusApproved, ApplicationStatusRejected, ApplicationStatusDropped:
		return ApplicationStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidApplicationStatus, raw)
}

// String returns the status name.
func (status ApplicationStatus) String() string {
	return string(status)
}

// RefundRequestStatus is the lifecycle state of a refund request.
type RefundRequestStatus string

const (
	RefundRequestStatusPending  RefundRequestStatus = "pending"
	RefundRequestStatusApproved RefundRequestStatus = "approved"
	RefundRequestStatusRejected RefundRequestStatus = "rejected"
)

// String returns the status name.
func (status RefundRequestStatus) String() string {
	return string(status)
}

// DeliveryInfo is the shipping destination captured at checkout.
type DeliveryInfo struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zip_code"`
}

// Normalize trims every field and fails if any is empty.
func (info DeliveryInfo) Normalize() (DeliveryInfo, error) {
	normalized := DeliveryInfo{
		FirstName:   strings.TrimSpace(info.FirstName),
		LastName:    strings.TrimSpace(info.LastName),
		PhoneNumber: strings.TrimSpace(info.PhoneNumber),
		Address:     strings.TrimSpace(info.Address),
		City:        strings.TrimSpace(info.City),
		State:       strings.TrimSpace(info.State),
		ZipCode:     strings.TrimSpace(info.ZipCode),
	}
	for _, value := range []string{
		normalized.FirstName,
		normalized.LastName,
		normalized.PhoneNumber,
		normalized.Address,
		normalized.City,
		normalized.State,
		normalized.ZipCode,
	} {
		if value == "" {
			return DeliveryInfo{}, fmt.Errorf("%w: all delivery information fields are required", ErrInvalidDeliveryInfo)
		}
	}
	return normalized, nil
}
