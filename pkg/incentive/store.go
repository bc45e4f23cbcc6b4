package incentive

import (
	"context"

	"github.com/shopspring/decimal"
)

// DriverProfile is a driver's point account.
type DriverProfile struct {
	DriverProfileID DriverProfileID
	UserID          UserID
	SponsorID       SponsorID // zero when unaffiliated
	PointsBalance   int64
	Status          DriverStatus
	CreatedUnixUTC  int64
}

// PointChange is one immutable line in the point ledger.
type PointChange struct {
	PointChangeID   string
	DriverProfileID DriverProfileID
	SponsorID       SponsorID
	Amount          Points
	Reason          Reason
	ChangedBy       UserID
	CreatedUnixUTC  int64
}

// Order is a committed purchase.
type Order struct {
	OrderID         OrderID
	DriverProfileID DriverProfileID
	SponsorID       SponsorID
	TotalPoints     int64
	Status          OrderStatus
	DeliveryInfo    DeliveryInfo
	CreatedUnixUTC  int64
	UpdatedUnixUTC  int64
}

// OrderItem is a line-item snapshot frozen at checkout.
type OrderItem struct {
	OrderItemID string
	OrderID     OrderID
	EbayItemID  string
	Title       string
	ImageURL    string
	PointPrice  int64
	Quantity    int
}

// Cart is a driver's transient pre-order state.
type Cart struct {
	CartID          string
	DriverProfileID DriverProfileID
}

// CartItem is a mutable cart line item; the point price is snapshotted at add time.
type CartItem struct {
	CartItemID string
	CartID     string
	ProductID  string
	EbayItemID string
	Title      string
	ImageURL   string
	PointPrice int64
	Quantity   int
}

// Sponsor is a sponsor organization.
type Sponsor struct {
	SponsorID  SponsorID
	Name       string
	PointValue decimal.Decimal // currency units per point
}

// CatalogProduct is a sponsor-owned redeemable listing.
type CatalogProduct struct {
	ProductID  string
	SponsorID  SponsorID
	EbayItemID string
	Title      string
	ImageURL   string
	Price      decimal.Decimal // currency units
	IsActive   bool
}

// DriverApplication is a driver's request for sponsor affiliation.
type DriverApplication struct {
	ApplicationID   string
	DriverProfileID DriverProfileID
	SponsorID       SponsorID
	Status          ApplicationStatus
	CreatedUnixUTC  int64
}

// RefundRequest is a driver's request to refund a delivered order.
type RefundRequest struct {
	RefundRequestID string
	OrderID         OrderID
	Reason          string
	Status          RefundRequestStatus
	CreatedUnixUTC  int64
}

// Store is the persistence contract used by the services.
//
// Implementations must provide atomic multi-statement transactions through
// WithTx, and the ForUpdate variants must lock the selected row for the
// duration of the surrounding transaction so concurrent balance mutations on
// one account serialize.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	GetDriverProfile(ctx context.Context, driverProfileID DriverProfileID) (DriverProfile, error)
	GetDriverProfileForUpdate(ctx context.Context, driverProfileID DriverProfileID) (DriverProfile, error)
	AddToDriverBalance(ctx context.Context, driverProfileID DriverProfileID, delta int64) error
	UpdateDriverAffiliation(ctx context.Context, driverProfileID DriverProfileID, sponsorID SponsorID, status DriverStatus) error

	InsertPointChange(ctx context.Context, change PointChange) error
	SumPointChanges(ctx context.Context, driverProfileID DriverProfileID) (int64, error)
	ListPointChanges(ctx context.Context, driverProfileID DriverProfileID, limit int) ([]PointChange, error)

	CreateOrder(ctx context.Context, order Order, items []OrderItem) (Order, error)
	GetOrder(ctx context.Context, orderID OrderID) (Order, error)
	GetOrderForUpdate(ctx context.Context, orderID OrderID) (Order, error)
	ListOrderItems(ctx context.Context, orderID OrderID) ([]OrderItem, error)
	UpdateOrderStatus(ctx context.Context, orderID OrderID, from OrderStatus, to OrderStatus) error
	ListOrdersByDriver(ctx context.Context, driverProfileID DriverProfileID) ([]Order, error)
	ListOrdersBySponsor(ctx context.Context, sponsorID SponsorID) ([]Order, error)

	GetOrCreateCart(ctx context.Context, driverProfileID DriverProfileID) (Cart, error)
	ListCartItems(ctx context.Context, cartID string) ([]CartItem, error)
	GetCartItem(ctx context.Context, cartItemID string) (CartItem, error)
	InsertCartItem(ctx context.Context, item CartItem) error
	UpdateCartItemQuantity(ctx context.Context, cartItemID string, quantity int) error
	DeleteCartItem(ctx context.Context, cartItemID string) error
	ClearCart(ctx context.Context, cartID string) error

	GetSponsor(ctx context.Context, sponsorID SponsorID) (Sponsor, error)
	UpdateSponsorPointValue(ctx context.Context, sponsorID SponsorID, pointValue decimal.Decimal) error

	GetCatalogProduct(ctx context.Context, productID string) (CatalogProduct, error)
	CreateCatalogProduct(ctx context.Context, product CatalogProduct) (CatalogProduct, error)
	UpdateCatalogProduct(ctx context.Context, product CatalogProduct) error
	DeleteCatalogProduct(ctx context.Context, productID string) error
	ListCatalogProducts(ctx context.Context, sponsorID SponsorID, activeOnly bool) ([]CatalogProduct, error)

	ListApplications(ctx context.Context, driverProfileID DriverProfileID, sponsorID SponsorID) ([]DriverApplication, error)
	ListApplicationsBySponsor(ctx context.Context, sponsorID SponsorID, status ApplicationStatus) ([]DriverApplication, error)
	GetApplication(ctx context.Context, applicationID string) (DriverApplication, error)
	CreateApplication(ctx context.Context, application DriverApplication) (DriverApplication, error)
	UpdateApplicationStatus(ctx context.Context, applicationID string, status ApplicationStatus) error
	DeleteApplication(ctx context.Context, applicationID string) error

	CreateRefundRequest(ctx context.Context, request RefundRequest) (RefundRequest, error)
	GetRefundRequestForUpdate(ctx context.Context, refundRequestID string) (RefundRequest, error)
	UpdateRefundRequestStatus(ctx context.Context, refundRequestID string, from RefundRequestStatus, to RefundRequestStatus) error
	ListRefundRequestsBySponsor(ctx context.Context, sponsorID SponsorID) ([]RefundRequest, error)
}
