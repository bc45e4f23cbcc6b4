package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DriverProfile represents the driver_profiles table. The balance column is
// denormalized from point_changes and only ever mutated by relative updates.
type DriverProfile struct {
	DriverProfileID string    `gorm:"type:uuid;primaryKey"`
	UserID          string    `gorm:"not null;uniqueIndex:uniq_driver_user"`
	SponsorID       *string   `gorm:"type:uuid;index:idx_drivers_sponsor"`
	PointsBalance   int64     `gorm:"not null;default:0"`
	Status          string    `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null"`
}

func (DriverProfile) TableName() string { return "driver_profiles" }

func (profile *DriverProfile) BeforeCreate(tx *gorm.DB) error {
	if profile.DriverProfileID == "" {
		profile.DriverProfileID = uuid.NewString()
	}
	return nil
}

// PointChange mirrors the point_changes table.
type PointChange struct {
	PointChangeID   string    `gorm:"type:uuid;primaryKey"`
	DriverProfileID string    `gorm:"type:uuid;not null;index:idx_changes_driver_created,priority:1"`
	SponsorID       *string   `gorm:"type:uuid"`
	Amount          int64     `gorm:"not null"`
	Reason          string    `gorm:"not null"`
	ChangedBy       string    `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null;index:idx_changes_driver_created,priority:2"`
}

func (PointChange) TableName() string { return "point_changes" }

func (change *PointChange) BeforeCreate(tx *gorm.DB) error {
	if change.PointChangeID == "" {
		change.PointChangeID = uuid.NewString()
	}
	return nil
}

// Order mirrors the orders table. Delivery information is frozen at checkout
// as a JSON document.
type Order struct {
	OrderID         string         `gorm:"type:uuid;primaryKey"`
	DriverProfileID string         `gorm:"type:uuid;not null;index:idx_orders_driver"`
	SponsorID       string         `gorm:"type:uuid;not null;index:idx_orders_sponsor"`
	TotalPoints     int64          `gorm:"not null"`
	Status          string         `gorm:"not null"`
	DeliveryInfo    datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt       time.Time      `gorm:"not null"`
	UpdatedAt       time.Time      `gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

func (order *Order) BeforeCreate(tx *gorm.DB) error {
	if order.OrderID == "" {
		order.OrderID = uuid.NewString()
	}
	return nil
}

// OrderItem mirrors the order_items table; rows are immutable snapshots.
type OrderItem struct {
	OrderItemID string `gorm:"type:uuid;primaryKey"`
	OrderID     string `gorm:"type:uuid;not null;index:idx_order_items_order"`
	EbayItemID  string `gorm:"not null"`
	Title       string `gorm:"not null"`
	ImageURL    string `gorm:""`
	PointPrice  int64  `gorm:"not null"`
	Quantity    int    `gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }

func (item *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if item.OrderItemID == "" {
		item.OrderItemID = uuid.NewString()
	}
	return nil
}

// Cart mirrors the carts table, one row per driver.
type Cart struct {
	CartID          string    `gorm:"type:uuid;primaryKey"`
	DriverProfileID string    `gorm:"type:uuid;not null;uniqueIndex:uniq_cart_driver"`
	CreatedAt       time.Time `gorm:"not null"`
}

func (Cart) TableName() string { return "carts" }

func (cart *Cart) BeforeCreate(tx *gorm.DB) error {
	if cart.CartID == "" {
		cart.CartID = uuid.NewString()
	}
	return nil
}

// CartItem mirrors the cart_items table.
type CartItem struct {
	CartItemID string `gorm:"type:uuid;primaryKey"`
	CartID     string `gorm:"type:uuid;not null;index:idx_cart_items_cart"`
	ProductID  string `gorm:"type:uuid;not null"`
	EbayItemID string `gorm:"not null"`
	Title      string `gorm:"not null"`
	ImageURL   string `gorm:""`
	PointPrice int64  `gorm:"not null"`
	Quantity   int    `gorm:"not null"`
}

func (CartItem) TableName() string { return "cart_items" }

func (item *CartItem) BeforeCreate(tx *gorm.DB) error {
	if item.CartItemID == "" {
		item.CartItemID = uuid.NewString()
	}
	return nil
}

// Sponsor mirrors the sponsors table.
type Sponsor struct {
	SponsorID  string          `gorm:"type:uuid;primaryKey"`
	Name       string          `gorm:"not null"`
	PointValue decimal.Decimal `gorm:"type:numeric(12,4);not null"`
	CreatedAt  time.Time       `gorm:"not null"`
}

func (Sponsor) TableName() string { return "sponsors" }

func (sponsor *Sponsor) BeforeCreate(tx *gorm.DB) error {
	if sponsor.SponsorID == "" {
		sponsor.SponsorID = uuid.NewString()
	}
	return nil
}

// CatalogProduct mirrors the catalog_products table.
type CatalogProduct struct {
	ProductID  string          `gorm:"type:uuid;primaryKey"`
	SponsorID  string          `gorm:"type:uuid;not null;index:idx_products_sponsor"`
	EbayItemID string          `gorm:"not null"`
	Title      string          `gorm:"not null"`
	ImageURL   string          `gorm:""`
	Price      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	IsActive   bool            `gorm:"not null;default:true"`
	CreatedAt  time.Time       `gorm:"not null"`
}

func (CatalogProduct) TableName() string { return "catalog_products" }

func (product *CatalogProduct) BeforeCreate(tx *gorm.DB) error {
	if product.ProductID == "" {
		product.ProductID = uuid.NewString()
	}
	return nil
}

// DriverApplication mirrors the driver_applications table.
type DriverApplication struct {
	ApplicationID   string    `gorm:"type:uuid;primaryKey"`
	DriverProfileID string    `gorm:"type:uuid;not null;index:idx_applications_driver_sponsor,priority:1"`
	SponsorID       string    `gorm:"type:uuid;not null;index:idx_applications_driver_sponsor,priority:2"`
	Status          string    `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null"`
}

func (DriverApplication) TableName() string { return "driver_applications" }

func (application *DriverApplication) BeforeCreate(tx *gorm.DB) error {
	if application.ApplicationID == "" {
		application.ApplicationID = uuid.NewString()
	}
	return nil
}

// RefundRequest mirrors the refund_requests table.
type RefundRequest struct {
	RefundRequestID string    `gorm:"type:uuid;primaryKey"`
	OrderID         string    `gorm:"type:uuid;not null;index:idx_refunds_order"`
	Reason          string    `gorm:"not null"`
	Status          string    `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null"`
}

func (RefundRequest) TableName() string { return "refund_requests" }

func (request *RefundRequest) BeforeCreate(tx *gorm.DB) error {
	if request.RefundRequestID == "" {
		request.RefundRequestID = uuid.NewString()
	}
	return nil
}

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{
		&DriverProfile{},
		&PointChange{},
		&Order{},
		&OrderItem{},
		&Cart{},
		&CartItem{},
		&Sponsor{},
		&CatalogProduct{},
		&DriverApplication{},
		&RefundRequest{},
	}
}
