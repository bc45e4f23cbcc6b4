package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/goodhaul/incentive/pkg/incentive"
)

const (
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19

	errorOperationStore    = "store"
	errorSubjectDriver     = "driver"
	errorSubjectChange     = "point_change"
	errorSubjectOrder      = "order"
	errorSubjectCart       = "cart"
	errorSubjectSponsor    = "sponsor"
	errorSubjectProduct    = "product"
	errorSubjectApp        = "application"
	errorSubjectRefund     = "refund_request"
	errorCodeGet           = "get"
	errorCodeInsert        = "insert"
	errorCodeCreate        = "create"
	errorCodeUpdate        = "update"
	errorCodeDelete        = "delete"
	errorCodeList          = "list"
	errorCodeSum           = "sum"
	errorCodeInvalid       = "invalid"
	errorCodeUpdateStatus  = "update_status"
	errorCodeUpdateBalance = "update_balance"
)

// Store implements incentive.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore incentive.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) GetDriverProfile(ctx context.Context, driverProfileID incentive.DriverProfileID) (incentive.DriverProfile, error) {
	return store.getDriverProfile(ctx, driverProfileID, false)
}

// GetDriverProfileForUpdate locks the row for the surrounding transaction so
// concurrent balance mutations on one driver serialize.
func (store *Store) GetDriverProfileForUpdate(ctx context.Context, driverProfileID incentive.DriverProfileID) (incentive.DriverProfile, error) {
	return store.getDriverProfile(ctx, driverProfileID, true)
}

func (store *Store) getDriverProfile(ctx context.Context, driverProfileID incentive.DriverProfileID, forUpdate bool) (incentive.DriverProfile, error) {
	query := store.db.WithContext(ctx)
	if forUpdate {
		query = store.withRowLock(query)
	}
	var model DriverProfile
	err := query.Where("driver_profile_id = ?", driverProfileID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return incentive.DriverProfile{}, wrapStoreError(errorSubjectDriver, errorCodeGet, incentive.ErrNotFound)
	}
	if err != nil {
		return incentive.DriverProfile{}, wrapStoreError(errorSubjectDriver, errorCodeGet, err)
	}
	return mapDriverProfile(model)
}

// AddToDriverBalance applies a relative increment so concurrent transactions
// never overwrite each other's deltas.
func (store *Store) AddToDriverBalance(ctx context.Context, driverProfileID incentive.DriverProfileID, delta int64) error {
	result := store.db.WithContext(ctx).
		Model(&DriverProfile{}).
		Where("driver_profile_id = ?", driverProfileID.String()).
		Update("points_balance", gorm.Expr("points_balance + ?", delta))
	if result.Error != nil {
		return wrapStoreError(errorSubjectDriver, errorCodeUpdateBalance, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectDriver, errorCodeUpdateBalance, incentive.ErrNotFound)
	}
	return nil
}

func (store *Store) UpdateDriverAffiliation(ctx context.Context, driverProfileID incentive.DriverProfileID, sponsorID incentive.SponsorID, status incentive.DriverStatus) error {
	var sponsor *string
	if !sponsorID.IsZero() {
		value := sponsorID.String()
		sponsor = &value
	}
	result := store.db.WithContext(ctx).
		Model(&DriverProfile{}).
		Where("driver_profile_id = ?", driverProfileID.String()).
		Updates(map[string]any{"sponsor_id": sponsor, "status": status.String()})
	if result.Error != nil {
		return wrapStoreError(errorSubjectDriver, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectDriver, errorCodeUpdate, incentive.ErrNotFound)
	}
	return nil
}

func (store *Store) InsertPointChange(ctx context.Context, change incentive.PointChange) error {
	var sponsor *string
	if !change.SponsorID.IsZero() {
		value := change.SponsorID.String()
		sponsor = &value
	}
	model := PointChange{
		PointChangeID:   change.PointChangeID,
		DriverProfileID: change.DriverProfileID.String(),
		SponsorID:       sponsor,
		Amount:          change.Amount.Int64(),
		Reason:          change.Reason.String(),
		ChangedBy:       change.ChangedBy.String(),
		CreatedAt:       time.Unix(change.CreatedUnixUTC, 0).UTC(),
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectChange, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) SumPointChanges(ctx context.Context, driverProfileID incentive.DriverProfileID) (int64, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&PointChange{}).
		Select("coalesce(sum(amount),0) as total").
		Where("driver_profile_id = ?", driverProfileID.String()).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectChange, errorCodeSum, err)
	}
	return sum.Total, nil
}

func (store *Store) ListPointChanges(ctx context.Context, driverProfileID incentive.DriverProfileID, limit int) ([]incentive.PointChange, error) {
	query := store.db.WithContext(ctx).
		Where("driver_profile_id = ?", driverProfileID.String()).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []PointChange
	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectChange, errorCodeList, err)
	}
	changes := make([]incentive.PointChange, 0, len(rows))
	for _, row := range rows {
		change, err := mapPointChange(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectChange, errorCodeInvalid, err)
		}
		changes = append(changes, change)
	}
	return changes, nil
}

func (store *Store) CreateOrder(ctx context.Context, order incentive.Order, items []incentive.OrderItem) (incentive.Order, error) {
	deliveryJSON, err := json.Marshal(order.DeliveryInfo)
	if err != nil {
		return incentive.Order{}, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	model := Order{
		OrderID:         order.OrderID.String(),
		DriverProfileID: order.DriverProfileID.String(),
		SponsorID:       order.SponsorID.String(),
		TotalPoints:     order.TotalPoints,
		Status:          order.Status.String(),
		DeliveryInfo:    datatypes.JSON(deliveryJSON),
		CreatedAt:       time.Unix(order.CreatedUnixUTC, 0).UTC(),
		UpdatedAt:       time.Unix(order.UpdatedUnixUTC, 0).UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return incentive.Order{}, wrapStoreError(errorSubjectOrder, errorCodeCreate, err)
	}
	for _, item := range items {
		itemModel := OrderItem{
			OrderItemID: item.OrderItemID,
			OrderID:     model.OrderID,
			EbayItemID:  item.EbayItemID,
			Title:       item.Title,
			ImageURL:    item.ImageURL,
			PointPrice:  item.PointPrice,
			Quantity:    item.Quantity,
		}
		if err := store.db.WithContext(ctx).Create(&itemModel).Error; err != nil {
			return incentive.Order{}, wrapStoreError(errorSubjectOrder, errorCodeCreate, err)
		}
	}
	return mapOrder(model)
}

func (store *Store) GetOrder(ctx context.Context, orderID incentive.OrderID) (incentive.Order, error) {
	return store.getOrder(ctx, orderID, false)
}

func (store *Store) GetOrderForUpdate(ctx context.Context, orderID incentive.OrderID) (incentive.Order, error) {
	return store.getOrder(ctx, orderID, true)
}

func (store *Store) getOrder(ctx context.Context, orderID incentive.OrderID, forUpdate bool) (incentive.Order, error) {
	query := store.db.WithContext(ctx)
	if forUpdate {
		query = store.withRowLock(query)
	}
	var model Order
	err := query.Where("order_id = ?", orderID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return incentive.Order{}, wrapStoreError(errorSubjectOrder, errorCodeGet, incentive.ErrNotFound)
	}
	if err != nil {
		return incentive.Order{}, wrapStoreError(errorSubjectOrder, errorCodeGet, err)
	}
	return mapOrder(model)
}

func (store *Store) ListOrderItems(ctx context.Context, orderID incentive.OrderID) ([]incentive.OrderItem, error) {
	var rows []OrderItem
	err := store.db.WithContext(ctx).
		Where("order_id = ?", orderID.String()).
		Order("order_item_id").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectOrder, errorCodeList, err)
	}
	items := make([]incentive.OrderItem, 0, len(rows))
	for _, row := range rows {
		item, err := mapOrderItem(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// UpdateOrderStatus is a compare-and-set on the status column; zero affected
// rows means the order moved out of the expected state underneath the caller.
func (store *Store) UpdateOrderStatus(ctx context.Context, orderID incentive.OrderID, from incentive.OrderStatus, to incentive.OrderStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Order{}).
		Where("order_id = ? AND status = ?", orderID.String(), from.String()).
		Updates(map[string]any{"status": to.String(), "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return wrapStoreError(errorSubjectOrder, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectOrder, errorCodeUpdateStatus, incentive.IllegalTransitionError{Current: from, Attempted: to})
	}
	return nil
}

func (store *Store) ListOrdersByDriver(ctx context.Context, driverProfileID incentive.DriverProfileID) ([]incentive.Order, error) {
	return store.listOrders(ctx, "driver_profile_id = ?", driverProfileID.String())
}

func (store *Store) ListOrdersBySponsor(ctx context.Context, sponsorID incentive.SponsorID) ([]incentive.Order, error) {
	return store.listOrders(ctx, "sponsor_id = ?", sponsorID.String())
}

func (store *Store) listOrders(ctx context.Context, condition string, value string) ([]incentive.Order, error) {
	var rows []Order
	err := store.db.WithContext(ctx).
		Where(condition, value).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectOrder, errorCodeList, err)
	}
	orders := make([]incentive.Order, 0, len(rows))
	for _, row := range rows {
		order, err := mapOrder(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (store *Store) GetOrCreateCart(ctx context.Context, driverProfileID incentive.DriverProfileID) (incentive.Cart, error) {
	var model Cart
	err := store.db.WithContext(ctx).
		Where("driver_profile_id = ?", driverProfileID.String()).
		Take(&model).Error
	if err == nil {
		return mapCart(model)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return incentive.Cart{}, wrapStoreError(errorSubjectCart, errorCodeGet, err)
	}
	model = Cart{DriverProfileID: driverProfileID.String(), CreatedAt: time.Now().UTC()}
	createErr := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(createErr) {
		// Lost the race to another request; the row exists now.
		err = store.db.WithContext(ctx).
			Where("driver_profile_id = ?", driverProfileID.String()).
			Take(&model).Error
		if err != nil {
			return incentive.Cart{}, wrapStoreError(errorSubjectCart, errorCodeGet, err)
		}
		return mapCart(model)
	}
	if createErr != nil {
		return incentive.Cart{}, wrapStoreError(errorSubjectCart, errorCodeCreate, createErr)
	}
	return mapCart(model)
}

func (store *Store) ListCartItems(ctx context.Context, cartID string) ([]incentive.CartItem, error) {
	var rows []CartItem
	err := store.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("cart_item_id").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectCart, errorCodeList, err)
	}
	items := make([]incentive.CartItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapCartItem(row))
	}
	return items, nil
}

func (store *Store) GetCartItem(ctx context.Context, cartItemID string) (incentive.CartItem, error) {
	var model CartItem
	err := store.db.WithContext(ctx).Where("cart_item_id = ?", cartItemID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return incentive.CartItem{}, wrapStoreError(errorSubjectCart, errorCodeGet, incentive.ErrNotFound)
	}
	if err != nil {
		return incentive.CartItem{}, wrapStoreError(errorSubjectCart, errorCodeGet, err)
	}
	return mapCartItem(model), nil
}

func (store *Store) InsertCartItem(ctx context.Context, item incentive.CartItem) error {
	model := CartItem{
		CartItemID: item.CartItemID,
		CartID:     item.CartID,
		ProductID:  item.ProductID,
		EbayItemID: item.EbayItemID,
		Title:      item.Title,
		ImageURL:   item.ImageURL,
		PointPrice: item.PointPrice,
		Quantity:   item.Quantity,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectCart, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) UpdateCartItemQuantity(ctx context.Context, cartItemID string, quantity int) error {
	result := store.db.WithContext(ctx).
		Model(&CartItem{}).
		Where("cart_item_id = ?", cartItemID).
		Update("quantity", quantity)
	if result.Error != nil {
		return wrapStoreError(errorSubjectCart, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCart, errorCodeUpdate, incentive.ErrNotFound)
	}
	return nil
}

func (store *Store) DeleteCartItem(ctx context.Context, cartItemID string) error {
	err := store.db.WithContext(ctx).
		Where("cart_item_id = ?", cartItemID).
		Delete(&CartItem{}).Error
	if err != nil {
		return wrapStoreError(errorSubjectCart, errorCodeDelete, err)
	}
	return nil
}

func (store *Store) ClearCart(ctx context.Context, cartID string) error {
	err := store.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&CartItem{}).Error
	if err != nil {
		return wrapStoreError(errorSubjectCart, errorCodeDelete, err)
	}
	return nil
}

func (store *Store) GetSponsor(ctx context.Context, sponsorID incentive.SponsorID) (incentive.Sponsor, error) {
	var model Sponsor
	err := store.db.WithContext(ctx).Where("sponsor_id = ?", sponsorID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return incentive.Sponsor{}, wrapStoreError(errorSubjectSponsor, errorCodeGet, incentive.ErrNotFound)
	}
	if err != nil {
		return incentive.Sponsor{}, wrapStoreError(errorSubjectSponsor, errorCodeGet, err)
	}
	return mapSponsor(model)
}

func (store *Store) UpdateSponsorPointValue(ctx context.Context, sponsorID incentive.SponsorID, pointValue decimal.Decimal) error {
	result := store.db.WithContext(ctx).
		Model(&Sponsor{}).
		Where("sponsor_id = ?", sponsorID.String()).
		Update("point_value", pointValue)
	if result.Error != nil {
		return wrapStoreError(errorSubjectSponsor, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectSponsor, errorCodeUpdate, incentive.ErrNotFound)
	}
	return nil
}

func (store *Store) GetCatalogProduct(ctx context.Context, productID string) (incentive.CatalogProduct, error) {
	var model CatalogProduct
	err := store.db.WithContext(ctx).Where("product_id = ?", productID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return incentive.CatalogProduct{}, wrapStoreError(errorSubjectProduct, errorCodeGet, incentive.ErrNotFound)
	}
	if err != nil {
		return incentive.CatalogProduct{}, wrapStoreError(errorSubjectProduct, errorCodeGet, err)
	}
	return mapCatalogProduct(model)
}

func (store *Store) CreateCatalogProduct(ctx context.Context, product incentive.CatalogProduct) (incentive.CatalogProduct, error) {
	model := CatalogProduct{
		ProductID:  product.ProductID,
		SponsorID:  product.SponsorID.String(),
		EbayItemID: product.EbayItemID,
		Title:      product.Title,
		ImageURL:   product.ImageURL,
		Price:      product.Price,
		IsActive:   product.IsActive,
		CreatedAt:  time.Now().UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return incentive.CatalogProduct{}, wrapStoreError(errorSubjectProduct, errorCodeCreate, err)
	}
	return mapCatalogProduct(model)
}

func (store *Store) UpdateCatalogProduct(ctx context.Context, product incentive.CatalogProduct) error {
	result := store.db.WithContext(ctx).
		Model(&CatalogProduct{}).
		Where("product_id = ?", product.ProductID).
		Updates(map[string]any{
			"title":     product.Title,
			"image_url": product.ImageURL,
			"price":     product.Price,
			"is_active": product.IsActive,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectProduct, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectProduct, errorCodeUpdate, incentive.ErrNotFound)
	}
	return nil
}

func (store *Store) DeleteCatalogProduct(ctx context.Context, productID string) error {
	err := store.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Delete(&CatalogProduct{}).Error
	if err != nil {
		return wrapStoreError(errorSubjectProduct, errorCodeDelete, err)
	}
	return nil
}

func (store *Store) ListCatalogProducts(ctx context.Context, sponsorID incentive.SponsorID, activeOnly bool) ([]incentive.CatalogProduct, error) {
	query := store.db.WithContext(ctx).Where("sponsor_id = ?", sponsorID.String())
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var rows []CatalogProduct
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectProduct, errorCodeList, err)
	}
	products := make([]incentive.CatalogProduct, 0, len(rows))
	for _, row := range rows {
		product, err := mapCatalogProduct(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectProduct, errorCodeInvalid, err)
		}
		products = append(products, product)
	}
	return products, nil
}

func (store *Store) ListApplications(ctx context.Context, driverProfileID incentive.DriverProfileID, sponsorID incentive.SponsorID) ([]incentive.DriverApplication, error) {
	var rows []DriverApplication
	err := store.db.WithContext(ctx).
		Where("driver_profile_id = ? AND sponsor_id = ?", driverProfileID.String(), sponsorID.String()).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectApp, errorCodeList, err)
	}
	return mapApplications(rows)
}

func (store *Store) ListApplicationsBySponsor(ctx context.Context, sponsorID incentive.SponsorID, status incentive.ApplicationStatus) ([]incentive.DriverApplication, error) {
	var rows []DriverApplication
	err := store.db.WithContext(ctx).
		Where("sponsor_id = ? AND status = ?", sponsorID.String(), status.String()).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectApp, errorCodeList, err)
	}
	return mapApplications(rows)
}

func (store *Store) GetApplication(ctx context.Context, applicationID string) (incentive.DriverApplication, error) {
	var model DriverApplication
	err := store.db.WithContext(ctx).Where("application_id = ?", applicationID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return incentive.DriverApplication{}, wrapStoreError(errorSubjectApp, errorCodeGet, incentive.ErrNotFound)
	}
	if err != nil {
		return incentive.DriverApplication{}, wrapStoreError(errorSubjectApp, errorCodeGet, err)
	}
	return mapApplication(model)
}

func (store *Store) CreateApplication(ctx context.Context, application incentive.DriverApplication) (incentive.DriverApplication, error) {
	model := DriverApplication{
		ApplicationID:   application.ApplicationID,
		DriverProfileID: application.DriverProfileID.String(),
		SponsorID:       application.SponsorID.String(),
		Status:          application.Status.String(),
		CreatedAt:       time.Unix(application.CreatedUnixUTC, 0).UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return incentive.DriverApplication{}, wrapStoreError(errorSubjectApp, errorCodeCreate, err)
	}
	return mapApplication(model)
}

func (store *Store) UpdateApplicationStatus(ctx context.Context, applicationID string, status incentive.ApplicationStatus) error {
	result := store.db.WithContext(ctx).
		Model(&DriverApplication{}).
		Where("application_id = ?", applicationID).
		Update("status", status.String())
	if result.Error != nil {
		return wrapStoreError(errorSubjectApp, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectApp, errorCodeUpdateStatus, incentive.ErrNotFound)
	}
	return nil
}

func (store *Store) DeleteApplication(ctx context.Context, applicationID string) error {
	err := store.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Delete(&DriverApplication{}).Error
	if err != nil {
		return wrapStoreError(errorSubjectApp, errorCodeDelete, err)
	}
	return nil
}

func (store *Store) CreateRefundRequest(ctx context.Context, request incentive.RefundRequest) (incentive.RefundRequest, error) {
	model := RefundRequest{
		RefundRequestID: request.RefundRequestID,
		OrderID:         request.OrderID.String(),
		Reason:          request.Reason,
		Status:          request.Status.String(),
		CreatedAt:       time.Unix(request.CreatedUnixUTC, 0).UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return incentive.RefundRequest{}, wrapStoreError(errorSubjectRefund, errorCodeCreate, err)
	}
	return mapRefundRequest(model)
}

func (store *Store) GetRefundRequestForUpdate(ctx context.Context, refundRequestID string) (incentive.RefundRequest, error) {
	var model RefundRequest
	err := store.withRowLock(store.db.WithContext(ctx)).
		Where("refund_request_id = ?", refundRequestID).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return incentive.RefundRequest{}, wrapStoreError(errorSubjectRefund, errorCodeGet, incentive.ErrNotFound)
	}
	if err != nil {
		return incentive.RefundRequest{}, wrapStoreError(errorSubjectRefund, errorCodeGet, err)
	}
	return mapRefundRequest(model)
}

func (store *Store) UpdateRefundRequestStatus(ctx context.Context, refundRequestID string, from incentive.RefundRequestStatus, to incentive.RefundRequestStatus) error {
	result := store.db.WithContext(ctx).
		Model(&RefundRequest{}).
		Where("refund_request_id = ? AND status = ?", refundRequestID, from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return wrapStoreError(errorSubjectRefund, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectRefund, errorCodeUpdateStatus, incentive.ErrRefundRequestClosed)
	}
	return nil
}

func (store *Store) ListRefundRequestsBySponsor(ctx context.Context, sponsorID incentive.SponsorID) ([]incentive.RefundRequest, error) {
	var rows []RefundRequest
	err := store.db.WithContext(ctx).
		Joins("JOIN orders ON orders.order_id = refund_requests.order_id").
		Where("orders.sponsor_id = ?", sponsorID.String()).
		Order("refund_requests.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectRefund, errorCodeList, err)
	}
	requests := make([]incentive.RefundRequest, 0, len(rows))
	for _, row := range rows {
		request, err := mapRefundRequest(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectRefund, errorCodeInvalid, err)
		}
		requests = append(requests, request)
	}
	return requests, nil
}

// withRowLock adds SELECT ... FOR UPDATE. SQLite serializes writers on its
// own and rejects the syntax, so the clause only applies elsewhere.
func (store *Store) withRowLock(query *gorm.DB) *gorm.DB {
	if store.db.Dialector.Name() == "sqlite" {
		return query
	}
	return query.Clauses(clause.Locking{Strength: "UPDATE"})
}

func wrapStoreError(subject string, code string, err error) error {
	return incentive.WrapError(errorOperationStore, subject, code, err)
}

type sqlSum struct {
	Total int64
}

func mapDriverProfile(model DriverProfile) (incentive.DriverProfile, error) {
	driverProfileID, err := incentive.NewDriverProfileID(model.DriverProfileID)
	if err != nil {
		return incentive.DriverProfile{}, wrapStoreError(errorSubjectDriver, errorCodeInvalid, err)
	}
	userID, err := incentive.NewUserID(model.UserID)
	if err != nil {
		return incentive.DriverProfile{}, wrapStoreError(errorSubjectDriver, errorCodeInvalid, err)
	}
	var sponsorID incentive.SponsorID
	if model.SponsorID != nil {
		sponsorID, err = incentive.NewSponsorID(*model.SponsorID)
		if err != nil {
			return incentive.DriverProfile{}, wrapStoreError(errorSubjectDriver, errorCodeInvalid, err)
		}
	}
	status, err := incentive.ParseDriverStatus(model.Status)
	if err != nil {
		return incentive.DriverProfile{}, wrapStoreError(errorSubjectDriver, errorCodeInvalid, err)
	}
	return incentive.DriverProfile{
		DriverProfileID: driverProfileID,
		UserID:          userID,
		SponsorID:       sponsorID,
		PointsBalance:   model.PointsBalance,
		Status:          status,
		CreatedUnixUTC:  model.CreatedAt.Unix(),
	}, nil
}

func mapPointChange(model PointChange) (incentive.PointChange, error) {
	driverProfileID, err := incentive.NewDriverProfileID(model.DriverProfileID)
	if err != nil {
		return incentive.PointChange{}, err
	}
	var sponsorID incentive.SponsorID
	if model.SponsorID != nil {
		sponsorID, err = incentive.NewSponsorID(*model.SponsorID)
		if err != nil {
			return incentive.PointChange{}, err
		}
	}
	amount, err := incentive.NewPoints(model.Amount)
	if err != nil {
		return incentive.PointChange{}, err
	}
	reason, err := incentive.NewReason(model.Reason)
	if err != nil {
		return incentive.PointChange{}, err
	}
	changedBy, err := incentive.NewUserID(model.ChangedBy)
	if err != nil {
		return incentive.PointChange{}, err
	}
	return incentive.PointChange{
		PointChangeID:   model.PointChangeID,
		DriverProfileID: driverProfileID,
		SponsorID:       sponsorID,
		Amount:          amount,
		Reason:          reason,
		ChangedBy:       changedBy,
		CreatedUnixUTC:  model.CreatedAt.Unix(),
	}, nil
}

func mapOrder(model Order) (incentive.Order, error) {
	orderID, err := incentive.NewOrderID(model.OrderID)
	if err != nil {
		return incentive.Order{}, err
	}
	driverProfileID, err := incentive.NewDriverProfileID(model.DriverProfileID)
	if err != nil {
		return incentive.Order{}, err
	}
	sponsorID, err := incentive.NewSponsorID(model.SponsorID)
	if err != nil {
		return incentive.Order{}, err
	}
	status, err := incentive.ParseOrderStatus(model.Status)
	if err != nil {
		return incentive.Order{}, err
	}
	var deliveryInfo incentive.DeliveryInfo
	if err := json.Unmarshal(model.DeliveryInfo, &deliveryInfo); err != nil {
		return incentive.Order{}, err
	}
	return incentive.Order{
		OrderID:         orderID,
		DriverProfileID: driverProfileID,
		SponsorID:       sponsorID,
		TotalPoints:     model.TotalPoints,
		Status:          status,
		DeliveryInfo:    deliveryInfo,
		CreatedUnixUTC:  model.CreatedAt.Unix(),
		UpdatedUnixUTC:  model.UpdatedAt.Unix(),
	}, nil
}

func mapOrderItem(model OrderItem) (incentive.OrderItem, error) {
	orderID, err := incentive.NewOrderID(model.OrderID)
	if err != nil {
		return incentive.OrderItem{}, err
	}
	return incentive.OrderItem{
		OrderItemID: model.OrderItemID,
		OrderID:     orderID,
		EbayItemID:  model.EbayItemID,
		Title:       model.Title,
		ImageURL:    model.ImageURL,
		PointPrice:  model.PointPrice,
		Quantity:    model.Quantity,
	}, nil
}

func mapCart(model Cart) (incentive.Cart, error) {
	driverProfileID, err := incentive.NewDriverProfileID(model.DriverProfileID)
	if err != nil {
		return incentive.Cart{}, wrapStoreError(errorSubjectCart, errorCodeInvalid, err)
	}
	return incentive.Cart{CartID: model.CartID, DriverProfileID: driverProfileID}, nil
}

func mapCartItem(model CartItem) incentive.CartItem {
	return incentive.CartItem{
		CartItemID: model.CartItemID,
		CartID:     model.CartID,
		ProductID:  model.ProductID,
		EbayItemID: model.EbayItemID,
		Title:      model.Title,
		ImageURL:   model.ImageURL,
		PointPrice: model.PointPrice,
		Quantity:   model.Quantity,
	}
}

func mapSponsor(model Sponsor) (incentive.Sponsor, error) {
	sponsorID, err := incentive.NewSponsorID(model.SponsorID)
	if err != nil {
		return incentive.Sponsor{}, wrapStoreError(errorSubjectSponsor, errorCodeInvalid, err)
	}
	return incentive.Sponsor{
		SponsorID:  sponsorID,
		Name:       model.Name,
		PointValue: model.PointValue,
	}, nil
}

func mapCatalogProduct(model CatalogProduct) (incentive.CatalogProduct, error) {
	sponsorID, err := incentive.NewSponsorID(model.SponsorID)
	if err != nil {
		return incentive.CatalogProduct{}, err
	}
	return incentive.CatalogProduct{
		ProductID:  model.ProductID,
		SponsorID:  sponsorID,
		EbayItemID: model.EbayItemID,
		Title:      model.Title,
		ImageURL:   model.ImageURL,
		Price:      model.Price,
		IsActive:   model.IsActive,
	}, nil
}

func mapApplications(rows []DriverApplication) ([]incentive.DriverApplication, error) {
	applications := make([]incentive.DriverApplication, 0, len(rows))
	for _, row := range rows {
		application, err := mapApplication(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectApp, errorCodeInvalid, err)
		}
		applications = append(applications, application)
	}
	return applications, nil
}

func mapApplication(model DriverApplication) (incentive.DriverApplication, error) {
	driverProfileID, err := incentive.NewDriverProfileID(model.DriverProfileID)
	if err != nil {
		return incentive.DriverApplication{}, err
	}
	sponsorID, err := incentive.NewSponsorID(model.SponsorID)
	if err != nil {
		return incentive.DriverApplication{}, err
	}
	status, err := incentive.ParseApplicationStatus(model.Status)
	if err != nil {
		return incentive.DriverApplication{}, err
	}
	return incentive.DriverApplication{
		ApplicationID:   model.ApplicationID,
		DriverProfileID: driverProfileID,
		SponsorID:       sponsorID,
		Status:          status,
		CreatedUnixUTC:  model.CreatedAt.Unix(),
	}, nil
}

func mapRefundRequest(model RefundRequest) (incentive.RefundRequest, error) {
	orderID, err := incentive.NewOrderID(model.OrderID)
	if err != nil {
		return incentive.RefundRequest{}, err
	}
	return incentive.RefundRequest{
		RefundRequestID: model.RefundRequestID,
		OrderID:         orderID,
		Reason:          model.Reason,
		Status:          incentive.RefundRequestStatus(model.Status),
		CreatedUnixUTC:  model.CreatedAt.Unix(),
	}, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
