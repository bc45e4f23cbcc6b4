package incentive

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var errStubFailure = errors.New("stub store failure")

// stubStore is an in-memory Store with copy-on-transaction rollback so the
// atomicity properties of the services can be observed without a database.
type stubStore struct {
	drivers      map[string]DriverProfile
	changes      []PointChange
	orders       map[string]Order
	orderItems   map[string][]OrderItem
	carts        map[string]Cart
	cartItems    map[string]CartItem
	sponsors     map[string]Sponsor
	products     map[string]CatalogProduct
	applications map[string]DriverApplication
	refunds      map[string]RefundRequest
	nextID       int
	failOn       string
}

func newStubStore() *stubStore {
	return &stubStore{
		drivers:      map[string]DriverProfile{},
		orders:       map[string]Order{},
		orderItems:   map[string][]OrderItem{},
		carts:        map[string]Cart{},
		cartItems:    map[string]CartItem{},
		sponsors:     map[string]Sponsor{},
		products:     map[string]CatalogProduct{},
		applications: map[string]DriverApplication{},
		refunds:      map[string]RefundRequest{},
	}
}

func (store *stubStore) newID(prefix string) string {
	store.nextID++
	return fmt.Sprintf("%s-%08d", prefix, store.nextID)
}

func (store *stubStore) snapshot() *stubStore {
	copied := newStubStore()
	copied.nextID = store.nextID
	copied.failOn = store.failOn
	for key, value := range store.drivers {
		copied.drivers[key] = value
	}
	copied.changes = append([]PointChange(nil), store.changes...)
	for key, value := range store.orders {
		copied.orders[key] = value
	}
	for key, value := range store.orderItems {
		copied.orderItems[key] = append([]OrderItem(nil), value...)
	}
	for key, value := range store.carts {
		copied.carts[key] = value
	}
	for key, value := range store.cartItems {
		copied.cartItems[key] = value
	}
	for key, value := range store.sponsors {
		copied.sponsors[key] = value
	}
	for key, value := range store.products {
		copied.products[key] = value
	}
	for key, value := range store.applications {
		copied.applications[key] = value
	}
	for key, value := range store.refunds {
		copied.refunds[key] = value
	}
	return copied
}

func (store *stubStore) restore(from *stubStore) {
	store.drivers = from.drivers
	store.changes = from.changes
	store.orders = from.orders
	store.orderItems = from.orderItems
	store.carts = from.carts
	store.cartItems = from.cartItems
	store.sponsors = from.sponsors
	store.products = from.products
	store.applications = from.applications
	store.refunds = from.refunds
	store.nextID = from.nextID
}

func (store *stubStore) fail(method string) error {
	if store.failOn == method {
		return WrapError("store", "stub", "forced", errStubFailure)
	}
	return nil
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	saved := store.snapshot()
	if err := fn(ctx, store); err != nil {
		store.restore(saved)
		return err
	}
	return nil
}

func (store *stubStore) GetDriverProfile(_ context.Context, driverProfileID DriverProfileID) (DriverProfile, error) {
	driver, ok := store.drivers[driverProfileID.String()]
	if !ok {
		return DriverProfile{}, fmt.Errorf("%w: driver %s", ErrNotFound, driverProfileID)
	}
	return driver, nil
}

func (store *stubStore) GetDriverProfileForUpdate(ctx context.Context, driverProfileID DriverProfileID) (DriverProfile, error) {
	return store.GetDriverProfile(ctx, driverProfileID)
}

func (store *stubStore) AddToDriverBalance(_ context.Context, driverProfileID DriverProfileID, delta int64) error {
	if err := store.fail("AddToDriverBalance"); err != nil {
		return err
	}
	driver, ok := store.drivers[driverProfileID.String()]
	if !ok {
		return fmt.Errorf("%w: driver %s", ErrNotFound, driverProfileID)
	}
	driver.PointsBalance += delta
	store.drivers[driverProfileID.String()] = driver
	return nil
}

func (store *stubStore) UpdateDriverAffiliation(_ context.Context, driverProfileID DriverProfileID, sponsorID SponsorID, status DriverStatus) error {
	driver, ok := store.drivers[driverProfileID.String()]
	if !ok {
		return fmt.Errorf("%w: driver %s", ErrNotFound, driverProfileID)
	}
	driver.SponsorID = sponsorID
	driver.Status = status
	store.drivers[driverProfileID.String()] = driver
	return nil
}

func (store *stubStore) InsertPointChange(_ context.Context, change PointChange) error {
	if err := store.fail("InsertPointChange"); err != nil {
		return err
	}
	change.PointChangeID = store.newID("pc")
	store.changes = append(store.changes, change)
	return nil
}

func (store *stubStore) SumPointChanges(_ context.Context, driverProfileID DriverProfileID) (int64, error) {
	var sum int64
	for _, change := range store.changes {
		if change.DriverProfileID == driverProfileID {
			sum += change.Amount.Int64()
		}
	}
	return sum, nil
}

func (store *stubStore) ListPointChanges(_ context.Context, driverProfileID DriverProfileID, limit int) ([]PointChange, error) {
	var matched []PointChange
	for _, change := range store.changes {
		if change.DriverProfileID == driverProfileID {
			matched = append(matched, change)
		}
	}
	sort.SliceStable(matched, func(left, right int) bool {
		return matched[left].CreatedUnixUTC > matched[right].CreatedUnixUTC
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (store *stubStore) CreateOrder(_ context.Context, order Order, items []OrderItem) (Order, error) {
	if err := store.fail("CreateOrder"); err != nil {
		return Order{}, err
	}
	orderID, err := NewOrderID(store.newID("order"))
	if err != nil {
		return Order{}, err
	}
	order.OrderID = orderID
	store.orders[orderID.String()] = order
	stored := make([]OrderItem, 0, len(items))
	for _, item := range items {
		item.OrderItemID = store.newID("oi")
		item.OrderID = orderID
		stored = append(stored, item)
	}
	store.orderItems[orderID.String()] = stored
	return order, nil
}

func (store *stubStore) GetOrder(_ context.Context, orderID OrderID) (Order, error) {
	order, ok := store.orders[orderID.String()]
	if !ok {
		return Order{}, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	return order, nil
}

func (store *stubStore) GetOrderForUpdate(ctx context.Context, orderID OrderID) (Order, error) {
	return store.GetOrder(ctx, orderID)
}

func (store *stubStore) ListOrderItems(_ context.Context, orderID OrderID) ([]OrderItem, error) {
	return append([]OrderItem(nil), store.orderItems[orderID.String()]...), nil
}

func (store *stubStore) UpdateOrderStatus(_ context.Context, orderID OrderID, from OrderStatus, to OrderStatus) error {
	if err := store.fail("UpdateOrderStatus"); err != nil {
		return err
	}
	order, ok := store.orders[orderID.String()]
	if !ok {
		return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if order.Status != from {
		return fmt.Errorf("%w: order %s is %s", ErrIllegalTransition, orderID, order.Status)
	}
	order.Status = to
	store.orders[orderID.String()] = order
	return nil
}

func (store *stubStore) ListOrdersByDriver(_ context.Context, driverProfileID DriverProfileID) ([]Order, error) {
	var matched []Order
	for _, order := range store.orders {
		if order.DriverProfileID == driverProfileID {
			matched = append(matched, order)
		}
	}
	return matched, nil
}

func (store *stubStore) ListOrdersBySponsor(_ context.Context, sponsorID SponsorID) ([]Order, error) {
	var matched []Order
	for _, order := range store.orders {
		if order.SponsorID == sponsorID {
			matched = append(matched, order)
		}
	}
	return matched, nil
}

func (store *stubStore) GetOrCreateCart(_ context.Context, driverProfileID DriverProfileID) (Cart, error) {
	if cart, ok := store.carts[driverProfileID.String()]; ok {
		return cart, nil
	}
	cart := Cart{CartID: store.newID("cart"), DriverProfileID: driverProfileID}
	store.carts[driverProfileID.String()] = cart
	return cart, nil
}

func (store *stubStore) ListCartItems(_ context.Context, cartID string) ([]CartItem, error) {
	var matched []CartItem
	for _, item := range store.cartItems {
		if item.CartID == cartID {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(left, right int) bool {
		return matched[left].CartItemID < matched[right].CartItemID
	})
	return matched, nil
}

func (store *stubStore) GetCartItem(_ context.Context, cartItemID string) (CartItem, error) {
	item, ok := store.cartItems[cartItemID]
	if !ok {
		return CartItem{}, fmt.Errorf("%w: cart item %s", ErrNotFound, cartItemID)
	}
	return item, nil
}

func (store *stubStore) InsertCartItem(_ context.Context, item CartItem) error {
	item.CartItemID = store.newID("ci")
	store.cartItems[item.CartItemID] = item
	return nil
}

func (store *stubStore) UpdateCartItemQuantity(_ context.Context, cartItemID string, quantity int) error {
	item, ok := store.cartItems[cartItemID]
	if !ok {
		return fmt.Errorf("%w: cart item %s", ErrNotFound, cartItemID)
	}
	item.Quantity = quantity
	store.cartItems[cartItemID] = item
	return nil
}

func (store *stubStore) DeleteCartItem(_ context.Context, cartItemID string) error {
	delete(store.cartItems, cartItemID)
	return nil
}

func (store *stubStore) ClearCart(_ context.Context, cartID string) error {
	if err := store.fail("ClearCart"); err != nil {
		return err
	}
	for key, item := range store.cartItems {
		if item.CartID == cartID {
			delete(store.cartItems, key)
		}
	}
	return nil
}

func (store *stubStore) GetSponsor(_ context.Context, sponsorID SponsorID) (Sponsor, error) {
	sponsor, ok := store.sponsors[sponsorID.String()]
	if !ok {
		return Sponsor{}, fmt.Errorf("%w: sponsor %s", ErrNotFound, sponsorID)
	}
	return sponsor, nil
}

func (store *stubStore) UpdateSponsorPointValue(_ context.Context, sponsorID SponsorID, pointValue decimal.Decimal) error {
	sponsor, ok := store.sponsors[sponsorID.String()]
	if !ok {
		return fmt.Errorf("%w: sponsor %s", ErrNotFound, sponsorID)
	}
	sponsor.PointValue = pointValue
	store.sponsors[sponsorID.String()] = sponsor
	return nil
}

func (store *stubStore) GetCatalogProduct(_ context.Context, productID string) (CatalogProduct, error) {
	product, ok := store.products[productID]
	if !ok {
		return CatalogProduct{}, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	return product, nil
}

func (store *stubStore) CreateCatalogProduct(_ context.Context, product CatalogProduct) (CatalogProduct, error) {
	product.ProductID = store.newID("prod")
	store.products[product.ProductID] = product
	return product, nil
}

func (store *stubStore) UpdateCatalogProduct(_ context.Context, product CatalogProduct) error {
	if _, ok := store.products[product.ProductID]; !ok {
		return fmt.Errorf("%w: product %s", ErrNotFound, product.ProductID)
	}
	store.products[product.ProductID] = product
	return nil
}

func (store *stubStore) DeleteCatalogProduct(_ context.Context, productID string) error {
	delete(store.products, productID)
	return nil
}

func (store *stubStore) ListCatalogProducts(_ context.Context, sponsorID SponsorID, activeOnly bool) ([]CatalogProduct, error) {
	var matched []CatalogProduct
	for _, product := range store.products {
		if product.SponsorID != sponsorID {
			continue
		}
		if activeOnly && !product.IsActive {
			continue
		}
		matched = append(matched, product)
	}
	sort.Slice(matched, func(left, right int) bool {
		return matched[left].ProductID < matched[right].ProductID
	})
	return matched, nil
}

func (store *stubStore) ListApplications(_ context.Context, driverProfileID DriverProfileID, sponsorID SponsorID) ([]DriverApplication, error) {
	var matched []DriverApplication
	for _, application := range store.applications {
		if application.DriverProfileID == driverProfileID && application.SponsorID == sponsorID {
			matched = append(matched, application)
		}
	}
	return matched, nil
}

func (store *stubStore) ListApplicationsBySponsor(_ context.Context, sponsorID SponsorID, status ApplicationStatus) ([]DriverApplication, error) {
	var matched []DriverApplication
	for _, application := range store.applications {
		if application.SponsorID == sponsorID && application.Status == status {
			matched = append(matched, application)
		}
	}
	return matched, nil
}

func (store *stubStore) GetApplication(_ context.Context, applicationID string) (DriverApplication, error) {
	application, ok := store.applications[applicationID]
	if !ok {
		return DriverApplication{}, fmt.Errorf("%w: application %s", ErrNotFound, applicationID)
	}
	return application, nil
}

func (store *stubStore) CreateApplication(_ context.Context, application DriverApplication) (DriverApplication, error) {
	application.ApplicationID = store.newID("app")
	store.applications[application.ApplicationID] = application
	return application, nil
}

func (store *stubStore) UpdateApplicationStatus(_ context.Context, applicationID string, status ApplicationStatus) error {
	application, ok := store.applications[applicationID]
	if !ok {
		return fmt.Errorf("%w: application %s", ErrNotFound, applicationID)
	}
	application.Status = status
	store.applications[applicationID] = application
	return nil
}

func (store *stubStore) DeleteApplication(_ context.Context, applicationID string) error {
	delete(store.applications, applicationID)
	return nil
}

func (store *stubStore) CreateRefundRequest(_ context.Context, request RefundRequest) (RefundRequest, error) {
	request.RefundRequestID = store.newID("rr")
	store.refunds[request.RefundRequestID] = request
	return request, nil
}

func (store *stubStore) GetRefundRequestForUpdate(_ context.Context, refundRequestID string) (RefundRequest, error) {
	request, ok := store.refunds[refundRequestID]
	if !ok {
		return RefundRequest{}, fmt.Errorf("%w: refund request %s", ErrNotFound, refundRequestID)
	}
	return request, nil
}

func (store *stubStore) UpdateRefundRequestStatus(_ context.Context, refundRequestID string, from RefundRequestStatus, to RefundRequestStatus) error {
	request, ok := store.refunds[refundRequestID]
	if !ok {
		return fmt.Errorf("%w: refund request %s", ErrNotFound, refundRequestID)
	}
	if request.Status != from {
		return ErrRefundRequestClosed
	}
	request.Status = to
	store.refunds[refundRequestID] = request
	return nil
}

func (store *stubStore) ListRefundRequestsBySponsor(_ context.Context, sponsorID SponsorID) ([]RefundRequest, error) {
	var matched []RefundRequest
	for _, request := range store.refunds {
		order, ok := store.orders[request.OrderID.String()]
		if !ok || order.SponsorID != sponsorID {
			continue
		}
		matched = append(matched, request)
	}
	return matched, nil
}
