package pgstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/goodhaul/incentive/pkg/incentive"
)

const (
	errorOperationStore     = "store"
	errorSubjectDriver      = "driver"
	errorSubjectChange      = "point_change"
	errorSubjectOrder       = "order"
	errorSubjectCart        = "cart"
	errorSubjectSponsor     = "sponsor"
	errorSubjectProduct     = "product"
	errorSubjectApp         = "application"
	errorSubjectRefund      = "refund_request"
	errorSubjectTransaction = "transaction"
	errorCodeBegin          = "begin"
	errorCodeCommit         = "commit"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeCreate         = "create"
	errorCodeUpdate         = "update"
	errorCodeDelete         = "delete"
	errorCodeList           = "list"
	errorCodeSum            = "sum"
	errorCodeInvalid        = "invalid"
	errorCodeUpdateStatus   = "update_status"

	sqlSelectDriver = `
		select driver_profile_id::text, user_id, coalesce(sponsor_id::text,''), points_balance, status,
			extract(epoch from created_at)::bigint
		from driver_profiles
		where driver_profile_id = $1
	`

	sqlSelectDriverForUpdate = sqlSelectDriver + ` for update`

	sqlAddToDriverBalance = `
		update driver_profiles set points_balance = points_balance + $2
		where driver_profile_id = $1
	`

	sqlUpdateDriverAffiliation = `
		update driver_profiles set sponsor_id = nullif($2,'')::uuid, status = $3
		where driver_profile_id = $1
	`

	sqlInsertPointChange = `
		insert into point_changes(point_change_id, driver_profile_id, sponsor_id, amount, reason, changed_by, created_at)
		values (gen_random_uuid(), $1, nullif($2,'')::uuid, $3, $4, $5, to_timestamp($6))
	`

	sqlSumPointChanges = `
		select coalesce(sum(amount),0) from point_changes where driver_profile_id = $1
	`

	sqlListPointChanges = `
		select point_change_id::text, driver_profile_id::text, coalesce(sponsor_id::text,''),
			amount, reason, changed_by, extract(epoch from created_at)::bigint
		from point_changes
		where driver_profile_id = $1
		order by created_at desc
		limit $2
	`

	sqlInsertOrder = `
		insert into orders(order_id, driver_profile_id, sponsor_id, total_points, status, delivery_info, created_at, updated_at)
		values (gen_random_uuid(), $1, $2, $3, $4, $5::jsonb, to_timestamp($6), to_timestamp($7))
		returning order_id::text
	`

	sqlInsertOrderItem = `
		insert into order_items(order_item_id, order_id, ebay_item_id, title, image_url, point_price, quantity)
		values (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
	`

	sqlSelectOrder = `
		select order_id::text, driver_profile_id::text, sponsor_id::text, total_points, status,
			delivery_info::text, extract(epoch from created_at)::bigint, extract(epoch from updated_at)::bigint
		from orders
		where order_id = $1
	`

	sqlSelectOrderForUpdate = sqlSelectOrder + ` for update`

	sqlListOrderItems = `
		select order_item_id::text, order_id::text, ebay_item_id, title, coalesce(image_url,''), point_price, quantity
		from order_items
		where order_id = $1
		order by order_item_id
	`

	sqlUpdateOrderStatus = `
		update orders set status = $3, updated_at = now()
		where order_id = $1 and status = $2
	`

	sqlListOrdersByDriver = `
		select order_id::text, driver_profile_id::text, sponsor_id::text, total_points, status,
			delivery_info::text, extract(epoch from created_at)::bigint, extract(epoch from updated_at)::bigint
		from orders
		where driver_profile_id = $1
		order by created_at desc
	`

	sqlListOrdersBySponsor = `
		select order_id::text, driver_profile_id::text, sponsor_id::text, total_points, status,
			delivery_info::text, extract(epoch from created_at)::bigint, extract(epoch from updated_at)::bigint
		from orders
		where sponsor_id = $1
		order by created_at desc
	`

	sqlInsertOrGetCart = `
		insert into carts(cart_id, driver_profile_id, created_at) values (gen_random_uuid(), $1, now())
		on conflict (driver_profile_id) do update set driver_profile_id = excluded.driver_profile_id
		returning cart_id::text, driver_profile_id::text
	`

	sqlListCartItems = `
		select cart_item_id::text, cart_id::text, product_id::text, ebay_item_id, title, coalesce(image_url,''), point_price, quantity
		from cart_items
		where cart_id = $1
		order by cart_item_id
	`

	sqlSelectCartItem = `
		select cart_item_id::text, cart_id::text, product_id::text, ebay_item_id, title, coalesce(image_url,''), point_price, quantity
		from cart_items
		where cart_item_id = $1
	`

	sqlInsertCartItem = `
		insert into cart_items(cart_item_id, cart_id, product_id, ebay_item_id, title, image_url, point_price, quantity)
		values (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
	`

	sqlUpdateCartItemQuantity = `
		update cart_items set quantity = $2 where cart_item_id = $1
	`

	sqlDeleteCartItem = `
		delete from cart_items where cart_item_id = $1
	`

	sqlClearCart = `
		delete from cart_items where cart_id = $1
	`

	sqlSelectSponsor = `
		select sponsor_id::text, name, point_value::text from sponsors where sponsor_id = $1
	`

	sqlUpdateSponsorPointValue = `
		update sponsors set point_value = $2::numeric where sponsor_id = $1
	`

	sqlSelectProduct = `
		select product_id::text, sponsor_id::text, ebay_item_id, title, coalesce(image_url,''), price::text, is_active
		from catalog_products
		where product_id = $1
	`

	sqlInsertProduct = `
		insert into catalog_products(product_id, sponsor_id, ebay_item_id, title, image_url, price, is_active, created_at)
		values (gen_random_uuid(), $1, $2, $3, $4, $5::numeric, $6, now())
		returning product_id::text
	`

	sqlUpdateProduct = `
		update catalog_products set title = $2, image_url = $3, price = $4::numeric, is_active = $5
		where product_id = $1
	`

	sqlDeleteProduct = `
		delete from catalog_products where product_id = $1
	`

	sqlListProducts = `
		select product_id::text, sponsor_id::text, ebay_item_id, title, coalesce(image_url,''), price::text, is_active
		from catalog_products
		where sponsor_id = $1 and ($2 = false or is_active)
		order by created_at desc
	`

	sqlListApplications = `
		select application_id::text, driver_profile_id::text, sponsor_id::text, status, extract(epoch from created_at)::bigint
		from driver_applications
		where driver_profile_id = $1 and sponsor_id = $2
	`

	sqlListApplicationsBySponsor = `
		select application_id::text, driver_profile_id::text, sponsor_id::text, status, extract(epoch from created_at)::bigint
		from driver_applications
		where sponsor_id = $1 and status = $2
		order by created_at
	`

	sqlSelectApplication = `
		select application_id::text, driver_profile_id::text, sponsor_id::text, status, extract(epoch from created_at)::bigint
		from driver_applications
		where application_id = $1
	`

	sqlInsertApplication = `
		insert into driver_applications(application_id, driver_profile_id, sponsor_id, status, created_at)
		values (gen_random_uuid(), $1, $2, $3, to_timestamp($4))
		returning application_id::text
	`

	sqlUpdateApplicationStatus = `
		update driver_applications set status = $2 where application_id = $1
	`

	sqlDeleteApplication = `
		delete from driver_applications where application_id = $1
	`

	sqlInsertRefundRequest = `
		insert into refund_requests(refund_request_id, order_id, reason, status, created_at)
		values (gen_random_uuid(), $1, $2, $3, to_timestamp($4))
		returning refund_request_id::text
	`

	sqlSelectRefundRequestForUpdate = `
		select refund_request_id::text, order_id::text, reason, status, extract(epoch from created_at)::bigint
		from refund_requests
		where refund_request_id = $1
		for update
	`

	sqlUpdateRefundRequestStatus = `
		update refund_requests set status = $3 where refund_request_id = $1 and status = $2
	`

	sqlListRefundRequestsBySponsor = `
		select r.refund_request_id::text, r.order_id::text, r.reason, r.status, extract(epoch from r.created_at)::bigint
		from refund_requests r
		join orders o on o.order_id = r.order_id
		where o.sponsor_id = $1
		order by r.created_at desc
	`
)

// querier is the subset of pgx shared by pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements incentive.Store over raw pgx. Outside WithTx every call
// runs in autocommit; inside, all calls share one transaction.
type Store struct {
	pool *pgxpool.Pool
	q    querier
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore incentive.Store) error) error {
	if store.pool == nil {
		// Already inside a transaction.
		return fn(ctx, store)
	}
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	if err := fn(ctx, &Store{q: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *Store) GetDriverProfile(ctx context.Context, driverProfileID incentive.DriverProfileID) (incentive.DriverProfile, error) {
	return store.scanDriver(store.q.QueryRow(ctx, sqlSelectDriver, driverProfileID.String()))
}

func (store *Store) GetDriverProfileForUpdate(ctx context.Context, driverProfileID incentive.DriverProfileID) (incentive.DriverProfile, error) {
	return store.scanDriver(store.q.QueryRow(ctx, sqlSelectDriverForUpdate, driverProfileID.String()))
}

func (store *Store) scanDriver(row pgx.Row) (incentive.DriverProfile, error) {
	var (
		driverValue    string
		userValue      string
		sponsorValue   string
		balance        int64
		statusValue    string
		createdUnixUTC int64
	)
	err := row.Scan(&driverValue, &userValue, &sponsorValue, &balance, &statusValue, &createdUnixUTC)
	if errors.Is(err, pgx.ErrNoRows) {
		return incentive.DriverProfile{}, wrapStoreError(errorSubjectDriver, errorCodeGet, incentive.ErrNotFound)
	}
	if err != nil {
		return incentive.DriverProfile{}, wrapStoreError(errorSubjectDriver, errorCodeGet, err)
	}
	driverProfileID, err := incentive.NewDriverProfileID(driverValue)
	if err != nil {
		return incentive.DriverProfile{}, wrapStoreError(errorSubjectDriver, errorCodeInvalid, err)
	}
	userID, err := incentive.NewUserID(userValue)
	if err != nil {
		return incentive.DriverProfile{}, wrapStoreError(errorSubjectDriver, errorCodeInvalid, err)
	}
	var sponsorID incentive.SponsorID
	if sponsorValue != "" {
		sponsorID, err = incentive.NewSponsorID(sponsorValue)
		if err != nil {
			return incentive.DriverProfile{}, wrapStoreError(errorSubjectDriver, errorCodeInvalid, err)
		}
	}
	status, err := incentive.ParseDriverStatus(statusValue)
	if err != nil {
		return incentive.DriverProfile{}, wrapStoreError(errorSubjectDriver, errorCodeInvalid, err)
	}
	return incentive.DriverProfile{
		DriverProfileID: driverProfileID,
		UserID:          userID,
		SponsorID:       sponsorID,
		PointsBalance:   balance,
		Status:          status,
		CreatedUnixUTC:  createdUnixUTC,
	}, nil
}

func (store *Store) AddToDriverBalance(ctx context.Context, driverProfileID incentive.DriverProfileID, delta int64) error {
	tag, err := store.q.Exec(ctx, sqlAddToDriverBalance, driverProfileID.String(), delta)
	if err != nil {
		return wrapStoreError(errorSubjectDriver, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectDriver, errorCodeUpdate, incentive.ErrNotFound)
	}
	return nil
}

func (store *Store) UpdateDriverAffiliation(ctx context.Context, driverProfileID incentive.DriverProfileID, sponsorID incentive.SponsorID, status incentive.DriverStatus) error {
	tag, err := store.q.Exec(ctx, sqlUpdateDriverAffiliation, driverProfileID.String(), sponsorID.String(), status.String())
	if err != nil {
		return wrapStoreError(errorSubjectDriver, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectDriver, errorCodeUpdate, incentive.ErrNotFound)
	}
	return nil
}

func (store *Store) InsertPointChange(ctx context.Context, change incentive.PointChange) error {
	_, err := store.q.Exec(ctx, sqlInsertPointChange,
		change.DriverProfileID.String(),
		change.SponsorID.String(),
		change.Amount.Int64(),
		change.Reason.String(),
		change.ChangedBy.String(),
		change.CreatedUnixUTC,
	)
	if err != nil {
		return wrapStoreError(errorSubjectChange, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) SumPointChanges(ctx context.Context, driverProfileID incentive.DriverProfileID) (int64, error) {
	var sum int64
	if err := store.q.QueryRow(ctx, sqlSumPointChanges, driverProfileID.String()).Scan(&sum); err != nil {
		return 0, wrapStoreError(errorSubjectChange, errorCodeSum, err)
	}
	return sum, nil
}

func (store *Store) ListPointChanges(ctx context.Context, driverProfileID incentive.DriverProfileID, limit int) ([]incentive.PointChange, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := store.q.Query(ctx, sqlListPointChanges, driverProfileID.String(), limit)
	if err != nil {
		return nil, wrapStoreError(errorSubjectChange, errorCodeList, err)
	}
	defer rows.Close()
	changes := make([]incentive.PointChange, 0, 32)
	for rows.Next() {
		var (
			changeValue    string
			driverValue    string
			sponsorValue   string
			amountValue    int64
			reasonValue    string
			changedByValue string
			createdUnixUTC int64
		)
		if err := rows.Scan(&changeValue, &driverValue, &sponsorValue, &amountValue, &reasonValue, &changedByValue, &createdUnixUTC); err != nil {
			return nil, wrapStoreError(errorSubjectChange, errorCodeInvalid, err)
		}
		change, err := buildPointChange(changeValue, driverValue, sponsorValue, amountValue, reasonValue, changedByValue, createdUnixUTC)
		if err != nil {
			return nil, wrapStoreError(errorSubjectChange, errorCodeInvalid, err)
		}
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectChange, errorCodeList, err)
	}
	return changes, nil
}

func buildPointChange(changeValue, driverValue, sponsorValue string, amountValue int64, reasonValue, changedByValue string, createdUnixUTC int64) (incentive.PointChange, error) {
	driverProfileID, err := incentive.NewDriverProfileID(driverValue)
	if err != nil {
		return incentive.PointChange{}, err
	}
	var sponsorID incentive.SponsorID
	if sponsorValue != "" {
		sponsorID, err = incentive.NewSponsorID(sponsorValue)
		if err != nil {
			return incentive.PointChange{}, err
		}
	}
	amount, err := incentive.NewPoints(amountValue)
	if err != nil {
		return incentive.PointChange{}, err
	}
	reason, err := incentive.NewReason(reasonValue)
	if err != nil {
		return incentive.PointChange{}, err
	}
	changedBy, err := incentive.NewUserID(changedByValue)
	if err != nil {
		return incentive.PointChange{}, err
	}
	return incentive.PointChange{
		PointChangeID:   changeValue,
		DriverProfileID: driverProfileID,
		SponsorID:       sponsorID,
		Amount:          amount,
		Reason:          reason,
		ChangedBy:       changedBy,
		CreatedUnixUTC:  createdUnixUTC,
	}, nil
}

func (store *Store) CreateOrder(ctx context.Context, order incentive.Order, items []incentive.OrderItem) (incentive.Order, error) {
	deliveryJSON, err := json.Marshal(order.DeliveryInfo)
	if err != nil {
		return incentive.Order{}, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	var orderIDValue string
	err = store.q.QueryRow(ctx, sqlInsertOrder,
		order.DriverProfileID.String(),
		order.SponsorID.String(),
		order.TotalPoints,
		order.Status.String(),
		string(deliveryJSON),
		order.CreatedUnixUTC,
		order.UpdatedUnixUTC,
	).Scan(&orderIDValue)
	if err != nil {
		return incentive.Order{}, wrapStoreError(errorSubjectOrder, errorCodeCreate, err)
	}
	orderID, err := incentive.NewOrderID(orderIDValue)
	if err != nil {
		return incentive.Order{}, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	for _, item := range items {
		_, err := store.q.Exec(ctx, sqlInsertOrderItem,
			orderID.String(), item.EbayItemID, item.Title, item.ImageURL, item.PointPrice, item.Quantity)
		if err != nil {
			return incentive.Order{}, wrapStoreError(errorSubjectOrder, errorCodeCreate, err)
		}
	}
	order.OrderID = orderID
	return order, nil
}

func (store *Store) GetOrder(ctx context.Context, orderID incentive.OrderID) (incentive.Order, error) {
	return scanOrder(store.q.QueryRow(ctx, sqlSelectOrder, orderID.String()))
}

func (store *Store) GetOrderForUpdate(ctx context.Context, orderID incentive.OrderID) (incentive.Order, error) {
	return scanOrder(store.q.QueryRow(ctx, sqlSelectOrderForUpdate, orderID.String()))
}

func scanOrder(row pgx.Row) (incentive.Order, error) {
	var (
		orderValue     string
		driverValue    string
		sponsorValue   string
		totalPoints    int64
		statusValue    string
		deliveryValue  string
		createdUnixUTC int64
		updatedUnixUTC int64
	)
	err := row.Scan(&orderValue, &driverValue, &sponsorValue, &totalPoints, &statusValue, &deliveryValue, &createdUnixUTC, &updatedUnixUTC)
	if errors.Is(err, pgx.ErrNoRows) {
		return incentive.Order{}, wrapStoreError(errorSubjectOrder, errorCodeGet, incentive.ErrNotFound)
	}
	if err != nil {
		return incentive.Order{}, wrapStoreError(errorSubjectOrder, errorCodeGet, err)
	}
	return buildOrder(orderValue, driverValue, sponsorValue, totalPoints, statusValue, deliveryValue, createdUnixUTC, updatedUnixUTC)
}

func buildOrder(orderValue, driverValue, sponsorValue string, totalPoints int64, statusValue, deliveryValue string, createdUnixUTC, updatedUnixUTC int64) (incentive.Order, error) {
	orderID, err := incentive.NewOrderID(orderValue)
	if err != nil {
		return incentive.Order{}, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	driverProfileID, err := incentive.NewDriverProfileID(driverValue)
	if err != nil {
		return incentive.Order{}, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	sponsorID, err := incentive.NewSponsorID(sponsorValue)
	if err != nil {
		return incentive.Order{}, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	status, err := incentive.ParseOrderStatus(statusValue)
	if err != nil {
		return incentive.Order{}, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	var deliveryInfo incentive.DeliveryInfo
	if err := json.Unmarshal([]byte(deliveryValue), &deliveryInfo); err != nil {
		return incentive.Order{}, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	return incentive.Order{
		OrderID:         orderID,
		DriverProfileID: driverProfileID,
		SponsorID:       sponsorID,
		TotalPoints:     totalPoints,
		Status:          status,
		DeliveryInfo:    deliveryInfo,
		CreatedUnixUTC:  createdUnixUTC,
		UpdatedUnixUTC:  updatedUnixUTC,
	}, nil
}

func (store *Store) ListOrderItems(ctx context.Context, orderID incentive.OrderID) ([]incentive.OrderItem, error) {
	rows, err := store.q.Query(ctx, sqlListOrderItems, orderID.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectOrder, errorCodeList, err)
	}
	defer rows.Close()
	items := make([]incentive.OrderItem, 0, 8)
	for rows.Next() {
		var (
			itemValue  string
			orderValue string
			item       incentive.OrderItem
		)
		if err := rows.Scan(&itemValue, &orderValue, &item.EbayItemID, &item.Title, &item.ImageURL, &item.PointPrice, &item.Quantity); err != nil {
			return nil, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
		}
		item.OrderItemID = itemValue
		item.OrderID, err = incentive.NewOrderID(orderValue)
		if err != nil {
			return nil, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectOrder, errorCodeList, err)
	}
	return items, nil
}

func (store *Store) UpdateOrderStatus(ctx context.Context, orderID incentive.OrderID, from incentive.OrderStatus, to incentive.OrderStatus) error {
	tag, err := store.q.Exec(ctx, sqlUpdateOrderStatus, orderID.String(), from.String(), to.String())
	if err != nil {
		return wrapStoreError(errorSubjectOrder, errorCodeUpdateStatus, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectOrder, errorCodeUpdateStatus, incentive.IllegalTransitionError{Current: from, Attempted: to})
	}
	return nil
}

func (store *Store) ListOrdersByDriver(ctx context.Context, driverProfileID incentive.DriverProfileID) ([]incentive.Order, error) {
	return store.listOrders(ctx, sqlListOrdersByDriver, driverProfileID.String())
}

func (store *Store) ListOrdersBySponsor(ctx context.Context, sponsorID incentive.SponsorID) ([]incentive.Order, error) {
	return store.listOrders(ctx, sqlListOrdersBySponsor, sponsorID.String())
}

func (store *Store) listOrders(ctx context.Context, query string, argument string) ([]incentive.Order, error) {
	rows, err := store.q.Query(ctx, query, argument)
	if err != nil {
		return nil, wrapStoreError(errorSubjectOrder, errorCodeList, err)
	}
	defer rows.Close()
	orders := make([]incentive.Order, 0, 16)
	for rows.Next() {
		var (
			orderValue     string
			driverValue    string
			sponsorValue   string
			totalPoints    int64
			statusValue    string
			deliveryValue  string
			createdUnixUTC int64
			updatedUnixUTC int64
		)
		if err := rows.Scan(&orderValue, &driverValue, &sponsorValue, &totalPoints, &statusValue, &deliveryValue, &createdUnixUTC, &updatedUnixUTC); err != nil {
			return nil, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
		}
		order, err := buildOrder(orderValue, driverValue, sponsorValue, totalPoints, statusValue, deliveryValue, createdUnixUTC, updatedUnixUTC)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectOrder, errorCodeList, err)
	}
	return orders, nil
}

func (store *Store) GetOrCreateCart(ctx context.Context, driverProfileID incentive.DriverProfileID) (incentive.Cart, error) {
	var (
		cartValue   string
		driverValue string
	)
	err := store.q.QueryRow(ctx, sqlInsertOrGetCart, driverProfileID.String()).Scan(&cartValue, &driverValue)
	if err != nil {
		return incentive.Cart{}, wrapStoreError(errorSubjectCart, errorCodeCreate, err)
	}
	parsedDriverID, err := incentive.NewDriverProfileID(driverValue)
	if err != nil {
		return incentive.Cart{}, wrapStoreError(errorSubjectCart, errorCodeInvalid, err)
	}
	return incentive.Cart{CartID: cartValue, DriverProfileID: parsedDriverID}, nil
}

func (store *Store) ListCartItems(ctx context.Context, cartID string) ([]incentive.CartItem, error) {
	rows, err := store.q.Query(ctx, sqlListCartItems, cartID)
	if err != nil {
		return nil, wrapStoreError(errorSubjectCart, errorCodeList, err)
	}
	defer rows.Close()
	items := make([]incentive.CartItem, 0, 8)
	for rows.Next() {
		var item incentive.CartItem
		if err := rows.Scan(&item.CartItemID, &item.CartID, &item.ProductID, &item.EbayItemID, &item.Title, &item.ImageURL, &item.PointPrice, &item.Quantity); err != nil {
			return nil, wrapStoreError(errorSubjectCart, errorCodeInvalid, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectCart, errorCodeList, err)
	}
	return items, nil
}

func (store *Store) GetCartItem(ctx context.Context, cartItemID string) (incentive.CartItem, error) {
	var item incentive.CartItem
	err := store.q.QueryRow(ctx, sqlSelectCartItem, cartItemID).Scan(
		&item.CartItemID, &item.CartID, &item.ProductID, &item.EbayItemID, &item.Title, &item.ImageURL, &item.PointPrice, &item.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return incentive.CartItem{}, wrapStoreError(errorSubjectCart, errorCodeGet, incentive.ErrNotFound)
	}
	if err != nil {
		return incentive.CartItem{}, wrapStoreError(errorSubjectCart, errorCodeGet, err)
	}
	return item, nil
}

func (store *Store) InsertCartItem(ctx context.Context, item incentive.CartItem) error {
	_, err := store.q.Exec(ctx, sqlInsertCartItem,
		item.CartID, item.ProductID, item.EbayItemID, item.Title, item.ImageURL, item.PointPrice, item.Quantity)
	if err != nil {
		return wrapStoreError(errorSubjectCart, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) UpdateCartItemQuantity(ctx context.Context, cartItemID string, quantity int) error {
	tag, err := store.q.Exec(ctx, sqlUpdateCartItemQuantity, cartItemID, quantity)
	if err != nil {
		return wrapStoreError(errorSubjectCart, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectCart, errorCodeUpdate, incentive.ErrNotFound)
	}
	return nil
}

func (store *Store) DeleteCartItem(ctx context.Context, cartItemID string) error {
	if _, err := store.q.Exec(ctx, sqlDeleteCartItem, cartItemID); err != nil {
		return wrapStoreError(errorSubjectCart, errorCodeDelete, err)
	}
	return nil
}

func (store *Store) ClearCart(ctx context.Context, cartID string) error {
	if _, err := store.q.Exec(ctx, sqlClearCart, cartID); err != nil {
		return wrapStoreError(errorSubjectCart, errorCodeDelete, err)
	}
	return nil
}

func (store *Store) GetSponsor(ctx context.Context, sponsorID incentive.SponsorID) (incentive.Sponsor, error) {
	var (
		sponsorValue    string
		name            string
		pointValueValue string
	)
	err := store.q.QueryRow(ctx, sqlSelectSponsor, sponsorID.String()).Scan(&sponsorValue, &name, &pointValueValue)
	if errors.Is(err, pgx.ErrNoRows) {
		return incentive.Sponsor{}, wrapStoreError(errorSubjectSponsor, errorCodeGet, incentive.ErrNotFound)
	}
	if err != nil {
		return incentive.Sponsor{}, wrapStoreError(errorSubjectSponsor, errorCodeGet, err)
	}
	parsedSponsorID, err := incentive.NewSponsorID(sponsorValue)
	if err != nil {
		return incentive.Sponsor{}, wrapStoreError(errorSubjectSponsor, errorCodeInvalid, err)
	}
	pointValue, err := decimal.NewFromString(pointValueValue)
	if err != nil {
		return incentive.Sponsor{}, wrapStoreError(errorSubjectSponsor, errorCodeInvalid, err)
	}
	return incentive.Sponsor{SponsorID: parsedSponsorID, Name: name, PointValue: pointValue}, nil
}

func (store *Store) UpdateSponsorPointValue(ctx context.Context, sponsorID incentive.SponsorID, pointValue decimal.Decimal) error {
	tag, err := store.q.Exec(ctx, sqlUpdateSponsorPointValue, sponsorID.String(), pointValue.String())
	if err != nil {
		return wrapStoreError(errorSubjectSponsor, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectSponsor, errorCodeUpdate, incentive.ErrNotFound)
	}
	return nil
}

func (store *Store) GetCatalogProduct(ctx context.Context, productID string) (incentive.CatalogProduct, error) {
	return scanProduct(store.q.QueryRow(ctx, sqlSelectProduct, productID))
}

func scanProduct(row pgx.Row) (incentive.CatalogProduct, error) {
	var (
		productValue string
		sponsorValue string
		ebayItemID   string
		title        string
		imageURL     string
		priceValue   string
		isActive     bool
	)
	err := row.Scan(&productValue, &sponsorValue, &ebayItemID, &title, &imageURL, &priceValue, &isActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return incentive.CatalogProduct{}, wrapStoreError(errorSubjectProduct, errorCodeGet, incentive.ErrNotFound)
	}
	if err != nil {
		return incentive.CatalogProduct{}, wrapStoreError(errorSubjectProduct, errorCodeGet, err)
	}
	sponsorID, err := incentive.NewSponsorID(sponsorValue)
	if err != nil {
		return incentive.CatalogProduct{}, wrapStoreError(errorSubjectProduct, errorCodeInvalid, err)
	}
	price, err := decimal.NewFromString(priceValue)
	if err != nil {
		return incentive.CatalogProduct{}, wrapStoreError(errorSubjectProduct, errorCodeInvalid, err)
	}
	return incentive.CatalogProduct{
		ProductID:  productValue,
		SponsorID:  sponsorID,
		EbayItemID: ebayItemID,
		Title:      title,
		ImageURL:   imageURL,
		Price:      price,
		IsActive:   isActive,
	}, nil
}

func (store *Store) CreateCatalogProduct(ctx context.Context, product incentive.CatalogProduct) (incentive.CatalogProduct, error) {
	var productIDValue string
	err := store.q.QueryRow(ctx, sqlInsertProduct,
		product.SponsorID.String(), product.EbayItemID, product.Title, product.ImageURL,
		product.Price.String(), product.IsActive,
	).Scan(&productIDValue)
	if err != nil {
		return incentive.CatalogProduct{}, wrapStoreError(errorSubjectProduct, errorCodeCreate, err)
	}
	product.ProductID = productIDValue
	return product, nil
}

func (store *Store) UpdateCatalogProduct(ctx context.Context, product incentive.CatalogProduct) error {
	tag, err := store.q.Exec(ctx, sqlUpdateProduct,
		product.ProductID, product.Title, product.ImageURL, product.Price.String(), product.IsActive)
	if err != nil {
		return wrapStoreError(errorSubjectProduct, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectProduct, errorCodeUpdate, incentive.ErrNotFound)
	}
	return nil
}

func (store *Store) DeleteCatalogProduct(ctx context.Context, productID string) error {
	if _, err := store.q.Exec(ctx, sqlDeleteProduct, productID); err != nil {
		return wrapStoreError(errorSubjectProduct, errorCodeDelete, err)
	}
	return nil
}

func (store *Store) ListCatalogProducts(ctx context.Context, sponsorID incentive.SponsorID, activeOnly bool) ([]incentive.CatalogProduct, error) {
	rows, err := store.q.Query(ctx, sqlListProducts, sponsorID.String(), activeOnly)
	if err != nil {
		return nil, wrapStoreError(errorSubjectProduct, errorCodeList, err)
	}
	defer rows.Close()
	products := make([]incentive.CatalogProduct, 0, 16)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectProduct, errorCodeList, err)
	}
	return products, nil
}

func (store *Store) ListApplications(ctx context.Context, driverProfileID incentive.DriverProfileID, sponsorID incentive.SponsorID) ([]incentive.DriverApplication, error) {
	rows, err := store.q.Query(ctx, sqlListApplications, driverProfileID.String(), sponsorID.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectApp, errorCodeList, err)
	}
	defer rows.Close()
	return scanApplications(rows)
}

func (store *Store) ListApplicationsBySponsor(ctx context.Context, sponsorID incentive.SponsorID, status incentive.ApplicationStatus) ([]incentive.DriverApplication, error) {
	rows, err := store.q.Query(ctx, sqlListApplicationsBySponsor, sponsorID.String(), status.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectApp, errorCodeList, err)
	}
	defer rows.Close()
	return scanApplications(rows)
}

func scanApplications(rows pgx.Rows) ([]incentive.DriverApplication, error) {
	applications := make([]incentive.DriverApplication, 0, 8)
	for rows.Next() {
		application, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		applications = append(applications, application)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectApp, errorCodeList, err)
	}
	return applications, nil
}

func scanApplication(row pgx.Row) (incentive.DriverApplication, error) {
	var (
		applicationValue string
		driverValue      string
		sponsorValue     string
		statusValue      string
		createdUnixUTC   int64
	)
	err := row.Scan(&applicationValue, &driverValue, &sponsorValue, &statusValue, &createdUnixUTC)
	if errors.Is(err, pgx.ErrNoRows) {
		return incentive.DriverApplication{}, wrapStoreError(errorSubjectApp, errorCodeGet, incentive.ErrNotFound)
	}
	if err != nil {
		return incentive.DriverApplication{}, wrapStoreError(errorSubjectApp, errorCodeGet, err)
	}
	driverProfileID, err := incentive.NewDriverProfileID(driverValue)
	if err != nil {
		return incentive.DriverApplication{}, wrapStoreError(errorSubjectApp, errorCodeInvalid, err)
	}
	sponsorID, err := incentive.NewSponsorID(sponsorValue)
	if err != nil {
		return incentive.DriverApplication{}, wrapStoreError(errorSubjectApp, errorCodeInvalid, err)
	}
	status, err := incentive.ParseApplicationStatus(statusValue)
	if err != nil {
		return incentive.DriverApplication{}, wrapStoreError(errorSubjectApp, errorCodeInvalid, err)
	}
	return incentive.DriverApplication{
		ApplicationID:   applicationValue,
		DriverProfileID: driverProfileID,
		SponsorID:       sponsorID,
		Status:          status,
		CreatedUnixUTC:  createdUnixUTC,
	}, nil
}

func (store *Store) GetApplication(ctx context.Context, applicationID string) (incentive.DriverApplication, error) {
	return scanApplication(store.q.QueryRow(ctx, sqlSelectApplication, applicationID))
}

func (store *Store) CreateApplication(ctx context.Context, application incentive.DriverApplication) (incentive.DriverApplication, error) {
	var applicationIDValue string
	err := store.q.QueryRow(ctx, sqlInsertApplication,
		application.DriverProfileID.String(), application.SponsorID.String(),
		application.Status.String(), application.CreatedUnixUTC,
	).Scan(&applicationIDValue)
	if err != nil {
		return incentive.DriverApplication{}, wrapStoreError(errorSubjectApp, errorCodeCreate, err)
	}
	application.ApplicationID = applicationIDValue
	return application, nil
}

func (store *Store) UpdateApplicationStatus(ctx context.Context, applicationID string, status incentive.ApplicationStatus) error {
	tag, err := store.q.Exec(ctx, sqlUpdateApplicationStatus, applicationID, status.String())
	if err != nil {
		return wrapStoreError(errorSubjectApp, errorCodeUpdateStatus, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectApp, errorCodeUpdateStatus, incentive.ErrNotFound)
	}
	return nil
}

func (store *Store) DeleteApplication(ctx context.Context, applicationID string) error {
	if _, err := store.q.Exec(ctx, sqlDeleteApplication, applicationID); err != nil {
		return wrapStoreError(errorSubjectApp, errorCodeDelete, err)
	}
	return nil
}

func (store *Store) CreateRefundRequest(ctx context.Context, request incentive.RefundRequest) (incentive.RefundRequest, error) {
	var refundRequestIDValue string
	err := store.q.QueryRow(ctx, sqlInsertRefundRequest,
		request.OrderID.String(), request.Reason, request.Status.String(), request.CreatedUnixUTC,
	).Scan(&refundRequestIDValue)
	if err != nil {
		return incentive.RefundRequest{}, wrapStoreError(errorSubjectRefund, errorCodeCreate, err)
	}
	request.RefundRequestID = refundRequestIDValue
	return request, nil
}

func (store *Store) GetRefundRequestForUpdate(ctx context.Context, refundRequestID string) (incentive.RefundRequest, error) {
	return scanRefundRequest(store.q.QueryRow(ctx, sqlSelectRefundRequestForUpdate, refundRequestID))
}

func scanRefundRequest(row pgx.Row) (incentive.RefundRequest, error) {
	var (
		refundValue    string
		orderValue     string
		reasonValue    string
		statusValue    string
		createdUnixUTC int64
	)
	err := row.Scan(&refundValue, &orderValue, &reasonValue, &statusValue, &createdUnixUTC)
	if errors.Is(err, pgx.ErrNoRows) {
		return incentive.RefundRequest{}, wrapStoreError(errorSubjectRefund, errorCodeGet, incentive.ErrNotFound)
	}
	if err != nil {
		return incentive.RefundRequest{}, wrapStoreError(errorSubjectRefund, errorCodeGet, err)
	}
	orderID, err := incentive.NewOrderID(orderValue)
	if err != nil {
		return incentive.RefundRequest{}, wrapStoreError(errorSubjectRefund, errorCodeInvalid, err)
	}
	return incentive.RefundRequest{
		RefundRequestID: refundValue,
		OrderID:         orderID,
		Reason:          reasonValue,
		Status:          incentive.RefundRequestStatus(statusValue),
		CreatedUnixUTC:  createdUnixUTC,
	}, nil
}

func (store *Store) UpdateRefundRequestStatus(ctx context.Context, refundRequestID string, from incentive.RefundRequestStatus, to incentive.RefundRequestStatus) error {
	tag, err := store.q.Exec(ctx, sqlUpdateRefundRequestStatus, refundRequestID, from.String(), to.String())
	if err != nil {
		return wrapStoreError(errorSubjectRefund, errorCodeUpdateStatus, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectRefund, errorCodeUpdateStatus, incentive.ErrRefundRequestClosed)
	}
	return nil
}

func (store *Store) ListRefundRequestsBySponsor(ctx context.Context, sponsorID incentive.SponsorID) ([]incentive.RefundRequest, error) {
	rows, err := store.q.Query(ctx, sqlListRefundRequestsBySponsor, sponsorID.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectRefund, errorCodeList, err)
	}
	defer rows.Close()
	requests := make([]incentive.RefundRequest, 0, 8)
	for rows.Next() {
		request, err := scanRefundRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectRefund, errorCodeList, err)
	}
	return requests, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return incentive.WrapError(errorOperationStore, subject, code, err)
}
