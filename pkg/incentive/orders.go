package incentive

import (
	"context"
	"fmt"
)

// legalTransitions is the order lifecycle state table. Delivered and
// cancelled are terminal.
var legalTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

func transitionAllowed(from OrderStatus, to OrderStatus) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// OrderService drives orders from checkout through the status state machine,
// debiting and refunding points through the ledger.
type OrderService struct {
	store  Store
	ledger *LedgerService
	nowFn  func() int64
	logger OperationLogger
}

// NewOrderService wires an OrderService.
func NewOrderService(store Store, ledger *LedgerService, now func() int64, options ...OrderOption) (*OrderService, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if ledger == nil {
		return nil, fmt.Errorf("%w: ledger dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &OrderService{store: store, ledger: ledger, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Checkout turns the driver's cart into a pending order. Order creation, item
// snapshots, the point debit, and the cart clear commit in one transaction;
// any failure rolls back all of them.
func (service *OrderService) Checkout(ctx context.Context, actor Actor, deliveryInfo DeliveryInfo) (Order, error) {
	var created Order
	driverProfileID, err := authorizeDriverSelf(actor)
	if err != nil {
		return Order{}, err
	}
	normalizedInfo, err := deliveryInfo.Normalize()
	if err != nil {
		return Order{}, err
	}
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		driver, err := transactionStore.GetDriverProfileForUpdate(ctx, driverProfileID)
		if err != nil {
			return err
		}
		if driver.SponsorID.IsZero() {
			return fmt.Errorf("%w: affiliation required to place orders", ErrNoSponsor)
		}
		cart, err := transactionStore.GetOrCreateCart(ctx, driverProfileID)
		if err != nil {
			return err
		}
		cartItems, err := transactionStore.ListCartItems(ctx, cart.CartID)
		if err != nil {
			return err
		}
		if len(cartItems) == 0 {
			return ErrEmptyCart
		}
		var totalPoints int64
		for _, item := range cartItems {
			totalPoints += item.PointPrice * int64(item.Quantity)
		}
		if driver.PointsBalance < totalPoints {
			return InsufficientPointsError{DeficitPoints: totalPoints - driver.PointsBalance}
		}
		nowUnixUTC := service.nowFn()
		orderItems := make([]OrderItem, 0, len(cartItems))
		for _, item := range cartItems {
			orderItems = append(orderItems, OrderItem{
				EbayItemID: item.EbayItemID,
				Title:      item.Title,
				ImageURL:   item.ImageURL,
				PointPrice: item.PointPrice,
				Quantity:   item.Quantity,
			})
		}
		created, err = transactionStore.CreateOrder(ctx, Order{
			DriverProfileID: driverProfileID,
			SponsorID:       driver.SponsorID,
			TotalPoints:     totalPoints,
			Status:          OrderStatusPending,
			DeliveryInfo:    normalizedInfo,
			CreatedUnixUTC:  nowUnixUTC,
			UpdatedUnixUTC:  nowUnixUTC,
		}, orderItems)
		if err != nil {
			return err
		}
		debit, err := NewPoints(-totalPoints)
		if err != nil {
			return err
		}
		reason, err := NewReason(purchaseReason(created.OrderID))
		if err != nil {
			return err
		}
		if err := service.ledger.apply(ctx, transactionStore, driver, actor, debit, reason); err != nil {
			return err
		}
		return transactionStore.ClearCart(ctx, cart.CartID)
	})
	service.logOperation(ctx, OperationLog{
		Operation:       operationCheckout,
		Actor:           actor.UserID,
		DriverProfileID: driverProfileID,
		OrderID:         created.OrderID,
		Amount:          Points(-created.TotalPoints),
		Error:           operationError,
	})
	if operationError != nil {
		return Order{}, operationError
	}
	return created, nil
}

// TransitionStatus moves an order through the state machine. A transition to
// cancelled refunds the original totalPoints in the same transaction; every
// other legal transition is a pure status update.
func (service *OrderService) TransitionStatus(ctx context.Context, actor Actor, orderID OrderID, newStatus OrderStatus) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		order, err := transactionStore.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorizeOrderTransition(actor, order, newStatus); err != nil {
			return err
		}
		if !transitionAllowed(order.Status, newStatus) {
			return IllegalTransitionError{Current: order.Status, Attempted: newStatus}
		}
		if err := transactionStore.UpdateOrderStatus(ctx, orderID, order.Status, newStatus); err != nil {
			return err
		}
		if newStatus != OrderStatusCancelled {
			return nil
		}
		return service.refund(ctx, transactionStore, actor, order, cancelReason(order.OrderID, actor.Role))
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationTransitionStatus,
		Actor:     actor.UserID,
		OrderID:   orderID,
		Reason:    newStatus.String(),
		Error:     operationError,
	})
	return operationError
}

// CancelByDriver cancels the driver's own pending order and refunds it.
func (service *OrderService) CancelByDriver(ctx context.Context, actor Actor, orderID OrderID) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		order, err := transactionStore.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorizeDriverCancel(actor, order); err != nil {
			return err
		}
		if err := transactionStore.UpdateOrderStatus(ctx, orderID, OrderStatusPending, OrderStatusCancelled); err != nil {
			return err
		}
		return service.refund(ctx, transactionStore, actor, order, cancelReason(order.OrderID, actor.Role))
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCancelByDriver,
		Actor:     actor.UserID,
		OrderID:   orderID,
		Error:     operationError,
	})
	return operationError
}

// refund credits the order's original totalPoints back to the driver. The
// amount is the checkout-time snapshot, never recomputed from catalog prices.
func (service *OrderService) refund(ctx context.Context, transactionStore Store, actor Actor, order Order, reasonText string) error {
	driver, err := transactionStore.GetDriverProfileForUpdate(ctx, order.DriverProfileID)
	if err != nil {
		return err
	}
	credit, err := NewPoints(order.TotalPoints)
	if err != nil {
		return err
	}
	reason, err := NewReason(reasonText)
	if err != nil {
		return err
	}
	return service.ledger.apply(ctx, transactionStore, driver, actor, credit, reason)
}

// RequestRefund records a driver's refund request against a delivered order.
func (service *OrderService) RequestRefund(ctx context.Context, actor Actor, orderID OrderID, reasonText string) (RefundRequest, error) {
	driverProfileID, err := authorizeDriverSelf(actor)
	if err != nil {
		return RefundRequest{}, err
	}
	reason, err := NewReason(reasonText)
	if err != nil {
		return RefundRequest{}, err
	}
	order, err := service.store.GetOrder(ctx, orderID)
	if err != nil {
		return RefundRequest{}, err
	}
	if order.DriverProfileID != driverProfileID {
		return RefundRequest{}, fmt.Errorf("%w: not your order", ErrUnauthorized)
	}
	if order.Status != OrderStatusDelivered {
		return RefundRequest{}, fmt.Errorf("%w: refunds apply to delivered orders only", ErrInvalidOrderStatus)
	}
	return service.store.CreateRefundRequest(ctx, RefundRequest{
		OrderID:        orderID,
		Reason:         reason.String(),
		Status:         RefundRequestStatusPending,
		CreatedUnixUTC: service.nowFn(),
	})
}

// ResolveRefundRequest approves or rejects a pending refund request.
// Approval credits the order's original totalPoints through the ledger and
// marks the request in one transaction.
func (service *OrderService) ResolveRefundRequest(ctx context.Context, actor Actor, refundRequestID string, approve bool) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		request, err := transactionStore.GetRefundRequestForUpdate(ctx, refundRequestID)
		if err != nil {
			return err
		}
		if request.Status != RefundRequestStatusPending {
			return ErrRefundRequestClosed
		}
		order, err := transactionStore.GetOrderForUpdate(ctx, request.OrderID)
		if err != nil {
			return err
		}
		if err := authorizeSponsorScope(actor, order.SponsorID); err != nil {
			return err
		}
		resolved := RefundRequestStatusRejected
		if approve {
			resolved = RefundRequestStatusApproved
		}
		if err := transactionStore.UpdateRefundRequestStatus(ctx, refundRequestID, RefundRequestStatusPending, resolved); err != nil {
			return err
		}
		if !approve {
			return nil
		}
		return service.refund(ctx, transactionStore, actor, order, refundApprovedReason(order.OrderID))
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationResolveRefund,
		Actor:     actor.UserID,
		Error:     operationError,
	})
	return operationError
}

// GetOrder returns an order with its item snapshots.
func (service *OrderService) GetOrder(ctx context.Context, actor Actor, orderID OrderID) (Order, []OrderItem, error) {
	order, err := service.store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, nil, err
	}
	if err := authorizeOrderView(actor, order); err != nil {
		return Order{}, nil, err
	}
	items, err := service.store.ListOrderItems(ctx, orderID)
	if err != nil {
		return Order{}, nil, err
	}
	return order, items, nil
}

// ListOrdersForDriver returns the calling driver's orders.
func (service *OrderService) ListOrdersForDriver(ctx context.Context, actor Actor) ([]Order, error) {
	driverProfileID, err := authorizeDriverSelf(actor)
	if err != nil {
		return nil, err
	}
	return service.store.ListOrdersByDriver(ctx, driverProfileID)
}

// ListOrdersForSponsor returns a sponsor's orders; admins may read any sponsor.
func (service *OrderService) ListOrdersForSponsor(ctx context.Context, actor Actor, sponsorID SponsorID) ([]Order, error) {
	if err := authorizeSponsorScope(actor, sponsorID); err != nil {
		return nil, err
	}
	return service.store.ListOrdersBySponsor(ctx, sponsorID)
}

// ListRefundRequests returns a sponsor's refund requests.
func (service *OrderService) ListRefundRequests(ctx context.Context, actor Actor, sponsorID SponsorID) ([]RefundRequest, error) {
	if err := authorizeSponsorScope(actor, sponsorID); err != nil {
		return nil, err
	}
	return service.store.ListRefundRequestsBySponsor(ctx, sponsorID)
}

func (service *OrderService) logOperation(ctx context.Context, entry OperationLog) {
	emitOperationLog(ctx, service.logger, entry)
}

func purchaseReason(orderID OrderID) string {
	return fmt.Sprintf("Order #%s - Purchase", orderID.Short())
}

func cancelReason(orderID OrderID, role Role) string {
	switch role {
	case RoleSponsor:
		return fmt.Sprintf("Order #%s - Cancelled by Sponsor (Refund)", orderID.Short())
	case RoleAdmin:
		return fmt.Sprintf("Order #%s - Cancelled by Admin (Refund)", orderID.Short())
	}
	return fmt.Sprintf("Order #%s - Cancelled (Refund)", orderID.Short())
}

func refundApprovedReason(orderID OrderID) string {
	return fmt.Sprintf("Order #%s - Refund approved", orderID.Short())
}
