package httpserver

import (
	"github.com/goodhaul/incentive/pkg/incentive"
)

// Request bodies.

type pointChangeRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type checkoutRequest struct {
	DeliveryInfo incentive.DeliveryInfo `json:"delivery_info"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type refundRequestBody struct {
	Reason string `json:"reason"`
}

type resolveRequest struct {
	Approve bool `json:"approve"`
}

type productRequest struct {
	EbayItemID string `json:"ebay_item_id"`
	Title      string `json:"title"`
	ImageURL   string `json:"image_url"`
	Price      string `json:"price"`
}

type productUpdateRequest struct {
	Title    *string `json:"title"`
	IsActive *bool   `json:"is_active"`
}

type pointValueRequest struct {
	PointValue string `json:"point_value"`
}

// Response payloads. The domain structs carry opaque identifier types, so the
// wire shapes are flattened to strings here.

type pointChangePayload struct {
	PointChangeID   string `json:"point_change_id"`
	DriverProfileID string `json:"driver_profile_id"`
	SponsorID       string `json:"sponsor_id,omitempty"`
	Amount          int64  `json:"amount"`
	Reason          string `json:"reason"`
	ChangedBy       string `json:"changed_by"`
	CreatedUnixUTC  int64  `json:"created_unix_utc"`
}

func toPointChangePayload(change incentive.PointChange) pointChangePayload {
	return pointChangePayload{
		PointChangeID:   change.PointChangeID,
		DriverProfileID: change.DriverProfileID.String(),
		SponsorID:       change.SponsorID.String(),
		Amount:          change.Amount.Int64(),
		Reason:          change.Reason.String(),
		ChangedBy:       change.ChangedBy.String(),
		CreatedUnixUTC:  change.CreatedUnixUTC,
	}
}

type orderPayload struct {
	OrderID         string                 `json:"order_id"`
	DriverProfileID string                 `json:"driver_profile_id"`
	SponsorID       string                 `json:"sponsor_id"`
	TotalPoints     int64                  `json:"total_points"`
	Status          string                 `json:"status"`
	DeliveryInfo    incentive.DeliveryInfo `json:"delivery_info"`
	CreatedUnixUTC  int64                  `json:"created_unix_utc"`
	UpdatedUnixUTC  int64                  `json:"updated_unix_utc"`
}

func toOrderPayload(order incentive.Order) orderPayload {
	return orderPayload{
		OrderID:         order.OrderID.String(),
		DriverProfileID: order.DriverProfileID.String(),
		SponsorID:       order.SponsorID.String(),
		TotalPoints:     order.TotalPoints,
		Status:          order.Status.String(),
		DeliveryInfo:    order.DeliveryInfo,
		CreatedUnixUTC:  order.CreatedUnixUTC,
		UpdatedUnixUTC:  order.UpdatedUnixUTC,
	}
}

func toOrderPayloads(orders []incentive.Order) []orderPayload {
	payloads := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		payloads = append(payloads, toOrderPayload(order))
	}
	return payloads
}

type orderItemPayload struct {
	OrderItemID string `json:"order_item_id"`
	EbayItemID  string `json:"ebay_item_id,omitempty"`
	Title       string `json:"title"`
	ImageURL    string `json:"image_url,omitempty"`
	PointPrice  int64  `json:"point_price"`
	Quantity    int    `json:"quantity"`
}

func toOrderItemPayloads(items []incentive.OrderItem) []orderItemPayload {
	payloads := make([]orderItemPayload, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, orderItemPayload{
			OrderItemID: item.OrderItemID,
			EbayItemID:  item.EbayItemID,
			Title:       item.Title,
			ImageURL:    item.ImageURL,
			PointPrice:  item.PointPrice,
			Quantity:    item.Quantity,
		})
	}
	return payloads
}

type cartItemPayload struct {
	CartItemID string `json:"cart_item_id"`
	ProductID  string `json:"product_id"`
	EbayItemID string `json:"ebay_item_id,omitempty"`
	Title      string `json:"title"`
	ImageURL   string `json:"image_url,omitempty"`
	PointPrice int64  `json:"point_price"`
	Quantity   int    `json:"quantity"`
}

func toCartItemPayloads(items []incentive.CartItem) []cartItemPayload {
	payloads := make([]cartItemPayload, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, cartItemPayload{
			CartItemID: item.CartItemID,
			ProductID:  item.ProductID,
			EbayItemID: item.EbayItemID,
			Title:      item.Title,
			ImageURL:   item.ImageURL,
			PointPrice: item.PointPrice,
			Quantity:   item.Quantity,
		})
	}
	return payloads
}

type productPayload struct {
	ProductID  string `json:"product_id"`
	SponsorID  string `json:"sponsor_id"`
	EbayItemID string `json:"ebay_item_id,omitempty"`
	Title      string `json:"title"`
	ImageURL   string `json:"image_url,omitempty"`
	Price      string `json:"price"`
	IsActive   bool   `json:"is_active"`
	PointPrice int64  `json:"point_price,omitempty"`
}

func toProductPayload(product incentive.CatalogProduct) productPayload {
	return productPayload{
		ProductID:  product.ProductID,
		SponsorID:  product.SponsorID.String(),
		EbayItemID: product.EbayItemID,
		Title:      product.Title,
		ImageURL:   product.ImageURL,
		Price:      product.Price.String(),
		IsActive:   product.IsActive,
	}
}

func toProductPayloads(products []incentive.CatalogProduct) []productPayload {
	payloads := make([]productPayload, 0, len(products))
	for _, product := range products {
		payloads = append(payloads, toProductPayload(product))
	}
	return payloads
}

func toVisibleProductPayloads(products []incentive.VisibleProduct) []productPayload {
	payloads := make([]productPayload, 0, len(products))
	for _, product := range products {
		payload := toProductPayload(product.CatalogProduct)
		payload.PointPrice = product.PointPrice
		payloads = append(payloads, payload)
	}
	return payloads
}

type applicationPayload struct {
	ApplicationID   string `json:"application_id"`
	DriverProfileID string `json:"driver_profile_id"`
	SponsorID       string `json:"sponsor_id"`
	Status          string `json:"status"`
	CreatedUnixUTC  int64  `json:"created_unix_utc"`
}

func toApplicationPayload(application incentive.DriverApplication) applicationPayload {
	return applicationPayload{
		ApplicationID:   application.ApplicationID,
		DriverProfileID: application.DriverProfileID.String(),
		SponsorID:       application.SponsorID.String(),
		Status:          application.Status.String(),
		CreatedUnixUTC:  application.CreatedUnixUTC,
	}
}

func toApplicationPayloads(applications []incentive.DriverApplication) []applicationPayload {
	payloads := make([]applicationPayload, 0, len(applications))
	for _, application := range applications {
		payloads = append(payloads, toApplicationPayload(application))
	}
	return payloads
}

type refundRequestPayload struct {
	RefundRequestID string `json:"refund_request_id"`
	OrderID         string `json:"order_id"`
	Reason          string `json:"reason"`
	Status          string `json:"status"`
	CreatedUnixUTC  int64  `json:"created_unix_utc"`
}

func toRefundRequestPayload(request incentive.RefundRequest) refundRequestPayload {
	return refundRequestPayload{
		RefundRequestID: request.RefundRequestID,
		OrderID:         request.OrderID.String(),
		Reason:          request.Reason,
		Status:          request.Status.String(),
		CreatedUnixUTC:  request.CreatedUnixUTC,
	}
}

func toRefundRequestPayloads(requests []incentive.RefundRequest) []refundRequestPayload {
	payloads := make([]refundRequestPayload, 0, len(requests))
	for _, request := range requests {
		payloads = append(payloads, toRefundRequestPayload(request))
	}
	return payloads
}
