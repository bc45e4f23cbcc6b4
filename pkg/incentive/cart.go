package incentive

import (
	"context"
	"fmt"
)

// CartService manages a driver's transient pre-order line items. Point prices
// are snapshotted at add time from the live catalog; checkout trusts the
// snapshot and never re-reads the product.
type CartService struct {
	store Store
}

// NewCartService wires a CartService.
func NewCartService(store Store) (*CartService, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	return &CartService{store: store}, nil
}

// AddItem puts a catalog product into the driver's cart. The product must be
// active and owned by the driver's sponsor. Adding a product already in the
// cart increments its quantity.
func (service *CartService) AddItem(ctx context.Context, actor Actor, productID string, quantity int) error {
	driverProfileID, err := authorizeDriverSelf(actor)
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: must be positive", ErrInvalidQuantity)
	}
	driver, err := service.store.GetDriverProfile(ctx, driverProfileID)
	if err != nil {
		return err
	}
	if driver.SponsorID.IsZero() {
		return fmt.Errorf("%w: affiliation required to shop", ErrNoSponsor)
	}
	product, err := service.store.GetCatalogProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !product.IsActive || product.SponsorID != driver.SponsorID {
		return fmt.Errorf("%w: product %s", ErrProductUnavailable, productID)
	}
	sponsor, err := service.store.GetSponsor(ctx, driver.SponsorID)
	if err != nil {
		return err
	}
	pointPrice := pointPriceFor(product.Price, sponsor.PointValue)
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		cart, err := transactionStore.GetOrCreateCart(ctx, driverProfileID)
		if err != nil {
			return err
		}
		items, err := transactionStore.ListCartItems(ctx, cart.CartID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.ProductID == productID {
				return transactionStore.UpdateCartItemQuantity(ctx, item.CartItemID, item.Quantity+quantity)
			}
		}
		return transactionStore.InsertCartItem(ctx, CartItem{
			CartID:     cart.CartID,
			ProductID:  product.ProductID,
			EbayItemID: product.EbayItemID,
			Title:      product.Title,
			ImageURL:   product.ImageURL,
			PointPrice: pointPrice,
			Quantity:   quantity,
		})
	})
}

// SetItemQuantity replaces a cart line's quantity.
func (service *CartService) SetItemQuantity(ctx context.Context, actor Actor, cartItemID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: must be positive", ErrInvalidQuantity)
	}
	if err := service.authorizeCartItem(ctx, actor, cartItemID); err != nil {
		return err
	}
	return service.store.UpdateCartItemQuantity(ctx, cartItemID, quantity)
}

// RemoveItem deletes a cart line.
func (service *CartService) RemoveItem(ctx context.Context, actor Actor, cartItemID string) error {
	if err := service.authorizeCartItem(ctx, actor, cartItemID); err != nil {
		return err
	}
	return service.store.DeleteCartItem(ctx, cartItemID)
}

// Cart returns the driver's cart lines and their point total.
func (service *CartService) Cart(ctx context.Context, actor Actor) ([]CartItem, int64, error) {
	driverProfileID, err := authorizeDriverSelf(actor)
	if err != nil {
		return nil, 0, err
	}
	cart, err := service.store.GetOrCreateCart(ctx, driverProfileID)
	if err != nil {
		return nil, 0, err
	}
	items, err := service.store.ListCartItems(ctx, cart.CartID)
	if err != nil {
		return nil, 0, err
	}
	var totalPoints int64
	for _, item := range items {
		totalPoints += item.PointPrice * int64(item.Quantity)
	}
	return items, totalPoints, nil
}

func (service *CartService) authorizeCartItem(ctx context.Context, actor Actor, cartItemID string) error {
	driverProfileID, err := authorizeDriverSelf(actor)
	if err != nil {
		return err
	}
	item, err := service.store.GetCartItem(ctx, cartItemID)
	if err != nil {
		return err
	}
	cart, err := service.store.GetOrCreateCart(ctx, driverProfileID)
	if err != nil {
		return err
	}
	if item.CartID != cart.CartID {
		return fmt.Errorf("%w: not your cart item", ErrUnauthorized)
	}
	return nil
}
