package incentive

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CatalogService manages sponsor-scoped product listings and the sponsor's
// currency-to-point conversion ratio.
type CatalogService struct {
	store Store
}

// NewCatalogService wires a CatalogService.
func NewCatalogService(store Store) (*CatalogService, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	return &CatalogService{store: store}, nil
}

// VisibleProduct is an active listing with its point price computed from the
// sponsor's current point value.
type VisibleProduct struct {
	CatalogProduct
	PointPrice int64
}

// AddProduct creates a listing in a sponsor's catalog.
func (service *CatalogService) AddProduct(ctx context.Context, actor Actor, product CatalogProduct) (CatalogProduct, error) {
	if err := authorizeSponsorScope(actor, product.SponsorID); err != nil {
		return CatalogProduct{}, err
	}
	product.Title = strings.TrimSpace(product.Title)
	if product.Title == "" {
		return CatalogProduct{}, fmt.Errorf("%w: title is required", ErrInvalidTitle)
	}
	if !product.Price.IsPositive() {
		return CatalogProduct{}, fmt.Errorf("%w: price must be positive", ErrInvalidPointValue)
	}
	return service.store.CreateCatalogProduct(ctx, product)
}

// SetProductActive toggles a listing's driver visibility.
func (service *CatalogService) SetProductActive(ctx context.Context, actor Actor, productID string, isActive bool) error {
	product, err := service.authorizeProduct(ctx, actor, productID)
	if err != nil {
		return err
	}
	product.IsActive = isActive
	return service.store.UpdateCatalogProduct(ctx, product)
}

// RenameProduct updates a listing's display title.
func (service *CatalogService) RenameProduct(ctx context.Context, actor Actor, productID string, title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTitle)
	}
	product, err := service.authorizeProduct(ctx, actor, productID)
	if err != nil {
		return err
	}
	product.Title = trimmed
	return service.store.UpdateCatalogProduct(ctx, product)
}

// RemoveProduct deletes a listing. Existing order items are snapshots and are
// unaffected.
func (service *CatalogService) RemoveProduct(ctx context.Context, actor Actor, productID string) error {
	if _, err := service.authorizeProduct(ctx, actor, productID); err != nil {
		return err
	}
	return service.store.DeleteCatalogProduct(ctx, productID)
}

// SetSponsorPointValue updates the sponsor's currency-per-point ratio.
func (service *CatalogService) SetSponsorPointValue(ctx context.Context, actor Actor, sponsorID SponsorID, pointValue decimal.Decimal) error {
	if err := authorizeSponsorScope(actor, sponsorID); err != nil {
		return err
	}
	if !pointValue.IsPositive() {
		return fmt.Errorf("%w: must be positive", ErrInvalidPointValue)
	}
	if _, err := service.store.GetSponsor(ctx, sponsorID); err != nil {
		return err
	}
	return service.store.UpdateSponsorPointValue(ctx, sponsorID, pointValue)
}

// SponsorProducts lists a sponsor's full catalog (active and inactive).
func (service *CatalogService) SponsorProducts(ctx context.Context, actor Actor, sponsorID SponsorID) ([]CatalogProduct, error) {
	if err := authorizeSponsorScope(actor, sponsorID); err != nil {
		return nil, err
	}
	return service.store.ListCatalogProducts(ctx, sponsorID, false)
}

// VisibleProducts lists the active products of the driver's sponsor, priced
// in points at the sponsor's current ratio.
func (service *CatalogService) VisibleProducts(ctx context.Context, actor Actor) ([]VisibleProduct, error) {
	driverProfileID, err := authorizeDriverSelf(actor)
	if err != nil {
		return nil, err
	}
	driver, err := service.store.GetDriverProfile(ctx, driverProfileID)
	if err != nil {
		return nil, err
	}
	if driver.SponsorID.IsZero() {
		return nil, fmt.Errorf("%w: affiliation required to browse the catalog", ErrNoSponsor)
	}
	sponsor, err := service.store.GetSponsor(ctx, driver.SponsorID)
	if err != nil {
		return nil, err
	}
	products, err := service.store.ListCatalogProducts(ctx, driver.SponsorID, true)
	if err != nil {
		return nil, err
	}
	visible := make([]VisibleProduct, 0, len(products))
	for _, product := range products {
		visible = append(visible, VisibleProduct{
			CatalogProduct: product,
			PointPrice:     pointPriceFor(product.Price, sponsor.PointValue),
		})
	}
	return visible, nil
}

func (service *CatalogService) authorizeProduct(ctx context.Context, actor Actor, productID string) (CatalogProduct, error) {
	product, err := service.store.GetCatalogProduct(ctx, productID)
	if err != nil {
		return CatalogProduct{}, err
	}
	if err := authorizeSponsorScope(actor, product.SponsorID); err != nil {
		return CatalogProduct{}, err
	}
	return product, nil
}

// pointPriceFor converts a currency price to whole points at the sponsor's
// ratio, rounding up so a listing never costs zero points.
func pointPriceFor(price decimal.Decimal, pointValue decimal.Decimal) int64 {
	if !pointValue.IsPositive() {
		return 0
	}
	points := price.Div(pointValue).Ceil().IntPart()
	if points < 1 {
		return 1
	}
	return points
}
