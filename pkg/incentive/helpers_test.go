package incentive

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

const testClockUnixUTC int64 = 1700000000

func fixedClock() func() int64 {
	return func() int64 { return testClockUnixUTC }
}

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	id, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return id
}

func mustDriverProfileID(test *testing.T, raw string) DriverProfileID {
	test.Helper()
	id, err := NewDriverProfileID(raw)
	if err != nil {
		test.Fatalf("driver profile id: %v", err)
	}
	return id
}

func mustSponsorID(test *testing.T, raw string) SponsorID {
	test.Helper()
	id, err := NewSponsorID(raw)
	if err != nil {
		test.Fatalf("sponsor id: %v", err)
	}
	return id
}

func mustPoints(test *testing.T, raw int64) Points {
	test.Helper()
	points, err := NewPoints(raw)
	if err != nil {
		test.Fatalf("points: %v", err)
	}
	return points
}

func mustReason(test *testing.T, raw string) Reason {
	test.Helper()
	reason, err := NewReason(raw)
	if err != nil {
		test.Fatalf("reason: %v", err)
	}
	return reason
}

func mustLedgerService(test *testing.T, store Store) *LedgerService {
	test.Helper()
	service, err := NewLedgerService(store, fixedClock())
	if err != nil {
		test.Fatalf("ledger service: %v", err)
	}
	return service
}

func mustOrderService(test *testing.T, store Store) *OrderService {
	test.Helper()
	service, err := NewOrderService(store, mustLedgerService(test, store), fixedClock())
	if err != nil {
		test.Fatalf("order service: %v", err)
	}
	return service
}

func mustCartService(test *testing.T, store Store) *CartService {
	test.Helper()
	service, err := NewCartService(store)
	if err != nil {
		test.Fatalf("cart service: %v", err)
	}
	return service
}

func mustCatalogService(test *testing.T, store Store) *CatalogService {
	test.Helper()
	service, err := NewCatalogService(store)
	if err != nil {
		test.Fatalf("catalog service: %v", err)
	}
	return service
}

func mustApplicationService(test *testing.T, store Store) *ApplicationService {
	test.Helper()
	service, err := NewApplicationService(store, mustLedgerService(test, store), fixedClock())
	if err != nil {
		test.Fatalf("application service: %v", err)
	}
	return service
}

func seedSponsor(test *testing.T, store *stubStore, raw string) SponsorID {
	test.Helper()
	sponsorID := mustSponsorID(test, raw)
	store.sponsors[sponsorID.String()] = Sponsor{
		SponsorID:  sponsorID,
		Name:       "Sponsor " + raw,
		PointValue: decimal.RequireFromString("0.5"),
	}
	return sponsorID
}

func seedDriver(test *testing.T, store *stubStore, raw string, sponsorID SponsorID, balance int64) DriverProfileID {
	test.Helper()
	driverProfileID := mustDriverProfileID(test, raw)
	store.drivers[driverProfileID.String()] = DriverProfile{
		DriverProfileID: driverProfileID,
		UserID:          mustUserID(test, "user-"+raw),
		SponsorID:       sponsorID,
		PointsBalance:   balance,
		Status:          DriverStatusActive,
		CreatedUnixUTC:  testClockUnixUTC,
	}
	return driverProfileID
}

func seedProduct(test *testing.T, store *stubStore, sponsorID SponsorID, price string, isActive bool) CatalogProduct {
	test.Helper()
	product := CatalogProduct{
		ProductID:  store.newID("prod"),
		SponsorID:  sponsorID,
		EbayItemID: "ebay-" + store.newID("item"),
		Title:      "Test Product",
		ImageURL:   "https://img.example/p.jpg",
		Price:      decimal.RequireFromString(price),
		IsActive:   isActive,
	}
	store.products[product.ProductID] = product
	return product
}

func seedCartItem(test *testing.T, store *stubStore, driverProfileID DriverProfileID, pointPrice int64, quantity int) CartItem {
	test.Helper()
	cart, err := store.GetOrCreateCart(context.Background(), driverProfileID)
	if err != nil {
		test.Fatalf("cart: %v", err)
	}
	item := CartItem{
		CartItemID: store.newID("ci"),
		CartID:     cart.CartID,
		ProductID:  store.newID("prod"),
		EbayItemID: "ebay-item",
		Title:      "Cart Product",
		ImageURL:   "https://img.example/c.jpg",
		PointPrice: pointPrice,
		Quantity:   quantity,
	}
	store.cartItems[item.CartItemID] = item
	return item
}

func driverActor(test *testing.T, store *stubStore, driverProfileID DriverProfileID) Actor {
	test.Helper()
	driver, ok := store.drivers[driverProfileID.String()]
	if !ok {
		test.Fatalf("driver %s not seeded", driverProfileID)
	}
	return Actor{UserID: driver.UserID, Role: RoleDriver, DriverProfileID: driverProfileID}
}

func sponsorActor(test *testing.T, sponsorID SponsorID) Actor {
	test.Helper()
	return Actor{UserID: mustUserID(test, "sponsor-user-"+sponsorID.String()), Role: RoleSponsor, SponsorID: sponsorID}
}

func adminActor(test *testing.T) Actor {
	test.Helper()
	return Actor{UserID: mustUserID(test, "admin-user"), Role: RoleAdmin}
}

// assertConserved checks the conservation law for drivers seeded with a zero
// starting balance: the balance must equal the sum of all ledger entries.
func assertConserved(test *testing.T, store *stubStore, driverProfileID DriverProfileID, seededBalance int64) {
	test.Helper()
	driver, ok := store.drivers[driverProfileID.String()]
	if !ok {
		test.Fatalf("driver %s not found", driverProfileID)
	}
	sum, err := store.SumPointChanges(context.Background(), driverProfileID)
	if err != nil {
		test.Fatalf("sum point changes: %v", err)
	}
	if driver.PointsBalance != seededBalance+sum {
		test.Fatalf("conservation violated: balance %d, seeded %d + ledger sum %d", driver.PointsBalance, seededBalance, sum)
	}
}
