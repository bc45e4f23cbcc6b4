package incentive

import (
	"context"
	"errors"
	"testing"
)

func TestAddItemSnapshotsPointPrice(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1") // point value 0.5
	driverID := seedDriver(test, store, "driver-1", sponsorID, 0)
	product := seedProduct(test, store, sponsorID, "49.99", true)
	service := mustCartService(test, store)
	actor := driverActor(test, store, driverID)

	if err := service.AddItem(context.Background(), actor, product.ProductID, 2); err != nil {
		test.Fatalf("add item: %v", err)
	}

	items, total, err := service.Cart(context.Background(), actor)
	if err != nil {
		test.Fatalf("cart: %v", err)
	}
	if len(items) != 1 {
		test.Fatalf("expected 1 cart item, got %d", len(items))
	}
	// 49.99 / 0.5 = 99.98, rounded up to 100 points.
	if items[0].PointPrice != 100 {
		test.Fatalf("expected snapshot price 100, got %d", items[0].PointPrice)
	}
	if items[0].Quantity != 2 {
		test.Fatalf("expected quantity 2, got %d", items[0].Quantity)
	}
	if total != 200 {
		test.Fatalf("expected total 200, got %d", total)
	}
}

func TestAddItemTwiceIncrementsQuantity(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	driverID := seedDriver(test, store, "driver-1", sponsorID, 0)
	product := seedProduct(test, store, sponsorID, "10.00", true)
	service := mustCartService(test, store)
	actor := driverActor(test, store, driverID)

	if err := service.AddItem(context.Background(), actor, product.ProductID, 1); err != nil {
		test.Fatalf("first add: %v", err)
	}
	if err := service.AddItem(context.Background(), actor, product.ProductID, 3); err != nil {
		test.Fatalf("second add: %v", err)
	}

	items, _, err := service.Cart(context.Background(), actor)
	if err != nil {
		test.Fatalf("cart: %v", err)
	}
	if len(items) != 1 {
		test.Fatalf("expected a single merged line, got %d", len(items))
	}
	if items[0].Quantity != 4 {
		test.Fatalf("expected quantity 4, got %d", items[0].Quantity)
	}
}

func TestAddItemRejectsInactiveProduct(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	driverID := seedDriver(test, store, "driver-1", sponsorID, 0)
	product := seedProduct(test, store, sponsorID, "10.00", false)
	service := mustCartService(test, store)

	err := service.AddItem(context.Background(), driverActor(test, store, driverID), product.ProductID, 1)
	if !errors.Is(err, ErrProductUnavailable) {
		test.Fatalf("expected ErrProductUnavailable, got %v", err)
	}
}

func TestAddItemRejectsForeignSponsorProduct(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	ownSponsor := seedSponsor(test, store, "sponsor-own")
	otherSponsor := seedSponsor(test, store, "sponsor-other")
	driverID := seedDriver(test, store, "driver-1", ownSponsor, 0)
	product := seedProduct(test, store, otherSponsor, "10.00", true)
	service := mustCartService(test, store)

	err := service.AddItem(context.Background(), driverActor(test, store, driverID), product.ProductID, 1)
	if !errors.Is(err, ErrProductUnavailable) {
		test.Fatalf("expected ErrProductUnavailable, got %v", err)
	}
}

func TestAddItemRequiresAffiliation(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	driverID := seedDriver(test, store, "driver-1", SponsorID{}, 0)
	product := seedProduct(test, store, sponsorID, "10.00", true)
	service := mustCartService(test, store)

	err := service.AddItem(context.Background(), driverActor(test, store, driverID), product.ProductID, 1)
	if !errors.Is(err, ErrNoSponsor) {
		test.Fatalf("expected ErrNoSponsor, got %v", err)
	}
}

func TestAddItemRejectsNonPositiveQuantity(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	driverID := seedDriver(test, store, "driver-1", sponsorID, 0)
	service := mustCartService(test, store)

	err := service.AddItem(context.Background(), driverActor(test, store, driverID), "prod-any", 0)
	if !errors.Is(err, ErrInvalidQuantity) {
		test.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestSetItemQuantityAndRemove(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	driverID := seedDriver(test, store, "driver-1", sponsorID, 0)
	item := seedCartItem(test, store, driverID, 50, 1)
	service := mustCartService(test, store)
	actor := driverActor(test, store, driverID)

	if err := service.SetItemQuantity(context.Background(), actor, item.CartItemID, 5); err != nil {
		test.Fatalf("set quantity: %v", err)
	}
	if store.cartItems[item.CartItemID].Quantity != 5 {
		test.Fatalf("quantity not updated: %d", store.cartItems[item.CartItemID].Quantity)
	}

	if err := service.RemoveItem(context.Background(), actor, item.CartItemID); err != nil {
		test.Fatalf("remove: %v", err)
	}
	if _, ok := store.cartItems[item.CartItemID]; ok {
		test.Fatalf("item still present after removal")
	}
}

func TestCartItemOwnershipEnforced(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	sponsorID := seedSponsor(test, store, "sponsor-1")
	ownerID := seedDriver(test, store, "driver-owner", sponsorID, 0)
	strangerID := seedDriver(test, store, "driver-stranger", sponsorID, 0)
	item := seedCartItem(test, store, ownerID, 50, 1)
	service := mustCartService(test, store)
	stranger := driverActor(test, store, strangerID)

	if err := service.SetItemQuantity(context.Background(), stranger, item.CartItemID, 9); !errors.Is(err, ErrUnauthorized) {
		test.Fatalf("expected ErrUnauthorized on quantity change, got %v", err)
	}
	if err := service.RemoveItem(context.Background(), stranger, item.CartItemID); !errors.Is(err, ErrUnauthorized) {
		test.Fatalf("expected ErrUnauthorized on removal, got %v", err)
	}
	if store.cartItems[item.CartItemID].Quantity != 1 {
		test.Fatalf("foreign actor mutated the cart line")
	}
}
