package orderControllers

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nexus-commerce/api/apperrors"
	cartControllers "github.com/nexus-commerce/api/controllers/cart"
	"github.com/nexus-commerce/api/models"
	"github.com/nexus-commerce/api/testutil"
)

func fillCart(t *testing.T, db *gorm.DB, userID uuid.UUID, lines map[*models.Product]int) *models.Cart {
	t.Helper()

	cart, err := cartControllers.GetOrCreateActiveCart(db, userID)
	if err != nil {
		t.Fatalf("active cart: %v", err)
	}
	for product, qty := range lines {
		if _, err := cartControllers.AddOrIncrementItem(db, cart, product.ID, qty); err != nil {
			t.Fatalf("add %s: %v", product.Name, err)
		}
	}
	return cart
}

func TestCreateOrderFromCart(t *testing.T) {
	db := testutil.OpenDB(t)
	user := testutil.SeedUser(t, db)
	address := testutil.SeedAddress(t, db, user.ID)
	book := testutil.SeedProduct(t, db, "Book", "9.99", 10)
	pen := testutil.SeedProduct(t, db, "Pen", "5.00", 1)

	cart := fillCart(t, db, user.ID, map[*models.Product]int{book: 2, pen: 1})

	order, err := CreateOrderFromCart(db, user.ID, address.ID, nil)
	if err != nil {
		t.Fatalf("materialization failed: %v", err)
	}

	if order.Status != models.OrderStatusPending {
		t.Errorf("expected status pending, got %s", order.Status)
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		t.Errorf("expected payment_status pending, got %s", order.PaymentStatus)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("24.98")) {
		t.Errorf("expected total 24.98, got %s", order.TotalAmount)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 order lines, got %d", len(order.Items))
	}

	// Total must equal the sum of the frozen line prices.
	sum := decimal.Zero
	for _, line := range order.Items {
		sum = sum.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	if !sum.Equal(order.TotalAmount) {
		t.Errorf("line sum %s does not match total %s", sum, order.TotalAmount)
	}

	// Stock was decremented per line.
	var gotBook, gotPen models.Product
	if err := db.First(&gotBook, "id = ?", book.ID).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.First(&gotPen, "id = ?", pen.ID).Error; err != nil {
		t.Fatal(err)
	}
	if gotBook.StockQuantity != 8 || gotPen.StockQuantity != 0 {
		t.Errorf("expected stocks 8 and 0, got %d and %d", gotBook.StockQuantity, gotPen.StockQuantity)
	}

	// The cart is closed out: deactivated, lines purged.
	var closed models.Cart
	if err := db.First(&closed, "id = ?", cart.ID).Error; err != nil {
		t.Fatal(err)
	}
	if closed.IsActive {
		t.Error("cart should be inactive after checkout")
	}
	var lineCount int64
	if err := db.Model(&models.CartItem{}).Where("cart_id = ?", cart.ID).Count(&lineCount).Error; err != nil {
		t.Fatal(err)
	}
	if lineCount != 0 {
		t.Errorf("expected purged cart lines, found %d", lineCount)
	}

	// Shipping defaults to billing when not supplied.
	if order.ShippingAddressID == nil || *order.ShippingAddressID != address.ID {
		t.Error("expected shipping address to default to billing")
	}
}

func TestCreateOrderFromCartExplicitShipping(t *testing.T) {
	db := testutil.OpenDB(t)
	user := testutil.SeedUser(t, db)
	billing := testutil.SeedAddress(t, db, user.ID)
	shipping := testutil.SeedAddress(t, db, user.ID)
	product := testutil.SeedProduct(t, db, "Lamp", "40.00", 5)

	fillCart(t, db, user.ID, map[*models.Product]int{product: 1})

	order, err := CreateOrderFromCart(db, user.ID, billing.ID, &shipping.ID)
	if err != nil {
		t.Fatal(err)
	}
	if *order.BillingAddressID != billing.ID || *order.ShippingAddressID != shipping.ID {
		t.Error("expected distinct billing and shipping addresses to be honored")
	}
}

func TestCreateOrderFromCartRejectsEmptyCart(t *testing.T) {
	db := testutil.OpenDB(t)
	user := testutil.SeedUser(t, db)
	address := testutil.SeedAddress(t, db, user.ID)

	// No cart at all.
	_, err := CreateOrderFromCart(db, user.ID, address.ID, nil)
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeEmptyCart {
		t.Fatalf("expected empty_cart with no cart, got %v", err)
	}

	// Cart exists but holds no lines.
	if _, err := cartControllers.GetOrCreateActiveCart(db, user.ID); err != nil {
		t.Fatal(err)
	}
	_, err = CreateOrderFromCart(db, user.ID, address.ID, nil)
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeEmptyCart {
		t.Fatalf("expected empty_cart with zero lines, got %v", err)
	}
}

func TestCreateOrderFromCartRejectsForeignAddress(t *testing.T) {
	db := testutil.OpenDB(t)
	buyer := testutil.SeedUser(t, db)
	other := testutil.SeedUser(t, db)
	foreign := testutil.SeedAddress(t, db, other.ID)
	product := testutil.SeedProduct(t, db, "Chair", "80.00", 5)

	fillCart(t, db, buyer.ID, map[*models.Product]int{product: 1})

	var appErr *apperrors.Error

	_, err := CreateOrderFromCart(db, buyer.ID, foreign.ID, nil)
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeAddressNotFound {
		t.Errorf("foreign billing address: expected address_not_found, got %v", err)
	}

	_, err = CreateOrderFromCart(db, buyer.ID, uuid.New(), nil)
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeAddressNotFound {
		t.Errorf("nonexistent billing address: expected address_not_found, got %v", err)
	}

	own := testutil.SeedAddress(t, db, buyer.ID)
	_, err = CreateOrderFromCart(db, buyer.ID, own.ID, &foreign.ID)
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeAddressNotFound {
		t.Errorf("foreign shipping address: expected address_not_found, got %v", err)
	}
}

func TestCreateOrderFromCartReportsAllStockViolations(t *testing.T) {
	db := testutil.OpenDB(t)
	user := testutil.SeedUser(t, db)
	address := testutil.SeedAddress(t, db, user.ID)
	scarce := testutil.SeedProduct(t, db, "Scarce", "10.00", 5)
	gone := testutil.SeedProduct(t, db, "Gone", "20.00", 3)
	plenty := testutil.SeedProduct(t, db, "Plenty", "1.00", 100)

	cart := fillCart(t, db, user.ID, map[*models.Product]int{scarce: 5, gone: 3, plenty: 2})

	// Stock shrinks between carting and checkout.
	if err := db.Model(scarce).Update("stock_quantity", 2).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Model(gone).Update("stock_quantity", 0).Error; err != nil {
		t.Fatal(err)
	}

	_, err := CreateOrderFromCart(db, user.ID, address.ID, nil)
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient_stock, got %v", err)
	}
	violations, ok := appErr.Details.([]apperrors.StockViolation)
	if !ok || len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %#v", appErr.Details)
	}
	byProduct := map[uuid.UUID]apperrors.StockViolation{}
	for _, v := range violations {
		byProduct[v.ProductID] = v
	}
	if v := byProduct[scarce.ID]; v.Requested != 5 || v.Available != 2 {
		t.Errorf("scarce violation mismatch: %+v", v)
	}
	if v := byProduct[gone.ID]; v.Requested != 3 || v.Available != 0 {
		t.Errorf("gone violation mismatch: %+v", v)
	}

	// Everything rolled back: no order, stock untouched, cart still open.
	var orderCount int64
	if err := db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatal(err)
	}
	if orderCount != 0 {
		t.Errorf("expected no orders, found %d", orderCount)
	}
	var gotPlenty models.Product
	if err := db.First(&gotPlenty, "id = ?", plenty.ID).Error; err != nil {
		t.Fatal(err)
	}
	if gotPlenty.StockQuantity != 100 {
		t.Errorf("expected untouched stock 100, got %d", gotPlenty.StockQuantity)
	}
	var stillActive models.Cart
	if err := db.First(&stillActive, "id = ?", cart.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !stillActive.IsActive {
		t.Error("cart must stay active when checkout is rejected")
	}
}

func TestCreateOrderFromCartFreezesSnapshotPrice(t *testing.T) {
	db := testutil.OpenDB(t)
	user := testutil.SeedUser(t, db)
	address := testutil.SeedAddress(t, db, user.ID)
	product := testutil.SeedProduct(t, db, "Speaker", "10.00", 5)

	fillCart(t, db, user.ID, map[*models.Product]int{product: 1})

	// Price hike after carting: the line keeps its snapshot.
	if err := db.Model(product).Update("price", decimal.RequireFromString("15.00")).Error; err != nil {
		t.Fatal(err)
	}

	order, err := CreateOrderFromCart(db, user.ID, address.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("expected snapshot price 10.00, got %s", order.TotalAmount)
	}
	if !order.Items[0].Price.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("expected frozen line price 10.00, got %s", order.Items[0].Price)
	}
}

func TestDecrementStockGuard(t *testing.T) {
	db := testutil.OpenDB(t)
	product := testutil.SeedProduct(t, db, "Last Unit", "99.00", 1)

	err := DecrementStock(db, product.ID, 2)
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient_stock, got %v", err)
	}
	violations := appErr.Details.([]apperrors.StockViolation)
	if violations[0].Available != 1 {
		t.Errorf("expected available 1 in violation, got %d", violations[0].Available)
	}

	var got models.Product
	if err := db.First(&got, "id = ?", product.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.StockQuantity != 1 {
		t.Errorf("rejected decrement must not change stock, got %d", got.StockQuantity)
	}

	if err := DecrementStock(db, product.ID, 1); err != nil {
		t.Fatalf("valid decrement: %v", err)
	}
	if err := db.First(&got, "id = ?", product.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.StockQuantity != 0 {
		t.Errorf("expected stock 0, got %d", got.StockQuantity)
	}
}

func TestCompetingCheckoutsOnLastUnit(t *testing.T) {
	db := testutil.OpenDB(t)
	address := func(u *models.User) *models.Address { return testutil.SeedAddress(t, db, u.ID) }
	product := testutil.SeedProduct(t, db, "Limited", "50.00", 1)

	alice := testutil.SeedUser(t, db)
	bob := testutil.SeedUser(t, db)
	aliceAddr := address(alice)
	bobAddr := address(bob)

	fillCart(t, db, alice.ID, map[*models.Product]int{product: 1})
	fillCart(t, db, bob.ID, map[*models.Product]int{product: 1})

	if _, err := CreateOrderFromCart(db, alice.ID, aliceAddr.ID, nil); err != nil {
		t.Fatalf("first checkout should win: %v", err)
	}

	_, err := CreateOrderFromCart(db, bob.ID, bobAddr.ID, nil)
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeInsufficientStock {
		t.Fatalf("second checkout should lose with insufficient_stock, got %v", err)
	}

	var got models.Product
	if err := db.First(&got, "id = ?", product.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.StockQuantity != 0 {
		t.Errorf("stock must never go negative, got %d", got.StockQuantity)
	}
	var orderCount int64
	if err := db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatal(err)
	}
	if orderCount != 1 {
		t.Errorf("expected exactly one order, got %d", orderCount)
	}
}

func TestTransitionOrderStatus(t *testing.T) {
	db := testutil.OpenDB(t)
	user := testutil.SeedUser(t, db)
	address := testutil.SeedAddress(t, db, user.ID)
	product := testutil.SeedProduct(t, db, "Tablet", "300.00", 5)

	fillCart(t, db, user.ID, map[*models.Product]int{product: 1})
	order, err := CreateOrderFromCart(db, user.ID, address.ID, nil)
	if err != nil {
		t.Fatal(err)
	}

	// pending -> shipped skips processing and must be rejected.
	_, err = TransitionOrderStatus(db, order.ID, models.OrderStatusShipped)
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeInvalidTransition {
		t.Fatalf("expected invalid_transition, got %v", err)
	}

	updated, err := TransitionOrderStatus(db, order.ID, models.OrderStatusCanceled)
	if err != nil {
		t.Fatalf("pending -> canceled: %v", err)
	}
	if updated.Status != models.OrderStatusCanceled {
		t.Errorf("expected canceled, got %s", updated.Status)
	}

	// Canceled is terminal.
	if _, err := TransitionOrderStatus(db, order.ID, models.OrderStatusPending); err == nil {
		t.Error("expected terminal canceled state to reject transitions")
	}

	if _, err := TransitionOrderStatus(db, uuid.New(), models.OrderStatusCanceled); err == nil {
		t.Error("expected not_found for unknown order")
	}
}

func TestTransitionOrderStatusLosesToConcurrentWriter(t *testing.T) {
	db := testutil.OpenDB(t)
	user := testutil.SeedUser(t, db)
	address := testutil.SeedAddress(t, db, user.ID)
	product := testutil.SeedProduct(t, db, "Contested", "15.00", 5)

	fillCart(t, db, user.ID, map[*models.Product]int{product: 1})
	order, err := CreateOrderFromCart(db, user.ID, address.ID, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Another writer commits between our read and our write: the order
	// ships right after the cancel read it as pending.
	flipped := false
	err = db.Callback().Query().After("gorm:query").Register("race_shipment", func(tx *gorm.DB) {
		if flipped || tx.Statement.Table != "orders" {
			return
		}
		flipped = true
		tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE orders SET status = ? WHERE id = ?", models.OrderStatusShipped, order.ID)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Callback().Query().Remove("race_shipment")

	_, err = TransitionOrderStatus(db, order.ID, models.OrderStatusCanceled)
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeInvalidTransition {
		t.Fatalf("expected invalid_transition against the fresher write, got %v", err)
	}

	var got models.Order
	if err := db.First(&got, "id = ?", order.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.Status != models.OrderStatusShipped {
		t.Errorf("the concurrent writer's state must survive, got %s", got.Status)
	}
}
