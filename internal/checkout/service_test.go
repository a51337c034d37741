package checkout

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Vijayapardhu/risbow-backend-sub000/internal/coins"
	"github.com/Vijayapardhu/risbow-backend-sub000/internal/inventory"
	"github.com/Vijayapardhu/risbow-backend-sub000/internal/orders"
	"github.com/Vijayapardhu/risbow-backend-sub000/internal/rooms"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/config"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/db/models"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
	pkgerrors "github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/outbox"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/razorpay"
)

type fakeGateway struct {
	mu          sync.Mutex
	calls       int
	createOrder func(ctx context.Context, params razorpay.CreateOrderParams) (*razorpay.Order, error)
}

func (f *fakeGateway) CreateOrder(ctx context.Context, params razorpay.CreateOrderParams) (*razorpay.Order, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if f.createOrder != nil {
		return f.createOrder(ctx, params)
	}
	return &razorpay.Order{
		ID:       fmt.Sprintf("order_gw_%d", n),
		Amount:   params.AmountPaise,
		Currency: "INR",
		Receipt:  params.Receipt,
		Status:   "created",
	}, nil
}

type fixture struct {
	db      *gorm.DB
	holds   *inventory.MemoryHoldStore
	gateway *fakeGateway
	svc     Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{}, &models.Product{}, &models.ProductVariant{},
		&models.Order{}, &models.OrderLineItem{}, &models.Payment{},
		&models.CoinLedgerEntry{}, &models.Room{}, &models.RoomMember{},
		&models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	holds := inventory.NewMemoryHoldStore()
	invRepo := inventory.NewRepository(db)
	invSvc, err := inventory.NewService(invRepo, holds, 15*time.Minute, logg, nil)
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	coinSvc, err := coins.NewService(db, coins.NewRepository(db), logg)
	if err != nil {
		t.Fatalf("coins service: %v", err)
	}
	obSvc := outbox.NewService(outbox.NewRepository(db), logg)
	roomSvc, err := rooms.NewService(db, rooms.NewRepository(db), rooms.NewFakeBroadcaster(), obSvc, nil, logg)
	if err != nil {
		t.Fatalf("rooms service: %v", err)
	}
	gateway := &fakeGateway{}
	svc, err := NewService(
		db, invRepo, invSvc, coinSvc, orders.NewRepository(db), roomSvc,
		gateway, obSvc,
		config.CheckoutConfig{HoldTTL: 15 * time.Minute, MinPayablePaise: 1},
		nil, logg,
	)
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}
	return &fixture{db: db, holds: holds, gateway: gateway, svc: svc}
}

func (f *fixture) seedUser(t *testing.T, balance int64) *models.User {
	t.Helper()
	user := &models.User{Name: "Divya", CoinBalancePaise: balance}
	if err := f.db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (f *fixture) seedProduct(t *testing.T, price int64, stock, minQty, step, maxQty int) *models.Product {
	t.Helper()
	product := &models.Product{
		VendorID:    uuid.New(),
		Name:        "Masala Tin",
		SKU:         "MAS-01",
		PricePaise:  price,
		Stock:       stock,
		MinOrderQty: minQty,
		StepSize:    step,
		MaxOrderQty: maxQty,
		IsActive:    true,
	}
	if err := f.db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func TestOnlineCheckoutCreatesPendingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.seedUser(t, 0)
	product := f.seedProduct(t, 10000, 10, 1, 1, 0)

	result, err := f.svc.Checkout(ctx, Input{
		UserID:      user.ID,
		Lines:       []LineInput{{ProductID: product.ID, Qty: 2}},
		PaymentMode: enums.PaymentModeOnline,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if result.Order.Status != enums.OrderStatusPendingPayment {
		t.Fatalf("expected PENDING_PAYMENT, got %s", result.Order.Status)
	}
	if result.PayablePaise != 20000 {
		t.Fatalf("expected payable 20000, got %d", result.PayablePaise)
	}
	if result.GatewayOrderID == "" {
		t.Fatal("expected a gateway order id")
	}

	// Durable stock is untouched until payment confirms; only a hold exists.
	var gotProduct models.Product
	f.db.First(&gotProduct, "id = ?", product.ID)
	if gotProduct.Stock != 10 {
		t.Fatalf("expected stock 10, got %d", gotProduct.Stock)
	}
	reserved, _ := f.holds.Reserved(ctx, product.ID.String(), "")
	if reserved != 2 {
		t.Fatalf("expected hold of 2, got %d", reserved)
	}

	var events int64
	f.db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderCreated).Count(&events)
	if events != 1 {
		t.Fatalf("expected order.created staged, got %d", events)
	}
}

func TestCompetingCheckoutsLastUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	product := f.seedProduct(t, 10000, 1, 1, 1, 0)
	first := f.seedUser(t, 0)
	second := f.seedUser(t, 0)

	if _, err := f.svc.Checkout(ctx, Input{
		UserID:      first.ID,
		Lines:       []LineInput{{ProductID: product.ID, Qty: 1}},
		PaymentMode: enums.PaymentModeOnline,
	}); err != nil {
		t.Fatalf("first checkout: %v", err)
	}

	// The unit is still only held, not deducted, yet the second buyer
	// must already be turned away.
	_, err := f.svc.Checkout(ctx, Input{
		UserID:      second.ID,
		Lines:       []LineInput{{ProductID: product.ID, Qty: 1}},
		PaymentMode: enums.PaymentModeOnline,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStockConflict {
		t.Fatalf("expected stock conflict, got %v", err)
	}

	var count int64
	f.db.Model(&models.Order{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected a single order, got %d", count)
	}
}

func TestCoinClampAndMinimumPayable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Requested spend exceeds both balance and what the minimum payable
	// allows; the clamp applies balance first, then the payable floor.
	user := f.seedUser(t, 5000)
	product := f.seedProduct(t, 4000, 10, 1, 1, 0)

	result, err := f.svc.Checkout(ctx, Input{
		UserID:              user.ID,
		Lines:               []LineInput{{ProductID: product.ID, Qty: 1}},
		CoinsRequestedPaise: 10000,
		PaymentMode:         enums.PaymentModeOnline,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if result.Order.CoinsUsedPaise != 3999 {
		t.Fatalf("expected coins clamped to 3999, got %d", result.Order.CoinsUsedPaise)
	}
	if result.PayablePaise != 1 {
		t.Fatalf("expected payable floored at 1, got %d", result.PayablePaise)
	}

	// Coins are not debited until payment confirmation.
	var gotUser models.User
	f.db.First(&gotUser, "id = ?", user.ID)
	if gotUser.CoinBalancePaise != 5000 {
		t.Fatalf("expected balance untouched, got %d", gotUser.CoinBalancePaise)
	}
}

func TestQuantityRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.seedUser(t, 0)
	// Valid quantities: 2, 5, 8, ...
	product := f.seedProduct(t, 10000, 50, 2, 3, 0)

	_, err := f.svc.Checkout(ctx, Input{
		UserID:      user.ID,
		Lines:       []LineInput{{ProductID: product.ID, Qty: 7}},
		PaymentMode: enums.PaymentModeOnline,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for qty 7, got %v", err)
	}

	if _, err := f.svc.Checkout(ctx, Input{
		UserID:      user.ID,
		Lines:       []LineInput{{ProductID: product.ID, Qty: 8}},
		PaymentMode: enums.PaymentModeOnline,
	}); err != nil {
		t.Fatalf("qty 8 should pass, got %v", err)
	}
}

func TestMaxOrderQtyEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.seedUser(t, 0)
	product := f.seedProduct(t, 10000, 50, 1, 1, 3)

	_, err := f.svc.Checkout(ctx, Input{
		UserID:      user.ID,
		Lines:       []LineInput{{ProductID: product.ID, Qty: 4}},
		PaymentMode: enums.PaymentModeOnline,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGatewayFailureReleasesHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.gateway.createOrder = func(context.Context, razorpay.CreateOrderParams) (*razorpay.Order, error) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway unavailable")
	}

	user := f.seedUser(t, 0)
	product := f.seedProduct(t, 10000, 5, 1, 1, 0)

	_, err := f.svc.Checkout(ctx, Input{
		UserID:      user.ID,
		Lines:       []LineInput{{ProductID: product.ID, Qty: 2}},
		PaymentMode: enums.PaymentModeOnline,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}

	reserved, _ := f.holds.Reserved(ctx, product.ID.String(), "")
	if reserved != 0 {
		t.Fatalf("expected holds released after gateway failure, got %d", reserved)
	}
	var count int64
	f.db.Model(&models.Order{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no order persisted, got %d", count)
	}
}

func TestCODCheckoutConfirmsAndDeductsImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.seedUser(t, 2000)
	product := f.seedProduct(t, 10000, 5, 1, 1, 0)

	result, err := f.svc.Checkout(ctx, Input{
		UserID:              user.ID,
		Lines:               []LineInput{{ProductID: product.ID, Qty: 2}},
		CoinsRequestedPaise: 2000,
		PaymentMode:         enums.PaymentModeCOD,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if result.Order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", result.Order.Status)
	}
	if result.PayablePaise != 18000 {
		t.Fatalf("expected payable 18000, got %d", result.PayablePaise)
	}

	var gotProduct models.Product
	f.db.First(&gotProduct, "id = ?", product.ID)
	if gotProduct.Stock != 3 {
		t.Fatalf("expected durable stock deducted to 3, got %d", gotProduct.Stock)
	}

	var gotUser models.User
	f.db.First(&gotUser, "id = ?", user.ID)
	if gotUser.CoinBalancePaise != 0 {
		t.Fatalf("expected coins debited, balance %d", gotUser.CoinBalancePaise)
	}

	var gotOrder models.Order
	f.db.First(&gotOrder, "id = ?", result.Order.ID)
	if !gotOrder.CoinsUsedDebited {
		t.Fatal("expected coins marked debited")
	}
	if f.gateway.calls != 0 {
		t.Fatalf("COD must not call the gateway, got %d calls", f.gateway.calls)
	}
}

func TestEmptyCartRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(context.Background(), Input{
		UserID:      uuid.New(),
		PaymentMode: enums.PaymentModeOnline,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
