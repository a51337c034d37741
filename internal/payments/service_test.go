package payments

import (
	"context"
	"io"
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
)

type fakeVerifier struct {
	valid bool
}

func (f *fakeVerifier) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return f.valid
}

func (f *fakeVerifier) VerifyWebhookSignature(body []byte, signature string) bool {
	return f.valid
}

type fixture struct {
	db       *gorm.DB
	holds    *inventory.MemoryHoldStore
	hub      *rooms.FakeBroadcaster
	verifier *fakeVerifier
	svc      Service
	roomSvc  rooms.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{}, &models.Product{}, &models.ProductVariant{},
		&models.Order{}, &models.OrderLineItem{}, &models.Payment{},
		&models.CoinLedgerEntry{}, &models.Room{}, &models.RoomMember{},
		&models.AbandonedCheckout{}, &models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	holds := inventory.NewMemoryHoldStore()
	invSvc, err := inventory.NewService(inventory.NewRepository(db), holds, 15*time.Minute, logg, nil)
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	coinSvc, err := coins.NewService(db, coins.NewRepository(db), logg)
	if err != nil {
		t.Fatalf("coins service: %v", err)
	}
	obSvc := outbox.NewService(outbox.NewRepository(db), logg)
	hub := rooms.NewFakeBroadcaster()
	roomSvc, err := rooms.NewService(db, rooms.NewRepository(db), hub, obSvc, nil, logg)
	if err != nil {
		t.Fatalf("rooms service: %v", err)
	}
	verifier := &fakeVerifier{valid: true}
	svc, err := NewService(
		db, orders.NewRepository(db), NewRepository(db), coinSvc, invSvc, roomSvc,
		obSvc, verifier, config.CoinsConfig{ReferralRewardPaise: 50}, nil, logg,
	)
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}
	return &fixture{db: db, holds: holds, hub: hub, verifier: verifier, svc: svc, roomSvc: roomSvc}
}

func (f *fixture) seedUser(t *testing.T, balance int64, referredBy *uuid.UUID) *models.User {
	t.Helper()
	user := &models.User{Name: "Kiran", CoinBalancePaise: balance, ReferredByUserID: referredBy}
	if err := f.db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (f *fixture) seedProduct(t *testing.T, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		VendorID:   uuid.New(),
		Name:       "Copper Bottle",
		SKU:        "BOT-01",
		PricePaise: 30000,
		Stock:      stock,
		IsActive:   true,
	}
	if err := f.db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func (f *fixture) seedPendingOrder(t *testing.T, user *models.User, product *models.Product, gatewayOrderID string, coinsUsed int64) *models.Order {
	t.Helper()
	order := &models.Order{
		UserID:         user.ID,
		Status:         enums.OrderStatusPendingPayment,
		SubtotalPaise:  30000,
		CoinsUsedPaise: coinsUsed,
		TotalPaise:     30000 - coinsUsed,
		GatewayOrderID: &gatewayOrderID,
		Items: []models.OrderLineItem{{
			ProductID:      product.ID,
			VendorID:       product.VendorID,
			Name:           product.Name,
			Qty:            1,
			UnitPricePaise: 30000,
			TotalPaise:     30000,
			MinOrderQty:    1,
			StepSize:       1,
		}},
		Payment: &models.Payment{
			Mode:            enums.PaymentModeOnline,
			Status:          enums.PaymentStatusPending,
			AmountPaise:     30000 - coinsUsed,
			ProviderOrderID: &gatewayOrderID,
		},
	}
	if err := f.db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestConfirmSettlesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.seedUser(t, 5000, nil)
	product := f.seedProduct(t, 4)
	f.seedPendingOrder(t, user, product, "order_gw_1", 2000)
	if _, err := f.holds.Add(ctx, product.ID.String(), "", 1, time.Minute); err != nil {
		t.Fatalf("seed hold: %v", err)
	}

	got, err := f.svc.Confirm(ctx, Confirmation{
		GatewayOrderID:   "order_gw_1",
		GatewayPaymentID: "pay_123",
		Signature:        "sig",
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if got.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", got.Status)
	}
	if got.Payment == nil || got.Payment.Status != enums.PaymentStatusSuccess {
		t.Fatalf("expected payment settled, got %+v", got.Payment)
	}
	if got.Payment.ProviderPaymentID == nil || *got.Payment.ProviderPaymentID != "pay_123" {
		t.Fatalf("expected provider payment id recorded")
	}
	if !got.CoinsUsedDebited {
		t.Fatal("expected coins marked debited")
	}

	var gotUser models.User
	f.db.First(&gotUser, "id = ?", user.ID)
	if gotUser.CoinBalancePaise != 3000 {
		t.Fatalf("expected coins debited to 3000, got %d", gotUser.CoinBalancePaise)
	}

	var gotProduct models.Product
	f.db.First(&gotProduct, "id = ?", product.ID)
	if gotProduct.Stock != 3 {
		t.Fatalf("expected stock deducted to 3, got %d", gotProduct.Stock)
	}
	reserved, _ := f.holds.Reserved(ctx, product.ID.String(), "")
	if reserved != 0 {
		t.Fatalf("expected hold dropped, counter at %d", reserved)
	}
}

func TestConfirmIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.seedUser(t, 5000, nil)
	product := f.seedProduct(t, 4)
	f.seedPendingOrder(t, user, product, "order_gw_2", 2000)

	conf := Confirmation{GatewayOrderID: "order_gw_2", GatewayPaymentID: "pay_456", Signature: "sig"}
	if _, err := f.svc.Confirm(ctx, conf); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	for i := 0; i < 3; i++ {
		got, err := f.svc.Confirm(ctx, conf)
		if err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
		if got.Status != enums.OrderStatusConfirmed {
			t.Fatalf("replay %d: expected CONFIRMED, got %s", i, got.Status)
		}
	}

	var gotUser models.User
	f.db.First(&gotUser, "id = ?", user.ID)
	if gotUser.CoinBalancePaise != 3000 {
		t.Fatalf("coins debited more than once, balance %d", gotUser.CoinBalancePaise)
	}
	var gotProduct models.Product
	f.db.First(&gotProduct, "id = ?", product.ID)
	if gotProduct.Stock != 3 {
		t.Fatalf("stock deducted more than once, got %d", gotProduct.Stock)
	}
	var entries int64
	f.db.Model(&models.CoinLedgerEntry{}).Count(&entries)
	if entries != 1 {
		t.Fatalf("expected one ledger row, got %d", entries)
	}
	var events int64
	f.db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderConfirmed).Count(&events)
	if events != 1 {
		t.Fatalf("expected one confirmed event, got %d", events)
	}
}

func TestConfirmRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.seedUser(t, 0, nil)
	product := f.seedProduct(t, 4)
	order := f.seedPendingOrder(t, user, product, "order_gw_3", 0)

	f.verifier.valid = false
	_, err := f.svc.Confirm(ctx, Confirmation{GatewayOrderID: "order_gw_3", GatewayPaymentID: "pay", Signature: "bad"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	var gotOrder models.Order
	f.db.First(&gotOrder, "id = ?", order.ID)
	if gotOrder.Status != enums.OrderStatusPendingPayment {
		t.Fatalf("order must stay pending on bad signature, got %s", gotOrder.Status)
	}
}

func TestConfirmUnknownGatewayOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Confirm(context.Background(), Confirmation{GatewayOrderID: "order_missing", GatewayPaymentID: "pay", Signature: "sig"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConfirmCancelledOrderConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.seedUser(t, 0, nil)
	product := f.seedProduct(t, 4)
	order := f.seedPendingOrder(t, user, product, "order_gw_4", 0)
	f.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", enums.OrderStatusCancelled)

	_, err := f.svc.Confirm(ctx, Confirmation{GatewayOrderID: "order_gw_4", GatewayPaymentID: "pay", Signature: "sig"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestReferralSettlesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	referrer := f.seedUser(t, 0, nil)
	referred := f.seedUser(t, 0, &referrer.ID)
	product := f.seedProduct(t, 10)

	f.seedPendingOrder(t, referred, product, "order_gw_5", 0)
	if _, err := f.svc.Confirm(ctx, Confirmation{GatewayOrderID: "order_gw_5", GatewayPaymentID: "pay_a", Signature: "sig"}); err != nil {
		t.Fatalf("first confirm: %v", err)
	}

	// A second paid order must not pay the reward again.
	f.seedPendingOrder(t, referred, product, "order_gw_6", 0)
	if _, err := f.svc.Confirm(ctx, Confirmation{GatewayOrderID: "order_gw_6", GatewayPaymentID: "pay_b", Signature: "sig"}); err != nil {
		t.Fatalf("second confirm: %v", err)
	}

	var gotReferrer, gotReferred models.User
	f.db.First(&gotReferrer, "id = ?", referrer.ID)
	f.db.First(&gotReferred, "id = ?", referred.ID)
	if gotReferrer.CoinBalancePaise != 50 {
		t.Fatalf("expected referrer reward 50, got %d", gotReferrer.CoinBalancePaise)
	}
	if gotReferred.CoinBalancePaise != 50 {
		t.Fatalf("expected referred reward 50, got %d", gotReferred.CoinBalancePaise)
	}
}

func TestConfirmConvertsAbandonedCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.seedUser(t, 0, nil)
	product := f.seedProduct(t, 4)

	abandoned := &models.AbandonedCheckout{UserID: user.ID, Status: enums.AbandonedCheckoutStatusOpen}
	if err := f.db.Create(abandoned).Error; err != nil {
		t.Fatalf("seed abandoned checkout: %v", err)
	}

	order := f.seedPendingOrder(t, user, product, "order_gw_7", 0)
	f.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("abandoned_checkout_id", abandoned.ID)

	if _, err := f.svc.Confirm(ctx, Confirmation{GatewayOrderID: "order_gw_7", GatewayPaymentID: "pay", Signature: "sig"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	var got models.AbandonedCheckout
	f.db.First(&got, "id = ?", abandoned.ID)
	if got.Status != enums.AbandonedCheckoutStatusConverted || got.ConvertedAt == nil {
		t.Fatalf("expected CONVERTED with timestamp, got %+v", got)
	}
}

func TestConfirmLinksRoomAndUnlocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.seedUser(t, 0, nil)
	product := f.seedProduct(t, 4)

	room := &models.Room{
		Name:                "Flash Room",
		Capacity:            5,
		UnlockMinOrders:     1,
		UnlockMinValuePaise: 10000,
		Status:              enums.RoomStatusActive,
		ExpiresAt:           time.Now().Add(time.Hour),
	}
	if err := f.db.Create(room).Error; err != nil {
		t.Fatalf("seed room: %v", err)
	}
	if _, err := f.roomSvc.Join(ctx, room.ID, user.ID); err != nil {
		t.Fatalf("join: %v", err)
	}

	order := f.seedPendingOrder(t, user, product, "order_gw_8", 0)
	f.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("room_id", room.ID)

	if _, err := f.svc.Confirm(ctx, Confirmation{GatewayOrderID: "order_gw_8", GatewayPaymentID: "pay", Signature: "sig"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	var gotRoom models.Room
	f.db.First(&gotRoom, "id = ?", room.ID)
	if gotRoom.Status != enums.RoomStatusUnlocked {
		t.Fatalf("expected room unlocked, got %s", gotRoom.Status)
	}
	if got := len(f.hub.EventsOfType("room.unlocked")); got != 1 {
		t.Fatalf("expected one unlock broadcast, got %d", got)
	}
}

func TestStockShortfallDoesNotFailPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.seedUser(t, 0, nil)
	product := f.seedProduct(t, 0)
	f.seedPendingOrder(t, user, product, "order_gw_9", 0)

	got, err := f.svc.Confirm(ctx, Confirmation{GatewayOrderID: "order_gw_9", GatewayPaymentID: "pay", Signature: "sig"})
	if err != nil {
		t.Fatalf("confirm must win over stock shortfall: %v", err)
	}
	if got.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", got.Status)
	}

	var gotProduct models.Product
	f.db.First(&gotProduct, "id = ?", product.ID)
	if gotProduct.Stock != 0 {
		t.Fatalf("stock must never go negative, got %d", gotProduct.Stock)
	}
}

// staleReadOrderRepo serves the pre-settlement snapshot on reads, the
// interleaving a confirmer racing the winner observes. Writes go through
// untouched, so the guarded status move still sees the real row.
type staleReadOrderRepo struct {
	orders.Repository
}

func (r *staleReadOrderRepo) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	order, err := r.Repository.GetByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	order.Status = enums.OrderStatusPendingPayment
	return order, nil
}

func TestConfirmRaceLoserSkipsDeduction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.seedUser(t, 0, nil)
	product := f.seedProduct(t, 4)
	f.seedPendingOrder(t, user, product, "order_gw_race", 0)

	conf := Confirmation{GatewayOrderID: "order_gw_race", GatewayPaymentID: "pay_race", Signature: "sig"}
	if _, err := f.svc.Confirm(ctx, conf); err != nil {
		t.Fatalf("winning confirm: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	holds := inventory.NewMemoryHoldStore()
	invSvc, err := inventory.NewService(inventory.NewRepository(f.db), holds, 15*time.Minute, logg, nil)
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	coinSvc, err := coins.NewService(f.db, coins.NewRepository(f.db), logg)
	if err != nil {
		t.Fatalf("coins service: %v", err)
	}
	obSvc := outbox.NewService(outbox.NewRepository(f.db), logg)
	roomSvc, err := rooms.NewService(f.db, rooms.NewRepository(f.db), rooms.NewFakeBroadcaster(), obSvc, nil, logg)
	if err != nil {
		t.Fatalf("rooms service: %v", err)
	}
	loser, err := NewService(
		f.db, &staleReadOrderRepo{Repository: orders.NewRepository(f.db)}, NewRepository(f.db),
		coinSvc, invSvc, roomSvc, obSvc, &fakeVerifier{valid: true},
		config.CoinsConfig{}, nil, logg,
	)
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}

	got, err := loser.Confirm(ctx, conf)
	if err != nil {
		t.Fatalf("losing confirm: %v", err)
	}
	if got == nil || got.Status != enums.OrderStatusConfirmed {
		t.Fatalf("loser must return the settled order, got %+v", got)
	}

	var gotProduct models.Product
	f.db.First(&gotProduct, "id = ?", product.ID)
	if gotProduct.Stock != 3 {
		t.Fatalf("stock deducted twice for one payment, want 3 got %d", gotProduct.Stock)
	}
}

func TestConfirmWebhookSettlesCaptureEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.seedUser(t, 0, nil)
	product := f.seedProduct(t, 2)
	f.seedPendingOrder(t, user, product, "order_gw_wh", 0)

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_wh_1","order_id":"order_gw_wh"}}}}`)
	got, err := f.svc.ConfirmWebhook(ctx, body, "sig")
	if err != nil {
		t.Fatalf("confirm webhook: %v", err)
	}
	if got == nil || got.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected CONFIRMED order, got %+v", got)
	}
	if got.Payment == nil || got.Payment.ProviderPaymentID == nil || *got.Payment.ProviderPaymentID != "pay_wh_1" {
		t.Fatalf("expected webhook payment id recorded")
	}
}

func TestConfirmWebhookIgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.seedUser(t, 0, nil)
	product := f.seedProduct(t, 2)
	order := f.seedPendingOrder(t, user, product, "order_gw_wh2", 0)

	body := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_x","order_id":"order_gw_wh2"}}}}`)
	got, err := f.svc.ConfirmWebhook(ctx, body, "sig")
	if err != nil {
		t.Fatalf("confirm webhook: %v", err)
	}
	if got != nil {
		t.Fatalf("expected non-capture event to be dropped, got %+v", got)
	}

	var fresh models.Order
	f.db.First(&fresh, "id = ?", order.ID)
	if fresh.Status != enums.OrderStatusPendingPayment {
		t.Fatalf("order must stay pending, got %s", fresh.Status)
	}
}

func TestConfirmWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	f.verifier.valid = false

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"p","order_id":"o"}}}}`)
	_, err := f.svc.ConfirmWebhook(context.Background(), body, "bad")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
