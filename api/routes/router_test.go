package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Vijayapardhu/risbow-backend-sub000/internal/coins"
	"github.com/Vijayapardhu/risbow-backend-sub000/internal/inventory"
	"github.com/Vijayapardhu/risbow-backend-sub000/internal/orders"
	"github.com/Vijayapardhu/risbow-backend-sub000/internal/rooms"
	pkgauth "github.com/Vijayapardhu/risbow-backend-sub000/pkg/auth"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/config"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/db/models"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/outbox"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", Port: "8080"},
		JWT: config.JWTConfig{
			Secret:            "test-secret",
			Issuer:            "risbow-core-test",
			ExpirationMinutes: 15,
		},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *gorm.DB) {
	t.Helper()

	dsn := "file:routes_" + uuid.NewString() + "?mode=memory&cache=shared"
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
	invSvc, err := inventory.NewService(inventory.NewRepository(db), holds, 15*time.Minute, logg, nil)
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
	orderSvc, err := orders.NewService(db, orders.NewRepository(db), invSvc, coinSvc, obSvc, logg)
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}

	handler := NewRouter(Deps{
		Config:    testConfig(),
		Logger:    logg,
		DB:        stubPinger{},
		Redis:     stubPinger{},
		Orders:    orderSvc,
		Rooms:     roomSvc,
		Coins:     coinSvc,
		Inventory: invSvc,
	})
	return handler, db
}

func mintToken(t *testing.T, role enums.ActorRole, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(testConfig().JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	handler, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthReadyProbesDependencies(t *testing.T) {
	handler, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	handler, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestListMyOrdersWithToken(t *testing.T) {
	handler, db := newTestRouter(t)

	user := &models.User{Name: "Asha"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	order := &models.Order{
		UserID:        user.ID,
		Status:        enums.OrderStatusConfirmed,
		SubtotalPaise: 10000,
		TotalPaise:    10000,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.ActorRoleCustomer, user.ID))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data []struct {
			OrderID uuid.UUID `json:"orderId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 || envelope.Data[0].OrderID != order.ID {
		t.Fatalf("expected the seeded order, got %+v", envelope.Data)
	}
}

func TestForceUnlockRequiresAdminRole(t *testing.T) {
	handler, db := newTestRouter(t)

	user := &models.User{Name: "Asha"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms/"+uuid.NewString()+"/unlock", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.ActorRoleCustomer, user.ID))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCoinBalanceReturnsCallerBalance(t *testing.T) {
	handler, db := newTestRouter(t)

	user := &models.User{Name: "Asha", CoinBalancePaise: 720}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/coins/balance", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.ActorRoleCustomer, user.ID))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data struct {
			BalancePaise int64 `json:"balancePaise"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.BalancePaise != 720 {
		t.Fatalf("expected balance 720, got %d", envelope.Data.BalancePaise)
	}
}
