package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/Vijayapardhu/risbow-backend-sub000/internal/coins"
	"github.com/Vijayapardhu/risbow-backend-sub000/internal/inventory"
	"github.com/Vijayapardhu/risbow-backend-sub000/internal/orders"
	"github.com/Vijayapardhu/risbow-backend-sub000/internal/rooms"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/config"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/db/models"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/metrics"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/outbox"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/razorpay"
)

// Gateway is the payment-provider surface checkout needs.
type Gateway interface {
	CreateOrder(ctx context.Context, params razorpay.CreateOrderParams) (*razorpay.Order, error)
}

// LineInput is one cart line as submitted by the client.
type LineInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Qty       int
}

// Input is a checkout request after API-layer validation.
type Input struct {
	UserID              uuid.UUID
	Lines               []LineInput
	CoinsRequestedPaise int64
	PaymentMode         enums.PaymentMode
	RoomID              *uuid.UUID
	AbandonedCheckoutID *uuid.UUID
}

// Result carries the persisted order plus what the client needs to open
// the gateway's payment sheet. GatewayOrderID is empty for COD.
type Result struct {
	Order          *models.Order
	GatewayOrderID string
	PayablePaise   int64
	Currency       string
}

type Service interface {
	Checkout(ctx context.Context, input Input) (*Result, error)
}

type service struct {
	conn      *gorm.DB
	invRepo   inventory.Repository
	inventory inventory.Service
	coins     coins.Service
	orders    orders.Repository
	rooms     rooms.Service
	gateway   Gateway
	outbox    *outbox.Service
	cfg       config.CheckoutConfig
	metrics   *metrics.CoreMetrics
	logg      *logger.Logger
}

func NewService(
	conn *gorm.DB,
	invRepo inventory.Repository,
	inv inventory.Service,
	coinSvc coins.Service,
	orderRepo orders.Repository,
	roomSvc rooms.Service,
	gateway Gateway,
	ob *outbox.Service,
	cfg config.CheckoutConfig,
	m *metrics.CoreMetrics,
	logg *logger.Logger,
) (Service, error) {
	if conn == nil {
		return nil, fmt.Errorf("db connection is required")
	}
	if invRepo == nil || inv == nil {
		return nil, fmt.Errorf("inventory is required")
	}
	if coinSvc == nil {
		return nil, fmt.Errorf("coins service is required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if roomSvc == nil {
		return nil, fmt.Errorf("rooms service is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway is required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		conn:      conn,
		invRepo:   invRepo,
		inventory: inv,
		coins:     coinSvc,
		orders:    orderRepo,
		rooms:     roomSvc,
		gateway:   gateway,
		outbox:    ob,
		cfg:       cfg,
		metrics:   m,
		logg:      logg,
	}, nil
}

// pricedLine is a validated cart line with its catalog snapshot resolved.
type pricedLine struct {
	input   LineInput
	product *models.Product
	variant *models.ProductVariant
	unit    int64
	total   int64
}

func (s *service) Checkout(ctx context.Context, input Input) (*Result, error) {
	result, err := s.checkout(ctx, input)
	if err != nil {
		if typed := errors.As(err); typed != nil {
			s.metrics.IncCheckout(string(typed.Code()))
		} else {
			s.metrics.IncCheckout("error")
		}
		return nil, err
	}
	s.metrics.IncCheckout("success")
	return result, nil
}

func (s *service) checkout(ctx context.Context, input Input) (*Result, error) {
	if len(input.Lines) == 0 {
		return nil, errors.New(errors.CodeValidation, "cart is empty")
	}
	if !input.PaymentMode.IsValid() {
		return nil, errors.New(errors.CodeValidation, "unknown payment mode")
	}
	if input.CoinsRequestedPaise < 0 {
		return nil, errors.New(errors.CodeValidation, "coin amount cannot be negative")
	}

	priced, err := s.priceAndValidate(ctx, input.Lines)
	if err != nil {
		return nil, err
	}

	if input.RoomID != nil {
		room, err := s.rooms.Get(ctx, *input.RoomID)
		if err != nil {
			return nil, err
		}
		if !room.Status.AcceptsMembers() {
			return nil, errors.New(errors.CodeStateConflict, "room is not accepting orders").
				WithDetails(map[string]any{"roomId": room.ID, "status": room.Status})
		}
	}

	var subtotal int64
	invLines := make([]inventory.Line, 0, len(priced))
	for _, p := range priced {
		subtotal += p.total
		invLines = append(invLines, inventory.Line{
			ProductID: p.input.ProductID,
			VariantID: p.input.VariantID,
			Qty:       p.input.Qty,
		})
	}

	coinsApplied, err := s.clampCoins(ctx, input.UserID, input.CoinsRequestedPaise, subtotal)
	if err != nil {
		return nil, err
	}
	payable := subtotal - coinsApplied

	if err := s.inventory.Reserve(ctx, invLines); err != nil {
		return nil, err
	}
	releaseHolds := func() {
		if relErr := s.inventory.Release(ctx, invLines); relErr != nil {
			s.logg.Error(ctx, "releasing holds after failed checkout", relErr)
		}
	}

	var result *Result
	switch input.PaymentMode {
	case enums.PaymentModeCOD:
		result, err = s.placeCOD(ctx, input, priced, subtotal, coinsApplied, invLines)
	default:
		result, err = s.placeOnline(ctx, input, priced, subtotal, coinsApplied, payable)
	}
	if err != nil {
		releaseHolds()
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": result.Order.ID.String(),
		"user_id":  input.UserID.String(),
		"mode":     input.PaymentMode,
		"payable":  result.PayablePaise,
	})
	s.logg.Info(logCtx, "checkout placed")
	return result, nil
}

// priceAndValidate resolves every line against the live catalog and
// enforces the quantity rules the product declares.
func (s *service) priceAndValidate(ctx context.Context, lines []LineInput) ([]pricedLine, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.invRepo.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	priced := make([]pricedLine, 0, len(lines))
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok || !product.IsActive {
			return nil, errors.New(errors.CodeNotFound, "product not available").
				WithDetails(map[string]any{"productId": line.ProductID})
		}
		if line.Qty <= 0 {
			return nil, errors.New(errors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"productId": line.ProductID})
		}
		if err := validateQuantityRules(product, line.Qty); err != nil {
			return nil, err
		}

		unit := product.EffectivePricePaise()
		var variant *models.ProductVariant
		if line.VariantID != nil {
			variant = product.Variant(*line.VariantID)
			if variant == nil || !variant.IsActive {
				return nil, errors.New(errors.CodeNotFound, "product variant not available").
					WithDetails(map[string]any{"productId": line.ProductID, "variantId": line.VariantID})
			}
			if variant.PricePaise != nil && *variant.PricePaise > 0 {
				unit = *variant.PricePaise
			}
		}

		priced = append(priced, pricedLine{
			input:   line,
			product: product,
			variant: variant,
			unit:    unit,
			total:   unit * int64(line.Qty),
		})
	}
	return priced, nil
}

func validateQuantityRules(product *models.Product, qty int) error {
	details := map[string]any{
		"productId":   product.ID,
		"name":        product.Name,
		"qty":         qty,
		"minOrderQty": product.MinOrderQty,
		"stepSize":    product.StepSize,
		"maxOrderQty": product.MaxOrderQty,
	}
	if qty < product.MinOrderQty {
		return errors.New(errors.CodeValidation, "quantity below product minimum").WithDetails(details)
	}
	if product.StepSize > 1 && (qty-product.MinOrderQty)%product.StepSize != 0 {
		return errors.New(errors.CodeValidation, "quantity off the product's step size").WithDetails(details)
	}
	if product.MaxOrderQty > 0 && qty > product.MaxOrderQty {
		return errors.New(errors.CodeValidation, "quantity above product maximum").WithDetails(details)
	}
	return nil
}

// clampCoins caps the requested coin spend at the user's balance and at
// whatever keeps the payable amount above the gateway minimum.
func (s *service) clampCoins(ctx context.Context, userID uuid.UUID, requested, subtotal int64) (int64, error) {
	if requested == 0 {
		return 0, nil
	}
	balance, err := s.coins.Balance(ctx, userID)
	if err != nil {
		return 0, err
	}

	applied := requested
	if applied > balance {
		applied = balance
	}
	maxSpend := subtotal - s.cfg.MinPayablePaise
	if maxSpend < 0 {
		maxSpend = 0
	}
	if applied > maxSpend {
		applied = maxSpend
	}
	return applied, nil
}

func (s *service) placeOnline(ctx context.Context, input Input, priced []pricedLine, subtotal, coinsApplied, payable int64) (*Result, error) {
	order := buildOrder(input, priced, subtotal, coinsApplied)
	order.Status = enums.OrderStatusPendingPayment

	gwOrder, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderParams{
		AmountPaise: payable,
		Receipt:     order.ID.String(),
		Notes:       map[string]string{"userId": input.UserID.String()},
	})
	if err != nil {
		return nil, err
	}
	order.GatewayOrderID = &gwOrder.ID
	order.Payment = &models.Payment{
		Mode:            enums.PaymentModeOnline,
		Status:          enums.PaymentStatusPending,
		AmountPaise:     payable,
		ProviderOrderID: &gwOrder.ID,
	}

	err = s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.UserID, Role: string(enums.ActorRoleCustomer)},
			Data: map[string]any{
				"orderId":      order.ID,
				"payablePaise": payable,
				"mode":         enums.PaymentModeOnline,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Order:          order,
		GatewayOrderID: gwOrder.ID,
		PayablePaise:   payable,
		Currency:       gwOrder.Currency,
	}, nil
}

// placeCOD confirms immediately: there is no payment step to wait for,
// so the durable stock deduction and the coin debit both happen here.
func (s *service) placeCOD(ctx context.Context, input Input, priced []pricedLine, subtotal, coinsApplied int64, invLines []inventory.Line) (*Result, error) {
	order := buildOrder(input, priced, subtotal, coinsApplied)
	order.Status = enums.OrderStatusConfirmed
	now := time.Now()
	order.ConfirmedAt = &now
	order.CoinsUsedDebited = coinsApplied > 0
	order.Payment = &models.Payment{
		Mode:        enums.PaymentModeCOD,
		Status:      enums.PaymentStatusPending,
		AmountPaise: subtotal - coinsApplied,
	}

	err := s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return err
		}
		if err := s.inventory.WithTx(tx).Deduct(ctx, invLines); err != nil {
			return err
		}
		if coinsApplied > 0 {
			ref := order.ID
			if err := s.coins.WithTx(tx).Debit(ctx, input.UserID, coinsApplied, enums.CoinSourceSpendOrder, &ref, nil); err != nil {
				return err
			}
		}
		var emitErr error
		emitErr = multierr.Append(emitErr, s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.UserID, Role: string(enums.ActorRoleCustomer)},
			Data:          map[string]any{"orderId": order.ID, "mode": enums.PaymentModeCOD},
			Version:       1,
		}))
		emitErr = multierr.Append(emitErr, s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data:          map[string]any{"orderId": order.ID, "mode": enums.PaymentModeCOD},
			Version:       1,
		}))
		return emitErr
	})
	if err != nil {
		return nil, err
	}

	if input.RoomID != nil {
		if err := s.rooms.MarkOrdered(ctx, nil, *input.RoomID, input.UserID, order.ID); err != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "linking room order", err)
		} else if _, err := s.rooms.CheckUnlockStatus(ctx, *input.RoomID); err != nil {
			s.logg.Error(s.logg.WithRoomID(ctx, input.RoomID.String()), "evaluating room unlock", err)
		}
	}

	return &Result{
		Order:        order,
		PayablePaise: subtotal - coinsApplied,
		Currency:     "INR",
	}, nil
}

func buildOrder(input Input, priced []pricedLine, subtotal, coinsApplied int64) *models.Order {
	items := make([]models.OrderLineItem, 0, len(priced))
	for _, p := range priced {
		name := p.product.Name
		if p.variant != nil {
			name = fmt.Sprintf("%s (%s)", p.product.Name, p.variant.Name)
		}
		items = append(items, models.OrderLineItem{
			ProductID:      p.input.ProductID,
			VariantID:      p.input.VariantID,
			VendorID:       p.product.VendorID,
			Name:           name,
			Qty:            p.input.Qty,
			UnitPricePaise: p.unit,
			TotalPaise:     p.total,
			MinOrderQty:    p.product.MinOrderQty,
			StepSize:       p.product.StepSize,
			MaxOrderQty:    p.product.MaxOrderQty,
		})
	}
	return &models.Order{
		ID:                  uuid.New(),
		UserID:              input.UserID,
		SubtotalPaise:       subtotal,
		CoinsUsedPaise:      coinsApplied,
		TotalPaise:          subtotal - coinsApplied,
		RoomID:              input.RoomID,
		AbandonedCheckoutID: input.AbandonedCheckoutID,
		Items:               items,
	}
}
