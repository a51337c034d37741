package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
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
)

// Verifier checks the gateway's signatures, both the per-payment HMAC
// the client handshake carries and the raw-body HMAC on webhooks.
type Verifier interface {
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

// Confirmation is a verified-payment callback, either from the client's
// checkout handshake or from the gateway webhook. Both paths are replays
// of the same fact and must converge on the same outcome.
type Confirmation struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

type Service interface {
	Confirm(ctx context.Context, conf Confirmation) (*models.Order, error)
	ConfirmWebhook(ctx context.Context, body []byte, signature string) (*models.Order, error)
}

type service struct {
	conn      *gorm.DB
	orders    orders.Repository
	repo      Repository
	coins     coins.Service
	inventory inventory.Service
	rooms     rooms.Service
	outbox    *outbox.Service
	verifier  Verifier
	coinsCfg  config.CoinsConfig
	metrics   *metrics.CoreMetrics
	logg      *logger.Logger
}

func NewService(
	conn *gorm.DB,
	orderRepo orders.Repository,
	repo Repository,
	coinSvc coins.Service,
	inv inventory.Service,
	roomSvc rooms.Service,
	ob *outbox.Service,
	verifier Verifier,
	coinsCfg config.CoinsConfig,
	m *metrics.CoreMetrics,
	logg *logger.Logger,
) (Service, error) {
	if conn == nil {
		return nil, fmt.Errorf("db connection is required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payments repository is required")
	}
	if coinSvc == nil {
		return nil, fmt.Errorf("coins service is required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service is required")
	}
	if roomSvc == nil {
		return nil, fmt.Errorf("rooms service is required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("signature verifier is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		conn:      conn,
		orders:    orderRepo,
		repo:      repo,
		coins:     coinSvc,
		inventory: inv,
		rooms:     roomSvc,
		outbox:    ob,
		verifier:  verifier,
		coinsCfg:  coinsCfg,
		metrics:   m,
		logg:      logg,
	}, nil
}

// Confirm settles a paid order exactly once. A bad signature fails hard
// before any state is read; replays of an already-confirmed order return
// it unchanged.
func (s *service) Confirm(ctx context.Context, conf Confirmation) (*models.Order, error) {
	if !s.verifier.VerifyPaymentSignature(conf.GatewayOrderID, conf.GatewayPaymentID, conf.Signature) {
		s.metrics.IncConfirmation("bad_signature")
		return nil, errors.New(errors.CodeUnauthorized, "payment signature mismatch")
	}
	return s.settle(ctx, conf.GatewayOrderID, conf.GatewayPaymentID)
}

// webhookEvent is the slice of the gateway webhook payload settlement
// needs.
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ConfirmWebhook settles from the gateway's server-to-server callback.
// The raw body is authenticated as a whole; only capture events settle,
// everything else is acknowledged and dropped.
func (s *service) ConfirmWebhook(ctx context.Context, body []byte, signature string) (*models.Order, error) {
	if !s.verifier.VerifyWebhookSignature(body, signature) {
		s.metrics.IncConfirmation("bad_signature")
		return nil, errors.New(errors.CodeUnauthorized, "webhook signature mismatch")
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "malformed webhook payload")
	}
	if event.Event != "payment.captured" {
		s.logg.Info(s.logg.WithField(ctx, "webhook_event", event.Event), "webhook event ignored")
		return nil, nil
	}
	entity := event.Payload.Payment.Entity
	if entity.OrderID == "" || entity.ID == "" {
		return nil, errors.New(errors.CodeValidation, "webhook payload missing payment identifiers")
	}
	return s.settle(ctx, entity.OrderID, entity.ID)
}

func (s *service) settle(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (*models.Order, error) {
	order, err := s.orders.GetByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		s.metrics.IncConfirmation("not_found")
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	switch order.Status {
	case enums.OrderStatusPendingPayment:
		// fall through to settlement
	case enums.OrderStatusCancelled:
		s.metrics.IncConfirmation("cancelled")
		return nil, errors.New(errors.CodeStateConflict, "payment arrived for a cancelled order").
			WithDetails(map[string]any{"orderId": order.ID})
	default:
		s.metrics.IncConfirmation("replay")
		s.logg.Info(ctx, "payment confirmation replay absorbed")
		return order, nil
	}

	now := time.Now()
	var moved bool
	err = s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)

		moved, err = orderRepo.MoveStatus(ctx, order.ID, enums.OrderStatusPendingPayment, enums.OrderStatusConfirmed, map[string]any{
			"confirmed_at": now,
		})
		if err != nil {
			return err
		}
		if !moved {
			// A concurrent confirmation won; nothing left to settle.
			return nil
		}

		if err := orderRepo.MarkPaymentSettled(ctx, order.ID, gatewayPaymentID); err != nil {
			return err
		}

		if order.CoinsUsedPaise > 0 && !order.CoinsUsedDebited {
			ref := order.ID
			if err := s.coins.WithTx(tx).Debit(ctx, order.UserID, order.CoinsUsedPaise, enums.CoinSourceSpendOrder, &ref, nil); err != nil {
				return err
			}
			if err := orderRepo.SetCoinsDebited(ctx, order.ID); err != nil {
				return err
			}
		}

		if order.AbandonedCheckoutID != nil {
			converted, err := s.repo.WithTx(tx).ConvertAbandonedCheckout(ctx, *order.AbandonedCheckoutID)
			if err != nil {
				return err
			}
			if converted {
				if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventCheckoutConverted,
					AggregateType: enums.AggregateOrder,
					AggregateID:   order.ID,
					Data: map[string]any{
						"orderId":             order.ID,
						"abandonedCheckoutId": order.AbandonedCheckoutID,
					},
					Version: 1,
				}); err != nil {
					return err
				}
			}
		}

		if err := s.settleReferral(ctx, tx, order.UserID); err != nil {
			return err
		}

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: map[string]any{
				"orderId":          order.ID,
				"gatewayPaymentId": gatewayPaymentID,
			},
			Version: 1,
		})
	})
	if err != nil {
		s.metrics.IncConfirmation("error")
		return nil, err
	}
	if !moved {
		// The winning confirmation owns the deduction and room linkage;
		// the loser just reports the settled order.
		s.metrics.IncConfirmation("replay")
		s.logg.Info(ctx, "payment confirmation replay absorbed")
		return s.orders.Get(ctx, order.ID)
	}

	// Stock moves from hold to durable deduction after the payment is
	// settled. The payment always wins: a line that cannot be deducted is
	// logged and left for reconciliation, never bounced back to the payer.
	for _, item := range order.Items {
		line := inventory.Line{ProductID: item.ProductID, VariantID: item.VariantID, Qty: item.Qty}
		if err := s.inventory.Deduct(ctx, []inventory.Line{line}); err != nil {
			lineCtx := s.logg.WithFields(ctx, map[string]any{
				"product_id": item.ProductID.String(),
				"qty":        item.Qty,
			})
			s.logg.Error(lineCtx, "post-payment stock deduction failed", err)
		}
	}

	if order.RoomID != nil {
		if err := s.rooms.MarkOrdered(ctx, nil, *order.RoomID, order.UserID, order.ID); err != nil {
			s.logg.Error(ctx, "linking room order", err)
		} else if _, err := s.rooms.CheckUnlockStatus(ctx, *order.RoomID); err != nil {
			s.logg.Error(s.logg.WithRoomID(ctx, order.RoomID.String()), "evaluating room unlock", err)
		}
	}

	s.metrics.IncConfirmation("success")
	s.logg.Info(ctx, "payment confirmed")
	return s.orders.Get(ctx, order.ID)
}

// settleReferral pays the referral reward the first time a referred user
// confirms a paid order. Both sides of the referral get the reward; the
// ledger's uniqueness on (user, source, reference) makes retries free.
func (s *service) settleReferral(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	if s.coinsCfg.ReferralRewardPaise <= 0 {
		return nil
	}
	user, err := s.repo.WithTx(tx).GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.ReferredByUserID == nil {
		return nil
	}

	coinSvc := s.coins.WithTx(tx)
	ref := user.ID
	if err := coinSvc.Credit(ctx, *user.ReferredByUserID, s.coinsCfg.ReferralRewardPaise, enums.CoinSourceReferral, &ref, nil); err != nil {
		return err
	}
	if err := coinSvc.Credit(ctx, user.ID, s.coinsCfg.ReferralRewardPaise, enums.CoinSourceReferral, &ref, nil); err != nil {
		return err
	}

	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCoinsSettled,
		AggregateType: enums.AggregateUser,
		AggregateID:   user.ID,
		Data: map[string]any{
			"userId":      user.ID,
			"referrerId":  user.ReferredByUserID,
			"rewardPaise": s.coinsCfg.ReferralRewardPaise,
		},
		Version: 1,
	})
}
