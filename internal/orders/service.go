package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/Vijayapardhu/risbow-backend-sub000/internal/coins"
	"github.com/Vijayapardhu/risbow-backend-sub000/internal/inventory"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/db/models"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/outbox"
)

// Actor is the authenticated principal acting on an order.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

type Service interface {
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	ListMine(ctx context.Context, actor Actor, limit int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, actor Actor) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason *string) (*models.Order, error)
}

type service struct {
	conn      *gorm.DB
	repo      Repository
	inventory inventory.Service
	coins     coins.Service
	outbox    *outbox.Service
	logg      *logger.Logger
}

func NewService(conn *gorm.DB, repo Repository, inv inventory.Service, coinSvc coins.Service, ob *outbox.Service, logg *logger.Logger) (Service, error) {
	if conn == nil {
		return nil, fmt.Errorf("db connection is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository is required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service is required")
	}
	if coinSvc == nil {
		return nil, fmt.Errorf("coins service is required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{conn: conn, repo: repo, inventory: inv, coins: coinSvc, outbox: ob, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsAdmin() && order.UserID != actor.UserID && !vendorOwnsAllLines(order, actor.UserID) {
		return nil, errors.New(errors.CodeForbidden, "not your order")
	}
	return order, nil
}

func (s *service) ListMine(ctx context.Context, actor Actor, limit int) ([]models.Order, error) {
	return s.repo.ListByUser(ctx, actor.UserID, limit)
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, actor Actor) (*models.Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if actor.Role == enums.ActorRoleVendor && !vendorOwnsAllLines(order, actor.UserID) {
		return nil, errors.New(errors.CodeForbidden, "order contains other vendors' items")
	}
	if err := ValidateTransition(order.PaymentMode(), order.Status, to, actor.Role); err != nil {
		return nil, err
	}

	patch := map[string]any{}
	if to == enums.OrderStatusConfirmed {
		patch["confirmed_at"] = time.Now()
	}

	err = s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err := repo.MoveStatus(ctx, orderID, order.Status, to, patch)
		if err != nil {
			return err
		}
		if !moved {
			return errors.New(errors.CodeStateConflict, "order changed concurrently")
		}
		// COD collects on delivery, so the final hop settles the payment.
		if to == enums.OrderStatusPaid {
			if err := repo.MarkPaymentSettled(ctx, orderID, ""); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": orderID.String(),
		"from":     order.Status,
		"to":       to,
	})
	s.logg.Info(logCtx, "order status moved")

	return s.repo.Get(ctx, orderID)
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason *string) (*models.Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := ValidateCancellation(order.Status, actor.Role, order.UserID == actor.UserID); err != nil {
		return nil, err
	}

	from := order.Status
	lines := linesFromItems(order.Items)

	err = s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		patch := map[string]any{"canceled_at": time.Now()}
		if reason != nil {
			patch["cancel_reason"] = *reason
		}
		moved, err := repo.MoveStatus(ctx, orderID, from, enums.OrderStatusCancelled, patch)
		if err != nil {
			return err
		}
		if !moved {
			return errors.New(errors.CodeStateConflict, "order changed concurrently")
		}

		// Stock is only durably deducted once the order is confirmed;
		// before that the units live in expiring holds.
		if from != enums.OrderStatusPendingPayment {
			if err := s.inventory.WithTx(tx).Restore(ctx, lines); err != nil {
				return err
			}
		}

		if order.CoinsUsedDebited && order.CoinsUsedPaise > 0 {
			ref := order.ID
			if err := s.coins.WithTx(tx).Credit(ctx, order.UserID, order.CoinsUsedPaise, enums.CoinSourceRefund, &ref, nil); err != nil {
				return err
			}
		}

		if err := repo.MarkPaymentFailed(ctx, orderID); err != nil {
			return err
		}

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Data: map[string]any{
				"orderId": order.ID,
				"from":    from,
				"reason":  reason,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	// Held units sit outside the database; give them back best-effort,
	// expiry covers anything this misses.
	var cleanup error
	if from == enums.OrderStatusPendingPayment {
		cleanup = multierr.Append(cleanup, s.inventory.Release(ctx, lines))
	}
	if cleanup != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, orderID.String()), "post-cancel cleanup", cleanup)
	}

	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order cancelled")
	return s.repo.Get(ctx, orderID)
}

func vendorOwnsAllLines(order *models.Order, vendorID uuid.UUID) bool {
	if len(order.Items) == 0 {
		return false
	}
	for _, item := range order.Items {
		if item.VendorID != vendorID {
			return false
		}
	}
	return true
}

func linesFromItems(items []models.OrderLineItem) []inventory.Line {
	lines := make([]inventory.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, inventory.Line{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Qty:       item.Qty,
		})
	}
	return lines
}
