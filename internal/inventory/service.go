package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/metrics"
)

// Line is one (product, optional variant, qty) slice of a cart.
type Line struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Qty       int
}

func (l Line) variantKey() string {
	if l.VariantID == nil {
		return ""
	}
	return l.VariantID.String()
}

// Availability is the sellable view of one product or variant: durable
// stock minus live holds, floored at zero.
type Availability struct {
	ProductID uuid.UUID  `json:"productId"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Stock     int        `json:"stock"`
	Reserved  int64      `json:"reserved"`
	Available int64      `json:"available"`
	LowStock  bool       `json:"lowStock"`
}

type Service interface {
	WithTx(tx *gorm.DB) Service

	GetAvailability(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*Availability, error)
	Reserve(ctx context.Context, lines []Line) error
	Release(ctx context.Context, lines []Line) error
	Deduct(ctx context.Context, lines []Line) error
	Restore(ctx context.Context, lines []Line) error
}

type service struct {
	repo    Repository
	holds   HoldStore
	holdTTL time.Duration
	logg    *logger.Logger
	metrics *metrics.CoreMetrics
}

func NewService(repo Repository, holds HoldStore, holdTTL time.Duration, logg *logger.Logger, m *metrics.CoreMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository is required")
	}
	if holds == nil {
		return nil, fmt.Errorf("hold store is required")
	}
	if holdTTL <= 0 {
		return nil, fmt.Errorf("hold ttl must be positive")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{repo: repo, holds: holds, holdTTL: holdTTL, logg: logg, metrics: m}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	clone := *s
	clone.repo = s.repo.WithTx(tx)
	return &clone
}

func (s *service) GetAvailability(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*Availability, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	stock := product.Stock
	variantKey := ""
	if variantID != nil {
		variant := product.Variant(*variantID)
		if variant == nil {
			return nil, errors.New(errors.CodeNotFound, "product variant not found")
		}
		stock = variant.Stock
		variantKey = variantID.String()
	}

	reserved, err := s.holds.Reserved(ctx, productID.String(), variantKey)
	if err != nil {
		return nil, err
	}

	available := int64(stock) - reserved
	if available < 0 {
		available = 0
	}

	return &Availability{
		ProductID: productID,
		VariantID: variantID,
		Stock:     stock,
		Reserved:  reserved,
		Available: available,
		LowStock:  available <= int64(product.LowStockAt),
	}, nil
}

// Reserve takes expiring holds for every line, all-or-nothing. The
// increment-then-recheck keeps concurrent reservations from jointly
// overshooting durable stock: whoever pushes the counter past stock rolls
// back their own delta and loses.
func (s *service) Reserve(ctx context.Context, lines []Line) error {
	reserved := make([]Line, 0, len(lines))
	for _, line := range lines {
		if err := s.reserveLine(ctx, line); err != nil {
			if relErr := s.Release(ctx, reserved); relErr != nil {
				s.logg.Error(ctx, "rolling back partial reservation", relErr)
			}
			s.metrics.IncReservation("conflict")
			return err
		}
		reserved = append(reserved, line)
	}
	s.metrics.IncReservation("success")
	return nil
}

func (s *service) reserveLine(ctx context.Context, line Line) error {
	product, err := s.repo.GetProduct(ctx, line.ProductID)
	if err != nil {
		return err
	}

	stock := product.Stock
	if line.VariantID != nil {
		variant := product.Variant(*line.VariantID)
		if variant == nil {
			return errors.New(errors.CodeNotFound, "product variant not found")
		}
		stock = variant.Stock
	}

	total, err := s.holds.Add(ctx, line.ProductID.String(), line.variantKey(), int64(line.Qty), s.holdTTL)
	if err != nil {
		return errors.Wrap(errors.CodeDependency, err, "taking reservation hold")
	}
	if total > int64(stock) {
		if _, subErr := s.holds.Sub(ctx, line.ProductID.String(), line.variantKey(), int64(line.Qty)); subErr != nil {
			s.logg.Error(ctx, "releasing overshooting hold", subErr)
		}
		return errors.New(errors.CodeStockConflict, "insufficient stock").
			WithDetails(map[string]any{
				"productId": line.ProductID,
				"variantId": line.VariantID,
				"requested": line.Qty,
				"available": maxInt64(int64(stock)-(total-int64(line.Qty)), 0),
			})
	}
	return nil
}

// Release gives back held units. Safe to call with holds that already
// expired; counters never go below zero.
func (s *service) Release(ctx context.Context, lines []Line) error {
	for _, line := range lines {
		if _, err := s.holds.Sub(ctx, line.ProductID.String(), line.variantKey(), int64(line.Qty)); err != nil {
			return errors.Wrap(errors.CodeDependency, err, "releasing reservation hold")
		}
	}
	return nil
}

// Deduct moves held units into a durable stock decrement, then drops the
// hold. Variant lines also resync the aggregate product counter.
func (s *service) Deduct(ctx context.Context, lines []Line) error {
	for _, line := range lines {
		if line.VariantID != nil {
			ok, err := s.repo.DeductVariantStock(ctx, *line.VariantID, line.Qty)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New(errors.CodeStockConflict, "variant stock below deduction").
					WithDetails(map[string]any{"productId": line.ProductID, "variantId": line.VariantID})
			}
			if err := s.repo.SyncProductStock(ctx, line.ProductID); err != nil {
				return err
			}
		} else {
			ok, err := s.repo.DeductProductStock(ctx, line.ProductID, line.Qty)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New(errors.CodeStockConflict, "product stock below deduction").
					WithDetails(map[string]any{"productId": line.ProductID})
			}
		}
		if _, err := s.holds.Sub(ctx, line.ProductID.String(), line.variantKey(), int64(line.Qty)); err != nil {
			s.logg.Error(ctx, "dropping hold after deduction", err)
		}
	}
	return nil
}

// Restore adds durable stock back, for cancellations of orders whose
// stock was already deducted.
func (s *service) Restore(ctx context.Context, lines []Line) error {
	for _, line := range lines {
		if line.VariantID != nil {
			if err := s.repo.RestoreVariantStock(ctx, *line.VariantID, line.Qty); err != nil {
				return err
			}
			if err := s.repo.SyncProductStock(ctx, line.ProductID); err != nil {
				return err
			}
			continue
		}
		if err := s.repo.RestoreProductStock(ctx, line.ProductID, line.Qty); err != nil {
			return err
		}
	}
	return nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
