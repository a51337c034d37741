package inventory

import (
	"context"
	stdErrors "errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/db/models"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
)

// Repository is the durable stock surface. Stock never goes negative;
// guarded updates report how many rows they touched so callers can tell
// a lost race from success.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)

	DeductProductStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	DeductVariantStock(ctx context.Context, variantID uuid.UUID, qty int) (bool, error)
	RestoreProductStock(ctx context.Context, productID uuid.UUID, qty int) error
	RestoreVariantStock(ctx context.Context, variantID uuid.UUID, qty int) error
	SyncProductStock(ctx context.Context, productID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants").
		First(&product, "id = ?", id).Error
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) GetProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Where("id IN ?", ids).
		Find(&products).Error
	return products, err
}

func (r *repository) DeductProductStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DeductVariantStock(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND stock >= ?", variantID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) RestoreProductStock(ctx context.Context, productID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty)).Error
}

func (r *repository) RestoreVariantStock(ctx context.Context, variantID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty)).Error
}

// SyncProductStock re-derives the aggregate product stock from its
// variants after a variant-level mutation.
func (r *repository) SyncProductStock(ctx context.Context, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr(
			"(SELECT COALESCE(SUM(stock), 0) FROM product_variants WHERE product_id = ?)", productID,
		)).Error
}
