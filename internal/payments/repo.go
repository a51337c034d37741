package payments

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/db/models"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ConvertAbandonedCheckout(ctx context.Context, id uuid.UUID) (bool, error)
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

func (r *repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ConvertAbandonedCheckout flips OPEN -> CONVERTED once; replays report
// false without touching the row again.
func (r *repository) ConvertAbandonedCheckout(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.AbandonedCheckout{}).
		Where("id = ? AND status = ?", id, enums.AbandonedCheckoutStatusOpen).
		Updates(map[string]any{
			"status":       enums.AbandonedCheckoutStatusConverted,
			"converted_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
