package coins

import (
	"context"
	stdErrors "errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/db/models"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	InsertEntry(ctx context.Context, entry *models.CoinLedgerEntry) error
	HasEntry(ctx context.Context, userID uuid.UUID, source enums.CoinSource, referenceID uuid.UUID) (bool, error)
	AddBalance(ctx context.Context, userID uuid.UUID, delta int64) error
	DebitBalanceGuarded(ctx context.Context, userID uuid.UUID, amount int64) (bool, error)
	ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.CoinLedgerEntry, error)
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

func (r *repository) InsertEntry(ctx context.Context, entry *models.CoinLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) HasEntry(ctx context.Context, userID uuid.UUID, source enums.CoinSource, referenceID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CoinLedgerEntry{}).
		Where("user_id = ? AND source = ? AND reference_id = ?", userID, source, referenceID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) AddBalance(ctx context.Context, userID uuid.UUID, delta int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("coin_balance_paise", gorm.Expr("coin_balance_paise + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New(errors.CodeNotFound, "user not found")
	}
	return nil
}

func (r *repository) DebitBalanceGuarded(ctx context.Context, userID uuid.UUID, amount int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND coin_balance_paise >= ?", userID, amount).
		UpdateColumn("coin_balance_paise", gorm.Expr("coin_balance_paise - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.CoinLedgerEntry, error) {
	var entries []models.CoinLedgerEntry
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&entries).Error
	return entries, err
}
