package coins

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/db"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/db/models"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
)

const ledgerUniqueIndex = "ux_coin_ledger_user_source_ref"

// Service is the append-only coin journal plus the cached balance it
// keeps in sync. A (user, source, reference) triple settles at most
// once; replays are absorbed, never double-applied.
type Service interface {
	WithTx(tx *gorm.DB) Service

	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	Credit(ctx context.Context, userID uuid.UUID, amountPaise int64, source enums.CoinSource, referenceID *uuid.UUID, note *string) error
	Debit(ctx context.Context, userID uuid.UUID, amountPaise int64, source enums.CoinSource, referenceID *uuid.UUID, note *string) error
	HasEntry(ctx context.Context, userID uuid.UUID, source enums.CoinSource, referenceID uuid.UUID) (bool, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]models.CoinLedgerEntry, error)
}

type service struct {
	conn *gorm.DB
	repo Repository
	logg *logger.Logger
}

func NewService(conn *gorm.DB, repo Repository, logg *logger.Logger) (Service, error) {
	if conn == nil {
		return nil, fmt.Errorf("db connection is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("coins repository is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{conn: conn, repo: repo, logg: logg}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	clone := *s
	clone.conn = tx
	clone.repo = s.repo.WithTx(tx)
	return &clone
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.CoinBalancePaise, nil
}

func (s *service) Credit(ctx context.Context, userID uuid.UUID, amountPaise int64, source enums.CoinSource, referenceID *uuid.UUID, note *string) error {
	if amountPaise <= 0 {
		return errors.New(errors.CodeValidation, "credit amount must be positive")
	}
	return s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		entry := &models.CoinLedgerEntry{
			UserID:      userID,
			AmountPaise: amountPaise,
			Source:      source,
			ReferenceID: referenceID,
			Note:        note,
		}
		if err := repo.InsertEntry(ctx, entry); err != nil {
			if db.IsUniqueViolation(err, ledgerUniqueIndex) {
				s.logg.Info(s.logg.WithUserID(ctx, userID.String()), "coin credit replay absorbed")
				return nil
			}
			return err
		}
		return repo.AddBalance(ctx, userID, amountPaise)
	})
}

func (s *service) Debit(ctx context.Context, userID uuid.UUID, amountPaise int64, source enums.CoinSource, referenceID *uuid.UUID, note *string) error {
	if amountPaise <= 0 {
		return errors.New(errors.CodeValidation, "debit amount must be positive")
	}
	return s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		entry := &models.CoinLedgerEntry{
			UserID:      userID,
			AmountPaise: -amountPaise,
			Source:      source,
			ReferenceID: referenceID,
			Note:        note,
		}
		if err := repo.InsertEntry(ctx, entry); err != nil {
			if db.IsUniqueViolation(err, ledgerUniqueIndex) {
				s.logg.Info(s.logg.WithUserID(ctx, userID.String()), "coin debit replay absorbed")
				return nil
			}
			return err
		}
		ok, err := repo.DebitBalanceGuarded(ctx, userID, amountPaise)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New(errors.CodeBalanceConflict, "insufficient coin balance").
				WithDetails(map[string]any{"userId": userID, "requested": amountPaise})
		}
		return nil
	})
}

func (s *service) HasEntry(ctx context.Context, userID uuid.UUID, source enums.CoinSource, referenceID uuid.UUID) (bool, error) {
	return s.repo.HasEntry(ctx, userID, source, referenceID)
}

func (s *service) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.CoinLedgerEntry, error) {
	return s.repo.ListEntries(ctx, userID, limit)
}
