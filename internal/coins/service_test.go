package coins

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/db/models"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
	pkgerrors "github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:coins_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.CoinLedgerEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(db, NewRepository(db), logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedUser(t *testing.T, db *gorm.DB, balance int64) *models.User {
	t.Helper()
	user := &models.User{Name: "Asha", CoinBalancePaise: balance}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestCreditUpdatesBalanceAndJournal(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	user := seedUser(t, db, 100)
	ref := uuid.New()
	if err := svc.Credit(ctx, user.ID, 50, enums.CoinSourceReferral, &ref, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}

	balance, err := svc.Balance(ctx, user.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 150 {
		t.Fatalf("expected balance 150, got %d", balance)
	}

	entries, err := svc.History(ctx, user.ID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 || entries[0].AmountPaise != 50 {
		t.Fatalf("unexpected journal: %+v", entries)
	}
}

func TestDebitInsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	user := seedUser(t, db, 30)
	ref := uuid.New()
	err := svc.Debit(ctx, user.ID, 40, enums.CoinSourceSpendOrder, &ref, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeBalanceConflict {
		t.Fatalf("expected balance conflict, got %v", err)
	}

	balance, _ := svc.Balance(ctx, user.ID)
	if balance != 30 {
		t.Fatalf("expected balance untouched at 30, got %d", balance)
	}
	entries, _ := svc.History(ctx, user.ID, 10)
	if len(entries) != 0 {
		t.Fatalf("expected no journal rows on failed debit, got %d", len(entries))
	}
}

func TestDebitReplayAbsorbed(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	user := seedUser(t, db, 100)
	ref := uuid.New()
	if err := svc.Debit(ctx, user.ID, 40, enums.CoinSourceSpendOrder, &ref, nil); err != nil {
		t.Fatalf("first debit: %v", err)
	}
	if err := svc.Debit(ctx, user.ID, 40, enums.CoinSourceSpendOrder, &ref, nil); err != nil {
		t.Fatalf("replayed debit: %v", err)
	}

	balance, _ := svc.Balance(ctx, user.ID)
	if balance != 60 {
		t.Fatalf("expected single debit leaving 60, got %d", balance)
	}
	entries, _ := svc.History(ctx, user.ID, 10)
	if len(entries) != 1 {
		t.Fatalf("expected one journal row, got %d", len(entries))
	}
}

func TestCreditReplayAbsorbed(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	user := seedUser(t, db, 0)
	ref := uuid.New()
	for i := 0; i < 3; i++ {
		if err := svc.Credit(ctx, user.ID, 50, enums.CoinSourceReferral, &ref, nil); err != nil {
			t.Fatalf("credit %d: %v", i, err)
		}
	}

	balance, _ := svc.Balance(ctx, user.ID)
	if balance != 50 {
		t.Fatalf("expected single credit of 50, got %d", balance)
	}
}

func TestZeroAmountRejected(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	user := seedUser(t, db, 10)
	err := svc.Credit(ctx, user.ID, 0, enums.CoinSourcePromotion, nil, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	err = svc.Debit(ctx, user.ID, -5, enums.CoinSourceSpendOrder, nil, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
