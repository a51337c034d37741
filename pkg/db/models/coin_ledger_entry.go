package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
)

// CoinLedgerEntry is one immutable row of the coin journal. Credits are
// positive, debits negative. The (user, source, reference) uniqueness is
// what makes settlement per order idempotent.
type CoinLedgerEntry struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index;uniqueIndex:ux_coin_ledger_user_source_ref"`
	AmountPaise int64            `gorm:"column:amount_paise;not null"`
	Source      enums.CoinSource `gorm:"column:source;not null;uniqueIndex:ux_coin_ledger_user_source_ref"`
	ReferenceID *uuid.UUID       `gorm:"column:reference_id;type:uuid;uniqueIndex:ux_coin_ledger_user_source_ref"`
	ExpiresAt   *time.Time       `gorm:"column:expires_at"`
	Note        *string          `gorm:"column:note"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (e *CoinLedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
