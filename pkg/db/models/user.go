package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User carries the spendable coin balance and referral linkage the core
// needs. Profile editing and auth live outside this service.
type User struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Name             string     `gorm:"column:name;not null"`
	Phone            *string    `gorm:"column:phone"`
	CoinBalancePaise int64      `gorm:"column:coin_balance_paise;not null;default:0"`
	ReferredByUserID *uuid.UUID `gorm:"column:referred_by_user_id;type:uuid"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
