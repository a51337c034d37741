package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
)

// Room is a time-boxed group buy that unlocks once enough members place
// qualifying orders of enough total value.
type Room struct {
	ID                   uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name                 string           `gorm:"column:name;not null"`
	Capacity             int              `gorm:"column:capacity;not null"`
	UnlockMinOrders      int              `gorm:"column:unlock_min_orders;not null"`
	UnlockMinValuePaise  int64            `gorm:"column:unlock_min_value_paise;not null"`
	Status               enums.RoomStatus `gorm:"column:status;not null;default:'ACTIVE'"`
	StartsAt             time.Time        `gorm:"column:starts_at"`
	ExpiresAt            time.Time        `gorm:"column:expires_at"`
	UnlockedAt           *time.Time       `gorm:"column:unlocked_at"`
	Members              []RoomMember     `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RoomMember is the (room, user) membership pair. Join is idempotent, so
// the pair is unique.
type RoomMember struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	RoomID    uuid.UUID              `gorm:"column:room_id;type:uuid;not null;uniqueIndex:ux_room_members_room_user"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_room_members_room_user"`
	Status    enums.RoomMemberStatus `gorm:"column:status;not null;default:'PENDING'"`
	OrderID   *uuid.UUID             `gorm:"column:order_id;type:uuid"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *RoomMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
