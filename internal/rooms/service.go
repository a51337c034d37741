package rooms

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/db"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/db/models"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/metrics"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/outbox"
)

const memberUniqueIndex = "ux_room_members_room_user"

// ProgressView is the read model behind the room progress endpoint.
// Monetary fields carry both the paise amount and a rupee display string.
type ProgressView struct {
	RoomID           uuid.UUID        `json:"roomId"`
	Status           enums.RoomStatus `json:"status"`
	MemberCount      int              `json:"memberCount"`
	Capacity         int              `json:"capacity"`
	QualifyingOrders int              `json:"qualifyingOrders"`
	RequiredOrders   int              `json:"requiredOrders"`
	TotalValuePaise  int64            `json:"totalValuePaise"`
	TotalValue       string           `json:"totalValue"`
	RequiredValue    string           `json:"requiredValue"`
	ExpiresAt        time.Time        `json:"expiresAt"`
	UnlockedAt       *time.Time       `json:"unlockedAt,omitempty"`
}

type Service interface {
	Get(ctx context.Context, roomID uuid.UUID) (*models.Room, error)
	Join(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomMember, error)
	MarkOrdered(ctx context.Context, tx *gorm.DB, roomID, userID, orderID uuid.UUID) error
	LinkOrder(ctx context.Context, roomID, userID, orderID uuid.UUID) (bool, error)
	CheckUnlockStatus(ctx context.Context, roomID uuid.UUID) (bool, error)
	ForceUnlock(ctx context.Context, roomID uuid.UUID, actorRole enums.ActorRole) error
	ExpireDue(ctx context.Context, limit int) (int, error)
	GetProgress(ctx context.Context, roomID uuid.UUID) (*ProgressView, error)
}

type service struct {
	conn    *gorm.DB
	repo    Repository
	hub     Broadcaster
	outbox  *outbox.Service
	metrics *metrics.CoreMetrics
	logg    *logger.Logger
}

func NewService(conn *gorm.DB, repo Repository, hub Broadcaster, ob *outbox.Service, m *metrics.CoreMetrics, logg *logger.Logger) (Service, error) {
	if conn == nil {
		return nil, fmt.Errorf("db connection is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("rooms repository is required")
	}
	if hub == nil {
		return nil, fmt.Errorf("broadcaster is required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{conn: conn, repo: repo, hub: hub, outbox: ob, metrics: m, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	return s.repo.Get(ctx, roomID)
}

// Join is idempotent: rejoining returns the existing membership
// untouched. New members only fit while the room is ACTIVE and under
// capacity.
func (s *service) Join(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomMember, error) {
	room, err := s.repo.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if !room.Status.AcceptsMembers() {
		return nil, errors.New(errors.CodeStateConflict, "room is not accepting members").
			WithDetails(map[string]any{"status": room.Status})
	}
	if !room.ExpiresAt.IsZero() && time.Now().After(room.ExpiresAt) {
		return nil, errors.New(errors.CodeStateConflict, "room has expired")
	}

	count, err := s.repo.CountMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if count >= int64(room.Capacity) {
		return nil, errors.New(errors.CodeConflict, "room is full").
			WithDetails(map[string]any{"capacity": room.Capacity})
	}

	member := &models.RoomMember{
		RoomID: roomID,
		UserID: userID,
		Status: enums.RoomMemberStatusPending,
	}
	if err := s.repo.InsertMember(ctx, member); err != nil {
		if db.IsUniqueViolation(err, memberUniqueIndex) {
			return s.repo.GetMember(ctx, roomID, userID)
		}
		return nil, err
	}

	s.hub.Broadcast(ctx, roomID, Event{
		Type:    "room.member_joined",
		Payload: map[string]any{"userId": userID, "memberCount": count + 1},
	})
	return member, nil
}

// MarkOrdered ties a member to their placed order so the unlock
// evaluation can count it. Runs inside the caller's transaction when one
// is supplied.
func (s *service) MarkOrdered(ctx context.Context, tx *gorm.DB, roomID, userID, orderID uuid.UUID) error {
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	member, err := repo.GetMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return errors.New(errors.CodeValidation, "user is not a room member").
			WithDetails(map[string]any{"roomId": roomID, "userId": userID})
	}
	return repo.SetMemberOrdered(ctx, roomID, userID, orderID)
}

// LinkOrder ties an order the member already placed to the room, then
// re-evaluates the unlock thresholds. The order must belong to the
// caller and must not be claimed by any room yet.
func (s *service) LinkOrder(ctx context.Context, roomID, userID, orderID uuid.UUID) (bool, error) {
	if _, err := s.repo.Get(ctx, roomID); err != nil {
		return false, err
	}
	member, err := s.repo.GetMember(ctx, roomID, userID)
	if err != nil {
		return false, err
	}
	if member == nil {
		return false, errors.New(errors.CodeValidation, "user is not a room member").
			WithDetails(map[string]any{"roomId": roomID, "userId": userID})
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order.UserID != userID {
		return false, errors.New(errors.CodeForbidden, "order belongs to another user")
	}
	if order.RoomID != nil {
		return false, errors.New(errors.CodeConflict, "order is already linked to a room").
			WithDetails(map[string]any{"roomId": order.RoomID})
	}

	err = s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		linked, err := repo.AttachOrder(ctx, orderID, roomID)
		if err != nil {
			return err
		}
		if !linked {
			return errors.New(errors.CodeConflict, "order is already linked to a room")
		}
		return repo.SetMemberOrdered(ctx, roomID, userID, orderID)
	})
	if err != nil {
		return false, err
	}
	return s.CheckUnlockStatus(ctx, roomID)
}

// CheckUnlockStatus re-evaluates the unlock thresholds. The transition
// is monotonic: once a room unlocks, later evaluations are no-ops, and
// the unlock broadcast fires exactly once (the guarded status move picks
// the single winner among concurrent confirmations).
func (s *service) CheckUnlockStatus(ctx context.Context, roomID uuid.UUID) (bool, error) {
	room, err := s.repo.Get(ctx, roomID)
	if err != nil {
		return false, err
	}
	if room.Status == enums.RoomStatusUnlocked {
		return true, nil
	}
	if room.Status != enums.RoomStatusActive {
		return false, nil
	}

	progress, err := s.repo.Progress(ctx, roomID)
	if err != nil {
		return false, err
	}
	if progress.QualifyingOrders < room.UnlockMinOrders || progress.TotalValuePaise < room.UnlockMinValuePaise {
		// Members watching the room see every step toward the thresholds.
		s.hub.Broadcast(ctx, roomID, Event{
			Type: "room.progress",
			Payload: map[string]any{
				"qualifyingOrders":   progress.QualifyingOrders,
				"requiredOrders":     room.UnlockMinOrders,
				"totalValuePaise":    progress.TotalValuePaise,
				"totalValue":         rupees(progress.TotalValuePaise),
				"requiredValuePaise": room.UnlockMinValuePaise,
				"requiredValue":      rupees(room.UnlockMinValuePaise),
			},
		})
		return false, nil
	}

	now := time.Now()
	var moved bool
	err = s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err = repo.MoveStatus(ctx, roomID, enums.RoomStatusActive, enums.RoomStatusUnlocked, map[string]any{
			"unlocked_at": now,
		})
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRoomUnlocked,
			AggregateType: enums.AggregateRoom,
			AggregateID:   roomID,
			Data: map[string]any{
				"roomId":           roomID,
				"qualifyingOrders": progress.QualifyingOrders,
				"totalValuePaise":  progress.TotalValuePaise,
			},
			Version: 1,
		})
	})
	if err != nil {
		return false, err
	}
	if !moved {
		// Lost the race to another confirmation; the room is unlocked
		// either way.
		return true, nil
	}

	s.metrics.IncRoomUnlock()
	s.hub.Broadcast(ctx, roomID, Event{
		Type: "room.unlocked",
		Payload: map[string]any{
			"qualifyingOrders": progress.QualifyingOrders,
			"totalValuePaise":  progress.TotalValuePaise,
			"unlockedAt":       now,
		},
	})
	s.logg.Info(s.logg.WithRoomID(ctx, roomID.String()), "room unlocked")
	return true, nil
}

// ForceUnlock lets an admin open a room regardless of thresholds.
func (s *service) ForceUnlock(ctx context.Context, roomID uuid.UUID, actorRole enums.ActorRole) error {
	if !actorRole.IsAdmin() {
		return errors.New(errors.CodeForbidden, "only admins may force unlock")
	}
	room, err := s.repo.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Status == enums.RoomStatusUnlocked {
		return nil
	}

	now := time.Now()
	var moved bool
	err = s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err = repo.MoveStatus(ctx, roomID, room.Status, enums.RoomStatusUnlocked, map[string]any{
			"unlocked_at": now,
		})
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRoomUnlocked,
			AggregateType: enums.AggregateRoom,
			AggregateID:   roomID,
			Data:          map[string]any{"roomId": roomID, "forced": true},
			Version:       1,
		})
	})
	if err != nil {
		return err
	}
	if moved {
		s.metrics.IncRoomUnlock()
		s.hub.Broadcast(ctx, roomID, Event{Type: "room.unlocked", Payload: map[string]any{"forced": true}})
	}
	return nil
}

// ExpireDue sweeps ACTIVE rooms whose deadline passed. Meant to run on a
// schedule.
func (s *service) ExpireDue(ctx context.Context, limit int) (int, error) {
	due, err := s.repo.ListExpired(ctx, time.Now(), limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, room := range due {
		err := s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			moved, err := repo.MoveStatus(ctx, room.ID, enums.RoomStatusActive, enums.RoomStatusExpired, nil)
			if err != nil {
				return err
			}
			if !moved {
				return nil
			}
			expired++
			return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventRoomExpired,
				AggregateType: enums.AggregateRoom,
				AggregateID:   room.ID,
				Data:          map[string]any{"roomId": room.ID},
				Version:       1,
			})
		})
		if err != nil {
			s.logg.Error(s.logg.WithRoomID(ctx, room.ID.String()), "expiring room", err)
			continue
		}
		s.hub.Broadcast(ctx, room.ID, Event{Type: "room.expired"})
	}
	return expired, nil
}

func (s *service) GetProgress(ctx context.Context, roomID uuid.UUID) (*ProgressView, error) {
	room, err := s.repo.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	progress, err := s.repo.Progress(ctx, roomID)
	if err != nil {
		return nil, err
	}

	return &ProgressView{
		RoomID:           room.ID,
		Status:           room.Status,
		MemberCount:      progress.MemberCount,
		Capacity:         room.Capacity,
		QualifyingOrders: progress.QualifyingOrders,
		RequiredOrders:   room.UnlockMinOrders,
		TotalValuePaise:  progress.TotalValuePaise,
		TotalValue:       rupees(progress.TotalValuePaise),
		RequiredValue:    rupees(room.UnlockMinValuePaise),
		ExpiresAt:        room.ExpiresAt,
		UnlockedAt:       room.UnlockedAt,
	}, nil
}

func rupees(paise int64) string {
	return decimal.NewFromInt(paise).Shift(-2).StringFixed(2)
}
