package rooms

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

// Progress is the aggregate the unlock evaluation runs on: members whose
// orders count, and the value those orders carry.
type Progress struct {
	QualifyingOrders int
	TotalValuePaise  int64
	MemberCount      int
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Get(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetMember(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomMember, error)
	InsertMember(ctx context.Context, member *models.RoomMember) error
	CountMembers(ctx context.Context, roomID uuid.UUID) (int64, error)
	SetMemberOrdered(ctx context.Context, roomID, userID, orderID uuid.UUID) error

	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	AttachOrder(ctx context.Context, orderID, roomID uuid.UUID) (bool, error)

	Progress(ctx context.Context, roomID uuid.UUID) (*Progress, error)
	MoveStatus(ctx context.Context, id uuid.UUID, from, to enums.RoomStatus, patch map[string]any) (bool, error)
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.Room, error)
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

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).
		Preload("Members").
		First(&room, "id = ?", id).Error
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.CodeNotFound, "room not found")
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *repository) GetMember(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomMember, error) {
	var member models.RoomMember
	err := r.db.WithContext(ctx).
		First(&member, "room_id = ? AND user_id = ?", roomID, userID).Error
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) InsertMember(ctx context.Context, member *models.RoomMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *repository) CountMembers(ctx context.Context, roomID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RoomMember{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	return count, err
}

func (r *repository) SetMemberOrdered(ctx context.Context, roomID, userID, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]any{
			"status":   enums.RoomMemberStatusOrdered,
			"order_id": orderID,
		}).Error
}

func (r *repository) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).First(&order, "id = ?", orderID).Error
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// AttachOrder claims an unlinked order for the room. The room_id guard
// makes the claim first-writer-wins.
func (r *repository) AttachOrder(ctx context.Context, orderID, roomID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND room_id IS NULL", orderID).
		Update("room_id", roomID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Progress joins members to their confirmed orders. Only members whose
// status counts toward unlock contribute, and only non-cancelled orders
// carry value.
func (r *repository) Progress(ctx context.Context, roomID uuid.UUID) (*Progress, error) {
	var members []models.RoomMember
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Find(&members).Error
	if err != nil {
		return nil, err
	}

	progress := &Progress{MemberCount: len(members)}
	orderIDs := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		if m.Status.CountsTowardUnlock() && m.OrderID != nil {
			orderIDs = append(orderIDs, *m.OrderID)
		}
	}
	if len(orderIDs) == 0 {
		return progress, nil
	}

	var orders []models.Order
	err = r.db.WithContext(ctx).
		Where("id IN ? AND status NOT IN ?", orderIDs, []enums.OrderStatus{
			enums.OrderStatusCancelled,
			enums.OrderStatusPendingPayment,
		}).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	for _, o := range orders {
		progress.QualifyingOrders++
		progress.TotalValuePaise += o.TotalPaise
	}
	return progress, nil
}

func (r *repository) MoveStatus(ctx context.Context, id uuid.UUID, from, to enums.RoomStatus, patch map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range patch {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.Room, error) {
	var rooms []models.Room
	q := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.RoomStatusActive, cutoff)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rooms).Error
	return rooms, err
}
