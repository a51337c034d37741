package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Vijayapardhu/risbow-backend-sub000/api/middleware"
	"github.com/Vijayapardhu/risbow-backend-sub000/api/responses"
	"github.com/Vijayapardhu/risbow-backend-sub000/api/validators"
	roomsvc "github.com/Vijayapardhu/risbow-backend-sub000/internal/rooms"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
	pkgerrors "github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
)

type roomMemberResponse struct {
	RoomID   uuid.UUID              `json:"roomId"`
	UserID   uuid.UUID              `json:"userId"`
	Status   enums.RoomMemberStatus `json:"status"`
	JoinedAt time.Time              `json:"joinedAt"`
}

// JoinRoom adds the caller to a group-buy room. Rejoining is a no-op
// that returns the existing membership.
func JoinRoom(svc roomsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rooms service unavailable"))
			return
		}

		roomID, err := validators.UUIDParam(r, "roomID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		member, err := svc.Join(r.Context(), roomID, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, roomMemberResponse{
			RoomID:   member.RoomID,
			UserID:   member.UserID,
			Status:   member.Status,
			JoinedAt: member.CreatedAt,
		})
	}
}

type linkOrderRequest struct {
	OrderID uuid.UUID `json:"orderId" validate:"required"`
}

// LinkRoomOrder attaches an order the caller already placed to the room
// and reports whether that tipped the unlock thresholds.
func LinkRoomOrder(svc roomsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rooms service unavailable"))
			return
		}

		roomID, err := validators.UUIDParam(r, "roomID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req linkOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		unlocked, err := svc.LinkOrder(r.Context(), roomID, middleware.UserIDFromContext(r.Context()), req.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"unlocked": unlocked})
	}
}

// RoomProgress returns the room's live unlock progress.
func RoomProgress(svc roomsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rooms service unavailable"))
			return
		}

		roomID, err := validators.UUIDParam(r, "roomID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		progress, err := svc.GetProgress(r.Context(), roomID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, progress)
	}
}

// SubscribeRoom upgrades to a websocket feeding the room's live events.
func SubscribeRoom(svc roomsvc.Service, hub *roomsvc.Hub, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || hub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rooms service unavailable"))
			return
		}

		roomID, err := validators.UUIDParam(r, "roomID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// Subscribing to a missing room should 404 before the upgrade.
		if _, err := svc.Get(r.Context(), roomID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := hub.Subscribe(w, r, roomID); err != nil && logg != nil {
			// The upgrader has already written its handshake failure.
			logg.Error(r.Context(), "websocket subscribe failed", err)
		}
	}
}

// ForceUnlockRoom lets an admin unlock a room ahead of its thresholds.
func ForceUnlockRoom(svc roomsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rooms service unavailable"))
			return
		}

		roomID, err := validators.UUIDParam(r, "roomID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ForceUnlock(r.Context(), roomID, middleware.RoleFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "unlocked"})
	}
}
