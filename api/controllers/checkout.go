package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Vijayapardhu/risbow-backend-sub000/api/middleware"
	"github.com/Vijayapardhu/risbow-backend-sub000/api/responses"
	"github.com/Vijayapardhu/risbow-backend-sub000/api/validators"
	checkoutsvc "github.com/Vijayapardhu/risbow-backend-sub000/internal/checkout"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
	pkgerrors "github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
)

type checkoutLineRequest struct {
	ProductID uuid.UUID  `json:"productId" validate:"required"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Qty       int        `json:"qty" validate:"required,min=1"`
}

type checkoutRequest struct {
	Lines               []checkoutLineRequest `json:"lines" validate:"required,min=1,dive"`
	CoinsRequestedPaise int64                 `json:"coinsRequestedPaise" validate:"min=0"`
	PaymentMode         enums.PaymentMode     `json:"paymentMode" validate:"required,oneof=ONLINE COD"`
	RoomID              *uuid.UUID            `json:"roomId,omitempty"`
	AbandonedCheckoutID *uuid.UUID            `json:"abandonedCheckoutId,omitempty"`
}

type checkoutResponse struct {
	Order          orderResponse `json:"order"`
	GatewayOrderID string        `json:"gatewayOrderId,omitempty"`
	PayablePaise   int64         `json:"payablePaise"`
	Currency       string        `json:"currency,omitempty"`
}

// Checkout prices the submitted cart, reserves stock, and places an
// order in the mode's starting state.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]checkoutsvc.LineInput, 0, len(payload.Lines))
		for _, line := range payload.Lines {
			lines = append(lines, checkoutsvc.LineInput{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Qty:       line.Qty,
			})
		}

		result, err := svc.Checkout(r.Context(), checkoutsvc.Input{
			UserID:              middleware.UserIDFromContext(r.Context()),
			Lines:               lines,
			CoinsRequestedPaise: payload.CoinsRequestedPaise,
			PaymentMode:         payload.PaymentMode,
			RoomID:              payload.RoomID,
			AbandonedCheckoutID: payload.AbandonedCheckoutID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			Order:          newOrderResponse(result.Order),
			GatewayOrderID: result.GatewayOrderID,
			PayablePaise:   result.PayablePaise,
			Currency:       result.Currency,
		})
	}
}
