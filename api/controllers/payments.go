package controllers

import (
	"io"
	"net/http"

	"github.com/Vijayapardhu/risbow-backend-sub000/api/responses"
	"github.com/Vijayapardhu/risbow-backend-sub000/api/validators"
	paymentsvc "github.com/Vijayapardhu/risbow-backend-sub000/internal/payments"
	pkgerrors "github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
)

const webhookSignatureHeader = "X-Razorpay-Signature"

// maxWebhookBody caps what we read from the gateway callback.
const maxWebhookBody = 1 << 20

type confirmPaymentRequest struct {
	GatewayOrderID   string `json:"gatewayOrderId" validate:"required"`
	GatewayPaymentID string `json:"gatewayPaymentId" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}

// ConfirmPayment settles a paid order from the client's post-payment
// handshake.
func ConfirmPayment(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Confirm(r.Context(), paymentsvc.Confirmation{
			GatewayOrderID:   payload.GatewayOrderID,
			GatewayPaymentID: payload.GatewayPaymentID,
			Signature:        payload.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// RazorpayWebhook settles from the gateway's server-to-server callback.
// The gateway only needs an acknowledgement, never the order payload.
func RazorpayWebhook(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}

		if _, err := svc.ConfirmWebhook(r.Context(), body, r.Header.Get(webhookSignatureHeader)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
