package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/db/models"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
)

type orderResponse struct {
	OrderID          uuid.UUID           `json:"orderId"`
	Status           enums.OrderStatus   `json:"status"`
	PaymentMode      enums.PaymentMode   `json:"paymentMode"`
	SubtotalPaise    int64               `json:"subtotalPaise"`
	CoinsUsedPaise   int64               `json:"coinsUsedPaise"`
	TotalPaise       int64               `json:"totalPaise"`
	RoomID           *uuid.UUID          `json:"roomId,omitempty"`
	CancelReason     *string             `json:"cancelReason,omitempty"`
	Items            []lineItemResponse  `json:"items"`
	Payment          *paymentResponse    `json:"payment,omitempty"`
	ConfirmedAt      *time.Time          `json:"confirmedAt,omitempty"`
	CanceledAt       *time.Time          `json:"canceledAt,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
}

type lineItemResponse struct {
	ProductID      uuid.UUID  `json:"productId"`
	VariantID      *uuid.UUID `json:"variantId,omitempty"`
	Name           string     `json:"name"`
	Qty            int        `json:"qty"`
	UnitPricePaise int64      `json:"unitPricePaise"`
	TotalPaise     int64      `json:"totalPaise"`
}

type paymentResponse struct {
	Status            enums.PaymentStatus `json:"status"`
	AmountPaise       int64               `json:"amountPaise"`
	ProviderOrderID   *string             `json:"providerOrderId,omitempty"`
	ProviderPaymentID *string             `json:"providerPaymentId,omitempty"`
	SettledAt         *time.Time          `json:"settledAt,omitempty"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]lineItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, lineItemResponse{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Name:           item.Name,
			Qty:            item.Qty,
			UnitPricePaise: item.UnitPricePaise,
			TotalPaise:     item.TotalPaise,
		})
	}

	resp := orderResponse{
		OrderID:        order.ID,
		Status:         order.Status,
		PaymentMode:    order.PaymentMode(),
		SubtotalPaise:  order.SubtotalPaise,
		CoinsUsedPaise: order.CoinsUsedPaise,
		TotalPaise:     order.TotalPaise,
		RoomID:         order.RoomID,
		CancelReason:   order.CancelReason,
		Items:          items,
		ConfirmedAt:    order.ConfirmedAt,
		CanceledAt:     order.CanceledAt,
		CreatedAt:      order.CreatedAt,
	}
	if order.Payment != nil {
		resp.Payment = &paymentResponse{
			Status:            order.Payment.Status,
			AmountPaise:       order.Payment.AmountPaise,
			ProviderOrderID:   order.Payment.ProviderOrderID,
			ProviderPaymentID: order.Payment.ProviderPaymentID,
			SettledAt:         order.Payment.SettledAt,
		}
	}
	return resp
}
