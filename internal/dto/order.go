package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"larder/internal/domain"
)

type CreateOrderRequest struct {
	ClientID       *uint    `json:"clientId" validate:"omitempty,gt=0"`
	ClientName     *string  `json:"clientName" validate:"omitempty,min=1,max=255"`
	OrderSource    string   `json:"orderSource" validate:"required,oneof=inside_city outside_city"`
	DeliveryMethod string   `json:"deliveryMethod" validate:"required,oneof=delivery pickup"`
	AddressDetails string   `json:"addressDetails" validate:"max=500"`
	Latitude       *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude      *float64 `json:"longitude" validate:"omitempty,longitude"`
	Cart           Cart     `json:"cart"`
}

type AssignDeliveryRequest struct {
	DeliveryID uint `json:"deliveryId" validate:"required,gt=0"`
}

type ReturnRequest struct {
	OrderItemID uint   `json:"orderItemId" validate:"required,gt=0"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
	Reason      string `json:"reason" validate:"required,max=255"`
	Restock     bool   `json:"restock"`
}

type OrderItemResponse struct {
	ID               uint            `json:"id"`
	ProductID        uint            `json:"productId"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	ReturnedQuantity int             `json:"returnedQuantity"`
	Status           string          `json:"status"`
}

type OrderResponse struct {
	TraceID        string              `json:"traceId,omitempty"`
	ID             uint                `json:"id"`
	ClientID       *uint               `json:"clientId,omitempty"`
	ClientName     *string             `json:"clientName,omitempty"`
	Status         string              `json:"status"`
	OrderSource    string              `json:"orderSource"`
	DeliveryMethod string              `json:"deliveryMethod"`
	AddressDetails string              `json:"addressDetails"`
	Latitude       *float64            `json:"latitude,omitempty"`
	Longitude      *float64            `json:"longitude,omitempty"`
	TotalAmount    decimal.Decimal     `json:"totalAmount"`
	CostPrice      decimal.Decimal     `json:"costPrice"`
	DeliveryID     *uint               `json:"deliveryId,omitempty"`
	Items          []OrderItemResponse `json:"items"`
	CreatedAt      time.Time           `json:"createdAt"`
}

func NewOrderResponse(traceID string, o *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemResponse{
			ID:               item.ID,
			ProductID:        item.ProductID,
			Quantity:         item.Quantity,
			UnitPrice:        item.UnitPrice,
			Subtotal:         item.Subtotal(),
			ReturnedQuantity: item.ReturnedQuantity,
			Status:           string(item.Status),
		})
	}

	return OrderResponse{
		TraceID:        traceID,
		ID:             o.ID,
		ClientID:       o.ClientID,
		ClientName:     o.ClientName,
		Status:         o.Status.String(),
		OrderSource:    string(o.OrderSource),
		DeliveryMethod: string(o.DeliveryMethod),
		AddressDetails: o.AddressDetails,
		Latitude:       o.Latitude,
		Longitude:      o.Longitude,
		TotalAmount:    o.TotalAmount,
		CostPrice:      o.CostPrice,
		DeliveryID:     o.DeliveryID,
		Items:          items,
		CreatedAt:      o.CreatedAt,
	}
}
