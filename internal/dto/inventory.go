package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"larder/internal/domain"
)

const DateLayout = "2006-01-02"

type ReceiveBatchRequest struct {
	ProductID            uint            `json:"productId" validate:"required,gt=0"`
	Quantity             int             `json:"quantity" validate:"required,gt=0"`
	UnitCost             decimal.Decimal `json:"unitCost" validate:"gte=0"`
	ExpiryDate           *string         `json:"expiryDate" validate:"omitempty,datetime=2006-01-02"`
	BatchNumber          *string         `json:"batchNumber" validate:"omitempty,max=100"`
	MinimumAlertQuantity int             `json:"minimumAlertQuantity" validate:"gte=0"`
}

type AdjustBatchRequest struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required,max=255"`
}

type DamageRequest struct {
	ProductID uint   `json:"productId" validate:"required,gt=0"`
	BatchID   *uint  `json:"batchId" validate:"omitempty,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"required,max=255"`
	Source    string `json:"source" validate:"omitempty,oneof=inventory invoice external"`
}

type BatchResponse struct {
	ID                   uint            `json:"id"`
	ProductID            uint            `json:"productId"`
	Quantity             int             `json:"quantity"`
	ReservedQuantity     int             `json:"reservedQuantity"`
	AvailableQuantity    int             `json:"availableQuantity"`
	UnitCost             decimal.Decimal `json:"unitCost"`
	ExpiryDate           *string         `json:"expiryDate,omitempty"`
	BatchNumber          *string         `json:"batchNumber,omitempty"`
	MinimumAlertQuantity int             `json:"minimumAlertQuantity"`
	Active               bool            `json:"active"`
}

func NewBatchResponse(b domain.Batch) BatchResponse {
	return BatchResponse{
		ID:                   b.ID,
		ProductID:            b.ProductID,
		Quantity:             b.Quantity,
		ReservedQuantity:     b.ReservedQuantity,
		AvailableQuantity:    b.Available(),
		UnitCost:             b.UnitCost,
		ExpiryDate:           formatDate(b.ExpiryDate),
		BatchNumber:          b.BatchNumber,
		MinimumAlertQuantity: b.MinimumAlertQuantity,
		Active:               b.IsActive,
	}
}

func NewBatchResponses(batches []domain.Batch) []BatchResponse {
	out := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, NewBatchResponse(b))
	}
	return out
}

type TransactionResponse struct {
	ID             uint            `json:"id"`
	BatchID        uint            `json:"batchId"`
	ProductID      uint            `json:"productId"`
	OrderID        *uint           `json:"orderId,omitempty"`
	Type           string          `json:"transactionType"`
	QuantityChange int             `json:"quantityChange"`
	ReservedChange int             `json:"reservedChange"`
	CostPrice      decimal.Decimal `json:"costPrice"`
	Reason         string          `json:"reason"`
	ExpiryDate     *string         `json:"expiryDateSnapshot,omitempty"`
	BatchNumber    *string         `json:"batchNumberSnapshot,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func NewTransactionResponses(txns []domain.InventoryTransaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, TransactionResponse{
			ID:             t.ID,
			BatchID:        t.BatchID,
			ProductID:      t.ProductID,
			OrderID:        t.OrderID,
			Type:           string(t.TransactionType),
			QuantityChange: t.QuantityChange,
			ReservedChange: t.ReservedChange,
			CostPrice:      t.CostPrice,
			Reason:         t.Reason,
			ExpiryDate:     formatDate(t.ExpiryDateSnapshot),
			BatchNumber:    t.BatchNumberSnapshot,
			CreatedAt:      t.CreatedAt,
		})
	}
	return out
}

type DamagedGoodsResponse struct {
	ID           uint            `json:"id"`
	ProductID    uint            `json:"productId"`
	BatchID      *uint           `json:"batchId,omitempty"`
	Quantity     int             `json:"quantity"`
	Reason       string          `json:"reason"`
	Source       string          `json:"source"`
	AdjustmentID uint            `json:"adjustmentId"`
	Loss         decimal.Decimal `json:"loss"`
}

// ParseDate reads an optional YYYY-MM-DD value.
func ParseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}
