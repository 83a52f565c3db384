package dto

import (
	"github.com/shopspring/decimal"

	"larder/internal/domain"
)

type AdjustmentRequest struct {
	Kind   string          `json:"kind" validate:"required,oneof=gain loss"`
	Amount decimal.Decimal `json:"amount" validate:"gte=0"`
	Reason string          `json:"reason" validate:"required,max=255"`
	Date   *string         `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type AdjustmentResponse struct {
	ID             uint            `json:"id"`
	Kind           string          `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason"`
	Date           string          `json:"date"`
	Source         string          `json:"source"`
	DamagedGoodsID *uint           `json:"damagedGoodsId,omitempty"`
	Locked         bool            `json:"locked"`
}

func NewAdjustmentResponse(a domain.Adjustment) AdjustmentResponse {
	resp := AdjustmentResponse{
		ID:     a.ID,
		Kind:   string(a.Kind),
		Amount: a.Amount,
		Reason: a.Reason,
		Date:   a.Date.Format(DateLayout),
		Source: string(a.Source.Kind()),
		Locked: a.Source.Locked(),
	}
	if id, ok := a.Source.DamagedGoodsID(); ok {
		resp.DamagedGoodsID = &id
	}
	return resp
}

func NewAdjustmentResponses(adjustments []domain.Adjustment) []AdjustmentResponse {
	out := make([]AdjustmentResponse, 0, len(adjustments))
	for _, a := range adjustments {
		out = append(out, NewAdjustmentResponse(a))
	}
	return out
}
