package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AdjustmentKind string

const (
	AdjustmentGain AdjustmentKind = "gain"
	AdjustmentLoss AdjustmentKind = "loss"
)

func (k AdjustmentKind) IsValid() bool {
	return k == AdjustmentGain || k == AdjustmentLoss
}

type AdjustmentSourceKind string

const (
	SourceNone         AdjustmentSourceKind = "none"
	SourceDamagedGoods AdjustmentSourceKind = "damaged_goods"
	SourceManualEntry  AdjustmentSourceKind = "manual"
)

// AdjustmentSource records what caused an adjustment. Only the DamagedGoods
// variant carries a record ID.
type AdjustmentSource struct {
	kind           AdjustmentSourceKind
	damagedGoodsID uint
}

func NoSource() AdjustmentSource {
	return AdjustmentSource{kind: SourceNone}
}

func ManualEntrySource() AdjustmentSource {
	return AdjustmentSource{kind: SourceManualEntry}
}

func DamagedGoodsSource(id uint) AdjustmentSource {
	return AdjustmentSource{kind: SourceDamagedGoods, damagedGoodsID: id}
}

// SourceFromColumns rebuilds the variant from its persisted form.
func SourceFromColumns(kind string, damagedGoodsID *uint) AdjustmentSource {
	switch AdjustmentSourceKind(kind) {
	case SourceDamagedGoods:
		if damagedGoodsID != nil {
			return DamagedGoodsSource(*damagedGoodsID)
		}
	case SourceManualEntry:
		return ManualEntrySource()
	}
	return NoSource()
}

func (s AdjustmentSource) Kind() AdjustmentSourceKind {
	if s.kind == "" {
		return SourceNone
	}
	return s.kind
}

func (s AdjustmentSource) DamagedGoodsID() (uint, bool) {
	if s.kind != SourceDamagedGoods {
		return 0, false
	}
	return s.damagedGoodsID, true
}

// Locked adjustments can only change through their damaged goods record.
func (s AdjustmentSource) Locked() bool {
	return s.kind == SourceDamagedGoods
}

type Adjustment struct {
	ID     uint
	Kind   AdjustmentKind
	Amount decimal.Decimal
	Reason string
	Date   time.Time
	Source AdjustmentSource
}

// Signed returns the amount with the sign implied by Kind.
func (a Adjustment) Signed() decimal.Decimal {
	if a.Kind == AdjustmentLoss {
		return a.Amount.Neg()
	}
	return a.Amount
}

// AdjustmentFilter narrows listings; nil fields match everything. From and To
// are inclusive calendar days.
type AdjustmentFilter struct {
	Kind *AdjustmentKind
	From *time.Time
	To   *time.Time
}

type AdjustmentSummary struct {
	Gains  decimal.Decimal `json:"gains"`
	Losses decimal.Decimal `json:"losses"`
	Net    decimal.Decimal `json:"net"`
}

func SummarizeAdjustments(adjustments []Adjustment) AdjustmentSummary {
	summary := AdjustmentSummary{Gains: decimal.Zero, Losses: decimal.Zero}
	for _, a := range adjustments {
		if a.Kind == AdjustmentLoss {
			summary.Losses = summary.Losses.Add(a.Amount)
		} else {
			summary.Gains = summary.Gains.Add(a.Amount)
		}
	}
	summary.Net = summary.Gains.Sub(summary.Losses)
	return summary
}
