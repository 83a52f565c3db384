package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAdjustmentSource_Variants(t *testing.T) {
	none := NoSource()
	assert.Equal(t, SourceNone, none.Kind())
	assert.False(t, none.Locked())

	manual := ManualEntrySource()
	assert.Equal(t, SourceManualEntry, manual.Kind())
	_, ok := manual.DamagedGoodsID()
	assert.False(t, ok)

	damaged := DamagedGoodsSource(12)
	id, ok := damaged.DamagedGoodsID()
	assert.True(t, ok)
	assert.Equal(t, uint(12), id)
	assert.True(t, damaged.Locked())

	var zero AdjustmentSource
	assert.Equal(t, SourceNone, zero.Kind())
}

func TestSourceFromColumns(t *testing.T) {
	id := uint(5)

	assert.Equal(t, DamagedGoodsSource(5), SourceFromColumns("damaged_goods", &id))
	assert.Equal(t, NoSource(), SourceFromColumns("damaged_goods", nil))
	assert.Equal(t, ManualEntrySource(), SourceFromColumns("manual", nil))
	assert.Equal(t, NoSource(), SourceFromColumns("", nil))
}

func TestAdjustment_Signed(t *testing.T) {
	loss := Adjustment{Kind: AdjustmentLoss, Amount: decimal.RequireFromString("6.00")}
	gain := Adjustment{Kind: AdjustmentGain, Amount: decimal.RequireFromString("2.50")}

	assert.True(t, loss.Signed().Equal(decimal.RequireFromString("-6")))
	assert.True(t, gain.Signed().Equal(decimal.RequireFromString("2.5")))
}

func TestSummarizeAdjustments(t *testing.T) {
	summary := SummarizeAdjustments([]Adjustment{
		{Kind: AdjustmentGain, Amount: decimal.NewFromInt(10), Date: time.Now()},
		{Kind: AdjustmentLoss, Amount: decimal.NewFromInt(6)},
		{Kind: AdjustmentLoss, Amount: decimal.NewFromInt(1)},
	})

	assert.True(t, summary.Gains.Equal(decimal.NewFromInt(10)))
	assert.True(t, summary.Losses.Equal(decimal.NewFromInt(7)))
	assert.True(t, summary.Net.Equal(decimal.NewFromInt(3)))
}

func TestNewTransaction_SnapshotsBatch(t *testing.T) {
	number := "INV-1"
	batch := Batch{
		ID:          3,
		ProductID:   9,
		UnitCost:    decimal.RequireFromString("2.00"),
		ExpiryDate:  datePtr("2025-01-01"),
		BatchNumber: &number,
	}
	at := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)

	tx := NewTransaction(batch, TransactionDamage, -3, 0, "crushed", at)

	assert.Equal(t, uint(3), tx.BatchID)
	assert.Equal(t, uint(9), tx.ProductID)
	assert.Equal(t, -3, tx.QuantityChange)
	assert.True(t, tx.CostPrice.Equal(decimal.RequireFromString("6")))
	assert.Equal(t, batch.ExpiryDate, tx.ExpiryDateSnapshot)
	assert.Equal(t, &number, tx.BatchNumberSnapshot)
	assert.Equal(t, at, tx.CreatedAt)
}
