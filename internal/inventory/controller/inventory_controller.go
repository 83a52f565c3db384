package controller

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"larder/internal/commons"
	"larder/internal/domain"
	"larder/internal/dto"
	apperrors "larder/internal/errors"
	"larder/internal/inventory/service"
)

type LedgerService interface {
	StockLevels(ctx context.Context, productID uint) (domain.StockLevels, error)
	ReceiveBatch(ctx context.Context, in service.ReceiveBatchInput) (*domain.Batch, error)
	DeactivateBatch(ctx context.Context, batchID uint) error
	AdjustBatch(ctx context.Context, batchID uint, delta int, reason string) (*domain.Batch, error)
	RecordDamage(ctx context.Context, in service.DamageInput) ([]service.DamageRecord, error)
	DeleteDamage(ctx context.Context, damagedGoodsID uint) error
	ListTransactions(ctx context.Context, productID uint, limit int) ([]domain.InventoryTransaction, error)
	LowStock(ctx context.Context) ([]domain.Batch, error)
	ExpiringBatches(ctx context.Context, days int) ([]domain.Batch, error)
}

const defaultExpiringDays = 7

type InventoryController struct {
	ledger LedgerService
	logger *zap.Logger
}

func NewInventoryController(ledger LedgerService, logger *zap.Logger) *InventoryController {
	return &InventoryController{
		ledger: ledger,
		logger: logger,
	}
}

func (c *InventoryController) StockLevels(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	productID, err := commons.IDParam(r, "productId")
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	levels, err := c.ledger.StockLevels(r.Context(), productID)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	commons.WriteJSON(w, logger, http.StatusOK, levels)
}

func (c *InventoryController) ReceiveBatch(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	var req dto.ReceiveBatchRequest
	if err := commons.DecodeAndValidate(r, &req); err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	expiry, err := dto.ParseDate(req.ExpiryDate)
	if err != nil {
		commons.WriteError(w, logger, traceID, apperrors.NewValidationError("invalid expiryDate",
			apperrors.ValidationDetail{Field: "expiryDate", Message: "expiryDate must be YYYY-MM-DD"}))
		return
	}

	batch, err := c.ledger.ReceiveBatch(r.Context(), service.ReceiveBatchInput{
		ProductID:            req.ProductID,
		Quantity:             req.Quantity,
		UnitCost:             req.UnitCost,
		ExpiryDate:           expiry,
		BatchNumber:          req.BatchNumber,
		MinimumAlertQuantity: req.MinimumAlertQuantity,
	})
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	commons.WriteJSON(w, logger, http.StatusCreated, dto.NewBatchResponse(*batch))
}

func (c *InventoryController) DeactivateBatch(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	batchID, err := commons.IDParam(r, "batchId")
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	if err := c.ledger.DeactivateBatch(r.Context(), batchID); err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *InventoryController) AdjustBatch(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	batchID, err := commons.IDParam(r, "batchId")
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	var req dto.AdjustBatchRequest
	if err := commons.DecodeAndValidate(r, &req); err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	batch, err := c.ledger.AdjustBatch(r.Context(), batchID, req.Delta, req.Reason)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	commons.WriteJSON(w, logger, http.StatusOK, dto.NewBatchResponse(*batch))
}

func (c *InventoryController) Transactions(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	productID, err := commons.IDParam(r, "productId")
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	txns, err := c.ledger.ListTransactions(r.Context(), productID, limit)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	commons.WriteJSON(w, logger, http.StatusOK, map[string]any{
		"transactions": dto.NewTransactionResponses(txns),
	})
}

func (c *InventoryController) LowStock(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	batches, err := c.ledger.LowStock(r.Context())
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	commons.WriteJSON(w, logger, http.StatusOK, map[string]any{"batches": dto.NewBatchResponses(batches)})
}

func (c *InventoryController) Expiring(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	days, err := queryInt(r, "days", defaultExpiringDays)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	batches, err := c.ledger.ExpiringBatches(r.Context(), days)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	commons.WriteJSON(w, logger, http.StatusOK, map[string]any{"batches": dto.NewBatchResponses(batches)})
}

func (c *InventoryController) RecordDamage(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	var req dto.DamageRequest
	if err := commons.DecodeAndValidate(r, &req); err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	records, err := c.ledger.RecordDamage(r.Context(), service.DamageInput{
		ProductID: req.ProductID,
		BatchID:   req.BatchID,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		Source:    domain.DamageSource(req.Source),
	})
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	out := make([]dto.DamagedGoodsResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, dto.DamagedGoodsResponse{
			ID:           rec.DamagedGoods.ID,
			ProductID:    rec.DamagedGoods.ProductID,
			BatchID:      rec.DamagedGoods.InventoryBatchID,
			Quantity:     rec.DamagedGoods.Quantity,
			Reason:       rec.DamagedGoods.Reason,
			Source:       string(rec.DamagedGoods.Source),
			AdjustmentID: rec.Adjustment.ID,
			Loss:         rec.Adjustment.Amount,
		})
	}

	commons.WriteJSON(w, logger, http.StatusCreated, map[string]any{"damagedGoods": out})
}

func (c *InventoryController) DeleteDamage(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	id, err := commons.IDParam(r, "damagedGoodsId")
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	if err := c.ledger.DeleteDamage(r.Context(), id); err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.NewValidationError("invalid "+name,
			apperrors.ValidationDetail{Field: name, Message: name + " must be a non-negative integer"})
	}
	return n, nil
}
