package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"larder/internal/domain"
	apperrors "larder/internal/errors"
	"larder/internal/infrastructure/metrics"
	"larder/internal/inventory"
)

type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error
}

type ProductRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.Product, error)
}

type BatchRepository interface {
	inventory.BatchStore
	FindByID(ctx context.Context, id uint) (*domain.Batch, error)
	FindByProduct(ctx context.Context, productID uint) ([]domain.Batch, error)
	Insert(ctx context.Context, tx *sqlx.Tx, batch domain.Batch) (uint, error)
	SetActive(ctx context.Context, tx *sqlx.Tx, id uint, active bool) error
	FindLowStock(ctx context.Context) ([]domain.Batch, error)
	FindExpiringBefore(ctx context.Context, until time.Time) ([]domain.Batch, error)
}

type TransactionRepository interface {
	inventory.TransactionStore
	ListByProduct(ctx context.Context, productID uint, limit int) ([]domain.InventoryTransaction, error)
}

type DamagedGoodsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, dg domain.DamagedGoods) (uint, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id uint) (*domain.DamagedGoods, error)
	Delete(ctx context.Context, tx *sqlx.Tx, id uint) error
}

// AdjustmentRecorder books the financial side of damage inside the caller's
// transaction.
type AdjustmentRecorder interface {
	RecordDamageLossInTx(ctx context.Context, tx *sqlx.Tx, damagedGoodsID uint, amount decimal.Decimal, reason string) (*domain.Adjustment, error)
	DeleteForDamagedGoodsInTx(ctx context.Context, tx *sqlx.Tx, damagedGoodsID uint) error
}

type ReceiveBatchInput struct {
	ProductID            uint
	Quantity             int
	UnitCost             decimal.Decimal
	ExpiryDate           *time.Time
	BatchNumber          *string
	MinimumAlertQuantity int
}

type DamageInput struct {
	ProductID uint
	BatchID   *uint
	Quantity  int
	Reason    string
	Source    domain.DamageSource
}

// DamageRecord is one damaged goods row and the loss booked for it.
type DamageRecord struct {
	DamagedGoods domain.DamagedGoods
	Adjustment   domain.Adjustment
}

const defaultTransactionLimit = 50

type LedgerService struct {
	txm         TransactionManager
	products    ProductRepository
	batches     BatchRepository
	txns        TransactionRepository
	damaged     DamagedGoodsRepository
	adjustments AdjustmentRecorder
	logger      *zap.Logger
	now         func() time.Time
}

func NewLedgerService(
	txm TransactionManager,
	products ProductRepository,
	batches BatchRepository,
	txns TransactionRepository,
	damaged DamagedGoodsRepository,
	adjustments AdjustmentRecorder,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		txm:         txm,
		products:    products,
		batches:     batches,
		txns:        txns,
		damaged:     damaged,
		adjustments: adjustments,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *LedgerService) StockLevels(ctx context.Context, productID uint) (domain.StockLevels, error) {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return domain.StockLevels{}, err
	}

	batches, err := s.batches.FindByProduct(ctx, productID)
	if err != nil {
		return domain.StockLevels{}, err
	}
	return domain.SumStock(batches), nil
}

// ReceiveBatch records incoming stock as a new batch with a restock entry.
func (s *LedgerService) ReceiveBatch(ctx context.Context, in ReceiveBatchInput) (*domain.Batch, error) {
	var details []apperrors.ValidationDetail
	if in.Quantity <= 0 {
		details = append(details, apperrors.ValidationDetail{Field: "quantity", Message: "quantity must be greater than zero"})
	}
	if in.UnitCost.IsNegative() {
		details = append(details, apperrors.ValidationDetail{Field: "unitCost", Message: "unit cost must not be negative"})
	}
	if in.MinimumAlertQuantity < 0 {
		details = append(details, apperrors.ValidationDetail{Field: "minimumAlertQuantity", Message: "minimum alert quantity must not be negative"})
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid batch", details...)
	}

	product, err := s.products.FindByID(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	batch := domain.Batch{
		ProductID:            product.ID,
		Quantity:             in.Quantity,
		UnitCost:             in.UnitCost,
		ExpiryDate:           in.ExpiryDate,
		BatchNumber:          in.BatchNumber,
		MinimumAlertQuantity: in.MinimumAlertQuantity,
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = s.txm.RunInTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		id, err := s.batches.Insert(ctx, tx, batch)
		if err != nil {
			return err
		}
		batch.ID = id

		txn := domain.NewTransaction(batch, domain.TransactionRestock, batch.Quantity, 0, "stock received", now)
		_, err = s.txns.Insert(ctx, tx, txn)
		return err
	})
	if err != nil {
		s.logger.Error("receive batch failed", zap.Uint("productId", in.ProductID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("batch received",
		zap.Uint("batchId", batch.ID),
		zap.Uint("productId", batch.ProductID),
		zap.Int("quantity", batch.Quantity),
	)
	return &batch, nil
}

// DeactivateBatch takes a batch out of allocation. Batches are never deleted;
// stock already reserved on it stays reserved.
func (s *LedgerService) DeactivateBatch(ctx context.Context, batchID uint) error {
	err := s.txm.RunInTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return s.batches.SetActive(ctx, tx, batchID, false)
	})
	if err != nil {
		return err
	}

	s.logger.Info("batch deactivated", zap.Uint("batchId", batchID))
	return nil
}

// AdjustBatch applies a stock count correction. Negative deltas are limited
// to the batch's available quantity.
func (s *LedgerService) AdjustBatch(ctx context.Context, batchID uint, delta int, reason string) (*domain.Batch, error) {
	if delta == 0 {
		return nil, apperrors.NewValidationError("delta must not be zero",
			apperrors.ValidationDetail{Field: "delta", Message: "delta must not be zero"})
	}
	if reason == "" {
		return nil, apperrors.NewValidationError("reason is required",
			apperrors.ValidationDetail{Field: "reason", Message: "reason is required"})
	}

	var adjusted domain.Batch
	err := s.txm.RunInTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		start := time.Now()
		defer metrics.ObserveTx("adjust_batch", start)

		uow := inventory.NewUnitOfWork(tx, s.batches, s.txns, s.now())
		if err := uow.LoadBatches(ctx, batchID); err != nil {
			return err
		}

		var err error
		if delta > 0 {
			err = uow.Increase(batchID, delta, domain.TransactionAdjustment, reason)
		} else {
			err = uow.Decrease(batchID, -delta, domain.TransactionAdjustment, reason)
		}
		if err != nil {
			return err
		}

		adjusted, _ = uow.Batch(batchID)
		return uow.Flush(ctx)
	})
	if err != nil {
		s.logger.Warn("batch adjustment failed", zap.Uint("batchId", batchID), zap.Int("delta", delta), zap.Error(err))
		return nil, err
	}

	s.logger.Info("batch adjusted", zap.Uint("batchId", batchID), zap.Int("delta", delta))
	return &adjusted, nil
}

// RecordDamage writes off damaged stock. With a batch the units come off that
// batch; without one they are taken FIFO across the product's batches, one
// damaged goods record per batch. Each record carries exactly one loss
// adjustment valued at its batch's unit cost.
func (s *LedgerService) RecordDamage(ctx context.Context, in DamageInput) ([]DamageRecord, error) {
	if in.Source == "" {
		in.Source = domain.DamageSourceInventory
	}
	var details []apperrors.ValidationDetail
	if in.Quantity <= 0 {
		details = append(details, apperrors.ValidationDetail{Field: "quantity", Message: "quantity must be greater than zero"})
	}
	if !in.Source.IsValid() || !in.Source.RemovesStock() {
		details = append(details, apperrors.ValidationDetail{Field: "source", Message: "source must be inventory, invoice or external"})
	}
	if in.Reason == "" {
		details = append(details, apperrors.ValidationDetail{Field: "reason", Message: "reason is required"})
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid damage record", details...)
	}

	if _, err := s.products.FindByID(ctx, in.ProductID); err != nil {
		return nil, err
	}

	var records []DamageRecord
	err := s.txm.RunInTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		start := time.Now()
		defer metrics.ObserveTx("record_damage", start)

		now := s.now()
		uow := inventory.NewUnitOfWork(tx, s.batches, s.txns, now)

		var picks []inventory.Pick
		if in.BatchID != nil {
			if err := uow.LoadBatches(ctx, *in.BatchID); err != nil {
				return err
			}
			batch, _ := uow.Batch(*in.BatchID)
			if batch.ProductID != in.ProductID {
				return apperrors.NewValidationError("batch does not belong to product",
					apperrors.ValidationDetail{Field: "batchId", Message: fmt.Sprintf("batch %d belongs to product %d", batch.ID, batch.ProductID)})
			}
			if err := uow.Decrease(batch.ID, in.Quantity, domain.TransactionDamage, in.Reason); err != nil {
				return err
			}
			picks = []inventory.Pick{{BatchID: batch.ID, Quantity: in.Quantity, UnitCost: batch.UnitCost}}
		} else {
			if err := uow.LoadProducts(ctx, in.ProductID); err != nil {
				return err
			}
			var err error
			picks, err = uow.Consume(in.ProductID, in.Quantity, domain.TransactionDamage, in.Reason)
			if err != nil {
				return err
			}
		}

		if err := uow.Flush(ctx); err != nil {
			return err
		}

		for _, pick := range picks {
			batchID := pick.BatchID
			dg := domain.DamagedGoods{
				ProductID:        in.ProductID,
				InventoryBatchID: &batchID,
				Quantity:         pick.Quantity,
				Reason:           in.Reason,
				Source:           in.Source,
				CreatedAt:        now,
			}
			id, err := s.damaged.Insert(ctx, tx, dg)
			if err != nil {
				return err
			}
			dg.ID = id

			loss, err := s.adjustments.RecordDamageLossInTx(ctx, tx, dg.ID, pick.Cost(), fmt.Sprintf("damaged goods: %s", in.Reason))
			if err != nil {
				return err
			}
			records = append(records, DamageRecord{DamagedGoods: dg, Adjustment: *loss})
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("record damage failed", zap.Uint("productId", in.ProductID), zap.Int("quantity", in.Quantity), zap.Error(err))
		return nil, err
	}

	s.logger.Info("damage recorded",
		zap.Uint("productId", in.ProductID),
		zap.Int("quantity", in.Quantity),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// DeleteDamage removes a damaged goods record and its loss adjustment. Stock
// written off from a batch goes back onto it.
func (s *LedgerService) DeleteDamage(ctx context.Context, damagedGoodsID uint) error {
	err := s.txm.RunInTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		dg, err := s.damaged.FindByIDForUpdate(ctx, tx, damagedGoodsID)
		if err != nil {
			return err
		}

		if err := s.adjustments.DeleteForDamagedGoodsInTx(ctx, tx, dg.ID); err != nil {
			return err
		}

		if dg.Source.RemovesStock() && dg.InventoryBatchID != nil {
			uow := inventory.NewUnitOfWork(tx, s.batches, s.txns, s.now())
			if err := uow.LoadBatches(ctx, *dg.InventoryBatchID); err != nil {
				return err
			}
			reason := fmt.Sprintf("damaged goods %d deleted", dg.ID)
			if err := uow.Increase(*dg.InventoryBatchID, dg.Quantity, domain.TransactionAdjustment, reason); err != nil {
				return err
			}
			if err := uow.Flush(ctx); err != nil {
				return err
			}
		}

		return s.damaged.Delete(ctx, tx, dg.ID)
	})
	if err != nil {
		s.logger.Warn("delete damage failed", zap.Uint("damagedGoodsId", damagedGoodsID), zap.Error(err))
		return err
	}

	s.logger.Info("damage deleted", zap.Uint("damagedGoodsId", damagedGoodsID))
	return nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, productID uint, limit int) ([]domain.InventoryTransaction, error) {
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.txns.ListByProduct(ctx, productID, limit)
}

func (s *LedgerService) LowStock(ctx context.Context) ([]domain.Batch, error) {
	return s.batches.FindLowStock(ctx)
}

// ExpiringBatches lists active batches with stock whose expiry falls within
// the next days, including already expired ones.
func (s *LedgerService) ExpiringBatches(ctx context.Context, days int) ([]domain.Batch, error) {
	if days < 0 {
		return nil, apperrors.NewValidationError("days must not be negative",
			apperrors.ValidationDetail{Field: "days", Message: "days must not be negative"})
	}
	until := s.now().AddDate(0, 0, days)
	return s.batches.FindExpiringBefore(ctx, until)
}
