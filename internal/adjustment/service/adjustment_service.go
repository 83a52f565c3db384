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
)

type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error
}

type AdjustmentRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, a domain.Adjustment) (uint, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id uint) (*domain.Adjustment, error)
	FindByDamagedGoods(ctx context.Context, tx *sqlx.Tx, damagedGoodsID uint) ([]domain.Adjustment, error)
	Update(ctx context.Context, tx *sqlx.Tx, a domain.Adjustment) error
	Delete(ctx context.Context, tx *sqlx.Tx, id uint) error
	List(ctx context.Context, filter domain.AdjustmentFilter) ([]domain.Adjustment, error)
}

type AdjustmentInput struct {
	Kind   domain.AdjustmentKind
	Amount decimal.Decimal
	Reason string
	Date   time.Time
}

type AdjustmentService struct {
	txm    TransactionManager
	repo   AdjustmentRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewAdjustmentService(txm TransactionManager, repo AdjustmentRepository, logger *zap.Logger) *AdjustmentService {
	return &AdjustmentService{
		txm:    txm,
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

func (s *AdjustmentService) validate(in AdjustmentInput) error {
	var details []apperrors.ValidationDetail
	if !in.Kind.IsValid() {
		details = append(details, apperrors.ValidationDetail{Field: "kind", Message: "kind must be gain or loss"})
	}
	if in.Amount.IsNegative() {
		details = append(details, apperrors.ValidationDetail{Field: "amount", Message: "amount must not be negative"})
	}
	if in.Reason == "" {
		details = append(details, apperrors.ValidationDetail{Field: "reason", Message: "reason is required"})
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid adjustment", details...)
	}
	return nil
}

func (s *AdjustmentService) build(in AdjustmentInput, source domain.AdjustmentSource) domain.Adjustment {
	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	return domain.Adjustment{
		Kind:   in.Kind,
		Amount: in.Amount,
		Reason: in.Reason,
		Date:   date,
		Source: source,
	}
}

// Record appends a manually entered adjustment.
func (s *AdjustmentService) Record(ctx context.Context, in AdjustmentInput) (*domain.Adjustment, error) {
	var recorded *domain.Adjustment
	err := s.txm.RunInTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		recorded, err = s.RecordInTx(ctx, tx, in, domain.ManualEntrySource())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("adjustment recorded",
		zap.Uint("adjustmentId", recorded.ID),
		zap.String("kind", string(recorded.Kind)),
		zap.String("amount", recorded.Amount.StringFixed(2)),
	)
	return recorded, nil
}

// RecordInTx appends an adjustment inside a transaction owned by the caller,
// so ledger mutations and their financial entry commit together.
func (s *AdjustmentService) RecordInTx(ctx context.Context, tx *sqlx.Tx, in AdjustmentInput, source domain.AdjustmentSource) (*domain.Adjustment, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	a := s.build(in, source)
	id, err := s.repo.Insert(ctx, tx, a)
	if err != nil {
		return nil, err
	}
	a.ID = id
	return &a, nil
}

// RecordDamageLossInTx books the loss for a damaged goods record.
func (s *AdjustmentService) RecordDamageLossInTx(ctx context.Context, tx *sqlx.Tx, damagedGoodsID uint, amount decimal.Decimal, reason string) (*domain.Adjustment, error) {
	return s.RecordInTx(ctx, tx, AdjustmentInput{
		Kind:   domain.AdjustmentLoss,
		Amount: amount,
		Reason: reason,
	}, domain.DamagedGoodsSource(damagedGoodsID))
}

// DeleteForDamagedGoodsInTx removes the adjustments owned by a damaged goods
// record. It is the only path that deletes a locked adjustment.
func (s *AdjustmentService) DeleteForDamagedGoodsInTx(ctx context.Context, tx *sqlx.Tx, damagedGoodsID uint) error {
	linked, err := s.repo.FindByDamagedGoods(ctx, tx, damagedGoodsID)
	if err != nil {
		return err
	}
	for _, a := range linked {
		if err := s.repo.Delete(ctx, tx, a.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *AdjustmentService) Update(ctx context.Context, id uint, in AdjustmentInput) (*domain.Adjustment, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	var updated *domain.Adjustment
	err := s.txm.RunInTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Source.Locked() {
			return lockedError(id)
		}

		next := s.build(in, current.Source)
		next.ID = id
		if err := s.repo.Update(ctx, tx, next); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("adjustment updated", zap.Uint("adjustmentId", id))
	return updated, nil
}

func (s *AdjustmentService) Delete(ctx context.Context, id uint) error {
	err := s.txm.RunInTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Source.Locked() {
			return lockedError(id)
		}
		return s.repo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("adjustment deleted", zap.Uint("adjustmentId", id))
	return nil
}

func lockedError(id uint) error {
	return apperrors.NewConflictError(fmt.Sprintf(
		"adjustment %d is linked to damaged goods and must be changed through the damaged goods record", id))
}

func (s *AdjustmentService) List(ctx context.Context, filter domain.AdjustmentFilter) ([]domain.Adjustment, error) {
	return s.repo.List(ctx, filter)
}

// Summary totals gains and losses dated within [from, to].
func (s *AdjustmentService) Summary(ctx context.Context, from, to *time.Time) (domain.AdjustmentSummary, error) {
	if from != nil && to != nil && to.Before(*from) {
		return domain.AdjustmentSummary{}, apperrors.NewValidationError("invalid date range",
			apperrors.ValidationDetail{Field: "to", Message: "to must not be before from"})
	}

	adjustments, err := s.repo.List(ctx, domain.AdjustmentFilter{From: from, To: to})
	if err != nil {
		return domain.AdjustmentSummary{}, err
	}
	return domain.SummarizeAdjustments(adjustments), nil
}
