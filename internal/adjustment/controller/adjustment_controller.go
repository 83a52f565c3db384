package controller

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	adjustmentservice "larder/internal/adjustment/service"
	"larder/internal/commons"
	"larder/internal/domain"
	"larder/internal/dto"
	apperrors "larder/internal/errors"
)

type AdjustmentService interface {
	Record(ctx context.Context, in adjustmentservice.AdjustmentInput) (*domain.Adjustment, error)
	Update(ctx context.Context, id uint, in adjustmentservice.AdjustmentInput) (*domain.Adjustment, error)
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter domain.AdjustmentFilter) ([]domain.Adjustment, error)
	Summary(ctx context.Context, from, to *time.Time) (domain.AdjustmentSummary, error)
}

type AdjustmentController struct {
	service AdjustmentService
	logger  *zap.Logger
}

func NewAdjustmentController(service AdjustmentService, logger *zap.Logger) *AdjustmentController {
	return &AdjustmentController{
		service: service,
		logger:  logger,
	}
}

func (c *AdjustmentController) Create(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	in, err := decodeAdjustment(r)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	adjustment, err := c.service.Record(r.Context(), in)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	commons.WriteJSON(w, logger, http.StatusCreated, dto.NewAdjustmentResponse(*adjustment))
}

func (c *AdjustmentController) Update(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	id, err := commons.IDParam(r, "adjustmentId")
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	in, err := decodeAdjustment(r)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	adjustment, err := c.service.Update(r.Context(), id, in)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	commons.WriteJSON(w, logger, http.StatusOK, dto.NewAdjustmentResponse(*adjustment))
}

func (c *AdjustmentController) Delete(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	id, err := commons.IDParam(r, "adjustmentId")
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	if err := c.service.Delete(r.Context(), id); err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *AdjustmentController) List(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	from, to, err := dateRange(r)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	filter := domain.AdjustmentFilter{From: from, To: to}
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind := domain.AdjustmentKind(raw)
		if !kind.IsValid() {
			commons.WriteError(w, logger, traceID, apperrors.NewValidationError("invalid kind",
				apperrors.ValidationDetail{Field: "kind", Message: "kind must be gain or loss"}))
			return
		}
		filter.Kind = &kind
	}

	adjustments, err := c.service.List(r.Context(), filter)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	commons.WriteJSON(w, logger, http.StatusOK, map[string]any{
		"adjustments": dto.NewAdjustmentResponses(adjustments),
	})
}

func (c *AdjustmentController) Summary(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	from, to, err := dateRange(r)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	summary, err := c.service.Summary(r.Context(), from, to)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	commons.WriteJSON(w, logger, http.StatusOK, summary)
}

func decodeAdjustment(r *http.Request) (adjustmentservice.AdjustmentInput, error) {
	var req dto.AdjustmentRequest
	if err := commons.DecodeAndValidate(r, &req); err != nil {
		return adjustmentservice.AdjustmentInput{}, err
	}

	date, err := dto.ParseDate(req.Date)
	if err != nil {
		return adjustmentservice.AdjustmentInput{}, apperrors.NewValidationError("invalid date",
			apperrors.ValidationDetail{Field: "date", Message: "date must be YYYY-MM-DD"})
	}

	in := adjustmentservice.AdjustmentInput{
		Kind:   domain.AdjustmentKind(req.Kind),
		Amount: req.Amount,
		Reason: req.Reason,
	}
	if date != nil {
		in.Date = *date
	}
	return in, nil
}

func dateRange(r *http.Request) (*time.Time, *time.Time, error) {
	query := r.URL.Query()
	parse := func(field string) (*time.Time, error) {
		raw := query.Get(field)
		t, err := dto.ParseDate(&raw)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid "+field,
				apperrors.ValidationDetail{Field: field, Message: field + " must be YYYY-MM-DD"})
		}
		return t, nil
	}

	from, err := parse("from")
	if err != nil {
		return nil, nil, err
	}
	to, err := parse("to")
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}
