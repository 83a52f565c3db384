package commons

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"larder/internal/dto"
	apperrors "larder/internal/errors"
)

type ErrorResponse struct {
	TraceID   string                       `json:"traceId"`
	Status    int                          `json:"status"`
	Code      string                       `json:"code"`
	Message   string                       `json:"message"`
	Details   []apperrors.ValidationDetail `json:"details,omitempty"`
	Stock     *StockErrorDetails           `json:"stock,omitempty"`
	Timestamp time.Time                    `json:"timestamp"`
}

type StockErrorDetails struct {
	ProductID uint `json:"productId"`
	Requested int  `json:"requested"`
	Available int  `json:"available"`
}

// NewTrace returns a request trace ID and a logger tagged with it.
func NewTrace(logger *zap.Logger) (string, *zap.Logger) {
	traceID := uuid.New().String()
	return traceID, logger.With(zap.String("traceId", traceID))
}

func WriteJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// WriteError maps the typed error taxonomy onto HTTP statuses.
func WriteError(w http.ResponseWriter, logger *zap.Logger, traceID string, err error) {
	resp := ErrorResponse{
		TraceID:   traceID,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	}

	if ve, ok := apperrors.IsValidationError(err); ok {
		resp.Status, resp.Code, resp.Details = http.StatusBadRequest, "VALIDATION_ERROR", ve.Details
	} else if ise, ok := apperrors.IsInsufficientStockError(err); ok {
		resp.Status, resp.Code = http.StatusConflict, "INSUFFICIENT_STOCK"
		resp.Stock = &StockErrorDetails{ProductID: ise.ProductID, Requested: ise.Requested, Available: ise.Available}
	} else if _, ok := apperrors.IsInvalidTransitionError(err); ok {
		resp.Status, resp.Code = http.StatusConflict, "INVALID_TRANSITION"
	} else if _, ok := apperrors.IsNotFoundError(err); ok {
		resp.Status, resp.Code = http.StatusNotFound, "NOT_FOUND"
	} else if _, ok := apperrors.IsConflictError(err); ok {
		resp.Status, resp.Code = http.StatusConflict, "CONFLICT"
	} else if _, ok := apperrors.IsForbiddenError(err); ok {
		resp.Status, resp.Code = http.StatusForbidden, "FORBIDDEN"
	} else if _, ok := apperrors.IsDeadlockError(err); ok {
		resp.Status, resp.Code = http.StatusConflict, "DEADLOCK"
	} else {
		logger.Error("unexpected error", zap.Error(err))
		resp.Status, resp.Code, resp.Message = http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred"
	}

	if resp.Status < http.StatusInternalServerError {
		logger.Warn("request failed", zap.String("code", resp.Code), zap.Error(err))
	}
	WriteJSON(w, logger, resp.Status, resp)
}

// DecodeAndValidate reads a JSON body into req and runs its validate tags.
func DecodeAndValidate(r *http.Request, req any) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewValidationError("request body is required",
				apperrors.ValidationDetail{Field: "body", Message: "request body must not be empty"})
		}
		return apperrors.NewValidationError("invalid JSON body",
			apperrors.ValidationDetail{Field: "body", Message: "request body must be valid JSON"})
	}
	return dto.Validate(req)
}

// IDParam reads a positive integer path parameter.
func IDParam(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.NewValidationError("invalid "+name, apperrors.ValidationDetail{
			Field:   name,
			Message: name + " must be a positive integer",
		})
	}
	return uint(id), nil
}
