package usecase

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"larder/internal/domain"
	apperrors "larder/internal/errors"
	"larder/internal/infrastructure/metrics"
	"larder/internal/infrastructure/mysql"
	"larder/internal/order/service"
)

type OrderService interface {
	Create(ctx context.Context, in service.CreateOrderInput) (*domain.Order, error)
	Get(ctx context.Context, orderID uint) (*domain.Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
	Confirm(ctx context.Context, orderID uint) (*domain.Order, error)
	Cancel(ctx context.Context, orderID uint) (*domain.Order, error)
	AssignDelivery(ctx context.Context, orderID, deliveryID uint) (*domain.Order, error)
	Ship(ctx context.Context, orderID uint) (*domain.Order, error)
	Deliver(ctx context.Context, orderID uint) (*domain.Order, error)
	Complete(ctx context.Context, orderID uint) (*domain.Order, error)
	Return(ctx context.Context, orderID uint, in service.ReturnInput) (*domain.Order, error)
}

type IdempotencyStore interface {
	Acquire(ctx context.Context, key string) (orderID uint, ok bool, err error)
	Complete(ctx context.Context, key string, orderID uint) error
	Release(ctx context.Context, key string) error
}

// Wait after failed attempt 1, 2, ... Later attempts reuse the last entry.
var backoffs = []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}

type OrderUseCase struct {
	orders           OrderService
	idempotency      IdempotencyStore
	logger           *zap.Logger
	maxRetryAttempts int
	sleep            func(ctx context.Context, d time.Duration) error
}

func NewOrderUseCase(
	orders OrderService,
	idempotency IdempotencyStore,
	logger *zap.Logger,
	maxRetryAttempts int,
) *OrderUseCase {
	if maxRetryAttempts < 1 {
		maxRetryAttempts = 1
	}
	return &OrderUseCase{
		orders:           orders,
		idempotency:      idempotency,
		logger:           logger,
		maxRetryAttempts: maxRetryAttempts,
		sleep:            sleepContext,
	}
}

// PlaceOrder creates an order, replaying the original when key was already
// used. replayed reports whether the returned order existed before the call.
func (uc *OrderUseCase) PlaceOrder(ctx context.Context, in service.CreateOrderInput, key string) (order *domain.Order, replayed bool, err error) {
	if key == "" {
		order, err = withRetry(ctx, uc, service.ActionCreate, func() (*domain.Order, error) {
			return uc.orders.Create(ctx, in)
		})
		return order, false, err
	}

	existingID, acquired, err := uc.idempotency.Acquire(ctx, key)
	if err != nil {
		// The unique key on orders still rejects duplicates.
		uc.logger.Warn("idempotency store unavailable", zap.String("idempotencyKey", key), zap.Error(err))
		acquired = true
	}
	if !acquired {
		if existingID == 0 {
			return nil, false, apperrors.NewConflictError("an order with this idempotency key is still being processed")
		}
		order, err = uc.orders.Get(ctx, existingID)
		return order, true, err
	}

	in.IdempotencyKey = &key
	order, err = withRetry(ctx, uc, service.ActionCreate, func() (*domain.Order, error) {
		return uc.orders.Create(ctx, in)
	})
	if err != nil {
		if _, ok := apperrors.IsConflictError(err); ok {
			existing, findErr := uc.orders.GetByIdempotencyKey(ctx, key)
			if findErr == nil {
				uc.complete(ctx, key, existing.ID)
				return existing, true, nil
			}
		}
		if releaseErr := uc.idempotency.Release(ctx, key); releaseErr != nil {
			uc.logger.Warn("failed to release idempotency key", zap.String("idempotencyKey", key), zap.Error(releaseErr))
		}
		return nil, false, err
	}

	uc.complete(ctx, key, order.ID)
	return order, false, nil
}

func (uc *OrderUseCase) complete(ctx context.Context, key string, orderID uint) {
	if err := uc.idempotency.Complete(ctx, key, orderID); err != nil {
		uc.logger.Warn("failed to record idempotency key", zap.String("idempotencyKey", key), zap.Uint("orderId", orderID), zap.Error(err))
	}
}

func (uc *OrderUseCase) Get(ctx context.Context, orderID uint) (*domain.Order, error) {
	return uc.orders.Get(ctx, orderID)
}

func (uc *OrderUseCase) Confirm(ctx context.Context, orderID uint) (*domain.Order, error) {
	return withRetry(ctx, uc, service.ActionConfirm, func() (*domain.Order, error) {
		return uc.orders.Confirm(ctx, orderID)
	})
}

func (uc *OrderUseCase) Cancel(ctx context.Context, orderID uint) (*domain.Order, error) {
	return withRetry(ctx, uc, service.ActionCancel, func() (*domain.Order, error) {
		return uc.orders.Cancel(ctx, orderID)
	})
}

func (uc *OrderUseCase) AssignDelivery(ctx context.Context, orderID, deliveryID uint) (*domain.Order, error) {
	return withRetry(ctx, uc, service.ActionAssignDelivery, func() (*domain.Order, error) {
		return uc.orders.AssignDelivery(ctx, orderID, deliveryID)
	})
}

func (uc *OrderUseCase) Ship(ctx context.Context, orderID uint) (*domain.Order, error) {
	return withRetry(ctx, uc, service.ActionShip, func() (*domain.Order, error) {
		return uc.orders.Ship(ctx, orderID)
	})
}

func (uc *OrderUseCase) Deliver(ctx context.Context, orderID uint) (*domain.Order, error) {
	return withRetry(ctx, uc, service.ActionDeliver, func() (*domain.Order, error) {
		return uc.orders.Deliver(ctx, orderID)
	})
}

func (uc *OrderUseCase) Complete(ctx context.Context, orderID uint) (*domain.Order, error) {
	return withRetry(ctx, uc, service.ActionComplete, func() (*domain.Order, error) {
		return uc.orders.Complete(ctx, orderID)
	})
}

func (uc *OrderUseCase) Return(ctx context.Context, orderID uint, in service.ReturnInput) (*domain.Order, error) {
	return withRetry(ctx, uc, service.ActionReturn, func() (*domain.Order, error) {
		return uc.orders.Return(ctx, orderID, in)
	})
}

// withRetry reruns op while MySQL reports a deadlock or lock wait timeout.
// Each attempt is a whole new transaction.
func withRetry[T any](ctx context.Context, uc *OrderUseCase, action string, op func() (T, error)) (T, error) {
	var zero T
	for attempt := 1; attempt <= uc.maxRetryAttempts; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}
		if !mysql.IsDeadlock(err) {
			return zero, err
		}
		if attempt == uc.maxRetryAttempts {
			break
		}

		metrics.ObserveRetry(action)
		uc.logger.Warn("deadlock detected, retrying",
			zap.String("action", action),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", uc.maxRetryAttempts),
		)
		if err := uc.sleep(ctx, backoff(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, apperrors.NewDeadlockError("max retries exceeded")
}

// backoff returns the wait after a failed attempt with +/-20% jitter.
func backoff(attempt int) time.Duration {
	base := backoffs[min(attempt-1, len(backoffs)-1)]
	jitter := time.Duration(float64(base) * (rand.Float64()*0.4 - 0.2))
	return base + jitter
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
