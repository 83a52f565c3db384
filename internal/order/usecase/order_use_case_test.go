package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"larder/internal/domain"
	apperrors "larder/internal/errors"
	"larder/internal/order/service"
)

func createDeadlockError() error {
	return &gomysql.MySQLError{Number: 1213}
}

type mockOrderService struct {
	CreateFunc              func(ctx context.Context, in service.CreateOrderInput) (*domain.Order, error)
	GetFunc                 func(ctx context.Context, orderID uint) (*domain.Order, error)
	GetByIdempotencyKeyFunc func(ctx context.Context, key string) (*domain.Order, error)
	CancelFunc              func(ctx context.Context, orderID uint) (*domain.Order, error)
	ReturnFunc              func(ctx context.Context, orderID uint, in service.ReturnInput) (*domain.Order, error)
}

func (m *mockOrderService) Create(ctx context.Context, in service.CreateOrderInput) (*domain.Order, error) {
	return m.CreateFunc(ctx, in)
}

func (m *mockOrderService) Get(ctx context.Context, orderID uint) (*domain.Order, error) {
	return m.GetFunc(ctx, orderID)
}

func (m *mockOrderService) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	return m.GetByIdempotencyKeyFunc(ctx, key)
}

func (m *mockOrderService) Confirm(ctx context.Context, orderID uint) (*domain.Order, error) {
	return &domain.Order{ID: orderID, Status: domain.OrderStatusConfirmed}, nil
}

func (m *mockOrderService) Cancel(ctx context.Context, orderID uint) (*domain.Order, error) {
	return m.CancelFunc(ctx, orderID)
}

func (m *mockOrderService) AssignDelivery(ctx context.Context, orderID, deliveryID uint) (*domain.Order, error) {
	return &domain.Order{ID: orderID, DeliveryID: &deliveryID}, nil
}

func (m *mockOrderService) Ship(ctx context.Context, orderID uint) (*domain.Order, error) {
	return &domain.Order{ID: orderID, Status: domain.OrderStatusShipped}, nil
}

func (m *mockOrderService) Deliver(ctx context.Context, orderID uint) (*domain.Order, error) {
	return &domain.Order{ID: orderID, Status: domain.OrderStatusDelivered}, nil
}

func (m *mockOrderService) Complete(ctx context.Context, orderID uint) (*domain.Order, error) {
	return &domain.Order{ID: orderID, Status: domain.OrderStatusDone}, nil
}

func (m *mockOrderService) Return(ctx context.Context, orderID uint, in service.ReturnInput) (*domain.Order, error) {
	return m.ReturnFunc(ctx, orderID, in)
}

type mockIdempotencyStore struct {
	AcquireFunc func(ctx context.Context, key string) (uint, bool, error)
	completed   map[string]uint
	released    []string
}

func (m *mockIdempotencyStore) Acquire(ctx context.Context, key string) (uint, bool, error) {
	return m.AcquireFunc(ctx, key)
}

func (m *mockIdempotencyStore) Complete(_ context.Context, key string, orderID uint) error {
	if m.completed == nil {
		m.completed = make(map[string]uint)
	}
	m.completed[key] = orderID
	return nil
}

func (m *mockIdempotencyStore) Release(_ context.Context, key string) error {
	m.released = append(m.released, key)
	return nil
}

func acquireAlways(context.Context, string) (uint, bool, error) { return 0, true, nil }

func newTestOrderUseCase(svc OrderService, idem IdempotencyStore) *OrderUseCase {
	uc := NewOrderUseCase(svc, idem, zap.NewNop(), 3)
	uc.sleep = func(context.Context, time.Duration) error { return nil }
	return uc
}

func TestPlaceOrder_Success(t *testing.T) {
	idem := &mockIdempotencyStore{AcquireFunc: acquireAlways}
	svc := &mockOrderService{
		CreateFunc: func(ctx context.Context, in service.CreateOrderInput) (*domain.Order, error) {
			require.NotNil(t, in.IdempotencyKey)
			assert.Equal(t, "abc", *in.IdempotencyKey)
			return &domain.Order{ID: 7}, nil
		},
	}

	order, replayed, err := newTestOrderUseCase(svc, idem).PlaceOrder(context.Background(), service.CreateOrderInput{}, "abc")

	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, uint(7), order.ID)
	assert.Equal(t, uint(7), idem.completed["abc"])
}

func TestPlaceOrder_WithoutKeySkipsStore(t *testing.T) {
	idem := &mockIdempotencyStore{
		AcquireFunc: func(context.Context, string) (uint, bool, error) {
			t.Fatal("store must not be consulted without a key")
			return 0, false, nil
		},
	}
	svc := &mockOrderService{
		CreateFunc: func(ctx context.Context, in service.CreateOrderInput) (*domain.Order, error) {
			assert.Nil(t, in.IdempotencyKey)
			return &domain.Order{ID: 1}, nil
		},
	}

	_, replayed, err := newTestOrderUseCase(svc, idem).PlaceOrder(context.Background(), service.CreateOrderInput{}, "")
	require.NoError(t, err)
	assert.False(t, replayed)
}

func TestPlaceOrder_ReplaysCompletedKey(t *testing.T) {
	idem := &mockIdempotencyStore{
		AcquireFunc: func(context.Context, string) (uint, bool, error) { return 42, false, nil },
	}
	svc := &mockOrderService{
		CreateFunc: func(context.Context, service.CreateOrderInput) (*domain.Order, error) {
			t.Fatal("duplicate submit must not create an order")
			return nil, nil
		},
		GetFunc: func(_ context.Context, orderID uint) (*domain.Order, error) {
			return &domain.Order{ID: orderID}, nil
		},
	}

	order, replayed, err := newTestOrderUseCase(svc, idem).PlaceOrder(context.Background(), service.CreateOrderInput{}, "abc")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, uint(42), order.ID)
}

func TestPlaceOrder_InFlightKeyConflicts(t *testing.T) {
	idem := &mockIdempotencyStore{
		AcquireFunc: func(context.Context, string) (uint, bool, error) { return 0, false, nil },
	}

	_, _, err := newTestOrderUseCase(&mockOrderService{}, idem).PlaceOrder(context.Background(), service.CreateOrderInput{}, "abc")
	_, ok := apperrors.IsConflictError(err)
	assert.True(t, ok)
}

func TestPlaceOrder_DuplicateInsertReturnsExisting(t *testing.T) {
	idem := &mockIdempotencyStore{AcquireFunc: acquireAlways}
	svc := &mockOrderService{
		CreateFunc: func(context.Context, service.CreateOrderInput) (*domain.Order, error) {
			return nil, apperrors.NewConflictError("an order with this idempotency key already exists")
		},
		GetByIdempotencyKeyFunc: func(_ context.Context, key string) (*domain.Order, error) {
			return &domain.Order{ID: 9}, nil
		},
	}

	order, replayed, err := newTestOrderUseCase(svc, idem).PlaceOrder(context.Background(), service.CreateOrderInput{}, "abc")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, uint(9), order.ID)
	assert.Equal(t, uint(9), idem.completed["abc"])
}

func TestPlaceOrder_FailureReleasesKey(t *testing.T) {
	idem := &mockIdempotencyStore{AcquireFunc: acquireAlways}
	svc := &mockOrderService{
		CreateFunc: func(context.Context, service.CreateOrderInput) (*domain.Order, error) {
			return nil, apperrors.NewInsufficientStockError(1, 25, 20)
		},
	}

	_, _, err := newTestOrderUseCase(svc, idem).PlaceOrder(context.Background(), service.CreateOrderInput{}, "abc")
	_, ok := apperrors.IsInsufficientStockError(err)
	assert.True(t, ok)
	assert.Equal(t, []string{"abc"}, idem.released)
	assert.Empty(t, idem.completed)
}

func TestPlaceOrder_StoreOutageFallsBackToDatabase(t *testing.T) {
	idem := &mockIdempotencyStore{
		AcquireFunc: func(context.Context, string) (uint, bool, error) { return 0, false, errors.New("connection refused") },
	}
	svc := &mockOrderService{
		CreateFunc: func(context.Context, service.CreateOrderInput) (*domain.Order, error) {
			return &domain.Order{ID: 3}, nil
		},
	}

	order, _, err := newTestOrderUseCase(svc, idem).PlaceOrder(context.Background(), service.CreateOrderInput{}, "abc")
	require.NoError(t, err)
	assert.Equal(t, uint(3), order.ID)
}

func TestPlaceOrder_RetriesDeadlock(t *testing.T) {
	calls := 0
	svc := &mockOrderService{
		CreateFunc: func(context.Context, service.CreateOrderInput) (*domain.Order, error) {
			calls++
			if calls < 3 {
				return nil, createDeadlockError()
			}
			return &domain.Order{ID: 5}, nil
		},
	}

	order, _, err := newTestOrderUseCase(svc, &mockIdempotencyStore{AcquireFunc: acquireAlways}).PlaceOrder(context.Background(), service.CreateOrderInput{}, "")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, uint(5), order.ID)
}

func TestCancel_MaxRetriesExceeded(t *testing.T) {
	calls := 0
	svc := &mockOrderService{
		CancelFunc: func(context.Context, uint) (*domain.Order, error) {
			calls++
			return nil, createDeadlockError()
		},
	}

	_, err := newTestOrderUseCase(svc, nil).Cancel(context.Background(), 1)
	_, ok := apperrors.IsDeadlockError(err)
	assert.True(t, ok)
	assert.Equal(t, 3, calls)
}

func TestReturn_NonDeadlockErrorIsNotRetried(t *testing.T) {
	calls := 0
	svc := &mockOrderService{
		ReturnFunc: func(context.Context, uint, service.ReturnInput) (*domain.Order, error) {
			calls++
			return nil, apperrors.NewInvalidTransitionError(service.ActionReturn, "done")
		},
	}

	_, err := newTestOrderUseCase(svc, nil).Return(context.Background(), 1, service.ReturnInput{})
	_, ok := apperrors.IsInvalidTransitionError(err)
	assert.True(t, ok)
	assert.Equal(t, 1, calls)
}

func TestRetry_StopsWhenContextCanceled(t *testing.T) {
	svc := &mockOrderService{
		CancelFunc: func(context.Context, uint) (*domain.Order, error) {
			return nil, createDeadlockError()
		},
	}
	uc := NewOrderUseCase(svc, nil, zap.NewNop(), 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := uc.Cancel(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffJitterBounds(t *testing.T) {
	for attempt := 1; attempt <= 5; attempt++ {
		base := backoffs[min(attempt-1, len(backoffs)-1)]
		for i := 0; i < 20; i++ {
			d := backoff(attempt)
			assert.GreaterOrEqual(t, d, base*8/10)
			assert.LessOrEqual(t, d, base*12/10)
		}
	}
}
