package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"larder/internal/domain"
	"larder/internal/errors"
	"larder/internal/testutil"
)

func insertBatch(t *testing.T, repo *MySQLBatchRepository, db *sqlx.DB, b domain.Batch) uint {
	t.Helper()

	tx, err := db.Beginx()
	require.NoError(t, err)
	id, err := repo.Insert(context.Background(), tx, b)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return id
}

func date(y int, m time.Month, d int) *time.Time {
	v := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &v
}

func TestBatchRepository_InsertAndFind(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLBatchRepository(db)
	number := "LOT-1"

	id := insertBatch(t, repo, db, domain.Batch{
		ProductID: 1, Quantity: 10, UnitCost: decimal.RequireFromString("2.00"),
		ExpiryDate: date(2025, 1, 1), BatchNumber: &number, MinimumAlertQuantity: 2, IsActive: true,
	})

	batch, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 10, batch.Quantity)
	assert.Equal(t, 0, batch.ReservedQuantity)
	require.NotNil(t, batch.BatchNumber)
	assert.Equal(t, "LOT-1", *batch.BatchNumber)
	assert.True(t, batch.UnitCost.Equal(decimal.RequireFromString("2.00")))

	_, err = repo.FindByID(context.Background(), 9999)
	_, ok := errors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestBatchRepository_UpdateQuantities(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLBatchRepository(db)
	ctx := context.Background()

	id := insertBatch(t, repo, db, domain.Batch{ProductID: 1, Quantity: 10, IsActive: true})

	tx, err := db.Beginx()
	require.NoError(t, err)
	locked, err := repo.FindByIDsForUpdate(ctx, tx, []uint{id})
	require.NoError(t, err)
	require.Len(t, locked, 1)

	b := locked[0]
	b.ReservedQuantity = 4
	require.NoError(t, repo.UpdateQuantities(ctx, tx, b))
	require.NoError(t, tx.Commit())

	batch, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, batch.ReservedQuantity)
	assert.Equal(t, 6, batch.Available())
}

func TestBatchRepository_LowStockAndExpiring(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLBatchRepository(db)
	ctx := context.Background()

	low := insertBatch(t, repo, db, domain.Batch{
		ProductID: 1, Quantity: 3, MinimumAlertQuantity: 5, ExpiryDate: date(2025, 1, 1), IsActive: true,
	})
	insertBatch(t, repo, db, domain.Batch{
		ProductID: 1, Quantity: 50, MinimumAlertQuantity: 5, ExpiryDate: date(2025, 6, 1), IsActive: true,
	})
	inactive := insertBatch(t, repo, db, domain.Batch{
		ProductID: 2, Quantity: 1, MinimumAlertQuantity: 5, ExpiryDate: date(2024, 12, 20), IsActive: true,
	})

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.SetActive(ctx, tx, inactive, false))
	require.NoError(t, tx.Commit())

	lowStock, err := repo.FindLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, lowStock, 1)
	assert.Equal(t, low, lowStock[0].ID)

	expiring, err := repo.FindExpiringBefore(ctx, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, low, expiring[0].ID)
}

func TestBatchRepository_FindByProductForUpdate_SerializesLastUnit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLBatchRepository(db)
	ctx := context.Background()

	id := insertBatch(t, repo, db, domain.Batch{ProductID: 1, Quantity: 1, IsActive: true})

	// First checkout locks the batch and takes the last unit.
	tx1, err := db.Beginx()
	require.NoError(t, err)
	locked, err := repo.FindByProductForUpdate(ctx, tx1, 1)
	require.NoError(t, err)
	require.Len(t, locked, 1)
	require.Equal(t, 1, locked[0].Available())

	// Second checkout blocks on the same rows until the first commits.
	tx2, err := db.Beginx()
	require.NoError(t, err)
	seen := make(chan []domain.Batch, 1)
	errs := make(chan error, 1)
	go func() {
		batches, err := repo.FindByProductForUpdate(ctx, tx2, 1)
		errs <- err
		seen <- batches
	}()

	time.Sleep(100 * time.Millisecond)
	select {
	case <-errs:
		t.Fatal("second lock acquired while the first transaction was open")
	default:
	}

	b := locked[0]
	b.ReservedQuantity = 1
	require.NoError(t, repo.UpdateQuantities(ctx, tx1, b))
	require.NoError(t, tx1.Commit())

	require.NoError(t, <-errs)
	batches := <-seen
	require.Len(t, batches, 1)
	assert.Equal(t, id, batches[0].ID)
	assert.Equal(t, 0, batches[0].Available())
	require.NoError(t, tx2.Rollback())
}
