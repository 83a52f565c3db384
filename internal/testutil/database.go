package testutil

import (
	"fmt"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// SetupTestDB opens the MySQL test database. It expects a database called
// 'larder_test' on localhost:3306 and skips the test when it is unreachable.
func SetupTestDB(t *testing.T) *sqlx.DB {
	dsn := "root:@tcp(localhost:3306)/larder_test?parseTime=true&clientFoundRows=true"
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.Ping()
	if err != nil {
		t.Skipf("test database not available: %v", err)
	}

	return db
}

// CleanupTestDB empties every table and closes the connection.
func CleanupTestDB(t *testing.T, db *sqlx.DB) {
	if db == nil {
		return
	}

	tables := []string{
		"adjustments", "damaged_goods", "return_items", "order_item_batches", "order_items",
		"orders", "inventory_transactions", "inventory_batches", "products", "clients", "deliveries",
	}
	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}

	db.Close()
}

// SetupTestTables creates the schema used by the repositories.
func SetupTestTables(t *testing.T, db *sqlx.DB) {
	tables := []struct {
		name  string
		query string
	}{
		{"products", `
		CREATE TABLE IF NOT EXISTS products (
			id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			name_en VARCHAR(255) NOT NULL,
			name_ar VARCHAR(255) NOT NULL DEFAULT '',
			price DECIMAL(12,2) NOT NULL,
			max_order_quantity INT NOT NULL DEFAULT 0,
			is_active TINYINT(1) NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`},
		{"inventory_batches", `
		CREATE TABLE IF NOT EXISTS inventory_batches (
			id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			product_id INT UNSIGNED NOT NULL,
			quantity INT NOT NULL DEFAULT 0,
			reserved_quantity INT NOT NULL DEFAULT 0,
			unit_cost DECIMAL(12,2) NOT NULL DEFAULT 0.00,
			expiry_date DATE NULL,
			batch_number VARCHAR(100) NULL,
			minimum_alert_quantity INT NOT NULL DEFAULT 0,
			is_active TINYINT(1) NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			CONSTRAINT chk_batch_reserved CHECK (reserved_quantity >= 0 AND reserved_quantity <= quantity),
			INDEX idx_batch_product (product_id)
		)`},
		{"inventory_transactions", `
		CREATE TABLE IF NOT EXISTS inventory_transactions (
			id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			batch_id INT UNSIGNED NOT NULL,
			product_id INT UNSIGNED NOT NULL,
			order_id INT UNSIGNED NULL,
			quantity_change INT NOT NULL,
			reserved_change INT NOT NULL,
			cost_price DECIMAL(12,2) NOT NULL,
			transaction_type VARCHAR(20) NOT NULL,
			reason VARCHAR(255) NOT NULL,
			expiry_date_snapshot DATE NULL,
			batch_number_snapshot VARCHAR(100) NULL,
			created_at DATETIME NOT NULL,
			INDEX idx_txn_product (product_id),
			INDEX idx_txn_order (order_id)
		)`},
		{"clients", `
		CREATE TABLE IF NOT EXISTS clients (
			id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			suspended TINYINT(1) NOT NULL DEFAULT 0
		)`},
		{"deliveries", `
		CREATE TABLE IF NOT EXISTS deliveries (
			id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'available'
		)`},
		{"orders", `
		CREATE TABLE IF NOT EXISTS orders (
			id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			client_id INT UNSIGNED NULL,
			client_name VARCHAR(255) NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			order_source VARCHAR(20) NOT NULL,
			delivery_method VARCHAR(20) NOT NULL,
			address_details VARCHAR(500) NOT NULL DEFAULT '',
			latitude DOUBLE NULL,
			longitude DOUBLE NULL,
			total_amount DECIMAL(12,2) NOT NULL DEFAULT 0.00,
			cost_price DECIMAL(12,2) NOT NULL DEFAULT 0.00,
			delivery_id INT UNSIGNED NULL,
			idempotency_key VARCHAR(100) NULL UNIQUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`},
		{"order_items", `
		CREATE TABLE IF NOT EXISTS order_items (
			id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			order_id INT UNSIGNED NOT NULL,
			product_id INT UNSIGNED NOT NULL,
			quantity INT NOT NULL,
			unit_price DECIMAL(12,2) NOT NULL,
			returned_quantity INT NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'normal',
			FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE,
			INDEX idx_item_order (order_id)
		)`},
		{"order_item_batches", `
		CREATE TABLE IF NOT EXISTS order_item_batches (
			id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			order_item_id INT UNSIGNED NOT NULL,
			batch_id INT UNSIGNED NOT NULL,
			product_id INT UNSIGNED NOT NULL,
			quantity INT NOT NULL,
			unit_cost DECIMAL(12,2) NOT NULL,
			fulfilled TINYINT(1) NOT NULL DEFAULT 0,
			returned_quantity INT NOT NULL DEFAULT 0,
			FOREIGN KEY (order_item_id) REFERENCES order_items(id) ON DELETE CASCADE
		)`},
		{"return_items", `
		CREATE TABLE IF NOT EXISTS return_items (
			id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			order_item_id INT UNSIGNED NOT NULL,
			quantity INT NOT NULL,
			reason VARCHAR(255) NOT NULL,
			restock TINYINT(1) NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`},
		{"damaged_goods", `
		CREATE TABLE IF NOT EXISTS damaged_goods (
			id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			product_id INT UNSIGNED NOT NULL,
			inventory_batch_id INT UNSIGNED NULL,
			return_item_id INT UNSIGNED NULL,
			quantity INT NOT NULL,
			reason VARCHAR(255) NOT NULL,
			source VARCHAR(20) NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`},
		{"adjustments", `
		CREATE TABLE IF NOT EXISTS adjustments (
			id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			kind VARCHAR(10) NOT NULL,
			amount DECIMAL(12,2) NOT NULL,
			reason VARCHAR(255) NOT NULL,
			date DATE NOT NULL,
			source_kind VARCHAR(20) NOT NULL DEFAULT 'none',
			damaged_goods_id INT UNSIGNED NULL,
			CONSTRAINT chk_adjustment_amount CHECK (amount >= 0),
			INDEX idx_adjustment_damaged (damaged_goods_id)
		)`},
	}

	for _, tbl := range tables {
		_, err := db.Exec(tbl.query)
		if err != nil {
			t.Logf("failed to create table %s: %v", tbl.name, err)
		}
	}
}
