// Package testutil provides an isolated in-process database per test.
// Transactional behavior (rollback, guarded decrements, unique-constraint
// conflicts) is exercised against a real store rather than mocked SQL.
package testutil

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nexus-commerce/api/models"
)

// OpenDB returns a fresh database with the full schema migrated.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}
	return db
}

var userSeq int

// SeedUser creates a user with a unique email.
func SeedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	userSeq++
	user := models.User{
		Email: fmt.Sprintf("user%d-%s@example.com", userSeq, uuid.NewString()[:8]),
		Name:  fmt.Sprintf("Test User %d", userSeq),
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return &user
}

// SeedAddress creates an address owned by userID.
func SeedAddress(t *testing.T, db *gorm.DB, userID uuid.UUID) *models.Address {
	t.Helper()

	address := models.Address{
		UserID:  userID,
		Country: "KE",
		City:    "Nairobi",
		Street:  "Moi Avenue 12",
	}
	if err := db.Create(&address).Error; err != nil {
		t.Fatalf("failed to seed address: %v", err)
	}
	return &address
}

// SeedProduct creates a product with the given price (decimal string) and
// stock.
func SeedProduct(t *testing.T, db *gorm.DB, name, price string, stock int) *models.Product {
	t.Helper()

	product := models.Product{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("failed to seed product %s: %v", name, err)
	}
	return &product
}
