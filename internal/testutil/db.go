// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/shop_checkout/internal/models"
	"github.com/Skotchmaster/shop_checkout/internal/repo"
	pkgdb "github.com/Skotchmaster/shop_checkout/pkg/db"
)

// NewRepo returns a migrated repo over a private in-memory sqlite database.
func NewRepo(t *testing.T) *repo.GormRepo {
	t.Helper()

	db, err := pkgdb.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pkgdb.Close(db) })

	r := repo.New(db)
	require.NoError(t, r.AutoMigrate(context.Background()))
	return r
}

func SeedProduct(t *testing.T, db *gorm.DB, name, price, sizes string) models.Product {
	t.Helper()
	p := models.Product{
		Name:        name,
		Description: name + " description",
		Price:       decimal.RequireFromString(price),
		Sizes:       sizes,
		Count:       10,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func SeedCartItem(t *testing.T, db *gorm.DB, userID uuid.UUID, p models.Product, size string, qty uint) models.CartItem {
	t.Helper()
	item := models.CartItem{
		UserID:    userID,
		ProductID: p.ID,
		Size:      size,
		Quantity:  qty,
		UnitPrice: p.Price,
	}
	require.NoError(t, db.Create(&item).Error)
	return item
}
