package repository

import (
	"context"
	"testing"
	"time"

	"github.com/ikkim/productreview-backend/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedCatalog(t *testing.T, testDB *gorm.DB) []*model.Product {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	products := []*model.Product{
		createTestProduct(t, testDB, "Wireless Headphones", "Electronics", base),
		createTestProduct(t, testDB, "Coffee Maker", "Kitchen", base.Add(time.Hour)),
		createTestProduct(t, testDB, "Smart Watch", "Electronics", base.Add(2*time.Hour)),
		createTestProduct(t, testDB, "Plain Mug", "", base.Add(3*time.Hour)),
	}

	aggregates := []struct {
		avg   float64
		total int
	}{{4.5, 10}, {3.0, 2}, {4.5, 20}, {0, 0}}
	for i, p := range products {
		require.NoError(t, testDB.Model(p).UpdateColumns(map[string]interface{}{
			"average_rating": aggregates[i].avg,
			"total_reviews":  aggregates[i].total,
		}).Error)
	}
	return products
}

func productNames(products []model.Product) []string {
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	return names
}

func TestProductRepository_FindWithFilter(t *testing.T) {
	testDB := setupRepoTest(t)
	repo := NewProductRepository(testDB)
	seedCatalog(t, testDB)
	ctx := context.Background()

	tests := []struct {
		name      string
		filter    ProductFilter
		wantNames []string
		wantTotal int64
	}{
		{
			name:      "newest first by default",
			filter:    ProductFilter{},
			wantNames: []string{"Plain Mug", "Smart Watch", "Coffee Maker", "Wireless Headphones"},
			wantTotal: 4,
		},
		{
			name:      "oldest first",
			filter:    ProductFilter{SortBy: ProductSortOldest, Limit: 2},
			wantNames: []string{"Wireless Headphones", "Coffee Maker"},
			wantTotal: 4,
		},
		{
			name:      "highest rating ties broken by review count",
			filter:    ProductFilter{SortBy: ProductSortHighestRating},
			wantNames: []string{"Smart Watch", "Wireless Headphones", "Coffee Maker", "Plain Mug"},
			wantTotal: 4,
		},
		{
			name:      "lowest rating",
			filter:    ProductFilter{SortBy: ProductSortLowestRating},
			wantNames: []string{"Plain Mug", "Coffee Maker", "Smart Watch", "Wireless Headphones"},
			wantTotal: 4,
		},
		{
			name:      "category filter with pagination",
			filter:    ProductFilter{Category: "Electronics", SortBy: ProductSortOldest, Limit: 1, Offset: 1},
			wantNames: []string{"Smart Watch"},
			wantTotal: 2,
		},
		{
			name:      "case-insensitive search on name and description",
			filter:    ProductFilter{Search: "WATCH"},
			wantNames: []string{"Smart Watch"},
			wantTotal: 1,
		},
		{
			name:      "no match",
			filter:    ProductFilter{Search: "bicycle"},
			wantNames: []string{},
			wantTotal: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, total, err := repo.FindWithFilter(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.wantNames, productNames(products))
		})
	}
}

func TestProductRepository_ListCategories(t *testing.T) {
	testDB := setupRepoTest(t)
	repo := NewProductRepository(testDB)
	seedCatalog(t, testDB)

	categories, err := repo.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Electronics", "Kitchen"}, categories)
}

func TestProductRepository_UpdateAggregates(t *testing.T) {
	testDB := setupRepoTest(t)
	repo := NewProductRepository(testDB)
	ctx := context.Background()
	product := createTestProduct(t, testDB, "Lamp", "", time.Now())

	found, err := repo.UpdateAggregates(ctx, product.ID, 4.7, 4)
	require.NoError(t, err)
	assert.True(t, found)

	stored, err := repo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.7, stored.AverageRating)
	assert.Equal(t, 4, stored.TotalReviews)

	found, err = repo.UpdateAggregates(ctx, 9999, 1, 1)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestProductRepository_UpdateAndDelete(t *testing.T) {
	testDB := setupRepoTest(t)
	repo := NewProductRepository(testDB)
	ctx := context.Background()
	product := createTestProduct(t, testDB, "Lamp", "Home", time.Now())

	require.NoError(t, repo.Update(ctx, product.ID, map[string]interface{}{"price": 25.5}))
	stored, err := repo.FindByIDForUpdate(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 25.5, stored.Price)

	assert.ErrorIs(t, repo.Update(ctx, 9999, map[string]interface{}{"price": 1}), gorm.ErrRecordNotFound)

	require.NoError(t, repo.Delete(ctx, product.ID))
	_, err = repo.FindByID(ctx, product.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, product.ID), gorm.ErrRecordNotFound)
}
