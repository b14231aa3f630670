package repository

import (
	"testing"
	"time"

	"github.com/ikkim/productreview-backend/internal/app/model"
	"github.com/ikkim/productreview-backend/internal/db"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRepoTest(t *testing.T) *gorm.DB {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })
	return testDB
}

func createTestUser(t *testing.T, testDB *gorm.DB, email string) *model.User {
	user := &model.User{Email: email, Name: email, Role: model.RoleUser}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

func createTestProduct(t *testing.T, testDB *gorm.DB, name string, category string, createdAt time.Time) *model.Product {
	product := &model.Product{Name: name, Description: name + " description", Price: 10, CreatedAt: createdAt}
	if category != "" {
		product.Category = &category
	}
	require.NoError(t, testDB.Create(product).Error)
	return product
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
