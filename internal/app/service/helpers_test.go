package service

import (
	"testing"
	"time"

	"github.com/ikkim/productreview-backend/internal/app/model"
	"github.com/ikkim/productreview-backend/internal/app/repository"
	"github.com/ikkim/productreview-backend/internal/db"
	"github.com/ikkim/productreview-backend/internal/rating"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testDeps struct {
	db         *gorm.DB
	products   repository.ProductRepository
	reviews    repository.ReviewRepository
	tags       repository.ReviewTagRepository
	aggregates AggregateService
	stats      StatsService
}

func setupServiceTest(t *testing.T, policy rating.TotalPolicy, statsOpts ...StatsOption) *testDeps {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	products := repository.NewProductRepository(testDB)
	reviews := repository.NewReviewRepository(testDB)
	tags := repository.NewReviewTagRepository(testDB)

	return &testDeps{
		db:         testDB,
		products:   products,
		reviews:    reviews,
		tags:       tags,
		aggregates: NewAggregateService(testDB, products, reviews, tags, policy),
		stats:      NewStatsService(products, reviews, tags, 10, statsOpts...),
	}
}

func seedUser(t *testing.T, testDB *gorm.DB, email string, role model.UserRole) *model.User {
	user := &model.User{Email: email, Name: email, Role: role}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

func seedProduct(t *testing.T, testDB *gorm.DB, name string) *model.Product {
	product := &model.Product{Name: name, Description: name + " description", Price: 19.99}
	require.NoError(t, testDB.Create(product).Error)
	return product
}

// seedReview inserts a review row directly, bypassing aggregate maintenance.
func seedReview(t *testing.T, testDB *gorm.DB, productID uint, userID *uint, ratingValue *int, comment string, tags []string, createdAt time.Time) *model.Review {
	review := &model.Review{
		ProductID: productID,
		UserID:    userID,
		Rating:    ratingValue,
		Tags:      tags,
		CreatedAt: createdAt,
	}
	if comment != "" {
		review.Comment = &comment
	}
	require.NoError(t, testDB.Create(review).Error)
	return review
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func reloadProduct(t *testing.T, testDB *gorm.DB, id uint) *model.Product {
	var product model.Product
	require.NoError(t, testDB.First(&product, id).Error)
	return &product
}
