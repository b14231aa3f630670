package db

import (
	"github.com/ikkim/productreview-backend/internal/app/model"
	"github.com/ikkim/productreview-backend/pkg/logger"
	"gorm.io/gorm"
)

// Models 마이그레이션 대상 모델 (의존 순서)
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Product{},
		&model.Review{},
		&model.ReviewHelpfulVote{},
		&model.ReviewTag{},
	}
}

// Migrate runs database migrations on the global connection
func Migrate() error {
	return MigrateDB(DB)
}

// MigrateDB runs database migrations on the given connection
func MigrateDB(conn *gorm.DB) error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := conn.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}
