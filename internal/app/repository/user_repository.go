package repository

import (
	"context"

	"github.com/ikkim/productreview-backend/internal/app/model"
	"github.com/ikkim/productreview-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	UpsertByEmail(ctx context.Context, user *model.User) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	logger.Debug("Creating user in database", map[string]interface{}{
		"email": user.Email,
	})

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		logger.Error("Failed to create user in database", err, map[string]interface{}{
			"email": user.Email,
		})
		return err
	}

	logger.Debug("User created in database", map[string]interface{}{
		"user_id": user.ID,
	})
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		logger.Debug("User not loaded by ID", map[string]interface{}{
			"user_id": id,
			"error":   err.Error(),
		})
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpsertByEmail 이메일 기준 생성 또는 이름/권한 갱신 (시드 데이터용)
func (r *userRepository) UpsertByEmail(ctx context.Context, user *model.User) error {
	logger.Debug("Upserting user by email", map[string]interface{}{
		"email": user.Email,
	})

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "role", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		logger.Error("Failed to upsert user", err, map[string]interface{}{
			"email": user.Email,
		})
		return err
	}

	// ON CONFLICT 경로에서는 드라이버에 따라 ID 가 채워지지 않음
	if user.ID == 0 {
		existing, err := r.FindByEmail(ctx, user.Email)
		if err != nil {
			return err
		}
		user.ID = existing.ID
	}
	return nil
}
