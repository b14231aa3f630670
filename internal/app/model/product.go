package model

import (
	"time"
)

// Product 상품 모델. AverageRating, TotalReviews 는 리뷰에서 계산되는 비정규화 값
type Product struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	Name          string    `gorm:"not null" json:"name"`
	Description   string    `gorm:"type:text" json:"description"`
	Price         float64   `gorm:"not null" json:"price"`
	Category      *string   `gorm:"type:varchar(100);index" json:"category"`
	ImageURL      string    `json:"image_url"`
	AverageRating float64   `gorm:"not null;default:0" json:"average_rating"` // 소수점 1자리
	TotalReviews  int       `gorm:"not null;default:0" json:"total_reviews"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Reviews []Review `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Product) TableName() string {
	return "products"
}
