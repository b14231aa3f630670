package model

import (
	"time"
)

// ReviewTag 상품별 리뷰 태그 사용 횟수. TagName 은 정규화(trim + 소문자)된 값
type ReviewTag struct {
	ProductID uint      `gorm:"primaryKey" json:"product_id"`
	TagName   string    `gorm:"primaryKey;type:varchar(50)" json:"tagName"`
	Count     int       `gorm:"column:usage_count;not null;default:1" json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ReviewTag) TableName() string {
	return "review_tags"
}
