package model

import (
	"time"
)

// Photo 리뷰에 첨부된 사진 메타데이터
type Photo struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
}

// Review 상품 리뷰 모델
type Review struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProductID uint  `gorm:"not null;index;uniqueIndex:idx_review_user_product" json:"product_id"`
	UserID    *uint `gorm:"uniqueIndex:idx_review_user_product" json:"user_id"` // 계정 없는 리뷰(가져오기 데이터)는 nil
	User      *User `gorm:"foreignKey:UserID" json:"user,omitempty"`

	// 계정이 없을 때 표시할 작성자
	ReviewerName  string `gorm:"type:varchar(100)" json:"reviewer_name,omitempty"`
	ReviewerEmail string `gorm:"type:varchar(255)" json:"reviewer_email,omitempty"`

	Rating  *int    `gorm:"check:chk_reviews_rating,rating IS NULL OR (rating >= 1 AND rating <= 5)" json:"rating"` // 1-5, 텍스트 전용 리뷰는 nil
	Comment *string `gorm:"type:text" json:"comment"`                                                             // 최대 2000자

	Photos []Photo  `gorm:"type:text;serializer:json" json:"photos"`
	Tags   []string `gorm:"type:text;serializer:json" json:"tags"`

	HelpfulCount int `gorm:"not null;default:0" json:"helpful_count"`

	Votes []ReviewHelpfulVote `gorm:"foreignKey:ReviewID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Review) TableName() string {
	return "reviews"
}

// HasComment 작성된 본문이 있는지
func (r *Review) HasComment() bool {
	return r.Comment != nil && *r.Comment != ""
}

// ReviewHelpfulVote 리뷰 "도움이 돼요" 투표
type ReviewHelpfulVote struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ReviewID uint `gorm:"not null;index:idx_review_user_vote,unique" json:"review_id"`
	UserID   uint `gorm:"not null;index:idx_review_user_vote,unique" json:"user_id"`
}

func (ReviewHelpfulVote) TableName() string {
	return "review_helpful_votes"
}
