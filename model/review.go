package model

import (
	"time"

	"gorm.io/gorm"
)

// Review statuses
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// Review is a student rating of a college
type Review struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CollegeID string         `gorm:"type:varchar(255);not null;index:idx_reviews_college_created,priority:1" json:"collegeId"`
	UserID    string         `gorm:"type:varchar(255);not null" json:"userId"`
	UserName  string         `gorm:"type:varchar(255);not null" json:"userName"`
	Rating    int            `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Comment   string         `gorm:"type:varchar(1000);not null" json:"comment"`
	Status    string         `gorm:"type:varchar(20);default:approved;index" json:"status"`
	CreatedAt time.Time      `gorm:"index:idx_reviews_college_created,priority:2,sort:desc" json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for Review
func (Review) TableName() string {
	return "reviews"
}

// ReviewSummary is the list of recent approved reviews plus the aggregate rating.
type ReviewSummary struct {
	Reviews      []Review `json:"reviews"`
	AvgRating    float64  `json:"avgRating"`
	TotalReviews int64    `json:"totalReviews"`
}
