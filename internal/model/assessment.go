package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type AssessmentStatus string

const (
	AssessmentDraft     AssessmentStatus = "draft"
	AssessmentReview    AssessmentStatus = "review"
	AssessmentPublished AssessmentStatus = "published"
	AssessmentArchived  AssessmentStatus = "archived"
	AssessmentRejected  AssessmentStatus = "rejected"
	AssessmentCompleted AssessmentStatus = "completed"
)

// swagger:model Assessment
type Assessment struct {
	Record
	CreatorID   uint             `gorm:"index;type:bigint unsigned" json:"creatorId"`
	Title       string           `gorm:"size:255;not null" json:"title"`
	Description string           `gorm:"type:text" json:"description"`
	StartDate   time.Time        `gorm:"not null" json:"startDate"`
	EndDate     time.Time        `gorm:"not null" json:"endDate"`
	Duration    int              `gorm:"default:0" json:"duration"` // Minutes per attempt
	Retakes     int              `gorm:"default:0" json:"retakes"`  // Attempts allowed beyond the first
	Weightage   decimal.Decimal  `gorm:"type:decimal(10,2);default:0" json:"weightage"`
	Status      AssessmentStatus `gorm:"size:20;default:'draft';index" json:"status"`
	PublishedAt *time.Time       `json:"publishedAt,omitempty"`

	// Marking defaults for every question; a question may override them.
	QuestionMarking  decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"questionMarking"`
	NegativeMarking  decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"negativeMarking"`
	PassingWeightage decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"passingWeightage"`

	Questions []AssessmentQuestion `gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	Rules     []EligibilityRule    `gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE" json:"rules,omitempty"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// DurationLimit returns the per-attempt time allowance.
func (a *Assessment) DurationLimit() time.Duration {
	return time.Duration(a.Duration) * time.Minute
}

// InWindow reports whether t falls in [StartDate, EndDate).
func (a *Assessment) InWindow(t time.Time) bool {
	return !t.Before(a.StartDate) && t.Before(a.EndDate)
}

func (a *Assessment) IsEditable() bool {
	return a.Status == AssessmentDraft || a.Status == AssessmentRejected
}
