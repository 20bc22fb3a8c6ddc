package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssessmentResult is written once per closed, graded submission.
// swagger:model AssessmentResult
type AssessmentResult struct {
	Record
	SubmissionID     string          `gorm:"uniqueIndex;type:varchar(36)" json:"submissionId"`
	AssessmentID     uint            `gorm:"index;type:bigint unsigned" json:"assessmentId"`
	UserID           uint            `gorm:"index;type:bigint unsigned" json:"userId"`
	TotalMark        decimal.Decimal `gorm:"type:decimal(10,2)" json:"totalMark"`
	NegativeMark     decimal.Decimal `gorm:"type:decimal(10,2)" json:"negativeMark"`
	ObtainedMark     decimal.Decimal `gorm:"type:decimal(10,2)" json:"obtainedMark"`
	IsPassed         bool            `gorm:"default:false;index" json:"isPassed"`
	CompletedSeconds int64           `json:"completedSeconds"`
	WasAutoSubmitted bool            `gorm:"default:false" json:"wasAutoSubmitted"`
	GradedAt         time.Time       `json:"gradedAt"`
}

func (AssessmentResult) TableName() string {
	return "assessment_results"
}

func (r *AssessmentResult) CompletedDuration() time.Duration {
	return time.Duration(r.CompletedSeconds) * time.Second
}
