package repository

import (
	"time"

	"assessment_engine_backend/internal/model"
)

type AssessmentFilter struct {
	CreatorID uint
	Status    model.AssessmentStatus
	Page      int
	Limit     int
}

func (f AssessmentFilter) offsetLimit() (int, int) {
	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return (page - 1) * limit, limit
}

// CloseParams describes the terminal transition of a submission.
type CloseParams struct {
	EndTime       time.Time
	Status        model.SubmissionStatus
	AutoSubmitted bool
	ErrorReason   string
}
