package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

type SubmissionStatus string

const (
	SubmissionActive    SubmissionStatus = "active"
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionTimedOut  SubmissionStatus = "timed_out"
	SubmissionErrored   SubmissionStatus = "errored"
)

func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionSubmitted || s == SubmissionTimedOut || s == SubmissionErrored
}

// AssessmentSubmission is one timed attempt. It is open while EndTime is nil;
// OpenKey is set only while open so the unique index allows a single open
// attempt per (user, assessment).
// swagger:model AssessmentSubmission
type AssessmentSubmission struct {
	SubmissionKey
	AssessmentID      uint             `gorm:"index:idx_submission_user_assessment;type:bigint unsigned" json:"assessmentId"`
	UserID            uint             `gorm:"index:idx_submission_user_assessment;type:bigint unsigned" json:"userId"`
	AttemptNumber     int              `gorm:"default:1" json:"attemptNumber"`
	StartTime         time.Time        `gorm:"not null" json:"startTime"`
	Deadline          time.Time        `gorm:"index;not null" json:"deadline"`
	EndTime           *time.Time       `gorm:"index" json:"endTime"`
	Status            SubmissionStatus `gorm:"size:20;default:'active'" json:"status"`
	WasAutoSubmitted  bool             `gorm:"default:false" json:"wasAutoSubmitted"`
	IsSubmissionError bool             `gorm:"default:false" json:"isSubmissionError"`
	ErrorReason       string           `gorm:"type:text" json:"errorReason,omitempty"`
	OpenKey           *string          `gorm:"uniqueIndex;size:64" json:"-"`
}

func (AssessmentSubmission) TableName() string {
	return "assessment_submissions"
}

func (s *AssessmentSubmission) IsOpen() bool {
	return s.EndTime == nil
}

func OpenKeyFor(userID, assessmentID uint) string {
	return fmt.Sprintf("%d:%d", userID, assessmentID)
}

// OptionIDs is a set of selected option ids persisted as a JSON array.
type OptionIDs []uint

func (o OptionIDs) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]uint(o))
	return string(b), err
}

func (o *OptionIDs) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*o = OptionIDs{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported type for OptionIDs")
	}
	var ids []uint
	if err := json.Unmarshal(raw, &ids); err != nil {
		return err
	}
	*o = ids
	return nil
}

// Normalize sorts and removes duplicates.
func (o OptionIDs) Normalize() OptionIDs {
	seen := make(map[uint]struct{}, len(o))
	out := make(OptionIDs, 0, len(o))
	for _, id := range o {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AssessmentSubmissionAnswer holds the selection for one question. An empty
// selection means unanswered. IsCorrect is filled in by grading.
type AssessmentSubmissionAnswer struct {
	Record
	SubmissionID      string    `gorm:"uniqueIndex:idx_answer_submission_question;type:varchar(36)" json:"submissionId"`
	QuestionID        uint      `gorm:"uniqueIndex:idx_answer_submission_question;type:bigint unsigned" json:"questionId"`
	SelectedOptionIDs OptionIDs `gorm:"type:json" json:"selectedOptionIds"`
	IsCorrect         *bool     `json:"isCorrect"`
}

func (AssessmentSubmissionAnswer) TableName() string {
	return "assessment_submission_answers"
}
