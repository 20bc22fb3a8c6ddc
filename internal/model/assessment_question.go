package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
)

func (t QuestionType) Valid() bool {
	return t == SingleChoice || t == MultipleChoice
}

// AssessmentQuestion belongs to one assessment. QuestionMarking and
// NegativeMarking override the assessment defaults when set.
// swagger:model AssessmentQuestion
type AssessmentQuestion struct {
	Record
	AssessmentID    uint                       `gorm:"index;type:bigint unsigned" json:"assessmentId"`
	Type            QuestionType               `gorm:"size:30;not null" json:"type"`
	Content         string                     `gorm:"type:text;not null" json:"content"`
	Order           int                        `gorm:"default:0" json:"order"`
	QuestionMarking decimal.NullDecimal        `gorm:"type:decimal(10,2)" json:"questionMarking"`
	NegativeMarking decimal.NullDecimal        `gorm:"type:decimal(10,2)" json:"negativeMarking"`
	Options         []AssessmentQuestionOption `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"options"`
}

func (AssessmentQuestion) TableName() string {
	return "assessment_questions"
}

type AssessmentQuestionOption struct {
	Record
	QuestionID uint   `gorm:"index;type:bigint unsigned" json:"questionId"`
	Label      string `gorm:"type:text;not null" json:"label"`
	IsCorrect  bool   `gorm:"default:false" json:"isCorrect,omitempty"`
	Order      int    `gorm:"default:0" json:"order"`
}

func (AssessmentQuestionOption) TableName() string {
	return "assessment_question_options"
}

// CorrectOptionIDs returns the ids of options flagged correct, in option order.
func (q *AssessmentQuestion) CorrectOptionIDs() []uint {
	ids := make([]uint, 0, 1)
	for _, o := range q.Options {
		if o.IsCorrect {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

func (q *AssessmentQuestion) HasOption(id uint) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// ValidateAnswerKey checks the option flags against the question type.
func (q *AssessmentQuestion) ValidateAnswerKey() error {
	if !q.Type.Valid() {
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	correct := len(q.CorrectOptionIDs())
	switch q.Type {
	case SingleChoice:
		if correct != 1 {
			return fmt.Errorf("single choice question needs exactly one correct option, has %d", correct)
		}
	case MultipleChoice:
		if correct < 1 {
			return fmt.Errorf("multiple choice question needs at least one correct option")
		}
	}
	return nil
}

// Marks resolves the award and the penalty for this question.
func (q *AssessmentQuestion) Marks(defaultMark, defaultPenalty decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	mark, penalty := defaultMark, defaultPenalty
	if q.QuestionMarking.Valid {
		mark = q.QuestionMarking.Decimal
	}
	if q.NegativeMarking.Valid {
		penalty = q.NegativeMarking.Decimal
	}
	return mark, penalty
}

// StudentView strips the answer key.
func (q AssessmentQuestion) StudentView() AssessmentQuestion {
	opts := make([]AssessmentQuestionOption, len(q.Options))
	for i, o := range q.Options {
		o.IsCorrect = false
		opts[i] = o
	}
	q.Options = opts
	return q
}
