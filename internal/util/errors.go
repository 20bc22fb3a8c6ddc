package util

import (
	"errors"
	"strings"

	"assessment_engine_backend/internal/model"
)

var (
	ErrAssessmentNotFound    = errors.New("assessment not found")
	ErrAssessmentNotEditable = errors.New("assessment is no longer editable")
	ErrQuestionNotFound      = errors.New("question not found")
	ErrSubmissionNotFound    = errors.New("submission not found")
	ErrSubmissionClosed      = errors.New("submission already closed")
	ErrSubmissionErrored     = errors.New("submission closed with an error and has no result")
	ErrAlreadyActive         = errors.New("an attempt is already active")
	ErrResultNotFound        = errors.New("result not found")
	ErrResultPending         = errors.New("result is being graded")
	ErrResultExists          = errors.New("result already recorded")
	ErrDataIntegrity         = errors.New("question bank or answers failed integrity checks")
	ErrInvalidSelection      = errors.New("invalid option selection")
	ErrInvalidAssessment     = errors.New("invalid assessment definition")
)

type DenialReason string

const (
	DenialNotPublished     DenialReason = "not_published"
	DenialOutsideWindow    DenialReason = "outside_window"
	DenialIneligible       DenialReason = "ineligible"
	DenialAlreadyActive    DenialReason = "already_active"
	DenialRetakesExhausted DenialReason = "retakes_exhausted"
)

// DeniedError is returned when an attempt may not start. No submission exists
// when it is returned.
type DeniedError struct {
	Reason      DenialReason
	Detail      string
	Unsatisfied []model.CriterionKind
}

func (e *DeniedError) Error() string {
	switch e.Reason {
	case DenialNotPublished:
		return "assessment is not published"
	case DenialOutsideWindow:
		if e.Detail != "" {
			return e.Detail
		}
		return "assessment is not open at this time"
	case DenialIneligible:
		parts := make([]string, 0, len(e.Unsatisfied))
		for _, k := range e.Unsatisfied {
			parts = append(parts, k.Describe())
		}
		return "not eligible: " + strings.Join(parts, ", ")
	case DenialAlreadyActive:
		return "an attempt is already in progress"
	case DenialRetakesExhausted:
		return "retakes exhausted"
	}
	return string(e.Reason)
}

func Denied(reason DenialReason) *DeniedError {
	return &DeniedError{Reason: reason}
}

// IntegrityError explains why a submission could not be graded.
type IntegrityError struct {
	QuestionID uint
	Problem    string
}

func (e *IntegrityError) Error() string {
	return "question " + uintToString(e.QuestionID) + ": " + e.Problem
}

func (e *IntegrityError) Unwrap() error {
	return ErrDataIntegrity
}
